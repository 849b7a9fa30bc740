package config

import "os"

// APIKeySource represents where an API key comes from.
type APIKeySource string

const (
	KeySourceEnv    APIKeySource = "env"
	KeySourceConfig APIKeySource = "config"
	KeySourceNone   APIKeySource = "none"
)

// KeyStatus represents the status of an API key.
type KeyStatus struct {
	Name     string       `json:"name"`
	EnvVar   string       `json:"env_var"`
	Source   APIKeySource `json:"source"`
	IsSet    bool         `json:"is_set"`
	Required bool         `json:"required"`
	Masked   string       `json:"masked,omitempty"` // e.g., "sk-...abc"
}

// CheckAPIKeys returns the status of every credential the pipeline uses.
func CheckAPIKeys(cfg *Config) []KeyStatus {
	return []KeyStatus{
		checkKey("Alpha Vantage API Key", cfg.Equities.APIKey, EnvAlphaVantageKey, true),
		checkKey("OpenAI API Key", cfg.LLM.OpenAIKey, EnvOpenAIKey, cfg.LLM.Primary == "openai"),
		checkKey("Serper API Key", cfg.Search.APIKey, EnvSerperKey, false),
		checkKey("Gemini API Key", cfg.LLM.GeminiKey, EnvGeminiKey, cfg.LLM.Primary == "gemini"),
		checkKey("Anthropic API Key", cfg.LLM.AnthropicKey, EnvAnthropicKey, cfg.LLM.Primary == "anthropic"),
	}
}

// MissingRequired returns the required keys that are not set.
func MissingRequired(keys []KeyStatus) []KeyStatus {
	var out []KeyStatus
	for _, k := range keys {
		if k.Required && !k.IsSet {
			out = append(out, k)
		}
	}
	return out
}

// checkKey checks if a key is set and where it came from.
func checkKey(name, value, envVar string, required bool) KeyStatus {
	status := KeyStatus{
		Name:     name,
		EnvVar:   envVar,
		IsSet:    value != "",
		Required: required,
	}

	if value != "" {
		if os.Getenv(envVar) != "" {
			status.Source = KeySourceEnv
		} else {
			status.Source = KeySourceConfig
		}
		status.Masked = maskKey(value)
	} else {
		status.Source = KeySourceNone
	}

	return status
}

// maskKey masks an API key for display, showing only first 3 and last 3 chars.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}
