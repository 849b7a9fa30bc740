// Package config handles configuration loading for mercadobr.
// It supports YAML config files, a local .env file and environment variable
// overrides. Collector inputs (tickers, indicator codes, keywords, sites) are
// plain values here and are handed to each collector explicitly.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Data       DataConfig       `mapstructure:"data"       yaml:"data"       toml:"data"`
	Indicators IndicatorsConfig `mapstructure:"indicators" yaml:"indicators" toml:"indicators"`
	Equities   EquitiesConfig   `mapstructure:"equities"   yaml:"equities"   toml:"equities"`
	News       NewsConfig       `mapstructure:"news"       yaml:"news"       toml:"news"`
	LLM        LLMConfig        `mapstructure:"llm"        yaml:"llm"        toml:"llm"`
	Search     SearchConfig     `mapstructure:"search"     yaml:"search"     toml:"search"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard"  yaml:"dashboard"  toml:"dashboard"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"   yaml:"schedule"   toml:"schedule"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"    toml:"logging"`
}

// DataConfig locates the flat files shared by every component.
type DataConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir" toml:"dir"`
}

// IndicatorSeries maps an indicator name to its SGS series code.
type IndicatorSeries struct {
	Name string `mapstructure:"name" yaml:"name" toml:"name"`
	Code int    `mapstructure:"code" yaml:"code" toml:"code"`
}

// IndicatorsConfig configures the central-bank indicator collector.
type IndicatorsConfig struct {
	BaseURL    string            `mapstructure:"base_url"    yaml:"base_url"    toml:"base_url"`
	Series     []IndicatorSeries `mapstructure:"series"      yaml:"series"      toml:"series"`
	LastN      int               `mapstructure:"last_n"      yaml:"last_n"      toml:"last_n"`
	TimeoutSec int               `mapstructure:"timeout_sec" yaml:"timeout_sec" toml:"timeout_sec"`
}

// EquitiesConfig configures the daily-bar collector.
type EquitiesConfig struct {
	BaseURL       string   `mapstructure:"base_url"        yaml:"base_url"        toml:"base_url"`
	APIKey        string   `mapstructure:"api_key"         yaml:"api_key"         toml:"-"`
	Tickers       []string `mapstructure:"tickers"         yaml:"tickers"         toml:"tickers"`
	Suffix        string   `mapstructure:"suffix"          yaml:"suffix"          toml:"suffix"`
	LastN         int      `mapstructure:"last_n"          yaml:"last_n"          toml:"last_n"`
	TimeoutSec    int      `mapstructure:"timeout_sec"     yaml:"timeout_sec"     toml:"timeout_sec"`
	PauseSec      int      `mapstructure:"pause_sec"       yaml:"pause_sec"       toml:"pause_sec"`
	RetryAfterSec int      `mapstructure:"retry_after_sec" yaml:"retry_after_sec" toml:"retry_after_sec"`
}

// NewsSite is a single news page to scrape. FeedURL is optional.
type NewsSite struct {
	Name    string `mapstructure:"name"     yaml:"name"     toml:"name"`
	URL     string `mapstructure:"url"      yaml:"url"      toml:"url"`
	FeedURL string `mapstructure:"feed_url" yaml:"feed_url" toml:"feed_url,omitempty"`
}

// NewsConfig configures the headline scraper.
type NewsConfig struct {
	Sites      []NewsSite `mapstructure:"sites"       yaml:"sites"       toml:"sites"`
	Keywords   []string   `mapstructure:"keywords"    yaml:"keywords"    toml:"keywords"`
	MinTitle   int        `mapstructure:"min_title"   yaml:"min_title"   toml:"min_title"`
	UserAgent  string     `mapstructure:"user_agent"  yaml:"user_agent"  toml:"user_agent"`
	TimeoutSec int        `mapstructure:"timeout_sec" yaml:"timeout_sec" toml:"timeout_sec"`
}

// LLMConfig holds language-model provider configuration.
type LLMConfig struct {
	Primary         string  `mapstructure:"primary"          yaml:"primary"          toml:"primary"` // "openai", "gemini", "anthropic"
	OpenAIKey       string  `mapstructure:"openai_key"       yaml:"openai_key"       toml:"-"`
	OpenAIBaseURL   string  `mapstructure:"openai_base_url"  yaml:"openai_base_url"  toml:"openai_base_url,omitempty"`
	GeminiKey       string  `mapstructure:"gemini_key"       yaml:"gemini_key"       toml:"-"`
	AnthropicKey    string  `mapstructure:"anthropic_key"    yaml:"anthropic_key"    toml:"-"`
	Model           string  `mapstructure:"model"            yaml:"model"            toml:"model"`
	GeminiModel     string  `mapstructure:"gemini_model"     yaml:"gemini_model"     toml:"gemini_model"`
	AnthropicModel  string  `mapstructure:"anthropic_model"  yaml:"anthropic_model"  toml:"anthropic_model"`
	Temperature     float64 `mapstructure:"temperature"      yaml:"temperature"      toml:"temperature"`
	ChatTemperature float64 `mapstructure:"chat_temperature" yaml:"chat_temperature" toml:"chat_temperature"`
	MaxTokens       int     `mapstructure:"max_tokens"       yaml:"max_tokens"       toml:"max_tokens"`
	MaxToolIter     int     `mapstructure:"max_tool_iter"    yaml:"max_tool_iter"    toml:"max_tool_iter"`
	TimeoutSec      int     `mapstructure:"timeout_sec"      yaml:"timeout_sec"      toml:"timeout_sec"`
}

// SearchConfig configures the web-search tool offered to the analyst roles.
type SearchConfig struct {
	APIKey     string  `mapstructure:"api_key"     yaml:"api_key"     toml:"-"`
	BaseURL    string  `mapstructure:"base_url"    yaml:"base_url"    toml:"base_url"`
	Country    string  `mapstructure:"country"     yaml:"country"     toml:"country"`
	Language   string  `mapstructure:"language"    yaml:"language"    toml:"language"`
	NumResults int     `mapstructure:"num_results" yaml:"num_results" toml:"num_results"`
	RatePerSec float64 `mapstructure:"rate_per_sec" yaml:"rate_per_sec" toml:"rate_per_sec"`
}

// DashboardConfig holds dashboard HTTP server settings.
type DashboardConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"         toml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"         toml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	NewsLimit   int      `mapstructure:"news_limit"   yaml:"news_limit"   toml:"news_limit"`
}

// ScheduleConfig drives the periodic collection mode.
type ScheduleConfig struct {
	Cron       string `mapstructure:"cron"        yaml:"cron"        toml:"cron"`
	WithReport bool   `mapstructure:"with_report" yaml:"with_report" toml:"with_report"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  toml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format" toml:"format"` // "console" or "json"
}

// Addr returns host:port for the dashboard listener.
func (d DashboardConfig) Addr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// Timeout converts a seconds value to a duration, using def when unset.
func Timeout(sec int, def time.Duration) time.Duration {
	if sec <= 0 {
		return def
	}
	return time.Duration(sec) * time.Second
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.mercadobr/config.yaml (home directory)
//
// A .env file in the working directory is loaded first; variables already
// set in the process environment win. Environment variables override config
// file values. Format: MERCADOBR_<SECTION>_<KEY>, e.g. MERCADOBR_DATA_DIR.
func Load() (*Config, error) {
	loadDotEnv()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".mercadobr"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return unmarshal(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadDotEnv()

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return unmarshal(v)
}

// Default returns the built-in configuration with environment overrides
// applied, without touching config files.
func Default() *Config {
	cfg, err := unmarshal(newViper())
	if err != nil {
		// Defaults always decode; keep the zero config on a broken environment.
		return &Config{}
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("MERCADOBR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets defaults for all config values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("data.dir", "data")

	// Central bank SGS series
	v.SetDefault("indicators.base_url", "https://api.bcb.gov.br")
	v.SetDefault("indicators.series", []map[string]any{
		{"name": "IPCA", "code": 433},
		{"name": "SELIC", "code": 432},
		{"name": "PIB", "code": 4380},
		{"name": "DÓLAR", "code": 1},
		{"name": "COMMODITIES", "code": 22795},
		{"name": "IGP-M", "code": 189},
	})
	v.SetDefault("indicators.last_n", 20)
	v.SetDefault("indicators.timeout_sec", 30)

	// Alpha Vantage, free tier is 5 requests/minute
	v.SetDefault("equities.base_url", "https://www.alphavantage.co")
	v.SetDefault("equities.tickers", []string{
		"PETR4", "VALE3", "ITUB4", "BBDC4", "ABEV3",
		"BBAS3", "B3SA3", "WEGE3", "RENT3", "MGLU3",
	})
	v.SetDefault("equities.suffix", ".SA")
	v.SetDefault("equities.last_n", 20)
	v.SetDefault("equities.timeout_sec", 30)
	v.SetDefault("equities.pause_sec", 15)
	v.SetDefault("equities.retry_after_sec", 30)

	// News pages
	v.SetDefault("news.sites", []map[string]any{
		{"name": "CNN Brasil", "url": "https://www.cnnbrasil.com.br/economia/"},
		{"name": "G1 Economia", "url": "https://g1.globo.com/economia/"},
		{"name": "InfoMoney Mercados", "url": "https://www.infomoney.com.br/mercados/"},
		{"name": "Exame Economia", "url": "https://exame.com/economia/"},
	})
	v.SetDefault("news.keywords", []string{
		"ipca", "inflação", "selic", "juros", "bovespa", "ações", "investimentos",
		"bolsa", "ibovespa", "economia", "mercado", "taxa básica", "taxa de juros",
	})
	v.SetDefault("news.min_title", 10)
	v.SetDefault("news.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	v.SetDefault("news.timeout_sec", 20)

	// LLM
	v.SetDefault("llm.primary", "openai")
	v.SetDefault("llm.model", "gpt-4.1-mini")
	v.SetDefault("llm.gemini_model", "gemini-2.0-flash")
	v.SetDefault("llm.anthropic_model", "claude-3-5-haiku-latest")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.chat_temperature", 0.4)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.max_tool_iter", 10)
	v.SetDefault("llm.timeout_sec", 180)

	// Web search
	v.SetDefault("search.base_url", "https://google.serper.dev")
	v.SetDefault("search.country", "br")
	v.SetDefault("search.language", "pt-br")
	v.SetDefault("search.num_results", 8)
	v.SetDefault("search.rate_per_sec", 2.0)

	// Dashboard
	v.SetDefault("dashboard.host", "0.0.0.0")
	v.SetDefault("dashboard.port", 8000)
	v.SetDefault("dashboard.cors_origins", []string{"*"})
	v.SetDefault("dashboard.news_limit", 10)

	// Scheduler (weekdays after the close)
	v.SetDefault("schedule.cron", "30 19 * * 1-5")
	v.SetDefault("schedule.with_report", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Credential environment variables. These are read without the MERCADOBR_
// prefix so existing deployments keep working.
const (
	EnvAlphaVantageKey = "ALPHA_VANTAGE_API_KEY"
	EnvOpenAIKey       = "OPENAI_API_KEY"
	EnvSerperKey       = "SERPER_API_KEY"
	EnvGeminiKey       = "GEMINI_API_KEY"
	EnvAnthropicKey    = "ANTHROPIC_API_KEY"
)

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv(EnvAlphaVantageKey); key != "" {
		cfg.Equities.APIKey = key
	}
	if key := os.Getenv(EnvOpenAIKey); key != "" {
		cfg.LLM.OpenAIKey = key
	}
	if key := os.Getenv(EnvSerperKey); key != "" {
		cfg.Search.APIKey = key
	}
	if key := os.Getenv(EnvGeminiKey); key != "" {
		cfg.LLM.GeminiKey = key
	}
	if key := os.Getenv(EnvAnthropicKey); key != "" {
		cfg.LLM.AnthropicKey = key
	}
}

// loadDotEnv loads ./.env when present. Missing files are ignored.
func loadDotEnv() {
	_ = godotenv.Load()
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
