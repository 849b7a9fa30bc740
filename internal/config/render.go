package config

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

// Render returns the effective configuration as TOML. Credentials are
// tagged out and never appear in the output.
func Render(cfg *Config) ([]byte, error) {
	out, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}
	return out, nil
}
