// Package config loads console configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the console needs to reach the pipeline and
// mirror registry state locally.
type Config struct {
	// APIBaseURL is the pipeline REST endpoint, no trailing slash.
	APIBaseURL string `env:"RECON_API_URL" envDefault:"https://pipeline.temple-heritage.net/api"`
	// APIToken is the opaque bearer credential. When empty the auth
	// package's file fallback is consulted.
	APIToken string `env:"RECON_API_TOKEN"`
	// StatePath is the JSON state file mirroring the registry.
	StatePath string `env:"RECON_STATE_FILE"`
	// Period is the default month scope (YYYYMM) for list/delete calls.
	Period string `env:"RECON_PERIOD"`
	// LogLevel mirrors RECON_LOG_LEVEL for the startup summary.
	LogLevel string `env:"RECON_LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment into a Config and fills derived defaults:
// the state file lands under ~/.temple-recon/ and the period defaults to
// the current month.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.StatePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.StatePath = filepath.Join(home, ".temple-recon", "state.json")
	}
	if cfg.Period == "" {
		cfg.Period = time.Now().UTC().Format("200601")
	}
	return &cfg, nil
}
