// Package config loads CLI settings from the environment.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// Config holds settings shared by every `local` subcommand.
type Config struct {
	LogLevel          string `env:"CLARITY_LOG_LEVEL" envDefault:"warn"`
	ContractCacheSize int    `env:"CLARITY_CONTRACT_CACHE_SIZE" envDefault:"64"`
	ReplHistory       string `env:"CLARITY_REPL_HISTORY"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load returns the Config read from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.ContractCacheSize <= 0 {
		return Config{}, fmt.Errorf("contract cache size must be positive, got %d", cfg.ContractCacheSize)
	}
	return cfg, nil
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
