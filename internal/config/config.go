// Package config loads converter settings from the environment and flags.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds converter process configuration. Environment values are
// defaults; flags override them.
type Config struct {
	Address         string        `env:"TV3_ADDRESS" envDefault:"127.0.0.1:8123"`
	DBPath          string        `env:"TV3_DB_PATH"`
	RoutesPath      string        `env:"TV3_ROUTES_PATH"`
	Workers         int           `env:"TV3_WORKERS" envDefault:"0"`
	MaxBodyBytes    int64         `env:"TV3_MAX_BODY_BYTES" envDefault:"10485760"`
	ShutdownTimeout time.Duration `env:"TV3_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseConfig parses environment and flags into a Config. An empty DBPath
// resolves to events.db under ApplicationDirectory.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Address, "address", cfg.Address, "HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite document store path")
	fs.StringVar(&cfg.RoutesPath, "routes", cfg.RoutesPath, "YAML index route table")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Concurrent conversions per batch (0 = GOMAXPROCS)")
	fs.Int64Var(&cfg.MaxBodyBytes, "max-body-bytes", cfg.MaxBodyBytes, "Maximum request body size")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "Graceful shutdown timeout")
	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.DBPath == "" {
		dir, err := ApplicationDirectory()
		if err != nil {
			return Config{}, err
		}
		cfg.DBPath = filepath.Join(dir, "events.db")
	}
	return cfg, nil
}

// ApplicationDirectory returns the platform-specific data directory,
// creating it if needed.
func ApplicationDirectory() (string, error) {
	homeDirectory, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	var applicationDirectory string
	switch runtime.GOOS {
	case "darwin":
		applicationDirectory = filepath.Join(homeDirectory, "Library", "Application Support", "TelemetryConverter")
	case "windows":
		applicationDirectory = filepath.Join(homeDirectory, "AppData", "Roaming", "TelemetryConverter")
	default: // linux and others
		applicationDirectory = filepath.Join(homeDirectory, ".local", "share", "TelemetryConverter")
	}
	if err := os.MkdirAll(applicationDirectory, 0o755); err != nil {
		return "", fmt.Errorf("failed to create application directory: %w", err)
	}
	return applicationDirectory, nil
}
