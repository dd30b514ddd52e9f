package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath = ".parley/config.yaml"
	defaultEndpoint   = "http://localhost:8840"
	defaultAPIKeyEnv  = "PARLEY_API_KEY"
)

// fileConfig is the on-disk YAML shape. Durations are strings ("30s") so the
// file stays human-editable.
type fileConfig struct {
	Endpoint      string   `yaml:"endpoint"`
	APIKeyEnv     string   `yaml:"api_key_env"`
	IdleTimeout   string   `yaml:"idle_timeout"`
	ControlChunks []string `yaml:"control_chunks"`
	History       string   `yaml:"history"`
}

// loadFileConfig reads the YAML config file. A missing file at the default
// path is not an error; a missing file at an explicit path is.
func loadFileConfig(path string) (fileConfig, error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && path == defaultConfigPath:
		return fileConfig{}, nil
	default:
		return fileConfig{}, fmt.Errorf("read config: %w", err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// config is the fully resolved runtime configuration.
type config struct {
	endpoint       string
	apiKey         string
	idleTimeout    time.Duration
	idleTimeoutSet bool
	controlChunks  []string
	historyPath    string
}

// resolveConfig merges flag values over file values over defaults. Env vars
// are read through envLookup so resolution stays testable; os.Getenv is only
// passed in from run().
func resolveConfig(file fileConfig, endpointFlag, apiKeyFlag, historyFlag string, envLookup func(string) string) (config, error) {
	cfg := config{
		endpoint:      defaultEndpoint,
		controlChunks: file.ControlChunks,
		historyPath:   file.History,
	}
	if file.Endpoint != "" {
		cfg.endpoint = file.Endpoint
	}
	if endpointFlag != "" {
		cfg.endpoint = endpointFlag
	}

	keyEnv := defaultAPIKeyEnv
	if file.APIKeyEnv != "" {
		keyEnv = file.APIKeyEnv
	}
	cfg.apiKey = envLookup(keyEnv)
	if apiKeyFlag != "" {
		cfg.apiKey = apiKeyFlag
	}

	if historyFlag != "" {
		cfg.historyPath = historyFlag
	}

	if file.IdleTimeout != "" {
		d, err := time.ParseDuration(file.IdleTimeout)
		if err != nil {
			return config{}, fmt.Errorf("parse idle_timeout %q: %w", file.IdleTimeout, err)
		}
		if d < 0 {
			return config{}, fmt.Errorf("idle_timeout must not be negative: %q", file.IdleTimeout)
		}
		cfg.idleTimeout = d
		cfg.idleTimeoutSet = true
	}

	return cfg, nil
}
