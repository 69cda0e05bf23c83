package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// IntegrationsConfig declares the external HTTP statistics providers the
// dashboard polls.
type IntegrationsConfig struct {
	Providers []ProviderConfig `yaml:"providers"`
}

// ProviderConfig describes one HTTP stats provider. Fields maps snapshot
// keys to JSON paths into the provider's response.
type ProviderConfig struct {
	Name   string            `yaml:"name"`
	URL    string            `yaml:"url"`
	APIKey string            `yaml:"api_key"`
	Fields map[string]string `yaml:"fields"`
}

// LoadIntegrations reads and validates the providers file.
func LoadIntegrations(path string) (IntegrationsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return IntegrationsConfig{}, fmt.Errorf("read integrations config: %w", err)
	}

	var cfg IntegrationsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return IntegrationsConfig{}, fmt.Errorf("parse integrations config: %w", err)
	}

	for i, p := range cfg.Providers {
		if strings.TrimSpace(p.Name) == "" {
			return IntegrationsConfig{}, fmt.Errorf("provider %d: name is required", i)
		}
		if strings.TrimSpace(p.URL) == "" {
			return IntegrationsConfig{}, fmt.Errorf("provider %q: url is required", p.Name)
		}
	}
	return cfg, nil
}

// LoadIntegrationsOrDefault loads the providers file, treating a missing
// file as an empty provider list.
func LoadIntegrationsOrDefault(path string) (IntegrationsConfig, error) {
	cfg, err := LoadIntegrations(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return IntegrationsConfig{}, nil
		}
		return IntegrationsConfig{}, err
	}
	return cfg, nil
}
