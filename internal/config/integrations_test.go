package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "integrations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadIntegrations(t *testing.T) {
	path := writeTempYAML(t, `
providers:
  - name: privacy-network
    url: https://stats.example.org/v1/summary
    api_key: secret
    fields:
      relays: network.relays
      status: network.status
  - name: edge-infrastructure
    url: https://edge.example.org/metrics
`)

	cfg, err := LoadIntegrations(path)
	require.NoError(t, err)
	require.Len(t, cfg.Providers, 2)

	first := cfg.Providers[0]
	assert.Equal(t, "privacy-network", first.Name)
	assert.Equal(t, "https://stats.example.org/v1/summary", first.URL)
	assert.Equal(t, "secret", first.APIKey)
	assert.Equal(t, "network.relays", first.Fields["relays"])

	assert.Empty(t, cfg.Providers[1].Fields)
}

func TestLoadIntegrationsValidation(t *testing.T) {
	_, err := LoadIntegrations(writeTempYAML(t, "providers:\n  - url: https://example.org\n"))
	assert.ErrorContains(t, err, "name is required")

	_, err = LoadIntegrations(writeTempYAML(t, "providers:\n  - name: nameless\n"))
	assert.ErrorContains(t, err, "url is required")

	_, err = LoadIntegrations(writeTempYAML(t, "providers: [not a mapping"))
	assert.Error(t, err)
}

func TestLoadIntegrationsOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadIntegrationsOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Providers)

	// Other failures still surface.
	_, err = LoadIntegrationsOrDefault(writeTempYAML(t, "providers:\n  - url: https://example.org\n"))
	assert.Error(t, err)
}
