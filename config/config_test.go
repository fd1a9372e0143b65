package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom[PDB](map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, uint(3), cfg.Upstream.MaxTries)
	assert.Equal(t, "bearer", cfg.Auth.HeaderType)
	assert.Empty(t, cfg.Auth.APIKeys)
	assert.Equal(t, "https://data.rcsb.org/rest/v1", cfg.DataURL)
	assert.Equal(t, "https://search.rcsb.org/rcsbsearch/v2/query", cfg.SearchURL)
	assert.Equal(t, "https://files.rcsb.org/download", cfg.FilesURL)
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom[DrugBank](map[string]string{
		"DRUGBANK_API_KEY":       "secret",
		"DRUGBANK_BASE_URL":      "http://localhost:9999/v1",
		"MCP_UPSTREAM_TIMEOUT":   "5s",
		"MCP_UPSTREAM_MAX_TRIES": "1",
		"MCP_API_KEYS":           "a,b",
		"MCP_AUTH_HEADER":        "api-key",
	})
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "http://localhost:9999/v1", cfg.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, uint(1), cfg.Upstream.MaxTries)
	assert.Equal(t, []string{"a", "b"}, cfg.Auth.APIKeys)
	assert.Equal(t, "api-key", cfg.Auth.HeaderType)
}

func TestLoadFrom_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"bad duration":    {"MCP_UPSTREAM_TIMEOUT": "soon"},
		"zero tries":      {"MCP_UPSTREAM_MAX_TRIES": "0"},
		"negative":        {"MCP_UPSTREAM_TIMEOUT": "-1s"},
		"unknown header":  {"MCP_AUTH_HEADER": "cookie"},
		"non numeric try": {"MCP_UPSTREAM_MAX_TRIES": "three"},
	}

	for name, environ := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom[ChEMBL](environ)
			assert.Error(t, err)
		})
	}
}

func TestLoadFrom_AllServers(t *testing.T) {
	_, err := LoadFrom[PubChem](map[string]string{})
	assert.NoError(t, err)
	_, err = LoadFrom[SureChEMBL](map[string]string{})
	assert.NoError(t, err)

	ot, err := LoadFrom[OpenTargets](map[string]string{})
	require.NoError(t, err)
	assert.Contains(t, ot.GraphQLURL, "opentargets.org")
}
