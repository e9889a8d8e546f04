package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/quorum/pkg/deliberation"
)

// writeConfig writes content to a temp quorum.yml and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "quorum.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
version: "1.0"
instance: staging
defaults:
  method: majority
  round_timeout: 45s
  persona_timeout: 15s
redis:
  addr: localhost:6379
  db: 2
personas:
  architect:
    name: The Architect
    weight: 1.2
    domains: [architecture]
    signals:
      architecture: [design, module]
    caution: [rewrite]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "1.0", cfg.Version)
	assert.Equal(t, "staging", cfg.Instance)
	assert.Equal(t, "majority", cfg.Defaults.Method)
	assert.Equal(t, 45*time.Second, time.Duration(cfg.Defaults.RoundTimeout))
	assert.Equal(t, 15*time.Second, time.Duration(cfg.Defaults.PersonaTimeout))

	require.NotNil(t, cfg.Redis)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)

	require.Contains(t, cfg.Personas, "architect")
	assert.Equal(t, 1.2, cfg.Personas["architect"].Weight)
}

func TestLoad_MinimalConfigGetsDefaults(t *testing.T) {
	path := writeConfig(t, `version: "1.0"`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.Instance)
	assert.Equal(t, string(deliberation.MethodWeighted), cfg.Defaults.Method)
	assert.Equal(t, 30*time.Second, time.Duration(cfg.Defaults.RoundTimeout))
	assert.Equal(t, 10*time.Second, time.Duration(cfg.Defaults.PersonaTimeout))
	assert.Nil(t, cfg.Redis)
	assert.Empty(t, cfg.Personas)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfig(t, "version: [unclosed")
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		path := writeConfig(t, `
version: "1.0"
defaults:
  round_timeout: soon
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid duration")
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*Config)
		errorContains string
	}{
		{
			name:          "missing version",
			mutate:        func(c *Config) { c.Version = "" },
			errorContains: "version",
		},
		{
			name:          "unknown method",
			mutate:        func(c *Config) { c.Defaults.Method = "plurality" },
			errorContains: "defaults.method",
		},
		{
			name: "persona timeout at round timeout",
			mutate: func(c *Config) {
				c.Defaults.RoundTimeout = Duration(10 * time.Second)
				c.Defaults.PersonaTimeout = Duration(10 * time.Second)
			},
			errorContains: "persona_timeout",
		},
		{
			name:          "redis section without addr",
			mutate:        func(c *Config) { c.Redis = &RedisConfig{} },
			errorContains: "redis.addr",
		},
		{
			name: "persona without name",
			mutate: func(c *Config) {
				c.Personas = map[string]PersonaConfig{"x": {Domains: []string{"a"}}}
			},
			errorContains: "name is required",
		},
		{
			name: "persona without domains",
			mutate: func(c *Config) {
				c.Personas = map[string]PersonaConfig{"x": {Name: "X"}}
			},
			errorContains: "domain",
		},
		{
			name: "persona with negative weight",
			mutate: func(c *Config) {
				c.Personas = map[string]PersonaConfig{"x": {Name: "X", Domains: []string{"a"}, Weight: -1}}
			},
			errorContains: "weight",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestConfig_Registry(t *testing.T) {
	t.Run("no personas falls back to the built-in council", func(t *testing.T) {
		registry, err := Default().Registry()
		require.NoError(t, err)
		assert.Greater(t, registry.Len(), 0)
	})

	t.Run("declared personas with defaults filled", func(t *testing.T) {
		cfg := Default()
		cfg.Personas = map[string]PersonaConfig{
			"economist": {Name: "The Economist", Domains: []string{"cost"}},
		}

		registry, err := cfg.Registry()
		require.NoError(t, err)
		require.Equal(t, 1, registry.Len())

		p, ok := registry.Get("economist")
		require.True(t, ok)
		assert.Equal(t, 1.0, p.Identity().Weight)
	})

	t.Run("invalid persona surfaces build error", func(t *testing.T) {
		cfg := Default()
		cfg.Personas = map[string]PersonaConfig{
			"broken": {Name: "Broken", Weight: 2},
		}

		_, err := cfg.Registry()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken")
	})
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Default()

	t.Run("fills zero-valued fields", func(t *testing.T) {
		req := deliberation.Request{Query: "anything"}
		cfg.ApplyDefaults(&req)

		assert.Equal(t, deliberation.MethodWeighted, req.Method)
		assert.Equal(t, 30*time.Second, req.RoundTimeout)
		assert.Equal(t, 10*time.Second, req.PersonaTimeout)
	})

	t.Run("leaves explicit fields alone", func(t *testing.T) {
		req := deliberation.Request{
			Query:          "anything",
			Method:         deliberation.MethodUnanimous,
			RoundTimeout:   time.Minute,
			PersonaTimeout: 20 * time.Second,
		}
		cfg.ApplyDefaults(&req)

		assert.Equal(t, deliberation.MethodUnanimous, req.Method)
		assert.Equal(t, time.Minute, req.RoundTimeout)
		assert.Equal(t, 20*time.Second, req.PersonaTimeout)
	})
}
