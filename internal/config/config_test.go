package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	require.NoError(t, Validate(Defaults()))
	e := Defaults().Engine()
	assert.Equal(t, 4, e.Workers)
	assert.Equal(t, "quickjs", e.BackendName())
	assert.Equal(t, 20, e.Capacity())
}

func TestLoadJSON(t *testing.T) {
	cfg, err := LoadJSON("", []byte(`{
		"workers": 8,
		"backend": "goja",
		"scripts": ["views/a.js", "views/b.ts"],
		"logging": {"level": "debug"},
		"server": {"listen": "127.0.0.1:9000"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "goja", cfg.Backend)
	assert.Equal(t, []string{"views/a.js", "views/b.ts"}, cfg.Scripts)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Listen)

	merged := Merge(Defaults(), cfg)
	require.NoError(t, Validate(merged))
	assert.Equal(t, 20, merged.ResultCapacity)
	assert.Equal(t, 256, merged.Server.MaxConns)
}

func TestLoadJSONRejectsUnknownFields(t *testing.T) {
	_, err := LoadJSON("", []byte(`{"workerz": 2}`))
	assert.Error(t, err)

	_, err = LoadJSON("", nil)
	assert.Error(t, err)
}

func TestEnvOverlay(t *testing.T) {
	over, err := EnvOverlay([]string{
		"PATH=/usr/bin",
		"MAPENGINE_WORKERS=2",
		"MAPENGINE_RESULT_CAPACITY=64",
		"MAPENGINE_SCRIPTS=a.js, b.js,,",
		"MAPENGINE_TRANSFORM=true",
		"MAPENGINE_LOG_LEVEL=warn",
		"MAPENGINE_UNKNOWN=1",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, over.Workers)
	assert.Equal(t, 64, over.ResultCapacity)
	assert.Equal(t, []string{"a.js", "b.js"}, over.Scripts)
	assert.True(t, over.Transform)
	assert.Equal(t, "warn", over.Logging.Level)

	_, err = EnvOverlay([]string{"MAPENGINE_WORKERS=many"})
	assert.ErrorContains(t, err, "MAPENGINE_WORKERS")
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"zero workers":     func(c *Config) { c.Workers = 0 },
		"too many workers": func(c *Config) { c.Workers = 65 },
		"capacity":         func(c *Config) { c.ResultCapacity = 0 },
		"backend":          func(c *Config) { c.Backend = "rhino" },
		"level":            func(c *Config) { c.Logging.Level = "loud" },
		"max conns":        func(c *Config) { c.Server.MaxConns = -1 },
		"empty script":     func(c *Config) { c.Scripts = []string{" "} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Defaults()
			mutate(&cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"workers": 8, "backend": "goja"}`), 0o644))

	cfg, err := Load(path, []string{"MAPENGINE_WORKERS=3"})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "goja", cfg.Backend)

	_, err = Load(path, []string{"MAPENGINE_WORKERS=100"})
	assert.Error(t, err)
}
