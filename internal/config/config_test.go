package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadDefaults(t *testing.T) {
	resetViper(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost:8080", cfg.Server.Address())
	assert.Equal(t, "josm", cfg.Style.Type)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.PerfStats.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	resetViper(t)

	fileCfg := map[string]interface{}{
		"server": map[string]interface{}{
			"host": "0.0.0.0",
			"port": 9000,
		},
		"style": map[string]interface{}{
			"file":                 "styles/default.mapcss",
			"type":                 "mapsme",
			"font_size_multiplier": 1.5,
		},
		"data": map[string]interface{}{
			"geodata_file":    "data/region.geojson",
			"entity_ids_file": "data/ids.txt",
		},
		"perf_stats": map[string]interface{}{
			"enabled": true,
		},
	}

	data, err := yaml.Marshal(fileCfg)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), ".tileserve.yml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Address())
	assert.Equal(t, "styles/default.mapcss", cfg.Style.File)
	assert.Equal(t, "mapsme", cfg.Style.Type)
	assert.Equal(t, 1.5, cfg.Style.FontSizeMultiplier)
	assert.Equal(t, "data/region.geojson", cfg.Data.GeodataFile)
	assert.Equal(t, "data/ids.txt", cfg.Data.EntityIDsFile)
	assert.True(t, cfg.PerfStats.Enabled)
}

func TestLoadEnvOverride(t *testing.T) {
	resetViper(t)

	viper.SetEnvPrefix("TILESERVE")
	viper.AutomaticEnv()
	t.Setenv("TILESERVE_SERVER_PORT", "7070")
	viper.BindEnv("server.port", "TILESERVE_SERVER_PORT")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "port too low",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "port too high",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:    "host with whitespace",
			mutate:  func(c *Config) { c.Server.Host = "local host" },
			wantErr: "invalid server host",
		},
		{
			name:    "unknown style type",
			mutate:  func(c *Config) { c.Style.Type = "carto" },
			wantErr: "invalid style type",
		},
		{
			name:    "negative font multiplier",
			mutate:  func(c *Config) { c.Style.FontSizeMultiplier = -1 },
			wantErr: "invalid font size multiplier",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.LogLevel = "loud" },
			wantErr: "invalid log level",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.LogFormat = "xml" },
			wantErr: "invalid log format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			applyDefaults(cfg)
			tt.mutate(cfg)

			err := validateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
