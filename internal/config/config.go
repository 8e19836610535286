// Package config provides configuration management for tileserve using
// Viper for flexible configuration loading from files, environment
// variables, and command-line flags.
//
// The configuration system supports YAML files and environment variable
// overrides with the TILESERVE_ prefix. It manages the listen address,
// the stylesheet and geodata inputs, the optional entity allow-list,
// and performance instrumentation.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Style     StyleConfig     `yaml:"style"`
	Data      DataConfig      `yaml:"data"`
	PerfStats PerfStatsConfig `yaml:"perf_stats"`
	LogLevel  string          `yaml:"log-level"`
	LogFormat string          `yaml:"log-format"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Address returns the bind address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type StyleConfig struct {
	File               string  `yaml:"file"`
	Type               string  `yaml:"type"`
	FontSizeMultiplier float64 `yaml:"font_size_multiplier"`
}

type DataConfig struct {
	GeodataFile   string `yaml:"geodata_file"`
	EntityIDsFile string `yaml:"entity_ids_file"`
}

type PerfStatsConfig struct {
	Enabled bool `yaml:"enabled"`
}

func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Handle nested values set via viper (workaround for viper
	// unmarshal not honoring yaml tags).
	if viper.IsSet("server.host") {
		config.Server.Host = viper.GetString("server.host")
	}
	if viper.IsSet("server.port") {
		config.Server.Port = viper.GetInt("server.port")
	}
	if viper.IsSet("style.file") {
		config.Style.File = viper.GetString("style.file")
	}
	if viper.IsSet("style.type") {
		config.Style.Type = viper.GetString("style.type")
	}
	if viper.IsSet("style.font_size_multiplier") {
		config.Style.FontSizeMultiplier = viper.GetFloat64("style.font_size_multiplier")
	}
	if viper.IsSet("data.geodata_file") {
		config.Data.GeodataFile = viper.GetString("data.geodata_file")
	}
	if viper.IsSet("data.entity_ids_file") {
		config.Data.EntityIDsFile = viper.GetString("data.entity_ids_file")
	}
	if viper.IsSet("perf_stats.enabled") {
		config.PerfStats.Enabled = viper.GetBool("perf_stats.enabled")
	}
	if viper.IsSet("log-level") {
		config.LogLevel = viper.GetString("log-level")
	}
	if viper.IsSet("log-format") {
		config.LogFormat = viper.GetString("log-format")
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Style.Type == "" {
		config.Style.Type = "josm"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "text"
	}
}
