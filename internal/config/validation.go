package config

import (
	"fmt"
	"strings"
)

// validStyleTypes are the stylesheet dialects the styler understands.
var validStyleTypes = map[string]bool{
	"josm":   true,
	"mapsme": true,
}

// validateConfig checks constraints that would otherwise surface as
// confusing failures deep inside startup.
func validateConfig(config *Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", config.Server.Port)
	}

	if strings.ContainsAny(config.Server.Host, " \t\n\r") {
		return fmt.Errorf("invalid server host: %q", config.Server.Host)
	}

	if !validStyleTypes[config.Style.Type] {
		return fmt.Errorf("invalid style type: %q (must be josm or mapsme)", config.Style.Type)
	}

	if config.Style.FontSizeMultiplier < 0 {
		return fmt.Errorf("invalid font size multiplier: %v (must be non-negative)", config.Style.FontSizeMultiplier)
	}

	switch config.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", config.LogLevel)
	}

	switch config.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log format: %q", config.LogFormat)
	}

	return nil
}
