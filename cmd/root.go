// Package cmd provides the command-line interface for tileserve with
// configuration management supporting multiple configuration sources.
//
// Configuration System:
//
//	The CLI supports flexible configuration through multiple sources with clear precedence:
//	1. Command-line flags (--config, --port, etc.) - highest priority
//	2. TILESERVE_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (TILESERVE_SERVER_PORT, etc.)
//	4. Configuration files (.tileserve.yml) - lowest priority
//
// Environment Variables:
//
//	TILESERVE_CONFIG_FILE: Path to custom configuration file
//	TILESERVE_SERVER_PORT: Override server port
//	TILESERVE_SERVER_HOST: Override server host
//	TILESERVE_PERF_STATS_ENABLED: Enable the /perf_stats report
//	And more following the TILESERVE_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tileserve",
	Short: "A concurrent slippy-map tile server",
	Long: `Tileserve renders map tiles from a GeoJSON extract styled with a
MapCSS stylesheet and serves them over a minimal HTTP surface.

Tile requests use the standard slippy-map scheme:
  GET /{z}/{x}/{y}.png

Quick Start:
  tileserve serve --geodata extract.geojson --stylesheet default.mapcss
  tileserve version                Print the build version`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .tileserve.yml, can also use TILESERVE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig initializes the configuration system with support for
// multiple config sources.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag: Explicitly specified config file path
//  2. TILESERVE_CONFIG_FILE environment variable: Custom config file path
//  3. Default: .tileserve.yml in current directory
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("TILESERVE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tileserve")
	}

	// Enable automatic environment variable binding with the
	// TILESERVE_ prefix, e.g. TILESERVE_SERVER_PORT=8080.
	viper.SetEnvPrefix("TILESERVE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing or malformed config file degrades to defaults rather
	// than failing startup.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
