package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/tileserve/internal/config"
	"github.com/conneroisu/tileserve/internal/draw"
	"github.com/conneroisu/tileserve/internal/geodata"
	"github.com/conneroisu/tileserve/internal/logging"
	"github.com/conneroisu/tileserve/internal/mapcss"
	"github.com/conneroisu/tileserve/internal/perf"
	"github.com/conneroisu/tileserve/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tile server",
	Long: `Start the tile server.

Parses the stylesheet, loads the geodata extract, then serves tiles
until interrupted.

Examples:
  tileserve serve --geodata city.geojson --stylesheet styles/default.mapcss
  tileserve serve -g city.geojson -s default.mapcss --perf-stats
  tileserve serve -g city.geojson -s default.mapcss --entity-ids ids.txt`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().StringP("geodata", "g", "", "Geodata file (GeoJSON extract)")
	serveCmd.Flags().StringP("stylesheet", "s", "", "Stylesheet file (MapCSS)")
	serveCmd.Flags().String("stylesheet-type", "josm", "Stylesheet dialect (josm, mapsme)")
	serveCmd.Flags().Float64("font-size-multiplier", 0, "Scale factor applied to label font sizes")
	serveCmd.Flags().String("entity-ids", "", "Allow-list file with one entity id per line")
	serveCmd.Flags().Bool("perf-stats", false, "Collect per-tile timings, reported at /perf_stats")

	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("data.geodata_file", serveCmd.Flags().Lookup("geodata"))
	viper.BindPFlag("style.file", serveCmd.Flags().Lookup("stylesheet"))
	viper.BindPFlag("style.type", serveCmd.Flags().Lookup("stylesheet-type"))
	viper.BindPFlag("style.font_size_multiplier", serveCmd.Flags().Lookup("font-size-multiplier"))
	viper.BindPFlag("data.entity_ids_file", serveCmd.Flags().Lookup("entity-ids"))
	viper.BindPFlag("perf_stats.enabled", serveCmd.Flags().Lookup("perf-stats"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.Style.File == "" {
		return fmt.Errorf("a stylesheet file is required (--stylesheet)")
	}
	if cfg.Data.GeodataFile == "" {
		return fmt.Errorf("a geodata file is required (--geodata)")
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Output: os.Stderr,
	})
	ctx := context.Background()

	basePath, fileName, err := mapcss.SplitStylesheetPath(cfg.Style.File)
	if err != nil {
		return err
	}

	rules, err := mapcss.ParseFile(basePath, fileName)
	if err != nil {
		return fmt.Errorf("failed to parse the stylesheet file: %w", err)
	}

	styleType, err := mapcss.ParseStyleType(cfg.Style.Type)
	if err != nil {
		return err
	}
	styler := mapcss.NewStyler(rules, styleType, cfg.Style.FontSizeMultiplier)

	reader, err := geodata.Load(cfg.Data.GeodataFile)
	if err != nil {
		return fmt.Errorf("failed to load the geodata file: %w", err)
	}
	logger.Info(ctx, "geodata loaded",
		"file", cfg.Data.GeodataFile, "entities", reader.Len())

	drawer, err := draw.New(basePath)
	if err != nil {
		return fmt.Errorf("failed to set up the drawer: %w", err)
	}

	var allowedIDs geodata.IDSet
	if cfg.Data.EntityIDsFile != "" {
		allowedIDs, err = geodata.ParseIDFile(cfg.Data.EntityIDsFile)
		if err != nil {
			return fmt.Errorf("failed to read the entity allow-list: %w", err)
		}
		logger.Info(ctx, "entity allow-list loaded",
			"file", cfg.Data.EntityIDsFile, "ids", len(allowedIDs))
	}

	srv := server.New(styler, reader, drawer, allowedIDs, server.Options{
		Stats:  perf.New(cfg.PerfStats.Enabled),
		Logger: logger,
	})

	// Default behavior is run-forever; an interrupt closes the
	// listener so Serve can drain and return.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info(ctx, "shutting down")
		if err := srv.Close(); err != nil {
			logger.Error(ctx, err, "error closing the listener")
		}
	}()

	fmt.Printf("Starting tileserve at http://%s\n", cfg.Server.Address())
	if cfg.PerfStats.Enabled {
		fmt.Printf("Performance report: http://%s/perf_stats\n", cfg.Server.Address())
	}

	if err := srv.ListenAndServe(cfg.Server.Address()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
