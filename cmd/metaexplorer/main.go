package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"metaexplorer/internal/config"
	"metaexplorer/internal/database"
	"metaexplorer/internal/ngrok"
	"metaexplorer/internal/render"
	"metaexplorer/internal/router"
	"metaexplorer/internal/server"
	"metaexplorer/internal/view"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	configPath string
	port       string
)

// rootCmd serves the browser until interrupted.
var rootCmd = &cobra.Command{
	Use:   "metaexplorer",
	Short: "Browse a music metadata catalog over HTTP",
	Long: `metaexplorer serves read-only, hyperlinked pages for the artists, albums,
tracks and audio features stored in two sqlite files.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "./config.toml", "Path to the TOML configuration file")
	rootCmd.Flags().StringVarP(&port, "port", "p", "", "Listen port (overrides the config file)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	if err := applyPortFlag(cfg, cmd.Flags().Changed("port"), port); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}

	catalog, err := database.NewCatalog(cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Error("Error opening catalog")
		return err
	}
	defer catalog.Close()

	renderer, err := render.New()
	if err != nil {
		return fmt.Errorf("error parsing templates: %w", err)
	}

	views := view.NewAssembler(catalog, cfg.Server.IndexBatchSize)
	srv, err := server.New(cfg, catalog, router.New(views, logger), renderer, logger)
	if err != nil {
		logger.WithError(err).Error("Error creating server")
		return err
	}

	tunnel, err := ngrok.NewService(&cfg.Ngrok, logger)
	if err != nil {
		logger.WithError(err).Warn("Ngrok tunnel not available")
		tunnel = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithFields(logrus.Fields{
		"catalog":  cfg.Database.CatalogPath,
		"features": cfg.Database.FeaturesPath,
		"local":    "http://" + cfg.GetAddress(),
	}).Info("Metaexplorer starting")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	g.Go(func() error {
		// The tunnel is optional; losing it must not take the listener down.
		if err := tunnel.Run(ctx, "http://"+cfg.GetAddress()); err != nil {
			logger.WithError(err).Warn("Ngrok tunnel stopped")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Server stopped with error")
		return err
	}
	return nil
}

// applyPortFlag overrides the configured port with the --port flag. An
// invalid value is a startup error.
func applyPortFlag(cfg *config.Config, changed bool, value string) error {
	if !changed {
		return nil
	}
	if err := config.ValidatePort(value); err != nil {
		return fmt.Errorf("invalid --port: %w", err)
	}
	cfg.Server.Port = value
	return nil
}

// newLogger builds the process logger from the [logging] section.
func newLogger(cfg config.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	switch strings.ToLower(cfg.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	logger.SetLevel(level)

	return logger, nil
}
