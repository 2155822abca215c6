package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/empire-ui/report-ocr-service/api"
	"github.com/empire-ui/report-ocr-service/internal/config"
	"github.com/empire-ui/report-ocr-service/internal/db"
	"github.com/empire-ui/report-ocr-service/internal/models"
	"github.com/empire-ui/report-ocr-service/internal/ocr"
	"github.com/empire-ui/report-ocr-service/internal/storage"
)

var cfgPath string

func main() {
	var rootCmd = &cobra.Command{
		Use:           "report-service",
		Short:         "Annual report OCR and analysis service",
		RunE:          runServer,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml",
		"Path to the YAML config file (optional; env vars override it)")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server (default)",
			Args:  cobra.NoArgs,
			RunE:  runServer,
		},
		newReportCmd(),
		newTokenCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cfg models.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.Log)
	ctx := logger.WithContext(cmd.Context())

	engine, err := ocr.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create OCR engine: %w", err)
	}

	var opts []api.Option

	store, err := db.Open(ctx, cfg.Store)
	switch {
	case err != nil:
		logger.Warn().Err(err).Str("driver", cfg.Store.Driver).Msg("report store not available, running without persistence")
	case store != nil:
		defer store.Close()
		opts = append(opts, api.WithStore(store))
		logger.Info().Str("driver", store.Name()).Msg("report store initialized")
	}

	archive, err := storage.New(ctx, cfg.Archive)
	switch {
	case err != nil:
		logger.Warn().Err(err).Str("endpoint", cfg.Archive.Endpoint).Msg("MinIO storage not available, pages will not be archived")
	case archive != nil:
		opts = append(opts, api.WithArchive(archive))
		logger.Info().Str("bucket", archive.Bucket()).Msg("MinIO storage initialized")
	}

	handler := api.NewHandler(cfg, engine, logger, opts...)

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	server := &http.Server{
		Addr:              addr,
		Handler:           handler.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Pipeline.RequestTimeout + 30*time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	logger.Info().
		Str("version", api.Version).
		Str("ocr_engine", engine.Name()).
		Str("ai_provider", cfg.AI.DefaultProvider).
		Bool("auth", cfg.Auth.JWTSecret != "").
		Msg("report service configured")
	for _, ep := range []string{
		"POST /api/ocr                     - Generate report",
		"POST /api/reports                 - Generate report",
		"GET  /api/reports                 - List stored reports",
		"GET  /api/reports/{id}            - Get stored report",
		"GET  /api/reports/{id}/download   - Download report (format=text|markdown|html|json)",
		"GET  /api/reports/{id}/review     - Cross-check a stored report",
		"GET  /health                      - Health check",
	} {
		logger.Info().Msgf("  %s", ep)
	}

	return serve(ctx, server, logger)
}

// serve runs the server until SIGINT/SIGTERM, then drains outstanding requests
func serve(ctx context.Context, server *http.Server, logger zerolog.Logger) error {
	serverErrors := make(chan error, 1)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("starting server")
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	case <-shutdown:
	}

	logger.Info().Msg("shutdown initiated")

	// Give outstanding requests a deadline for completion.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		return server.Close()
	}
	return nil
}
