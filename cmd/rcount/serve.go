package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/rcount/internal/api"
	"github.com/MikeSquared-Agency/rcount/internal/config"
	"github.com/MikeSquared-Agency/rcount/internal/events"
	"github.com/MikeSquared-Agency/rcount/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and metrics servers",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database (optional)
	db, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	// Events (optional)
	var eventsClient events.Client
	if cfg.Events.Enabled {
		nc, err := events.NewNATSClient(ctx, cfg.Events.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to nats, running without events", "error", err)
		} else {
			eventsClient = nc
			defer nc.Close()
			logger.Info("connected to nats", "url", cfg.Events.URL)
		}
	}
	pub := events.NewPublisher(eventsClient, logger)

	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(db, pub, cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           api.NewMetricsRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()
	if cfg.Server.MetricsPort != 0 {
		go func() {
			logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		logger.Error("server failed", "error", serveErr)
	}

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
	return serveErr
}

// openStore returns nil with no error when the database is disabled.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (store.Store, error) {
	switch cfg.Driver {
	case "postgres":
		pg, err := store.NewPostgresStore(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		logger.Info("connected to database", "driver", cfg.Driver)
		return pg, nil
	case "sqlite":
		lite, err := store.NewSQLiteStore(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		logger.Info("opened database", "driver", cfg.Driver, "path", cfg.Path)
		return lite, nil
	}
	logger.Warn("no database configured, saved systems are disabled")
	return nil, nil
}
