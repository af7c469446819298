package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/reflex/internal/audit"
	"github.com/fentz26/reflex/internal/logging"
	"github.com/fentz26/reflex/internal/scoreboard"
	"github.com/fentz26/reflex/internal/store"
)

var (
	listenAddr string
	dbPath     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scoring service",
	Long:  `Starts the HTTP scoring service that registers players and keeps their best average.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (default from config)")
	serveCmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := logging.Setup(cfg.LogLevel, os.Stderr)
	if err != nil {
		return err
	}
	logger.Info().Str("listen", cfg.ListenAddr).Str("db", cfg.DBPath).Msg("opening score database")

	// Initialize store
	s, err := store.New(cfg.DBPath)
	if err != nil {
		return err
	}

	// Create service and server
	service := scoreboard.NewService(s, audit.NewWriter(s), logger.With().Str("component", "scoreboard").Logger())
	server := scoreboard.NewServer(service, cfg.ListenAddr, cfg.AllowedOrigins, logger.With().Str("component", "http").Logger())

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	go func() {
		err := server.Start()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("server error")
			s.Close()
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := s.Close(); err != nil {
		logger.Error().Err(err).Msg("database close error")
	}

	logger.Info().Msg("shutdown complete")
	return nil
}
