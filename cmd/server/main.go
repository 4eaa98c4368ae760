package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jameskimau/inbox-rules/internal/config"
	"github.com/jameskimau/inbox-rules/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file (environment variables override it)")
	flag.Parse()

	cfg, err := config.Load(*configPath, os.Getenv)
	if err != nil {
		logger.Fatal("failed to load configuration", "error", err)
	}

	ctx := context.Background()
	if err := logger.Setup(ctx, logger.Config{
		Level:           cfg.Log.Level,
		ErrorSampleRate: cfg.Log.ErrorSampleRate,
		OTELEnabled:     cfg.Log.OTELEnabled,
		OTELServiceName: cfg.Log.OTELServiceName,
	}); err != nil {
		logger.Warn("logger setup", "error", err)
	}

	// Missing secrets stop the process before anything listens
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}

	server, closeStore, err := NewServerFromConfig(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	defer closeStore()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
		IdleTimeout:  cfg.Server.IdleTimeout.Duration,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port, "store", cfg.Database.Store)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout.Duration)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(shutdownCtx); err != nil {
		logger.Error("logger shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
