package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vigilith/vlp/internal/api"
	"github.com/vigilith/vlp/internal/config"
	"github.com/vigilith/vlp/internal/schema"
	"github.com/vigilith/vlp/internal/service"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	if err := config.Load(); err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// A malformed schema is a fatal configuration error.
	var sv *schema.Validator
	var err error
	if path := config.SchemaPath(); path != "" {
		sv, err = schema.FromFile(path)
	} else {
		sv, err = schema.New()
	}
	if err != nil {
		logger.Fatal("failed to compile message schema", zap.Error(err))
	}

	validator := service.NewValidatorService(sv, logger)
	integrity := service.NewIntegrityService(config.KnownConstraints(), logger)
	registry := service.NewSessionRegistry(validator, logger)

	app := api.NewApp(validator, integrity, registry, logger)

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:    addr,
		Handler: app.Router,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
