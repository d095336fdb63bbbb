package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/frcm-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/frcm-service/internal/adapter/kafka"
	"github.com/couchcryptid/frcm-service/internal/config"
	"github.com/couchcryptid/frcm-service/internal/firerisk"
	"github.com/couchcryptid/frcm-service/internal/observability"
	"github.com/couchcryptid/frcm-service/internal/pipeline"
	"github.com/couchcryptid/frcm-service/internal/service"
	"github.com/couchcryptid/frcm-service/internal/store"
)

// readiness is ready once the pipeline has published and the store answers.
type readiness struct {
	pipeline *pipeline.Pipeline
	store    *store.Backend
}

func (r readiness) CheckReadiness(ctx context.Context) error {
	if err := r.store.CheckReadiness(ctx); err != nil {
		return err
	}
	return r.pipeline.CheckReadiness(ctx)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open result store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}

	model := firerisk.NewDefault()
	svc := service.New(model, backend.Store, logger, metrics)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(svc, logger)

	p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, readiness{pipeline: p, store: backend}, svc, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start prediction pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
	if err := backend.Close(); err != nil {
		logger.Error("result store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
