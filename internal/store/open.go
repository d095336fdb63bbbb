package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/frcm-service/internal/config"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// Backend is an opened result store together with the resources behind it.
type Backend struct {
	// Store is the configured backend wrapped in a circuit breaker.
	Store ResultStore
	Kind  string

	ping  func(context.Context) error
	close func() error
}

// Open builds the result store selected by cfg.StoreBackend. PostgreSQL
// schemas are migrated before the store is returned.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	b := &Backend{
		Kind:  cfg.StoreBackend,
		ping:  func(context.Context) error { return nil },
		close: func() error { return nil },
	}

	var rs ResultStore
	switch cfg.StoreBackend {
	case config.StoreMemory:
		rs = NewMemoryStore()
	case config.StoreFile:
		fs, err := NewFileStore(cfg.StoreDir)
		if err != nil {
			return nil, err
		}
		rs = fs
		logger.Info("file result store", "root", fs.Root())
	case config.StorePostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetConnMaxIdleTime(5 * time.Minute)

		ps := NewPostgresStore(db)
		if err := ps.Ping(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		if err := ps.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		rs = ps
		b.ping = ps.Ping
		b.close = db.Close
		logger.Info("postgres result store ready")
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	b.Store = NewBreakerStore(rs, BreakerSettings{
		Name:                "result-store-" + cfg.StoreBackend,
		ConsecutiveFailures: cfg.StoreBreakerFailures,
		Timeout:             cfg.StoreBreakerTimeout,
	}, logger)
	return b, nil
}

// CheckReadiness pings the backend when it has a remote dependency.
func (b *Backend) CheckReadiness(ctx context.Context) error {
	return b.ping(ctx)
}

// Close releases the backend's resources.
func (b *Backend) Close() error {
	return b.close()
}
