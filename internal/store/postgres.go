package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/frcm-service/internal/domain"
	"github.com/pressly/goose/v3"
)

// MigrationsDir is the directory of Migrations holding the goose SQL files.
const MigrationsDir = "migrations"

// Migrations holds the schema for PostgresStore.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// PostgresStore persists entries in the risk_cache table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed result store. The caller owns db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies pending schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	goose.SetBaseFS(Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, MigrationsDir); err != nil {
		return fmt.Errorf("migrate risk_cache: %w", err)
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return pgError(ctx, "postgres store: ping", err)
	}
	return nil
}

func (s *PostgresStore) Has(ctx context.Context, fp domain.Fingerprint) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM risk_cache WHERE fingerprint = $1)`, fp.String(),
	).Scan(&exists)
	if err != nil {
		return false, pgError(ctx, "postgres store: has", err)
	}
	return exists, nil
}

func (s *PostgresStore) Get(ctx context.Context, fp domain.Fingerprint) (*CacheEntry, error) {
	var (
		stored      string
		weatherJSON []byte
		riskJSON    []byte
		computedAt  time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT fingerprint, weather_json, risk_json, computed_at
		FROM risk_cache
		WHERE fingerprint = $1
	`, fp.String()).Scan(&stored, &weatherJSON, &riskJSON, &computedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, pgError(ctx, "postgres store: get", err)
	}

	entry := CacheEntry{ComputedAt: computedAt.UTC()}
	if err := entry.Fingerprint.UnmarshalText([]byte(stored)); err != nil {
		return nil, &domain.IntegrityError{Fingerprint: fp, Reason: "stored fingerprint: " + err.Error()}
	}
	if err := json.Unmarshal(weatherJSON, &entry.Weather); err != nil {
		return nil, &domain.IntegrityError{Fingerprint: fp, Reason: "undecodable weather series: " + err.Error()}
	}
	if err := json.Unmarshal(riskJSON, &entry.Risk); err != nil {
		return nil, &domain.IntegrityError{Fingerprint: fp, Reason: "undecodable risk series: " + err.Error()}
	}
	if err := entry.verify(fp); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *PostgresStore) Put(ctx context.Context, fp domain.Fingerprint, weather domain.WeatherSeries, risk domain.RiskSeries) error {
	entry, err := newEntry(fp, weather, risk)
	if err != nil {
		return err
	}
	weatherJSON, err := json.Marshal(entry.Weather)
	if err != nil {
		return fmt.Errorf("postgres store: encode weather series: %w", err)
	}
	riskJSON, err := json.Marshal(entry.Risk)
	if err != nil {
		return fmt.Errorf("postgres store: encode risk series: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO risk_cache (fingerprint, start_time, end_time, observations, weather_json, risk_json, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (fingerprint) DO NOTHING
	`,
		fp.String(),
		weather.Start(),
		weather.End(),
		weather.Len(),
		weatherJSON,
		riskJSON,
		entry.ComputedAt,
	)
	if err != nil {
		return pgError(ctx, "postgres store: insert", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return nil
	}

	// Someone stored this fingerprint first; the put is only valid if it agrees.
	existing, err := s.Get(ctx, fp)
	if err != nil {
		return err
	}
	if !existing.sameContent(risk) {
		return conflict(fp)
	}
	return nil
}

// pgError reports a cancelled caller as such rather than as an outage.
func pgError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return unavailable(op, err)
}
