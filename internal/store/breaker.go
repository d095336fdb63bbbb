package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/frcm-service/internal/domain"
	"github.com/sony/gobreaker"
)

// BreakerSettings configures a BreakerStore.
type BreakerSettings struct {
	Name string
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
}

// BreakerStore short-circuits calls to a failing backend. While the breaker is
// open every call returns domain.ErrStoreUnavailable without touching the
// backend. Only unavailability counts as a failure: a miss, an integrity
// violation or a cancelled context leaves the breaker closed.
type BreakerStore struct {
	next ResultStore
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerStore wraps next with a circuit breaker.
func NewBreakerStore(next ResultStore, s BreakerSettings, logger *slog.Logger) *BreakerStore {
	if s.Name == "" {
		s.Name = "result-store"
	}
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 5
	}
	failures := s.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("store circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &BreakerStore{next: next, cb: cb}
}

// State returns the current breaker state.
func (b *BreakerStore) State() gobreaker.State { return b.cb.State() }

// outcome smuggles errors that must not trip the breaker past Execute.
type outcome struct {
	val any
	err error
}

func (b *BreakerStore) execute(op string, fn func() (any, error)) (any, error) {
	res, err := b.cb.Execute(func() (any, error) {
		v, err := fn()
		if err != nil && !errors.Is(err, domain.ErrStoreUnavailable) {
			return outcome{val: v, err: err}, nil
		}
		return outcome{val: v}, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
	}
	if err != nil {
		return nil, err
	}
	o := res.(outcome)
	return o.val, o.err
}

func (b *BreakerStore) Has(ctx context.Context, fp domain.Fingerprint) (bool, error) {
	v, err := b.execute("has", func() (any, error) { return b.next.Has(ctx, fp) })
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (b *BreakerStore) Get(ctx context.Context, fp domain.Fingerprint) (*CacheEntry, error) {
	v, err := b.execute("get", func() (any, error) { return b.next.Get(ctx, fp) })
	if err != nil {
		return nil, err
	}
	return v.(*CacheEntry), nil
}

func (b *BreakerStore) Put(ctx context.Context, fp domain.Fingerprint, weather domain.WeatherSeries, risk domain.RiskSeries) error {
	_, err := b.execute("put", func() (any, error) { return nil, b.next.Put(ctx, fp, weather, risk) })
	return err
}
