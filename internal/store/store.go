// Package store persists computed risk series keyed by the fingerprint of the
// weather series they were computed from.
//
// Entries are never evicted or replaced. Every backend verifies on read that the
// stored weather series still hashes to its key and that the risk series is
// aligned with it, and refuses a write that would change an existing entry.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/frcm-service/internal/domain"
)

// ErrNotFound is returned by Get when no entry exists for a fingerprint.
var ErrNotFound = errors.New("cache entry not found")

// ResultStore maps fingerprints to cache entries.
type ResultStore interface {
	Has(ctx context.Context, fp domain.Fingerprint) (bool, error)
	Get(ctx context.Context, fp domain.Fingerprint) (*CacheEntry, error)
	Put(ctx context.Context, fp domain.Fingerprint, weather domain.WeatherSeries, risk domain.RiskSeries) error
}

// CacheEntry is one stored computation.
type CacheEntry struct {
	Fingerprint domain.Fingerprint   `json:"fingerprint"`
	Weather     domain.WeatherSeries `json:"weather"`
	Risk        domain.RiskSeries    `json:"firerisks"`
	ComputedAt  time.Time            `json:"computed_at"`
}

// newEntry checks the arguments of a Put and builds the entry to store.
func newEntry(fp domain.Fingerprint, weather domain.WeatherSeries, risk domain.RiskSeries) (*CacheEntry, error) {
	if weather.Len() == 0 {
		return nil, &domain.IntegrityError{Fingerprint: fp, Reason: "empty weather series"}
	}
	if got := domain.FingerprintOf(weather); got != fp {
		return nil, &domain.IntegrityError{Fingerprint: fp, Reason: "weather series hashes to " + got.Short()}
	}
	if !risk.AlignedWith(weather) {
		return nil, &domain.IntegrityError{Fingerprint: fp, Reason: "risk series is not aligned with weather series"}
	}
	return &CacheEntry{
		Fingerprint: fp,
		Weather:     weather,
		Risk:        append(domain.RiskSeries(nil), risk...),
		ComputedAt:  domain.Now(),
	}, nil
}

// verify checks a loaded entry against the key it was stored under.
func (e *CacheEntry) verify(fp domain.Fingerprint) error {
	if e.Fingerprint != fp {
		return &domain.IntegrityError{Fingerprint: fp, Reason: "entry recorded under " + e.Fingerprint.Short()}
	}
	if e.Weather.Len() == 0 {
		return &domain.IntegrityError{Fingerprint: fp, Reason: "stored weather series is empty"}
	}
	if got := domain.FingerprintOf(e.Weather); got != fp {
		return &domain.IntegrityError{Fingerprint: fp, Reason: "stored weather series hashes to " + got.Short()}
	}
	if !e.Risk.AlignedWith(e.Weather) {
		return &domain.IntegrityError{Fingerprint: fp, Reason: "stored risk series is not aligned"}
	}
	return nil
}

// sameContent reports whether a Put of risk would be a no-op against e. The
// weather series is implied equal by a matching fingerprint.
func (e *CacheEntry) sameContent(risk domain.RiskSeries) bool {
	return e.Risk.Equal(risk)
}

func conflict(fp domain.Fingerprint) error {
	return &domain.IntegrityError{Fingerprint: fp, Reason: "different risk series already stored"}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

func clone(e *CacheEntry) *CacheEntry {
	c := *e
	c.Risk = append(domain.RiskSeries(nil), e.Risk...)
	return &c
}
