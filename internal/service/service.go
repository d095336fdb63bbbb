// Package service is the entry point collaborators use to turn weather series
// into risk series. It validates input, fingerprints it, consults the result
// store, and runs the model on a miss.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/frcm-service/internal/domain"
	"github.com/couchcryptid/frcm-service/internal/firerisk"
	"github.com/couchcryptid/frcm-service/internal/observability"
	"github.com/couchcryptid/frcm-service/internal/store"
	"golang.org/x/sync/singleflight"
)

// Result is a risk series together with where it came from.
type Result struct {
	Fingerprint domain.Fingerprint
	Risk        domain.RiskSeries
	FromCache   bool
}

// Service combines the risk model with a result store.
type Service struct {
	model   *firerisk.Model
	store   store.ResultStore
	flights singleflight.Group
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Service. The store is required; use store.NewMemoryStore for a
// process-local cache.
func New(model *firerisk.Model, rs store.ResultStore, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		model:   model,
		store:   rs,
		logger:  logger,
		metrics: metrics,
	}
}

// Validate builds a WeatherSeries from raw records.
func (s *Service) Validate(raw []domain.RawObservation) (domain.WeatherSeries, error) {
	return domain.NewWeatherSeries(raw)
}

// Fingerprint returns the content address of a series.
func (s *Service) Fingerprint(series domain.WeatherSeries) domain.Fingerprint {
	return domain.FingerprintOf(series)
}

// Compute runs the model without touching the store.
func (s *Service) Compute(series domain.WeatherSeries) (domain.RiskSeries, error) {
	if series.Len() == 0 {
		return nil, &domain.ValidationError{Index: -1, Reason: "series is empty"}
	}
	start := time.Now()
	risk, err := s.model.Compute(series)
	if err != nil {
		s.logger.Error("risk model failed", "error", err, "observations", series.Len())
		return nil, err
	}
	s.metrics.Computations.Inc()
	s.metrics.ComputeDuration.Observe(time.Since(start).Seconds())
	return risk, nil
}

// Cached reports whether a result for series is already stored.
func (s *Service) Cached(ctx context.Context, series domain.WeatherSeries) (bool, error) {
	return s.store.Has(ctx, domain.FingerprintOf(series))
}

// Lookup returns the stored entry for fp, or store.ErrNotFound.
func (s *Service) Lookup(ctx context.Context, fp domain.Fingerprint) (*store.CacheEntry, error) {
	return s.store.Get(ctx, fp)
}

// ComputeWithCache returns the stored risk series for series if one exists and
// otherwise computes and stores it. The result is identical either way.
func (s *Service) ComputeWithCache(ctx context.Context, series domain.WeatherSeries) (domain.RiskSeries, error) {
	res, err := s.Evaluate(ctx, series)
	if err != nil {
		return nil, err
	}
	return res.Risk, nil
}

// Evaluate is ComputeWithCache that also reports the fingerprint and whether
// the series was served from the store.
//
// Concurrent calls for the same fingerprint share one store lookup and at most
// one computation. A caller whose ctx ends stops waiting; the shared work
// carries on for the others.
func (s *Service) Evaluate(ctx context.Context, series domain.WeatherSeries) (Result, error) {
	if series.Len() == 0 {
		return Result{}, &domain.ValidationError{Index: -1, Reason: "series is empty"}
	}
	fp := domain.FingerprintOf(series)

	flightCtx := context.WithoutCancel(ctx)
	ch := s.flights.DoChan(fp.String(), func() (any, error) {
		return s.resolve(flightCtx, fp, series)
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Result{}, r.Err
		}
		res := r.Val.(Result)
		res.Risk = append(domain.RiskSeries(nil), res.Risk...)
		return res, nil
	}
}

func (s *Service) resolve(ctx context.Context, fp domain.Fingerprint, series domain.WeatherSeries) (Result, error) {
	log := s.logger.With("fingerprint", fp.Short())

	entry, err := s.store.Get(ctx, fp)
	switch {
	case err == nil:
		s.metrics.CacheLookups.WithLabelValues(observability.CacheHit).Inc()
		log.Debug("risk series served from cache", "observations", series.Len())
		return Result{Fingerprint: fp, Risk: entry.Risk, FromCache: true}, nil
	case domain.IsIntegrity(err):
		s.metrics.IntegrityErrors.Inc()
		log.Error("cache entry failed integrity check", "error", err)
		return Result{}, err
	case errors.Is(err, store.ErrNotFound):
		s.metrics.CacheLookups.WithLabelValues(observability.CacheMiss).Inc()
	default:
		s.metrics.CacheLookups.WithLabelValues(observability.CacheError).Inc()
		s.metrics.StoreErrors.WithLabelValues("get").Inc()
		log.Warn("result store read failed, computing instead", "error", err)
	}

	risk, err := s.Compute(series)
	if err != nil {
		return Result{}, err
	}

	if err := s.store.Put(ctx, fp, series, risk); err != nil {
		if domain.IsIntegrity(err) {
			s.metrics.IntegrityErrors.Inc()
			log.Error("result store rejected computed series", "error", err)
			return Result{}, err
		}
		s.metrics.StoreErrors.WithLabelValues("put").Inc()
		log.Warn("result store write failed, returning uncached result", "error", err)
	}

	log.Debug("risk series computed", "observations", series.Len())
	return Result{Fingerprint: fp, Risk: risk}, nil
}
