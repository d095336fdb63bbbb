package pipeline_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/frcm-service/internal/domain"
	"github.com/couchcryptid/frcm-service/internal/firerisk"
	"github.com/couchcryptid/frcm-service/internal/observability"
	"github.com/couchcryptid/frcm-service/internal/pipeline"
	"github.com/couchcryptid/frcm-service/internal/service"
	"github.com/couchcryptid/frcm-service/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExtractor struct {
	batches [][]domain.RawEvent
	index   atomic.Int64
	err     error
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	i := int(m.index.Add(1) - 1)
	if i >= len(m.batches) {
		// block until context cancelled to simulate waiting for messages
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.batches[i], nil
}

type mockTransformer struct {
	err error
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.Prediction, error) {
	if m.err != nil {
		return domain.Prediction{}, m.err
	}
	return domain.Prediction{Location: string(raw.Key)}, nil
}

type mockLoader struct {
	mu     sync.Mutex
	loaded []domain.Prediction
	err    error
}

func (m *mockLoader) LoadBatch(_ context.Context, predictions []domain.Prediction) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = append(m.loaded, predictions...)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runFor(t *testing.T, p *pipeline.Pipeline, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	require.NoError(t, p.Run(ctx))
}

// --- pipeline loop ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	ext := &mockExtractor{batches: [][]domain.RawEvent{{
		{Key: []byte("bergen")},
		{Key: []byte("oslo")},
	}}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, &mockTransformer{}, ldr, quietLogger(), metrics, 10)
	runFor(t, p, 300*time.Millisecond)

	require.Len(t, ldr.loaded, 2)
	assert.Equal(t, "bergen", ldr.loaded[0].Location)
	assert.True(t, p.Ready())
	require.NoError(t, p.CheckReadiness(context.Background()))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.MessagesConsumed))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.MessagesProduced))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.PipelineRunning))
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, ldr, quietLogger(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_TransformErrorCommitsAndSkips(t *testing.T) {
	var commits atomic.Int32
	raw := domain.RawEvent{Key: []byte("bad"), Commit: func(context.Context) error {
		commits.Add(1)
		return nil
	}}

	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(&mockExtractor{batches: [][]domain.RawEvent{{raw}}},
		&mockTransformer{err: errors.New("bad data")}, ldr, quietLogger(), metrics, 10)
	runFor(t, p, 300*time.Millisecond)

	assert.Empty(t, ldr.loaded)
	assert.False(t, p.Ready())
	assert.Equal(t, int32(1), commits.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TransformErrors.WithLabelValues(observability.RejectOther)))
}

func TestPipeline_Run_RejectionReasons(t *testing.T) {
	fp := domain.Fingerprint{1}
	tests := []struct {
		name   string
		err    error
		reason string
		level  string
	}{
		{"malformed", fmt.Errorf("%w: unexpected end of JSON input", pipeline.ErrMalformedRequest), observability.RejectInvalid, "WARN"},
		{"validation", &domain.ValidationError{Index: 1, Field: "humidity", Reason: "missing"}, observability.RejectInvalid, "WARN"},
		{"integrity", fmt.Errorf("get: %w", &domain.IntegrityError{Fingerprint: fp, Reason: "stored weather hashes differently"}), observability.RejectIntegrity, "ERROR"},
		{"model", &domain.NumericDomainError{Index: 0, Quantity: "ttf", Value: math.Inf(1)}, observability.RejectModel, "ERROR"},
		{"store", fmt.Errorf("put: %w", domain.ErrStoreUnavailable), observability.RejectStore, "ERROR"},
		{"other", errors.New("boom"), observability.RejectOther, "WARN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var commits atomic.Int32
			raw := domain.RawEvent{Key: []byte(tt.name), Commit: func(context.Context) error {
				commits.Add(1)
				return nil
			}}

			var logs bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&logs, nil))
			metrics := observability.NewMetricsForTesting()
			p := pipeline.New(&mockExtractor{batches: [][]domain.RawEvent{{raw}}},
				&mockTransformer{err: tt.err}, &mockLoader{}, logger, metrics, 10)
			runFor(t, p, 300*time.Millisecond)

			assert.Equal(t, int32(1), commits.Load())
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TransformErrors.WithLabelValues(tt.reason)))
			assert.Contains(t, logs.String(), "level="+tt.level)
			assert.Contains(t, logs.String(), "reason="+tt.reason)
		})
	}
}

func TestPipeline_Run_CommitsAfterLoad(t *testing.T) {
	var committed atomic.Bool
	raw := domain.RawEvent{Key: []byte("bergen"), Topic: "weather-series", Commit: func(context.Context) error {
		committed.Store(true)
		return nil
	}}

	p := pipeline.New(&mockExtractor{batches: [][]domain.RawEvent{{raw}}},
		&mockTransformer{}, &mockLoader{}, quietLogger(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, 300*time.Millisecond)

	assert.True(t, committed.Load())
}

func TestPipeline_Run_LoadFailureDoesNotCommit(t *testing.T) {
	var committed atomic.Bool
	raw := domain.RawEvent{Key: []byte("bergen"), Commit: func(context.Context) error {
		committed.Store(true)
		return nil
	}}

	p := pipeline.New(&mockExtractor{batches: [][]domain.RawEvent{{raw}}},
		&mockTransformer{}, &mockLoader{err: errors.New("broker down")}, quietLogger(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, 300*time.Millisecond)

	assert.False(t, committed.Load())
	assert.False(t, p.Ready())
}

func TestPipeline_Run_ExtractErrorBacksOff(t *testing.T) {
	ext := &mockExtractor{err: errors.New("connection refused")}
	p := pipeline.New(ext, &mockTransformer{}, &mockLoader{}, quietLogger(), observability.NewMetricsForTesting(), 10)

	start := time.Now()
	runFor(t, p, 100*time.Millisecond)
	assert.Less(t, time.Since(start), time.Second)
}

// --- transformer ---

var t0 = time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)

func newRiskTransformer(t *testing.T) (*pipeline.RiskTransformer, *store.MemoryStore) {
	t.Helper()
	rs := store.NewMemoryStore()
	svc := service.New(firerisk.NewDefault(), rs, quietLogger(), observability.NewMetricsForTesting())
	return pipeline.NewTransformer(svc, quietLogger()), rs
}

func requestEvent(t *testing.T, req any) domain.RawEvent {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	return domain.RawEvent{Key: []byte("k"), Value: data}
}

func TestRiskTransformer_Transform(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Date(2026, 1, 10, 6, 0, 0, 0, time.UTC))
	domain.SetClock(clk)
	t.Cleanup(func() { domain.SetClock(nil) })

	tfm, rs := newRiskTransformer(t)
	raw := requestEvent(t, map[string]any{
		"location": "bergen",
		"observations": []map[string]any{
			{"timestamp": t0.Format(time.RFC3339), "temperature": 5.5, "humidity": 85, "wind_speed": 3.2},
			{"timestamp": t0.Add(time.Hour).Format(time.RFC3339), "temperature": 5.2, "humidity": 87, "wind_speed": 3.0},
		},
	})

	out, err := tfm.Transform(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, "bergen", out.Location)
	require.Len(t, out.FireRisks, 2)
	assert.InDelta(t, 6.07, out.FireRisks[0].TTF, 1e-3)
	assert.Equal(t, domain.DangerVeryHigh, out.DangerLevel)
	assert.Equal(t, clk.Now(), out.ProcessedAt)
	assert.False(t, out.Fingerprint.IsZero())
	assert.Equal(t, 1, rs.Len())

	again, err := tfm.Transform(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, out.Fingerprint, again.Fingerprint)
	assert.True(t, out.FireRisks.Equal(again.FireRisks))
}

func TestRiskTransformer_Transform_Invalid(t *testing.T) {
	tfm, rs := newRiskTransformer(t)

	tests := map[string]domain.RawEvent{
		"not json": {Value: []byte("not json")},
		"empty":    requestEvent(t, map[string]any{"observations": []any{}}),
		"missing humidity": requestEvent(t, map[string]any{"observations": []map[string]any{
			{"timestamp": t0.Format(time.RFC3339), "temperature": 5.5, "wind_speed": 3.2},
		}}),
		"out of order": requestEvent(t, map[string]any{"observations": []map[string]any{
			{"timestamp": t0.Add(time.Hour).Format(time.RFC3339), "temperature": 5, "humidity": 80, "wind_speed": 1},
			{"timestamp": t0.Format(time.RFC3339), "temperature": 5, "humidity": 80, "wind_speed": 1},
		}}),
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := tfm.Transform(context.Background(), raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, pipeline.ErrMalformedRequest) || domain.IsValidation(err), err)
		})
	}
	assert.Equal(t, 0, rs.Len())
}
