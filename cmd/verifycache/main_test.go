package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/frcm-service/internal/domain"
	"github.com/couchcryptid/frcm-service/internal/firerisk"
	"github.com/couchcryptid/frcm-service/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStore(t *testing.T, root string, temps ...float64) domain.Fingerprint {
	t.Helper()
	t0 := time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)
	obs := make([]domain.WeatherObservation, len(temps))
	for i, temp := range temps {
		obs[i] = domain.WeatherObservation{Timestamp: t0.Add(time.Duration(i) * time.Hour), Temperature: temp, Humidity: 85, WindSpeed: 3}
	}
	ws, err := domain.NewWeatherSeriesFromObservations(obs)
	require.NoError(t, err)

	risk, err := firerisk.NewDefault().Compute(ws)
	require.NoError(t, err)

	rs, err := store.NewFileStore(root)
	require.NoError(t, err)
	fp := domain.FingerprintOf(ws)
	require.NoError(t, rs.Put(context.Background(), fp, ws, risk))
	return fp
}

func TestRun_Clean(t *testing.T) {
	root := t.TempDir()
	seedStore(t, root, 5.5, 5.2)
	seedStore(t, root, 10, 12, 14)

	var out bytes.Buffer
	assert.Equal(t, 0, run(context.Background(), root, &out), out.String())
	assert.Contains(t, out.String(), "Entries: 2 found, 2 intact")
	assert.Contains(t, out.String(), "All verifications passed.")
}

func TestRun_DetectsProblems(t *testing.T) {
	root := t.TempDir()
	good := seedStore(t, root, 5.5, 5.2)
	bad := seedStore(t, root, 10, 12)

	badPath := filepath.Join(root, bad.String()[:2], bad.String()+".json")
	require.NoError(t, os.WriteFile(badPath, []byte(`{"fingerprint":"`+bad.String()+`"`), 0o600))

	shard := filepath.Join(root, good.String()[:2])
	require.NoError(t, os.WriteFile(filepath.Join(shard, ".tmp-123"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o600))

	var out bytes.Buffer
	assert.Equal(t, 1, run(context.Background(), root, &out))

	report := out.String()
	assert.Contains(t, report, "leftover temporary file")
	assert.Contains(t, report, "not a content-addressed entry")
	assert.Contains(t, report, bad.Short())
	assert.Contains(t, report, "Entries: 2 found, 1 intact")
	assert.Contains(t, report, "Verification FAILED.")
}

func TestRun_MissingRoot(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, 1, run(context.Background(), filepath.Join(t.TempDir(), "missing"), &out))
	assert.Contains(t, out.String(), "FATAL")
}
