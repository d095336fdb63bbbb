package csvio

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/frcm-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadObservations(t *testing.T) {
	in := `timestamp,temperature,humidity,wind_speed
2026-01-09T00:00:00Z,5.5,85,3.2
2026-01-09T01:00:00+01:00,5.2,87,3.0
`
	raw, err := ReadObservations(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, raw, 2)

	assert.True(t, raw[0].Timestamp.Equal(time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)))
	assert.InDelta(t, 5.5, *raw[0].Temperature, 0)
	assert.InDelta(t, 85.0, *raw[0].Humidity, 0)
	assert.InDelta(t, 3.2, *raw[0].WindSpeed, 0)
	assert.True(t, raw[1].Timestamp.Equal(time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)))
}

func TestReadObservations_ColumnOrderAndAliases(t *testing.T) {
	in := "\ufeffWind, Relative_Humidity ,Temperature,Time\n3.2,85,5.5,2026-01-09 00:00:00\n"
	raw, err := ReadObservations(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, raw, 1)

	assert.True(t, raw[0].Timestamp.Equal(time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)))
	assert.InDelta(t, 5.5, *raw[0].Temperature, 0)
	assert.InDelta(t, 85.0, *raw[0].Humidity, 0)
	assert.InDelta(t, 3.2, *raw[0].WindSpeed, 0)
}

func TestReadObservations_EmptyCellsAreMissing(t *testing.T) {
	in := `timestamp,temperature,humidity,wind_speed
2026-01-09T00:00:00Z,5.5,,3.2
`
	raw, err := ReadObservations(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.Nil(t, raw[0].Humidity)

	_, err = domain.NewWeatherSeries(raw)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestReadObservations_SkipsBlankRows(t *testing.T) {
	in := "timestamp,temperature,humidity,wind_speed\n,,,\n2026-01-09T00:00:00Z,5.5,85,3.2\n"
	raw, err := ReadObservations(strings.NewReader(in))
	require.NoError(t, err)
	assert.Len(t, raw, 1)
}

func TestReadObservations_EmptyInput(t *testing.T) {
	raw, err := ReadObservations(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, raw)

	raw, err = ReadObservations(strings.NewReader("timestamp,temperature,humidity,wind_speed\n"))
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestReadObservations_Errors(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantIndex int
		wantField string
	}{
		{
			name:      "bad number",
			in:        "timestamp,temperature,humidity,wind_speed\n2026-01-09T00:00:00Z,5.5,85,3\n2026-01-09T01:00:00Z,warm,85,3\n",
			wantIndex: 1,
			wantField: ColTemperature,
		},
		{
			name:      "bad timestamp",
			in:        "timestamp,temperature,humidity,wind_speed\nyesterday,5.5,85,3\n",
			wantIndex: 0,
			wantField: ColTimestamp,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadObservations(strings.NewReader(tt.in))
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantIndex, ve.Index)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestReadObservations_MissingColumn(t *testing.T) {
	_, err := ReadObservations(strings.NewReader("timestamp,temperature,humidity\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wind_speed")
}

func TestWriteRisk(t *testing.T) {
	t0 := time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)
	risks := domain.RiskSeries{
		{Timestamp: t0, TTF: 6.070042830218038},
		{Timestamp: t0.Add(time.Hour), TTF: 6.071655324562477},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRisk(&buf, risks))

	want := "timestamp,ttf\n" +
		"2026-01-09T00:00:00Z,6.070042830218038\n" +
		"2026-01-09T01:00:00Z,6.071655324562477\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteRisk_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRisk(&buf, nil))
	assert.Equal(t, "timestamp,ttf\n", buf.String())
}
