// Package csvio reads weather observations from and writes fire risk series to
// CSV files.
//
// Input files carry a header row naming at least the columns timestamp,
// temperature, humidity and wind_speed, in any order. Output files have the
// columns timestamp and ttf.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/frcm-service/internal/domain"
)

const (
	ColTimestamp   = "timestamp"
	ColTemperature = "temperature"
	ColHumidity    = "humidity"
	ColWindSpeed   = "wind_speed"
	ColTTF         = "ttf"
)

// Accepted alternative header names.
var aliases = map[string]string{
	"time":              ColTimestamp,
	"relative_humidity": ColHumidity,
	"wind":              ColWindSpeed,
	"windspeed":         ColWindSpeed,
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ReadObservations parses a weather CSV. Empty cells yield nil fields so that
// series validation reports them as missing. Unparseable cells are reported as
// *domain.ValidationError with the data row index (0 = first row after the
// header).
func ReadObservations(r io.Reader) ([]domain.RawObservation, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	colIdx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var out []domain.RawObservation
	for row := 0; ; row++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", row, err)
		}
		if blank(rec) {
			row--
			continue
		}
		obs, err := parseRow(row, rec, colIdx)
		if err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	return out, nil
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if canonical, ok := aliases[name]; ok {
			name = canonical
		}
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	for _, col := range []string{ColTimestamp, ColTemperature, ColHumidity, ColWindSpeed} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("csv header is missing column %q", col)
		}
	}
	return idx, nil
}

func parseRow(row int, rec []string, colIdx map[string]int) (domain.RawObservation, error) {
	cell := func(col string) string {
		i := colIdx[col]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var obs domain.RawObservation
	if s := cell(ColTimestamp); s != "" {
		ts, err := parseTime(s)
		if err != nil {
			return obs, &domain.ValidationError{Index: row, Field: ColTimestamp, Reason: fmt.Sprintf("cannot parse %q", s)}
		}
		obs.Timestamp = &ts
	}

	var err error
	if obs.Temperature, err = parseFloat(row, ColTemperature, cell(ColTemperature)); err != nil {
		return obs, err
	}
	if obs.Humidity, err = parseFloat(row, ColHumidity, cell(ColHumidity)); err != nil {
		return obs, err
	}
	if obs.WindSpeed, err = parseFloat(row, ColWindSpeed, cell(ColWindSpeed)); err != nil {
		return obs, err
	}
	return obs, nil
}

func parseFloat(row int, col, s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, &domain.ValidationError{Index: row, Field: col, Reason: fmt.Sprintf("cannot parse %q", s)}
	}
	return &v, nil
}

// parseTime accepts RFC 3339 and a few zone-less layouts, which are read as UTC.
func parseTime(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// WriteRisk writes one timestamp,ttf row per point. Timestamps are RFC 3339 in
// the zone they were observed in; TTFs use the shortest exact representation.
func WriteRisk(w io.Writer, risks domain.RiskSeries) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ColTimestamp, ColTTF}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range risks {
		rec := []string{
			p.Timestamp.Format(time.RFC3339Nano),
			strconv.FormatFloat(p.TTF, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
