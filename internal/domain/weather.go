package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Physical domain limits for a single observation.
const (
	MinTemperature = -90.0
	MaxTemperature = 60.0
	MinHumidity    = 0.0
	MaxHumidity    = 100.0
	MinWindSpeed   = 0.0
)

// RawObservation is an observation-like record as handed over by a collaborator
// (CSV loader, weather API transformer, HTTP handler). Pointer fields let
// validation tell a missing value from a zero one.
type RawObservation struct {
	Timestamp   *time.Time `json:"timestamp" validate:"required"`
	Temperature *float64   `json:"temperature" validate:"required,gte=-90,lte=60"`
	Humidity    *float64   `json:"humidity" validate:"required,gte=0,lte=100"`
	WindSpeed   *float64   `json:"wind_speed" validate:"required,gte=0"`
}

// WeatherObservation is a single validated outdoor weather sample.
type WeatherObservation struct {
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"` // °C
	Humidity    float64   `json:"humidity"`    // relative humidity, percent
	WindSpeed   float64   `json:"wind_speed"`  // m/s
}

// Raw converts the observation back into its raw record form.
func (o WeatherObservation) Raw() RawObservation {
	ts, temp, hum, wind := o.Timestamp, o.Temperature, o.Humidity, o.WindSpeed
	return RawObservation{Timestamp: &ts, Temperature: &temp, Humidity: &hum, WindSpeed: &wind}
}

// WeatherSeries is a non-empty, strictly time-ordered sequence of observations.
// The zero value is not a valid series; build one with NewWeatherSeries.
type WeatherSeries struct {
	obs []WeatherObservation
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NewWeatherSeries validates raw records and returns the series they describe.
// The first violation found is reported as a *ValidationError.
func NewWeatherSeries(raw []RawObservation) (WeatherSeries, error) {
	if len(raw) == 0 {
		return WeatherSeries{}, &ValidationError{Index: -1, Reason: "series is empty"}
	}

	obs := make([]WeatherObservation, 0, len(raw))
	for i := range raw {
		o, err := validateRecord(i, raw[i])
		if err != nil {
			return WeatherSeries{}, err
		}
		if i > 0 {
			if err := checkOrder(i, obs[i-1].Timestamp, o.Timestamp); err != nil {
				return WeatherSeries{}, err
			}
		}
		obs = append(obs, o)
	}
	return WeatherSeries{obs: obs}, nil
}

// NewWeatherSeriesFromObservations validates already-typed observations.
func NewWeatherSeriesFromObservations(obs []WeatherObservation) (WeatherSeries, error) {
	raw := make([]RawObservation, len(obs))
	for i := range obs {
		raw[i] = obs[i].Raw()
	}
	return NewWeatherSeries(raw)
}

func validateRecord(i int, r RawObservation) (WeatherObservation, error) {
	if r.Timestamp == nil || r.Timestamp.IsZero() {
		return WeatherObservation{}, &ValidationError{Index: i, Field: "timestamp", Reason: "missing"}
	}
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"temperature", r.Temperature},
		{"humidity", r.Humidity},
		{"wind_speed", r.WindSpeed},
	} {
		if f.v != nil && (math.IsNaN(*f.v) || math.IsInf(*f.v, 0)) {
			return WeatherObservation{}, &ValidationError{Index: i, Field: f.name, Reason: "not a finite number"}
		}
	}

	if err := validate.Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return WeatherObservation{}, &ValidationError{Index: i, Field: fe.Field(), Reason: describeRule(fe)}
		}
		return WeatherObservation{}, &ValidationError{Index: i, Reason: err.Error()}
	}

	return WeatherObservation{
		Timestamp:   *r.Timestamp,
		Temperature: *r.Temperature,
		Humidity:    *r.Humidity,
		WindSpeed:   *r.WindSpeed,
	}, nil
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "missing"
	case "gte":
		return "below minimum " + fe.Param()
	case "lte":
		return "above maximum " + fe.Param()
	default:
		return "failed rule " + fe.Tag()
	}
}

func checkOrder(i int, prev, cur time.Time) error {
	switch {
	case cur.Equal(prev):
		return &ValidationError{Index: i, Field: "timestamp", Reason: "duplicate timestamp " + cur.UTC().Format(time.RFC3339Nano)}
	case cur.Before(prev):
		return &ValidationError{Index: i, Field: "timestamp", Reason: fmt.Sprintf("timestamp %s is before previous %s",
			cur.UTC().Format(time.RFC3339Nano), prev.UTC().Format(time.RFC3339Nano))}
	}
	return nil
}

// Len returns the number of observations.
func (s WeatherSeries) Len() int { return len(s.obs) }

// At returns the i-th observation.
func (s WeatherSeries) At(i int) WeatherObservation { return s.obs[i] }

// Observations returns a copy of the observations in order.
func (s WeatherSeries) Observations() []WeatherObservation {
	out := make([]WeatherObservation, len(s.obs))
	copy(out, s.obs)
	return out
}

// Start returns the timestamp of the first observation.
func (s WeatherSeries) Start() time.Time { return s.obs[0].Timestamp }

// End returns the timestamp of the last observation.
func (s WeatherSeries) End() time.Time { return s.obs[len(s.obs)-1].Timestamp }

// MarshalJSON encodes the series as a JSON array of observations.
func (s WeatherSeries) MarshalJSON() ([]byte, error) {
	if s.obs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.obs)
}

// UnmarshalJSON decodes and validates a JSON array of observations.
func (s *WeatherSeries) UnmarshalJSON(data []byte) error {
	var raw []RawObservation
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode weather series: %w", err)
	}
	series, err := NewWeatherSeries(raw)
	if err != nil {
		return err
	}
	*s = series
	return nil
}
