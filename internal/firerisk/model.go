// Package firerisk computes time to flashover for a wooden structure from a
// series of outdoor weather observations.
//
// The model is a single forward fold. The carried State is the effective
// moisture content of the structure's wood. It starts at the outdoor-air
// equilibrium of the first observation and, at every later observation,
// relaxes exponentially toward the heated-interior equilibrium of that
// observation. Wind shortens the relaxation time constant. Each state maps to
// a TTF through an increasing exponential, so drier wood gives a shorter TTF.
//
// Air at or above the interior temperature has the same equilibrium outdoors
// and indoors. Colder air dries on heating, so a steady cold spell lowers TTF
// until the interior equilibrium is reached.
package firerisk

import (
	"math"
	"time"

	"github.com/couchcryptid/frcm-service/internal/domain"
)

// State is the value carried between observations.
type State struct {
	Moisture float64   // kg water per kg dry wood
	At       time.Time // instant of the last folded observation
}

// Model is a deterministic weather-to-risk model. It holds no mutable state and
// is safe for concurrent use.
type Model struct {
	params Params
}

// New returns a Model using p, or an error if p is unusable.
func New(p Params) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Model{params: p}, nil
}

// NewDefault returns a Model with DefaultParams.
func NewDefault() *Model {
	return &Model{params: DefaultParams()}
}

// Params returns the model constants.
func (m *Model) Params() Params { return m.params }

// Initial derives the starting state from the first observation.
func (m *Model) Initial(first domain.WeatherObservation) State {
	return State{
		Moisture: m.params.OutdoorEquilibrium(first.Temperature, first.Humidity),
		At:       first.Timestamp,
	}
}

// Step folds the next observation into the state.
func (m *Model) Step(s State, cur domain.WeatherObservation) State {
	dt := cur.Timestamp.Sub(s.At).Hours()
	target := m.params.InteriorEquilibrium(cur.Temperature, cur.Humidity)
	pull := -math.Expm1(-dt / m.params.timeConstant(cur.WindSpeed))
	return State{
		Moisture: s.Moisture + (target-s.Moisture)*pull,
		At:       cur.Timestamp,
	}
}

// Compute runs the fold over series and returns one RiskPoint per observation.
// A *domain.NumericDomainError means the constants broke the model.
func (m *Model) Compute(series domain.WeatherSeries) (domain.RiskSeries, error) {
	out := make(domain.RiskSeries, series.Len())

	var state State
	for i := 0; i < series.Len(); i++ {
		obs := series.At(i)
		if i == 0 {
			state = m.Initial(obs)
		} else {
			state = m.Step(state, obs)
		}

		if !isFinite(state.Moisture) || state.Moisture < 0 {
			return nil, &domain.NumericDomainError{Index: i, Quantity: "moisture", Value: state.Moisture}
		}
		ttf := m.params.TTF(state.Moisture)
		if !isFinite(ttf) || ttf <= 0 {
			return nil, &domain.NumericDomainError{Index: i, Quantity: "ttf", Value: ttf}
		}
		out[i] = domain.RiskPoint{Timestamp: obs.Timestamp, TTF: ttf}
	}
	return out, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
