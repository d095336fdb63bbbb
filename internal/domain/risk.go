package domain

import "time"

// RiskPoint is the predicted time to flashover at one observation instant.
type RiskPoint struct {
	Timestamp time.Time `json:"timestamp"`
	TTF       float64   `json:"ttf"` // hours, > 0
}

// RiskSeries is index-aligned with the WeatherSeries it was computed from.
type RiskSeries []RiskPoint

// Equal reports whether both series hold the same instants and bit-identical TTFs.
func (r RiskSeries) Equal(other RiskSeries) bool {
	if len(r) != len(other) {
		return false
	}
	for i := range r {
		if !r[i].Timestamp.Equal(other[i].Timestamp) || r[i].TTF != other[i].TTF {
			return false
		}
	}
	return true
}

// AlignedWith reports whether r has one point per observation with matching timestamps.
func (r RiskSeries) AlignedWith(ws WeatherSeries) bool {
	if len(r) != ws.Len() {
		return false
	}
	for i := range r {
		if !r[i].Timestamp.Equal(ws.At(i).Timestamp) {
			return false
		}
	}
	return true
}

// Latest returns the last point of the series.
func (r RiskSeries) Latest() (RiskPoint, bool) {
	if len(r) == 0 {
		return RiskPoint{}, false
	}
	return r[len(r)-1], true
}

// DangerLevel is a coarse, user-facing classification of a TTF value.
type DangerLevel string

const (
	DangerLow      DangerLevel = "LOW"
	DangerModerate DangerLevel = "MODERATE"
	DangerHigh     DangerLevel = "HIGH"
	DangerVeryHigh DangerLevel = "VERY_HIGH"
)

// DangerLevelFromTTF buckets a TTF value; shorter TTF means higher danger.
func DangerLevelFromTTF(ttf float64) DangerLevel {
	switch {
	case ttf > 60:
		return DangerLow
	case ttf > 30:
		return DangerModerate
	case ttf > 15:
		return DangerHigh
	default:
		return DangerVeryHigh
	}
}

// Message returns a short human-readable description of the level.
func (l DangerLevel) Message() string {
	switch l {
	case DangerLow:
		return "Fire danger is LOW - conditions are safe"
	case DangerModerate:
		return "Fire danger is MODERATE - exercise caution"
	case DangerHigh:
		return "Fire danger is HIGH - be vigilant"
	case DangerVeryHigh:
		return "Fire danger is VERY HIGH - take immediate precautions"
	default:
		return "Unknown danger level"
	}
}
