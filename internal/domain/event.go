package domain

import (
	"context"
	"time"
)

// PredictionRequest is the JSON payload collaborators publish to request a
// prediction for one location.
type PredictionRequest struct {
	Location     string           `json:"location,omitempty"`
	Observations []RawObservation `json:"observations"`
}

// Prediction is the JSON payload produced for a computed or cached risk series.
type Prediction struct {
	Fingerprint Fingerprint `json:"fingerprint"`
	Location    string      `json:"location,omitempty"`
	FireRisks   RiskSeries  `json:"firerisks"`
	DangerLevel DangerLevel `json:"danger_level"`
	Message     string      `json:"message"`
	ProcessedAt time.Time   `json:"processed_at"`
}

// NewPrediction assembles a Prediction, deriving the danger level from the
// latest point of the series.
func NewPrediction(fp Fingerprint, location string, risks RiskSeries, processedAt time.Time) Prediction {
	level := DangerVeryHigh
	if latest, ok := risks.Latest(); ok {
		level = DangerLevelFromTTF(latest.TTF)
	}
	return Prediction{
		Fingerprint: fp,
		Location:    location,
		FireRisks:   risks,
		DangerLevel: level,
		Message:     level.Message(),
		ProcessedAt: processedAt,
	}
}

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}
