package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/frcm-service/internal/domain"
	"github.com/couchcryptid/frcm-service/internal/service"
)

// ErrMalformedRequest marks a message body that is not a prediction request.
var ErrMalformedRequest = errors.New("malformed prediction request")

// RiskTransformer implements Transformer on top of the risk service.
type RiskTransformer struct {
	svc    *service.Service
	logger *slog.Logger
}

// NewTransformer creates a RiskTransformer.
func NewTransformer(svc *service.Service, logger *slog.Logger) *RiskTransformer {
	return &RiskTransformer{svc: svc, logger: logger}
}

func (t *RiskTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.Prediction, error) {
	var req domain.PredictionRequest
	if err := json.Unmarshal(raw.Value, &req); err != nil {
		return domain.Prediction{}, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}

	series, err := t.svc.Validate(req.Observations)
	if err != nil {
		return domain.Prediction{}, err
	}

	res, err := t.svc.Evaluate(ctx, series)
	if err != nil {
		return domain.Prediction{}, err
	}

	p := domain.NewPrediction(res.Fingerprint, req.Location, res.Risk, domain.Now())
	t.logger.Debug("prediction ready",
		"fingerprint", res.Fingerprint.Short(),
		"location", req.Location,
		"observations", series.Len(),
		"cached", res.FromCache,
		"danger_level", p.DangerLevel,
	)
	return p, nil
}
