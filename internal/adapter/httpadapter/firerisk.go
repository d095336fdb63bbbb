package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/couchcryptid/frcm-service/internal/domain"
	"github.com/couchcryptid/frcm-service/internal/service"
	"github.com/couchcryptid/frcm-service/internal/store"
)

const maxRequestBytes = 8 << 20

// RiskService is the part of service.Service the API needs.
type RiskService interface {
	Validate(raw []domain.RawObservation) (domain.WeatherSeries, error)
	Evaluate(ctx context.Context, series domain.WeatherSeries) (service.Result, error)
	Lookup(ctx context.Context, fp domain.Fingerprint) (*store.CacheEntry, error)
}

type riskHandler struct {
	svc    RiskService
	logger *slog.Logger
}

type predictionResponse struct {
	domain.Prediction
	Cached bool `json:"cached"`
}

type errorResponse struct {
	Error string `json:"error"`
	Index *int   `json:"index,omitempty"`
	Field string `json:"field,omitempty"`
}

func (h *riskHandler) compute(w http.ResponseWriter, r *http.Request) {
	var req domain.PredictionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	series, err := h.svc.Validate(req.Observations)
	if err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.svc.Evaluate(r.Context(), series)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, predictionResponse{
		Prediction: domain.NewPrediction(res.Fingerprint, req.Location, res.Risk, domain.Now()),
		Cached:     res.FromCache,
	})
}

func (h *riskHandler) lookup(w http.ResponseWriter, r *http.Request) {
	fp, err := domain.ParseFingerprint(r.PathValue("fingerprint"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	entry, err := h.svc.Lookup(r.Context(), fp)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// writeError maps service errors onto HTTP statuses.
func (h *riskHandler) writeError(w http.ResponseWriter, err error) {
	var (
		ve  *domain.ValidationError
		nde *domain.NumericDomainError
	)
	switch {
	case errors.As(err, &ve):
		resp := errorResponse{Error: err.Error(), Field: ve.Field}
		if ve.Index >= 0 {
			resp.Index = &ve.Index
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: err.Error()})
	case domain.IsIntegrity(err), errors.As(err, &nde):
		h.logger.Error("fire risk request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	default:
		h.logger.Error("fire risk request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
