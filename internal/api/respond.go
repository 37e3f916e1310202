package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/price-research/internal/advisory"
	"github.com/sells-group/price-research/internal/pricing"
	"github.com/sells-group/price-research/internal/report"
	"github.com/sells-group/price-research/internal/resilience"
	"github.com/sells-group/price-research/internal/store"
	"github.com/sells-group/price-research/internal/validate"
)

const maxBodyBytes = 1 << 20

// Response states that are not plain errors.
const (
	stateCannotEstimate = "cannot_estimate"
	stateNotEvaluated   = "not_evaluated"
)

type errorBody struct {
	Error string `json:"error"`
	State string `json:"state,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeErr maps domain errors to HTTP statuses.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pricing.ErrInsufficientData):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), State: stateCannotEstimate})
	case errors.Is(err, report.ErrNotEvaluated):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), State: stateNotEvaluated})
	case errors.Is(err, validate.ErrEvaluationRequired):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), State: stateNotEvaluated})
	case errors.Is(err, validate.ErrInvalid),
		errors.Is(err, pricing.ErrUnknownMethod),
		errors.Is(err, pricing.ErrInvalidAdjustment),
		errors.Is(err, pricing.ErrInvalidThresholds):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, advisory.ErrDisabled):
		writeError(w, http.StatusServiceUnavailable, "advisory is not configured")
	case errors.Is(err, resilience.ErrCircuitOpen), resilience.IsTransient(err):
		writeError(w, http.StatusServiceUnavailable, "advisory temporarily unavailable")
	default:
		zap.L().Error("api: internal error", zap.String("error", eris.ToString(err, true)))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decode reads a JSON body into v. An empty body leaves v unchanged.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return eris.Wrapf(validate.ErrInvalid, "invalid request body: %v", err)
	}
	return nil
}
