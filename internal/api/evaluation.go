package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/price-research/internal/advisory"
	"github.com/sells-group/price-research/internal/model"
	"github.com/sells-group/price-research/internal/pricing"
	"github.com/sells-group/price-research/internal/store"
	"github.com/sells-group/price-research/internal/validate"
)

type evaluateRequest struct {
	Method            model.EstimationMethod `json:"method,omitempty"`
	AdjustmentPercent *decimal.Decimal       `json:"adjustment_percent,omitempty"`
	Deselected        []string               `json:"deselected,omitempty"`
}

type evaluateResponse struct {
	Result *model.EvaluationResult `json:"result"`
	Saved  bool                    `json:"saved"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	save := false
	if v := r.URL.Query().Get("save"); v != "" {
		var err error
		if save, err = strconv.ParseBool(v); err != nil {
			writeErr(w, eris.Wrapf(validate.ErrInvalid, "save %q", v))
			return
		}
	}
	if save && !roleFrom(ctx).canMutate() {
		writeError(w, http.StatusForbidden, "role not allowed to save evaluations")
		return
	}

	var req evaluateRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	res, err := s.store.GetResearch(ctx, id)
	if err != nil {
		writeErr(w, err)
		return
	}

	method := res.Method
	if req.Method != "" {
		method = req.Method
	}
	if method == "" {
		method = s.opts.DefaultMethod
	}
	adjustment := res.AdjustmentPercent
	if req.AdjustmentPercent != nil {
		adjustment = *req.AdjustmentPercent
	}
	if err := validate.ResearchUpdate(&model.ResearchUpdate{Method: &method, AdjustmentPercent: &adjustment}); err != nil {
		writeErr(w, err)
		return
	}

	input := model.EvaluationInput{
		Description:  res.Description,
		Observations: res.Observations,
		Deselected:   req.Deselected,
	}
	result, err := pricing.Evaluate(input, method, adjustment,
		pricing.WithThresholds(s.opts.Thresholds), pricing.AsOf(s.opts.Now()))
	if err != nil {
		writeErr(w, err)
		return
	}

	if save {
		ev := &model.StoredEvaluation{ResearchID: id, Result: *result}
		if err := s.store.SaveEvaluation(ctx, ev); err != nil {
			writeErr(w, err)
			return
		}
		zap.L().Info("api: evaluation saved",
			zap.String("research_id", id),
			zap.String("estimated_price", result.EstimatedPrice.String()),
			zap.Int("issues", len(result.ComplianceIssues)),
		)
	}
	writeJSON(w, http.StatusOK, evaluateResponse{Result: result, Saved: save})
}

func (s *Server) handleGetEvaluation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ev, err := s.store.GetEvaluation(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		// The research may exist without an evaluation.
		if _, rerr := s.store.GetResearch(r.Context(), id); rerr != nil {
			writeErr(w, rerr)
			return
		}
		writeJSON(w, http.StatusNotFound, errorBody{Error: "research has not been evaluated", State: stateNotEvaluated})
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleAdvisory(w http.ResponseWriter, r *http.Request) {
	if !s.advisor.Enabled() {
		writeErr(w, advisory.ErrDisabled)
		return
	}
	res, err := s.store.GetResearch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	opinion, err := s.advisor.Advise(r.Context(), model.EvaluationInput{
		Description:  res.Description,
		Observations: res.Observations,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, opinion)
}
