package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/price-research/internal/model"
	"github.com/sells-group/price-research/internal/store"
	"github.com/sells-group/price-research/internal/validate"
)

type createResearchRequest struct {
	Description       string                 `json:"description"`
	ResponsibleAgent  string                 `json:"responsible_agent"`
	Status            model.ResearchStatus   `json:"status"`
	ContractType      model.ContractType     `json:"contract_type"`
	CatalogCode       int64                  `json:"catalog_code"`
	Justifications    model.Justifications   `json:"justifications"`
	Method            model.EstimationMethod `json:"method"`
	AdjustmentPercent decimal.Decimal        `json:"adjustment_percent"`
	Observations      []model.Observation    `json:"observations"`
}

func (s *Server) handleCreateResearch(w http.ResponseWriter, r *http.Request) {
	var req createResearchRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	res := &model.Research{
		Description:       req.Description,
		ResponsibleAgent:  req.ResponsibleAgent,
		Status:            req.Status,
		ContractType:      req.ContractType,
		CatalogCode:       req.CatalogCode,
		Justifications:    req.Justifications,
		Method:            req.Method,
		AdjustmentPercent: req.AdjustmentPercent,
	}
	if res.Status == "" {
		res.Status = model.ResearchStatusDraft
	}
	if res.ContractType == "" {
		res.ContractType = model.ContractGoods
	}
	if res.Method == "" {
		res.Method = s.opts.DefaultMethod
	}
	if err := validate.Research(res); err != nil {
		writeErr(w, err)
		return
	}
	if err := validate.Transition(model.ResearchStatusDraft, res.Status, false); err != nil {
		writeErr(w, err)
		return
	}
	if err := validate.Observations(req.Observations, s.opts.Now()); err != nil {
		writeErr(w, err)
		return
	}
	for _, o := range req.Observations {
		if err := s.checkSupplier(r, o.SupplierID); err != nil {
			writeErr(w, err)
			return
		}
	}

	ctx := r.Context()
	if err := s.store.CreateResearch(ctx, res); err != nil {
		writeErr(w, err)
		return
	}
	for i := range req.Observations {
		o := req.Observations[i]
		if err := s.store.AddObservation(ctx, res.ID, &o); err != nil {
			writeErr(w, err)
			return
		}
		res.Observations = append(res.Observations, o)
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListResearches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ResearchFilter{Status: model.ResearchStatus(q.Get("status"))}
	if filter.Status != "" && !filter.Status.IsValid() {
		writeError(w, http.StatusBadRequest, "unknown status "+q.Get("status"))
		return
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit"), 0); err != nil {
		writeErr(w, err)
		return
	}
	if filter.Offset, err = intParam(q.Get("offset"), 0); err != nil {
		writeErr(w, err)
		return
	}
	if v := q.Get("evaluated"); v != "" {
		if filter.Evaluated, err = strconv.ParseBool(v); err != nil {
			writeErr(w, eris.Wrapf(validate.ErrInvalid, "evaluated %q", v))
			return
		}
	}

	list, err := s.store.ListResearches(r.Context(), filter)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetResearch(w http.ResponseWriter, r *http.Request) {
	res, err := s.store.GetResearch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUpdateResearch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var u model.ResearchUpdate
	if err := decode(r, &u); err != nil {
		writeErr(w, err)
		return
	}
	if u.EstimatedPrice != nil {
		writeError(w, http.StatusBadRequest, "estimated price is set by saving an evaluation")
		return
	}
	if err := validate.ResearchUpdate(&u); err != nil {
		writeErr(w, err)
		return
	}

	ctx := r.Context()
	if u.Status != nil {
		current, err := s.store.GetResearch(ctx, id)
		if err != nil {
			writeErr(w, err)
			return
		}
		evaluated, err := s.hasEvaluation(r, id)
		if err != nil {
			writeErr(w, err)
			return
		}
		if err := validate.Transition(current.Status, *u.Status, evaluated); err != nil {
			writeErr(w, err)
			return
		}
	}

	res, err := s.store.UpdateResearch(ctx, id, u)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteResearch(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteResearch(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- observations ---

func (s *Server) handleListObservations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	// Distinguish an unknown research from one without observations.
	if _, err := s.store.GetResearch(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	list, err := s.store.ListObservations(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAddObservation(w http.ResponseWriter, r *http.Request) {
	var o model.Observation
	if err := decode(r, &o); err != nil {
		writeErr(w, err)
		return
	}
	if err := validate.Observation(o, s.opts.Now()); err != nil {
		writeErr(w, err)
		return
	}
	if err := s.checkSupplier(r, o.SupplierID); err != nil {
		writeErr(w, err)
		return
	}
	if err := s.store.AddObservation(r.Context(), chi.URLParam(r, "id"), &o); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) handleUpdateObservation(w http.ResponseWriter, r *http.Request) {
	var o model.Observation
	if err := decode(r, &o); err != nil {
		writeErr(w, err)
		return
	}
	o.ID = chi.URLParam(r, "obsID")
	o.ResearchID = chi.URLParam(r, "id")
	if err := validate.Observation(o, s.opts.Now()); err != nil {
		writeErr(w, err)
		return
	}
	if err := s.checkSupplier(r, o.SupplierID); err != nil {
		writeErr(w, err)
		return
	}
	if err := s.store.UpdateObservation(r.Context(), &o); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleDeleteObservation(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteObservation(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "obsID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// checkSupplier rejects references to suppliers that do not exist.
func (s *Server) checkSupplier(r *http.Request, id string) error {
	if id == "" {
		return nil
	}
	_, err := s.store.GetSupplier(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return eris.Wrapf(validate.ErrInvalid, "unknown supplier %s", id)
	}
	return err
}

func (s *Server) hasEvaluation(r *http.Request, researchID string) (bool, error) {
	_, err := s.store.GetEvaluation(r.Context(), researchID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, eris.Wrapf(validate.ErrInvalid, "invalid number %q", raw)
	}
	return n, nil
}
