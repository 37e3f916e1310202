package api

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/price-research/internal/model"
	"github.com/sells-group/price-research/internal/report"
	"github.com/sells-group/price-research/internal/store"
)

type createReportRequest struct {
	GeneratedBy string `json:"generated_by"`
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req createReportRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	res, err := s.store.GetResearch(ctx, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	evaluated, err := s.hasEvaluation(r, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !evaluated {
		writeErr(w, report.ErrNotEvaluated)
		return
	}

	rep := &model.Report{
		ResearchID:          id,
		ResearchDescription: res.Description,
		GeneratedBy:         strings.TrimSpace(req.GeneratedBy),
	}
	if rep.GeneratedBy == "" {
		rep.GeneratedBy = res.ResponsibleAgent
	}
	if err := s.store.CreateReport(ctx, rep); err != nil {
		writeErr(w, err)
		return
	}
	zap.L().Info("api: report generated", zap.String("report_id", rep.ID), zap.String("research_id", id))
	writeJSON(w, http.StatusCreated, rep)
}

// handleListReports lists the reports of one research, or all reports on
// the top-level route.
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id != "" {
		if _, err := s.store.GetResearch(r.Context(), id); err != nil {
			writeErr(w, err)
			return
		}
	}
	list, err := s.store.ListReports(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleGetReport returns the report record, or the rendered document
// with ?format=text or ?format=html.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rep, err := s.store.GetReport(ctx, chi.URLParam(r, "reportID"))
	if err != nil {
		writeErr(w, err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" || format == "json" {
		writeJSON(w, http.StatusOK, rep)
		return
	}
	if format != "text" && format != "html" {
		writeError(w, http.StatusBadRequest, "unknown format "+format)
		return
	}

	res, err := s.store.GetResearch(ctx, rep.ResearchID)
	if err != nil {
		writeErr(w, err)
		return
	}
	ev, err := s.store.GetEvaluation(ctx, rep.ResearchID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeErr(w, err)
		return
	}
	doc := report.Document{Report: *rep, Research: *res, Evaluation: ev}

	var buf bytes.Buffer
	if format == "text" {
		err = report.Text(&buf, doc)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="nota-tecnica-`+rep.ID+`.txt"`)
	} else {
		err = report.HTML(&buf, doc)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	if err != nil {
		w.Header().Del("Content-Disposition")
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
