package api

import (
	"net/http"

	"github.com/sells-group/price-research/internal/model"
	"github.com/sells-group/price-research/internal/store"
)

const defaultRecent = 5

type dashboardResponse struct {
	Stats  *model.DashboardStats `json:"stats"`
	Recent []model.Research      `json:"recent"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r.URL.Query().Get("recent"), defaultRecent)
	if err != nil {
		writeErr(w, err)
		return
	}
	stats, err := s.store.DashboardStats(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	resp := dashboardResponse{Stats: stats, Recent: []model.Research{}}
	if n > 0 {
		if resp.Recent, err = s.store.ListResearches(r.Context(), store.ResearchFilter{Limit: n}); err != nil {
			writeErr(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearchCatalog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), 0)
	if err != nil {
		writeErr(w, err)
		return
	}
	items, err := s.store.SearchCatalog(r.Context(), q.Get("q"), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
