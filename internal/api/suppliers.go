package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/price-research/internal/model"
	"github.com/sells-group/price-research/internal/validate"
)

func (s *Server) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListSuppliers(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateSupplier(w http.ResponseWriter, r *http.Request) {
	var sup model.Supplier
	if err := decode(r, &sup); err != nil {
		writeErr(w, err)
		return
	}
	sup.ID = ""
	if err := validate.Supplier(&sup); err != nil {
		writeErr(w, err)
		return
	}
	if err := s.store.CreateSupplier(r.Context(), &sup); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sup)
}

func (s *Server) handleGetSupplier(w http.ResponseWriter, r *http.Request) {
	sup, err := s.store.GetSupplier(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sup)
}

func (s *Server) handleUpdateSupplier(w http.ResponseWriter, r *http.Request) {
	var sup model.Supplier
	if err := decode(r, &sup); err != nil {
		writeErr(w, err)
		return
	}
	sup.ID = chi.URLParam(r, "id")
	if err := validate.Supplier(&sup); err != nil {
		writeErr(w, err)
		return
	}
	if err := s.store.UpdateSupplier(r.Context(), &sup); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sup)
}

func (s *Server) handleDeleteSupplier(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSupplier(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
