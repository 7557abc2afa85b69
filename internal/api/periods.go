package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/periods"
)

type createPeriodRequest struct {
	Name      string `json:"name" validate:"required"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
}

func (s *Server) createPeriod(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req createPeriodRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	start, err := model.ParseDay(req.StartDate)
	if err != nil {
		s.writeServiceError(w, r, model.Invalid(model.CodeInvalidPeriod, "invalid start_date %q", req.StartDate))
		return
	}
	end, err := model.ParseDay(req.EndDate)
	if err != nil {
		s.writeServiceError(w, r, model.Invalid(model.CodeInvalidPeriod, "invalid end_date %q", req.EndDate))
		return
	}
	p, err := s.Periods.CreatePeriod(r.Context(), periods.CreatePeriodParams{
		TenantID: tenantID(r), Name: req.Name, Start: start, End: end, Actor: actor,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newPeriodView(p))
}

func (s *Server) listPeriods(w http.ResponseWriter, r *http.Request) {
	list, err := s.Periods.List(r.Context(), tenantID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := make([]periodView, len(list))
	for i, p := range list {
		out[i] = newPeriodView(p)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) checkClosure(w http.ResponseWriter, r *http.Request) {
	rep, err := s.Periods.CheckClosure(r.Context(), tenantID(r), chi.URLParam(r, "periodID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newClosureView(rep))
}

func (s *Server) closePeriod(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	p, err := s.Periods.ClosePeriod(r.Context(), tenantID(r), chi.URLParam(r, "periodID"), actor)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newPeriodView(p))
}
