package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/model"
)

type createAccountRequest struct {
	Number        string `json:"number" validate:"required"`
	Name          string `json:"name" validate:"required"`
	Type          string `json:"type" validate:"required|in:asset,liability,equity,revenue,expense"`
	ParentID      string `json:"parent_id"`
	BankAccountID string `json:"bank_account_id"`
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	a, err := s.Accounts.CreateAccount(r.Context(), accounts.CreateAccountParams{
		TenantID: tenantID(r), Number: req.Number, Name: req.Name, Type: model.AccountType(req.Type),
		ParentID: req.ParentID, BankAccountID: req.BankAccountID, Actor: actor,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newAccountView(a))
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	list, err := s.Accounts.List(r.Context(), tenantID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := make([]accountView, len(list))
	for i, a := range list {
		out[i] = newAccountView(a)
	}
	s.writeJSON(w, http.StatusOK, out)
}

// getAccount accepts an account id or number.
func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	a, err := s.Accounts.Resolve(r.Context(), tenantID(r), chi.URLParam(r, "accountID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newAccountView(a))
}

func (s *Server) accountBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	asOf, err := parseDay(r.URL.Query().Get("as_of"), model.Day(s.now()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	a, err := s.Accounts.Resolve(ctx, tenantID(r), chi.URLParam(r, "accountID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	bal, err := s.Accounts.GetBalance(ctx, a.TenantID, a.ID, asOf)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"account_id": a.ID,
		"number":     a.Number,
		"as_of":      formatDay(asOf),
		"balance":    bal,
	})
}

func (s *Server) deactivateAccount(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.actor(w, r); !ok {
		return
	}
	ctx := r.Context()
	a, err := s.Accounts.Resolve(ctx, tenantID(r), chi.URLParam(r, "accountID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.Accounts.Deactivate(ctx, a.TenantID, a.ID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	a.IsActive = false
	s.writeJSON(w, http.StatusOK, newAccountView(a))
}
