package api

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cleared-dev/ledger/internal/importer"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/reconcile"
	"github.com/cleared-dev/ledger/internal/rules"
	"github.com/cleared-dev/ledger/internal/store"
)

type bankRowRequest struct {
	Date        string `json:"date" validate:"required"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	Reference   string `json:"reference" validate:"required"`
}

type importRequest struct {
	Currency string           `json:"currency"`
	Rows     []bankRowRequest `json:"rows"`
}

type importResponse struct {
	Inserted []bankTransactionView `json:"inserted"`
	Skipped  []bankTransactionView `json:"skipped"`
}

// importTransactions accepts either a JSON batch of rows with minor-unit
// amounts or a raw CSV statement (Content-Type text/csv) parsed with the
// parser named by the format query parameter.
func (s *Server) importTransactions(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	tenant := tenantID(r)
	req := importer.ImportRequest{
		TenantID:      tenant,
		BankAccountID: chi.URLParam(r, "bankAccountID"),
		Currency:      s.Config.BaseCurrency(tenant),
		Actor:         actor,
	}
	if c := r.URL.Query().Get("currency"); c != "" {
		req.Currency = strings.ToUpper(c)
	}

	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "text/csv" {
		format := r.URL.Query().Get("format")
		p := s.Importer.Registry().Get(format)
		if p == nil {
			s.writeServiceError(w, r, model.Invalid(model.CodeInvalidInput, "unknown statement format %q", format))
			return
		}
		defer r.Body.Close()
		rows, err := p.Parse(r.Body, req.Currency)
		if err != nil {
			s.writeServiceError(w, r, model.Invalid(model.CodeInvalidInput, "%v", err))
			return
		}
		req.Rows = rows
	} else {
		var body importRequest
		if err := decodeJSON(r, &body); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		if body.Currency != "" {
			req.Currency = strings.ToUpper(body.Currency)
		}
		for i, row := range body.Rows {
			if err := checkPayload(&row); err != nil {
				s.writeServiceError(w, r, fmt.Errorf("row %d: %w", i+1, err))
				return
			}
			date, err := model.ParseDay(row.Date)
			if err != nil {
				s.writeServiceError(w, r, model.Invalid(model.CodeInvalidInput, "row %d: invalid date %q", i+1, row.Date))
				return
			}
			req.Rows = append(req.Rows, importer.Row{
				Date: date, Amount: row.Amount, Currency: row.Currency, Description: row.Description, Reference: row.Reference,
			})
		}
	}

	res, err := s.Importer.ImportBankTransactions(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, importResponse{
		Inserted: newBankTransactionViews(res.Inserted),
		Skipped:  newBankTransactionViews(res.Skipped),
	})
}

func (s *Server) runReconciliation(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.actor(w, r); !ok {
		return
	}
	rr, err := s.Matcher.Run(r.Context(), tenantID(r), chi.URLParam(r, "bankAccountID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newRunView(rr))
}

// signOff moves auto-matched transactions dated on or before the through
// query parameter (default today) to reconciled.
func (s *Server) signOff(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	through, err := parseDay(r.URL.Query().Get("through"), model.Day(s.now()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	ids, err := s.Matcher.ReconcileMatched(r.Context(), tenantID(r), chi.URLParam(r, "bankAccountID"), through, actor)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"through": formatDay(through), "reconciled": ids})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.Matcher.Stats(r.Context(), tenantID(r), chi.URLParam(r, "bankAccountID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newStatsView(st))
}

func (s *Server) listMatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.Matcher.Matches(r.Context(), store.MatchFilter{
		TenantID:          tenantID(r),
		BankTransactionID: q.Get("bank_transaction_id"),
		Status:            model.MatchStatus(q.Get("status")),
		IncludeSuperseded: q.Get("history") == "true",
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newMatchViews(list))
}

type reviewRequest struct {
	Decision string `json:"decision" validate:"required|in:confirm,reject"`
}

// reviewMatch confirms or rejects a pending match.
func (s *Server) reviewMatch(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	m, err := s.Matcher.ReviewMatch(r.Context(), tenantID(r), chi.URLParam(r, "matchID"), reconcile.Decision(req.Decision), actor)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newMatchView(m))
}

type manualMatchRequest struct {
	BankTransactionID string `json:"bank_transaction_id" validate:"required"`
	EntryID           string `json:"entry_id" validate:"required"`
}

func (s *Server) manualMatch(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req manualMatchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	m, err := s.Matcher.ManualMatch(r.Context(), tenantID(r), req.BankTransactionID, req.EntryID, actor)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newMatchView(m))
}

func (s *Server) listRules(w http.ResponseWriter, r *http.Request) {
	list, err := s.Rules.List(r.Context(), tenantID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := make([]ruleView, len(list))
	for i, rule := range list {
		out[i] = newRuleView(rule)
	}
	s.writeJSON(w, http.StatusOK, out)
}

// createRule accepts the rule file shape: decimal amounts in the tenant
// currency and the suggested account by number or id.
func (s *Server) createRule(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	tenant := tenantID(r)
	var fr rules.FileRule
	if err := decodeJSON(r, &fr); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resolve := func(ref string) (string, error) {
		a, err := s.Accounts.Resolve(ctx, tenant, ref)
		return a.ID, err
	}
	converted, err := rules.File{Rules: []rules.FileRule{fr}}.Rules(tenant, s.Config.BaseCurrency(tenant), resolve)
	if err != nil {
		var serr *model.StateError
		if errors.As(err, &serr) {
			s.writeServiceError(w, r, model.Invalid(model.CodeUnknownAccount, "%v", err))
			return
		}
		s.writeServiceError(w, r, model.Invalid(model.CodeInvalidRule, "%v", err))
		return
	}
	rule, err := s.Rules.Create(ctx, converted[0], actor)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newRuleView(rule))
}

type ruleActiveRequest struct {
	Active bool `json:"active"`
}

func (s *Server) setRuleActive(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.actor(w, r); !ok {
		return
	}
	var req ruleActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.Rules.SetActive(r.Context(), tenantID(r), chi.URLParam(r, "ruleID"), req.Active); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
