package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cleared-dev/ledger/internal/journal"
	"github.com/cleared-dev/ledger/internal/model"
)

type lineRequest struct {
	Account     string `json:"account" validate:"required"`
	Description string `json:"description"`
	Debit       int64  `json:"debit"`
	Credit      int64  `json:"credit"`
}

// entryRequest is the body of a journal entry submission or draft save.
// Accounts are referenced by number or id.
type entryRequest struct {
	ID          string        `json:"id"`
	Date        string        `json:"date" validate:"required"`
	Description string        `json:"description"`
	Lines       []lineRequest `json:"lines"`
}

// draft converts the request. Account references that do not resolve are
// kept verbatim so validation reports them per line. When a line fails the
// payload checks, every line problem is reported together.
func (s *Server) draft(ctx context.Context, tenant string, req entryRequest) (model.JournalEntryDraft, error) {
	date, err := model.ParseDay(req.Date)
	if err != nil {
		return model.JournalEntryDraft{}, model.Invalid(model.CodeInvalidInput, "invalid date %q, want YYYY-MM-DD", req.Date)
	}
	d := model.JournalEntryDraft{ID: req.ID, TenantID: tenant, Date: date, Description: req.Description}
	var payload model.ValidationErrors
	blank := make(map[int]bool)
	for i, l := range req.Lines {
		lineNo := i + 1
		if err := checkPayload(&l); err != nil {
			var verrs model.ValidationErrors
			if !errors.As(err, &verrs) {
				return model.JournalEntryDraft{}, err
			}
			for _, v := range verrs {
				v.LineNo = lineNo
				payload = append(payload, v)
			}
			blank[lineNo] = l.Account == ""
		}
		accountID := l.Account
		if l.Account != "" {
			if a, err := s.Accounts.Resolve(ctx, tenant, l.Account); err == nil {
				accountID = a.ID
			} else if !model.HasCode(err, model.CodeNotFound) {
				return model.JournalEntryDraft{}, err
			}
		}
		d.Lines = append(d.Lines, model.JournalLine{
			LineNo: lineNo, AccountID: accountID, Description: l.Description, Debit: l.Debit, Credit: l.Credit,
		})
	}
	if len(payload) == 0 {
		return d, nil
	}

	accts, err := s.Accounts.List(ctx, tenant)
	if err != nil {
		return model.JournalEntryDraft{}, err
	}
	byID := make(map[string]model.Account, len(accts))
	for _, a := range accts {
		byID[a.ID] = a
	}
	for _, v := range journal.ValidateLines(tenant, d.ID, d.Lines, byID) {
		if v.Code == model.CodeUnknownAccount && blank[v.LineNo] {
			continue
		}
		payload = append(payload, v)
	}
	return model.JournalEntryDraft{}, payload
}

// submitEntry posts a journal entry. The Idempotency-Key header is
// mandatory; a replayed key returns the entry it first produced.
func (s *Server) submitEntry(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req entryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	d, err := s.draft(r.Context(), tenantID(r), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	e, err := s.Journal.PostEntry(r.Context(), journal.PostRequest{
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		Actor:          actor,
		Draft:          d,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newEntryView(e))
}

func (s *Server) saveDraft(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req entryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	d, err := s.draft(r.Context(), tenantID(r), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	e, err := s.Journal.SaveDraft(r.Context(), d, actor)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newEntryView(e))
}

func (s *Server) discardDraft(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.actor(w, r); !ok {
		return
	}
	if err := s.Journal.DiscardDraft(r.Context(), tenantID(r), chi.URLParam(r, "entryID")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.Journal.GetEntry(r.Context(), tenantID(r), chi.URLParam(r, "entryID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newEntryView(e))
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	f := journal.Filter{TenantID: tenantID(r), Status: model.EntryStatus(q.Get("status")), Limit: parseLimit(r)}
	var err error
	if f.From, err = parseDay(q.Get("from"), f.From); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if f.To, err = parseDay(q.Get("to"), f.To); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if ref := q.Get("account"); ref != "" {
		a, err := s.Accounts.Resolve(ctx, f.TenantID, ref)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		f.AccountID = a.ID
	}
	list, err := s.Journal.ListEntries(ctx, f)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := make([]entryView, len(list))
	for i, e := range list {
		out[i] = newEntryView(e)
	}
	s.writeJSON(w, http.StatusOK, out)
}

// voidEntry voids a posted entry and responds with its reversal.
func (s *Server) voidEntry(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	rev, err := s.Journal.VoidEntry(r.Context(), journal.VoidRequest{
		TenantID: tenantID(r), EntryID: chi.URLParam(r, "entryID"), Actor: actor,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newEntryView(rev))
}

func (s *Server) trialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDay(r.URL.Query().Get("as_of"), model.Day(s.now()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	tb, err := s.Journal.TrialBalance(r.Context(), tenantID(r), asOf)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newTrialBalanceView(tb))
}
