// Package journal posts, voids and drafts double-entry journal entries.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/ledger/internal/audit"
	"github.com/cleared-dev/ledger/internal/id"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/retry"
	"github.com/cleared-dev/ledger/internal/store"
)

// Store is the persistence the journal needs.
type Store interface {
	AccountsByID(ctx context.Context, ids []string) (map[string]model.Account, error)
	EntryByIdempotencyKey(ctx context.Context, tenantID, key string) (model.JournalEntry, bool, error)
	CommitPosting(ctx context.Context, e *model.JournalEntry, idempotencyKey string) error
	CommitVoid(ctx context.Context, originalID string, reversal *model.JournalEntry, voidedAt time.Time) error
	SaveDraft(ctx context.Context, e model.JournalEntry) error
	DeleteDraft(ctx context.Context, tenantID, entryID string) error
	GetEntry(ctx context.Context, tenantID, entryID string) (model.JournalEntry, error)
	ListEntries(ctx context.Context, f store.EntryFilter) ([]model.JournalEntry, error)
	TrialBalance(ctx context.Context, tenantID string, asOf time.Time) ([]store.AccountTotals, error)
}

// Periods resolves and locks accounting periods.
type Periods interface {
	PeriodFor(ctx context.Context, tenantID string, date time.Time) (model.AccountingPeriod, error)
	Lock(tenantID, periodID string) (unlock func())
}

// Filter narrows ListEntries.
type Filter = store.EntryFilter

// Service provides business logic for journal entries.
type Service struct {
	store   Store
	periods Periods
	audit   audit.Emitter
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewService creates a journal Service.
func NewService(st Store, periods Periods, em audit.Emitter, log logrus.FieldLogger) *Service {
	return &Service{store: st, periods: periods, audit: em, log: log, now: time.Now}
}

// SetClock overrides the time source that dates reversals.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// PostRequest asks for a draft to be posted. Retrying with the same
// IdempotencyKey returns the entry the key first produced.
type PostRequest struct {
	IdempotencyKey string
	Actor          string
	Draft          model.JournalEntryDraft
}

// PostEntry validates a draft and posts it atomically into its open period.
func (s *Service) PostEntry(ctx context.Context, req PostRequest) (model.JournalEntry, error) {
	d := req.Draft
	if req.IdempotencyKey == "" {
		return model.JournalEntry{}, model.Invalid(model.CodeMissingIdempotencyKey, "idempotency key is required")
	}

	if prior, ok, err := s.store.EntryByIdempotencyKey(ctx, d.TenantID, req.IdempotencyKey); err != nil {
		return model.JournalEntry{}, fmt.Errorf("checking idempotency key: %w", err)
	} else if ok {
		s.log.WithFields(logrus.Fields{"tenant": d.TenantID, "entry": prior.Number}).Debug("idempotent replay")
		return prior, nil
	}

	entryID := d.ID
	if entryID == "" {
		entryID = id.New()
	}
	lines := NormalizeLines(d.Lines)
	if err := s.validate(ctx, d.TenantID, entryID, d.Date, lines); err != nil {
		return model.JournalEntry{}, err
	}

	period, unlock, err := s.lockOpenPeriod(ctx, d.TenantID, d.Date)
	if err != nil {
		return model.JournalEntry{}, err
	}
	defer unlock()

	e := model.JournalEntry{
		ID:          entryID,
		TenantID:    d.TenantID,
		PeriodID:    period.ID,
		Date:        model.Day(d.Date),
		Description: d.Description,
		Status:      model.StatusPosted,
		CreatedBy:   req.Actor,
		PostedAt:    s.now().UTC(),
		Lines:       lines,
	}
	err = retry.Do(ctx, s.log, "post entry", func() error {
		return s.store.CommitPosting(ctx, &e, req.IdempotencyKey)
	})
	if errors.Is(err, store.ErrDuplicate) {
		// Another request with the same key won the race.
		prior, ok, lookupErr := s.store.EntryByIdempotencyKey(ctx, d.TenantID, req.IdempotencyKey)
		if lookupErr == nil && ok {
			return prior, nil
		}
	}
	if err != nil {
		return model.JournalEntry{}, fmt.Errorf("posting entry: %w", err)
	}

	debit, _ := e.Totals()
	s.log.WithFields(logrus.Fields{
		"tenant": e.TenantID, "entry": e.Number, "period": period.Name, "amount": debit,
	}).Info("entry posted")
	s.audit.Emit(ctx, audit.Record{
		TenantID: e.TenantID, Actor: req.Actor, Action: audit.ActionEntryPosted,
		EntityType: "journal_entry", EntityID: e.ID, After: audit.Snapshot(e),
	})
	return e, nil
}

// PostDoubleParams describes a two-line entry moving Amount from
// CreditAccount to DebitAccount.
type PostDoubleParams struct {
	TenantID       string
	IdempotencyKey string
	Actor          string
	Date           time.Time
	Description    string
	DebitAccount   string
	CreditAccount  string
	Amount         int64
}

// PostDouble posts a balanced two-line entry.
func (s *Service) PostDouble(ctx context.Context, p PostDoubleParams) (model.JournalEntry, error) {
	return s.PostEntry(ctx, PostRequest{
		IdempotencyKey: p.IdempotencyKey,
		Actor:          p.Actor,
		Draft: model.JournalEntryDraft{
			TenantID:    p.TenantID,
			Date:        p.Date,
			Description: p.Description,
			Lines: []model.JournalLine{
				{AccountID: p.DebitAccount, Debit: p.Amount, Description: p.Description},
				{AccountID: p.CreditAccount, Credit: p.Amount, Description: p.Description},
			},
		},
	})
}

// VoidRequest asks for a posted entry to be voided.
type VoidRequest struct {
	TenantID string
	EntryID  string
	Actor    string
}

// VoidEntry voids a posted entry by posting its reversal, dated today, into
// the open period covering today. The original is never modified beyond its
// status and its link to the reversal. It returns the reversing entry.
func (s *Service) VoidEntry(ctx context.Context, req VoidRequest) (model.JournalEntry, error) {
	original, err := s.store.GetEntry(ctx, req.TenantID, req.EntryID)
	if err != nil {
		return model.JournalEntry{}, err
	}
	if original.Status != model.StatusPosted || original.ReversalOf != "" {
		return model.JournalEntry{}, &model.StateError{Code: model.CodeNotPosted, Entity: "journal_entry", ID: req.EntryID}
	}

	now := s.now().UTC()
	period, unlock, err := s.lockOpenPeriod(ctx, req.TenantID, now)
	if model.HasCode(err, model.CodeClosedPeriod) {
		return model.JournalEntry{}, &model.StateError{Code: model.CodePeriodClosed, Entity: "accounting_period", ID: period.ID}
	}
	if err != nil {
		return model.JournalEntry{}, err
	}
	defer unlock()

	reversal := model.JournalEntry{
		ID:          id.New(),
		TenantID:    req.TenantID,
		PeriodID:    period.ID,
		Date:        model.Day(now),
		Description: fmt.Sprintf("Void of %s: %s", original.Number, original.Description),
		Status:      model.StatusPosted,
		ReversalOf:  original.ID,
		CreatedBy:   req.Actor,
		PostedAt:    now,
		Lines:       Reverse(original.Lines),
	}
	err = retry.Do(ctx, s.log, "void entry", func() error {
		return s.store.CommitVoid(ctx, original.ID, &reversal, now)
	})
	if err != nil {
		return model.JournalEntry{}, fmt.Errorf("voiding entry %s: %w", original.Number, err)
	}

	after := original
	after.Status = model.StatusVoid
	after.ReversedBy = reversal.ID
	after.VoidedAt = now

	s.log.WithFields(logrus.Fields{
		"tenant": req.TenantID, "entry": original.Number, "reversal": reversal.Number,
	}).Info("entry voided")
	s.audit.Emit(ctx, audit.Record{
		TenantID: req.TenantID, Actor: req.Actor, Action: audit.ActionEntryVoided,
		EntityType: "journal_entry", EntityID: original.ID,
		Before: audit.Snapshot(original), After: audit.Snapshot(after),
	})
	return reversal, nil
}

// Reverse returns lines with debit and credit swapped.
func Reverse(lines []model.JournalLine) []model.JournalLine {
	out := make([]model.JournalLine, len(lines))
	for i, l := range lines {
		out[i] = model.JournalLine{
			LineNo:      l.LineNo,
			AccountID:   l.AccountID,
			Description: l.Description,
			Debit:       l.Credit,
			Credit:      l.Debit,
		}
	}
	return out
}

// SaveDraft stores a work-in-progress entry. Drafts need not balance but must
// be dated in an open period. The returned draft carries its id.
func (s *Service) SaveDraft(ctx context.Context, d model.JournalEntryDraft, actor string) (model.JournalEntry, error) {
	if d.TenantID == "" || d.Date.IsZero() {
		return model.JournalEntry{}, model.Invalid(model.CodeInvalidInput, "draft needs a tenant and a date")
	}
	period, unlock, err := s.lockOpenPeriod(ctx, d.TenantID, d.Date)
	if err != nil {
		return model.JournalEntry{}, err
	}
	defer unlock()

	e := model.JournalEntry{
		ID:          d.ID,
		TenantID:    d.TenantID,
		PeriodID:    period.ID,
		Date:        model.Day(d.Date),
		Description: d.Description,
		Status:      model.StatusDraft,
		CreatedBy:   actor,
		Lines:       NormalizeLines(d.Lines),
	}
	if e.ID == "" {
		e.ID = id.New()
	}
	if err := retry.Do(ctx, s.log, "save draft", func() error {
		return s.store.SaveDraft(ctx, e)
	}); err != nil {
		return model.JournalEntry{}, fmt.Errorf("saving draft: %w", err)
	}

	s.audit.Emit(ctx, audit.Record{
		TenantID: e.TenantID, Actor: actor, Action: audit.ActionDraftSaved,
		EntityType: "journal_entry", EntityID: e.ID, After: audit.Snapshot(e),
	})
	return e, nil
}

// DiscardDraft deletes a draft. Posted and void entries cannot be deleted.
func (s *Service) DiscardDraft(ctx context.Context, tenantID, entryID string) error {
	e, err := s.store.GetEntry(ctx, tenantID, entryID)
	if err != nil {
		return err
	}
	if e.Status != model.StatusDraft {
		return &model.StateError{Code: model.CodeNotDraft, Entity: "journal_entry", ID: entryID}
	}
	unlock := s.periods.Lock(tenantID, e.PeriodID)
	defer unlock()

	if err := s.store.DeleteDraft(ctx, tenantID, entryID); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"tenant": tenantID, "draft": entryID}).Debug("draft discarded")
	return nil
}

// GetEntry returns one entry with its lines.
func (s *Service) GetEntry(ctx context.Context, tenantID, entryID string) (model.JournalEntry, error) {
	return s.store.GetEntry(ctx, tenantID, entryID)
}

// ListEntries returns the entries matching f.
func (s *Service) ListEntries(ctx context.Context, f Filter) ([]model.JournalEntry, error) {
	return s.store.ListEntries(ctx, f)
}

// TrialBalance lists per-account totals as of a date.
type TrialBalance struct {
	AsOf        time.Time
	Rows        []store.AccountTotals
	TotalDebit  int64
	TotalCredit int64
}

// Balanced reports whether total debits equal total credits.
func (tb TrialBalance) Balanced() bool {
	return tb.TotalDebit == tb.TotalCredit
}

// TrialBalance totals every account's postings dated on or before asOf.
func (s *Service) TrialBalance(ctx context.Context, tenantID string, asOf time.Time) (TrialBalance, error) {
	rows, err := s.store.TrialBalance(ctx, tenantID, model.Day(asOf))
	if err != nil {
		return TrialBalance{}, fmt.Errorf("trial balance: %w", err)
	}
	tb := TrialBalance{AsOf: model.Day(asOf), Rows: rows}
	for _, r := range rows {
		tb.TotalDebit += r.Debit
		tb.TotalCredit += r.Credit
	}
	return tb, nil
}

func (s *Service) validate(ctx context.Context, tenantID, entryID string, date time.Time, lines []model.JournalLine) error {
	var verrs model.ValidationErrors
	if tenantID == "" {
		verrs = append(verrs, model.ValidationError{Code: model.CodeInvalidInput, EntryID: entryID, Description: "tenant is required"})
	}
	if date.IsZero() {
		verrs = append(verrs, model.ValidationError{Code: model.CodeInvalidInput, EntryID: entryID, Description: "entry date is required"})
	}

	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.AccountID)
	}
	var accounts map[string]model.Account
	if err := retry.Do(ctx, s.log, "load accounts", func() error {
		var err error
		accounts, err = s.store.AccountsByID(ctx, ids)
		return err
	}); err != nil {
		return fmt.Errorf("loading accounts: %w", err)
	}

	verrs = append(verrs, ValidateLines(tenantID, entryID, lines, accounts)...)
	if len(verrs) > 0 {
		return verrs
	}
	return nil
}

// lockOpenPeriod finds the period covering date, locks it and re-reads its
// state under the lock. A closed period yields ClosedPeriod with the period
// returned for context.
func (s *Service) lockOpenPeriod(ctx context.Context, tenantID string, date time.Time) (model.AccountingPeriod, func(), error) {
	period, err := s.periods.PeriodFor(ctx, tenantID, date)
	if err != nil {
		return model.AccountingPeriod{}, nil, err
	}
	unlock := s.periods.Lock(tenantID, period.ID)

	period, err = s.periods.PeriodFor(ctx, tenantID, date)
	if err != nil {
		unlock()
		return model.AccountingPeriod{}, nil, err
	}
	if period.IsClosed {
		unlock()
		return period, nil, &model.StateError{Code: model.CodeClosedPeriod, Entity: "accounting_period", ID: period.ID}
	}
	return period, unlock, nil
}
