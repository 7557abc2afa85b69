package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/id"
	"github.com/cleared-dev/ledger/internal/model"
)

const tenant = "acme"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func day(s string) time.Time {
	d, err := model.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fixture struct {
	bank, revenue, period string
}

func seed(t *testing.T, s *Store) fixture {
	t.Helper()
	ctx := context.Background()
	f := fixture{bank: id.New(), revenue: id.New(), period: id.New()}
	require.NoError(t, s.InsertAccount(ctx, model.Account{
		ID: f.bank, TenantID: tenant, Number: "1010", Name: "Checking",
		Type: model.AccountTypeAsset, IsActive: true, BankAccountID: "chk",
	}))
	require.NoError(t, s.InsertAccount(ctx, model.Account{
		ID: f.revenue, TenantID: tenant, Number: "4000", Name: "Revenue",
		Type: model.AccountTypeRevenue, IsActive: true,
	}))
	require.NoError(t, s.InsertPeriod(ctx, model.AccountingPeriod{
		ID: f.period, TenantID: tenant, Name: "2025-03", StartDate: day("2025-03-01"), EndDate: day("2025-03-31"),
	}))
	return f
}

func entry(f fixture, date string, amount int64) *model.JournalEntry {
	return &model.JournalEntry{
		ID: id.New(), TenantID: tenant, PeriodID: f.period, Date: day(date), Description: "Invoice 42",
		CreatedBy: "alice", PostedAt: time.Now(),
		Lines: []model.JournalLine{
			{LineNo: 1, AccountID: f.bank, Debit: amount},
			{LineNo: 2, AccountID: f.revenue, Credit: amount},
		},
	}
}

func TestOpenCreatesSchema(t *testing.T) {
	s := newTestStore(t)
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'journal_entries'`).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInsertAccountDuplicateNumber(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	err := s.InsertAccount(context.Background(), model.Account{
		ID: id.New(), TenantID: tenant, Number: "1010", Name: "Other", Type: model.AccountTypeAsset,
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	// Same number in another tenant is fine.
	err = s.InsertAccount(context.Background(), model.Account{
		ID: id.New(), TenantID: "globex", Number: "1010", Name: "Other", Type: model.AccountTypeAsset,
	})
	assert.NoError(t, err)
}

func TestGetAccountNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetAccount(context.Background(), tenant, "missing")
	assert.True(t, model.HasCode(err, model.CodeNotFound))
}

func TestCommitPostingNumbersAndBalances(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	first := entry(f, "2025-03-10", 10000)
	require.NoError(t, s.CommitPosting(ctx, first, "key-1"))
	second := entry(f, "2025-03-11", 2500)
	require.NoError(t, s.CommitPosting(ctx, second, "key-2"))

	assert.Equal(t, "2025-03-001", first.Number)
	assert.Equal(t, "2025-03-002", second.Number)

	bank, err := s.GetAccount(ctx, tenant, f.bank)
	require.NoError(t, err)
	assert.Equal(t, int64(12500), bank.CurrentBalance)

	raw, err := s.AccountBalance(ctx, tenant, f.revenue, day("2025-03-10"))
	require.NoError(t, err)
	assert.Equal(t, int64(-10000), raw)

	got, found, err := s.EntryByIdempotencyKey(ctx, tenant, "key-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, first.ID, got.ID)
	assert.Len(t, got.Lines, 2)
	assert.Equal(t, model.StatusPosted, got.Status)

	err = s.CommitPosting(ctx, entry(f, "2025-03-12", 1), "key-1")
	assert.ErrorIs(t, err, ErrDuplicate)
	bank, err = s.GetAccount(ctx, tenant, f.bank)
	require.NoError(t, err)
	assert.Equal(t, int64(12500), bank.CurrentBalance, "rolled back posting leaves the cache alone")
}

func TestCommitVoidAndRebuild(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	orig := entry(f, "2025-03-10", 10000)
	require.NoError(t, s.CommitPosting(ctx, orig, "key-1"))

	rev := entry(f, "2025-03-20", 0)
	rev.ReversalOf = orig.ID
	rev.Lines = []model.JournalLine{
		{LineNo: 1, AccountID: f.bank, Credit: 10000},
		{LineNo: 2, AccountID: f.revenue, Debit: 10000},
	}
	require.NoError(t, s.CommitVoid(ctx, orig.ID, rev, time.Now()))

	got, err := s.GetEntry(ctx, tenant, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusVoid, got.Status)
	assert.Equal(t, rev.ID, got.ReversedBy)

	err = s.CommitVoid(ctx, orig.ID, entry(f, "2025-03-21", 1), time.Now())
	assert.True(t, model.HasCode(err, model.CodeNotPosted))

	_, err = s.db.Exec(`UPDATE accounts SET current_balance = 999`)
	require.NoError(t, err)
	n, err := s.RebuildBalances(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	bank, err := s.GetAccount(ctx, tenant, f.bank)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bank.CurrentBalance)
}

func TestDraftsBlockClose(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	draft := entry(f, "2025-03-15", 500)
	require.NoError(t, s.SaveDraft(ctx, *draft))

	_, err := s.ClosePeriod(ctx, tenant, f.period, "bob", time.Now())
	var serr *model.StateError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, model.CodeUnpostedDrafts, serr.Code)
	assert.Equal(t, []string{draft.ID}, serr.Offending)

	require.NoError(t, s.DeleteDraft(ctx, tenant, draft.ID))
	_, err = s.GetEntry(ctx, tenant, draft.ID)
	assert.True(t, model.HasCode(err, model.CodeNotFound))

	p, err := s.ClosePeriod(ctx, tenant, f.period, "bob", time.Now())
	require.NoError(t, err)
	assert.True(t, p.IsClosed)
	assert.Equal(t, "bob", p.ClosedBy)

	_, err = s.ClosePeriod(ctx, tenant, f.period, "bob", time.Now())
	assert.True(t, model.HasCode(err, model.CodeAlreadyClosed))
}

func TestWritesRefusedOnceAnotherHandleClosesPeriod(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	poster, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { poster.Close() })
	closer, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { closer.Close() })

	f := seed(t, poster)
	ctx := context.Background()
	orig := entry(f, "2025-03-10", 700)
	require.NoError(t, poster.CommitPosting(ctx, orig, "key-1"))

	_, err = closer.ClosePeriod(ctx, tenant, f.period, "bob", time.Now())
	require.NoError(t, err)

	late := entry(f, "2025-03-11", 300)
	err = poster.CommitPosting(ctx, late, "key-2")
	assert.True(t, model.HasCode(err, model.CodeClosedPeriod), "post: %v", err)
	_, err = poster.GetEntry(ctx, tenant, late.ID)
	assert.True(t, model.HasCode(err, model.CodeNotFound), "rejected entry must not be stored")

	err = poster.SaveDraft(ctx, *entry(f, "2025-03-12", 100))
	assert.True(t, model.HasCode(err, model.CodeClosedPeriod), "draft: %v", err)

	rev := entry(f, "2025-03-20", 0)
	rev.ReversalOf = orig.ID
	rev.Lines = []model.JournalLine{
		{LineNo: 1, AccountID: f.bank, Credit: 700},
		{LineNo: 2, AccountID: f.revenue, Debit: 700},
	}
	err = poster.CommitVoid(ctx, orig.ID, rev, time.Now())
	assert.True(t, model.HasCode(err, model.CodeClosedPeriod), "void: %v", err)
	got, err := poster.GetEntry(ctx, tenant, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPosted, got.Status)

	bank, err := poster.GetAccount(ctx, tenant, f.bank)
	require.NoError(t, err)
	assert.Equal(t, int64(700), bank.CurrentBalance)
}

func TestPostingSavedDraftReplacesIt(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	e := entry(f, "2025-03-15", 500)
	require.NoError(t, s.SaveDraft(ctx, *e))
	require.NoError(t, s.CommitPosting(ctx, e, "key-1"))

	got, err := s.GetEntry(ctx, tenant, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPosted, got.Status)
	assert.Len(t, got.Lines, 2)

	err = s.SaveDraft(ctx, *e)
	assert.True(t, model.HasCode(err, model.CodeNotDraft))
}

func TestInsertBankTransactionsSkipsDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tx := model.BankTransaction{
		ID: id.New(), TenantID: tenant, BankAccountID: "chk", Date: day("2025-03-10"),
		Amount: 10000, Currency: "EUR", Description: "ACME PAYMENT", Reference: "ref-1",
	}

	inserted, skipped, err := s.InsertBankTransactions(ctx, []model.BankTransaction{tx})
	require.NoError(t, err)
	assert.Len(t, inserted, 1)
	assert.Empty(t, skipped)

	tx.ID = id.New()
	inserted, skipped, err = s.InsertBankTransactions(ctx, []model.BankTransaction{tx})
	require.NoError(t, err)
	assert.Empty(t, inserted)
	assert.Len(t, skipped, 1)

	list, err := s.ListBankTransactions(ctx, BankFilter{TenantID: tenant, Status: model.BankUnmatched})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ref-1", list[0].Reference)
}

func TestMatchLifecycle(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	e := entry(f, "2025-03-10", 10000)
	require.NoError(t, s.CommitPosting(ctx, e, "key-1"))
	bt := model.BankTransaction{
		ID: id.New(), TenantID: tenant, BankAccountID: "chk", Date: day("2025-03-11"),
		Amount: 10000, Currency: "EUR", Reference: "ref-1",
	}
	_, _, err := s.InsertBankTransactions(ctx, []model.BankTransaction{bt})
	require.NoError(t, err)

	cands, err := s.FindCandidates(ctx, CandidateQuery{
		TenantID: tenant, BankAccountID: "chk", BankTransactionID: bt.ID,
		From: day("2025-03-06"), To: day("2025-03-16"), MinAmount: 10000, MaxAmount: 10000,
	})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, e.ID, cands[0].EntryID)
	assert.Equal(t, int64(10000), cands[0].Amount)

	m := model.ReconciliationMatch{
		ID: id.New(), TenantID: tenant, BankTransactionID: bt.ID, JournalEntryID: e.ID, JournalLineNo: 1,
		ConfidenceScore: 85, MatchType: model.MatchFuzzy, Status: model.MatchPending, CreatedAt: time.Now(),
	}
	ok, err := s.RecordMatches(ctx, tenant, bt.ID, []model.ReconciliationMatch{m})
	require.NoError(t, err)
	assert.True(t, ok)

	again := m
	again.ID = id.New()
	ok, err = s.RecordMatches(ctx, tenant, bt.ID, []model.ReconciliationMatch{again})
	require.NoError(t, err)
	assert.False(t, ok, "pending matches block a second run")

	resolved, err := s.ResolveMatch(ctx, tenant, m.ID, model.MatchConfirmed, "carol", time.Now())
	require.NoError(t, err)
	assert.Equal(t, m.ID, resolved.SupersedesID)
	assert.Equal(t, model.MatchConfirmed, resolved.Status)

	_, err = s.ResolveMatch(ctx, tenant, m.ID, model.MatchRejected, "carol", time.Now())
	assert.True(t, model.HasCode(err, model.CodeAlreadyResolved))

	got, err := s.GetBankTransaction(ctx, tenant, bt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BankReconciled, got.Status)

	all, err := s.ListMatches(ctx, MatchFilter{TenantID: tenant, BankTransactionID: bt.ID, IncludeSuperseded: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	st, err := s.Stats(ctx, tenant, "chk")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Reconciled)
	assert.Equal(t, 1, st.ConfirmedMatches)
	assert.Equal(t, 85, st.AverageConfirmScore)
}

func TestOutbox(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ParkAudit(ctx, `{"action":"x"}`, "disk full"))
	items, err := s.PendingAudit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Attempts)

	require.NoError(t, s.RetryAudit(ctx, items[0].ID, "still full"))
	items, err = s.PendingAudit(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, items[0].Attempts)
	assert.Equal(t, "still full", items[0].LastError)

	require.NoError(t, s.AckAudit(ctx, items[0].ID))
	items, err = s.PendingAudit(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestClassify(t *testing.T) {
	busy := sqlite3.Error{Code: sqlite3.ErrBusy}
	err := classify("post", busy)
	assert.True(t, model.IsTransient(err))

	unique := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
	assert.ErrorIs(t, classify("insert", unique), ErrDuplicate)

	plain := errors.New("boom")
	assert.Same(t, plain, classify("x", plain))
	assert.NoError(t, classify("x", nil))
}
