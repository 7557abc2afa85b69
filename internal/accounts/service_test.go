package accounts

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/audit"
	"github.com/cleared-dev/ledger/internal/logging"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

const tenant = "acme"

func newTestService(t *testing.T) (*Service, *store.Store, *audit.MemorySink) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	mem := &audit.MemorySink{}
	rec := audit.NewRecorder(mem, st, logging.Discard())
	return NewService(st, rec, logging.Discard()), st, mem
}

func TestCreateAccount(t *testing.T) {
	svc, _, mem := newTestService(t)
	ctx := context.Background()

	a, err := svc.CreateAccount(ctx, CreateAccountParams{
		TenantID: tenant, Number: "1010", Name: "Checking", Type: model.AccountTypeAsset, Actor: "alice",
	})
	require.NoError(t, err)
	assert.True(t, a.IsActive)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, []string{audit.ActionAccountCreated}, mem.Actions())

	got, err := svc.ByNumber(ctx, tenant, "1010")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
}

func TestCreateAccount_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	asset, err := svc.CreateAccount(ctx, CreateAccountParams{TenantID: tenant, Number: "1000", Name: "Cash", Type: model.AccountTypeAsset})
	require.NoError(t, err)
	liab, err := svc.CreateAccount(ctx, CreateAccountParams{TenantID: tenant, Number: "2000", Name: "Liabilities", Type: model.AccountTypeLiability})
	require.NoError(t, err)

	tests := []struct {
		name   string
		params CreateAccountParams
		want   model.Code
	}{
		{
			name:   "duplicate number",
			params: CreateAccountParams{TenantID: tenant, Number: "1000", Name: "Again", Type: model.AccountTypeAsset},
			want:   model.CodeDuplicateNumber,
		},
		{
			name:   "unknown type",
			params: CreateAccountParams{TenantID: tenant, Number: "9000", Name: "Odd", Type: "cash"},
			want:   model.CodeInvalidAccountType,
		},
		{
			name:   "expense under asset",
			params: CreateAccountParams{TenantID: tenant, Number: "5000", Name: "Rent", Type: model.AccountTypeExpense, ParentID: asset.ID},
			want:   model.CodeInvalidParentType,
		},
		{
			name:   "missing parent",
			params: CreateAccountParams{TenantID: tenant, Number: "1100", Name: "Sub", Type: model.AccountTypeAsset, ParentID: "nope"},
			want:   model.CodeUnknownAccount,
		},
		{
			name:   "parent in another tenant",
			params: CreateAccountParams{TenantID: "globex", Number: "1100", Name: "Sub", Type: model.AccountTypeAsset, ParentID: asset.ID},
			want:   model.CodeUnknownAccount,
		},
		{
			name:   "missing name",
			params: CreateAccountParams{TenantID: tenant, Number: "1300", Type: model.AccountTypeAsset},
			want:   model.CodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateAccount(ctx, tt.params)
			require.Error(t, err)
			assert.True(t, model.HasCode(err, tt.want), "got %v", err)
		})
	}

	// Equity may sit under a liability: same group.
	_, err = svc.CreateAccount(ctx, CreateAccountParams{TenantID: tenant, Number: "3000", Name: "Equity", Type: model.AccountTypeEquity, ParentID: liab.ID})
	assert.NoError(t, err)
}

func TestCreateAccount_ReportsEveryViolation(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.CreateAccount(context.Background(), CreateAccountParams{TenantID: tenant, Type: "cash", ParentID: "nope"})

	var verrs model.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.True(t, verrs.Has(model.CodeInvalidInput))
	assert.True(t, verrs.Has(model.CodeInvalidAccountType))
	assert.True(t, verrs.Has(model.CodeUnknownAccount))
}

func TestImportChartAndBalances(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	f, err := os.Open("../../testdata/chart-of-accounts.csv")
	require.NoError(t, err)
	defer f.Close()
	rows, err := ReadChart(f)
	require.NoError(t, err)

	n, err := svc.ImportChart(ctx, tenant, rows, "alice")
	require.NoError(t, err)
	assert.Equal(t, len(rows), n)

	n, err = svc.ImportChart(ctx, tenant, rows, "alice")
	require.NoError(t, err)
	assert.Zero(t, n, "existing numbers are skipped")

	checking, err := svc.ByNumber(ctx, tenant, "1010")
	require.NoError(t, err)
	assert.NotEmpty(t, checking.ParentID)

	clearing, err := svc.ClearingAccounts(ctx, tenant, "chase-checking")
	require.NoError(t, err)
	require.Len(t, clearing, 1)
	assert.Equal(t, checking.ID, clearing[0].ID)

	revenue, err := svc.ByNumber(ctx, tenant, "4010")
	require.NoError(t, err)

	// Post through the store directly; the journal service has its own tests.
	p := model.AccountingPeriod{ID: "p1", TenantID: tenant, Name: "2025-03", StartDate: day("2025-03-01"), EndDate: day("2025-03-31")}
	require.NoError(t, st.InsertPeriod(ctx, p))
	e := &model.JournalEntry{
		ID: "e1", TenantID: tenant, PeriodID: "p1", Date: day("2025-03-10"),
		Lines: []model.JournalLine{
			{LineNo: 1, AccountID: checking.ID, Debit: 5000},
			{LineNo: 2, AccountID: revenue.ID, Credit: 5000},
		},
	}
	require.NoError(t, st.CommitPosting(ctx, e, "k1"))

	bal, err := svc.GetBalance(ctx, tenant, revenue.ID, day("2025-03-31"))
	require.NoError(t, err)
	assert.Equal(t, int64(5000), bal, "revenue is credit-normal")

	bal, err = svc.GetBalance(ctx, tenant, checking.ID, day("2025-03-09"))
	require.NoError(t, err)
	assert.Zero(t, bal)

	cur, err := svc.CurrentBalance(ctx, tenant, checking.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), cur)

	_, err = svc.RebuildBalances(ctx, tenant, "alice")
	require.NoError(t, err)
	cur, err = svc.CurrentBalance(ctx, tenant, revenue.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), cur)
}

func TestDeactivateAndByType(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.ImportChart(ctx, tenant, DefaultChart("llc_single_member", ""), "alice")
	require.NoError(t, err)

	expenses, err := svc.ByType(ctx, tenant, model.AccountTypeExpense)
	require.NoError(t, err)
	assert.Len(t, expenses, 6)

	require.NoError(t, svc.Deactivate(ctx, tenant, expenses[0].ID))
	got, err := svc.Get(ctx, tenant, expenses[0].ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	resolved, err := svc.Resolve(ctx, tenant, expenses[0].ID)
	require.NoError(t, err)
	assert.Equal(t, expenses[0].Number, resolved.Number)

	err = svc.Deactivate(ctx, tenant, "missing")
	assert.True(t, model.HasCode(err, model.CodeNotFound))
}

func TestSaveLoadChart(t *testing.T) {
	root := t.TempDir()
	rows := DefaultChart("llc_single_member", "chk")
	require.NoError(t, SaveChart(root, rows))

	got, err := LoadChart(root)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func day(s string) time.Time {
	d, err := model.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}
