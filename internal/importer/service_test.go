package importer_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/audit"
	"github.com/cleared-dev/ledger/internal/importer"
	"github.com/cleared-dev/ledger/internal/logging"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

func newService(t *testing.T) (*importer.Service, *store.Store, *audit.MemorySink) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	log := logging.Discard()
	mem := &audit.MemorySink{}
	return importer.NewService(st, audit.NewRecorder(mem, st, log), log), st, mem
}

func TestImportBankTransactions_SkipsKnownReferences(t *testing.T) {
	ctx := context.Background()
	svc, st, mem := newService(t)

	rows := []importer.Row{
		{Date: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), Amount: -125000, Description: "Rent March", Reference: "R1"},
		{Date: time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), Amount: 5000, Description: "Refund", Reference: "R2"},
		{Date: time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), Amount: 5000, Description: "Refund", Reference: "R2"},
	}
	req := importer.ImportRequest{TenantID: "acme", BankAccountID: "chase-checking", Currency: "usd", Rows: rows, Actor: "alice"}

	res, err := svc.ImportBankTransactions(ctx, req)
	require.NoError(t, err)
	assert.Len(t, res.Inserted, 2)
	assert.Empty(t, res.Skipped)

	res, err = svc.ImportBankTransactions(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, res.Inserted)
	assert.Len(t, res.Skipped, 2)

	txs, err := st.ListBankTransactions(ctx, store.BankFilter{TenantID: "acme", BankAccountID: "chase-checking"})
	require.NoError(t, err)
	require.Len(t, txs, 2)
	for _, tx := range txs {
		assert.Equal(t, model.BankUnmatched, tx.Status)
		assert.Equal(t, "USD", tx.Currency)
		assert.NotEmpty(t, tx.ID)
	}
	assert.Equal(t, int64(-125000), txs[0].Amount)

	assert.Equal(t, []string{audit.ActionBankImported}, mem.Actions())
}

func TestImportBankTransactions_Validation(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.ImportBankTransactions(context.Background(), importer.ImportRequest{
		Rows: []importer.Row{{Amount: 100}},
	})
	require.Error(t, err)
	var verrs model.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	// tenant, bank account, reference, date, currency
	assert.Len(t, verrs, 5)
	assert.True(t, verrs.Has(model.CodeInvalidInput))
}

func TestImportBankTransactions_RejectsUnrepresentableAmount(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()

	_, err := svc.ImportBankTransactions(ctx, importer.ImportRequest{
		TenantID: "acme", BankAccountID: "chase-checking", Currency: "USD", Actor: "alice",
		Rows: []importer.Row{
			{Date: time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC), Amount: -400, Reference: "ok-1"},
			{Date: time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC), Amount: math.MinInt64, Reference: "min-1"},
		},
	})
	var verrs model.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 1)
	assert.Contains(t, verrs[0].Description, "row 2: amount out of range")

	txs, err := st.ListBankTransactions(ctx, store.BankFilter{TenantID: "acme"})
	require.NoError(t, err)
	assert.Empty(t, txs, "a rejected batch stores nothing")
}

func TestImportFile_UnknownFormat(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.ImportFile(context.Background(), "../../testdata/chase_checking.csv", "ofx", importer.ImportRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown format "ofx"`)
}

func TestImportPending_MovesFiles(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newService(t)

	root := t.TempDir()
	data, err := os.ReadFile("../../testdata/chase_checking.csv")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "import"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "import", "jan.csv"), data, 0o644))

	res, err := svc.ImportPending(ctx, root, "chase", importer.ImportRequest{
		TenantID: "acme", BankAccountID: "chase-checking", Currency: "USD", Actor: "alice",
	})
	require.NoError(t, err)
	assert.Len(t, res.Inserted, 6)

	_, err = os.Stat(filepath.Join(root, "import", "processed", "jan.csv"))
	assert.NoError(t, err)

	files, err := importer.Scan(root)
	require.NoError(t, err)
	assert.Empty(t, files)

	txs, err := st.ListBankTransactions(ctx, store.BankFilter{TenantID: "acme", BankAccountID: "chase-checking"})
	require.NoError(t, err)
	assert.Len(t, txs, 6)
}
