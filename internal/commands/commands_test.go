package commands_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/rules"
)

const chaseStatement = "../../testdata/chase_checking.csv"

// ledger runs a command against dir as tenant acme.
func ledger(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := runLedger(t, append(args, "--dir", dir, "--tenant", "acme", "--actor", "tester")...)
	require.NoError(t, err, out)
	return out
}

func ledgerErr(t *testing.T, dir string, args ...string) error {
	t.Helper()
	_, err := runLedger(t, append(args, "--dir", dir, "--tenant", "acme", "--actor", "tester")...)
	require.Error(t, err)
	return err
}

func TestReconciliationWorkflow(t *testing.T) {
	dir := initProject(t)

	out := ledger(t, dir, "period", "create", "--name", "2025-01", "--start", "2025-01-01", "--end", "2025-01-31")
	assert.Contains(t, out, "Created period 2025-01 2025-01-01..2025-01-31")

	out = ledger(t, dir, "entry", "add", "--date", "2025-01-03", "--description", "GITHUB *PRO SUBSCRIPTION",
		"--debit", "5020", "--credit", "1010", "--amount", "4.00")
	assert.Contains(t, out, "Posted entry 2025-01-001")
	out = ledger(t, dir, "entry", "add", "--date", "2025-01-10", "--description", "ACME CONSULTING INVOICE 1042",
		"--debit", "1010", "--credit", "4010", "--amount", "3500.00")
	assert.Contains(t, out, "Posted entry 2025-01-002")

	out = ledger(t, dir, "account", "balance", "1010", "--as-of", "2025-01-31")
	assert.Contains(t, out, "3496.00 USD")

	out = ledger(t, dir, "import", chaseStatement, "--bank-account", "chase")
	assert.Contains(t, out, "Imported 6 transactions, skipped 0")
	out = ledger(t, dir, "import", chaseStatement, "--bank-account", "chase")
	assert.Contains(t, out, "Imported 0 transactions, skipped 6")

	out = ledger(t, dir, "reconcile", "run")
	assert.Contains(t, out, "Processed 6 transactions")
	assert.Regexp(t, `confirmed\s+2`, out)
	assert.Regexp(t, `no_candidates\s+4`, out)

	out = ledger(t, dir, "reconcile", "matches", "--status", "confirmed")
	assert.Contains(t, out, "exact")

	out = ledger(t, dir, "reconcile", "sign-off", "--bank-account", "chase", "--through", "2025-01-31")
	assert.Contains(t, out, "Reconciled 2 transactions through 2025-01-31")

	out = ledger(t, dir, "reconcile", "stats", "--bank-account", "chase")
	assert.Contains(t, out, "Unmatched:     4")
	assert.Contains(t, out, "Reconciled:    2")

	out = ledger(t, dir, "entry", "trial-balance", "--as-of", "2025-01-31")
	assert.Contains(t, out, "3504.00")

	out = ledger(t, dir, "period", "check", "2025-01")
	assert.Contains(t, out, "Ready to close: true")
	out = ledger(t, dir, "period", "close", "2025-01", "--snapshot")
	assert.Contains(t, out, "Closed period 2025-01")
	data, err := os.ReadFile(filepath.Join(dir, "exports", "journal-2025-01.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "2025-01-002")

	err = ledgerErr(t, dir, "entry", "add", "--date", "2025-01-20", "--debit", "5030", "--credit", "1010", "--amount", "1.00")
	assert.True(t, model.HasCode(err, model.CodeClosedPeriod), err.Error())
}

func TestEntryPostDraftAndVoid(t *testing.T) {
	dir := initProject(t)
	now := time.Now().UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	today := now.Format(model.DateFormat)
	ledger(t, dir, "period", "create", "--start", first.Format(model.DateFormat), "--end", last.Format(model.DateFormat))

	entryFile := filepath.Join(dir, "entries", "invoice.yaml")
	require.NoError(t, os.WriteFile(entryFile, []byte(`date: "`+today+`"
description: Invoice 7
lines:
  - account: "1200"
    debit: "250.00"
  - account: "4010"
    credit: "250.00"
`), 0o644))

	out := ledger(t, dir, "entry", "post", "-f", entryFile, "--key", "inv-7")
	assert.Contains(t, out, "250.00")
	replay := ledger(t, dir, "entry", "post", "-f", entryFile, "--key", "inv-7")
	assert.Equal(t, out, replay, "same key returns the first posting")

	list := ledger(t, dir, "entry", "list", "--status", "posted")
	assert.Contains(t, list, "Invoice 7")

	entries := ledger(t, dir, "entry", "export")
	assert.Contains(t, entries, "Invoice 7")

	// Pull the entry id from the list output: "ID NUMBER ..." then one row.
	var entryID string
	for _, f := range splitFields(list) {
		if len(f) == 36 {
			entryID = f
			break
		}
	}
	require.NotEmpty(t, entryID)

	out = ledger(t, dir, "entry", "void", entryID)
	assert.Contains(t, out, "Voided "+entryID)
	err := ledgerErr(t, dir, "entry", "void", entryID)
	assert.True(t, model.HasCode(err, model.CodeNotPosted), err.Error())

	draftFile := filepath.Join(dir, "entries", "draft.yaml")
	require.NoError(t, os.WriteFile(draftFile, []byte(`date: "`+today+`"
description: half done
lines:
  - account: "5030"
    debit: "10.00"
`), 0o644))
	out = ledger(t, dir, "entry", "draft", "-f", draftFile)
	require.Contains(t, out, "Saved draft ")
	draftID := out[len("Saved draft ") : len(out)-1]

	out = ledger(t, dir, "entry", "discard", draftID)
	assert.Contains(t, out, "Discarded draft "+draftID)
	err = ledgerErr(t, dir, "entry", "discard", draftID)
	assert.True(t, model.HasCode(err, model.CodeNotFound), err.Error())
}

func TestEntryAdd_Rejections(t *testing.T) {
	dir := initProject(t)
	ledger(t, dir, "period", "create", "--start", "2025-01-01", "--end", "2025-01-31")

	tests := []struct {
		name string
		args []string
		code model.Code
	}{
		{"no period", []string{"--date", "2024-12-31", "--debit", "5030", "--credit", "1010", "--amount", "1.00"}, model.CodeNoPeriod},
		{"sub-cent amount", []string{"--date", "2025-01-05", "--debit", "5030", "--credit", "1010", "--amount", "1.005"}, ""},
		{"unknown account", []string{"--date", "2025-01-05", "--debit", "9999", "--credit", "1010", "--amount", "1.00"}, model.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ledgerErr(t, dir, append([]string{"entry", "add"}, tt.args...)...)
			if tt.code != "" {
				assert.True(t, model.HasCode(err, tt.code), err.Error())
			}
		})
	}
}

func TestRuleCommands(t *testing.T) {
	dir := initProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, rules.RulesFile), []byte(`
rules:
  - name: saas
    priority: 10
    conditions:
      - field: description
        op: contains
        value: github
    action:
      suggest_account: "5020"
      score_delta: 5
`), 0o644))

	out := ledger(t, dir, "rule", "import")
	assert.Contains(t, out, "Created 1 rules, 0 already present")
	out = ledger(t, dir, "rule", "import")
	assert.Contains(t, out, "Created 0 rules, 1 already present")

	out = ledger(t, dir, "rule", "disable", "saas")
	assert.Contains(t, out, "Rule saas active: false")
	out = ledger(t, dir, "rule", "list")
	assert.Contains(t, out, "saas")
	assert.Contains(t, out, "+5")

	err := ledgerErr(t, dir, "rule", "enable", "nope")
	assert.True(t, model.HasCode(err, model.CodeNotFound), err.Error())
}

func TestImport_PendingDirectory(t *testing.T) {
	dir := initProject(t)
	data, err := os.ReadFile(chaseStatement)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "jan.csv"), data, 0o644))

	out := ledger(t, dir, "import", "--bank-account", "chase")
	assert.Contains(t, out, "Imported 6 transactions")
	_, err = os.Stat(filepath.Join(dir, "import", "processed", "jan.csv"))
	assert.NoError(t, err)

	err = ledgerErr(t, dir, "import", chaseStatement, "--format", "ofx")
	assert.Contains(t, err.Error(), `unknown format "ofx"`)
}

func TestAuditFlush_Empty(t *testing.T) {
	dir := initProject(t)
	out := ledger(t, dir, "audit", "flush")
	assert.Contains(t, out, "Delivered 0 audit records")
}

func splitFields(s string) []string {
	var out []string
	start := -1
	for i, r := range s + " " {
		if r == ' ' || r == '\t' || r == '\n' {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	return out
}
