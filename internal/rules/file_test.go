package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/model"
)

const rulesYAML = `
rules:
  - name: github
    priority: 10
    conditions:
      - field: description
        op: contains
        value: github
      - field: abs_amount
        op: between
        min: "1.00"
        max: "50.00"
    action:
      suggest_account: "5010"
      score_delta: 10
      amount_tolerance: "0.50"
  - name: march only
    priority: 20
    active: false
    conditions:
      - field: date
        op: date_between
        from: "2025-03-01"
        to: "2025-03-31"
      - field: amount
        op: lt
        value: "0"
    action:
      auto_confirm_threshold: 80
`

func TestFile_Rules(t *testing.T) {
	f, err := ReadFile(strings.NewReader(rulesYAML))
	require.NoError(t, err)

	rs, err := f.Rules("acme", "USD", func(number string) (string, error) {
		if number == "5010" {
			return "software", nil
		}
		return "", fmt.Errorf("no account %s", number)
	})
	require.NoError(t, err)
	require.Len(t, rs, 2)

	gh := rs[0]
	assert.Equal(t, "acme", gh.TenantID)
	assert.True(t, gh.IsActive)
	assert.Equal(t, model.RangeValue(100, 5000), gh.Conditions[1].Value)
	assert.Equal(t, "software", gh.Action.SuggestAccountID)
	require.NotNil(t, gh.Action.AmountTolerance)
	assert.Equal(t, int64(50), *gh.Action.AmountTolerance)
	assert.Empty(t, Validate(gh))

	march := rs[1]
	assert.False(t, march.IsActive)
	assert.Equal(t, model.KindDateRange, march.Conditions[0].Value.Kind)
	assert.Equal(t, model.IntValue(0), march.Conditions[1].Value)
	require.NotNil(t, march.Action.AutoConfirmThreshold)
	assert.Equal(t, 80, *march.Action.AutoConfirmThreshold)
	assert.Empty(t, Validate(march))

	m, ok := Evaluate(rs, Subject{Description: "GitHub, Inc.", Amount: -400})
	assert.True(t, ok)
	assert.Equal(t, "github", m.RuleName)
}

func TestFile_Errors(t *testing.T) {
	resolve := func(string) (string, error) { return "", fmt.Errorf("unknown") }

	_, err := ReadFile(strings.NewReader("rules:\n  - name: x\n    weight: 3\n"))
	assert.Error(t, err)

	f := File{Rules: []FileRule{{Name: "x", Action: FileAction{SuggestAccount: "9999"}}}}
	_, err = f.Rules("acme", "USD", resolve)
	assert.ErrorContains(t, err, "suggested account 9999")

	f = File{Rules: []FileRule{{Name: "x", Conditions: []FileCondition{{Field: "amount", Op: "gt", Value: "abc"}}}}}
	_, err = f.Rules("acme", "USD", resolve)
	assert.Error(t, err)
}

func TestLoadFile_Missing(t *testing.T) {
	f, err := LoadFile(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, f.Rules)

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "rules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, RulesFile), []byte(rulesYAML), 0o644))
	f, err = LoadFile(root)
	require.NoError(t, err)
	assert.Len(t, f.Rules, 2)
}
