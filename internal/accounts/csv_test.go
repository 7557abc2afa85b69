package accounts

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/model"
)

func TestRoundTrip(t *testing.T) {
	rows := []ChartRow{
		{Number: "1010", Name: "Business Checking", Type: model.AccountTypeAsset, BankAccountID: "chk"},
		{Number: "5020", Name: "Software & SaaS", Type: model.AccountTypeExpense},
	}

	var buf bytes.Buffer
	err := WriteChart(&buf, rows)
	require.NoError(t, err)

	got, err := ReadChart(&buf)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestParentNumber(t *testing.T) {
	rows := []ChartRow{
		{Number: "1000", Name: "Cash", Type: model.AccountTypeAsset},
		{Number: "1010", Name: "Checking", Type: model.AccountTypeAsset, ParentNumber: "1000"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteChart(&buf, rows))

	got, err := ReadChart(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Empty(t, got[0].ParentNumber)
	assert.Equal(t, "1000", got[1].ParentNumber)
}

func TestUnmarshalRow_Errors(t *testing.T) {
	_, err := UnmarshalRow([]string{"1010", "Checking"})
	assert.Error(t, err)

	_, err = UnmarshalRow([]string{"1010", "Checking", "cash", "", ""})
	assert.ErrorContains(t, err, "invalid account_type")

	_, err = UnmarshalRow([]string{"", "Checking", "asset", "", ""})
	assert.Error(t, err)
}

func TestDefaultChart(t *testing.T) {
	chart := DefaultChart("llc_single_member", "chk")
	require.NotEmpty(t, chart)

	numbers := make(map[string]ChartRow)
	for _, r := range chart {
		numbers[r.Number] = r
	}
	assert.Contains(t, numbers, "1010")
	assert.Contains(t, numbers, "4010")
	assert.Contains(t, numbers, "5020")
	assert.Equal(t, "chk", numbers["1010"].BankAccountID)

	for _, r := range chart {
		assert.True(t, r.Type.Valid(), r.Number)
		if r.ParentNumber != "" {
			parent, ok := numbers[r.ParentNumber]
			require.True(t, ok, "parent of %s must precede it", r.Number)
			assert.Equal(t, parent.Type.Group(), r.Type.Group())
		}
	}
}

func TestDefaultChart_UnknownEntityType(t *testing.T) {
	assert.Equal(t, DefaultChart("llc_single_member", ""), DefaultChart("unknown", ""))
}

func TestReadTestdata(t *testing.T) {
	f, err := os.Open("../../testdata/chart-of-accounts.csv")
	require.NoError(t, err)
	defer f.Close()

	rows, err := ReadChart(f)
	require.NoError(t, err)
	require.Len(t, rows, 8)
	assert.Equal(t, "1010", rows[1].Number)
	assert.Equal(t, "1000", rows[1].ParentNumber)
	assert.Equal(t, "chase-checking", rows[1].BankAccountID)
}

func TestFromAccounts(t *testing.T) {
	accts := []model.Account{
		{ID: "a", Number: "1000", Name: "Cash", Type: model.AccountTypeAsset},
		{ID: "b", Number: "1010", Name: "Checking", Type: model.AccountTypeAsset, ParentID: "a", BankAccountID: "chk"},
	}
	rows := FromAccounts(accts)
	require.Len(t, rows, 2)
	assert.Equal(t, "1000", rows[1].ParentNumber)
	assert.Equal(t, "chk", rows[1].BankAccountID)
}
