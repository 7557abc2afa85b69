package importer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chaseHeader = "Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\n"

func parseChaseFixture(t *testing.T) []Row {
	t.Helper()
	f, err := os.Open("../../testdata/chase_checking.csv")
	require.NoError(t, err)
	defer f.Close()

	rows, err := (&ChaseParser{}).Parse(f, "USD")
	require.NoError(t, err)
	return rows
}

func TestChaseParser_Parse(t *testing.T) {
	rows := parseChaseFixture(t)
	require.Len(t, rows, 6)

	// First: GITHUB subscription
	assert.Equal(t, "GITHUB *PRO SUBSCRIPTION", rows[0].Description)
	assert.Equal(t, int64(-400), rows[0].Amount)
	assert.Equal(t, "USD", rows[0].Currency)
	assert.Equal(t, "ACH_DEBIT", rows[0].Type)
	assert.Equal(t, 2025, rows[0].Date.Year())
	assert.Equal(t, 1, int(rows[0].Date.Month()))
	assert.Equal(t, 3, rows[0].Date.Day())

	// Fourth: ACME income (positive)
	assert.Equal(t, "ACME CONSULTING INVOICE 1042", rows[3].Description)
	assert.Equal(t, int64(350000), rows[3].Amount)
}

func TestChaseParser_DateParsing(t *testing.T) {
	rows := parseChaseFixture(t)

	// Jan 22
	last := rows[5]
	assert.Equal(t, 2025, last.Date.Year())
	assert.Equal(t, 1, int(last.Date.Month()))
	assert.Equal(t, 22, last.Date.Day())
}

func TestChaseParser_NegativePositiveAmounts(t *testing.T) {
	for _, row := range parseChaseFixture(t) {
		if row.Description == "ACME CONSULTING INVOICE 1042" {
			assert.Positive(t, row.Amount)
		} else {
			assert.Negative(t, row.Amount, "expected negative for %s", row.Description)
		}
	}
}

func TestChaseParser_EmptyFile(t *testing.T) {
	rows, err := (&ChaseParser{}).Parse(strings.NewReader(chaseHeader), "USD")
	require.NoError(t, err)
	assert.Nil(t, rows)
}

func TestChaseParser_Errors(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want string
	}{
		{"bad date", "DEBIT,NOTADATE,desc,-4.00,ACH_DEBIT,100.00,\n", "parsing date"},
		{"bad amount", "DEBIT,01/03/2025,desc,NOTANUMBER,ACH_DEBIT,100.00,\n", "parsing amount"},
		{"sub-cent amount", "DEBIT,01/03/2025,desc,-4.001,ACH_DEBIT,100.00,\n", "parsing amount"},
		{"short row", "DEBIT,01/03/2025,desc\n", "reading chase CSV"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&ChaseParser{}).Parse(strings.NewReader(chaseHeader+tt.row), "USD")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestChaseParser_Format(t *testing.T) {
	p := &ChaseParser{}
	assert.Equal(t, "chase", p.Format())
}

func TestChaseParser_Reference(t *testing.T) {
	rows := parseChaseFixture(t)

	// Reference format: chase_YYYYMMDD_<prefix>
	assert.Equal(t, "chase_20250103_GITHUBPROS", rows[0].Reference)
}

func TestChaseParser_SameDayRepeatsGetDistinctReferences(t *testing.T) {
	data := chaseHeader +
		"DEBIT,01/06/2025,COFFEE SHOP DOWNTOWN,-3.50,DEBIT_CARD,100.00,\n" +
		"DEBIT,01/06/2025,COFFEE SHOP DOWNTOWN,-3.50,DEBIT_CARD,96.50,\n"
	rows, err := (&ChaseParser{}).Parse(strings.NewReader(data), "USD")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "chase_20250106_COFFEESHOP", rows[0].Reference)
	assert.Equal(t, "chase_20250106_COFFEESHOP_2", rows[1].Reference)
}

func TestGenericParser_Parse(t *testing.T) {
	f, err := os.Open("../../testdata/generic_bank.csv")
	require.NoError(t, err)
	defer f.Close()

	rows, err := (&GenericParser{}).Parse(f, "EUR")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "TX-0002", rows[1].Reference)
	assert.Equal(t, int64(350000), rows[1].Amount)
	assert.Equal(t, "EUR", rows[1].Currency)
	assert.Equal(t, "USD", rows[2].Currency)
	assert.Equal(t, int64(-12000), rows[2].Amount)
	assert.Equal(t, 12, rows[2].Date.Day())
}

func TestGenericParser_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"missing column", "date,amount,description\n2025-01-01,1.00,x\n", `missing column "reference"`},
		{"bad date", "date,amount,description,reference\n01/01/2025,1.00,x,R1\n", "parsing date"},
		{"bad amount", "date,amount,description,reference\n2025-01-01,abc,x,R1\n", "parsing amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&GenericParser{}).Parse(strings.NewReader(tt.data), "EUR")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGenericParser_ReorderedColumns(t *testing.T) {
	data := "Reference, Description, Amount, Date\nR9, Rent, -950.00, 2025-02-01\n"
	rows, err := (&GenericParser{}).Parse(strings.NewReader(data), "EUR")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "R9", rows[0].Reference)
	assert.Equal(t, "Rent", rows[0].Description)
	assert.Equal(t, int64(-95000), rows[0].Amount)
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("nonexistent"))
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&ChaseParser{})
	p := r.Get("chase")
	require.NotNil(t, p)
	assert.Equal(t, "chase", p.Format())
}

func TestRegistry_CaseInsensitive(t *testing.T) {
	r := NewRegistry()
	r.Register(&ChaseParser{})
	assert.NotNil(t, r.Get("Chase"))
	assert.NotNil(t, r.Get("CHASE"))
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.NotNil(t, r.Get("chase"))
	assert.NotNil(t, r.Get("generic"))
	assert.Equal(t, []string{"chase", "generic"}, r.Formats())
}

func TestScan_FindsCSVs(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.MkdirAll(importDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(importDir, "bank.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "other.txt"), []byte("data"), 0o644))

	files, err := Scan(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, "bank.csv", files[0].Name)
}

func TestScan_IgnoresProcessedDir(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	processedDir := filepath.Join(importDir, "processed")
	require.NoError(t, os.MkdirAll(processedDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(importDir, "new.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(processedDir, "old.csv"), []byte("data"), 0o644))

	files, err := Scan(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, "new.csv", files[0].Name)
}

func TestScan_EmptyDir(t *testing.T) {
	dir := t.TempDir()
	files, err := Scan(dir)
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.MkdirAll(importDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "bank.csv"), []byte("data"), 0o644))

	err := MarkProcessed(dir, "bank.csv")
	require.NoError(t, err)

	// Source gone.
	_, err = os.Stat(filepath.Join(importDir, "bank.csv"))
	assert.True(t, os.IsNotExist(err))

	// Destination exists.
	_, err = os.Stat(filepath.Join(dir, "import", "processed", "bank.csv"))
	assert.NoError(t, err)
}

func TestMarkProcessed_CreatesDir(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.MkdirAll(importDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "a.csv"), []byte("data"), 0o644))

	err := MarkProcessed(dir, "a.csv")
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, "import", "processed"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
