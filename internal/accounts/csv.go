package accounts

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/cleared-dev/ledger/internal/model"
)

// ChartRow is one line of chart-of-accounts.csv. Parents are referenced by
// number so a chart can be loaded into any tenant.
type ChartRow struct {
	Number        string
	Name          string
	Type          model.AccountType
	ParentNumber  string
	BankAccountID string
}

const (
	numFields   = 5
	colNumber   = 0
	colName     = 1
	colType     = 2
	colParent   = 3
	colBankAcct = 4
)

// ReadChart reads chart-of-accounts.csv.
func ReadChart(r io.Reader) ([]ChartRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var rows []ChartRow
	for i, rec := range records[1:] {
		row, err := UnmarshalRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteChart writes chart-of-accounts.csv.
func WriteChart(w io.Writer, rows []ChartRow) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"account_number", "account_name", "account_type", "parent_number", "bank_account_id"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, row := range rows {
		if err := cw.Write(MarshalRow(row)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalRow converts a ChartRow to a CSV row.
func MarshalRow(r ChartRow) []string {
	row := make([]string, numFields)
	row[colNumber] = r.Number
	row[colName] = r.Name
	row[colType] = string(r.Type)
	row[colParent] = r.ParentNumber
	row[colBankAcct] = r.BankAccountID
	return row
}

// UnmarshalRow converts a CSV row to a ChartRow.
func UnmarshalRow(record []string) (ChartRow, error) {
	if len(record) != numFields {
		return ChartRow{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}
	if record[colNumber] == "" {
		return ChartRow{}, fmt.Errorf("empty account_number")
	}
	t := model.AccountType(record[colType])
	if !t.Valid() {
		return ChartRow{}, fmt.Errorf("invalid account_type %q", record[colType])
	}
	return ChartRow{
		Number:        record[colNumber],
		Name:          record[colName],
		Type:          t,
		ParentNumber:  record[colParent],
		BankAccountID: record[colBankAcct],
	}, nil
}

// FromAccounts converts stored accounts to chart rows, resolving parent ids to
// numbers.
func FromAccounts(accts []model.Account) []ChartRow {
	numbers := make(map[string]string, len(accts))
	for _, a := range accts {
		numbers[a.ID] = a.Number
	}
	rows := make([]ChartRow, len(accts))
	for i, a := range accts {
		rows[i] = ChartRow{
			Number:        a.Number,
			Name:          a.Name,
			Type:          a.Type,
			ParentNumber:  numbers[a.ParentID],
			BankAccountID: a.BankAccountID,
		}
	}
	return rows
}
