package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/money"
)

// Header is the CSV header of a journal export. One row per line.
const Header = "entry_number,date,status,line_no,account_number,account_name,description,debit,credit,reversal_of"

const (
	numFields  = 10
	colNumber  = 0
	colDate    = 1
	colStatus  = 2
	colLineNo  = 3
	colAcctNum = 4
	colAcctNm  = 5
	colDesc    = 6
	colDebit   = 7
	colCredit  = 8
	colRevOf   = 9
)

// ExportRow is one exported journal line.
type ExportRow struct {
	EntryNumber   string
	Date          string
	Status        model.EntryStatus
	LineNo        int
	AccountNumber string
	AccountName   string
	Description   string
	Debit         int64
	Credit        int64
	ReversalOf    string
}

// ExportRows flattens entries into rows. accounts maps account id to account;
// reversal_of carries the number of the reversed entry when it is among
// entries and its id otherwise.
func ExportRows(entries []model.JournalEntry, accounts map[string]model.Account) []ExportRow {
	numbers := make(map[string]string, len(entries))
	for _, e := range entries {
		numbers[e.ID] = e.Number
	}

	var rows []ExportRow
	for _, e := range entries {
		revOf := e.ReversalOf
		if n, ok := numbers[revOf]; ok && n != "" {
			revOf = n
		}
		for _, l := range e.Lines {
			desc := l.Description
			if desc == "" {
				desc = e.Description
			}
			acct := accounts[l.AccountID]
			rows = append(rows, ExportRow{
				EntryNumber:   e.Number,
				Date:          e.Date.Format(model.DateFormat),
				Status:        e.Status,
				LineNo:        l.LineNo,
				AccountNumber: acct.Number,
				AccountName:   acct.Name,
				Description:   desc,
				Debit:         l.Debit,
				Credit:        l.Credit,
				ReversalOf:    revOf,
			})
		}
	}
	return rows
}

// WriteExport writes rows with a header, amounts in currency's precision.
func WriteExport(w io.Writer, rows []ExportRow, currency string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, r := range rows {
		if err := cw.Write(MarshalRow(r, currency)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadExport reads a journal export back into rows.
func ReadExport(r io.Reader, currency string) ([]ExportRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading journal CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var rows []ExportRow
	for i, rec := range records[1:] {
		row, err := UnmarshalRow(rec, currency)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// MarshalRow converts an ExportRow to a CSV record.
func MarshalRow(r ExportRow, currency string) []string {
	rec := make([]string, numFields)
	rec[colNumber] = r.EntryNumber
	rec[colDate] = r.Date
	rec[colStatus] = string(r.Status)
	rec[colLineNo] = strconv.Itoa(r.LineNo)
	rec[colAcctNum] = r.AccountNumber
	rec[colAcctNm] = r.AccountName
	rec[colDesc] = r.Description
	if r.Debit != 0 {
		rec[colDebit] = money.Format(r.Debit, currency)
	}
	if r.Credit != 0 {
		rec[colCredit] = money.Format(r.Credit, currency)
	}
	rec[colRevOf] = r.ReversalOf
	return rec
}

// UnmarshalRow parses a CSV record into an ExportRow.
func UnmarshalRow(rec []string, currency string) (ExportRow, error) {
	if len(rec) != numFields {
		return ExportRow{}, fmt.Errorf("expected %d fields, got %d", numFields, len(rec))
	}
	lineNo, err := strconv.Atoi(rec[colLineNo])
	if err != nil {
		return ExportRow{}, fmt.Errorf("parsing line_no %q: %w", rec[colLineNo], err)
	}
	r := ExportRow{
		EntryNumber:   rec[colNumber],
		Date:          rec[colDate],
		Status:        model.EntryStatus(rec[colStatus]),
		LineNo:        lineNo,
		AccountNumber: rec[colAcctNum],
		AccountName:   rec[colAcctNm],
		Description:   rec[colDesc],
		ReversalOf:    rec[colRevOf],
	}
	if rec[colDebit] != "" {
		if r.Debit, err = money.ParseMinor(rec[colDebit], currency); err != nil {
			return ExportRow{}, fmt.Errorf("parsing debit: %w", err)
		}
	}
	if rec[colCredit] != "" {
		if r.Credit, err = money.ParseMinor(rec[colCredit], currency); err != nil {
			return ExportRow{}, fmt.Errorf("parsing credit: %w", err)
		}
	}
	return r, nil
}

// ExportCSV writes entries as a journal export.
func ExportCSV(w io.Writer, entries []model.JournalEntry, accounts map[string]model.Account, currency string) error {
	return WriteExport(w, ExportRows(entries, accounts), currency)
}
