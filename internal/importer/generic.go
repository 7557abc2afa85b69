package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/money"
)

// GenericParser parses CSV files with a header naming the columns date,
// amount, description and reference, plus an optional currency column.
// Dates are YYYY-MM-DD and amounts signed decimals.
type GenericParser struct{}

// Format returns the parser name.
func (p *GenericParser) Format() string { return "generic" }

// Parse reads a generic bank CSV. currency applies to rows without one.
func (p *GenericParser) Parse(r io.Reader, currency string) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	cols := make(map[string]int)
	for i, h := range records[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"date", "amount", "description", "reference"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}
	curCol, hasCurrency := cols["currency"]

	var rows []Row
	for i, rec := range records[1:] {
		row := Row{
			Description: rec[cols["description"]],
			Reference:   rec[cols["reference"]],
			Currency:    currency,
		}
		if hasCurrency && rec[curCol] != "" {
			row.Currency = strings.ToUpper(rec[curCol])
		}
		if row.Date, err = model.ParseDay(rec[cols["date"]]); err != nil {
			return nil, fmt.Errorf("row %d: parsing date %q: %w", i+2, rec[cols["date"]], err)
		}
		if row.Amount, err = money.ParseMinor(rec[cols["amount"]], row.Currency); err != nil {
			return nil, fmt.Errorf("row %d: parsing amount: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
