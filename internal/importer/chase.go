package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cleared-dev/ledger/internal/money"
)

// ChaseParser parses Chase bank checking CSV exports.
type ChaseParser struct{}

const (
	chaseDateFormat = "01/02/2006"
	chaseNumFields  = 7
	chaseColDate    = 1
	chaseColDesc    = 2
	chaseColAmount  = 3
	chaseColType    = 4
)

// Format returns the parser name.
func (p *ChaseParser) Format() string { return "chase" }

// Parse reads a Chase CSV. Chase exports carry no transaction id, so the
// reference is derived from date and description, with a counter for
// same-day repeats.
func (p *ChaseParser) Parse(r io.Reader, currency string) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = chaseNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading chase CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	seen := make(map[string]int)
	var rows []Row
	for i, rec := range records[1:] {
		row, err := parseChaseRow(rec, currency)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		seen[row.Reference]++
		if n := seen[row.Reference]; n > 1 {
			row.Reference = fmt.Sprintf("%s_%d", row.Reference, n)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseChaseRow(rec []string, currency string) (Row, error) {
	date, err := time.Parse(chaseDateFormat, rec[chaseColDate])
	if err != nil {
		return Row{}, fmt.Errorf("parsing date %q: %w", rec[chaseColDate], err)
	}

	amount, err := money.ParseMinor(rec[chaseColAmount], currency)
	if err != nil {
		return Row{}, fmt.Errorf("parsing amount %q: %w", rec[chaseColAmount], err)
	}

	desc := rec[chaseColDesc]
	return Row{
		Date:        date,
		Description: desc,
		Amount:      amount,
		Currency:    currency,
		Reference:   makeChaseRef(date, desc),
		Type:        rec[chaseColType],
	}, nil
}

// makeChaseRef creates a reference like chase_20250103_GITHUBPROS.
func makeChaseRef(date time.Time, desc string) string {
	prefix := strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, desc)
	if len(prefix) > 10 {
		prefix = prefix[:10]
	}
	return fmt.Sprintf("chase_%s_%s", date.Format("20060102"), prefix)
}
