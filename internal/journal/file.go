package journal

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/money"
)

// EntryFile is the YAML form of an entry accepted by the CLI. Amounts are
// decimal strings; accounts are referenced by number or id.
type EntryFile struct {
	ID          string      `yaml:"id,omitempty"`
	Date        string      `yaml:"date"`
	Description string      `yaml:"description"`
	Lines       []EntryLine `yaml:"lines"`
}

// EntryLine is one line of an EntryFile.
type EntryLine struct {
	Account     string `yaml:"account"`
	Description string `yaml:"description,omitempty"`
	Debit       string `yaml:"debit,omitempty"`
	Credit      string `yaml:"credit,omitempty"`
}

// ReadEntryFile decodes an EntryFile. Unknown keys are rejected.
func ReadEntryFile(r io.Reader) (EntryFile, error) {
	var f EntryFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return EntryFile{}, fmt.Errorf("decoding entry file: %w", err)
	}
	return f, nil
}

// Draft converts the file into a draft for tenantID. resolve maps an account
// reference to an account id.
func (f EntryFile) Draft(tenantID, currency string, resolve func(ref string) (string, error)) (model.JournalEntryDraft, error) {
	date, err := time.Parse(model.DateFormat, f.Date)
	if err != nil {
		return model.JournalEntryDraft{}, model.Invalid(model.CodeInvalidInput, "entry date %q: want YYYY-MM-DD", f.Date)
	}

	d := model.JournalEntryDraft{ID: f.ID, TenantID: tenantID, Date: date, Description: f.Description}
	for i, l := range f.Lines {
		accountID, err := resolve(l.Account)
		if err != nil {
			return model.JournalEntryDraft{}, fmt.Errorf("line %d: account %s: %w", i+1, l.Account, err)
		}
		line := model.JournalLine{AccountID: accountID, Description: l.Description}
		if l.Debit != "" {
			if line.Debit, err = money.ParseMinor(l.Debit, currency); err != nil {
				return model.JournalEntryDraft{}, model.Invalid(model.CodeInvalidLineAmount, "line %d: debit %q: %v", i+1, l.Debit, err)
			}
		}
		if l.Credit != "" {
			if line.Credit, err = money.ParseMinor(l.Credit, currency); err != nil {
				return model.JournalEntryDraft{}, model.Invalid(model.CodeInvalidLineAmount, "line %d: credit %q: %v", i+1, l.Credit, err)
			}
		}
		d.Lines = append(d.Lines, line)
	}
	return d, nil
}
