package rules

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/money"
)

// RulesFile is the rule file location relative to a project root.
const RulesFile = "rules/reconciliation-rules.yaml"

// File is the YAML (and JSON) form of a tenant's rule set. Amounts are decimal strings
// in the tenant currency and accounts are referenced by number.
type File struct {
	Rules []FileRule `yaml:"rules" json:"rules"`
}

// FileRule is one rule in a File.
type FileRule struct {
	Name       string          `yaml:"name" json:"name"`
	Priority   int             `yaml:"priority" json:"priority"`
	Active     *bool           `yaml:"active,omitempty" json:"active,omitempty"`
	Conditions []FileCondition `yaml:"conditions" json:"conditions"`
	Action     FileAction      `yaml:"action" json:"action"`
}

// FileCondition is one condition. Which value keys apply depends on the
// operator: value for scalars, min/max for between, from/to for date_between.
type FileCondition struct {
	Field         string `yaml:"field" json:"field"`
	Op            string `yaml:"op" json:"op"`
	Value         string `yaml:"value,omitempty" json:"value,omitempty"`
	Min           string `yaml:"min,omitempty" json:"min,omitempty"`
	Max           string `yaml:"max,omitempty" json:"max,omitempty"`
	From          string `yaml:"from,omitempty" json:"from,omitempty"`
	To            string `yaml:"to,omitempty" json:"to,omitempty"`
	CaseSensitive bool   `yaml:"case_sensitive,omitempty" json:"case_sensitive,omitempty"`
}

// FileAction is the action of a FileRule.
type FileAction struct {
	SuggestAccount       string `yaml:"suggest_account,omitempty" json:"suggest_account,omitempty"`
	ScoreDelta           int    `yaml:"score_delta,omitempty" json:"score_delta,omitempty"`
	AmountTolerance      string `yaml:"amount_tolerance,omitempty" json:"amount_tolerance,omitempty"`
	AutoConfirmThreshold *int   `yaml:"auto_confirm_threshold,omitempty" json:"auto_confirm_threshold,omitempty"`
}

// ReadFile decodes a rule file.
func ReadFile(r io.Reader) (File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("decoding rule file: %w", err)
	}
	return f, nil
}

// LoadFile reads RulesFile under root. A missing file is an empty rule set.
func LoadFile(root string) (File, error) {
	fh, err := os.Open(filepath.Join(root, RulesFile))
	if errors.Is(err, os.ErrNotExist) {
		return File{}, nil
	}
	if err != nil {
		return File{}, fmt.Errorf("opening rule file: %w", err)
	}
	defer fh.Close()
	return ReadFile(fh)
}

// Rules converts the file for tenantID. resolve maps an account number to
// an account id. Order in the file becomes insertion order.
func (f File) Rules(tenantID, currency string, resolve func(number string) (string, error)) ([]model.ReconciliationRule, error) {
	out := make([]model.ReconciliationRule, 0, len(f.Rules))
	for i, fr := range f.Rules {
		r, err := fr.rule(tenantID, currency, resolve)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i+1, fr.Name, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (fr FileRule) rule(tenantID, currency string, resolve func(string) (string, error)) (model.ReconciliationRule, error) {
	r := model.ReconciliationRule{
		TenantID: tenantID,
		Name:     fr.Name,
		Priority: fr.Priority,
		IsActive: fr.Active == nil || *fr.Active,
	}
	for i, fc := range fr.Conditions {
		c, err := fc.condition(currency)
		if err != nil {
			return model.ReconciliationRule{}, fmt.Errorf("condition %d: %w", i+1, err)
		}
		r.Conditions = append(r.Conditions, c)
	}

	a := fr.Action
	r.Action.ScoreDelta = a.ScoreDelta
	r.Action.AutoConfirmThreshold = a.AutoConfirmThreshold
	if a.SuggestAccount != "" {
		accountID, err := resolve(a.SuggestAccount)
		if err != nil {
			return model.ReconciliationRule{}, fmt.Errorf("suggested account %s: %w", a.SuggestAccount, err)
		}
		r.Action.SuggestAccountID = accountID
	}
	if a.AmountTolerance != "" {
		tol, err := money.ParseMinor(a.AmountTolerance, currency)
		if err != nil {
			return model.ReconciliationRule{}, fmt.Errorf("amount tolerance: %w", err)
		}
		r.Action.AmountTolerance = &tol
	}
	return r, nil
}

func (fc FileCondition) condition(currency string) (model.Condition, error) {
	c := model.Condition{
		Field:         model.Field(fc.Field),
		Operator:      model.Operator(fc.Op),
		CaseSensitive: fc.CaseSensitive,
	}
	switch {
	case c.Operator == model.OpDateBetween:
		from, err := model.ParseDay(fc.From)
		if err != nil {
			return c, fmt.Errorf("from %q: %w", fc.From, err)
		}
		to, err := model.ParseDay(fc.To)
		if err != nil {
			return c, fmt.Errorf("to %q: %w", fc.To, err)
		}
		c.Value = model.DateRangeValue(from, to)
	case c.Operator == model.OpBetween:
		lo, err := money.ParseMinor(fc.Min, currency)
		if err != nil {
			return c, fmt.Errorf("min: %w", err)
		}
		hi, err := money.ParseMinor(fc.Max, currency)
		if err != nil {
			return c, fmt.Errorf("max: %w", err)
		}
		c.Value = model.RangeValue(lo, hi)
	case c.Field == model.FieldAmount || c.Field == model.FieldAbsAmount:
		n, err := money.ParseMinor(fc.Value, currency)
		if err != nil {
			return c, fmt.Errorf("value: %w", err)
		}
		c.Value = model.IntValue(n)
	default:
		c.Value = model.StringValue(fc.Value)
	}
	return c, nil
}
