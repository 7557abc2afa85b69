// Package rules evaluates ordered reconciliation rules against bank
// transactions.
package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cleared-dev/ledger/internal/model"
)

// Subject is the view of a bank transaction that conditions test.
type Subject struct {
	Description   string
	Reference     string
	Currency      string
	BankAccountID string
	Amount        int64
	Date          time.Time
}

// SubjectOf builds the subject of a bank transaction.
func SubjectOf(tx model.BankTransaction) Subject {
	return Subject{
		Description:   tx.Description,
		Reference:     tx.Reference,
		Currency:      tx.Currency,
		BankAccountID: tx.BankAccountID,
		Amount:        tx.Amount,
		Date:          model.Day(tx.Date),
	}
}

// Match is the winning rule and its action.
type Match struct {
	RuleID   string
	RuleName string
	Action   model.RuleAction
}

// Sort orders rules by ascending priority, ties broken by insertion order.
func Sort(rules []model.ReconciliationRule) []model.ReconciliationRule {
	out := make([]model.ReconciliationRule, len(rules))
	copy(out, rules)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// Evaluate returns the first active rule whose conditions all hold for s.
func Evaluate(rules []model.ReconciliationRule, s Subject) (Match, bool) {
	for _, r := range Sort(rules) {
		if !r.IsActive {
			continue
		}
		if Matches(r, s) {
			return Match{RuleID: r.ID, RuleName: r.Name, Action: r.Action}, true
		}
	}
	return Match{}, false
}

// Matches reports whether every condition of r holds for s. A rule without
// conditions never matches.
func Matches(r model.ReconciliationRule, s Subject) bool {
	if len(r.Conditions) == 0 {
		return false
	}
	for _, c := range r.Conditions {
		if !holds(c, s) {
			return false
		}
	}
	return true
}

func holds(c model.Condition, s Subject) bool {
	switch c.Field {
	case model.FieldDescription:
		return matchString(c, s.Description)
	case model.FieldReference:
		return matchString(c, s.Reference)
	case model.FieldCurrency:
		return matchString(c, s.Currency)
	case model.FieldBankAccountID:
		return matchString(c, s.BankAccountID)
	case model.FieldAmount:
		return matchInt(c, s.Amount)
	case model.FieldAbsAmount:
		n := s.Amount
		if n < 0 {
			n = -n
		}
		return matchInt(c, n)
	case model.FieldDate:
		return matchDate(c, s.Date)
	}
	return false
}

func matchString(c model.Condition, v string) bool {
	want := c.Value.Str
	if c.Operator == model.OpRegex {
		re, err := compile(want, c.CaseSensitive)
		return err == nil && re.MatchString(v)
	}
	if !c.CaseSensitive {
		v, want = strings.ToLower(v), strings.ToLower(want)
	}
	switch c.Operator {
	case model.OpEquals:
		return v == want
	case model.OpNotEquals:
		return v != want
	case model.OpContains:
		return strings.Contains(v, want)
	case model.OpStartsWith:
		return strings.HasPrefix(v, want)
	case model.OpEndsWith:
		return strings.HasSuffix(v, want)
	}
	return false
}

func matchInt(c model.Condition, v int64) bool {
	n := c.Value.Int
	switch c.Operator {
	case model.OpEquals:
		return v == n
	case model.OpNotEquals:
		return v != n
	case model.OpGreater:
		return v > n
	case model.OpGreaterEq:
		return v >= n
	case model.OpLess:
		return v < n
	case model.OpLessEq:
		return v <= n
	case model.OpBetween:
		return v >= c.Value.Min && v <= c.Value.Max
	}
	return false
}

func matchDate(c model.Condition, d time.Time) bool {
	if c.Operator != model.OpDateBetween {
		return false
	}
	d = model.Day(d)
	return !d.Before(model.Day(c.Value.From)) && !d.After(model.Day(c.Value.To))
}

var regexCache sync.Map

func compile(pattern string, caseSensitive bool) (*regexp.Regexp, error) {
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}
	if re, ok := regexCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexCache.Store(pattern, re)
	return re, nil
}

var (
	stringOps = map[model.Operator]bool{
		model.OpEquals: true, model.OpNotEquals: true, model.OpContains: true,
		model.OpStartsWith: true, model.OpEndsWith: true, model.OpRegex: true,
	}
	intOps = map[model.Operator]bool{
		model.OpEquals: true, model.OpNotEquals: true, model.OpGreater: true,
		model.OpGreaterEq: true, model.OpLess: true, model.OpLessEq: true,
	}
)

// Validate checks that every condition pairs a known field with a compatible
// operator and value, and that the action is in range.
func Validate(r model.ReconciliationRule) model.ValidationErrors {
	var errs model.ValidationErrors
	bad := func(format string, args ...any) {
		errs = append(errs, model.ValidationError{Code: model.CodeInvalidRule, EntryID: r.ID, Description: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(r.Name) == "" {
		bad("rule name is required")
	}
	if len(r.Conditions) == 0 {
		bad("rule %q has no conditions", r.Name)
	}
	for i, c := range r.Conditions {
		n := i + 1
		switch c.Field {
		case model.FieldDescription, model.FieldReference, model.FieldCurrency, model.FieldBankAccountID:
			if !stringOps[c.Operator] {
				bad("condition %d: operator %s does not apply to %s", n, c.Operator, c.Field)
			} else if c.Value.Kind != model.KindString {
				bad("condition %d: %s needs a string value", n, c.Field)
			} else if c.Operator == model.OpRegex {
				if _, err := compile(c.Value.Str, c.CaseSensitive); err != nil {
					bad("condition %d: invalid regex %q: %v", n, c.Value.Str, err)
				}
			}
		case model.FieldAmount, model.FieldAbsAmount:
			switch {
			case c.Operator == model.OpBetween:
				if c.Value.Kind != model.KindRange {
					bad("condition %d: between needs a range value", n)
				} else if c.Value.Min > c.Value.Max {
					bad("condition %d: range %d..%d is empty", n, c.Value.Min, c.Value.Max)
				}
			case intOps[c.Operator]:
				if c.Value.Kind != model.KindInt {
					bad("condition %d: %s needs an integer value", n, c.Field)
				}
			default:
				bad("condition %d: operator %s does not apply to %s", n, c.Operator, c.Field)
			}
		case model.FieldDate:
			if c.Operator != model.OpDateBetween {
				bad("condition %d: operator %s does not apply to date", n, c.Operator)
			} else if c.Value.Kind != model.KindDateRange {
				bad("condition %d: date_between needs a date range value", n)
			} else if c.Value.To.Before(c.Value.From) {
				bad("condition %d: date range ends before it starts", n)
			}
		default:
			bad("condition %d: unknown field %q", n, c.Field)
		}
	}

	a := r.Action
	if a.ScoreDelta < -100 || a.ScoreDelta > 100 {
		bad("score delta %d outside -100..100", a.ScoreDelta)
	}
	if a.AmountTolerance != nil && *a.AmountTolerance < 0 {
		bad("amount tolerance must not be negative")
	}
	if a.AutoConfirmThreshold != nil && (*a.AutoConfirmThreshold < 0 || *a.AutoConfirmThreshold > 100) {
		bad("auto-confirm threshold %d outside 0..100", *a.AutoConfirmThreshold)
	}
	return errs
}
