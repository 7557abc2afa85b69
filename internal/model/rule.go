package model

import "time"

// Field names a property of the rule subject.
type Field string

const (
	FieldDescription   Field = "description"
	FieldReference     Field = "reference"
	FieldCurrency      Field = "currency"
	FieldBankAccountID Field = "bank_account_id"
	FieldAmount        Field = "amount"
	FieldAbsAmount     Field = "abs_amount"
	FieldDate          Field = "date"
)

// Operator is a comparison applied to a field.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"
	OpRegex       Operator = "regex"
	OpGreater     Operator = "gt"
	OpGreaterEq   Operator = "gte"
	OpLess        Operator = "lt"
	OpLessEq      Operator = "lte"
	OpBetween     Operator = "between"
	OpDateBetween Operator = "date_between"
)

// ValueKind tags which member of Value is populated.
type ValueKind string

const (
	KindString    ValueKind = "string"
	KindInt       ValueKind = "int"
	KindRange     ValueKind = "range"
	KindDateRange ValueKind = "date_range"
)

// Value is a tagged variant. Only the members matching Kind are meaningful.
type Value struct {
	Kind ValueKind `json:"kind"`
	Str  string    `json:"str,omitempty"`
	Int  int64     `json:"int,omitempty"`
	Min  int64     `json:"min,omitempty"`
	Max  int64     `json:"max,omitempty"`
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`
}

// StringValue builds a string-kind value.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// IntValue builds an int-kind value.
func IntValue(n int64) Value { return Value{Kind: KindInt, Int: n} }

// RangeValue builds an inclusive integer range.
func RangeValue(lo, hi int64) Value { return Value{Kind: KindRange, Min: lo, Max: hi} }

// DateRangeValue builds an inclusive civil-date range.
func DateRangeValue(from, to time.Time) Value {
	return Value{Kind: KindDateRange, From: Day(from), To: Day(to)}
}

// Condition is a single field/operator/value node. Conditions of a rule are
// AND-combined.
type Condition struct {
	Field         Field    `json:"field"`
	Operator      Operator `json:"op"`
	Value         Value    `json:"value"`
	CaseSensitive bool     `json:"case_sensitive,omitempty"`
}

// RuleAction is what a matching rule does to the matcher's outcome.
// AmountTolerance widens the candidate amount tolerance in minor units and
// AutoConfirmThreshold replaces the tenant threshold for one transaction.
type RuleAction struct {
	SuggestAccountID     string `json:"suggest_account_id,omitempty"`
	ScoreDelta           int    `json:"score_delta,omitempty"`
	AmountTolerance      *int64 `json:"amount_tolerance,omitempty"`
	AutoConfirmThreshold *int   `json:"auto_confirm_threshold,omitempty"`
}

// ReconciliationRule is an ordered, prioritised condition set with an action.
type ReconciliationRule struct {
	ID         string
	TenantID   string
	Name       string
	Priority   int
	Seq        int64 // insertion order, breaks priority ties
	IsActive   bool
	Conditions []Condition
	Action     RuleAction
}
