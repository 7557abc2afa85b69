package model

import "time"

// MatchType describes how a match was produced.
type MatchType string

const (
	MatchExact  MatchType = "exact"
	MatchFuzzy  MatchType = "fuzzy"
	MatchManual MatchType = "manual"
)

// MatchStatus is the review state of a match row.
type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchConfirmed MatchStatus = "confirmed"
	MatchRejected  MatchStatus = "rejected"
)

// ReconciliationMatch links a bank transaction to a journal line. Rows are
// append-only: a review writes a new row whose SupersedesID points at the
// reviewed one.
type ReconciliationMatch struct {
	ID                 string
	TenantID           string
	BankTransactionID  string
	JournalEntryID     string // "" until resolved
	JournalLineNo      int
	ConfidenceScore    int
	AmountScore        int
	DateScore          int
	DescriptionScore   int
	MatchType          MatchType
	Status             MatchStatus
	RuleID             string
	SuggestedAccountID string
	SupersedesID       string
	Superseded         bool
	CreatedBy          string
	CreatedAt          time.Time
}
