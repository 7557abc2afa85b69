package model

import "time"

// EntryStatus represents the lifecycle state of a journal entry.
// The only transitions are draft -> posted -> void.
type EntryStatus string

const (
	StatusDraft  EntryStatus = "draft"
	StatusPosted EntryStatus = "posted"
	StatusVoid   EntryStatus = "void"
)

// JournalLine is one side of a double entry. Exactly one of Debit and
// Credit is strictly positive.
type JournalLine struct {
	LineNo      int
	AccountID   string
	Description string
	Debit       int64
	Credit      int64
}

// Signed returns the line amount as debit minus credit.
func (l JournalLine) Signed() int64 {
	return l.Debit - l.Credit
}

// Amount returns the absolute amount of the line.
func (l JournalLine) Amount() int64 {
	if l.Debit != 0 {
		return l.Debit
	}
	return l.Credit
}

// JournalEntry is a balanced set of lines posted as one unit.
type JournalEntry struct {
	ID          string
	TenantID    string
	PeriodID    string
	Number      string // "YYYY-MM-NNN", assigned when posted
	Date        time.Time
	Description string
	Status      EntryStatus
	ReversalOf  string // set on the reversing entry
	ReversedBy  string // set on the voided original
	CreatedBy   string
	PostedAt    time.Time
	VoidedAt    time.Time
	Lines       []JournalLine
}

// Totals returns the debit and credit sums of the entry.
func (e JournalEntry) Totals() (debit, credit int64) {
	for _, l := range e.Lines {
		debit += l.Debit
		credit += l.Credit
	}
	return debit, credit
}

// JournalEntryDraft is the caller-supplied shape of an entry before posting.
// ID is set when an already saved draft is being posted.
type JournalEntryDraft struct {
	ID          string
	TenantID    string
	Date        time.Time
	Description string
	Lines       []JournalLine
}
