package model

import "time"

// BankTransactionStatus tracks a bank transaction through reconciliation.
type BankTransactionStatus string

const (
	BankUnmatched  BankTransactionStatus = "unmatched"
	BankMatched    BankTransactionStatus = "matched"
	BankReconciled BankTransactionStatus = "reconciled"
)

// BankTransaction is an imported bank statement line.
type BankTransaction struct {
	ID            string
	TenantID      string
	BankAccountID string
	Date          time.Time
	Amount        int64 // signed minor units: negative = money out
	Currency      string
	Description   string
	Reference     string // unique per bank account, used to skip re-imports
	Status        BankTransactionStatus
	ImportedAt    time.Time
}

// AbsAmount returns the unsigned amount. Amount is never math.MinInt64:
// imports reject it.
func (t BankTransaction) AbsAmount() int64 {
	if t.Amount < 0 {
		return -t.Amount
	}
	return t.Amount
}
