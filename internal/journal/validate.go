package journal

import (
	"fmt"
	"math"

	"github.com/cleared-dev/ledger/internal/model"
)

// MinLines is the smallest number of lines a posted entry may have.
const MinLines = 2

// NormalizeLines numbers lines 1..N in their given order.
func NormalizeLines(lines []model.JournalLine) []model.JournalLine {
	out := make([]model.JournalLine, len(lines))
	for i, l := range lines {
		l.LineNo = i + 1
		out[i] = l
	}
	return out
}

// ValidateLines checks a tenant's entry lines against the posting rules and
// returns every violation found, not just the first. accounts must hold every
// account the lines reference that exists, in any tenant.
func ValidateLines(tenantID, entryID string, lines []model.JournalLine, accounts map[string]model.Account) model.ValidationErrors {
	var errs model.ValidationErrors

	if len(lines) < MinLines {
		errs = append(errs, model.ValidationError{
			Code:        model.CodeEntryTooShort,
			EntryID:     entryID,
			Description: fmt.Sprintf("entry has %d lines, at least %d required", len(lines), MinLines),
		})
	}

	var totalDebit, totalCredit int64
	overflow := false
	for _, l := range lines {
		switch {
		case l.Debit < 0 || l.Credit < 0:
			errs = append(errs, model.ValidationError{
				Code: model.CodeInvalidLineAmount, EntryID: entryID, LineNo: l.LineNo,
				Description: "amounts must not be negative",
			})
		case (l.Debit > 0) == (l.Credit > 0):
			errs = append(errs, model.ValidationError{
				Code: model.CodeInvalidLineAmount, EntryID: entryID, LineNo: l.LineNo,
				Description: "line must have exactly one of debit or credit",
			})
		}

		acct, ok := accounts[l.AccountID]
		switch {
		case !ok:
			errs = append(errs, model.ValidationError{
				Code: model.CodeUnknownAccount, EntryID: entryID, LineNo: l.LineNo,
				Description: fmt.Sprintf("unknown account %s", l.AccountID),
			})
		case acct.TenantID != tenantID:
			errs = append(errs, model.ValidationError{
				Code: model.CodeCrossTenantAccount, EntryID: entryID, LineNo: l.LineNo,
				Description: fmt.Sprintf("account %s belongs to another tenant", l.AccountID),
			})
		case !acct.IsActive:
			errs = append(errs, model.ValidationError{
				Code: model.CodeInactiveAccount, EntryID: entryID, LineNo: l.LineNo,
				Description: fmt.Sprintf("account %s (%s) is inactive", acct.Number, acct.Name),
			})
		}

		if l.Debit > 0 {
			if totalDebit > math.MaxInt64-l.Debit {
				overflow = true
			}
			totalDebit += l.Debit
		}
		if l.Credit > 0 {
			if totalCredit > math.MaxInt64-l.Credit {
				overflow = true
			}
			totalCredit += l.Credit
		}
	}

	if overflow {
		errs = append(errs, model.ValidationError{
			Code: model.CodeInvalidLineAmount, EntryID: entryID,
			Description: "line totals overflow",
		})
	} else if totalDebit != totalCredit {
		errs = append(errs, model.ValidationError{
			Code: model.CodeUnbalanced, EntryID: entryID,
			Description: fmt.Sprintf("debits (%d) != credits (%d)", totalDebit, totalCredit),
		})
	}

	return errs
}
