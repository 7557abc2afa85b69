package model

import (
	"errors"
	"fmt"
	"strings"
)

// Code identifies a specific failure within the error taxonomy.
type Code string

const (
	CodeUnbalanced            Code = "Unbalanced"
	CodeEntryTooShort         Code = "EntryTooShort"
	CodeUnknownAccount        Code = "UnknownAccount"
	CodeInactiveAccount       Code = "InactiveAccount"
	CodeCrossTenantAccount    Code = "CrossTenantAccount"
	CodeInvalidLineAmount     Code = "InvalidLineAmount"
	CodeMissingIdempotencyKey Code = "MissingIdempotencyKey"
	CodeDuplicateNumber       Code = "DuplicateNumber"
	CodeInvalidParentType     Code = "InvalidParentType"
	CodeInvalidAccountType    Code = "InvalidAccountType"
	CodeInvalidPeriod         Code = "InvalidPeriod"
	CodePeriodOverlap         Code = "PeriodOverlap"
	CodePeriodNotContiguous   Code = "PeriodNotContiguous"
	CodeInvalidRule           Code = "InvalidRule"
	CodeInvalidInput          Code = "InvalidInput"

	CodeClosedPeriod    Code = "ClosedPeriod"
	CodeNoPeriod        Code = "NoPeriod"
	CodeNotPosted       Code = "NotPosted"
	CodePeriodClosed    Code = "PeriodClosed"
	CodeUnpostedDrafts  Code = "UnpostedDrafts"
	CodeAlreadyClosed   Code = "AlreadyClosed"
	CodeAlreadyResolved Code = "AlreadyResolved"
	CodeNotDraft        Code = "NotDraft"
	CodeNotFound        Code = "NotFound"
)

// ValidationError describes one violated constraint. Never retried.
type ValidationError struct {
	Code        Code
	EntryID     string
	LineNo      int // 0 = entry level
	Description string
}

func (e ValidationError) Error() string {
	if e.LineNo > 0 {
		return fmt.Sprintf("%s [line %d]: %s", e.Code, e.LineNo, e.Description)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// ValidationErrors lists every violated constraint of one request.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Has reports whether any violation carries code.
func (v ValidationErrors) Has(code Code) bool {
	for _, e := range v {
		if e.Code == code {
			return true
		}
	}
	return false
}

// StateError reports that the target is in a state that forbids the
// operation. Offending lists the ids that block it, if any.
type StateError struct {
	Code      Code
	Entity    string
	ID        string
	Offending []string
}

func (e *StateError) Error() string {
	msg := fmt.Sprintf("%s: %s %s", e.Code, e.Entity, e.ID)
	if len(e.Offending) > 0 {
		msg += " (" + strings.Join(e.Offending, ", ") + ")"
	}
	return msg
}

// AmbiguousMatchError is carried by a reconciliation result when the best
// candidates tie. It signals review, not failure.
type AmbiguousMatchError struct {
	BankTransactionID string
	Score             int
	EntryIDs          []string
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("ambiguous match for bank transaction %s: %d candidates tied at %d",
		e.BankTransactionID, len(e.EntryIDs), e.Score)
}

// TransientStoreError wraps an I/O failure that happened before any commit
// and may be retried.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("transient store error during %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

// ErrNotFound is returned by lookups of missing rows.
var ErrNotFound = errors.New("not found")

// NotFound builds a StateError for a missing entity.
func NotFound(entity, id string) error {
	return &StateError{Code: CodeNotFound, Entity: entity, ID: id}
}

// Invalid builds a single-item ValidationErrors.
func Invalid(code Code, format string, args ...any) error {
	return ValidationErrors{{Code: code, Description: fmt.Sprintf(format, args...)}}
}

// CodeOf extracts the taxonomy code from err, or "" if err is untyped.
// For ValidationErrors the first code is returned.
func CodeOf(err error) Code {
	var verrs ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Code
	}
	var verr ValidationError
	if errors.As(err, &verr) {
		return verr.Code
	}
	var serr *StateError
	if errors.As(err, &serr) {
		return serr.Code
	}
	if errors.Is(err, ErrNotFound) {
		return CodeNotFound
	}
	return ""
}

// HasCode reports whether err carries code anywhere in its taxonomy payload.
func HasCode(err error, code Code) bool {
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		return verrs.Has(code)
	}
	return CodeOf(err) == code
}

// IsTransient reports whether err is a retryable store failure.
func IsTransient(err error) bool {
	var terr *TransientStoreError
	return errors.As(err, &terr)
}
