// Package audit records who changed what in the ledger.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cleared-dev/ledger/internal/store"
)

// Actions emitted by the ledger services.
const (
	ActionAccountCreated  = "account.created"
	ActionEntryPosted     = "journal_entry.posted"
	ActionEntryVoided     = "journal_entry.voided"
	ActionDraftSaved      = "journal_entry.draft_saved"
	ActionPeriodCreated   = "accounting_period.created"
	ActionPeriodClosed    = "accounting_period.closed"
	ActionBankImported    = "bank_transaction.imported"
	ActionBankReconciled  = "bank_transaction.reconciled"
	ActionMatchProposed   = "reconciliation_match.proposed"
	ActionMatchAuto       = "reconciliation_match.auto_confirmed"
	ActionMatchConfirmed  = "reconciliation_match.confirmed"
	ActionMatchRejected   = "reconciliation_match.rejected"
	ActionMatchManual     = "reconciliation_match.manual"
	ActionRuleCreated     = "reconciliation_rule.created"
	ActionBalancesRebuilt = "account.balances_rebuilt"
)

// Record is one audit event. Before and After are JSON snapshots of the
// entity; either may be empty.
type Record struct {
	TenantID   string          `json:"tenant_id"`
	Actor      string          `json:"actor"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Snapshot encodes v for Record.Before or Record.After. Values that cannot be
// encoded yield nil.
func Snapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// Sink delivers audit records somewhere durable.
//
//go:generate mockgen -destination=mocks/mock_audit.go -source=audit.go Sink,Outbox
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

// Outbox parks records no sink accepted so they can be redelivered.
type Outbox interface {
	ParkAudit(ctx context.Context, payload, lastErr string) error
	PendingAudit(ctx context.Context, limit int) ([]store.OutboxItem, error)
	AckAudit(ctx context.Context, itemID int64) error
	RetryAudit(ctx context.Context, itemID int64, lastErr string) error
}

// Emitter is what the ledger services call after a committed change.
type Emitter interface {
	Emit(ctx context.Context, rec Record)
}

// Discard is an Emitter that drops every record.
var Discard Emitter = discard{}

type discard struct{}

func (discard) Emit(context.Context, Record) {}
