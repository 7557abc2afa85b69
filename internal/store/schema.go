// Package store persists the ledger in SQLite.
package store

// Schema defines the SQL statements to create database tables.
const Schema = `
-- Chart of accounts, shared by every entry of a tenant
CREATE TABLE IF NOT EXISTS accounts (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    number TEXT NOT NULL,
    name TEXT NOT NULL,
    type TEXT NOT NULL,                 -- asset, liability, equity, revenue, expense
    parent_id TEXT REFERENCES accounts(id),
    is_active INTEGER NOT NULL DEFAULT 1,
    bank_account_id TEXT NOT NULL DEFAULT '', -- non-empty on bank clearing accounts
    current_balance INTEGER NOT NULL DEFAULT 0, -- derived: debit minus credit of posted lines
    created_at TEXT NOT NULL,
    UNIQUE(tenant_id, number)
);

CREATE INDEX IF NOT EXISTS idx_accounts_bank
    ON accounts(tenant_id, bank_account_id);

CREATE TABLE IF NOT EXISTS accounting_periods (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    start_date TEXT NOT NULL,           -- YYYY-MM-DD
    end_date TEXT NOT NULL,             -- YYYY-MM-DD, inclusive
    is_closed INTEGER NOT NULL DEFAULT 0,
    closed_at TEXT,
    closed_by TEXT,
    UNIQUE(tenant_id, start_date)
);

CREATE TABLE IF NOT EXISTS journal_entries (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    period_id TEXT NOT NULL REFERENCES accounting_periods(id),
    number TEXT,                        -- YYYY-MM-NNN, NULL while draft
    entry_date TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,               -- draft, posted, void
    reversal_of TEXT REFERENCES journal_entries(id),
    reversed_by TEXT REFERENCES journal_entries(id),
    created_by TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    posted_at TEXT,
    voided_at TEXT,
    UNIQUE(tenant_id, number)
);

CREATE INDEX IF NOT EXISTS idx_entries_tenant_date
    ON journal_entries(tenant_id, entry_date);

CREATE INDEX IF NOT EXISTS idx_entries_period_status
    ON journal_entries(period_id, status);

CREATE TABLE IF NOT EXISTS journal_entry_lines (
    entry_id TEXT NOT NULL REFERENCES journal_entries(id) ON DELETE CASCADE,
    line_no INTEGER NOT NULL,
    account_id TEXT NOT NULL REFERENCES accounts(id),
    description TEXT NOT NULL DEFAULT '',
    debit INTEGER NOT NULL DEFAULT 0,
    credit INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY(entry_id, line_no),
    CHECK (debit >= 0 AND credit >= 0)
);

CREATE INDEX IF NOT EXISTS idx_lines_account
    ON journal_entry_lines(account_id);

CREATE TABLE IF NOT EXISTS idempotency_keys (
    tenant_id TEXT NOT NULL,
    key TEXT NOT NULL,
    entry_id TEXT NOT NULL REFERENCES journal_entries(id),
    created_at TEXT NOT NULL,
    PRIMARY KEY(tenant_id, key)
);

CREATE TABLE IF NOT EXISTS bank_transactions (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    bank_account_id TEXT NOT NULL,
    tx_date TEXT NOT NULL,
    amount INTEGER NOT NULL,            -- signed minor units
    currency TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    reference TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'unmatched',
    imported_at TEXT NOT NULL,
    UNIQUE(tenant_id, bank_account_id, reference)
);

CREATE INDEX IF NOT EXISTS idx_bank_tx_status
    ON bank_transactions(tenant_id, bank_account_id, status);

CREATE TABLE IF NOT EXISTS reconciliation_rules (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    priority INTEGER NOT NULL DEFAULT 100,
    seq INTEGER NOT NULL,
    is_active INTEGER NOT NULL DEFAULT 1,
    conditions TEXT NOT NULL,           -- JSON condition list
    action TEXT NOT NULL,               -- JSON action
    UNIQUE(tenant_id, seq)
);

-- Append-only: a review inserts a new row and flags the reviewed one superseded
CREATE TABLE IF NOT EXISTS reconciliation_matches (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    bank_transaction_id TEXT NOT NULL REFERENCES bank_transactions(id),
    journal_entry_id TEXT,
    journal_line_no INTEGER NOT NULL DEFAULT 0,
    confidence_score INTEGER NOT NULL,
    amount_score INTEGER NOT NULL DEFAULT 0,
    date_score INTEGER NOT NULL DEFAULT 0,
    description_score INTEGER NOT NULL DEFAULT 0,
    match_type TEXT NOT NULL,           -- exact, fuzzy, manual
    status TEXT NOT NULL,               -- pending, confirmed, rejected
    rule_id TEXT,
    suggested_account_id TEXT,
    supersedes_id TEXT REFERENCES reconciliation_matches(id),
    superseded INTEGER NOT NULL DEFAULT 0,
    created_by TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_matches_tx
    ON reconciliation_matches(tenant_id, bank_transaction_id, superseded);

CREATE INDEX IF NOT EXISTS idx_matches_entry
    ON reconciliation_matches(tenant_id, journal_entry_id, status);

-- Audit records that could not be delivered to a sink
CREATE TABLE IF NOT EXISTS audit_outbox (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    payload TEXT NOT NULL,
    attempts INTEGER NOT NULL DEFAULT 0,
    last_error TEXT NOT NULL DEFAULT '',
    parked_at TEXT NOT NULL
);
`
