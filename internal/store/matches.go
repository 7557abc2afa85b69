package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cleared-dev/ledger/internal/id"
	"github.com/cleared-dev/ledger/internal/model"
)

const matchColumns = `id, tenant_id, bank_transaction_id, journal_entry_id, journal_line_no, confidence_score,
	amount_score, date_score, description_score, match_type, status, rule_id, suggested_account_id,
	supersedes_id, superseded, created_by, created_at`

func scanMatch(row interface{ Scan(...any) error }) (model.ReconciliationMatch, error) {
	var (
		m                          model.ReconciliationMatch
		entryID, ruleID, suggested sql.NullString
		supersedes, createdAt      sql.NullString
		matchType, status          string
		superseded                 int
	)
	if err := row.Scan(&m.ID, &m.TenantID, &m.BankTransactionID, &entryID, &m.JournalLineNo, &m.ConfidenceScore,
		&m.AmountScore, &m.DateScore, &m.DescriptionScore, &matchType, &status, &ruleID, &suggested,
		&supersedes, &superseded, &m.CreatedBy, &createdAt); err != nil {
		return model.ReconciliationMatch{}, err
	}
	var err error
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.ReconciliationMatch{}, err
	}
	m.JournalEntryID = entryID.String
	m.RuleID = ruleID.String
	m.SuggestedAccountID = suggested.String
	m.SupersedesID = supersedes.String
	m.MatchType = model.MatchType(matchType)
	m.Status = model.MatchStatus(status)
	m.Superseded = superseded == 1
	return m, nil
}

func insertMatch(ctx context.Context, tx *sql.Tx, m model.ReconciliationMatch) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO reconciliation_matches (id, tenant_id, bank_transaction_id, journal_entry_id, journal_line_no,
			confidence_score, amount_score, date_score, description_score, match_type, status, rule_id,
			suggested_account_id, supersedes_id, superseded, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		m.ID, m.TenantID, m.BankTransactionID, nullString(m.JournalEntryID), m.JournalLineNo,
		m.ConfidenceScore, m.AmountScore, m.DateScore, m.DescriptionScore, string(m.MatchType), string(m.Status),
		nullString(m.RuleID), nullString(m.SuggestedAccountID), nullString(m.SupersedesID),
		m.CreatedBy, formatTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting match %s: %w", m.ID, err)
	}
	return nil
}

// Candidate is a posted line on a bank-clearing account that may explain a
// bank transaction.
type Candidate struct {
	EntryID          string
	EntryNumber      string
	LineNo           int
	AccountID        string
	Date             time.Time
	EntryDescription string
	LineDescription  string
	Amount           int64 // debit minus credit on the clearing account
}

// CandidateQuery bounds a candidate search. Amounts are absolute.
type CandidateQuery struct {
	TenantID          string
	BankAccountID     string
	BankTransactionID string
	From              time.Time
	To                time.Time
	MinAmount         int64
	MaxAmount         int64
}

// FindCandidates returns lines of posted, non-reversal entries on the clearing
// accounts of a bank account. Entries confirmed for another transaction and
// entries already rejected for this one are excluded.
func (s *Store) FindCandidates(ctx context.Context, q CandidateQuery) ([]Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, COALESCE(e.number, ''), l.line_no, l.account_id, e.entry_date, e.description,
			l.description, l.debit - l.credit
		FROM journal_entry_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		JOIN accounts a ON a.id = l.account_id
		WHERE e.tenant_id = ? AND a.tenant_id = e.tenant_id AND a.bank_account_id = ?
		  AND e.status = 'posted' AND e.reversal_of IS NULL
		  AND e.entry_date BETWEEN ? AND ?
		  AND ABS(l.debit - l.credit) BETWEEN ? AND ?
		  AND NOT EXISTS (
			SELECT 1 FROM reconciliation_matches m
			WHERE m.tenant_id = e.tenant_id AND m.journal_entry_id = e.id
			  AND m.status = 'confirmed' AND m.bank_transaction_id <> ?)
		  AND NOT EXISTS (
			SELECT 1 FROM reconciliation_matches m
			WHERE m.tenant_id = e.tenant_id AND m.journal_entry_id = e.id
			  AND m.status = 'rejected' AND m.bank_transaction_id = ?)
		ORDER BY e.entry_date, e.number, l.line_no`,
		q.TenantID, q.BankAccountID, formatDay(q.From), formatDay(q.To), q.MinAmount, q.MaxAmount,
		q.BankTransactionID, q.BankTransactionID)
	if err != nil {
		return nil, classify("find candidates", fmt.Errorf("querying candidates: %w", err))
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var (
			c    Candidate
			date string
		)
		if err := rows.Scan(&c.EntryID, &c.EntryNumber, &c.LineNo, &c.AccountID, &date,
			&c.EntryDescription, &c.LineDescription, &c.Amount); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		if c.Date, err = parseDay(date); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, classify("find candidates", rows.Err())
}

func livePendingCount(ctx context.Context, q queryer, tenantID, txID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reconciliation_matches
		WHERE tenant_id = ? AND bank_transaction_id = ? AND status = 'pending' AND superseded = 0`,
		tenantID, txID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting pending matches: %w", err)
	}
	return n, nil
}

// PendingMatchCount returns the number of unreviewed matches of a transaction.
func (s *Store) PendingMatchCount(ctx context.Context, tenantID, txID string) (int, error) {
	n, err := livePendingCount(ctx, s.db, tenantID, txID)
	return n, classify("pending matches", err)
}

func confirmedElsewhere(ctx context.Context, q queryer, tenantID, entryID, txID string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reconciliation_matches
		WHERE tenant_id = ? AND journal_entry_id = ? AND status = 'confirmed' AND bank_transaction_id <> ?`,
		tenantID, entryID, txID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking confirmed matches: %w", err)
	}
	return n > 0, nil
}

func setBankStatus(ctx context.Context, tx *sql.Tx, tenantID, txID string, status model.BankTransactionStatus) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE bank_transactions SET status = ? WHERE tenant_id = ? AND id = ?`,
		string(status), tenantID, txID); err != nil {
		return fmt.Errorf("updating bank transaction %s: %w", txID, err)
	}
	return nil
}

// RecordMatches persists the scored matches of one transaction in a single
// transaction. A confirmed match moves the transaction to matched. It returns
// false without writing when the transaction is no longer unmatched or
// already has pending matches, so concurrent or repeated runs add nothing.
func (s *Store) RecordMatches(ctx context.Context, tenantID, txID string, matches []model.ReconciliationMatch) (bool, error) {
	recorded := false
	err := s.Transaction(ctx, "record matches", func(tx *sql.Tx) error {
		bt, err := getBankTransaction(ctx, tx, tenantID, txID)
		if err != nil {
			return err
		}
		if bt.Status != model.BankUnmatched {
			return nil
		}
		pending, err := livePendingCount(ctx, tx, tenantID, txID)
		if err != nil {
			return err
		}
		if pending > 0 {
			return nil
		}

		confirmed := false
		for _, m := range matches {
			if m.Status == model.MatchConfirmed {
				taken, err := confirmedElsewhere(ctx, tx, tenantID, m.JournalEntryID, txID)
				if err != nil {
					return err
				}
				if taken {
					return &model.StateError{Code: model.CodeAlreadyResolved, Entity: "journal_entry", ID: m.JournalEntryID}
				}
				confirmed = true
			}
			if err := insertMatch(ctx, tx, m); err != nil {
				return err
			}
		}
		if confirmed {
			if err := setBankStatus(ctx, tx, tenantID, txID, model.BankMatched); err != nil {
				return err
			}
		}
		recorded = true
		return nil
	})
	return recorded, err
}

func getMatch(ctx context.Context, q queryer, tenantID, matchID string) (model.ReconciliationMatch, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM reconciliation_matches WHERE tenant_id = ? AND id = ?`, tenantID, matchID)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ReconciliationMatch{}, model.NotFound("reconciliation_match", matchID)
	}
	if err != nil {
		return model.ReconciliationMatch{}, fmt.Errorf("reading match %s: %w", matchID, err)
	}
	return m, nil
}

// GetMatch returns one match row.
func (s *Store) GetMatch(ctx context.Context, tenantID, matchID string) (model.ReconciliationMatch, error) {
	m, err := getMatch(ctx, s.db, tenantID, matchID)
	return m, classify("get match", err)
}

// supersede flags a row superseded and inserts its successor.
func supersede(ctx context.Context, tx *sql.Tx, old model.ReconciliationMatch, next model.ReconciliationMatch) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE reconciliation_matches SET superseded = 1 WHERE tenant_id = ? AND id = ?`,
		old.TenantID, old.ID); err != nil {
		return fmt.Errorf("superseding match %s: %w", old.ID, err)
	}
	return insertMatch(ctx, tx, next)
}

func successor(old model.ReconciliationMatch, status model.MatchStatus, actor string, at time.Time) model.ReconciliationMatch {
	next := old
	next.ID = id.New()
	next.Status = status
	next.SupersedesID = old.ID
	next.Superseded = false
	next.CreatedBy = actor
	next.CreatedAt = at
	return next
}

func rejectOtherPending(ctx context.Context, tx *sql.Tx, tenantID, txID, keepID, actor string, at time.Time) error {
	rows, err := tx.QueryContext(ctx, `SELECT `+matchColumns+` FROM reconciliation_matches
		WHERE tenant_id = ? AND bank_transaction_id = ? AND status = 'pending' AND superseded = 0 AND id <> ?`,
		tenantID, txID, keepID)
	if err != nil {
		return fmt.Errorf("querying pending matches: %w", err)
	}
	var others []model.ReconciliationMatch
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			rows.Close()
			return fmt.Errorf("scanning match: %w", err)
		}
		others = append(others, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, m := range others {
		if err := supersede(ctx, tx, m, successor(m, model.MatchRejected, actor, at)); err != nil {
			return err
		}
	}
	return nil
}

// ResolveMatch records a reviewer's decision on a pending match. The reviewed
// row is superseded by a new confirmed or rejected row. Confirming reconciles
// the transaction and rejects its other pending matches; rejecting leaves the
// transaction unmatched. A row that is not pending, or already superseded,
// yields AlreadyResolved.
func (s *Store) ResolveMatch(ctx context.Context, tenantID, matchID string, decision model.MatchStatus, actor string, at time.Time) (model.ReconciliationMatch, error) {
	var next model.ReconciliationMatch
	err := s.Transaction(ctx, "resolve match", func(tx *sql.Tx) error {
		m, err := getMatch(ctx, tx, tenantID, matchID)
		if err != nil {
			return err
		}
		if m.Status != model.MatchPending || m.Superseded {
			return &model.StateError{Code: model.CodeAlreadyResolved, Entity: "reconciliation_match", ID: matchID}
		}

		next = successor(m, decision, actor, at)
		if err := supersede(ctx, tx, m, next); err != nil {
			return err
		}
		if decision != model.MatchConfirmed {
			return nil
		}

		taken, err := confirmedElsewhere(ctx, tx, tenantID, m.JournalEntryID, m.BankTransactionID)
		if err != nil {
			return err
		}
		if taken {
			return &model.StateError{Code: model.CodeAlreadyResolved, Entity: "journal_entry", ID: m.JournalEntryID}
		}
		if err := rejectOtherPending(ctx, tx, tenantID, m.BankTransactionID, m.ID, actor, at); err != nil {
			return err
		}
		return setBankStatus(ctx, tx, tenantID, m.BankTransactionID, model.BankReconciled)
	})
	return next, err
}

// InsertManualMatch records a reviewer-chosen confirmed match. The transaction
// must still be unmatched and the entry must be posted, not a reversal, and not
// confirmed for another transaction. Pending matches of the transaction are
// rejected and the transaction becomes reconciled.
func (s *Store) InsertManualMatch(ctx context.Context, m model.ReconciliationMatch) error {
	return s.Transaction(ctx, "manual match", func(tx *sql.Tx) error {
		bt, err := getBankTransaction(ctx, tx, m.TenantID, m.BankTransactionID)
		if err != nil {
			return err
		}
		if bt.Status != model.BankUnmatched {
			return &model.StateError{Code: model.CodeAlreadyResolved, Entity: "bank_transaction", ID: bt.ID}
		}
		e, err := getEntry(ctx, tx, m.TenantID, m.JournalEntryID)
		if err != nil {
			return err
		}
		if e.Status != model.StatusPosted || e.ReversalOf != "" {
			return &model.StateError{Code: model.CodeNotPosted, Entity: "journal_entry", ID: e.ID}
		}
		taken, err := confirmedElsewhere(ctx, tx, m.TenantID, e.ID, bt.ID)
		if err != nil {
			return err
		}
		if taken {
			return &model.StateError{Code: model.CodeAlreadyResolved, Entity: "journal_entry", ID: e.ID}
		}
		if err := rejectOtherPending(ctx, tx, m.TenantID, bt.ID, "", m.CreatedBy, m.CreatedAt); err != nil {
			return err
		}
		if err := insertMatch(ctx, tx, m); err != nil {
			return err
		}
		return setBankStatus(ctx, tx, m.TenantID, bt.ID, model.BankReconciled)
	})
}

// MatchFilter narrows ListMatches. Zero fields do not filter.
type MatchFilter struct {
	TenantID          string
	BankTransactionID string
	Status            model.MatchStatus
	IncludeSuperseded bool
}

// ListMatches returns match rows ordered by creation, highest score first.
func (s *Store) ListMatches(ctx context.Context, f MatchFilter) ([]model.ReconciliationMatch, error) {
	query := `SELECT ` + matchColumns + ` FROM reconciliation_matches WHERE tenant_id = ?`
	args := []any{f.TenantID}
	if f.BankTransactionID != "" {
		query += ` AND bank_transaction_id = ?`
		args = append(args, f.BankTransactionID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if !f.IncludeSuperseded {
		query += ` AND superseded = 0`
	}
	query += ` ORDER BY created_at, confidence_score DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("list matches", fmt.Errorf("querying matches: %w", err))
	}
	defer rows.Close()

	var out []model.ReconciliationMatch
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		out = append(out, m)
	}
	return out, classify("list matches", rows.Err())
}

// MatchStats summarizes reconciliation progress for a bank account.
type MatchStats struct {
	Unmatched           int
	Matched             int
	Reconciled          int
	PendingMatches      int
	ConfirmedMatches    int
	AverageConfirmScore int
}

// Stats reports per-status transaction counts and match figures. An empty
// bankAccountID covers every bank account of the tenant.
func (s *Store) Stats(ctx context.Context, tenantID, bankAccountID string) (MatchStats, error) {
	var st MatchStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'unmatched' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'matched' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'reconciled' THEN 1 ELSE 0 END), 0)
		FROM bank_transactions
		WHERE tenant_id = ? AND (? = '' OR bank_account_id = ?)`,
		tenantID, bankAccountID, bankAccountID,
	).Scan(&st.Unmatched, &st.Matched, &st.Reconciled)
	if err != nil {
		return st, classify("stats", fmt.Errorf("counting transactions: %w", err))
	}

	var avg sql.NullFloat64
	err = s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN m.status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN m.status = 'confirmed' THEN 1 ELSE 0 END), 0),
			AVG(CASE WHEN m.status = 'confirmed' THEN m.confidence_score END)
		FROM reconciliation_matches m
		JOIN bank_transactions t ON t.id = m.bank_transaction_id
		WHERE m.tenant_id = ? AND m.superseded = 0 AND (? = '' OR t.bank_account_id = ?)`,
		tenantID, bankAccountID, bankAccountID,
	).Scan(&st.PendingMatches, &st.ConfirmedMatches, &avg)
	if err != nil {
		return st, classify("stats", fmt.Errorf("summarizing matches: %w", err))
	}
	if avg.Valid {
		st.AverageConfirmScore = int(avg.Float64 + 0.5)
	}
	return st, nil
}
