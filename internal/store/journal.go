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

const entryColumns = `id, tenant_id, period_id, number, entry_date, description, status, reversal_of, reversed_by, created_by, posted_at, voided_at`

func scanEntry(row interface{ Scan(...any) error }) (model.JournalEntry, error) {
	var (
		e                  model.JournalEntry
		number, reversalOf sql.NullString
		reversedBy         sql.NullString
		postedAt, voidedAt sql.NullString
		date, status       string
	)
	if err := row.Scan(&e.ID, &e.TenantID, &e.PeriodID, &number, &date, &e.Description, &status,
		&reversalOf, &reversedBy, &e.CreatedBy, &postedAt, &voidedAt); err != nil {
		return model.JournalEntry{}, err
	}
	var err error
	if e.Date, err = parseDay(date); err != nil {
		return model.JournalEntry{}, err
	}
	if e.PostedAt, err = parseTime(postedAt); err != nil {
		return model.JournalEntry{}, err
	}
	if e.VoidedAt, err = parseTime(voidedAt); err != nil {
		return model.JournalEntry{}, err
	}
	e.Number = number.String
	e.Status = model.EntryStatus(status)
	e.ReversalOf = reversalOf.String
	e.ReversedBy = reversedBy.String
	return e, nil
}

func loadLines(ctx context.Context, q queryer, entryID string) ([]model.JournalLine, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT line_no, account_id, description, debit, credit
		FROM journal_entry_lines WHERE entry_id = ? ORDER BY line_no`, entryID)
	if err != nil {
		return nil, fmt.Errorf("querying lines of %s: %w", entryID, err)
	}
	defer rows.Close()

	var lines []model.JournalLine
	for rows.Next() {
		var l model.JournalLine
		if err := rows.Scan(&l.LineNo, &l.AccountID, &l.Description, &l.Debit, &l.Credit); err != nil {
			return nil, fmt.Errorf("scanning line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func getEntry(ctx context.Context, q queryer, tenantID, entryID string) (model.JournalEntry, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM journal_entries WHERE tenant_id = ? AND id = ?`, tenantID, entryID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.JournalEntry{}, model.NotFound("journal_entry", entryID)
	}
	if err != nil {
		return model.JournalEntry{}, fmt.Errorf("reading entry %s: %w", entryID, err)
	}
	if e.Lines, err = loadLines(ctx, q, e.ID); err != nil {
		return model.JournalEntry{}, err
	}
	return e, nil
}

// GetEntry returns an entry of any status with its lines.
func (s *Store) GetEntry(ctx context.Context, tenantID, entryID string) (model.JournalEntry, error) {
	e, err := getEntry(ctx, s.db, tenantID, entryID)
	return e, classify("get entry", err)
}

// EntryByIdempotencyKey returns the entry a key was first used for.
func (s *Store) EntryByIdempotencyKey(ctx context.Context, tenantID, key string) (model.JournalEntry, bool, error) {
	var entryID string
	err := s.db.QueryRowContext(ctx,
		`SELECT entry_id FROM idempotency_keys WHERE tenant_id = ? AND key = ?`, tenantID, key).Scan(&entryID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.JournalEntry{}, false, nil
	}
	if err != nil {
		return model.JournalEntry{}, false, classify("idempotency lookup", fmt.Errorf("reading idempotency key: %w", err))
	}
	e, err := s.GetEntry(ctx, tenantID, entryID)
	if err != nil {
		return model.JournalEntry{}, false, err
	}
	return e, true, nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, e model.JournalEntry, createdAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO journal_entries (id, tenant_id, period_id, number, entry_date, description, status,
			reversal_of, created_by, created_at, posted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TenantID, e.PeriodID, nullString(e.Number), formatDay(e.Date), e.Description, string(e.Status),
		nullString(e.ReversalOf), e.CreatedBy, createdAt.UTC().Format(timeFormat), formatTime(e.PostedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting entry %s: %w", e.ID, err)
	}
	return insertLines(ctx, tx, e.ID, e.Lines)
}

func insertLines(ctx context.Context, tx *sql.Tx, entryID string, lines []model.JournalLine) error {
	for _, l := range lines {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO journal_entry_lines (entry_id, line_no, account_id, description, debit, credit)
			VALUES (?, ?, ?, ?, ?, ?)`,
			entryID, l.LineNo, l.AccountID, l.Description, l.Debit, l.Credit); err != nil {
			return fmt.Errorf("inserting line %d of %s: %w", l.LineNo, entryID, err)
		}
	}
	return nil
}

func nextEntryNumber(ctx context.Context, tx *sql.Tx, tenantID string, date time.Time) (string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT number FROM journal_entries WHERE tenant_id = ? AND number LIKE ?`,
		tenantID, id.EntryNumberPrefix(date)+"%")
	if err != nil {
		return "", fmt.Errorf("querying entry numbers: %w", err)
	}
	defer rows.Close()
	var existing []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return "", fmt.Errorf("scanning entry number: %w", err)
		}
		existing = append(existing, n)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return id.NextEntryNumber(date, existing), nil
}

// CommitPosting writes a posted entry in one transaction: the entry and its
// lines, the entry number, the idempotency key and the balance-cache deltas.
// A saved draft with the same id is replaced. The assigned number is set on e.
// The entry's period must still be open when the transaction runs.
func (s *Store) CommitPosting(ctx context.Context, e *model.JournalEntry, idempotencyKey string) error {
	return s.Transaction(ctx, "commit posting", func(tx *sql.Tx) error {
		if err := requireOpenPeriod(ctx, tx, e.TenantID, e.PeriodID); err != nil {
			return err
		}
		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM journal_entries WHERE tenant_id = ? AND id = ?`, e.TenantID, e.ID).Scan(&status)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("checking entry %s: %w", e.ID, err)
		case status != string(model.StatusDraft):
			return &model.StateError{Code: model.CodeNotDraft, Entity: "journal_entry", ID: e.ID}
		default:
			if _, err := tx.ExecContext(ctx, `DELETE FROM journal_entries WHERE id = ?`, e.ID); err != nil {
				return fmt.Errorf("replacing draft %s: %w", e.ID, err)
			}
		}

		number, err := nextEntryNumber(ctx, tx, e.TenantID, e.Date)
		if err != nil {
			return err
		}
		e.Number = number
		e.Status = model.StatusPosted

		if err := insertEntry(ctx, tx, *e, s.now()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO idempotency_keys (tenant_id, key, entry_id, created_at) VALUES (?, ?, ?, ?)`,
			e.TenantID, idempotencyKey, e.ID, s.now().UTC().Format(timeFormat)); err != nil {
			return fmt.Errorf("recording idempotency key: %w", err)
		}
		return applyBalanceDeltas(ctx, tx, e.Lines)
	})
}

// CommitVoid posts reversal and marks original void in one transaction. The
// original must still be posted. The assigned number is set on reversal.
func (s *Store) CommitVoid(ctx context.Context, originalID string, reversal *model.JournalEntry, voidedAt time.Time) error {
	return s.Transaction(ctx, "commit void", func(tx *sql.Tx) error {
		if err := requireOpenPeriod(ctx, tx, reversal.TenantID, reversal.PeriodID); err != nil {
			return err
		}
		number, err := nextEntryNumber(ctx, tx, reversal.TenantID, reversal.Date)
		if err != nil {
			return err
		}
		reversal.Number = number
		reversal.Status = model.StatusPosted
		if err := insertEntry(ctx, tx, *reversal, s.now()); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE journal_entries SET status = 'void', reversed_by = ?, voided_at = ?
			WHERE tenant_id = ? AND id = ? AND status = 'posted' AND reversal_of IS NULL`,
			reversal.ID, formatTime(voidedAt), reversal.TenantID, originalID)
		if err != nil {
			return fmt.Errorf("voiding entry %s: %w", originalID, err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return &model.StateError{Code: model.CodeNotPosted, Entity: "journal_entry", ID: originalID}
		}
		return applyBalanceDeltas(ctx, tx, reversal.Lines)
	})
}

// SaveDraft inserts or replaces a draft entry and its lines. An existing entry
// that is no longer a draft is left untouched and NotDraft returned.
func (s *Store) SaveDraft(ctx context.Context, e model.JournalEntry) error {
	return s.Transaction(ctx, "save draft", func(tx *sql.Tx) error {
		if err := requireOpenPeriod(ctx, tx, e.TenantID, e.PeriodID); err != nil {
			return err
		}
		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM journal_entries WHERE tenant_id = ? AND id = ?`, e.TenantID, e.ID).Scan(&status)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			e.Status = model.StatusDraft
			e.PostedAt = time.Time{}
			return insertEntry(ctx, tx, e, s.now())
		case err != nil:
			return fmt.Errorf("checking draft %s: %w", e.ID, err)
		case status != string(model.StatusDraft):
			return &model.StateError{Code: model.CodeNotDraft, Entity: "journal_entry", ID: e.ID}
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE journal_entries SET period_id = ?, entry_date = ?, description = ?
			WHERE tenant_id = ? AND id = ?`,
			e.PeriodID, formatDay(e.Date), e.Description, e.TenantID, e.ID); err != nil {
			return fmt.Errorf("updating draft %s: %w", e.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM journal_entry_lines WHERE entry_id = ?`, e.ID); err != nil {
			return fmt.Errorf("clearing draft lines: %w", err)
		}
		return insertLines(ctx, tx, e.ID, e.Lines)
	})
}

// DeleteDraft removes a draft and its lines without leaving a trace.
func (s *Store) DeleteDraft(ctx context.Context, tenantID, entryID string) error {
	return s.Transaction(ctx, "delete draft", func(tx *sql.Tx) error {
		e, err := getEntry(ctx, tx, tenantID, entryID)
		if err != nil {
			return err
		}
		if e.Status != model.StatusDraft {
			return &model.StateError{Code: model.CodeNotDraft, Entity: "journal_entry", ID: entryID}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM journal_entries WHERE tenant_id = ? AND id = ?`, tenantID, entryID); err != nil {
			return fmt.Errorf("deleting draft %s: %w", entryID, err)
		}
		return nil
	})
}

// EntryFilter narrows ListEntries. Zero fields do not filter.
type EntryFilter struct {
	TenantID  string
	Status    model.EntryStatus
	From      time.Time
	To        time.Time
	AccountID string
	Limit     int
}

// ListEntries returns entries with their lines ordered by date and number.
func (s *Store) ListEntries(ctx context.Context, f EntryFilter) ([]model.JournalEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE tenant_id = ?`
	args := []any{f.TenantID}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if !f.From.IsZero() {
		query += ` AND entry_date >= ?`
		args = append(args, formatDay(f.From))
	}
	if !f.To.IsZero() {
		query += ` AND entry_date <= ?`
		args = append(args, formatDay(f.To))
	}
	if f.AccountID != "" {
		query += ` AND id IN (SELECT entry_id FROM journal_entry_lines WHERE account_id = ?)`
		args = append(args, f.AccountID)
	}
	query += ` ORDER BY entry_date, COALESCE(number, ''), id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("list entries", fmt.Errorf("querying entries: %w", err))
	}
	var entries []model.JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, classify("list entries", err)
	}

	// Lines are loaded after the cursor is closed; the pool has one connection.
	for i := range entries {
		if entries[i].Lines, err = loadLines(ctx, s.db, entries[i].ID); err != nil {
			return nil, classify("list entries", err)
		}
	}
	return entries, nil
}

// AccountTotals is one row of a trial balance.
type AccountTotals struct {
	AccountID string
	Number    string
	Name      string
	Type      model.AccountType
	Debit     int64
	Credit    int64
}

// TrialBalance totals the debit and credit of every account with postings
// dated on or before asOf.
func (s *Store) TrialBalance(ctx context.Context, tenantID string, asOf time.Time) ([]AccountTotals, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.number, a.name, a.type, SUM(l.debit), SUM(l.credit)
		FROM journal_entry_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		JOIN accounts a ON a.id = l.account_id
		WHERE e.tenant_id = ? AND e.status IN ('posted', 'void') AND e.entry_date <= ?
		GROUP BY a.id, a.number, a.name, a.type
		ORDER BY a.number`, tenantID, formatDay(asOf))
	if err != nil {
		return nil, classify("trial balance", fmt.Errorf("querying trial balance: %w", err))
	}
	defer rows.Close()

	var out []AccountTotals
	for rows.Next() {
		var (
			t   AccountTotals
			typ string
		)
		if err := rows.Scan(&t.AccountID, &t.Number, &t.Name, &typ, &t.Debit, &t.Credit); err != nil {
			return nil, fmt.Errorf("scanning trial balance: %w", err)
		}
		t.Type = model.AccountType(typ)
		out = append(out, t)
	}
	return out, classify("trial balance", rows.Err())
}
