package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cleared-dev/ledger/internal/model"
)

const periodColumns = `id, tenant_id, name, start_date, end_date, is_closed, closed_at, closed_by`

func scanPeriod(row interface{ Scan(...any) error }) (model.AccountingPeriod, error) {
	var (
		p                model.AccountingPeriod
		start, end       string
		closed           int
		closedAt, closer sql.NullString
	)
	if err := row.Scan(&p.ID, &p.TenantID, &p.Name, &start, &end, &closed, &closedAt, &closer); err != nil {
		return model.AccountingPeriod{}, err
	}
	var err error
	if p.StartDate, err = parseDay(start); err != nil {
		return model.AccountingPeriod{}, err
	}
	if p.EndDate, err = parseDay(end); err != nil {
		return model.AccountingPeriod{}, err
	}
	if p.ClosedAt, err = parseTime(closedAt); err != nil {
		return model.AccountingPeriod{}, err
	}
	p.IsClosed = closed == 1
	p.ClosedBy = closer.String
	return p, nil
}

// InsertPeriod stores a new accounting period.
func (s *Store) InsertPeriod(ctx context.Context, p model.AccountingPeriod) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounting_periods (id, tenant_id, name, start_date, end_date)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.TenantID, p.Name, formatDay(p.StartDate), formatDay(p.EndDate))
	if err != nil {
		return classify("insert period", fmt.Errorf("inserting period %s: %w", p.Name, err))
	}
	return nil
}

// GetPeriod returns one period of a tenant.
func (s *Store) GetPeriod(ctx context.Context, tenantID, periodID string) (model.AccountingPeriod, error) {
	return getPeriod(ctx, s.db, tenantID, periodID)
}

func getPeriod(ctx context.Context, q queryer, tenantID, periodID string) (model.AccountingPeriod, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+periodColumns+` FROM accounting_periods WHERE tenant_id = ? AND id = ?`, tenantID, periodID)
	p, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AccountingPeriod{}, model.NotFound("accounting_period", periodID)
	}
	if err != nil {
		return model.AccountingPeriod{}, classify("get period", fmt.Errorf("reading period %s: %w", periodID, err))
	}
	return p, nil
}

// ListPeriods returns a tenant's periods ordered by start date.
func (s *Store) ListPeriods(ctx context.Context, tenantID string) ([]model.AccountingPeriod, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+periodColumns+` FROM accounting_periods WHERE tenant_id = ? ORDER BY start_date`, tenantID)
	if err != nil {
		return nil, classify("list periods", fmt.Errorf("querying periods: %w", err))
	}
	defer rows.Close()

	var out []model.AccountingPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning period: %w", err)
		}
		out = append(out, p)
	}
	return out, classify("list periods", rows.Err())
}

// ClosePeriod marks a period closed in one transaction. It fails with
// AlreadyClosed when the period is closed and with UnpostedDrafts, listing the
// draft ids, when drafts remain inside it.
func (s *Store) ClosePeriod(ctx context.Context, tenantID, periodID, actor string, at time.Time) (model.AccountingPeriod, error) {
	var closed model.AccountingPeriod
	err := s.Transaction(ctx, "close period", func(tx *sql.Tx) error {
		p, err := getPeriod(ctx, tx, tenantID, periodID)
		if err != nil {
			return err
		}
		if p.IsClosed {
			return &model.StateError{Code: model.CodeAlreadyClosed, Entity: "accounting_period", ID: periodID}
		}

		drafts, err := draftIDs(ctx, tx, tenantID, periodID)
		if err != nil {
			return err
		}
		if len(drafts) > 0 {
			return &model.StateError{Code: model.CodeUnpostedDrafts, Entity: "accounting_period", ID: periodID, Offending: drafts}
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE accounting_periods SET is_closed = 1, closed_at = ?, closed_by = ?
			WHERE tenant_id = ? AND id = ?`,
			formatTime(at), actor, tenantID, periodID); err != nil {
			return fmt.Errorf("closing period %s: %w", periodID, err)
		}
		p.IsClosed = true
		p.ClosedAt = at.UTC()
		p.ClosedBy = actor
		closed = p
		return nil
	})
	return closed, err
}

// requireOpenPeriod reads the period inside the caller's transaction so a
// close committed by another process is seen before anything is written.
func requireOpenPeriod(ctx context.Context, q queryer, tenantID, periodID string) error {
	var closed bool
	err := q.QueryRowContext(ctx,
		`SELECT is_closed FROM accounting_periods WHERE tenant_id = ? AND id = ?`, tenantID, periodID).Scan(&closed)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return &model.StateError{Code: model.CodeNoPeriod, Entity: "accounting_period", ID: periodID}
	case err != nil:
		return fmt.Errorf("checking period %s: %w", periodID, err)
	case closed:
		return &model.StateError{Code: model.CodeClosedPeriod, Entity: "accounting_period", ID: periodID}
	}
	return nil
}

func draftIDs(ctx context.Context, q queryer, tenantID, periodID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id FROM journal_entries
		WHERE tenant_id = ? AND period_id = ? AND status = 'draft'
		ORDER BY entry_date, id`, tenantID, periodID)
	if err != nil {
		return nil, fmt.Errorf("querying drafts: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning draft id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PeriodSummary is the closing readiness of one period.
type PeriodSummary struct {
	DraftIDs    []string
	PostedCount int
	VoidCount   int
	TotalDebit  int64
	TotalCredit int64
}

// SummarizePeriod reports the drafts and posting totals of a period.
func (s *Store) SummarizePeriod(ctx context.Context, tenantID, periodID string) (PeriodSummary, error) {
	var sum PeriodSummary
	drafts, err := draftIDs(ctx, s.db, tenantID, periodID)
	if err != nil {
		return sum, classify("summarize period", err)
	}
	sum.DraftIDs = drafts

	err = s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'posted' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'void' THEN 1 ELSE 0 END), 0)
		FROM journal_entries
		WHERE tenant_id = ? AND period_id = ?`, tenantID, periodID,
	).Scan(&sum.PostedCount, &sum.VoidCount)
	if err != nil {
		return sum, classify("summarize period", fmt.Errorf("counting entries: %w", err))
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
		FROM journal_entry_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		WHERE e.tenant_id = ? AND e.period_id = ? AND e.status IN ('posted', 'void')`,
		tenantID, periodID,
	).Scan(&sum.TotalDebit, &sum.TotalCredit)
	if err != nil {
		return sum, classify("summarize period", fmt.Errorf("summing lines: %w", err))
	}
	return sum, nil
}
