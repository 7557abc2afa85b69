package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cleared-dev/ledger/internal/model"
)

const bankColumns = `id, tenant_id, bank_account_id, tx_date, amount, currency, description, reference, status, imported_at`

func scanBankTransaction(row interface{ Scan(...any) error }) (model.BankTransaction, error) {
	var (
		t            model.BankTransaction
		date, status string
		importedAt   sql.NullString
	)
	if err := row.Scan(&t.ID, &t.TenantID, &t.BankAccountID, &date, &t.Amount, &t.Currency,
		&t.Description, &t.Reference, &status, &importedAt); err != nil {
		return model.BankTransaction{}, err
	}
	var err error
	if t.Date, err = parseDay(date); err != nil {
		return model.BankTransaction{}, err
	}
	if t.ImportedAt, err = parseTime(importedAt); err != nil {
		return model.BankTransaction{}, err
	}
	t.Status = model.BankTransactionStatus(status)
	return t, nil
}

// InsertBankTransactions stores new transactions in one transaction. Rows
// whose reference already exists for the bank account are skipped and
// returned as skipped.
func (s *Store) InsertBankTransactions(ctx context.Context, txs []model.BankTransaction) (inserted, skipped []model.BankTransaction, err error) {
	err = s.Transaction(ctx, "import bank transactions", func(tx *sql.Tx) error {
		inserted, skipped = nil, nil
		for _, t := range txs {
			if t.Status == "" {
				t.Status = model.BankUnmatched
			}
			if t.ImportedAt.IsZero() {
				t.ImportedAt = s.now().UTC()
			}
			res, err := tx.ExecContext(ctx, `
				INSERT INTO bank_transactions (id, tenant_id, bank_account_id, tx_date, amount, currency,
					description, reference, status, imported_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(tenant_id, bank_account_id, reference) DO NOTHING`,
				t.ID, t.TenantID, t.BankAccountID, formatDay(t.Date), t.Amount, t.Currency,
				t.Description, t.Reference, string(t.Status), formatTime(t.ImportedAt))
			if err != nil {
				return fmt.Errorf("inserting bank transaction %s: %w", t.Reference, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				skipped = append(skipped, t)
				continue
			}
			inserted = append(inserted, t)
		}
		return nil
	})
	return inserted, skipped, err
}

// GetBankTransaction returns one bank transaction of a tenant.
func (s *Store) GetBankTransaction(ctx context.Context, tenantID, txID string) (model.BankTransaction, error) {
	t, err := getBankTransaction(ctx, s.db, tenantID, txID)
	return t, classify("get bank transaction", err)
}

func getBankTransaction(ctx context.Context, q queryer, tenantID, txID string) (model.BankTransaction, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+bankColumns+` FROM bank_transactions WHERE tenant_id = ? AND id = ?`, tenantID, txID)
	t, err := scanBankTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BankTransaction{}, model.NotFound("bank_transaction", txID)
	}
	if err != nil {
		return model.BankTransaction{}, fmt.Errorf("reading bank transaction %s: %w", txID, err)
	}
	return t, nil
}

// BankFilter narrows ListBankTransactions. Zero fields do not filter.
type BankFilter struct {
	TenantID      string
	BankAccountID string
	Status        model.BankTransactionStatus
	Through       time.Time
}

// ListBankTransactions returns transactions ordered by date then reference.
func (s *Store) ListBankTransactions(ctx context.Context, f BankFilter) ([]model.BankTransaction, error) {
	query := `SELECT ` + bankColumns + ` FROM bank_transactions WHERE tenant_id = ?`
	args := []any{f.TenantID}
	if f.BankAccountID != "" {
		query += ` AND bank_account_id = ?`
		args = append(args, f.BankAccountID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if !f.Through.IsZero() {
		query += ` AND tx_date <= ?`
		args = append(args, formatDay(f.Through))
	}
	query += ` ORDER BY tx_date, reference`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("list bank transactions", fmt.Errorf("querying bank transactions: %w", err))
	}
	defer rows.Close()

	var out []model.BankTransaction
	for rows.Next() {
		t, err := scanBankTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning bank transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, classify("list bank transactions", rows.Err())
}

// Tenants returns every tenant with accounts or bank transactions.
func (s *Store) Tenants(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tenant_id FROM accounts
		UNION
		SELECT tenant_id FROM bank_transactions
		ORDER BY tenant_id`)
	if err != nil {
		return nil, classify("list tenants", fmt.Errorf("querying tenants: %w", err))
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scanning tenant: %w", err)
		}
		out = append(out, t)
	}
	return out, classify("list tenants", rows.Err())
}

// ReconcileMatched promotes matched transactions dated on or before through
// to reconciled and returns their ids.
func (s *Store) ReconcileMatched(ctx context.Context, tenantID, bankAccountID string, through time.Time) ([]string, error) {
	var ids []string
	err := s.Transaction(ctx, "reconcile matched", func(tx *sql.Tx) error {
		ids = nil
		rows, err := tx.QueryContext(ctx, `
			SELECT id FROM bank_transactions
			WHERE tenant_id = ? AND bank_account_id = ? AND status = 'matched' AND tx_date <= ?
			ORDER BY tx_date, reference`, tenantID, bankAccountID, formatDay(through))
		if err != nil {
			return fmt.Errorf("querying matched transactions: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scanning transaction id: %w", err)
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx,
				`UPDATE bank_transactions SET status = 'reconciled' WHERE tenant_id = ? AND id = ?`,
				tenantID, id); err != nil {
				return fmt.Errorf("reconciling %s: %w", id, err)
			}
		}
		return nil
	})
	return ids, err
}
