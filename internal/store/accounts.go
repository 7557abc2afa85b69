package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cleared-dev/ledger/internal/model"
)

const accountColumns = `id, tenant_id, number, name, type, parent_id, is_active, bank_account_id, current_balance`

func scanAccount(row interface{ Scan(...any) error }) (model.Account, error) {
	var (
		a      model.Account
		typ    string
		parent sql.NullString
		active int
	)
	if err := row.Scan(&a.ID, &a.TenantID, &a.Number, &a.Name, &typ, &parent, &active, &a.BankAccountID, &a.CurrentBalance); err != nil {
		return model.Account{}, err
	}
	a.Type = model.AccountType(typ)
	a.ParentID = parent.String
	a.IsActive = active == 1
	return a, nil
}

// InsertAccount stores a new account. A number already used by the tenant
// yields ErrDuplicate.
func (s *Store) InsertAccount(ctx context.Context, a model.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, tenant_id, number, name, type, parent_id, is_active, bank_account_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TenantID, a.Number, a.Name, string(a.Type), nullString(a.ParentID),
		boolInt(a.IsActive), a.BankAccountID, s.now().UTC().Format(timeFormat),
	)
	if err != nil {
		return classify("insert account", fmt.Errorf("inserting account %s: %w", a.Number, err))
	}
	return nil
}

// GetAccount returns one account of a tenant.
func (s *Store) GetAccount(ctx context.Context, tenantID, accountID string) (model.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE tenant_id = ? AND id = ?`, tenantID, accountID)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, model.NotFound("account", accountID)
	}
	if err != nil {
		return model.Account{}, classify("get account", fmt.Errorf("reading account %s: %w", accountID, err))
	}
	return a, nil
}

// GetAccountByNumber returns the tenant's account with the given number.
func (s *Store) GetAccountByNumber(ctx context.Context, tenantID, number string) (model.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE tenant_id = ? AND number = ?`, tenantID, number)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, model.NotFound("account", number)
	}
	if err != nil {
		return model.Account{}, classify("get account", fmt.Errorf("reading account %s: %w", number, err))
	}
	return a, nil
}

// AccountsByID loads accounts by id regardless of tenant, so callers can tell
// an unknown account from one owned by another tenant.
func (s *Store) AccountsByID(ctx context.Context, ids []string) (map[string]model.Account, error) {
	out := make(map[string]model.Account, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, classify("load accounts", fmt.Errorf("querying accounts: %w", err))
	}
	defer rows.Close()
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		out[a.ID] = a
	}
	return out, classify("load accounts", rows.Err())
}

// ListAccounts returns all accounts of a tenant ordered by number.
func (s *Store) ListAccounts(ctx context.Context, tenantID string) ([]model.Account, error) {
	return s.queryAccounts(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id = ? ORDER BY number`, tenantID)
}

// ClearingAccounts returns the tenant's accounts linked to a bank account.
func (s *Store) ClearingAccounts(ctx context.Context, tenantID, bankAccountID string) ([]model.Account, error) {
	return s.queryAccounts(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE tenant_id = ? AND bank_account_id = ? ORDER BY number`,
		tenantID, bankAccountID)
}

func (s *Store) queryAccounts(ctx context.Context, query string, args ...any) ([]model.Account, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("list accounts", fmt.Errorf("querying accounts: %w", err))
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		out = append(out, a)
	}
	return out, classify("list accounts", rows.Err())
}

// SetAccountActive activates or deactivates an account.
func (s *Store) SetAccountActive(ctx context.Context, tenantID, accountID string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET is_active = ? WHERE tenant_id = ? AND id = ?`, boolInt(active), tenantID, accountID)
	if err != nil {
		return classify("update account", fmt.Errorf("updating account %s: %w", accountID, err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.NotFound("account", accountID)
	}
	return nil
}

// AccountBalance sums debit minus credit of the account's lines in posted and
// voided entries dated on or before asOf.
func (s *Store) AccountBalance(ctx context.Context, tenantID, accountID string, asOf time.Time) (int64, error) {
	var raw int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(l.debit - l.credit), 0)
		FROM journal_entry_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		WHERE e.tenant_id = ? AND l.account_id = ?
		  AND e.status IN ('posted', 'void')
		  AND e.entry_date <= ?`,
		tenantID, accountID, formatDay(asOf),
	).Scan(&raw)
	if err != nil {
		return 0, classify("account balance", fmt.Errorf("summing account %s: %w", accountID, err))
	}
	return raw, nil
}

// RebuildBalances recomputes every current_balance of a tenant from its
// postings and returns the number of accounts touched.
func (s *Store) RebuildBalances(ctx context.Context, tenantID string) (int, error) {
	var n int64
	err := s.Transaction(ctx, "rebuild balances", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE accounts SET current_balance = COALESCE((
				SELECT SUM(l.debit - l.credit)
				FROM journal_entry_lines l
				JOIN journal_entries e ON e.id = l.entry_id
				WHERE l.account_id = accounts.id AND e.status IN ('posted', 'void')
			), 0)
			WHERE tenant_id = ?`, tenantID)
		if err != nil {
			return fmt.Errorf("rebuilding balances: %w", err)
		}
		n, _ = res.RowsAffected()
		return nil
	})
	return int(n), err
}

func applyBalanceDeltas(ctx context.Context, tx *sql.Tx, lines []model.JournalLine) error {
	for _, l := range lines {
		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET current_balance = current_balance + ? WHERE id = ?`,
			l.Signed(), l.AccountID); err != nil {
			return fmt.Errorf("updating balance of %s: %w", l.AccountID, err)
		}
	}
	return nil
}
