package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/cleared-dev/ledger/internal/model"
)

// InsertRule stores a rule and assigns its insertion sequence, which breaks
// ties between rules of equal priority.
func (s *Store) InsertRule(ctx context.Context, r *model.ReconciliationRule) error {
	conds, err := json.Marshal(r.Conditions)
	if err != nil {
		return fmt.Errorf("encoding conditions: %w", err)
	}
	action, err := json.Marshal(r.Action)
	if err != nil {
		return fmt.Errorf("encoding action: %w", err)
	}
	return s.Transaction(ctx, "insert rule", func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq), 0) + 1 FROM reconciliation_rules WHERE tenant_id = ?`, r.TenantID,
		).Scan(&r.Seq); err != nil {
			return fmt.Errorf("allocating rule sequence: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO reconciliation_rules (id, tenant_id, name, priority, seq, is_active, conditions, action)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.TenantID, r.Name, r.Priority, r.Seq, boolInt(r.IsActive), string(conds), string(action)); err != nil {
			return fmt.Errorf("inserting rule %s: %w", r.Name, err)
		}
		return nil
	})
}

// ListRules returns a tenant's rules in evaluation order: ascending priority,
// then insertion order.
func (s *Store) ListRules(ctx context.Context, tenantID string) ([]model.ReconciliationRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, priority, seq, is_active, conditions, action
		FROM reconciliation_rules WHERE tenant_id = ?
		ORDER BY priority, seq`, tenantID)
	if err != nil {
		return nil, classify("list rules", fmt.Errorf("querying rules: %w", err))
	}
	defer rows.Close()

	var out []model.ReconciliationRule
	for rows.Next() {
		var (
			r             model.ReconciliationRule
			active        int
			conds, action string
		)
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Name, &r.Priority, &r.Seq, &active, &conds, &action); err != nil {
			return nil, fmt.Errorf("scanning rule: %w", err)
		}
		if err := json.Unmarshal([]byte(conds), &r.Conditions); err != nil {
			return nil, fmt.Errorf("decoding conditions of rule %s: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(action), &r.Action); err != nil {
			return nil, fmt.Errorf("decoding action of rule %s: %w", r.ID, err)
		}
		r.IsActive = active == 1
		out = append(out, r)
	}
	return out, classify("list rules", rows.Err())
}

// SetRuleActive enables or disables a rule.
func (s *Store) SetRuleActive(ctx context.Context, tenantID, ruleID string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reconciliation_rules SET is_active = ? WHERE tenant_id = ? AND id = ?`,
		boolInt(active), tenantID, ruleID)
	if err != nil {
		return classify("update rule", fmt.Errorf("updating rule %s: %w", ruleID, err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.NotFound("reconciliation_rule", ruleID)
	}
	return nil
}
