package rules

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/ledger/internal/audit"
	"github.com/cleared-dev/ledger/internal/id"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/retry"
)

// Store is the persistence the rule service needs.
//
//go:generate mockgen -destination=mocks/mock_store.go -source=service.go Store
type Store interface {
	InsertRule(ctx context.Context, r *model.ReconciliationRule) error
	ListRules(ctx context.Context, tenantID string) ([]model.ReconciliationRule, error)
	SetRuleActive(ctx context.Context, tenantID, ruleID string, active bool) error
	GetAccount(ctx context.Context, tenantID, accountID string) (model.Account, error)
}

// Service stores and evaluates a tenant's rules.
type Service struct {
	store Store
	audit audit.Emitter
	log   logrus.FieldLogger
}

// NewService creates a rule Service.
func NewService(st Store, em audit.Emitter, log logrus.FieldLogger) *Service {
	return &Service{store: st, audit: em, log: log}
}

// Create validates and stores a rule, assigning its id and insertion order.
// A suggested account must exist in the rule's tenant.
func (s *Service) Create(ctx context.Context, r model.ReconciliationRule, actor string) (model.ReconciliationRule, error) {
	r.ID = id.New()
	errs := Validate(r)
	if r.Action.SuggestAccountID != "" {
		_, err := s.store.GetAccount(ctx, r.TenantID, r.Action.SuggestAccountID)
		switch {
		case model.HasCode(err, model.CodeNotFound):
			errs = append(errs, model.ValidationError{Code: model.CodeUnknownAccount,
				Description: fmt.Sprintf("suggested account %s does not exist", r.Action.SuggestAccountID)})
		case err != nil:
			return model.ReconciliationRule{}, fmt.Errorf("checking suggested account: %w", err)
		}
	}
	if len(errs) > 0 {
		return model.ReconciliationRule{}, errs
	}

	if err := retry.Do(ctx, s.log, "create rule", func() error {
		return s.store.InsertRule(ctx, &r)
	}); err != nil {
		return model.ReconciliationRule{}, fmt.Errorf("creating rule %s: %w", r.Name, err)
	}

	s.log.WithFields(logrus.Fields{"tenant": r.TenantID, "rule": r.Name, "priority": r.Priority}).Debug("rule created")
	s.audit.Emit(ctx, audit.Record{
		TenantID: r.TenantID, Actor: actor, Action: audit.ActionRuleCreated,
		EntityType: "reconciliation_rule", EntityID: r.ID, After: audit.Snapshot(r),
	})
	return r, nil
}

// Import creates rules in order, skipping names the tenant already has. It
// returns the number created.
func (s *Service) Import(ctx context.Context, tenantID string, rs []model.ReconciliationRule, actor string) (int, error) {
	existing, err := s.store.ListRules(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	names := make(map[string]bool, len(existing))
	for _, r := range existing {
		names[r.Name] = true
	}

	created := 0
	for _, r := range rs {
		if names[r.Name] {
			continue
		}
		r.TenantID = tenantID
		if _, err := s.Create(ctx, r, actor); err != nil {
			return created, fmt.Errorf("rule %s: %w", r.Name, err)
		}
		names[r.Name] = true
		created++
	}
	return created, nil
}

// List returns the tenant's rules in evaluation order.
func (s *Service) List(ctx context.Context, tenantID string) ([]model.ReconciliationRule, error) {
	return s.store.ListRules(ctx, tenantID)
}

// SetActive enables or disables a rule.
func (s *Service) SetActive(ctx context.Context, tenantID, ruleID string, active bool) error {
	return s.store.SetRuleActive(ctx, tenantID, ruleID, active)
}

// Evaluate runs the tenant's rules against one bank transaction.
func (s *Service) Evaluate(ctx context.Context, tx model.BankTransaction) (Match, bool, error) {
	rs, err := s.store.ListRules(ctx, tx.TenantID)
	if err != nil {
		return Match{}, false, fmt.Errorf("loading rules: %w", err)
	}
	m, ok := Evaluate(rs, SubjectOf(tx))
	return m, ok, nil
}
