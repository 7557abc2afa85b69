// Package accounts maintains each tenant's chart of accounts and answers
// balance queries.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/ledger/internal/audit"
	"github.com/cleared-dev/ledger/internal/id"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/retry"
	"github.com/cleared-dev/ledger/internal/store"
)

// ChartFile is the chart location relative to a project root.
const ChartFile = "accounts/chart-of-accounts.csv"

// Store is the persistence the registry needs.
type Store interface {
	InsertAccount(ctx context.Context, a model.Account) error
	GetAccount(ctx context.Context, tenantID, accountID string) (model.Account, error)
	GetAccountByNumber(ctx context.Context, tenantID, number string) (model.Account, error)
	ListAccounts(ctx context.Context, tenantID string) ([]model.Account, error)
	ClearingAccounts(ctx context.Context, tenantID, bankAccountID string) ([]model.Account, error)
	SetAccountActive(ctx context.Context, tenantID, accountID string, active bool) error
	AccountBalance(ctx context.Context, tenantID, accountID string, asOf time.Time) (int64, error)
	RebuildBalances(ctx context.Context, tenantID string) (int, error)
}

// Service is the account registry.
type Service struct {
	store Store
	audit audit.Emitter
	log   logrus.FieldLogger
}

// NewService creates a registry over st.
func NewService(st Store, em audit.Emitter, log logrus.FieldLogger) *Service {
	return &Service{store: st, audit: em, log: log}
}

// CreateAccountParams describes a new account.
type CreateAccountParams struct {
	TenantID      string
	Number        string
	Name          string
	Type          model.AccountType
	ParentID      string
	BankAccountID string
	Actor         string
}

// CreateAccount validates and stores a new active account. Every violation is
// reported: InvalidAccountType, InvalidInput, UnknownAccount for a missing
// parent, InvalidParentType, DuplicateNumber.
func (s *Service) CreateAccount(ctx context.Context, p CreateAccountParams) (model.Account, error) {
	var verrs model.ValidationErrors
	if p.TenantID == "" {
		verrs = append(verrs, model.ValidationError{Code: model.CodeInvalidInput, Description: "tenant is required"})
	}
	if p.Number == "" {
		verrs = append(verrs, model.ValidationError{Code: model.CodeInvalidInput, Description: "account number is required"})
	}
	if p.Name == "" {
		verrs = append(verrs, model.ValidationError{Code: model.CodeInvalidInput, Description: "account name is required"})
	}
	if !p.Type.Valid() {
		verrs = append(verrs, model.ValidationError{Code: model.CodeInvalidAccountType,
			Description: fmt.Sprintf("unknown account type %q", p.Type)})
	}
	if p.ParentID != "" {
		parent, err := s.store.GetAccount(ctx, p.TenantID, p.ParentID)
		switch {
		case model.HasCode(err, model.CodeNotFound):
			verrs = append(verrs, model.ValidationError{Code: model.CodeUnknownAccount,
				Description: fmt.Sprintf("parent account %s does not exist", p.ParentID)})
		case err != nil:
			return model.Account{}, fmt.Errorf("loading parent account: %w", err)
		case p.Type.Valid() && parent.Type.Group() != p.Type.Group():
			verrs = append(verrs, model.ValidationError{Code: model.CodeInvalidParentType,
				Description: fmt.Sprintf("%s account cannot sit under %s account %s", p.Type, parent.Type, parent.Number)})
		}
	}
	if len(verrs) > 0 {
		return model.Account{}, verrs
	}

	a := model.Account{
		ID:            id.New(),
		TenantID:      p.TenantID,
		Number:        p.Number,
		Name:          p.Name,
		Type:          p.Type,
		ParentID:      p.ParentID,
		IsActive:      true,
		BankAccountID: p.BankAccountID,
	}
	err := retry.Do(ctx, s.log, "create account", func() error {
		return s.store.InsertAccount(ctx, a)
	})
	if errors.Is(err, store.ErrDuplicate) {
		return model.Account{}, model.ValidationErrors{{Code: model.CodeDuplicateNumber,
			Description: fmt.Sprintf("account number %s already exists", p.Number)}}
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("creating account %s: %w", p.Number, err)
	}

	s.log.WithFields(logrus.Fields{"tenant": a.TenantID, "account": a.Number}).Debug("account created")
	s.audit.Emit(ctx, audit.Record{
		TenantID: a.TenantID, Actor: p.Actor, Action: audit.ActionAccountCreated,
		EntityType: "account", EntityID: a.ID, After: audit.Snapshot(a),
	})
	return a, nil
}

// ImportChart creates the accounts of a chart in order, resolving parents by
// number. Numbers the tenant already has are skipped. It returns the number of
// accounts created.
func (s *Service) ImportChart(ctx context.Context, tenantID string, rows []ChartRow, actor string) (int, error) {
	created := 0
	for _, r := range rows {
		if _, err := s.store.GetAccountByNumber(ctx, tenantID, r.Number); err == nil {
			continue
		} else if !model.HasCode(err, model.CodeNotFound) {
			return created, fmt.Errorf("checking account %s: %w", r.Number, err)
		}

		var parentID string
		if r.ParentNumber != "" {
			parent, err := s.store.GetAccountByNumber(ctx, tenantID, r.ParentNumber)
			if err != nil {
				return created, fmt.Errorf("account %s: parent %s: %w", r.Number, r.ParentNumber, err)
			}
			parentID = parent.ID
		}
		if _, err := s.CreateAccount(ctx, CreateAccountParams{
			TenantID: tenantID, Number: r.Number, Name: r.Name, Type: r.Type,
			ParentID: parentID, BankAccountID: r.BankAccountID, Actor: actor,
		}); err != nil {
			return created, fmt.Errorf("account %s: %w", r.Number, err)
		}
		created++
	}
	return created, nil
}

// Get returns an account by id.
func (s *Service) Get(ctx context.Context, tenantID, accountID string) (model.Account, error) {
	return s.store.GetAccount(ctx, tenantID, accountID)
}

// ByNumber returns an account by its tenant-unique number.
func (s *Service) ByNumber(ctx context.Context, tenantID, number string) (model.Account, error) {
	return s.store.GetAccountByNumber(ctx, tenantID, number)
}

// Resolve accepts either an account id or an account number.
func (s *Service) Resolve(ctx context.Context, tenantID, ref string) (model.Account, error) {
	a, err := s.store.GetAccountByNumber(ctx, tenantID, ref)
	if err == nil || !model.HasCode(err, model.CodeNotFound) {
		return a, err
	}
	return s.store.GetAccount(ctx, tenantID, ref)
}

// List returns all accounts of a tenant.
func (s *Service) List(ctx context.Context, tenantID string) ([]model.Account, error) {
	return s.store.ListAccounts(ctx, tenantID)
}

// ByType returns the tenant's accounts of one type.
func (s *Service) ByType(ctx context.Context, tenantID string, t model.AccountType) ([]model.Account, error) {
	all, err := s.store.ListAccounts(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var result []model.Account
	for _, a := range all {
		if a.Type == t {
			result = append(result, a)
		}
	}
	return result, nil
}

// ClearingAccounts returns the accounts linked to a bank account.
func (s *Service) ClearingAccounts(ctx context.Context, tenantID, bankAccountID string) ([]model.Account, error) {
	return s.store.ClearingAccounts(ctx, tenantID, bankAccountID)
}

// Deactivate stops an account from receiving new postings. Its history is
// kept.
func (s *Service) Deactivate(ctx context.Context, tenantID, accountID string) error {
	return s.store.SetAccountActive(ctx, tenantID, accountID, false)
}

// GetBalance sums the account's postings dated on or before asOf and returns
// the result in the account's natural sign. Voided entries count together
// with their reversals. The balance cache is not consulted.
func (s *Service) GetBalance(ctx context.Context, tenantID, accountID string, asOf time.Time) (int64, error) {
	a, err := s.store.GetAccount(ctx, tenantID, accountID)
	if err != nil {
		return 0, err
	}
	raw, err := s.store.AccountBalance(ctx, tenantID, accountID, asOf)
	if err != nil {
		return 0, fmt.Errorf("balance of %s: %w", a.Number, err)
	}
	return a.NaturalBalance(raw), nil
}

// CurrentBalance reads the cached all-time balance in the natural sign.
func (s *Service) CurrentBalance(ctx context.Context, tenantID, accountID string) (int64, error) {
	a, err := s.store.GetAccount(ctx, tenantID, accountID)
	if err != nil {
		return 0, err
	}
	return a.NaturalBalance(a.CurrentBalance), nil
}

// RebuildBalances recomputes the tenant's balance cache from postings.
func (s *Service) RebuildBalances(ctx context.Context, tenantID, actor string) (int, error) {
	n, err := s.store.RebuildBalances(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("rebuilding balances: %w", err)
	}
	s.log.WithFields(logrus.Fields{"tenant": tenantID, "accounts": n}).Info("balances rebuilt")
	s.audit.Emit(ctx, audit.Record{
		TenantID: tenantID, Actor: actor, Action: audit.ActionBalancesRebuilt, EntityType: "tenant", EntityID: tenantID,
	})
	return n, nil
}

// LoadChart reads the chart file under a project root.
func LoadChart(root string) ([]ChartRow, error) {
	f, err := os.Open(filepath.Join(root, ChartFile))
	if err != nil {
		return nil, fmt.Errorf("opening chart of accounts: %w", err)
	}
	defer f.Close()

	rows, err := ReadChart(f)
	if err != nil {
		return nil, fmt.Errorf("reading chart of accounts: %w", err)
	}
	return rows, nil
}

// SaveChart writes rows to the chart file under a project root.
func SaveChart(root string, rows []ChartRow) error {
	dir := filepath.Join(root, filepath.Dir(ChartFile))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating accounts dir: %w", err)
	}

	f, err := os.Create(filepath.Join(root, ChartFile))
	if err != nil {
		return fmt.Errorf("creating chart of accounts file: %w", err)
	}
	defer f.Close()

	if err := WriteChart(f, rows); err != nil {
		return fmt.Errorf("writing chart of accounts: %w", err)
	}
	return nil
}
