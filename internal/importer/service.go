package importer

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/ledger/internal/audit"
	"github.com/cleared-dev/ledger/internal/id"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/retry"
)

// Store is the persistence the importer needs.
type Store interface {
	InsertBankTransactions(ctx context.Context, txs []model.BankTransaction) (inserted, skipped []model.BankTransaction, err error)
}

// Service imports bank transactions for reconciliation.
type Service struct {
	store    Store
	audit    audit.Emitter
	log      logrus.FieldLogger
	registry *Registry
	now      func() time.Time
}

// NewService creates an importer using the built-in parsers.
func NewService(st Store, em audit.Emitter, log logrus.FieldLogger) *Service {
	return &Service{store: st, audit: em, log: log, registry: DefaultRegistry(), now: time.Now}
}

// Registry returns the parsers the service resolves formats with.
func (s *Service) Registry() *Registry { return s.registry }

// ImportRequest is a batch of pre-parsed rows for one bank account.
type ImportRequest struct {
	TenantID      string
	BankAccountID string
	Currency      string
	Rows          []Row
	Actor         string
}

// ImportResult reports what a batch did.
type ImportResult struct {
	Inserted []model.BankTransaction
	Skipped  []model.BankTransaction
}

// ImportBankTransactions stores rows as unmatched bank transactions. Rows
// whose reference the bank account already has are skipped, so re-importing
// a statement is harmless.
func (s *Service) ImportBankTransactions(ctx context.Context, req ImportRequest) (ImportResult, error) {
	if verrs := validateRequest(req); len(verrs) > 0 {
		return ImportResult{}, verrs
	}

	now := s.now().UTC()
	seen := make(map[string]bool, len(req.Rows))
	txs := make([]model.BankTransaction, 0, len(req.Rows))
	for _, r := range req.Rows {
		if seen[r.Reference] {
			continue
		}
		seen[r.Reference] = true
		cur := r.Currency
		if cur == "" {
			cur = req.Currency
		}
		txs = append(txs, model.BankTransaction{
			ID:            id.New(),
			TenantID:      req.TenantID,
			BankAccountID: req.BankAccountID,
			Date:          model.Day(r.Date),
			Amount:        r.Amount,
			Currency:      strings.ToUpper(cur),
			Description:   r.Description,
			Reference:     r.Reference,
			Status:        model.BankUnmatched,
			ImportedAt:    now,
		})
	}

	var res ImportResult
	err := retry.Do(ctx, s.log, "import bank transactions", func() error {
		var err error
		res.Inserted, res.Skipped, err = s.store.InsertBankTransactions(ctx, txs)
		return err
	})
	if err != nil {
		return ImportResult{}, fmt.Errorf("importing bank transactions: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"tenant":       req.TenantID,
		"bank_account": req.BankAccountID,
		"inserted":     len(res.Inserted),
		"skipped":      len(res.Skipped),
	}).Info("bank transactions imported")

	if len(res.Inserted) > 0 {
		refs := make([]string, len(res.Inserted))
		for i, t := range res.Inserted {
			refs[i] = t.Reference
		}
		s.audit.Emit(ctx, audit.Record{
			TenantID: req.TenantID, Actor: req.Actor, Action: audit.ActionBankImported,
			EntityType: "bank_account", EntityID: req.BankAccountID,
			After: audit.Snapshot(map[string]any{"references": refs}),
		})
	}
	return res, nil
}

func validateRequest(req ImportRequest) model.ValidationErrors {
	var verrs model.ValidationErrors
	add := func(format string, args ...any) {
		verrs = append(verrs, model.ValidationError{Code: model.CodeInvalidInput, Description: fmt.Sprintf(format, args...)})
	}
	if req.TenantID == "" {
		add("tenant is required")
	}
	if req.BankAccountID == "" {
		add("bank account is required")
	}
	for i, r := range req.Rows {
		if r.Reference == "" {
			add("row %d: reference is required", i+1)
		}
		if r.Date.IsZero() {
			add("row %d: date is required", i+1)
		}
		if r.Currency == "" && req.Currency == "" {
			add("row %d: currency is required", i+1)
		}
		if r.Amount == math.MinInt64 {
			add("row %d: amount out of range", i+1)
		}
	}
	return verrs
}

// ImportFile parses path with the named format and imports the rows.
func (s *Service) ImportFile(ctx context.Context, path, format string, req ImportRequest) (ImportResult, error) {
	p := s.registry.Get(format)
	if p == nil {
		return ImportResult{}, fmt.Errorf("unknown format %q (available: %s)", format, strings.Join(s.registry.Formats(), ", "))
	}
	f, err := os.Open(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	rows, err := p.Parse(f, req.Currency)
	if err != nil {
		return ImportResult{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	req.Rows = rows
	return s.ImportBankTransactions(ctx, req)
}

// ImportPending imports every CSV under <root>/import/ and moves each file
// to import/processed/ once its rows are stored.
func (s *Service) ImportPending(ctx context.Context, root, format string, req ImportRequest) (ImportResult, error) {
	files, err := Scan(root)
	if err != nil {
		return ImportResult{}, err
	}
	var total ImportResult
	for _, f := range files {
		res, err := s.ImportFile(ctx, f.Path, format, req)
		if err != nil {
			return total, err
		}
		total.Inserted = append(total.Inserted, res.Inserted...)
		total.Skipped = append(total.Skipped, res.Skipped...)
		if err := MarkProcessed(root, f.Name); err != nil {
			return total, err
		}
	}
	return total, nil
}
