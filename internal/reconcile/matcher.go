// Package reconcile matches imported bank transactions to posted ledger
// entries and tracks their review.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/ledger/internal/audit"
	"github.com/cleared-dev/ledger/internal/config"
	"github.com/cleared-dev/ledger/internal/id"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/money"
	"github.com/cleared-dev/ledger/internal/retry"
	"github.com/cleared-dev/ledger/internal/rules"
	"github.com/cleared-dev/ledger/internal/store"
)

// SystemActor is recorded as the creator of matcher-produced rows.
const SystemActor = "reconciler"

// Store is the persistence the matcher needs.
type Store interface {
	GetBankTransaction(ctx context.Context, tenantID, txID string) (model.BankTransaction, error)
	ListBankTransactions(ctx context.Context, f store.BankFilter) ([]model.BankTransaction, error)
	Tenants(ctx context.Context) ([]string, error)
	PendingMatchCount(ctx context.Context, tenantID, txID string) (int, error)
	FindCandidates(ctx context.Context, q store.CandidateQuery) ([]store.Candidate, error)
	RecordMatches(ctx context.Context, tenantID, txID string, matches []model.ReconciliationMatch) (bool, error)
	GetMatch(ctx context.Context, tenantID, matchID string) (model.ReconciliationMatch, error)
	ResolveMatch(ctx context.Context, tenantID, matchID string, decision model.MatchStatus, actor string, at time.Time) (model.ReconciliationMatch, error)
	InsertManualMatch(ctx context.Context, m model.ReconciliationMatch) error
	ListMatches(ctx context.Context, f store.MatchFilter) ([]model.ReconciliationMatch, error)
	Stats(ctx context.Context, tenantID, bankAccountID string) (store.MatchStats, error)
	ReconcileMatched(ctx context.Context, tenantID, bankAccountID string, through time.Time) ([]string, error)
	GetEntry(ctx context.Context, tenantID, entryID string) (model.JournalEntry, error)
	AccountsByID(ctx context.Context, ids []string) (map[string]model.Account, error)
}

// Rules evaluates the tenant's reconciliation rules.
type Rules interface {
	Evaluate(ctx context.Context, tx model.BankTransaction) (rules.Match, bool, error)
}

// Policies supplies per-tenant policy values.
type Policies interface {
	Policy(tenantID string) config.PolicyConfig
	BaseCurrency(tenantID string) string
}

// RateLookup converts foreign-currency amounts. Rates are sourced elsewhere.
type RateLookup interface {
	Rate(ctx context.Context, from, to string, on time.Time) (decimal.Decimal, error)
}

// Matcher is the reconciliation matcher.
type Matcher struct {
	store    Store
	rules    Rules
	policies Policies
	rates    RateLookup
	audit    audit.Emitter
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewMatcher creates a Matcher.
func NewMatcher(st Store, rl Rules, pol Policies, em audit.Emitter, log logrus.FieldLogger) *Matcher {
	return &Matcher{store: st, rules: rl, policies: pol, audit: em, log: log, now: time.Now}
}

// SetRateLookup enables matching of transactions outside the base currency.
func (m *Matcher) SetRateLookup(r RateLookup) {
	m.rates = r
}

// SetClock overrides the time source for match timestamps.
func (m *Matcher) SetClock(now func() time.Time) {
	m.now = now
}

// Outcome summarizes what happened to one transaction.
type Outcome string

const (
	OutcomeConfirmed    Outcome = "confirmed"
	OutcomePending      Outcome = "pending"
	OutcomeAmbiguous    Outcome = "ambiguous"
	OutcomeNoCandidates Outcome = "no_candidates"
	OutcomeSkipped      Outcome = "skipped"
)

// Result is the outcome for one bank transaction. Ambiguous is set when the
// best candidates tie; it asks for review and is not a failure.
type Result struct {
	BankTransactionID string
	Outcome           Outcome
	RuleID            string
	Matches           []model.ReconciliationMatch
	Ambiguous         *model.AmbiguousMatchError
}

// RunResult aggregates one batch.
type RunResult struct {
	Results []Result
	Counts  map[Outcome]int
}

func (r *RunResult) add(res Result) {
	if r.Counts == nil {
		r.Counts = make(map[Outcome]int)
	}
	r.Results = append(r.Results, res)
	r.Counts[res.Outcome]++
}

// Run matches every unmatched transaction of a tenant, optionally limited to
// one bank account. It stops between transactions when ctx is cancelled;
// matches already written stay in place and a rerun skips them.
func (m *Matcher) Run(ctx context.Context, tenantID, bankAccountID string) (RunResult, error) {
	var out RunResult
	txs, err := m.store.ListBankTransactions(ctx, store.BankFilter{
		TenantID: tenantID, BankAccountID: bankAccountID, Status: model.BankUnmatched,
	})
	if err != nil {
		return out, fmt.Errorf("listing unmatched transactions: %w", err)
	}

	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := m.MatchTransaction(ctx, tx)
		if err != nil {
			return out, fmt.Errorf("matching %s: %w", tx.Reference, err)
		}
		out.add(res)
	}

	m.log.WithFields(logrus.Fields{
		"tenant":    tenantID,
		"processed": len(out.Results),
		"confirmed": out.Counts[OutcomeConfirmed],
		"pending":   out.Counts[OutcomePending] + out.Counts[OutcomeAmbiguous],
	}).Info("reconciliation run finished")
	return out, nil
}

// RunAll runs the matcher for every tenant with bank transactions. A failing
// tenant is logged and does not stop the others.
func (m *Matcher) RunAll(ctx context.Context) (map[string]RunResult, error) {
	tenants, err := m.store.Tenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	out := make(map[string]RunResult, len(tenants))
	for _, t := range tenants {
		res, err := m.Run(ctx, t, "")
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return out, err
		}
		if err != nil {
			m.log.WithError(err).WithField("tenant", t).Error("reconciliation run failed")
			continue
		}
		out[t] = res
	}
	return out, nil
}

type scored struct {
	cand  store.Candidate
	score Score
	days  int
}

// MatchTransaction scores candidates for one transaction and records them.
// Transactions that are no longer unmatched, or already await review, are
// skipped.
func (m *Matcher) MatchTransaction(ctx context.Context, tx model.BankTransaction) (Result, error) {
	res := Result{BankTransactionID: tx.ID, Outcome: OutcomeSkipped}
	log := m.log.WithFields(logrus.Fields{"tenant": tx.TenantID, "bank_tx": tx.Reference})

	if tx.Status != model.BankUnmatched {
		return res, nil
	}
	pending, err := m.store.PendingMatchCount(ctx, tx.TenantID, tx.ID)
	if err != nil {
		return res, err
	}
	if pending > 0 {
		return res, nil
	}

	rule, ruleMatched, err := m.rules.Evaluate(ctx, tx)
	if err != nil {
		return res, err
	}
	policy := m.policies.Policy(tx.TenantID)
	tolerance := policy.AmountTolerance
	threshold := policy.AutoConfirmThreshold
	if ruleMatched {
		res.RuleID = rule.RuleID
		if t := rule.Action.AmountTolerance; t != nil && *t > tolerance {
			tolerance = *t
		}
		if t := rule.Action.AutoConfirmThreshold; t != nil {
			threshold = *t
		}
	}

	amount, ok, err := m.baseAmount(ctx, tx)
	if err != nil {
		return res, err
	}
	if !ok {
		log.WithField("currency", tx.Currency).Warn("no rate lookup for foreign currency, skipping")
		return res, nil
	}

	window := time.Duration(policy.CandidateWindowDays) * 24 * time.Hour
	q := store.CandidateQuery{
		TenantID:          tx.TenantID,
		BankAccountID:     tx.BankAccountID,
		BankTransactionID: tx.ID,
		From:              tx.Date.Add(-window),
		To:                tx.Date.Add(window),
		MinAmount:         amount,
		MaxAmount:         amount,
	}
	if tolerance > 0 {
		q.MinAmount = amount - tolerance + 1
		q.MaxAmount = amount + tolerance - 1
	}
	var cands []store.Candidate
	if err := retry.Do(ctx, m.log, "find candidates", func() error {
		var err error
		cands, err = m.store.FindCandidates(ctx, q)
		return err
	}); err != nil {
		return res, fmt.Errorf("finding candidates: %w", err)
	}

	scorer := Scorer{Weights: policy.Weights, Tolerance: tolerance, Window: policy.CandidateWindowDays}
	ranked := rank(cands, tx, amount, scorer, policy.MinScore, rule.Action.ScoreDelta)
	if len(ranked) == 0 {
		res.Outcome = OutcomeNoCandidates
		log.Debug("no candidates")
		return res, nil
	}

	tied := 1
	for tied < len(ranked) && ranked[tied].score.Total == ranked[0].score.Total {
		tied++
	}
	autoConfirm := tied == 1 && ranked[0].score.Total >= threshold

	now := m.now().UTC()
	for i, s := range ranked {
		match := model.ReconciliationMatch{
			ID:                 id.New(),
			TenantID:           tx.TenantID,
			BankTransactionID:  tx.ID,
			JournalEntryID:     s.cand.EntryID,
			JournalLineNo:      s.cand.LineNo,
			ConfidenceScore:    s.score.Total,
			AmountScore:        s.score.Amount,
			DateScore:          s.score.Date,
			DescriptionScore:   s.score.Description,
			MatchType:          model.MatchFuzzy,
			Status:             model.MatchPending,
			RuleID:             res.RuleID,
			SuggestedAccountID: rule.Action.SuggestAccountID,
			CreatedBy:          SystemActor,
			CreatedAt:          now,
		}
		if abs(s.cand.Amount) == amount && s.days == 0 {
			match.MatchType = model.MatchExact
		}
		if autoConfirm {
			match.Status = model.MatchRejected
			if i == 0 {
				match.Status = model.MatchConfirmed
			}
		}
		res.Matches = append(res.Matches, match)
	}

	var recorded bool
	if err := retry.Do(ctx, m.log, "record matches", func() error {
		var err error
		recorded, err = m.store.RecordMatches(ctx, tx.TenantID, tx.ID, res.Matches)
		return err
	}); err != nil {
		return res, fmt.Errorf("recording matches: %w", err)
	}
	if !recorded {
		res.Matches = nil
		return res, nil
	}

	switch {
	case autoConfirm:
		res.Outcome = OutcomeConfirmed
		top := res.Matches[0]
		log.WithFields(logrus.Fields{"entry": ranked[0].cand.EntryNumber, "score": top.ConfidenceScore}).Info("match auto-confirmed")
		m.audit.Emit(ctx, audit.Record{
			TenantID: tx.TenantID, Actor: SystemActor, Action: audit.ActionMatchAuto,
			EntityType: "reconciliation_match", EntityID: top.ID, After: audit.Snapshot(top),
		})
	case tied > 1:
		res.Outcome = OutcomeAmbiguous
		amb := &model.AmbiguousMatchError{BankTransactionID: tx.ID, Score: ranked[0].score.Total}
		for _, s := range ranked[:tied] {
			amb.EntryIDs = append(amb.EntryIDs, s.cand.EntryID)
		}
		res.Ambiguous = amb
		log.WithField("score", amb.Score).Info(amb.Error())
	default:
		res.Outcome = OutcomePending
		log.WithField("score", ranked[0].score.Total).Debug("match pending review")
	}
	if !autoConfirm {
		for _, match := range res.Matches {
			m.audit.Emit(ctx, audit.Record{
				TenantID: tx.TenantID, Actor: SystemActor, Action: audit.ActionMatchProposed,
				EntityType: "reconciliation_match", EntityID: match.ID, After: audit.Snapshot(match),
			})
		}
	}
	return res, nil
}

// rank scores candidates, keeps the best line per entry, drops those under
// the floor and sorts by descending score. Ties keep date and entry order.
func rank(cands []store.Candidate, tx model.BankTransaction, amount int64, scorer Scorer, floor, delta int) []scored {
	best := make(map[string]scored)
	var order []string
	for _, c := range cands {
		desc := c.LineDescription
		if desc == "" {
			desc = c.EntryDescription
		}
		days := model.DaysBetween(tx.Date, c.Date)
		s := scorer.Score(abs(c.Amount)-amount, days, tx.Description, desc)
		s.Total = Adjust(s.Total, delta)

		prev, seen := best[c.EntryID]
		if !seen {
			order = append(order, c.EntryID)
		}
		if !seen || s.Total > prev.score.Total {
			best[c.EntryID] = scored{cand: c, score: s, days: days}
		}
	}

	var out []scored
	for _, entryID := range order {
		if s := best[entryID]; s.score.Total >= floor {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].score.Total > out[j].score.Total
	})
	return out
}

// baseAmount returns the absolute amount of tx in the tenant base currency.
// ok is false when conversion is needed but no rate lookup is configured.
func (m *Matcher) baseAmount(ctx context.Context, tx model.BankTransaction) (int64, bool, error) {
	base := m.policies.BaseCurrency(tx.TenantID)
	if tx.Currency == "" || tx.Currency == base {
		return tx.AbsAmount(), true, nil
	}
	if m.rates == nil {
		return 0, false, nil
	}
	rate, err := m.rates.Rate(ctx, tx.Currency, base, tx.Date)
	if err != nil {
		return 0, false, fmt.Errorf("rate %s/%s: %w", tx.Currency, base, err)
	}
	converted := money.FromMinor(tx.AbsAmount(), tx.Currency).Mul(rate).Round(money.Exponent(base))
	n, err := money.ToMinor(converted, base)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// abs is only applied to line amounts, which posting keeps non-negative and
// within int64.
func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

// Decision is a reviewer's verdict on a pending match.
type Decision string

const (
	Confirm Decision = "confirm"
	Reject  Decision = "reject"
)

// ReviewMatch records a reviewer's decision. Confirming reconciles the
// transaction; rejecting leaves it unmatched. A match that is no longer
// pending yields AlreadyResolved.
func (m *Matcher) ReviewMatch(ctx context.Context, tenantID, matchID string, decision Decision, actor string) (model.ReconciliationMatch, error) {
	var status model.MatchStatus
	action := audit.ActionMatchConfirmed
	switch decision {
	case Confirm:
		status = model.MatchConfirmed
	case Reject:
		status = model.MatchRejected
		action = audit.ActionMatchRejected
	default:
		return model.ReconciliationMatch{}, model.Invalid(model.CodeInvalidInput, "decision must be confirm or reject, got %q", decision)
	}

	before, err := m.store.GetMatch(ctx, tenantID, matchID)
	if err != nil {
		return model.ReconciliationMatch{}, err
	}
	after, err := m.store.ResolveMatch(ctx, tenantID, matchID, status, actor, m.now().UTC())
	if err != nil {
		return model.ReconciliationMatch{}, err
	}

	m.log.WithFields(logrus.Fields{"tenant": tenantID, "match": matchID, "decision": decision, "actor": actor}).Info("match reviewed")
	m.audit.Emit(ctx, audit.Record{
		TenantID: tenantID, Actor: actor, Action: action, EntityType: "reconciliation_match",
		EntityID: after.ID, Before: audit.Snapshot(before), After: audit.Snapshot(after),
	})
	return after, nil
}

// ManualMatch confirms a reviewer-chosen entry for an unmatched transaction.
// The entry's line on the bank account's clearing account is matched.
func (m *Matcher) ManualMatch(ctx context.Context, tenantID, bankTxID, entryID, actor string) (model.ReconciliationMatch, error) {
	tx, err := m.store.GetBankTransaction(ctx, tenantID, bankTxID)
	if err != nil {
		return model.ReconciliationMatch{}, err
	}
	e, err := m.store.GetEntry(ctx, tenantID, entryID)
	if err != nil {
		return model.ReconciliationMatch{}, err
	}

	ids := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		ids = append(ids, l.AccountID)
	}
	accts, err := m.store.AccountsByID(ctx, ids)
	if err != nil {
		return model.ReconciliationMatch{}, err
	}
	var line *model.JournalLine
	for i, l := range e.Lines {
		if a, ok := accts[l.AccountID]; ok && a.BankAccountID == tx.BankAccountID {
			line = &e.Lines[i]
			break
		}
	}
	if line == nil {
		return model.ReconciliationMatch{}, model.Invalid(model.CodeInvalidInput,
			"entry %s has no line on the clearing account of %s", e.Number, tx.BankAccountID)
	}

	policy := m.policies.Policy(tenantID)
	scorer := Scorer{Weights: policy.Weights, Tolerance: policy.AmountTolerance, Window: policy.CandidateWindowDays}
	desc := line.Description
	if desc == "" {
		desc = e.Description
	}
	score := scorer.Score(line.Amount()-tx.AbsAmount(), model.DaysBetween(tx.Date, e.Date), tx.Description, desc)

	match := model.ReconciliationMatch{
		ID:                id.New(),
		TenantID:          tenantID,
		BankTransactionID: tx.ID,
		JournalEntryID:    e.ID,
		JournalLineNo:     line.LineNo,
		ConfidenceScore:   score.Total,
		AmountScore:       score.Amount,
		DateScore:         score.Date,
		DescriptionScore:  score.Description,
		MatchType:         model.MatchManual,
		Status:            model.MatchConfirmed,
		CreatedBy:         actor,
		CreatedAt:         m.now().UTC(),
	}
	if err := m.store.InsertManualMatch(ctx, match); err != nil {
		return model.ReconciliationMatch{}, err
	}

	m.log.WithFields(logrus.Fields{"tenant": tenantID, "bank_tx": tx.Reference, "entry": e.Number, "actor": actor}).Info("manual match")
	m.audit.Emit(ctx, audit.Record{
		TenantID: tenantID, Actor: actor, Action: audit.ActionMatchManual,
		EntityType: "reconciliation_match", EntityID: match.ID, After: audit.Snapshot(match),
	})
	return match, nil
}

// ReconcileMatched signs off auto-matched transactions dated on or before
// through, moving them to reconciled. It returns their ids.
func (m *Matcher) ReconcileMatched(ctx context.Context, tenantID, bankAccountID string, through time.Time, actor string) ([]string, error) {
	ids, err := m.store.ReconcileMatched(ctx, tenantID, bankAccountID, model.Day(through))
	if err != nil {
		return nil, fmt.Errorf("reconciling matched transactions: %w", err)
	}
	for _, txID := range ids {
		m.audit.Emit(ctx, audit.Record{
			TenantID: tenantID, Actor: actor, Action: audit.ActionBankReconciled,
			EntityType: "bank_transaction", EntityID: txID,
		})
	}
	m.log.WithFields(logrus.Fields{"tenant": tenantID, "bank_account": bankAccountID, "count": len(ids)}).Info("statement signed off")
	return ids, nil
}

// Matches lists match rows.
func (m *Matcher) Matches(ctx context.Context, f store.MatchFilter) ([]model.ReconciliationMatch, error) {
	return m.store.ListMatches(ctx, f)
}

// Stats reports reconciliation progress for a bank account, or all of the
// tenant's accounts when bankAccountID is empty.
func (m *Matcher) Stats(ctx context.Context, tenantID, bankAccountID string) (store.MatchStats, error) {
	return m.store.Stats(ctx, tenantID, bankAccountID)
}
