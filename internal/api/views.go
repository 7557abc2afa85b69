package api

import (
	"time"

	"github.com/cleared-dev/ledger/internal/journal"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/periods"
	"github.com/cleared-dev/ledger/internal/reconcile"
	"github.com/cleared-dev/ledger/internal/store"
)

// Amounts in every view are integer minor units of the tenant currency.

type accountView struct {
	ID             string `json:"id"`
	Number         string `json:"number"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	ParentID       string `json:"parent_id,omitempty"`
	IsActive       bool   `json:"is_active"`
	BankAccountID  string `json:"bank_account_id,omitempty"`
	CurrentBalance int64  `json:"current_balance"`
}

func newAccountView(a model.Account) accountView {
	return accountView{
		ID: a.ID, Number: a.Number, Name: a.Name, Type: string(a.Type), ParentID: a.ParentID,
		IsActive: a.IsActive, BankAccountID: a.BankAccountID, CurrentBalance: a.NaturalBalance(a.CurrentBalance),
	}
}

type periodView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	IsClosed  bool   `json:"is_closed"`
	ClosedAt  string `json:"closed_at,omitempty"`
	ClosedBy  string `json:"closed_by,omitempty"`
}

func newPeriodView(p model.AccountingPeriod) periodView {
	return periodView{
		ID: p.ID, Name: p.Name, StartDate: formatDay(p.StartDate), EndDate: formatDay(p.EndDate),
		IsClosed: p.IsClosed, ClosedAt: formatTime(p.ClosedAt), ClosedBy: p.ClosedBy,
	}
}

type closureView struct {
	Period      periodView `json:"period"`
	DraftIDs    []string   `json:"draft_ids"`
	PostedCount int        `json:"posted_count"`
	VoidCount   int        `json:"void_count"`
	TotalDebit  int64      `json:"total_debit"`
	TotalCredit int64      `json:"total_credit"`
	Balanced    bool       `json:"balanced"`
	Ready       bool       `json:"ready"`
}

func newClosureView(r periods.ClosureReport) closureView {
	return closureView{
		Period: newPeriodView(r.Period), DraftIDs: r.DraftIDs, PostedCount: r.PostedCount, VoidCount: r.VoidCount,
		TotalDebit: r.TotalDebit, TotalCredit: r.TotalCredit, Balanced: r.Balanced, Ready: r.Ready,
	}
}

type lineView struct {
	LineNo      int    `json:"line_no"`
	AccountID   string `json:"account_id"`
	Description string `json:"description,omitempty"`
	Debit       int64  `json:"debit"`
	Credit      int64  `json:"credit"`
}

type entryView struct {
	ID          string     `json:"id"`
	Number      string     `json:"number,omitempty"`
	PeriodID    string     `json:"period_id"`
	Date        string     `json:"date"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	ReversalOf  string     `json:"reversal_of,omitempty"`
	ReversedBy  string     `json:"reversed_by,omitempty"`
	CreatedBy   string     `json:"created_by,omitempty"`
	PostedAt    string     `json:"posted_at,omitempty"`
	VoidedAt    string     `json:"voided_at,omitempty"`
	Lines       []lineView `json:"lines"`
}

func newEntryView(e model.JournalEntry) entryView {
	v := entryView{
		ID: e.ID, Number: e.Number, PeriodID: e.PeriodID, Date: formatDay(e.Date), Description: e.Description,
		Status: string(e.Status), ReversalOf: e.ReversalOf, ReversedBy: e.ReversedBy, CreatedBy: e.CreatedBy,
		PostedAt: formatTime(e.PostedAt), VoidedAt: formatTime(e.VoidedAt),
		Lines: make([]lineView, len(e.Lines)),
	}
	for i, l := range e.Lines {
		v.Lines[i] = lineView{LineNo: l.LineNo, AccountID: l.AccountID, Description: l.Description, Debit: l.Debit, Credit: l.Credit}
	}
	return v
}

type trialBalanceRow struct {
	AccountID string `json:"account_id"`
	Number    string `json:"number"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Debit     int64  `json:"debit"`
	Credit    int64  `json:"credit"`
}

type trialBalanceView struct {
	AsOf        string            `json:"as_of"`
	Rows        []trialBalanceRow `json:"rows"`
	TotalDebit  int64             `json:"total_debit"`
	TotalCredit int64             `json:"total_credit"`
	Balanced    bool              `json:"balanced"`
}

func newTrialBalanceView(tb journal.TrialBalance) trialBalanceView {
	v := trialBalanceView{
		AsOf: formatDay(tb.AsOf), TotalDebit: tb.TotalDebit, TotalCredit: tb.TotalCredit, Balanced: tb.Balanced(),
		Rows: make([]trialBalanceRow, len(tb.Rows)),
	}
	for i, r := range tb.Rows {
		v.Rows[i] = trialBalanceRow{AccountID: r.AccountID, Number: r.Number, Name: r.Name, Type: string(r.Type), Debit: r.Debit, Credit: r.Credit}
	}
	return v
}

type bankTransactionView struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	Reference   string `json:"reference"`
	Status      string `json:"status"`
}

func newBankTransactionViews(txs []model.BankTransaction) []bankTransactionView {
	out := make([]bankTransactionView, len(txs))
	for i, t := range txs {
		out[i] = bankTransactionView{
			ID: t.ID, Date: formatDay(t.Date), Amount: t.Amount, Currency: t.Currency,
			Description: t.Description, Reference: t.Reference, Status: string(t.Status),
		}
	}
	return out
}

type matchView struct {
	ID                 string `json:"id"`
	BankTransactionID  string `json:"bank_transaction_id"`
	JournalEntryID     string `json:"journal_entry_id,omitempty"`
	JournalLineNo      int    `json:"journal_line_no,omitempty"`
	ConfidenceScore    int    `json:"confidence_score"`
	AmountScore        int    `json:"amount_score"`
	DateScore          int    `json:"date_score"`
	DescriptionScore   int    `json:"description_score"`
	MatchType          string `json:"match_type"`
	Status             string `json:"status"`
	RuleID             string `json:"rule_id,omitempty"`
	SuggestedAccountID string `json:"suggested_account_id,omitempty"`
	SupersedesID       string `json:"supersedes_id,omitempty"`
	CreatedBy          string `json:"created_by"`
	CreatedAt          string `json:"created_at"`
}

func newMatchView(m model.ReconciliationMatch) matchView {
	return matchView{
		ID: m.ID, BankTransactionID: m.BankTransactionID, JournalEntryID: m.JournalEntryID, JournalLineNo: m.JournalLineNo,
		ConfidenceScore: m.ConfidenceScore, AmountScore: m.AmountScore, DateScore: m.DateScore,
		DescriptionScore: m.DescriptionScore, MatchType: string(m.MatchType), Status: string(m.Status),
		RuleID: m.RuleID, SuggestedAccountID: m.SuggestedAccountID, SupersedesID: m.SupersedesID,
		CreatedBy: m.CreatedBy, CreatedAt: formatTime(m.CreatedAt),
	}
}

func newMatchViews(ms []model.ReconciliationMatch) []matchView {
	out := make([]matchView, len(ms))
	for i, m := range ms {
		out[i] = newMatchView(m)
	}
	return out
}

type resultView struct {
	BankTransactionID string      `json:"bank_transaction_id"`
	Outcome           string      `json:"outcome"`
	RuleID            string      `json:"rule_id,omitempty"`
	Matches           []matchView `json:"matches,omitempty"`
	TiedEntryIDs      []string    `json:"tied_entry_ids,omitempty"`
}

type runView struct {
	Results []resultView   `json:"results"`
	Counts  map[string]int `json:"counts"`
}

func newRunView(rr reconcile.RunResult) runView {
	v := runView{Results: make([]resultView, len(rr.Results)), Counts: make(map[string]int, len(rr.Counts))}
	for i, r := range rr.Results {
		rv := resultView{
			BankTransactionID: r.BankTransactionID, Outcome: string(r.Outcome), RuleID: r.RuleID,
			Matches: newMatchViews(r.Matches),
		}
		if r.Ambiguous != nil {
			rv.TiedEntryIDs = r.Ambiguous.EntryIDs
		}
		v.Results[i] = rv
	}
	for k, n := range rr.Counts {
		v.Counts[string(k)] = n
	}
	return v
}

type statsView struct {
	Unmatched           int `json:"unmatched"`
	Matched             int `json:"matched"`
	Reconciled          int `json:"reconciled"`
	PendingMatches      int `json:"pending_matches"`
	ConfirmedMatches    int `json:"confirmed_matches"`
	AverageConfirmScore int `json:"average_confirm_score"`
}

func newStatsView(s store.MatchStats) statsView {
	return statsView(s)
}

type ruleView struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Priority   int               `json:"priority"`
	Seq        int64             `json:"seq"`
	IsActive   bool              `json:"is_active"`
	Conditions []model.Condition `json:"conditions"`
	Action     model.RuleAction  `json:"action"`
}

func newRuleView(r model.ReconciliationRule) ruleView {
	return ruleView{ID: r.ID, Name: r.Name, Priority: r.Priority, Seq: r.Seq, IsActive: r.IsActive, Conditions: r.Conditions, Action: r.Action}
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(model.DateFormat)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
