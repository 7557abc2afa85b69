package model

// AccountType classifies accounts in the chart of accounts.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// TypeGroup is the family an account type belongs to. A child account must
// share its parent's group.
type TypeGroup string

const (
	GroupAssets            TypeGroup = "assets"
	GroupLiabilitiesEquity TypeGroup = "liabilities_equity"
	GroupIncomeStatement   TypeGroup = "income_statement"
)

// Valid reports whether t is one of the five known account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// Group returns the type group of t.
func (t AccountType) Group() TypeGroup {
	switch t {
	case AccountTypeAsset:
		return GroupAssets
	case AccountTypeLiability, AccountTypeEquity:
		return GroupLiabilitiesEquity
	default:
		return GroupIncomeStatement
	}
}

// DebitNormal reports whether balances of this type grow with debits.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// Account is one node of a tenant's chart of accounts.
type Account struct {
	ID       string
	TenantID string
	Number   string
	Name     string
	Type     AccountType
	ParentID string // "" = top-level
	IsActive bool
	// BankAccountID marks the account as the clearing account of a bank
	// account. Reconciliation candidates are drawn from these accounts only.
	BankAccountID string
	// CurrentBalance is a derived cache in raw debit-minus-credit form.
	// It is rebuilt from postings and never authoritative.
	CurrentBalance int64
}

// NaturalBalance converts a raw debit-minus-credit figure into the sign
// convention of the account type.
func (a Account) NaturalBalance(raw int64) int64 {
	if a.Type.DebitNormal() {
		return raw
	}
	return -raw
}
