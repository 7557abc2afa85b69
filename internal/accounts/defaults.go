package accounts

import "github.com/cleared-dev/ledger/internal/model"

// DefaultChart returns the default chart of accounts for an entity type.
// bankAccountID, when set, links the checking account to that bank account.
func DefaultChart(entityType, bankAccountID string) []ChartRow {
	switch entityType {
	case "llc_single_member":
		return llcSingleMemberChart(bankAccountID)
	default:
		return llcSingleMemberChart(bankAccountID)
	}
}

func llcSingleMemberChart(bankAccountID string) []ChartRow {
	return []ChartRow{
		{Number: "1000", Name: "Cash and Bank", Type: model.AccountTypeAsset},
		{Number: "1010", Name: "Business Checking", Type: model.AccountTypeAsset, ParentNumber: "1000", BankAccountID: bankAccountID},
		{Number: "1020", Name: "Business Savings", Type: model.AccountTypeAsset, ParentNumber: "1000"},
		{Number: "1200", Name: "Accounts Receivable", Type: model.AccountTypeAsset},
		{Number: "2010", Name: "Credit Card", Type: model.AccountTypeLiability},
		{Number: "2100", Name: "Accounts Payable", Type: model.AccountTypeLiability},
		{Number: "3010", Name: "Owner's Equity", Type: model.AccountTypeEquity},
		{Number: "4010", Name: "Service Revenue", Type: model.AccountTypeRevenue},
		{Number: "4020", Name: "Product Revenue", Type: model.AccountTypeRevenue},
		{Number: "5010", Name: "Advertising & Marketing", Type: model.AccountTypeExpense},
		{Number: "5020", Name: "Software & SaaS", Type: model.AccountTypeExpense},
		{Number: "5030", Name: "Office Supplies", Type: model.AccountTypeExpense},
		{Number: "5040", Name: "Professional Services", Type: model.AccountTypeExpense},
		{Number: "5050", Name: "Shipping & Postage", Type: model.AccountTypeExpense},
		{Number: "5900", Name: "Bank Fees", Type: model.AccountTypeExpense},
	}
}
