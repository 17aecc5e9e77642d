package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// RootType is the top level classification of a ledger account.
type RootType string

const (
	RootAsset     RootType = "Asset"
	RootLiability RootType = "Liability"
	RootEquity    RootType = "Equity"
	RootIncome    RootType = "Income"
	RootExpense   RootType = "Expense"
)

const (
	AccountTypeReceivable = "Receivable"
	AccountTypePayable    = "Payable"
)

// Account is a ledger account with its classification.
type Account struct {
	Name        string   `json:"name"`
	RootType    RootType `json:"root_type"`
	AccountType string   `json:"account_type"`
}

// IsPartyAccount reports whether the account tracks a party balance.
func (a *Account) IsPartyAccount() bool {
	return a.AccountType == AccountTypeReceivable || a.AccountType == AccountTypePayable
}

const PartyTypeCustomer = "Customer"

// LedgerEntry is one row of a journal entry. Exactly one of Debit or Credit is non-zero.
type LedgerEntry struct {
	Account       string          `json:"account"`
	Debit         decimal.Decimal `json:"debit_in_account_currency"`
	Credit        decimal.Decimal `json:"credit_in_account_currency"`
	ReferenceType DocumentType    `json:"reference_type,omitempty"`
	ReferenceName string          `json:"reference_name,omitempty"`
	PartyType     string          `json:"party_type,omitempty"`
	Party         string          `json:"party,omitempty"`
	UserRemark    string          `json:"user_remark,omitempty"`
}

var (
	ErrEntryWithoutAccount = errors.New("ledger entry has no account")
	ErrEntryBothSides      = errors.New("ledger entry has both debit and credit set")
	ErrEntryNoSide         = errors.New("ledger entry has neither debit nor credit set")
	ErrEntryNegative       = errors.New("ledger entry has a negative side")
)

// Validate checks that the entry is well formed.
func (e *LedgerEntry) Validate() error {
	if e.Account == "" {
		return ErrEntryWithoutAccount
	}
	if e.Debit.IsNegative() || e.Credit.IsNegative() {
		return ErrEntryNegative
	}
	hasDebit, hasCredit := e.Debit.IsPositive(), e.Credit.IsPositive()
	switch {
	case hasDebit && hasCredit:
		return ErrEntryBothSides
	case !hasDebit && !hasCredit:
		return ErrEntryNoSide
	}
	return nil
}

// JournalEntry is the ledger document posted for a payout.
type JournalEntry struct {
	Name        string        `json:"name,omitempty"`
	VoucherType string        `json:"voucher_type"`
	Company     string        `json:"company"`
	PostingDate time.Time     `json:"posting_date"`
	ChequeNo    string        `json:"cheque_no"`
	ChequeDate  time.Time     `json:"cheque_date"`
	UserRemark  string        `json:"user_remark,omitempty"`
	Accounts    []LedgerEntry `json:"accounts"`
}

// Totals returns the sum of the debit and credit sides.
func (j *JournalEntry) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, e := range j.Accounts {
		debit = debit.Add(e.Debit)
		credit = credit.Add(e.Credit)
	}
	return debit, credit
}

// TaxCharge is a charge line appended to a sales invoice.
type TaxCharge struct {
	ChargeType  string          `json:"charge_type"`
	AccountHead string          `json:"account_head"`
	Description string          `json:"description"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	CostCenter  string          `json:"cost_center,omitempty"`
}

const ChargeTypeActual = "Actual"
