package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "pending"
	PayoutInTransit PayoutStatus = "in_transit"
	PayoutPaid      PayoutStatus = "paid"
	PayoutFailed    PayoutStatus = "failed"
)

type TransactionType string

const (
	TransactionCharge     TransactionType = "charge"
	TransactionRefund     TransactionType = "refund"
	TransactionAdjustment TransactionType = "adjustment"
	TransactionPayout     TransactionType = "payout"
)

// Financial statuses of an upstream order that matter to the reconciliation.
const (
	FinancialStatusRefunded          = "refunded"
	FinancialStatusPartiallyRefunded = "partially_refunded"
)

// PayoutSummary holds the per-category gross and fee figures reported with a payout.
type PayoutSummary struct {
	AdjustmentsFeeAmount      decimal.Decimal `json:"adjustments_fee_amount"`
	AdjustmentsGrossAmount    decimal.Decimal `json:"adjustments_gross_amount"`
	ChargesFeeAmount          decimal.Decimal `json:"charges_fee_amount"`
	ChargesGrossAmount        decimal.Decimal `json:"charges_gross_amount"`
	RefundsFeeAmount          decimal.Decimal `json:"refunds_fee_amount"`
	RefundsGrossAmount        decimal.Decimal `json:"refunds_gross_amount"`
	ReservedFundsFeeAmount    decimal.Decimal `json:"reserved_funds_fee_amount"`
	ReservedFundsGrossAmount  decimal.Decimal `json:"reserved_funds_gross_amount"`
	RetriedPayoutsFeeAmount   decimal.Decimal `json:"retried_payouts_fee_amount"`
	RetriedPayoutsGrossAmount decimal.Decimal `json:"retried_payouts_gross_amount"`
}

// Payout is the local aggregate of one platform payout and its ordered transactions.
// Once Submitted is set the aggregate is immutable.
type Payout struct {
	ID           int64           `json:"-"`
	PayoutID     string          `json:"payout_id"`
	Status       PayoutStatus    `json:"status"`
	PayoutDate   time.Time       `json:"payout_date"`
	Currency     string          `json:"currency"`
	Amount       decimal.Decimal `json:"amount"`
	Summary      PayoutSummary   `json:"summary"`
	Submitted    bool            `json:"submitted"`
	JournalEntry string          `json:"journal_entry,omitempty"`
	SubmittedAt  *time.Time      `json:"submitted_at,omitempty"`
	Transactions []Transaction   `json:"transactions"`
}

// Transaction is one line of a payout. The SalesOrder, SalesInvoice and DeliveryNote
// fields are linkage references into the ERP; an empty string means unlinked.
type Transaction struct {
	TransactionID              string                     `json:"transaction_id"`
	TransactionType            TransactionType            `json:"transaction_type"`
	ProcessedAt                time.Time                  `json:"processed_at"`
	TotalAmount                decimal.Decimal            `json:"total_amount"`
	Fee                        decimal.Decimal            `json:"fee"`
	NetAmount                  decimal.Decimal            `json:"net_amount"`
	Currency                   string                     `json:"currency"`
	SalesOrder                 string                     `json:"sales_order,omitempty"`
	SalesInvoice               string                     `json:"sales_invoice,omitempty"`
	DeliveryNote               string                     `json:"delivery_note,omitempty"`
	SourceID                   string                     `json:"source_id,omitempty"`
	SourceType                 string                     `json:"source_type,omitempty"`
	SourceOrderID              string                     `json:"source_order_id,omitempty"`
	SourceOrderTransactionID   string                     `json:"source_order_transaction_id,omitempty"`
	SourceOrderFinancialStatus string                     `json:"source_order_financial_status,omitempty"`
	FeeBreakdown               map[string]decimal.Decimal `json:"fee_breakdown,omitempty"`
}

// IsPayout reports whether the transaction is the payout summary line itself.
func (t *Transaction) IsPayout() bool {
	return t.TransactionType == TransactionPayout
}

// IsRefunded reports whether the snapshotted source order status asks for a return.
func (t *Transaction) IsRefunded() bool {
	return t.SourceOrderFinancialStatus == FinancialStatusRefunded ||
		t.SourceOrderFinancialStatus == FinancialStatusPartiallyRefunded
}

// PayoutFilter narrows the payouts listed from the platform.
type PayoutFilter struct {
	Status  PayoutStatus `json:"status,omitempty"`
	DateMin *time.Time   `json:"date_min,omitempty"`
}
