package model

import (
	"encoding/json"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

// PlatformPayout is a payout as reported by the commerce platform.
type PlatformPayout struct {
	ID       int64           `json:"id"`
	Status   PayoutStatus    `json:"status"`
	Date     string          `json:"date"`
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
	Summary  PayoutSummary   `json:"summary"`
}

func (p *PlatformPayout) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.ID, validation.Required),
		validation.Field(&p.Status, validation.Required, validation.In(PayoutPending, PayoutInTransit, PayoutPaid, PayoutFailed)),
		validation.Field(&p.Date, validation.Required, validation.Date("2006-01-02")),
		validation.Field(&p.Currency, validation.Required, validation.Length(3, 3)),
	)
}

// PayoutID returns the platform id in the form used as the local aggregate key.
func (p *PlatformPayout) PayoutID() string {
	return strconv.FormatInt(p.ID, 10)
}

// PayoutDate parses the payout date; the zero time is returned for malformed dates.
func (p *PlatformPayout) PayoutDate() time.Time {
	t, err := time.Parse("2006-01-02", p.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}

// PayoutPage is one page of listed payouts plus the cursor to the next page.
type PayoutPage struct {
	Payouts  []PlatformPayout
	NextPage string
}

// PlatformTransaction is a balance transaction belonging to a payout.
type PlatformTransaction struct {
	ID                       int64           `json:"id"`
	Type                     TransactionType `json:"type"`
	PayoutID                 int64           `json:"payout_id"`
	PayoutStatus             PayoutStatus    `json:"payout_status"`
	Currency                 string          `json:"currency"`
	Amount                   decimal.Decimal `json:"amount"`
	Fee                      decimal.Decimal `json:"fee"`
	Net                      decimal.Decimal `json:"net"`
	SourceID                 *int64          `json:"source_id"`
	SourceType               string          `json:"source_type"`
	SourceOrderID            *int64          `json:"source_order_id"`
	SourceOrderTransactionID *int64          `json:"source_order_transaction_id"`
	ProcessedAt              time.Time       `json:"processed_at"`
}

// FormatID renders an optional platform id; nil renders as the empty string.
func FormatID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

// PlatformOrder is an order as reported by the platform. Raw keeps the full payload
// for the document creation collaborators.
type PlatformOrder struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	FinancialStatus string          `json:"financial_status"`
	CancelledAt     *time.Time      `json:"cancelled_at"`
	Currency        string          `json:"currency"`
	Raw             json.RawMessage `json:"-"`
}

// OrderID returns the platform id as a string.
func (o *PlatformOrder) OrderID() string {
	return strconv.FormatInt(o.ID, 10)
}

func (o *PlatformOrder) IsCancelled() bool {
	return o.CancelledAt != nil && !o.CancelledAt.IsZero()
}

// FeeLine is one category of a transaction's fee breakdown.
type FeeLine struct {
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

// TransactionDetail is the order transaction behind a balance transaction.
type TransactionDetail struct {
	ID      int64           `json:"id"`
	OrderID int64           `json:"order_id"`
	Kind    string          `json:"kind"`
	Gateway string          `json:"gateway"`
	Amount  decimal.Decimal `json:"amount"`
	Fees    []FeeLine       `json:"fees"`
}

// Breakdown folds the fee lines into per-category totals.
func (d *TransactionDetail) Breakdown() map[string]decimal.Decimal {
	if len(d.Fees) == 0 {
		return nil
	}
	out := make(map[string]decimal.Decimal, len(d.Fees))
	for _, f := range d.Fees {
		out[f.Type] = out[f.Type].Add(f.Amount)
	}
	return out
}
