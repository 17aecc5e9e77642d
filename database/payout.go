/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"github.com/blnkfinance/settlr/internal/apierror"
	"github.com/blnkfinance/settlr/model"
)

// SavePayout writes the payout and replaces its transactions in one database transaction.
// A payout that is already submitted is never overwritten; CONFLICT is returned instead.
func (d Datasource) SavePayout(ctx context.Context, p *model.Payout) error {
	ctx, span := otel.Tracer("settlr.database").Start(ctx, "Saving payout")
	defer span.End()

	summary, err := json.Marshal(p.Summary)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal payout summary", err)
	}

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO settlr.payouts (payout_id, status, payout_date, currency, amount, summary)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (payout_id) DO UPDATE SET
			status = EXCLUDED.status,
			payout_date = EXCLUDED.payout_date,
			currency = EXCLUDED.currency,
			amount = EXCLUDED.amount,
			summary = EXCLUDED.summary
		WHERE settlr.payouts.submitted = FALSE
	`, p.PayoutID, p.Status, p.PayoutDate, p.Currency, p.Amount, summary)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to save payout", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rows == 0 {
		return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Payout '%s' is already submitted", p.PayoutID), nil)
	}

	if err := replaceTransactions(ctx, tx, p.PayoutID, p.Transactions); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit payout", err)
	}
	return nil
}

// UpdatePayoutTransactions rewrites the transactions of a payout that has not been submitted.
func (d Datasource) UpdatePayoutTransactions(ctx context.Context, payoutID string, txns []model.Transaction) error {
	ctx, span := otel.Tracer("settlr.database").Start(ctx, "Updating payout transactions")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var submitted bool
	err = tx.QueryRowContext(ctx, `SELECT submitted FROM settlr.payouts WHERE payout_id = $1 FOR UPDATE`, payoutID).Scan(&submitted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Payout with ID '%s' not found", payoutID), err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to lock payout", err)
	}
	if submitted {
		return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Payout '%s' is already submitted", payoutID), nil)
	}

	if err := replaceTransactions(ctx, tx, payoutID, txns); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit payout transactions", err)
	}
	return nil
}

func replaceTransactions(ctx context.Context, tx *sql.Tx, payoutID string, txns []model.Transaction) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM settlr.payout_transactions WHERE payout_id = $1`, payoutID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to clear payout transactions", err)
	}

	for i, t := range txns {
		var breakdown []byte
		if len(t.FeeBreakdown) > 0 {
			breakdown, err = json.Marshal(t.FeeBreakdown)
			if err != nil {
				return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal fee breakdown", err)
			}
		}

		var processedAt sql.NullTime
		if !t.ProcessedAt.IsZero() {
			processedAt = sql.NullTime{Time: t.ProcessedAt, Valid: true}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO settlr.payout_transactions (
				payout_id, idx, transaction_id, transaction_type, processed_at, total_amount, fee, net_amount, currency,
				sales_order, sales_invoice, delivery_note, source_id, source_type, source_order_id,
				source_order_transaction_id, source_order_financial_status, fee_breakdown
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		`, payoutID, i, t.TransactionID, t.TransactionType, processedAt, t.TotalAmount, t.Fee, t.NetAmount, t.Currency,
			t.SalesOrder, t.SalesInvoice, t.DeliveryNote, t.SourceID, t.SourceType, t.SourceOrderID,
			t.SourceOrderTransactionID, t.SourceOrderFinancialStatus, breakdown)
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, fmt.Sprintf("Failed to save transaction '%s'", t.TransactionID), err)
		}
	}
	return nil
}

// GetPayout retrieves a payout and its transactions in their stored order.
func (d Datasource) GetPayout(ctx context.Context, payoutID string) (*model.Payout, error) {
	ctx, span := otel.Tracer("settlr.database").Start(ctx, "Fetching payout")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, payout_id, status, payout_date, currency, amount, summary, submitted, journal_entry, submitted_at
		FROM settlr.payouts
		WHERE payout_id = $1
	`, payoutID)

	p, err := scanPayout(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Payout with ID '%s' not found", payoutID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve payout", err)
	}

	txns, err := d.getPayoutTransactions(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	p.Transactions = txns
	return p, nil
}

// GetPayouts lists payouts newest first. Transactions are not loaded.
func (d Datasource) GetPayouts(ctx context.Context, limit, offset int) ([]model.Payout, error) {
	ctx, span := otel.Tracer("settlr.database").Start(ctx, "Listing payouts")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, payout_id, status, payout_date, currency, amount, summary, submitted, journal_entry, submitted_at
		FROM settlr.payouts
		ORDER BY payout_date DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to list payouts", err)
	}
	defer rows.Close()

	payouts := []model.Payout{}
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan payout", err)
		}
		payouts = append(payouts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to iterate payouts", err)
	}
	return payouts, nil
}

// MarkPayoutSubmitted flags a payout as submitted with the journal entry that settled it.
func (d Datasource) MarkPayoutSubmitted(ctx context.Context, payoutID, journalEntry string, submittedAt time.Time) error {
	ctx, span := otel.Tracer("settlr.database").Start(ctx, "Marking payout submitted")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE settlr.payouts
		SET submitted = TRUE, journal_entry = $2, submitted_at = $3
		WHERE payout_id = $1 AND submitted = FALSE
	`, payoutID, journalEntry, submittedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark payout submitted", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rows == 0 {
		return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Payout '%s' is missing or already submitted", payoutID), nil)
	}
	return nil
}

// GetSubmittedPayoutIDs reports which of the given payouts are stored as submitted.
func (d Datasource) GetSubmittedPayoutIDs(ctx context.Context, payoutIDs []string) (map[string]bool, error) {
	ctx, span := otel.Tracer("settlr.database").Start(ctx, "Fetching submitted payouts")
	defer span.End()

	submitted := make(map[string]bool)
	if len(payoutIDs) == 0 {
		return submitted, nil
	}

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT payout_id FROM settlr.payouts
		WHERE payout_id = ANY($1) AND submitted = TRUE
	`, pq.Array(payoutIDs))
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fetch submitted payouts", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan payout id", err)
		}
		submitted[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to iterate submitted payouts", err)
	}
	return submitted, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayout(row rowScanner) (*model.Payout, error) {
	p := &model.Payout{}
	var summary []byte
	var submittedAt sql.NullTime
	err := row.Scan(&p.ID, &p.PayoutID, &p.Status, &p.PayoutDate, &p.Currency, &p.Amount, &summary, &p.Submitted, &p.JournalEntry, &submittedAt)
	if err != nil {
		return nil, err
	}
	if len(summary) > 0 {
		if err := json.Unmarshal(summary, &p.Summary); err != nil {
			return nil, err
		}
	}
	if submittedAt.Valid {
		t := submittedAt.Time
		p.SubmittedAt = &t
	}
	return p, nil
}

func (d Datasource) getPayoutTransactions(ctx context.Context, payoutID string) ([]model.Transaction, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT transaction_id, transaction_type, processed_at, total_amount, fee, net_amount, currency,
			sales_order, sales_invoice, delivery_note, source_id, source_type, source_order_id,
			source_order_transaction_id, source_order_financial_status, fee_breakdown
		FROM settlr.payout_transactions
		WHERE payout_id = $1
		ORDER BY idx
	`, payoutID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve payout transactions", err)
	}
	defer rows.Close()

	txns := []model.Transaction{}
	for rows.Next() {
		var t model.Transaction
		var processedAt sql.NullTime
		var breakdown []byte
		err := rows.Scan(&t.TransactionID, &t.TransactionType, &processedAt, &t.TotalAmount, &t.Fee, &t.NetAmount, &t.Currency,
			&t.SalesOrder, &t.SalesInvoice, &t.DeliveryNote, &t.SourceID, &t.SourceType, &t.SourceOrderID,
			&t.SourceOrderTransactionID, &t.SourceOrderFinancialStatus, &breakdown)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan payout transaction", err)
		}
		if processedAt.Valid {
			t.ProcessedAt = processedAt.Time
		}
		if len(breakdown) > 0 {
			fees := map[string]decimal.Decimal{}
			if err := json.Unmarshal(breakdown, &fees); err != nil {
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal fee breakdown", err)
			}
			t.FeeBreakdown = fees
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to iterate payout transactions", err)
	}
	return txns, nil
}
