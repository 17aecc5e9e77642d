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

package settlr

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/wacul/ptr"
	"go.opentelemetry.io/otel"

	"github.com/blnkfinance/settlr/internal/apierror"
	"github.com/blnkfinance/settlr/model"
)

// SubmitPayout settles a synced payout. Under the payout's submit lock it refreshes the order
// linkage, unwinds documents of cancelled orders, generates returns for refunded orders,
// posts fees onto draft invoices, compiles and posts the journal, and finally marks the
// payout submitted. Once submitted a payout can neither be resynced nor submitted again.
//
// Parameters:
// - ctx context.Context: The context for the submission.
// - feed FeedReader: The open platform session used to read current orders.
// - payoutID string: The id of the payout to submit.
//
// Returns:
// - *model.Payout: The submitted payout.
// - error: CONFLICT if the payout is already submitted or locked, ACCOUNT_RESOLUTION if an
// entry has no account, or an error from storage or the ERP.
func (s *Settlr) SubmitPayout(ctx context.Context, feed FeedReader, payoutID string) (*model.Payout, error) {
	ctx, span := otel.Tracer("settlr.submit").Start(ctx, "Submitting payout")
	defer span.End()

	release, _, err := s.acquire(ctx, s.submitLocker(payoutID))
	if err != nil {
		return nil, err
	}
	defer release()

	payout, err := s.datasource.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if payout.Submitted {
		return nil, apierror.NewAPIError(apierror.ErrConflict, "payout "+payoutID+" is already submitted", nil)
	}

	orders := s.currentOrders(ctx, feed, payout.Transactions)
	s.refreshLinkage(ctx, payout.Transactions, orders)
	s.PropagateCancellations(ctx, payout.Transactions, orders)
	s.GenerateReturns(ctx, payout.Transactions)
	s.PostFees(ctx, payout.Transactions)

	if err := s.datasource.UpdatePayoutTransactions(ctx, payoutID, payout.Transactions); err != nil {
		return nil, err
	}

	entries, err := s.CompileEntries(ctx, payout.Transactions)
	if err != nil {
		logrus.WithField("payout_id", payoutID).WithError(err).Error("failed to compile ledger entries")
		return nil, err
	}

	journal, err := s.PostJournal(ctx, payout, entries)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.datasource.MarkPayoutSubmitted(ctx, payoutID, journal, now); err != nil {
		return nil, err
	}
	payout.Submitted = true
	payout.JournalEntry = journal
	payout.SubmittedAt = ptr.Time(now)

	logrus.WithFields(logrus.Fields{"payout_id": payoutID, "journal_entry": journal, "entries": len(entries)}).Info("payout submitted")
	return payout, nil
}

// currentOrders fetches the current platform order behind every transaction, once per order.
// Orders that fail to load are logged and left out.
func (s *Settlr) currentOrders(ctx context.Context, feed FeedReader, txns []model.Transaction) map[string]*model.PlatformOrder {
	orders := make(map[string]*model.PlatformOrder)
	seen := make(map[string]bool)
	for i := range txns {
		orderID := txns[i].SourceOrderID
		if orderID == "" || seen[orderID] {
			continue
		}
		seen[orderID] = true

		order, err := feed.GetOrder(ctx, orderID)
		if err != nil {
			logrus.WithField("order_id", orderID).WithError(err).Error("failed to fetch current order")
			continue
		}
		if order != nil {
			orders[orderID] = order
		}
	}
	return orders
}

// refreshLinkage re-resolves the documents of every transaction with a source order,
// creating the ones still missing. Documents are never created for cancelled orders, and a
// failed resolution keeps the links recorded at sync time.
func (s *Settlr) refreshLinkage(ctx context.Context, txns []model.Transaction, orders map[string]*model.PlatformOrder) {
	for i := range txns {
		t := &txns[i]
		if t.SourceOrderID == "" {
			continue
		}

		order := orders[t.SourceOrderID]
		if order != nil {
			t.SourceOrderFinancialStatus = order.FinancialStatus
			if order.IsCancelled() {
				order = nil
			}
		}

		linkage, err := s.ResolveOrCreate(ctx, t.SourceOrderID, order)
		if err != nil {
			logrus.WithFields(logrus.Fields{"transaction_id": t.TransactionID, "order_id": t.SourceOrderID}).
				WithError(err).Error("failed to refresh order linkage")
			continue
		}
		t.ApplyLinkage(linkage)
	}
}
