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
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/blnkfinance/settlr/internal/apierror"
	"github.com/blnkfinance/settlr/model"
)

// syncStateName keys the platform payout sync in the sync state table.
const syncStateName = "platform_payouts"

// SyncResult summarises one sync run by payout id.
type SyncResult struct {
	RunID   string   `json:"run_id"`
	Synced  []string `json:"synced"`
	Skipped []string `json:"skipped"`
	Failed  []string `json:"failed"`
}

// SyncPayouts pulls every payout matching filter from the feed and syncs them one by one in
// increasing payout date order. A failure on one payout is logged and only skips that payout.
// Cancellation is honoured between payouts, never in the middle of one.
//
// An empty filter status defaults to the configured payout status, and an empty date
// defaults to the date of the last completed run.
//
// Parameters:
// - ctx context.Context: The context for the run. Cancelling it stops before the next payout.
// - feed FeedReader: The open platform session.
// - filter model.PayoutFilter: The payout status and earliest date to sync.
//
// Returns:
// - SyncResult: The payout ids synced, skipped and failed.
// - error: An error if the run could not start, the first page could not be listed, or ctx was cancelled.
func (s *Settlr) SyncPayouts(ctx context.Context, feed FeedReader, filter model.PayoutFilter) (SyncResult, error) {
	ctx, span := otel.Tracer("settlr.sync").Start(ctx, "Syncing payouts")
	defer span.End()

	result := SyncResult{RunID: model.GenerateUUIDWithSuffix("sync"), Synced: []string{}, Skipped: []string{}, Failed: []string{}}

	release, locker, err := s.acquire(ctx, s.syncLocker)
	if err != nil {
		return result, err
	}
	defer release()

	startedAt := s.now()
	filter = s.defaultFilter(ctx, filter)

	payouts, complete, err := s.listAllPayouts(ctx, feed, filter)
	if err != nil {
		return result, err
	}

	sort.SliceStable(payouts, func(i, j int) bool {
		di, dj := payouts[i].PayoutDate(), payouts[j].PayoutDate()
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return payouts[i].ID < payouts[j].ID
	})

	ids := make([]string, 0, len(payouts))
	for i := range payouts {
		ids = append(ids, payouts[i].PayoutID())
	}
	submitted, err := s.datasource.GetSubmittedPayoutIDs(ctx, ids)
	if err != nil {
		return result, err
	}

	var earliestFailure *time.Time
	for i := range payouts {
		if err := ctx.Err(); err != nil {
			logrus.WithField("remaining", len(payouts)-i).Warn("payout sync cancelled")
			return result, err
		}

		payload := &payouts[i]
		payoutID := payload.PayoutID()
		if submitted[payoutID] {
			result.Skipped = append(result.Skipped, payoutID)
			continue
		}

		if _, err := s.SyncPayout(ctx, feed, payload); err != nil {
			if apierror.IsCode(err, apierror.ErrConflict) {
				result.Skipped = append(result.Skipped, payoutID)
				continue
			}
			logrus.WithFields(logrus.Fields{"payout_id": payoutID}).WithError(err).Error("failed to sync payout, skipping")
			result.Failed = append(result.Failed, payoutID)
			if d := payload.PayoutDate(); earliestFailure == nil || d.Before(*earliestFailure) {
				earliestFailure = &d
			}
			continue
		}
		result.Synced = append(result.Synced, payoutID)

		if locker != nil {
			if err := locker.ExtendLock(ctx, s.config.LockTimeout()); err != nil {
				logrus.WithError(err).Warn("failed to extend sync lock")
			}
		}
	}

	if complete {
		next := startedAt
		if earliestFailure != nil {
			next = *earliestFailure
		}
		if err := s.datasource.SetLastSyncAt(ctx, syncStateName, next); err != nil {
			logrus.WithError(err).Error("failed to record sync state")
		}
	}

	logrus.WithFields(logrus.Fields{
		"run_id":  result.RunID,
		"synced":  len(result.Synced),
		"skipped": len(result.Skipped),
		"failed":  len(result.Failed),
	}).Info("payout sync finished")
	return result, nil
}

func (s *Settlr) defaultFilter(ctx context.Context, filter model.PayoutFilter) model.PayoutFilter {
	if filter.Status == "" {
		filter.Status = model.PayoutStatus(s.config.Platform.PayoutStatus)
	}
	if filter.DateMin == nil {
		last, err := s.datasource.GetLastSyncAt(ctx, syncStateName)
		if err != nil {
			logrus.WithError(err).Warn("failed to read sync state, syncing without a start date")
		}
		filter.DateMin = last
	}
	return filter
}

// listAllPayouts follows the feed's pages. A failure on the first page fails the run;
// a failure on a later page keeps what was read and reports the listing as incomplete.
func (s *Settlr) listAllPayouts(ctx context.Context, feed FeedReader, filter model.PayoutFilter) ([]model.PlatformPayout, bool, error) {
	var payouts []model.PlatformPayout
	cursor := ""
	for page := 0; ; page++ {
		result, err := feed.ListPayouts(ctx, filter, cursor)
		if err != nil {
			if page == 0 {
				return nil, false, err
			}
			logrus.WithField("page", page).WithError(err).Error("failed to list payouts page, continuing with what was read")
			return payouts, false, nil
		}
		payouts = append(payouts, result.Payouts...)
		if result.NextPage == "" {
			return payouts, true, nil
		}
		cursor = result.NextPage
	}
}

// SyncPayout builds the local aggregate for one feed payout and stores it, replacing the
// transaction list of an existing draft. Submitted payouts are rejected with CONFLICT.
//
// Parameters:
// - ctx context.Context: The context for the sync.
// - feed FeedReader: The open platform session.
// - payload *model.PlatformPayout: The payout as listed by the feed.
//
// Returns:
// - *model.Payout: The stored aggregate.
// - error: An error if the payload is invalid, the payout is submitted, its transactions cannot be listed, or it cannot be stored.
func (s *Settlr) SyncPayout(ctx context.Context, feed FeedReader, payload *model.PlatformPayout) (*model.Payout, error) {
	ctx, span := otel.Tracer("settlr.sync").Start(ctx, "Syncing payout")
	defer span.End()

	if err := payload.Validate(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("invalid payout %d", payload.ID), err)
	}
	payoutID := payload.PayoutID()

	existing, err := s.datasource.GetPayout(ctx, payoutID)
	if err != nil && !apierror.IsCode(err, apierror.ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.Submitted {
		return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("payout %s is already submitted", payoutID), nil)
	}

	raw, err := feed.ListTransactions(ctx, payoutID)
	if err != nil {
		return nil, err
	}

	payout := &model.Payout{
		PayoutID:   payoutID,
		Status:     payload.Status,
		PayoutDate: payload.PayoutDate(),
		Currency:   payload.Currency,
		Amount:     payload.Amount,
		Summary:    payload.Summary,
	}
	if existing != nil {
		payout.ID = existing.ID
	}

	txns := make([]model.Transaction, 0, len(raw))
	for i := range raw {
		txns = append(txns, s.buildTransaction(ctx, feed, payoutID, &raw[i]))
	}
	payout.Transactions = txns

	if err := s.datasource.SavePayout(ctx, payout); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"payout_id": payoutID, "transactions": len(txns)}).Info("payout synced")
	return payout, nil
}

// buildTransaction normalises one feed transaction and attaches its order linkage, the
// order's financial status and the fee breakdown. Lookup failures only leave the
// corresponding fields empty.
func (s *Settlr) buildTransaction(ctx context.Context, feed FeedReader, payoutID string, raw *model.PlatformTransaction) model.Transaction {
	t := model.Transaction{
		TransactionID:            strconv.FormatInt(raw.ID, 10),
		TransactionType:          raw.Type,
		ProcessedAt:              raw.ProcessedAt,
		Currency:                 raw.Currency,
		SourceID:                 model.FormatID(raw.SourceID),
		SourceType:               raw.SourceType,
		SourceOrderID:            model.FormatID(raw.SourceOrderID),
		SourceOrderTransactionID: model.FormatID(raw.SourceOrderTransactionID),
	}
	NormalizeAmounts(&t, raw)

	if t.SourceOrderID == "" {
		return t
	}

	fields := logrus.Fields{"payout_id": payoutID, "transaction_id": t.TransactionID, "order_id": t.SourceOrderID}

	order, err := s.fetchOrder(ctx, feed, t.SourceOrderID)
	if err != nil {
		logrus.WithFields(fields).WithError(err).Error("failed to fetch source order, leaving transaction unlinked")
	} else {
		if order != nil {
			t.SourceOrderFinancialStatus = order.FinancialStatus
		}
		linkage, err := s.ResolveOrCreate(ctx, t.SourceOrderID, order)
		if err != nil {
			logrus.WithFields(fields).WithError(err).Error("failed to resolve order linkage")
		}
		t.ApplyLinkage(linkage)
	}

	if t.SourceOrderTransactionID != "" {
		detail, err := feed.GetTransactionDetail(ctx, t.SourceOrderTransactionID, t.SourceOrderID)
		if err != nil {
			logrus.WithFields(fields).WithError(err).Error("failed to fetch transaction detail, skipping fee breakdown")
		} else {
			t.FeeBreakdown = detail.Breakdown()
		}
	}
	return t
}

// fetchOrder reads an order through the snapshot cache when one is configured.
func (s *Settlr) fetchOrder(ctx context.Context, feed FeedReader, orderID string) (*model.PlatformOrder, error) {
	if s.orders == nil {
		return feed.GetOrder(ctx, orderID)
	}
	return s.orders.GetOrder(ctx, orderID, func(ctx context.Context) (*model.PlatformOrder, error) {
		return feed.GetOrder(ctx, orderID)
	})
}

// NormalizeAmounts copies the amounts of a feed transaction. Payout transactions are
// reported as withdrawals from the platform balance, so their sign is inverted before the
// fee is subtracted: net = total - fee for every type.
func NormalizeAmounts(t *model.Transaction, raw *model.PlatformTransaction) {
	total := raw.Amount
	if raw.Type == model.TransactionPayout {
		total = total.Neg()
	}
	t.TotalAmount = total
	t.Fee = raw.Fee
	t.NetAmount = total.Sub(raw.Fee)
}
