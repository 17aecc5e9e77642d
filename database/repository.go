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
	"time"

	"github.com/blnkfinance/settlr/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	payout    // Interface for payout aggregate operations
	syncState // Interface for sync bookkeeping
}

// payout defines methods for storing payouts together with their transactions.
type payout interface {
	SavePayout(ctx context.Context, p *model.Payout) error                                               // Replaces the payout and its transactions atomically
	GetPayout(ctx context.Context, payoutID string) (*model.Payout, error)                               // Retrieves a payout with its transactions
	GetPayouts(ctx context.Context, limit, offset int) ([]model.Payout, error)                           // Lists payouts, newest first, without transactions
	UpdatePayoutTransactions(ctx context.Context, payoutID string, txns []model.Transaction) error       // Rewrites the transactions of an unsubmitted payout
	MarkPayoutSubmitted(ctx context.Context, payoutID, journalEntry string, submittedAt time.Time) error // Flags a payout as submitted
	GetSubmittedPayoutIDs(ctx context.Context, payoutIDs []string) (map[string]bool, error)              // Reports which of the given payouts are submitted
}

// syncState defines methods for remembering when payouts were last synced.
type syncState interface {
	GetLastSyncAt(ctx context.Context, name string) (*time.Time, error) // Returns nil when no sync has completed
	SetLastSyncAt(ctx context.Context, name string, at time.Time) error // Records a completed sync
}
