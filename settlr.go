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
	"embed"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/blnkfinance/settlr/config"
	"github.com/blnkfinance/settlr/database"
	"github.com/blnkfinance/settlr/internal/cache"
	"github.com/blnkfinance/settlr/internal/notification"
	"github.com/blnkfinance/settlr/internal/platform"
	"github.com/blnkfinance/settlr/model"
)

//go:embed sql/*.sql
var SQLFiles embed.FS

// FeedReader reads payouts, their transactions and orders from the commerce platform.
// GetOrder returns nil without an error when the platform has no such order.
type FeedReader interface {
	ListPayouts(ctx context.Context, filter model.PayoutFilter, cursor string) (model.PayoutPage, error)
	ListTransactions(ctx context.Context, payoutID string) ([]model.PlatformTransaction, error)
	GetOrder(ctx context.Context, orderID string) (*model.PlatformOrder, error)
	GetTransactionDetail(ctx context.Context, transactionID, orderID string) (*model.TransactionDetail, error)
}

// FeedSession is a FeedReader that must be released after use.
type FeedSession interface {
	FeedReader
	Close() error
}

// FeedOpener opens a platform session for one run.
type FeedOpener func(cfg *config.Configuration) (FeedSession, error)

// ERP is the set of document, account and journal operations the reconciliation
// performs against the ERP.
type ERP interface {
	LookupByOrderID(ctx context.Context, docType model.DocumentType, orderID string) (string, error)
	GetDocument(ctx context.Context, docType model.DocumentType, name string) (*model.Document, error)
	CreateOrder(ctx context.Context, order *model.PlatformOrder) (string, error)
	CreateInvoice(ctx context.Context, order *model.PlatformOrder, salesOrder string) (string, error)
	CreateDelivery(ctx context.Context, order *model.PlatformOrder, salesOrder string) ([]string, error)
	CreateSalesReturn(ctx context.Context, orderID, financialStatus string, invoice *model.Document) (string, error)
	CancelDocument(ctx context.Context, docType model.DocumentType, name string, ignoreLinks []model.DocumentType) error
	AddInvoiceCharges(ctx context.Context, invoice string, charges []model.TaxCharge) error
	SubmitDocument(ctx context.Context, docType model.DocumentType, name string) error
	GetAccount(ctx context.Context, name string) (*model.Account, error)
	FindJournalEntry(ctx context.Context, chequeNo string) (string, error)
	CreateJournalEntry(ctx context.Context, je *model.JournalEntry) (string, error)
}

// Settlr reconciles platform payouts against ERP documents and posts their journals.
type Settlr struct {
	config     *config.Configuration
	datasource database.IDataSource
	erp        ERP
	redis      redis.UniversalClient
	orders     cache.OrderCache
	notifier   *notification.Notifier
	openFeed   FeedOpener
	now        func() time.Time
}

// NewSettlr wires the reconciliation services. redisClient may be nil, in which case runs
// are not locked and orders are not cached between transactions.
//
// Parameters:
// - cfg *config.Configuration: The configuration shared by every component.
// - db database.IDataSource: The payout store.
// - erpClient ERP: The ERP collaborator.
// - redisClient redis.UniversalClient: The Redis client backing locks and the order cache.
//
// Returns:
// - *Settlr: The wired service.
func NewSettlr(cfg *config.Configuration, db database.IDataSource, erpClient ERP, redisClient redis.UniversalClient) *Settlr {
	s := &Settlr{
		config:     cfg,
		datasource: db,
		erp:        erpClient,
		redis:      redisClient,
		notifier:   notification.NewNotifier(cfg.Notification.Slack.WebhookUrl),
		openFeed:   openPlatformFeed,
		now:        time.Now,
	}
	if redisClient != nil {
		s.orders = cache.NewOrderCache(redisClient, cfg.OrderCacheTTL())
	}
	return s
}

func openPlatformFeed(cfg *config.Configuration) (FeedSession, error) {
	return platform.Open(cfg)
}

// SetFeedOpener replaces the function used to open platform sessions.
func (s *Settlr) SetFeedOpener(open FeedOpener) {
	s.openFeed = open
}

// Config returns the configuration the service was built with.
func (s *Settlr) Config() *config.Configuration {
	return s.config
}

// GetPayout returns a stored payout with its transactions.
func (s *Settlr) GetPayout(ctx context.Context, payoutID string) (*model.Payout, error) {
	return s.datasource.GetPayout(ctx, payoutID)
}

// GetPayouts lists stored payouts, newest first.
func (s *Settlr) GetPayouts(ctx context.Context, limit, offset int) ([]model.Payout, error) {
	return s.datasource.GetPayouts(ctx, limit, offset)
}

// RunSync opens a platform session, syncs the payouts matching filter and releases the session.
func (s *Settlr) RunSync(ctx context.Context, filter model.PayoutFilter) (SyncResult, error) {
	feed, err := s.openFeed(s.config)
	if err != nil {
		return SyncResult{}, err
	}
	defer feed.Close()

	return s.SyncPayouts(ctx, feed, filter)
}

// RunSubmit opens a platform session, submits one payout and releases the session.
func (s *Settlr) RunSubmit(ctx context.Context, payoutID string) (*model.Payout, error) {
	feed, err := s.openFeed(s.config)
	if err != nil {
		return nil, err
	}
	defer feed.Close()

	return s.SubmitPayout(ctx, feed, payoutID)
}
