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

package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/blnkfinance/settlr/config"
	"github.com/blnkfinance/settlr/internal/apierror"
	"github.com/blnkfinance/settlr/internal/request"
	"github.com/blnkfinance/settlr/model"
)

const accessTokenHeader = "X-Shopify-Access-Token"

// ErrSessionClosed is returned by calls made after Close.
var ErrSessionClosed = errors.New("platform session is closed")

// Session is an open connection to the commerce platform. Every call is bounded by the
// configured timeout and retried with backoff. A Session is released with Close; the
// caller that opens it owns it.
type Session struct {
	client     *request.Client
	apiPath    string
	timeout    time.Duration
	maxRetries int
	pageSize   int
	closed     atomic.Bool
}

// Open starts a session against the configured shop.
func Open(cfg *config.Configuration) (*Session, error) {
	if cfg == nil || cfg.Platform.ShopURL == "" || cfg.Platform.AccessToken == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "platform shop url and access token are required", nil)
	}

	return &Session{
		client: request.NewClient(cfg.Platform.ShopURL, cfg.PlatformTimeout(), map[string]string{
			accessTokenHeader: cfg.Platform.AccessToken,
		}),
		apiPath:    fmt.Sprintf("/admin/api/%s", cfg.Platform.APIVersion),
		timeout:    cfg.PlatformTimeout(),
		maxRetries: cfg.Platform.MaxRetries,
		pageSize:   cfg.Platform.PageSize,
	}, nil
}

// Close releases the session. It is safe to call more than once.
func (s *Session) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *Session) get(ctx context.Context, name, path string, query url.Values, out interface{}) (http.Header, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}

	var header http.Header
	err := withRetry(ctx, s.timeout, s.maxRetries, name, func(ctx context.Context) error {
		resp, err := s.client.Do(ctx, http.MethodGet, path, query, nil, out)
		if resp != nil {
			header = resp.Header
		}
		return err
	})
	return header, err
}

type payoutsResponse struct {
	Payouts []model.PlatformPayout `json:"payouts"`
}

// ListPayouts returns one page of payouts. An empty cursor starts from the first page
// matching filter; a non-empty cursor continues a previous listing.
func (s *Session) ListPayouts(ctx context.Context, filter model.PayoutFilter, cursor string) (model.PayoutPage, error) {
	ctx, span := otel.Tracer("settlr.platform").Start(ctx, "Listing payouts")
	defer span.End()

	query := url.Values{"limit": {strconv.Itoa(s.pageSize)}}
	if cursor != "" {
		query.Set("page_info", cursor)
	} else {
		if filter.Status != "" {
			query.Set("status", string(filter.Status))
		}
		if filter.DateMin != nil {
			query.Set("date_min", filter.DateMin.Format("2006-01-02"))
		}
	}

	var out payoutsResponse
	header, err := s.get(ctx, "list_payouts", s.apiPath+"/shopify_payments/payouts.json", query, &out)
	if err != nil {
		return model.PayoutPage{}, apierror.NewAPIError(apierror.ErrTransientFetch, "failed to list payouts", err)
	}

	return model.PayoutPage{
		Payouts:  out.Payouts,
		NextPage: pageInfo(nextPageURL(header.Get("Link"))),
	}, nil
}

type transactionsResponse struct {
	Transactions []model.PlatformTransaction `json:"transactions"`
}

// ListTransactions returns every balance transaction of a payout, following pagination.
func (s *Session) ListTransactions(ctx context.Context, payoutID string) ([]model.PlatformTransaction, error) {
	ctx, span := otel.Tracer("settlr.platform").Start(ctx, "Listing payout transactions")
	defer span.End()

	query := url.Values{
		"payout_id": {payoutID},
		"limit":     {strconv.Itoa(s.pageSize)},
	}

	txns := []model.PlatformTransaction{}
	for {
		var out transactionsResponse
		header, err := s.get(ctx, "list_transactions", s.apiPath+"/shopify_payments/balance/transactions.json", query, &out)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrTransientFetch, fmt.Sprintf("failed to list transactions of payout %s", payoutID), err)
		}
		txns = append(txns, out.Transactions...)

		cursor := pageInfo(nextPageURL(header.Get("Link")))
		if cursor == "" {
			return txns, nil
		}
		query = url.Values{"limit": {strconv.Itoa(s.pageSize)}, "page_info": {cursor}}
	}
}

type orderResponse struct {
	Order json.RawMessage `json:"order"`
}

// GetOrder returns the current state of an order, or nil when the platform has no such order.
func (s *Session) GetOrder(ctx context.Context, orderID string) (*model.PlatformOrder, error) {
	ctx, span := otel.Tracer("settlr.platform").Start(ctx, "Fetching order")
	defer span.End()

	var out orderResponse
	_, err := s.get(ctx, "get_order", fmt.Sprintf("%s/orders/%s.json", s.apiPath, orderID), nil, &out)
	if err != nil {
		if request.StatusCode(err) == http.StatusNotFound {
			return nil, nil
		}
		return nil, apierror.NewAPIError(apierror.ErrTransientFetch, fmt.Sprintf("failed to fetch order %s", orderID), err)
	}
	if len(out.Order) == 0 || string(out.Order) == "null" {
		return nil, nil
	}

	order := &model.PlatformOrder{}
	if err := json.Unmarshal(out.Order, order); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrTransientFetch, fmt.Sprintf("malformed order %s", orderID), err)
	}
	order.Raw = out.Order
	return order, nil
}

type transactionDetailResponse struct {
	Transaction model.TransactionDetail `json:"transaction"`
}

// GetTransactionDetail returns the order transaction behind a balance transaction,
// including its fee breakdown.
func (s *Session) GetTransactionDetail(ctx context.Context, transactionID, orderID string) (*model.TransactionDetail, error) {
	ctx, span := otel.Tracer("settlr.platform").Start(ctx, "Fetching transaction detail")
	defer span.End()

	var out transactionDetailResponse
	path := fmt.Sprintf("%s/orders/%s/transactions/%s.json", s.apiPath, orderID, transactionID)
	if _, err := s.get(ctx, "get_transaction_detail", path, nil, &out); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrTransientFetch, fmt.Sprintf("failed to fetch transaction %s of order %s", transactionID, orderID), err)
	}
	return &out.Transaction, nil
}
