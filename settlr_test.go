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
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/blnkfinance/settlr/config"
	dbmocks "github.com/blnkfinance/settlr/database/mocks"
	"github.com/blnkfinance/settlr/internal/apierror"
	"github.com/blnkfinance/settlr/mocks"
	"github.com/blnkfinance/settlr/model"
)

var fixedNow = time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)

func testConfig() *config.Configuration {
	return &config.Configuration{
		ProjectName: "Settlr Test",
		Platform:    config.PlatformConfig{PayoutStatus: "paid"},
		Ledger: config.LedgerConfig{
			Company:       "Acme",
			PayoutAccount: "Platform Clearing - AC",
			FeeAccount:    "Platform Fees - AC",
			CostCenter:    "Main - AC",
		},
		AccountMapping: map[string]string{
			"payout":     "Bank - AC",
			"payout fee": "Bank Charges - AC",
			"charge fee": "Bank Charges - AC",
		},
		Sync: config.SyncConfig{LockTimeoutSeconds: 60, OrderCacheTTLSeconds: 60},
	}
}

func newDatasourceAndERP() (*dbmocks.MockDataSource, *mocks.MockERP) {
	return &dbmocks.MockDataSource{}, &mocks.MockERP{}
}

func newTestSettlr(t *testing.T) (*Settlr, *dbmocks.MockDataSource, *mocks.MockERP) {
	t.Helper()
	ds, erp := newDatasourceAndERP()
	s := NewSettlr(testConfig(), ds, erp, nil)
	s.now = func() time.Time { return fixedNow }
	return s, ds, erp
}

func notFound() error {
	return apierror.NewAPIError(apierror.ErrNotFound, "not found", nil)
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func int64Ptr(v int64) *int64 {
	return &v
}

func TestRunSync_ClosesSession(t *testing.T) {
	s, ds, _ := newTestSettlr(t)
	feed := &mocks.MockFeed{}
	s.SetFeedOpener(func(cfg *config.Configuration) (FeedSession, error) {
		return feed, nil
	})

	ds.On("GetLastSyncAt", mock.Anything, syncStateName).Return(nil, nil)
	feed.On("ListPayouts", mock.Anything, model.PayoutFilter{Status: model.PayoutPaid}, "").
		Return(model.PayoutPage{}, nil)
	ds.On("GetSubmittedPayoutIDs", mock.Anything, []string{}).Return(map[string]bool{}, nil)
	ds.On("SetLastSyncAt", mock.Anything, syncStateName, fixedNow).Return(nil)
	feed.On("Close").Return(nil)

	result, err := s.RunSync(context.Background(), model.PayoutFilter{})
	require.NoError(t, err)
	assert.Empty(t, result.Synced)
	feed.AssertCalled(t, "Close")
	ds.AssertExpectations(t)
}

func TestRunSubmit_OpenFailure(t *testing.T) {
	s, _, _ := newTestSettlr(t)
	s.SetFeedOpener(func(cfg *config.Configuration) (FeedSession, error) {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "missing credentials", nil)
	})

	_, err := s.RunSubmit(context.Background(), gofakeit.Numerify("####"))
	assert.True(t, apierror.IsCode(err, apierror.ErrInvalidInput))
}

func TestGetPayout_Delegates(t *testing.T) {
	s, ds, _ := newTestSettlr(t)
	ds.On("GetPayout", mock.Anything, "1001").Return(nil, notFound())
	ds.On("GetPayouts", mock.Anything, 20, 0).Return([]model.Payout{{PayoutID: "1002"}}, nil)

	_, err := s.GetPayout(context.Background(), "1001")
	assert.True(t, apierror.IsCode(err, apierror.ErrNotFound))

	payouts, err := s.GetPayouts(context.Background(), 20, 0)
	require.NoError(t, err)
	assert.Len(t, payouts, 1)
}
