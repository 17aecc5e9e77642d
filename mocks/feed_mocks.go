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

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/blnkfinance/settlr/model"
)

// MockFeed is a mock implementation of a platform feed session
type MockFeed struct {
	mock.Mock
}

func (m *MockFeed) ListPayouts(ctx context.Context, filter model.PayoutFilter, cursor string) (model.PayoutPage, error) {
	args := m.Called(ctx, filter, cursor)
	return args.Get(0).(model.PayoutPage), args.Error(1)
}

func (m *MockFeed) ListTransactions(ctx context.Context, payoutID string) ([]model.PlatformTransaction, error) {
	args := m.Called(ctx, payoutID)
	if txns, ok := args.Get(0).([]model.PlatformTransaction); ok {
		return txns, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockFeed) GetOrder(ctx context.Context, orderID string) (*model.PlatformOrder, error) {
	args := m.Called(ctx, orderID)
	if order, ok := args.Get(0).(*model.PlatformOrder); ok {
		return order, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockFeed) GetTransactionDetail(ctx context.Context, transactionID, orderID string) (*model.TransactionDetail, error) {
	args := m.Called(ctx, transactionID, orderID)
	if detail, ok := args.Get(0).(*model.TransactionDetail); ok {
		return detail, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockFeed) Close() error {
	args := m.Called()
	return args.Error(0)
}
