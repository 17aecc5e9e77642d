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
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/blnkfinance/settlr/model"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Payout methods

func (m *MockDataSource) SavePayout(ctx context.Context, p *model.Payout) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockDataSource) GetPayout(ctx context.Context, payoutID string) (*model.Payout, error) {
	args := m.Called(ctx, payoutID)
	if p, ok := args.Get(0).(*model.Payout); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDataSource) GetPayouts(ctx context.Context, limit, offset int) ([]model.Payout, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]model.Payout), args.Error(1)
}

func (m *MockDataSource) UpdatePayoutTransactions(ctx context.Context, payoutID string, txns []model.Transaction) error {
	args := m.Called(ctx, payoutID, txns)
	return args.Error(0)
}

func (m *MockDataSource) MarkPayoutSubmitted(ctx context.Context, payoutID, journalEntry string, submittedAt time.Time) error {
	args := m.Called(ctx, payoutID, journalEntry, submittedAt)
	return args.Error(0)
}

func (m *MockDataSource) GetSubmittedPayoutIDs(ctx context.Context, payoutIDs []string) (map[string]bool, error) {
	args := m.Called(ctx, payoutIDs)
	if ids, ok := args.Get(0).(map[string]bool); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}

// Sync state methods

func (m *MockDataSource) GetLastSyncAt(ctx context.Context, name string) (*time.Time, error) {
	args := m.Called(ctx, name)
	if t, ok := args.Get(0).(*time.Time); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDataSource) SetLastSyncAt(ctx context.Context, name string, at time.Time) error {
	args := m.Called(ctx, name, at)
	return args.Error(0)
}
