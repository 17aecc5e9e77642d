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

// MockERP is a mock implementation of the ERP collaborator
type MockERP struct {
	mock.Mock
}

func (m *MockERP) LookupByOrderID(ctx context.Context, docType model.DocumentType, orderID string) (string, error) {
	args := m.Called(ctx, docType, orderID)
	return args.String(0), args.Error(1)
}

func (m *MockERP) GetDocument(ctx context.Context, docType model.DocumentType, name string) (*model.Document, error) {
	args := m.Called(ctx, docType, name)
	if doc, ok := args.Get(0).(*model.Document); ok {
		return doc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockERP) CreateOrder(ctx context.Context, order *model.PlatformOrder) (string, error) {
	args := m.Called(ctx, order)
	return args.String(0), args.Error(1)
}

func (m *MockERP) CreateInvoice(ctx context.Context, order *model.PlatformOrder, salesOrder string) (string, error) {
	args := m.Called(ctx, order, salesOrder)
	return args.String(0), args.Error(1)
}

func (m *MockERP) CreateDelivery(ctx context.Context, order *model.PlatformOrder, salesOrder string) ([]string, error) {
	args := m.Called(ctx, order, salesOrder)
	if notes, ok := args.Get(0).([]string); ok {
		return notes, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockERP) CreateSalesReturn(ctx context.Context, orderID, financialStatus string, invoice *model.Document) (string, error) {
	args := m.Called(ctx, orderID, financialStatus, invoice)
	return args.String(0), args.Error(1)
}

func (m *MockERP) CancelDocument(ctx context.Context, docType model.DocumentType, name string, ignoreLinks []model.DocumentType) error {
	args := m.Called(ctx, docType, name, ignoreLinks)
	return args.Error(0)
}

func (m *MockERP) AddInvoiceCharges(ctx context.Context, invoice string, charges []model.TaxCharge) error {
	args := m.Called(ctx, invoice, charges)
	return args.Error(0)
}

func (m *MockERP) SubmitDocument(ctx context.Context, docType model.DocumentType, name string) error {
	args := m.Called(ctx, docType, name)
	return args.Error(0)
}

func (m *MockERP) GetAccount(ctx context.Context, name string) (*model.Account, error) {
	args := m.Called(ctx, name)
	if acc, ok := args.Get(0).(*model.Account); ok {
		return acc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockERP) FindJournalEntry(ctx context.Context, chequeNo string) (string, error) {
	args := m.Called(ctx, chequeNo)
	return args.String(0), args.Error(1)
}

func (m *MockERP) CreateJournalEntry(ctx context.Context, je *model.JournalEntry) (string, error) {
	args := m.Called(ctx, je)
	return args.String(0), args.Error(1)
}
