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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/blnkfinance/settlr/internal/apierror"
	"github.com/blnkfinance/settlr/model"
)

func TestResolveOrCreate_CreatesMissingDocumentsInOrder(t *testing.T) {
	s, _, erp := newTestSettlr(t)
	order := &model.PlatformOrder{ID: 9001, Name: "#1001"}

	var created []model.DocumentType
	erp.On("LookupByOrderID", mock.Anything, mock.Anything, "9001").Return("", nil)
	erp.On("CreateOrder", mock.Anything, order).
		Run(func(mock.Arguments) { created = append(created, model.DocTypeSalesOrder) }).
		Return("SO-0001", nil)
	erp.On("CreateInvoice", mock.Anything, order, "SO-0001").
		Run(func(mock.Arguments) { created = append(created, model.DocTypeSalesInvoice) }).
		Return("SINV-0001", nil)
	erp.On("CreateDelivery", mock.Anything, order, "SO-0001").
		Run(func(mock.Arguments) { created = append(created, model.DocTypeDeliveryNote) }).
		Return([]string{"DN-0001", "DN-0002"}, nil)

	linkage, err := s.ResolveOrCreate(context.Background(), "9001", order)
	require.NoError(t, err)
	assert.Equal(t, model.Linkage{SalesOrder: "SO-0001", SalesInvoice: "SINV-0001", DeliveryNote: "DN-0001"}, linkage)
	assert.Equal(t, []model.DocumentType{model.DocTypeSalesOrder, model.DocTypeSalesInvoice, model.DocTypeDeliveryNote}, created)
}

func TestResolveOrCreate_NoChildrenWithoutSalesOrder(t *testing.T) {
	s, _, erp := newTestSettlr(t)
	order := &model.PlatformOrder{ID: 9001}

	erp.On("LookupByOrderID", mock.Anything, mock.Anything, "9001").Return("", nil)
	erp.On("CreateOrder", mock.Anything, order).Return("", nil)

	linkage, err := s.ResolveOrCreate(context.Background(), "9001", order)
	require.NoError(t, err)
	assert.Equal(t, model.Linkage{}, linkage)
	erp.AssertNotCalled(t, "CreateInvoice", mock.Anything, mock.Anything, mock.Anything)
	erp.AssertNotCalled(t, "CreateDelivery", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveOrCreate_LookupOnlyWithoutOrder(t *testing.T) {
	s, _, erp := newTestSettlr(t)

	erp.On("LookupByOrderID", mock.Anything, model.DocTypeSalesOrder, "9001").Return("SO-0001", nil)
	erp.On("LookupByOrderID", mock.Anything, model.DocTypeSalesInvoice, "9001").Return("", nil)
	erp.On("LookupByOrderID", mock.Anything, model.DocTypeDeliveryNote, "9001").Return("", nil)

	linkage, err := s.ResolveOrCreate(context.Background(), "9001", nil)
	require.NoError(t, err)
	assert.Equal(t, model.Linkage{SalesOrder: "SO-0001"}, linkage)
	erp.AssertNotCalled(t, "CreateInvoice", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveOrCreate_LookupError(t *testing.T) {
	s, _, erp := newTestSettlr(t)

	erp.On("LookupByOrderID", mock.Anything, model.DocTypeSalesOrder, "9001").
		Return("", apierror.NewAPIError(apierror.ErrTransientFetch, "erp unavailable", nil))

	_, err := s.ResolveOrCreate(context.Background(), "9001", &model.PlatformOrder{ID: 9001})
	assert.True(t, apierror.IsCode(err, apierror.ErrTransientFetch))
	erp.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}
