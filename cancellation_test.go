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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/blnkfinance/settlr/model"
)

func linkedTransaction() model.Transaction {
	return model.Transaction{
		TransactionID:   "2",
		TransactionType: model.TransactionCharge,
		TotalAmount:     dec("50"),
		SourceOrderID:   "9001",
		SalesOrder:      "SO-0001",
		SalesInvoice:    "SINV-0001",
		DeliveryNote:    "DN-0001",
	}
}

func cancelledOrders() map[string]*model.PlatformOrder {
	cancelledAt := time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)
	return map[string]*model.PlatformOrder{"9001": {ID: 9001, CancelledAt: &cancelledAt}}
}

func submittedDoc(docType model.DocumentType, name, status string) *model.Document {
	return &model.Document{DocType: docType, Name: name, DocStatus: model.DocStatusSubmitted, Status: status}
}

var ignorePayoutLinks = []model.DocumentType{model.DocTypePayout}

func TestPropagateCancellations_OrderAndFailureIsolation(t *testing.T) {
	s, _, erp := newTestSettlr(t)
	txns := []model.Transaction{linkedTransaction()}

	var cancelled []model.DocumentType
	record := func(args mock.Arguments) { cancelled = append(cancelled, args.Get(1).(model.DocumentType)) }

	erp.On("GetDocument", mock.Anything, model.DocTypeDeliveryNote, "DN-0001").Return(submittedDoc(model.DocTypeDeliveryNote, "DN-0001", "Completed"), nil)
	erp.On("GetDocument", mock.Anything, model.DocTypeSalesInvoice, "SINV-0001").Return(submittedDoc(model.DocTypeSalesInvoice, "SINV-0001", "Paid"), nil)
	erp.On("GetDocument", mock.Anything, model.DocTypeSalesOrder, "SO-0001").Return(submittedDoc(model.DocTypeSalesOrder, "SO-0001", "Completed"), nil)
	erp.On("CancelDocument", mock.Anything, model.DocTypeDeliveryNote, "DN-0001", ignorePayoutLinks).Run(record).Return(errors.New("linked documents exist"))
	erp.On("CancelDocument", mock.Anything, model.DocTypeSalesInvoice, "SINV-0001", ignorePayoutLinks).Run(record).Return(nil)
	erp.On("CancelDocument", mock.Anything, model.DocTypeSalesOrder, "SO-0001", ignorePayoutLinks).Run(record).Return(nil)

	s.PropagateCancellations(context.Background(), txns, cancelledOrders())

	assert.Equal(t, []model.DocumentType{model.DocTypeDeliveryNote, model.DocTypeSalesInvoice, model.DocTypeSalesOrder}, cancelled)
	assert.Empty(t, txns[0].DeliveryNote)
	assert.Empty(t, txns[0].SalesInvoice)
	assert.Empty(t, txns[0].SalesOrder)
}

func TestPropagateCancellations_SkipsReturnedInvoice(t *testing.T) {
	s, _, erp := newTestSettlr(t)
	txns := []model.Transaction{linkedTransaction()}

	erp.On("GetDocument", mock.Anything, model.DocTypeDeliveryNote, "DN-0001").Return(submittedDoc(model.DocTypeDeliveryNote, "DN-0001", "Completed"), nil)
	erp.On("GetDocument", mock.Anything, model.DocTypeSalesInvoice, "SINV-0001").Return(submittedDoc(model.DocTypeSalesInvoice, "SINV-0001", model.InvoiceStatusReturn), nil)
	erp.On("GetDocument", mock.Anything, model.DocTypeSalesOrder, "SO-0001").Return(submittedDoc(model.DocTypeSalesOrder, "SO-0001", "Completed"), nil)
	erp.On("CancelDocument", mock.Anything, model.DocTypeDeliveryNote, "DN-0001", ignorePayoutLinks).Return(nil)
	erp.On("CancelDocument", mock.Anything, model.DocTypeSalesOrder, "SO-0001", ignorePayoutLinks).Return(nil)

	s.PropagateCancellations(context.Background(), txns, cancelledOrders())

	erp.AssertNotCalled(t, "CancelDocument", mock.Anything, model.DocTypeSalesInvoice, mock.Anything, mock.Anything)
	assert.Equal(t, "SINV-0001", txns[0].SalesInvoice)
	assert.Empty(t, txns[0].DeliveryNote)
	assert.Empty(t, txns[0].SalesOrder)
}

func TestPropagateCancellations_UnlinksDraftsAndSkipsActiveOrders(t *testing.T) {
	s, _, erp := newTestSettlr(t)
	active := linkedTransaction()
	active.SourceOrderID = "9002"
	drafts := linkedTransaction()
	txns := []model.Transaction{active, drafts}
	orders := cancelledOrders()
	orders["9002"] = &model.PlatformOrder{ID: 9002}

	draft := func(docType model.DocumentType, name string) *model.Document {
		return &model.Document{DocType: docType, Name: name, DocStatus: model.DocStatusDraft}
	}
	erp.On("GetDocument", mock.Anything, model.DocTypeDeliveryNote, "DN-0001").Return(draft(model.DocTypeDeliveryNote, "DN-0001"), nil)
	erp.On("GetDocument", mock.Anything, model.DocTypeSalesInvoice, "SINV-0001").Return(draft(model.DocTypeSalesInvoice, "SINV-0001"), nil)
	erp.On("GetDocument", mock.Anything, model.DocTypeSalesOrder, "SO-0001").
		Return(&model.Document{DocType: model.DocTypeSalesOrder, Name: "SO-0001", DocStatus: model.DocStatusCancelled}, nil)

	s.PropagateCancellations(context.Background(), txns, orders)

	erp.AssertNotCalled(t, "CancelDocument", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, "SO-0001", txns[0].SalesOrder)
	assert.Equal(t, "SINV-0001", txns[0].SalesInvoice)
	assert.Empty(t, txns[1].DeliveryNote)
	assert.Empty(t, txns[1].SalesInvoice)
	assert.Empty(t, txns[1].SalesOrder)
}

func TestPropagateCancellations_DraftInvoiceIsNotFeePosted(t *testing.T) {
	s, _, erp := newTestSettlr(t)
	txn := linkedTransaction()
	txn.DeliveryNote = ""
	txn.Fee = dec("1.50")
	txns := []model.Transaction{txn}

	erp.On("GetDocument", mock.Anything, model.DocTypeSalesInvoice, "SINV-0001").
		Return(&model.Document{DocType: model.DocTypeSalesInvoice, Name: "SINV-0001", DocStatus: model.DocStatusDraft}, nil)
	erp.On("GetDocument", mock.Anything, model.DocTypeSalesOrder, "SO-0001").Return(submittedDoc(model.DocTypeSalesOrder, "SO-0001", "To Bill"), nil)
	erp.On("CancelDocument", mock.Anything, model.DocTypeSalesOrder, "SO-0001", ignorePayoutLinks).Return(nil)

	s.PropagateCancellations(context.Background(), txns, cancelledOrders())
	posted := s.PostFees(context.Background(), txns)

	assert.Empty(t, txns[0].SalesInvoice)
	assert.Empty(t, txns[0].SalesOrder)
	assert.Empty(t, posted)
	erp.AssertNotCalled(t, "CancelDocument", mock.Anything, model.DocTypeSalesInvoice, mock.Anything, mock.Anything)
	erp.AssertNotCalled(t, "AddInvoiceCharges", mock.Anything, mock.Anything, mock.Anything)
	erp.AssertNotCalled(t, "SubmitDocument", mock.Anything, mock.Anything, mock.Anything)
}
