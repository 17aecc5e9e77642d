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

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/blnkfinance/settlr/internal/apierror"
	"github.com/blnkfinance/settlr/model"
)

// PropagateCancellations unwinds the documents linked to orders that were cancelled on the
// platform. For each such transaction the delivery note, the invoice and the sales order are
// cancelled in that order. Drafts are unlinked without being cancelled, and an invoice
// already reversed by a credit note keeps its link. Each attempt clears the corresponding link;
// a failed cancellation is logged and reported, and processing moves on to the next document.
//
// Parameters:
// - ctx context.Context: The context for the ERP calls.
// - txns []model.Transaction: The payout transactions; links are cleared in place.
// - orders map[string]*model.PlatformOrder: The current platform orders keyed by order id.
func (s *Settlr) PropagateCancellations(ctx context.Context, txns []model.Transaction, orders map[string]*model.PlatformOrder) {
	ctx, span := otel.Tracer("settlr.submit").Start(ctx, "Propagating cancellations")
	defer span.End()

	for i := range txns {
		t := &txns[i]
		if t.SourceOrderID == "" {
			continue
		}
		order := orders[t.SourceOrderID]
		if order == nil || !order.IsCancelled() {
			continue
		}

		for _, docType := range model.CancellationOrder {
			name := t.Linked(docType)
			if name == "" {
				continue
			}
			fields := logrus.Fields{"transaction_id": t.TransactionID, "order_id": t.SourceOrderID, "doctype": docType, "name": name}

			attempted, err := s.cancelLinkedDocument(ctx, docType, name)
			if err != nil {
				logrus.WithFields(fields).WithError(err).Error("failed to cancel linked document")
				s.notifier.NotifyError(err)
			}
			if attempted {
				t.SetLinked(docType, "")
			}
		}
	}
}

// cancelLinkedDocument cancels one document if it is in a cancelable state. It reports
// whether the link should be dropped: every link is dropped except that of a returned
// invoice, and of a document that could not be loaded.
func (s *Settlr) cancelLinkedDocument(ctx context.Context, docType model.DocumentType, name string) (bool, error) {
	doc, err := s.erp.GetDocument(ctx, docType, name)
	if err != nil {
		if apierror.IsCode(err, apierror.ErrNotFound) {
			return true, nil
		}
		return false, err
	}

	switch {
	case docType == model.DocTypeSalesInvoice && doc.IsReturned():
		return false, nil
	case doc.DocStatus == model.DocStatusCancelled:
		return true, nil
	case doc.IsDraft():
		// a draft has nothing to cancel but must not stay linked to a voided order
		logrus.WithFields(logrus.Fields{"doctype": docType, "name": name}).Info("unlinked draft document of cancelled order")
		return true, nil
	}

	err = s.erp.CancelDocument(ctx, docType, name, []model.DocumentType{model.DocTypePayout})
	if err != nil {
		return true, apierror.NewAPIError(apierror.ErrDocumentCancel, fmt.Sprintf("failed to cancel %s %s", docType, name), err)
	}
	logrus.WithFields(logrus.Fields{"doctype": docType, "name": name}).Info("cancelled linked document")
	return true, nil
}
