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

	"github.com/blnkfinance/settlr/model"
)

// invoiceGroup is the set of transactions linked to one sales invoice.
type invoiceGroup struct {
	Invoice      string
	Transactions []*model.Transaction
}

// groupByInvoice groups the transactions linked to an invoice, keeping the order in which
// invoices first appear. Payout lines are never grouped; when requireOrder is set,
// transactions without a source order are ignored too.
func groupByInvoice(txns []model.Transaction, requireOrder bool) []invoiceGroup {
	var groups []invoiceGroup
	index := make(map[string]int)
	for i := range txns {
		t := &txns[i]
		if t.IsPayout() || t.SalesInvoice == "" {
			continue
		}
		if requireOrder && t.SourceOrderID == "" {
			continue
		}
		pos, ok := index[t.SalesInvoice]
		if !ok {
			pos = len(groups)
			index[t.SalesInvoice] = pos
			groups = append(groups, invoiceGroup{Invoice: t.SalesInvoice})
		}
		groups[pos].Transactions = append(groups[pos].Transactions, t)
	}
	return groups
}

// GenerateReturns creates and submits a return invoice for every invoice whose order was
// refunded on the platform. A draft invoice is submitted first so it can be reversed and is
// no longer open for fee posting. Invoices already reversed are skipped, so running it again
// creates nothing new. Failures are logged per invoice.
//
// Parameters:
// - ctx context.Context: The context for the ERP calls.
// - txns []model.Transaction: The payout transactions.
//
// Returns:
// - []string: The names of the return invoices created.
func (s *Settlr) GenerateReturns(ctx context.Context, txns []model.Transaction) []string {
	ctx, span := otel.Tracer("settlr.submit").Start(ctx, "Generating sales returns")
	defer span.End()

	created := []string{}
	for _, group := range groupByInvoice(txns, true) {
		first := group.Transactions[0]
		if !first.IsRefunded() {
			continue
		}
		fields := logrus.Fields{"invoice": group.Invoice, "order_id": first.SourceOrderID, "financial_status": first.SourceOrderFinancialStatus}

		invoice, err := s.erp.GetDocument(ctx, model.DocTypeSalesInvoice, group.Invoice)
		if err != nil {
			logrus.WithFields(fields).WithError(err).Error("failed to load invoice for return")
			continue
		}
		switch {
		case invoice.IsReturned():
			logrus.WithFields(fields).Info("invoice already returned, skipping")
			continue
		case invoice.DocStatus == model.DocStatusCancelled:
			logrus.WithFields(fields).Info("invoice cancelled, skipping return")
			continue
		case invoice.IsDraft():
			// a return can only reverse a submitted invoice
			if invoice, err = s.submitForReturn(ctx, group.Invoice); err != nil {
				logrus.WithFields(fields).WithError(err).Error("failed to submit draft invoice for return")
				continue
			}
		}

		name, err := s.erp.CreateSalesReturn(ctx, first.SourceOrderID, first.SourceOrderFinancialStatus, invoice)
		if err != nil {
			logrus.WithFields(fields).WithError(err).Error("failed to create sales return")
			continue
		}
		if err := s.erp.SubmitDocument(ctx, model.DocTypeSalesInvoice, name); err != nil {
			logrus.WithFields(fields).WithField("return", name).WithError(err).Error("failed to submit sales return")
			continue
		}

		logrus.WithFields(fields).WithField("return", name).Info("created sales return")
		created = append(created, name)
	}
	return created
}

// submitForReturn submits a draft invoice and reloads it in its submitted state.
func (s *Settlr) submitForReturn(ctx context.Context, name string) (*model.Document, error) {
	if err := s.erp.SubmitDocument(ctx, model.DocTypeSalesInvoice, name); err != nil {
		return nil, err
	}
	invoice, err := s.erp.GetDocument(ctx, model.DocTypeSalesInvoice, name)
	if err != nil {
		return nil, err
	}
	if !invoice.IsSubmitted() {
		return nil, fmt.Errorf("invoice %s is still not submitted", name)
	}
	return invoice, nil
}
