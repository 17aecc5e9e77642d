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

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/blnkfinance/settlr/model"
)

// feeTitle is the account mapping title for the fees of a transaction type.
func feeTitle(txnType model.TransactionType) string {
	return string(txnType) + " fee"
}

// feeAccount resolves the account charged with the fees of a transaction type, falling
// back to the configured fee account.
func (s *Settlr) feeAccount(txnType model.TransactionType) (string, error) {
	return s.resolveAccount(feeTitle(txnType), s.config.Ledger.FeeAccount)
}

// PostFees appends one charge line per fee bearing transaction to every draft invoice of the
// payout, then submits the invoice. Invoices that are already submitted or cancelled are left
// alone. An invoice whose fee account cannot be resolved is skipped and stays in draft.
//
// Parameters:
// - ctx context.Context: The context for the ERP calls.
// - txns []model.Transaction: The payout transactions.
//
// Returns:
// - []string: The names of the invoices that were submitted.
func (s *Settlr) PostFees(ctx context.Context, txns []model.Transaction) []string {
	ctx, span := otel.Tracer("settlr.submit").Start(ctx, "Posting invoice fees")
	defer span.End()

	submitted := []string{}
	for _, group := range groupByInvoice(txns, false) {
		fields := logrus.Fields{"invoice": group.Invoice}

		invoice, err := s.erp.GetDocument(ctx, model.DocTypeSalesInvoice, group.Invoice)
		if err != nil {
			logrus.WithFields(fields).WithError(err).Error("failed to load invoice for fee posting")
			continue
		}
		if !invoice.IsDraft() {
			continue
		}

		charges, err := s.feeCharges(group.Transactions)
		if err != nil {
			logrus.WithFields(fields).WithError(err).Error("failed to resolve fee account, leaving invoice in draft")
			continue
		}

		if len(charges) > 0 {
			if err := s.erp.AddInvoiceCharges(ctx, group.Invoice, charges); err != nil {
				logrus.WithFields(fields).WithError(err).Error("failed to add fee charges")
				continue
			}
		}
		if err := s.erp.SubmitDocument(ctx, model.DocTypeSalesInvoice, group.Invoice); err != nil {
			logrus.WithFields(fields).WithError(err).Error("failed to submit invoice")
			continue
		}
		submitted = append(submitted, group.Invoice)
	}
	return submitted
}

func (s *Settlr) feeCharges(txns []*model.Transaction) ([]model.TaxCharge, error) {
	var charges []model.TaxCharge
	for _, t := range txns {
		if t.Fee.IsZero() {
			continue
		}
		account, err := s.feeAccount(t.TransactionType)
		if err != nil {
			return nil, err
		}
		charges = append(charges, model.TaxCharge{
			ChargeType:  model.ChargeTypeActual,
			AccountHead: account,
			Description: string(t.TransactionType),
			TaxAmount:   t.Fee,
			CostCenter:  s.config.Ledger.CostCenter,
		})
	}
	return charges, nil
}
