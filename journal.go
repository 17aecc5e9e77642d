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

const voucherTypeBankEntry = "Bank Entry"

// PostJournal posts the compiled entries of a payout as one journal entry and submits it.
// The payout id is recorded as the cheque number, and an existing journal entry with that
// number is reused instead of posting a second one. An empty entry list posts nothing.
//
// Parameters:
// - ctx context.Context: The context for the ERP calls.
// - payout *model.Payout: The payout being submitted.
// - entries []model.LedgerEntry: The compiled entries.
//
// Returns:
// - string: The journal entry name, or "" when nothing was posted.
// - error: An error if the journal entry could not be created or submitted.
func (s *Settlr) PostJournal(ctx context.Context, payout *model.Payout, entries []model.LedgerEntry) (string, error) {
	ctx, span := otel.Tracer("settlr.ledger").Start(ctx, "Posting payout journal")
	defer span.End()

	if len(entries) == 0 {
		logrus.WithField("payout_id", payout.PayoutID).Info("no ledger entries to post")
		return "", nil
	}

	name, err := s.erp.FindJournalEntry(ctx, payout.PayoutID)
	if err != nil {
		return "", err
	}

	if name != "" {
		doc, err := s.erp.GetDocument(ctx, model.DocTypeJournalEntry, name)
		if err != nil {
			return "", err
		}
		if doc.IsDraft() {
			if err := s.erp.SubmitDocument(ctx, model.DocTypeJournalEntry, name); err != nil {
				return "", err
			}
		}
		logrus.WithFields(logrus.Fields{"payout_id": payout.PayoutID, "journal_entry": name}).Info("reusing existing journal entry")
		return name, nil
	}

	je := &model.JournalEntry{
		VoucherType: voucherTypeBankEntry,
		Company:     s.config.Ledger.Company,
		PostingDate: s.now(),
		ChequeNo:    payout.PayoutID,
		ChequeDate:  payout.PayoutDate,
		UserRemark:  fmt.Sprintf("Platform payout %s of %s %s", payout.PayoutID, payout.Amount.StringFixed(2), payout.Currency),
		Accounts:    entries,
	}
	name, err = s.erp.CreateJournalEntry(ctx, je)
	if err != nil {
		return "", err
	}
	if err := s.erp.SubmitDocument(ctx, model.DocTypeJournalEntry, name); err != nil {
		return "", err
	}

	debit, credit := je.Totals()
	logrus.WithFields(logrus.Fields{
		"payout_id":     payout.PayoutID,
		"journal_entry": name,
		"debit":         debit.String(),
		"credit":        credit.String(),
	}).Info("posted payout journal")
	return name, nil
}
