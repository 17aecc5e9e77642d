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

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"github.com/blnkfinance/settlr/internal/apierror"
	"github.com/blnkfinance/settlr/model"
)

// Classify places an amount on the debit or credit side of an account. The side follows
// the account's root type and, for party accounts, is mirrored. The magnitude of the
// amount goes on the selected side and the other side is zero.
//
// Parameters:
// - amount decimal.Decimal: The signed amount.
// - account *model.Account: The account the amount is posted to.
//
// Returns:
// - debit decimal.Decimal: The debit side.
// - credit decimal.Decimal: The credit side.
func Classify(amount decimal.Decimal, account *model.Account) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero

	var positiveIsDebit bool
	switch account.RootType {
	case model.RootIncome:
		positiveIsDebit = false
	case model.RootExpense:
		positiveIsDebit = true
	case model.RootAsset:
		positiveIsDebit = !account.IsPartyAccount()
	default:
		// Liability and Equity
		positiveIsDebit = account.IsPartyAccount()
	}

	isDebit := positiveIsDebit == amount.IsPositive()
	if isDebit {
		debit = amount.Abs()
	} else {
		credit = amount.Abs()
	}
	return debit, credit
}

// resolveAccount maps a title to its configured ledger account, using fallback when the
// title is unmapped. It fails with ACCOUNT_RESOLUTION when neither is available.
func (s *Settlr) resolveAccount(title, fallback string) (string, error) {
	if account := s.config.AccountMapping[title]; account != "" {
		return account, nil
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", apierror.NewAPIError(apierror.ErrAccountResolution, fmt.Sprintf("no account mapped for '%s'", title), nil)
}

// entryCompiler builds ledger entries for one payout, loading each account once.
type entryCompiler struct {
	s        *Settlr
	accounts map[string]*model.Account
	entries  []model.LedgerEntry
}

func (c *entryCompiler) account(ctx context.Context, name string) (*model.Account, error) {
	if acc, ok := c.accounts[name]; ok {
		return acc, nil
	}
	acc, err := c.s.erp.GetAccount(ctx, name)
	if err != nil {
		return nil, err
	}
	c.accounts[name] = acc
	return acc, nil
}

// add classifies amount against account and appends the entry. Zero amounts add nothing.
func (c *entryCompiler) add(ctx context.Context, accountName string, amount decimal.Decimal, ref model.LedgerEntry) error {
	if amount.IsZero() {
		return nil
	}
	acc, err := c.account(ctx, accountName)
	if err != nil {
		return err
	}

	entry := ref
	entry.Account = accountName
	entry.Debit, entry.Credit = Classify(amount, acc)
	if err := entry.Validate(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, fmt.Sprintf("invalid ledger entry for %s", accountName), err)
	}
	c.entries = append(c.entries, entry)
	return nil
}

// CompileEntries builds the ledger entries of a payout. Payout lines are posted first
// against the cash side, then every invoice linked transaction is posted with a reference
// to its invoice and customer. An unresolvable account aborts the compilation.
//
// Parameters:
// - ctx context.Context: The context for the ERP lookups.
// - txns []model.Transaction: The payout transactions.
//
// Returns:
// - []model.LedgerEntry: The entries in posting order.
// - error: An ACCOUNT_RESOLUTION error, or an error loading an account or invoice.
func (s *Settlr) CompileEntries(ctx context.Context, txns []model.Transaction) ([]model.LedgerEntry, error) {
	ctx, span := otel.Tracer("settlr.ledger").Start(ctx, "Compiling ledger entries")
	defer span.End()

	c := &entryCompiler{s: s, accounts: make(map[string]*model.Account)}

	for i := range txns {
		t := &txns[i]
		if !t.IsPayout() {
			continue
		}
		ref := model.LedgerEntry{UserRemark: remark(t)}

		account, err := s.resolveAccount(string(t.TransactionType), s.config.Ledger.PayoutAccount)
		if err != nil {
			return nil, err
		}
		if err := c.add(ctx, account, t.TotalAmount, ref); err != nil {
			return nil, err
		}

		if t.Fee.IsPositive() {
			account, err := s.resolveAccount(feeTitle(t.TransactionType), s.config.Ledger.PayoutAccount)
			if err != nil {
				return nil, err
			}
			if err := c.add(ctx, account, t.Fee.Neg(), ref); err != nil {
				return nil, err
			}
		}
	}

	for _, group := range groupByInvoice(txns, false) {
		invoice, err := s.erp.GetDocument(ctx, model.DocTypeSalesInvoice, group.Invoice)
		if err != nil {
			return nil, err
		}
		shared := model.LedgerEntry{
			ReferenceType: model.DocTypeSalesInvoice,
			ReferenceName: group.Invoice,
			PartyType:     model.PartyTypeCustomer,
			Party:         invoice.Customer,
		}

		for _, t := range group.Transactions {
			ref := shared
			ref.UserRemark = remark(t)

			if !t.TotalAmount.IsZero() {
				account, err := s.resolveAccount(string(t.TransactionType), invoice.ReceivableAccount)
				if err != nil {
					return nil, err
				}
				if err := c.add(ctx, account, t.TotalAmount, ref); err != nil {
					return nil, err
				}
			}
			if !t.Fee.IsZero() {
				account, err := s.resolveAccount(feeTitle(t.TransactionType), invoice.ReceivableAccount)
				if err != nil {
					return nil, err
				}
				if err := c.add(ctx, account, t.Fee.Neg(), ref); err != nil {
					return nil, err
				}
			}
		}
	}

	return c.entries, nil
}

func remark(t *model.Transaction) string {
	return fmt.Sprintf("%s %s", t.TransactionType, t.TransactionID)
}
