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

package erp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/blnkfinance/settlr/model"
)

const erpDateFormat = "2006-01-02"

type journalEntryPayload struct {
	VoucherType string              `json:"voucher_type"`
	Company     string              `json:"company"`
	PostingDate string              `json:"posting_date"`
	ChequeNo    string              `json:"cheque_no"`
	ChequeDate  string              `json:"cheque_date"`
	UserRemark  string              `json:"user_remark,omitempty"`
	Accounts    []model.LedgerEntry `json:"accounts"`
}

// FindJournalEntry returns the live journal entry carrying chequeNo, or "" if none exists.
func (c *Client) FindJournalEntry(ctx context.Context, chequeNo string) (string, error) {
	ctx, span := otel.Tracer("settlr.erp").Start(ctx, "Finding journal entry")
	defer span.End()

	filters, _ := json.Marshal([][]interface{}{
		{"cheque_no", "=", chequeNo},
		{"docstatus", "<", int(model.DocStatusCancelled)},
	})
	query := url.Values{
		"filters":           {string(filters)},
		"fields":            {`["name"]`},
		"limit_page_length": {"1"},
	}

	var out struct {
		Data []struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	if _, err := c.http.Do(ctx, http.MethodGet, resourcePath(model.DocTypeJournalEntry), query, nil, &out); err != nil {
		return "", errors.Wrapf(err, "finding journal entry %s", chequeNo)
	}
	if len(out.Data) == 0 {
		return "", nil
	}
	return out.Data[0].Name, nil
}

// CreateJournalEntry saves je as a draft journal entry and returns its name.
func (c *Client) CreateJournalEntry(ctx context.Context, je *model.JournalEntry) (string, error) {
	ctx, span := otel.Tracer("settlr.erp").Start(ctx, "Creating journal entry")
	defer span.End()

	payload := journalEntryPayload{
		VoucherType: je.VoucherType,
		Company:     je.Company,
		PostingDate: je.PostingDate.Format(erpDateFormat),
		ChequeNo:    je.ChequeNo,
		ChequeDate:  je.ChequeDate.Format(erpDateFormat),
		UserRemark:  je.UserRemark,
		Accounts:    je.Accounts,
	}

	var out struct {
		Data struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	if _, err := c.http.Do(ctx, http.MethodPost, resourcePath(model.DocTypeJournalEntry), nil, payload, &out); err != nil {
		return "", errors.Wrapf(err, "creating journal entry %s", je.ChequeNo)
	}
	if out.Data.Name == "" {
		return "", errors.Errorf("journal entry %s was created without a name", je.ChequeNo)
	}
	return out.Data.Name, nil
}
