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
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blnkfinance/settlr/config"
	"github.com/blnkfinance/settlr/internal/apierror"
	"github.com/blnkfinance/settlr/model"
)

const erpURL = "https://erp.example.com"

func newTestClient() *Client {
	return NewClient(&config.Configuration{
		ERP:    config.ERPConfig{Url: erpURL, ApiKey: "key", ApiSecret: "secret", TimeoutSeconds: 2},
		Ledger: config.LedgerConfig{Company: "Acme"},
	})
}

func decodeBody(t *testing.T, req *http.Request) map[string]interface{} {
	raw, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestLookupByOrderID(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", `=~^`+erpURL+`/api/resource/Sales%20Order\?`,
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "token key:secret", req.Header.Get("Authorization"))
			assert.Contains(t, req.URL.Query().Get("filters"), `"platform_order_id","=","42"`)
			return httpmock.NewStringResponse(http.StatusOK, `{"data":[{"name":"SO-0001"}]}`), nil
		})
	httpmock.RegisterResponder("GET", `=~^`+erpURL+`/api/resource/Delivery%20Note\?`,
		httpmock.NewStringResponder(http.StatusOK, `{"data":[]}`))

	c := newTestClient()
	name, err := c.LookupByOrderID(context.Background(), model.DocTypeSalesOrder, "42")
	require.NoError(t, err)
	assert.Equal(t, "SO-0001", name)

	name, err = c.LookupByOrderID(context.Background(), model.DocTypeDeliveryNote, "42")
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestGetDocument(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", erpURL+"/api/resource/Sales%20Invoice/SINV-0001",
		httpmock.NewStringResponder(http.StatusOK, `{"data":{"name":"SINV-0001","docstatus":1,"status":"Return","customer":"Jane Doe","debit_to":"Debtors - A"}}`))
	httpmock.RegisterResponder("GET", erpURL+"/api/resource/Sales%20Invoice/SINV-404",
		httpmock.NewStringResponder(http.StatusNotFound, `{"exc_type":"DoesNotExistError"}`))

	c := newTestClient()
	doc, err := c.GetDocument(context.Background(), model.DocTypeSalesInvoice, "SINV-0001")
	require.NoError(t, err)
	assert.Equal(t, model.DocTypeSalesInvoice, doc.DocType)
	assert.True(t, doc.IsSubmitted())
	assert.True(t, doc.IsReturned())
	assert.Equal(t, "Debtors - A", doc.ReceivableAccount)

	_, err = c.GetDocument(context.Background(), model.DocTypeSalesInvoice, "SINV-404")
	assert.True(t, apierror.IsCode(err, apierror.ErrNotFound))
}

func TestCreateOrderInvoiceDelivery(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", erpURL+methodCreateOrder,
		func(req *http.Request) (*http.Response, error) {
			body := decodeBody(t, req)
			assert.Equal(t, "Acme", body["company"])
			assert.Equal(t, float64(42), body["order"].(map[string]interface{})["id"])
			return httpmock.NewStringResponse(http.StatusOK, `{"message":"SO-0001"}`), nil
		})
	httpmock.RegisterResponder("POST", erpURL+methodCreateInvoice,
		httpmock.NewStringResponder(http.StatusOK, `{"message":null}`))
	httpmock.RegisterResponder("POST", erpURL+methodCreateDelivery,
		httpmock.NewStringResponder(http.StatusOK, `{"message":["DN-0001","DN-0002"]}`))

	c := newTestClient()
	order := &model.PlatformOrder{ID: 42, Raw: json.RawMessage(`{"id":42}`)}

	so, err := c.CreateOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, "SO-0001", so)

	inv, err := c.CreateInvoice(context.Background(), order, so)
	require.NoError(t, err)
	assert.Empty(t, inv)

	notes, err := c.CreateDelivery(context.Background(), order, so)
	require.NoError(t, err)
	assert.Equal(t, []string{"DN-0001", "DN-0002"}, notes)
}

func TestCreateSalesReturn(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", erpURL+methodCreateReturn,
		func(req *http.Request) (*http.Response, error) {
			body := decodeBody(t, req)
			assert.Equal(t, "SINV-0001", body["source_name"])
			assert.Equal(t, "refunded", body["financial_status"])
			return httpmock.NewStringResponse(http.StatusOK, `{"message":"SINV-RET-0001"}`), nil
		})

	name, err := newTestClient().CreateSalesReturn(context.Background(), "42", "refunded", &model.Document{Name: "SINV-0001"})
	require.NoError(t, err)
	assert.Equal(t, "SINV-RET-0001", name)
}

func TestCancelDocument(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	calls := 0
	httpmock.RegisterResponder("POST", erpURL+methodCancel,
		func(req *http.Request) (*http.Response, error) {
			calls++
			body := decodeBody(t, req)
			assert.Equal(t, []interface{}{"Platform Payout"}, body["ignore_linked_doctypes"])
			if body["name"] == "DN-0001" {
				return httpmock.NewStringResponse(http.StatusConflict, `{"exc_type":"LinkExistsError"}`), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, `{"message":null}`), nil
		})

	c := newTestClient()
	ignore := []model.DocumentType{model.DocTypePayout}
	assert.Error(t, c.CancelDocument(context.Background(), model.DocTypeDeliveryNote, "DN-0001", ignore))
	assert.NoError(t, c.CancelDocument(context.Background(), model.DocTypeSalesInvoice, "SINV-0001", ignore))
	assert.Equal(t, 2, calls)
}

func TestAddInvoiceChargesAndSubmit(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	path := erpURL + "/api/resource/Sales%20Invoice/SINV-0001"
	httpmock.RegisterResponder("GET", path,
		httpmock.NewStringResponder(http.StatusOK, `{"data":{"name":"SINV-0001","taxes":[{"charge_type":"On Net Total","account_head":"VAT - A"}]}}`))

	var saved []interface{}
	var submitted bool
	httpmock.RegisterResponder("PUT", path,
		func(req *http.Request) (*http.Response, error) {
			body := decodeBody(t, req)
			if taxes, ok := body["taxes"]; ok {
				saved = taxes.([]interface{})
			}
			if body["docstatus"] == float64(1) {
				submitted = true
			}
			return httpmock.NewStringResponse(http.StatusOK, `{"data":{}}`), nil
		})

	c := newTestClient()
	err := c.AddInvoiceCharges(context.Background(), "SINV-0001", []model.TaxCharge{{
		ChargeType:  model.ChargeTypeActual,
		AccountHead: "Platform Fees - A",
		Description: "charge",
		TaxAmount:   decimal.RequireFromString("2.90"),
	}})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "Platform Fees - A", saved[1].(map[string]interface{})["account_head"])

	require.NoError(t, c.SubmitDocument(context.Background(), model.DocTypeSalesInvoice, "SINV-0001"))
	assert.True(t, submitted)
}

func TestGetAccount(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", erpURL+"/api/resource/Account/Debtors%20-%20A",
		httpmock.NewStringResponder(http.StatusOK, `{"data":{"name":"Debtors - A","root_type":"Asset","account_type":"Receivable"}}`))

	acc, err := newTestClient().GetAccount(context.Background(), "Debtors - A")
	require.NoError(t, err)
	assert.Equal(t, model.RootAsset, acc.RootType)
	assert.True(t, acc.IsPartyAccount())
}

func TestJournalEntry(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", `=~^`+erpURL+`/api/resource/Journal%20Entry\?`,
		httpmock.NewStringResponder(http.StatusOK, `{"data":[]}`))
	httpmock.RegisterResponder("POST", erpURL+"/api/resource/Journal%20Entry",
		func(req *http.Request) (*http.Response, error) {
			body := decodeBody(t, req)
			assert.Equal(t, "2024-03-02", body["posting_date"])
			assert.Equal(t, "1001", body["cheque_no"])
			assert.Len(t, body["accounts"], 2)
			return httpmock.NewStringResponse(http.StatusOK, `{"data":{"name":"ACC-JV-0001"}}`), nil
		})

	c := newTestClient()
	existing, err := c.FindJournalEntry(context.Background(), "1001")
	require.NoError(t, err)
	assert.Empty(t, existing)

	day := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	name, err := c.CreateJournalEntry(context.Background(), &model.JournalEntry{
		VoucherType: "Bank Entry",
		Company:     "Acme",
		PostingDate: day,
		ChequeNo:    "1001",
		ChequeDate:  day,
		Accounts: []model.LedgerEntry{
			{Account: "Bank - A", Debit: decimal.NewFromInt(100)},
			{Account: "Fees - A", Credit: decimal.NewFromInt(5)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "ACC-JV-0001", name)
}
