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
	"fmt"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/blnkfinance/settlr/config"
	"github.com/blnkfinance/settlr/internal/apierror"
	"github.com/blnkfinance/settlr/internal/request"
	"github.com/blnkfinance/settlr/model"
)

// OrderIDField is the custom field carrying the upstream order id on sales documents.
const OrderIDField = "platform_order_id"

const (
	methodCreateOrder    = "/api/method/settlr.api.create_sales_order"
	methodCreateInvoice  = "/api/method/settlr.api.create_sales_invoice"
	methodCreateDelivery = "/api/method/settlr.api.create_delivery_note"
	methodCreateReturn   = "/api/method/settlr.api.make_sales_return"
	methodCancel         = "/api/method/settlr.api.cancel_document"
)

// Client talks to the ERP's REST resource and method endpoints.
type Client struct {
	http    *request.Client
	company string
}

// NewClient builds an ERP client authenticated with the configured API key pair.
func NewClient(cfg *config.Configuration) *Client {
	headers := map[string]string{}
	if cfg.ERP.ApiKey != "" {
		headers["Authorization"] = fmt.Sprintf("token %s:%s", cfg.ERP.ApiKey, cfg.ERP.ApiSecret)
	}
	return &Client{
		http:    request.NewClient(cfg.ERP.Url, cfg.ERPTimeout(), headers),
		company: cfg.Ledger.Company,
	}
}

func resourcePath(docType model.DocumentType, name ...string) string {
	p := "/api/resource/" + url.PathEscape(string(docType))
	for _, n := range name {
		p += "/" + url.PathEscape(n)
	}
	return p
}

type dataEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type messageEnvelope struct {
	Message json.RawMessage `json:"message"`
}

func notFound(err error, docType model.DocumentType, name string) error {
	if request.StatusCode(err) == http.StatusNotFound {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("%s '%s' not found", docType, name), err)
	}
	return err
}

// LookupByOrderID returns the name of the live (not cancelled) document of docType
// carrying the upstream order id, or "" when there is none.
func (c *Client) LookupByOrderID(ctx context.Context, docType model.DocumentType, orderID string) (string, error) {
	ctx, span := otel.Tracer("settlr.erp").Start(ctx, "Looking up document by order id")
	defer span.End()

	filters, _ := json.Marshal([][]interface{}{
		{OrderIDField, "=", orderID},
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
	if _, err := c.http.Do(ctx, http.MethodGet, resourcePath(docType), query, nil, &out); err != nil {
		return "", errors.Wrapf(err, "looking up %s for order %s", docType, orderID)
	}
	if len(out.Data) == 0 {
		return "", nil
	}
	return out.Data[0].Name, nil
}

// GetDocument fetches the fields of a document the reconciliation needs.
func (c *Client) GetDocument(ctx context.Context, docType model.DocumentType, name string) (*model.Document, error) {
	ctx, span := otel.Tracer("settlr.erp").Start(ctx, "Fetching document")
	defer span.End()

	var out dataEnvelope
	if _, err := c.http.Do(ctx, http.MethodGet, resourcePath(docType, name), nil, nil, &out); err != nil {
		return nil, notFound(errors.Wrapf(err, "fetching %s %s", docType, name), docType, name)
	}

	doc := &model.Document{}
	if err := json.Unmarshal(out.Data, doc); err != nil {
		return nil, errors.Wrapf(err, "decoding %s %s", docType, name)
	}
	doc.DocType = docType
	return doc, nil
}

// callMethod invokes a whitelisted ERP method and decodes its message into out.
func (c *Client) callMethod(ctx context.Context, method string, payload, out interface{}) error {
	var env messageEnvelope
	if _, err := c.http.Do(ctx, http.MethodPost, method, nil, payload, &env); err != nil {
		return err
	}
	if out == nil || len(env.Message) == 0 || string(env.Message) == "null" {
		return nil
	}
	return json.Unmarshal(env.Message, out)
}

// CreateOrder asks the ERP to build a sales order from the upstream order payload.
// An empty name means the ERP declined to create one.
func (c *Client) CreateOrder(ctx context.Context, order *model.PlatformOrder) (string, error) {
	ctx, span := otel.Tracer("settlr.erp").Start(ctx, "Creating sales order")
	defer span.End()

	var name string
	err := c.callMethod(ctx, methodCreateOrder, map[string]interface{}{
		"order":   order.Raw,
		"company": c.company,
	}, &name)
	if err != nil {
		return "", errors.Wrapf(err, "creating sales order for order %s", order.OrderID())
	}
	return name, nil
}

// CreateInvoice asks the ERP to invoice salesOrder for the upstream order.
func (c *Client) CreateInvoice(ctx context.Context, order *model.PlatformOrder, salesOrder string) (string, error) {
	ctx, span := otel.Tracer("settlr.erp").Start(ctx, "Creating sales invoice")
	defer span.End()

	var name string
	err := c.callMethod(ctx, methodCreateInvoice, map[string]interface{}{
		"order":       order.Raw,
		"sales_order": salesOrder,
	}, &name)
	if err != nil {
		return "", errors.Wrapf(err, "creating sales invoice for %s", salesOrder)
	}
	return name, nil
}

// CreateDelivery asks the ERP to deliver salesOrder. One order may yield several notes.
func (c *Client) CreateDelivery(ctx context.Context, order *model.PlatformOrder, salesOrder string) ([]string, error) {
	ctx, span := otel.Tracer("settlr.erp").Start(ctx, "Creating delivery note")
	defer span.End()

	var names []string
	err := c.callMethod(ctx, methodCreateDelivery, map[string]interface{}{
		"order":       order.Raw,
		"sales_order": salesOrder,
	}, &names)
	if err != nil {
		return nil, errors.Wrapf(err, "creating delivery note for %s", salesOrder)
	}
	return names, nil
}

// CreateSalesReturn creates a draft return invoice against invoice and returns its name.
func (c *Client) CreateSalesReturn(ctx context.Context, orderID, financialStatus string, invoice *model.Document) (string, error) {
	ctx, span := otel.Tracer("settlr.erp").Start(ctx, "Creating sales return")
	defer span.End()

	var name string
	err := c.callMethod(ctx, methodCreateReturn, map[string]interface{}{
		"order_id":         orderID,
		"financial_status": financialStatus,
		"source_name":      invoice.Name,
	}, &name)
	if err != nil {
		return "", errors.Wrapf(err, "creating sales return against %s", invoice.Name)
	}
	if name == "" {
		return "", errors.Errorf("no sales return was created against %s", invoice.Name)
	}
	return name, nil
}

// CancelDocument cancels a submitted document. Links from ignoreLinks document types do
// not block the cancellation.
func (c *Client) CancelDocument(ctx context.Context, docType model.DocumentType, name string, ignoreLinks []model.DocumentType) error {
	ctx, span := otel.Tracer("settlr.erp").Start(ctx, "Cancelling document")
	defer span.End()

	err := c.callMethod(ctx, methodCancel, map[string]interface{}{
		"doctype":                docType,
		"name":                   name,
		"ignore_linked_doctypes": ignoreLinks,
	}, nil)
	if err != nil {
		return errors.Wrapf(err, "cancelling %s %s", docType, name)
	}
	return nil
}

// AddInvoiceCharges appends charge lines to a draft invoice and saves it.
func (c *Client) AddInvoiceCharges(ctx context.Context, invoice string, charges []model.TaxCharge) error {
	ctx, span := otel.Tracer("settlr.erp").Start(ctx, "Adding invoice charges")
	defer span.End()

	var current struct {
		Data struct {
			Taxes []json.RawMessage `json:"taxes"`
		} `json:"data"`
	}
	path := resourcePath(model.DocTypeSalesInvoice, invoice)
	if _, err := c.http.Do(ctx, http.MethodGet, path, nil, nil, &current); err != nil {
		return notFound(errors.Wrapf(err, "fetching charges of %s", invoice), model.DocTypeSalesInvoice, invoice)
	}

	taxes := make([]interface{}, 0, len(current.Data.Taxes)+len(charges))
	for _, t := range current.Data.Taxes {
		taxes = append(taxes, t)
	}
	for _, ch := range charges {
		taxes = append(taxes, ch)
	}

	if _, err := c.http.Do(ctx, http.MethodPut, path, nil, map[string]interface{}{"taxes": taxes}, nil); err != nil {
		return errors.Wrapf(err, "saving charges on %s", invoice)
	}
	return nil
}

// SubmitDocument moves a draft document to submitted.
func (c *Client) SubmitDocument(ctx context.Context, docType model.DocumentType, name string) error {
	ctx, span := otel.Tracer("settlr.erp").Start(ctx, "Submitting document")
	defer span.End()

	payload := map[string]interface{}{"docstatus": int(model.DocStatusSubmitted)}
	if _, err := c.http.Do(ctx, http.MethodPut, resourcePath(docType, name), nil, payload, nil); err != nil {
		return errors.Wrapf(err, "submitting %s %s", docType, name)
	}
	return nil
}

// GetAccount fetches an account with its classification.
func (c *Client) GetAccount(ctx context.Context, name string) (*model.Account, error) {
	ctx, span := otel.Tracer("settlr.erp").Start(ctx, "Fetching account")
	defer span.End()

	var out struct {
		Data model.Account `json:"data"`
	}
	if _, err := c.http.Do(ctx, http.MethodGet, resourcePath("Account", name), nil, nil, &out); err != nil {
		return nil, notFound(errors.Wrapf(err, "fetching account %s", name), "Account", name)
	}
	if out.Data.Name == "" {
		out.Data.Name = name
	}
	return &out.Data, nil
}
