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

// ResolveOrCreate returns the sales order, invoice and delivery note linked to an upstream
// order, creating the missing ones from order. Each document is looked up by the order id
// immediately before it would be created, so repeated runs never duplicate documents.
// An invoice or delivery note is only created once a sales order exists. When order is
// nil only existing documents are looked up.
//
// Parameters:
// - ctx context.Context: The context for the lookups and creations.
// - orderID string: The upstream order id.
// - order *model.PlatformOrder: The full upstream order, or nil.
//
// Returns:
// - model.Linkage: Whatever subset of the three documents exists; empty names mean unlinked.
// - error: An error if an ERP lookup or creation fails.
func (s *Settlr) ResolveOrCreate(ctx context.Context, orderID string, order *model.PlatformOrder) (model.Linkage, error) {
	ctx, span := otel.Tracer("settlr.linkage").Start(ctx, "Resolving order linkage")
	defer span.End()

	var linkage model.Linkage
	var createOrder, createInvoice, createDelivery func() (string, error)
	if order != nil {
		createOrder = func() (string, error) {
			return s.erp.CreateOrder(ctx, order)
		}
	}

	salesOrder, err := s.ensureDocument(ctx, model.DocTypeSalesOrder, orderID, createOrder)
	if err != nil {
		return linkage, err
	}
	linkage.SalesOrder = salesOrder

	if order != nil && salesOrder != "" {
		createInvoice = func() (string, error) {
			return s.erp.CreateInvoice(ctx, order, salesOrder)
		}
		createDelivery = func() (string, error) {
			notes, err := s.erp.CreateDelivery(ctx, order, salesOrder)
			if err != nil || len(notes) == 0 {
				return "", err
			}
			return notes[0], nil
		}
	}

	if linkage.SalesInvoice, err = s.ensureDocument(ctx, model.DocTypeSalesInvoice, orderID, createInvoice); err != nil {
		return linkage, err
	}
	if linkage.DeliveryNote, err = s.ensureDocument(ctx, model.DocTypeDeliveryNote, orderID, createDelivery); err != nil {
		return linkage, err
	}

	return linkage, nil
}

// ensureDocument looks a document up by order id and, when it is missing and create is set,
// creates it.
func (s *Settlr) ensureDocument(ctx context.Context, docType model.DocumentType, orderID string, create func() (string, error)) (string, error) {
	name, err := s.erp.LookupByOrderID(ctx, docType, orderID)
	if err != nil {
		return "", err
	}
	if name != "" || create == nil {
		return name, nil
	}

	name, err = create()
	if err != nil {
		return "", err
	}
	if name != "" {
		logrus.WithFields(logrus.Fields{"order_id": orderID, "doctype": docType, "name": name}).Info("created missing document")
	}
	return name, nil
}
