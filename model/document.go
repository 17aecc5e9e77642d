package model

// DocumentType names an ERP document type.
type DocumentType string

const (
	DocTypeSalesOrder   DocumentType = "Sales Order"
	DocTypeSalesInvoice DocumentType = "Sales Invoice"
	DocTypeDeliveryNote DocumentType = "Delivery Note"
	DocTypeJournalEntry DocumentType = "Journal Entry"
	DocTypePayout       DocumentType = "Platform Payout"
)

// DocStatus is the ERP lifecycle flag of a document.
type DocStatus int

const (
	DocStatusDraft     DocStatus = 0
	DocStatusSubmitted DocStatus = 1
	DocStatusCancelled DocStatus = 2
)

// Invoice statuses that mark an invoice as already reversed.
const (
	InvoiceStatusReturn           = "Return"
	InvoiceStatusCreditNoteIssued = "Credit Note Issued"
)

// CancellationOrder is the order linked documents are unwound in: deliveries and
// invoices before the order they depend on.
var CancellationOrder = []DocumentType{DocTypeDeliveryNote, DocTypeSalesInvoice, DocTypeSalesOrder}

// Document is the subset of an ERP document the reconciliation reads.
type Document struct {
	DocType           DocumentType `json:"doctype"`
	Name              string       `json:"name"`
	DocStatus         DocStatus    `json:"docstatus"`
	Status            string       `json:"status"`
	Customer          string       `json:"customer,omitempty"`
	ReceivableAccount string       `json:"debit_to,omitempty"`
	Company           string       `json:"company,omitempty"`
}

// IsDraft reports whether the document is still editable.
func (d *Document) IsDraft() bool {
	return d.DocStatus == DocStatusDraft
}

// IsSubmitted reports whether the document has been submitted and is neither draft nor cancelled.
func (d *Document) IsSubmitted() bool {
	return d.DocStatus == DocStatusSubmitted
}

// IsReturned reports whether an invoice has already been reversed by a credit note.
func (d *Document) IsReturned() bool {
	return d.Status == InvoiceStatusReturn || d.Status == InvoiceStatusCreditNoteIssued
}

// Linkage is the set of ERP documents linked to one upstream order.
type Linkage struct {
	SalesOrder   string `json:"sales_order,omitempty"`
	SalesInvoice string `json:"sales_invoice,omitempty"`
	DeliveryNote string `json:"delivery_note,omitempty"`
}

// linkageFields maps each linkable document type to its field on a Transaction.
var linkageFields = map[DocumentType]func(t *Transaction) *string{
	DocTypeSalesOrder:   func(t *Transaction) *string { return &t.SalesOrder },
	DocTypeSalesInvoice: func(t *Transaction) *string { return &t.SalesInvoice },
	DocTypeDeliveryNote: func(t *Transaction) *string { return &t.DeliveryNote },
}

// Linked returns the name of the document of the given type linked to the transaction.
func (t *Transaction) Linked(docType DocumentType) string {
	field, ok := linkageFields[docType]
	if !ok {
		return ""
	}
	return *field(t)
}

// SetLinked links (or, with an empty name, unlinks) a document on the transaction.
func (t *Transaction) SetLinked(docType DocumentType, name string) {
	if field, ok := linkageFields[docType]; ok {
		*field(t) = name
	}
}

// ApplyLinkage copies a resolved linkage onto the transaction.
func (t *Transaction) ApplyLinkage(l Linkage) {
	t.SalesOrder = l.SalesOrder
	t.SalesInvoice = l.SalesInvoice
	t.DeliveryNote = l.DeliveryNote
}
