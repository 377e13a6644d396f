package entity

import "github.com/shopspring/decimal"

// ConceptType tipo de concepto facturado.
type ConceptType string

const (
	ConceptService         ConceptType = "service"
	ConceptInstallation    ConceptType = "installation"
	ConceptPreviousBalance ConceptType = "previous_balance"
	ConceptInterest        ConceptType = "interest"
	ConceptMisc            ConceptType = "misc"
	ConceptReconnection    ConceptType = "reconnection"
	ConceptDiscount        ConceptType = "discount"
)

// Valid indica si el tipo pertenece al conjunto cerrado.
func (t ConceptType) Valid() bool {
	switch t {
	case ConceptService, ConceptInstallation, ConceptPreviousBalance, ConceptInterest,
		ConceptMisc, ConceptReconnection, ConceptDiscount:
		return true
	}
	return false
}

// InvoiceLine concepto de la factura. Inmutable una vez creado.
type InvoiceLine struct {
	ID              string
	InvoiceID       string
	Position        int
	Type            ConceptType
	Description     string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	Value           decimal.Decimal
	VATApplicable   bool
	VATRate         decimal.Decimal
	VATValue        decimal.Decimal
	PendingChargeID string // cargo pendiente consumido, vacío si no aplica
}
