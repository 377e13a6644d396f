package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChargeKind origen del cargo pendiente.
type ChargeKind string

const (
	ChargeRelocation    ChargeKind = "relocation"     // traslado
	ChargeLostEquipment ChargeKind = "lost_equipment" // equipo no devuelto
	ChargeMisc          ChargeKind = "misc"
)

// Valid indica si el tipo pertenece al conjunto cerrado.
func (k ChargeKind) Valid() bool {
	switch k {
	case ChargeRelocation, ChargeLostEquipment, ChargeMisc:
		return true
	}
	return false
}

// PendingCharge cargo por facturar. Billed se marca en la misma transacción
// que crea la factura que lo consume.
type PendingCharge struct {
	ID              string
	CustomerID      string
	Kind            ChargeKind
	Description     string
	Amount          decimal.Decimal
	VATApplicable   bool
	VATRate         decimal.Decimal
	EffectiveDate   time.Time
	Billed          bool
	BilledInvoiceID string
	CreatedAt       time.Time
}
