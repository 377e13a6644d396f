package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus estado de la factura. Esta capa solo crea facturas en pending y
// promueve pending → overdue; pagos y anulaciones los hacen otros módulos.
type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "pending"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
	InvoiceVoid    InvoiceStatus = "void"
)

// Valid indica si el estado pertenece al conjunto cerrado.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoicePending, InvoicePaid, InvoiceOverdue, InvoiceVoid:
		return true
	}
	return false
}

// IsUnpaid true para pending y overdue.
func (s InvoiceStatus) IsUnpaid() bool {
	return s == InvoicePending || s == InvoiceOverdue
}

// Invoice cabecera de la factura mensual del suscriptor.
type Invoice struct {
	ID          string
	Number      int64 // consecutivo, nunca se reutiliza
	CustomerID  string
	PeriodFrom  time.Time
	PeriodTo    time.Time
	PeriodLabel string
	IssueDate   time.Time
	DueDate     time.Time

	// Subtotales por categoría de concepto
	Internet        decimal.Decimal
	TV              decimal.Decimal
	PreviousBalance decimal.Decimal // saldo anterior
	Interest        decimal.Decimal // intereses de mora cobrados en esta factura
	Reconnection    decimal.Decimal
	Discount        decimal.Decimal
	Misc            decimal.Decimal

	Subtotal decimal.Decimal
	VAT      decimal.Decimal
	Total    decimal.Decimal

	// AccruedInterest mora causada por esta factura vencida; se recalcula
	// (sobrescribe) a diario y se cobra en la factura del ciclo siguiente.
	AccruedInterest decimal.Decimal

	// Paid total abonado, leído de la tabla de pagos (solo lectura).
	Paid decimal.Decimal

	Status    InvoiceStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Outstanding saldo pendiente (total - pagado), nunca negativo.
func (i *Invoice) Outstanding() decimal.Decimal {
	out := i.Total.Sub(i.Paid)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// DaysOverdue días calendario transcurridos desde el vencimiento hasta asOf.
// Cero si aún no vence.
func (i *Invoice) DaysOverdue(asOf time.Time) int {
	dy, dm, dd := i.DueDate.Date()
	ay, am, ad := asOf.Date()
	due := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	at := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	days := int(at.Sub(due).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
