package billing

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/isp-billing/internal/domain/entity"
)

// Concept línea facturable antes de persistirse como InvoiceLine.
type Concept struct {
	Type           entity.ConceptType
	Description    string
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	Value          decimal.Decimal // siempre positivo; el descuento resta en los totales
	VATApplicable  bool
	VATRate        decimal.Decimal // porcentaje (19 = 19%)
	ServiceType    entity.ServiceType
	SourceChargeID string // cargo pendiente que origina el concepto
}

// NewConcept concepto de cantidad 1.
func NewConcept(t entity.ConceptType, description string, value decimal.Decimal) Concept {
	return Concept{
		Type:        t,
		Description: description,
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   value,
		Value:       value,
	}
}

// WithVAT marca el concepto como gravado a la tasa dada.
func (c Concept) WithVAT(rate decimal.Decimal) Concept {
	c.VATApplicable = true
	c.VATRate = rate
	return c
}

// NormalizeRate convierte el porcentaje guardado (NUMERIC(5,2), 19 = 19%) en fracción.
func NormalizeRate(rate decimal.Decimal) decimal.Decimal {
	return rate.Div(hundred)
}

// VAT IVA del concepto redondeado al peso. Cero si no es gravado.
func (c Concept) VAT() decimal.Decimal {
	if !c.VATApplicable || !c.VATRate.IsPositive() {
		return decimal.Zero
	}
	return c.Value.Mul(NormalizeRate(c.VATRate)).Round(0)
}

// IsBase true para los conceptos que forman el subtotal gravable de servicio.
func (c Concept) IsBase() bool {
	return c.Type == entity.ConceptService || c.Type == entity.ConceptInstallation
}

// Totals subtotales por categoría de una factura.
type Totals struct {
	Internet        decimal.Decimal
	TV              decimal.Decimal
	PreviousBalance decimal.Decimal
	Interest        decimal.Decimal
	Reconnection    decimal.Decimal
	Discount        decimal.Decimal
	Misc            decimal.Decimal
	Subtotal        decimal.Decimal
	VAT             decimal.Decimal
	Total           decimal.Decimal
}

// ComputeTotals agrega los conceptos por categoría.
//
//	Subtotal = Internet + TV (servicio e instalación; combo cuenta como internet)
//	IVA      = Σ round(valor × tasa) de cada concepto gravado
//	Total    = Subtotal + IVA + SaldoAnterior + Intereses + Reconexión − Descuento + Varios
func ComputeTotals(concepts []Concept) Totals {
	sum := func(pred func(Concept) bool) decimal.Decimal {
		return lo.Reduce(lo.Filter(concepts, func(c Concept, _ int) bool { return pred(c) }),
			func(acc decimal.Decimal, c Concept, _ int) decimal.Decimal { return acc.Add(c.Value) },
			decimal.Zero)
	}
	ofType := func(t entity.ConceptType) func(Concept) bool {
		return func(c Concept) bool { return c.Type == t }
	}

	var t Totals
	t.TV = sum(func(c Concept) bool { return c.IsBase() && c.ServiceType == entity.ServiceTV })
	t.Internet = sum(func(c Concept) bool { return c.IsBase() && c.ServiceType != entity.ServiceTV })
	t.PreviousBalance = sum(ofType(entity.ConceptPreviousBalance))
	t.Interest = sum(ofType(entity.ConceptInterest))
	t.Reconnection = sum(ofType(entity.ConceptReconnection))
	t.Discount = sum(ofType(entity.ConceptDiscount))
	t.Misc = sum(ofType(entity.ConceptMisc))

	t.Subtotal = t.Internet.Add(t.TV)
	t.VAT = lo.Reduce(concepts, func(acc decimal.Decimal, c Concept, _ int) decimal.Decimal {
		return acc.Add(c.VAT())
	}, decimal.Zero)
	t.Total = t.Subtotal.
		Add(t.VAT).
		Add(t.PreviousBalance).
		Add(t.Interest).
		Add(t.Reconnection).
		Sub(t.Discount).
		Add(t.Misc)
	return t
}
