package billing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/isp-billing/internal/domain/billing"
	"github.com/jhoicas/isp-billing/internal/domain/entity"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func service(st entity.ServiceType, value int64) billing.Concept {
	c := billing.NewConcept(entity.ConceptService, "Servicio "+string(st), d(value))
	c.ServiceType = st
	return c
}

func TestComputeTotals_LeyDeTotales(t *testing.T) {
	concepts := []billing.Concept{
		service(entity.ServiceInternet, 50000).WithVAT(d(19)),
		service(entity.ServiceTV, 30000).WithVAT(d(19)),
		billing.NewConcept(entity.ConceptMisc, "Traslado", d(10000)),
		billing.NewConcept(entity.ConceptPreviousBalance, "Saldo anterior", d(20000)),
		billing.NewConcept(entity.ConceptInterest, "Intereses de mora", d(667)),
		billing.NewConcept(entity.ConceptReconnection, "Reconexión", d(25000)),
		billing.NewConcept(entity.ConceptDiscount, "Descuento", d(5000)),
	}

	got := billing.ComputeTotals(concepts)

	assert.True(t, d(50000).Equal(got.Internet))
	assert.True(t, d(30000).Equal(got.TV))
	assert.True(t, d(80000).Equal(got.Subtotal))
	assert.True(t, d(15200).Equal(got.VAT), "got %s", got.VAT)
	assert.True(t, d(145867).Equal(got.Total), "got %s", got.Total)

	want := got.Subtotal.Add(got.VAT).Add(got.PreviousBalance).Add(got.Interest).
		Add(got.Reconnection).Sub(got.Discount).Add(got.Misc)
	assert.True(t, want.Equal(got.Total))
}

func TestComputeTotals_ComboCuentaComoInternetEInstalacionSuma(t *testing.T) {
	inst := billing.NewConcept(entity.ConceptInstallation, "Instalación", d(50000))
	inst.ServiceType = entity.ServiceCombo

	got := billing.ComputeTotals([]billing.Concept{service(entity.ServiceCombo, 90000), inst})

	assert.True(t, d(140000).Equal(got.Internet))
	assert.True(t, got.TV.IsZero())
	assert.True(t, got.VAT.IsZero())
	assert.True(t, d(140000).Equal(got.Total))
}

func TestComputeTotals_TasasMixtasSeRedondeanPorLinea(t *testing.T) {
	concepts := []billing.Concept{
		service(entity.ServiceInternet, 33333).WithVAT(d(19)), // 6333.27 → 6333
		service(entity.ServiceTV, 10001).WithVAT(d(5)),        // 500.05 → 500
	}
	got := billing.ComputeTotals(concepts)
	assert.True(t, d(6833).Equal(got.VAT), "got %s", got.VAT)
}

func TestNormalizeRate_SiempreEsPorcentaje(t *testing.T) {
	assert.True(t, decimal.RequireFromString("0.19").Equal(billing.NormalizeRate(d(19))))
	assert.True(t, decimal.RequireFromString("0.01").Equal(billing.NormalizeRate(d(1))))
	assert.True(t, decimal.RequireFromString("0.005").Equal(billing.NormalizeRate(decimal.RequireFromString("0.5"))))
}

func TestVAT_TasaDelUnoPorCiento(t *testing.T) {
	c := billing.NewConcept(entity.ConceptMisc, "Traslado", d(10000)).WithVAT(d(1))
	assert.True(t, d(100).Equal(c.VAT()), "got %s", c.VAT())
}
