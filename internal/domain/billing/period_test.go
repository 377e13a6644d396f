package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/isp-billing/internal/domain/billing"
)

func bogota(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Bogota")
	require.NoError(t, err)
	return loc
}

func day(loc *time.Location, y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func TestCalculatePeriod_PrimeraFacturaTreintaDias(t *testing.T) {
	loc := bogota(t)
	p := billing.CalculatePeriod(day(loc, 2024, 1, 10), billing.PeriodHistory{}, day(loc, 2024, 2, 1))

	assert.True(t, p.IsFirstInvoice)
	assert.False(t, p.IsLevelingInvoice)
	assert.Equal(t, day(loc, 2024, 1, 10), p.From)
	assert.Equal(t, day(loc, 2024, 2, 8), p.To)
	assert.Equal(t, billing.FirstPeriodDays, p.DaysBilled)
	assert.Equal(t, "10 Ene 2024 - 8 Feb 2024", p.Label)
}

func TestCalculatePeriod_ActivacionEnUTCSeTomaComoFechaCivil(t *testing.T) {
	loc := bogota(t)
	activation := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	p := billing.CalculatePeriod(activation, billing.PeriodHistory{}, day(loc, 2024, 2, 1))

	assert.Equal(t, day(loc, 2024, 1, 10), p.From)
}

func TestCalculatePeriod_NivelacionHastaFinDeMes(t *testing.T) {
	loc := bogota(t)
	h := billing.PeriodHistory{Count: 1, LastTo: day(loc, 2024, 2, 7)}
	p := billing.CalculatePeriod(day(loc, 2024, 1, 9), h, day(loc, 2024, 3, 15))

	assert.True(t, p.IsLevelingInvoice)
	assert.Equal(t, day(loc, 2024, 2, 8), p.From)
	assert.Equal(t, day(loc, 2024, 2, 29), p.To)
	assert.Equal(t, 22, p.DaysBilled)
}

func TestCalculatePeriod_NivelacionSeCorreAlMesSiguiente(t *testing.T) {
	loc := bogota(t)
	h := billing.PeriodHistory{Count: 1, LastTo: day(loc, 2024, 2, 29)}
	p := billing.CalculatePeriod(day(loc, 2024, 1, 31), h, day(loc, 2024, 3, 15))

	assert.Equal(t, day(loc, 2024, 3, 1), p.From)
	assert.Equal(t, day(loc, 2024, 3, 31), p.To)
	assert.False(t, p.To.Before(p.From))
	assert.Equal(t, "Marzo 2024", p.Label)
}

func TestCalculatePeriod_RegimenNormalMesAnterior(t *testing.T) {
	loc := bogota(t)
	h := billing.PeriodHistory{Count: 4, LastTo: day(loc, 2024, 1, 31)}
	p := billing.CalculatePeriod(day(loc, 2023, 9, 1), h, day(loc, 2024, 3, 1))

	assert.False(t, p.IsFirstInvoice)
	assert.False(t, p.IsLevelingInvoice)
	assert.Equal(t, day(loc, 2024, 2, 1), p.From)
	assert.Equal(t, day(loc, 2024, 2, 29), p.To)
	assert.Equal(t, 29, p.DaysBilled)
	assert.Equal(t, "Febrero 2024", p.Label)
}

func TestCalculatePeriod_CruceDeAnio(t *testing.T) {
	loc := bogota(t)
	h := billing.PeriodHistory{Count: 7, LastTo: day(loc, 2023, 11, 30)}
	p := billing.CalculatePeriod(day(loc, 2023, 1, 1), h, day(loc, 2024, 1, 5))

	assert.Equal(t, day(loc, 2023, 12, 1), p.From)
	assert.Equal(t, day(loc, 2023, 12, 31), p.To)
	assert.Equal(t, "Diciembre 2023", p.Label)
}

func TestCalculatePeriod_HastaNuncaAntesQueDesde(t *testing.T) {
	loc := bogota(t)
	ref := day(loc, 2024, 3, 15)
	for d := 0; d < 120; d++ {
		activation := day(loc, 2023, 12, 1).AddDate(0, 0, d)
		for count := 0; count < 3; count++ {
			h := billing.PeriodHistory{Count: count, LastTo: activation.AddDate(0, 0, 29)}
			p := billing.CalculatePeriod(activation, h, ref)
			assert.False(t, p.To.Before(p.From), "activación %s, facturas %d", activation.Format("2006-01-02"), count)
			assert.Equal(t, billing.InclusiveDays(p.From, p.To), p.DaysBilled)
		}
	}
}

func TestDaysBetween_IgnoraHoraYZona(t *testing.T) {
	loc := bogota(t)
	from := time.Date(2024, 3, 1, 23, 59, 0, 0, loc)
	to := time.Date(2024, 3, 11, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 10, billing.DaysBetween(from, to))
	assert.Equal(t, -10, billing.DaysBetween(to, from))
}
