package billing

import "github.com/shopspring/decimal"

// InterestDayBasis días del mes comercial para convertir la tasa mensual en diaria.
const InterestDayBasis = 30

var (
	dayBasis = decimal.NewFromInt(InterestDayBasis)
	hundred  = decimal.NewFromInt(100)
)

// DailyRate tasa diaria como fracción: mensual% / 30 / 100.
func DailyRate(monthlyRatePct decimal.Decimal) decimal.Decimal {
	return monthlyRatePct.Div(dayBasis).Div(hundred)
}

// MoratoryInterest interés de mora = round(saldo × tasaDiaria × díasVencidos),
// redondeado al peso. Cero si no hay días vencidos o saldo.
// Se multiplica antes de dividir para no arrastrar el truncamiento de la tasa diaria.
func MoratoryInterest(balance, monthlyRatePct decimal.Decimal, daysOverdue int) decimal.Decimal {
	if daysOverdue <= 0 || !balance.IsPositive() || !monthlyRatePct.IsPositive() {
		return decimal.Zero
	}
	return balance.
		Mul(monthlyRatePct).
		Mul(decimal.NewFromInt(int64(daysOverdue))).
		Div(dayBasis.Mul(hundred)).
		Round(0)
}
