package billing

import "github.com/shopspring/decimal"

// InstallationFee aplica el descuento por permanencia a la tarifa de instalación:
// menos de 6 meses paga completa, de 6 a 11 la mitad, 12 o más queda exonerada.
func InstallationFee(fee decimal.Decimal, permanenceMonths int) decimal.Decimal {
	switch {
	case !fee.IsPositive():
		return decimal.Zero
	case permanenceMonths >= 12:
		return decimal.Zero
	case permanenceMonths >= 6:
		return fee.Div(decimal.NewFromInt(2)).Round(0)
	default:
		return fee
	}
}
