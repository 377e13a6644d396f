// Package billing contiene la aritmética pura de facturación: ventanas de
// periodo, tarifa de instalación, interés de mora y totales por concepto.
// No conoce repositorios ni transacciones.
package billing

import "time"

// CivilDate trunca t a medianoche conservando año/mes/día en la zona loc.
// Las fechas de la base (DATE) llegan en UTC; se reinterpretan como fecha civil.
func CivilDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = t.Location()
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// AddDays suma días calendario a una fecha civil.
func AddDays(t time.Time, n int) time.Time {
	return CivilDate(t, t.Location()).AddDate(0, 0, n)
}

// DaysBetween días calendario de from a to (to - from). Negativo si to < from.
func DaysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	f := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	t := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}

// InclusiveDays días de la ventana [from, to] contando ambos extremos.
func InclusiveDays(from, to time.Time) int {
	return DaysBetween(from, to) + 1
}

// FirstDayOfMonth primer día del mes de t.
func FirstDayOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// LastDayOfMonth último día del mes de t.
func LastDayOfMonth(t time.Time) time.Time {
	return FirstDayOfMonth(t).AddDate(0, 1, -1)
}

// SameMonth true si a y b caen en el mismo mes calendario.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
