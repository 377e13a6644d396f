package billing

import (
	"fmt"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FirstPeriodDays duración fija de la primera ventana, sin importar el calendario.
const FirstPeriodDays = 30

// Period ventana de facturación de un cliente.
type Period struct {
	From              time.Time `json:"from"`
	To                time.Time `json:"to"`
	DaysBilled        int       `json:"days_billed"`
	IsFirstInvoice    bool      `json:"is_first_invoice"`
	IsLevelingInvoice bool      `json:"is_leveling_invoice"`
	Label             string    `json:"label"`
}

// PeriodHistory resumen de las facturas no anuladas del cliente.
type PeriodHistory struct {
	Count  int
	LastTo time.Time // hasta de la última factura; cero si Count == 0
}

// CalculatePeriod deriva la ventana a facturar. Función pura.
//
//  1. Primera factura: [activación, activación + 29 días].
//  2. Segunda (nivelación): del día siguiente al último "hasta" al fin del mes
//     facturado (el mes anterior a ref). Si ese fin queda antes del inicio, se
//     corre al último día del mes siguiente.
//  3. Régimen normal: el mes calendario anterior a ref completo.
func CalculatePeriod(activation time.Time, history PeriodHistory, ref time.Time) Period {
	loc := ref.Location()
	ref = CivilDate(ref, loc)
	billingMonth := FirstDayOfMonth(ref).AddDate(0, -1, 0)

	var p Period
	switch {
	case history.Count <= 0:
		from := CivilDate(activation, loc)
		p = newPeriod(from, from.AddDate(0, 0, FirstPeriodDays-1))
		p.IsFirstInvoice = true
	case history.Count == 1:
		from := CivilDate(history.LastTo, loc).AddDate(0, 0, 1)
		to := LastDayOfMonth(billingMonth)
		if to.Before(from) {
			// Activación tardía: el hasta previo ya cae en el mes facturado.
			to = LastDayOfMonth(billingMonth.AddDate(0, 1, 0))
		}
		if to.Before(from) {
			to = LastDayOfMonth(from)
		}
		p = newPeriod(from, to)
		p.IsLevelingInvoice = true
	default:
		p = newPeriod(billingMonth, LastDayOfMonth(billingMonth))
	}
	return p
}

func newPeriod(from, to time.Time) Period {
	return Period{
		From:       from,
		To:         to,
		DaysBilled: InclusiveDays(from, to),
		Label:      PeriodLabel(from, to),
	}
}

var monthNames = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// PeriodLabel texto del periodo para la factura: "Febrero 2024" si la ventana
// es un mes calendario completo, "10 Ene 2024 - 8 Feb 2024" en otro caso.
func PeriodLabel(from, to time.Time) string {
	// cases.Caser no es seguro entre goroutines: uno por llamada.
	title := cases.Title(language.Spanish)
	if from.Day() == 1 && SameMonth(from, to) && to.Day() == LastDayOfMonth(to).Day() {
		return title.String(fmt.Sprintf("%s %d", monthNames[from.Month()-1], from.Year()))
	}
	short := func(t time.Time) string {
		return fmt.Sprintf("%d %s %d", t.Day(), title.String(monthNames[t.Month()-1][:3]), t.Year())
	}
	return short(from) + " - " + short(to)
}
