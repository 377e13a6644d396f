package billing

import (
	"time"

	"github.com/shopspring/decimal"

	dombilling "github.com/jhoicas/isp-billing/internal/domain/billing"
)

// Settings parámetros del motor. Se arman desde config.BillingConfig en el contenedor.
type Settings struct {
	Location               *time.Location
	MonthlyInterestRate    decimal.Decimal
	StandardVATRate        decimal.Decimal
	ReconnectionFee        decimal.Decimal
	ReconnectionWindowDays int
	GraceDays              int
	SuspendMinOverdueDays  int
	SuspendWorstDays       int
	MoraCutoffDays         int
	LogRetentionDays       int
	Workers                int
	LockTTL                time.Duration
}

// DefaultSettings valores de negocio vigentes.
func DefaultSettings() Settings {
	loc, err := time.LoadLocation("America/Bogota")
	if err != nil {
		loc = time.Local
	}
	return Settings{
		Location:               loc,
		MonthlyInterestRate:    decimal.NewFromInt(2),
		StandardVATRate:        decimal.NewFromInt(19),
		ReconnectionFee:        decimal.NewFromInt(25000),
		ReconnectionWindowDays: 5,
		GraceDays:              15,
		SuspendMinOverdueDays:  30,
		SuspendWorstDays:       60,
		MoraCutoffDays:         30,
		LogRetentionDays:       90,
		Workers:                1,
		LockTTL:                2 * time.Minute,
	}
}

func (s Settings) location() *time.Location {
	if s.Location == nil {
		return time.Local
	}
	return s.Location
}

// civil lleva t a fecha civil en la zona de facturación.
func (s Settings) civil(t time.Time) time.Time {
	loc := s.location()
	return dombilling.CivilDate(t.In(loc), loc)
}

// resolveDate fecha civil de *t, o de now si t es nil o cero.
func (s Settings) resolveDate(t *time.Time, now time.Time) time.Time {
	if t == nil || t.IsZero() {
		return s.civil(now)
	}
	// Las fechas que llegan como YYYY-MM-DD ya son civiles; no se convierten de zona.
	return dombilling.CivilDate(*t, s.location())
}
