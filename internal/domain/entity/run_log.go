package entity

import "time"

// RunType etiqueta de la bitácora de ejecuciones.
type RunType string

const (
	RunMonthlyBilling    RunType = "monthly_billing"
	RunInterestRecompute RunType = "interest_recompute"
	RunOverduePromotion  RunType = "overdue_promotion"
	RunServiceCutoff     RunType = "service_cutoff"
	RunLogRetention      RunType = "log_retention"
	RunIndividualInvoice RunType = "individual_invoice"
)

// RunLog registro de una ejecución (append-only). Payload es JSON.
type RunLog struct {
	ID        string
	Type      RunType
	Payload   []byte
	CreatedAt time.Time
}
