package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/isp-billing/internal/domain/entity"
)

// CustomerMora peor atraso de un cliente con facturas impagas.
type CustomerMora struct {
	CustomerID       string
	WorstDaysOverdue int
}

// InvoiceRepository define el puerto de persistencia para Invoice y sus líneas.
// Las facturas anuladas (void) no cuentan en historial ni duplicados.
type InvoiceRepository interface {
	// PeriodHistory cantidad de facturas no anuladas y el "hasta" de la más reciente.
	PeriodHistory(ctx context.Context, customerID string) (count int, lastTo time.Time, err error)
	// ExistsIssuedInMonth true si hay factura no anulada emitida en el mes de month.
	ExistsIssuedInMonth(ctx context.Context, customerID string, month time.Time) (bool, error)
	ExistsForPeriod(ctx context.Context, customerID string, periodFrom time.Time) (bool, error)
	// ListUnpaidByCustomer facturas pending/overdue con Paid cargado.
	ListUnpaidByCustomer(ctx context.Context, customerID string) ([]*entity.Invoice, error)
	// ListInterestCandidates facturas impagas vencidas antes de asOf. customerID vacío = todos.
	ListInterestCandidates(ctx context.Context, customerID string, asOf time.Time) ([]*entity.Invoice, error)
	UpdateAccruedInterest(ctx context.Context, invoiceID string, amount decimal.Decimal) error
	// SumPendingInterest suma la mora causada de facturas impagas emitidas hasta cutoff.
	SumPendingInterest(ctx context.Context, customerID string, cutoff time.Time) (total decimal.Decimal, count int, err error)
	NextNumber(ctx context.Context) (int64, error)
	// Create persiste la cabecera. Violación del índice único de periodo → domain.ErrDuplicatePeriod.
	Create(ctx context.Context, invoice *entity.Invoice) error
	CreateLine(ctx context.Context, line *entity.InvoiceLine) error
	GetLines(ctx context.Context, invoiceID string) ([]*entity.InvoiceLine, error)
	// PromoteOverdue pending con vencimiento anterior a asOf → overdue. Devuelve los clientes afectados.
	PromoteOverdue(ctx context.Context, asOf time.Time) (promoted int64, customerIDs []string, err error)
	// ListMoraCustomers clientes con servicios activos cuyo peor atraso es ≥ minDays.
	ListMoraCustomers(ctx context.Context, minDays int, asOf time.Time) ([]CustomerMora, error)
}
