package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	dombilling "github.com/jhoicas/isp-billing/internal/domain/billing"
	"github.com/jhoicas/isp-billing/internal/domain/entity"
	"github.com/jhoicas/isp-billing/internal/domain/repository"
)

// RecomputeParams CustomerID vacío = todos los clientes; AsOf cero = hoy.
type RecomputeParams struct {
	CustomerID string
	AsOf       time.Time
}

// InterestDetail mora recalculada de una factura.
type InterestDetail struct {
	InvoiceID     string          `json:"invoice_id"`
	InvoiceNumber int64           `json:"invoice_number"`
	CustomerID    string          `json:"customer_id"`
	Outstanding   decimal.Decimal `json:"outstanding"`
	DaysOverdue   int             `json:"days_overdue"`
	Interest      decimal.Decimal `json:"interest"`
}

// RecomputeResult resumen del recálculo.
type RecomputeResult struct {
	AsOf                 time.Time        `json:"as_of"`
	CustomerID           string           `json:"customer_id,omitempty"`
	MonthlyRate          decimal.Decimal  `json:"monthly_rate"`
	InvoicesProcessed    int              `json:"invoices_processed"`
	InvoicesWithInterest int              `json:"invoices_with_interest"`
	TotalInterest        decimal.Decimal  `json:"total_interest"`
	Details              []InterestDetail `json:"details"`
}

// PendingInterest mora causada aún no cobrada.
type PendingInterest struct {
	CustomerID   string          `json:"customer_id"`
	Cutoff       time.Time       `json:"cutoff"`
	Total        decimal.Decimal `json:"total"`
	InvoiceCount int             `json:"invoice_count"`
}

// InterestCalculator recalcula y consulta intereses de mora.
type InterestCalculator struct {
	invoices repository.InvoiceRepository
	reporter *RunReporter
	settings Settings
	log      zerolog.Logger
	now      func() time.Time
}

// NewInterestCalculator construye el calculador.
func NewInterestCalculator(invoices repository.InvoiceRepository, reporter *RunReporter, settings Settings, log zerolog.Logger, now func() time.Time) *InterestCalculator {
	if now == nil {
		now = time.Now
	}
	return &InterestCalculator{invoices: invoices, reporter: reporter, settings: settings, log: log, now: now}
}

// Recompute sobrescribe la mora causada de cada factura impaga vencida antes de AsOf.
// Es idempotente: correrlo dos veces el mismo día deja los mismos valores.
func (c *InterestCalculator) Recompute(ctx context.Context, p RecomputeParams) (*RecomputeResult, error) {
	asOf := c.settings.resolveDate(&p.AsOf, c.now())
	candidates, err := c.invoices.ListInterestCandidates(ctx, p.CustomerID, asOf)
	if err != nil {
		return nil, fmt.Errorf("facturas para intereses: %w", err)
	}

	res := &RecomputeResult{
		AsOf:          asOf,
		CustomerID:    p.CustomerID,
		MonthlyRate:   c.settings.MonthlyInterestRate,
		TotalInterest: decimal.Zero,
		Details:       make([]InterestDetail, 0, len(candidates)),
	}
	for _, inv := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		outstanding := inv.Outstanding()
		if !outstanding.IsPositive() {
			continue
		}
		days := inv.DaysOverdue(asOf)
		amount := dombilling.MoratoryInterest(outstanding, c.settings.MonthlyInterestRate, days)
		if err := c.invoices.UpdateAccruedInterest(ctx, inv.ID, amount); err != nil {
			return nil, fmt.Errorf("actualizar interés de factura %d: %w", inv.Number, err)
		}
		res.InvoicesProcessed++
		if amount.IsPositive() {
			res.InvoicesWithInterest++
			res.TotalInterest = res.TotalInterest.Add(amount)
		}
		res.Details = append(res.Details, InterestDetail{
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.Number,
			CustomerID:    inv.CustomerID,
			Outstanding:   outstanding,
			DaysOverdue:   days,
			Interest:      amount,
		})
	}

	c.log.Info().
		Time("as_of", asOf).
		Int("invoices", res.InvoicesProcessed).
		Str("total_interest", res.TotalInterest.String()).
		Msg("intereses de mora recalculados")
	c.reporter.Record(ctx, entity.RunInterestRecompute, res)
	return res, nil
}

// PendingInterest suma la mora causada en facturas impagas emitidas hasta cutoff.
func (c *InterestCalculator) PendingInterest(ctx context.Context, customerID string, cutoff time.Time) (*PendingInterest, error) {
	cutoff = c.settings.resolveDate(&cutoff, c.now())
	total, count, err := c.invoices.SumPendingInterest(ctx, customerID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("intereses pendientes de %s: %w", customerID, err)
	}
	return &PendingInterest{CustomerID: customerID, Cutoff: cutoff, Total: total, InvoiceCount: count}, nil
}
