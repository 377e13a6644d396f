package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/isp-billing/internal/domain"
	dombilling "github.com/jhoicas/isp-billing/internal/domain/billing"
	"github.com/jhoicas/isp-billing/internal/domain/entity"
)

// AssembleInput lo necesario para emitir una factura.
type AssembleInput struct {
	Customer  *entity.Customer
	Period    dombilling.Period
	Concepts  []dombilling.Concept
	IssueDate time.Time
}

// AssembleResult factura persistida.
type AssembleResult struct {
	InvoiceID     string
	InvoiceNumber int64
	Total         decimal.Decimal
	Invoice       *entity.Invoice
	Lines         []*entity.InvoiceLine
}

// InvoiceAssembler calcula totales y persiste cabecera, líneas y cargos consumidos
// en una sola transacción.
type InvoiceAssembler struct {
	tx       BillingTxRunner
	settings Settings
	log      zerolog.Logger
	now      func() time.Time
}

// NewInvoiceAssembler construye el ensamblador.
func NewInvoiceAssembler(tx BillingTxRunner, settings Settings, log zerolog.Logger, now func() time.Time) *InvoiceAssembler {
	if now == nil {
		now = time.Now
	}
	return &InvoiceAssembler{tx: tx, settings: settings, log: log, now: now}
}

// Build arma la factura y sus líneas en memoria, sin número ni persistencia.
// Lo usa también la vista previa.
func (a *InvoiceAssembler) Build(in AssembleInput) (*entity.Invoice, []*entity.InvoiceLine) {
	issue := a.settings.civil(in.IssueDate)
	totals := dombilling.ComputeTotals(in.Concepts)
	now := a.now()

	inv := &entity.Invoice{
		ID:              uuid.New().String(),
		CustomerID:      in.Customer.ID,
		PeriodFrom:      in.Period.From,
		PeriodTo:        in.Period.To,
		PeriodLabel:     in.Period.Label,
		IssueDate:       issue,
		DueDate:         dombilling.AddDays(issue, a.settings.GraceDays),
		Internet:        totals.Internet,
		TV:              totals.TV,
		PreviousBalance: totals.PreviousBalance,
		Interest:        totals.Interest,
		Reconnection:    totals.Reconnection,
		Discount:        totals.Discount,
		Misc:            totals.Misc,
		Subtotal:        totals.Subtotal,
		VAT:             totals.VAT,
		Total:           totals.Total,
		AccruedInterest: decimal.Zero,
		Paid:            decimal.Zero,
		Status:          entity.InvoicePending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	lines := lo.Map(in.Concepts, func(c dombilling.Concept, i int) *entity.InvoiceLine {
		return &entity.InvoiceLine{
			ID:              uuid.New().String(),
			InvoiceID:       inv.ID,
			Position:        i + 1,
			Type:            c.Type,
			Description:     c.Description,
			Quantity:        c.Quantity,
			UnitPrice:       c.UnitPrice,
			Value:           c.Value,
			VATApplicable:   c.VATApplicable,
			VATRate:         c.VATRate,
			VATValue:        c.VAT(),
			PendingChargeID: c.SourceChargeID,
		}
	})
	return inv, lines
}

// Assemble persiste la factura. Si ya existe una no anulada para el mismo
// periodo retorna domain.ErrDuplicatePeriod; cualquier error revierte todo.
func (a *InvoiceAssembler) Assemble(ctx context.Context, in AssembleInput) (*AssembleResult, error) {
	if len(in.Concepts) == 0 {
		return nil, domain.ErrNoConcepts
	}
	inv, lines := a.Build(in)
	chargeIDs := lo.Compact(lo.Map(in.Concepts, func(c dombilling.Concept, _ int) string { return c.SourceChargeID }))

	err := a.tx.RunBilling(ctx, func(tx TxRepositories) error {
		exists, err := tx.Invoices.ExistsForPeriod(ctx, inv.CustomerID, inv.PeriodFrom)
		if err != nil {
			return fmt.Errorf("verificar periodo: %w", err)
		}
		if exists {
			return domain.ErrDuplicatePeriod
		}

		number, err := tx.Invoices.NextNumber(ctx)
		if err != nil {
			return fmt.Errorf("consecutivo de factura: %w", err)
		}
		inv.Number = number

		if err := tx.Invoices.Create(ctx, inv); err != nil {
			return err
		}
		for _, line := range lines {
			if err := tx.Invoices.CreateLine(ctx, line); err != nil {
				return err
			}
		}
		if len(chargeIDs) > 0 {
			if err := tx.Charges.MarkBilled(ctx, chargeIDs, inv.ID); err != nil {
				return fmt.Errorf("marcar cargos facturados: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrDuplicatePeriod) {
			a.log.Error().Err(err).Str("customer_id", inv.CustomerID).Msg("factura revertida")
		}
		return nil, err
	}

	a.log.Info().
		Str("customer_id", inv.CustomerID).
		Int64("invoice_number", inv.Number).
		Str("period", inv.PeriodLabel).
		Str("total", inv.Total.String()).
		Msg("factura emitida")
	return &AssembleResult{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.Number,
		Total:         inv.Total,
		Invoice:       inv,
		Lines:         lines,
	}, nil
}
