package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/isp-billing/internal/domain"
	dombilling "github.com/jhoicas/isp-billing/internal/domain/billing"
	"github.com/jhoicas/isp-billing/internal/domain/entity"
	"github.com/jhoicas/isp-billing/internal/domain/repository"
)

// ConceptInput datos ya cargados del cliente para calcular sus conceptos.
type ConceptInput struct {
	Customer      *entity.Customer
	Subscriptions []*entity.ServiceSubscription
	Period        dombilling.Period
	Reference     time.Time
}

// ConceptCalculator arma la lista ordenada de conceptos de una factura.
type ConceptCalculator struct {
	invoices repository.InvoiceRepository
	charges  repository.PendingChargeRepository
	cuts     repository.ServiceCutRepository
	interest *InterestCalculator
	settings Settings
}

// NewConceptCalculator construye el calculador.
func NewConceptCalculator(repos Repositories, interest *InterestCalculator, settings Settings) *ConceptCalculator {
	return &ConceptCalculator{
		invoices: repos.Invoices,
		charges:  repos.Charges,
		cuts:     repos.Cuts,
		interest: interest,
		settings: settings,
	}
}

var serviceNames = map[entity.ServiceType]string{
	entity.ServiceInternet: "Internet",
	entity.ServiceTV:       "Televisión",
	entity.ServiceCombo:    "Internet + TV",
}

// Calculate orden fijo: servicios, instalación, saldo anterior, intereses,
// cargos pendientes y reconexión. Sin conceptos → domain.ErrNoConcepts.
func (c *ConceptCalculator) Calculate(ctx context.Context, in ConceptInput) ([]dombilling.Concept, error) {
	ref := c.settings.civil(in.Reference)
	customerID := in.Customer.ID
	var out []dombilling.Concept

	// 1) Servicios
	for _, sub := range in.Subscriptions {
		if sub.Plan == nil {
			return nil, fmt.Errorf("%w: servicio %s sin plan", domain.ErrDataIntegrity, sub.ID)
		}
		value := sub.EffectivePrice()
		if in.Period.IsLevelingInvoice {
			value = value.Mul(decimal.NewFromInt(int64(in.Period.DaysBilled))).
				Div(decimal.NewFromInt(dombilling.InterestDayBasis)).
				Round(0)
		}
		if !value.IsPositive() {
			continue
		}
		concept := dombilling.NewConcept(entity.ConceptService,
			fmt.Sprintf("%s %s - %s", serviceNames[sub.Plan.ServiceType], sub.Plan.Name, in.Period.Label), value)
		concept.ServiceType = sub.Plan.ServiceType
		if in.Period.IsLevelingInvoice {
			concept.Quantity = decimal.NewFromInt(int64(in.Period.DaysBilled))
			concept.UnitPrice = value.Div(concept.Quantity).Round(2)
		}
		if sub.Plan.VATApplicable {
			concept = concept.WithVAT(c.planRate(sub.Plan))
		}
		out = append(out, concept)
	}

	// 2) Instalación, solo en la primera factura
	if in.Period.IsFirstInvoice {
		for _, sub := range in.Subscriptions {
			if !sub.RequiresInstallation || sub.Plan == nil {
				continue
			}
			fee := dombilling.InstallationFee(sub.Plan.InstallationFee, sub.Plan.PermanenceMonths)
			if !fee.IsPositive() {
				continue
			}
			concept := dombilling.NewConcept(entity.ConceptInstallation,
				fmt.Sprintf("Instalación %s (permanencia %d meses)", sub.Plan.Name, sub.Plan.PermanenceMonths), fee).
				WithVAT(c.settings.StandardVATRate)
			concept.ServiceType = sub.Plan.ServiceType
			out = append(out, concept)
		}
	}

	// 3) Saldo anterior
	unpaid, err := c.invoices.ListUnpaidByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("saldo anterior de %s: %w", customerID, err)
	}
	balance := lo.Reduce(unpaid, func(acc decimal.Decimal, inv *entity.Invoice, _ int) decimal.Decimal {
		return acc.Add(inv.Outstanding())
	}, decimal.Zero)
	if balance.IsPositive() {
		out = append(out, dombilling.NewConcept(entity.ConceptPreviousBalance,
			fmt.Sprintf("Saldo anterior (%d facturas pendientes)", len(unpaid)), balance))
	}

	// 4) Intereses de mora causados, se cobran el ciclo siguiente
	pending, err := c.interest.PendingInterest(ctx, customerID, in.Period.To)
	if err != nil {
		return nil, err
	}
	if pending.Total.IsPositive() {
		out = append(out, dombilling.NewConcept(entity.ConceptInterest,
			fmt.Sprintf("Intereses de mora (%d facturas)", pending.InvoiceCount), pending.Total))
	}

	// 5) Cargos pendientes cuya fecha efectiva ya llegó
	charges, err := c.charges.ListUnbilledByCustomer(ctx, customerID, ref)
	if err != nil {
		return nil, fmt.Errorf("cargos pendientes de %s: %w", customerID, err)
	}
	for _, ch := range charges {
		if !ch.Amount.IsPositive() {
			continue
		}
		concept := dombilling.NewConcept(entity.ConceptMisc, chargeDescription(ch), ch.Amount)
		concept.SourceChargeID = ch.ID
		if ch.VATApplicable || ch.Kind != entity.ChargeMisc {
			rate := ch.VATRate
			if !rate.IsPositive() {
				rate = c.settings.StandardVATRate
			}
			concept = concept.WithVAT(rate)
		}
		out = append(out, concept)
	}

	// 6) Reconexión tras un corte reciente sin reconectar
	// Ventana [ref - N días, ref + 1 día): un corte posterior a ref no se cobra.
	since := dombilling.AddDays(ref, -c.settings.ReconnectionWindowDays)
	cut, err := c.cuts.FindUnreconnectedBetween(ctx, customerID, since, dombilling.AddDays(ref, 1))
	if err != nil {
		return nil, fmt.Errorf("cortes de servicio de %s: %w", customerID, err)
	}
	if cut != nil && c.settings.ReconnectionFee.IsPositive() {
		out = append(out, dombilling.NewConcept(entity.ConceptReconnection,
			fmt.Sprintf("Reconexión (corte del %s)", cut.CutAt.In(c.settings.location()).Format("2006-01-02")),
			c.settings.ReconnectionFee).
			WithVAT(c.settings.StandardVATRate))
	}

	if len(out) == 0 {
		return nil, domain.ErrNoConcepts
	}
	return out, nil
}

func (c *ConceptCalculator) planRate(plan *entity.Plan) decimal.Decimal {
	if plan.VATRate.IsPositive() {
		return plan.VATRate
	}
	return c.settings.StandardVATRate
}

func chargeDescription(ch *entity.PendingCharge) string {
	if ch.Description != "" {
		return ch.Description
	}
	switch ch.Kind {
	case entity.ChargeRelocation:
		return "Traslado de servicio"
	case entity.ChargeLostEquipment:
		return "Equipo no devuelto"
	default:
		return "Cargo adicional"
	}
}
