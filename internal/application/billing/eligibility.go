package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/jhoicas/isp-billing/internal/domain"
	"github.com/jhoicas/isp-billing/internal/domain/entity"
	"github.com/jhoicas/isp-billing/internal/domain/repository"
)

// EligibilityCode motivo estable (para clientes HTTP/CLI) del resultado de elegibilidad.
type EligibilityCode string

const (
	EligibleOK                 EligibilityCode = "OK"
	IneligibleNotFound         EligibilityCode = "NOT_FOUND"
	IneligibleInactive         EligibilityCode = "INACTIVE"
	IneligibleWithdrawn        EligibilityCode = "WITHDRAWN"
	IneligibleExcessiveMora    EligibilityCode = "EXCESSIVE_MORA"
	IneligibleNoActiveServices EligibilityCode = "NO_ACTIVE_SERVICES"
	IneligibleAlreadyBilled    EligibilityCode = "ALREADY_BILLED"
)

// EligibilityResult decisión de facturar o no. No ser elegible no es un error.
type EligibilityResult struct {
	Eligible bool            `json:"eligible"`
	Code     EligibilityCode `json:"code"`
	Reason   string          `json:"reason,omitempty"`
}

func rejected(code EligibilityCode, reason string) EligibilityResult {
	return EligibilityResult{Eligible: false, Code: code, Reason: reason}
}

// IneligibleError envuelve un rechazo para que el pipeline lo propague como error.
// errors.Is(err, domain.ErrNotEligible) es true.
type IneligibleError struct {
	Result EligibilityResult
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("%s: %s", domain.ErrNotEligible, e.Result.Reason)
}

func (e *IneligibleError) Is(target error) bool { return target == domain.ErrNotEligible }

// eligibilityCheck resultado más lo leído para decidirlo, reutilizado por el pipeline.
type eligibilityCheck struct {
	Result        EligibilityResult
	Customer      *entity.Customer
	Subscriptions []*entity.ServiceSubscription
}

// EligibilityValidator decide si un cliente puede facturarse en la corrida.
type EligibilityValidator struct {
	customers     repository.CustomerRepository
	subscriptions repository.SubscriptionRepository
	invoices      repository.InvoiceRepository
	settings      Settings
	log           zerolog.Logger
	now           func() time.Time
}

// NewEligibilityValidator construye el validador.
func NewEligibilityValidator(repos Repositories, settings Settings, log zerolog.Logger, now func() time.Time) *EligibilityValidator {
	if now == nil {
		now = time.Now
	}
	return &EligibilityValidator{
		customers:     repos.Customers,
		subscriptions: repos.Subscriptions,
		invoices:      repos.Invoices,
		settings:      settings,
		log:           log,
		now:           now,
	}
}

// Validate aplica las reglas en orden y se detiene en el primer rechazo.
// Solo retorna error por fallas de infraestructura.
func (v *EligibilityValidator) Validate(ctx context.Context, customerID string, ref time.Time) (EligibilityResult, error) {
	chk, err := v.check(ctx, customerID, ref, true)
	if err != nil {
		return EligibilityResult{}, err
	}
	return chk.Result, nil
}

// check con suspend=false la mora excesiva rechaza igual pero no escribe nada
// (vista previa y simulación).
func (v *EligibilityValidator) check(ctx context.Context, customerID string, ref time.Time, suspend bool) (*eligibilityCheck, error) {
	ref = v.settings.civil(ref)

	// 1) Cliente existe y está activo
	customer, err := v.customers.GetByID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("obtener cliente %s: %w", customerID, err)
	}
	if customer == nil {
		return &eligibilityCheck{Result: rejected(IneligibleNotFound, "cliente no encontrado")}, nil
	}
	chk := &eligibilityCheck{Customer: customer}
	switch customer.Status {
	case entity.CustomerActive:
	case entity.CustomerWithdrawn:
		chk.Result = rejected(IneligibleWithdrawn, "cliente retirado")
		return chk, nil
	default:
		chk.Result = rejected(IneligibleInactive, fmt.Sprintf("cliente en estado %s", customer.Status))
		return chk, nil
	}

	// 2) Mora excesiva: se suspende aquí mismo salvo en simulación
	unpaid, err := v.invoices.ListUnpaidByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("facturas impagas de %s: %w", customerID, err)
	}
	overdueDays := lo.Map(unpaid, func(inv *entity.Invoice, _ int) int { return inv.DaysOverdue(ref) })
	worst := lo.Max(overdueDays)
	anyOver := lo.SomeBy(overdueDays, func(d int) bool { return d > v.settings.SuspendMinOverdueDays })
	if anyOver && worst > v.settings.SuspendWorstDays {
		if !suspend {
			chk.Result = rejected(IneligibleExcessiveMora, fmt.Sprintf("mora excesiva (%d días), se suspendería", worst))
			return chk, nil
		}
		if err := v.SuspendForExcessiveMora(ctx, customer, worst); err != nil {
			return nil, err
		}
		chk.Result = rejected(IneligibleExcessiveMora, "suspendido por mora excesiva")
		return chk, nil
	}

	// 3) Al menos un servicio activo
	subs, err := v.subscriptions.ListActiveByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("servicios de %s: %w", customerID, err)
	}
	if len(subs) == 0 {
		chk.Result = rejected(IneligibleNoActiveServices, "sin servicios activos")
		return chk, nil
	}
	chk.Subscriptions = subs

	// 4) Sin factura emitida en el mes de referencia
	billed, err := v.invoices.ExistsIssuedInMonth(ctx, customerID, ref)
	if err != nil {
		return nil, fmt.Errorf("factura del mes de %s: %w", customerID, err)
	}
	if billed {
		chk.Result = rejected(IneligibleAlreadyBilled, fmt.Sprintf("ya tiene factura emitida en %s", ref.Format("2006-01")))
		return chk, nil
	}

	chk.Result = EligibilityResult{Eligible: true, Code: EligibleOK}
	return chk, nil
}

// SuspendForExcessiveMora pasa el cliente a suspended y deja la nota en observaciones.
func (v *EligibilityValidator) SuspendForExcessiveMora(ctx context.Context, customer *entity.Customer, worstDays int) error {
	note := fmt.Sprintf("Suspendido automáticamente por mora excesiva (%d días de atraso)", worstDays)
	if err := v.customers.UpdateStatus(ctx, customer.ID, entity.CustomerSuspended,
		entity.ObservationEntry(v.now().In(v.settings.location()), note)); err != nil {
		return fmt.Errorf("suspender cliente %s: %w", customer.ID, err)
	}
	customer.Status = entity.CustomerSuspended
	v.log.Warn().
		Str("customer_id", customer.ID).
		Int("worst_days_overdue", worstDays).
		Msg("cliente suspendido por mora excesiva")
	return nil
}
