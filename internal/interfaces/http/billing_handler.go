package http

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/jhoicas/isp-billing/internal/application/billing"
	"github.com/jhoicas/isp-billing/internal/application/dto"
	"github.com/jhoicas/isp-billing/internal/domain"
	dombilling "github.com/jhoicas/isp-billing/internal/domain/billing"
)

// billingService contrato que el handler necesita; lo implementa *billing.Service.
type billingService interface {
	GenerateMonthlyBilling(ctx context.Context, params billing.RunParams) (*billing.RunSummary, error)
	GenerateInvoiceForCustomer(ctx context.Context, customerID string, ref *time.Time) (*dto.InvoiceResponse, error)
	PreviewInvoice(ctx context.Context, customerID string, ref *time.Time) (*dto.InvoicePreviewResponse, error)
	CalculatePeriod(ctx context.Context, customerID string, ref *time.Time) (dombilling.Period, error)
	ValidateCustomerForBilling(ctx context.Context, customerID string) (*dto.EligibilityResponse, error)
	RecomputeMoratoryInterest(ctx context.Context, customerID *string, asOf *time.Time) (*billing.RecomputeResult, error)
	GetPendingInterest(ctx context.Context, customerID string, cutoff *time.Time) (*billing.PendingInterest, error)
	PromoteOverdue(ctx context.Context, asOf *time.Time) (*billing.OverdueResult, error)
	CutoffServices(ctx context.Context, asOf *time.Time) (*billing.CutoffResult, error)
	PurgeRunLogs(ctx context.Context, asOf *time.Time) (*billing.PurgeResult, error)
}

var _ billingService = (*billing.Service)(nil)

const dateLayout = "2006-01-02"

// BillingHandler endpoints del motor de facturación (protegido).
type BillingHandler struct {
	svc billingService
	loc *time.Location
	log zerolog.Logger
}

// NewBillingHandler construye el handler. loc es la zona en la que se interpretan las fechas YYYY-MM-DD.
func NewBillingHandler(svc billingService, loc *time.Location, log zerolog.Logger) *BillingHandler {
	if loc == nil {
		loc = time.Local
	}
	return &BillingHandler{svc: svc, loc: loc, log: log}
}

// RunBilling corrida manual, masiva o sobre una lista de clientes. dry_run=true simula.
// POST /api/billing/runs
func (h *BillingHandler) RunBilling(c *fiber.Ctx) error {
	var in dto.RunBillingRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
		}
	}
	ref, err := h.parseDate(in.ReferenceDate)
	if err != nil {
		return badDate(c, "reference_date")
	}
	for _, id := range in.CustomerIDs {
		if _, err := uuid.Parse(id); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "customer_id inválido: " + id})
		}
	}
	if in.Workers < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "workers no puede ser negativo"})
	}

	mode := billing.RunModeManual
	if in.DryRun {
		mode = billing.RunModePreview
	}
	summary, err := h.svc.GenerateMonthlyBilling(c.UserContext(), billing.RunParams{
		Mode:          mode,
		ReferenceDate: lo.FromPtr(ref),
		CustomerIDs:   lo.Uniq(in.CustomerIDs),
		DryRun:        in.DryRun,
		Workers:       in.Workers,
	})
	if err != nil {
		return h.writeError(c, err)
	}
	h.log.Info().Str("user_id", GetUserID(c)).Str("run_id", summary.RunID).Int("invoiced", summary.Invoiced).
		Msg("corrida manual ejecutada")
	return c.JSON(summary)
}

// GenerateInvoice factura a un cliente puntual.
// POST /api/billing/customers/:id/invoices
func (h *BillingHandler) GenerateInvoice(c *fiber.Ctx) error {
	id, ok := customerParam(c)
	if !ok {
		return badCustomerID(c)
	}
	var in dto.GenerateInvoiceRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
		}
	}
	ref, err := h.parseDate(in.ReferenceDate)
	if err != nil {
		return badDate(c, "reference_date")
	}
	invoice, err := h.svc.GenerateInvoiceForCustomer(c.UserContext(), id, ref)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(invoice)
}

// Preview simula la factura sin persistir.
// GET /api/billing/customers/:id/preview?reference_date=YYYY-MM-DD
func (h *BillingHandler) Preview(c *fiber.Ctx) error {
	id, ok := customerParam(c)
	if !ok {
		return badCustomerID(c)
	}
	ref, err := h.parseDate(c.Query("reference_date"))
	if err != nil {
		return badDate(c, "reference_date")
	}
	out, err := h.svc.PreviewInvoice(c.UserContext(), id, ref)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(out)
}

// Period ventana que se facturaría.
// GET /api/billing/customers/:id/period?reference_date=YYYY-MM-DD
func (h *BillingHandler) Period(c *fiber.Ctx) error {
	id, ok := customerParam(c)
	if !ok {
		return badCustomerID(c)
	}
	ref, err := h.parseDate(c.Query("reference_date"))
	if err != nil {
		return badDate(c, "reference_date")
	}
	p, err := h.svc.CalculatePeriod(c.UserContext(), id, ref)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(dto.PeriodResponse{
		From:              p.From.Format(dateLayout),
		To:                p.To.Format(dateLayout),
		Label:             p.Label,
		DaysBilled:        p.DaysBilled,
		IsFirstInvoice:    p.IsFirstInvoice,
		IsLevelingInvoice: p.IsLevelingInvoice,
	})
}

// Eligibility valida si el cliente puede facturarse hoy.
// GET /api/billing/customers/:id/eligibility
func (h *BillingHandler) Eligibility(c *fiber.Ctx) error {
	id, ok := customerParam(c)
	if !ok {
		return badCustomerID(c)
	}
	out, err := h.svc.ValidateCustomerForBilling(c.UserContext(), id)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(out)
}

// RecomputeInterest recalcula la mora causada (un cliente o todos).
// POST /api/billing/interest/recompute
func (h *BillingHandler) RecomputeInterest(c *fiber.Ctx) error {
	var in dto.RecomputeInterestRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
		}
	}
	asOf, err := h.parseDate(in.AsOf)
	if err != nil {
		return badDate(c, "as_of")
	}
	var customerID *string
	if id := strings.TrimSpace(in.CustomerID); id != "" {
		if _, err := uuid.Parse(id); err != nil {
			return badCustomerID(c)
		}
		customerID = &id
	}
	out, err := h.svc.RecomputeMoratoryInterest(c.UserContext(), customerID, asOf)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(out)
}

// PendingInterest mora causada pendiente de cobro.
// GET /api/billing/customers/:id/pending-interest?cutoff=YYYY-MM-DD
func (h *BillingHandler) PendingInterest(c *fiber.Ctx) error {
	id, ok := customerParam(c)
	if !ok {
		return badCustomerID(c)
	}
	cutoff, err := h.parseDate(c.Query("cutoff"))
	if err != nil {
		return badDate(c, "cutoff")
	}
	out, err := h.svc.GetPendingInterest(c.UserContext(), id, cutoff)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(dto.PendingInterestResponse{
		CustomerID:   out.CustomerID,
		Cutoff:       out.Cutoff.Format(dateLayout),
		Total:        out.Total,
		InvoiceCount: out.InvoiceCount,
	})
}

// PromoteOverdue POST /api/billing/maintenance/overdue
func (h *BillingHandler) PromoteOverdue(c *fiber.Ctx) error {
	return h.maintenance(c, func(ctx context.Context, asOf *time.Time) (any, error) {
		return h.svc.PromoteOverdue(ctx, asOf)
	})
}

// CutoffServices POST /api/billing/maintenance/cutoff
func (h *BillingHandler) CutoffServices(c *fiber.Ctx) error {
	return h.maintenance(c, func(ctx context.Context, asOf *time.Time) (any, error) {
		return h.svc.CutoffServices(ctx, asOf)
	})
}

// PurgeRunLogs POST /api/billing/maintenance/log-retention
func (h *BillingHandler) PurgeRunLogs(c *fiber.Ctx) error {
	return h.maintenance(c, func(ctx context.Context, asOf *time.Time) (any, error) {
		return h.svc.PurgeRunLogs(ctx, asOf)
	})
}

func (h *BillingHandler) maintenance(c *fiber.Ctx, run func(ctx context.Context, asOf *time.Time) (any, error)) error {
	var in dto.MaintenanceRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
		}
	}
	asOf, err := h.parseDate(in.AsOf)
	if err != nil {
		return badDate(c, "as_of")
	}
	out, err := run(c.UserContext(), asOf)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(out)
}

// parseDate YYYY-MM-DD en la zona de facturación. Vacío = nil (hoy).
func (h *BillingHandler) parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, h.loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func customerParam(c *fiber.Ctx) (string, bool) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

func badCustomerID(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id de cliente inválido"})
}

func badDate(c *fiber.Ctx, field string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: field + " debe tener formato YYYY-MM-DD"})
}

// writeError traduce errores de dominio a HTTP.
func (h *BillingHandler) writeError(c *fiber.Ctx, err error) error {
	var inel *billing.IneligibleError
	switch {
	case errors.As(err, &inel):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: string(inel.Result.Code), Message: inel.Result.Reason})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos"})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "cliente no encontrado"})
	case errors.Is(err, domain.ErrDuplicatePeriod):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE_PERIOD", Message: "el cliente ya tiene factura para el periodo"})
	case errors.Is(err, domain.ErrLockNotAcquired):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "LOCKED", Message: "otro proceso está facturando al cliente"})
	case errors.Is(err, domain.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: "conflicto con el estado actual, reintente"})
	case errors.Is(err, domain.ErrNoConcepts):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "NO_CONCEPTS", Message: "no hay conceptos facturables para el periodo"})
	case errors.Is(err, domain.ErrDataIntegrity):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "DATA_INTEGRITY", Message: err.Error()})
	case errors.Is(err, domain.ErrInfrastructure):
		h.log.Error().Err(err).Str("path", c.Path()).Msg("falla de infraestructura")
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "UNAVAILABLE", Message: "servicio no disponible, intente más tarde"})
	}
	h.log.Error().Err(err).Str("path", c.Path()).Msg("error interno")
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}
