package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/jhoicas/isp-billing/internal/application/dto"
	"github.com/jhoicas/isp-billing/internal/domain"
	dombilling "github.com/jhoicas/isp-billing/internal/domain/billing"
	"github.com/jhoicas/isp-billing/internal/domain/entity"
)

// Dependencies colaboradores del servicio de facturación.
type Dependencies struct {
	Repos     Repositories
	Tx        BillingTxRunner
	Locker    CustomerLocker // opcional
	Publisher EventPublisher // opcional
	Settings  Settings
	Logger    zerolog.Logger
	Now       func() time.Time // opcional, para pruebas
}

// Service fachada con los contratos externos del motor de facturación.
type Service struct {
	eligibility  *EligibilityValidator
	periods      *PeriodService
	interest     *InterestCalculator
	assembler    *InvoiceAssembler
	orchestrator *Orchestrator
	maintenance  *MaintenanceService
	pipeline     *pipeline
	reporter     *RunReporter
	locker       CustomerLocker
	settings     Settings
	log          zerolog.Logger
	now          func() time.Time
}

// NewService arma todos los componentes a partir de las dependencias.
func NewService(d Dependencies) *Service {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	reporter := NewRunReporter(d.Repos.RunLogs, d.Publisher, d.Logger.With().Str("component", "run_log").Logger(), now)
	interest := NewInterestCalculator(d.Repos.Invoices, reporter, d.Settings, d.Logger.With().Str("component", "intereses").Logger(), now)
	eligibility := NewEligibilityValidator(d.Repos, d.Settings, d.Logger.With().Str("component", "elegibilidad").Logger(), now)
	periods := NewPeriodService(d.Repos, d.Settings)
	concepts := NewConceptCalculator(d.Repos, interest, d.Settings)
	assembler := NewInvoiceAssembler(d.Tx, d.Settings, d.Logger.With().Str("component", "ensamblador").Logger(), now)
	p := &pipeline{eligibility: eligibility, periods: periods, concepts: concepts, assembler: assembler}

	return &Service{
		eligibility:  eligibility,
		periods:      periods,
		interest:     interest,
		assembler:    assembler,
		orchestrator: NewOrchestrator(d.Repos.Customers, p, d.Locker, reporter, d.Settings, d.Logger.With().Str("component", "orquestador").Logger(), now),
		maintenance:  NewMaintenanceService(d.Repos, d.Tx, reporter, d.Settings, d.Logger.With().Str("component", "mantenimiento").Logger(), now),
		pipeline:     p,
		reporter:     reporter,
		locker:       d.Locker,
		settings:     d.Settings,
		log:          d.Logger,
		now:          now,
	}
}

// GenerateMonthlyBilling corrida masiva (o sobre una lista de clientes).
func (s *Service) GenerateMonthlyBilling(ctx context.Context, params RunParams) (*RunSummary, error) {
	return s.orchestrator.Run(ctx, params)
}

// GenerateInvoiceForCustomer factura a un cliente fuera de la corrida masiva.
// Un cliente no elegible retorna *IneligibleError.
func (s *Service) GenerateInvoiceForCustomer(ctx context.Context, customerID string, ref *time.Time) (*dto.InvoiceResponse, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, domain.ErrInvalidInput
	}
	day := s.settings.resolveDate(ref, s.now())

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, customerID, s.settings.LockTTL)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	d, err := s.pipeline.prepare(ctx, customerID, day, false)
	if err != nil {
		return nil, err
	}
	out, err := s.pipeline.commit(ctx, d)
	if err != nil {
		return nil, err
	}
	s.reporter.Record(ctx, entity.RunIndividualInvoice, map[string]any{
		"customer_id":    customerID,
		"invoice_id":     out.InvoiceID,
		"invoice_number": out.InvoiceNumber,
		"period":         d.Period.Label,
		"total":          out.Total,
	})
	return toInvoiceResponse(d.Customer, d.Period, out.Invoice, out.Lines), nil
}

// PreviewInvoice simula la factura sin persistir. Un cliente no elegible no es
// error: se devuelve la elegibilidad sin factura.
func (s *Service) PreviewInvoice(ctx context.Context, customerID string, ref *time.Time) (*dto.InvoicePreviewResponse, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, domain.ErrInvalidInput
	}
	day := s.settings.resolveDate(ref, s.now())

	d, err := s.pipeline.prepare(ctx, customerID, day, true)
	var inel *IneligibleError
	switch {
	case errors.As(err, &inel):
		return &dto.InvoicePreviewResponse{Eligibility: toEligibilityResponse(customerID, inel.Result)}, nil
	case err != nil:
		return nil, err
	}
	inv, lines := s.assembler.Build(s.pipeline.input(d))
	inv.ID = ""
	return &dto.InvoicePreviewResponse{
		Eligibility: toEligibilityResponse(customerID, d.Eligibility),
		Invoice:     toInvoiceResponse(d.Customer, d.Period, inv, lines),
	}, nil
}

// CalculatePeriod ventana que se facturaría al cliente con fecha de referencia ref (nil = hoy).
func (s *Service) CalculatePeriod(ctx context.Context, customerID string, ref *time.Time) (dombilling.Period, error) {
	return s.periods.Calculate(ctx, strings.TrimSpace(customerID), s.settings.resolveDate(ref, s.now()))
}

// ValidateCustomerForBilling elegibilidad a la fecha de hoy.
func (s *Service) ValidateCustomerForBilling(ctx context.Context, customerID string) (*dto.EligibilityResponse, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, domain.ErrInvalidInput
	}
	res, err := s.eligibility.Validate(ctx, customerID, s.now())
	if err != nil {
		return nil, err
	}
	out := toEligibilityResponse(customerID, res)
	return &out, nil
}

// RecomputeMoratoryInterest recalcula la mora. customerID nil = todos los clientes.
func (s *Service) RecomputeMoratoryInterest(ctx context.Context, customerID *string, asOf *time.Time) (*RecomputeResult, error) {
	return s.interest.Recompute(ctx, RecomputeParams{
		CustomerID: strings.TrimSpace(lo.FromPtr(customerID)),
		AsOf:       lo.FromPtr(asOf),
	})
}

// GetPendingInterest mora causada pendiente de cobro hasta cutoff (nil = hoy).
func (s *Service) GetPendingInterest(ctx context.Context, customerID string, cutoff *time.Time) (*PendingInterest, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.interest.PendingInterest(ctx, customerID, lo.FromPtr(cutoff))
}

// PromoteOverdue tarea diaria de vencimiento.
func (s *Service) PromoteOverdue(ctx context.Context, asOf *time.Time) (*OverdueResult, error) {
	return s.maintenance.PromoteOverdue(ctx, lo.FromPtr(asOf))
}

// CutoffServices tarea diaria de corte por mora.
func (s *Service) CutoffServices(ctx context.Context, asOf *time.Time) (*CutoffResult, error) {
	return s.maintenance.CutoffServices(ctx, lo.FromPtr(asOf))
}

// PurgeRunLogs tarea semanal de retención de la bitácora.
func (s *Service) PurgeRunLogs(ctx context.Context, asOf *time.Time) (*PurgeResult, error) {
	return s.maintenance.PurgeRunLogs(ctx, lo.FromPtr(asOf))
}

const dateLayout = "2006-01-02"

func toEligibilityResponse(customerID string, r EligibilityResult) dto.EligibilityResponse {
	return dto.EligibilityResponse{CustomerID: customerID, Eligible: r.Eligible, Code: string(r.Code), Reason: r.Reason}
}

func toInvoiceResponse(c *entity.Customer, p dombilling.Period, inv *entity.Invoice, lines []*entity.InvoiceLine) *dto.InvoiceResponse {
	return &dto.InvoiceResponse{
		ID:           inv.ID,
		Number:       inv.Number,
		CustomerID:   inv.CustomerID,
		CustomerName: c.Name,
		Period: dto.PeriodResponse{
			From:              p.From.Format(dateLayout),
			To:                p.To.Format(dateLayout),
			Label:             p.Label,
			DaysBilled:        p.DaysBilled,
			IsFirstInvoice:    p.IsFirstInvoice,
			IsLevelingInvoice: p.IsLevelingInvoice,
		},
		IssueDate:       inv.IssueDate.Format(dateLayout),
		DueDate:         inv.DueDate.Format(dateLayout),
		Internet:        inv.Internet,
		TV:              inv.TV,
		PreviousBalance: inv.PreviousBalance,
		Interest:        inv.Interest,
		Reconnection:    inv.Reconnection,
		Discount:        inv.Discount,
		Misc:            inv.Misc,
		Subtotal:        inv.Subtotal,
		VAT:             inv.VAT,
		Total:           inv.Total,
		Status:          string(inv.Status),
		Lines: lo.Map(lines, func(l *entity.InvoiceLine, _ int) dto.InvoiceLineResponse {
			return dto.InvoiceLineResponse{
				Type:            string(l.Type),
				Description:     l.Description,
				Quantity:        l.Quantity,
				UnitPrice:       l.UnitPrice,
				Value:           l.Value,
				VATApplicable:   l.VATApplicable,
				VATRate:         l.VATRate,
				VATValue:        l.VATValue,
				PendingChargeID: l.PendingChargeID,
			}
		}),
	}
}
