package billing

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/isp-billing/internal/domain"
	"github.com/jhoicas/isp-billing/internal/domain/entity"
	"github.com/jhoicas/isp-billing/internal/domain/repository"
)

// RunMode origen de la corrida.
type RunMode string

const (
	RunModeMonthly RunMode = "monthly" // disparador programado
	RunModeManual  RunMode = "manual"  // back-office, opcionalmente con lista de clientes
	RunModePreview RunMode = "preview" // simulación, no persiste
)

// RunParams parámetros de una corrida. ReferenceDate cero = hoy; Workers 0 = configurado.
type RunParams struct {
	Mode          RunMode
	ReferenceDate time.Time
	CustomerIDs   []string
	DryRun        bool
	Workers       int
}

// ResultStatus desenlace por cliente.
type ResultStatus string

const (
	StatusInvoiced ResultStatus = "invoiced"
	StatusSkipped  ResultStatus = "skipped"
	StatusError    ResultStatus = "error"
)

// CustomerResult detalle de la corrida para un cliente.
type CustomerResult struct {
	CustomerID    string          `json:"customer_id"`
	CustomerName  string          `json:"customer_name,omitempty"`
	Status        ResultStatus    `json:"status"`
	Code          string          `json:"code,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	InvoiceID     string          `json:"invoice_id,omitempty"`
	InvoiceNumber int64           `json:"invoice_number,omitempty"`
	Period        string          `json:"period,omitempty"`
	Total         decimal.Decimal `json:"total"`
}

// RunSummary resumen de la corrida; se guarda en la bitácora y se devuelve al disparador.
type RunSummary struct {
	RunID         string           `json:"run_id"`
	Mode          RunMode          `json:"mode"`
	DryRun        bool             `json:"dry_run"`
	ReferenceDate time.Time        `json:"reference_date"`
	StartedAt     time.Time        `json:"started_at"`
	FinishedAt    time.Time        `json:"finished_at"`
	Processed     int              `json:"processed"`
	Invoiced      int              `json:"invoiced"`
	Skipped       int              `json:"skipped"`
	Errored       int              `json:"errored"`
	TotalBilled   decimal.Decimal  `json:"total_billed"`
	Results       []CustomerResult `json:"results"`
}

// Orchestrator recorre los candidatos y aísla las fallas por cliente.
type Orchestrator struct {
	customers repository.CustomerRepository
	pipeline  *pipeline
	locker    CustomerLocker
	reporter  *RunReporter
	settings  Settings
	log       zerolog.Logger
	now       func() time.Time
}

// NewOrchestrator construye el orquestador. locker puede ser nil (sin bloqueo distribuido).
func NewOrchestrator(customers repository.CustomerRepository, p *pipeline, locker CustomerLocker, reporter *RunReporter, settings Settings, log zerolog.Logger, now func() time.Time) *Orchestrator {
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		customers: customers,
		pipeline:  p,
		locker:    locker,
		reporter:  reporter,
		settings:  settings,
		log:       log,
		now:       now,
	}
}

// Run ejecuta la corrida. Solo retorna error si no se pueden listar los candidatos;
// las fallas por cliente quedan en el resumen.
func (o *Orchestrator) Run(ctx context.Context, params RunParams) (*RunSummary, error) {
	if params.Mode == "" {
		params.Mode = RunModeManual
	}
	if params.Mode == RunModePreview {
		params.DryRun = true
	}
	ref := o.settings.resolveDate(&params.ReferenceDate, o.now())
	summary := &RunSummary{
		RunID:         uuid.New().String(),
		Mode:          params.Mode,
		DryRun:        params.DryRun,
		ReferenceDate: ref,
		StartedAt:     o.now(),
		TotalBilled:   decimal.Zero,
	}
	log := o.log.With().Str("run_id", summary.RunID).Str("mode", string(params.Mode)).Logger()
	log.Info().Time("reference_date", ref).Bool("dry_run", params.DryRun).Msg("inicia corrida de facturación")

	candidates, err := o.customers.ListBillingCandidates(ctx, params.CustomerIDs)
	if err != nil {
		log.Error().Err(err).Msg("corrida abortada: no se pudieron listar los candidatos")
		return nil, fmt.Errorf("%w: listar candidatos: %w", domain.ErrInfrastructure, err)
	}

	results := make([]CustomerResult, 0, len(candidates)+len(params.CustomerIDs))
	found := lo.SliceToMap(candidates, func(c *entity.Customer) (string, bool) { return c.ID, true })
	for _, id := range lo.Uniq(params.CustomerIDs) {
		if !found[id] {
			results = append(results, CustomerResult{
				CustomerID: id, Status: StatusSkipped, Code: string(IneligibleNotFound), Reason: "cliente no encontrado", Total: decimal.Zero,
			})
		}
	}

	processed := make([]CustomerResult, len(candidates))
	workers := params.Workers
	if workers <= 0 {
		workers = o.settings.Workers
	}
	if workers <= 1 {
		for i, c := range candidates {
			processed[i] = o.processCustomer(ctx, log, c, ref, params.DryRun)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(workers)
		for i, c := range candidates {
			g.Go(func() error {
				processed[i] = o.processCustomer(ctx, log, c, ref, params.DryRun)
				return nil
			})
		}
		_ = g.Wait()
	}
	results = append(results, processed...)

	summary.Results = results
	for _, r := range results {
		summary.Processed++
		switch r.Status {
		case StatusInvoiced:
			summary.Invoiced++
			summary.TotalBilled = summary.TotalBilled.Add(r.Total)
		case StatusSkipped:
			summary.Skipped++
		default:
			summary.Errored++
		}
	}
	summary.FinishedAt = o.now()

	log.Info().
		Int("processed", summary.Processed).
		Int("invoiced", summary.Invoiced).
		Int("skipped", summary.Skipped).
		Int("errored", summary.Errored).
		Str("total_billed", summary.TotalBilled.String()).
		Dur("elapsed", summary.FinishedAt.Sub(summary.StartedAt)).
		Msg("corrida de facturación terminada")

	if !params.DryRun {
		o.reporter.Record(ctx, entity.RunMonthlyBilling, summary)
	}
	return summary, nil
}

// processCustomer nunca entra en pánico ni retorna error: todo queda en el resultado.
func (o *Orchestrator) processCustomer(ctx context.Context, log zerolog.Logger, c *entity.Customer, ref time.Time, dryRun bool) (res CustomerResult) {
	res = CustomerResult{CustomerID: c.ID, CustomerName: c.Name, Total: decimal.Zero}
	clog := log.With().Str("customer_id", c.ID).Logger()

	defer func() {
		if r := recover(); r != nil {
			clog.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("pánico facturando cliente")
			res.Status = StatusError
			res.Reason = fmt.Sprintf("pánico: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		res.Status = StatusError
		res.Reason = "corrida cancelada: " + err.Error()
		return res
	}

	if o.locker != nil && !dryRun {
		unlock, err := o.locker.Lock(ctx, c.ID, o.settings.LockTTL)
		if err != nil {
			return o.classify(clog, res, err)
		}
		defer unlock()
	}

	d, err := o.pipeline.prepare(ctx, c.ID, ref, dryRun)
	if err != nil {
		return o.classify(clog, res, err)
	}
	res.Period = d.Period.Label
	if dryRun {
		inv, _ := o.pipeline.assembler.Build(o.pipeline.input(d))
		res.Status = StatusInvoiced
		res.Total = inv.Total
		return res
	}

	out, err := o.pipeline.commit(ctx, d)
	if err != nil {
		return o.classify(clog, res, err)
	}
	res.Status = StatusInvoiced
	res.InvoiceID = out.InvoiceID
	res.InvoiceNumber = out.InvoiceNumber
	res.Total = out.Total
	return res
}

// classify separa los rechazos esperados (omitidos) de las fallas.
func (o *Orchestrator) classify(log zerolog.Logger, res CustomerResult, err error) CustomerResult {
	var inel *IneligibleError
	switch {
	case errors.As(err, &inel):
		res.Status = StatusSkipped
		res.Code = string(inel.Result.Code)
		res.Reason = inel.Result.Reason
	case errors.Is(err, domain.ErrNoConcepts),
		errors.Is(err, domain.ErrDuplicatePeriod),
		errors.Is(err, domain.ErrLockNotAcquired):
		res.Status = StatusSkipped
		res.Reason = err.Error()
	default:
		res.Status = StatusError
		res.Reason = err.Error()
		log.Error().Err(err).Msg("error facturando cliente")
		return res
	}
	log.Debug().Str("reason", res.Reason).Msg("cliente omitido")
	return res
}
