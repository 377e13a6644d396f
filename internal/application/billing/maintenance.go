package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/isp-billing/internal/domain"
	dombilling "github.com/jhoicas/isp-billing/internal/domain/billing"
	"github.com/jhoicas/isp-billing/internal/domain/entity"
)

// OverdueResult resultado de la promoción diaria a vencidas.
type OverdueResult struct {
	AsOf            time.Time `json:"as_of"`
	Promoted        int64     `json:"promoted"`
	CustomersInMora int       `json:"customers_in_mora"`
}

// CutoffDetail corte aplicado a un cliente.
type CutoffDetail struct {
	CustomerID       string   `json:"customer_id"`
	WorstDaysOverdue int      `json:"worst_days_overdue"`
	SubscriptionIDs  []string `json:"subscription_ids,omitempty"`
	Error            string   `json:"error,omitempty"`
}

// CutoffResult resultado del corte diario por mora.
type CutoffResult struct {
	AsOf        time.Time      `json:"as_of"`
	MinDays     int            `json:"min_days"`
	Customers   int            `json:"customers"`
	ServicesCut int            `json:"services_cut"`
	Errored     int            `json:"errored"`
	Details     []CutoffDetail `json:"details"`
}

// PurgeResult resultado de la retención de la bitácora.
type PurgeResult struct {
	Before  time.Time `json:"before"`
	Deleted int64     `json:"deleted"`
}

// MaintenanceService tareas diarias y semanales alrededor de la facturación.
type MaintenanceService struct {
	repos    Repositories
	tx       BillingTxRunner
	reporter *RunReporter
	settings Settings
	log      zerolog.Logger
	now      func() time.Time
}

// NewMaintenanceService construye el servicio.
func NewMaintenanceService(repos Repositories, tx BillingTxRunner, reporter *RunReporter, settings Settings, log zerolog.Logger, now func() time.Time) *MaintenanceService {
	if now == nil {
		now = time.Now
	}
	return &MaintenanceService{repos: repos, tx: tx, reporter: reporter, settings: settings, log: log, now: now}
}

// PromoteOverdue pasa a overdue las facturas pending vencidas y marca a sus clientes en mora.
func (m *MaintenanceService) PromoteOverdue(ctx context.Context, asOf time.Time) (*OverdueResult, error) {
	asOf = m.settings.resolveDate(&asOf, m.now())
	promoted, customerIDs, err := m.repos.Invoices.PromoteOverdue(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("promover facturas vencidas: %w", err)
	}
	if len(customerIDs) > 0 {
		if err := m.repos.Customers.MarkInMora(ctx, customerIDs, asOf); err != nil {
			return nil, fmt.Errorf("marcar clientes en mora: %w", err)
		}
	}
	res := &OverdueResult{AsOf: asOf, Promoted: promoted, CustomersInMora: len(customerIDs)}
	m.log.Info().Int64("promoted", promoted).Int("customers", len(customerIDs)).Msg("facturas promovidas a vencidas")
	m.reporter.Record(ctx, entity.RunOverduePromotion, res)
	return res, nil
}

// CutoffServices corta los servicios activos de los clientes con mora ≥ MoraCutoffDays.
// Cada cliente va en su propia transacción; una falla no detiene a los demás.
func (m *MaintenanceService) CutoffServices(ctx context.Context, asOf time.Time) (*CutoffResult, error) {
	asOf = m.settings.resolveDate(&asOf, m.now())
	morosos, err := m.repos.Invoices.ListMoraCustomers(ctx, m.settings.MoraCutoffDays, asOf)
	if err != nil {
		return nil, fmt.Errorf("%w: listar clientes en mora: %w", domain.ErrInfrastructure, err)
	}

	res := &CutoffResult{AsOf: asOf, MinDays: m.settings.MoraCutoffDays, Details: make([]CutoffDetail, 0, len(morosos))}
	cutAt := m.now()
	for _, cm := range morosos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		detail := CutoffDetail{CustomerID: cm.CustomerID, WorstDaysOverdue: cm.WorstDaysOverdue}
		reason := fmt.Sprintf("Corte por mora de %d días", cm.WorstDaysOverdue)
		err := m.tx.RunBilling(ctx, func(tx TxRepositories) error {
			subs, err := tx.Subscriptions.CutActiveByCustomer(ctx, cm.CustomerID)
			if err != nil {
				return err
			}
			for _, sub := range subs {
				cut := &entity.ServiceCut{
					ID:             uuid.New().String(),
					CustomerID:     cm.CustomerID,
					SubscriptionID: sub.ID,
					CutAt:          cutAt,
					Reason:         reason,
				}
				if err := tx.Cuts.Create(ctx, cut); err != nil {
					return err
				}
				detail.SubscriptionIDs = append(detail.SubscriptionIDs, sub.ID)
			}
			if len(subs) == 0 {
				return nil
			}
			return tx.Customers.MarkInMora(ctx, []string{cm.CustomerID}, asOf)
		})
		if err != nil {
			m.log.Error().Err(err).Str("customer_id", cm.CustomerID).Msg("no se pudo cortar el servicio")
			detail.SubscriptionIDs = nil
			detail.Error = err.Error()
			res.Errored++
		} else if len(detail.SubscriptionIDs) > 0 {
			res.Customers++
			res.ServicesCut += len(detail.SubscriptionIDs)
		}
		res.Details = append(res.Details, detail)
	}

	m.log.Info().Int("customers", res.Customers).Int("services", res.ServicesCut).Msg("corte de servicios por mora")
	m.reporter.Record(ctx, entity.RunServiceCutoff, res)
	return res, nil
}

// PurgeRunLogs elimina las entradas de bitácora anteriores a la retención configurada.
func (m *MaintenanceService) PurgeRunLogs(ctx context.Context, asOf time.Time) (*PurgeResult, error) {
	asOf = m.settings.resolveDate(&asOf, m.now())
	before := dombilling.AddDays(asOf, -m.settings.LogRetentionDays)
	deleted, err := m.repos.RunLogs.DeleteOlderThan(ctx, before)
	if err != nil {
		return nil, fmt.Errorf("purgar bitácora: %w", err)
	}
	res := &PurgeResult{Before: before, Deleted: deleted}
	m.log.Info().Int64("deleted", deleted).Time("before", before).Msg("retención de bitácora aplicada")
	m.reporter.Record(ctx, entity.RunLogRetention, res)
	return res, nil
}
