package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/isp-billing/internal/domain"
	dombilling "github.com/jhoicas/isp-billing/internal/domain/billing"
	"github.com/jhoicas/isp-billing/internal/domain/entity"
	"github.com/jhoicas/isp-billing/internal/domain/repository"
)

// PeriodService carga el historial del cliente y delega en dombilling.CalculatePeriod.
type PeriodService struct {
	customers repository.CustomerRepository
	invoices  repository.InvoiceRepository
	settings  Settings
}

// NewPeriodService construye el servicio.
func NewPeriodService(repos Repositories, settings Settings) *PeriodService {
	return &PeriodService{customers: repos.Customers, invoices: repos.Invoices, settings: settings}
}

// Calculate ventana a facturar para el cliente con fecha de referencia ref.
func (s *PeriodService) Calculate(ctx context.Context, customerID string, ref time.Time) (dombilling.Period, error) {
	customer, err := s.customers.GetByID(ctx, customerID)
	if err != nil {
		return dombilling.Period{}, fmt.Errorf("obtener cliente %s: %w", customerID, err)
	}
	if customer == nil {
		return dombilling.Period{}, domain.ErrNotFound
	}
	return s.forCustomer(ctx, customer, ref)
}

func (s *PeriodService) forCustomer(ctx context.Context, customer *entity.Customer, ref time.Time) (dombilling.Period, error) {
	if customer.ActivationDate.IsZero() {
		return dombilling.Period{}, fmt.Errorf("%w: cliente %s sin fecha de activación", domain.ErrDataIntegrity, customer.ID)
	}
	count, lastTo, err := s.invoices.PeriodHistory(ctx, customer.ID)
	if err != nil {
		return dombilling.Period{}, fmt.Errorf("historial de facturas de %s: %w", customer.ID, err)
	}
	if count > 0 && lastTo.IsZero() {
		return dombilling.Period{}, fmt.Errorf("%w: cliente %s con facturas sin periodo", domain.ErrDataIntegrity, customer.ID)
	}
	history := dombilling.PeriodHistory{Count: count, LastTo: lastTo}
	return dombilling.CalculatePeriod(customer.ActivationDate, history, s.settings.civil(ref)), nil
}
