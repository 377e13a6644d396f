package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/isp-billing/internal/domain/entity"
	"github.com/jhoicas/isp-billing/internal/domain/repository"
)

var _ repository.SubscriptionRepository = (*SubscriptionRepo)(nil)

// SubscriptionRepo servicios contratados con su plan.
type SubscriptionRepo struct {
	q Querier
}

// NewSubscriptionRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSubscriptionRepository(q Querier) *SubscriptionRepo {
	return &SubscriptionRepo{q: q}
}

func scanSubscriptions(rows pgx.Rows) ([]*entity.ServiceSubscription, error) {
	defer rows.Close()
	var out []*entity.ServiceSubscription
	for rows.Next() {
		var (
			s      entity.ServiceSubscription
			p      entity.Plan
			custom *decimal.Decimal
		)
		if err := rows.Scan(
			&s.ID, &s.CustomerID, &s.PlanID, &s.ActivationDate, &s.Status, &s.RequiresInstallation, &custom,
			&p.ID, &p.Name, &p.Price, &p.ServiceType, &p.PermanenceMonths, &p.InstallationFee,
			&p.VATApplicable, &p.VATRate,
		); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		s.CustomPrice = custom
		s.Plan = &p
		out = append(out, &s)
	}
	return out, rows.Err()
}

// ListActiveByCustomer servicios activos del cliente, con el plan cargado.
func (r *SubscriptionRepo) ListActiveByCustomer(ctx context.Context, customerID string) ([]*entity.ServiceSubscription, error) {
	query := `
		SELECT s.id, s.customer_id, s.plan_id, s.activation_date, s.status, s.requires_installation, s.custom_price,
		       p.id, p.name, p.price, p.service_type, p.permanence_months, p.installation_fee,
		       p.vat_applicable, p.vat_rate
		FROM service_subscriptions s
		JOIN plans p ON p.id = s.plan_id
		WHERE s.customer_id = $1 AND s.status = 'active'
		ORDER BY s.activation_date, s.id`
	rows, err := r.q.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("list active subscriptions: %w", err)
	}
	return scanSubscriptions(rows)
}

// CutActiveByCustomer marca como cortados los servicios activos y los devuelve.
func (r *SubscriptionRepo) CutActiveByCustomer(ctx context.Context, customerID string) ([]*entity.ServiceSubscription, error) {
	query := `
		WITH cut AS (
			UPDATE service_subscriptions
			SET status = 'cut', updated_at = NOW()
			WHERE customer_id = $1 AND status = 'active'
			RETURNING id, customer_id, plan_id, activation_date, status, requires_installation, custom_price
		)
		SELECT s.id, s.customer_id, s.plan_id, s.activation_date, s.status, s.requires_installation, s.custom_price,
		       p.id, p.name, p.price, p.service_type, p.permanence_months, p.installation_fee,
		       p.vat_applicable, p.vat_rate
		FROM cut s
		JOIN plans p ON p.id = s.plan_id
		ORDER BY s.id`
	rows, err := r.q.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("cut subscriptions: %w", err)
	}
	return scanSubscriptions(rows)
}
