package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/isp-billing/internal/domain/entity"
	"github.com/jhoicas/isp-billing/internal/domain/repository"
)

var _ repository.ServiceCutRepository = (*ServiceCutRepo)(nil)

// ServiceCutRepo cortes de servicio por mora.
type ServiceCutRepo struct {
	q Querier
}

// NewServiceCutRepository construye el adaptador. Pasar pool o tx (Querier).
func NewServiceCutRepository(q Querier) *ServiceCutRepo {
	return &ServiceCutRepo{q: q}
}

// FindUnreconnectedBetween último corte sin reconexión en [from, to). nil, nil si no hay.
func (r *ServiceCutRepo) FindUnreconnectedBetween(ctx context.Context, customerID string, from, to time.Time) (*entity.ServiceCut, error) {
	query := `
		SELECT id, customer_id, subscription_id, cut_at, reconnected_at, reason
		FROM service_cuts
		WHERE customer_id = $1 AND reconnected_at IS NULL AND cut_at >= $2 AND cut_at < $3
		ORDER BY cut_at DESC
		LIMIT 1`
	var c entity.ServiceCut
	err := r.q.QueryRow(ctx, query, customerID, from, to).Scan(
		&c.ID, &c.CustomerID, &c.SubscriptionID, &c.CutAt, &c.ReconnectedAt, &c.Reason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find service cut: %w", err)
	}
	return &c, nil
}

// Create registra el corte.
func (r *ServiceCutRepo) Create(ctx context.Context, cut *entity.ServiceCut) error {
	if cut.ID == "" {
		cut.ID = uuid.New().String()
	}
	query := `
		INSERT INTO service_cuts (id, customer_id, subscription_id, cut_at, reconnected_at, reason)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.q.Exec(ctx, query,
		cut.ID, cut.CustomerID, cut.SubscriptionID, cut.CutAt, cut.ReconnectedAt, cut.Reason,
	); err != nil {
		return fmt.Errorf("insert service cut: %w", err)
	}
	return nil
}
