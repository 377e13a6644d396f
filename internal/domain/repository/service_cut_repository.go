package repository

import (
	"context"
	"time"

	"github.com/jhoicas/isp-billing/internal/domain/entity"
)

// ServiceCutRepository cortes de servicio por mora.
type ServiceCutRepository interface {
	// FindUnreconnectedBetween último corte sin reconexión con from ≤ cut_at < to. nil si no hay.
	FindUnreconnectedBetween(ctx context.Context, customerID string, from, to time.Time) (*entity.ServiceCut, error)
	Create(ctx context.Context, cut *entity.ServiceCut) error
}
