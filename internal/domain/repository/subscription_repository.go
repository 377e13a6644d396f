package repository

import (
	"context"

	"github.com/jhoicas/isp-billing/internal/domain/entity"
)

// SubscriptionRepository servicios contratados (con el plan cargado por JOIN).
type SubscriptionRepository interface {
	ListActiveByCustomer(ctx context.Context, customerID string) ([]*entity.ServiceSubscription, error)
	// CutActiveByCustomer pasa a "cut" los servicios activos y devuelve los afectados.
	CutActiveByCustomer(ctx context.Context, customerID string) ([]*entity.ServiceSubscription, error)
}
