package repository

import (
	"context"

	"github.com/jhoicas/isp-billing/internal/domain/entity"
)

// OperatorRepository define el puerto de persistencia para Operator.
type OperatorRepository interface {
	// Create retorna domain.ErrEmailAlreadyExists si el email ya existe.
	Create(ctx context.Context, op *entity.Operator) error
	// GetByEmail nil, nil si no existe.
	GetByEmail(ctx context.Context, email string) (*entity.Operator, error)
}
