package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/isp-billing/internal/domain"
	"github.com/jhoicas/isp-billing/internal/domain/entity"
	"github.com/jhoicas/isp-billing/internal/domain/repository"
)

var _ repository.OperatorRepository = (*OperatorRepo)(nil)

// OperatorRepo operadores del back-office.
type OperatorRepo struct {
	q Querier
}

// NewOperatorRepository construye el adaptador. Pasar pool o tx (Querier).
func NewOperatorRepository(q Querier) *OperatorRepo {
	return &OperatorRepo{q: q}
}

// Create persiste el operador.
func (r *OperatorRepo) Create(ctx context.Context, op *entity.Operator) error {
	query := `
		INSERT INTO operators (id, email, name, password_hash, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, query,
		op.ID, op.Email, op.Name, op.PasswordHash, op.Role, op.Status, op.CreatedAt, op.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailAlreadyExists
		}
		return fmt.Errorf("insert operator: %w", err)
	}
	return nil
}

// GetByEmail obtiene un operador por email. nil, nil si no existe.
func (r *OperatorRepo) GetByEmail(ctx context.Context, email string) (*entity.Operator, error) {
	query := `
		SELECT id, email, name, password_hash, role, status, created_at, updated_at
		FROM operators WHERE email = $1`
	var op entity.Operator
	err := r.q.QueryRow(ctx, query, email).Scan(
		&op.ID, &op.Email, &op.Name, &op.PasswordHash, &op.Role, &op.Status, &op.CreatedAt, &op.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get operator by email: %w", err)
	}
	return &op, nil
}
