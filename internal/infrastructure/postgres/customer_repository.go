package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/isp-billing/internal/domain"
	"github.com/jhoicas/isp-billing/internal/domain/entity"
	"github.com/jhoicas/isp-billing/internal/domain/repository"
)

var _ repository.CustomerRepository = (*CustomerRepo)(nil)

// CustomerRepo implementación de CustomerRepository (usable con pool o tx).
type CustomerRepo struct {
	q Querier
}

// NewCustomerRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCustomerRepository(q Querier) *CustomerRepo {
	return &CustomerRepo{q: q}
}

const customerColumns = `c.id, c.name, c.tax_id, c.activation_date, c.status, c.in_mora, c.mora_since,
		       c.observations, c.created_at, c.updated_at`

func scanCustomer(row pgx.Row) (*entity.Customer, error) {
	var c entity.Customer
	err := row.Scan(
		&c.ID, &c.Name, &c.TaxID, &c.ActivationDate, &c.Status, &c.InMora, &c.MoraSince,
		&c.Observations, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByID obtiene un cliente por ID. nil si no existe.
func (r *CustomerRepo) GetByID(ctx context.Context, id string) (*entity.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers c WHERE c.id = $1`
	c, err := scanCustomer(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

// ListBillingCandidates clientes activos con servicio activo, o los ids pedidos.
func (r *CustomerRepo) ListBillingCandidates(ctx context.Context, ids []string) ([]*entity.Customer, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if len(ids) > 0 {
		query := `SELECT ` + customerColumns + ` FROM customers c
			WHERE c.id = ANY($1::text[]::uuid[])
			ORDER BY c.id`
		rows, err = r.q.Query(ctx, query, ids)
	} else {
		query := `SELECT ` + customerColumns + ` FROM customers c
			WHERE c.status = 'active'
			  AND EXISTS (SELECT 1 FROM service_subscriptions s
			              WHERE s.customer_id = c.id AND s.status = 'active')
			ORDER BY c.id`
		rows, err = r.q.Query(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("list billing candidates: %w", err)
	}
	defer rows.Close()

	var out []*entity.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateStatus cambia el estado y agrega la observación al final de la bitácora.
func (r *CustomerRepo) UpdateStatus(ctx context.Context, id string, status entity.CustomerStatus, observation string) error {
	if !status.Valid() {
		return domain.ErrInvalidInput
	}
	query := `
		UPDATE customers
		SET status       = $2,
		    observations = CASE WHEN observations = '' THEN $3 ELSE observations || E'\n' || $3 END,
		    updated_at   = NOW()
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query, id, string(status), observation)
	if err != nil {
		return fmt.Errorf("update customer status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkInMora activa in_mora; mora_since conserva la fecha más antigua.
func (r *CustomerRepo) MarkInMora(ctx context.Context, ids []string, since time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query := `
		UPDATE customers
		SET in_mora    = TRUE,
		    mora_since = COALESCE(mora_since, $2),
		    updated_at = NOW()
		WHERE id = ANY($1::text[]::uuid[])`
	if _, err := r.q.Exec(ctx, query, ids, dateOnly(since)); err != nil {
		return fmt.Errorf("mark customers in mora: %w", err)
	}
	return nil
}
