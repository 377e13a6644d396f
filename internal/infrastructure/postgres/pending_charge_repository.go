package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/isp-billing/internal/domain"
	"github.com/jhoicas/isp-billing/internal/domain/entity"
	"github.com/jhoicas/isp-billing/internal/domain/repository"
)

var _ repository.PendingChargeRepository = (*PendingChargeRepo)(nil)

// PendingChargeRepo cargos por facturar (traslados, equipos, varios).
type PendingChargeRepo struct {
	q Querier
}

// NewPendingChargeRepository construye el adaptador. Pasar pool o tx (Querier).
func NewPendingChargeRepository(q Querier) *PendingChargeRepo {
	return &PendingChargeRepo{q: q}
}

// ListUnbilledByCustomer cargos sin facturar con fecha efectiva ≤ upTo.
func (r *PendingChargeRepo) ListUnbilledByCustomer(ctx context.Context, customerID string, upTo time.Time) ([]*entity.PendingCharge, error) {
	query := `
		SELECT id, customer_id, kind, description, amount, vat_applicable, vat_rate,
		       effective_date, billed, billed_invoice_id, created_at
		FROM pending_charges
		WHERE customer_id = $1 AND NOT billed AND effective_date <= $2
		ORDER BY effective_date, created_at`
	rows, err := r.q.Query(ctx, query, customerID, dateOnly(upTo))
	if err != nil {
		return nil, fmt.Errorf("list pending charges: %w", err)
	}
	defer rows.Close()

	var out []*entity.PendingCharge
	for rows.Next() {
		var (
			ch        entity.PendingCharge
			invoiceID *string
		)
		if err := rows.Scan(
			&ch.ID, &ch.CustomerID, &ch.Kind, &ch.Description, &ch.Amount, &ch.VATApplicable, &ch.VATRate,
			&ch.EffectiveDate, &ch.Billed, &invoiceID, &ch.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan pending charge: %w", err)
		}
		ch.BilledInvoiceID = derefStr(invoiceID)
		out = append(out, &ch)
	}
	return out, rows.Err()
}

// MarkBilled marca los cargos como facturados por invoiceID. Si alguno ya estaba
// facturado devuelve ErrConflict y la transacción debe revertirse.
func (r *PendingChargeRepo) MarkBilled(ctx context.Context, ids []string, invoiceID string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `
		UPDATE pending_charges
		SET billed = TRUE, billed_invoice_id = $2
		WHERE id = ANY($1::text[]::uuid[]) AND NOT billed`
	tag, err := r.q.Exec(ctx, query, ids, invoiceID)
	if err != nil {
		return fmt.Errorf("mark charges billed: %w", err)
	}
	if tag.RowsAffected() != int64(len(ids)) {
		return fmt.Errorf("mark charges billed: %d de %d: %w", tag.RowsAffected(), len(ids), domain.ErrConflict)
	}
	return nil
}
