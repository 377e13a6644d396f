package repository

import (
	"context"
	"time"

	"github.com/jhoicas/isp-billing/internal/domain/entity"
)

// PendingChargeRepository cargos pendientes (traslados, equipos, varios).
type PendingChargeRepository interface {
	// ListUnbilledByCustomer cargos sin facturar con fecha efectiva ≤ upTo.
	ListUnbilledByCustomer(ctx context.Context, customerID string, upTo time.Time) ([]*entity.PendingCharge, error)
	// MarkBilled marca los cargos como facturados. Si alguno ya estaba facturado
	// retorna domain.ErrConflict (otro proceso lo consumió).
	MarkBilled(ctx context.Context, ids []string, invoiceID string) error
}
