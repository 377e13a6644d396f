package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/isp-billing/internal/application/billing"
)

var _ billing.BillingTxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunBilling inicia una transacción con los repos de facturación atados a ella y hace Commit o Rollback.
func (r *TxRunner) RunBilling(ctx context.Context, fn func(tx billing.TxRepositories) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	repos := billing.TxRepositories{
		Customers:     NewCustomerRepository(tx),
		Subscriptions: NewSubscriptionRepository(tx),
		Invoices:      NewInvoiceRepository(tx),
		Charges:       NewPendingChargeRepository(tx),
		Cuts:          NewServiceCutRepository(tx),
	}
	if err := fn(repos); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Repositories repos sobre el pool para el servicio de facturación.
func Repositories(pool *pgxpool.Pool) billing.Repositories {
	return billing.Repositories{
		Customers:     NewCustomerRepository(pool),
		Subscriptions: NewSubscriptionRepository(pool),
		Invoices:      NewInvoiceRepository(pool),
		Charges:       NewPendingChargeRepository(pool),
		Cuts:          NewServiceCutRepository(pool),
		RunLogs:       NewRunLogRepository(pool),
	}
}
