package billing

import (
	"context"
	"time"

	"github.com/jhoicas/isp-billing/internal/domain/repository"
)

// TxRepositories repositorios atados a una misma transacción.
type TxRepositories struct {
	Customers     repository.CustomerRepository
	Subscriptions repository.SubscriptionRepository
	Invoices      repository.InvoiceRepository
	Charges       repository.PendingChargeRepository
	Cuts          repository.ServiceCutRepository
}

// Repositories repositorios sobre el pool, para lecturas y escrituras de una sola sentencia.
type Repositories struct {
	Customers     repository.CustomerRepository
	Subscriptions repository.SubscriptionRepository
	Invoices      repository.InvoiceRepository
	Charges       repository.PendingChargeRepository
	Cuts          repository.ServiceCutRepository
	RunLogs       repository.RunLogRepository
}

// BillingTxRunner ejecuta fn en una transacción: commit si retorna nil, rollback en cualquier otro caso.
type BillingTxRunner interface {
	RunBilling(ctx context.Context, fn func(tx TxRepositories) error) error
}

// CustomerLocker bloqueo por cliente entre procesos. Si otro proceso lo tiene
// retorna domain.ErrLockNotAcquired.
type CustomerLocker interface {
	Lock(ctx context.Context, customerID string, ttl time.Duration) (unlock func(), err error)
}

// EventPublisher notifica resultados de corridas (RabbitMQ o noop).
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}
