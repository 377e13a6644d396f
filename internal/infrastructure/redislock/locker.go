// Package redislock bloqueo por cliente entre réplicas del motor de facturación.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jhoicas/isp-billing/internal/application/billing"
	"github.com/jhoicas/isp-billing/internal/domain"
)

var _ billing.CustomerLocker = (*Locker)(nil)

// DefaultPrefix espacio de llaves de los bloqueos.
const DefaultPrefix = "isp-billing:lock:customer:"

// release borra la llave solo si el token sigue siendo el nuestro; si el TTL
// venció y otro proceso la tomó, no se toca.
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker SET NX con TTL por cliente.
type Locker struct {
	client redis.UniversalClient
	prefix string
	log    zerolog.Logger
}

// New construye el locker. prefix vacío usa DefaultPrefix.
func New(client redis.UniversalClient, prefix string, log zerolog.Logger) *Locker {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Locker{client: client, prefix: prefix, log: log}
}

// Key llave de Redis para el cliente.
func (l *Locker) Key(customerID string) string {
	return l.prefix + customerID
}

// Lock toma el bloqueo del cliente por ttl. Si otro proceso lo tiene retorna
// domain.ErrLockNotAcquired. La función devuelta libera el bloqueo y es segura
// de llamar más de una vez.
func (l *Locker) Lock(ctx context.Context, customerID string, ttl time.Duration) (func(), error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("redis lock: ttl %s: %w", ttl, domain.ErrInvalidInput)
	}
	key := l.Key(customerID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lock %s: %w", key, errors.Join(domain.ErrInfrastructure, err))
	}
	if !ok {
		return nil, domain.ErrLockNotAcquired
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// El ctx de la operación puede estar cancelado; la liberación usa el suyo.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := release.Run(rctx, l.client, []string{key}, token).Err(); err != nil {
			l.log.Warn().Err(err).Str("key", key).Msg("no se pudo liberar el bloqueo; vencerá por TTL")
		}
	}, nil
}

// Ping verifica la conexión.
func (l *Locker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
