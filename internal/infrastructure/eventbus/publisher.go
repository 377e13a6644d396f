package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/jhoicas/isp-billing/internal/application/billing"
)

var _ billing.EventPublisher = (*Publisher)(nil)

// ErrCircuitOpen el broker falló repetidamente y se dejó de intentar por un tiempo.
var ErrCircuitOpen = errors.New("eventbus: circuito abierto")

// BreakerConfig umbrales del circuit breaker del publisher.
type BreakerConfig struct {
	FailureThreshold uint32        // fallos consecutivos para abrir
	Timeout          time.Duration // tiempo abierto antes de probar (half-open)
	MaxRequests      uint32        // solicitudes permitidas en half-open
}

// DefaultBreakerConfig 5 fallos seguidos abren el circuito por 30s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, Timeout: 30 * time.Second, MaxRequests: 1}
}

// Publisher serializa a JSON y publica a través del broker protegido por un circuit breaker,
// para que una caída de RabbitMQ no frene cada corrida esperando timeouts.
type Publisher struct {
	broker  Broker
	breaker *gobreaker.CircuitBreaker[struct{}]
	log     zerolog.Logger
}

// NewPublisher construye el publisher sobre broker.
func NewPublisher(broker Broker, cfg BreakerConfig, log zerolog.Logger) *Publisher {
	if cfg.FailureThreshold == 0 {
		cfg = DefaultBreakerConfig()
	}
	settings := gobreaker.Settings{
		Name:        "eventbus",
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker cambió de estado")
		},
	}
	return &Publisher{
		broker:  broker,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
		log:     log,
	}
}

// Publish serializa payload (json.RawMessage pasa tal cual) y lo envía.
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("serializar evento %s: %w", routingKey, err)
	}
	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.broker.Publish(ctx, routingKey, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("publicar %s: %w", routingKey, ErrCircuitOpen)
	}
	return err
}

// State estado actual del circuito (closed, half-open, open).
func (p *Publisher) State() string {
	return p.breaker.State().String()
}

// Close cierra el broker.
func (p *Publisher) Close() error {
	return p.broker.Close()
}
