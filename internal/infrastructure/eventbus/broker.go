// Package eventbus publica los resultados de las corridas de facturación.
package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// DefaultExchange exchange topic de eventos de facturación.
const DefaultExchange = "isp.billing.events"

// Broker transporte de mensajes ya serializados.
type Broker interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
	Close() error
}

// RabbitMQBroker publica en un exchange topic durable.
type RabbitMQBroker struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	log      zerolog.Logger
	mu       sync.Mutex
}

// NewRabbitMQBroker conecta y declara el exchange. exchange vacío usa DefaultExchange.
func NewRabbitMQBroker(url, exchange string, log zerolog.Logger) (*RabbitMQBroker, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("conectar a RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("abrir canal: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declarar exchange %s: %w", exchange, err)
	}
	log.Info().Str("exchange", exchange).Msg("RabbitMQ conectado")
	return &RabbitMQBroker{conn: conn, channel: ch, exchange: exchange, log: log}, nil
}

// Publish envía el mensaje persistente con content-type JSON.
func (b *RabbitMQBroker) Publish(ctx context.Context, routingKey string, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.channel.PublishWithContext(ctx, b.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publicar %s: %w", routingKey, err)
	}
	b.log.Debug().Str("routing_key", routingKey).Int("size", len(body)).Msg("evento publicado")
	return nil
}

// Close cierra canal y conexión.
func (b *RabbitMQBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.channel != nil {
		if err := b.channel.Close(); err != nil {
			b.log.Warn().Err(err).Msg("error cerrando canal")
		}
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

// NoopBroker solo registra; se usa cuando no hay RABBITMQ_URL.
type NoopBroker struct {
	log zerolog.Logger
}

func NewNoopBroker(log zerolog.Logger) *NoopBroker {
	return &NoopBroker{log: log}
}

func (b *NoopBroker) Publish(_ context.Context, routingKey string, body []byte) error {
	b.log.Debug().Str("routing_key", routingKey).Int("size", len(body)).Msg("noop publish")
	return nil
}

func (b *NoopBroker) Close() error { return nil }
