package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPSink publishes lifecycle events to a topic exchange with routing key ride.<event>.
type AMQPSink struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string

	// amqp channels are not safe for concurrent publishing.
	mu sync.Mutex
}

// NewAMQPSink dials url and declares the exchange.
func NewAMQPSink(url, exchange string) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &AMQPSink{conn: conn, ch: ch, exchange: exchange}, nil
}

func (a *AMQPSink) Name() string { return "amqp" }

// Write publishes e as a persistent JSON message.
func (a *AMQPSink) Write(ctx context.Context, e LifecycleEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	return a.ch.PublishWithContext(ctx, a.exchange, RoutingKey(e), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.Key(),
		Timestamp:    e.OccurredAt,
		Body:         body,
	})
}

// Close closes the channel and the connection.
func (a *AMQPSink) Close() error {
	if a.ch != nil {
		_ = a.ch.Close()
	}
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}

// RoutingKey returns the topic routing key for e.
func RoutingKey(e LifecycleEvent) string {
	return "ride." + e.Name
}
