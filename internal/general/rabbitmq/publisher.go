package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bus-boarding/internal/ports"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

var (
	ErrNotConnected = errors.New("rabbitmq: connection is not open")
	ErrNacked       = errors.New("rabbitmq: publish not acknowledged")
)

// MQPublisher adapts the Client to ports.EventPublisher.
type MQPublisher struct {
	Client *Client
}

var _ ports.EventPublisher = (*MQPublisher)(nil)

// NewMQPublisher constructs an MQPublisher using the provided RabbitMQ client.
func NewMQPublisher(client *Client) *MQPublisher {
	return &MQPublisher{Client: client}
}

// Publish sends a message to the specified RabbitMQ exchange and routing key.
func (publisher *MQPublisher) Publish(exchange, routingKey string, body []byte) error {
	return publisher.Client.PublishMessage(exchange, routingKey, body)
}

// DiscardPublisher stands in for the broker when rabbitmq.enabled is false.
type DiscardPublisher struct{}

var _ ports.EventPublisher = DiscardPublisher{}

// Publish drops the message.
func (DiscardPublisher) Publish(string, string, []byte) error { return nil }

// PublishJSON encodes v and publishes it through pub.
func PublishJSON(pub ports.EventPublisher, exchange, routingKey string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", exchange, err)
	}
	return pub.Publish(exchange, routingKey, body)
}

// PublishMessage publishes a persistent JSON message and waits for the broker confirm.
func (client *Client) PublishMessage(exchange, routingKey string, body []byte) error {
	client.mu.RLock()
	ch := client.pubChan
	conn := client.conn
	client.mu.RUnlock()

	if conn == nil || conn.IsClosed() || ch == nil || ch.IsClosed() {
		return ErrNotConnected
	}

	// one publish in flight at a time keeps confirms aligned with publishes
	client.pubMu.Lock()
	defer client.pubMu.Unlock()
	confirms := client.pubConfirms
	if confirms == nil {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := ch.PublishWithContext(ctx, exchange, routingKey, true /* mandatory */, false, /* immediate */
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	); err != nil {
		return err
	}

	select {
	case c, ok := <-confirms:
		if !ok {
			return ErrNotConnected
		}
		if !c.Ack {
			return ErrNacked
		}
		return nil
	case <-ctx.Done():
		// swallow the late confirm so the next publish reads its own
		select {
		case <-confirms:
		case <-time.After(2 * time.Second):
		}
		return fmt.Errorf("rabbitmq: waiting for confirm: %w", ctx.Err())
	}
}
