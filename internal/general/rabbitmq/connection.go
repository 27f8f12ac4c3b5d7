package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bus-boarding/internal/general/config"
	"bus-boarding/internal/general/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// Client is a RabbitMQ connector that re-dials on failure and re-declares the
// boarding topology on every new connection.
type Client struct {
	url    string
	logger *logger.Logger
	logCtx context.Context // context for logging (without cancel)

	mu      sync.RWMutex
	conn    *amqp.Connection
	pubChan *amqp.Channel

	pubMu       sync.Mutex
	pubConfirms chan amqp.Confirmation

	closeOnce sync.Once
	closed    chan struct{}
	reconnect chan struct{}
}

// URL builds the AMQP URI for cfg.
func URL(cfg *config.Config) string {
	return (&amqp.URI{
		Scheme:   "amqp",
		Host:     cfg.RabbitMQ.Host,
		Port:     cfg.RabbitMQ.Port,
		Username: cfg.RabbitMQ.User,
		Password: cfg.RabbitMQ.Password,
		Vhost:    "/",
	}).String()
}

// ConnectRabbitMQ dials once, declares the topology and starts a background
// watcher that reconnects with capped exponential backoff.
func ConnectRabbitMQ(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*Client, error) {
	client := &Client{
		url:       URL(cfg),
		logger:    logger,
		logCtx:    context.WithoutCancel(ctx),
		closed:    make(chan struct{}),
		reconnect: make(chan struct{}, 1),
	}

	if err := client.connectOnce(); err != nil {
		return nil, err
	}

	go client.watch()

	return client, nil
}

// Close stops the watcher and closes AMQP resources. Safe to call more than once.
func (client *Client) Close() {
	client.closeOnce.Do(func() { close(client.closed) })

	client.mu.Lock()
	if client.pubChan != nil {
		_ = client.pubChan.Close()
		client.pubChan = nil
	}
	if client.conn != nil {
		_ = client.conn.Close()
		client.conn = nil
	}
	client.mu.Unlock()

	client.pubMu.Lock()
	client.pubConfirms = nil
	client.pubMu.Unlock()
}

// Ready reports whether a live connection is installed.
func (client *Client) Ready() bool {
	client.mu.RLock()
	defer client.mu.RUnlock()
	return client.conn != nil && !client.conn.IsClosed()
}

// --- internals ---

// connectOnce dials, opens the confirm-mode publishing channel and declares topology.
func (client *Client) connectOnce() (err error) {
	conn, err := amqp.DialConfig(client.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(30 * time.Second),
	})
	if err != nil {
		client.logger.Error(client.logCtx, "rabbitmq_dial_failed", "Failed to dial RabbitMQ", err, nil)
		return fmt.Errorf("rabbitmq dial failed: %w", err)
	}
	defer func() {
		if err != nil {
			_ = conn.Close()
		}
	}()

	ch, err := conn.Channel()
	if err != nil {
		client.logger.Error(client.logCtx, "rabbitmq_open_channel_failed", "Failed to open RabbitMQ channel", err, nil)
		return fmt.Errorf("rabbitmq: failed to open channel: %w", err)
	}

	if err = declareTopology(ch); err != nil {
		client.logger.Error(client.logCtx, "rabbitmq_declare_topology_failed", "Failed to declare RabbitMQ topology", err, nil)
		return fmt.Errorf("rabbitmq: failed to declare topology: %w", err)
	}

	if err = ch.Confirm(false); err != nil {
		client.logger.Error(client.logCtx, "rabbitmq_enable_confirms_failed", "Failed to enable publisher confirms", err, nil)
		return fmt.Errorf("rabbitmq: failed to enable confirms: %w", err)
	}

	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	returns := ch.NotifyReturn(make(chan amqp.Return, 1))
	go client.logReturns(returns)

	client.mu.Lock()
	if client.pubChan != nil && !client.pubChan.IsClosed() {
		_ = client.pubChan.Close()
	}
	client.conn = conn
	client.pubChan = ch
	client.mu.Unlock()

	client.pubMu.Lock()
	client.pubConfirms = confirms
	client.pubMu.Unlock()

	go client.signalOnClose(conn, ch)

	client.logger.Info(client.logCtx, "rabbitmq_connected", "RabbitMQ connection established successfully", nil)
	return nil
}

// logReturns reports unroutable mandatory publishes until the channel goes away.
func (client *Client) logReturns(returns <-chan amqp.Return) {
	for r := range returns {
		client.logger.Error(client.logCtx, "rabbitmq_returned",
			"Message was returned (unroutable)",
			fmt.Errorf("code=%d text=%s", r.ReplyCode, r.ReplyText),
			map[string]any{
				"exchange":   r.Exchange,
				"routingKey": r.RoutingKey,
				"size":       len(r.Body),
			},
		)
	}
}

// signalOnClose enqueues a reconnect when either the connection or the publishing channel closes.
func (client *Client) signalOnClose(conn *amqp.Connection, ch *amqp.Channel) {
	connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))
	select {
	case <-client.closed:
		return
	case <-connClosed:
	case <-chClosed:
	}

	select {
	case client.reconnect <- struct{}{}:
	default:
	}
}

// watch runs in background and re-dials after every signalled loss.
func (client *Client) watch() {
	for {
		select {
		case <-client.closed:
			return
		case <-client.reconnect:
		}

		backoff := minBackoff
		for {
			err := client.connectOnce()
			if err == nil {
				client.logger.Info(client.logCtx, "rabbitmq_reconnected", "Reconnected to RabbitMQ and re-ensured topology", nil)
				break
			}

			client.logger.Error(client.logCtx, "retry_attempted", "Failed to reconnect to RabbitMQ", err, map[string]any{
				"backoff_ms": backoff.Milliseconds(),
			})

			select {
			case <-client.closed:
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
		}
	}
}
