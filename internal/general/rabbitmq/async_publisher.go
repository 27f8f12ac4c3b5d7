package rabbitmq

import (
	"context"
	"errors"
	"sync"
	"time"

	"bus-boarding/internal/general/logger"
	"bus-boarding/internal/general/metrics"
	"bus-boarding/internal/ports"
)

const (
	DefaultQueueSize = 1024
	flushTimeout     = 10 * time.Second
)

var (
	ErrQueueFull       = errors.New("rabbitmq: publish queue full")
	ErrPublisherClosed = errors.New("rabbitmq: publisher closed")
)

type outbound struct {
	exchange   string
	routingKey string
	body       []byte
}

// AsyncPublisher queues messages and delivers them through next from a single
// background goroutine, so a slow broker never holds up the caller. Messages that
// do not fit in the queue are dropped and counted.
type AsyncPublisher struct {
	next    ports.EventPublisher
	logger  *logger.Logger
	metrics *metrics.Collector

	mu     sync.RWMutex
	closed bool
	queue  chan outbound
	done   chan struct{}
}

var _ ports.EventPublisher = (*AsyncPublisher)(nil)

// NewAsyncPublisher starts the delivery goroutine. size <= 0 takes DefaultQueueSize.
func NewAsyncPublisher(next ports.EventPublisher, logger *logger.Logger, m *metrics.Collector, size int) *AsyncPublisher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	p := &AsyncPublisher{
		next:    next,
		logger:  logger,
		metrics: m,
		queue:   make(chan outbound, size),
		done:    make(chan struct{}),
	}
	go p.drain()
	return p
}

// Publish enqueues the message without waiting for the broker.
func (p *AsyncPublisher) Publish(exchange, routingKey string, body []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	select {
	case p.queue <- outbound{exchange: exchange, routingKey: routingKey, body: body}:
		return nil
	default:
		p.metrics.EventsDropped.WithLabelValues(exchange).Inc()
		return ErrQueueFull
	}
}

// Close stops accepting messages and waits up to flushTimeout for the queue to drain.
func (p *AsyncPublisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
	case <-time.After(flushTimeout):
		p.logger.Warn(context.Background(), "publish_flush_timeout", "Gave up flushing queued events", map[string]any{
			"pending": len(p.queue),
		})
	}
}

func (p *AsyncPublisher) drain() {
	defer close(p.done)
	for msg := range p.queue {
		if err := p.next.Publish(msg.exchange, msg.routingKey, msg.body); err != nil {
			p.metrics.EventPublishErrs.WithLabelValues(msg.exchange).Inc()
			p.logger.Error(context.Background(), "event_publish_failed", "Failed to publish event", err, map[string]any{
				"exchange":    msg.exchange,
				"routing_key": msg.routingKey,
			})
			continue
		}
		p.metrics.EventsPublished.WithLabelValues(msg.exchange).Inc()
	}
}
