package rabbitmq

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"bus-boarding/internal/general/logger"
	"bus-boarding/internal/general/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedPublisher blocks every publish until release is closed.
type gatedPublisher struct {
	release chan struct{}
	err     error

	mu   sync.Mutex
	sent []string
}

func (g *gatedPublisher) Publish(exchange, _ string, body []byte) error {
	<-g.release
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.sent = append(g.sent, exchange+":"+string(body))
	return nil
}

func (g *gatedPublisher) all() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.sent...)
}

func newAsync(t *testing.T, next *gatedPublisher, size int) (*AsyncPublisher, *metrics.Collector) {
	t.Helper()
	m := metrics.NewCollector()
	p := NewAsyncPublisher(next, logger.NewWithWriter("test", io.Discard), m, size)
	return p, m
}

func TestAsyncPublishDoesNotWaitForBroker(t *testing.T) {
	next := &gatedPublisher{release: make(chan struct{})}
	p, m := newAsync(t, next, 8)

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Publish("vehicle.fanout", "", []byte("x")))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Empty(t, next.all())

	close(next.release)
	p.Close()

	assert.Len(t, next.all(), 5)
	assert.Equal(t, 5.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("vehicle.fanout")))
}

func TestAsyncPublishDropsWhenQueueFull(t *testing.T) {
	next := &gatedPublisher{release: make(chan struct{})}
	p, m := newAsync(t, next, 1)

	// one message parks in the drainer, one fills the queue
	require.NoError(t, p.Publish("boarding.topic", "k", []byte("1")))
	require.Eventually(t, func() bool { return len(p.queue) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, p.Publish("boarding.topic", "k", []byte("2")))

	err := p.Publish("boarding.topic", "k", []byte("3"))
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsDropped.WithLabelValues("boarding.topic")))

	close(next.release)
	p.Close()
	assert.Equal(t, []string{"boarding.topic:1", "boarding.topic:2"}, next.all())
}

func TestAsyncPublishCountsBrokerFailures(t *testing.T) {
	next := &gatedPublisher{release: make(chan struct{}), err: errors.New("nacked")}
	close(next.release)
	p, m := newAsync(t, next, 4)

	require.NoError(t, p.Publish("vehicle.fanout", "", []byte("x")))
	p.Close()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventPublishErrs.WithLabelValues("vehicle.fanout")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("vehicle.fanout")))
}

func TestAsyncPublishAfterClose(t *testing.T) {
	next := &gatedPublisher{release: make(chan struct{})}
	close(next.release)
	p, _ := newAsync(t, next, 4)

	p.Close()
	p.Close()
	assert.ErrorIs(t, p.Publish("vehicle.fanout", "", []byte("x")), ErrPublisherClosed)
}
