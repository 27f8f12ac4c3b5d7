// Package natsingest stores positions published on NATS by the GTFS trip simulator.
package natsingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bus-boarding/internal/general/logger"
	"bus-boarding/internal/general/metrics"
	"bus-boarding/internal/ports"

	"github.com/nats-io/nats.go"
)

const (
	source        = "nats"
	ingestTimeout = 5 * time.Second
)

// PositionMessage is the simulator's payload, published on subject "{route}.{trip}".
type PositionMessage struct {
	TripID    string    `json:"tripId"`
	RouteID   string    `json:"routeId"`
	Timestamp time.Time `json:"timestamp"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Bearing   float64   `json:"bearing"`
	Progress  float64   `json:"progress"`
	SpeedMps  float64   `json:"speedMps"`
}

var ErrNoTrip = errors.New("position message has no tripId")

// Connect dials NATS and keeps the connection gauge in sync.
func Connect(url string, logger *logger.Logger, m *metrics.Collector) (*nats.Conn, error) {
	ctx := context.Background()
	nc, err := nats.Connect(url,
		nats.Name("bus-boarding-telemetry"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			m.NATSSetConnected(false)
			logger.Warn(ctx, "nats_disconnected", "NATS disconnected", map[string]any{"error": fmt.Sprint(err)})
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			m.NATSSetConnected(true)
			logger.Info(ctx, "nats_reconnected", "NATS reconnected", map[string]any{"url": nc.ConnectedUrl()})
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			m.NATSSetConnected(false)
			logger.Info(ctx, "nats_closed", "NATS connection closed", nil)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	m.NATSSetConnected(true)
	return nc, nil
}

// Subscriber feeds simulator positions into the VehicleService.
type Subscriber struct {
	svc     ports.VehicleService
	logger  *logger.Logger
	metrics *metrics.Collector
	subject string
}

// NewSubscriber creates a Subscriber for subject (wildcards allowed).
func NewSubscriber(svc ports.VehicleService, logger *logger.Logger, m *metrics.Collector, subject string) *Subscriber {
	return &Subscriber{svc: svc, logger: logger, metrics: m, subject: subject}
}

// Run subscribes on nc and blocks until ctx is cancelled, then drains the subscription.
func (s *Subscriber) Run(ctx context.Context, nc *nats.Conn) error {
	sub, err := nc.Subscribe(s.subject, func(msg *nats.Msg) {
		msgCtx, cancel := context.WithTimeout(ctx, ingestTimeout)
		defer cancel()
		if err := s.Handle(msgCtx, msg.Data); err != nil {
			s.logger.Error(msgCtx, "nats_ingest_failed", "Failed to ingest NATS position", err, map[string]any{
				"subject": msg.Subject,
			})
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %q: %w", s.subject, err)
	}

	s.logger.Info(ctx, "nats_subscribed", "Listening for simulator positions", map[string]any{"subject": s.subject})

	<-ctx.Done()
	if err := sub.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}

// Handle decodes one simulator payload and ingests it. Trips are the vehicles,
// routes are the lines.
func (s *Subscriber) Handle(ctx context.Context, data []byte) error {
	in, err := Decode(data)
	if err != nil {
		s.metrics.IngestRejected.WithLabelValues(source).Inc()
		return err
	}
	_, err = s.svc.Ingest(ctx, in)
	return err
}

// Decode maps a simulator payload onto an ingest input.
func Decode(data []byte) (ports.IngestInput, error) {
	var msg PositionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ports.IngestInput{}, fmt.Errorf("%w: decode position: %w", ports.ErrInvalidInput, err)
	}
	if msg.TripID == "" {
		return ports.IngestInput{}, fmt.Errorf("%w: %w", ports.ErrInvalidInput, ErrNoTrip)
	}

	in := ports.IngestInput{
		VehicleID:  msg.TripID,
		Latitude:   msg.Lat,
		Longitude:  msg.Lon,
		RecordedAt: msg.Timestamp,
		Source:     source,
	}
	speed := msg.SpeedMps
	in.SpeedMPS = &speed
	if msg.RouteID != "" {
		line := msg.RouteID
		in.LineID = &line
	}
	return in, nil
}
