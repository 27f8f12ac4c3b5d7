// Package gtfsrt polls a GTFS-realtime VehiclePositions feed and stores every fresh sample.
package gtfsrt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"bus-boarding/internal/general/clock"
	"bus-boarding/internal/general/logger"
	"bus-boarding/internal/general/metrics"
	"bus-boarding/internal/ports"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

const (
	source      = "gtfsrt"
	maxFeedSize = 32 << 20
)

// Poller fetches the feed on a fixed interval.
type Poller struct {
	svc      ports.VehicleService
	logger   *logger.Logger
	metrics  *metrics.Collector
	client   *http.Client
	clock    clock.Clock
	url      string
	interval time.Duration

	mu       sync.Mutex
	lastSeen map[string]time.Time // vehicle id -> newest stored timestamp
}

// NewPoller creates a Poller for url.
func NewPoller(svc ports.VehicleService, logger *logger.Logger, m *metrics.Collector, clk clock.Clock, url string, interval time.Duration) *Poller {
	return &Poller{
		svc:      svc,
		logger:   logger,
		metrics:  m,
		client:   &http.Client{Timeout: 15 * time.Second},
		clock:    clk,
		url:      url,
		interval: interval,
		lastSeen: make(map[string]time.Time),
	}
}

// Run polls immediately and then every interval until ctx is cancelled.
// Poll failures are logged and do not stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		n, err := p.PollOnce(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			p.metrics.FeedPolls.WithLabelValues("error").Inc()
			p.logger.Error(ctx, "gtfsrt_poll_failed", "Failed to poll GTFS-RT feed", err, map[string]any{"url": p.url})
		case err == nil:
			p.metrics.FeedPolls.WithLabelValues("ok").Inc()
			p.logger.Debug(ctx, "gtfsrt_polled", "GTFS-RT feed polled", map[string]any{"stored": n})
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// PollOnce fetches the feed and ingests every entity whose timestamp advanced.
// It returns the number of stored samples.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	feed, err := p.fetch(ctx)
	if err != nil {
		return 0, err
	}

	stored := 0
	var errs []error
	for _, e := range feed.GetEntity() {
		in, ok := FromEntity(e)
		if !ok || !p.fresh(in) {
			continue
		}
		if _, err := p.svc.Ingest(ctx, in); err != nil {
			if errors.Is(err, ports.ErrInvalidInput) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		p.remember(in)
		stored++
	}
	return stored, errors.Join(errs...)
}

func (p *Poller) fetch(ctx context.Context) (*gtfs.FeedMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/x-protobuf")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, feed); err != nil {
		return nil, fmt.Errorf("failed to parse protobuf: %w", err)
	}
	return feed, nil
}

// fresh reports whether in is newer than the last stored sample of its vehicle.
// Samples without a timestamp are always fresh.
func (p *Poller) fresh(in ports.IngestInput) bool {
	if in.RecordedAt.IsZero() {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastSeen[in.VehicleID]
	return !ok || in.RecordedAt.After(last)
}

func (p *Poller) remember(in ports.IngestInput) {
	if in.RecordedAt.IsZero() {
		return
	}
	p.mu.Lock()
	p.lastSeen[in.VehicleID] = in.RecordedAt
	p.mu.Unlock()
}

// FromEntity maps a feed entity onto an ingest input. Entities without a vehicle
// position are skipped. Route ids become lines.
func FromEntity(e *gtfs.FeedEntity) (ports.IngestInput, bool) {
	vp := e.GetVehicle()
	if vp == nil || vp.GetPosition() == nil {
		return ports.IngestInput{}, false
	}

	in := ports.IngestInput{
		Latitude:  float64(vp.GetPosition().GetLatitude()),
		Longitude: float64(vp.GetPosition().GetLongitude()),
		Source:    source,
	}

	switch {
	case vp.GetVehicle().GetId() != "":
		in.VehicleID = vp.GetVehicle().GetId()
	case vp.GetVehicle().GetLabel() != "":
		in.VehicleID = vp.GetVehicle().GetLabel()
	default:
		in.VehicleID = e.GetId()
	}

	if vp.GetPosition().Speed != nil {
		speed := float64(vp.GetPosition().GetSpeed())
		in.SpeedMPS = &speed
	}
	if route := vp.GetTrip().GetRouteId(); route != "" {
		in.LineID = &route
	}
	if ts := vp.GetTimestamp(); ts > 0 {
		in.RecordedAt = time.Unix(int64(ts), 0).UTC()
	}
	return in, true
}
