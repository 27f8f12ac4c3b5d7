package service

import (
	"context"
	"io"
	"maps"
	"sync"
	"time"

	"bus-boarding/internal/domain/boarding"
	"bus-boarding/internal/general/clock"
	"bus-boarding/internal/general/logger"
	"bus-boarding/internal/general/metrics"
	"bus-boarding/internal/ports"
)

// memStore backs the fake repositories. WithinTx snapshots it and restores the
// snapshot when fn fails, so tests observe all-or-nothing commits.
type memStore struct {
	mu       sync.Mutex
	requests map[string]boarding.Request
	demand   map[string]uint64
	nextID   int64

	lockErrs     []error // returned by LockByUser, one per call, before touching state
	incrementErr error
	txCount      int
	rolledBack   int
}

func newMemStore() *memStore {
	return &memStore{requests: map[string]boarding.Request{}, demand: map[string]uint64{}}
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	s.txCount++
	reqs, dem, next := maps.Clone(s.requests), maps.Clone(s.demand), s.nextID
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.requests, s.demand, s.nextID = reqs, dem, next
		s.rolledBack++
		s.mu.Unlock()
		return err
	}
	return nil
}

type requestRepo struct{ s *memStore }

func (r requestRepo) Upsert(_ context.Context, req *boarding.Request) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if prev, ok := r.s.requests[req.UserID]; ok {
		req.ID = prev.ID
		req.CreatedAt = prev.CreatedAt
	} else {
		r.s.nextID++
		req.ID = r.s.nextID
	}
	r.s.requests[req.UserID] = *req
	return nil
}

func (r requestRepo) GetByUser(_ context.Context, userID string) (*boarding.Request, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.requests[userID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &req, nil
}

func (r requestRepo) LockByUser(ctx context.Context, userID string) (*boarding.Request, error) {
	r.s.mu.Lock()
	if len(r.s.lockErrs) > 0 {
		err := r.s.lockErrs[0]
		r.s.lockErrs = r.s.lockErrs[1:]
		r.s.mu.Unlock()
		if err != nil {
			return nil, err
		}
	} else {
		r.s.mu.Unlock()
	}
	return r.GetByUser(ctx, userID)
}

func (r requestRepo) MarkConfirmed(_ context.Context, req *boarding.Request) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.requests[req.UserID]; !ok {
		return ports.ErrNotFound
	}
	r.s.requests[req.UserID] = *req
	return nil
}

type demandRepo struct{ s *memStore }

func (d demandRepo) Register(_ context.Context, lineID string) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	if _, ok := d.s.demand[lineID]; !ok {
		d.s.demand[lineID] = 0
	}
	return nil
}

func (d demandRepo) Increment(_ context.Context, lineID string) (uint64, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	if d.s.incrementErr != nil {
		return 0, d.s.incrementErr
	}
	d.s.demand[lineID]++
	return d.s.demand[lineID], nil
}

func (d demandRepo) Get(_ context.Context, lineID string) (*boarding.LineDemand, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	total, ok := d.s.demand[lineID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &boarding.LineDemand{LineID: lineID, TotalConfirmations: total}, nil
}

type published struct {
	exchange, key string
	body          []byte
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *recordingPublisher) Publish(exchange, key string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{exchange, key, body})
	return nil
}

func (p *recordingPublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.msgs...)
}

type fixture struct {
	store *memStore
	pub   *recordingPublisher
	clock *clock.FakeClock
	svc   ports.BoardingService
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newFixture() *fixture {
	s := newMemStore()
	pub := &recordingPublisher{}
	clk := clock.Fake(t0)
	svc := NewBoardingService(logger.NewWithWriter("test", io.Discard), s, requestRepo{s}, demandRepo{s}, pub, metrics.NewCollector(), clk)
	return &fixture{store: s, pub: pub, clock: clk, svc: svc}
}
