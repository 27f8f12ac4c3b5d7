// Package tracker is the polling client: it follows the vehicles of one line around a stop,
// raises a single alert when the nearest one is about to arrive and confirms boarding.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bus-boarding/internal/domain/eta"
	"bus-boarding/internal/domain/geo"
	"bus-boarding/internal/general/clock"
	"bus-boarding/internal/ports"
)

// State is the lifecycle of a Session.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrNotReady       = errors.New("session needs a stop, a line and a pending request")
	ErrAlreadyStarted = errors.New("session already started")
	ErrStopped        = errors.New("session stopped")
)

// API is the part of the boarding API a session uses.
type API interface {
	Nearby(ctx context.Context, token string, lat, lon, radiusKM float64, line string) (ports.NearbyResult, error)
	Confirm(ctx context.Context, token, line string) (ports.ConfirmResult, error)
}

// Update is one applied nearby result.
type Update struct {
	Seq        uint64
	Buses      []ports.BusView
	Nearest    *ports.BusView
	ETA        eta.Estimate
	LastUpdate time.Time
}

// Observer receives session events. Nil fields are skipped. Callbacks run on the
// session goroutine and must not call Stop.
type Observer struct {
	OnUpdate         func(Update)
	OnAlert          func(bus ports.BusView, e eta.Estimate)
	OnLoadingCleared func()
	OnError          func(err error)
	OnSessionInvalid func(err error)
}

// Options tune a Session. Zero values take the defaults.
type Options struct {
	RadiusKM       float64
	PollInterval   time.Duration
	LoadingTimeout time.Duration
	RequestTimeout time.Duration
}

const (
	DefaultRadiusKM       = 2.0
	DefaultPollInterval   = 10 * time.Second
	DefaultLoadingTimeout = 15 * time.Second
	DefaultRequestTimeout = 8 * time.Second
)

func (o Options) withDefaults() Options {
	if o.RadiusKM <= 0 {
		o.RadiusKM = DefaultRadiusKM
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.LoadingTimeout <= 0 {
		o.LoadingTimeout = DefaultLoadingTimeout
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	return o
}

type fetchResult struct {
	seq uint64
	res ports.NearbyResult
	err error
}

// Session polls the nearby endpoint for one stop and line.
type Session struct {
	api   API
	clock clock.Clock
	store Store
	obs   Observer
	opts  Options

	mu     sync.Mutex
	state  State
	local  LocalState
	cancel context.CancelFunc
	done   chan struct{}

	// owned by the loop goroutine
	alert   eta.Alert
	seq     uint64
	applied uint64
	results chan fetchResult
}

// NewSession creates an idle session over local. store may be nil.
func NewSession(api API, clk clock.Clock, store Store, local LocalState, obs Observer, opts Options) *Session {
	return &Session{
		api:     api,
		clock:   clk,
		store:   store,
		obs:     obs,
		opts:    opts.withDefaults(),
		local:   local,
		results: make(chan fetchResult, 4),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Local returns a copy of the client state.
func (s *Session) Local() LocalState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local
}

// Start issues one query immediately and then one per poll interval.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StatePolling:
		return ErrAlreadyStarted
	case StateStopped:
		return ErrStopped
	}
	if !s.local.Ready() {
		return ErrNotReady
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = StatePolling

	go s.loop(loopCtx, s.local)
	return nil
}

// Stop ends polling and returns once the loop and its timers are gone. It is idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.state = StateStopped
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Confirm confirms boarding on the session's line. On success the session stops and
// the pending request and stop are cleared; on an auth failure the token is dropped too.
func (s *Session) Confirm(ctx context.Context) (ports.ConfirmResult, error) {
	s.mu.Lock()
	local := s.local
	s.mu.Unlock()

	if local.Line == "" {
		return ports.ConfirmResult{}, ErrNotReady
	}

	cctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	res, err := s.api.Confirm(cctx, local.Token, local.Line)
	if err != nil {
		if errors.Is(err, ports.ErrUnauthenticated) {
			s.Stop()
			s.invalidate(err)
		}
		return ports.ConfirmResult{}, err
	}

	s.Stop()
	s.update(func(l *LocalState) {
		l.Pending = false
		l.Stop = nil
		l.Line = ""
		l.Origin = ""
	})
	return res, nil
}

func (s *Session) loop(ctx context.Context, local LocalState) {
	defer close(s.done)

	ticker := s.clock.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	watchdog := s.clock.NewTimer(s.opts.LoadingTimeout)
	defer watchdog.Stop()

	loading := true
	clearLoading := func() {
		if loading {
			loading = false
			watchdog.Stop()
			call(s.obs.OnLoadingCleared)
		}
	}

	s.fetch(ctx, local)
	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			s.fetch(ctx, local)

		case <-watchdog.C:
			clearLoading()

		case r := <-s.results:
			if r.err != nil {
				if ctx.Err() != nil {
					return
				}
				if errors.Is(r.err, ports.ErrUnauthenticated) {
					s.invalidate(r.err)
					return
				}
				if s.obs.OnError != nil {
					s.obs.OnError(r.err)
				}
				continue
			}
			if r.seq <= s.applied {
				continue
			}
			s.applied = r.seq
			clearLoading()
			s.apply(r)
		}
	}
}

// fetch runs one query in its own goroutine and reports to the loop.
func (s *Session) fetch(ctx context.Context, local LocalState) {
	s.seq++
	seq := s.seq
	go func() {
		fctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
		defer cancel()
		res, err := s.api.Nearby(fctx, local.Token, local.Stop.Latitude, local.Stop.Longitude, s.opts.RadiusKM, local.Line)
		select {
		case s.results <- fetchResult{seq: seq, res: res, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (s *Session) apply(r fetchResult) {
	u := Update{Seq: r.seq, Buses: r.res.Buses, ETA: eta.Indeterminate, LastUpdate: r.res.LastUpdate}
	if len(r.res.Buses) > 0 {
		nearest := r.res.Buses[0]
		u.Nearest = &nearest
		d := nearest.DistanceMeters
		u.ETA = eta.Compute(&d, nearest.SpeedMPS)
	}

	fired := s.alert.Observe(u.ETA)

	if s.obs.OnUpdate != nil {
		s.obs.OnUpdate(u)
	}
	if fired && s.obs.OnAlert != nil {
		s.obs.OnAlert(*u.Nearest, u.ETA)
	}
}

// invalidate ends the session after an auth failure: the request is no longer pending
// and the cached token is dropped. Queries still in flight are cancelled.
func (s *Session) invalidate(err error) {
	s.mu.Lock()
	s.state = StateStopped
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	s.update(func(l *LocalState) {
		l.Pending = false
		l.Token = ""
	})
	if s.obs.OnSessionInvalid != nil {
		s.obs.OnSessionInvalid(err)
	}
}

// update mutates and persists the local state.
func (s *Session) update(fn func(*LocalState)) {
	s.mu.Lock()
	fn(&s.local)
	local := s.local
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	if err := s.store.Save(local); err != nil && s.obs.OnError != nil {
		s.obs.OnError(fmt.Errorf("save session state: %w", err))
	}
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}

// NewLocalState builds a ready state for a freshly filed request.
func NewLocalState(token string, stop geo.Point, line, origin string) LocalState {
	return LocalState{Token: token, Pending: true, Stop: &stop, Line: line, Origin: origin}
}
