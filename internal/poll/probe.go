// Package poll runs a fetch immediately and then on a fixed interval until
// it is stopped.
package poll

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/ops-console/internal/clock"
	"github.com/ashureev/ops-console/internal/task"
)

// DefaultInterval is the agent status polling period.
const DefaultInterval = 3 * time.Second

// FetchFunc loads one sample. ctx is cancelled when the probe stops.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// State is the latest written sample.
type State[T any] struct {
	Data      *T        `json:"data"`
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
	Ticks     uint64    `json:"ticks"`
}

// Option configures a Probe.
type Option[T any] func(*Probe[T])

// WithClock replaces the real clock.
func WithClock[T any](c clock.Clock) Option[T] {
	return func(p *Probe[T]) { p.clock = c }
}

// WithLogger sets the logger failures are reported to.
func WithLogger[T any](l *slog.Logger) Option[T] {
	return func(p *Probe[T]) { p.logger = l }
}

// WithName labels log records.
func WithName[T any](name string) Option[T] {
	return func(p *Probe[T]) { p.name = name }
}

// WithOnChange registers an observer for written samples. Observers must
// not call back into the probe synchronously.
func WithOnChange[T any](fn func(State[T])) Option[T] {
	return func(p *Probe[T]) { p.observers = append(p.observers, fn) }
}

// Probe is a recurring background fetch.
type Probe[T any] struct {
	fetch     FetchFunc[T]
	interval  time.Duration
	clock     clock.Clock
	logger    *slog.Logger
	name      string
	observers []func(State[T])
	handle    *task.Handle
	inflight  sync.WaitGroup

	mu      sync.Mutex
	state   State[T]
	written uint64
	stopped bool
	version uint64

	notifyMu  sync.Mutex
	delivered uint64
}

// Start launches a probe. A non-positive interval selects
// DefaultInterval. The probe stops when Stop is called or ctx is done.
func Start[T any](ctx context.Context, fetch FetchFunc[T], interval time.Duration, opts ...Option[T]) *Probe[T] {
	if interval <= 0 {
		interval = DefaultInterval
	}
	p := &Probe[T]{
		fetch:    fetch,
		interval: interval,
		clock:    clock.Real(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("probe", p.name)

	ticker := p.clock.NewTicker(interval)
	p.handle = task.Go(ctx, func(ctx context.Context) {
		defer p.inflight.Wait()
		defer ticker.Stop()
		p.loop(ctx, ticker)
	})
	return p
}

func (p *Probe[T]) loop(ctx context.Context, ticker *clock.Ticker) {
	var seq uint64
	for {
		if ctx.Err() != nil {
			return
		}
		seq++
		p.tick(ctx, seq)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick starts one fetch. Fetches from earlier ticks are left running. The
// schedule is not done until every started fetch has returned.
func (p *Probe[T]) tick(ctx context.Context, seq uint64) {
	p.mu.Lock()
	p.state.Ticks = seq
	p.mu.Unlock()

	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		p.mu.Lock()
		stopped := p.stopped
		p.mu.Unlock()
		if stopped || ctx.Err() != nil {
			return
		}
		v, err := p.fetch(ctx)
		p.write(ctx, seq, v, err)
	}()
}

func (p *Probe[T]) write(ctx context.Context, seq uint64, v T, err error) {
	p.mu.Lock()
	if p.stopped || ctx.Err() != nil {
		p.mu.Unlock()
		return
	}
	if seq <= p.written {
		p.mu.Unlock()
		p.logger.Debug("dropping out-of-order sample", "tick", seq)
		return
	}
	p.written = seq
	if err != nil {
		p.state.LastError = err.Error()
	} else {
		p.state.Data = &v
		p.state.LastError = ""
	}
	p.state.UpdatedAt = p.clock.Now()
	p.version++
	snap, version := p.state, p.version
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("probe fetch failed", "tick", seq, "error", err)
	}
	p.notify(snap, version)
}

func (p *Probe[T]) notify(snap State[T], version uint64) {
	if len(p.observers) == 0 {
		return
	}
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()
	if version <= p.delivered {
		return
	}
	p.delivered = version
	for _, fn := range p.observers {
		fn(snap)
	}
}

// State returns the latest written sample.
func (p *Probe[T]) State() State[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Stop cancels the probe and waits for its schedule and every fetch it
// started to return. No fetch starts and no result is written after Stop
// returns.
func (p *Probe[T]) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.handle.Stop()
}

// Done is closed once the schedule has ended and its fetches have returned.
func (p *Probe[T]) Done() <-chan struct{} { return p.handle.Done() }
