// Package query tracks an asynchronously loaded value together with its
// loading and error status. Only the most recently started fetch cycle may
// write a result; older cycles are discarded when they settle.
package query

import (
	"context"
	"log/slog"
	"sync"
)

// Key is an ordered tuple of comparable values. A change in any element
// starts a new fetch cycle.
type Key []any

// Equal compares two keys element-wise. Elements must be comparable.
func (k Key) Equal(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

func (k Key) clone() Key {
	if k == nil {
		return nil
	}
	return append(Key(nil), k...)
}

// FetchFunc loads the value for key. ctx is cancelled when the query is
// closed.
type FetchFunc[T any] func(ctx context.Context, key Key) (T, error)

// State is a snapshot of a query. A nil Data means no value has been loaded
// yet; an empty Error means the last settled cycle succeeded.
type State[T any] struct {
	Data    *T     `json:"data"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
	Cycle   uint64 `json:"cycle"`
}

// Option configures a Query.
type Option[T any] func(*Query[T])

// WithOnChange registers an observer. Observers receive snapshots in order
// and must not call back into the query synchronously.
func WithOnChange[T any](fn func(State[T])) Option[T] {
	return func(q *Query[T]) { q.observers = append(q.observers, fn) }
}

// WithLogger sets the logger used for discarded cycles and failures.
func WithLogger[T any](l *slog.Logger) Option[T] {
	return func(q *Query[T]) { q.logger = l }
}

// WithName labels log records.
func WithName[T any](name string) Option[T] {
	return func(q *Query[T]) { q.name = name }
}

// Query is a resource query owned by a single view.
type Query[T any] struct {
	fetch     FetchFunc[T]
	observers []func(State[T])
	logger    *slog.Logger
	name      string

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	key     Key
	state   State[T]
	seq     uint64
	version uint64
	closed  bool

	notifyMu  sync.Mutex
	delivered uint64
}

// New creates a query and starts its first cycle for key.
func New[T any](ctx context.Context, fetch FetchFunc[T], key Key, opts ...Option[T]) *Query[T] {
	q := &Query[T]{
		fetch:  fetch,
		logger: slog.Default(),
		key:    key.clone(),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.With("query", q.name)
	q.ctx, q.cancel = context.WithCancel(ctx)

	q.mu.Lock()
	snap, version, _ := q.startLocked()
	q.mu.Unlock()
	q.notify(snap, version)
	return q
}

// SetKey starts a new cycle if key differs from the current key. It reports
// whether a cycle was started.
func (q *Query[T]) SetKey(key Key) bool {
	q.mu.Lock()
	if q.closed || q.key.Equal(key) {
		q.mu.Unlock()
		return false
	}
	q.key = key.clone()
	snap, version, _ := q.startLocked()
	q.mu.Unlock()
	q.notify(snap, version)
	return true
}

// Key returns the current dependency key.
func (q *Query[T]) Key() Key {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.key.clone()
}

// Refetch starts a new cycle for the current key and waits until it
// settles or ctx is done. Concurrent calls are not deduplicated.
func (q *Query[T]) Refetch(ctx context.Context) State[T] {
	q.mu.Lock()
	if q.closed {
		st := q.state
		q.mu.Unlock()
		return st
	}
	snap, version, done := q.startLocked()
	q.mu.Unlock()
	q.notify(snap, version)

	select {
	case <-done:
	case <-ctx.Done():
	}
	return q.State()
}

// State returns the current snapshot.
func (q *Query[T]) State() State[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Close tears the query down. In-flight fetches see their context
// cancelled and their results are never written.
func (q *Query[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cancel()
}

func (q *Query[T]) startLocked() (State[T], uint64, <-chan struct{}) {
	q.seq++
	seq := q.seq
	key := q.key.clone()
	q.state.Loading = true
	q.state.Cycle = seq
	q.version++

	done := make(chan struct{})
	go q.run(seq, key, done)
	return q.state, q.version, done
}

func (q *Query[T]) run(seq uint64, key Key, done chan struct{}) {
	defer close(done)

	v, err := q.fetch(q.ctx, key)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if seq != q.seq {
		latest := q.seq
		q.mu.Unlock()
		q.logger.Debug("discarding stale cycle", "cycle", seq, "latest", latest)
		return
	}
	if err != nil {
		q.state.Error = err.Error()
	} else {
		q.state.Data = &v
		q.state.Error = ""
	}
	q.state.Loading = false
	q.version++
	snap, version := q.state, q.version
	q.mu.Unlock()

	if err != nil {
		q.logger.Warn("fetch failed", "cycle", seq, "error", err)
	}
	q.notify(snap, version)
}

// notify delivers snap unless a newer snapshot was already delivered.
func (q *Query[T]) notify(snap State[T], version uint64) {
	if len(q.observers) == 0 {
		return
	}
	q.notifyMu.Lock()
	defer q.notifyMu.Unlock()
	if version <= q.delivered {
		return
	}
	q.delivered = version
	for _, fn := range q.observers {
		fn(snap)
	}
}
