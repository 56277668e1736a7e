// Package dashboard aggregates revenue, client and order resources into
// the dashboard view model and runs the manual refresh.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ashureev/ops-console/internal/clock"
	"github.com/ashureev/ops-console/internal/config"
	"github.com/ashureev/ops-console/internal/domain"
	"github.com/ashureev/ops-console/internal/gateway"
	"github.com/ashureev/ops-console/internal/query"
	"github.com/ashureev/ops-console/internal/task"
)

// ErrRefreshInProgress is returned when a refresh is requested while one is
// still running.
var ErrRefreshInProgress = errors.New("dashboard: refresh already in progress")

// Source is the subset of the gateway the dashboard reads from.
type Source interface {
	RevenueAnalytics(ctx context.Context) (domain.RevenueAnalytics, error)
	ClientAnalytics(ctx context.Context) (domain.ClientAnalytics, error)
	ListOrders(ctx context.Context, p gateway.ListParams) (domain.OrderPage, error)
}

// Snapshot is the state consumers render. ViewModel is nil until every
// backing resource holds data.
type Snapshot struct {
	Ready      bool              `json:"ready"`
	ViewModel  *ViewModel        `json:"view_model"`
	Loading    bool              `json:"loading"`
	Refreshing bool              `json:"refreshing"`
	Errors     map[string]string `json:"errors,omitempty"`
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock replaces the real clock.
func WithClock(c clock.Clock) Option {
	return func(a *Aggregator) { a.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// WithOnChange registers fn to be called whenever the snapshot may have
// changed. fn must not block or call back into the aggregator.
func WithOnChange(fn func()) Option {
	return func(a *Aggregator) { a.observers = append(a.observers, fn) }
}

// Aggregator owns the three dashboard queries.
type Aggregator struct {
	cfg       config.DashboardConfig
	clock     clock.Clock
	logger    *slog.Logger
	observers []func()

	revenue *query.Query[domain.RevenueAnalytics]
	clients *query.Query[domain.ClientAnalytics]
	orders  *query.Query[domain.OrderPage]

	mu         sync.Mutex
	refresh    *task.Handle
	refreshGen uint64
	refreshing bool
}

// New mounts the dashboard. Each resource is fetched once immediately.
func New(ctx context.Context, src Source, cfg config.DashboardConfig, opts ...Option) *Aggregator {
	a := &Aggregator{
		cfg:    cfg,
		clock:  clock.Real(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "dashboard")

	limit := cfg.OrdersLimit
	if limit <= 0 {
		limit = 10
	}

	a.revenue = query.New(ctx,
		func(ctx context.Context, _ query.Key) (domain.RevenueAnalytics, error) {
			return src.RevenueAnalytics(ctx)
		}, nil,
		query.WithName[domain.RevenueAnalytics]("revenue"),
		query.WithLogger[domain.RevenueAnalytics](a.logger),
		query.WithOnChange(func(query.State[domain.RevenueAnalytics]) { a.changed() }),
	)
	a.clients = query.New(ctx,
		func(ctx context.Context, _ query.Key) (domain.ClientAnalytics, error) {
			return src.ClientAnalytics(ctx)
		}, nil,
		query.WithName[domain.ClientAnalytics]("clients"),
		query.WithLogger[domain.ClientAnalytics](a.logger),
		query.WithOnChange(func(query.State[domain.ClientAnalytics]) { a.changed() }),
	)
	a.orders = query.New(ctx,
		func(ctx context.Context, _ query.Key) (domain.OrderPage, error) {
			return src.ListOrders(ctx, gateway.ListParams{Skip: 0, Limit: limit})
		}, nil,
		query.WithName[domain.OrderPage]("orders"),
		query.WithLogger[domain.OrderPage](a.logger),
		query.WithOnChange(func(query.State[domain.OrderPage]) { a.changed() }),
	)
	return a
}

func (a *Aggregator) changed() {
	for _, fn := range a.observers {
		fn()
	}
}

// Snapshot derives the current dashboard state.
func (a *Aggregator) Snapshot() Snapshot {
	rev, cli, ord := a.revenue.State(), a.clients.State(), a.orders.State()

	a.mu.Lock()
	snap := Snapshot{Refreshing: a.refreshing}
	a.mu.Unlock()

	snap.Loading = rev.Loading || cli.Loading || ord.Loading
	for name, msg := range map[string]string{"revenue": rev.Error, "clients": cli.Error, "orders": ord.Error} {
		if msg == "" {
			continue
		}
		if snap.Errors == nil {
			snap.Errors = make(map[string]string)
		}
		snap.Errors[name] = msg
	}

	if rev.Data != nil && cli.Data != nil && ord.Data != nil {
		vm := Build(*rev.Data, *cli.Data, *ord.Data, a.cfg)
		snap.Ready = true
		snap.ViewModel = &vm
	}
	return snap
}

// StartRefresh refetches all three resources concurrently. The refreshing
// flag stays set until the fetches have settled and the configured minimum
// display duration has passed. Cancelling the handle ends the refresh and
// clears the flag.
func (a *Aggregator) StartRefresh(ctx context.Context) (*task.Handle, error) {
	return a.startRefresh(ctx, nil)
}

// RefreshAll runs a refresh and waits for it to finish. It returns the
// first fetch failure, if any.
func (a *Aggregator) RefreshAll(ctx context.Context) error {
	var result error
	h, err := a.startRefresh(ctx, &result)
	if err != nil {
		return err
	}
	<-h.Done()
	if result == nil {
		result = ctx.Err()
	}
	return result
}

func (a *Aggregator) startRefresh(ctx context.Context, result *error) (*task.Handle, error) {
	a.mu.Lock()
	if a.refreshing {
		a.mu.Unlock()
		return nil, ErrRefreshInProgress
	}
	a.refreshing = true
	a.refreshGen++
	gen := a.refreshGen
	started := a.clock.Now()
	h := task.Go(ctx, func(ctx context.Context) {
		err := a.runRefresh(ctx, started)
		if result != nil {
			*result = err
		}
		a.finishRefresh(gen)
	})
	a.refresh = h
	a.mu.Unlock()

	a.logger.Debug("refresh started")
	a.changed()
	return h, nil
}

func (a *Aggregator) runRefresh(ctx context.Context, started time.Time) error {
	var g errgroup.Group
	g.Go(func() error { return settled("revenue", a.revenue.Refetch(ctx).Error) })
	g.Go(func() error { return settled("clients", a.clients.Refetch(ctx).Error) })
	g.Go(func() error { return settled("orders", a.orders.Refetch(ctx).Error) })
	err := g.Wait()
	if err != nil {
		a.logger.Warn("refresh completed with errors", "error", err)
	}

	if remaining := a.cfg.MinRefreshDisplay - a.clock.Now().Sub(started); remaining > 0 {
		select {
		case <-a.clock.After(remaining):
		case <-ctx.Done():
		}
	}
	return err
}

func settled(name, errMsg string) error {
	if errMsg == "" {
		return nil
	}
	return fmt.Errorf("%s: %s", name, errMsg)
}

func (a *Aggregator) finishRefresh(gen uint64) {
	a.mu.Lock()
	if a.refreshGen != gen {
		a.mu.Unlock()
		return
	}
	a.refreshing = false
	a.refresh = nil
	a.mu.Unlock()

	a.logger.Debug("refresh finished")
	a.changed()
}

// CancelRefresh revokes the running refresh, if any, and waits for the
// flag to clear.
func (a *Aggregator) CancelRefresh() {
	a.mu.Lock()
	h := a.refresh
	a.mu.Unlock()
	if h != nil {
		h.Stop()
	}
}

// Close cancels any refresh and tears down the queries.
func (a *Aggregator) Close() {
	a.CancelRefresh()
	a.revenue.Close()
	a.clients.Close()
	a.orders.Close()
}
