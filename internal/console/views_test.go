package console

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/ops-console/internal/agent"
	"github.com/ashureev/ops-console/internal/clock"
	"github.com/ashureev/ops-console/internal/config"
	"github.com/ashureev/ops-console/internal/dashboard"
	"github.com/ashureev/ops-console/internal/domain"
	"github.com/ashureev/ops-console/internal/gateway"
	"github.com/ashureev/ops-console/internal/logger"
	"github.com/ashureev/ops-console/internal/poll"
	"github.com/ashureev/ops-console/internal/session"
)

func testRegistry(b *fakeBackend, opts ...RegistryOption) *Registry {
	cfg := config.Default()
	cfg.Dashboard.MinRefreshDisplay = 0
	opts = append([]RegistryOption{WithLogger(logger.Discard())}, opts...)
	return NewRegistry(func(*session.Session) Backend { return b }, cfg, opts...)
}

func mount(t *testing.T, r *Registry, name string, params map[string]string) View {
	t.Helper()
	v, err := r.Mount(context.Background(), MountRequest{
		Name:    name,
		Params:  params,
		Session: &session.Session{ID: "op-1"},
	})
	require.NoError(t, err)
	t.Cleanup(v.Close)
	return v
}

func cmd(t *testing.T, typ string, payload any) Command {
	t.Helper()
	c := Command{Type: typ}
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		c.Payload = raw
	}
	return c
}

func TestMountUnknownView(t *testing.T) {
	t.Parallel()

	r := testRegistry(newFakeBackend())
	_, err := r.Mount(context.Background(), MountRequest{Name: "billing"})
	assert.ErrorIs(t, err, ErrUnknownView)

	_, err = r.Mount(context.Background(), MountRequest{Name: ViewAgent, Params: map[string]string{"kind": "sales"}})
	assert.ErrorIs(t, err, ErrUnknownView)
}

func TestClientsView(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	v := mount(t, testRegistry(b), ViewClients, nil)
	loaded := func() bool {
		s := v.Snapshot().(ClientsSnapshot)
		return !s.Loading && s.Total > 0
	}
	require.Eventually(t, loaded, time.Second, time.Millisecond)

	snap := v.Snapshot().(ClientsSnapshot)
	assert.Equal(t, FilterAll, snap.Filter)
	assert.Len(t, snap.Clients, 3)
	assert.Equal(t, 2, snap.Counts[domain.ClientActive])
	assert.Equal(t, 1, snap.Counts[domain.ClientSuspended])
	assert.Equal(t, 0, snap.Counts[domain.ClientInactive])
	assert.Equal(t, gateway.ListParams{Skip: 0, Limit: 100}, b.lastClientParams())

	require.NoError(t, v.Handle(context.Background(), cmd(t, "search", map[string]string{"term": "GRACE"})))
	snap = v.Snapshot().(ClientsSnapshot)
	require.Len(t, snap.Clients, 1)
	assert.Equal(t, "c2", snap.Clients[0].ID)
	assert.Equal(t, 2, snap.Counts[domain.ClientActive], "counts ignore the search")

	require.NoError(t, v.Handle(context.Background(), cmd(t, "search", map[string]string{"term": ""})))
	require.NoError(t, v.Handle(context.Background(), cmd(t, "filter", map[string]string{"status": "suspended"})))
	require.Eventually(t, func() bool {
		s := v.Snapshot().(ClientsSnapshot)
		return !s.Loading && s.Filter == "suspended" && s.Total == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, "suspended", b.lastClientParams().Status)

	err := v.Handle(context.Background(), Command{Type: "filter"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing payload")
}

func TestClientsViewCreateRefetches(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	v := mount(t, testRegistry(b), ViewClients, nil)
	require.Eventually(t, func() bool { return v.Snapshot().(ClientsSnapshot).Total == 3 }, time.Second, time.Millisecond)

	in := domain.ClientInput{Name: "Katherine Johnson", Email: "kj@example.com", Phone: "555-0199"}
	require.NoError(t, v.Handle(context.Background(), cmd(t, "create", in)))
	assert.Equal(t, 4, v.Snapshot().(ClientsSnapshot).Total)

	b.mu.Lock()
	b.createErr = &gateway.StatusError{StatusCode: 400, Detail: "Client with this email already exists"}
	b.mu.Unlock()
	err := v.Handle(context.Background(), cmd(t, "create", in))
	var se *gateway.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Client with this email already exists", se.Detail)
}

func TestOrdersView(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	v := mount(t, testRegistry(b), ViewOrders, nil)
	require.Eventually(t, func() bool { return v.Snapshot().(OrdersSnapshot).Total == 3 }, time.Second, time.Millisecond)

	snap := v.Snapshot().(OrdersSnapshot)
	assert.Equal(t, domain.OrderTotals{Confirmed: 2, Pending: 1, PaidRevenue: 160, PendingRevenue: 40}, snap.Totals)

	require.NoError(t, v.Handle(context.Background(), cmd(t, "payment", map[string]string{"status": "unpaid"})))
	snap = v.Snapshot().(OrdersSnapshot)
	require.Len(t, snap.Orders, 1)
	assert.Equal(t, "ORD-2", snap.Orders[0].OrderNumber)

	require.NoError(t, v.Handle(context.Background(), cmd(t, "payment", map[string]string{"status": "all"})))
	require.NoError(t, v.Handle(context.Background(), cmd(t, "search", map[string]string{"term": "yoga"})))
	snap = v.Snapshot().(OrdersSnapshot)
	assert.Len(t, snap.Orders, 2)

	require.NoError(t, v.Handle(context.Background(), cmd(t, "create", domain.OrderInput{ClientID: "c1", ServiceName: "Yoga", Amount: 25})))
	snap = v.Snapshot().(OrdersSnapshot)
	assert.Equal(t, 4, snap.Total)
	assert.Equal(t, 65.0, snap.Totals.PendingRevenue)

	assert.ErrorIs(t, v.Handle(context.Background(), Command{Type: "delete"}), ErrUnknownCommand)
}

func TestDashboardView(t *testing.T) {
	t.Parallel()

	v := mount(t, testRegistry(newFakeBackend()), ViewDashboard, nil)
	require.Eventually(t, func() bool { return v.Snapshot().(dashboard.Snapshot).Ready }, time.Second, time.Millisecond)

	snap := v.Snapshot().(dashboard.Snapshot)
	assert.Equal(t, 3, snap.ViewModel.TotalClients)
	assert.Equal(t, 1, snap.ViewModel.ActiveOrders)

	require.NoError(t, v.Handle(context.Background(), Command{Type: "refresh"}))
	require.Eventually(t, func() bool { return !v.Snapshot().(dashboard.Snapshot).Refreshing }, time.Second, time.Millisecond)
	require.NoError(t, v.Handle(context.Background(), Command{Type: "cancel_refresh"}))
	assert.ErrorIs(t, v.Handle(context.Background(), Command{Type: "export"}), ErrUnknownCommand)
}

func TestAgentView(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	v := mount(t, testRegistry(b), ViewAgent, map[string]string{"kind": "dashboard"})
	assert.Equal(t, "agent:dashboard", v.Name())

	require.NoError(t, v.Handle(context.Background(), cmd(t, "send", map[string]string{"text": "revenue?"})))
	require.Eventually(t, func() bool {
		return len(v.Snapshot().(agent.Snapshot).Messages) == 3
	}, time.Second, time.Millisecond)

	snap := v.Snapshot().(agent.Snapshot)
	assert.False(t, snap.Typing)
	assert.Equal(t, "dashboard says hi", snap.Messages[2].Text)
	assert.Equal(t, agent.DefaultGreeting(domain.AnalyticsAgent), snap.Messages[0].Text)

	err := v.Handle(context.Background(), cmd(t, "send", map[string]string{"text": "  "}))
	assert.ErrorIs(t, err, agent.ErrEmptyQuery)
}

func TestAgentViewDefaultsToSupport(t *testing.T) {
	t.Parallel()

	v := mount(t, testRegistry(newFakeBackend()), ViewAgent, nil)
	assert.Equal(t, "agent:support", v.Name())
}

func TestAgentStatusView(t *testing.T) {
	t.Parallel()

	fc := clock.Fake(time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC))
	b := newFakeBackend()
	signalled := make(chan struct{}, 8)
	v, err := testRegistry(b, WithClock(fc)).Mount(context.Background(), MountRequest{
		Name: ViewAgentStatus,
		OnChange: func() {
			select {
			case signalled <- struct{}{}:
			default:
			}
		},
	})
	require.NoError(t, err)
	defer v.Close()

	select {
	case <-signalled:
	case <-time.After(time.Second):
		t.Fatal("no status sample")
	}
	require.Eventually(t, func() bool {
		return v.Snapshot().(poll.State[domain.AgentStatus]).Data != nil
	}, time.Second, time.Millisecond)

	fc.Advance(3 * time.Second)
	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.statusCalls >= 2
	}, time.Second, time.Millisecond)
	assert.True(t, errors.Is(v.Handle(context.Background(), Command{Type: "refresh"}), ErrUnknownCommand))
}
