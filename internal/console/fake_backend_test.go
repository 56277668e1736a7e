package console

import (
	"context"
	"errors"
	"sync"

	"github.com/ashureev/ops-console/internal/domain"
	"github.com/ashureev/ops-console/internal/gateway"
)

type fakeBackend struct {
	mu            sync.Mutex
	clientParams  []gateway.ListParams
	orderParams   []gateway.ListParams
	createdClient []domain.ClientInput
	createdOrder  []domain.OrderInput
	queries       []domain.AgentQuery
	statusCalls   int

	clients   []domain.Client
	orders    []domain.Order
	createErr error
	// createGate, when set, holds CreateClient until it is closed or the
	// caller's context ends.
	createGate chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		clients: []domain.Client{
			{ID: "c1", Name: "Ada Lovelace", Email: "ada@example.com", Phone: "555-0101", Status: domain.ClientActive},
			{ID: "c2", Name: "Grace Hopper", Email: "grace@example.com", Phone: "555-0102", Status: domain.ClientActive},
			{ID: "c3", Name: "Alan Turing", Email: "alan@example.com", Phone: "555-0103", Status: domain.ClientSuspended},
		},
		orders: []domain.Order{
			{OrderNumber: "ORD-1", ServiceName: "Yoga", Status: domain.OrderConfirmed, PaymentStatus: domain.PaymentPaid, FinalAmount: 100},
			{OrderNumber: "ORD-2", ServiceName: "Pilates", Status: domain.OrderPending, PaymentStatus: domain.PaymentUnpaid, FinalAmount: 40},
			{OrderNumber: "ORD-3", ServiceName: "Yoga Advanced", Status: domain.OrderConfirmed, PaymentStatus: domain.PaymentPaid, FinalAmount: 60},
		},
	}
}

func (f *fakeBackend) RevenueAnalytics(context.Context) (domain.RevenueAnalytics, error) {
	return domain.RevenueAnalytics{CurrentMonthRevenue: domain.RevenueSummary{TotalRevenue: 200}}, nil
}

func (f *fakeBackend) ClientAnalytics(context.Context) (domain.ClientAnalytics, error) {
	return domain.ClientAnalytics{TotalClients: 3}, nil
}

func (f *fakeBackend) ListOrders(_ context.Context, p gateway.ListParams) (domain.OrderPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderParams = append(f.orderParams, p)
	var out []domain.Order
	for _, o := range f.orders {
		if p.Status == "" || string(o.Status) == p.Status {
			out = append(out, o)
		}
	}
	return domain.OrderPage{Orders: out, Total: len(out), Limit: p.Limit}, nil
}

func (f *fakeBackend) ListClients(_ context.Context, p gateway.ListParams) (domain.ClientPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clientParams = append(f.clientParams, p)
	var out []domain.Client
	for _, c := range f.clients {
		if p.Status == "" || string(c.Status) == p.Status {
			out = append(out, c)
		}
	}
	return domain.ClientPage{Clients: out, Total: len(out), Limit: p.Limit}, nil
}

func (f *fakeBackend) CreateClient(ctx context.Context, in domain.ClientInput) (domain.Created, error) {
	f.mu.Lock()
	gate := f.createGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.Created{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return domain.Created{}, f.createErr
	}
	f.createdClient = append(f.createdClient, in)
	f.clients = append(f.clients, domain.Client{ID: "new", Name: in.Name, Email: in.Email, Status: domain.ClientActive})
	return domain.Created{Message: "Client created successfully", ClientID: "new"}, nil
}

func (f *fakeBackend) CreateOrder(_ context.Context, in domain.OrderInput) (domain.Created, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return domain.Created{}, f.createErr
	}
	f.createdOrder = append(f.createdOrder, in)
	f.orders = append(f.orders, domain.Order{OrderNumber: "ORD-4", ServiceName: in.ServiceName, Status: domain.OrderPending, PaymentStatus: domain.PaymentUnpaid, FinalAmount: in.Amount})
	return domain.Created{Message: "Order created successfully", OrderID: "o4", OrderNumber: "ORD-4"}, nil
}

func (f *fakeBackend) AgentStatus(context.Context) (domain.AgentStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	return domain.AgentStatus{
		SupportAgent:   domain.AgentHealth{Status: "active"},
		DashboardAgent: domain.AgentHealth{Status: "active"},
	}, nil
}

func (f *fakeBackend) QueryAgent(_ context.Context, kind domain.AgentKind, q domain.AgentQuery) (domain.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if q.Query == "fail" {
		return nil, errors.New("connection refused")
	}
	return domain.Answer{Text: string(kind) + " says hi"}, nil
}

func (f *fakeBackend) lastClientParams() gateway.ListParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clientParams[len(f.clientParams)-1]
}
