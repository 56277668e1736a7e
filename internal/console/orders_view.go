package console

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ashureev/ops-console/internal/domain"
	"github.com/ashureev/ops-console/internal/gateway"
	"github.com/ashureev/ops-console/internal/query"
)

// OrdersView lists orders with a server-side status filter, a local
// payment filter and a local search.
type OrdersView struct {
	backend  Backend
	q        *query.Query[domain.OrderPage]
	logger   *slog.Logger
	onChange func()

	mu      sync.Mutex
	search  string
	payment string
}

// OrdersSnapshot is what the orders view renders. Totals cover every
// loaded order regardless of the local filters.
type OrdersSnapshot struct {
	Filter  string             `json:"filter"`
	Payment string             `json:"payment"`
	Search  string             `json:"search"`
	Loading bool               `json:"loading"`
	Error   string             `json:"error,omitempty"`
	Orders  []domain.Order     `json:"orders"`
	Total   int                `json:"total"`
	Totals  domain.OrderTotals `json:"totals"`
}

func newOrdersView(ctx context.Context, deps mountDeps) *OrdersView {
	v := &OrdersView{
		backend:  deps.backend,
		logger:   deps.logger.With("view", ViewOrders),
		onChange: deps.onChange,
		payment:  FilterAll,
	}
	v.q = query.New[domain.OrderPage](ctx, v.fetch, query.Key{FilterAll},
		query.WithName[domain.OrderPage](ViewOrders),
		query.WithLogger[domain.OrderPage](deps.logger),
		query.WithOnChange(func(query.State[domain.OrderPage]) { signal(v.onChange) }),
	)
	return v
}

func (v *OrdersView) fetch(ctx context.Context, key query.Key) (domain.OrderPage, error) {
	p := gateway.ListParams{Skip: 0, Limit: 100}
	if status, _ := key[0].(string); status != FilterAll {
		p.Status = status
	}
	return v.backend.ListOrders(ctx, p)
}

func (v *OrdersView) Name() string { return ViewOrders }

func (v *OrdersView) Snapshot() any {
	st := v.q.State()
	filter, _ := v.q.Key()[0].(string)

	v.mu.Lock()
	search, payment := v.search, v.payment
	v.mu.Unlock()

	snap := OrdersSnapshot{
		Filter:  filter,
		Payment: payment,
		Search:  search,
		Loading: st.Loading,
		Error:   st.Error,
		Orders:  []domain.Order{},
	}
	if st.Data != nil {
		snap.Total = st.Data.Total
		snap.Totals = domain.SummarizeOrders(st.Data.Orders)
		for _, o := range st.Data.Orders {
			if matchOrder(o, search, payment) {
				snap.Orders = append(snap.Orders, o)
			}
		}
	}
	return snap
}

func matchOrder(o domain.Order, term, payment string) bool {
	if payment != FilterAll && string(o.PaymentStatus) != payment {
		return false
	}
	if term == "" {
		return true
	}
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(o.OrderNumber), term) ||
		strings.Contains(strings.ToLower(o.ServiceName), term)
}

func (v *OrdersView) Handle(ctx context.Context, cmd Command) error {
	switch cmd.Type {
	case "filter":
		var p struct {
			Status string `json:"status"`
		}
		if err := decodePayload(cmd, &p); err != nil {
			return err
		}
		v.q.SetKey(query.Key{normalizeFilter(p.Status)})
		return nil
	case "payment":
		var p struct {
			Status string `json:"status"`
		}
		if err := decodePayload(cmd, &p); err != nil {
			return err
		}
		v.mu.Lock()
		v.payment = normalizeFilter(p.Status)
		v.mu.Unlock()
		signal(v.onChange)
		return nil
	case "search":
		var p struct {
			Term string `json:"term"`
		}
		if err := decodePayload(cmd, &p); err != nil {
			return err
		}
		v.mu.Lock()
		v.search = strings.TrimSpace(p.Term)
		v.mu.Unlock()
		signal(v.onChange)
		return nil
	case "refetch":
		v.q.Refetch(ctx)
		return nil
	case "create":
		var in domain.OrderInput
		if err := decodePayload(cmd, &in); err != nil {
			return err
		}
		created, err := v.backend.CreateOrder(ctx, in)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		v.logger.Info("Order created", "order_id", created.OrderID, "order_number", created.OrderNumber)
		v.q.Refetch(ctx)
		return nil
	default:
		return unknownCommand(v.Name(), cmd)
	}
}

func (v *OrdersView) Close() { v.q.Close() }
