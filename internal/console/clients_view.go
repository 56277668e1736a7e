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

// FilterAll disables the status filter.
const FilterAll = "all"

// ClientsView lists clients with a server-side status filter and a local
// search.
type ClientsView struct {
	backend  Backend
	q        *query.Query[domain.ClientPage]
	logger   *slog.Logger
	onChange func()

	mu     sync.Mutex
	search string
}

// ClientsSnapshot is what the clients view renders.
type ClientsSnapshot struct {
	Filter  string                      `json:"filter"`
	Search  string                      `json:"search"`
	Loading bool                        `json:"loading"`
	Error   string                      `json:"error,omitempty"`
	Clients []domain.Client             `json:"clients"`
	Total   int                         `json:"total"`
	Counts  map[domain.ClientStatus]int `json:"counts"`
}

func newClientsView(ctx context.Context, deps mountDeps) *ClientsView {
	v := &ClientsView{
		backend:  deps.backend,
		logger:   deps.logger.With("view", ViewClients),
		onChange: deps.onChange,
	}
	v.q = query.New[domain.ClientPage](ctx, v.fetch, query.Key{FilterAll},
		query.WithName[domain.ClientPage](ViewClients),
		query.WithLogger[domain.ClientPage](deps.logger),
		query.WithOnChange(func(query.State[domain.ClientPage]) { signal(v.onChange) }),
	)
	return v
}

func (v *ClientsView) fetch(ctx context.Context, key query.Key) (domain.ClientPage, error) {
	p := gateway.ListParams{Skip: 0, Limit: 100}
	if status, _ := key[0].(string); status != FilterAll {
		p.Status = status
	}
	return v.backend.ListClients(ctx, p)
}

func (v *ClientsView) Name() string { return ViewClients }

func (v *ClientsView) Snapshot() any {
	st := v.q.State()
	filter, _ := v.q.Key()[0].(string)

	v.mu.Lock()
	search := v.search
	v.mu.Unlock()

	snap := ClientsSnapshot{
		Filter:  filter,
		Search:  search,
		Loading: st.Loading,
		Error:   st.Error,
		Clients: []domain.Client{},
		Counts:  domain.CountClientsByStatus(nil),
	}
	if st.Data != nil {
		snap.Total = st.Data.Total
		snap.Counts = domain.CountClientsByStatus(st.Data.Clients)
		for _, c := range st.Data.Clients {
			if matchClient(c, search) {
				snap.Clients = append(snap.Clients, c)
			}
		}
	}
	return snap
}

func matchClient(c domain.Client, term string) bool {
	if term == "" {
		return true
	}
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(c.Name), term) ||
		strings.Contains(strings.ToLower(c.Email), term) ||
		strings.Contains(c.Phone, term)
}

func (v *ClientsView) Handle(ctx context.Context, cmd Command) error {
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
		var in domain.ClientInput
		if err := decodePayload(cmd, &in); err != nil {
			return err
		}
		created, err := v.backend.CreateClient(ctx, in)
		if err != nil {
			return fmt.Errorf("create client: %w", err)
		}
		v.logger.Info("Client created", "client_id", created.ClientID)
		v.q.Refetch(ctx)
		return nil
	default:
		return unknownCommand(v.Name(), cmd)
	}
}

func (v *ClientsView) Close() { v.q.Close() }

func normalizeFilter(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return FilterAll
	}
	return s
}
