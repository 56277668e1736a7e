package console

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/ops-console/internal/agent"
	"github.com/ashureev/ops-console/internal/clock"
	"github.com/ashureev/ops-console/internal/config"
	"github.com/ashureev/ops-console/internal/domain"
	"github.com/ashureev/ops-console/internal/session"
)

// View names accepted by Mount.
const (
	ViewDashboard   = "dashboard"
	ViewClients     = "clients"
	ViewOrders      = "orders"
	ViewAgent       = "agent"
	ViewAgentStatus = "agent-status"
)

// BackendFunc returns the backend scoped to an operator session.
type BackendFunc func(sess *session.Session) Backend

// MountRequest describes a view to mount.
type MountRequest struct {
	Name    string
	Params  map[string]string
	Session *session.Session
	// OnChange is signalled whenever the view's snapshot may have changed.
	// It must not block.
	OnChange func()
}

// Registry builds views.
type Registry struct {
	backend BackendFunc
	cfg     *config.Config
	convLog agent.ConversationLogger
	clock   clock.Clock
	logger  *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClock replaces the real clock for every mounted view.
func WithClock(c clock.Clock) RegistryOption {
	return func(r *Registry) { r.clock = c }
}

// WithLogger sets the logger handed to views.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// WithConversationLog records agent conversations to l.
func WithConversationLog(l agent.ConversationLogger) RegistryOption {
	return func(r *Registry) { r.convLog = l }
}

// NewRegistry returns a registry creating views backed by backend.
func NewRegistry(backend BackendFunc, cfg *config.Config, opts ...RegistryOption) *Registry {
	r := &Registry{
		backend: backend,
		cfg:     cfg,
		clock:   clock.Real(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type mountDeps struct {
	backend  Backend
	cfg      *config.Config
	session  *session.Session
	convLog  agent.ConversationLogger
	clock    clock.Clock
	logger   *slog.Logger
	onChange func()
}

// Mount creates the named view. Its fetches start immediately and run
// until the view is closed or ctx is done.
func (r *Registry) Mount(ctx context.Context, req MountRequest) (View, error) {
	onChange := req.OnChange
	if onChange == nil {
		onChange = func() {}
	}
	logger := r.logger
	if req.Session != nil {
		logger = logger.With("session_id", req.Session.ID)
	}
	deps := mountDeps{
		backend:  r.backend(req.Session),
		cfg:      r.cfg,
		session:  req.Session,
		convLog:  r.convLog,
		clock:    r.clock,
		logger:   logger,
		onChange: onChange,
	}

	switch req.Name {
	case ViewDashboard:
		return newDashboardView(ctx, deps), nil
	case ViewClients:
		return newClientsView(ctx, deps), nil
	case ViewOrders:
		return newOrdersView(ctx, deps), nil
	case ViewAgentStatus:
		return newAgentStatusView(ctx, deps), nil
	case ViewAgent:
		kind := domain.SupportAgent
		if k := req.Params["kind"]; k != "" {
			parsed, err := domain.ParseAgentKind(k)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrUnknownView, err)
			}
			kind = parsed
		}
		return newAgentView(kind, deps), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownView, req.Name)
	}
}
