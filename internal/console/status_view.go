package console

import (
	"context"

	"github.com/ashureev/ops-console/internal/domain"
	"github.com/ashureev/ops-console/internal/poll"
)

// AgentStatusView polls the agent health endpoint.
type AgentStatusView struct {
	probe *poll.Probe[domain.AgentStatus]
}

func newAgentStatusView(ctx context.Context, deps mountDeps) *AgentStatusView {
	return &AgentStatusView{
		probe: poll.Start[domain.AgentStatus](ctx, deps.backend.AgentStatus, deps.cfg.Polling.AgentStatusInterval,
			poll.WithClock[domain.AgentStatus](deps.clock),
			poll.WithLogger[domain.AgentStatus](deps.logger),
			poll.WithName[domain.AgentStatus](ViewAgentStatus),
			poll.WithOnChange(func(poll.State[domain.AgentStatus]) { signal(deps.onChange) }),
		),
	}
}

func (v *AgentStatusView) Name() string { return ViewAgentStatus }

func (v *AgentStatusView) Snapshot() any { return v.probe.State() }

func (v *AgentStatusView) Handle(_ context.Context, cmd Command) error {
	return unknownCommand(v.Name(), cmd)
}

// Close stops polling and waits for the tick loop to exit.
func (v *AgentStatusView) Close() { v.probe.Stop() }
