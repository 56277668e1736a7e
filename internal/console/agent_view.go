package console

import (
	"context"

	"github.com/ashureev/ops-console/internal/agent"
	"github.com/ashureev/ops-console/internal/domain"
)

// AgentView is a chat with one agent service.
type AgentView struct {
	session *agent.Session
}

func newAgentView(kind domain.AgentKind, deps mountDeps) *AgentView {
	greeting := deps.cfg.Agents.SupportGreeting
	if kind == domain.AnalyticsAgent {
		greeting = deps.cfg.Agents.AnalyticsGreeting
	}

	opts := []agent.Option{
		agent.WithClock(deps.clock),
		agent.WithLogger(deps.logger),
		agent.WithGreeting(greeting),
		agent.WithOnChange(func(agent.Snapshot) { signal(deps.onChange) }),
	}
	if deps.session != nil {
		opts = append(opts, agent.WithConversationLog(deps.convLog, deps.session.ID))
	}
	return &AgentView{session: agent.NewSession(kind, deps.backend, opts...)}
}

func (v *AgentView) Name() string { return ViewAgent + ":" + string(v.session.Kind()) }

func (v *AgentView) Snapshot() any { return v.session.Snapshot() }

// Handle runs send. The reply arrives through the change signal.
func (v *AgentView) Handle(ctx context.Context, cmd Command) error {
	if cmd.Type != "send" {
		return unknownCommand(v.Name(), cmd)
	}
	var p struct {
		Text string `json:"text"`
	}
	if err := decodePayload(cmd, &p); err != nil {
		return err
	}
	_, err := v.session.Send(ctx, p.Text)
	return err
}

func (v *AgentView) Close() { v.session.Close() }
