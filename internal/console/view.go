// Package console mounts the operator views served over websockets. Each
// mounted view owns its queries, probes and agent sessions until it is
// closed.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ashureev/ops-console/internal/agent"
	"github.com/ashureev/ops-console/internal/dashboard"
	"github.com/ashureev/ops-console/internal/domain"
	"github.com/ashureev/ops-console/internal/gateway"
)

var (
	// ErrUnknownView is returned when mounting a view name that does not exist.
	ErrUnknownView = errors.New("console: unknown view")
	// ErrUnknownCommand is returned for commands a view does not handle.
	ErrUnknownCommand = errors.New("console: unknown command")
)

// Command is an operator action sent to a mounted view.
type Command struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// View is a mounted screen. Snapshot must be safe to call from any
// goroutine; Close releases everything the view owns.
type View interface {
	Name() string
	Snapshot() any
	Handle(ctx context.Context, cmd Command) error
	Close()
}

// Backend is the slice of the REST gateway the views use. It is satisfied
// by *gateway.Client.
type Backend interface {
	dashboard.Source
	agent.Querier
	AgentStatus(ctx context.Context) (domain.AgentStatus, error)
	ListClients(ctx context.Context, p gateway.ListParams) (domain.ClientPage, error)
	CreateClient(ctx context.Context, in domain.ClientInput) (domain.Created, error)
	CreateOrder(ctx context.Context, in domain.OrderInput) (domain.Created, error)
}

func decodePayload(cmd Command, v any) error {
	if len(cmd.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", cmd.Type)
	}
	if err := json.Unmarshal(cmd.Payload, v); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", cmd.Type, err)
	}
	return nil
}

func unknownCommand(view string, cmd Command) error {
	return fmt.Errorf("%w %q for view %s", ErrUnknownCommand, cmd.Type, view)
}

// signal calls fn if it is set.
func signal(fn func()) {
	if fn != nil {
		fn()
	}
}
