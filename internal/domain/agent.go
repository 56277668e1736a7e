package domain

import (
	"fmt"
	"time"
)

// AgentKind selects one of the remote agent services.
type AgentKind string

const (
	// SupportAgent answers client, order and payment questions.
	SupportAgent AgentKind = "support"
	// AnalyticsAgent answers business metric questions. Its endpoint lives
	// under /agents/dashboard.
	AnalyticsAgent AgentKind = "dashboard"
)

// ParseAgentKind validates a kind taken from user input.
func ParseAgentKind(s string) (AgentKind, error) {
	switch AgentKind(s) {
	case SupportAgent, AnalyticsAgent:
		return AgentKind(s), nil
	default:
		return "", fmt.Errorf("unknown agent kind %q", s)
	}
}

// AgentQuery is the body of POST /agents/{kind}/query.
type AgentQuery struct {
	Query   string         `json:"query"`
	Context map[string]any `json:"context,omitempty"`
}

// Reply is the outcome an agent endpoint reported for a query. It is either
// an Answer or a Refusal.
type Reply interface {
	isReply()
}

// Answer carries the agent's response text.
type Answer struct {
	Text string
}

// Refusal carries the error the agent reported instead of an answer. The
// message may be empty when the endpoint sent neither field.
type Refusal struct {
	Message string
}

func (Answer) isReply()  {}
func (Refusal) isReply() {}

// AgentResponse is the wire shape of an agent reply.
type AgentResponse struct {
	Status   string `json:"status,omitempty"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
	Agent    string `json:"agent,omitempty"`
}

// Reply folds the two optional wire fields into one outcome. A non-empty
// response wins over an error.
func (r AgentResponse) Reply() Reply {
	if r.Response != "" {
		return Answer{Text: r.Response}
	}
	return Refusal{Message: r.Error}
}

// AgentStatus is returned by GET /agents/status.
type AgentStatus struct {
	SupportAgent   AgentHealth `json:"support_agent"`
	DashboardAgent AgentHealth `json:"dashboard_agent"`
}

// AgentHealth describes one agent service.
type AgentHealth struct {
	Status       string            `json:"status"`
	Capabilities AgentCapabilities `json:"capabilities"`
}

// AgentCapabilities is the self-description of an agent.
type AgentCapabilities struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
}

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

// Message is one transcript entry. Messages are never mutated once
// appended.
type Message struct {
	ID        int       `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp string    `json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
}
