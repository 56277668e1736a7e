package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ashureev/ops-console/internal/domain"
)

// QueryAgent sends one query to the agent of the given kind and returns its
// reply. A reply is returned only for a 2xx response.
func (c *Client) QueryAgent(ctx context.Context, kind domain.AgentKind, q domain.AgentQuery) (domain.Reply, error) {
	var resp domain.AgentResponse
	path := fmt.Sprintf("/agents/%s/query", url.PathEscape(string(kind)))
	if err := c.do(ctx, "query_agent", http.MethodPost, path, nil, q, &resp); err != nil {
		return nil, err
	}
	return resp.Reply(), nil
}

// QuerySupportAgent queries the support agent.
func (c *Client) QuerySupportAgent(ctx context.Context, q domain.AgentQuery) (domain.Reply, error) {
	return c.QueryAgent(ctx, domain.SupportAgent, q)
}

// QueryDashboardAgent queries the analytics agent.
func (c *Client) QueryDashboardAgent(ctx context.Context, q domain.AgentQuery) (domain.Reply, error) {
	return c.QueryAgent(ctx, domain.AnalyticsAgent, q)
}

// AgentStatus returns the health of both agents.
func (c *Client) AgentStatus(ctx context.Context) (domain.AgentStatus, error) {
	var status domain.AgentStatus
	err := c.do(ctx, "agent_status", http.MethodGet, "/agents/status", nil, nil, &status)
	return status, err
}

// ListClients returns one page of clients.
func (c *Client) ListClients(ctx context.Context, p ListParams) (domain.ClientPage, error) {
	var page domain.ClientPage
	err := c.do(ctx, "list_clients", http.MethodGet, "/clients", p.values(), nil, &page)
	return page, err
}

// CreateClient registers a new client.
func (c *Client) CreateClient(ctx context.Context, in domain.ClientInput) (domain.Created, error) {
	var created domain.Created
	err := c.do(ctx, "create_client", http.MethodPost, "/clients", nil, in, &created)
	return created, err
}

// GetClient returns a client with its orders and payments.
func (c *Client) GetClient(ctx context.Context, id string) (domain.ClientDetail, error) {
	var detail domain.ClientDetail
	err := c.do(ctx, "get_client", http.MethodGet, "/clients/"+url.PathEscape(id), nil, nil, &detail)
	return detail, err
}

// ListOrders returns one page of orders.
func (c *Client) ListOrders(ctx context.Context, p ListParams) (domain.OrderPage, error) {
	var page domain.OrderPage
	err := c.do(ctx, "list_orders", http.MethodGet, "/orders", p.values(), nil, &page)
	return page, err
}

// CreateOrder places a new order.
func (c *Client) CreateOrder(ctx context.Context, in domain.OrderInput) (domain.Created, error) {
	var created domain.Created
	err := c.do(ctx, "create_order", http.MethodPost, "/orders", nil, in, &created)
	return created, err
}

// RevenueAnalytics returns this month's revenue and outstanding payments.
func (c *Client) RevenueAnalytics(ctx context.Context) (domain.RevenueAnalytics, error) {
	var a domain.RevenueAnalytics
	err := c.do(ctx, "revenue_analytics", http.MethodGet, "/analytics/revenue", nil, nil, &a)
	return a, err
}

// ClientAnalytics returns the client status distribution and totals.
func (c *Client) ClientAnalytics(ctx context.Context) (domain.ClientAnalytics, error) {
	var a domain.ClientAnalytics
	err := c.do(ctx, "client_analytics", http.MethodGet, "/analytics/clients", nil, nil, &a)
	return a, err
}

// CourseAnalytics returns enrollment and revenue per course.
func (c *Client) CourseAnalytics(ctx context.Context) (domain.CourseAnalytics, error) {
	var a domain.CourseAnalytics
	err := c.do(ctx, "course_analytics", http.MethodGet, "/analytics/courses", nil, nil, &a)
	return a, err
}
