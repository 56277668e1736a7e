package dashboard

import (
	"fmt"

	"github.com/ashureev/ops-console/internal/config"
	"github.com/ashureev/ops-console/internal/domain"
)

// Activity is one line of the recent activity feed.
type Activity struct {
	ID      int    `json:"id"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Time    string `json:"time"`
	Status  string `json:"status"`
}

// ViewModel is the derived dashboard summary.
type ViewModel struct {
	TotalClients     int        `json:"total_clients"`
	ActiveOrders     int        `json:"active_orders"`
	MonthlyRevenue   float64    `json:"monthly_revenue"`
	CourseCompletion float64    `json:"course_completion"`
	Activities       []Activity `json:"activities"`
}

// Build derives the view model from the three backing resources. Active
// orders are the pending ones among the fetched page.
func Build(rev domain.RevenueAnalytics, clients domain.ClientAnalytics, orders domain.OrderPage, cfg config.DashboardConfig) ViewModel {
	active := 0
	for _, o := range orders.Orders {
		if o.Status == domain.OrderPending {
			active++
		}
	}
	return ViewModel{
		TotalClients:     clients.TotalClients,
		ActiveOrders:     active,
		MonthlyRevenue:   rev.CurrentMonthRevenue.TotalRevenue,
		CourseCompletion: cfg.CourseCompletion,
		Activities:       Activities(orders.Orders, cfg),
	}
}

// Activities maps the first cfg.ActivityLimit orders to feed entries and
// appends the configured informational entry.
func Activities(orders []domain.Order, cfg config.DashboardConfig) []Activity {
	n := min(len(orders), cfg.ActivityLimit)
	feed := make([]Activity, 0, n+1)
	for i, o := range orders[:n] {
		status := "pending"
		if o.Status == domain.OrderConfirmed {
			status = "success"
		}
		feed = append(feed, Activity{
			ID:      i + 1,
			Type:    "order",
			Message: fmt.Sprintf("Order %s for %s", o.OrderNumber, o.ServiceName),
			Time:    o.CreatedAt.Clock(),
			Status:  status,
		})
	}
	info := cfg.InfoActivity
	if info.Type == "" {
		info.Type = "class"
	}
	return append(feed, Activity{
		ID:      len(feed) + 1,
		Type:    info.Type,
		Message: info.Message,
		Time:    info.Time,
		Status:  "info",
	})
}
