package domain

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderCancelled OrderStatus = "cancelled"
	OrderRefunded  OrderStatus = "refunded"
)

// PaymentStatus is the payment state of an order.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentPartial  PaymentStatus = "partial"
	PaymentRefunded PaymentStatus = "refunded"
)

// Order is a purchase of a service by a client.
type Order struct {
	ID              string        `json:"_id"`
	OrderNumber     string        `json:"order_number"`
	ServiceName     string        `json:"service_name"`
	Amount          float64       `json:"amount"`
	DiscountApplied float64       `json:"discount_applied,omitempty"`
	FinalAmount     float64       `json:"final_amount"`
	Currency        string        `json:"currency,omitempty"`
	Status          OrderStatus   `json:"status"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	PaymentMethod   string        `json:"payment_method,omitempty"`
	ClientID        string        `json:"client_id"`
	CourseID        string        `json:"course_id,omitempty"`
	CreatedAt       Timestamp     `json:"created_at"`
}

// OrderPage is one page of GET /orders.
type OrderPage struct {
	Orders []Order `json:"orders"`
	Total  int     `json:"total"`
	Skip   int     `json:"skip"`
	Limit  int     `json:"limit"`
}

// OrderInput is the body of POST /orders.
type OrderInput struct {
	ClientID        string         `json:"client_id"`
	CourseID        string         `json:"course_id"`
	ServiceName     string         `json:"service_name"`
	Amount          float64        `json:"amount"`
	DiscountApplied float64        `json:"discount_applied,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// OrderTotals summarizes a list of orders.
type OrderTotals struct {
	Confirmed      int     `json:"confirmed"`
	Pending        int     `json:"pending"`
	PaidRevenue    float64 `json:"paid_revenue"`
	PendingRevenue float64 `json:"pending_revenue"`
}

// SummarizeOrders counts confirmed and pending orders and sums final
// amounts of paid and unpaid orders.
func SummarizeOrders(orders []Order) OrderTotals {
	var t OrderTotals
	for _, o := range orders {
		switch o.Status {
		case OrderConfirmed:
			t.Confirmed++
		case OrderPending:
			t.Pending++
		}
		switch o.PaymentStatus {
		case PaymentPaid:
			t.PaidRevenue += o.FinalAmount
		case PaymentUnpaid:
			t.PendingRevenue += o.FinalAmount
		}
	}
	return t
}
