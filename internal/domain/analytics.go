package domain

// RevenueAnalytics is returned by GET /analytics/revenue.
type RevenueAnalytics struct {
	CurrentMonthRevenue RevenueSummary     `json:"current_month_revenue"`
	OutstandingPayments OutstandingSummary `json:"outstanding_payments"`
}

// RevenueSummary aggregates completed payments for the current month.
type RevenueSummary struct {
	TotalRevenue       float64 `json:"total_revenue"`
	TotalTransactions  int     `json:"total_transactions"`
	AverageTransaction float64 `json:"average_transaction"`
}

// OutstandingSummary aggregates pending payments.
type OutstandingSummary struct {
	TotalOutstanding float64 `json:"total_outstanding"`
	Count            int     `json:"count"`
}

// ClientAnalytics is returned by GET /analytics/clients.
type ClientAnalytics struct {
	StatusDistribution  []StatusCount `json:"status_distribution"`
	NewClientsThisMonth int           `json:"new_clients_this_month"`
	TotalClients        int           `json:"total_clients"`
}

// StatusCount is one bucket of a status distribution.
type StatusCount struct {
	Status string `json:"_id"`
	Count  int    `json:"count"`
}

// CourseAnalytics is returned by GET /analytics/courses.
type CourseAnalytics struct {
	CoursePerformance []CoursePerformance `json:"course_performance"`
}

// CoursePerformance is the enrollment and revenue of one course.
type CoursePerformance struct {
	ID              string  `json:"_id"`
	Name            string  `json:"name"`
	Instructor      string  `json:"instructor"`
	EnrollmentCount int     `json:"enrollment_count"`
	TotalRevenue    float64 `json:"total_revenue"`
}
