package domain

// ClientStatus is the lifecycle state of a client.
type ClientStatus string

const (
	ClientActive    ClientStatus = "active"
	ClientInactive  ClientStatus = "inactive"
	ClientSuspended ClientStatus = "suspended"
)

// Client is a customer record.
type Client struct {
	ID               string       `json:"_id"`
	Name             string       `json:"name"`
	Email            string       `json:"email"`
	Phone            string       `json:"phone"`
	Status           ClientStatus `json:"status"`
	Address          string       `json:"address,omitempty"`
	EmergencyContact string       `json:"emergency_contact,omitempty"`
	DateOfBirth      Timestamp    `json:"date_of_birth"`
	EnrolledCourses  []string     `json:"enrolled_courses"`
	CreatedAt        Timestamp    `json:"created_at"`
}

// ClientPage is one page of GET /clients.
type ClientPage struct {
	Clients      []Client `json:"clients"`
	Total        int      `json:"total"`
	TotalClients int      `json:"total_clients,omitempty"`
	Skip         int      `json:"skip"`
	Limit        int      `json:"limit"`
}

// ClientInput is the body of POST /clients.
type ClientInput struct {
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone"`
	DateOfBirth      *Timestamp `json:"date_of_birth,omitempty"`
	Address          string     `json:"address,omitempty"`
	EmergencyContact string     `json:"emergency_contact,omitempty"`
}

// ClientDetail is returned by GET /clients/{id}.
type ClientDetail struct {
	Client   Client           `json:"client"`
	Orders   []Order          `json:"orders"`
	Payments []map[string]any `json:"payments"`
}

// Created is the acknowledgement returned by the create endpoints.
type Created struct {
	Message     string `json:"message"`
	ClientID    string `json:"client_id,omitempty"`
	OrderID     string `json:"order_id,omitempty"`
	OrderNumber string `json:"order_number,omitempty"`
}

// CountClientsByStatus tallies clients per status.
func CountClientsByStatus(clients []Client) map[ClientStatus]int {
	counts := map[ClientStatus]int{
		ClientActive:    0,
		ClientInactive:  0,
		ClientSuspended: 0,
	}
	for _, c := range clients {
		counts[c.Status]++
	}
	return counts
}
