package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampAcceptsBackendLayouts(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
	}{
		{`"2026-03-05T10:30:00"`, time.Date(2026, 3, 5, 10, 30, 0, 0, time.UTC)},
		{`"2026-03-05T10:30:00.123456"`, time.Date(2026, 3, 5, 10, 30, 0, 123456000, time.UTC)},
		{`"2026-03-05T10:30:00Z"`, time.Date(2026, 3, 5, 10, 30, 0, 0, time.UTC)},
		{`"2026-03-05T12:30:00+02:00"`, time.Date(2026, 3, 5, 10, 30, 0, 0, time.UTC)},
		{`"2026-03-05"`, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		var ts Timestamp
		require.NoError(t, json.Unmarshal([]byte(tc.raw), &ts), tc.raw)
		assert.True(t, tc.want.Equal(ts.Time), "%s decoded to %v", tc.raw, ts.Time)
	}

	var empty Timestamp
	require.NoError(t, json.Unmarshal([]byte(`null`), &empty))
	assert.True(t, empty.IsZero())
	assert.Equal(t, "", empty.Clock())

	for _, raw := range []string{`"yesterday"`, `1709634600`} {
		bad := Timestamp{Time: time.Now()}
		require.NoError(t, json.Unmarshal([]byte(raw), &bad), raw)
		assert.True(t, bad.IsZero(), raw)
	}
}

func TestOrderPageSurvivesOddTimestamp(t *testing.T) {
	raw := `{"orders": [
		{"order_number": "ORD-1", "created_at": "2026-03-05T10:30:00"},
		{"order_number": "ORD-2", "created_at": "05/03/2026 10:30"}
	], "total": 2}`

	var page OrderPage
	require.NoError(t, json.Unmarshal([]byte(raw), &page))
	require.Len(t, page.Orders, 2)
	assert.Equal(t, "10:30", page.Orders[0].CreatedAt.Clock())
	assert.True(t, page.Orders[1].CreatedAt.IsZero())
	assert.Equal(t, "", page.Orders[1].CreatedAt.Clock())
	assert.Equal(t, 2, page.Total)
}

func TestAgentResponseReplyPrecedence(t *testing.T) {
	assert.Equal(t, Answer{Text: "₹50,000"}, AgentResponse{Response: "₹50,000", Error: "ignored"}.Reply())
	assert.Equal(t, Refusal{Message: "db down"}, AgentResponse{Error: "db down"}.Reply())
	assert.Equal(t, Refusal{}, AgentResponse{}.Reply())
}

func TestSummarizeOrders(t *testing.T) {
	totals := SummarizeOrders([]Order{
		{Status: OrderConfirmed, PaymentStatus: PaymentPaid, FinalAmount: 1500},
		{Status: OrderPending, PaymentStatus: PaymentUnpaid, FinalAmount: 800},
		{Status: OrderCancelled, PaymentStatus: PaymentRefunded, FinalAmount: 300},
		{Status: OrderConfirmed, PaymentStatus: PaymentPartial, FinalAmount: 200},
	})
	assert.Equal(t, OrderTotals{Confirmed: 2, Pending: 1, PaidRevenue: 1500, PendingRevenue: 800}, totals)
}

func TestCountClientsByStatus(t *testing.T) {
	counts := CountClientsByStatus([]Client{
		{Status: ClientActive}, {Status: ClientActive}, {Status: ClientSuspended},
	})
	assert.Equal(t, 2, counts[ClientActive])
	assert.Equal(t, 0, counts[ClientInactive])
	assert.Equal(t, 1, counts[ClientSuspended])
}

func TestOperatorSessionExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := &OperatorSession{ExpiresAt: now.Add(time.Hour)}

	assert.False(t, s.Expired(now))
	assert.Equal(t, time.Hour, s.Remaining(now))
	assert.True(t, s.Expired(now.Add(time.Hour)))
	assert.Equal(t, time.Duration(0), s.Remaining(now.Add(2*time.Hour)))
}
