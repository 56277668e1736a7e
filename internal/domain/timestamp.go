package domain

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"time"
)

// timestampLayouts are tried in order. The backend emits naive UTC
// datetimes, with or without fractional seconds and offset.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp is a time decoded leniently from the backend's JSON.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON accepts null, empty strings and the layouts above. Any
// other value decodes to the zero time so one odd record does not fail the
// page it arrived in.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	t.Time = time.Time{}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		slog.Debug("Ignoring non-string timestamp", "value", string(data))
		return nil
	}
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	slog.Debug("Ignoring timestamp in unrecognized layout", "value", s)
	return nil
}

// MarshalJSON writes RFC 3339, or null for the zero time.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Clock formats the time as HH:MM in UTC.
func (t Timestamp) Clock() string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("15:04")
}
