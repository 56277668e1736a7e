package agent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/ops-console/internal/config"
	"github.com/ashureev/ops-console/internal/logger"
)

func TestConversationLoggerWritesPerConversationNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	convLog, err := NewConversationLogger(config.ConversationLogConfig{
		Enabled:   true,
		Dir:       dir,
		QueueSize: 16,
	}, logger.Discard())
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	defer func() { _ = convLog.Close() }()

	convLog.Log(ConversationLogEvent{
		OperatorID:     "op-1",
		ConversationID: "conv-1",
		Agent:          "support",
		Channel:        "websocket",
		Direction:      "outbound",
		EventType:      "agent_user_message",
		ContentRaw:     "where is\torder ORD-1?",
	})

	path := filepath.Join(dir, "op-1", "conv-1.ndjson")
	line := waitForLogLine(t, path)
	var got ConversationLogEvent
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("failed to unmarshal log line: %v", err)
	}
	if got.ContentRaw != "where is\torder ORD-1?" {
		t.Fatalf("unexpected ContentRaw: %q", got.ContentRaw)
	}
	if got.Content != "where is order ORD-1?" {
		t.Fatalf("unexpected Content: %q", got.Content)
	}
}

func TestConversationLoggerDisabledIsNoop(t *testing.T) {
	t.Parallel()

	convLog, err := NewConversationLogger(config.ConversationLogConfig{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	if _, ok := convLog.(noopConversationLogger); !ok {
		t.Fatalf("expected noop logger, got %T", convLog)
	}
	convLog.Log(ConversationLogEvent{ContentRaw: "ignored"})
	if err := convLog.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestConversationLoggerSanitizesPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	convLog, err := NewConversationLogger(config.ConversationLogConfig{Enabled: true, Dir: dir}, logger.Discard())
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	convLog.Log(ConversationLogEvent{OperatorID: "../../etc", ConversationID: "", ContentRaw: "x"})
	if err := convLog.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	convLog.Log(ConversationLogEvent{OperatorID: "late"})

	if _, err := os.Stat(filepath.Join(dir, "______etc", "unknown.ndjson")); err != nil {
		t.Fatalf("expected sanitized log file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "late")); !os.IsNotExist(err) {
		t.Fatalf("event logged after Close was written: %v", err)
	}
}

func TestCleanForReadabilityStripsANSI(t *testing.T) {
	t.Parallel()

	raw := "\x1b[31merror\x1b[0m   plain\n"
	clean := cleanForReadability(raw)
	if strings.Contains(clean, "\x1b[31m") {
		t.Fatalf("expected ANSI sequence to be stripped: %q", clean)
	}
	if clean != "error plain" {
		t.Fatalf("expected readable text to remain: %q", clean)
	}
}

func waitForLogLine(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) > 0 {
				return lines[len(lines)-1]
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for log file %s", path)
	return ""
}
