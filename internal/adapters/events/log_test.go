package events

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/example/dispatch/internal/ports/secondary"
)

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	pub := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))

	at := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	event := secondary.NewEvent(secondary.EventTaskAssigned, "task-1", at, map[string]any{"assignedTo": "op-bob"})
	if err := pub.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log output is not JSON: %v (%s)", err, buf.String())
	}
	if record["topic"] != "tasks.task.assigned" {
		t.Errorf("topic = %v", record["topic"])
	}
	if record["eventType"] != "task.assigned" || record["taskId"] != "task-1" {
		t.Errorf("record = %v", record)
	}
}

func TestEncode(t *testing.T) {
	at := time.Date(2025, 3, 10, 8, 0, 0, 0, time.FixedZone("CET", 3600))
	payload, err := Encode(secondary.NewEvent(secondary.EventTaskCreated, "task-1", at, map[string]any{"priority": "URGENT"}))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got := string(payload)
	for _, want := range []string{
		`"eventType":"task.created"`,
		`"taskId":"task-1"`,
		`"occurredAt":"2025-03-10T07:00:00Z"`,
		`"priority":"URGENT"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("payload %s missing %s", got, want)
		}
	}
}
