package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestOveradmissionIsWarnWithCounts(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)

	log.Overadmission("lead-1", "hot", 4, 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["level"] != "WARN" {
		t.Fatalf("expected WARN level, got %v", entry["level"])
	}
	if entry["msg"] != "concurrency_overadmission" {
		t.Fatalf("unexpected msg %v", entry["msg"])
	}
	if entry["window_count"] != float64(4) || entry["max_sessions_per_week"] != float64(3) {
		t.Fatalf("unexpected counts in %v", entry)
	}
}

func TestCadenceDecisionOnlyLoggedAtDebug(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)
	next := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	log.CadenceDecision("lead-1", "warm", false, &next, []string{"cooldown"})
	if buf.Len() != 0 {
		t.Fatalf("expected debug decision to be filtered in production, got %q", buf.String())
	}

	dev := NewWithWriter("development", &buf)
	dev.CadenceDecision("lead-1", "warm", false, &next, []string{"cooldown"})
	if !bytes.Contains(buf.Bytes(), []byte("next_eligible_at")) {
		t.Fatalf("expected next_eligible_at attribute, got %q", buf.String())
	}
}

func TestWithContextAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)
	ctx := context.WithValue(context.Background(), RequestIDKey, "req-42")

	log.WithContext(ctx).Info("hello")

	if !bytes.Contains(buf.Bytes(), []byte(`"request_id":"req-42"`)) {
		t.Fatalf("expected request id in %q", buf.String())
	}
}
