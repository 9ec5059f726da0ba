package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestZerologAdapter_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologAdapterWithOptions(&buf, "debug", true)

	logger.Info("drain finished",
		String("tag", "sync-data"),
		Int("delivered", 3),
		Bool("online", true),
		Duration("took", 2*time.Second),
		Err(errors.New("boom")),
	)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v (%s)", err, buf.String())
	}
	if entry["message"] != "drain finished" {
		t.Errorf("message = %v, want drain finished", entry["message"])
	}
	if entry["tag"] != "sync-data" {
		t.Errorf("tag = %v, want sync-data", entry["tag"])
	}
	if entry["delivered"] != float64(3) {
		t.Errorf("delivered = %v, want 3", entry["delivered"])
	}
	if entry["error"] != "boom" {
		t.Errorf("error = %v, want boom", entry["error"])
	}
}

func TestZerologAdapter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologAdapterWithOptions(&buf, "warn", true)

	logger.Debug("hidden")
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %q", buf.String())
	}

	logger.Warn("shown")
	if buf.Len() == 0 {
		t.Fatal("expected warn output")
	}
}

func TestZerologAdapter_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologAdapterWithOptions(&buf, "chatty", true)

	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered at info, got %q", buf.String())
	}
	logger.Info("shown")
	if buf.Len() == 0 {
		t.Fatal("expected info output")
	}
}

func TestZerologAdapter_WithAddsFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewZerologAdapterWithOptions(&buf, "info", true)
	queue := base.With(Component("sync_queue"), Int("max_retries", 3))

	queue.Info("drain started", String("tag", "sync-data"))
	base.Info("unscoped")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %s", len(lines), buf.String())
	}

	var scoped, plain map[string]any
	if err := json.Unmarshal(lines[0], &scoped); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := json.Unmarshal(lines[1], &plain); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if scoped[ComponentKey] != "sync_queue" || scoped["max_retries"] != float64(3) || scoped["tag"] != "sync-data" {
		t.Errorf("scoped entry = %v", scoped)
	}
	if _, ok := plain[ComponentKey]; ok {
		t.Errorf("parent logger picked up child fields: %v", plain)
	}
}

func TestZerologAdapter_NilErrorSkipped(t *testing.T) {
	var buf bytes.Buffer
	NewZerologAdapterWithOptions(&buf, "info", true).Info("ok", Err(nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := entry["error"]; ok {
		t.Errorf("nil error was logged: %v", entry)
	}
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopLogger); !ok {
		t.Error("OrNoop(nil) should return NoopLogger")
	}
	l := NewNoopLogger()
	if OrNoop(l) != Logger(l) {
		t.Error("OrNoop should return a non-nil logger unchanged")
	}
	if OrNoop(nil).With(Component("x")) == nil {
		t.Error("With on noop returned nil")
	}
}
