package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"familyboard/internal/logging"
)

func TestConsoleLoggerWritesComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger = logging.NewComponentLogger(logger, "transition")
	logger.Info("order moved", logging.OrderID("o-1"), logging.String("notes", "two words"))
	logger.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "INFO transition: order moved") {
		t.Fatalf("missing header in %q", out)
	}
	if !strings.Contains(out, "order_id=o-1") || !strings.Contains(out, `notes="two words"`) {
		t.Fatalf("missing fields in %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line should be filtered: %q", out)
	}
}

func TestJSONLoggerIncludesContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := logging.WithRequestID(logging.WithFamilyID(context.Background(), "fam-1"), "req-9")
	logging.WithContext(ctx, logger).Warn("boom", logging.Error(errors.New("bad")))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	if payload["family_id"] != "fam-1" || payload["correlation_id"] != "req-9" {
		t.Fatalf("missing context fields: %v", payload)
	}
	if payload["level"] != "warn" || payload["error"] != "bad" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
