package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
	if err := Sync(); err != nil {
		t.Errorf("failed to sync logger: %v", err)
	}
}

func TestLoggerUnknownFormat(t *testing.T) {
	if err := Init(WithFormat("xml")); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithFormat("json"), WithWriter(&buf)); err != nil {
		t.Fatalf("init: %v", err)
	}

	ctx := context.Background()
	Named("scorer").With(String("request_id", "abc")).Info(ctx, "scored",
		Int("points", 12),
		Float64("max", 33.5),
		Bool("boundary_applied", true),
		Error(errors.New("boom")),
	)

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if rec["msg"] != "scored" {
		t.Errorf("msg = %v", rec["msg"])
	}
	if rec["component"] != "scorer" {
		t.Errorf("component = %v", rec["component"])
	}
	if rec["request_id"] != "abc" {
		t.Errorf("request_id = %v", rec["request_id"])
	}
	if rec["points"] != float64(12) {
		t.Errorf("points = %v", rec["points"])
	}
	src, _ := rec["source"].(string)
	if !strings.Contains(src, "logger_test.go") {
		t.Errorf("source = %q, want caller file", src)
	}
}

func TestSetLevelString(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithWriter(&buf)); err != nil {
		t.Fatalf("init: %v", err)
	}
	ctx := context.Background()

	for _, lvl := range []string{"debug", "info", "warn", "warning", "error", "", "INFO"} {
		if err := SetLevelString(lvl); err != nil {
			t.Errorf("SetLevelString(%q) = %v", lvl, err)
		}
	}
	if err := SetLevelString("loud"); err == nil {
		t.Error("expected error for unknown level")
	}

	if err := SetLevelString("error"); err != nil {
		t.Fatal(err)
	}
	Get().Info(ctx, "hidden")
	if buf.Len() != 0 {
		t.Errorf("info written at error level: %q", buf.String())
	}
	Get().Error(ctx, "shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("error not written: %q", buf.String())
	}
	_ = SetLevelString("info")
}
