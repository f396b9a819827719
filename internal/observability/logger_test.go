package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v (output %q)", err, buf.String())
	}
	return entry
}

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name  string
		level string
		emit  func(Logger)
		want  bool
	}{
		{"info emits info", "info", func(l Logger) { l.Info("hello") }, true},
		{"info drops debug", "info", func(l Logger) { l.Debug("hello") }, false},
		{"debug emits debug", "debug", func(l Logger) { l.Debug("hello") }, true},
		{"warn drops info", "warn", func(l Logger) { l.Info("hello") }, false},
		{"warning alias emits warn", "warning", func(l Logger) { l.Warn("hello") }, true},
		{"error drops warn", "error", func(l Logger) { l.Warn("hello") }, false},
		{"error emits error", "error", func(l Logger) { l.Error("hello") }, true},
		{"unknown falls back to info", "verbose", func(l Logger) { l.Info("hello") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.emit(NewLogger(Config{Level: tt.level, Format: "json", Output: buf}))
			if got := strings.Contains(buf.String(), "hello"); got != tt.want {
				t.Errorf("emitted=%v, want %v (output %q)", got, tt.want, buf.String())
			}
		})
	}
}

func TestLoggerFormats(t *testing.T) {
	buf := &bytes.Buffer{}
	NewLogger(Config{Level: "info", Format: "json", Output: buf}).Info("served installer", "bytes", 42)
	entry := decodeLine(t, buf)
	if entry["msg"] != "served installer" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["bytes"] != float64(42) {
		t.Errorf("bytes = %v", entry["bytes"])
	}

	buf.Reset()
	NewLogger(Config{Level: "info", Format: "TEXT", Output: buf}).Info("served installer", "bytes", 42)
	if out := buf.String(); !strings.Contains(out, "bytes=42") || !strings.Contains(out, "served installer") {
		t.Errorf("unexpected text output %q", out)
	}
}

func TestLoggerWithAndComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	base := NewLogger(Config{Level: "info", Format: "json", Output: buf})

	base.With("addr", ":8080").WithComponent("server").Info("listening")
	entry := decodeLine(t, buf)
	if entry["addr"] != ":8080" {
		t.Errorf("addr = %v", entry["addr"])
	}
	if entry["component"] != "server" {
		t.Errorf("component = %v", entry["component"])
	}

	buf.Reset()
	base.Info("plain")
	if strings.Contains(buf.String(), "component") {
		t.Errorf("With must not mutate the parent logger: %q", buf.String())
	}
}

func TestLoggerContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{Level: "debug", Format: "json", Output: buf})

	ctx := WithComponent(WithRequestID(context.Background(), "req-1"), "download")

	emitters := map[string]func(){
		"debug": func() { logger.DebugContext(ctx, "m") },
		"info":  func() { logger.InfoContext(ctx, "m") },
		"warn":  func() { logger.WarnContext(ctx, "m") },
		"error": func() { logger.ErrorContext(ctx, "m") },
	}
	for name, emit := range emitters {
		t.Run(name, func(t *testing.T) {
			buf.Reset()
			emit()
			entry := decodeLine(t, buf)
			if entry["request_id"] != "req-1" {
				t.Errorf("request_id = %v", entry["request_id"])
			}
			if entry["component"] != "download" {
				t.Errorf("component = %v", entry["component"])
			}
		})
	}
}

func TestLoggerContextFieldsDoNotDuplicate(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{Level: "info", Format: "json", Output: buf})

	ctx := WithRequestID(context.Background(), "from-ctx")
	logger.InfoContext(ctx, "m", "request_id", "explicit")

	if n := strings.Count(buf.String(), "request_id"); n != 1 {
		t.Fatalf("request_id appears %d times: %q", n, buf.String())
	}
	if entry := decodeLine(t, buf); entry["request_id"] != "explicit" {
		t.Errorf("request_id = %v, want explicit", entry["request_id"])
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()

	if got := WithRequestID(ctx, ""); got != ctx {
		t.Error("empty request id should return the same context")
	}
	if got := WithComponent(ctx, ""); got != ctx {
		t.Error("empty component should return the same context")
	}
	if RequestIDFromContext(ctx) != "" || ComponentFromContext(ctx) != "" {
		t.Error("background context should carry no values")
	}

	//nolint:staticcheck // nil context is part of the contract
	if RequestIDFromContext(nil) != "" || ComponentFromContext(nil) != "" {
		t.Error("nil context should yield empty strings")
	}
	if got := appendContextFields(nil, []any{"k", "v"}); len(got) != 2 {
		t.Errorf("appendContextFields(nil) = %v", got)
	}

	ctx = WithRequestID(ctx, "abc")
	ctx = WithComponent(ctx, "ledger")
	if RequestIDFromContext(ctx) != "abc" {
		t.Errorf("request id = %q", RequestIDFromContext(ctx))
	}
	if ComponentFromContext(ctx) != "ledger" {
		t.Errorf("component = %q", ComponentFromContext(ctx))
	}
}

func TestDiscardAndDefaults(t *testing.T) {
	Discard().Error("nothing to see")

	cfg := DefaultConfig()
	if cfg.Level != "info" || cfg.Format != "json" || cfg.Output == nil {
		t.Errorf("unexpected default config %+v", cfg)
	}
	if NewLogger(Config{}) == nil {
		t.Error("zero config should still build a logger")
	}
}
