package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{
			name: "default config",
			config: Config{
				Level:       "info",
				Format:      "json",
				ServiceName: "test-service",
			},
		},
		{
			name: "debug level",
			config: Config{
				Level:       "debug",
				Format:      "json",
				ServiceName: "test-service",
			},
		},
		{
			name: "text format",
			config: Config{
				Level:       "info",
				Format:      "text",
				ServiceName: "test-service",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := New(tt.config)
			if log == nil {
				t.Fatal("expected logger to be non-nil")
			}
		})
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf, ServiceName: "subburner-test"})

	log.Info("hello", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON log line, got: %s", buf.String())
	}
	if entry["msg"] != "hello" {
		t.Errorf("expected msg=hello, got %v", entry["msg"])
	}
	if entry["key"] != "value" {
		t.Errorf("expected key=value, got %v", entry["key"])
	}
	if entry["service"] != "subburner-test" {
		t.Errorf("expected service attribute, got %v", entry["service"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "json", Output: &buf})

	log.Info("should not appear")
	log.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Error("info log should be filtered at warn level")
	}
	if !strings.Contains(out, "should appear") {
		t.Error("warn log should pass at warn level")
	}
}

func TestEnrichment(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.WithComponent("dispatch").WithJobID("job_1").WithUserID("usr_1").Info("event")

	out := buf.String()
	for _, want := range []string{`"component":"dispatch"`, `"job_id":"job_1"`, `"user_id":"usr_1"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log to contain %s, got: %s", want, out)
		}
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	ctx := ContextWithRequestID(context.Background(), "req_1")
	ctx = ContextWithJobID(ctx, "job_2")
	ctx = ContextWithUserID(ctx, "usr_2")

	log.FromContext(ctx).Info("event")

	out := buf.String()
	for _, want := range []string{`"request_id":"req_1"`, `"job_id":"job_2"`, `"user_id":"usr_2"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log to contain %s, got: %s", want, out)
		}
	}

	if got := UserIDFromContext(ctx); got != "usr_2" {
		t.Errorf("UserIDFromContext = %q, want usr_2", got)
	}
	if got := UserIDFromContext(context.Background()); got != "" {
		t.Errorf("UserIDFromContext on empty context = %q, want empty", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "DEBUG"},
		{"INFO", "INFO"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"bogus", "INFO"},
		{"", "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseLevel(tt.in).String(); got != tt.want {
				t.Errorf("parseLevel(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}
