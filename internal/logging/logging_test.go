package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" DEBUG ", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"loud", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewJSONFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(&buf, slog.LevelInfo, "json")
	l.Debug("hidden")
	l.Info("shown", "rows", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record written at info level: %s", out)
	}
	if !strings.Contains(out, `"rows":3`) {
		t.Fatalf("json output missing attribute: %s", out)
	}
}

func TestSetupReadsEnvironment(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	t.Setenv(EnvLevel, "error")
	t.Setenv(EnvFormat, "json")
	l := Setup(false)
	if l.Enabled(context.Background(), slog.LevelWarn) {
		t.Fatalf("%s=error still enables warn", EnvLevel)
	}
	if _, ok := l.Handler().(*slog.JSONHandler); !ok {
		t.Fatalf("%s=json gave handler %T", EnvFormat, l.Handler())
	}

	if l := Setup(true); !l.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("verbose does not force debug")
	}
}
