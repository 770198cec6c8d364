package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"verbose", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := WithComponent(NewWithWriter(&buf, "debug", false), "engine")
	l.Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"component":"engine"`) {
		t.Fatalf("component field missing: %s", out)
	}
	if !strings.Contains(out, `"message":"hello"`) {
		t.Fatalf("message missing: %s", out)
	}
}

func TestLevelFiltersPerLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn", false)
	l.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %s", buf.String())
	}

	l.Warn().Msg("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("warn not written: %s", buf.String())
	}
}
