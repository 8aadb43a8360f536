package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		log, err := NewLogger("debug", format, "smartchair-posture")
		if err != nil {
			t.Fatalf("NewLogger(%s) failed: %v", format, err)
		}
		if !log.Core().Enabled(zapcore.DebugLevel) {
			t.Errorf("Expected debug level enabled for %s logger", format)
		}
	}
}
