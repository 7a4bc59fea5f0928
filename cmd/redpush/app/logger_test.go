package app

import (
	"bytes"
	"strings"
	"testing"
)

// TestDetermineLogLevel tests the log level precedence logic.
func TestDetermineLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		expected string
	}{
		{
			name:     "default level when nothing set",
			config:   &Config{},
			expected: "info",
		},
		{
			name:     "verbose flag sets debug",
			config:   &Config{Verbose: true},
			expected: "debug",
		},
		{
			name:     "quiet flag sets warn",
			config:   &Config{Quiet: true},
			expected: "warn",
		},
		{
			name:     "explicit log-level overrides verbose",
			config:   &Config{LogLevel: "error", Verbose: true},
			expected: "error",
		},
		{
			name:     "explicit log-level overrides quiet",
			config:   &Config{LogLevel: "trace", Quiet: true},
			expected: "trace",
		},
		{
			name:     "both verbose and quiet prefers quiet",
			config:   &Config{Verbose: true, Quiet: true},
			expected: "warn",
		},
		{
			name:     "environment level used without flags",
			config:   &Config{EnvLogLevel: "error"},
			expected: "error",
		},
		{
			name:     "verbose beats environment level",
			config:   &Config{EnvLogLevel: "error", Verbose: true},
			expected: "debug",
		},
		{
			name:     "log-level is case insensitive",
			config:   &Config{LogLevel: "DEBUG"},
			expected: "debug",
		},
		{
			name:     "invalid log-level falls back to info",
			config:   &Config{LogLevel: "loud"},
			expected: "info",
		},
		{
			name:     "invalid environment level falls back to info",
			config:   &Config{EnvLogLevel: "chatty"},
			expected: "info",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := determineLogLevel(tt.config); got != tt.expected {
				t.Errorf("determineLogLevel() = %q, want %q", got, tt.expected)
			}
		})
	}
}

// TestNewLogger verifies the logger honors the resolved level.
func TestNewLogger(t *testing.T) {
	logger := NewLogger(&Config{Quiet: true, LogFormat: "json", LogOutput: "stderr"})
	if got := logger.GetLevel().String(); got != "warn" {
		t.Errorf("logger level = %q, want warn", got)
	}
}

// TestResolveLogLevelWarnings checks which sources report bad values.
func TestResolveLogLevelWarnings(t *testing.T) {
	var warn bytes.Buffer
	if got := resolveLogLevel(&Config{LogLevel: "loud"}, &warn); got != "info" {
		t.Errorf("resolveLogLevel() = %q, want info", got)
	}
	if !strings.Contains(warn.String(), `invalid log level "loud"`) {
		t.Errorf("missing warning for flag, got %q", warn.String())
	}

	warn.Reset()
	resolveLogLevel(&Config{Verbose: true, Quiet: true}, &warn)
	if !strings.Contains(warn.String(), "using --quiet") {
		t.Errorf("missing warning for conflicting flags, got %q", warn.String())
	}

	warn.Reset()
	resolveLogLevel(&Config{EnvLogLevel: "chatty"}, &warn)
	if warn.Len() != 0 {
		t.Errorf("environment level should not warn, got %q", warn.String())
	}
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]string{"TRACE": "trace", " warn ": "warn", "error": "error", "fatal": "info", "": "info"} {
		if got, _ := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %q, want %q", in, got, want)
		}
	}
}
