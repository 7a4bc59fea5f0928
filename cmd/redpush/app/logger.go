package app

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agentstation/redpush/pkg/logging"
)

const defaultLogLevel = "info"

// NewLogger builds the redpush logger from config. The level comes from
// the first of these that is set:
//
//	--log-level
//	-q/--quiet or -v/--verbose (quiet wins when both are given)
//	REDPUSH_LOG_LEVEL, LOG_LEVEL or log_level in .redpush.yaml
//	info
//
// Caller locations are added at debug and trace so push runs can be
// traced back to the reconciler that logged them.
func NewLogger(config *Config) zerolog.Logger {
	level := resolveLogLevel(config, os.Stderr)

	return logging.NewLoggerFromConfig(&logging.Config{
		Level:     level,
		Format:    config.LogFormat,
		Output:    config.LogOutput,
		NoColor:   config.NoColor,
		AddCaller: level == zerolog.DebugLevel.String() || level == zerolog.TraceLevel.String(),
	})
}

// determineLogLevel resolves the level for config, warning on stderr.
func determineLogLevel(config *Config) string {
	return resolveLogLevel(config, os.Stderr)
}

// resolveLogLevel walks the sources in order. Problems with an explicit
// flag are reported to warn; a bad environment or config value silently
// falls back to info.
func resolveLogLevel(config *Config, warn io.Writer) string {
	switch {
	case config.LogLevel != "":
		level, ok := parseLogLevel(config.LogLevel)
		if !ok {
			fmt.Fprintf(warn, "Warning: invalid log level %q, using %q\n", config.LogLevel, level)
		}
		return level
	case config.Verbose && config.Quiet:
		fmt.Fprintln(warn, "Warning: both --verbose and --quiet given, using --quiet")
		return zerolog.WarnLevel.String()
	case config.Quiet:
		return zerolog.WarnLevel.String()
	case config.Verbose:
		return zerolog.DebugLevel.String()
	case config.EnvLogLevel != "":
		level, _ := parseLogLevel(config.EnvLogLevel)
		return level
	}
	return defaultLogLevel
}

// parseLogLevel accepts trace through error in any case. Anything else
// yields info and false.
func parseLogLevel(s string) (string, bool) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || level < zerolog.TraceLevel || level > zerolog.ErrorLevel {
		return defaultLogLevel, false
	}
	return level.String(), true
}
