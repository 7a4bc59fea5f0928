// Package constants provides shared constants used throughout redpush.
// This includes timeouts, limits, file permissions, and the defaults the
// dashboard server API expects.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for one request to the dashboard server
	DefaultHTTPTimeout = 30 * time.Second

	// CommandTimeout is the default timeout for CLI commands
	CommandTimeout = 10 * time.Minute

	// PushTimeout bounds a whole push run
	PushTimeout = 30 * time.Minute
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644

	// SecureFilePermissions is for files that may carry server details (rw-------)
	SecureFilePermissions = 0600
)

// Limit constants define various limits and capacities
const (
	// DefaultPageSize is the page size requested when listing queries
	DefaultPageSize = 250

	// MaxPageSize is the largest page size accepted from configuration
	MaxPageSize = 1000

	// DefaultParallelism runs query groups one at a time
	DefaultParallelism = 1

	// MaxParallelism caps the number of concurrently reconciled query groups
	MaxParallelism = 32

	// DefaultHistoryLimit is the number of journal entries the history command shows
	DefaultHistoryLimit = 50
)

// Rate limiting constants
const (
	// DefaultRateLimit is requests per second; zero disables pacing
	DefaultRateLimit = 0

	// BurstSize is the token bucket burst size for rate limiting
	BurstSize = 5
)

// Format constants
const (
	// TimeFormatHuman is a human-readable time format
	TimeFormatHuman = "Jan 2, 2006 at 3:04pm MST"
)

// Error messages
const (
	// ErrMsgInvalidAPIKey is the standard error message for invalid API keys
	ErrMsgInvalidAPIKey = "invalid or missing API key"
)
