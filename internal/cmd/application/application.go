// Package application provides the application interface for redpush commands.
//
// Commands accept an Application rather than the concrete App from
// cmd/redpush/app, so they can be tested with a Mock:
//
//	mock := &application.Mock{
//	    ClientFunc: func(...redpush.Option) (redpush.Client, error) {
//	        return redpush.New(redpush.WithURL(srv.URL))
//	    },
//	}
//	cmd := push.NewCommand(mock)
package application

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/redpush"
)

// Application provides what commands need from the application.
//
// Thread Safety: All methods must be safe for concurrent access.
type Application interface {
	// Client returns the dashboard server client. Without options the
	// cached client built from configuration is returned; with options a
	// new client is created from configuration plus opts.
	Client(opts ...redpush.Option) (redpush.Client, error)

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (table, json, yaml).
	OutputFormat() string

	// NoColor reports whether colored output is disabled.
	NoColor() bool

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}
