package errors_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	pkgerrors "github.com/agentstation/redpush/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := pkgerrors.New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestNotFoundError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := &pkgerrors.NotFoundError{
			Resource: "dashboard",
			ID:       "exec-overview",
		}
		assert.Equal(t, "dashboard with ID exec-overview not found", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
	})

	t.Run("wrapped error", func(t *testing.T) {
		base := pkgerrors.NewNotFoundError("query", "42")
		wrapped := errors.Join(errors.New("failed"), base)
		assert.True(t, pkgerrors.IsNotFound(wrapped))
	})
}

func TestValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := pkgerrors.NewValidationError("name", "", "is required")
		assert.Equal(t, "validation failed for field name: is required", err.Error())
		assert.True(t, pkgerrors.IsValidationError(err))
	})

	t.Run("without field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{Message: "empty file"}
		assert.Equal(t, "validation failed: empty file", err.Error())
	})

	t.Run("wrap nil", func(t *testing.T) {
		assert.NoError(t, pkgerrors.WrapValidation("name", nil))
	})
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		target error
	}{
		{"rate limited", http.StatusTooManyRequests, pkgerrors.ErrRateLimited},
		{"unauthorized", http.StatusUnauthorized, pkgerrors.ErrAPIKeyInvalid},
		{"forbidden", http.StatusForbidden, pkgerrors.ErrAPIKeyInvalid},
		{"not found", http.StatusNotFound, pkgerrors.ErrNotFound},
		{"server error", http.StatusBadGateway, pkgerrors.ErrServerUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pkgerrors.NewAPIError("redash", tt.status, "boom")
			assert.True(t, errors.Is(err, tt.target))
		})
	}

	t.Run("bad request matches nothing", func(t *testing.T) {
		err := pkgerrors.NewAPIError("redash", http.StatusBadRequest, "bad")
		assert.False(t, pkgerrors.IsRateLimited(err))
		assert.False(t, pkgerrors.IsServerUnavailable(err))
	})

	t.Run("message includes endpoint", func(t *testing.T) {
		err := &pkgerrors.APIError{
			Server:     "redash",
			Method:     http.MethodPost,
			Endpoint:   "/api/queries",
			StatusCode: 500,
			Message:    "internal",
		}
		assert.Equal(t, "API error from redash (POST /api/queries) (status 500): internal", err.Error())
	})

	t.Run("unwrap", func(t *testing.T) {
		base := errors.New("connection reset")
		err := &pkgerrors.APIError{Server: "redash", Message: base.Error(), Err: base}
		assert.ErrorIs(t, err, base)
	})
}

func TestSyncError(t *testing.T) {
	base := pkgerrors.NewAPIError("redash", 500, "down")
	err := pkgerrors.NewSyncError("query", "q-1", base)

	assert.Equal(t, "sync error for query q-1: API error from redash (status 500): down", err.Error())
	assert.True(t, pkgerrors.IsServerUnavailable(err))

	var apiErr *pkgerrors.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 500, apiErr.StatusCode)
}

func TestRejectionError(t *testing.T) {
	err := &pkgerrors.RejectionError{Resource: "dashboard", ID: "7", Message: "not allowed"}
	assert.Equal(t, "server rejected dashboard 7: not allowed", err.Error())
	assert.True(t, pkgerrors.IsRejected(fmt.Errorf("publish: %w", err)))
}

func TestAuthenticationError(t *testing.T) {
	err := &pkgerrors.AuthenticationError{Server: "redash", Method: "header", Message: "missing key"}
	assert.Equal(t, "authentication error for redash (header): missing key", err.Error())
	assert.True(t, pkgerrors.IsAPIKeyError(err))
}

func TestWrapHelpers(t *testing.T) {
	base := errors.New("disk full")

	t.Run("io", func(t *testing.T) {
		err := pkgerrors.WrapIO("write", "/tmp/out.yaml", base)
		assert.Equal(t, "IO error during write of /tmp/out.yaml: disk full", err.Error())
		assert.ErrorIs(t, err, base)
		assert.NoError(t, pkgerrors.WrapIO("write", "x", nil))
	})

	t.Run("resource", func(t *testing.T) {
		err := pkgerrors.WrapResource("archive", "query", "12", base)
		assert.Equal(t, "failed to archive query 12: disk full", err.Error())
		assert.NoError(t, pkgerrors.WrapResource("archive", "query", "12", nil))
	})

	t.Run("parse", func(t *testing.T) {
		err := pkgerrors.WrapParse("yaml", "queries.yaml", base)
		assert.Equal(t, "parse error in yaml file queries.yaml: disk full", err.Error())

		var parseErr *pkgerrors.ParseError
		require.True(t, errors.As(err, &parseErr))
		assert.Equal(t, "yaml", parseErr.Format)
	})

	t.Run("config", func(t *testing.T) {
		err := pkgerrors.NewConfigError("redash", "url is required", nil)
		assert.Equal(t, "configuration error in redash: url is required", err.Error())
	})
}
