package transport

import (
	"net/http"
	"net/url"
	"testing"
)

// TestNoAuth tests that NoAuth applies no authentication.
func TestNoAuth(t *testing.T) {
	auth := &NoAuth{}
	req := &http.Request{Header: make(http.Header)}

	auth.Apply(req, "test-api-key")

	if len(req.Header) != 0 {
		t.Errorf("Expected no headers, got %d", len(req.Header))
	}
}

// TestKeyAuth tests the "Key" authorization scheme.
func TestKeyAuth(t *testing.T) {
	auth := &KeyAuth{}
	req := &http.Request{Header: make(http.Header)}

	auth.Apply(req, "secret")

	if got := req.Header.Get("Authorization"); got != "Key secret" {
		t.Errorf("Expected Authorization header 'Key secret', got '%s'", got)
	}
}

// TestHeaderAuth tests custom header authentication.
func TestHeaderAuth(t *testing.T) {
	auth := &HeaderAuth{Header: "X-Api-Key"}
	req := &http.Request{Header: make(http.Header)}

	auth.Apply(req, "secret")

	if got := req.Header.Get("X-Api-Key"); got != "secret" {
		t.Errorf("Expected X-Api-Key header 'secret', got '%s'", got)
	}
	if req.Header.Get("Authorization") != "" {
		t.Error("Should not have Authorization header")
	}
}

// TestQueryAuth tests query parameter authentication.
func TestQueryAuth(t *testing.T) {
	auth := &QueryAuth{Param: "api_key"}

	reqURL, _ := url.Parse("https://redash.example.com/api/queries?page=2")
	req := &http.Request{URL: reqURL, Header: make(http.Header)}

	auth.Apply(req, "secret")

	query := req.URL.Query()
	if query.Get("api_key") != "secret" {
		t.Errorf("Expected query param 'api_key=secret', got '%s'", req.URL.RawQuery)
	}
	if query.Get("page") != "2" {
		t.Errorf("Expected existing param to be preserved, got '%s'", query.Get("page"))
	}

	// nil URL must not panic
	auth.Apply(&http.Request{Header: make(http.Header)}, "secret")
}

// TestAuthenticatorFor tests scheme selection.
func TestAuthenticatorFor(t *testing.T) {
	tests := []struct {
		scheme string
		want   string
	}{
		{"", "*transport.KeyAuth"},
		{"header", "*transport.KeyAuth"},
		{"QUERY", "*transport.QueryAuth"},
		{"none", "*transport.NoAuth"},
		{"bogus", "*transport.KeyAuth"},
	}

	for _, tt := range tests {
		t.Run(tt.scheme, func(t *testing.T) {
			got := AuthenticatorFor(tt.scheme)
			if typeName(got) != tt.want {
				t.Errorf("AuthenticatorFor(%q) = %s, want %s", tt.scheme, typeName(got), tt.want)
			}
		})
	}
}

func typeName(a Authenticator) string {
	switch a.(type) {
	case *KeyAuth:
		return "*transport.KeyAuth"
	case *QueryAuth:
		return "*transport.QueryAuth"
	case *NoAuth:
		return "*transport.NoAuth"
	default:
		return "unknown"
	}
}
