package transport

import (
	"net/http"
	"strings"
)

// Authenticator applies authentication to HTTP requests.
type Authenticator interface {
	Apply(req *http.Request, apiKey string)
}

// NoAuth implements no authentication.
type NoAuth struct{}

// Apply implements the Authenticator interface for NoAuth.
func (a *NoAuth) Apply(_ *http.Request, _ string) {}

// KeyAuth sends the API key as "Authorization: Key <api_key>".
type KeyAuth struct{}

// Apply implements the Authenticator interface for KeyAuth.
func (a *KeyAuth) Apply(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Key "+apiKey)
}

// HeaderAuth implements custom header authentication.
type HeaderAuth struct {
	Header string
}

// Apply implements the Authenticator interface for HeaderAuth.
func (a *HeaderAuth) Apply(req *http.Request, apiKey string) {
	req.Header.Set(a.Header, apiKey)
}

// QueryAuth implements API key as query parameter authentication.
type QueryAuth struct {
	Param string
}

// Apply implements the Authenticator interface for QueryAuth.
func (a *QueryAuth) Apply(req *http.Request, apiKey string) {
	if req.URL == nil {
		return
	}
	query := req.URL.Query()
	query.Set(a.Param, apiKey)
	req.URL.RawQuery = query.Encode()
}

// Auth schemes accepted by AuthenticatorFor.
const (
	SchemeHeader = "header"
	SchemeQuery  = "query"
	SchemeNone   = "none"
)

// AuthenticatorFor returns the authenticator for a configured scheme.
// Unknown and empty schemes use the Authorization header.
func AuthenticatorFor(scheme string) Authenticator {
	switch strings.ToLower(strings.TrimSpace(scheme)) {
	case SchemeQuery:
		return &QueryAuth{Param: "api_key"}
	case SchemeNone:
		return &NoAuth{}
	default:
		return &KeyAuth{}
	}
}
