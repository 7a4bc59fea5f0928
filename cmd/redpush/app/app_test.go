package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/agentstation/redpush"
	"github.com/agentstation/redpush/internal/redash/redashtest"
)

func testConfig(url string) *Config {
	return &Config{
		RedashURL:   url,
		APIKey:      "secret",
		AuthScheme:  "header",
		PageSize:    250,
		Timeout:     5 * time.Second,
		Parallelism: 1,
		Format:      "table",
		NoColor:     true,
		LogFormat:   "json",
		LogOutput:   "stderr",
	}
}

// TestApp_New verifies app initialization.
func TestApp_New(t *testing.T) {
	isolate(t)

	app, err := New("1.0.0", "abc123", "2024-01-01", "test")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if app.Version() != "1.0.0" {
		t.Errorf("Version() = %s, want 1.0.0", app.Version())
	}
	if app.Commit() != "abc123" {
		t.Errorf("Commit() = %s, want abc123", app.Commit())
	}
	if app.Date() != "2024-01-01" {
		t.Errorf("Date() = %s, want 2024-01-01", app.Date())
	}
	if app.BuiltBy() != "test" {
		t.Errorf("BuiltBy() = %s, want test", app.BuiltBy())
	}
	if app.Logger() == nil {
		t.Error("Logger() returned nil")
	}
	if app.Config() == nil {
		t.Error("Config() returned nil")
	}
}

// TestApp_Client_Singleton verifies that Client() returns the same instance.
func TestApp_Client_Singleton(t *testing.T) {
	srv := redashtest.New(t)
	app, err := New("1.0.0", "test", "2024-01-01", "test", WithConfig(testConfig(srv.URL)))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })

	c1, err := app.Client()
	if err != nil {
		t.Fatalf("Client() failed: %v", err)
	}
	c2, err := app.Client()
	if err != nil {
		t.Fatalf("Client() failed on second call: %v", err)
	}
	if c1 != c2 {
		t.Error("Client() returned different instances")
	}

	c3, err := app.Client(redpush.WithPageSize(10))
	if err != nil {
		t.Fatalf("Client(opts) failed: %v", err)
	}
	defer c3.Close()
	if c3 == c1 {
		t.Error("Client(opts) should not return the cached instance")
	}
}

// TestApp_Client_Concurrent verifies concurrent access is safe.
func TestApp_Client_Concurrent(t *testing.T) {
	srv := redashtest.New(t)
	app, err := New("1.0.0", "test", "2024-01-01", "test", WithConfig(testConfig(srv.URL)))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })

	const goroutines = 20
	var wg sync.WaitGroup
	clients := make([]redpush.Client, goroutines)
	for i := range goroutines {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := app.Client()
			if err != nil {
				t.Errorf("Client() failed: %v", err)
				return
			}
			clients[i] = c
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if clients[i] != clients[0] {
			t.Fatalf("goroutine %d got a different client", i)
		}
	}
}

// TestApp_Client_MissingURL verifies configuration errors surface.
func TestApp_Client_MissingURL(t *testing.T) {
	app, err := New("1.0.0", "test", "2024-01-01", "test", WithConfig(testConfig("")))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if _, err := app.Client(); err == nil {
		t.Error("Client() without a server URL should fail")
	}
}

// TestApp_Shutdown verifies shutdown drops the cached client.
func TestApp_Shutdown(t *testing.T) {
	srv := redashtest.New(t)
	app, err := New("1.0.0", "test", "2024-01-01", "test", WithConfig(testConfig(srv.URL)))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if _, err := app.Client(); err != nil {
		t.Fatalf("Client() failed: %v", err)
	}
	if err := app.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}
	if err := app.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() failed: %v", err)
	}
}
