package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate runs the test from an empty directory with HOME pointed at it
// so no stray .redpush.yaml or .env file is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	for _, key := range []string{
		"REDPUSH_REDASH_URL", "REDASH_URL", "REDPUSH_API_KEY", "REDASH_API_KEY",
		"REDPUSH_LOG_LEVEL", "LOG_LEVEL", "LOG_FORMAT", "LOG_OUTPUT",
	} {
		t.Setenv(key, "")
	}
	return dir
}

// TestLoadConfig verifies defaults when nothing is configured.
func TestLoadConfig(t *testing.T) {
	isolate(t)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.AuthScheme != "header" {
		t.Errorf("AuthScheme = %q, want header", config.AuthScheme)
	}
	if config.PageSize != 250 {
		t.Errorf("PageSize = %d, want 250", config.PageSize)
	}
	if config.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", config.Timeout)
	}
	if config.Parallelism != 1 {
		t.Errorf("Parallelism = %d, want 1", config.Parallelism)
	}
	if config.LogFormat != "auto" {
		t.Errorf("LogFormat = %q, want auto", config.LogFormat)
	}
	if config.ConfigFile != "" {
		t.Errorf("ConfigFile = %q, want none", config.ConfigFile)
	}
}

// TestConfig_EnvironmentVariables verifies prefixed and legacy variables.
func TestConfig_EnvironmentVariables(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantURL string
		wantKey string
	}{
		{
			name:    "legacy names",
			env:     map[string]string{"REDASH_URL": "http://legacy", "REDASH_API_KEY": "old"},
			wantURL: "http://legacy",
			wantKey: "old",
		},
		{
			name: "prefixed names win over legacy",
			env: map[string]string{
				"REDASH_URL": "http://legacy", "REDPUSH_REDASH_URL": "http://new",
				"REDASH_API_KEY": "old", "REDPUSH_API_KEY": "new",
			},
			wantURL: "http://new",
			wantKey: "new",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			config, err := LoadConfig()
			if err != nil {
				t.Fatalf("LoadConfig() failed: %v", err)
			}
			if config.RedashURL != tt.wantURL {
				t.Errorf("RedashURL = %q, want %q", config.RedashURL, tt.wantURL)
			}
			if config.APIKey != tt.wantKey {
				t.Errorf("APIKey = %q, want %q", config.APIKey, tt.wantKey)
			}
		})
	}
}

// TestConfig_Timeout verifies duration parsing.
func TestConfig_Timeout(t *testing.T) {
	isolate(t)
	t.Setenv("REDPUSH_TIMEOUT", "1m")
	t.Setenv("REDPUSH_PARALLELISM", "4")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if config.Timeout != time.Minute {
		t.Errorf("Timeout = %v, want 1m", config.Timeout)
	}
	if config.Parallelism != 4 {
		t.Errorf("Parallelism = %d, want 4", config.Parallelism)
	}
}

// TestConfig_File verifies the default config file and env precedence over it.
func TestConfig_File(t *testing.T) {
	dir := isolate(t)
	content := "redash_url: http://from-file\napi_key: file-key\njournal: runs.db\nlog_level: warn\n"
	if err := os.WriteFile(filepath.Join(dir, ".redpush.yaml"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("REDASH_API_KEY", "env-key")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if config.RedashURL != "http://from-file" {
		t.Errorf("RedashURL = %q, want http://from-file", config.RedashURL)
	}
	if config.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env-key", config.APIKey)
	}
	if config.Journal != "runs.db" {
		t.Errorf("Journal = %q, want runs.db", config.Journal)
	}
	if config.EnvLogLevel != "warn" {
		t.Errorf("EnvLogLevel = %q, want warn", config.EnvLogLevel)
	}
	if config.LogLevel != "" {
		t.Errorf("LogLevel = %q, want empty until the flag is parsed", config.LogLevel)
	}
}

// TestConfig_DotEnv verifies .env files never override the real environment.
func TestConfig_DotEnv(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("REDASH_URL=http://dotenv\nREDASH_API_KEY=dotenv-key\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("REDASH_API_KEY", "real-key")
	// Register a restore, then leave REDASH_URL unset for the .env file
	t.Setenv("REDASH_URL", os.Getenv("REDASH_URL"))
	if err := os.Unsetenv("REDASH_URL"); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if config.RedashURL != "http://dotenv" {
		t.Errorf("RedashURL = %q, want http://dotenv", config.RedashURL)
	}
	if config.APIKey != "real-key" {
		t.Errorf("APIKey = %q, want real-key", config.APIKey)
	}
}

// TestLoadConfigFile verifies an explicit file must exist.
func TestLoadConfigFile(t *testing.T) {
	dir := isolate(t)

	if _, err := LoadConfigFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadConfigFile() with a missing file should fail")
	}

	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("page_size: 50\nauth_scheme: query\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	config, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile() failed: %v", err)
	}
	if config.PageSize != 50 {
		t.Errorf("PageSize = %d, want 50", config.PageSize)
	}
	if config.AuthScheme != "query" {
		t.Errorf("AuthScheme = %q, want query", config.AuthScheme)
	}
	if config.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", config.ConfigFile, path)
	}
}

// TestConfig_UpdateFromFlags verifies flags override loaded values.
func TestConfig_UpdateFromFlags(t *testing.T) {
	config := &Config{Format: "yaml", EnvLogLevel: "warn"}

	config.UpdateFromFlags(true, false, true, "", "")
	if !config.Verbose || config.Quiet || !config.NoColor {
		t.Errorf("boolean flags not applied: %+v", config)
	}
	if config.Format != "yaml" {
		t.Errorf("Format = %q, empty flag should keep yaml", config.Format)
	}

	config.UpdateFromFlags(false, false, false, "json", "debug")
	if config.Format != "json" {
		t.Errorf("Format = %q, want json", config.Format)
	}
	if config.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", config.LogLevel)
	}
}
