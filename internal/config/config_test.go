// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, defaults, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
backend:
  url: "https://project.example.co"
  anon_key: "anon-key"

database:
  path: "./test.db"

storage:
  endpoint: "storage.example.co"
  access_key: "ak"
  secret_key: "sk"
  bucket: "plan-images"
  use_ssl: true
  public_base_url: "https://cdn.example.co/plan-images"

chat:
  heartbeat_interval: "45s"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Backend.URL != "https://project.example.co" {
		t.Errorf("Backend.URL = %q, want %q", cfg.Backend.URL, "https://project.example.co")
	}
	if cfg.Backend.AnonKey != "anon-key" {
		t.Errorf("Backend.AnonKey = %q, want %q", cfg.Backend.AnonKey, "anon-key")
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}

	if !cfg.Storage.Enabled() {
		t.Error("Storage.Enabled() = false, want true")
	}
	if cfg.Storage.Bucket != "plan-images" {
		t.Errorf("Storage.Bucket = %q, want %q", cfg.Storage.Bucket, "plan-images")
	}
	if !cfg.Storage.UseSSL {
		t.Error("Storage.UseSSL = false, want true")
	}

	if cfg.Chat.HeartbeatInterval != 45*time.Second {
		t.Errorf("Chat.HeartbeatInterval = %v, want %v", cfg.Chat.HeartbeatInterval, 45*time.Second)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, `
backend:
  url: "https://project.example.co"
  anon_key: "anon-key"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path == "" {
		t.Error("Database.Path should default to a non-empty path")
	}
	if cfg.Chat.HeartbeatInterval != 30*time.Second {
		t.Errorf("Chat.HeartbeatInterval = %v, want default %v", cfg.Chat.HeartbeatInterval, 30*time.Second)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want default %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format = %q, want default %q", cfg.Logging.Format, "text")
	}
	if cfg.Storage.Enabled() {
		t.Error("Storage.Enabled() = true, want false when section is absent")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_ANON_KEY", "anon-from-env")
	t.Setenv("TEST_S3_SECRET", "secret-from-env")

	configPath := writeConfig(t, `
backend:
  url: "https://project.example.co"
  anon_key: "${TEST_ANON_KEY}"

storage:
  endpoint: "storage.example.co"
  access_key: "ak"
  secret_key: "${TEST_S3_SECRET}"
  bucket: "plan-images"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Backend.AnonKey != "anon-from-env" {
		t.Errorf("Backend.AnonKey = %q, want %q", cfg.Backend.AnonKey, "anon-from-env")
	}
	if cfg.Storage.SecretKey != "secret-from-env" {
		t.Errorf("Storage.SecretKey = %q, want %q", cfg.Storage.SecretKey, "secret-from-env")
	}
}

func TestLoad_EnvVarExpansion_UnsetVar(t *testing.T) {
	os.Unsetenv("UNSET_VAR_FOR_TEST")

	configPath := writeConfig(t, `
backend:
  url: "https://project.example.co"
  anon_key: "${UNSET_VAR_FOR_TEST}"
`)

	// Unset env vars expand to empty, which then fails validation
	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty anon_key, got nil")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, `
backend:
  url: "https://project.example.co"
  anon_key "missing colon"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, `
backend:
  url: "https://project.example.co"
  anon_key: "anon-key"

chat:
  heartbeat_interval: "invalid-duration"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid duration, got nil")
	}
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name          string
		configContent string
		wantErrSubstr string
	}{
		{
			name: "missing backend url",
			configContent: `
backend:
  url: ""
  anon_key: "anon-key"
`,
			wantErrSubstr: "backend.url is required",
		},
		{
			name: "missing anon key",
			configContent: `
backend:
  url: "https://project.example.co"
  anon_key: ""
`,
			wantErrSubstr: "backend.anon_key is required",
		},
		{
			name: "storage endpoint without bucket",
			configContent: `
backend:
  url: "https://project.example.co"
  anon_key: "anon-key"
storage:
  endpoint: "storage.example.co"
  access_key: "ak"
  secret_key: "sk"
`,
			wantErrSubstr: "storage.bucket is required",
		},
		{
			name: "storage endpoint without credentials",
			configContent: `
backend:
  url: "https://project.example.co"
  anon_key: "anon-key"
storage:
  endpoint: "storage.example.co"
  bucket: "plan-images"
`,
			wantErrSubstr: "storage.access_key and storage.secret_key are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, tt.configContent)

			_, err := Load(configPath)
			if err == nil {
				t.Errorf("Load() expected error containing %q, got nil", tt.wantErrSubstr)
				return
			}

			if !strings.Contains(err.Error(), tt.wantErrSubstr) {
				t.Errorf("Load() error = %q, want error containing %q", err.Error(), tt.wantErrSubstr)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("FOO", "bar")
	t.Setenv("BAZ", "qux")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "single env var",
			input:    "${FOO}",
			expected: "bar",
		},
		{
			name:     "env var with surrounding text",
			input:    "prefix-${FOO}-suffix",
			expected: "prefix-bar-suffix",
		},
		{
			name:     "multiple env vars",
			input:    "${FOO}/${BAZ}",
			expected: "bar/qux",
		},
		{
			name:     "no env vars",
			input:    "no-vars-here",
			expected: "no-vars-here",
		},
		{
			name:     "unset env var",
			input:    "${UNSET_VAR}",
			expected: "",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandEnvVars(tt.input)
			if result != tt.expected {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
