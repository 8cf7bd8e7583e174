// Package config handles configuration loading for movilchat.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from MOVILCHAT_CONFIG environment variable
//  2. ./movilchat.yaml (current directory)
//  3. ~/.config/movilchat/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	backend:
//	  anon_key: "${MOVILCHAT_ANON_KEY}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	chat:
//	  heartbeat_interval: "30s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Backend connection (required):
//
//	backend:
//	  url: "https://project.example.co"
//	  anon_key: "${MOVILCHAT_ANON_KEY}"
//
// Local session database:
//
//	database:
//	  path: "~/.local/share/movilchat/session.db"  # default
//
// Object storage for plan images (optional):
//
//	storage:
//	  endpoint: "storage.example.co"
//	  access_key: "${MOVILCHAT_S3_ACCESS_KEY}"
//	  secret_key: "${MOVILCHAT_S3_SECRET_KEY}"
//	  bucket: "plan-images"
//	  use_ssl: true
//	  public_base_url: "https://cdn.example.co/plan-images"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - Backend URL and anon key presence
//   - Storage section completeness when an endpoint is set
//   - Duration format validity
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("/etc/movilchat/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
