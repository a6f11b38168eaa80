// Package config handles configuration loading for casebook-server.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable
// expansion. The package applies defaults for optional fields and
// validates the result.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  api_key: "${CASEBOOK_API_KEY}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	jira:
//	  timeout: "5s"
//	  cache_ttl: "60s"
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "localhost:8080"
//
// Storage (export_dir and journal_db default to paths under dir):
//
//	storage:
//	  dir: "./casebook-data"
//	  export_dir: "./casebook-data/exports"
//	  journal_db: "./casebook-data/journal.db"
//
// Authentication:
//
//	auth:
//	  require: true
//	  api_key: "${CASEBOOK_API_KEY}"
//
// JIRA enrichment (leave base_url empty to disable lookups):
//
//	jira:
//	  base_url: "https://yourcompany.atlassian.net"
//	  email: "you@yourcompany.com"
//	  api_token: "${JIRA_API_TOKEN}"
//	  timeout: "5s"
//	  cache_ttl: "60s"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
// Load configuration from a path:
//
//	cfg, err := config.Load("/etc/casebook/server.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
