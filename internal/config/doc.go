// Package config handles configuration loading for crm-core.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable
// expansion. The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${CRM_JWT_SECRET}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	auth:
//	  token_ttl: "12h"
//	ingest:
//	  dedupe_ttl: "5m"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"   # API and web admin
//
// Database:
//
//	database:
//	  path: "/var/lib/crm/crm.db"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${CRM_JWT_SECRET}"  # Required
//	  token_ttl: "12h"
//
// Ingestion:
//
//	ingest:
//	  dedupe_ttl: "5m"
//	  dedupe_max_size: 100000
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Web admin:
//
//	webadmin:
//	  enabled: true
//	  base_url: "https://crm.example.com"
package config
