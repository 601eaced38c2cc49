// Package config provides 12-factor configuration management for the
// sandbox daemon.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Sandbox: isolation strategy, singular mode, write whitelist
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST
//   - SANDBOX_MODE, SANDBOX_SINGULAR, SANDBOX_WHITELIST,
//     SANDBOX_EAGER_RESTORE, SANDBOX_FETCH_TIMEOUT, SANDBOX_LOCATION
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST
package config
