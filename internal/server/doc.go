// Package server provides HTTP server setup for the sandbox daemon.
//
// This package orchestrates all components:
//   - HTTP routing with Gin framework
//   - Middleware stack (CORS, rate limiting, recovery, metrics)
//   - Micro-app lifecycle endpoints (register, mount, unmount, unload)
//   - Sandbox introspection endpoints (execute, global reads)
//
// Server Lifecycle:
//  1. Load configuration from environment/flags
//  2. Initialize logger (production or development)
//  3. Build the browser-shaped realm and engine
//  4. Create the lifecycle controller
//  5. Setup HTTP routes and middleware
//  6. Start HTTP server
//  7. Graceful shutdown on signal
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv := server.New(cfg, ctrl, realm, metrics, logger)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
