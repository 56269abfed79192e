// Package config provides configuration loading and validation for userweb.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator. Every key has a
// default, so the server runs with no configuration at all; the listen port is the only
// value most deployments set.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//     (default: ./userweb.yaml or /etc/userweb/userweb.yaml)
//  3. Environment variables (USERWEB_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"userweb.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with USERWEB_ prefix:
//   - server.port → USERWEB_SERVER_PORT
//   - sites.home_base → USERWEB_SITES_HOME_BASE
//   - executor.timeout → USERWEB_EXECUTOR_TIMEOUT
//
// # Configuration Structure
//
// The Config struct contains:
//   - Server: port, timeouts, request body limit, reverse proxy trust
//   - Sites: home directory base (instead of the system user database) and site directory name
//   - Executor: handler timeout, output limit, transclusion of handler output
//   - Transclusion: maximum inclusion depth
//   - Index: title of the site listing
//   - CORS: cross-origin resource sharing settings
//   - Log: logging level
//
// # Validation
//
// Configuration is validated using struct tags:
//   - Port must be 1-65535
//   - Timeouts must be at least one second
//   - Transclusion depth must be 1-64
//   - Log level must be debug, info, warn, or error
package config
