// Package config provides configuration loading and validation for blobgate.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (BLOBGATE_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
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
// All config keys map to environment variables with BLOBGATE_ prefix:
//   - server.port → BLOBGATE_SERVER_PORT
//   - backend.type → BLOBGATE_BACKEND_TYPE
//   - s3.secret_key → BLOBGATE_S3_SECRET_KEY
//
// # Configuration Structure
//
// The Config struct contains:
//   - Server: HTTP port
//   - Service: cleanup_timeout for compensation deletes
//   - Backend: active content backend (fs, s3, ftp, db)
//   - Storage: filesystem backend root path
//   - S3: endpoint, bucket, credentials, and addressing style
//   - FTP: host, credentials, TLS, and base directory
//   - Database: type and DSN (metadata store, and content for the db backend)
//   - Auth: static bearer token
//   - CORS: cross-origin resource sharing settings
//   - Log: logging level
//
// # Validation
//
// Configuration is validated using struct tags:
//   - Port must be 1-65535
//   - Backend must be fs, s3, ftp, or db
//   - Log level must be debug, info, warn, or error
package config
