// Package config provides server configuration.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: Validation and replicaof parsing
//   - params.go: Runtime parameters served by CONFIG GET/SET
//
// ServerConfig is loaded once at startup via internal/infra/confloader.
// Params is seeded from it and then mutated by clients for the process
// lifetime.
package config
