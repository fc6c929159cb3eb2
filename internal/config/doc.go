// Package config provides coordinator configuration for clustercommd.
//
// This package defines the configuration structure and validation:
//
//   - spec.go: CoordinatorConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: Business validation (required fields, path existence)
//   - sanitize.go: Log sanitization (hide sensitive values)
//   - cluster.go: Conversion to internal/topology.Config
//
// Configuration is loaded via internal/infra/confloader from a YAML file and
// environment variables, layered over Default(); flags are not a source.
package config
