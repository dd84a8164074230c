// Package config loads application configuration from defaults, an optional
// YAML file, and NCA_-prefixed environment variables, with env taking
// precedence. It also maps the analysis section onto the engine configuration
// and builds the application logger.
package config
