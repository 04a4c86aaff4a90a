// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Individual fields can also be overridden with GAMELINK_* environment variables
// (for example GAMELINK_SERVER_KEY or GAMELINK_REDIS_PASSWORD).
package config
