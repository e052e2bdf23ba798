// Package config loads and validates the application configuration from
// environment variables and an optional config file, exposing typed
// settings to the rest of the system.
package config
