// Package config loads and validates application configuration from the
// environment. Configuration is loaded once at startup and passed down
// explicitly; nothing in this package is consulted at request time.
package config
