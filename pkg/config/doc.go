// Package config loads application configuration from TALLY_* environment
// variables and validates it at startup.
package config
