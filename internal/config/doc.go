// Package config loads, defaults, and validates the daemon's TOML
// configuration. Paths support ~ expansion and all directories can be
// created up front with EnsureDirectories.
package config
