// Package config loads, normalizes, and validates the TOML configuration that
// drives the gestrec pipeline.
//
// Load resolves an explicit path, then ~/.config/gestrec/config.toml, then a
// project-local gestrec.toml, merging file values over Default(). All path
// fields come back expanded and absolute; callers should treat the returned
// Config as immutable.
package config
