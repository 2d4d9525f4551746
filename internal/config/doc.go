// Package config defines the relay settings and helpers to load, validate
// and save them in YAML format.
//
// Validate fills in defaults, so a Config returned by Load is ready to use.
package config
