// Package config loads and validates Hearth Core configuration.
//
// Configuration comes from a YAML file with environment variable overrides
// (HEARTH_* pattern). Defaults are applied first, then file values, then
// environment overrides, and the result is validated before use.
package config
