// Package config defines the savekeepd and savekeep-cli configuration
// structure, its defaults, validation, and a log-safe view.
package config
