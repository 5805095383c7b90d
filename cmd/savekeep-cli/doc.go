// Package main provides the entry point for savekeep-cli.
//
// savekeep-cli works on save files offline, using the same configuration
// and schema as savekeepd:
//
//   - inspect and validate saves
//   - list saves on the configured backend
//   - show durable fields per type
//   - show or check configuration
//
// Usage:
//
//	savekeep-cli [global flags] command [flags]
//	savekeep-cli -c savekeep.yaml inspect save.json -o table
//	savekeep-cli --storage sqlite list
package main
