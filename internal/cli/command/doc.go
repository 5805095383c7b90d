// Package command defines the savekeep-cli commands with urfave/cli/v2.
//
// Every command resolves the same configuration savekeepd uses (file, then
// SAVEKEEP_ environment, then flags), so a save can be inspected exactly as
// the daemon would load it.
package command
