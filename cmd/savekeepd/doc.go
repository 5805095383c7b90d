// Package main provides the entry point for savekeepd.
//
// savekeepd hosts one persistence session: it loads the object schema,
// restores the latest save, autosaves on a timer, and writes a final save
// on shutdown. Configuration and schema files are watched and reloaded
// without a restart; storage and metrics settings need one.
//
// Usage:
//
//	savekeepd -config savekeep.yaml
//	savekeepd -config savekeep.yaml -restore autosave2.json
//	savekeepd -restore none
package main
