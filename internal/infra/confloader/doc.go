// Package confloader loads configuration with koanf and watches files for
// hot reload with fsnotify.
//
// Priority (highest to lowest):
//
//  1. Overrides (command-line flags)
//  2. Environment variables (SAVEKEEP_ prefix, "__" between sections)
//  3. Configuration file (YAML)
//  4. Defaults
//
// Every Load starts from an empty koanf instance, so a reload never keeps
// keys that were removed from the file.
package confloader
