// Package output renders savekeep-cli results as tables, JSON or YAML.
//
// Commands hand formatters plain structs with json and yaml tags; the table
// formatter reads the json tag for column headers, and a `table:"-"` tag
// hides a column.
package output
