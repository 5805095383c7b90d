package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/savekeep-go/internal/persist/registry"
)

// FieldsCommand prints the durable fields the registry derives from the schema.
func FieldsCommand() *cli.Command {
	return &cli.Command{
		Name:      "fields",
		Usage:     "Show durable fields per type",
		ArgsUsage: "[TYPE]",
		Action:    showFields,
	}
}

// FieldEntry is one durable field.
type FieldEntry struct {
	Type   string `json:"type" yaml:"type"`
	Field  string `json:"field" yaml:"field"`
	Kind   string `json:"kind" yaml:"kind"`
	Manual bool   `json:"manual" yaml:"manual"`
}

func showFields(c *cli.Context) error {
	e, err := loadEnv(ParseGlobalFlags(c))
	if err != nil {
		return err
	}

	var entries []registry.Entry
	if typ := c.Args().First(); typ != "" {
		fields, err := e.registry.DurableFields(typ)
		if err != nil {
			return err
		}
		d, _ := e.catalog.Describe(typ)
		entries = []registry.Entry{{Type: typ, Manual: d.Manual, Fields: fields}}
	} else {
		entries = e.registry.Entries()
	}

	out := []FieldEntry{}
	for _, entry := range entries {
		for _, f := range entry.Fields {
			out = append(out, FieldEntry{
				Type:   entry.Type,
				Field:  f.ID.Name,
				Kind:   f.Kind.String(),
				Manual: entry.Manual,
			})
		}
	}
	return render(c, out)
}
