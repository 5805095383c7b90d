package command

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/savekeep-go/internal/storage"
)

// ListCommand lists saves on the configured storage.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Aliases:   []string{"ls"},
		Usage:     "List saves on the configured storage",
		ArgsUsage: "[PREFIX]",
		Action:    listSaves,
	}
}

// SaveEntry is one stored save.
type SaveEntry struct {
	Path    string `json:"path" yaml:"path"`
	Size    int    `json:"size" yaml:"size"`
	Backend string `json:"backend" yaml:"backend"`
}

func listSaves(c *cli.Context) error {
	flags := ParseGlobalFlags(c)
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, commandTimeout)
	defer cancel()

	b, err := openBackend(ctx, cfg, flags.Autosave)
	if err != nil {
		return err
	}
	defer b.Close()

	paths, err := b.List(ctx, c.Args().First())
	if err != nil {
		return err
	}

	entries := make([]SaveEntry, 0, len(paths))
	for _, p := range paths {
		data, err := storage.ReadAll(ctx, b, p)
		if err != nil {
			return err
		}
		entries = append(entries, SaveEntry{Path: p, Size: len(data), Backend: b.Name()})
	}
	return render(c, entries)
}
