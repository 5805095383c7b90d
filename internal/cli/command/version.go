package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/savekeep-go/internal/infra/buildinfo"
)

// VersionCommand prints build information.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			if ParseGlobalFlags(c).Output == "table" {
				_, err := fmt.Fprintln(c.App.Writer, buildinfo.String("savekeep-cli"))
				return err
			}
			return render(c, buildinfo.Get())
		},
	}
}
