package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/savekeep-go/internal/cli/output"
	"github.com/yndnr/savekeep-go/internal/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration commands",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the merged configuration as YAML with secrets masked",
				Action: configShow,
			},
			{
				Name:   "check",
				Usage:  "Validate the configuration",
				Action: configCheck,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	cfg, err := loadConfig(ParseGlobalFlags(c))
	if err != nil {
		return err
	}
	return (&output.YAMLFormatter{}).Format(c.App.Writer, config.Sanitize(cfg))
}

func configCheck(c *cli.Context) error {
	if _, err := loadConfig(ParseGlobalFlags(c)); err != nil {
		return err
	}
	_, err := fmt.Fprintln(c.App.Writer, "configuration OK")
	return err
}
