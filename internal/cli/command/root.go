package command

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/savekeep-go/internal/cli/output"
	"github.com/yndnr/savekeep-go/internal/config"
	"github.com/yndnr/savekeep-go/internal/infra/buildinfo"
	"github.com/yndnr/savekeep-go/internal/infra/confloader"
	"github.com/yndnr/savekeep-go/internal/persist/codec"
	"github.com/yndnr/savekeep-go/internal/persist/registry"
	"github.com/yndnr/savekeep-go/internal/storage"
	"github.com/yndnr/savekeep-go/internal/storage/backends"
	"github.com/yndnr/savekeep-go/internal/world"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "savekeep-cli",
		Usage:   "Inspect and validate savekeep save files",
		Version: buildinfo.Get().Version,
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			InspectCommand(),
			ValidateCommand(),
			ListCommand(),
			FieldsCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "savekeepd configuration file",
			EnvVars: []string{"SAVEKEEP_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "schema",
			Usage: "world schema file (overrides the configured schema)",
		},
		&cli.StringFlag{
			Name:  "storage",
			Usage: "storage kind (overrides storage.kind): " + fmt.Sprint(config.Kinds),
		},
		&cli.StringFlag{
			Name:  "dir",
			Usage: "storage directory (overrides storage.dir)",
		},
		&cli.BoolFlag{
			Name:  "autosave",
			Usage: "use the autosave storage instead of the on-demand storage",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:  "no-headers",
			Usage: "omit table headers",
		},
	}
}

// GlobalFlags holds the flags shared by every command.
type GlobalFlags struct {
	Config    string
	Schema    string
	Storage   string
	Dir       string
	Autosave  bool
	Output    string
	NoHeaders bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Config:    c.String("config"),
		Schema:    c.String("schema"),
		Storage:   c.String("storage"),
		Dir:       c.String("dir"),
		Autosave:  c.Bool("autosave"),
		Output:    c.String("output"),
		NoHeaders: c.Bool("no-headers"),
	}
}

// loadConfig resolves the configuration with flags as highest priority.
func loadConfig(flags *GlobalFlags) (*config.Config, error) {
	overrides := map[string]any{}
	if flags.Schema != "" {
		overrides["schema"] = flags.Schema
	}
	if flags.Storage != "" {
		overrides["storage.kind"] = flags.Storage
	}
	if flags.Dir != "" {
		overrides["storage.dir"] = flags.Dir
	}

	opts := []confloader.Option{confloader.WithOverrides(overrides)}
	if flags.Config != "" {
		opts = append(opts, confloader.WithConfigFile(flags.Config))
	}

	cfg := config.Default()
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// env is what the save commands work with.
type env struct {
	cfg      *config.Config
	catalog  *world.Catalog
	registry *registry.Registry
	codec    *codec.Codec
}

func loadEnv(flags *GlobalFlags) (*env, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	schema, err := world.LoadSchema(cfg.Schema)
	if err != nil {
		return nil, err
	}
	catalog := world.NewCatalog(schema)
	reg := registry.New(catalog, registry.WithLogger(quietLogger()))
	return &env{
		cfg:      cfg,
		catalog:  catalog,
		registry: reg,
		codec:    codec.New(reg, codec.WithTypeResolver(catalog.IsDurable)),
	}, nil
}

// openBackend opens the on-demand storage, or the autosave storage when
// requested and configured.
func openBackend(ctx context.Context, cfg *config.Config, autosave bool) (storage.Backend, error) {
	sec := cfg.Storage
	if autosave && cfg.AutosaveStorage.Kind != "" {
		sec = cfg.AutosaveStorage
	}
	return backends.Open(ctx, sec, backends.WithLogger(quietLogger()))
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// render writes data in the format chosen by --output.
func render(c *cli.Context, data any) error {
	flags := ParseGlobalFlags(c)
	format, err := output.ParseFormat(flags.Output)
	if err != nil {
		return err
	}
	return output.NewFormatter(format, flags.NoHeaders).Format(c.App.Writer, data)
}
