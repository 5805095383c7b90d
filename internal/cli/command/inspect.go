package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/savekeep-go/internal/cli/output"
	"github.com/yndnr/savekeep-go/internal/core/domain"
	"github.com/yndnr/savekeep-go/internal/persist/snapshot"
	"github.com/yndnr/savekeep-go/internal/persist/value"
	"github.com/yndnr/savekeep-go/internal/storage"
)

const commandTimeout = 30 * time.Second

// ErrInvalidSave is returned by validate after reporting a save that does
// not decode.
var ErrInvalidSave = errors.New("invalid save")

// InspectCommand decodes a save and prints its records.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Decode a save with the world schema and print its records",
		ArgsUsage: "[PATH]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "type",
				Usage: "only show records of this type",
			},
			&cli.BoolFlag{
				Name:  "subtypes",
				Usage: "with --type, include records of derived types",
			},
		},
		Action: inspectSave,
	}
}

// ValidateCommand decodes a save and reports whether it loads.
func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check that a save decodes against the world schema",
		ArgsUsage: "[PATH]",
		Action:    validateSave,
	}
}

// FieldView is one decoded property.
type FieldView struct {
	Name  string `json:"name" yaml:"name"`
	Kind  string `json:"kind" yaml:"kind"`
	Value any    `json:"value" yaml:"value"`
}

// RecordView is one decoded record.
type RecordView struct {
	Type   string      `json:"type" yaml:"type"`
	Fields []FieldView `json:"fields" yaml:"fields"`
}

// InspectResult is the inspect output.
type InspectResult struct {
	Path    string       `json:"path" yaml:"path"`
	Backend string       `json:"backend" yaml:"backend"`
	Records []RecordView `json:"records" yaml:"records"`
}

// Table implements output.Tabular: one row per property.
func (r InspectResult) Table() *output.Table {
	t := &output.Table{Headers: []string{"#", "TYPE", "FIELD", "KIND", "VALUE"}}
	for i, rec := range r.Records {
		for _, f := range rec.Fields {
			t.AddRow(fmt.Sprint(i), rec.Type, f.Name, f.Kind, fmt.Sprint(f.Value))
		}
		if len(rec.Fields) == 0 {
			t.AddRow(fmt.Sprint(i), rec.Type, "-", "-", "-")
		}
	}
	return t
}

// ValidateResult is the validate output.
type ValidateResult struct {
	Path    string         `json:"path" yaml:"path"`
	Valid   bool           `json:"valid" yaml:"valid"`
	Records int            `json:"records" yaml:"records"`
	Types   map[string]int `json:"types,omitempty" yaml:"types,omitempty"`
	Code    string         `json:"code,omitempty" yaml:"code,omitempty"`
	Error   string         `json:"error,omitempty" yaml:"error,omitempty"`
}

func savePath(c *cli.Context, e *env) string {
	if c.Args().Len() > 0 {
		return c.Args().First()
	}
	return e.cfg.Scheduler.DefaultPath
}

func decodeSave(c *cli.Context) (*env, string, string, *snapshot.Snapshot, error) {
	flags := ParseGlobalFlags(c)
	e, err := loadEnv(flags)
	if err != nil {
		return nil, "", "", nil, err
	}
	path := savePath(c, e)

	ctx, cancel := context.WithTimeout(c.Context, commandTimeout)
	defer cancel()

	b, err := openBackend(ctx, e.cfg, flags.Autosave)
	if err != nil {
		return nil, "", "", nil, err
	}
	defer b.Close()

	data, err := storage.ReadAll(ctx, b, path)
	if errors.Is(err, storage.ErrNotFound) {
		return e, path, b.Name(), nil, domain.ErrNotFound.WithDetails(path)
	}
	if err != nil {
		return e, path, b.Name(), nil, err
	}
	snap, err := e.codec.Unmarshal(data)
	return e, path, b.Name(), snap, err
}

func inspectSave(c *cli.Context) error {
	e, path, backend, snap, err := decodeSave(c)
	if err != nil {
		return err
	}

	records := snap.All()
	if typ := c.String("type"); typ != "" {
		match := snapshot.Exact
		if c.Bool("subtypes") {
			match = snapshot.Subtype
		}
		records = snap.OfType(typ, match, e.catalog)
	}

	result := InspectResult{Path: path, Backend: backend, Records: make([]RecordView, 0, len(records))}
	for _, rec := range records {
		view := RecordView{Type: rec.Type}
		for _, name := range rec.FieldNames() {
			v := rec.Fields[name]
			view.Fields = append(view.Fields, FieldView{Name: name, Kind: v.Kind().String(), Value: displayValue(v)})
		}
		result.Records = append(result.Records, view)
	}
	return render(c, result)
}

func validateSave(c *cli.Context) error {
	_, path, _, snap, err := decodeSave(c)
	result := ValidateResult{Path: path, Valid: err == nil}
	if err != nil {
		if path == "" {
			// Configuration or schema failure, not a verdict on the save.
			return err
		}
		result.Code = domain.GetErrorCode(err)
		result.Error = err.Error()
		if rerr := render(c, result); rerr != nil {
			return rerr
		}
		return fmt.Errorf("%w: %s", ErrInvalidSave, path)
	}

	result.Records = snap.Len()
	result.Types = make(map[string]int)
	for _, rec := range snap.All() {
		result.Types[rec.Type]++
	}
	return render(c, result)
}

// displayValue returns a form that reads well in every output format.
func displayValue(v value.Value) any {
	switch v.Kind() {
	case value.KindAsset:
		a, _ := v.AsAsset()
		return a.String()
	case value.KindSince, value.KindUntil:
		t, _ := v.AsTime()
		return t.UTC().Format(time.RFC3339)
	case value.KindRaw:
		raw, _ := v.AsRaw()
		var doc any
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &doc); err != nil {
			return string(raw)
		}
		return doc
	}
	return v.Interface()
}
