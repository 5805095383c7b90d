package command

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
types:
  - name: Actor
    fields:
      - {name: name, kind: string, persist: true}
  - name: Player
    base: Actor
    fields:
      - {name: health, kind: int, persist: true}
      - {name: bag, kind: raw, persist: true}
  - name: Camera
    manual: true
    fields:
      - {name: zoom, kind: float, persist: true}
`

const testSave = `[
 {"type": "Player", "properties": {"Player.health": 90, "Player.name": "hero", "Player.bag": {"slots": 2}}},
 {"type": "Actor", "properties": {"Actor.name": "guard"}}
]`

type fixture struct {
	schema string
	dir    string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{
		schema: filepath.Join(root, "schema.yaml"),
		dir:    filepath.Join(root, "saves"),
	}
	require.NoError(t, os.WriteFile(f.schema, []byte(testSchema), 0o600))
	require.NoError(t, os.MkdirAll(f.dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "save.json"), []byte(testSave), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "broken.json"), []byte(`[{"type":"Player","properties":{"Player.mana":1}}]`), 0o600))
	return f
}

func (f fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := App()
	app.Writer = &out
	app.ErrWriter = &out
	full := append([]string{"savekeep-cli", "--schema", f.schema, "--dir", f.dir}, args...)
	err := app.Run(full)
	return out.String(), err
}

func decodeJSON(t *testing.T, s string, v any) {
	t.Helper()
	require.NoError(t, jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal([]byte(s), v))
}

func TestInspect_JSON(t *testing.T) {
	f := newFixture(t)
	out, err := f.run(t, "-o", "json", "inspect")
	require.NoError(t, err)

	var res InspectResult
	decodeJSON(t, out, &res)
	assert.Equal(t, "save.json", res.Path)
	assert.Equal(t, "fs", res.Backend)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "Player", res.Records[0].Type)
	require.Len(t, res.Records[0].Fields, 3)
	assert.Equal(t, "bag", res.Records[0].Fields[0].Name)
	assert.Equal(t, "raw", res.Records[0].Fields[0].Kind)
	assert.Equal(t, map[string]any{"slots": float64(2)}, res.Records[0].Fields[0].Value)
	assert.Equal(t, "health", res.Records[0].Fields[1].Name)
	assert.Equal(t, float64(90), res.Records[0].Fields[1].Value)
}

func TestInspect_Table(t *testing.T) {
	f := newFixture(t)
	out, err := f.run(t, "inspect", "save.json")
	require.NoError(t, err)
	assert.Contains(t, out, "TYPE")
	assert.Contains(t, out, "Player")
	assert.Contains(t, out, "guard")
}

func TestInspect_TypeFilter(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "-o", "json", "inspect", "--type", "Actor")
	require.NoError(t, err)
	var exact InspectResult
	decodeJSON(t, out, &exact)
	require.Len(t, exact.Records, 1)
	assert.Equal(t, "Actor", exact.Records[0].Type)

	out, err = f.run(t, "-o", "json", "inspect", "--type", "Actor", "--subtypes")
	require.NoError(t, err)
	var sub InspectResult
	decodeJSON(t, out, &sub)
	assert.Len(t, sub.Records, 2)
}

func TestInspect_Missing(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(t, "inspect", "nope.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SK-SAVE-4040")
}

func TestValidate(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "-o", "json", "validate", "save.json")
	require.NoError(t, err)
	var ok ValidateResult
	decodeJSON(t, out, &ok)
	assert.True(t, ok.Valid)
	assert.Equal(t, 2, ok.Records)
	assert.Equal(t, map[string]int{"Player": 1, "Actor": 1}, ok.Types)

	out, err = f.run(t, "-o", "json", "validate", "broken.json")
	require.ErrorIs(t, err, ErrInvalidSave)
	var bad ValidateResult
	decodeJSON(t, out, &bad)
	assert.False(t, bad.Valid)
	assert.Equal(t, "SK-CODEC-4000", bad.Code)
}

func TestList(t *testing.T) {
	f := newFixture(t)
	out, err := f.run(t, "-o", "json", "list")
	require.NoError(t, err)

	var entries []SaveEntry
	decodeJSON(t, out, &entries)
	require.Len(t, entries, 2)
	assert.Equal(t, "broken.json", entries[0].Path)
	assert.Equal(t, "save.json", entries[1].Path)
	assert.Equal(t, len(testSave), entries[1].Size)

	out, err = f.run(t, "--no-headers", "ls", "save")
	require.NoError(t, err)
	assert.NotContains(t, out, "PATH")
	assert.Contains(t, out, "save.json")
}

func TestFields(t *testing.T) {
	f := newFixture(t)
	out, err := f.run(t, "-o", "json", "fields")
	require.NoError(t, err)

	var all []FieldEntry
	decodeJSON(t, out, &all)
	assert.Contains(t, all, FieldEntry{Type: "Player", Field: "health", Kind: "int"})
	assert.Contains(t, all, FieldEntry{Type: "Player", Field: "name", Kind: "string"})
	assert.Contains(t, all, FieldEntry{Type: "Camera", Field: "zoom", Kind: "float", Manual: true})

	out, err = f.run(t, "-o", "json", "fields", "Actor")
	require.NoError(t, err)
	var actor []FieldEntry
	decodeJSON(t, out, &actor)
	assert.Equal(t, []FieldEntry{{Type: "Actor", Field: "name", Kind: "string"}}, actor)

	_, err = f.run(t, "fields", "Ghost")
	assert.Error(t, err)
}

func TestConfigShowMasksSecrets(t *testing.T) {
	f := newFixture(t)
	cfgPath := filepath.Join(t.TempDir(), "savekeep.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
storage:
  encryption:
    passphrase: correct horse battery
`), 0o600))

	out, err := f.run(t, "--config", cfgPath, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "autosave_interval: 60")
	assert.NotContains(t, out, "battery")

	out, err = f.run(t, "--config", cfgPath, "config", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "configuration OK")
}

func TestBadOutputFormat(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(t, "-o", "xml", "list")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	f := newFixture(t)
	out, err := f.run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "savekeep-cli")
}
