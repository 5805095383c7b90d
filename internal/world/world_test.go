package world

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/savekeep-go/internal/core/domain"
	"github.com/yndnr/savekeep-go/internal/persist/registry"
	"github.com/yndnr/savekeep-go/internal/persist/snapshot"
	"github.com/yndnr/savekeep-go/internal/persist/value"
)

const testSchema = `
types:
  - name: Actor
    persist_fields: [name]
    fields:
      - {name: name, kind: string, default: nobody}
      - {name: health, kind: int, persist: true, default: 100}
  - name: Player
    base: Actor
    fields:
      - {name: gold, kind: float, persist: true}
      - {name: spawned, kind: since, persist: true, default: 30}
      - {name: inventory, kind: raw, persist: true, default: {slots: [sword]}}
  - name: Camera
    manual: true
    fields:
      - {name: zoom, kind: float, persist: true, default: 1.5}
  - name: FreeCamera
    base: Camera
objects:
  - type: Player
    values: {name: hero, gold: 12.5}
  - type: Camera
`

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestWorld(t *testing.T) *World {
	t.Helper()
	s, err := ParseSchema([]byte(testSchema))
	require.NoError(t, err)
	w := New(NewCatalog(s), WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, w.SpawnAll(s.Objects))
	return w
}

func TestParseSchema_Errors(t *testing.T) {
	tests := map[string]string{
		"unknown key":    "types:\n  - name: A\n    colour: red\n",
		"duplicate type": "types:\n  - name: A\n  - name: A\n",
		"unknown base":   "types:\n  - name: A\n    base: B\n",
		"cycle":          "types:\n  - name: A\n    base: B\n  - name: B\n    base: A\n",
		"missing kind":   "types:\n  - name: A\n    fields:\n      - name: x\n",
		"bad kind":       "types:\n  - name: A\n    fields:\n      - {name: x, kind: complex}\n",
		"duplicate field": "types:\n  - name: A\n    fields:\n" +
			"      - {name: x, kind: int}\n      - {name: x, kind: int}\n",
		"unknown object type": "objects:\n  - type: Ghost\n",
		"root with base":      "root: Thing\ntypes:\n  - name: Thing\n    base: Other\n  - name: Other\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSchema([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testSchema), 0o600))
	s, err := LoadSchema(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultRoot, s.Root)
	assert.Len(t, s.Types, 4)

	_, err = LoadSchema(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCatalog_Effective(t *testing.T) {
	w := newTestWorld(t)
	c := w.Catalog()

	assert.Equal(t, []string{"Actor", "Camera", "Entity", "FreeCamera", "Player"}, c.Types())

	d, ok := c.Describe("Player")
	require.True(t, ok)
	assert.Equal(t, "Actor", d.Base)
	assert.Equal(t, []string{"name"}, d.PersistFields)
	var names []string
	for _, f := range d.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"name", "health", "gold", "spawned", "inventory"}, names)

	free, ok := c.Describe("FreeCamera")
	require.True(t, ok)
	assert.True(t, free.Manual)

	assert.True(t, c.IsSubtype("Player", "Entity"))
	assert.True(t, c.IsSubtype("Player", "Player"))
	assert.False(t, c.IsSubtype("Actor", "Player"))
	assert.True(t, c.IsDurable("Camera"))
	assert.False(t, c.IsDurable("Ghost"))
}

func TestCatalog_DerivedFieldReplacesInherited(t *testing.T) {
	s, err := ParseSchema([]byte(`
types:
  - name: A
    fields:
      - {name: x, kind: int}
  - name: B
    base: A
    fields:
      - {name: x, kind: int, persist: true}
`))
	require.NoError(t, err)
	d, ok := NewCatalog(s).Describe("B")
	require.True(t, ok)
	require.Len(t, d.Fields, 1)
	assert.True(t, d.Fields[0].Persist)
}

func TestWorld_SpawnDefaults(t *testing.T) {
	w := newTestWorld(t)
	require.Equal(t, 2, w.Len())

	player := w.Objects()[0].(*Object)
	assert.Equal(t, "Player", player.TypeName())

	v, err := player.Get("name")
	require.NoError(t, err)
	assert.Equal(t, value.String("hero"), v)

	v, err = player.Get("health")
	require.NoError(t, err)
	assert.Equal(t, value.Int(100), v)

	v, err = player.Get("gold")
	require.NoError(t, err)
	assert.Equal(t, value.Float(12.5), v)

	v, err = player.Get("spawned")
	require.NoError(t, err)
	assert.Equal(t, value.Since(fixedNow.Add(-30*time.Second)), v)

	v, err = player.Get("inventory")
	require.NoError(t, err)
	assert.True(t, value.MustRaw(`{"slots":["sword"]}`).Equal(v))

	_, err = player.Get("mana")
	assert.Error(t, err)

	all, err := player.Values()
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestWorld_SetChecksKind(t *testing.T) {
	w := newTestWorld(t)
	obj, err := w.Spawn("Actor", nil)
	require.NoError(t, err)

	assert.Error(t, obj.Set("health", value.String("lots")))
	assert.Error(t, obj.Set("mana", value.Int(1)))
	require.NoError(t, obj.Set("health", value.Int(7)))

	got, ok := w.Object(obj.ID())
	require.True(t, ok)
	v, err := got.Get("health")
	require.NoError(t, err)
	assert.Equal(t, value.Int(7), v)

	_, err = w.Spawn("Ghost", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidType)
}

func TestWorld_IDsAreOrdered(t *testing.T) {
	w := newTestWorld(t)
	a, err := w.Spawn("Actor", nil)
	require.NoError(t, err)
	b, err := w.Spawn("Actor", nil)
	require.NoError(t, err)
	assert.Negative(t, a.ID().Compare(b.ID()))

	assert.True(t, w.Destroy(a.ID()))
	assert.False(t, w.Destroy(a.ID()))
	_, ok := w.Object(a.ID())
	assert.False(t, ok)
}

func TestWorld_CaptureAndApply(t *testing.T) {
	w := newTestWorld(t)
	reg := registry.New(w.Catalog())

	snap, err := snapshot.Capture(reg, w)
	require.NoError(t, err)
	require.Equal(t, 1, snap.Len(), "manual camera is not captured")
	assert.Equal(t, "Player", snap.All()[0].Type)

	// Changes after the capture are undone by Apply.
	player := w.Objects()[0].(*Object)
	require.NoError(t, player.Set("gold", value.Float(0)))
	_, err = w.Spawn("Actor", nil)
	require.NoError(t, err)

	n, err := w.Apply(snap)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, w.Len(), "restored player plus the manual camera")

	again, err := snapshot.Capture(reg, w)
	require.NoError(t, err)
	assert.True(t, snap.Equal(again))
}

func TestWorld_ApplyUnknownType(t *testing.T) {
	w := newTestWorld(t)
	_, err := w.Apply(snapshot.New(snapshot.Record{Type: "Ghost"}))
	assert.ErrorIs(t, err, domain.ErrInvalidType)
	assert.Equal(t, 2, w.Len())
}

func TestWorld_SchemaReload(t *testing.T) {
	w := newTestWorld(t)
	player := w.Objects()[0].(*Object)

	s, err := ParseSchema([]byte(`
types:
  - name: Player
    fields:
      - {name: gold, kind: float, persist: true}
      - {name: mana, kind: int, persist: true, default: 50}
`))
	require.NoError(t, err)
	w.Catalog().SetSchema(s)

	v, err := player.Get("mana")
	require.NoError(t, err)
	assert.Equal(t, value.Int(50), v)

	v, err = player.Get("gold")
	require.NoError(t, err)
	assert.Equal(t, value.Float(12.5), v)

	// Camera no longer exists.
	assert.Len(t, w.Objects(), 1)
}

func TestConvert(t *testing.T) {
	tests := []struct {
		kind value.Kind
		in   any
		want value.Value
	}{
		{value.KindBool, true, value.Bool(true)},
		{value.KindInt, 3, value.Int(3)},
		{value.KindInt, 4.0, value.Int(4)},
		{value.KindFloat, 2, value.Float(2)},
		{value.KindString, "x", value.String("x")},
		{value.KindAsset, "sword.png", value.NamedAsset("sword.png")},
		{value.KindType, "Player", value.Type("Player")},
		{value.KindUntil, "1m", value.Until(fixedNow.Add(time.Minute))},
		{value.KindString, nil, value.String("")},
	}
	for _, tt := range tests {
		got, err := Convert(tt.kind, tt.in, fixedNow)
		require.NoError(t, err, "%s %v", tt.kind, tt.in)
		assert.True(t, tt.want.Equal(got), "%s %v: got %v", tt.kind, tt.in, got)
	}

	_, err := Convert(value.KindInt, 1.5, fixedNow)
	assert.Error(t, err)
	_, err = Convert(value.KindBool, "yes", fixedNow)
	assert.Error(t, err)
	_, err = Convert(value.KindSince, "soon", fixedNow)
	assert.Error(t, err)
}
