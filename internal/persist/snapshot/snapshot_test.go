package snapshot

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/savekeep-go/internal/core/domain"
	"github.com/yndnr/savekeep-go/internal/persist/host"
	"github.com/yndnr/savekeep-go/internal/persist/host/hosttest"
	"github.com/yndnr/savekeep-go/internal/persist/registry"
	"github.com/yndnr/savekeep-go/internal/persist/value"
)

func testCatalog() *hosttest.Catalog {
	c := hosttest.NewCatalog()
	c.Add(host.TypeDescriptor{
		Name: "Game.Player",
		Fields: []host.FieldDescriptor{
			hosttest.Field("health", value.KindInt, true),
			hosttest.Field("name", value.KindString, true),
		},
	})
	// Derives from Player and inherits its markers, but is not
	// registered on its own.
	c.Add(host.TypeDescriptor{
		Name: "Game.Bot",
		Base: "Game.Player",
	})
	c.Add(host.TypeDescriptor{
		Name:   "Game.Trigger",
		Manual: true,
		Fields: []host.FieldDescriptor{hosttest.Field("armed", value.KindBool, true)},
	})
	c.Add(host.TypeDescriptor{
		Name:   "Game.Crate",
		Fields: []host.FieldDescriptor{hosttest.Field("model", value.KindAsset, true)},
	})
	return c
}

func player(name string, hp int64) *hosttest.Object {
	return hosttest.NewObject("Game.Player", map[string]value.Value{
		"health":  value.Int(hp),
		"name":    value.String(name),
		"ignored": value.Bool(true),
	})
}

func TestCapture(t *testing.T) {
	reg := registry.New(testCatalog())
	src := hosttest.NewSource(
		player("alice", 90),
		hosttest.NewObject("Game.Trigger", map[string]value.Value{"armed": value.Bool(true)}),
		player("bob", 40),
	)

	snap, err := Capture(reg, src)
	require.NoError(t, err)
	require.Equal(t, 2, snap.Len())

	first := snap.All()[0]
	assert.Equal(t, "Game.Player", first.Type)
	assert.Equal(t, []string{"health", "name"}, first.FieldNames())

	name, err := Get[string](first, "name")
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	hp, err := Get[int64](snap.All()[1], "health")
	require.NoError(t, err)
	assert.Equal(t, int64(40), hp)
}

func TestCapture_ManualTypeExcludedButQueryable(t *testing.T) {
	reg := registry.New(testCatalog())
	src := hosttest.NewSource(hosttest.NewObject("Game.Trigger", map[string]value.Value{"armed": value.Bool(false)}))

	snap, err := Capture(reg, src)
	require.NoError(t, err)
	assert.Empty(t, snap.OfType("Game.Trigger", Exact, nil))

	fields, err := reg.DurableFields("Game.Trigger")
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "armed", fields[0].ID.Name)
}

func TestCapture_ZeroLiveObjects(t *testing.T) {
	snap, err := Capture(registry.New(testCatalog()), hosttest.NewSource())
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())
}

// An object of an unregistered subtype is captured under no entry, even
// though it inherits durable fields.
func TestCapture_UnregisteredSubtypeNotCaptured(t *testing.T) {
	reg := registry.New(testCatalog())
	bot := hosttest.NewObject("Game.Bot", map[string]value.Value{
		"health": value.Int(10),
		"name":   value.String("bot"),
	})

	snap, err := Capture(reg, hosttest.NewSource(bot, player("carol", 1)))
	require.NoError(t, err)
	require.Equal(t, 1, snap.Len())
	assert.Equal(t, "Game.Player", snap.All()[0].Type)
}

func TestCapture_FieldReadFailureAborts(t *testing.T) {
	reg := registry.New(testCatalog())
	broken := player("dave", 1)
	broken.Fail["health"] = errors.New("disposed")

	snap, err := Capture(reg, hosttest.NewSource(player("erin", 5), broken))
	assert.Nil(t, snap)
	require.ErrorIs(t, err, domain.ErrCapture)
	assert.Contains(t, err.Error(), "Game.Player.health")

	var de *domain.DomainError
	require.ErrorAs(t, err, &de)
	assert.EqualError(t, de.Cause, "disposed")
}

func TestRecord_Value(t *testing.T) {
	rec := Record{Type: "Game.Player", Fields: map[string]value.Value{"health": value.Int(3)}}

	v, err := rec.Value("health")
	require.NoError(t, err)
	assert.True(t, v.Equal(value.Int(3)))

	_, err = rec.Value("mana")
	assert.ErrorIs(t, err, domain.ErrUnknownField)

	_, err = Get[string](rec, "health")
	assert.ErrorIs(t, err, domain.ErrUnsupportedValue)

	raw, err := Get[value.Value](rec, "health")
	require.NoError(t, err)
	assert.Equal(t, value.KindInt, raw.Kind())
}

func TestGet_TypedPayloads(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := Record{Type: "Game.Crate", Fields: map[string]value.Value{
		"model":   value.NamedAsset("models/crate.vmdl"),
		"spawned": value.Since(at),
	}}

	a, err := Get[value.AssetRef](rec, "model")
	require.NoError(t, err)
	assert.Equal(t, "models/crate.vmdl", a.Name)

	ts, err := Get[time.Time](rec, "spawned")
	require.NoError(t, err)
	assert.True(t, at.Equal(ts))
}

func TestOfType(t *testing.T) {
	c := testCatalog()
	snap := New(
		Record{Type: "Game.Player"},
		Record{Type: "Game.Bot"},
		Record{Type: "Game.Crate"},
	)

	assert.Len(t, snap.OfType("Game.Player", Exact, c), 1)
	assert.Len(t, snap.OfType("Game.Player", Subtype, c), 2)
	assert.Len(t, snap.OfType("Game.Player", Subtype, nil), 1)
	assert.Len(t, snap.OfType(hosttest.Root, Subtype, c), 3)
	assert.Empty(t, snap.OfType("Game.Missing", Subtype, c))
}

func TestRecord_ApplyTo(t *testing.T) {
	rec := Record{Type: "Game.Player", Fields: map[string]value.Value{
		"health": value.Int(77),
		"name":   value.String("zed"),
	}}
	obj := hosttest.NewObject("Game.Player", nil)

	require.NoError(t, rec.ApplyTo(obj))
	assert.True(t, obj.Values["health"].Equal(value.Int(77)))
	assert.True(t, obj.Values["name"].Equal(value.String("zed")))
}

func TestSnapshot_EqualIgnoresOrder(t *testing.T) {
	a := New(
		Record{Type: "A", Fields: map[string]value.Value{"x": value.Int(1)}},
		Record{Type: "B", Fields: map[string]value.Value{"y": value.Int(2)}},
	)
	b := New(a.Records[1], a.Records[0])
	assert.True(t, a.Equal(b))

	c := New(a.Records[0], Record{Type: "B", Fields: map[string]value.Value{"y": value.Int(3)}})
	assert.False(t, a.Equal(c))

	var nilSnap *Snapshot
	assert.True(t, nilSnap.Equal(New()))
}
