package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/savekeep-go/internal/config"
	"github.com/yndnr/savekeep-go/internal/core/domain"
	"github.com/yndnr/savekeep-go/internal/persist/scheduler"
	"github.com/yndnr/savekeep-go/internal/persist/value"
	"github.com/yndnr/savekeep-go/internal/telemetry/metric"
	"github.com/yndnr/savekeep-go/internal/world"
)

const schemaV1 = `
types:
  - name: Player
    fields:
      - {name: health, kind: int, persist: true, default: 100}
      - {name: name, kind: string, persist: true, default: hero}
objects:
  - type: Player
`

const schemaV2 = `
types:
  - name: Player
    fields:
      - {name: health, kind: int, persist: true, default: 100}
      - {name: name, kind: string, persist: true, default: hero}
      - {name: mana, kind: int, persist: true, default: 5}
objects:
  - type: Player
`

type harness struct {
	dir   string
	cfg   *config.Config
	ticks chan time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	schema := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(schema, []byte(schemaV1), 0o600))

	cfg := config.Default()
	cfg.Schema = schema
	cfg.Storage.Dir = filepath.Join(dir, "saves")
	cfg.Scheduler.AutosaveInterval = 1
	require.NoError(t, config.Verify(cfg))
	return &harness{dir: dir, cfg: cfg, ticks: make(chan time.Time)}
}

func (h *harness) start(t *testing.T, opts ...Option) *Daemon {
	t.Helper()
	d, err := h.tryStart(opts...)
	require.NoError(t, err)
	return d
}

func (h *harness) tryStart(opts ...Option) (*Daemon, error) {
	base := []Option{
		WithMetrics(metric.NewRegistry()),
		WithSchedulerOptions(scheduler.WithTicker(func(time.Duration) (<-chan time.Time, func()) {
			return h.ticks, func() {}
		})),
	}
	return New(context.Background(), h.cfg, append(base, opts...)...)
}

func (h *harness) savePath(name string) string {
	return filepath.Join(h.cfg.Storage.Dir, name)
}

func player(t *testing.T, d *Daemon) *world.Object {
	t.Helper()
	objs := d.World().Objects()
	require.Len(t, objs, 1)
	return objs[0].(*world.Object)
}

func health(t *testing.T, d *Daemon) int64 {
	t.Helper()
	v, err := player(t, d).Get("health")
	require.NoError(t, err)
	n, ok := v.AsInt()
	require.True(t, ok)
	return n
}

func TestDaemon_FreshStartAndRestore(t *testing.T) {
	h := newHarness(t)

	d := h.start(t)
	assert.Empty(t, d.RestoredFrom())
	assert.Equal(t, int64(100), health(t, d))
	require.NoError(t, player(t, d).Set("health", value.Int(42)))
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))
	assert.FileExists(t, h.savePath("save.json"))

	d2 := h.start(t)
	defer d2.Close(context.Background())
	assert.Equal(t, "save.json", d2.RestoredFrom())
	assert.Equal(t, int64(42), health(t, d2))
}

func TestDaemon_RestoresFromAutosaveSlot(t *testing.T) {
	h := newHarness(t)

	d := h.start(t)
	require.NoError(t, player(t, d).Set("health", value.Int(7)))
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, os.Rename(h.savePath("save.json"), h.savePath("autosave2.json")))

	d2 := h.start(t)
	defer d2.Close(context.Background())
	assert.Equal(t, "autosave2.json", d2.RestoredFrom())
	assert.Equal(t, int64(7), health(t, d2))
}

func TestDaemon_RestoreOptions(t *testing.T) {
	h := newHarness(t)
	d := h.start(t)
	require.NoError(t, player(t, d).Set("health", value.Int(1)))
	require.NoError(t, d.Close(context.Background()))

	fresh := h.start(t, WithRestore(RestoreNone))
	assert.Equal(t, int64(100), health(t, fresh))
	require.NoError(t, fresh.manager.Close())
	require.NoError(t, fresh.closeBackends())

	_, err := h.tryStart(WithRestore("missing.json"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDaemon_CorruptSaveFailsStart(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.MkdirAll(h.cfg.Storage.Dir, 0o750))
	require.NoError(t, os.WriteFile(h.savePath("save.json"), []byte(`{"not":"a snapshot"}`), 0o600))

	_, err := h.tryStart()
	assert.ErrorIs(t, err, domain.ErrDecode)
}

func TestDaemon_Autosave(t *testing.T) {
	h := newHarness(t)
	d := h.start(t)
	defer d.Close(context.Background())
	require.True(t, d.Manager().Running())

	h.ticks <- time.Now()
	require.Eventually(t, func() bool {
		_, err := os.Stat(h.savePath("autosave1.json"))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	_, path, ok := d.Manager().Latest()
	require.True(t, ok)
	assert.Equal(t, "autosave1.json", path)
}

func TestDaemon_ApplyConfig(t *testing.T) {
	h := newHarness(t)
	d := h.start(t)
	defer d.Close(context.Background())

	next := *h.cfg
	next.Scheduler.AutosaveEnabled = false
	next.Scheduler.DefaultPath = "manual.json"
	next.Storage.Dir = filepath.Join(h.dir, "elsewhere")
	require.NoError(t, d.ApplyConfig(&next))

	sc := d.Manager().Config()
	assert.False(t, sc.AutosaveEnabled)
	assert.Equal(t, "manual.json", sc.DefaultPath)
	assert.False(t, d.Manager().Running())

	// Storage changes wait for a restart.
	assert.Equal(t, h.cfg.Storage.Dir, d.cfg.Storage.Dir)

	bad := next
	bad.Scheduler.DefaultPath = "../escape.json"
	assert.ErrorIs(t, d.ApplyConfig(&bad), domain.ErrInvalidConfig)

	loud := next
	loud.Log.Level = "loud"
	assert.ErrorIs(t, d.ApplyConfig(&loud), domain.ErrInvalidConfig)
}

func TestDaemon_ReloadSchema(t *testing.T) {
	h := newHarness(t)
	d := h.start(t)
	defer d.Close(context.Background())

	_, err := d.Registry().Field("Player", "mana")
	require.ErrorIs(t, err, domain.ErrUnknownField)

	require.NoError(t, os.WriteFile(h.cfg.Schema, []byte(schemaV2), 0o600))
	require.NoError(t, d.ReloadSchema())

	f, err := d.Registry().Field("Player", "mana")
	require.NoError(t, err)
	assert.Equal(t, value.KindInt, f.Kind)
	v, err := player(t, d).Get("mana")
	require.NoError(t, err)
	assert.Equal(t, value.Int(5), v)

	require.NoError(t, os.WriteFile(h.cfg.Schema, []byte("types: [oops"), 0o600))
	assert.Error(t, d.ReloadSchema())
	_, err = d.Registry().Field("Player", "mana")
	assert.NoError(t, err)
}

func TestDaemon_MissingSchema(t *testing.T) {
	h := newHarness(t)
	h.cfg.Schema = filepath.Join(h.dir, "absent.yaml")
	_, err := h.tryStart()
	assert.Error(t, err)
}
