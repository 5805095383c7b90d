// Package world is a schema-described object world: a host.Catalog built
// from a YAML schema and a host.ObjectSource of ULID-identified objects.
// savekeepd runs persistence sessions over it and savekeep-cli uses its
// catalog to decode saves.
package world

import (
	"crypto/rand"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/savekeep-go/internal/core/domain"
	"github.com/yndnr/savekeep-go/internal/persist/host"
	"github.com/yndnr/savekeep-go/internal/persist/snapshot"
	"github.com/yndnr/savekeep-go/internal/persist/value"
)

// World holds the live objects of one session.
type World struct {
	catalog *Catalog
	now     func() time.Time

	mu      sync.RWMutex
	entropy io.Reader
	objects map[ulid.ULID]*Object
}

var _ host.ObjectSource = (*World)(nil)

// Option configures a World.
type Option func(*World)

// WithClock sets the time source for ULIDs and relative defaults.
func WithClock(now func() time.Time) Option {
	return func(w *World) { w.now = now }
}

// New returns an empty world over catalog.
func New(catalog *Catalog, opts ...Option) *World {
	w := &World{
		catalog: catalog,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
		objects: make(map[ulid.ULID]*Object),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Catalog returns the world's catalog.
func (w *World) Catalog() *Catalog { return w.catalog }

// Spawn creates an object of typ. Fields missing from values keep their
// schema defaults.
func (w *World) Spawn(typ string, values map[string]value.Value) (*Object, error) {
	if !w.catalog.IsDurable(typ) {
		return nil, domain.ErrInvalidType.WithDetails(typ)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(w.now()), w.entropy)
	if err != nil {
		return nil, fmt.Errorf("world: new id: %w", err)
	}
	obj := &Object{
		id:      id,
		typ:     typ,
		catalog: w.catalog,
		now:     w.now,
		values:  make(map[string]value.Value, len(values)),
	}
	for name, v := range values {
		if err := obj.Set(name, v); err != nil {
			return nil, err
		}
	}
	w.objects[id] = obj
	return obj, nil
}

// SpawnAll spawns the schema's initial objects.
func (w *World) SpawnAll(specs []ObjectSpec) error {
	for i, spec := range specs {
		values := make(map[string]value.Value, len(spec.Values))
		for name, raw := range spec.Values {
			f, ok := w.catalog.fieldSpec(spec.Type, name)
			if !ok {
				return fmt.Errorf("world: objects[%d]: %s has no field %q", i, spec.Type, name)
			}
			v, err := Convert(f.Kind, raw, w.now())
			if err != nil {
				return fmt.Errorf("world: objects[%d].%s: %w", i, name, err)
			}
			values[name] = v
		}
		if _, err := w.Spawn(spec.Type, values); err != nil {
			return fmt.Errorf("world: objects[%d]: %w", i, err)
		}
	}
	return nil
}

// Object returns the object with id.
func (w *World) Object(id ulid.ULID) (*Object, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	o, ok := w.objects[id]
	return o, ok
}

// Destroy removes an object. It reports whether the object existed.
func (w *World) Destroy(id ulid.ULID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.objects[id]
	delete(w.objects, id)
	return ok
}

// Len returns the number of live objects.
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.objects)
}

// Objects implements host.ObjectSource in ID order. Objects whose type was
// removed by a schema reload are left out.
func (w *World) Objects() []host.Object {
	w.mu.RLock()
	live := make([]*Object, 0, len(w.objects))
	for _, o := range w.objects {
		if w.catalog.IsDurable(o.typ) {
			live = append(live, o)
		}
	}
	w.mu.RUnlock()

	sort.Slice(live, func(i, j int) bool { return live[i].id.Compare(live[j].id) < 0 })
	out := make([]host.Object, len(live))
	for i, o := range live {
		out[i] = o
	}
	return out
}

// Apply replaces every object of an automatically saved type with one
// object per snapshot record. Objects of manual types are kept. It returns
// the number of objects restored.
func (w *World) Apply(snap *snapshot.Snapshot) (int, error) {
	for _, rec := range snap.All() {
		if !w.catalog.IsDurable(rec.Type) {
			return 0, domain.ErrInvalidType.WithDetails(rec.Type)
		}
	}

	w.mu.Lock()
	for id, o := range w.objects {
		if d, ok := w.catalog.Describe(o.typ); !ok || !d.Manual {
			delete(w.objects, id)
		}
	}
	w.mu.Unlock()

	for i, rec := range snap.All() {
		if _, err := w.Spawn(rec.Type, rec.Fields); err != nil {
			return i, fmt.Errorf("world: restore record %d (%s): %w", i, rec.Type, err)
		}
	}
	return snap.Len(), nil
}
