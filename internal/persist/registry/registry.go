// Package registry builds and caches, per durable object type, the set of
// fields to persist.
//
// Two declaration sources are unioned: fields carrying the per-field persist
// marker, and names listed in the type's persist-by-name declarations. The
// derived map is published through an atomic pointer, so readers always see
// either the previous or the next complete map. Writers are serialized and
// copy the map before changing it.
package registry

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/savekeep-go/internal/core/domain"
	"github.com/yndnr/savekeep-go/internal/persist/host"
)

// Metrics receives registry rebuild events.
type Metrics interface {
	ObserveRebuild(entries int, took time.Duration)
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics sets the rebuild observer.
func WithMetrics(m Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// Registry is the durable field registry. The zero value is not usable;
// construct with New.
type Registry struct {
	catalog host.Catalog
	logger  *slog.Logger
	metrics Metrics

	// writeMu serializes writers (rebuilds, registrations, invalidation).
	writeMu sync.Mutex
	// st is nil until the first rebuild and after Invalidate.
	st atomic.Pointer[state]
}

// state is an immutable published map; writers copy it.
type state struct {
	entries map[string]*entry
}

type entry struct {
	manual bool
	fields map[string]Field
}

// New creates a registry over catalog. Entries are derived lazily on the
// first query.
func New(catalog host.Catalog, opts ...Option) *Registry {
	r := &Registry{
		catalog: catalog,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Catalog returns the host type system the registry derives from.
func (r *Registry) Catalog() host.Catalog {
	return r.catalog
}

// Rebuild re-derives every entry from the catalog and publishes the result.
// Fields added with RegisterField are discarded.
func (r *Registry) Rebuild() {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.st.Store(r.build())
}

// Invalidate drops the cached map; the next query rebuilds it.
func (r *Registry) Invalidate() {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.st.Store(nil)
	r.logger.Debug("registry invalidated")
}

// load returns the published state, building it on first use.
func (r *Registry) load() *state {
	if s := r.st.Load(); s != nil {
		return s
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if s := r.st.Load(); s != nil {
		return s
	}
	s := r.build()
	r.st.Store(s)
	return s
}

// build derives a fresh state. Caller holds writeMu.
func (r *Registry) build() *state {
	start := time.Now()
	s := &state{entries: make(map[string]*entry)}

	for _, typ := range r.catalog.Types() {
		if !r.catalog.IsDurable(typ) {
			continue
		}
		desc, ok := r.catalog.Describe(typ)
		if !ok {
			continue
		}

		byName := make(map[string]bool, len(desc.PersistFields))
		for _, name := range desc.PersistFields {
			byName[name] = true
		}

		fields := make(map[string]Field)
		for _, fd := range desc.Fields {
			if strings.Contains(fd.Name, ".") {
				r.logger.Warn("field name contains '.', not persistable",
					"type", typ,
					"field", fd.Name,
				)
				delete(byName, fd.Name)
				continue
			}
			if fd.Persist || byName[fd.Name] {
				fields[fd.Name] = Field{ID: FieldID{Type: typ, Name: fd.Name}, Kind: fd.Kind}
				delete(byName, fd.Name)
			}
		}
		for name := range byName {
			r.logger.Warn("persist-by-name declaration names no field",
				"type", typ,
				"field", name,
			)
		}

		if len(fields) == 0 {
			continue
		}
		s.entries[typ] = &entry{manual: desc.Manual, fields: fields}
	}

	took := time.Since(start)
	if r.metrics != nil {
		r.metrics.ObserveRebuild(len(s.entries), took)
	}
	r.logger.Debug("registry rebuilt",
		"entries", len(s.entries),
		"duration", took,
	)
	return s
}

// checkDurable fails with ErrInvalidType unless typ is a durable object type.
func (r *Registry) checkDurable(typ string) error {
	if !r.catalog.IsDurable(typ) {
		return domain.ErrInvalidType.WithDetails(typ)
	}
	return nil
}

// DurableFields returns the durable fields of typ sorted by name. A durable
// type without durable fields yields an empty slice.
func (r *Registry) DurableFields(typ string) ([]Field, error) {
	if err := r.checkDurable(typ); err != nil {
		return nil, err
	}
	e, ok := r.load().entries[typ]
	if !ok {
		return []Field{}, nil
	}
	return sortedFields(e.fields), nil
}

// RegisterField adds one field to typ's entry, creating the entry if needed.
// Registering an already durable field is a no-op.
func (r *Registry) RegisterField(typ, name string) error {
	if err := r.checkDurable(typ); err != nil {
		return err
	}
	id, err := NewFieldID(typ, name)
	if err != nil {
		return err
	}
	desc, ok := r.catalog.Describe(typ)
	if !ok {
		return domain.ErrInvalidType.WithDetails(typ)
	}
	fd, ok := desc.Field(name)
	if !ok {
		return domain.ErrUnknownField.WithDetails(id.String())
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	old := r.st.Load()
	if old == nil {
		old = r.build()
		r.st.Store(old)
	}
	if e, ok := old.entries[typ]; ok {
		if _, dup := e.fields[name]; dup {
			return nil
		}
	}

	next := &state{entries: make(map[string]*entry, len(old.entries)+1)}
	for k, v := range old.entries {
		next.entries[k] = v
	}
	ne := &entry{manual: desc.Manual, fields: make(map[string]Field)}
	if e, ok := old.entries[typ]; ok {
		ne.manual = e.manual
		for k, v := range e.fields {
			ne.fields[k] = v
		}
	}
	ne.fields[name] = Field{ID: id, Kind: fd.Kind}
	next.entries[typ] = ne
	r.st.Store(next)

	r.logger.Debug("field registered", "field", id.String(), "kind", fd.Kind.String())
	return nil
}

// Field resolves one durable field identity. It fails with ErrInvalidType
// when the type is not durable and ErrUnknownField when the field is not
// durable on it.
func (r *Registry) Field(typ, name string) (Field, error) {
	if err := r.checkDurable(typ); err != nil {
		return Field{}, err
	}
	e, ok := r.load().entries[typ]
	if !ok {
		return Field{}, domain.ErrUnknownField.WithDetails(typ + "." + name)
	}
	f, ok := e.fields[name]
	if !ok {
		return Field{}, domain.ErrUnknownField.WithDetails(typ + "." + name)
	}
	return f, nil
}

// Entries returns every published entry sorted by type.
func (r *Registry) Entries() []Entry {
	s := r.load()
	out := make([]Entry, 0, len(s.entries))
	for typ, e := range s.entries {
		out = append(out, Entry{Type: typ, Manual: e.manual, Fields: sortedFields(e.fields)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// DurableFieldsOf returns the durable fields of obj's runtime type.
func (r *Registry) DurableFieldsOf(obj host.Object) ([]Field, error) {
	return r.DurableFields(obj.TypeName())
}

// RegisterFieldOf registers a field on obj's runtime type.
func (r *Registry) RegisterFieldOf(obj host.Object, name string) error {
	return r.RegisterField(obj.TypeName(), name)
}

func sortedFields(m map[string]Field) []Field {
	out := make([]Field, 0, len(m))
	for _, f := range m {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Name < out[j].ID.Name })
	return out
}
