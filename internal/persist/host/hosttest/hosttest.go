// Package hosttest provides in-memory host collaborators for tests.
package hosttest

import (
	"fmt"
	"sort"
	"sync"

	"github.com/yndnr/savekeep-go/internal/persist/host"
	"github.com/yndnr/savekeep-go/internal/persist/value"
)

// Root is the durable base type used by NewCatalog.
const Root = "Entity"

// Catalog is a static host.Catalog. Descriptors are registered already in
// effective form; only the base chain is walked.
type Catalog struct {
	mu    sync.RWMutex
	root  string
	types map[string]host.TypeDescriptor
}

var _ host.Catalog = (*Catalog)(nil)

// NewCatalog returns a catalog whose durable root is Root.
func NewCatalog() *Catalog {
	c := &Catalog{root: Root, types: make(map[string]host.TypeDescriptor)}
	c.types[Root] = host.TypeDescriptor{Name: Root}
	return c
}

// Add registers or replaces a descriptor. An empty Base means Root.
func (c *Catalog) Add(d host.TypeDescriptor) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d.Base == "" && d.Name != c.root {
		d.Base = c.root
	}
	c.types[d.Name] = d
	return c
}

// AddForeign registers a type outside the durable hierarchy.
func (c *Catalog) AddForeign(name string, fields ...host.FieldDescriptor) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types[name] = host.TypeDescriptor{Name: name, Base: "-", Fields: fields}
	return c
}

// Types implements host.Catalog.
func (c *Catalog) Types() []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.types))
	for name := range c.types {
		names = append(names, name)
	}
	c.mu.RUnlock()

	out := names[:0]
	for _, n := range names {
		if c.IsDurable(n) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// Describe implements host.Catalog.
func (c *Catalog) Describe(typ string) (host.TypeDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.types[typ]
	return d, ok
}

// IsDurable implements host.Catalog.
func (c *Catalog) IsDurable(typ string) bool {
	return c.IsSubtype(typ, c.root)
}

// IsSubtype implements host.Catalog.
func (c *Catalog) IsSubtype(typ, base string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for depth := 0; depth <= len(c.types); depth++ {
		if typ == base {
			return true
		}
		d, ok := c.types[typ]
		if !ok || d.Base == "" {
			return false
		}
		typ = d.Base
	}
	return false
}

// Field is shorthand for a descriptor.
func Field(name string, kind value.Kind, persist bool) host.FieldDescriptor {
	return host.FieldDescriptor{Name: name, Kind: kind, Persist: persist}
}

// Object is a map-backed host.Object. Errors in Fail are returned from Get.
type Object struct {
	mu     sync.Mutex
	Type   string
	Values map[string]value.Value
	Fail   map[string]error
}

var _ host.Object = (*Object)(nil)

// NewObject returns an object of type typ holding values.
func NewObject(typ string, values map[string]value.Value) *Object {
	if values == nil {
		values = make(map[string]value.Value)
	}
	return &Object{Type: typ, Values: values, Fail: make(map[string]error)}
}

// TypeName implements host.Object.
func (o *Object) TypeName() string { return o.Type }

// Get implements host.Object.
func (o *Object) Get(field string) (value.Value, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.Fail[field]; err != nil {
		return value.Value{}, err
	}
	v, ok := o.Values[field]
	if !ok {
		return value.Value{}, fmt.Errorf("hosttest: %s has no field %q", o.Type, field)
	}
	return v, nil
}

// Set implements host.Object.
func (o *Object) Set(field string, v value.Value) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Values[field] = v
	return nil
}

// Source is a mutable host.ObjectSource.
type Source struct {
	mu      sync.Mutex
	objects []host.Object
}

var _ host.ObjectSource = (*Source)(nil)

// NewSource returns a source holding objs.
func NewSource(objs ...host.Object) *Source {
	return &Source{objects: objs}
}

// Add appends live objects.
func (s *Source) Add(objs ...host.Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects = append(s.objects, objs...)
}

// Objects implements host.ObjectSource.
func (s *Source) Objects() []host.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]host.Object(nil), s.objects...)
}
