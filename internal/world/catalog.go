package world

import (
	"sort"
	"sync"

	"github.com/yndnr/savekeep-go/internal/persist/host"
)

// Catalog is the host.Catalog view of a Schema. Descriptors are resolved to
// effective form when the schema is set, so Describe never walks bases.
type Catalog struct {
	mu    sync.RWMutex
	root  string
	types map[string]host.TypeDescriptor
	specs map[string]FieldSpec // "Type.field" -> effective field spec
}

var _ host.Catalog = (*Catalog)(nil)

// NewCatalog builds a catalog from a validated schema.
func NewCatalog(s *Schema) *Catalog {
	c := &Catalog{}
	c.SetSchema(s)
	return c
}

// SetSchema replaces every descriptor. Callers must invalidate registries
// built on this catalog.
func (c *Catalog) SetSchema(s *Schema) {
	root := s.Root
	if root == "" {
		root = DefaultRoot
	}
	byName := make(map[string]TypeSpec, len(s.Types)+1)
	byName[root] = TypeSpec{Name: root}
	for _, t := range s.Types {
		byName[t.Name] = t
	}

	types := make(map[string]host.TypeDescriptor, len(byName))
	specs := make(map[string]FieldSpec)
	for name := range byName {
		d, fields := resolve(name, root, byName)
		types[name] = d
		for _, f := range fields {
			specs[name+"."+f.Name] = f
		}
	}

	c.mu.Lock()
	c.root, c.types, c.specs = root, types, specs
	c.mu.Unlock()
}

// resolve folds the base chain into one descriptor. Derived declarations
// replace inherited fields of the same name in place.
func resolve(name, root string, byName map[string]TypeSpec) (host.TypeDescriptor, []FieldSpec) {
	var chain []TypeSpec
	for cur, hops := name, 0; cur != "" && hops <= len(byName); hops++ {
		t, ok := byName[cur]
		if !ok {
			break
		}
		chain = append(chain, t)
		if cur == root {
			break
		}
		cur = t.Base
		if cur == "" {
			cur = root
		}
	}

	d := host.TypeDescriptor{Name: name}
	if len(chain) > 1 {
		d.Base = chain[1].Name
	}
	var fields []FieldSpec
	index := make(map[string]int)
	persistSeen := make(map[string]bool)
	for i := len(chain) - 1; i >= 0; i-- {
		t := chain[i]
		d.Manual = d.Manual || t.Manual
		for _, p := range t.PersistFields {
			if !persistSeen[p] {
				persistSeen[p] = true
				d.PersistFields = append(d.PersistFields, p)
			}
		}
		for _, f := range t.Fields {
			if at, ok := index[f.Name]; ok {
				fields[at] = f
				continue
			}
			index[f.Name] = len(fields)
			fields = append(fields, f)
		}
	}
	for _, f := range fields {
		d.Fields = append(d.Fields, host.FieldDescriptor{Name: f.Name, Kind: f.Kind, Persist: f.Persist})
	}
	return d, fields
}

// Root returns the durable base type.
func (c *Catalog) Root() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.root
}

// Types implements host.Catalog.
func (c *Catalog) Types() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.types))
	for name := range c.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe implements host.Catalog.
func (c *Catalog) Describe(typ string) (host.TypeDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.types[typ]
	return d, ok
}

// IsDurable implements host.Catalog. Every schema type derives from the root.
func (c *Catalog) IsDurable(typ string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.types[typ]
	return ok
}

// IsSubtype implements host.Catalog.
func (c *Catalog) IsSubtype(typ, base string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for hops := 0; hops <= len(c.types); hops++ {
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

func (c *Catalog) fieldSpec(typ, name string) (FieldSpec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.specs[typ+"."+name]
	return f, ok
}
