// Package host declares the collaborators the persistence core consumes from
// the embedding application: the type system describing durable objects and
// the source of live objects.
package host

import "github.com/yndnr/savekeep-go/internal/persist/value"

// FieldDescriptor describes one field of a type. Persist is the per-field
// durable marker.
type FieldDescriptor struct {
	Name    string
	Kind    value.Kind
	Persist bool
}

// TypeDescriptor is the effective description of a type: inherited fields,
// markers, persist-by-name declarations and the manual marker are already
// folded in.
type TypeDescriptor struct {
	Name string
	Base string

	Fields []FieldDescriptor

	// PersistFields names fields to persist that the type cannot mark
	// directly, typically fields declared on a base type.
	PersistFields []string

	// Manual excludes the type from whole-world capture.
	Manual bool
}

// Field looks up a field by name.
func (d TypeDescriptor) Field(name string) (FieldDescriptor, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// Catalog is the host type system.
type Catalog interface {
	// Types lists every known durable object type.
	Types() []string
	// Describe returns the effective descriptor of typ.
	Describe(typ string) (TypeDescriptor, bool)
	// IsDurable reports whether typ is a subtype of the durable base category.
	IsDurable(typ string) bool
	// IsSubtype is a reflexive is-a check.
	IsSubtype(typ, base string) bool
}

// Object is a live durable object.
type Object interface {
	// TypeName returns the most-derived runtime type.
	TypeName() string
	Get(field string) (value.Value, error)
	Set(field string, v value.Value) error
}

// ObjectSource enumerates currently live durable objects.
type ObjectSource interface {
	Objects() []Object
}

// ObjectSourceFunc adapts a function to ObjectSource.
type ObjectSourceFunc func() []Object

// Objects implements ObjectSource.
func (f ObjectSourceFunc) Objects() []Object { return f() }
