// Package snapshot holds captured durable state and the whole-world capture.
package snapshot

import (
	"fmt"
	"sort"

	"github.com/yndnr/savekeep-go/internal/core/domain"
	"github.com/yndnr/savekeep-go/internal/persist/host"
	"github.com/yndnr/savekeep-go/internal/persist/value"
)

// Record is the captured data of one durable object.
type Record struct {
	Type   string
	Fields map[string]value.Value
}

// Value returns the captured value of a field.
func (r Record) Value(name string) (value.Value, error) {
	v, ok := r.Fields[name]
	if !ok {
		return value.Value{}, domain.ErrUnknownField.WithDetails(r.Type + "." + name)
	}
	return v, nil
}

// FieldNames returns the record's field names sorted.
func (r Record) FieldNames() []string {
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Equal reports whether both records have the same type and field values.
func (r Record) Equal(o Record) bool {
	if r.Type != o.Type || len(r.Fields) != len(o.Fields) {
		return false
	}
	for name, v := range r.Fields {
		ov, ok := o.Fields[name]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// ApplyTo writes every captured field onto obj in name order.
func (r Record) ApplyTo(obj host.Object) error {
	for _, name := range r.FieldNames() {
		if err := obj.Set(name, r.Fields[name]); err != nil {
			return fmt.Errorf("snapshot: set %s.%s: %w", r.Type, name, err)
		}
	}
	return nil
}

// Get returns a field's payload as T. Supported targets are value.Value and
// the Go types returned by value.Value.Interface.
func Get[T any](r Record, name string) (T, error) {
	var zero T
	v, err := r.Value(name)
	if err != nil {
		return zero, err
	}
	if t, ok := any(v).(T); ok {
		return t, nil
	}
	t, ok := v.Interface().(T)
	if !ok {
		return zero, domain.ErrUnsupportedValue.WithDetailsf("%s.%s holds %s, not %T", r.Type, name, v.Kind(), zero)
	}
	return t, nil
}

// Match selects how OfType compares types.
type Match int

const (
	// Exact matches records whose type equals the requested type.
	Exact Match = iota
	// Subtype matches records whose type is the requested type or derives from it.
	Subtype
)

// Hierarchy answers is-a questions; host.Catalog satisfies it.
type Hierarchy interface {
	IsSubtype(typ, base string) bool
}

// Snapshot is an ordered sequence of records. Order carries no meaning but
// survives a round trip through the codec.
type Snapshot struct {
	Records []Record
}

// New returns a snapshot of records.
func New(records ...Record) *Snapshot {
	return &Snapshot{Records: records}
}

// All returns every record.
func (s *Snapshot) All() []Record {
	if s == nil {
		return nil
	}
	return s.Records
}

// Len returns the number of records.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// OfType returns the records matching typ. Subtype matching needs h; with a
// nil hierarchy it degrades to exact matching.
func (s *Snapshot) OfType(typ string, m Match, h Hierarchy) []Record {
	var out []Record
	for _, r := range s.All() {
		switch {
		case r.Type == typ:
			out = append(out, r)
		case m == Subtype && h != nil && h.IsSubtype(r.Type, typ):
			out = append(out, r)
		}
	}
	return out
}

// Equal compares two snapshots record by record, ignoring record order.
func (s *Snapshot) Equal(o *Snapshot) bool {
	a, b := s.All(), o.All()
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
outer:
	for _, r := range a {
		for i, cand := range b {
			if !used[i] && r.Equal(cand) {
				used[i] = true
				continue outer
			}
		}
		return false
	}
	return true
}
