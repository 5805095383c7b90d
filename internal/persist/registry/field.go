package registry

import (
	"strings"

	"github.com/yndnr/savekeep-go/internal/core/domain"
	"github.com/yndnr/savekeep-go/internal/persist/value"
)

// FieldID names one durable field on one durable object type. Its textual
// form is "Type.Name"; type identifiers may contain '.', field names never do.
type FieldID struct {
	Type string
	Name string
}

// NewFieldID validates and returns a FieldID.
func NewFieldID(typ, name string) (FieldID, error) {
	if typ == "" {
		return FieldID{}, domain.ErrInvalidType.WithDetails("empty type identifier")
	}
	if name == "" || strings.Contains(name, ".") {
		return FieldID{}, domain.ErrUnknownField.WithDetailsf("invalid field name %q on %s", name, typ)
	}
	return FieldID{Type: typ, Name: name}, nil
}

// ParseFieldID splits s on its last '.'.
func ParseFieldID(s string) (FieldID, error) {
	i := strings.LastIndexByte(s, '.')
	if i <= 0 || i == len(s)-1 {
		return FieldID{}, domain.ErrUnknownField.WithDetailsf("malformed field identity %q", s)
	}
	return FieldID{Type: s[:i], Name: s[i+1:]}, nil
}

func (id FieldID) String() string {
	return id.Type + "." + id.Name
}

// Field is a durable field together with its declared kind.
type Field struct {
	ID   FieldID
	Kind value.Kind
}

// Entry is the published durable field set of one type.
type Entry struct {
	Type   string
	Manual bool
	Fields []Field // sorted by name
}

// Field finds a field of the entry by name.
func (e Entry) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.ID.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
