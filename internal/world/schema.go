package world

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yndnr/savekeep-go/internal/persist/value"
)

// DefaultRoot is the durable base type when a schema names none.
const DefaultRoot = "Entity"

// Schema is the YAML description of an object world.
//
//	root: Entity
//	types:
//	  - name: Player
//	    persist_fields: [id]
//	    fields:
//	      - {name: health, kind: int, persist: true, default: 100}
//	objects:
//	  - type: Player
//	    values: {health: 80}
type Schema struct {
	Root    string       `yaml:"root"`
	Types   []TypeSpec   `yaml:"types"`
	Objects []ObjectSpec `yaml:"objects"`
}

// TypeSpec declares one type. Fields, persist_fields and manual are
// inherited by subtypes.
type TypeSpec struct {
	Name          string      `yaml:"name"`
	Base          string      `yaml:"base"`
	Manual        bool        `yaml:"manual"`
	PersistFields []string    `yaml:"persist_fields"`
	Fields        []FieldSpec `yaml:"fields"`
}

// FieldSpec declares one field.
type FieldSpec struct {
	Name    string     `yaml:"name"`
	Kind    value.Kind `yaml:"kind"`
	Persist bool       `yaml:"persist"`
	Default any        `yaml:"default"`
}

// ObjectSpec is an object spawned when the world starts empty.
type ObjectSpec struct {
	Type   string         `yaml:"type"`
	Values map[string]any `yaml:"values"`
}

// LoadSchema reads and validates a schema file.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("world: read schema: %w", err)
	}
	s, err := ParseSchema(data)
	if err != nil {
		return nil, fmt.Errorf("world: %s: %w", path, err)
	}
	return s, nil
}

// ParseSchema decodes and validates a schema. Unknown keys are rejected.
func ParseSchema(data []byte) (*Schema, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Schema
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if s.Root == "" {
		s.Root = DefaultRoot
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks names, bases and field kinds. Unknown persist_fields
// entries are left to the registry, which skips them with a warning.
func (s *Schema) Validate() error {
	byName := make(map[string]TypeSpec, len(s.Types))
	for _, t := range s.Types {
		if t.Name == "" {
			return errors.New("type with empty name")
		}
		if _, dup := byName[t.Name]; dup {
			return fmt.Errorf("type %s declared twice", t.Name)
		}
		byName[t.Name] = t

		seen := make(map[string]bool, len(t.Fields))
		for _, f := range t.Fields {
			if f.Name == "" {
				return fmt.Errorf("type %s: field with empty name", t.Name)
			}
			if seen[f.Name] {
				return fmt.Errorf("type %s: field %s declared twice", t.Name, f.Name)
			}
			seen[f.Name] = true
			if !f.Kind.Valid() {
				return fmt.Errorf("type %s: field %s: missing kind", t.Name, f.Name)
			}
		}
	}

	for _, t := range s.Types {
		if t.Name == s.Root {
			if t.Base != "" {
				return fmt.Errorf("root type %s cannot have a base", t.Name)
			}
			continue
		}
		// Walk to the root; more hops than types means a cycle.
		cur := t
		for hops := 0; ; hops++ {
			base := cur.Base
			if base == "" || base == s.Root {
				break
			}
			next, ok := byName[base]
			if !ok {
				return fmt.Errorf("type %s: unknown base %s", cur.Name, base)
			}
			if hops > len(s.Types) {
				return fmt.Errorf("type %s: inheritance cycle", t.Name)
			}
			cur = next
		}
	}

	for i, o := range s.Objects {
		if o.Type == s.Root {
			continue
		}
		if _, ok := byName[o.Type]; !ok {
			return fmt.Errorf("objects[%d]: unknown type %s", i, o.Type)
		}
	}
	return nil
}
