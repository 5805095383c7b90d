package world

import (
	"fmt"
	"math"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/oklog/ulid/v2"

	"github.com/yndnr/savekeep-go/internal/persist/host"
	"github.com/yndnr/savekeep-go/internal/persist/value"
)

// Object is a live object of a schema type. Fields not set since spawn read
// as the schema default, so fields added by a schema reload appear with
// their defaults.
type Object struct {
	id      ulid.ULID
	typ     string
	catalog *Catalog
	now     func() time.Time

	mu     sync.RWMutex
	values map[string]value.Value
}

var _ host.Object = (*Object)(nil)

// ID returns the object's identity.
func (o *Object) ID() ulid.ULID { return o.id }

// TypeName implements host.Object.
func (o *Object) TypeName() string { return o.typ }

// Get implements host.Object.
func (o *Object) Get(field string) (value.Value, error) {
	spec, ok := o.catalog.fieldSpec(o.typ, field)
	if !ok {
		return value.Value{}, fmt.Errorf("world: %s has no field %q", o.typ, field)
	}

	o.mu.RLock()
	v, set := o.values[field]
	o.mu.RUnlock()
	if set {
		return v, nil
	}
	return fieldDefault(spec, o.now())
}

// Set implements host.Object. The value's kind must match the field's.
func (o *Object) Set(field string, v value.Value) error {
	spec, ok := o.catalog.fieldSpec(o.typ, field)
	if !ok {
		return fmt.Errorf("world: %s has no field %q", o.typ, field)
	}
	if v.Kind() != spec.Kind {
		return fmt.Errorf("world: %s.%s is %s, got %s", o.typ, field, spec.Kind, v.Kind())
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.values[field] = v
	return nil
}

// Values returns every declared field's current value.
func (o *Object) Values() (map[string]value.Value, error) {
	d, ok := o.catalog.Describe(o.typ)
	if !ok {
		return nil, fmt.Errorf("world: type %s no longer exists", o.typ)
	}
	out := make(map[string]value.Value, len(d.Fields))
	for _, f := range d.Fields {
		v, err := o.Get(f.Name)
		if err != nil {
			return nil, err
		}
		out[f.Name] = v
	}
	return out, nil
}

func fieldDefault(f FieldSpec, now time.Time) (value.Value, error) {
	v, err := Convert(f.Kind, f.Default, now)
	if err != nil {
		return value.Value{}, fmt.Errorf("world: default of %s: %w", f.Name, err)
	}
	return v, nil
}

// Convert turns a YAML scalar or document into a value of kind k. A nil
// input yields the kind's zero value. Since and until take seconds (or a
// duration string) relative to now.
func Convert(k value.Kind, in any, now time.Time) (value.Value, error) {
	if in == nil {
		return zero(k, now), nil
	}
	switch k {
	case value.KindBool:
		if b, ok := in.(bool); ok {
			return value.Bool(b), nil
		}
	case value.KindInt:
		switch n := in.(type) {
		case int:
			return value.Int(int64(n)), nil
		case int64:
			return value.Int(n), nil
		case uint64:
			if n <= math.MaxInt64 {
				return value.Int(int64(n)), nil
			}
		case float64:
			if n == math.Trunc(n) && n >= math.MinInt64 && n <= math.MaxInt64 {
				return value.Int(int64(n)), nil
			}
		}
	case value.KindFloat:
		switch n := in.(type) {
		case float64:
			return value.Float(n), nil
		case int:
			return value.Float(float64(n)), nil
		case int64:
			return value.Float(float64(n)), nil
		}
	case value.KindString:
		if s, ok := in.(string); ok {
			return value.String(s), nil
		}
	case value.KindAsset:
		if s, ok := in.(string); ok {
			return value.NamedAsset(s), nil
		}
	case value.KindType:
		if s, ok := in.(string); ok {
			return value.Type(s), nil
		}
	case value.KindSince, value.KindUntil:
		d, err := toDuration(in)
		if err != nil {
			return value.Value{}, err
		}
		if k == value.KindSince {
			return value.Since(now.Add(-d)), nil
		}
		return value.Until(now.Add(d)), nil
	case value.KindRaw:
		doc, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(in)
		if err != nil {
			return value.Value{}, fmt.Errorf("encode raw document: %w", err)
		}
		return value.Raw(doc)
	}
	return value.Value{}, fmt.Errorf("cannot use %T as %s", in, k)
}

func toDuration(in any) (time.Duration, error) {
	switch n := in.(type) {
	case int:
		return time.Duration(n) * time.Second, nil
	case int64:
		return time.Duration(n) * time.Second, nil
	case float64:
		return time.Duration(n * float64(time.Second)), nil
	case string:
		return time.ParseDuration(n)
	}
	return 0, fmt.Errorf("cannot use %T as a duration", in)
}

func zero(k value.Kind, now time.Time) value.Value {
	switch k {
	case value.KindBool:
		return value.Bool(false)
	case value.KindInt:
		return value.Int(0)
	case value.KindFloat:
		return value.Float(0)
	case value.KindString:
		return value.String("")
	case value.KindAsset:
		return value.Asset(value.AssetRef{})
	case value.KindSince:
		return value.Since(now)
	case value.KindUntil:
		return value.Until(now)
	case value.KindType:
		return value.Type("")
	case value.KindRaw:
		return value.MustRaw("null")
	}
	return value.Value{}
}
