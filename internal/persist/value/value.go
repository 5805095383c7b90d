// Package value defines the tagged variant carried by every captured field.
//
// A Value records its Kind alongside the payload so the codec can cross-check
// it against the kind the registry declares for the field, instead of
// trusting the payload blindly.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// AssetRef references a reusable named resource. Only plain named assets
// have a wire form; procedural and error placeholders do not.
type AssetRef struct {
	Name       string
	Procedural bool
	Error      bool
}

// Plain reports whether the asset can be referenced by name alone.
func (a AssetRef) Plain() bool {
	return !a.Procedural && !a.Error && a.Name != ""
}

func (a AssetRef) String() string {
	switch {
	case a.Error:
		return "<error asset>"
	case a.Procedural:
		return "<procedural asset>"
	}
	return a.Name
}

// Value is a tagged variant over the supported field kinds. The zero Value
// has KindInvalid.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	f     float64
	s     string // string, type name
	asset AssetRef
	t     time.Time // since, until
	raw   []byte
}

// Bool returns a KindBool value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns a KindInt value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a KindFloat value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String returns a KindString value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Asset returns a KindAsset value.
func Asset(a AssetRef) Value { return Value{kind: KindAsset, asset: a} }

// NamedAsset is shorthand for Asset(AssetRef{Name: name}).
func NamedAsset(name string) Value { return Asset(AssetRef{Name: name}) }

// Since returns a KindSince value anchored at the instant the event happened.
func Since(at time.Time) Value { return Value{kind: KindSince, t: at} }

// Until returns a KindUntil value anchored at the deadline.
func Until(deadline time.Time) Value { return Value{kind: KindUntil, t: deadline} }

// Type returns a KindType value naming a type identifier.
func Type(name string) Value { return Value{kind: KindType, s: name} }

// Raw returns a KindRaw value holding a copy of doc. The document must be
// valid JSON.
func Raw(doc []byte) (Value, error) {
	if !json.Valid(doc) {
		return Value{}, fmt.Errorf("value: raw document is not valid JSON")
	}
	return Value{kind: KindRaw, raw: bytes.Clone(bytes.TrimSpace(doc))}, nil
}

// MustRaw is Raw for literals; it panics on invalid JSON.
func MustRaw(doc string) Value {
	v, err := Raw([]byte(doc))
	if err != nil {
		panic(err)
	}
	return v
}

// Kind returns the value's discriminant.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a payload.
func (v Value) IsValid() bool { return v.kind.Valid() }

// AsBool returns the payload of a KindBool value.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the payload of a KindInt value.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns the payload of a KindFloat value. KindInt values convert.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// AsString returns the payload of a KindString value.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsAsset returns the payload of a KindAsset value.
func (v Value) AsAsset() (AssetRef, bool) { return v.asset, v.kind == KindAsset }

// AsTime returns the anchor instant of a KindSince or KindUntil value.
func (v Value) AsTime() (time.Time, bool) {
	return v.t, v.kind == KindSince || v.kind == KindUntil
}

// AsType returns the type name of a KindType value.
func (v Value) AsType() (string, bool) { return v.s, v.kind == KindType }

// AsRaw returns a copy of the document of a KindRaw value.
func (v Value) AsRaw() ([]byte, bool) {
	if v.kind != KindRaw {
		return nil, false
	}
	return bytes.Clone(v.raw), true
}

// Equal reports whether both values have the same kind and payload.
// Time anchors compare by instant; raw documents compare byte for byte.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInvalid:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString, KindType:
		return v.s == o.s
	case KindAsset:
		return v.asset == o.asset
	case KindSince, KindUntil:
		return v.t.Equal(o.t)
	case KindRaw:
		return bytes.Equal(v.raw, o.raw)
	}
	return false
}

// Interface returns the payload as a plain Go value for display and
// generic serialization. Assets come back as AssetRef, time anchors as
// time.Time and raw documents as json.RawMessage.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString, KindType:
		return v.s
	case KindAsset:
		return v.asset
	case KindSince, KindUntil:
		return v.t
	case KindRaw:
		return json.RawMessage(bytes.Clone(v.raw))
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindType:
		return v.s
	case KindAsset:
		return v.asset.String()
	case KindSince:
		return "since " + v.t.Format(time.RFC3339)
	case KindUntil:
		return "until " + v.t.Format(time.RFC3339)
	case KindRaw:
		return string(v.raw)
	}
	return "<invalid>"
}
