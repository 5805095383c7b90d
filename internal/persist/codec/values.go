package codec

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"

	"github.com/yndnr/savekeep-go/internal/core/domain"
	"github.com/yndnr/savekeep-go/internal/persist/value"
)

// ValueCodec encodes and decodes the leaf values of one kind. Decode must
// consume exactly one JSON value from the iterator.
type ValueCodec interface {
	Encode(s *jsoniter.Stream, v value.Value) error
	Decode(it *jsoniter.Iterator) (value.Value, error)
}

// Clock returns the current time.
type Clock func() time.Time

// DefaultValueCodecs returns the built-in leaf codecs. since and until
// values are encoded relative to clock.
func DefaultValueCodecs(clock Clock) map[value.Kind]ValueCodec {
	if clock == nil {
		clock = time.Now
	}
	return map[value.Kind]ValueCodec{
		value.KindBool:   boolCodec{},
		value.KindInt:    intCodec{},
		value.KindFloat:  floatCodec{},
		value.KindString: stringCodec{},
		value.KindAsset:  assetCodec{},
		value.KindSince:  sinceCodec{now: clock},
		value.KindUntil:  untilCodec{now: clock},
		value.KindType:   TypeNameCodec{},
		value.KindRaw:    rawCodec{},
	}
}

var errKind = errors.New("value kind does not match codec")

func expect(it *jsoniter.Iterator, want jsoniter.ValueType, what string) error {
	if got := it.WhatIsNext(); got != want {
		return fmt.Errorf("expected %s, found %s", what, valueTypeName(got))
	}
	return nil
}

func valueTypeName(t jsoniter.ValueType) string {
	switch t {
	case jsoniter.StringValue:
		return "string"
	case jsoniter.NumberValue:
		return "number"
	case jsoniter.NilValue:
		return "null"
	case jsoniter.BoolValue:
		return "bool"
	case jsoniter.ArrayValue:
		return "array"
	case jsoniter.ObjectValue:
		return "object"
	}
	return "invalid token"
}

type boolCodec struct{}

func (boolCodec) Encode(s *jsoniter.Stream, v value.Value) error {
	b, ok := v.AsBool()
	if !ok {
		return errKind
	}
	s.WriteBool(b)
	return nil
}

func (boolCodec) Decode(it *jsoniter.Iterator) (value.Value, error) {
	if err := expect(it, jsoniter.BoolValue, "bool"); err != nil {
		return value.Value{}, err
	}
	return value.Bool(it.ReadBool()), nil
}

type intCodec struct{}

func (intCodec) Encode(s *jsoniter.Stream, v value.Value) error {
	i, ok := v.AsInt()
	if !ok {
		return errKind
	}
	s.WriteInt64(i)
	return nil
}

func (intCodec) Decode(it *jsoniter.Iterator) (value.Value, error) {
	if err := expect(it, jsoniter.NumberValue, "integer"); err != nil {
		return value.Value{}, err
	}
	n, err := it.ReadNumber().Int64()
	if err != nil {
		return value.Value{}, err
	}
	return value.Int(n), nil
}

func writeFinite(s *jsoniter.Stream, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return domain.ErrUnsupportedValue.WithDetailsf("non-finite number %v", f)
	}
	s.WriteFloat64(f)
	return nil
}

func readNumber(it *jsoniter.Iterator) (float64, error) {
	if err := expect(it, jsoniter.NumberValue, "number"); err != nil {
		return 0, err
	}
	return it.ReadNumber().Float64()
}

type floatCodec struct{}

func (floatCodec) Encode(s *jsoniter.Stream, v value.Value) error {
	f, ok := v.AsFloat()
	if !ok || v.Kind() != value.KindFloat {
		return errKind
	}
	return writeFinite(s, f)
}

func (floatCodec) Decode(it *jsoniter.Iterator) (value.Value, error) {
	f, err := readNumber(it)
	if err != nil {
		return value.Value{}, err
	}
	return value.Float(f), nil
}

type stringCodec struct{}

func (stringCodec) Encode(s *jsoniter.Stream, v value.Value) error {
	str, ok := v.AsString()
	if !ok {
		return errKind
	}
	if !utf8.ValidString(str) {
		return domain.ErrUnsupportedValue.WithDetailsf("string %q is not valid UTF-8", str)
	}
	s.WriteString(str)
	return nil
}

func (stringCodec) Decode(it *jsoniter.Iterator) (value.Value, error) {
	if err := expect(it, jsoniter.StringValue, "string"); err != nil {
		return value.Value{}, err
	}
	str := it.ReadString()
	if !utf8.ValidString(str) {
		return value.Value{}, errors.New("string is not valid UTF-8")
	}
	return value.String(str), nil
}

// assetCodec writes a named asset as its name. Procedural and error assets
// have no name that would load back the same resource.
type assetCodec struct{}

func (assetCodec) Encode(s *jsoniter.Stream, v value.Value) error {
	a, ok := v.AsAsset()
	if !ok {
		return errKind
	}
	if !a.Plain() {
		return domain.ErrUnsupportedValue.WithDetailsf("asset %s has no wire form", a)
	}
	s.WriteString(a.Name)
	return nil
}

func (assetCodec) Decode(it *jsoniter.Iterator) (value.Value, error) {
	if err := expect(it, jsoniter.StringValue, "asset name"); err != nil {
		return value.Value{}, err
	}
	name := it.ReadString()
	if name == "" {
		return value.Value{}, errors.New("empty asset name")
	}
	return value.NamedAsset(name), nil
}

// sinceCodec writes the seconds elapsed since the event, as of encode time.
type sinceCodec struct{ now Clock }

func (c sinceCodec) Encode(s *jsoniter.Stream, v value.Value) error {
	if v.Kind() != value.KindSince {
		return errKind
	}
	at, _ := v.AsTime()
	return writeFinite(s, c.now().Sub(at).Seconds())
}

func (c sinceCodec) Decode(it *jsoniter.Iterator) (value.Value, error) {
	secs, err := readNumber(it)
	if err != nil {
		return value.Value{}, err
	}
	d, err := seconds(secs)
	if err != nil {
		return value.Value{}, err
	}
	return value.Since(c.now().Add(-d)), nil
}

// untilCodec writes the signed seconds remaining until the deadline.
type untilCodec struct{ now Clock }

func (c untilCodec) Encode(s *jsoniter.Stream, v value.Value) error {
	if v.Kind() != value.KindUntil {
		return errKind
	}
	at, _ := v.AsTime()
	return writeFinite(s, at.Sub(c.now()).Seconds())
}

func (c untilCodec) Decode(it *jsoniter.Iterator) (value.Value, error) {
	secs, err := readNumber(it)
	if err != nil {
		return value.Value{}, err
	}
	d, err := seconds(secs)
	if err != nil {
		return value.Value{}, err
	}
	return value.Until(c.now().Add(d)), nil
}

// maxSeconds is the largest offset a time.Duration can hold.
const maxSeconds = float64(math.MaxInt64) / float64(time.Second)

func seconds(f float64) (time.Duration, error) {
	if math.Abs(f) >= maxSeconds {
		return 0, fmt.Errorf("%g seconds is out of range", f)
	}
	return time.Duration(math.Round(f * float64(time.Second))), nil
}

// TypeNameCodec writes a type identifier as its name. When Known is set,
// decoding rejects names it does not recognize.
type TypeNameCodec struct {
	Known func(name string) bool
}

// Encode implements ValueCodec.
func (c TypeNameCodec) Encode(s *jsoniter.Stream, v value.Value) error {
	name, ok := v.AsType()
	if !ok {
		return errKind
	}
	if name == "" {
		return domain.ErrUnsupportedValue.WithDetails("empty type name")
	}
	s.WriteString(name)
	return nil
}

// Decode implements ValueCodec.
func (c TypeNameCodec) Decode(it *jsoniter.Iterator) (value.Value, error) {
	if err := expect(it, jsoniter.StringValue, "type name"); err != nil {
		return value.Value{}, err
	}
	name := it.ReadString()
	if name == "" {
		return value.Value{}, errors.New("empty type name")
	}
	if c.Known != nil && !c.Known(name) {
		return value.Value{}, fmt.Errorf("unresolvable type %q", name)
	}
	return value.Type(name), nil
}

// rawCodec stores a JSON document verbatim.
type rawCodec struct{}

func (rawCodec) Encode(s *jsoniter.Stream, v value.Value) error {
	doc, ok := v.AsRaw()
	if !ok {
		return errKind
	}
	s.WriteRaw(string(doc))
	return nil
}

func (rawCodec) Decode(it *jsoniter.Iterator) (value.Value, error) {
	doc := bytes.TrimSpace(it.SkipAndReturnBytes())
	if it.Error != nil && !isEOF(it.Error) {
		return value.Value{}, it.Error
	}
	return value.Raw(doc)
}
