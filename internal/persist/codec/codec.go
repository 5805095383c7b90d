// Package codec encodes snapshots to JSON and decodes them back.
//
// The wire form is a top-level array of records:
//
//	[{"type": "Game.Player", "properties": {"Game.Player.health": 90}}]
//
// Property values have no type tag. Decoding is a single interleaved pass:
// each property key is resolved through the registry to a declared kind
// before the kind's ValueCodec consumes exactly the value that follows.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/yndnr/savekeep-go/internal/core/domain"
	"github.com/yndnr/savekeep-go/internal/persist/registry"
	"github.com/yndnr/savekeep-go/internal/persist/snapshot"
	"github.com/yndnr/savekeep-go/internal/persist/value"
)

const (
	memberType       = "type"
	memberProperties = "properties"

	bufSize = 4096
)

// Option configures a Codec.
type Option func(*Codec)

// WithClock sets the clock used by the default since/until codecs.
// Codecs installed with WithValueCodec are not affected.
func WithClock(clock Clock) Option {
	return func(c *Codec) { c.clock = clock }
}

// WithValueCodec replaces the leaf codec of one kind.
func WithValueCodec(k value.Kind, vc ValueCodec) Option {
	return func(c *Codec) { c.custom[k] = vc }
}

// WithTypeResolver makes type-valued fields reject names for which known
// returns false.
func WithTypeResolver(known func(name string) bool) Option {
	return func(c *Codec) { c.custom[value.KindType] = TypeNameCodec{Known: known} }
}

// Codec encodes and decodes snapshots against a registry.
type Codec struct {
	reg    *registry.Registry
	api    jsoniter.API
	clock  Clock
	custom map[value.Kind]ValueCodec
	values map[value.Kind]ValueCodec
}

// New creates a codec resolving field kinds through reg.
func New(reg *registry.Registry, opts ...Option) *Codec {
	c := &Codec{
		reg:    reg,
		api:    jsoniter.ConfigCompatibleWithStandardLibrary,
		custom: make(map[value.Kind]ValueCodec),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.values = DefaultValueCodecs(c.clock)
	for k, vc := range c.custom {
		c.values[k] = vc
	}
	return c
}

// Marshal encodes snap into a byte slice.
func (c *Codec) Marshal(snap *snapshot.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Encode(&buf, snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes snap to w. Records keep their order; properties are sorted
// by name. Nothing is written to w when encoding fails.
func (c *Codec) Encode(w io.Writer, snap *snapshot.Snapshot) error {
	s := jsoniter.NewStream(c.api, nil, bufSize)

	s.WriteArrayStart()
	for i, rec := range snap.All() {
		if i > 0 {
			s.WriteMore()
		}
		if err := c.encodeRecord(s, rec); err != nil {
			return err
		}
	}
	s.WriteArrayEnd()

	if s.Error != nil {
		return fmt.Errorf("codec: encode: %w", s.Error)
	}
	if _, err := w.Write(s.Buffer()); err != nil {
		return fmt.Errorf("codec: write: %w", err)
	}
	return nil
}

func (c *Codec) encodeRecord(s *jsoniter.Stream, rec snapshot.Record) error {
	s.WriteObjectStart()
	s.WriteObjectField(memberType)
	s.WriteString(rec.Type)
	s.WriteMore()
	s.WriteObjectField(memberProperties)
	s.WriteObjectStart()
	for i, name := range rec.FieldNames() {
		v := rec.Fields[name]

		f, err := c.reg.Field(rec.Type, name)
		if err != nil {
			return err
		}
		key := f.ID.String()
		if v.Kind() != f.Kind {
			return domain.ErrUnsupportedValue.WithDetailsf("%s: declared %s, got %s", key, f.Kind, v.Kind())
		}
		vc, ok := c.values[f.Kind]
		if !ok {
			return domain.ErrUnsupportedValue.WithDetailsf("%s: no codec for kind %s", key, f.Kind)
		}

		if i > 0 {
			s.WriteMore()
		}
		s.WriteObjectField(key)
		if err := vc.Encode(s, v); err != nil {
			var de *domain.DomainError
			if errors.As(err, &de) {
				return de.WithDetails(key + ": " + de.Details)
			}
			return domain.ErrUnsupportedValue.WithDetails(key).WithCause(err)
		}
	}
	s.WriteObjectEnd()
	s.WriteObjectEnd()
	return nil
}

// Unmarshal decodes a snapshot from data.
func (c *Codec) Unmarshal(data []byte) (*snapshot.Snapshot, error) {
	return c.decode(jsoniter.ParseBytes(c.api, data))
}

// Decode reads a snapshot from r.
func (c *Codec) Decode(r io.Reader) (*snapshot.Snapshot, error) {
	return c.decode(jsoniter.Parse(c.api, r, bufSize))
}

func isEOF(err error) bool {
	return err == io.EOF
}

func decodeError(key, msg string, cause error) error {
	e := domain.ErrDecode
	if key != "" {
		e = e.WithDetailsf("key %q: %s", key, msg)
	} else {
		e = e.WithDetails(msg)
	}
	if cause != nil {
		e = e.WithCause(cause)
	}
	return e
}

// iterErr returns the iterator's error unless it is the benign end of input.
func iterErr(it *jsoniter.Iterator) error {
	if it.Error != nil && !isEOF(it.Error) {
		return it.Error
	}
	return nil
}

func (c *Codec) decode(it *jsoniter.Iterator) (*snapshot.Snapshot, error) {
	if next := it.WhatIsNext(); next != jsoniter.ArrayValue {
		return nil, decodeError("", "top-level value is "+valueTypeName(next)+", not an array", iterErr(it))
	}

	snap := &snapshot.Snapshot{Records: []snapshot.Record{}}
	for i := 0; it.ReadArray(); i++ {
		rec, err := c.decodeRecord(it, i)
		if err != nil {
			return nil, err
		}
		snap.Records = append(snap.Records, rec)
	}
	if err := iterErr(it); err != nil {
		return nil, decodeError("", "malformed snapshot", err)
	}

	// Only the end of input may follow the array.
	it.WhatIsNext()
	switch {
	case it.Error == nil:
		return nil, decodeError("", "trailing data after snapshot", nil)
	case !isEOF(it.Error):
		return nil, decodeError("", "malformed snapshot", it.Error)
	}
	return snap, nil
}

func (c *Codec) decodeRecord(it *jsoniter.Iterator, index int) (snapshot.Record, error) {
	where := fmt.Sprintf("record %d", index)
	if next := it.WhatIsNext(); next != jsoniter.ObjectValue {
		return snapshot.Record{}, decodeError("", where+" is "+valueTypeName(next)+", not an object", iterErr(it))
	}

	var (
		rec       = snapshot.Record{Fields: make(map[string]value.Value)}
		keyTypes  = make(map[string]string) // property key -> type named by the key
		haveType  bool
		haveProps bool
		failed    error
	)

	ok := it.ReadObjectCB(func(it *jsoniter.Iterator, member string) bool {
		switch member {
		case memberType:
			if haveType {
				failed = decodeError(memberType, where+": duplicate member", nil)
				return false
			}
			haveType = true
			if next := it.WhatIsNext(); next != jsoniter.StringValue {
				failed = decodeError(memberType, where+": expected string, found "+valueTypeName(next), nil)
				return false
			}
			rec.Type = it.ReadString()
			if !c.reg.Catalog().IsDurable(rec.Type) {
				failed = decodeError(memberType, fmt.Sprintf("%s: unresolvable type %q", where, rec.Type), domain.ErrInvalidType)
				return false
			}
		case memberProperties:
			if haveProps {
				failed = decodeError(memberProperties, where+": duplicate member", nil)
				return false
			}
			haveProps = true
			failed = c.decodeProperties(it, where, rec.Fields, keyTypes)
			return failed == nil
		default:
			failed = decodeError(member, where+": unexpected member", nil)
			return false
		}
		return true
	})
	if failed != nil {
		return snapshot.Record{}, failed
	}
	if err := iterErr(it); err != nil || !ok {
		return snapshot.Record{}, decodeError("", where+": malformed object", err)
	}
	if !haveType {
		return snapshot.Record{}, decodeError(memberType, where+": missing member", nil)
	}
	if !haveProps {
		return snapshot.Record{}, decodeError(memberProperties, where+": missing member", nil)
	}
	for key, typ := range keyTypes {
		if typ != rec.Type {
			return snapshot.Record{}, decodeError(key, fmt.Sprintf("%s: belongs to %s, record type is %s", where, typ, rec.Type), nil)
		}
	}
	return rec, nil
}

// decodeProperties reads the properties object key by key. Each key is
// resolved before its value is touched, and the value is consumed by the
// declared kind's codec.
func (c *Codec) decodeProperties(it *jsoniter.Iterator, where string, fields map[string]value.Value, keyTypes map[string]string) error {
	if next := it.WhatIsNext(); next != jsoniter.ObjectValue {
		return decodeError(memberProperties, where+": expected object, found "+valueTypeName(next), nil)
	}

	var failed error
	ok := it.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
		id, err := registry.ParseFieldID(key)
		if err != nil {
			failed = decodeError(key, "malformed field identity", err)
			return false
		}
		if _, dup := keyTypes[key]; dup {
			failed = decodeError(key, "duplicate key", nil)
			return false
		}
		f, err := c.reg.Field(id.Type, id.Name)
		if err != nil {
			failed = decodeError(key, "not a durable field", err)
			return false
		}
		if f.Kind != value.KindRaw && it.WhatIsNext() == jsoniter.NilValue {
			failed = decodeError(key, "null value", nil)
			return false
		}
		vc, ok := c.values[f.Kind]
		if !ok {
			failed = decodeError(key, "no codec for kind "+f.Kind.String(), nil)
			return false
		}
		v, err := vc.Decode(it)
		if err == nil {
			err = iterErr(it)
		}
		if err != nil {
			failed = decodeError(key, "invalid "+f.Kind.String()+" value", err)
			return false
		}
		keyTypes[key] = id.Type
		fields[id.Name] = v
		return true
	})
	if failed != nil {
		return failed
	}
	if err := iterErr(it); err != nil || !ok {
		return decodeError(memberProperties, where+": malformed object", err)
	}
	return nil
}
