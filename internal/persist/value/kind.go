package value

import (
	"fmt"
	"strings"
)

// Kind is the declared storage kind of a durable field.
type Kind uint8

// Supported kinds.
const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindAsset
	KindSince
	KindUntil
	KindType
	KindRaw
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindBool:    "bool",
	KindInt:     "int",
	KindFloat:   "float",
	KindString:  "string",
	KindAsset:   "asset",
	KindSince:   "since",
	KindUntil:   "until",
	KindType:    "type",
	KindRaw:     "raw",
}

// Kinds returns every valid kind in declaration order.
func Kinds() []Kind {
	return []Kind{KindBool, KindInt, KindFloat, KindString, KindAsset, KindSince, KindUntil, KindType, KindRaw}
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	return k > KindInvalid && int(k) < len(kindNames)
}

// ParseKind parses the textual form of a kind. Matching is case-insensitive;
// "integer", "number", "text", "json" are accepted as aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bool", "boolean":
		return KindBool, nil
	case "int", "integer":
		return KindInt, nil
	case "float", "number":
		return KindFloat, nil
	case "string", "text":
		return KindString, nil
	case "asset":
		return KindAsset, nil
	case "since":
		return KindSince, nil
	case "until":
		return KindUntil, nil
	case "type":
		return KindType, nil
	case "raw", "json":
		return KindRaw, nil
	}
	return KindInvalid, fmt.Errorf("value: unknown kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("value: cannot marshal %s", k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, so kinds can be
// spelled by name in YAML schema files.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
