package contracts

import (
	"fmt"
	"strconv"
)

// MaxAddressField is the largest value an address field can carry on the
// wire (two 7-bit groups).
const MaxAddressField = 1<<14 - 1

// Address identifies one controllable console parameter.
type Address struct {
	Element int // Parameter class, e.g. fader level or channel name.
	Index   int // Sub-index within the element.
	Channel int // Channel index.
}

// Validate checks that every field fits the wire encoding.
func (a Address) Validate() error {
	for _, f := range [...]struct {
		name string
		v    int
	}{{"element", a.Element}, {"index", a.Index}, {"channel", a.Channel}} {
		if f.v < 0 || f.v > MaxAddressField {
			return fmt.Errorf("%w: %s %d out of range 0..%d", ErrInvalidAddress, f.name, f.v, MaxAddressField)
		}
	}
	return nil
}

func (a Address) String() string {
	return fmt.Sprintf("%d/%d/%d", a.Element, a.Index, a.Channel)
}

// Kind tags the representation of a Value.
type Kind uint8

const (
	// KindInteger is a signed level or other numeric quantity.
	KindInteger Kind = iota
	// KindBool is an on/off state such as a mute.
	KindBool
	// KindEnum is one of a fixed set of targets, such as a routing destination.
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindEnum:
		return "enum"
	default:
		return "integer"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "integer", "int":
		return KindInteger, nil
	case "bool", "boolean":
		return KindBool, nil
	case "enum":
		return KindEnum, nil
	}
	return 0, fmt.Errorf("unknown parameter kind %q", s)
}

// Value is a typed parameter payload. The zero Value is integer 0.
type Value struct {
	kind Kind
	raw  int32
}

// IntValue returns an integer value.
func IntValue(v int32) Value { return Value{kind: KindInteger, raw: v} }

// EnumValue returns an enumerated value.
func EnumValue(v int32) Value { return Value{kind: KindEnum, raw: v} }

// BoolValue returns a boolean value, stored as 0 or 1.
func BoolValue(b bool) Value {
	if b {
		return Value{kind: KindBool, raw: 1}
	}
	return Value{kind: KindBool}
}

// ValueOf builds a Value of the given kind from its wire representation.
func ValueOf(kind Kind, raw int32) Value {
	switch kind {
	case KindBool:
		return BoolValue(raw != 0)
	case KindEnum:
		return EnumValue(raw)
	default:
		return IntValue(raw)
	}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) Raw() int32 { return v.raw }
func (v Value) Int() int32 { return v.raw }
func (v Value) Bool() bool { return v.raw != 0 }

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.Bool())
	case KindEnum:
		return "#" + strconv.FormatInt(int64(v.raw), 10)
	default:
		return strconv.FormatInt(int64(v.raw), 10)
	}
}

// ParamDef describes one element of the console's parameter space.
type ParamDef struct {
	Name string
	Kind Kind
	Min  int32 // Inclusive lower bound; ignored when Min == Max.
	Max  int32 // Inclusive upper bound; ignored when Min == Max.
}

// Check reports whether v is acceptable for this parameter.
func (d ParamDef) Check(v Value) error {
	if v.kind != d.Kind {
		return fmt.Errorf("%w: %s expects %s, got %s", ErrInvalidValue, d.Name, d.Kind, v.kind)
	}
	if d.Min != d.Max && (v.raw < d.Min || v.raw > d.Max) {
		return fmt.Errorf("%w: %s value %d out of range %d..%d", ErrInvalidValue, d.Name, v.raw, d.Min, d.Max)
	}
	return nil
}

// Schema maps an element number to its definition. Elements missing from
// the schema are treated as unbounded integers.
type Schema map[int]ParamDef

// Well-known LS9 elements.
const (
	ElementFader       = 51
	ElementChannelName = 148
)

// DefaultSchema returns the elements this module knows about.
func DefaultSchema() Schema {
	return Schema{
		ElementFader:       {Name: "fader", Kind: KindInteger},
		ElementChannelName: {Name: "name", Kind: KindInteger},
	}
}

// Lookup returns the definition for element, falling back to an integer.
func (s Schema) Lookup(element int) ParamDef {
	if d, ok := s[element]; ok {
		return d
	}
	return ParamDef{Name: "element " + strconv.Itoa(element), Kind: KindInteger}
}

// Clone returns a copy that can be extended without affecting s.
func (s Schema) Clone() Schema {
	out := make(Schema, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
