// Package value implements the cross-boundary Value marshalling described
// in spec.md §4.10 and §6: the handful of types that round-trip safely
// between the submitting VM and a thread-pool worker VM, and the
// sockaddr/stat projections spec.md §6-§7 define for the
// script-facing façade.
package value

import (
	"errors"
	"fmt"
)

// Kind tags the supported cross-boundary value types. Anything else is an
// argument error at submission (spec.md §4.10: "Other types produce an
// argument error at submission").
type Kind int

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindString
	KindUserdata
)

// MaxArgs is the ceiling on marshalled arguments per spec.md §4.10.
const MaxArgs = 9

var (
	// ErrTooManyArgs is returned by MarshalArgs when over MaxArgs values are given.
	ErrTooManyArgs = errors.New("value: too many arguments for cross-VM marshalling (max 9)")
	// ErrUnsupportedType is returned when a value has no safe cross-VM representation.
	ErrUnsupportedType = errors.New("value: type has no cross-VM marshalled representation")
)

// Value is a single marshalled argument or result. Userdata is copied by raw
// bytes and tagged with the registered type name the receiving side
// reattaches as its metatable-equivalent (spec.md §4.10).
type Value struct {
	Kind     Kind
	Bool     bool
	Num      float64
	Str      string
	TypeName string
	Raw      []byte
}

// Nil constructs the nil Value.
func Nil() Value { return Value{Kind: KindNil} }

// Bool constructs a boolean Value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Number constructs a numeric Value.
func Number(n float64) Value { return Value{Kind: KindNumber, Num: n} }

// String constructs a string Value, copied on marshal.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Userdata constructs a raw-byte-copied Value tagged with typeName.
func Userdata(typeName string, raw []byte) Value {
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return Value{Kind: KindUserdata, TypeName: typeName, Raw: cp}
}

// FromAny converts a native Go value into its marshalled Value, or
// ErrUnsupportedType if it has no cross-VM-safe representation.
func FromAny(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Nil(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case int:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case uint32:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case float32:
		return Number(float64(t)), nil
	case float64:
		return Number(t), nil
	case []byte:
		return Userdata("bytes", t), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}

// ToAny recovers the Go-native value from a Value.
func (v Value) ToAny() any {
	switch v.Kind {
	case KindNil:
		return nil
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Num
	case KindString:
		return v.Str
	case KindUserdata:
		raw := make([]byte, len(v.Raw))
		copy(raw, v.Raw)
		return raw
	default:
		return nil
	}
}

// MarshalArgs converts up to MaxArgs native arguments into Values, copying
// strings and userdata so the worker side shares no mutable state with the
// submitter (spec.md §5: "without sharing mutable state").
func MarshalArgs(args []any) ([]Value, error) {
	if len(args) > MaxArgs {
		return nil, ErrTooManyArgs
	}
	out := make([]Value, len(args))
	for i, a := range args {
		v, err := FromAny(a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// UnmarshalArgs recovers native Go values from Values.
func UnmarshalArgs(vals []Value) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v.ToAny()
	}
	return out
}
