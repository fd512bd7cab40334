// Package value defines the dynamic runtime values of the language.
package value

import (
	"fmt"
	"strconv"
)

// Kind is the tag of a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Value is a tagged union over the four runtime value kinds. The zero Value
// is nil. Values are compared and copied by content.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
}

// Nil is the absence marker.
var Nil = Value{}

// Pre-defined booleans
var (
	True  = Value{kind: KindBool, b: true}
	False = Value{kind: KindBool, b: false}
)

// Bool wraps a boolean.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Number wraps a float64.
func Number(n float64) Value {
	return Value{kind: KindNumber, n: n}
}

// String wraps a text value.
func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Kind returns the tag of v.
func (v Value) Kind() Kind { return v.kind }

// IsNil reports whether v is the absence marker.
func (v Value) IsNil() bool { return v.kind == KindNil }

// IsNumber reports whether v holds a number.
func (v Value) IsNumber() bool { return v.kind == KindNumber }

// IsString reports whether v holds text.
func (v Value) IsString() bool { return v.kind == KindString }

// IsBool reports whether v holds a boolean.
func (v Value) IsBool() bool { return v.kind == KindBool }

// AsNumber returns the number held by v. Only meaningful when IsNumber.
func (v Value) AsNumber() float64 { return v.n }

// AsString returns the text held by v. Only meaningful when IsString.
func (v Value) AsString() string { return v.s }

// AsBool returns the boolean held by v. Only meaningful when IsBool.
func (v Value) AsBool() bool { return v.b }

// ---------------------------------------------------------------------------
// Semantics
// ---------------------------------------------------------------------------

// Truthy reports whether v counts as true in a conditional context.
// Only nil and false are falsey.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNil:
		return false
	case KindBool:
		return v.b
	}
	return true
}

// Equal compares two values by content. Values of different kinds are never
// equal, and nil is equal only to nil.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n
	case KindString:
		return v.s == o.s
	}
	return false
}

// String returns the display form of v as printed by the print statement.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindNumber:
		return FormatNumber(v.n)
	case KindString:
		return v.s
	}
	return fmt.Sprintf("<%s>", v.kind)
}

// GoString shows the kind alongside the content, so strings are
// distinguishable from numbers in test failures and debug dumps.
func (v Value) GoString() string {
	if v.kind == KindString {
		return strconv.Quote(v.s)
	}
	return v.String()
}

// FormatNumber renders n in its shortest decimal form. A zero fractional part
// is dropped, so 7.0 displays as "7". Exponent notation is never used.
func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// FromAny converts a Go value produced by a decoder back into a Value.
// Supported inputs are nil, bool, float64, the integer kinds and string.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Nil, nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case string:
		return String(t), nil
	}
	return Nil, fmt.Errorf("value: unsupported type %T", x)
}

// Any returns v as a plain Go value: nil, bool, float64 or string.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	}
	return nil
}
