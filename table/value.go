// Package table implements tabula's in-memory data model: typed columns,
// ragged columns, region references, dynamic record tables and grouping
// indexes.
//
// Tables are columnar: each column stores its values independently, and row
// order is captured solely by the table's row ids. This is what makes adding
// a column to an existing table cheap.
package table

import (
	"fmt"
	"math"

	"github.com/arloliu/tabula/format"
)

// Value is a tagged variant holding one element of a typed column or one
// record field.
//
// Value is comparable: two Values are equal when their kind and payload are
// equal, which makes Value usable directly as a grouping key.
type Value struct {
	kind format.DType
	num  uint64
	str  string
}

// Int creates a signed integer value.
func Int(v int64) Value {
	return Value{kind: format.DTypeInt, num: uint64(v)} //nolint:gosec
}

// Uint creates an unsigned integer value.
func Uint(v uint64) Value {
	return Value{kind: format.DTypeUint, num: v}
}

// Float creates a 64-bit float value.
func Float(v float64) Value {
	return Value{kind: format.DTypeFloat, num: math.Float64bits(v)}
}

// Bool creates a boolean value.
func Bool(v bool) Value {
	var n uint64
	if v {
		n = 1
	}

	return Value{kind: format.DTypeBool, num: n}
}

// Str creates a string value.
func Str(v string) Value {
	return Value{kind: format.DTypeString, str: v}
}

// RecordRef creates a value referencing a named record bag.
func RecordRef(name string) Value {
	return Value{kind: format.DTypeRecord, str: name}
}

// Kind returns the value's dtype.
func (v Value) Kind() format.DType {
	return v.kind
}

// IsZero reports whether the value is the zero Value (no dtype).
func (v Value) IsZero() bool {
	return v.kind == 0
}

// Int returns the signed integer payload. The second return value is false
// if the value is not an Int.
func (v Value) Int() (int64, bool) {
	if v.kind != format.DTypeInt {
		return 0, false
	}

	return int64(v.num), true //nolint:gosec
}

// Uint returns the unsigned integer payload.
func (v Value) Uint() (uint64, bool) {
	if v.kind != format.DTypeUint {
		return 0, false
	}

	return v.num, true
}

// Float returns the float payload.
func (v Value) Float() (float64, bool) {
	if v.kind != format.DTypeFloat {
		return 0, false
	}

	return math.Float64frombits(v.num), true
}

// Bool returns the boolean payload.
func (v Value) Bool() (bool, bool) {
	if v.kind != format.DTypeBool {
		return false, false
	}

	return v.num != 0, true
}

// Str returns the string payload.
func (v Value) Str() (string, bool) {
	if v.kind != format.DTypeString {
		return "", false
	}

	return v.str, true
}

// RecordName returns the referenced record name.
func (v Value) RecordName() (string, bool) {
	if v.kind != format.DTypeRecord {
		return "", false
	}

	return v.str, true
}

// Bits returns the raw numeric payload bits for serialization.
// Only meaningful for Int, Uint, Float and Bool values.
func (v Value) Bits() uint64 {
	return v.num
}

// Text returns the raw string payload for serialization.
// Only meaningful for String and Record values.
func (v Value) Text() string {
	return v.str
}

// FromBits reconstructs a numeric value of the given dtype from raw bits.
func FromBits(dtype format.DType, bits uint64) Value {
	return Value{kind: dtype, num: bits}
}

// FromText reconstructs a string-backed value of the given dtype.
func FromText(dtype format.DType, text string) Value {
	return Value{kind: dtype, str: text}
}

// String implements fmt.Stringer for diagnostics.
func (v Value) String() string {
	switch v.kind {
	case format.DTypeInt:
		return fmt.Sprintf("%d", int64(v.num)) //nolint:gosec
	case format.DTypeUint:
		return fmt.Sprintf("%du", v.num)
	case format.DTypeFloat:
		return fmt.Sprintf("%g", math.Float64frombits(v.num))
	case format.DTypeBool:
		if v.num != 0 {
			return "true"
		}
		return "false"
	case format.DTypeString:
		return fmt.Sprintf("%q", v.str)
	case format.DTypeRecord:
		return fmt.Sprintf("record(%s)", v.str)
	default:
		return "<zero>"
	}
}

// zeroValue returns the zero element for a dtype, used for non-strict
// column backfill.
func zeroValue(dtype format.DType) Value {
	return Value{kind: dtype}
}

// stringBacked reports whether a dtype stores its payload as a string.
func stringBacked(dtype format.DType) bool {
	return dtype == format.DTypeString || dtype == format.DTypeRecord
}
