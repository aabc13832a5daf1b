package model

import (
	"encoding/json"
	"strconv"
)

// Value is one element of a Series. OK=false marks a value that is not yet
// computable (window not filled) or undefined (zero division).
type Value struct {
	V  float64
	OK bool
}

// Some wraps a defined value.
func Some(v float64) Value { return Value{V: v, OK: true} }

// None is the undefined value.
var None = Value{}

// MarshalJSON encodes undefined values as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.OK {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v.V, 'g', -1, 64), nil
}

// UnmarshalJSON accepts a number or null.
func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = None
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Some(f)
	return nil
}

// Series is a bar-aligned sequence of values. Read-only once produced.
type Series []Value

// At returns the value at i, or None when i is out of range.
func (s Series) At(i int) Value {
	if i < 0 || i >= len(s) {
		return None
	}
	return s[i]
}

// Last returns the latest value.
func (s Series) Last() Value { return s.At(len(s) - 1) }

// Prev returns the second-latest value.
func (s Series) Prev() Value { return s.At(len(s) - 2) }

// Defined counts the defined elements.
func (s Series) Defined() int {
	n := 0
	for _, v := range s {
		if v.OK {
			n++
		}
	}
	return n
}
