// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

package jnorm

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/creachadair/jnorm/internal/escape"
	"go4.org/mem"
)

// Kind identifies the type of a Value.
type Kind byte

// Constants defining the valid Kind values.
const (
	Invalid Kind = iota // the zero Value
	String              // a JSON string
	Number              // a JSON number
	Bool                // a JSON true or false
	Int                 // a surrogate or parent key
)

var kindStr = [...]string{
	Invalid: "invalid",
	String:  "string",
	Number:  "number",
	Bool:    "bool",
	Int:     "int",
}

func (k Kind) String() string {
	if int(k) < len(kindStr) {
		return kindStr[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// A Value is a scalar column value of a row.
type Value struct {
	kind Kind
	text string // String: the decoded string; Number: the literal, if exact
	num  float64
	i    int64
	b    bool
}

// StringValue returns a string Value.
func StringValue(s string) Value { return Value{kind: String, text: s} }

// FloatValue returns a number Value with the given floating-point value.
func FloatValue(f float64) Value { return Value{kind: Number, num: f} }

// ExactValue returns a number Value that preserves the literal text of a JSON
// number. The caller is responsible for text being a valid JSON number.
func ExactValue(text string) Value { return Value{kind: Number, text: text} }

// BoolValue returns a Boolean Value.
func BoolValue(b bool) Value { return Value{kind: Bool, b: b} }

// IntValue returns an integer key Value.
func IntValue(v int64) Value { return Value{kind: Int, i: v} }

// Kind reports the kind of v.
func (v Value) Kind() Kind { return v.kind }

// IsExact reports whether v is a number that preserves its literal text.
func (v Value) IsExact() bool { return v.kind == Number && v.text != "" }

// Text returns the contents of a string value, or the literal text of a
// number value. For other kinds it returns the JSON encoding of v.
func (v Value) Text() string {
	switch v.kind {
	case String:
		return v.text
	case Number:
		if v.text != "" {
			return v.text
		}
	}
	return string(v.AppendJSON(nil))
}

// Float64 returns the value of a number. An exact number is parsed from its
// literal text.
func (v Value) Float64() float64 {
	if v.kind == Int {
		return float64(v.i)
	} else if v.IsExact() {
		f, _ := strconv.ParseFloat(v.text, 64)
		return f
	}
	return v.num
}

// Int64 returns the value of an integer key.
func (v Value) Int64() int64 { return v.i }

// Bool returns the value of a Boolean.
func (v Value) Bool() bool { return v.b }

// Interface returns v as a plain Go value: string, float64, bool, or int64.
// An exact number is returned as its literal text.
func (v Value) Interface() any {
	switch v.kind {
	case String:
		return v.text
	case Number:
		if v.text != "" {
			return v.text
		}
		return v.num
	case Bool:
		return v.b
	case Int:
		return v.i
	}
	return nil
}

// AppendJSON appends the JSON encoding of v to dst.
func (v Value) AppendJSON(dst []byte) []byte {
	switch v.kind {
	case String:
		return escape.AppendQuote(dst, mem.S(v.text))
	case Number:
		if v.text != "" {
			return append(dst, v.text...)
		}
		return appendFloat(dst, v.num)
	case Bool:
		return strconv.AppendBool(dst, v.b)
	case Int:
		return strconv.AppendInt(dst, v.i, 10)
	}
	return append(dst, "null"...)
}

// appendFloat formats f the way encoding/json does: the shortest decimal
// that round-trips, with exponent notation for very large or small magnitudes.
func appendFloat(dst []byte, f float64) []byte {
	abs := math.Abs(f)
	format := byte('f')
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	dst = strconv.AppendFloat(dst, f, format, -1, 64)
	if format == 'e' {
		// Trim e-09 to e-9.
		if n := len(dst); n >= 4 && dst[n-4] == 'e' && dst[n-3] == '-' && dst[n-2] == '0' {
			dst[n-2] = dst[n-1]
			dst = dst[:n-1]
		}
	}
	return dst
}

// NumberMode selects how JSON numbers are converted to column values.
type NumberMode int

const (
	// Float converts every number to a 64-bit floating-point value.
	Float NumberMode = iota

	// Exact preserves the literal text of every number.
	Exact
)

func (m NumberMode) String() string {
	switch m {
	case Float:
		return "float"
	case Exact:
		return "exact"
	}
	return "NumberMode(" + strconv.Itoa(int(m)) + ")"
}

// Convert converts the literal text of a JSON number to a Value according
// to m. In Float mode, a number whose magnitude overflows a float64 reports
// ErrNumberRange.
func (m NumberMode) Convert(text []byte) (Value, error) {
	if m == Exact {
		return ExactValue(string(text)), nil
	}
	f, err := strconv.ParseFloat(string(text), 64)
	if errors.Is(err, strconv.ErrRange) && math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("%w: %s", ErrNumberRange, text)
	} else if err != nil && !errors.Is(err, strconv.ErrRange) {
		return Value{}, fmt.Errorf("invalid number %q: %w", text, err)
	}
	return FloatValue(f), nil
}
