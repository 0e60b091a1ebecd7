// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

package jnorm

import (
	"fmt"

	"github.com/creachadair/jnorm/internal/escape"
	"go4.org/mem"
)

// DuplicatePolicy selects what happens when an object repeats a member name.
type DuplicatePolicy int

const (
	// DuplicateError rejects a repeated member name with ErrDuplicateKey.
	DuplicateError DuplicatePolicy = iota

	// DuplicateLast keeps the value of the last occurrence of a member name,
	// in the column position of its first occurrence.
	DuplicateLast
)

func (p DuplicatePolicy) String() string {
	switch p {
	case DuplicateError:
		return "error"
	case DuplicateLast:
		return "last"
	}
	return fmt.Sprintf("DuplicatePolicy(%d)", int(p))
}

// ValueColumn is the column name used for the elements of an array of scalars.
const ValueColumn = "value"

// A Column is a single named value of a Record.
type Column struct {
	Name  string
	Value Value
}

// A Record is an ordered row of column values. The first column is always the
// surrogate key of the row, followed by the parent key if the row belongs to a
// nested entity. The remaining columns appear in the order they were set.
type Record struct {
	cols  []Column
	keys  int            // number of leading key columns (1 or 2)
	index map[string]int // column offsets, populated for wide records
}

// indexAt is the number of columns beyond which a Record indexes its names.
const indexAt = 16

// NewRecord constructs a new record for entity e with the given surrogate key.
// If e has a parent, parentID is recorded as its parent key; otherwise it is
// ignored.
func NewRecord(e Entity, id, parentID int64) *Record {
	r := &Record{cols: make([]Column, 1, 4), keys: 1}
	r.cols[0] = Column{Name: e.IDColumn(), Value: IntValue(id)}
	if e.HasParent() {
		r.cols = append(r.cols, Column{Name: e.ParentIDColumn(), Value: IntValue(parentID)})
		r.keys = 2
	}
	return r
}

// ID returns the surrogate key of r.
func (r *Record) ID() int64 { return r.cols[0].Value.Int64() }

// ParentID returns the parent key of r, and reports whether r has one.
func (r *Record) ParentID() (int64, bool) {
	if r.keys < 2 {
		return 0, false
	}
	return r.cols[1].Value.Int64(), true
}

// Len reports the number of columns in r, including its key columns.
func (r *Record) Len() int { return len(r.cols) }

// Columns returns the columns of r in order. The caller must not modify the
// slice, which is only valid until the next call to Set.
func (r *Record) Columns() []Column { return r.cols }

// Get returns the value of the named column, and reports whether it exists.
func (r *Record) Get(name string) (Value, bool) {
	if i := r.find(name); i >= 0 {
		return r.cols[i].Value, true
	}
	return Value{}, false
}

// Set sets the value of the named column. Key columns cannot be set, and
// report ErrReservedColumn. If the column already has a value, policy decides
// whether the new value replaces it or ErrDuplicateKey is reported.
func (r *Record) Set(name string, v Value, policy DuplicatePolicy) error {
	i := r.find(name)
	switch {
	case i < 0:
		r.cols = append(r.cols, Column{Name: name, Value: v})
		if r.index != nil {
			r.index[name] = len(r.cols) - 1
		} else if len(r.cols) > indexAt {
			r.index = make(map[string]int, 2*len(r.cols))
			for j, c := range r.cols {
				r.index[c.Name] = j
			}
		}
		return nil
	case i < r.keys:
		return fmt.Errorf("%w: %q", ErrReservedColumn, name)
	case policy == DuplicateLast:
		r.cols[i].Value = v
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrDuplicateKey, name)
	}
}

func (r *Record) find(name string) int {
	if r.index != nil {
		if i, ok := r.index[name]; ok {
			return i
		}
		return -1
	}
	for i, c := range r.cols {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// AppendJSON appends the encoding of r as a single-line JSON object to dst.
// Columns are written in order. No trailing newline is added.
func (r *Record) AppendJSON(dst []byte) []byte {
	dst = append(dst, '{')
	for i, c := range r.cols {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = escape.AppendQuote(dst, mem.S(c.Name))
		dst = append(dst, ':')
		dst = c.Value.AppendJSON(dst)
	}
	return append(dst, '}')
}

// String returns the JSON encoding of r.
func (r *Record) String() string { return string(r.AppendJSON(nil)) }
