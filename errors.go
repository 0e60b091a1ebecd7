// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

package jnorm

import (
	"errors"

	"github.com/creachadair/jnorm/token"
)

var (
	// ErrScalarRoot is reported when a top-level value is neither an object
	// nor an array.
	ErrScalarRoot = errors.New("top-level value is not an object or array")

	// ErrExtraInput is reported when the input contains more than one
	// top-level value and multiple values are not enabled.
	ErrExtraInput = errors.New("unexpected value after end of document")

	// ErrNoInput is reported when the input contains no value at all.
	ErrNoInput = errors.New("no document in input")

	// ErrTooDeep is reported when the input nests deeper than the configured
	// depth limit.
	ErrTooDeep = token.ErrTooDeep

	// ErrDuplicateKey is reported when an object repeats a member name and
	// the duplicate policy is DuplicateError.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrReservedColumn is reported when an object member would overwrite the
	// surrogate or parent key column of its row.
	ErrReservedColumn = errors.New("member name is a reserved key column")

	// ErrNameCollision is reported when two distinct hierarchy paths map to
	// the same table name.
	ErrNameCollision = errors.New("table name collision")

	// ErrIDSequence is reported when a row is appended out of identifier order.
	ErrIDSequence = errors.New("row identifier out of sequence")

	// ErrNumberRange is reported when a number cannot be represented in the
	// configured number mode.
	ErrNumberRange = errors.New("number out of range")

	// ErrClosed is reported by a Writer that has already been closed.
	ErrClosed = errors.New("writer is closed")
)
