// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

package jnorm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// A Sink provides output tables by name.
type Sink interface {
	// Open acquires the named table for writing. Any content a previous run
	// left in the table is discarded, either now or when the table is closed.
	Open(ctx context.Context, name string) (Table, error)

	// Close releases any resources held by the sink. It is called after every
	// table opened from the sink has been closed or cancelled.
	Close() error
}

// A Table receives the rows of one entity in identifier order.
type Table interface {
	// Append adds one row to the table. The line is the encoding of rec as a
	// single JSON object without a trailing newline. The table must copy line
	// if it retains it after Append returns.
	Append(ctx context.Context, rec *Record, line []byte) error

	// Close commits and releases the table.
	Close() error
}

// Canceler is an optional interface a Table may implement to discard its
// uncommitted output when a run fails.
type Canceler interface {
	Cancel()
}

// WriterOptions are optional settings for a Writer. A nil *WriterOptions is
// ready for use and provides defaults as described.
type WriterOptions struct {
	// If not nil, table lifecycle events are logged at Info level and rows at
	// Debug level. If nil, nothing is logged.
	Logger *slog.Logger
}

func (o *WriterOptions) logger() *slog.Logger {
	if o == nil || o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// A Writer routes rows to output tables and tracks the last identifier
// assigned in each table. Tables are opened lazily, on the first row appended
// for their entity. A Writer is not safe for concurrent use.
type Writer struct {
	sink   Sink
	log    *slog.Logger
	tables map[string]*tableState // :: table name → state
	order  []*tableState          // in order of first open
	buf    []byte
	closed bool
}

type tableState struct {
	name   string
	path   []string // path of the entity that owns the name
	table  Table
	lastID int64
	digest *xxhash.Digest
}

// NewWriter constructs a Writer that delivers rows to tables opened from sink.
func NewWriter(sink Sink, opts *WriterOptions) *Writer {
	return &Writer{
		sink:   sink,
		log:    opts.logger(),
		tables: make(map[string]*tableState),
	}
}

// LastID returns the most recent identifier assigned in the table for e, or 0
// if no row has yet been appended for e.
func (w *Writer) LastID(e Entity) int64 {
	if ts, ok := w.tables[e.Name()]; ok {
		return ts.lastID
	}
	return 0
}

// Append writes rec as the next row of the table for e, and returns the
// identifier of the row. The identifier of rec must be exactly one greater
// than LastID(e), or Append reports ErrIDSequence.
func (w *Writer) Append(ctx context.Context, e Entity, rec *Record) (int64, error) {
	if w.closed {
		return 0, ErrClosed
	}
	ts, err := w.route(ctx, e)
	if err != nil {
		return 0, err
	}
	if want := ts.lastID + 1; rec.ID() != want {
		return 0, fmt.Errorf("table %q: %w: got %d, want %d", ts.name, ErrIDSequence, rec.ID(), want)
	}
	w.buf = rec.AppendJSON(w.buf[:0])
	if err := ts.table.Append(ctx, rec, w.buf); err != nil {
		return 0, fmt.Errorf("table %q: append row %d: %w", ts.name, rec.ID(), err)
	}
	ts.digest.Write(w.buf)
	ts.digest.Write(newline)
	ts.lastID = rec.ID()
	w.log.Debug("append row", "table", ts.name, "id", ts.lastID)
	return ts.lastID, nil
}

var newline = []byte("\n")

// route returns the state for the table of e, opening it if necessary.
func (w *Writer) route(ctx context.Context, e Entity) (*tableState, error) {
	name := e.Name()
	if ts, ok := w.tables[name]; ok {
		if !slices.Equal(ts.path, e.path) {
			return nil, fmt.Errorf("%w: paths %q and %q both map to table %q",
				ErrNameCollision, strings.Join(ts.path, "/"), strings.Join(e.path, "/"), name)
		}
		return ts, nil
	}
	t, err := w.sink.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open table %q: %w", name, err)
	}
	ts := &tableState{name: name, path: slices.Clone(e.path), table: t, digest: xxhash.New()}
	w.tables[name] = ts
	w.order = append(w.order, ts)
	w.log.Info("opened table", "table", name, "depth", e.Depth())
	return ts, nil
}

// Summary reports the tables written so far, in the order they were opened.
func (w *Writer) Summary() Summary {
	var s Summary
	for _, ts := range w.order {
		s.Tables = append(s.Tables, TableSummary{
			Name:   ts.name,
			Rows:   ts.lastID,
			Digest: ts.digest.Sum64(),
		})
		s.Total += ts.lastID
	}
	return s
}

// Close closes every open table and then the sink. It reports the errors from
// all failing tables. After Close, the Writer accepts no further rows.
func (w *Writer) Close() error {
	if w.closed {
		return ErrClosed
	}
	w.closed = true
	var errs []error
	for _, ts := range w.order {
		if err := ts.table.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close table %q: %w", ts.name, err))
		} else {
			w.log.Info("closed table", "table", ts.name, "rows", ts.lastID)
		}
	}
	if err := w.sink.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sink: %w", err))
	}
	return errors.Join(errs...)
}

// Abort discards the output of a failed run. Tables that implement Canceler
// are cancelled, and the rest are closed. Abort has no effect on a Writer that
// is already closed.
func (w *Writer) Abort() {
	if w.closed {
		return
	}
	w.closed = true
	for _, ts := range w.order {
		if c, ok := ts.table.(Canceler); ok {
			c.Cancel()
		} else {
			ts.table.Close()
		}
		w.log.Info("aborted table", "table", ts.name, "rows", ts.lastID)
	}
	w.sink.Close()
}
