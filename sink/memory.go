// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

package sink

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/creachadair/jnorm"
)

// Memory is a jnorm.Sink that keeps rows in memory. It records the order in
// which rows were appended across all its tables. A zero Memory is ready for
// use. It is safe for concurrent use, though a jnorm.Writer does not require
// that.
type Memory struct {
	mu     sync.Mutex
	tables map[string][]string // :: table name → lines
	order  []string            // table names in order of first open
	log    []Row
}

// A Row is a single row appended to a Memory sink.
type Row struct {
	Table string
	ID    int64
	Line  string
}

// Open implements part of the jnorm.Sink interface. Opening a table that
// already exists discards its rows.
func (m *Memory) Open(_ context.Context, name string) (jnorm.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tables == nil {
		m.tables = make(map[string][]string)
	}
	if _, ok := m.tables[name]; !ok {
		m.order = append(m.order, name)
	}
	m.tables[name] = []string{}
	m.log = slices.DeleteFunc(m.log, func(r Row) bool { return r.Table == name })
	return &memTable{m: m, name: name}, nil
}

// Close implements part of the jnorm.Sink interface. It does nothing.
func (m *Memory) Close() error { return nil }

// Tables returns the names of the tables in m, in order of first open.
func (m *Memory) Tables() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.order)
}

// Lines returns the lines of the named table, in order.
func (m *Memory) Lines(name string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.tables[name])
}

// Log returns all the rows of m, in the order they were appended.
func (m *Memory) Log() []Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.log)
}

type memTable struct {
	m      *Memory
	name   string
	closed bool
}

func (t *memTable) Append(ctx context.Context, rec *jnorm.Record, line []byte) error {
	if t.closed {
		return errors.New("table is closed")
	}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.m.tables[t.name] = append(t.m.tables[t.name], string(line))
	t.m.log = append(t.m.log, Row{Table: t.name, ID: rec.ID(), Line: string(line)})
	return nil
}

func (t *memTable) Close() error { t.closed = true; return nil }
