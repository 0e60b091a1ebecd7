// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

package sink

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/creachadair/jnorm"
	"github.com/dgraph-io/badger/v4"
)

// BadgerOptions configure a Badger sink opened by OpenBadger.
type BadgerOptions struct {
	// Path is the database directory. If empty, an in-memory database is used.
	Path string

	// InMemory forces an in-memory database even if Path is set.
	InMemory bool

	// If not nil, internal database events are logged here.
	Logger badger.Logger
}

// Badger is a jnorm.Sink that writes rows to a Badger key-value store. Each
// row is stored under the key formed by its table name, a zero byte, and its
// identifier as a big-endian uint64, so that the rows of a table are
// contiguous and in identifier order. The value is the JSON encoding of the
// row. Opening a table deletes any existing rows of that table.
type Badger struct {
	db  *badger.DB
	own bool
}

// OpenBadger opens a Badger database and returns a sink that writes to it.
func OpenBadger(opts BadgerOptions) (*Badger, error) {
	bopts := badger.DefaultOptions(opts.Path)
	if opts.Path == "" || opts.InMemory {
		bopts = bopts.WithInMemory(true)
	}
	bopts = bopts.WithLogger(opts.Logger)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &Badger{db: db, own: true}, nil
}

// NewBadger returns a sink that writes to db. Closing the sink does not close
// the database.
func NewBadger(db *badger.DB) *Badger { return &Badger{db: db} }

// DB returns the database used by b.
func (b *Badger) DB() *badger.DB { return b.db }

// BadgerKey returns the storage key for the row of the named table with the
// given identifier.
func BadgerKey(table string, id int64) []byte {
	key := make([]byte, len(table)+1+8)
	copy(key, table)
	binary.BigEndian.PutUint64(key[len(table)+1:], uint64(id))
	return key
}

func tablePrefix(table string) []byte { return append([]byte(table), 0) }

// Open implements part of the jnorm.Sink interface.
func (b *Badger) Open(ctx context.Context, name string) (jnorm.Table, error) {
	wb := b.db.NewWriteBatch()
	prefix := tablePrefix(name)
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := wb.Delete(it.Item().KeyCopy(nil)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		wb.Cancel()
		return nil, fmt.Errorf("clear table %q: %w", name, err)
	}
	return &badgerTable{name: name, wb: wb}, nil
}

// Lines returns the stored rows of the named table in identifier order.
func (b *Badger) Lines(name string) ([]string, error) {
	var out []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = tablePrefix(name)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				out = append(out, string(val))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// Close implements part of the jnorm.Sink interface.
func (b *Badger) Close() error {
	if b.own {
		return b.db.Close()
	}
	return nil
}

type badgerTable struct {
	name string
	wb   *badger.WriteBatch
}

func (t *badgerTable) Append(_ context.Context, rec *jnorm.Record, line []byte) error {
	return t.wb.Set(BadgerKey(t.name, rec.ID()), bytes.Clone(line))
}

func (t *badgerTable) Close() error { return t.wb.Flush() }

// Cancel discards writes not yet committed by the batch.
func (t *badgerTable) Cancel() { t.wb.Cancel() }
