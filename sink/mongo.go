// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/creachadair/jnorm"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultBatchSize is the number of documents a Mongo sink inserts at once,
// if its BatchSize is not set.
const DefaultBatchSize = 1000

// Mongo is a jnorm.Sink that writes each table to a collection of a MongoDB
// database. Opening a table drops any existing collection of the same name.
// Each row is stored as a document whose fields are the columns of the row,
// in order. Exact numbers are stored as Decimal128 values.
//
// Documents are inserted in batches. Cancelling a table discards the batch in
// progress, but not batches already inserted.
type Mongo struct {
	// BatchSize is the maximum number of documents per insert. If zero,
	// DefaultBatchSize is used.
	BatchSize int

	client *mongo.Client
	db     *mongo.Database
	own    bool
}

// OpenMongo connects to the MongoDB server at uri and returns a sink that
// writes to the named database.
func OpenMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetConnectTimeout(10 * time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Mongo{client: client, db: client.Database(database), own: true}, nil
}

// NewMongo returns a sink that writes to db. Closing the sink does not
// disconnect the client of db.
func NewMongo(db *mongo.Database) *Mongo { return &Mongo{db: db} }

func (m *Mongo) batchSize() int {
	if m.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return m.BatchSize
}

// Open implements part of the jnorm.Sink interface.
func (m *Mongo) Open(ctx context.Context, name string) (jnorm.Table, error) {
	coll := m.db.Collection(name)
	if err := coll.Drop(ctx); err != nil {
		return nil, fmt.Errorf("drop collection: %w", err)
	}
	return &mongoTable{coll: coll, size: m.batchSize()}, nil
}

// Close implements part of the jnorm.Sink interface.
func (m *Mongo) Close() error {
	if m.own {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return m.client.Disconnect(ctx)
	}
	return nil
}

type mongoTable struct {
	coll    *mongo.Collection
	size    int
	pending []any
}

func (t *mongoTable) Append(ctx context.Context, rec *jnorm.Record, _ []byte) error {
	t.pending = append(t.pending, RecordDoc(rec))
	if len(t.pending) >= t.size {
		return t.flush(ctx)
	}
	return nil
}

func (t *mongoTable) flush(ctx context.Context) error {
	if len(t.pending) == 0 {
		return nil
	}
	_, err := t.coll.InsertMany(ctx, t.pending)
	clear(t.pending)
	t.pending = t.pending[:0]
	if err != nil {
		return fmt.Errorf("insert into %q: %w", t.coll.Name(), err)
	}
	return nil
}

func (t *mongoTable) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return t.flush(ctx)
}

func (t *mongoTable) Cancel() { t.pending = nil }

// RecordDoc converts rec to a BSON document with its columns in order.
func RecordDoc(rec *jnorm.Record) bson.D {
	cols := rec.Columns()
	doc := make(bson.D, len(cols))
	for i, c := range cols {
		doc[i] = bson.E{Key: c.Name, Value: bsonValue(c.Value)}
	}
	return doc
}

func bsonValue(v jnorm.Value) any {
	if v.IsExact() {
		if d, err := bson.ParseDecimal128(v.Text()); err == nil {
			return d
		}
		return v.Text()
	}
	return v.Interface()
}
