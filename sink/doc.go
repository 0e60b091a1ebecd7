// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

// Package sink provides implementations of the jnorm.Sink interface.
//
// A Dir writes each table to a JSON Lines file in a directory, optionally
// compressed and optionally replaced atomically when the run succeeds. An SQL
// sink writes each table to a relational table via database/sql. A Mongo sink
// writes each table to a collection, and a Badger sink writes rows to a
// key-value store keyed by table name and row identifier. A Memory sink keeps
// rows in memory, for tests and for embedding.
//
// Each sink discards the previous contents of a table when it is opened, so
// that repeated runs replace rather than accumulate their output.
package sink
