// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

// Package jnorm converts nested JSON documents into flat relational tables.
//
// Each distinct path of keys from the root of a document to an object or
// array identifies an entity, and each entity becomes one table. Every object
// contributes one row to the table of its entity, holding its scalar members
// as columns. Every scalar element of an array contributes a row with a single
// "value" column. Rows receive surrogate identifiers numbered from 1 in each
// table, and every row of a nested entity also records the identifier of the
// row of its enclosing object.
//
// For example, given the document people.json:
//
//	[{"name": "Ana", "tags": ["x", "y"]}]
//
// the table "people" receives the row
//
//	{"people_id":1,"name":"Ana"}
//
// and the table "people_tags" receives the rows
//
//	{"people_tags_id":1,"people_id":1,"value":"x"}
//	{"people_tags_id":2,"people_id":1,"value":"y"}
//
// # Streaming
//
// The input is read once, as a stream of tokens, and is never held in memory
// as a whole. The row of an object is complete only when the object closes, so
// the rows of its descendants are always written before it. The identifier of
// an object is reserved when it opens, so its descendants can refer to it.
//
// # Output
//
// Rows are delivered through a Writer to the tables of a Sink. Package
// [github.com/creachadair/jnorm/sink] provides sinks that write JSON Lines
// files, SQL tables, MongoDB collections, and Badger key-value stores.
//
//	s := &sink.Dir{Path: "output"}
//	sum, err := jnorm.Run(ctx, input, s, &jnorm.Options{Name: "people"})
package jnorm
