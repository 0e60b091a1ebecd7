// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

package jnorm

import (
	"slices"
	"strings"
)

// Naming controls how hierarchy paths are turned into table and column names.
// A nil *Naming is ready for use and applies the defaults.
type Naming struct {
	Separator string // joins path segments into a table name (default "_")
	IDSuffix  string // appended to a table name to name its ID column (default "_id")
}

func (n *Naming) sep() string {
	if n == nil || n.Separator == "" {
		return "_"
	}
	return n.Separator
}

func (n *Naming) suffix() string {
	if n == nil || n.IDSuffix == "" {
		return "_id"
	}
	return n.IDSuffix
}

// Root returns the entity for the root table with the given name.
func (n *Naming) Root(name string) Entity {
	return Entity{path: []string{name}, naming: n, name: sanitize(name)}
}

// An Entity identifies a relational table by its hierarchy path, the sequence
// of keys leading from the document root to a position in the document. Two
// positions with the same path produce rows in the same table.
//
// An Entity is an immutable value. Its names are derived from its path by the
// Naming that created it.
type Entity struct {
	path   []string
	naming *Naming
	name   string // table name
	parent string // parent table name, "" for a root entity
}

// Path returns the hierarchy path of e. The caller must not modify the slice.
func (e Entity) Path() []string { return e.path }

// Depth reports the number of segments in the path of e.
func (e Entity) Depth() int { return len(e.path) }

// Name returns the table name of e.
func (e Entity) Name() string { return e.name }

// String returns the table name of e.
func (e Entity) String() string { return e.name }

// IDColumn returns the name of the surrogate key column of e.
func (e Entity) IDColumn() string { return e.name + e.naming.suffix() }

// HasParent reports whether e is nested inside another entity.
func (e Entity) HasParent() bool { return len(e.path) > 1 }

// ParentName returns the table name of the parent of e, or "" if e is a root.
func (e Entity) ParentName() string { return e.parent }

// ParentIDColumn returns the name of the column of e that refers to its
// parent, or "" if e is a root.
func (e Entity) ParentIDColumn() string {
	if !e.HasParent() {
		return ""
	}
	return e.parent + e.naming.suffix()
}

// Parent returns the parent entity of e. It panics if e is a root.
func (e Entity) Parent() Entity {
	if !e.HasParent() {
		panic("jnorm: root entity has no parent")
	}
	up := e.path[:len(e.path)-1 : len(e.path)-1]
	var grand string
	if len(up) > 1 {
		grand = e.naming.join(up[:len(up)-1])
	}
	return Entity{path: up, naming: e.naming, name: e.parent, parent: grand}
}

// Child returns the entity for a table nested in e under the given key.
func (e Entity) Child(key string) Entity {
	return e.descend(append(slices.Clip(e.path), key))
}

// descend returns the child entity of e whose full path is path, which must
// extend the path of e by one segment. The path is retained without copying,
// capped so that appending to it cannot write through to the caller's array.
func (e Entity) descend(path []string) Entity {
	n := len(path)
	return Entity{
		path:   path[:n:n],
		naming: e.naming,
		name:   e.name + e.naming.sep() + sanitize(path[n-1]),
		parent: e.name,
	}
}

func (n *Naming) join(path []string) string {
	segs := make([]string, len(path))
	for i, p := range path {
		segs[i] = sanitize(p)
	}
	return strings.Join(segs, n.sep())
}

// sanitize makes a path segment safe for use in file and column names.
func sanitize(seg string) string {
	if seg == "" {
		return "-"
	} else if strings.IndexFunc(seg, unsafeRune) < 0 {
		return seg
	}
	return strings.Map(func(r rune) rune {
		if unsafeRune(r) {
			return '-'
		}
		return r
	}, seg)
}

func unsafeRune(r rune) bool {
	return r < ' ' || r == 0x7f || strings.ContainsRune(`\/:*?"<>|`, r)
}
