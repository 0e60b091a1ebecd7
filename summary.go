// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

package jnorm

import (
	"fmt"
	"strings"
)

// TableSummary describes the output written to one table.
type TableSummary struct {
	Name   string // table name
	Rows   int64  // number of rows written
	Digest uint64 // xxhash64 of the rows as JSON lines
}

// Summary describes the output of a run.
type Summary struct {
	Tables []TableSummary // in order of first use
	Total  int64          // total rows across all tables
}

// Table returns the summary for the named table, and reports whether it was
// written at all.
func (s Summary) Table(name string) (TableSummary, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableSummary{}, false
}

// String renders s as a plain text table.
func (s Summary) String() string {
	var sb strings.Builder
	for _, t := range s.Tables {
		fmt.Fprintf(&sb, "%s\t%d\t%016x\n", t.Name, t.Rows, t.Digest)
	}
	fmt.Fprintf(&sb, "total\t%d\n", s.Total)
	return sb.String()
}
