// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/creachadair/jnorm"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// A Dialect selects the SQL syntax and driver used by an SQL sink.
type Dialect string

// Supported dialects.
const (
	SQLite   Dialect = "sqlite"
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
)

// ParseDialect returns the Dialect with the given name.
func ParseDialect(name string) (Dialect, error) {
	switch d := Dialect(name); d {
	case SQLite, MySQL, Postgres:
		return d, nil
	case "postgresql":
		return Postgres, nil
	}
	return "", fmt.Errorf("unknown SQL dialect %q", name)
}

func (d Dialect) quote(name string) string {
	if d == MySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d Dialect) placeholder(i int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(i)
	}
	return "?"
}

// columnType returns the column type used to store v.
func (d Dialect) columnType(v jnorm.Value) string {
	switch v.Kind() {
	case jnorm.Int:
		if d == SQLite {
			return "INTEGER"
		}
		return "BIGINT"
	case jnorm.Number:
		if v.IsExact() {
			return "TEXT"
		}
		switch d {
		case SQLite:
			return "REAL"
		case MySQL:
			return "DOUBLE"
		}
		return "DOUBLE PRECISION"
	case jnorm.Bool:
		return "BOOLEAN"
	}
	return "TEXT"
}

// SQL is a jnorm.Sink that writes each table to a table of a relational
// database. Opening a table drops any existing table of the same name. The
// table is created from the key columns of its first row, and further
// columns are added as rows introduce them. The type of a column is chosen
// by the first value stored in it.
//
// All the writes of a run share one transaction, which is committed when the
// sink is closed and rolled back if any table is cancelled. Note that MySQL
// commits implicitly around schema changes.
type SQL struct {
	db      *sql.DB
	own     bool // close db when the sink is closed
	dialect Dialect
	tx      *sql.Tx
	aborted bool
}

// OpenSQL opens a database connection for the given dialect and data source
// name, and returns a sink that writes to it.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*SQL, error) {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", dialect, err)
	}
	return &SQL{db: db, own: true, dialect: dialect}, nil
}

// NewSQL returns a sink that writes to an existing database handle. Closing
// the sink does not close db.
func NewSQL(db *sql.DB, dialect Dialect) *SQL {
	return &SQL{db: db, dialect: dialect}
}

// Open implements part of the jnorm.Sink interface.
func (s *SQL) Open(ctx context.Context, name string) (jnorm.Table, error) {
	if s.aborted {
		return nil, errors.New("sink is aborted")
	}
	if s.tx == nil {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("begin transaction: %w", err)
		}
		s.tx = tx
	}
	if _, err := s.tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+s.dialect.quote(name)); err != nil {
		return nil, fmt.Errorf("drop table: %w", err)
	}
	return &sqlTable{
		s:     s,
		name:  name,
		cols:  make(map[string]string),
		stmts: make(map[string]*sql.Stmt),
	}, nil
}

// Close implements part of the jnorm.Sink interface. It commits the pending
// transaction, unless a table was cancelled.
func (s *SQL) Close() error {
	var err error
	if s.tx != nil {
		if s.aborted {
			err = s.tx.Rollback()
		} else {
			err = s.tx.Commit()
		}
		s.tx = nil
	}
	if s.own {
		err = errors.Join(err, s.db.Close())
	}
	return err
}

// DB returns the database handle used by s.
func (s *SQL) DB() *sql.DB { return s.db }

type sqlTable struct {
	s       *SQL
	name    string
	created bool
	cols    map[string]string    // :: column name → column type
	stmts   map[string]*sql.Stmt // :: column list → insert statement
}

func (t *sqlTable) Append(ctx context.Context, rec *jnorm.Record, _ []byte) error {
	cols := rec.Columns()
	if !t.created {
		if err := t.create(ctx, rec); err != nil {
			return err
		}
	}
	var key strings.Builder
	args := make([]any, len(cols))
	for i, c := range cols {
		typ, ok := t.cols[c.Name]
		if !ok {
			typ = t.s.dialect.columnType(c.Value)
			q := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
				t.s.dialect.quote(t.name), t.s.dialect.quote(c.Name), typ)
			if _, err := t.s.tx.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("add column %q: %w", c.Name, err)
			}
			t.cols[c.Name] = typ
		}
		arg, err := t.arg(c, typ)
		if err != nil {
			return err
		}
		args[i] = arg
		key.WriteString(c.Name)
		key.WriteByte(0)
	}

	stmt, ok := t.stmts[key.String()]
	if !ok {
		var err error
		stmt, err = t.s.tx.PrepareContext(ctx, t.insertQuery(cols))
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		t.stmts[key.String()] = stmt
	}
	_, err := stmt.ExecContext(ctx, args...)
	return err
}

// create creates the table with the key columns of rec.
func (t *sqlTable) create(ctx context.Context, rec *jnorm.Record) error {
	d := t.s.dialect
	cols := rec.Columns()
	keyType := d.columnType(cols[0].Value)
	defs := []string{d.quote(cols[0].Name) + " " + keyType + " PRIMARY KEY"}
	t.cols[cols[0].Name] = keyType
	if _, ok := rec.ParentID(); ok {
		defs = append(defs, d.quote(cols[1].Name)+" "+keyType+" NOT NULL")
		t.cols[cols[1].Name] = keyType
	}
	q := fmt.Sprintf("CREATE TABLE %s (%s)", d.quote(t.name), strings.Join(defs, ", "))
	if _, err := t.s.tx.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	t.created = true
	return nil
}

// arg converts the value of c to a query argument for a column of type typ.
// A value that does not match a text column is stored as its JSON text.
func (t *sqlTable) arg(c jnorm.Column, typ string) (any, error) {
	if want := t.s.dialect.columnType(c.Value); want == typ {
		return c.Value.Interface(), nil
	} else if typ == "TEXT" {
		return c.Value.Text(), nil
	}
	return nil, fmt.Errorf("column %q: cannot store %v value in %s column", c.Name, c.Value.Kind(), typ)
}

func (t *sqlTable) insertQuery(cols []jnorm.Column) string {
	d := t.s.dialect
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		names[i] = d.quote(c.Name)
		marks[i] = d.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.quote(t.name), strings.Join(names, ", "), strings.Join(marks, ", "))
}

func (t *sqlTable) Close() error {
	var errs []error
	for _, stmt := range t.stmts {
		errs = append(errs, stmt.Close())
	}
	clear(t.stmts)
	return errors.Join(errs...)
}

// Cancel marks the sink aborted, so that its transaction is rolled back.
func (t *sqlTable) Cancel() {
	t.Close()
	t.s.aborted = true
}
