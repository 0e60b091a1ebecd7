// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

package sink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/creachadair/atomicfile"
	"github.com/creachadair/jnorm"
)

// Dir is a jnorm.Sink that writes each table as a JSON Lines file in a
// directory. The file for table T is named T.jsonl, plus the extension of the
// codec if the output is compressed.
type Dir struct {
	// Path is the output directory, which must exist.
	Path string

	// Codec selects the compression of output files (default None).
	Codec Codec

	// If Atomic is true, each file is written to a temporary and replaces the
	// previous file only when the table is closed. A cancelled table leaves
	// the previous file untouched. Otherwise each file is truncated when its
	// table is opened.
	Atomic bool
}

// FileName returns the base name of the file for the named table.
func (d *Dir) FileName(table string) string { return table + ".jsonl" + d.Codec.Ext() }

// Open implements part of the jnorm.Sink interface.
func (d *Dir) Open(ctx context.Context, name string) (jnorm.Table, error) {
	path := filepath.Join(d.Path, d.FileName(name))
	t := new(fileTable)
	if d.Atomic {
		f, err := atomicfile.New(path, 0644)
		if err != nil {
			return nil, err
		}
		t.af, t.f = f, f
	} else {
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		t.f = f
	}
	enc, err := d.Codec.NewWriter(t.f)
	if err != nil {
		t.Cancel()
		return nil, err
	}
	t.enc = enc
	t.buf = bufio.NewWriter(enc)
	return t, nil
}

// Close implements part of the jnorm.Sink interface. It does nothing.
func (d *Dir) Close() error { return nil }

// Stat reports whether the directory exists, creating it if create is true.
func (d *Dir) Stat(create bool) error {
	fi, err := os.Stat(d.Path)
	if errors.Is(err, os.ErrNotExist) && create {
		return os.MkdirAll(d.Path, 0755)
	} else if err != nil {
		return err
	} else if !fi.IsDir() {
		return fmt.Errorf("%q is not a directory", d.Path)
	}
	return nil
}

// A fileTable writes lines through a buffer and an optional compressor to an
// output file.
type fileTable struct {
	f   io.WriteCloser
	af  *atomicfile.File // if atomic, else nil
	enc io.WriteCloser
	buf *bufio.Writer
}

func (t *fileTable) Append(_ context.Context, _ *jnorm.Record, line []byte) error {
	t.buf.Write(line)
	return t.buf.WriteByte('\n')
}

func (t *fileTable) Close() error {
	ferr := t.buf.Flush()
	cerr := t.enc.Close()
	if err := errors.Join(ferr, cerr); err != nil {
		t.Cancel()
		return err
	}
	return t.f.Close()
}

// Cancel discards the output of an atomic table. A non-atomic table is closed
// with whatever it has already written.
func (t *fileTable) Cancel() {
	if t.af != nil {
		t.af.Cancel()
		return
	}
	t.f.Close()
}
