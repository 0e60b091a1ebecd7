// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

package sink

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// A Codec names a stream compression format for output files.
type Codec string

// Supported codecs.
const (
	None Codec = "none"
	Zstd Codec = "zstd"
	S2   Codec = "s2"
	LZ4  Codec = "lz4"
)

// ParseCodec returns the Codec with the given name. An empty name is None.
func ParseCodec(name string) (Codec, error) {
	switch c := Codec(name); c {
	case "", None:
		return None, nil
	case Zstd, S2, LZ4:
		return c, nil
	}
	return "", fmt.Errorf("unknown codec %q", name)
}

// Ext returns the file name extension for c, including the leading dot, or ""
// for no compression.
func (c Codec) Ext() string {
	switch c {
	case Zstd:
		return ".zst"
	case S2:
		return ".s2"
	case LZ4:
		return ".lz4"
	}
	return ""
}

// NewWriter returns a writer that compresses its input to w. Closing the
// result flushes the compressed stream but does not close w.
func (c Codec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case "", None:
		return nopCloser{w}, nil
	case Zstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	case S2:
		return s2.NewWriter(w), nil
	case LZ4:
		return lz4.NewWriter(w), nil
	}
	return nil, fmt.Errorf("unknown codec %q", string(c))
}

// NewReader returns a reader that decompresses the stream read from r.
func (c Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case "", None:
		return io.NopCloser(r), nil
	case Zstd:
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case S2:
		return io.NopCloser(s2.NewReader(r)), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	}
	return nil, fmt.Errorf("unknown codec %q", string(c))
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
