// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

package jnorm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/creachadair/jnorm/token"
)

// Options control the behavior of Normalize.
type Options struct {
	// Name is the name of the root table. It must be non-empty.
	Name string

	// Naming controls how table and column names are derived from paths.
	// If nil, the default naming is used.
	Naming *Naming

	// Numbers selects how JSON numbers are converted (default Float).
	Numbers NumberMode

	// Duplicates selects how repeated member names in an object are handled
	// (default DuplicateError).
	Duplicates DuplicatePolicy

	// MaxDepth, if positive, limits how deeply objects and arrays may nest.
	MaxDepth int

	// AllowComments permits JSON-with-comments input; comments are ignored.
	AllowComments bool

	// AllowTrailingCommas permits a comma after the last member of an object
	// or the last element of an array.
	AllowTrailingCommas bool

	// MultipleValues permits a sequence of top-level values, such as JSON Lines
	// input. Each value is normalized into the same root table. Otherwise any
	// value after the first reports ErrExtraInput.
	MultipleValues bool

	// If not nil, progress is logged here.
	Logger *slog.Logger
}

// Normalize reads JSON from r and writes its contents through w as rows of
// flat tables, one table per distinct hierarchy path. The root of each
// top-level value must be an object or an array.
//
// Rows are appended to w in a single pass. The row of an object is appended
// when the object closes, so the rows of its descendants always precede it.
// Normalize does not close w; on error the caller should call w.Abort.
func Normalize(ctx context.Context, r io.Reader, w *Writer, opts *Options) error {
	if opts == nil || opts.Name == "" {
		return errors.New("missing root table name")
	}
	s := token.NewStream(r)
	s.AllowComments(opts.AllowComments)
	s.AllowTrailingCommas(opts.AllowTrailingCommas)
	s.SetMaxDepth(opts.MaxDepth)

	root := opts.Naming.Root(opts.Name)
	h := &normalizer{
		ctx:     ctx,
		w:       w,
		root:    root,
		path:    []string{opts.Name},
		numbers: opts.Numbers,
		dups:    opts.Duplicates,
		multi:   opts.MultipleValues,
	}
	if err := s.Parse(h); err != nil {
		return err
	}
	if h.docs == 0 && !opts.MultipleValues {
		return ErrNoInput
	}
	if opts.Logger != nil {
		opts.Logger.Info("normalized input", "root", root.Name(), "values", h.docs)
	}
	return nil
}

type frameKind byte

const (
	objectFrame frameKind = iota
	arrayFrame
)

// A frame records the state of one open object or array.
type frame struct {
	kind     frameKind
	entity   Entity
	parentID int64 // 0 if entity has no parent
	pushed   bool  // whether the frame added a segment to the path

	// Object frames only.
	rec *Record
	key string // the current member name
}

// normalizer implements token.Handler. The stack of open frames replaces
// recursion, so nesting depth is limited only by memory (or MaxDepth).
type normalizer struct {
	ctx     context.Context
	w       *Writer
	root    Entity
	path    []string // the hierarchy path of the innermost open frame
	stk     []frame
	numbers NumberMode
	dups    DuplicatePolicy
	multi   bool
	docs    int // number of top-level values seen
}

func (h *normalizer) top() *frame { return &h.stk[len(h.stk)-1] }

func (h *normalizer) pop() frame {
	n := len(h.stk) - 1
	f := h.stk[n]
	h.stk[n] = frame{}
	h.stk = h.stk[:n]
	if f.pushed {
		h.path = h.path[:len(h.path)-1]
	}
	return f
}

// enter returns a new frame for a value beginning at the current position,
// deriving its entity and parent from the enclosing frame.
func (h *normalizer) enter(kind frameKind) (frame, error) {
	if err := h.ctx.Err(); err != nil {
		return frame{}, err
	}
	if len(h.stk) == 0 {
		if h.docs > 0 && !h.multi {
			return frame{}, ErrExtraInput
		}
		h.docs++
		return frame{kind: kind, entity: h.root}, nil
	}
	up := h.top()
	if up.kind == arrayFrame {
		// Elements of an array, including nested arrays, share its table.
		return frame{kind: kind, entity: up.entity, parentID: up.parentID}, nil
	}
	h.path = append(h.path, up.key)
	return frame{
		kind:     kind,
		entity:   up.entity.descend(h.path),
		parentID: up.rec.ID(),
		pushed:   true,
	}, nil
}

func (h *normalizer) BeginObject(loc token.Anchor) error {
	f, err := h.enter(objectFrame)
	if err != nil {
		return locate(loc, err)
	}
	f.rec = NewRecord(f.entity, h.w.LastID(f.entity)+1, f.parentID)
	h.stk = append(h.stk, f)
	return nil
}

func (h *normalizer) EndObject(loc token.Anchor) error {
	f := h.pop()
	if _, err := h.w.Append(h.ctx, f.entity, f.rec); err != nil {
		return locate(loc, err)
	}
	return nil
}

func (h *normalizer) BeginArray(loc token.Anchor) error {
	f, err := h.enter(arrayFrame)
	if err != nil {
		return locate(loc, err)
	}
	h.stk = append(h.stk, f)
	return nil
}

func (h *normalizer) EndArray(loc token.Anchor) error {
	h.pop()
	return nil
}

func (h *normalizer) BeginMember(loc token.Anchor) error {
	key, err := loc.Unquote()
	if err != nil {
		return locate(loc, err)
	}
	h.top().key = key
	return nil
}

func (h *normalizer) EndMember(loc token.Anchor) error { return nil }

func (h *normalizer) Value(loc token.Anchor) error {
	if len(h.stk) == 0 {
		return locate(loc, ErrScalarRoot)
	} else if loc.Token() == token.Null {
		return nil
	}
	v, err := h.scalar(loc)
	if err != nil {
		return locate(loc, err)
	}

	f := h.top()
	if f.kind == objectFrame {
		if err := f.rec.Set(f.key, v, h.dups); err != nil {
			return locate(loc, fmt.Errorf("table %q: %w", f.entity.Name(), err))
		}
		return nil
	}

	// A scalar array element is a complete row by itself.
	rec := NewRecord(f.entity, h.w.LastID(f.entity)+1, f.parentID)
	if err := rec.Set(ValueColumn, v, h.dups); err != nil {
		return locate(loc, err)
	}
	if _, err := h.w.Append(h.ctx, f.entity, rec); err != nil {
		return locate(loc, err)
	}
	return nil
}

func (h *normalizer) EndOfInput(loc token.Anchor) {}

// scalar converts the non-null scalar at loc to a Value.
func (h *normalizer) scalar(loc token.Anchor) (Value, error) {
	switch tok := loc.Token(); tok {
	case token.String:
		s, err := loc.Unquote()
		if err != nil {
			return Value{}, err
		}
		return StringValue(s), nil
	case token.Integer, token.Number:
		return h.numbers.Convert(loc.Text())
	case token.True, token.False:
		return BoolValue(tok == token.True), nil
	default:
		return Value{}, fmt.Errorf("unexpected %v", tok)
	}
}

// locate annotates err with the starting location of loc.
func locate(loc token.Anchor, err error) error {
	return fmt.Errorf("at %s: %w", loc.Location().First, err)
}

// Run normalizes the JSON read from r into tables opened from sink, and
// returns a summary of the output. If normalization fails, the output is
// aborted and the partial summary is returned with the error.
func Run(ctx context.Context, r io.Reader, sink Sink, opts *Options) (Summary, error) {
	var wopts WriterOptions
	if opts != nil {
		wopts.Logger = opts.Logger
	}
	w := NewWriter(sink, &wopts)
	if err := Normalize(ctx, r, w, opts); err != nil {
		w.Abort()
		return w.Summary(), err
	}
	return w.Summary(), w.Close()
}
