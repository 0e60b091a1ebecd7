// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

package jnorm_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"testing"

	"github.com/creachadair/jnorm"
	"github.com/creachadair/jnorm/sink"
	"github.com/creachadair/jnorm/token"
	"github.com/google/go-cmp/cmp"
)

// normalize runs input through the normalizer into a memory sink.
func normalize(t *testing.T, ctx context.Context, input string, opts *jnorm.Options) (*sink.Memory, error) {
	t.Helper()
	m := new(sink.Memory)
	w := jnorm.NewWriter(m, nil)
	if err := jnorm.Normalize(ctx, strings.NewReader(input), w, opts); err != nil {
		w.Abort()
		return m, err
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: unexpected error: %v", err)
	}
	return m, nil
}

func TestNormalize(t *testing.T) {
	type row = sink.Row
	tests := []struct {
		name  string
		input string
		opts  jnorm.Options
		want  []row
	}{
		{"EmptyObject", `{}`, jnorm.Options{Name: "doc"}, []row{
			{Table: "doc", ID: 1, Line: `{"doc_id":1}`},
		}},
		{"EmptyArray", `[]`, jnorm.Options{Name: "doc"}, nil},

		{"ArrayRoot", `[{"name": "Ana", "tags": ["x", "y"]}]`, jnorm.Options{Name: "people"}, []row{
			{Table: "people_tags", ID: 1, Line: `{"people_tags_id":1,"people_id":1,"value":"x"}`},
			{Table: "people_tags", ID: 2, Line: `{"people_tags_id":2,"people_id":1,"value":"y"}`},
			{Table: "people", ID: 1, Line: `{"people_id":1,"name":"Ana"}`},
		}},

		{"ObjectRoot", `{"people": [{"name": "Ana", "tags": ["x", "y"]}, {"name": "Bo"}]}`,
			jnorm.Options{Name: "people"}, []row{
				{Table: "people_people_tags", ID: 1, Line: `{"people_people_tags_id":1,"people_people_id":1,"value":"x"}`},
				{Table: "people_people_tags", ID: 2, Line: `{"people_people_tags_id":2,"people_people_id":1,"value":"y"}`},
				{Table: "people_people", ID: 1, Line: `{"people_people_id":1,"people_id":1,"name":"Ana"}`},
				{Table: "people_people", ID: 2, Line: `{"people_people_id":2,"people_id":1,"name":"Bo"}`},
				{Table: "people", ID: 1, Line: `{"people_id":1}`},
			}},

		{"ScalarArrayRoot", `[1, "two", true, null]`, jnorm.Options{Name: "v"}, []row{
			{Table: "v", ID: 1, Line: `{"v_id":1,"value":1}`},
			{Table: "v", ID: 2, Line: `{"v_id":2,"value":"two"}`},
			{Table: "v", ID: 3, Line: `{"v_id":3,"value":true}`},
		}},

		{"NestedObjects", `{"a": 1, "b": {"c": {"d": "deep"}, "e": false}, "f": "last"}`,
			jnorm.Options{Name: "r"}, []row{
				{Table: "r_b_c", ID: 1, Line: `{"r_b_c_id":1,"r_b_id":1,"d":"deep"}`},
				{Table: "r_b", ID: 1, Line: `{"r_b_id":1,"r_id":1,"e":false}`},
				{Table: "r", ID: 1, Line: `{"r_id":1,"a":1,"f":"last"}`},
			}},

		{"Nulls", `{"a": null, "b": [null, 1, null], "c": {"x": null}}`, jnorm.Options{Name: "r"}, []row{
			{Table: "r_b", ID: 1, Line: `{"r_b_id":1,"r_id":1,"value":1}`},
			{Table: "r_c", ID: 1, Line: `{"r_c_id":1,"r_id":1}`},
			{Table: "r", ID: 1, Line: `{"r_id":1}`},
		}},

		{"NestedArrays", `{"m": [[1, 2], [], [[3]], {"k": 4}]}`, jnorm.Options{Name: "r"}, []row{
			{Table: "r_m", ID: 1, Line: `{"r_m_id":1,"r_id":1,"value":1}`},
			{Table: "r_m", ID: 2, Line: `{"r_m_id":2,"r_id":1,"value":2}`},
			{Table: "r_m", ID: 3, Line: `{"r_m_id":3,"r_id":1,"value":3}`},
			{Table: "r_m", ID: 4, Line: `{"r_m_id":4,"r_id":1,"k":4}`},
			{Table: "r", ID: 1, Line: `{"r_id":1}`},
		}},

		{"SiblingObjects", `[{"x": {"v": 1}}, {"x": {"v": 2}}, {"y": 0}]`, jnorm.Options{Name: "s"}, []row{
			{Table: "s_x", ID: 1, Line: `{"s_x_id":1,"s_id":1,"v":1}`},
			{Table: "s", ID: 1, Line: `{"s_id":1}`},
			{Table: "s_x", ID: 2, Line: `{"s_x_id":2,"s_id":2,"v":2}`},
			{Table: "s", ID: 2, Line: `{"s_id":2}`},
			{Table: "s", ID: 3, Line: `{"s_id":3,"y":0}`},
		}},

		{"Numbers", `{"a": 1.50, "b": -2e3, "c": 0.1, "d": 100}`, jnorm.Options{Name: "n"}, []row{
			{Table: "n", ID: 1, Line: `{"n_id":1,"a":1.5,"b":-2000,"c":0.1,"d":100}`},
		}},
		{"ExactNumbers", `{"a": 1.50, "b": -2e3, "c": 12345678901234567890, "d": 1e400}`,
			jnorm.Options{Name: "n", Numbers: jnorm.Exact}, []row{
				{Table: "n", ID: 1, Line: `{"n_id":1,"a":1.50,"b":-2e3,"c":12345678901234567890,"d":1e400}`},
			}},

		{"Strings", `{"s": "a\"bé😀\n", "t": "\/"}`, jnorm.Options{Name: "q"}, []row{
			{Table: "q", ID: 1, Line: "{\"q_id\":1,\"s\":\"a\\\"bé\U0001F600\\n\",\"t\":\"/\"}"},
		}},

		{"Keys", `{"": 1, "a/b": [true], "x y": 2}`, jnorm.Options{Name: "k"}, []row{
			{Table: "k_a-b", ID: 1, Line: `{"k_a-b_id":1,"k_id":1,"value":true}`},
			{Table: "k", ID: 1, Line: `{"k_id":1,"":1,"x y":2}`},
		}},

		{"DuplicateLast", `{"a": 1, "b": 2, "a": 3}`,
			jnorm.Options{Name: "d", Duplicates: jnorm.DuplicateLast}, []row{
				{Table: "d", ID: 1, Line: `{"d_id":1,"a":3,"b":2}`},
			}},

		{"Naming", `{"sub": [{"v": 1}]}`,
			jnorm.Options{Name: "Doc", Naming: &jnorm.Naming{Separator: ".", IDSuffix: "Id"}}, []row{
				{Table: "Doc.sub", ID: 1, Line: `{"Doc.subId":1,"DocId":1,"v":1}`},
				{Table: "Doc", ID: 1, Line: `{"DocId":1}`},
			}},

		{"MultipleValues", "{\"a\": 1}\n{\"a\": 2}\n[{\"a\": 3}]\n",
			jnorm.Options{Name: "l", MultipleValues: true}, []row{
				{Table: "l", ID: 1, Line: `{"l_id":1,"a":1}`},
				{Table: "l", ID: 2, Line: `{"l_id":2,"a":2}`},
				{Table: "l", ID: 3, Line: `{"l_id":3,"a":3}`},
			}},
		{"MultipleValuesEmpty", "", jnorm.Options{Name: "l", MultipleValues: true}, nil},

		{"Comments", "// header\n{\"a\": /* one */ 1, \"b\": [2,],}",
			jnorm.Options{Name: "c", AllowComments: true, AllowTrailingCommas: true}, []row{
				{Table: "c_b", ID: 1, Line: `{"c_b_id":1,"c_id":1,"value":2}`},
				{Table: "c", ID: 1, Line: `{"c_id":1,"a":1}`},
			}},

		{"DepthLimit", `{"a": {"b": [1]}}`, jnorm.Options{Name: "x", MaxDepth: 3}, []row{
			{Table: "x_a_b", ID: 1, Line: `{"x_a_b_id":1,"x_a_id":1,"value":1}`},
			{Table: "x_a", ID: 1, Line: `{"x_a_id":1,"x_id":1}`},
			{Table: "x", ID: 1, Line: `{"x_id":1}`},
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, err := normalize(t, context.Background(), tc.input, &tc.opts)
			if err != nil {
				t.Fatalf("Normalize: unexpected error: %v", err)
			}
			if diff := cmp.Diff(tc.want, m.Log()); diff != "" {
				t.Errorf("Rows (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  jnorm.Options
		want  error
	}{
		{"ScalarRoot", `42`, jnorm.Options{Name: "x"}, jnorm.ErrScalarRoot},
		{"StringRoot", `"s"`, jnorm.Options{Name: "x"}, jnorm.ErrScalarRoot},
		{"NullRoot", `null`, jnorm.Options{Name: "x"}, jnorm.ErrScalarRoot},
		{"ScalarAfterObject", `{} 1`, jnorm.Options{Name: "x", MultipleValues: true}, jnorm.ErrScalarRoot},
		{"ExtraObject", `{} {}`, jnorm.Options{Name: "x"}, jnorm.ErrExtraInput},
		{"ExtraArray", `[] [1]`, jnorm.Options{Name: "x"}, jnorm.ErrExtraInput},
		{"NoInput", "  \n", jnorm.Options{Name: "x"}, jnorm.ErrNoInput},
		{"Duplicate", `{"a": 1, "a": 2}`, jnorm.Options{Name: "x"}, jnorm.ErrDuplicateKey},
		{"ReservedID", `{"x_id": 5}`, jnorm.Options{Name: "x", Duplicates: jnorm.DuplicateLast}, jnorm.ErrReservedColumn},
		{"ReservedParent", `{"c": {"x_id": 5}}`, jnorm.Options{Name: "x"}, jnorm.ErrReservedColumn},
		{"Collision", `{"a_b": {"v": 1}, "a": {"b": {"v": 2}}}`, jnorm.Options{Name: "r"}, jnorm.ErrNameCollision},
		{"TooDeep", `[[[1]]]`, jnorm.Options{Name: "x", MaxDepth: 2}, jnorm.ErrTooDeep},
		{"Overflow", `{"n": 1e400}`, jnorm.Options{Name: "x"}, jnorm.ErrNumberRange},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := normalize(t, context.Background(), tc.input, &tc.opts)
			if !errors.Is(err, tc.want) {
				t.Errorf("Normalize: got %v, want %v", err, tc.want)
			}
		})
	}

	t.Run("NoName", func(t *testing.T) {
		if _, err := normalize(t, context.Background(), `{}`, nil); err == nil {
			t.Error("Normalize with no options: got nil, want error")
		}
	})

	t.Run("Syntax", func(t *testing.T) {
		for _, input := range []string{`{"a":}`, `[1 2]`, `{"a": 1`, `{a: 1}`, `[1,]`} {
			_, err := normalize(t, context.Background(), input, &jnorm.Options{Name: "x"})
			var serr *token.SyntaxError
			if !errors.As(err, &serr) {
				t.Errorf("Normalize(%#q): got %v, want *token.SyntaxError", input, err)
			}
		}
	})

	t.Run("Location", func(t *testing.T) {
		_, err := normalize(t, context.Background(), "{\n  \"a\": 1,\n  \"a\": 2\n}", &jnorm.Options{Name: "x"})
		if err == nil || !strings.HasPrefix(err.Error(), "at 3:7: ") {
			t.Errorf("Normalize: got %v, want error at 3:7", err)
		}
	})

	t.Run("Canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		m, err := normalize(t, ctx, `{"a": [1, 2]}`, &jnorm.Options{Name: "x"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Normalize: got %v, want %v", err, context.Canceled)
		}
		if tabs := m.Tables(); len(tabs) != 0 {
			t.Errorf("Tables after cancel: got %q, want none", tabs)
		}
	})
}

type column struct {
	Name  string
	Value json.RawMessage
}

// columns decodes a row in column order.
func columns(t *testing.T, line string) []column {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(line))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		t.Fatalf("Row %q: got %v, %v; want object", line, tok, err)
	}
	var cols []column
	for dec.More() {
		key, err := dec.Token()
		if err != nil {
			t.Fatalf("Row %q: key: %v", line, err)
		}
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			t.Fatalf("Row %q: value: %v", line, err)
		}
		cols = append(cols, column{key.(string), val})
	}
	return cols
}

var testKeys = []string{"k", "m", "n", "p"}

func genValue(rng *rand.Rand, b *strings.Builder, depth int) {
	switch n := rng.IntN(6); {
	case depth <= 0 || n < 2:
		switch rng.IntN(4) {
		case 0:
			b.WriteString("null")
		case 1:
			b.WriteString(strconv.FormatBool(rng.IntN(2) == 0))
		case 2:
			b.WriteString(strconv.Itoa(rng.IntN(1000)))
		default:
			fmt.Fprintf(b, `"s%d"`, rng.IntN(100))
		}
	case n < 4:
		genObject(rng, b, depth)
	default:
		genArray(rng, b, depth)
	}
}

func genObject(rng *rand.Rand, b *strings.Builder, depth int) {
	b.WriteByte('{')
	keys := rng.Perm(len(testKeys))[:rng.IntN(len(testKeys)+1)]
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(b, "%q:", testKeys[k])
		genValue(rng, b, depth-1)
	}
	b.WriteByte('}')
}

func genArray(rng *rand.Rand, b *strings.Builder, depth int) {
	b.WriteByte('[')
	for i := range rng.IntN(4) {
		if i > 0 {
			b.WriteByte(',')
		}
		genValue(rng, b, depth-1)
	}
	b.WriteByte(']')
}

// TestNormalizeIntegrity checks, for generated documents, that identifiers in
// each table are gap-free from 1, that every parent key refers to a row of
// the parent table, and that every row precedes the row of its parent.
func TestNormalizeIntegrity(t *testing.T) {
	type rowKey struct {
		table string
		id    int64
	}
	for seed := range uint64(64) {
		rng := rand.New(rand.NewPCG(seed, 17))
		var b strings.Builder
		if seed%2 == 0 {
			genObject(rng, &b, 6)
		} else {
			genArray(rng, &b, 6)
		}
		input := b.String()

		m, err := normalize(t, context.Background(), input, &jnorm.Options{Name: "g"})
		if err != nil {
			t.Fatalf("Seed %d: Normalize %s: unexpected error: %v", seed, input, err)
		}

		log := m.Log()
		pos := make(map[rowKey]int)
		last := make(map[string]int64)
		for i, r := range log {
			last[r.Table]++
			if r.ID != last[r.Table] {
				t.Errorf("Seed %d: table %q: got id %d, want %d", seed, r.Table, r.ID, last[r.Table])
			}
			pos[rowKey{r.Table, r.ID}] = i
			cols := columns(t, r.Line)
			if cols[0].Name != r.Table+"_id" || string(cols[0].Value) != strconv.FormatInt(r.ID, 10) {
				t.Errorf("Seed %d: row %q does not begin with its key", seed, r.Line)
			}
		}
		for i, r := range log {
			cols := columns(t, r.Line)
			if len(cols) < 2 || !strings.HasSuffix(cols[1].Name, "_id") {
				if r.Table != "g" {
					t.Errorf("Seed %d: nested row %q has no parent key", seed, r.Line)
				}
				continue
			}
			parent := strings.TrimSuffix(cols[1].Name, "_id")
			if !strings.HasPrefix(r.Table, parent+"_") {
				t.Errorf("Seed %d: row %q: parent %q is not a prefix of the table name", seed, r.Line, parent)
			}
			pid, err := strconv.ParseInt(string(cols[1].Value), 10, 64)
			if err != nil {
				t.Fatalf("Seed %d: row %q: bad parent key: %v", seed, r.Line, err)
			}
			p, ok := pos[rowKey{parent, pid}]
			if !ok {
				t.Errorf("Seed %d: row %q refers to missing %s row %d", seed, r.Line, parent, pid)
			} else if p < i {
				t.Errorf("Seed %d: row %q follows its parent row", seed, r.Line)
			}
		}

		// A second run produces the same output.
		m2, err := normalize(t, context.Background(), input, &jnorm.Options{Name: "g"})
		if err != nil {
			t.Fatalf("Seed %d: second run: %v", seed, err)
		}
		if diff := cmp.Diff(log, m2.Log()); diff != "" {
			t.Errorf("Seed %d: second run differs (-first, +second):\n%s", seed, diff)
		}
	}
}

func TestRun(t *testing.T) {
	const input = `{"a": [{"b": 1}, {"b": 2}], "c": "x"}`
	m := new(sink.Memory)
	sum, err := jnorm.Run(context.Background(), strings.NewReader(input), m, &jnorm.Options{Name: "r"})
	if err != nil {
		t.Fatalf("Run: unexpected error: %v", err)
	}
	if got, want := sum.Total, int64(3); got != want {
		t.Errorf("Total: got %d, want %d", got, want)
	}
	var names []string
	for _, ts := range sum.Tables {
		names = append(names, ts.Name)
	}
	if diff := cmp.Diff([]string{"r_a", "r"}, names); diff != "" {
		t.Errorf("Tables (-want, +got):\n%s", diff)
	}

	again, err := jnorm.Run(context.Background(), strings.NewReader(input), new(sink.Memory), &jnorm.Options{Name: "r"})
	if err != nil {
		t.Fatalf("Run again: unexpected error: %v", err)
	}
	if diff := cmp.Diff(sum, again); diff != "" {
		t.Errorf("Summaries differ (-first, +second):\n%s", diff)
	}

	if _, err := jnorm.Run(context.Background(), strings.NewReader(`[1, {"x_id": 1}]`), m, &jnorm.Options{Name: "x"}); !errors.Is(err, jnorm.ErrReservedColumn) {
		t.Errorf("Run: got %v, want %v", err, jnorm.ErrReservedColumn)
	}
}
