// Copyright (C) 2023 Michael J. Fromberger. All Rights Reserved.

package escape_test

import (
	"testing"

	"github.com/creachadair/jnorm/internal/escape"
	"go4.org/mem"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"", `""`},
		{"abc", `"abc"`},
		{`a "b" c`, `"a \"b\" c"`},
		{`back\slash`, `"back\\slash"`},
		{"tab\there\nnewline", `"tab\there\nnewline"`},
		{"\x00\x1f", `"\u0000\u001f"`},
		{"caf\u00e9", "\"caf\u00e9\""},
		{"line\u2028sep", `"line\u2028sep"`},
		{"bad\xffbyte", `"bad\ufffdbyte"`},
	}
	for _, test := range tests {
		got := string(escape.Quote(mem.S(test.input)))
		if got != test.want {
			t.Errorf("Quote(%q): got %#q, want %#q", test.input, got, test.want)
		}
	}
}

func TestAppendQuote(t *testing.T) {
	buf := []byte("key:")
	buf = escape.AppendQuote(buf, mem.S("v"))
	if got, want := string(buf), `key:"v"`; got != want {
		t.Errorf("AppendQuote: got %#q, want %#q", got, want)
	}
}

func TestUnquote(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"", ""},
		{"plain text", "plain text"},
		{`a\"b`, `a"b`},
		{`\\\/\b\f\n\r\t`, "\\/\b\f\n\r\t"},
		{`A\u00e9`, "A\u00e9"},
		{`\ud83d\ude00`, "\U0001F600"},
		{`\ud83d!`, "\ufffd!"},
		{`\uzzzz`, "\ufffd"},
		{`\q`, "\ufffd"},
	}
	for _, test := range tests {
		got, err := escape.Unquote(mem.S(test.input))
		if err != nil {
			t.Errorf("Unquote(%#q): unexpected error: %v", test.input, err)
			continue
		}
		if string(got) != test.want {
			t.Errorf("Unquote(%#q): got %q, want %q", test.input, got, test.want)
		}
	}
}

func TestUnquoteErrors(t *testing.T) {
	for _, input := range []string{`\`, `abc\`, `\u12`, `x\u`} {
		if got, err := escape.Unquote(mem.S(input)); err == nil {
			t.Errorf("Unquote(%#q): got %q, wanted error", input, got)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, s := range []string{"", "a", "\"\\\n", "\u00fc \U0001F600", "x\x01y"} {
		q := escape.Quote(mem.S(s))
		u, err := escape.Unquote(mem.B(q[1 : len(q)-1]))
		if err != nil {
			t.Errorf("Unquote(%s): %v", q, err)
		} else if string(u) != s {
			t.Errorf("Round trip %q: got %q", s, u)
		}
	}
}
