// Copyright (C) 2023 Michael J. Fromberger. All Rights Reserved.

// Package escape handles quoting and unquoting of JSON strings.
package escape

import (
	"errors"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"go4.org/mem"
)

// AppendUnquote decodes src, the body of a JSON string with its enclosing
// quotation marks already removed, and appends the result to dst.
//
// Escape sequences are replaced with their unescaped equivalents. Invalid
// escapes are replaced by the Unicode replacement rune. A UTF-16 surrogate
// pair written as two \u escapes is combined into a single rune. An error is
// reported for an incomplete escape sequence.
func AppendUnquote(dst []byte, src mem.RO) ([]byte, error) {
	i := mem.IndexByte(src, '\\')
	if i < 0 {
		return mem.Append(dst, src), nil
	}

	for src.Len() != 0 {
		dst = mem.Append(dst, src.SliceTo(i))

		src = src.SliceFrom(i + 1)
		if src.Len() == 0 {
			return nil, errors.New("incomplete escape sequence")
		}
		r, n := mem.DecodeRune(src)
		if n == 0 {
			n++
		}
		src = src.SliceFrom(n)

		switch r {
		case '"', '\\', '/':
			dst = append(dst, byte(r))
		case 'b':
			dst = append(dst, '\b')
		case 'f':
			dst = append(dst, '\f')
		case 'n':
			dst = append(dst, '\n')
		case 'r':
			dst = append(dst, '\r')
		case 't':
			dst = append(dst, '\t')
		case 'u':
			if src.Len() < 4 {
				return nil, errors.New("incomplete Unicode escape")
			}
			v, err := parseHex(src.SliceTo(4))
			src = src.SliceFrom(4)
			if err != nil {
				dst = utf8.AppendRune(dst, utf8.RuneError)
				break
			}
			cp := rune(v)
			if utf16.IsSurrogate(cp) && src.Len() >= 6 && src.At(0) == '\\' && src.At(1) == 'u' {
				if lo, err := parseHex(src.Slice(2, 6)); err == nil {
					if dec := utf16.DecodeRune(cp, rune(lo)); dec != utf8.RuneError {
						cp = dec
						src = src.SliceFrom(6)
					}
				}
			}
			dst = utf8.AppendRune(dst, cp)
		default:
			dst = utf8.AppendRune(dst, utf8.RuneError)
		}

		i = mem.IndexByte(src, '\\')
		if i < 0 {
			dst = mem.Append(dst, src)
			break
		}
	}
	return dst, nil
}

// Unquote decodes src as for AppendUnquote into a new slice.
func Unquote(src mem.RO) ([]byte, error) {
	return AppendUnquote(make([]byte, 0, src.Len()), src)
}

func parseHex(data mem.RO) (int64, error) {
	var v int64
	for i := 0; i < data.Len(); i++ {
		b := data.At(i)
		v <<= 4
		if '0' <= b && b <= '9' {
			v += int64(b - '0')
		} else if 'a' <= b && b <= 'f' {
			v += int64(b - 'a' + 10)
		} else if 'A' <= b && b <= 'F' {
			v += int64(b - 'A' + 10)
		} else {
			return 0, fmt.Errorf("invalid hex digit %q", b)
		}
	}
	return v, nil
}
