package parse

import (
	"bytes"
	"context"
	"strings"
	"unicode/utf8"

	"tlog.app/go/errors"

	"github.com/perl11/cperl-sub000/compiler/ast"
)

type (
	Const []byte

	Ident []byte

	// Atom parses bare words and :labels.
	Atom struct{}

	// Var parses $scalar, @array and %hash names.
	Var struct{}

	// Str parses a double quoted string with backslash escapes.
	Str struct{}
)

func (p Const) Parse(ctx context.Context, b []byte, st int) (x ast.Node, i int, err error) {
	if bytes.HasPrefix(b[st:], p) {
		return Const(b[st : st+len(p)]), st + len(p), nil
	}

	return nil, st, errors.New("%q expected", []byte(p))
}

func (p Ident) Parse(ctx context.Context, b []byte, st int) (x ast.Node, i int, err error) {
	if st == len(b) {
		return nil, st, errors.New("Ident expected")
	}

	i = st

	c := b[i]

	switch {
	case c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_':
		i++
	default:
		return nil, st, errors.New("Ident expected")
	}

loop:
	for i < len(b) {
		c := b[i]

		switch {
		case identChar(c):
			i++
		case c >= utf8.RuneSelf:
			if r, w := utf8.DecodeRune(b[i:]); r == utf8.RuneError {
				return nil, i, errors.New("bad rune")
			} else {
				i += w
			}
		default:
			break loop
		}
	}

	return Ident(b[st:i]), i, nil
}

func (Atom) Parse(ctx context.Context, b []byte, st int) (x ast.Node, i int, err error) {
	i = st

	if i < len(b) && b[i] == ':' {
		i++
	}

	_, i, err = Ident{}.Parse(ctx, b, i)
	if err != nil {
		return nil, st, errors.New("Atom expected")
	}

	return ast.Atom{Base: ast.Base{Pos: st, End: i}}, i, nil
}

func (Var) Parse(ctx context.Context, b []byte, st int) (x ast.Node, i int, err error) {
	if st == len(b) || strings.IndexByte("$@%", b[st]) < 0 {
		return nil, st, errors.New("Var expected")
	}

	_, i, err = Ident{}.Parse(ctx, b, st+1)
	if err != nil {
		return nil, i, errors.Wrap(err, "var name")
	}

	return ast.Var{Base: ast.Base{Pos: st, End: i}}, i, nil
}

func (Str) Parse(ctx context.Context, b []byte, st int) (x ast.Node, i int, err error) {
	if st == len(b) || b[st] != '"' {
		return nil, st, errors.New("Str expected")
	}

	var val []byte

	for i = st + 1; i < len(b); i++ {
		c := b[i]

		switch c {
		case '"':
			return ast.Str{Base: ast.Base{Pos: st, End: i + 1}, Val: string(val)}, i + 1, nil
		case '\\':
			i++
			if i == len(b) {
				return nil, i, IncompleteError{Pos: st}
			}

			switch c = b[i]; c {
			case 'n':
				c = '\n'
			case 't':
				c = '\t'
			case '0':
				c = 0
			case 'e':
				c = 0x1b
			}
		}

		val = append(val, c)
	}

	return nil, i, IncompleteError{Pos: st}
}

func identChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}
