package parse

import (
	"context"

	"tlog.app/go/errors"

	"github.com/perl11/cperl-sub000/compiler/ast"
)

type (
	Num struct{}
)

// Parse reads a signed decimal integer or float.
// Based literals are accepted for integers: 0x, 0o, 0b.
func (p Num) Parse(ctx context.Context, b []byte, st int) (x ast.Node, i int, err error) {
	i = st

	if i < len(b) && (b[i] == '-' || b[i] == '+') {
		i++
	}

	if i+1 < len(b) && b[i] == '0' {
		switch b[i+1] {
		case 'x', 'X', 'o', 'O', 'b', 'B':
			i += 2

			dst := i

			for i < len(b) && (identChar(b[i])) {
				i++
			}

			if i == dst {
				return nil, st, errors.New("Num expected")
			}

			return ast.Int{Base: ast.Base{Pos: st, End: i}}, i, nil
		}
	}

	dst := i
	dot := false
	exp := false

loop:
	for ; i < len(b); i++ {
		switch {
		case b[i] >= '0' && b[i] <= '9':
		case !dot && !exp && b[i] == '.':
			dot = true
		case !exp && i != dst && (b[i] == 'e' || b[i] == 'E'):
			exp = true

			if i+1 < len(b) && (b[i+1] == '-' || b[i+1] == '+') {
				i++
			}
		default:
			break loop
		}
	}

	if i == dst || i == dst+1 && b[dst] == '.' {
		return nil, st, errors.New("Num expected")
	}

	if i < len(b) && identChar(b[i]) {
		return nil, st, errors.New("Num expected")
	}

	base := ast.Base{
		Pos: st,
		End: i,
	}

	if dot || exp {
		x = ast.Float{
			Base: base,
		}
	} else {
		x = ast.Int{
			Base: base,
		}
	}

	return
}
