package parse

import (
	"context"

	"tlog.app/go/errors"

	"github.com/perl11/cperl-sub000/compiler/ast"
)

type (
	// Form is any listing element.
	Form struct{}

	// List is a parenthesized sequence of forms.
	List struct{}

	Items struct {
		Of Parser
	}
)

var form = AnyOf{List{}, Str{}, Num{}, Var{}, Atom{}}

func (Form) Parse(ctx context.Context, b []byte, st int) (x ast.Node, i int, err error) {
	return form.Parse(ctx, b, st)
}

func (List) Parse(ctx context.Context, b []byte, st int) (x ast.Node, i int, err error) {
	p := Context{
		Pre:  Const("("),
		Of:   Items{Of: Form{}},
		Post: Const(")"),
	}

	x, i, err = p.Parse(ctx, b, st)
	if err != nil {
		return nil, i, err
	}

	l := x.(ast.List)
	l.Pos = st
	l.End = i

	return l, i, nil
}

// Parse reads forms up to the closing paren, which is left unread.
func (p Items) Parse(ctx context.Context, b []byte, st int) (x ast.Node, i int, err error) {
	var l ast.List

	i = st

	for {
		j := SpaceAll.Skip(b, i)

		if j == len(b) {
			return nil, j, IncompleteError{Pos: st - 1}
		}

		if b[j] == ')' {
			return l, j, nil
		}

		x, k, err := p.Of.Parse(ctx, b, j)
		if err != nil {
			if IsIncomplete(err) {
				return nil, k, err
			}

			return nil, k, errors.Wrap(err, "item %d", len(l.Items))
		}

		if k == j {
			return nil, j, errors.New("unexpected %q", b[j])
		}

		l.Items = append(l.Items, x)
		i = k
	}
}
