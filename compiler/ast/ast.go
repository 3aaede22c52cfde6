// Package ast has the syntax nodes of op-tree listings.
package ast

type (
	Node interface {
	}

	Base struct {
		Pos int
		End int
	}

	// List is a parenthesized form.
	List struct {
		Base `tlog:",embed"`

		Items []Node
	}

	// Atom is a bare word: an op name, a modifier or a :label.
	Atom struct {
		Base `tlog:",embed"`
	}

	// Var is a sigiled name: $x, @a, %h.
	Var struct {
		Base `tlog:",embed"`
	}

	Str struct {
		Base `tlog:",embed"`

		Val string
	}

	Int struct {
		Base `tlog:",embed"`
	}

	Float struct {
		Base `tlog:",embed"`
	}
)

func (b Base) Text(src []byte) string {
	return string(src[b.Pos:b.End])
}

func (b Base) Span() Base { return b }

// Head returns the atom heading the list, if any.
func (l List) Head(src []byte) string {
	if len(l.Items) == 0 {
		return ""
	}

	a, ok := l.Items[0].(Atom)
	if !ok {
		return ""
	}

	return a.Text(src)
}
