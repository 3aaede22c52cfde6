package peep

import (
	"github.com/perl11/cperl-sub000/compiler/op"
	"github.com/perl11/cperl-sub000/compiler/run"
)

// logop threads the false path of o past nulls and ops which would
// take the same path again.
func (p *peeper) logop(o *op.Node) {
	skipNulls(&o.Other)

	for n := o.Next(); n != nil && n != o && (n.Type == o.Type || transparent(n)); n = o.Next() {
		o.SetNext(n.Next())

		if n.Type == o.Type {
			p.rewrite("thread", o)
		}
	}

	n := o.Next()
	if n == nil || n.Want() != op.WantVoid || n.Other == nil {
		return
	}

	if o.Type == op.And && n.Type == op.Or || o.Type == op.Or && n.Type == op.And {
		o.SetNext(n.Other)
		p.rewrite("thread", o)
	}
}

// shortCircuit removes a logop whose first operand is the constant c.
// Either c survives and the branch is dropped, or the branch takes
// the place of both.
func (p *peeper) shortCircuit(c, prev *op.Node, slot **op.Node) (next *op.Node, keep, ok bool) {
	l := c.Next()
	if l == nil || l.First() != c {
		return nil, false, false
	}

	switch l.Type {
	case op.And, op.Or, op.Dor:
	default:
		return nil, false, false
	}

	v := run.NewConst(c.Val)

	var first bool

	switch l.Type {
	case op.And:
		first = !v.Truth()
	case op.Or:
		first = v.Truth()
	case op.Dor:
		first = v.Defined()
	}

	l.Neutralize()
	l.Priv |= op.PrivShortCircuit

	p.rewrite("short_circuit", l)

	if first {
		c.Priv |= op.PrivShortCircuit

		return l, true, true
	}

	c.Neutralize()

	relink(prev, slot, l.Other)

	return l.Other, false, true
}

// notLogop drops a not in front of a void and/or by flipping it.
func (p *peeper) notLogop(n, prev *op.Node, slot **op.Node) (*op.Node, bool) {
	l := n.Next()
	if l == nil || l.First() != n || l.Want() != op.WantVoid {
		return nil, false
	}

	switch l.Type {
	case op.And:
		l.Retype(op.Or)
	case op.Or:
		l.Retype(op.And)
	default:
		return nil, false
	}

	n.Neutralize()
	relink(prev, slot, l)

	p.rewrite("not", l)

	return l, true
}
