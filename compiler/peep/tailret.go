package peep

import "github.com/perl11/cperl-sub000/compiler/op"

// tailReturn makes a return ending the sub body fall through into
// leavesub. The pushmark and the return leave the chain.
func (p *peeper) tailReturn(pm, prev *op.Node, slot **op.Node) (*op.Node, bool) {
	ret := pm.Parent()
	if ret == nil || ret.Type != op.Return || ret.First() != pm || ret.HasSibling() {
		return nil, false
	}

	seq := ret.Parent()
	if seq == nil || seq.Type != op.Lineseq {
		return nil, false
	}

	if leave := seq.Parent(); leave == nil || leave.Type != op.Leavesub {
		return nil, false
	}

	after := ret.Next()

	next := pm.Next()
	if next == ret {
		next = after
	}

	if last := ret.Last(); last != pm {
		last.SetNext(after)
	}

	pm.Neutralize()
	ret.Neutralize()

	relink(prev, slot, next)

	p.rewrite("tail_return", ret)

	return next, true
}
