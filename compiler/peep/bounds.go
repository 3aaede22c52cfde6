package peep

import (
	"fmt"

	"tlog.app/go/errors"

	"github.com/perl11/cperl-sub000/compiler/op"
	"github.com/perl11/cperl-sub000/compiler/run"
)

// loopBounds turns element accesses indexed by the loop variable into
// unchecked ones when the loop range provably stays inside a shaped array.
// The range end is either a constant or $#a of the same shaped array.
func (p *peeper) loopBounds(ent *op.Node) {
	lo, hi := ent.Kid(0), ent.Kid(1)
	if lo == nil || hi == nil {
		return
	}

	if l, ok := constInt(lo); !ok || l < 0 {
		return
	}

	limit, arr := int64(-1), 0

	if h, ok := constInt(hi); ok {
		limit = h
	} else if hi.Type == op.Av2arylen {
		av := hi.First()
		if av == nil || av.Type != op.Padav {
			return
		}

		shape := p.st.Pad.Shape(av.Targ)
		if shape < 0 {
			return
		}

		arr, limit = av.Targ, int64(shape-1)
	} else {
		return
	}

	body := loopBody(ent)
	if body == nil {
		return
	}

	v := ent.Targ

	var elems, fused []*op.Node

	stack := []*op.Node{body}

	for len(stack) != 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch n.Type {
		case op.Padsv:
			if n.Targ == v && (n.Flags&(op.FlagMod|op.FlagRef) != 0 || n.Priv&(op.PrivIntro|op.PrivDerefAV|op.PrivDerefHV) != 0) {
				return
			}
		case op.Padrange:
			if v >= n.Targ && v < n.Targ+n.Count {
				return
			}
		case op.Enteriter:
			if n.Targ == v {
				return
			}
		case op.Aelem:
			if p.loopElem(n.First(), n.Kid(1), v, arr, limit) {
				elems = append(elems, n)
			}
		case op.Multideref:
			fused = append(fused, n)
		}

		for k := n.First(); k != nil; k = k.Sibling() {
			stack = append(stack, k)
		}
	}

	for _, e := range elems {
		e.Retype(op.AelemU)
		p.rewrite("bounds", e)
	}

	for _, m := range fused {
		for i, it := range m.Aux.Items {
			if it.Act.Kind() != op.ActPadavAelem || it.Act.Index() != op.IdxPadsv || it.IdxTarg != v {
				continue
			}

			if arr != 0 && it.Targ != arr || int64(p.st.Pad.Shape(it.Targ)-1) < limit {
				continue
			}

			m.Aux.Items[i].Act |= op.ActUnchecked
			p.rewrite("bounds", m)
		}
	}

	if p.tr.If("bounds") {
		p.tr.Printw("loop bounds", "loop", ent, "limit", limit, "elems", len(elems), "fused", len(fused))
	}
}

func (p *peeper) loopElem(c, ix *op.Node, v, arr int, limit int64) bool {
	if c == nil || ix == nil || c.Type != op.Padav || !plainPadsv(ix) || ix.Targ != v {
		return false
	}

	if arr != 0 && c.Targ != arr {
		return false
	}

	shape := p.st.Pad.Shape(c.Targ)

	return shape >= 0 && limit <= int64(shape-1)
}

// constIndex checks a constant index into a shaped array at compile time.
func (p *peeper) constIndex(e *op.Node) {
	c, ix := e.First(), e.Kid(1)
	if c == nil || ix == nil || c.Type != op.Padav {
		return
	}

	i, ok := constInt(ix)
	if !ok {
		return
	}

	in, err := p.inShape(c.Targ, i)
	if err != nil {
		p.fail(err)
		return
	}

	if in {
		e.Retype(op.AelemU)
		p.rewrite("bounds", e)
	}
}

// inShape reports whether i is a valid index of the shaped array at targ.
// An index outside of it is a compile error.
func (p *peeper) inShape(targ int, i int64) (bool, error) {
	shape := int64(p.st.Pad.Shape(targ))
	if shape < 0 {
		return false, nil
	}

	j := i
	if j < 0 {
		j += shape
	}

	if j < 0 || j >= shape {
		return false, p.errorf("Array index out of bounds %s[%d]", p.st.Pad.Names[targ].Name, i)
	}

	return true, nil
}

func (p *peeper) errorf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)

	if p.cop != nil && p.cop.File != "" {
		return errors.New("%s at %s line %d.", msg, p.cop.File, p.cop.Line)
	}

	return errors.New("%s", msg)
}

func (p *peeper) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

// loopBody finds the statements of the loop entered by ent.
func loopBody(ent *op.Node) *op.Node {
	leave := ent.Parent()
	if leave == nil || leave.Type != op.Leaveloop {
		return nil
	}

	wrap := leave.Kid(1)
	if wrap == nil || wrap.First() == nil {
		return nil
	}

	l := wrap.First()
	if l.Class() != op.ClassLogop {
		return nil
	}

	return l.Kid(1)
}

func constInt(n *op.Node) (int64, bool) {
	if n.Type != op.Const {
		return 0, false
	}

	v, ok := run.NewConst(n.Val).V.(int64)

	return v, ok
}

// plainPadsv is a lexical scalar read with no side effects.
func plainPadsv(n *op.Node) bool {
	return n.Type == op.Padsv &&
		n.Flags&(op.FlagMod|op.FlagRef) == 0 &&
		n.Priv&(op.PrivIntro|op.PrivDerefAV|op.PrivDerefHV) == 0
}
