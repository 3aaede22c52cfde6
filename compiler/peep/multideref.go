package peep

import (
	"github.com/perl11/cperl-sub000/compiler/op"
	"github.com/perl11/cperl-sub000/compiler/run"
)

type level struct {
	act  op.Action
	elem *op.Node
	key  *op.Node

	keyStr string
}

// multideref fuses the chain of container and element ops starting at s
// into one multideref op. The first pass matches and sizes the chain,
// the second fills the side table and cuts the old ops out.
//
// s is the only op of the chain something else may jump to, so it stays
// as a null kid of the new op. Everything else is freed.
func (p *peeper) multideref(s, prev *op.Node, slot **op.Node) *op.Node {
	levels, top, keys, err := p.mderefScan(s)
	if err != nil {
		p.fail(err)
		return nil
	}

	if levels == nil {
		return nil
	}

	aux := &op.Aux{
		Items: make([]op.Item, 0, len(levels)),
		Keys:  make([]byte, 0, keys),
	}

	for _, l := range levels {
		it := op.Item{Act: l.act}

		switch l.act.Kind() {
		case op.ActPadavAelem, op.ActPadhvHelem, op.ActPadsvRv2avAelem, op.ActPadsvRv2hvHelem:
			it.Targ = s.Targ
		case op.ActGvavAelem, op.ActGvhvHelem:
			it.Name = s.Name
		}

		switch {
		case l.key.Type == op.Padsv:
			it.Act |= op.IdxPadsv
			it.IdxTarg = l.key.Targ
		case l.act.Hash():
			it.Act |= op.IdxConst
			it.Key = len(aux.Keys)
			it.KeyLen = len(l.keyStr)
			aux.Keys = append(aux.Keys, l.keyStr...)
		default:
			it.Act |= op.IdxConst
			it.Index, _ = constInt(l.key)
		}

		aux.Items = append(aux.Items, it)
	}

	var priv op.Priv

	switch top.Type {
	case op.Exists:
		priv = op.PrivExists
	case op.Delete:
		priv = op.PrivDelete
	default:
		priv = top.Priv & (op.PrivDerefAV | op.PrivDerefHV)
	}

	par := s.Parent()
	op.Splice(par, s.Prev(par), 1, nil)

	for k := op.Splice(top, nil, -1, nil); k != nil; {
		next := k.Sibling()
		p.st.FreeTree(k)
		k = next
	}

	top.Retype(op.Multideref)
	top.Priv = priv
	top.Aux = aux

	op.Append(top, s)

	s.Neutralize()
	s.SetNext(top)

	relink(prev, slot, top)

	p.rewrite("multideref", top)

	if p.tr.If("mderef") {
		p.tr.Printw("multideref", "op", top, "levels", len(aux.Items), "keys", len(aux.Keys))
	}

	return top
}

// mderefScan matches the chain starting at s. It returns nil levels
// if there is nothing to fuse.
func (p *peeper) mderefScan(s *op.Node) (levels []level, top *op.Node, keys int, err error) {
	var act op.Action
	var elem *op.Node

	switch s.Type {
	case op.Padav, op.Padhv:
		if s.Flags&op.FlagRef == 0 || s.Priv&op.PrivIntro != 0 {
			return
		}

		act = op.ActPadavAelem
		if s.Type == op.Padhv {
			act = op.ActPadhvHelem
		}

		elem = s.Parent()
		if elem == nil || elem.First() != s {
			return
		}
	case op.Gv, op.Padsv:
		r := s.Parent()
		if r == nil || r.First() != s || s.Next() != r || r.Flags&op.FlagRef == 0 {
			return
		}

		hash := r.Type == op.Rv2hv

		switch {
		case r.Type != op.Rv2av && !hash:
			return
		case s.Type == op.Gv && hash:
			act = op.ActGvhvHelem
		case s.Type == op.Gv:
			act = op.ActGvavAelem
		case s.Priv&op.PrivIntro != 0 || s.Flags&op.FlagMod != 0:
			return
		case hash && s.Priv&op.PrivDerefHV != 0:
			act = op.ActPadsvRv2hvHelem
		case !hash && s.Priv&op.PrivDerefAV != 0:
			act = op.ActPadsvRv2avAelem
		default:
			return
		}

		elem = r.Parent()
		if elem == nil || elem.First() != r {
			return
		}

		s = r
	default:
		return
	}

	start := s
	var last *op.Node

	// stop ends the match before the current level.
	stop := func() ([]level, *op.Node, int, error) {
		if len(levels) == 0 {
			return nil, nil, 0, nil
		}

		return levels, last, keys, nil
	}

	for {
		if !elemOf(elem, act.Hash()) {
			return stop()
		}

		key := elem.Kid(1)
		if key == nil || s.Next() != key || key.Next() != elem {
			return stop()
		}

		l := level{act: act, elem: elem, key: key}

		switch {
		case plainPadsv(key):
		case key.Type != op.Const:
			return stop()
		case act.Hash():
			l.keyStr = run.NewConst(key.Val).String()
		default:
			i, ok := constInt(key)
			if !ok {
				return stop()
			}

			if act.Kind() == op.ActPadavAelem {
				in, err := p.inShape(start.Targ, i)
				if err != nil {
					return nil, nil, 0, err
				}

				if in {
					l.act |= op.ActUnchecked
				}
			}
		}

		if elem.Type == op.AelemU || elem.Type == op.Null && elem.Ex == op.AelemU {
			l.act |= op.ActUnchecked
		}

		if elem.Type == op.Null {
			top := elem.Parent()
			if top == nil || top.First() != elem || elem.Next() != top {
				return stop()
			}

			switch top.Type {
			case op.Exists, op.Delete:
			default:
				return stop()
			}

			return append(levels, l), top, keys + len(l.keyStr), nil
		}

		levels = append(levels, l)
		keys += len(l.keyStr)
		last = elem

		r := elem.Parent()

		if r == nil || r.First() != elem || elem.Next() != r || r.Flags&op.FlagRef == 0 {
			return levels, elem, keys, nil
		}

		switch {
		case r.Type == op.Rv2av && elem.Priv&op.PrivDerefAV != 0:
			act = op.ActRv2avAelem
		case r.Type == op.Rv2hv && elem.Priv&op.PrivDerefHV != 0:
			act = op.ActRv2hvHelem
		default:
			return levels, elem, keys, nil
		}

		next := r.Parent()
		if next == nil || next.First() != r {
			return levels, elem, keys, nil
		}

		s, elem = r, next
	}
}

// elemOf reports whether e is a live or neutralized element op of the kind.
func elemOf(e *op.Node, hash bool) bool {
	t := e.Type
	if t == op.Null {
		t = e.Ex
	}

	if hash {
		return t == op.Helem
	}

	return t == op.Aelem || t == op.AelemU
}
