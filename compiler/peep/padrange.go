package peep

import "github.com/perl11/cperl-sub000/compiler/op"

// padrange turns
//
//	pushmark -> padsv[$a] intro -> padsv[$b] intro -> list (void)
//
// into a single padrange introducing the contiguous slots, and folds
// following declarations into it across unlabelled statements.
func (p *peeper) padrange(pm *op.Node) {
	list, targ, n := introRun(pm)
	if list == nil || n < 2 || n > p.st.Tune.PadrangeMax {
		return
	}

	for k := pm.Next(); k != list; k = k.Next() {
		k.Neutralize()
	}

	pm.Retype(op.Padrange)
	pm.Targ = targ
	pm.Count = n
	pm.Priv |= op.PrivIntro
	pm.SetWant(op.WantVoid)
	pm.SetNext(list)

	p.rewrite("padrange", pm)

	for {
		ns := list.Next()
		if ns == nil || ns.Type != op.Nextstate || ns.Label != "" {
			return
		}

		pm2 := ns.Next()
		if pm2 == nil || pm2.Type != op.Pushmark || pm2.Processed() {
			return
		}

		list2, targ2, n2 := introRun(pm2)
		if list2 == nil || targ2 != pm.Targ+pm.Count || pm.Count+n2 > p.st.Tune.PadrangeMax {
			return
		}

		for k := pm2; k != list2; k = k.Next() {
			k.Neutralize()
		}

		list2.Neutralize()

		pm.Count += n2
		ns.SetNext(list2.Next())

		p.rewrite("padrange_merge", pm)
	}
}

// introRun matches a pushmark followed by declarations of contiguous
// slots filling a void list.
func introRun(pm *op.Node) (list *op.Node, targ, n int) {
	list = pm.Parent()
	if list == nil || list.Type != op.List || list.Want() != op.WantVoid || list.First() != pm {
		return nil, 0, 0
	}

	k := pm.Next()

	for ; k != nil && k != list; k = k.Next() {
		switch k.Type {
		case op.Padsv, op.Padav, op.Padhv:
		default:
			return nil, 0, 0
		}

		if k.Priv&op.PrivIntro == 0 || k.Parent() != list || k.Flags&op.FlagRef != 0 {
			return nil, 0, 0
		}

		if n == 0 {
			targ = k.Targ
		} else if k.Targ != targ+n {
			return nil, 0, 0
		}

		n++
	}

	if k != list {
		return nil, 0, 0
	}

	return list, targ, n
}
