package op

// Splice removes del siblings after start (or from the first child if start
// is nil) and inserts the insert chain in their place.
// del == -1 or more than there are removes all the rest.
// It returns the removed chain, sealed, or nil.
// Execution links are never touched and nothing is freed.
func Splice(parent, start *Node, del int, insert *Node) *Node {
	var first, rest, lastDel, lastIns *Node

	if del < -1 {
		Panicf("splice: bad count %d", del)
	}

	switch {
	case start != nil:
		first = start.Sibling()
	case parent == nil:
		Panicf("splice: nil parent")
	default:
		first = parent.first
	}

	if del != 0 && first != nil {
		lastDel = first

		for del--; del != 0 && lastDel.sib.more; del-- {
			lastDel = lastDel.sib.to
		}

		rest = lastDel.Sibling()
		lastDel.sib = Sib{}
	} else {
		rest = first
	}

	if insert != nil {
		lastIns = insert

		for lastIns.sib.more {
			lastIns = lastIns.sib.to
		}

		lastIns.sib = sibling(rest)
	} else {
		insert = rest
	}

	if start != nil {
		start.sib = sibling(insert)

		if insert == nil {
			if parent == nil {
				Panicf("splice: nil parent for new last child")
			}

			start.sib = parentOf(parent)
		}
	} else {
		parent.first = insert

		if insert != nil {
			parent.Flags |= FlagKids
		} else {
			parent.Flags &^= FlagKids
		}
	}

	if rest == nil {
		if parent == nil {
			Panicf("splice: nil parent for last child update")
		}

		last := lastIns
		if last == nil {
			last = start
		}

		if parent.Class().TracksLast() {
			parent.last = last
		}

		if last != nil {
			last.sib = parentOf(parent)
		}
	}

	if lastDel != nil {
		return first
	}

	return nil
}

// Append adds kid (a chain) as the last children of parent.
func Append(parent, kid *Node) *Node {
	Splice(parent, parent.Last(), 0, kid)

	return parent
}

// Prepend adds kid (a chain) as the first children of parent.
func Prepend(parent, kid *Node) *Node {
	Splice(parent, nil, 0, kid)

	return parent
}

// Replace puts repl in place of old under parent and returns old detached.
func Replace(parent, old, repl *Node) *Node {
	return Splice(parent, old.Prev(parent), 1, repl)
}

// Detach cuts n out of its parent.
func Detach(n *Node) *Node {
	p := n.Parent()
	if p == nil {
		Panicf("detach: %v#%d has no parent", n.Type, n.ID)
	}

	return Splice(p, n.Prev(p), 1, nil)
}

// Merge moves the kids of last to the end of first and frees last.
// Both must be of the same type.
func (st *State) Merge(first, last *Node) *Node {
	switch {
	case first == nil:
		return last
	case last == nil:
		return first
	case first.Type != last.Type:
		Panicf("merge: %v and %v", first.Type, last.Type)
	}

	kids := Splice(last, nil, -1, nil)
	if kids != nil {
		Append(first, kids)
	}

	Destroy(last)
	st.Free(last)

	return first
}

// Wrap puts a new unary op of type t between parent and kid.
func (st *State) Wrap(parent, kid *Node, t Type) *Node {
	after := kid.Prev(parent)

	Splice(parent, after, 1, nil)

	w := st.New(t, kid.Flags&FlagWant)
	Splice(w, nil, 0, kid)

	Splice(parent, after, 0, w)

	return w
}
