package op

// Linearize threads the execution chain of the subtree at root and returns
// its start. Linked subtrees are skipped, so calling it again is a no-op.
//
// A finished subtree is left floating: the root's next points to the start
// of the subtree, a leaf points to itself. Embedding into the parent
// overwrites it with the real successor.
func Linearize(root *Node) *Node {
	o := root

	for {
		if o.next == nil {
			if o.first != nil {
				o = o.first
				continue
			}

			o.Float(o)
		}

		if o == root {
			return o.next
		}

		if o.sib.more {
			o = o.sib.to
			continue
		}

		o = o.sib.to
		if o == nil {
			Panicf("linearize: %v#%d: lost parent", root.Type, root.ID)
		}

		if o.next != nil {
			Panicf("linearize: %v#%d: parent already linked", o.Type, o.ID)
		}

		link(o)
	}
}

// link chains the linked kids of o and sets o floating at the start of the first one.
func link(o *Node) {
	prev := o

	for k := o.first; k != nil; k = k.Sibling() {
		if prev == o {
			o.Float(k.next)
		} else {
			prev.SetNext(k.next)
		}

		prev = k
	}

	if prev == o {
		o.Float(o)
		return
	}

	prev.SetNext(o)
}
