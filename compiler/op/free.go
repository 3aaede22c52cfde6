package op

// Destroy releases what the node owns. Links and children are left alone.
func Destroy(n *Node) {
	if n.Type == Freed {
		return
	}

	if x := n.Aux; x != nil {
		for i := range x.Items {
			x.Items[i] = Item{}
		}

		x.Items = nil
		x.Keys = nil

		n.Aux = nil
	}

	n.Val = nil
	n.Name = ""
	n.File = ""
	n.Label = ""
}

// FreeTree frees n and all its descendants.
// Kids are deferred on an explicit stack so deep trees don't grow the call stack.
// A referenced scope op only loses a reference.
func (st *State) FreeTree(root *Node) {
	if root == nil {
		return
	}

	stack := []*Node{root}

	for len(stack) != 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n.Type == Freed {
			continue
		}

		if n.Type == Leavesub && n.Refs > 0 {
			n.Refs--

			if n.Refs > 0 {
				continue
			}
		}

		for k := n.first; k != nil; {
			next := k.Sibling()
			stack = append(stack, k)
			k = next
		}

		Destroy(n)
		st.Free(n)
	}
}
