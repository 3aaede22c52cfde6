package compiler

import (
	"github.com/perl11/cperl-sub000/compiler/op"
	"github.com/perl11/cperl-sub000/compiler/set"
)

// Finalize checks that every reachable op has the shape its class requires.
// A broken op panics with an internal error.
func Finalize(root *op.Node) {
	var seen set.Bitmap

	stack := []*op.Node{root}

	for len(stack) != 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !seen.Mark(n.ID) {
			op.Panicf("finalize: %v#%d reached twice", n.Type, n.ID)
		}

		checkOp(n)

		for k := n.First(); k != nil; k = k.Sibling() {
			stack = append(stack, k)
		}
	}
}

func checkOp(n *op.Node) {
	if n.Type == op.Freed {
		op.Panicf("finalize: freed op #%d (ex-%v) is reachable", n.ID, n.Ex)
	}

	kids := n.NumKids()

	if (n.Flags&op.FlagKids != 0) != (kids != 0) {
		op.Panicf("finalize: %v#%d: kids flag does not match %d kids", n.Type, n.ID, kids)
	}

	var last *op.Node

	for k := n.First(); k != nil; k = k.Sibling() {
		last = k
	}

	if last != nil && last.Sib().Parent() != n {
		op.Panicf("finalize: %v#%d: last kid %v#%d does not lead back", n.Type, n.ID, last.Type, last.ID)
	}

	if n.Class().TracksLast() && n.Last() != last {
		op.Panicf("finalize: %v#%d: stale last kid", n.Type, n.ID)
	}

	if n.Type == op.Null {
		return
	}

	min, max := kidRange(n)

	if kids < min || max >= 0 && kids > max {
		op.Panicf("finalize: %v#%d (%v) has %d kids", n.Type, n.ID, n.Class(), kids)
	}

	switch n.Class() {
	case op.ClassLogop:
		if n.Other == nil {
			op.Panicf("finalize: %v#%d has no other", n.Type, n.ID)
		}
	case op.ClassAuxop:
		if n.Aux == nil || len(n.Aux.Items) == 0 {
			op.Panicf("finalize: %v#%d has no side table", n.Type, n.ID)
		}
	}
}

// kidRange is how many kids an op may have. max < 0 is unbounded.
func kidRange(n *op.Node) (min, max int) {
	switch n.Type {
	case op.CondExpr:
		return 3, 3
	case op.Leavesub:
		return 1, 1
	case op.Enteriter:
		return 2, 2
	case op.Lineseq, op.Scope:
		return 0, -1
	}

	switch n.Class() {
	case op.ClassBase, op.ClassPadop, op.ClassSvop, op.ClassCop, op.ClassFreed:
		return 0, 0
	case op.ClassUnop:
		return 0, 1
	case op.ClassBinop, op.ClassLogop:
		return 2, 2
	case op.ClassListop:
		return 1, -1
	case op.ClassAuxop:
		return 1, 1
	}

	return 0, -1
}
