// Package format renders op trees and execution chains for people and tools.
package format

import (
	"github.com/nikandfor/hacked/hfmt"

	"github.com/perl11/cperl-sub000/compiler/op"
	"github.com/perl11/cperl-sub000/compiler/run"
	"github.com/perl11/cperl-sub000/compiler/set"
)

var flagNames = []struct {
	f    op.Flags
	name string
}{
	{op.FlagKids, "KIDS"},
	{op.FlagParens, "PARENS"},
	{op.FlagRef, "REF"},
	{op.FlagMod, "MOD"},
	{op.FlagStacked, "STACKED"},
	{op.FlagSpecial, "SPECIAL"},
}

var privNames = []struct {
	p    op.Priv
	name string
}{
	{op.PrivIntro, "intro"},
	{op.PrivDerefAV, "deref_av"},
	{op.PrivDerefHV, "deref_hv"},
	{op.PrivTrueBool, "bool"},
	{op.PrivMaybeTrueBool, "maybe_bool"},
	{op.PrivExists, "exists"},
	{op.PrivDelete, "delete"},
	{op.PrivShortCircuit, "short"},
	{op.PrivFolded, "folded"},
	{op.PrivLocale, "locale"},
}

// Tree appends the tree under root, one op per line, kids indented with tabs.
func Tree(b []byte, root *op.Node) []byte {
	type frame struct {
		n *op.Node
		d int
	}

	stack := []frame{{root, 0}}

	for len(stack) != 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.n == nil {
			continue
		}

		b = app(b, f.d, "")
		b = Node(b, f.n)
		b = append(b, '\n')

		kids := f.n.Kids()

		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{kids[i], f.d + 1})
		}
	}

	return b
}

// Chain appends the ops in execution order starting from start.
// Branches are listed after the main path. Every op is listed once,
// a jump back to a listed op is shown as goto.
func Chain(b []byte, start *op.Node) []byte {
	var seen set.Bitmap

	queue := []*op.Node{start}

	for q := 0; q < len(queue); q++ {
		if q != 0 {
			b = hfmt.Appendf(b, "branch #%d:\n", queue[q].ID)
		}

		for n := queue[q]; n != nil; n = n.Next() {
			if !seen.Mark(n.ID) {
				b = app(b, 1, "goto #%d\n", n.ID)
				break
			}

			b = app(b, 1, "")
			b = Node(b, n)

			if n.Other != nil {
				b = hfmt.Appendf(b, " other #%d", n.Other.ID)
				queue = append(queue, n.Other)
			}

			b = append(b, '\n')
		}
	}

	return b
}

// Node appends a one line description of n.
func Node(b []byte, n *op.Node) []byte {
	if n.Type == op.Null && n.Ex != op.Null {
		b = hfmt.Appendf(b, "ex-%v #%d", n.Ex, n.ID)
	} else {
		b = hfmt.Appendf(b, "%v #%d", n.Type, n.ID)
	}

	if w := n.Want(); w != op.WantUnknown {
		b = hfmt.Appendf(b, " %v", w)
	}

	b = flags(b, n)

	switch n.Class() {
	case op.ClassPadop:
		if n.Type == op.Padrange {
			b = hfmt.Appendf(b, " targ %d..%d", n.Targ, n.Targ+n.Count-1)
		} else if n.Targ != 0 {
			b = hfmt.Appendf(b, " targ %d", n.Targ)
		}
	case op.ClassSvop:
		switch {
		case n.Name != "":
			b = hfmt.Appendf(b, " *%s", n.Name)
		case n.Val != nil:
			b = value(b, n.Val)
		}
	case op.ClassCop:
		if n.Label != "" {
			b = hfmt.Appendf(b, " %s:", n.Label)
		}

		b = hfmt.Appendf(b, " line %d", n.Line)
	case op.ClassLoop:
		if n.Targ != 0 {
			b = hfmt.Appendf(b, " targ %d", n.Targ)
		}
	case op.ClassAuxop:
		b = aux(b, n.Aux)
	}

	return b
}

func flags(b []byte, n *op.Node) []byte {
	open := false

	sep := func() {
		if open {
			b = append(b, ',')
		} else {
			b = append(b, " ["...)
			open = true
		}
	}

	for _, f := range flagNames {
		if n.Flags&f.f != 0 {
			sep()
			b = append(b, f.name...)
		}
	}

	for _, p := range privNames {
		if n.Priv&p.p != 0 {
			sep()
			b = append(b, p.name...)
		}
	}

	if open {
		b = append(b, ']')
	}

	return b
}

func value(b []byte, v any) []byte {
	s, ok := v.(*run.Scalar)
	if !ok {
		return hfmt.Appendf(b, " (%v)", v)
	}

	switch x := s.V.(type) {
	case nil:
		return append(b, " (undef)"...)
	case string:
		return hfmt.Appendf(b, " (%q)", x)
	}

	return hfmt.Appendf(b, " (%v)", s.String())
}

func aux(b []byte, x *op.Aux) []byte {
	if x == nil {
		return append(b, " <no aux>"...)
	}

	for i, it := range x.Items {
		if i == 0 {
			b = append(b, ' ')
		} else {
			b = append(b, "->"...)
		}

		b = append(b, it.Act.String()...)

		switch {
		case it.Name != "":
			b = hfmt.Appendf(b, "(*%s)", it.Name)
		case it.Act.Start():
			b = hfmt.Appendf(b, "(t%d)", it.Targ)
		}

		switch it.Act.Index() {
		case op.IdxConst:
			if it.Act.Hash() {
				b = hfmt.Appendf(b, "{%q}", x.KeyAt(it))
			} else {
				b = hfmt.Appendf(b, "[%d]", it.Index)
			}
		case op.IdxPadsv:
			b = hfmt.Appendf(b, "[t%d]", it.IdxTarg)
		}
	}

	return b
}

func app(b []byte, d int, f string, args ...any) []byte {
	const tabs = "\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t"

	for d > len(tabs) {
		b = append(b, tabs...)
		d -= len(tabs)
	}

	b = append(b, tabs[:d]...)
	b = hfmt.Appendf(b, f, args...)

	return b
}
