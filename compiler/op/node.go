package op

import (
	"tlog.app/go/tlog/tlwire"

	"github.com/perl11/cperl-sub000/compiler/config"
)

type (
	// Node is one op. Structural links (first, last, sib) describe the tree,
	// next and Other describe execution order.
	Node struct {
		Type  Type
		Ex    Type // type before the node was neutralized
		Flags Flags
		Priv  Priv
		Targ  int

		first *Node
		last  *Node
		sib   Sib

		next *Node
		real bool

		Other *Node

		Val   any
		Aux   *Aux
		Name  string
		File  string
		Line  int
		Label string
		Count int

		Refs int32

		ID int

		processed bool
		pinned    bool
		static    bool

		slab *slab
		size int
	}

	// Sib is either the next sibling or, for the last child, the parent.
	Sib struct {
		to   *Node
		more bool
	}

	State struct {
		Group *Group
		Pad   *Pad
		Tune  config.Tuning

		Cop  *Node
		File string

		// Warn receives compile-time and folding warnings.
		// A non-nil error escalates the warning.
		Warn func(msg string) error

		seq   int
		snaps []Snapshot
	}

	Snapshot struct {
		Cop  *Node
		Warn func(msg string) error
	}

	Pad struct {
		Names []PadName
	}

	PadName struct {
		Name  string
		Shape int // fixed size of a shaped array, -1 if none
	}
)

func NewState(g *Group, tune config.Tuning) *State {
	return &State{
		Group: g,
		Pad:   NewPad(),
		Tune:  tune,
	}
}

// Push saves the statement tracker and warning hook.
func (st *State) Push() {
	st.snaps = append(st.snaps, Snapshot{Cop: st.Cop, Warn: st.Warn})
}

func (st *State) Pop() {
	l := len(st.snaps)
	if l == 0 {
		Panicf("state snapshot stack underflow")
	}

	s := st.snaps[l-1]
	st.snaps = st.snaps[:l-1]

	st.Cop = s.Cop
	st.Warn = s.Warn
}

func (st *State) Depth() int { return len(st.snaps) }

// New allocates a node of type t.
func (st *State) New(t Type, fl Flags) *Node {
	n := st.Alloc(t.Info().Size)

	st.seq++

	n.Type = t
	n.Flags = fl
	n.ID = st.seq

	return n
}

func NewPad() *Pad {
	return &Pad{Names: []PadName{{Shape: -1}}}
}

// Add reserves a pad slot. Slot 0 is never handed out.
func (p *Pad) Add(name string, shape int) int {
	p.Names = append(p.Names, PadName{Name: name, Shape: shape})

	return len(p.Names) - 1
}

// Find returns the most recent slot with the name or 0.
func (p *Pad) Find(name string) int {
	for i := len(p.Names) - 1; i > 0; i-- {
		if p.Names[i].Name == name {
			return i
		}
	}

	return 0
}

func (p *Pad) Sigil(targ int) byte {
	if targ <= 0 || targ >= len(p.Names) || p.Names[targ].Name == "" {
		return 0
	}

	return p.Names[targ].Name[0]
}

func (p *Pad) Shape(targ int) int {
	if targ <= 0 || targ >= len(p.Names) {
		return -1
	}

	return p.Names[targ].Shape
}

func (s Sib) Sibling() *Node {
	if s.more {
		return s.to
	}

	return nil
}

func (s Sib) Parent() *Node {
	if s.more {
		return nil
	}

	return s.to
}

func (s Sib) More() bool { return s.more }

func sibling(n *Node) Sib { return Sib{to: n, more: n != nil} }
func parentOf(n *Node) Sib { return Sib{to: n} }

func (n *Node) First() *Node { return n.first }
func (n *Node) Sib() Sib     { return n.sib }

func (n *Node) Sibling() *Node { return n.sib.Sibling() }

func (n *Node) HasSibling() bool { return n.sib.more }

// Last returns the last child, tracked or found by walking.
func (n *Node) Last() *Node {
	if n.Class().TracksLast() {
		return n.last
	}

	k := n.first
	if k == nil {
		return nil
	}

	for k.sib.more {
		k = k.sib.to
	}

	return k
}

// Parent walks to the last sibling and returns the parent it points to.
func (n *Node) Parent() *Node {
	k := n

	for k.sib.more {
		k = k.sib.to
	}

	return k.sib.to
}

// Prev returns the previous sibling of n under parent p.
func (n *Node) Prev(p *Node) *Node {
	var prev *Node

	for k := p.first; k != nil && k != n; k = k.Sibling() {
		prev = k
	}

	return prev
}

func (n *Node) Kids() (l []*Node) {
	for k := n.first; k != nil; k = k.Sibling() {
		l = append(l, k)
	}

	return l
}

func (n *Node) NumKids() (c int) {
	for k := n.first; k != nil; k = k.Sibling() {
		c++
	}

	return c
}

// Kid returns the i-th child or nil.
func (n *Node) Kid(i int) *Node {
	k := n.first

	for ; k != nil && i > 0; i-- {
		k = k.Sibling()
	}

	return k
}

func (n *Node) Next() *Node { return n.next }

// SetNext makes next the real successor of n.
func (n *Node) SetNext(next *Node) {
	n.next = next
	n.real = true
}

// Embedded reports whether next is the real successor rather than the start
// of the floating subtree.
func (n *Node) Embedded() bool { return n.real }

// Start is the first op executed for the floating subtree rooted at n.
func (n *Node) Start() *Node {
	if n.real {
		Panicf("start of embedded op %v#%d", n.Type, n.ID)
	}

	return n.next
}

// Float marks n as a floating subtree starting at start.
// Constructors that link their kids by hand use it.
func (n *Node) Float(start *Node) {
	n.next = start
	n.real = false
}

func (n *Node) Processed() bool { return n.processed }
func (n *Node) SetProcessed()   { n.processed = true }
func (n *Node) ClearProcessed() { n.processed = false }

func (n *Node) Pinned() bool { return n.pinned }
func (n *Node) Static() bool { return n.static }
func (n *Node) Size() int    { return n.size }

func (n *Node) Want() Want { return Want(n.Flags & FlagWant) }

func (n *Node) SetWant(w Want) {
	n.Flags = n.Flags&^FlagWant | Flags(w)
}

// Class is the class of the node, or of the original op for a neutralized one.
func (n *Node) Class() Class {
	if n.Type == Null && n.Ex != Null {
		return n.Ex.Info().Class
	}

	return n.Type.Info().Class
}

// IsNull reports whether n is a null op, optionally an ex-t one.
func (n *Node) IsNull(ex ...Type) bool {
	if n.Type != Null {
		return false
	}

	if len(ex) == 0 {
		return true
	}

	for _, t := range ex {
		if n.Ex == t {
			return true
		}
	}

	return false
}

// Neutralize turns n into a null op in place. Links are kept so the tree
// stays walkable and jumps through n still land somewhere.
func (n *Node) Neutralize() {
	if n.Type == Null {
		return
	}

	n.Ex = n.Type
	n.Type = Null
}

// Retype changes the op type in place and fixes the last child bookkeeping
// for the new class.
func (n *Node) Retype(t Type) {
	n.Type = t

	if !t.Info().Class.TracksLast() {
		n.last = nil
		return
	}

	n.last = nil

	for k := n.first; k != nil; k = k.Sibling() {
		n.last = k
	}
}

func (n *Node) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	if n == nil {
		return e.AppendNil(b)
	}

	b = e.AppendMap(b, 3)

	b = e.AppendString(b, "id")
	b = e.AppendInt(b, n.ID)

	b = e.AppendString(b, "op")
	b = e.AppendString(b, n.Type.String())

	b = e.AppendString(b, "targ")
	b = e.AppendInt(b, n.Targ)

	return b
}
