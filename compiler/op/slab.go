package op

import (
	"sync"

	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/perl11/cperl-sub000/compiler/config"
)

type (
	// Group is a chain of slabs owned by one compilation unit.
	Group struct {
		slabs []*slab

		// free list of reclaimed records threaded through next
		free  *Node
		nfree int

		total     int // units in all slabs
		live      int // live nodes
		liveUnits int

		refs     int32
		released bool

		tune config.Tuning
	}

	slab struct {
		g *Group

		units int
		used  int

		recs []Node
	}

	GroupStats struct {
		Slabs     int `json:"slabs"`
		Units     int `json:"units"`
		Live      int `json:"live"`
		LiveUnits int `json:"live_units"`
		Free      int `json:"free"`
		Refs      int `json:"refs"`
	}
)

// refMu guards group reference counts only.
var refMu sync.Mutex

// NewGroup returns a group referenced by its owner.
func NewGroup(tune config.Tuning) *Group {
	return &Group{
		refs: 1,
		tune: tune.WithDefaults(),
	}
}

func (g *Group) Retain() {
	refMu.Lock()
	g.refs++
	refMu.Unlock()
}

// Release drops a reference. The last one frees the group.
func (g *Group) Release() {
	refMu.Lock()
	g.refs--
	r := g.refs
	refMu.Unlock()

	if r < 0 {
		Panicf("group over-released")
	}

	if r == 0 {
		g.release()
	}
}

func (g *Group) Refs() int {
	refMu.Lock()
	defer refMu.Unlock()

	return int(g.refs)
}

// Alloc allocates a node record of size units from the unit's group,
// or a static one if there is no group.
func (st *State) Alloc(size int) *Node {
	if st.Group == nil {
		return &Node{static: true, size: size}
	}

	return st.Group.alloc(size)
}

func (g *Group) alloc(size int) *Node {
	if g.released {
		Panicf("alloc from released group")
	}

	if size < 1 {
		size = 1
	}

	if n := g.reuse(size); n != nil {
		return n
	}

	var s *slab
	if l := len(g.slabs); l != 0 {
		s = g.slabs[l-1]
	}

	if s == nil || s.units-s.used < size {
		if s != nil {
			g.scrap(s)
		}

		s = g.grow(size)
	}

	s.recs = append(s.recs, Node{slab: s, size: size})
	s.used += size

	n := &s.recs[len(s.recs)-1]

	g.live++
	g.liveUnits += size

	return n
}

// reuse takes a large enough record from the free list.
// The scan is first-fit and bounded.
func (g *Group) reuse(size int) *Node {
	var prev *Node

	for n, i := g.free, 0; n != nil && i < g.tune.FreeScan; n, i = n.next, i+1 {
		if n.size < size {
			prev = n
			continue
		}

		if prev == nil {
			g.free = n.next
		} else {
			prev.next = n.next
		}

		g.nfree--

		*n = Node{slab: n.slab, size: n.size}

		g.live++
		g.liveUnits += n.size

		if tlog.If("slab") {
			tlog.Printw("reuse record", "size", size, "slot", n.size, "scan", i, "from", loc.Caller(3))
		}

		return n
	}

	return nil
}

// scrap pushes the unused tail of s onto the free list.
func (g *Group) scrap(s *slab) {
	left := s.units - s.used
	if left <= 0 {
		return
	}

	s.recs = append(s.recs, Node{Type: Freed, slab: s, size: left})
	s.used += left

	n := &s.recs[len(s.recs)-1]

	n.next = g.free
	g.free = n
	g.nfree++

	tlog.V("slab").Printw("scrap", "units", left)
}

func (g *Group) grow(size int) *slab {
	units := g.tune.SlabUnits

	if g.total != 0 {
		units = g.total * g.tune.SlabGrowth
	}

	if units > g.tune.SlabMaxUnits {
		units = g.tune.SlabMaxUnits
	}

	if units < size {
		units = size
	}

	s := &slab{
		g:     g,
		units: units,
		recs:  make([]Node, 0, units),
	}

	g.slabs = append(g.slabs, s)
	g.total += units

	if tlog.If("slab") {
		tlog.Printw("new slab", "units", units, "total", g.total, "slabs", len(g.slabs), "from", loc.Caller(3))
	}

	return s
}

// Free retags n as freed and threads it onto the free list.
// Payload and children are the caller's business.
func (g *Group) Free(n *Node) {
	if n.Type == Freed {
		return
	}

	if n.slab == nil || n.slab.g != g {
		Panicf("free of foreign op %v#%d", n.Type, n.ID)
	}

	g.live--
	g.liveUnits -= n.size

	*n = Node{
		Type: Freed,
		Ex:   n.Type,
		ID:   n.ID,
		slab: n.slab,
		size: n.size,
		next: g.free,
	}

	g.free = n
	g.nfree++
}

// Free releases a single node whatever its origin.
func (st *State) Free(n *Node) {
	switch {
	case n.Type == Freed:
	case n.static:
		n.Ex = n.Type
		n.Type = Freed
		n.first, n.last, n.sib, n.next, n.Other = nil, nil, Sib{}, nil, nil
	default:
		n.slab.g.Free(n)
	}
}

// FreeGroup drops the whole group. Only the owner may hold a reference.
func (g *Group) FreeGroup() {
	refMu.Lock()
	r := g.refs
	refMu.Unlock()

	if r != 1 {
		Panicf("free group with %d refs", r)
	}

	refMu.Lock()
	g.refs = 0
	refMu.Unlock()

	g.release()
}

// ForceFreeAll destroys every live node after a compile error.
// Pinned nodes survive and keep the group alive.
func (g *Group) ForceFreeAll() {
	if g.released {
		return
	}

	var pinned int

	for _, s := range g.slabs {
		for i := range s.recs {
			n := &s.recs[i]

			switch {
			case n.Type == Freed:
				continue
			case n.pinned:
				pinned++
				continue
			}

			Destroy(n)
			g.Free(n)
		}
	}

	tlog.V("slab").Printw("force free", "pinned", pinned, "live", g.live, "refs", g.Refs())

	if pinned == 0 && g.Refs() == 1 {
		g.FreeGroup()
		return
	}

	g.Release()
}

func (g *Group) release() {
	tlog.V("slab").Printw("release group", "slabs", len(g.slabs), "units", g.total, "live", g.live)

	g.slabs = nil
	g.free = nil
	g.nfree = 0
	g.released = true
}

func (g *Group) Released() bool { return g.released }

func (g *Group) Stats() GroupStats {
	return GroupStats{
		Slabs:     len(g.slabs),
		Units:     g.total,
		Live:      g.live,
		LiveUnits: g.liveUnits,
		Free:      g.nfree,
		Refs:      g.Refs(),
	}
}

// Pin keeps n and its group alive through ForceFreeAll.
func (n *Node) Pin() {
	if n.pinned {
		return
	}

	n.pinned = true

	if n.slab != nil {
		n.slab.g.Retain()
	}
}

func (n *Node) Unpin() {
	if !n.pinned {
		return
	}

	n.pinned = false

	if n.slab != nil {
		n.slab.g.Release()
	}
}

// Owns reports whether n was carved from g.
func (g *Group) Owns(n *Node) bool {
	return n.slab != nil && n.slab.g == g
}
