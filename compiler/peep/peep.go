// Package peep is the peephole optimizer over the execution chain.
//
// The walk marks every op it visits as processed and stops at processed ops,
// so cycles and joins are walked once. Branch targets go to a small circular
// queue. A full queue walks its oldest entry right away in a nested frame,
// the rest are walked after the main chain in the same frame.
package peep

import (
	"context"
	"sort"

	"tlog.app/go/tlog"
	"tlog.app/go/tlog/tlwire"

	"github.com/perl11/cperl-sub000/compiler/op"
)

type (
	Stats struct {
		Visited  int
		Deferred int
		MaxDepth int

		Rewrites map[string]int
	}

	peeper struct {
		st *op.State
		tr tlog.Span

		cop *op.Node

		depth int
		stats Stats

		err error
	}

	// queue is a circular fifo of slots holding chain heads.
	queue struct {
		q    []**op.Node
		head int
		n    int
	}
)

// Optimize walks the chain from start and rewrites it in place.
// It returns the new start, which differs when leading ops were elided.
func Optimize(ctx context.Context, st *op.State, start *op.Node) (_ *op.Node, stats Stats, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "peep")
	defer tr.Finish("err", &err)

	p := &peeper{
		st: st,
		tr: tr,
		stats: Stats{
			Rewrites: map[string]int{},
		},
	}

	p.walk(&start)

	if tr.If("peep") {
		tr.Printw("peep stats", "stats", p.stats)
	}

	return start, p.stats, p.err
}

func (p *peeper) walk(slot **op.Node) {
	p.depth++
	defer func() { p.depth-- }()

	if p.depth > p.stats.MaxDepth {
		p.stats.MaxDepth = p.depth
	}

	size := p.st.Tune.DeferQueue
	if size < 1 {
		size = 1
	}

	q := &queue{q: make([]**op.Node, size)}

	p.chain(slot, q)

	for q.n != 0 && p.err == nil {
		p.chain(q.pop(), q)
	}
}

// chain walks one path until it runs off the end or meets a processed op.
func (p *peeper) chain(slot **op.Node, q *queue) {
	var prev *op.Node

	for o := *slot; o != nil && !o.Processed() && p.err == nil; {
		o.SetProcessed()
		p.stats.Visited++

		next, keep := p.visit(o, prev, slot, q)
		if keep {
			prev = o
		}

		o = next
	}

	prune(slot)
}

// visit applies the rules for o. It returns the op to continue with
// and whether o stays in the chain as the predecessor of it.
func (p *peeper) visit(o, prev *op.Node, slot **op.Node, q *queue) (*op.Node, bool) {
	switch o.Type {
	case op.Null, op.Scalar, op.Lineseq, op.Scope:
		next := o.Next()
		relink(prev, slot, next)

		p.rewrite("elide", o)

		return next, false
	case op.Nextstate:
		p.cop = o
	case op.Const:
		if next, keep, ok := p.shortCircuit(o, prev, slot); ok {
			return next, keep
		}
	case op.Not:
		if next, ok := p.notLogop(o, prev, slot); ok {
			return next, false
		}
	case op.Pushmark:
		if next, ok := p.tailReturn(o, prev, slot); ok {
			return next, false
		}

		p.padrange(o)
	case op.And, op.Or, op.Dor:
		p.logop(o)
		p.deferBranch(q, &o.Other)
	case op.CondExpr:
		skipNulls(&o.Other)
		p.deferBranch(q, &o.Other)
	case op.Enteriter:
		p.loopBounds(o)
	case op.Aelem:
		p.constIndex(o)
	case op.Length:
		p.boolean(o)
	}

	switch o.Type {
	case op.Padav, op.Padhv, op.Rv2av, op.Rv2hv:
		if o.Flags&op.FlagRef == 0 {
			p.boolean(o)
		}
	}

	if p.st.Tune.Mderef {
		switch o.Type {
		case op.Padav, op.Padhv, op.Padsv, op.Gv:
			if top := p.multideref(o, prev, slot); top != nil {
				return top, false
			}
		}
	}

	return o.Next(), true
}

func (p *peeper) deferBranch(q *queue, slot **op.Node) {
	if *slot == nil {
		return
	}

	p.stats.Deferred++

	if q.n == len(q.q) {
		old := q.pop()

		if p.tr.If("defer") {
			p.tr.Printw("defer queue full", "walk", *old, "depth", p.depth)
		}

		p.walk(old)
	}

	q.push(slot)
}

func (p *peeper) rewrite(kind string, o *op.Node) {
	p.stats.Rewrites[kind]++

	if p.tr.If("peep") {
		p.tr.Printw("rewrite", "kind", kind, "op", o)
	}
}

// relink makes to the successor of prev, or the chain head if there is none.
func relink(prev *op.Node, slot **op.Node, to *op.Node) {
	if prev == nil {
		*slot = to
		return
	}

	prev.SetNext(to)
}

func transparent(o *op.Node) bool {
	switch o.Type {
	case op.Null, op.Scalar, op.Lineseq, op.Scope:
		return true
	}

	return false
}

// skipNulls moves a branch target past transparent ops.
func skipNulls(slot **op.Node) {
	for *slot != nil && transparent(*slot) {
		*slot = (*slot).Next()
	}
}

// prune drops transparent ops from the head of a walked chain.
func prune(slot **op.Node) {
	skipNulls(slot)
}

func (q *queue) push(slot **op.Node) {
	q.q[(q.head+q.n)%len(q.q)] = slot
	q.n++
}

func (q *queue) pop() **op.Node {
	s := q.q[q.head]
	q.q[q.head] = nil
	q.head = (q.head + 1) % len(q.q)
	q.n--

	return s
}

func (s Stats) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 4)

	b = e.AppendString(b, "visited")
	b = e.AppendInt(b, s.Visited)

	b = e.AppendString(b, "deferred")
	b = e.AppendInt(b, s.Deferred)

	b = e.AppendString(b, "max_depth")
	b = e.AppendInt(b, s.MaxDepth)

	keys := make([]string, 0, len(s.Rewrites))
	for k := range s.Rewrites {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	b = e.AppendString(b, "rewrites")
	b = e.AppendMap(b, len(keys))

	for _, k := range keys {
		b = e.AppendString(b, k)
		b = e.AppendInt(b, s.Rewrites[k])
	}

	return b
}
