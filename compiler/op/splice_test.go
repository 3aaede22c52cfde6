package op

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newList(st *State, t Type, n int) (*Node, []*Node) {
	p := st.New(t, 0)

	var kids []*Node

	for i := 0; i < n; i++ {
		k := st.New(Const, 0)
		k.Val = int64(i)

		Append(p, k)
		kids = append(kids, k)
	}

	return p, kids
}

func newChain(st *State, n int) (*Node, []*Node) {
	l, kids := newList(st, List, n)

	return Splice(l, nil, -1, nil), kids
}

func assertKids(t *testing.T, p *Node, exp ...*Node) {
	t.Helper()

	assert.Equal(t, exp, p.Kids())

	if len(exp) == 0 {
		assert.Nil(t, p.First())
		assert.Zero(t, p.Flags&FlagKids)

		if p.Class().TracksLast() {
			assert.Nil(t, p.last)
		}

		return
	}

	last := exp[len(exp)-1]

	assert.True(t, last == p.Last())
	assert.True(t, p == last.Sib().Parent())
	assert.False(t, last.HasSibling())

	for _, k := range exp {
		assert.True(t, p == k.Parent())
	}

	if p.Class().TracksLast() {
		assert.True(t, last == p.last)
	}
}

func TestSpliceRoundTrip(t *testing.T) {
	st := newTestState(t)

	for _, tp := range []Type{Lineseq, Scalar} {
		for _, after := range []int{-1, 0, 1, 2} {
			for _, ins := range []int{1, 2, 3} {
				p, kids := newList(st, tp, 3)

				var a *Node
				if after >= 0 {
					a = kids[after]
				}

				chain, nodes := newChain(st, ins)

				r := Splice(p, a, 0, chain)
				assert.Nil(t, r)
				assert.Equal(t, 3+ins, p.NumKids())

				r = Splice(p, a, ins, nil)
				require.True(t, r == chain, "%v after %d ins %d", tp, after, ins)

				assertKids(t, p, kids...)

				var got []*Node
				for k := r; k != nil; k = k.Sibling() {
					got = append(got, k)
				}

				assert.Equal(t, nodes, got)
				assert.Nil(t, nodes[len(nodes)-1].Sib().Parent())
			}
		}
	}
}

func TestSpliceCount(t *testing.T) {
	st := newTestState(t)

	for _, del := range []int{-1, 2, 10} {
		p, kids := newList(st, Lineseq, 3)

		r := Splice(p, kids[0], del, nil)
		assert.True(t, r == kids[1])
		assert.True(t, kids[2] == r.Sibling())

		assertKids(t, p, kids[0])
	}

	for _, del := range []int{-1, 5} {
		p, kids := newList(st, Lineseq, 3)

		r := Splice(p, kids[2], del, nil)
		assert.Nil(t, r)

		assertKids(t, p, kids...)
	}

	p, _ := newList(st, Lineseq, 3)

	Splice(p, nil, -1, nil)
	assertKids(t, p)
}

func TestSpliceReplace(t *testing.T) {
	st := newTestState(t)

	p, kids := newList(st, Lineseq, 3)
	chain, nodes := newChain(st, 2)

	r := Splice(p, kids[0], 1, chain)
	assert.True(t, r == kids[1])
	assert.False(t, r.HasSibling())

	assertKids(t, p, kids[0], nodes[0], nodes[1], kids[2])

	r = Splice(p, nodes[1], 1, nil)
	assert.True(t, r == kids[2])

	assertKids(t, p, kids[0], nodes[0], nodes[1])
}

func TestSpliceNilParent(t *testing.T) {
	st := newTestState(t)

	chain, _ := newChain(st, 1)

	assertInternal(t, func() { Splice(nil, nil, 0, chain) })

	a, _ := newChain(st, 2)

	// the tail is cut: the new last child needs the parent
	assertInternal(t, func() { Splice(nil, a, -1, nil) })
}

func TestMergeWrap(t *testing.T) {
	st := newTestState(t)

	p, pk := newList(st, List, 2)
	q, qk := newList(st, List, 2)

	m := st.Merge(p, q)
	assert.True(t, m == p)
	assert.Equal(t, Freed, q.Type)

	assertKids(t, p, append(pk, qk...)...)

	w := st.Wrap(p, pk[1], Scalar)
	assert.Equal(t, Scalar, w.Type)

	assertKids(t, p, pk[0], w, qk[0], qk[1])
	assertKids(t, w, pk[1])

	l := st.New(Lineseq, 0)
	assertInternal(t, func() { st.Merge(p, l) })
}

func TestDetachReplace(t *testing.T) {
	st := newTestState(t)

	p, kids := newList(st, Lineseq, 3)

	d := Detach(kids[2])
	assert.True(t, d == kids[2])
	assertKids(t, p, kids[0], kids[1])

	n := st.New(Pushmark, 0)

	old := Replace(p, kids[0], n)
	assert.True(t, old == kids[0])
	assertKids(t, p, n, kids[1])
}
