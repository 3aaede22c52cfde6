package op

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainOf(root *Node) (l []*Node) {
	for o := root.Start(); ; o = o.Next() {
		l = append(l, o)

		if o == root || len(l) > 100 {
			return l
		}
	}
}

func TestLinearizeLeaf(t *testing.T) {
	st := newTestState(t)

	c := st.New(Const, 0)

	assert.True(t, c == Linearize(c))
	assert.True(t, c == c.Next())
	assert.False(t, c.Embedded())
}

func TestLinearizeOrder(t *testing.T) {
	st := newTestState(t)

	c1 := st.New(Const, 0)
	neg := st.New(Negate, 0)
	Append(neg, c1)

	c2 := st.New(Const, 0)
	c3 := st.New(Const, 0)

	sub := st.New(Subtract, 0)
	Append(sub, c2)
	Append(sub, c3)

	// kids closed before the parent is built
	Linearize(neg)
	Linearize(sub)

	add := st.New(Add, 0)
	Append(add, neg)
	Append(add, sub)

	start := Linearize(add)
	require.True(t, start == c1)

	assert.Equal(t, []*Node{c1, neg, c2, c3, sub, add}, chainOf(add))

	assert.False(t, add.Embedded())
	assert.True(t, neg.Embedded())
	assert.True(t, sub.Embedded())
	assert.True(t, sub.Next() == add)
}

func TestLinearizeIdempotent(t *testing.T) {
	st := newTestState(t)

	c1 := st.New(Const, 0)
	c2 := st.New(Const, 0)
	add := st.New(Add, 0)
	Append(add, c1)
	Append(add, c2)

	s1 := Linearize(add)
	n1, n2 := c1.Next(), c2.Next()

	s2 := Linearize(add)

	assert.True(t, s1 == s2)
	assert.True(t, n1 == c1.Next())
	assert.True(t, n2 == c2.Next())
	assert.True(t, c2.Embedded())

	// embedded: next is the real successor and stays so
	say := st.New(Say, 0)
	pm := st.New(Pushmark, 0)
	Append(say, pm)
	Append(say, add)

	Linearize(say)

	assert.True(t, add.Next() == say)
	assert.True(t, add.Embedded())

	assert.True(t, add.Next() == Linearize(add))
	assert.Equal(t, []*Node{pm, c1, c2, add, say}, chainOf(say))
}

func TestLinearizeDeep(t *testing.T) {
	st := newTestState(t)

	var top *Node = st.New(Const, 0)
	leaf := top

	for i := 0; i < 10000; i++ {
		n := st.New(Negate, 0)
		Append(n, top)
		top = n
	}

	assert.True(t, leaf == Linearize(top))
	assert.True(t, leaf.Embedded())
}
