package op

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perl11/cperl-sub000/compiler/config"
)

func newTestState(t *testing.T) *State {
	t.Helper()

	tune := config.Default()

	return NewState(NewGroup(tune), tune)
}

func TestAllocGrow(t *testing.T) {
	st := newTestState(t)
	g := st.Group

	for i := 0; i < 150; i++ {
		n := st.New(Add, 0)
		require.Equal(t, 3, n.Size())

		s := g.Stats()
		assert.LessOrEqual(t, s.LiveUnits, s.Units)
	}

	s := g.Stats()
	assert.Equal(t, 150, s.Live)
	assert.Equal(t, 450, s.LiveUnits)

	// 64, then 2x cumulative: 128, 384
	assert.Equal(t, 3, s.Slabs)
	assert.Equal(t, 64+128+384, s.Units)

	// 64 % 3 and 128 % 3 left over
	assert.Equal(t, 2, s.Free)
}

func TestAllocGrowCap(t *testing.T) {
	tune := config.Default()
	tune.SlabMaxUnits = 100

	st := NewState(NewGroup(tune), tune)

	for i := 0; i < 100; i++ {
		st.New(Pushmark, 0)
	}

	s := st.Group.Stats()
	assert.Equal(t, 2, s.Slabs)
	assert.Equal(t, 164, s.Units)
}

func TestFreeReuse(t *testing.T) {
	st := newTestState(t)
	g := st.Group

	a := st.New(Add, 0)
	b := st.New(Const, 0)
	_ = st.New(Padsv, 0)

	before := g.Stats()

	st.Free(a)
	assert.Equal(t, Freed, a.Type)
	assert.Equal(t, Add, a.Ex)

	st.Free(a) // no double free

	assert.Equal(t, before.Live-1, g.Stats().Live)

	c := st.New(Negate, 0) // 2 units fits into 3
	assert.True(t, a == c)
	assert.Equal(t, Negate, c.Type)
	assert.Equal(t, 3, c.Size())

	st.Free(b)
	d := st.New(Add, 0) // 3 units doesn't fit into 2
	assert.False(t, b == d)

	assert.Equal(t, before.Units, g.Stats().Units)
}

func TestStatic(t *testing.T) {
	st := NewState(nil, config.Default())

	n := st.New(Const, 0)
	assert.True(t, n.Static())

	st.Free(n)
	assert.Equal(t, Freed, n.Type)
}

func TestFreeGroup(t *testing.T) {
	st := newTestState(t)
	g := st.Group

	st.New(Const, 0)

	g.Retain()

	assertInternal(t, g.FreeGroup)

	g.Release()
	g.FreeGroup()

	assert.True(t, g.Released())
	assertInternal(t, func() { st.New(Const, 0) })
}

func TestForceFreeAll(t *testing.T) {
	st := newTestState(t)
	g := st.Group

	a := st.New(Const, 0)
	b := st.New(Const, 0)
	c := st.New(Add, 0)

	a.Val = "payload"

	st.Free(b)

	c.Pin()
	assert.Equal(t, 2, g.Refs())

	g.ForceFreeAll()

	assert.Equal(t, Freed, a.Type)
	assert.Nil(t, a.Val)
	assert.Equal(t, Freed, b.Type)
	assert.Equal(t, Add, c.Type)

	assert.Equal(t, 1, g.Refs())
	assert.False(t, g.Released())
	assert.Equal(t, 1, g.Stats().Live)

	c.Unpin()
	assert.True(t, g.Released())
}

func TestForceFreeAllNoPinned(t *testing.T) {
	st := newTestState(t)

	st.New(Const, 0)
	st.New(Lineseq, 0)

	st.Group.ForceFreeAll()

	assert.True(t, st.Group.Released())
	assert.Equal(t, 0, st.Group.Refs())
}

func assertInternal(t *testing.T, f func()) {
	t.Helper()

	defer func() {
		p := recover()
		require.NotNil(t, p, "expected panic")

		_, ok := p.(InternalError)
		require.True(t, ok, "panic: %v", p)
	}()

	f()
}
