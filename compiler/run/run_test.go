package run_test

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perl11/cperl-sub000/compiler/build"
	"github.com/perl11/cperl-sub000/compiler/config"
	"github.com/perl11/cperl-sub000/compiler/op"
	"github.com/perl11/cperl-sub000/compiler/run"
)

func newBuilder() *build.Builder {
	tune := config.Default()
	tune.Fold = false

	st := op.NewState(op.NewGroup(tune), tune)
	st.File = "t.pl"

	return build.New(context.Background(), st)
}

func runSub(t *testing.T, b *build.Builder, stmts ...*op.Node) (*run.Machine, []*run.Scalar, error) {
	t.Helper()

	var l []build.Stmt

	for i, e := range stmts {
		l = append(l, build.Stmt{Line: i + 1, Expr: e})
	}

	root := b.Sub(l)
	start := op.Linearize(root)
	root.SetNext(nil)

	m := run.New(b.St.Pad)

	res, err := m.RunSub(context.Background(), start, root, op.WantList)

	return m, res, err
}

func strs(res []*run.Scalar) (l []string) {
	for _, s := range res {
		l = append(l, s.String())
	}

	return l
}

func TestBinops(t *testing.T) {
	for _, tc := range []struct {
		t    op.Type
		l, r any
		exp  string
	}{
		{op.Add, int64(2), int64(3), "5"},
		{op.Add, int64(math.MaxInt64), int64(1), "9.22337203685478e+18"},
		{op.Subtract, int64(2), 0.5, "1.5"},
		{op.Multiply, "3", int64(4), "12"},
		{op.Divide, int64(6), int64(3), "2"},
		{op.Divide, int64(7), int64(2), "3.5"},
		{op.Modulo, int64(-7), int64(3), "2"},
		{op.Modulo, int64(7), int64(-3), "-2"},
		{op.Concat, "a", int64(1), "a1"},
		{op.Lt, int64(1), int64(2), "1"},
		{op.Eq, int64(1), 2.0, ""},
		{op.Ge, 2.5, int64(2), "1"},
		{op.Seq, "a", "a", "1"},
		{op.Sne, "a", "a", ""},
	} {
		b := newBuilder()

		_, res, err := runSub(t, b, b.Binop(tc.t, b.Const(tc.l), b.Const(tc.r)))
		require.NoError(t, err, "%v %v %v", tc.l, tc.t, tc.r)

		assert.Equal(t, []string{tc.exp}, strs(res), "%v %v %v", tc.l, tc.t, tc.r)
	}
}

func TestUnops(t *testing.T) {
	for _, tc := range []struct {
		t   op.Type
		v   any
		exp string
	}{
		{op.Negate, int64(5), "-5"},
		{op.Negate, "foo", "-foo"},
		{op.Negate, "-bar", "+bar"},
		{op.Not, int64(0), "1"},
		{op.Not, "a", ""},
		{op.Length, "héllo", "5"},
		{op.Lc, "ABC", "abc"},
		{op.Uc, "abc", "ABC"},
	} {
		b := newBuilder()

		_, res, err := runSub(t, b, b.Unop(tc.t, b.Const(tc.v), 0))
		require.NoError(t, err, "%v %v", tc.t, tc.v)

		assert.Equal(t, []string{tc.exp}, strs(res), "%v %v", tc.t, tc.v)
	}
}

func TestSprintf(t *testing.T) {
	b := newBuilder()

	_, res, err := runSub(t, b, b.Listop(op.Sprintf,
		b.Const("%05.1f|%-3s|%x|%%|%c"), b.Const(3.14159), b.Const("ab"), b.Const(int64(255)), b.Const(int64(65))))
	require.NoError(t, err)

	assert.Equal(t, []string{"003.1|ab |ff|%|A"}, strs(res))
}

func TestSprintfMissingArgument(t *testing.T) {
	b := newBuilder()

	m, res, err := runSub(t, b, b.Listop(op.Sprintf, b.Const("%s-%s"), b.Const("a")))
	require.NoError(t, err)

	assert.Equal(t, []string{"a-"}, strs(res))
	require.NotEmpty(t, m.Warnings)
	assert.Equal(t, "Missing argument in sprintf at t.pl line 1.", m.Warnings[0])
}

func TestDivisionByZero(t *testing.T) {
	b := newBuilder()

	_, _, err := runSub(t, b,
		b.Stub(),
		b.Binop(op.Divide, b.Const(int64(1)), b.Const(int64(0))))

	assert.EqualError(t, err, "Illegal division by zero at t.pl line 2.")
}

func TestUninitializedWarning(t *testing.T) {
	b := newBuilder()

	x := b.My("$x", -1)
	targ := x.Targ

	m, res, err := runSub(t, b,
		x,
		b.Binop(op.Add, b.Pad(op.Padsv, targ, 0), b.Const(int64(1))))
	require.NoError(t, err)

	assert.Equal(t, []string{"1"}, strs(res))
	assert.Equal(t, []string{"Use of uninitialized value in addition (+) at t.pl line 2."}, m.Warnings)
}

func TestAutovivify(t *testing.T) {
	b := newBuilder()

	a := b.My("@a", -1)
	targ := a.Targ

	elem := func(i, j int64) *op.Node {
		inner := b.Aelem(b.Pad(op.Padav, targ, 0), b.Const(i))

		return b.Aelem(b.Rv2(op.Rv2av, inner), b.Const(j))
	}

	m, res, err := runSub(t, b,
		a,
		b.Sassign(b.Const(int64(20)), elem(0, 1)),
		b.List(elem(0, 1), elem(1, 0)))
	require.NoError(t, err)

	assert.Equal(t, []string{"20", ""}, strs(res))
	assert.False(t, res[1].Defined())

	arr := m.ArrayAt(targ)
	require.Equal(t, 2, arr.Len())

	for _, e := range arr.E {
		_, ok := e.V.(*run.Array)
		assert.True(t, ok, "element is %T", e.V)
	}
}

func TestExistsDelete(t *testing.T) {
	b := newBuilder()

	h := b.My("%h", -1)
	targ := h.Targ

	helem := func(k string) *op.Node {
		return b.Helem(b.Pad(op.Padhv, targ, 0), b.Const(k))
	}

	_, res, err := runSub(t, b,
		h,
		b.Sassign(b.Const("v"), helem("k")),
		b.List(
			b.Exists(helem("k")),
			b.Exists(helem("z")),
			b.Delete(helem("k")),
			b.Exists(helem("k")),
		))
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "", "v", ""}, strs(res))
}

func TestShapedArrayBounds(t *testing.T) {
	b := newBuilder()

	a := b.My("@s", 2)
	targ := a.Targ

	_, _, err := runSub(t, b,
		a,
		b.Aelem(b.Pad(op.Padav, targ, 0), b.Const(int64(5))))

	assert.EqualError(t, err, "Array index out of bounds 5 at t.pl line 2.")
}

func TestForeachSay(t *testing.T) {
	b := newBuilder()

	targ := b.St.Pad.Add("$i", -1)

	body := []build.Stmt{{
		Line: 2,
		Expr: b.Listop(op.Say, b.Const("i="), b.Pad(op.Padsv, targ, 0)),
	}}

	var out bytes.Buffer

	root := b.Sub([]build.Stmt{
		{Line: 1, Expr: b.Foreach(targ, b.Const(int64(1)), b.Const(int64(3)), body)},
		{Line: 3, Expr: b.Const("done")},
	})

	start := op.Linearize(root)
	root.SetNext(nil)

	m := run.New(b.St.Pad)
	m.Out = &out

	res, err := m.RunSub(context.Background(), start, root, op.WantScalar)
	require.NoError(t, err)

	assert.Equal(t, "i=1\ni=2\ni=3\n", out.String())
	assert.Equal(t, []string{"done"}, strs(res))
}

func TestDie(t *testing.T) {
	b := newBuilder()

	_, _, err := runSub(t, b, b.Listop(op.Die, b.Const("oops")))
	assert.EqualError(t, err, "oops at t.pl line 1.")

	b = newBuilder()

	_, _, err = runSub(t, b, b.Listop(op.Die, b.Const("bye\n")))
	assert.EqualError(t, err, "bye")
}

func TestLogops(t *testing.T) {
	for _, tc := range []struct {
		t   op.Type
		l   any
		exp string
	}{
		{op.And, int64(0), "0"},
		{op.And, int64(1), "r"},
		{op.Or, "x", "x"},
		{op.Or, "", "r"},
		{op.Dor, int64(0), "0"},
		{op.Dor, nil, "r"},
	} {
		b := newBuilder()

		_, res, err := runSub(t, b, b.Logop(tc.t, b.Const(tc.l), b.Const("r")))
		require.NoError(t, err)

		assert.Equal(t, []string{tc.exp}, strs(res), "%v %v", tc.t, tc.l)
	}
}

func TestCond(t *testing.T) {
	for _, tc := range []struct {
		c   any
		exp string
	}{
		{int64(1), "yes"},
		{"0", "no"},
	} {
		b := newBuilder()

		_, res, err := runSub(t, b, b.Cond(b.Const(tc.c), b.Const("yes"), b.Const("no")))
		require.NoError(t, err)

		assert.Equal(t, []string{tc.exp}, strs(res))
	}
}

func TestScalarValues(t *testing.T) {
	for _, tc := range []struct {
		s     string
		num   any
		numok bool
	}{
		{"12", int64(12), true},
		{" 3.5 ", 3.5, true},
		{"1e3", 1000.0, true},
		{"12abc", int64(12), false},
		{"abc", int64(0), false},
		{"-inf", math.Inf(-1), true},
	} {
		v, ok := (&run.Scalar{V: tc.s}).Num()

		assert.Equal(t, tc.num, v, tc.s)
		assert.Equal(t, tc.numok, ok, tc.s)
	}

	assert.False(t, (&run.Scalar{V: "0"}).Truth())
	assert.True(t, (&run.Scalar{V: "0.0"}).Truth())
	assert.Equal(t, "0.1", (&run.Scalar{V: 0.1}).String())
}
