package fold_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perl11/cperl-sub000/compiler/build"
	"github.com/perl11/cperl-sub000/compiler/config"
	"github.com/perl11/cperl-sub000/compiler/op"
	"github.com/perl11/cperl-sub000/compiler/run"
)

func newBuilder(fold bool) *build.Builder {
	tune := config.Default()
	tune.Fold = fold

	st := op.NewState(op.NewGroup(tune), tune)
	st.File = "t.pl"

	return build.New(context.Background(), st)
}

func folded(t *testing.T, o *op.Node) string {
	t.Helper()

	require.Equal(t, op.Const, o.Type, "not folded: %v", o.Type)
	assert.NotZero(t, o.Priv&op.PrivFolded)

	return o.Val.(*run.Scalar).String()
}

func TestFold(t *testing.T) {
	b := newBuilder(true)

	assert.Equal(t, "7", folded(t, b.Binop(op.Add, b.Const(int64(3)), b.Const(int64(4)))))
	assert.Equal(t, "3.5", folded(t, b.Binop(op.Divide, b.Const(int64(7)), b.Const(int64(2)))))
	assert.Equal(t, "ab", folded(t, b.Binop(op.Concat, b.Const("a"), b.Const("b"))))
	assert.Equal(t, "ABC", folded(t, b.Unop(op.Uc, b.Const("abc"), 0)))
	assert.Equal(t, "1-x", folded(t, b.Listop(op.Sprintf, b.Const("%d-%s"), b.Const(int64(1)), b.Const("x"))))
	assert.Equal(t, "5%", folded(t, b.Listop(op.Sprintf, b.Const("%d%%"), b.Const(int64(5)))))

	nested := b.Binop(op.Multiply,
		b.Binop(op.Add, b.Const(int64(1)), b.Const(int64(2))),
		b.Unop(op.Negate, b.Const(int64(4)), 0))

	assert.Equal(t, "-12", folded(t, nested))
}

func TestFoldedConstIsReadOnly(t *testing.T) {
	b := newBuilder(true)

	c := b.Binop(op.Add, b.Const(int64(1)), b.Const(int64(1)))
	require.Equal(t, op.Const, c.Type)

	assert.True(t, c.Val.(*run.Scalar).RO)
}

func TestFoldFreesOperands(t *testing.T) {
	b := newBuilder(true)

	l := b.Const(int64(1))
	r := b.Const(int64(2))

	c := b.Binop(op.Add, l, r)
	require.Equal(t, op.Const, c.Type)

	assert.Equal(t, op.Freed, l.Type)
	assert.Equal(t, op.Freed, r.Type)
}

func TestNoFold(t *testing.T) {
	b := newBuilder(true)

	x := b.My("$x", -1)

	for _, tc := range []struct {
		name string
		o    *op.Node
	}{
		{"division by zero", b.Binop(op.Divide, b.Const(int64(1)), b.Const(int64(0)))},
		{"modulus zero", b.Binop(op.Modulo, b.Const(int64(1)), b.Const(int64(0)))},
		{"not numeric", b.Binop(op.Add, b.Const("abc"), b.Const(int64(1)))},
		{"variable", b.Binop(op.Add, b.Pad(op.Padsv, x.Targ, 0), b.Const(int64(1)))},
		{"locale", b.Unop(op.Lc, b.Const("ABC"), op.PrivLocale)},
		{"sprintf arguments", b.Listop(op.Sprintf, b.Const("%d %d"), b.Const(int64(1)))},
		{"sprintf redundant", b.Listop(op.Sprintf, b.Const("%d"), b.Const(int64(1)), b.Const(int64(2)))},
		{"sprintf star", b.Listop(op.Sprintf, b.Const("%*d"), b.Const(int64(3)), b.Const(int64(1)))},
		{"sprintf format", b.Listop(op.Sprintf, b.Pad(op.Padsv, x.Targ, 0), b.Const(int64(1)))},
		{"say", b.Listop(op.Say, b.Const("x"))},
	} {
		assert.NotEqual(t, op.Const, tc.o.Type, tc.name)
		assert.Zero(t, tc.o.Priv&op.PrivFolded, tc.name)
	}
}

func TestNoFoldWithoutWarnings(t *testing.T) {
	tune := config.Default()
	tune.Warnings = false

	st := op.NewState(op.NewGroup(tune), tune)
	b := build.New(context.Background(), st)

	c := b.Binop(op.Add, b.Const("abc"), b.Const(int64(1)))

	assert.Equal(t, "1", folded(t, c))
}

func TestFoldDisabled(t *testing.T) {
	b := newBuilder(false)

	o := b.Binop(op.Add, b.Const(int64(3)), b.Const(int64(4)))

	assert.Equal(t, op.Add, o.Type)
}

func TestFoldKeepsState(t *testing.T) {
	b := newBuilder(true)

	cop := b.Nextstate("", 7)
	b.St.Cop = cop

	_ = b.Binop(op.Divide, b.Const(int64(1)), b.Const(int64(0)))
	_ = b.Binop(op.Add, b.Const(int64(1)), b.Const(int64(2)))

	assert.True(t, cop == b.St.Cop)
	assert.Nil(t, b.St.Warn)
	assert.Zero(t, b.St.Depth())
}

func TestFoldedRuns(t *testing.T) {
	b := newBuilder(true)

	c := b.Binop(op.Add, b.Binop(op.Multiply, b.Const(int64(6)), b.Const(int64(7))), b.Const(0.5))

	root := b.Sub([]build.Stmt{{Line: 1, Expr: c}})
	start := op.Linearize(root)
	root.SetNext(nil)

	m := run.New(b.St.Pad)

	res, err := m.RunSub(context.Background(), start, root, op.WantScalar)
	require.NoError(t, err)
	require.Len(t, res, 1)

	assert.Equal(t, "42.5", res[0].String())
	assert.Equal(t, 4, m.Steps, "nextstate, const, lineseq, leavesub")
}
