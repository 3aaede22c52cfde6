package peep_test

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perl11/cperl-sub000/compiler"
	"github.com/perl11/cperl-sub000/compiler/config"
	"github.com/perl11/cperl-sub000/compiler/format"
	"github.com/perl11/cperl-sub000/compiler/op"
	"github.com/perl11/cperl-sub000/compiler/peep"
	"github.com/perl11/cperl-sub000/compiler/run"
)

func compile(t *testing.T, tune config.Tuning, text string) *compiler.Unit {
	t.Helper()

	p, err := compiler.Compile(context.Background(), "t.pl", []byte(text), tune)
	require.NoError(t, err)

	u := p.Unit("main")
	require.NotNil(t, u)

	return u
}

func runUnit(t *testing.T, u *compiler.Unit) ([]string, string) {
	t.Helper()

	var out bytes.Buffer

	res, err := u.Run(context.Background(), u.Machine(&out), op.WantList)
	require.NoError(t, err)

	return vals(res), out.String()
}

func vals(res []*run.Scalar) (l []string) {
	for _, s := range res {
		if !s.Defined() {
			l = append(l, "undef")
			continue
		}

		l = append(l, s.String())
	}

	return l
}

func find(root *op.Node, t op.Type) (l []*op.Node) {
	stack := []*op.Node{root}

	for len(stack) != 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n.Type == t {
			l = append(l, n)
		}

		for k := n.First(); k != nil; k = k.Sibling() {
			stack = append(stack, k)
		}
	}

	return l
}

func chain(u *compiler.Unit) string {
	return string(format.Chain(nil, u.Start))
}

func noMderef() config.Tuning {
	tune := config.Default()
	tune.Mderef = false

	return tune
}

const nested = `(sub main
	(my @a)
	(sassign 10 (aelem (aelem @a 0) 0))
	(sassign 20 (aelem (aelem @a 0) 1))
	(sassign 40 (aelem (aelem @a 1) 1))
	(return
		(aelem (aelem @a 0) 1)
		(aelem (aelem @a 1) 1)
		(exists (aelem @a 2))
		(aelem (aelem @a 2) 0)
		(exists (aelem @a 2))))
`

func TestMultiderefSameResult(t *testing.T) {
	exp := []string{"20", "40", "", "undef", "1"}

	plain := compile(t, noMderef(), nested)

	res, _ := runUnit(t, plain)
	assert.Equal(t, exp, res)
	assert.Empty(t, find(plain.Root, op.Multideref))
	assert.Zero(t, plain.Stats.Rewrites["multideref"])

	fused := compile(t, config.Default(), nested)

	res, _ = runUnit(t, fused)
	assert.Equal(t, exp, res)

	ms := find(fused.Root, op.Multideref)
	assert.NotEmpty(t, ms)
	assert.Equal(t, len(ms), fused.Stats.Rewrites["multideref"])

	for _, m := range ms {
		require.NotNil(t, m.Aux, "multideref #%d", m.ID)
		assert.NotEmpty(t, m.Aux.Items)
		assert.True(t, m.Aux.Items[0].Act.Start(), "multideref #%d starts with %v", m.ID, m.Aux.Items[0].Act)

		k := m.First()
		require.NotNil(t, k)
		assert.True(t, k.IsNull(), "kid of multideref is %v", k.Type)
	}

	assert.Contains(t, chain(fused), "multideref")
	assert.NotContains(t, chain(fused), "aelem #")
}

func TestMultiderefTwoLevels(t *testing.T) {
	u := compile(t, config.Default(), `(sub main (my @a) (sassign 7 (aelem (aelem @a 0) 1)) (return (aelem (aelem @a 0) 1)))`)

	res, _ := runUnit(t, u)
	assert.Equal(t, []string{"7"}, res)

	ms := find(u.Root, op.Multideref)
	require.Len(t, ms, 2)

	for _, m := range ms {
		require.Len(t, m.Aux.Items, 2)
		assert.Equal(t, op.ActPadavAelem|op.IdxConst, m.Aux.Items[0].Act)
		assert.Equal(t, op.ActRv2avAelem|op.IdxConst, m.Aux.Items[1].Act)
		assert.Equal(t, int64(0), m.Aux.Items[0].Index)
		assert.Equal(t, int64(1), m.Aux.Items[1].Index)
	}
}

func TestMultiderefHash(t *testing.T) {
	text := `(sub main
	(my %h)
	(my $k "b")
	(sassign 1 (helem (helem %h "a") $k))
	(sassign 2 (aelem (helem %h "c") 0))
	(return (helem (helem %h "a") "b") (aelem (helem %h "c") 0) (exists (helem %h "x")) (delete (helem (helem %h "a") $k)) (exists (helem (helem %h "a") "b"))))
`

	exp := []string{"1", "2", "", "1", ""}

	res, _ := runUnit(t, compile(t, noMderef(), text))
	assert.Equal(t, exp, res)

	u := compile(t, config.Default(), text)

	res, _ = runUnit(t, u)
	assert.Equal(t, exp, res)

	var keys []string
	var padIdx, del int

	for _, m := range find(u.Root, op.Multideref) {
		for _, it := range m.Aux.Items {
			switch {
			case it.Act.Index() == op.IdxPadsv:
				padIdx++
			case it.Act.Hash():
				keys = append(keys, m.Aux.KeyAt(it))
			}
		}

		if m.Priv&op.PrivDelete != 0 {
			del++
		}
	}

	assert.Contains(t, keys, "a")
	assert.Contains(t, keys, "c")
	assert.NotZero(t, padIdx)
	assert.Equal(t, 1, del)
}

func TestMultiderefGlobal(t *testing.T) {
	text := `(sub main (sassign 3 (aelem @g 1)) (sassign 4 (helem %g "k")) (return (aelem @g 1) (helem %g "k")))`

	u := compile(t, config.Default(), text)

	res, _ := runUnit(t, u)
	assert.Equal(t, []string{"3", "4"}, res)

	var names []string

	for _, m := range find(u.Root, op.Multideref) {
		names = append(names, m.Aux.Items[0].Name)
	}

	assert.Equal(t, []string{"g", "g", "g", "g"}, names)
}

func TestPadrange(t *testing.T) {
	u := compile(t, config.Default(), `(sub main
	(list (my $a) (my $b) (my $c))
	(list (my $d) (my $e))
	(sassign 1 $a)
	(sassign 5 $e)
	(return $a $e))
`)

	res, _ := runUnit(t, u)
	assert.Equal(t, []string{"1", "5"}, res)

	assert.Equal(t, 1, u.Stats.Rewrites["padrange"])
	assert.Equal(t, 1, u.Stats.Rewrites["padrange_merge"])

	prs := find(u.Root, op.Padrange)
	require.Len(t, prs, 1)

	pr := prs[0]
	assert.Equal(t, 5, pr.Count)
	assert.NotZero(t, pr.Priv&op.PrivIntro)
	assert.Contains(t, chain(u), fmt.Sprintf("targ %d..%d", pr.Targ, pr.Targ+4))
}

func TestPadrangeNotContiguous(t *testing.T) {
	u := compile(t, config.Default(), `(sub main
	(my $x)
	(my $a)
	(my $b)
	(list $b (my $c))
	(return 1))
`)

	assert.Empty(t, find(u.Root, op.Padrange))
}

func TestTailReturn(t *testing.T) {
	u := compile(t, config.Default(), `(sub main (my $x 2) (return 1 $x))`)

	res, _ := runUnit(t, u)
	assert.Equal(t, []string{"1", "2"}, res)

	assert.Equal(t, 1, u.Stats.Rewrites["tail_return"])
	assert.NotContains(t, chain(u), "return")
}

func TestReturnInLoop(t *testing.T) {
	u := compile(t, config.Default(), `(sub main
	(foreach $i 1 10
		(if (eq $i 3) (return "three" $i)))
	(return "none"))
`)

	res, _ := runUnit(t, u)
	assert.Equal(t, []string{"three", "3"}, res)

	assert.Equal(t, 1, u.Stats.Rewrites["tail_return"])
}

func TestLoopBounds(t *testing.T) {
	text := `(sub main
	(my @a 4)
	(foreach $i 0 3 (sassign $i (aelem @a $i)))
	(return (aelem @a 3) (aelem @a 1)))
`

	u := compile(t, noMderef(), text)

	res, _ := runUnit(t, u)
	assert.Equal(t, []string{"3", "1"}, res)

	assert.Len(t, find(u.Root, op.AelemU), 3)
	assert.Empty(t, find(u.Root, op.Aelem))
	assert.Contains(t, chain(u), "aelem_u")

	u = compile(t, config.Default(), text)

	res, _ = runUnit(t, u)
	assert.Equal(t, []string{"3", "1"}, res)

	var unchecked int

	for _, m := range find(u.Root, op.Multideref) {
		for _, it := range m.Aux.Items {
			if it.Act&op.ActUnchecked != 0 {
				unchecked++
			}
		}
	}

	assert.Equal(t, 3, unchecked)
	assert.Contains(t, chain(u), "padav_aelem_padsv_u")
}

func TestLoopBoundsArylen(t *testing.T) {
	u := compile(t, noMderef(), `(sub main (my @a 8) (foreach $i 0 (arylen @a) (say (aelem @a $i))) (return 1))`)

	assert.Len(t, find(u.Root, op.AelemU), 1)
	assert.NotZero(t, u.Stats.Rewrites["bounds"])
}

func TestLoopBoundsRejected(t *testing.T) {
	for _, text := range []string{
		`(sub main (my @a 4) (foreach $i 0 4 (say (aelem @a $i))) (return 1))`,
		`(sub main (my @a) (foreach $i 0 3 (say (aelem @a $i))) (return 1))`,
		`(sub main (my @a 4) (foreach $i 0 3 (sassign 0 $i) (say (aelem @a $i))) (return 1))`,
		`(sub main (my @a 4) (my $n 3) (foreach $i 0 $n (say (aelem @a $i))) (return 1))`,
		`(sub main (my @a 4) (my @b 9) (foreach $i 0 (arylen @b) (say (aelem @a $i))) (return 1))`,
	} {
		u := compile(t, noMderef(), text)

		assert.Empty(t, find(u.Root, op.AelemU), "%s", text)
	}
}

func TestConstIndexOutOfBounds(t *testing.T) {
	for _, tune := range []config.Tuning{config.Default(), noMderef()} {
		p, err := compiler.Compile(context.Background(), "t.pl", []byte("(sub main\n(my @a 4)\n(return (aelem @a 4)))"), tune)
		assert.Nil(t, p)

		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), "Array index out of bounds @a[4] at t.pl line 3.")
		}
	}

	u := compile(t, config.Default(), `(sub main (my @a 4) (sassign 9 (aelem @a -1)) (return (aelem @a 3)))`)

	res, _ := runUnit(t, u)
	assert.Equal(t, []string{"9"}, res)
}

func TestShortCircuit(t *testing.T) {
	u := compile(t, config.Default(), `(sub main (my $x 5) (return (and 0 $x) (or 0 $x) (and 1 $x) (or "a" $x) (dor 0 $x) (dor undef $x)))`)

	res, _ := runUnit(t, u)
	assert.Equal(t, []string{"0", "5", "5", "a", "0", "5"}, res)

	assert.Equal(t, 5, u.Stats.Rewrites["short_circuit"])
	assert.Empty(t, find(u.Root, op.And))
	assert.Empty(t, find(u.Root, op.Or))
	assert.Len(t, find(u.Root, op.Dor), 1, "undef is not a constant")
}

func TestNotFlip(t *testing.T) {
	for _, x := range []int{0, 1} {
		u := compile(t, config.Default(), fmt.Sprintf(`(sub main
	(my $x %d)
	(my $y 0)
	(or (not $x) (sassign 1 $y))
	(and (not $x) (sassign 2 $y))
	(return $y))
`, x))

		res, _ := runUnit(t, u)
		assert.Equal(t, []string{fmt.Sprint(2 - x)}, res)

		assert.Equal(t, 2, u.Stats.Rewrites["not"])
		assert.Empty(t, find(u.Root, op.Not))
	}

	u := compile(t, config.Default(), `(sub main (my $x 0) (return (or (not $x) 7)))`)

	res, _ := runUnit(t, u)
	assert.Equal(t, []string{"1"}, res)
	assert.Zero(t, u.Stats.Rewrites["not"])
}

func TestBoolean(t *testing.T) {
	u := compile(t, config.Default(), `(sub main
	(my @a)
	(my %h)
	(if @a (say "a"))
	(and %h (say "h"))
	(return (scalar @a) (or @a 1)))
`)

	res, out := runUnit(t, u)
	assert.Equal(t, []string{"0", "1"}, res)
	assert.Empty(t, out)

	var tb, mb int

	for _, typ := range []op.Type{op.Padav, op.Padhv} {
		for _, n := range find(u.Root, typ) {
			if n.Priv&op.PrivTrueBool != 0 {
				tb++
			}

			if n.Priv&op.PrivMaybeTrueBool != 0 {
				mb++
			}
		}
	}

	assert.Equal(t, 2, tb)
	assert.Equal(t, 1, mb)
}

func TestThreadLogops(t *testing.T) {
	u := compile(t, config.Default(), `(sub main
	(my $a 0)
	(my $b 1)
	(my $c 0)
	(return (and (and $a $b) $c) (or (or $b $a) $c)))
`)

	res, _ := runUnit(t, u)
	assert.Equal(t, []string{"0", "1"}, res)
	assert.NotZero(t, u.Stats.Rewrites["thread"])
}

func TestDeferQueueBounded(t *testing.T) {
	var b strings.Builder

	b.WriteString("(sub main\n(my $x 1)\n")

	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, "(if $x (say %d))\n", i)
	}

	b.WriteString("(return 1))\n")

	tune := config.Default()
	tune.DeferQueue = 4

	u := compile(t, tune, b.String())

	assert.Equal(t, 20, u.Stats.Deferred)
	assert.Equal(t, 2, u.Stats.MaxDepth)

	_, out := runUnit(t, u)
	assert.Equal(t, 20, strings.Count(out, "\n"))

	start, stats, err := peep.Optimize(context.Background(), u.St, u.Start)
	require.NoError(t, err)

	assert.True(t, start == u.Start)
	assert.Zero(t, stats.Visited)
	assert.Zero(t, stats.Deferred)

	_, out2 := runUnit(t, u)
	assert.Equal(t, out, out2)
}

func TestDeferQueueDepthOne(t *testing.T) {
	tune := config.Default()
	tune.DeferQueue = 64

	u := compile(t, tune, `(sub main (my $x 1) (if $x (say 1)) (if $x (say 2) (say 3)) (return 1))`)

	assert.Equal(t, 2, u.Stats.Deferred)
	assert.Equal(t, 1, u.Stats.MaxDepth)
}

func TestMultiderefUndefLevel(t *testing.T) {
	text := `(sub main
	(my @a)
	(sassign 30 (aelem (aelem @a 1) 0))
	(sassign 40 (aelem (aelem @a 1) 1))
	(return (exists (aelem @a 0)) (aelem (aelem @a 0) 1) (exists (aelem @a 0)) (arylen (aelem @a 0)) (aelem (aelem @a 1) 1)))
`

	exp := []string{"", "undef", "1", "-1", "40"}

	for _, tune := range []config.Tuning{noMderef(), config.Default()} {
		u := compile(t, tune, text)

		res, _ := runUnit(t, u)
		assert.Equal(t, exp, res, "mderef %v", tune.Mderef)
	}
}
