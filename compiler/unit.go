package compiler

import (
	"context"
	"io"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/perl11/cperl-sub000/compiler/build"
	"github.com/perl11/cperl-sub000/compiler/config"
	"github.com/perl11/cperl-sub000/compiler/format"
	"github.com/perl11/cperl-sub000/compiler/op"
	"github.com/perl11/cperl-sub000/compiler/peep"
	"github.com/perl11/cperl-sub000/compiler/run"
)

type (
	// Unit is one sub being compiled. It owns a slab group.
	Unit struct {
		Name string

		St    *op.State
		Root  *op.Node // leavesub
		Start *op.Node

		Depth int // nesting of the sub
		Seq   int // order of appearance

		Stats peep.Stats

		finished bool
	}
)

func NewUnit(name string, tune config.Tuning) *Unit {
	st := op.NewState(op.NewGroup(tune), tune)
	st.File = name

	return &Unit{
		Name: name,
		St:   st,
	}
}

// Finish runs the tree fixups, threads the execution chain,
// optimizes it and checks the result.
// On error the unit's ops are force-freed.
func (u *Unit) Finish(ctx context.Context) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "finish unit", "unit", u.Name, "depth", u.Depth)
	defer tr.Finish("err", &err)

	defer func() {
		if p := recover(); p != nil {
			ie, ok := p.(op.InternalError)
			if !ok {
				panic(p)
			}

			err = ie
		}

		if err != nil {
			u.Abort()
		}
	}()

	switch {
	case u.finished:
		return errors.New("unit %v finished twice", u.Name)
	case u.Root == nil:
		return errors.New("unit %v: no root", u.Name)
	case u.Root.Type != op.Leavesub:
		op.Panicf("unit root is %v", u.Root.Type)
	}

	prefixups(u.St, u.Root)

	start := op.Linearize(u.Root)
	u.Root.SetNext(nil)

	if tr.If("dump_tree") {
		tr.Printw("tree", "unit", u.Name, "tree", string(format.Tree(nil, u.Root)))
	}

	start, u.Stats, err = peep.Optimize(ctx, u.St, start)
	if err != nil {
		return errors.Wrap(err, "optimize")
	}

	Finalize(u.Root)

	u.Start = start
	u.finished = true

	if tr.If("dump_chain") {
		tr.Printw("chain", "unit", u.Name, "chain", string(format.Chain(nil, u.Start)))
	}

	tr.Printw("unit finished", "unit", u.Name, "stats", u.Stats, "slab", u.St.Group.Stats())

	return nil
}

// Abort frees whatever the unit has built.
func (u *Unit) Abort() {
	if g := u.St.Group; g != nil && !g.Released() {
		g.ForceFreeAll()
	}

	u.Root, u.Start = nil, nil
}

// Free drops a finished unit.
func (u *Unit) Free() {
	if g := u.St.Group; g != nil && !g.Released() {
		g.FreeGroup()
	}

	u.Root, u.Start = nil, nil
}

func (u *Unit) Finished() bool { return u.finished }

// Machine returns an evaluator set up for the unit's pad.
func (u *Unit) Machine(out io.Writer) *run.Machine {
	m := run.New(u.St.Pad)
	m.NoWarn = !u.St.Tune.Warnings

	if out != nil {
		m.Out = out
	}

	return m
}

// Run executes a finished unit in the given context.
func (u *Unit) Run(ctx context.Context, m *run.Machine, gimme op.Want) (res []*run.Scalar, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "run unit", "unit", u.Name)
	defer tr.Finish("err", &err)

	if !u.finished {
		return nil, errors.New("unit %v is not finished", u.Name)
	}

	res, err = m.RunSub(ctx, u.Start, u.Root, gimme)
	if err != nil {
		return nil, err
	}

	if tr.If("run") {
		tr.Printw("unit returned", "unit", u.Name, "steps", m.Steps, "results", len(res))
	}

	return res, nil
}

// prefixups fixes up the tree before the chain is threaded:
// statements are void except the value of the sub, and statements
// get the file name.
func prefixups(st *op.State, root *op.Node) {
	stack := []*op.Node{root}

	for len(stack) != 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch n.Type {
		case op.Nextstate:
			if n.File == "" {
				n.File = st.File
			}
		case op.Lineseq:
			tail := n.Parent() != nil && n.Parent().Type == op.Leavesub
			last := n.Last()

			for k := n.First(); k != nil; k = k.Sibling() {
				if k.Type == op.Nextstate || tail && k == last {
					continue
				}

				if k.Want() == op.WantUnknown {
					build.Void(k)
				}
			}
		}

		for k := n.First(); k != nil; k = k.Sibling() {
			stack = append(stack, k)
		}
	}
}
