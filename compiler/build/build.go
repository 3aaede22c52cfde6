// Package build is the constructor surface for op trees.
//
// Constructors take finished subtrees, splice them under a new op, tag the
// minimal context the optimizer relies on and fold the result when possible.
package build

import (
	"context"

	"github.com/perl11/cperl-sub000/compiler/fold"
	"github.com/perl11/cperl-sub000/compiler/op"
	"github.com/perl11/cperl-sub000/compiler/run"
)

type (
	Builder struct {
		St *op.State

		ctx context.Context
	}

	// Stmt is one statement of a block.
	Stmt struct {
		Label string
		Line  int
		Expr  *op.Node
	}
)

func New(ctx context.Context, st *op.State) *Builder {
	return &Builder{
		St:  st,
		ctx: ctx,
	}
}

func (b *Builder) fold(o *op.Node) *op.Node {
	return fold.Fold(b.ctx, b.St, o)
}

// Const makes a literal. Values are stored read-only.
func (b *Builder) Const(v any) *op.Node {
	o := b.St.New(op.Const, 0)
	o.Val = run.NewConst(v)

	return o
}

// Pad makes a padsv, padav or padhv op.
func (b *Builder) Pad(t op.Type, targ int, priv op.Priv) *op.Node {
	switch t {
	case op.Padsv, op.Padav, op.Padhv:
	default:
		op.Panicf("pad op of type %v", t)
	}

	o := b.St.New(t, 0)
	o.Targ = targ
	o.Priv = priv

	return o
}

// My declares a new lexical and returns the op introducing it.
func (b *Builder) My(name string, shape int) *op.Node {
	t := op.Padsv

	switch name[0] {
	case '@':
		t = op.Padav
	case '%':
		t = op.Padhv
	}

	if t != op.Padav {
		shape = -1
	}

	targ := b.St.Pad.Add(name, shape)

	return b.Pad(t, targ, op.PrivIntro)
}

func (b *Builder) Gv(name string) *op.Node {
	o := b.St.New(op.Gv, 0)
	o.Name = name

	return o
}

// Rv2 dereferences kid as a scalar, array or hash.
func (b *Builder) Rv2(t op.Type, kid *op.Node) *op.Node {
	switch t {
	case op.Rv2sv, op.Rv2av, op.Rv2hv:
	default:
		op.Panicf("rv2 of type %v", t)
	}

	o := b.St.New(t, 0)
	op.Append(o, scalar(kid))

	return o
}

func (b *Builder) Stub() *op.Node {
	return b.St.New(op.Stub, 0)
}

// Scalar forces scalar context on kid with a transparent wrapper.
func (b *Builder) Scalar(kid *op.Node) *op.Node {
	o := b.St.New(op.Scalar, op.Flags(op.WantScalar))
	op.Append(o, scalar(kid))

	return o
}

// Unop makes a unary op. Priv bits are set before folding sees it.
func (b *Builder) Unop(t op.Type, kid *op.Node, priv op.Priv) *op.Node {
	if t.Info().Class != op.ClassUnop {
		op.Panicf("unop of type %v", t)
	}

	o := b.St.New(t, 0)
	o.Priv = priv

	if kid != nil {
		op.Append(o, scalar(kid))
	}

	return b.fold(o)
}

func (b *Builder) Binop(t op.Type, l, r *op.Node) *op.Node {
	if t.Info().Class != op.ClassBinop {
		op.Panicf("binop of type %v", t)
	}

	o := b.St.New(t, 0)
	op.Append(o, scalar(l))
	op.Append(o, scalar(r))

	return b.fold(o)
}

// Listop makes a list op with a leading pushmark.
func (b *Builder) Listop(t op.Type, kids ...*op.Node) *op.Node {
	if t.Info().Class != op.ClassListop {
		op.Panicf("listop of type %v", t)
	}

	o := b.St.New(t, 0)
	op.Append(o, b.St.New(op.Pushmark, 0))

	for _, k := range kids {
		op.Append(o, list(k))
	}

	return b.fold(o)
}

func (b *Builder) List(kids ...*op.Node) *op.Node {
	return b.Listop(op.List, kids...)
}

func (b *Builder) Return(kids ...*op.Node) *op.Node {
	return b.Listop(op.Return, kids...)
}

// Aelem indexes an array. The container is taken as a reference
// and an element feeding it is told to vivify an array.
func (b *Builder) Aelem(av, idx *op.Node) *op.Node {
	return b.elem(op.Aelem, av, idx, op.PrivDerefAV)
}

func (b *Builder) Helem(hv, key *op.Node) *op.Node {
	return b.elem(op.Helem, hv, key, op.PrivDerefHV)
}

func (b *Builder) elem(t op.Type, c, key *op.Node, deref op.Priv) *op.Node {
	c.Flags |= op.FlagRef

	switch c.Type {
	case op.Rv2av, op.Rv2hv:
		if k := c.First(); k != nil && k.Type != op.Gv {
			k.Priv |= deref
		}
	}

	o := b.St.New(t, 0)
	op.Append(o, c)
	op.Append(o, scalar(key))

	return o
}

// Exists tests an element. The element op stays as an ex-aelem or ex-helem.
func (b *Builder) Exists(elem *op.Node) *op.Node {
	return b.elemop(op.Exists, elem)
}

func (b *Builder) Delete(elem *op.Node) *op.Node {
	return b.elemop(op.Delete, elem)
}

func (b *Builder) elemop(t op.Type, elem *op.Node) *op.Node {
	switch elem.Type {
	case op.Aelem, op.Helem:
	default:
		op.Panicf("%v of %v", t, elem.Type)
	}

	elem.Neutralize()

	o := b.St.New(t, 0)
	op.Append(o, elem)

	return o
}

// Arylen is the last index of an array.
func (b *Builder) Arylen(av *op.Node) *op.Node {
	av.Flags |= op.FlagRef

	o := b.St.New(op.Av2arylen, 0)
	op.Append(o, av)

	return o
}

// Sassign stores src into dst.
func (b *Builder) Sassign(src, dst *op.Node) *op.Node {
	dst.Flags |= op.FlagMod

	o := b.St.New(op.Sassign, 0)
	op.Append(o, scalar(src))
	op.Append(o, scalar(dst))

	return o
}

// Logop makes a short-circuit op. The result is a null wrapping it.
//
//	first -> logop -> (false) null
//	                  (true)  other -> null
func (b *Builder) Logop(t op.Type, first, other *op.Node) *op.Node {
	switch t {
	case op.And, op.Or, op.Dor:
	default:
		op.Panicf("logop of type %v", t)
	}

	l := b.St.New(t, 0)
	op.Append(l, scalar(first))
	op.Append(l, other)

	l.Other = op.Linearize(other)
	l.Float(op.Linearize(first))
	first.SetNext(l)

	n := b.St.New(op.Null, 0)
	op.Append(n, l)

	other.SetNext(n)

	return n
}

// Cond makes a conditional.
//
//	first -> cond_expr -> (false) f -> null
//	                      (true)  t -> null
func (b *Builder) Cond(first, t, f *op.Node) *op.Node {
	l := b.St.New(op.CondExpr, 0)
	op.Append(l, scalar(first))
	op.Append(l, t)
	op.Append(l, f)

	start := op.Linearize(first)
	first.SetNext(l)

	l.Other = op.Linearize(t)
	l.SetNext(op.Linearize(f))

	n := b.St.New(op.Null, 0)
	op.Append(n, l)

	t.SetNext(n)
	f.SetNext(n)

	n.Float(start)

	return n
}

// Foreach loops targ over the integer range lo..hi.
//
//	lo -> hi -> enteriter -> iter -> and -> (false) leaveloop
//	                          ^       (true) body -> unstack
//	                          +-----------------------+
func (b *Builder) Foreach(targ int, lo, hi *op.Node, body []Stmt) *op.Node {
	ent := b.St.New(op.Enteriter, 0)
	ent.Targ = targ
	op.Append(ent, scalar(lo))
	op.Append(ent, scalar(hi))

	seq := b.block(body, false)
	unstack := b.St.New(op.Unstack, 0)
	op.Append(seq, unstack)

	iter := b.St.New(op.Iter, 0)

	wrap := b.Logop(op.And, iter, seq)

	unstack.SetNext(op.Linearize(wrap))

	o := b.St.New(op.Leaveloop, 0)
	op.Append(o, ent)
	op.Append(o, wrap)

	return o
}

// Block makes a statement sequence. Statements are void
// unless tail is set, in which case the last keeps the caller's context.
func (b *Builder) Block(stmts []Stmt, tail bool) *op.Node {
	return b.block(stmts, tail)
}

func (b *Builder) block(stmts []Stmt, tail bool) *op.Node {
	seq := b.St.New(op.Lineseq, 0)

	for i, s := range stmts {
		op.Append(seq, b.Nextstate(s.Label, s.Line))

		if s.Expr == nil {
			continue
		}

		if !tail || i != len(stmts)-1 {
			Void(s.Expr)
		}

		op.Append(seq, s.Expr)
	}

	return seq
}

func (b *Builder) Nextstate(label string, line int) *op.Node {
	o := b.St.New(op.Nextstate, 0)
	o.Label = label
	o.Line = line
	o.File = b.St.File

	return o
}

// Sub wraps the body into the sub epilogue. The result is the root of a unit.
func (b *Builder) Sub(stmts []Stmt) *op.Node {
	o := b.St.New(op.Leavesub, 0)
	op.Append(o, b.block(stmts, true))
	o.Refs = 1

	return o
}

// Void marks o as evaluated for side effects only.
func Void(o *op.Node) *op.Node {
	o.SetWant(op.WantVoid)

	switch o.Type {
	case op.Null:
		if k := o.First(); k != nil && k.Class() == op.ClassLogop {
			Void(k)
		}
	case op.And, op.Or, op.Dor:
		Void(o.Kid(1))
	case op.CondExpr:
		Void(o.Kid(1))
		Void(o.Kid(2))
	case op.List, op.Lineseq, op.Scope:
		for _, k := range o.Kids() {
			if k.Type != op.Pushmark {
				Void(k)
			}
		}
	}

	return o
}

func scalar(o *op.Node) *op.Node {
	if o.Want() == op.WantUnknown {
		o.SetWant(op.WantScalar)
	}

	return o
}

func list(o *op.Node) *op.Node {
	if o.Want() == op.WantUnknown {
		o.SetWant(op.WantList)
	}

	return o
}
