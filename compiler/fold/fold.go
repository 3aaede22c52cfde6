// Package fold replaces pure subtrees with the constants they compute.
//
// The subtree is run by the real evaluator, so folded values never differ
// from what the program would compute at run time.
package fold

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/perl11/cperl-sub000/compiler/op"
	"github.com/perl11/cperl-sub000/compiler/run"
)

// Fold tries to evaluate o at compile time.
// It returns the new const op on success, or o untouched.
func Fold(ctx context.Context, st *op.State, o *op.Node) *op.Node {
	if !st.Tune.Fold || !o.Type.Info().Fold || o.Next() != nil {
		return o
	}

	tr := tlog.SpanFromContext(ctx)

	if reason := skip(o); reason != "" {
		if tr.If("fold") {
			tr.Printw("fold skipped", "op", o, "reason", reason)
		}

		return o
	}

	start := op.Linearize(o)

	for k := start; k != o; k = k.Next() {
		if k == nil || !k.Type.Info().Safe {
			if tr.If("fold") {
				tr.Printw("fold unsafe", "op", o, "at", k)
			}

			o.Float(start)

			return o
		}
	}

	v, err := try(ctx, st, o, start)

	o.Float(start)

	if err != nil {
		if tr.If("fold") {
			tr.Printw("fold failed", "op", o, "err", err)
		}

		return o
	}

	c := st.New(op.Const, o.Flags&(op.FlagWant|op.FlagParens))
	c.Val = run.NewConst(v)
	c.Priv |= op.PrivFolded
	c.Line = o.Line

	if tr.If("fold") {
		tr.Printw("folded", "op", o, "val", v, "const", c)
	}

	st.FreeTree(o)

	return c
}

// try runs the chain from start to o with compile state saved and warnings
// turned into errors.
func try(ctx context.Context, st *op.State, o, start *op.Node) (v *run.Scalar, err error) {
	st.Push()
	defer st.Pop()

	st.Warn = func(msg string) error {
		return errors.New("%s", msg)
	}

	st.Cop = &op.Node{Type: op.Nextstate, File: st.File}
	if st.Cop.File == "" {
		st.Cop.File = "(fold)"
	}

	o.SetNext(nil)

	m := run.New(nil)
	m.Gimme = op.WantScalar
	m.Cop = st.Cop
	m.Warn = st.Warn
	m.NoWarn = !st.Tune.Warnings

	err = m.Run(ctx, start)
	if err != nil {
		return nil, err
	}

	if len(m.Stack) != 1 || len(m.Marks) != 0 {
		return nil, errors.New("fold left %d values and %d marks", len(m.Stack), len(m.Marks))
	}

	v, ok := m.Stack[0].(*run.Scalar)
	if !ok {
		return nil, errors.New("fold result is %T", m.Stack[0])
	}

	return v, nil
}

// skip returns why o must not be tried.
func skip(o *op.Node) string {
	switch o.Type {
	case op.Lc, op.Uc:
		if o.Priv&op.PrivLocale != 0 {
			return "locale"
		}
	case op.Sprintf:
		return sprintfArgs(o)
	}

	return ""
}

// sprintfArgs accepts only a constant format whose conversions take
// exactly the arguments given.
func sprintfArgs(o *op.Node) string {
	kids := o.Kids()

	if len(kids) != 0 && kids[0].Type == op.Pushmark {
		kids = kids[1:]
	}

	if len(kids) == 0 || kids[0].Type != op.Const {
		return "format is not constant"
	}

	f := run.NewConst(kids[0].Val).String()
	args := len(kids) - 1

	n := 0
	bad := ""

	run.ParseFormat(f, func(string) {}, func(c run.Conversion, raw string) {
		switch {
		case c.Verb == '%' && c.Flags == "" && c.Width == "" && c.Prec == "":
			return
		case c.Star, c.Vector, c.Verb == 'n':
			bad = raw
		}

		n++
	})

	switch {
	case bad != "":
		return "conversion " + bad
	case n != args:
		return "argument count"
	}

	return ""
}
