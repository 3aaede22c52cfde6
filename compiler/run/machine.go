package run

import (
	"context"
	"fmt"
	"io"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/perl11/cperl-sub000/compiler/op"
)

type (
	Machine struct {
		Stack []any
		Marks []int

		loops []loop

		Pad     []any
		Names   *op.Pad
		Globals map[string]*Glob

		Gimme op.Want
		Leave *op.Node // leavesub of the running sub

		Cop *op.Node

		// Warn gets every runtime warning. A non-nil error dies.
		Warn     func(msg string) error
		NoWarn   bool
		Warnings []string

		Out    io.Writer
		Result []*Scalar

		Steps int

		tr tlog.Span
	}

	loop struct {
		sp   int
		targ int
		save any

		cur, hi int64
	}

	// Error is a runtime exception.
	Error struct {
		Msg  string
		File string
		Line int
	}

	ppFunc func(m *Machine, o *op.Node) (*op.Node, error)
)

var pp [op.NTypes]ppFunc

func New(names *op.Pad) *Machine {
	m := &Machine{
		Names:   names,
		Globals: map[string]*Glob{},
		Gimme:   op.WantVoid,
		Out:     io.Discard,
	}

	if names != nil {
		m.Pad = make([]any, len(names.Names))

		for i := range m.Pad {
			m.Pad[i] = m.fresh(i)
		}
	}

	return m
}

func (m *Machine) fresh(targ int) any {
	if m.Names == nil || targ <= 0 || targ >= len(m.Names.Names) {
		return &Scalar{}
	}

	switch m.Names.Sigil(targ) {
	case '@':
		return NewArray(m.Names.Shape(targ))
	case '%':
		return NewHash()
	}

	return &Scalar{}
}

// Run executes the chain from start until it runs off the end.
func (m *Machine) Run(ctx context.Context, start *op.Node) (err error) {
	m.tr = tlog.SpanFromContext(ctx)
	trace := m.tr.If("trace")

	for o := start; o != nil; {
		if trace {
			m.tr.Printw("exec", "op", o, "sp", len(m.Stack), "marks", len(m.Marks))
		}

		f := pp[o.Type]
		if f == nil {
			return errors.New("no implementation for %v", o.Type)
		}

		m.Steps++

		o, err = f(m, o)
		if err != nil {
			return err
		}
	}

	return nil
}

// RunSub runs the unit starting at start and finished by leave
// in the given context and returns its result.
func (m *Machine) RunSub(ctx context.Context, start, leave *op.Node, gimme op.Want) ([]*Scalar, error) {
	m.Gimme = gimme
	m.Leave = leave
	m.Result = nil

	err := m.Run(ctx, start)
	if err != nil {
		return nil, err
	}

	return m.Result, nil
}

// Glob returns the global by name, creating it.
func (m *Machine) Glob(name string) *Glob {
	g := m.Globals[name]
	if g == nil {
		g = &Glob{Name: name}
		m.Globals[name] = g
	}

	return g
}

func (m *Machine) push(x any) {
	m.Stack = append(m.Stack, x)
}

func (m *Machine) pop() any {
	l := len(m.Stack)
	if l == 0 {
		op.Panicf("stack underflow")
	}

	x := m.Stack[l-1]
	m.Stack = m.Stack[:l-1]

	return x
}

func (m *Machine) popScalar() *Scalar {
	switch x := m.pop().(type) {
	case *Scalar:
		return x
	case nil:
		return &Scalar{}
	default:
		op.Panicf("scalar expected, got %T", x)
	}

	return nil
}

func (m *Machine) top() *Scalar {
	x := m.pop()
	m.push(x)

	s, ok := x.(*Scalar)
	if !ok {
		op.Panicf("scalar expected, got %T", x)
	}

	return s
}

func (m *Machine) pushMark() {
	m.Marks = append(m.Marks, len(m.Stack))
}

func (m *Machine) popMark() int {
	l := len(m.Marks)
	if l == 0 {
		op.Panicf("mark stack underflow")
	}

	x := m.Marks[l-1]
	m.Marks = m.Marks[:l-1]

	if x > len(m.Stack) {
		x = len(m.Stack)
	}

	return x
}

// base is the stack floor of the innermost frame.
func (m *Machine) base() int {
	if l := len(m.loops); l != 0 {
		return m.loops[l-1].sp
	}

	return 0
}

func (m *Machine) resetStack(sp int) {
	m.Stack = m.Stack[:sp]

	for len(m.Marks) != 0 && m.Marks[len(m.Marks)-1] > sp {
		m.Marks = m.Marks[:len(m.Marks)-1]
	}
}

// want resolves an unknown context to the calling context.
func (m *Machine) want(o *op.Node) op.Want {
	if w := o.Want(); w != op.WantUnknown {
		return w
	}

	return m.Gimme
}

func (m *Machine) where() string {
	if m.Cop == nil || m.Cop.File == "" {
		return ""
	}

	return fmt.Sprintf(" at %s line %d.", m.Cop.File, m.Cop.Line)
}

func (m *Machine) errorf(format string, args ...any) error {
	e := &Error{Msg: fmt.Sprintf(format, args...)}

	if m.Cop != nil {
		e.File = m.Cop.File
		e.Line = m.Cop.Line
	}

	return e
}

func (m *Machine) warnf(format string, args ...any) error {
	if m.NoWarn {
		return nil
	}

	msg := fmt.Sprintf(format, args...) + m.where()

	if m.Warn != nil {
		if err := m.Warn(msg); err != nil {
			return err
		}

		return nil
	}

	m.Warnings = append(m.Warnings, msg)

	if m.tr.If("warn") {
		m.tr.Printw("warning", "msg", msg)
	}

	return nil
}

func (e *Error) Error() string {
	if strings.HasSuffix(e.Msg, "\n") || e.File == "" {
		return strings.TrimSuffix(e.Msg, "\n")
	}

	return fmt.Sprintf("%s at %s line %d.", e.Msg, e.File, e.Line)
}

// ScalarAt returns the pad scalar at targ.
func (m *Machine) ScalarAt(targ int) *Scalar {
	s, _ := m.Pad[targ].(*Scalar)
	return s
}

func (m *Machine) ArrayAt(targ int) *Array {
	a, _ := m.Pad[targ].(*Array)
	return a
}

func (m *Machine) HashAt(targ int) *Hash {
	h, _ := m.Pad[targ].(*Hash)
	return h
}
