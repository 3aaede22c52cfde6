package run

import (
	"io"
	"strings"

	"github.com/perl11/cperl-sub000/compiler/op"
)

func ppNextstate(m *Machine, o *op.Node) (*op.Node, error) {
	m.Cop = o
	m.resetStack(m.base())

	return o.Next(), nil
}

func ppAnd(m *Machine, o *op.Node) (*op.Node, error) {
	if !m.top().Truth() {
		return o.Next(), nil
	}

	m.pop()

	return o.Other, nil
}

func ppOr(m *Machine, o *op.Node) (*op.Node, error) {
	if m.top().Truth() {
		return o.Next(), nil
	}

	m.pop()

	return o.Other, nil
}

func ppDor(m *Machine, o *op.Node) (*op.Node, error) {
	if m.top().Defined() {
		return o.Next(), nil
	}

	m.pop()

	return o.Other, nil
}

func ppCondExpr(m *Machine, o *op.Node) (*op.Node, error) {
	if m.popScalar().Truth() {
		return o.Other, nil
	}

	return o.Next(), nil
}

func ppEnteriter(m *Machine, o *op.Node) (*op.Node, error) {
	hs := m.popScalar()
	ls := m.popScalar()

	lo, err := m.toInt(ls, o)
	if err != nil {
		return nil, err
	}

	hi, err := m.toInt(hs, o)
	if err != nil {
		return nil, err
	}

	m.loops = append(m.loops, loop{
		sp:   len(m.Stack),
		targ: o.Targ,
		save: m.Pad[o.Targ],
		cur:  lo,
		hi:   hi,
	})

	return o.Next(), nil
}

func ppIter(m *Machine, o *op.Node) (*op.Node, error) {
	l := &m.loops[len(m.loops)-1]

	if l.cur > l.hi {
		m.push(No)
		return o.Next(), nil
	}

	m.Pad[l.targ] = &Scalar{V: l.cur}
	l.cur++

	m.push(Yes)

	return o.Next(), nil
}

func ppUnstack(m *Machine, o *op.Node) (*op.Node, error) {
	m.resetStack(m.base())

	return o.Next(), nil
}

func ppLeaveloop(m *Machine, o *op.Node) (*op.Node, error) {
	m.leaveLoop()

	return o.Next(), nil
}

func (m *Machine) leaveLoop() {
	l := m.loops[len(m.loops)-1]
	m.loops = m.loops[:len(m.loops)-1]

	m.Pad[l.targ] = l.save
	m.resetStack(l.sp)
}

func ppReturn(m *Machine, o *op.Node) (*op.Node, error) {
	mark := m.popMark()

	vals := append([]any{}, m.Stack[mark:]...)

	for len(m.loops) != 0 {
		m.leaveLoop()
	}

	m.resetStack(0)
	m.Stack = append(m.Stack, vals...)

	if m.Leave == nil {
		m.leave()
		return nil, nil
	}

	return m.Leave, nil
}

func ppLeavesub(m *Machine, o *op.Node) (*op.Node, error) {
	m.leave()

	return o.Next(), nil
}

// leave takes the sub result off the stack according to the calling context.
func (m *Machine) leave() {
	vals := m.Stack[m.base():]

	m.Result = m.Result[:0]

	switch m.Gimme {
	case op.WantVoid:
	case op.WantScalar:
		var s *Scalar

		if l := len(vals); l != 0 {
			s, _ = vals[l-1].(*Scalar)
		}

		m.Result = append(m.Result, s.Copy())
	default:
		for _, x := range vals {
			s, _ := x.(*Scalar)
			m.Result = append(m.Result, s.Copy())
		}
	}

	m.resetStack(m.base())
}

func ppSay(m *Machine, o *op.Node) (*op.Node, error) {
	var b strings.Builder

	for _, s := range m.items() {
		str, err := m.str(s, o)
		if err != nil {
			return nil, err
		}

		b.WriteString(str)
	}

	b.WriteByte('\n')

	if _, err := io.WriteString(m.Out, b.String()); err != nil {
		return nil, m.errorf("say: %v", err)
	}

	m.push(Yes)

	return o.Next(), nil
}

func ppDie(m *Machine, o *op.Node) (*op.Node, error) {
	var b strings.Builder

	for _, s := range m.items() {
		b.WriteString(s.String())
	}

	msg := b.String()
	if msg == "" {
		msg = "Died"
	}

	if strings.HasSuffix(msg, "\n") {
		return nil, &Error{Msg: msg}
	}

	return nil, m.errorf("%s", msg)
}
