package run

import (
	"github.com/perl11/cperl-sub000/compiler/op"
)

var desc = map[op.Type]string{
	op.Add:       "addition (+)",
	op.Subtract:  "subtraction (-)",
	op.Multiply:  "multiplication (*)",
	op.Divide:    "division (/)",
	op.Modulo:    "modulus (%)",
	op.Concat:    "concatenation (.) or string",
	op.Negate:    "negation (-)",
	op.Lt:        "numeric lt (<)",
	op.Gt:        "numeric gt (>)",
	op.Le:        "numeric le (<=)",
	op.Ge:        "numeric ge (>=)",
	op.Eq:        "numeric eq (==)",
	op.Ne:        "numeric ne (!=)",
	op.Seq:       "string eq",
	op.Sne:       "string ne",
	op.Aelem:     "array element",
	op.AelemU:    "array element",
	op.Helem:     "hash element",
	op.Enteriter: "foreach loop entry",
}

func init() {
	for _, t := range []op.Type{op.Null, op.Scalar, op.Lineseq, op.Scope} {
		pp[t] = ppNull
	}

	pp[op.Freed] = ppFreed
	pp[op.Stub] = ppStub
	pp[op.Pushmark] = ppPushmark
	pp[op.Const] = ppConst
	pp[op.List] = ppList

	pp[op.Padsv] = ppPadsv
	pp[op.Padav] = ppPadav
	pp[op.Padhv] = ppPadhv
	pp[op.Padrange] = ppPadrange
	pp[op.Gv] = ppGv
	pp[op.Rv2sv] = ppRv2sv
	pp[op.Rv2av] = ppRv2av
	pp[op.Rv2hv] = ppRv2hv
	pp[op.Aelem] = ppAelem
	pp[op.AelemU] = ppAelemU
	pp[op.Helem] = ppHelem
	pp[op.Exists] = ppExists
	pp[op.Delete] = ppDelete
	pp[op.Av2arylen] = ppAv2arylen
	pp[op.Sassign] = ppSassign
	pp[op.Multideref] = ppMultideref

	for _, t := range []op.Type{op.Add, op.Subtract, op.Multiply, op.Divide, op.Modulo} {
		pp[t] = ppArith
	}

	for _, t := range []op.Type{op.Lt, op.Gt, op.Le, op.Ge, op.Eq, op.Ne} {
		pp[t] = ppNumCmp
	}

	pp[op.Seq] = ppStrCmp
	pp[op.Sne] = ppStrCmp
	pp[op.Concat] = ppConcat
	pp[op.Negate] = ppNegate
	pp[op.Not] = ppNot
	pp[op.Length] = ppLength
	pp[op.Lc] = ppCase
	pp[op.Uc] = ppCase
	pp[op.Sprintf] = ppSprintf

	pp[op.And] = ppAnd
	pp[op.Or] = ppOr
	pp[op.Dor] = ppDor
	pp[op.CondExpr] = ppCondExpr

	pp[op.Nextstate] = ppNextstate
	pp[op.Enteriter] = ppEnteriter
	pp[op.Iter] = ppIter
	pp[op.Unstack] = ppUnstack
	pp[op.Leaveloop] = ppLeaveloop
	pp[op.Return] = ppReturn
	pp[op.Leavesub] = ppLeavesub
	pp[op.Say] = ppSay
	pp[op.Die] = ppDie
}

func descOf(o *op.Node) string {
	if d, ok := desc[o.Type]; ok {
		return d
	}

	return o.Type.String()
}

func ppNull(m *Machine, o *op.Node) (*op.Node, error) {
	return o.Next(), nil
}

func ppFreed(m *Machine, o *op.Node) (*op.Node, error) {
	op.Panicf("freed op #%d (ex-%v) executed", o.ID, o.Ex)
	return nil, nil
}

func ppStub(m *Machine, o *op.Node) (*op.Node, error) {
	if m.want(o) != op.WantList {
		m.push(&Scalar{})
	}

	return o.Next(), nil
}

func ppPushmark(m *Machine, o *op.Node) (*op.Node, error) {
	m.pushMark()

	return o.Next(), nil
}

func ppConst(m *Machine, o *op.Node) (*op.Node, error) {
	s, ok := o.Val.(*Scalar)
	if !ok {
		s = NewConst(o.Val)
	}

	m.push(s)

	return o.Next(), nil
}

func ppList(m *Machine, o *op.Node) (*op.Node, error) {
	mark := m.popMark()

	switch m.want(o) {
	case op.WantVoid:
		m.resetStack(mark)
	case op.WantScalar:
		var last any = &Scalar{}
		if len(m.Stack) > mark {
			last = m.Stack[len(m.Stack)-1]
		}

		m.resetStack(mark)
		m.push(last)
	}

	return o.Next(), nil
}

// num converts s for an arithmetic op, warning the way the language does.
func (m *Machine) num(s *Scalar, o *op.Node) (any, error) {
	if !s.Defined() {
		if err := m.warnf("Use of uninitialized value in %s", descOf(o)); err != nil {
			return nil, err
		}

		return int64(0), nil
	}

	v, ok := s.Num()
	if !ok {
		if err := m.warnf("Argument \"%s\" isn't numeric in %s", s.String(), descOf(o)); err != nil {
			return nil, err
		}
	}

	return v, nil
}

func (m *Machine) toInt(s *Scalar, o *op.Node) (int64, error) {
	v, err := m.num(s, o)
	if err != nil {
		return 0, err
	}

	switch v := v.(type) {
	case float64:
		return int64(v), nil
	default:
		return v.(int64), nil
	}
}

func (m *Machine) str(s *Scalar, o *op.Node) (string, error) {
	if !s.Defined() {
		if err := m.warnf("Use of uninitialized value in %s", descOf(o)); err != nil {
			return "", err
		}
	}

	return s.String(), nil
}

// items pops everything above the mark.
func (m *Machine) items() []*Scalar {
	mark := m.popMark()

	l := make([]*Scalar, 0, len(m.Stack)-mark)

	for _, x := range m.Stack[mark:] {
		s, ok := x.(*Scalar)
		if !ok {
			op.Panicf("scalar expected in list, got %T", x)
		}

		l = append(l, s)
	}

	m.resetStack(mark)

	return l
}
