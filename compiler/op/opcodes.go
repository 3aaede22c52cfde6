package op

import (
	"strconv"

	"tlog.app/go/tlog/tlwire"
)

type (
	Type  uint16
	Class uint8

	Info struct {
		Name  string
		Class Class
		Size  int // slot size in units

		Fold bool // may be constant-folded when operands are constants
		Safe bool // allowed inside a chain being folded
		Alt  bool // has an alternate path in Other
	}
)

const (
	ClassBase Class = iota
	ClassUnop
	ClassBinop
	ClassLogop
	ClassListop
	ClassLoop
	ClassCop
	ClassSvop
	ClassPadop
	ClassAuxop
	ClassFreed
)

const (
	Null Type = iota
	Stub
	Freed
	Scalar
	Pushmark
	Const
	Padsv
	Padav
	Padhv
	Padrange
	Gv
	Rv2sv
	Rv2av
	Rv2hv
	Aelem
	AelemU
	Helem
	Exists
	Delete
	Multideref
	Av2arylen
	Sassign
	Add
	Subtract
	Multiply
	Divide
	Modulo
	Concat
	Negate
	Not
	Lt
	Gt
	Le
	Ge
	Eq
	Ne
	Seq
	Sne
	Length
	Lc
	Uc
	Sprintf
	And
	Or
	Dor
	CondExpr
	Nextstate
	Lineseq
	Scope
	Enteriter
	Iter
	Unstack
	Leaveloop
	Return
	Leavesub
	List
	Say
	Die

	NTypes
)

var classSize = [...]int{
	ClassBase:   1,
	ClassUnop:   2,
	ClassBinop:  3,
	ClassLogop:  3,
	ClassListop: 3,
	ClassLoop:   4,
	ClassCop:    4,
	ClassSvop:   2,
	ClassPadop:  1,
	ClassAuxop:  3,
	ClassFreed:  1,
}

var table [NTypes]Info

func init() {
	def := func(t Type, name string, c Class, fold, safe bool) {
		table[t] = Info{Name: name, Class: c, Size: classSize[c], Fold: fold, Safe: safe || fold}
	}

	def(Null, "null", ClassUnop, false, true)
	def(Stub, "stub", ClassBase, false, false)
	def(Freed, "freed", ClassFreed, false, false)
	def(Scalar, "scalar", ClassUnop, false, true)
	def(Pushmark, "pushmark", ClassBase, false, true)
	def(Const, "const", ClassSvop, false, true)
	def(Padsv, "padsv", ClassPadop, false, false)
	def(Padav, "padav", ClassPadop, false, false)
	def(Padhv, "padhv", ClassPadop, false, false)
	def(Padrange, "padrange", ClassPadop, false, false)
	def(Gv, "gv", ClassSvop, false, false)
	def(Rv2sv, "rv2sv", ClassUnop, false, false)
	def(Rv2av, "rv2av", ClassUnop, false, false)
	def(Rv2hv, "rv2hv", ClassUnop, false, false)
	def(Aelem, "aelem", ClassBinop, false, false)
	def(AelemU, "aelem_u", ClassBinop, false, false)
	def(Helem, "helem", ClassBinop, false, false)
	def(Exists, "exists", ClassUnop, false, false)
	def(Delete, "delete", ClassUnop, false, false)
	def(Multideref, "multideref", ClassAuxop, false, false)
	def(Av2arylen, "av2arylen", ClassUnop, false, false)
	def(Sassign, "sassign", ClassBinop, false, false)

	for _, t := range []Type{Add, Subtract, Multiply, Divide, Modulo, Concat, Lt, Gt, Le, Ge, Eq, Ne, Seq, Sne} {
		def(t, "", ClassBinop, true, true)
	}

	for _, t := range []Type{Negate, Not, Length, Lc, Uc} {
		def(t, "", ClassUnop, true, true)
	}

	def(Sprintf, "sprintf", ClassListop, true, true)

	def(And, "and", ClassLogop, false, false)
	def(Or, "or", ClassLogop, false, false)
	def(Dor, "dor", ClassLogop, false, false)
	def(CondExpr, "cond_expr", ClassLogop, false, false)

	def(Nextstate, "nextstate", ClassCop, false, false)
	def(Lineseq, "lineseq", ClassListop, false, false)
	def(Scope, "scope", ClassListop, false, false)
	def(Enteriter, "enteriter", ClassLoop, false, false)
	def(Iter, "iter", ClassBase, false, false)
	def(Unstack, "unstack", ClassBase, false, false)
	def(Leaveloop, "leaveloop", ClassBinop, false, false)
	def(Return, "return", ClassListop, false, false)
	def(Leavesub, "leavesub", ClassUnop, false, false)
	def(List, "list", ClassListop, false, true)
	def(Say, "say", ClassListop, false, false)
	def(Die, "die", ClassListop, false, false)

	names := map[Type]string{
		Add: "add", Subtract: "subtract", Multiply: "multiply", Divide: "divide", Modulo: "modulo",
		Concat: "concat", Lt: "lt", Gt: "gt", Le: "le", Ge: "ge", Eq: "eq", Ne: "ne",
		Seq: "seq", Sne: "sne", Negate: "negate", Not: "not", Length: "length", Lc: "lc", Uc: "uc",
	}

	for t, n := range names {
		table[t].Name = n
	}

	for _, t := range []Type{And, Or, Dor, CondExpr} {
		table[t].Alt = true
	}
}

func (t Type) Info() Info {
	if t >= NTypes {
		Panicf("bad op type %d", int(t))
	}

	return table[t]
}

func (t Type) String() string {
	if t >= NTypes {
		return "op" + strconv.Itoa(int(t))
	}

	return table[t].Name
}

func (t Type) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	return e.AppendString(b, t.String())
}

// Lookup finds an op type by its name.
func Lookup(name string) (Type, bool) {
	for t := Type(0); t < NTypes; t++ {
		if table[t].Name == name {
			return t, true
		}
	}

	return 0, false
}

// TracksLast reports whether the class keeps an explicit last child pointer.
func (c Class) TracksLast() bool {
	return c == ClassBinop || c == ClassListop || c == ClassLoop
}

func (c Class) String() string {
	switch c {
	case ClassBase:
		return "base"
	case ClassUnop:
		return "unop"
	case ClassBinop:
		return "binop"
	case ClassLogop:
		return "logop"
	case ClassListop:
		return "listop"
	case ClassLoop:
		return "loop"
	case ClassCop:
		return "cop"
	case ClassSvop:
		return "svop"
	case ClassPadop:
		return "padop"
	case ClassAuxop:
		return "auxop"
	case ClassFreed:
		return "freed"
	}

	return "class" + strconv.Itoa(int(c))
}
