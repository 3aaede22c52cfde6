package peep

import "github.com/perl11/cperl-sub000/compiler/op"

type truth int

const (
	notBool truth = iota
	isBool
	maybeBool
)

// boolean tags o when its result is only tested for truth.
func (p *peeper) boolean(o *op.Node) {
	switch boolCtx(o) {
	case isBool:
		o.Priv |= op.PrivTrueBool
		o.Priv &^= op.PrivMaybeTrueBool
	case maybeBool:
		o.Priv |= op.PrivMaybeTrueBool
	default:
		return
	}

	p.rewrite("boolean", o)
}

// boolCtx follows the consumers of o's value up through transparent
// wrappers and short-circuit ops.
func boolCtx(o *op.Node) truth {
	for {
		par := o.Parent()
		if par == nil {
			return notBool
		}

		switch par.Type {
		case op.Null:
			if par.Ex != op.Null {
				return notBool
			}
		case op.Scalar:
		case op.Not:
			return isBool
		case op.CondExpr:
			if par.First() == o {
				return isBool
			}
		case op.And, op.Or:
			switch par.Want() {
			case op.WantVoid:
				return isBool
			case op.WantUnknown:
				return maybeBool
			case op.WantList:
				return notBool
			}
		default:
			return notBool
		}

		o = par
	}
}
