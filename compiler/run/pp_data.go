package run

import (
	"github.com/perl11/cperl-sub000/compiler/op"
)

func ppPadsv(m *Machine, o *op.Node) (*op.Node, error) {
	if o.Priv&op.PrivIntro != 0 {
		m.Pad[o.Targ] = &Scalar{}
	}

	s := m.ScalarAt(o.Targ)

	if err := m.vivify(s, o.Priv); err != nil {
		return nil, err
	}

	m.push(s)

	return o.Next(), nil
}

func ppPadav(m *Machine, o *op.Node) (*op.Node, error) {
	if o.Priv&op.PrivIntro != 0 {
		m.Pad[o.Targ] = m.fresh(o.Targ)
	}

	m.pushArray(o, m.ArrayAt(o.Targ))

	return o.Next(), nil
}

func ppPadhv(m *Machine, o *op.Node) (*op.Node, error) {
	if o.Priv&op.PrivIntro != 0 {
		m.Pad[o.Targ] = m.fresh(o.Targ)
	}

	m.pushHash(o, m.HashAt(o.Targ))

	return o.Next(), nil
}

func ppPadrange(m *Machine, o *op.Node) (*op.Node, error) {
	m.pushMark()

	for t := o.Targ; t < o.Targ+o.Count; t++ {
		if o.Priv&op.PrivIntro != 0 {
			m.Pad[t] = m.fresh(t)
		}

		if m.want(o) != op.WantVoid {
			m.push(m.Pad[t])
		}
	}

	return o.Next(), nil
}

func ppGv(m *Machine, o *op.Node) (*op.Node, error) {
	m.push(m.Glob(o.Name))

	return o.Next(), nil
}

func ppRv2sv(m *Machine, o *op.Node) (*op.Node, error) {
	switch x := m.pop().(type) {
	case *Glob:
		m.push(x.Scalar())
	case *Scalar:
		if !x.Defined() {
			return nil, m.errorf("Can't use an undefined value as a SCALAR reference")
		}

		return nil, m.errorf("Not a SCALAR reference")
	default:
		op.Panicf("rv2sv of %T", x)
	}

	return o.Next(), nil
}

func ppRv2av(m *Machine, o *op.Node) (*op.Node, error) {
	x := m.pop()

	a, err := m.derefArray(x, o.Flags&op.FlagMod != 0)
	if err != nil {
		return nil, err
	}

	m.pushArray(o, a)

	return o.Next(), nil
}

func ppRv2hv(m *Machine, o *op.Node) (*op.Node, error) {
	x := m.pop()

	h, err := m.derefHash(x, o.Flags&op.FlagMod != 0)
	if err != nil {
		return nil, err
	}

	m.pushHash(o, h)

	return o.Next(), nil
}

func (m *Machine) derefArray(x any, lval bool) (*Array, error) {
	switch x := x.(type) {
	case *Glob:
		return x.Array(), nil
	case *Array:
		return x, nil
	case *Scalar:
		if !x.Defined() && lval {
			if err := m.vivify(x, op.PrivDerefAV); err != nil {
				return nil, err
			}
		}

		switch v := x.V.(type) {
		case *Array:
			return v, nil
		case nil:
			return nil, m.errorf("Can't use an undefined value as an ARRAY reference")
		}

		return nil, m.errorf("Not an ARRAY reference")
	}

	op.Panicf("rv2av of %T", x)

	return nil, nil
}

func (m *Machine) derefHash(x any, lval bool) (*Hash, error) {
	switch x := x.(type) {
	case *Glob:
		return x.Hash(), nil
	case *Hash:
		return x, nil
	case *Scalar:
		if !x.Defined() && lval {
			if err := m.vivify(x, op.PrivDerefHV); err != nil {
				return nil, err
			}
		}

		switch v := x.V.(type) {
		case *Hash:
			return v, nil
		case nil:
			return nil, m.errorf("Can't use an undefined value as a HASH reference")
		}

		return nil, m.errorf("Not a HASH reference")
	}

	op.Panicf("rv2hv of %T", x)

	return nil, nil
}

// vivify turns an undefined scalar into a new reference of the kind priv asks for.
func (m *Machine) vivify(s *Scalar, priv op.Priv) error {
	if priv&(op.PrivDerefAV|op.PrivDerefHV) == 0 || s.Defined() {
		return nil
	}

	if s.RO {
		return m.errorf("Modification of a read-only value attempted")
	}

	if priv&op.PrivDerefAV != 0 {
		s.V = NewArray(-1)
	} else {
		s.V = NewHash()
	}

	return nil
}

func (m *Machine) pushArray(o *op.Node, a *Array) {
	switch {
	case o.Flags&op.FlagRef != 0:
		m.push(a)
	case m.boolean(o):
		m.push(Bool(len(a.E) != 0))
	default:
		switch m.want(o) {
		case op.WantList:
			for _, e := range a.E {
				if e == nil {
					e = &Scalar{}
				}

				m.push(e)
			}
		case op.WantScalar:
			m.push(&Scalar{V: int64(len(a.E))})
		}
	}
}

func (m *Machine) pushHash(o *op.Node, h *Hash) {
	switch {
	case o.Flags&op.FlagRef != 0:
		m.push(h)
	case m.boolean(o):
		m.push(Bool(h.Len() != 0))
	default:
		switch m.want(o) {
		case op.WantList:
			for _, k := range h.Keys {
				m.push(&Scalar{V: k})
				m.push(h.M[k])
			}
		case op.WantScalar:
			m.push(&Scalar{V: int64(h.Len())})
		}
	}
}

// boolean reports whether only the truth of the result is used.
func (m *Machine) boolean(o *op.Node) bool {
	return o.Priv&op.PrivTrueBool != 0 || o.Priv&op.PrivMaybeTrueBool != 0 && m.Gimme == op.WantVoid
}

func ppAelem(m *Machine, o *op.Node) (*op.Node, error) {
	return m.aelem(o, true)
}

func ppAelemU(m *Machine, o *op.Node) (*op.Node, error) {
	return m.aelem(o, false)
}

func (m *Machine) aelem(o *op.Node, checked bool) (*op.Node, error) {
	ix := m.popScalar()

	a, ok := m.pop().(*Array)
	if !ok {
		op.Panicf("aelem of non-array")
	}

	i, err := m.toInt(ix, o)
	if err != nil {
		return nil, err
	}

	lval := o.Flags&op.FlagMod != 0 || o.Priv&(op.PrivDerefAV|op.PrivDerefHV) != 0

	e, err := m.fetchElem(a, i, lval, checked)
	if err != nil {
		return nil, err
	}

	if e == nil {
		e = &Scalar{}
	}

	if err := m.vivify(e, o.Priv); err != nil {
		return nil, err
	}

	m.push(e)

	return o.Next(), nil
}

// fetchElem is the element access shared by aelem and multideref.
func (m *Machine) fetchElem(a *Array, i int64, lval, checked bool) (*Scalar, error) {
	if checked && a.Shape >= 0 {
		j := i
		if j < 0 {
			j += int64(a.Shape)
		}

		if j < 0 || j >= int64(a.Shape) {
			return nil, m.errorf("Array index out of bounds %d", i)
		}
	}

	e, ok := a.Fetch(i, lval)
	if !ok && lval {
		return nil, m.errorf("Modification of non-creatable array value attempted, subscript %d", i)
	}

	return e, nil
}

func ppHelem(m *Machine, o *op.Node) (*op.Node, error) {
	ks := m.popScalar()

	h, ok := m.pop().(*Hash)
	if !ok {
		op.Panicf("helem of non-hash")
	}

	k, err := m.str(ks, o)
	if err != nil {
		return nil, err
	}

	lval := o.Flags&op.FlagMod != 0 || o.Priv&(op.PrivDerefAV|op.PrivDerefHV) != 0

	e := h.Fetch(k, lval)
	if e == nil {
		e = &Scalar{}
	}

	if err := m.vivify(e, o.Priv); err != nil {
		return nil, err
	}

	m.push(e)

	return o.Next(), nil
}

func ppExists(m *Machine, o *op.Node) (*op.Node, error) {
	key := m.popScalar()

	switch c := m.pop().(type) {
	case *Array:
		i, err := m.toInt(key, o)
		if err != nil {
			return nil, err
		}

		m.push(Bool(c.Exists(i)))
	case *Hash:
		k, err := m.str(key, o)
		if err != nil {
			return nil, err
		}

		m.push(Bool(c.Exists(k)))
	default:
		op.Panicf("exists on %T", c)
	}

	return o.Next(), nil
}

func ppDelete(m *Machine, o *op.Node) (*op.Node, error) {
	key := m.popScalar()

	var s *Scalar

	switch c := m.pop().(type) {
	case *Array:
		i, err := m.toInt(key, o)
		if err != nil {
			return nil, err
		}

		s = c.Delete(i)
	case *Hash:
		k, err := m.str(key, o)
		if err != nil {
			return nil, err
		}

		s = c.Delete(k)
	default:
		op.Panicf("delete on %T", c)
	}

	if s == nil {
		s = &Scalar{}
	}

	m.push(s)

	return o.Next(), nil
}

func ppAv2arylen(m *Machine, o *op.Node) (*op.Node, error) {
	a, ok := m.pop().(*Array)
	if !ok {
		op.Panicf("av2arylen of non-array")
	}

	m.push(&Scalar{V: int64(len(a.E) - 1)})

	return o.Next(), nil
}

func ppSassign(m *Machine, o *op.Node) (*op.Node, error) {
	dst := m.popScalar()
	src := m.popScalar()

	if dst.RO {
		return nil, m.errorf("Modification of a read-only value attempted")
	}

	dst.Set(src)

	m.push(dst)

	return o.Next(), nil
}
