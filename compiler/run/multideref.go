package run

import (
	"github.com/perl11/cperl-sub000/compiler/op"
)

// ppMultideref walks the side table of a fused access chain.
// Levels before the last fetch for modification and vivify the next container,
// the same as the chain of separate element ops does.
func ppMultideref(m *Machine, o *op.Node) (*op.Node, error) {
	x := o.Aux
	if x == nil || len(x.Items) == 0 {
		op.Panicf("multideref #%d without items", o.ID)
	}

	var cur *Scalar

	for i, it := range x.Items {
		last := i == len(x.Items)-1

		c, err := m.mderefContainer(it, cur)
		if err != nil {
			return nil, err
		}

		if last {
			if err := m.mderefLast(o, it, c); err != nil {
				return nil, err
			}

			break
		}

		next := x.Items[i+1].Act

		var viv op.Priv = op.PrivDerefAV
		if next.Hash() {
			viv = op.PrivDerefHV
		}

		e, err := m.mderefElem(o, it, c, true)
		if err != nil {
			return nil, err
		}

		if err := m.vivify(e, viv); err != nil {
			return nil, err
		}

		cur = e
	}

	return o.Next(), nil
}

func (m *Machine) mderefContainer(it op.Item, cur *Scalar) (any, error) {
	switch it.Act.Kind() {
	case op.ActPadavAelem:
		return m.ArrayAt(it.Targ), nil
	case op.ActPadhvHelem:
		return m.HashAt(it.Targ), nil
	case op.ActGvavAelem:
		return m.Glob(it.Name).Array(), nil
	case op.ActGvhvHelem:
		return m.Glob(it.Name).Hash(), nil
	case op.ActPadsvRv2avAelem:
		s := m.ScalarAt(it.Targ)

		if err := m.vivify(s, op.PrivDerefAV); err != nil {
			return nil, err
		}

		return m.derefArray(s, false)
	case op.ActPadsvRv2hvHelem:
		s := m.ScalarAt(it.Targ)

		if err := m.vivify(s, op.PrivDerefHV); err != nil {
			return nil, err
		}

		return m.derefHash(s, false)
	case op.ActRv2avAelem:
		return m.derefArray(cur, false)
	case op.ActRv2hvHelem:
		return m.derefHash(cur, false)
	}

	op.Panicf("multideref: bad action %v", it.Act)

	return nil, nil
}

func (m *Machine) mderefKey(o *op.Node, it op.Item) *Scalar {
	switch it.Act.Index() {
	case op.IdxConst:
		if it.Act.Hash() {
			return &Scalar{V: o.Aux.KeyAt(it)}
		}

		return &Scalar{V: it.Index}
	case op.IdxPadsv:
		return m.ScalarAt(it.IdxTarg)
	}

	op.Panicf("multideref: bad index kind %v", it.Act)

	return nil
}

func (m *Machine) mderefElem(o *op.Node, it op.Item, c any, lval bool) (*Scalar, error) {
	key := m.mderefKey(o, it)

	switch c := c.(type) {
	case *Array:
		i, err := m.mderefInt(key)
		if err != nil {
			return nil, err
		}

		e, err := m.fetchElem(c, i, lval, it.Act&op.ActUnchecked == 0)
		if err != nil {
			return nil, err
		}

		if e == nil {
			e = &Scalar{}
		}

		return e, nil
	case *Hash:
		k, err := m.mderefStr(key)
		if err != nil {
			return nil, err
		}

		e := c.Fetch(k, lval)
		if e == nil {
			e = &Scalar{}
		}

		return e, nil
	}

	op.Panicf("multideref: container %T", c)

	return nil, nil
}

func (m *Machine) mderefLast(o *op.Node, it op.Item, c any) error {
	switch {
	case o.Priv&op.PrivExists != 0:
		key := m.mderefKey(o, it)

		switch c := c.(type) {
		case *Array:
			i, err := m.mderefInt(key)
			if err != nil {
				return err
			}

			m.push(Bool(c.Exists(i)))
		case *Hash:
			k, err := m.mderefStr(key)
			if err != nil {
				return err
			}

			m.push(Bool(c.Exists(k)))
		}

		return nil
	case o.Priv&op.PrivDelete != 0:
		key := m.mderefKey(o, it)

		var s *Scalar

		switch c := c.(type) {
		case *Array:
			i, err := m.mderefInt(key)
			if err != nil {
				return err
			}

			s = c.Delete(i)
		case *Hash:
			k, err := m.mderefStr(key)
			if err != nil {
				return err
			}

			s = c.Delete(k)
		}

		if s == nil {
			s = &Scalar{}
		}

		m.push(s)

		return nil
	}

	e, err := m.mderefElem(o, it, c, o.Flags&op.FlagMod != 0)
	if err != nil {
		return err
	}

	if err := m.vivify(e, o.Priv); err != nil {
		return err
	}

	m.push(e)

	return nil
}

var (
	mderefAelem = &op.Node{Type: op.Aelem}
	mderefHelem = &op.Node{Type: op.Helem}
)

func (m *Machine) mderefInt(s *Scalar) (int64, error) {
	return m.toInt(s, mderefAelem)
}

func (m *Machine) mderefStr(s *Scalar) (string, error) {
	return m.str(s, mderefHelem)
}
