package format

import (
	"github.com/fxamacker/cbor/v2"
	"tlog.app/go/errors"

	"github.com/perl11/cperl-sub000/compiler/op"
	"github.com/perl11/cperl-sub000/compiler/run"
)

type (
	// Snapshot is a finished tree in a form tools can decode without this package.
	// Op references are by id, 0 is none.
	Snapshot struct {
		Name  string   `cbor:"1,keyasint"`
		Root  int      `cbor:"2,keyasint"`
		Start int      `cbor:"3,keyasint"`
		Ops   []SnapOp `cbor:"4,keyasint"`
	}

	SnapOp struct {
		ID    int    `cbor:"1,keyasint"`
		Type  string `cbor:"2,keyasint"`
		Ex    string `cbor:"3,keyasint,omitempty"`
		Flags uint16 `cbor:"4,keyasint,omitempty"`
		Priv  uint16 `cbor:"5,keyasint,omitempty"`
		Targ  int    `cbor:"6,keyasint,omitempty"`
		Kids  []int  `cbor:"7,keyasint,omitempty"`
		Next  int    `cbor:"8,keyasint,omitempty"`
		Other int    `cbor:"9,keyasint,omitempty"`

		Name  string `cbor:"10,keyasint,omitempty"`
		Label string `cbor:"11,keyasint,omitempty"`
		Line  int    `cbor:"12,keyasint,omitempty"`
		Val   any    `cbor:"13,keyasint,omitempty"`

		Aux []SnapItem `cbor:"14,keyasint,omitempty"`
	}

	SnapItem struct {
		Act     string `cbor:"1,keyasint"`
		Targ    int    `cbor:"2,keyasint,omitempty"`
		Name    string `cbor:"3,keyasint,omitempty"`
		IdxTarg int    `cbor:"4,keyasint,omitempty"`
		Index   int64  `cbor:"5,keyasint,omitempty"`
		Key     string `cbor:"6,keyasint,omitempty"`
	}
)

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}

	encMode = em
}

// Snap captures the tree under root in tree order.
func Snap(name string, root, start *op.Node) *Snapshot {
	s := &Snapshot{
		Name:  name,
		Root:  id(root),
		Start: id(start),
	}

	stack := []*op.Node{root}

	for len(stack) != 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n == nil {
			continue
		}

		s.Ops = append(s.Ops, snapOp(n))

		kids := n.Kids()

		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}

	return s
}

func snapOp(n *op.Node) SnapOp {
	o := SnapOp{
		ID:    n.ID,
		Type:  n.Type.String(),
		Flags: uint16(n.Flags),
		Priv:  uint16(n.Priv),
		Targ:  n.Targ,
		Next:  id(n.Next()),
		Other: id(n.Other),
		Name:  n.Name,
		Label: n.Label,
		Line:  n.Line,
	}

	if n.Type == op.Null && n.Ex != op.Null {
		o.Ex = n.Ex.String()
	}

	for _, k := range n.Kids() {
		o.Kids = append(o.Kids, k.ID)
	}

	if s, ok := n.Val.(*run.Scalar); ok {
		o.Val = s.V
	}

	if n.Aux != nil {
		for _, it := range n.Aux.Items {
			si := SnapItem{
				Act:     it.Act.String(),
				Targ:    it.Targ,
				Name:    it.Name,
				IdxTarg: it.IdxTarg,
				Index:   it.Index,
			}

			if it.Act.Index() == op.IdxConst && it.Act.Hash() {
				si.Key = n.Aux.KeyAt(it)
			}

			o.Aux = append(o.Aux, si)
		}
	}

	return o
}

func id(n *op.Node) int {
	if n == nil {
		return 0
	}

	return n.ID
}

// Op finds an op of the snapshot by id.
func (s *Snapshot) Op(id int) *SnapOp {
	for i := range s.Ops {
		if s.Ops[i].ID == id {
			return &s.Ops[i]
		}
	}

	return nil
}

// Marshal encodes the snapshot in canonical CBOR.
func (s *Snapshot) Marshal() ([]byte, error) {
	return encMode.Marshal(s)
}

func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot

	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "unmarshal snapshot")
	}

	return &s, nil
}
