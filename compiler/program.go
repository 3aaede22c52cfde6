package compiler

import (
	"context"

	"nikand.dev/go/heap"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/perl11/cperl-sub000/compiler/config"
)

type (
	// Program is the set of units compiled from one listing.
	Program struct {
		Name  string
		Units []*Unit

		Tune config.Tuning
	}
)

func NewProgram(name string, tune config.Tuning) *Program {
	return &Program{
		Name: name,
		Tune: tune.WithDefaults(),
	}
}

// NewUnit adds a unit nested depth levels deep.
func (p *Program) NewUnit(name string, depth int) *Unit {
	u := NewUnit(p.Name, p.Tune)
	u.Name = name
	u.Depth = depth
	u.Seq = len(p.Units)

	p.Units = append(p.Units, u)

	return u
}

// Unit finds a unit by name.
func (p *Program) Unit(name string) *Unit {
	for _, u := range p.Units {
		if u.Name == name {
			return u
		}
	}

	return nil
}

// Finish finishes all units, innermost first and then in source order.
// If any of them fails, all the units are dropped.
func (p *Program) Finish(ctx context.Context) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "finish program", "name", p.Name, "units", len(p.Units))
	defer tr.Finish("err", &err)

	h := heap.Heap[*Unit]{Less: unitLess}

	for _, u := range p.Units {
		if !u.Finished() {
			h.Push(u)
		}
	}

	for h.Len() != 0 {
		u := h.Pop()

		tlog.V("unit").Printw("finish unit", "unit", u.Name, "depth", u.Depth, "seq", u.Seq)

		err = u.Finish(ctx)
		if err != nil {
			p.Abort()

			return errors.Wrap(err, "unit %v", u.Name)
		}
	}

	return nil
}

// Abort force-frees all units after a compile error.
func (p *Program) Abort() {
	for _, u := range p.Units {
		u.Abort()
	}
}

// Free drops all units.
func (p *Program) Free() {
	for _, u := range p.Units {
		if u.Finished() {
			u.Free()
		} else {
			u.Abort()
		}
	}
}

func unitLess(d []*Unit, i, j int) bool {
	if d[i].Depth != d[j].Depth {
		return d[i].Depth > d[j].Depth
	}

	return d[i].Seq < d[j].Seq
}
