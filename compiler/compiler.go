package compiler

import (
	"context"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/perl11/cperl-sub000/compiler/config"
	"github.com/perl11/cperl-sub000/compiler/front"
)

func CompileFile(ctx context.Context, name string, tune config.Tuning) (*Program, error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return Compile(ctx, name, text, tune)
}

// Compile builds and finishes every sub of the listing.
func Compile(ctx context.Context, name string, text []byte, tune config.Tuning) (p *Program, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile", "name", name, "size", len(text))
	defer tr.Finish("err", &err)

	p = NewProgram(name, tune)

	subs, err := front.Parse(ctx, name, text)
	if err != nil {
		return nil, errors.Wrap(err, "parse listing")
	}

	err = assemble(ctx, p, subs, 0)
	if err != nil {
		p.Abort()
		return nil, errors.Wrap(err, "assemble")
	}

	err = p.Finish(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "finish")
	}

	return p, nil
}

func assemble(ctx context.Context, p *Program, subs []*front.Sub, depth int) error {
	for _, s := range subs {
		u := p.NewUnit(s.Name, depth)

		root, err := front.Assemble(ctx, u.St, s)
		if err != nil {
			return errors.Wrap(err, "sub %v", s.Name)
		}

		u.Root = root

		err = assemble(ctx, p, s.Subs, depth+1)
		if err != nil {
			return err
		}
	}

	return nil
}
