package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/perl11/cperl-sub000/compiler"
	"github.com/perl11/cperl-sub000/compiler/config"
	"github.com/perl11/cperl-sub000/compiler/format"
	"github.com/perl11/cperl-sub000/compiler/op"
	"github.com/perl11/cperl-sub000/compiler/parse"
	"github.com/perl11/cperl-sub000/compiler/run"
)

const historyFile = ".cperlir_history"

func main() {
	runCmd := &cli.Command{
		Name:        "run",
		Description: "compile listings and run their main sub",
		Action:      runAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("sub", "main", "sub to run"),
			cli.NewFlag("print,p", false, "print the values the sub returns"),
		},
	}

	dumpCmd := &cli.Command{
		Name:        "dump",
		Description: "compile listings and print optimized trees and chains",
		Action:      dumpAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("cbor", false, "write snapshots in CBOR to stdout"),
			cli.NewFlag("chain", true, "print execution chains"),
		},
	}

	replCmd := &cli.Command{
		Name:        "repl",
		Description: "read listing forms interactively and run them",
		Action:      replAct,
	}

	app := &cli.Command{
		Name:        "cperlir",
		Description: "cperlir compiles op-tree listings, optimizes and runs them",
		Before:      before,
		Flags: []*cli.Flag{
			cli.NewFlag("config,c", "", "tuning config file (toml)"),
			cli.NewFlag("verbosity,v", "", "logger verbosity topics"),
			cli.HelpFlag,
		},
		Commands: []*cli.Command{
			runCmd,
			dumpCmd,
			replCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func before(c *cli.Command) error {
	tlog.SetVerbosity(c.String("verbosity"))

	return nil
}

func setup(c *cli.Command) (context.Context, config.Tuning, error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	tune := config.Default()

	if p := c.String("config"); p != "" {
		var err error

		tune, err = config.Load(p)
		if err != nil {
			return ctx, tune, errors.Wrap(err, "config")
		}
	}

	return ctx, tune, nil
}

func runAct(c *cli.Command) (err error) {
	ctx, tune, err := setup(c)
	if err != nil {
		return err
	}

	for _, a := range c.Args {
		p, err := compiler.CompileFile(ctx, a, tune)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		res, err := runProgram(ctx, p, c.String("sub"), os.Stdout)
		p.Free()

		if err != nil {
			return errors.Wrap(err, "run %v", a)
		}

		if c.Bool("print") {
			printResults(os.Stdout, res)
		}
	}

	return nil
}

func runProgram(ctx context.Context, p *compiler.Program, sub string, out io.Writer) ([]*run.Scalar, error) {
	u := p.Unit(sub)
	if u == nil {
		return nil, errors.New("no sub %v", sub)
	}

	m := u.Machine(out)

	return u.Run(ctx, m, op.WantList)
}

func dumpAct(c *cli.Command) (err error) {
	ctx, tune, err := setup(c)
	if err != nil {
		return err
	}

	for _, a := range c.Args {
		p, err := compiler.CompileFile(ctx, a, tune)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		err = dumpProgram(p, c.Bool("cbor"), c.Bool("chain"), os.Stdout)
		p.Free()

		if err != nil {
			return errors.Wrap(err, "dump %v", a)
		}
	}

	return nil
}

func dumpProgram(p *compiler.Program, cbor, chain bool, w io.Writer) error {
	var b []byte

	for _, u := range p.Units {
		if cbor {
			data, err := format.Snap(u.Name, u.Root, u.Start).Marshal()
			if err != nil {
				return errors.Wrap(err, "unit %v", u.Name)
			}

			b = append(b, data...)

			continue
		}

		b = append(b, "sub "...)
		b = append(b, u.Name...)
		b = append(b, ":\n"...)
		b = format.Tree(b, u.Root)

		if chain {
			b = append(b, "chain:\n"...)
			b = format.Chain(b, u.Start)
		}

		b = append(b, '\n')
	}

	_, err := w.Write(b)

	return err
}

func replAct(c *cli.Command) (err error) {
	ctx, tune, err := setup(c)
	if err != nil {
		return err
	}

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()

	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	fmt.Println("cperlir repl. Enter statements or (sub ...) forms, :quit to exit.")

	for {
		text, ok := readForm(ctx, ln)
		if !ok {
			fmt.Println()
			return nil
		}

		text = strings.TrimSpace(text)

		switch text {
		case "":
			continue
		case ":quit", ":q":
			return nil
		}

		ln.AppendHistory(strings.ReplaceAll(text, "\n", " "))

		res, err := evalREPL(ctx, text, tune, os.Stdout)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}

		printResults(os.Stdout, res)
	}
}

// readForm reads lines until they make complete forms.
func readForm(ctx context.Context, ln *liner.State) (string, bool) {
	var b strings.Builder

	for {
		prompt := "> "
		if b.Len() != 0 {
			prompt = ". "
		}

		line, err := ln.Prompt(prompt)
		if err != nil { // io.EOF or liner.ErrPromptAborted
			return "", false
		}

		if b.Len() != 0 {
			b.WriteByte('\n')
		}

		b.WriteString(line)

		_, err = parse.Parse(ctx, []byte(b.String()))
		if parse.IsIncomplete(err) {
			continue
		}

		return b.String(), true
	}
}

// evalREPL compiles the text as a listing and runs its first sub.
// Bare statements are wrapped into a sub.
func evalREPL(ctx context.Context, text string, tune config.Tuning, out io.Writer) ([]*run.Scalar, error) {
	if !strings.HasPrefix(text, "(sub ") {
		text = "(sub repl " + text + ")"
	}

	p, err := compiler.Compile(ctx, "(repl)", []byte(text), tune)
	if err != nil {
		return nil, err
	}

	defer p.Free()

	if len(p.Units) == 0 {
		return nil, nil
	}

	return runProgram(ctx, p, p.Units[0].Name, out)
}

func printResults(w io.Writer, res []*run.Scalar) {
	for _, s := range res {
		if !s.Defined() {
			fmt.Fprintln(w, "undef")
			continue
		}

		fmt.Fprintln(w, s.String())
	}
}
