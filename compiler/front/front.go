// Package front turns op-tree listings into op trees.
//
// A listing is a sequence of sub forms:
//
//	(sub main
//	  (my @a 4)
//	  (stmt :top (sassign 1 (aelem @a 0)))
//	  (foreach $i 0 (arylen @a)
//	    (say (aelem @a $i)))
//	  (return (aelem @a 0)))
//
// Subs may nest. Every other form in a sub body is a statement.
package front

import (
	"context"
	"strconv"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/perl11/cperl-sub000/compiler/ast"
	"github.com/perl11/cperl-sub000/compiler/build"
	"github.com/perl11/cperl-sub000/compiler/op"
	"github.com/perl11/cperl-sub000/compiler/parse"
)

type (
	// Sub is one sub of a listing with its nested subs.
	Sub struct {
		Name  string
		Forms []ast.Node
		Subs  []*Sub

		src *parse.State
	}

	assembler struct {
		b   *build.Builder
		src *parse.State
	}

	// SyntaxError is a malformed form.
	SyntaxError struct {
		File string
		Line int
		Msg  string
	}
)

var unops = map[string]op.Type{
	"negate": op.Negate,
	"not":    op.Not,
	"length": op.Length,
	"lc":     op.Lc,
	"uc":     op.Uc,
}

var binops = map[string]op.Type{
	"add":      op.Add,
	"subtract": op.Subtract,
	"multiply": op.Multiply,
	"divide":   op.Divide,
	"modulo":   op.Modulo,
	"concat":   op.Concat,
	"lt":       op.Lt,
	"gt":       op.Gt,
	"le":       op.Le,
	"ge":       op.Ge,
	"eq":       op.Eq,
	"ne":       op.Ne,
	"seq":      op.Seq,
	"sne":      op.Sne,
}

var listops = map[string]op.Type{
	"list":    op.List,
	"return":  op.Return,
	"say":     op.Say,
	"die":     op.Die,
	"sprintf": op.Sprintf,
}

var logops = map[string]op.Type{
	"and": op.And,
	"or":  op.Or,
	"dor": op.Dor,
}

// Parse reads the listing and groups it into subs.
func Parse(ctx context.Context, name string, text []byte) (subs []*Sub, err error) {
	src := parse.New()
	src.AddFile(name, text)

	forms, err := src.Parse(ctx)
	if err != nil {
		return nil, err
	}

	for _, f := range forms {
		s, err := subOf(src, f)
		if err != nil {
			return nil, err
		}

		subs = append(subs, s)
	}

	tlog.V("front").Printw("listing parsed", "name", name, "subs", len(subs))

	return subs, nil
}

func subOf(src *parse.State, f ast.Node) (*Sub, error) {
	l, ok := f.(ast.List)
	if !ok || l.Head(src.Bytes()) != "sub" {
		return nil, syntaxErr(src, f, "sub form expected")
	}

	if len(l.Items) < 2 {
		return nil, syntaxErr(src, f, "sub name expected")
	}

	name, ok := l.Items[1].(ast.Atom)
	if !ok {
		return nil, syntaxErr(src, l.Items[1], "sub name expected")
	}

	s := &Sub{
		Name: name.Text(src.Bytes()),
		src:  src,
	}

	for _, x := range l.Items[2:] {
		if k, ok := x.(ast.List); ok && k.Head(src.Bytes()) == "sub" {
			sub, err := subOf(src, k)
			if err != nil {
				return nil, err
			}

			s.Subs = append(s.Subs, sub)

			continue
		}

		s.Forms = append(s.Forms, x)
	}

	return s, nil
}

// Assemble builds the sub body into st and returns its leavesub.
func Assemble(ctx context.Context, st *op.State, s *Sub) (root *op.Node, err error) {
	defer func() {
		p := recover()
		if p == nil {
			return
		}

		ie, ok := p.(op.InternalError)
		if !ok {
			panic(p)
		}

		root, err = nil, ie
	}()

	a := &assembler{
		b:   build.New(ctx, st),
		src: s.src,
	}

	stmts, err := a.stmts(s.Forms)
	if err != nil {
		return nil, err
	}

	if len(stmts) == 0 {
		stmts = append(stmts, build.Stmt{Expr: a.b.Stub()})
	}

	return a.b.Sub(stmts), nil
}

func (a *assembler) stmts(forms []ast.Node) (l []build.Stmt, err error) {
	for _, f := range forms {
		s, err := a.stmt(f)
		if err != nil {
			return nil, err
		}

		l = append(l, s)
	}

	return l, nil
}

// stmt is either (stmt [:label] expr) or a bare expression.
func (a *assembler) stmt(f ast.Node) (s build.Stmt, err error) {
	s.Line = a.line(f)

	if l, ok := f.(ast.List); ok && l.Head(a.src.Bytes()) == "stmt" {
		items := l.Items[1:]

		if len(items) != 0 {
			if lab, ok := items[0].(ast.Atom); ok && strings.HasPrefix(lab.Text(a.src.Bytes()), ":") {
				s.Label = lab.Text(a.src.Bytes())[1:]
				items = items[1:]
			}
		}

		switch len(items) {
		case 0:
			return s, nil
		case 1:
			f = items[0]
		default:
			return s, a.errorf(f, "one expression per statement")
		}
	}

	s.Expr, err = a.expr(f)

	return s, err
}

func (a *assembler) expr(f ast.Node) (*op.Node, error) {
	src := a.src.Bytes()

	switch f := f.(type) {
	case ast.Int:
		return a.b.Const(intValue(f.Text(src))), nil
	case ast.Float:
		v, err := strconv.ParseFloat(f.Text(src), 64)
		if err != nil {
			return nil, a.errorf(f, "bad float: %v", err)
		}

		return a.b.Const(v), nil
	case ast.Str:
		return a.b.Const(f.Val), nil
	case ast.Var:
		return a.variable(f.Text(src)), nil
	case ast.Atom:
		switch f.Text(src) {
		case "undef":
			return a.b.Stub(), nil
		}

		return nil, a.errorf(f, "unexpected atom %q", f.Text(src))
	case ast.List:
		return a.form(f)
	}

	return nil, a.errorf(f, "unexpected %T", f)
}

func (a *assembler) form(l ast.List) (*op.Node, error) {
	src := a.src.Bytes()
	head := l.Head(src)

	args, mods, err := a.split(l)
	if err != nil {
		return nil, err
	}

	if t, ok := unops[head]; ok {
		kids, err := a.exprs(l, args, 1, 1)
		if err != nil {
			return nil, err
		}

		var priv op.Priv
		if mods.locale {
			priv |= op.PrivLocale
		}

		return a.b.Unop(t, kids[0], priv), nil
	}

	if t, ok := binops[head]; ok {
		kids, err := a.exprs(l, args, 2, 2)
		if err != nil {
			return nil, err
		}

		return a.b.Binop(t, kids[0], kids[1]), nil
	}

	if t, ok := listops[head]; ok {
		kids, err := a.exprs(l, args, 0, -1)
		if err != nil {
			return nil, err
		}

		return a.b.Listop(t, kids...), nil
	}

	if t, ok := logops[head]; ok {
		kids, err := a.exprs(l, args, 2, 2)
		if err != nil {
			return nil, err
		}

		return a.b.Logop(t, kids[0], kids[1]), nil
	}

	switch head {
	case "const":
		kids, err := a.exprs(l, args, 1, 1)
		if err != nil {
			return nil, err
		}

		if kids[0].Type != op.Const {
			return nil, a.errorf(l, "literal expected")
		}

		return kids[0], nil
	case "stub":
		return a.b.Stub(), nil
	case "scalar":
		kids, err := a.exprs(l, args, 1, 1)
		if err != nil {
			return nil, err
		}

		return a.b.Scalar(kids[0]), nil
	case "my":
		return a.my(l, args)
	case "padsv", "padav", "padhv":
		if len(args) != 1 {
			return nil, a.errorf(l, "%v: one variable expected", head)
		}

		v, ok := args[0].(ast.Var)
		if !ok {
			return nil, a.errorf(args[0], "variable expected")
		}

		name := v.Text(src)

		targ := a.b.St.Pad.Find(name)
		if targ == 0 {
			return nil, a.errorf(v, "%v is not declared", name)
		}

		t, _ := op.Lookup(head)

		return a.b.Pad(t, targ, mods.priv), nil
	case "gv":
		if len(args) != 1 {
			return nil, a.errorf(l, "gv: name expected")
		}

		switch x := args[0].(type) {
		case ast.Atom:
			return a.b.Gv(x.Text(src)), nil
		case ast.Str:
			return a.b.Gv(x.Val), nil
		}

		return nil, a.errorf(args[0], "gv: name expected")
	case "rv2sv", "rv2av", "rv2hv":
		kids, err := a.exprs(l, args, 1, 1)
		if err != nil {
			return nil, err
		}

		t, _ := op.Lookup(head)

		return a.b.Rv2(t, kids[0]), nil
	case "aelem", "helem":
		kids, err := a.exprs(l, args, 2, 2)
		if err != nil {
			return nil, err
		}

		if head == "aelem" {
			return a.b.Aelem(a.container(kids[0], op.Rv2av), kids[1]), nil
		}

		return a.b.Helem(a.container(kids[0], op.Rv2hv), kids[1]), nil
	case "exists", "delete":
		kids, err := a.exprs(l, args, 1, 1)
		if err != nil {
			return nil, err
		}

		switch kids[0].Type {
		case op.Aelem, op.Helem:
		default:
			return nil, a.errorf(l, "%v argument is not an element", head)
		}

		if head == "exists" {
			return a.b.Exists(kids[0]), nil
		}

		return a.b.Delete(kids[0]), nil
	case "arylen":
		kids, err := a.exprs(l, args, 1, 1)
		if err != nil {
			return nil, err
		}

		return a.b.Arylen(a.container(kids[0], op.Rv2av)), nil
	case "sassign":
		kids, err := a.exprs(l, args, 2, 2)
		if err != nil {
			return nil, err
		}

		return a.b.Sassign(kids[0], kids[1]), nil
	case "if":
		kids, err := a.exprs(l, args, 2, 3)
		if err != nil {
			return nil, err
		}

		if len(kids) == 2 {
			kids = append(kids, a.b.Stub())
		}

		return a.b.Cond(kids[0], kids[1], kids[2]), nil
	case "foreach":
		return a.foreach(l, args)
	}

	return nil, a.errorf(l, "unknown op %q", head)
}

type modifiers struct {
	priv   op.Priv
	locale bool
}

// split separates arguments from trailing modifier atoms.
func (a *assembler) split(l ast.List) (args []ast.Node, mods modifiers, err error) {
	src := a.src.Bytes()

	if len(l.Items) == 0 {
		return nil, mods, a.errorf(l, "empty form")
	}

	if _, ok := l.Items[0].(ast.Atom); !ok {
		return nil, mods, a.errorf(l, "op name expected")
	}

	args = l.Items[1:]

	for len(args) != 0 {
		x, ok := args[len(args)-1].(ast.Atom)
		if !ok {
			break
		}

		switch x.Text(src) {
		case "intro":
			mods.priv |= op.PrivIntro
		case "locale":
			mods.locale = true
		default:
			return args, mods, nil
		}

		args = args[:len(args)-1]
	}

	return args, mods, nil
}

func (a *assembler) exprs(l ast.List, args []ast.Node, lo, hi int) (kids []*op.Node, err error) {
	if len(args) < lo || hi >= 0 && len(args) > hi {
		return nil, a.errorf(l, "%v: wrong number of arguments: %d", l.Head(a.src.Bytes()), len(args))
	}

	for _, x := range args {
		k, err := a.expr(x)
		if err != nil {
			return nil, err
		}

		kids = append(kids, k)
	}

	return kids, nil
}

// my is (my $x [init]), (my @a [shape]) or (my %h).
func (a *assembler) my(l ast.List, args []ast.Node) (*op.Node, error) {
	if len(args) == 0 || len(args) > 2 {
		return nil, a.errorf(l, "my: variable expected")
	}

	v, ok := args[0].(ast.Var)
	if !ok {
		return nil, a.errorf(args[0], "my: variable expected")
	}

	name := v.Text(a.src.Bytes())
	shape := -1

	var init *op.Node

	if len(args) == 2 {
		switch name[0] {
		case '@':
			n, ok := args[1].(ast.Int)
			if !ok {
				return nil, a.errorf(args[1], "my: array shape expected")
			}

			s, err := strconv.Atoi(n.Text(a.src.Bytes()))
			if err != nil || s < 0 {
				return nil, a.errorf(n, "my: bad array shape")
			}

			shape = s
		case '$':
			var err error

			init, err = a.expr(args[1])
			if err != nil {
				return nil, err
			}
		default:
			return nil, a.errorf(l, "my: unexpected initializer")
		}
	}

	o := a.b.My(name, shape)

	if init != nil {
		return a.b.Sassign(init, o), nil
	}

	return o, nil
}

// foreach is (foreach $i lo hi body...).
func (a *assembler) foreach(l ast.List, args []ast.Node) (*op.Node, error) {
	if len(args) < 3 {
		return nil, a.errorf(l, "foreach: variable and range expected")
	}

	v, ok := args[0].(ast.Var)
	if !ok || !strings.HasPrefix(v.Text(a.src.Bytes()), "$") {
		return nil, a.errorf(args[0], "foreach: scalar variable expected")
	}

	kids, err := a.exprs(l, args[1:3], 2, 2)
	if err != nil {
		return nil, err
	}

	targ := a.b.St.Pad.Add(v.Text(a.src.Bytes()), -1)

	body, err := a.stmts(args[3:])
	if err != nil {
		return nil, err
	}

	return a.b.Foreach(targ, kids[0], kids[1], body), nil
}

// variable resolves a sigiled name to a lexical or to a package variable.
func (a *assembler) variable(name string) *op.Node {
	t := op.Padsv
	rv := op.Rv2sv

	switch name[0] {
	case '@':
		t, rv = op.Padav, op.Rv2av
	case '%':
		t, rv = op.Padhv, op.Rv2hv
	}

	if targ := a.b.St.Pad.Find(name); targ != 0 {
		return a.b.Pad(t, targ, 0)
	}

	return a.b.Rv2(rv, a.b.Gv(name[1:]))
}

// container takes a scalar holding a reference as the array or hash it refers to.
func (a *assembler) container(c *op.Node, rv op.Type) *op.Node {
	switch c.Type {
	case op.Padav, op.Padhv, op.Rv2av, op.Rv2hv:
		return c
	}

	return a.b.Rv2(rv, c)
}

func (a *assembler) line(f ast.Node) int {
	b, ok := f.(interface{ Span() ast.Base })
	if !ok {
		return 0
	}

	line, _ := a.src.Position(b.Span().Pos)

	return line
}

func (a *assembler) errorf(f ast.Node, format string, args ...any) error {
	return syntaxErr(a.src, f, format, args...)
}

func syntaxErr(src *parse.State, f ast.Node, format string, args ...any) error {
	e := SyntaxError{
		Msg: errors.New(format, args...).Error(),
	}

	if b, ok := f.(interface{ Span() ast.Base }); ok {
		e.File = src.Name(b.Span().Pos)
		e.Line, _ = src.Position(b.Span().Pos)
	}

	return e
}

func intValue(s string) any {
	v, err := strconv.ParseInt(s, 0, 64)
	if err == nil {
		return v
	}

	f, err := strconv.ParseFloat(s, 64)
	if err == nil {
		return f
	}

	return int64(0)
}

func (e SyntaxError) Error() string {
	if e.File == "" {
		return e.Msg + " at line " + strconv.Itoa(e.Line)
	}

	return e.Msg + " at " + e.File + " line " + strconv.Itoa(e.Line)
}
