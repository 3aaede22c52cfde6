// Package parse reads op-tree listings with parser combinators.
package parse

import (
	"context"
	"fmt"
	"os"
	"reflect"

	"tlog.app/go/errors"

	"github.com/perl11/cperl-sub000/compiler/ast"
)

type (
	State struct {
		b []byte // all files concatenated

		Grammar Parser

		files []file
	}

	file struct {
		base int
		size int
		name string
	}

	Parser interface {
		Parse(ctx context.Context, b []byte, st int) (x ast.Node, i int, err error)
	}

	TypeExpectedError struct {
		T interface{}
	}

	PartialReadError struct {
		End int
	}

	// IncompleteError is returned when the text ends inside a form.
	IncompleteError struct {
		Pos int
	}

	stateCtxKey struct{}
)

func ParseFile(ctx context.Context, name string) ([]ast.Node, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	s := New()
	s.AddFile(name, data)

	return s.Parse(ctx)
}

// Parse reads all the top level forms of the text.
func Parse(ctx context.Context, text []byte) ([]ast.Node, error) {
	s := New()

	s.AddFile("", text)

	return s.Parse(ctx)
}

func New() *State {
	return &State{
		Grammar: Form{},
	}
}

func (s *State) Parse(ctx context.Context) (l []ast.Node, err error) {
	ctx = context.WithValue(ctx, stateCtxKey{}, s)

	i := 0

	for {
		i = SpaceAll.Skip(s.b, i)
		if i == len(s.b) {
			return l, nil
		}

		st := i

		x, j, err := s.Grammar.Parse(ctx, s.b, i)
		if err != nil {
			var inc IncompleteError
			if errors.As(err, &inc) {
				return l, err
			}

			line, col := s.Position(st)

			return l, errors.Wrap(err, "%v:%d:%d", s.Name(st), line, col)
		}

		if j == st {
			return l, PartialReadError{End: i}
		}

		l = append(l, x)
		i = j
	}
}

func (s *State) AddFile(name string, text []byte) {
	f := file{
		name: name,
		base: len(s.b),
		size: len(text),
	}

	s.b = append(s.b, text...)

	s.files = append(s.files, f)
}

func (s *State) Text(pos, end int) []byte {
	return s.b[pos:end]
}

// Bytes is the concatenated text positions refer to.
func (s *State) Bytes() []byte { return s.b }

// Name is the file pos belongs to.
func (s *State) Name(pos int) string {
	if f := s.file(pos); f != nil {
		return f.name
	}

	return ""
}

// Position returns 1-based line and column of pos in its file.
func (s *State) Position(pos int) (line, col int) {
	base := 0

	if f := s.file(pos); f != nil {
		base = f.base
	}

	line, col = 1, 1

	for i := base; i < pos && i < len(s.b); i++ {
		if s.b[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}

	return
}

func (s *State) file(pos int) *file {
	for i := len(s.files) - 1; i >= 0; i-- {
		f := &s.files[i]

		if pos >= f.base {
			return f
		}
	}

	return nil
}

func NewTypeExpectedError(t interface{}) TypeExpectedError {
	return TypeExpectedError{
		T: t,
	}
}

func StateFromContext(ctx context.Context) *State {
	s, _ := ctx.Value(stateCtxKey{}).(*State)
	return s
}

// IsIncomplete reports whether err means more text is needed.
func IsIncomplete(err error) bool {
	var inc IncompleteError

	return errors.As(err, &inc)
}

func (e TypeExpectedError) Error() string {
	return fmt.Sprintf("%v expected", reflect.TypeOf(e.T))
}

func (e PartialReadError) Error() string {
	return fmt.Sprintf("partial read at %d", e.End)
}

func (e IncompleteError) Error() string {
	return fmt.Sprintf("unexpected end of text in form started at %d", e.Pos)
}
