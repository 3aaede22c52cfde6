package op

import (
	"fmt"

	"tlog.app/go/loc"
)

type (
	// InternalError is a broken invariant of the op tree.
	// It is raised with panic and is never a user error.
	InternalError struct {
		Msg string
		PC  loc.PC
	}
)

func Panicf(format string, args ...any) {
	panic(InternalError{
		Msg: fmt.Sprintf(format, args...),
		PC:  loc.Caller(1),
	})
}

func (e InternalError) Error() string {
	return fmt.Sprintf("internal error: %v (at %v)", e.Msg, e.PC)
}
