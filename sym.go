package sym

import (
	"errors"
	"fmt"
)

// Standard widths.
const (
	WidthBool = 1
	Width8    = 8
	Width16   = 16
	Width32   = 32
	Width64   = 64
)

var (
	// ErrInterrupted is returned when a solve call observes the external
	// interrupt flag before reaching a verdict. No model is produced.
	ErrInterrupted = errors.New("external interrupt")

	// ErrSolverUnknown is returned when the decision procedure terminates
	// without determining satisfiability. This is not a proof of
	// unsatisfiability; callers must not treat it as one.
	ErrSolverUnknown = errors.New("solver gave up")
)

// Solver is the interface satisfied by constraint solver backends.
type Solver interface {
	// IsSat reports whether the conjunction of constraints is satisfiable.
	// A false result is only a proof of unsatisfiability when the returned
	// error is nil.
	IsSat(constraints []Expr) (bool, error)
}

// TypeError is returned when an expression fails typechecking.
type TypeError struct {
	Expr Expr   // offending (sub)expression
	Msg  string // reason
}

// Error returns the error as a string.
func (e *TypeError) Error() string {
	return fmt.Sprintf("type error in %s: %s", e.Expr, e.Msg)
}

func typeErrorf(expr Expr, format string, args ...interface{}) *TypeError {
	return &TypeError{Expr: expr, Msg: fmt.Sprintf(format, args...)}
}

// assert panics if condition is false.
func assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("assert: "+format, args...))
	}
}
