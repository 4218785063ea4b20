package z3

import (
	"crypto/md5"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/verismith/sym"
)

/*
#include <z3.h>
*/
import "C"

// Ensure solver implements interface.
var _ sym.Solver = (*Solver)(nil)

// Solver drives an embedded Z3 decision procedure over IR constraints.
// A Solver owns its Z3 context, its running constraint store and its
// most recent model; concurrent calls on a single Solver are not
// supported. Interrupt may be called from another goroutine.
type Solver struct {
	ctx    *Context
	solver C.Z3_solver
	model  C.Z3_model

	interrupted atomic.Bool

	debug    bool
	logger   *log.Logger
	lastText string
	lastHash string

	stats Stats
}

// NewSolver returns a new instance of Solver with its own Z3 context.
func NewSolver() *Solver {
	s := &Solver{ctx: NewContext()}
	s.solver = C.Z3_mk_solver(s.ctx.raw)
	C.Z3_solver_inc_ref(s.ctx.raw, s.solver)
	return s
}

// Close releases the model, the solver and the underlying Z3 context.
func (s *Solver) Close() error {
	s.releaseModel()
	C.Z3_solver_dec_ref(s.ctx.raw, s.solver)
	return s.ctx.Close()
}

// SetDebug enables capturing each query's SMT-LIB text and hash.
func (s *Solver) SetDebug(debug bool) { s.debug = debug }

// SetLogger sets the destination for diagnostics and debug dumps.
// A nil logger silences them.
func (s *Solver) SetLogger(logger *log.Logger) { s.logger = logger }

// LastQuery returns the SMT-LIB form of the most recent query.
// Requires debug mode.
func (s *Solver) LastQuery() string { return s.lastText }

// LastQueryHash returns the MD5 hash of LastQuery, for detecting
// repeated queries. Requires debug mode.
func (s *Solver) LastQueryHash() string { return s.lastHash }

// Stats returns statistics for the solver.
func (s *Solver) Stats() Stats { return s.stats }

// Interrupt requests that an in-progress IsSat call abort with
// sym.ErrInterrupted. Safe to call from another goroutine. The request
// is cleared at the start of the next IsSat call.
func (s *Solver) Interrupt() {
	s.interrupted.Store(true)
	C.Z3_interrupt(s.ctx.raw)
}

// IsSat reports whether the conjunction of constraints is satisfiable.
// On a satisfiable result the model is retained for the Model* accessors
// until the next IsSat call on this solver. A false result proves
// unsatisfiability only when the returned error is nil.
func (s *Solver) IsSat(constraints []sym.Expr) (bool, error) {
	s.stats.QueryN++

	// Reset all per-call state.
	s.releaseModel()
	s.interrupted.Store(false)
	s.lastText, s.lastHash = "", ""
	C.Z3_solver_reset(s.ctx.raw, s.solver)
	if err := s.ctx.err("Z3_solver_reset"); err != nil {
		return false, err
	}

	// Merge in the axioms implied by the constraint set, then flatten
	// top-level conjunctions.
	all := append(sym.Axioms(constraints), constraints...)
	current := sym.SplitConstraints(all)

	// Convert to a fixpoint: converting one batch may produce new
	// constraints (definedness side conditions) that must themselves be
	// typechecked and converted before solving.
	for len(current) > 0 {
		if s.interrupted.Load() {
			return false, sym.ErrInterrupted
		}

		var next []sym.Expr
		conv := newConverter(s.ctx, &next)

		for _, constraint := range current {
			if s.interrupted.Load() {
				return false, sym.ErrInterrupted
			}

			t := time.Now()
			if err := sym.Typecheck(constraint); err != nil {
				return false, fmt.Errorf("typechecking failed for constraint %s: %w", constraint, err)
			}
			s.stats.TypecheckTime += time.Since(t)

			t = time.Now()
			ast, err := conv.convert(constraint)
			if err != nil {
				return false, err
			}
			s.stats.ConvertTime += time.Since(t)

			if s.logger != nil {
				s.logger.Printf("assert %s -> %s", constraint, s.ctx.astToString(ast))
				if s.debug {
					s.logger.Printf("ir:\n%s", spew.Sdump(constraint))
				}
			}

			C.Z3_solver_assert(s.ctx.raw, s.solver, ast)
			if err := s.ctx.err("Z3_solver_assert"); err != nil {
				return false, err
			}
		}

		current = next
	}

	if s.interrupted.Load() {
		return false, sym.ErrInterrupted
	}

	if s.debug {
		s.lastText = C.GoString(C.Z3_solver_to_string(s.ctx.raw, s.solver))
		s.lastHash = fmt.Sprintf("%x", md5.Sum([]byte(s.lastText)))
	}

	t := time.Now()
	result := C.Z3_solver_check(s.ctx.raw, s.solver)
	s.stats.SolveTime += time.Since(t)
	if err := s.ctx.err("Z3_solver_check"); err != nil {
		return false, err
	}

	switch result {
	case C.Z3_L_FALSE:
		return false, nil

	case C.Z3_L_TRUE:
		model := C.Z3_solver_get_model(s.ctx.raw, s.solver)
		if err := s.ctx.err("Z3_solver_get_model"); err != nil {
			return false, err
		}
		C.Z3_model_inc_ref(s.ctx.raw, model)
		s.model = model
		if s.logger != nil {
			s.logger.Printf("model:\n%s", s.ctx.modelToString(model))
		}
		return true, nil

	default:
		// An interrupt surfaces as an unknown verdict; report it as the
		// interrupt it is rather than as the solver giving up.
		if s.interrupted.Load() {
			return false, sym.ErrInterrupted
		}
		reason := C.GoString(C.Z3_solver_get_reason_unknown(s.ctx.raw, s.solver))
		return false, fmt.Errorf("%w: %s", sym.ErrSolverUnknown, reason)
	}
}

// releaseModel drops the retained model, if any.
func (s *Solver) releaseModel() {
	if s.model != nil {
		C.Z3_model_dec_ref(s.ctx.raw, s.model)
		s.model = nil
	}
}

// logf writes a diagnostic if a logger is configured.
func (s *Solver) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// Stats holds per-solver counters. Times are cumulative across calls.
type Stats struct {
	QueryN        int
	TypecheckTime time.Duration
	ConvertTime   time.Duration
	SolveTime     time.Duration
}
