package z3_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/verismith/sym"
	"github.com/verismith/sym/z3"
)

func TestSolver_IsSat(t *testing.T) {
	t.Run("Bool", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(t, s)

		b := sym.NewVarExpr("b", sym.WidthBool)
		if sat, err := s.IsSat([]sym.Expr{b}); err != nil {
			t.Fatal(err)
		} else if !sat {
			t.Fatal("expected sat")
		}

		if value, err := s.ModelBool("b"); err != nil {
			t.Fatal(err)
		} else if !value {
			t.Fatal("expected true assignment")
		}
	})

	t.Run("BitVector8", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(t, s)

		x := sym.NewVarExpr("x", 8)
		if sat, err := s.IsSat([]sym.Expr{
			sym.NewBinaryExpr(sym.EQ, x, sym.NewConstantExpr(42, 8)),
		}); err != nil {
			t.Fatal(err)
		} else if !sat {
			t.Fatal("expected sat")
		}

		if value, err := s.ModelBitVector("x", 8); err != nil {
			t.Fatal(err)
		} else if diff := cmp.Diff(value, []byte{42}); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("BitVector16", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(t, s)

		x := sym.NewVarExpr("x", 16)
		if sat, err := s.IsSat([]sym.Expr{
			sym.NewBinaryExpr(sym.EQ, x, sym.NewConstantExpr(0xAABB, 16)),
		}); err != nil {
			t.Fatal(err)
		} else if !sat {
			t.Fatal("expected sat")
		}

		// Little endian.
		if value, err := s.ModelBitVector("x", 16); err != nil {
			t.Fatal(err)
		} else if diff := cmp.Diff(value, []byte{0xBB, 0xAA}); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("BitVector128", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(t, s)

		x := sym.NewVarExpr("x", 128)
		if sat, err := s.IsSat([]sym.Expr{
			sym.NewBinaryExpr(sym.EQ, sym.NewExtractExpr(x, 64, 64), sym.NewConstantExpr64(1)),
			sym.NewBinaryExpr(sym.EQ, sym.NewExtractExpr(x, 0, 64), sym.NewConstantExpr64(2)),
		}); err != nil {
			t.Fatal(err)
		} else if !sat {
			t.Fatal("expected sat")
		}

		value, err := s.ModelBitVector("x", 128)
		if err != nil {
			t.Fatal(err)
		}
		exp := make([]byte, 16)
		exp[0], exp[8] = 2, 1
		if diff := cmp.Diff(value, exp); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Unsat", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(t, s)

		x := sym.NewVarExpr("x", 8)
		if sat, err := s.IsSat([]sym.Expr{
			sym.NewBinaryExpr(sym.EQ, x, sym.NewConstantExpr(1, 8)),
			sym.NewBinaryExpr(sym.EQ, x, sym.NewConstantExpr(2, 8)),
		}); err != nil {
			t.Fatal(err)
		} else if sat {
			t.Fatal("expected unsat")
		}

		if _, err := s.ModelBool("x"); err == nil || !strings.Contains(err.Error(), "no model") {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("Conjunction", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(t, s)

		x := sym.NewVarExpr("x", 8)
		y := sym.NewVarExpr("y", 8)
		constraint := sym.NewBinaryExpr(sym.AND,
			sym.NewBinaryExpr(sym.EQ, x, sym.NewConstantExpr(3, 8)),
			sym.NewBinaryExpr(sym.EQ, y, x),
		)
		if sat, err := s.IsSat([]sym.Expr{constraint}); err != nil {
			t.Fatal(err)
		} else if !sat {
			t.Fatal("expected sat")
		}

		if value, err := s.ModelBitVector("y", 8); err != nil {
			t.Fatal(err)
		} else if diff := cmp.Diff(value, []byte{3}); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Implies", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(t, s)

		b := sym.NewVarExpr("b", sym.WidthBool)
		c := sym.NewVarExpr("c", sym.WidthBool)
		if sat, err := s.IsSat([]sym.Expr{
			sym.NewBinaryExpr(sym.IMPLIES, b, c),
			b,
			sym.NewNotExpr(c),
		}); err != nil {
			t.Fatal(err)
		} else if sat {
			t.Fatal("expected unsat")
		}
	})

	t.Run("Reuse", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(t, s)

		x := sym.NewVarExpr("x", 8)
		unsat := []sym.Expr{
			sym.NewBinaryExpr(sym.EQ, x, sym.NewConstantExpr(1, 8)),
			sym.NewBinaryExpr(sym.EQ, x, sym.NewConstantExpr(2, 8)),
		}
		sat := []sym.Expr{sym.NewBinaryExpr(sym.EQ, x, sym.NewConstantExpr(7, 8))}

		// Constraints must not leak from one call into the next.
		if ok, err := s.IsSat(unsat); err != nil {
			t.Fatal(err)
		} else if ok {
			t.Fatal("expected unsat")
		}
		if ok, err := s.IsSat(sat); err != nil {
			t.Fatal(err)
		} else if !ok {
			t.Fatal("expected sat")
		}
		if ok, err := s.IsSat(sat); err != nil {
			t.Fatal(err)
		} else if !ok {
			t.Fatal("expected sat")
		}
	})
}

func TestSolver_IsSat_BoolBridges(t *testing.T) {
	t.Run("Extract1", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(t, s)

		// Bit 0 of x must be clear.
		x := sym.NewVarExpr("x", 8)
		if sat, err := s.IsSat([]sym.Expr{
			sym.NewNotExpr(sym.NewExtractExpr(x, 0, 1)),
			sym.NewBinaryExpr(sym.EQ, x, sym.NewConstantExpr(2, 8)),
		}); err != nil {
			t.Fatal(err)
		} else if !sat {
			t.Fatal("expected sat")
		}
	})

	t.Run("CastBool", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(t, s)

		b := sym.NewVarExpr("b", sym.WidthBool)
		if sat, err := s.IsSat([]sym.Expr{
			sym.NewBinaryExpr(sym.EQ, sym.NewCastExpr(b, 8, false), sym.NewConstantExpr(1, 8)),
		}); err != nil {
			t.Fatal(err)
		} else if !sat {
			t.Fatal("expected sat")
		}

		if value, err := s.ModelBool("b"); err != nil {
			t.Fatal(err)
		} else if !value {
			t.Fatal("expected true assignment")
		}
	})
}

func TestSolver_IsSat_SideConditions(t *testing.T) {
	t.Run("DivisorZeroUnsat", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(t, s)

		// Dividing by y forces y != 0, contradicting y = 0.
		x := sym.NewVarExpr("x", 8)
		y := sym.NewVarExpr("y", 8)
		if sat, err := s.IsSat([]sym.Expr{
			sym.NewBinaryExpr(sym.EQ, y, sym.NewConstantExpr(0, 8)),
			sym.NewBinaryExpr(sym.EQ, sym.NewBinaryExpr(sym.SDIV, x, y), x),
		}); err != nil {
			t.Fatal(err)
		} else if sat {
			t.Fatal("expected unsat")
		}
	})

	t.Run("DivisorNonZero", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(t, s)

		x := sym.NewVarExpr("x", 8)
		y := sym.NewVarExpr("y", 8)
		if sat, err := s.IsSat([]sym.Expr{
			sym.NewBinaryExpr(sym.EQ, x, sym.NewConstantExpr(6, 8)),
			sym.NewBinaryExpr(sym.EQ, sym.NewBinaryExpr(sym.UDIV, x, y), sym.NewConstantExpr(3, 8)),
		}); err != nil {
			t.Fatal(err)
		} else if !sat {
			t.Fatal("expected sat")
		}

		if value, err := s.ModelBitVector("y", 8); err != nil {
			t.Fatal(err)
		} else if value[0] == 0 {
			t.Fatal("expected non-zero divisor")
		}
	})

	t.Run("RemainderZeroUnsat", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(t, s)

		x := sym.NewVarExpr("x", 8)
		if sat, err := s.IsSat([]sym.Expr{
			sym.NewBinaryExpr(sym.EQ,
				sym.NewBinaryExpr(sym.SREM, x, sym.NewConstantExpr(0, 8)),
				sym.NewConstantExpr(0, 8)),
		}); err != nil {
			t.Fatal(err)
		} else if sat {
			t.Fatal("expected unsat")
		}
	})
}

func TestSolver_IsSat_Array(t *testing.T) {
	t.Run("Select", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(t, s)

		a := sym.NewArrayVarExpr("a", 64, 8)
		if sat, err := s.IsSat([]sym.Expr{
			sym.NewBinaryExpr(sym.EQ,
				sym.NewSelectExpr(a, sym.NewConstantExpr64(5)),
				sym.NewConstantExpr(9, 8)),
		}); err != nil {
			t.Fatal(err)
		} else if !sat {
			t.Fatal("expected sat")
		}

		if value, err := s.ModelArray("a", 64, 8); err != nil {
			t.Fatal(err)
		} else if got := value.Get(5); got != 9 {
			t.Fatalf("unexpected value at key 5: %d", got)
		}
	})

	t.Run("Store", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(t, s)

		// b equals a with key 5 rewritten, so reading b at 5 sees the
		// stored value and at any other key sees a.
		a := sym.NewArrayVarExpr("a", 64, 8)
		b := sym.NewArrayVarExpr("b", 64, 8)
		if sat, err := s.IsSat([]sym.Expr{
			sym.NewBinaryExpr(sym.EQ, b,
				sym.NewStoreExpr(a, sym.NewConstantExpr64(5), sym.NewConstantExpr(9, 8))),
			sym.NewBinaryExpr(sym.EQ,
				sym.NewSelectExpr(a, sym.NewConstantExpr64(6)),
				sym.NewConstantExpr(7, 8)),
		}); err != nil {
			t.Fatal(err)
		} else if !sat {
			t.Fatal("expected sat")
		}

		value, err := s.ModelArray("b", 64, 8)
		if err != nil {
			t.Fatal(err)
		}
		if got := value.Get(5); got != 9 {
			t.Fatalf("unexpected value at key 5: %d", got)
		}
		if got := value.Get(6); got != 7 {
			t.Fatalf("unexpected value at key 6: %d", got)
		}
	})

	t.Run("StoreChainOutermostWins", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(t, s)

		// Two stores to the same key; the outer one is live.
		a := sym.NewArrayVarExpr("a", 64, 8)
		b := sym.NewArrayVarExpr("b", 64, 8)
		chain := sym.NewStoreExpr(
			sym.NewStoreExpr(a, sym.NewConstantExpr64(5), sym.NewConstantExpr(1, 8)),
			sym.NewConstantExpr64(5), sym.NewConstantExpr(2, 8))
		if sat, err := s.IsSat([]sym.Expr{
			sym.NewBinaryExpr(sym.EQ, b, chain),
		}); err != nil {
			t.Fatal(err)
		} else if !sat {
			t.Fatal("expected sat")
		}

		if value, err := s.ModelArray("b", 64, 8); err != nil {
			t.Fatal(err)
		} else if got := value.Get(5); got != 2 {
			t.Fatalf("unexpected value at key 5: %d", got)
		}
	})
}

func TestSolver_IsSat_Call(t *testing.T) {
	t.Run("Congruence", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(t, s)

		f := sym.NewFunction("f", 8, 8)
		x := sym.NewVarExpr("x", 8)
		y := sym.NewVarExpr("y", 8)
		if sat, err := s.IsSat([]sym.Expr{
			sym.NewBinaryExpr(sym.EQ, sym.NewCallExpr(f, x), sym.NewConstantExpr(1, 8)),
			sym.NewBinaryExpr(sym.EQ, sym.NewCallExpr(f, y), sym.NewConstantExpr(2, 8)),
			sym.NewBinaryExpr(sym.EQ, x, y),
		}); err != nil {
			t.Fatal(err)
		} else if sat {
			t.Fatal("expected unsat")
		}
	})

	t.Run("Sat", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(t, s)

		f := sym.NewFunction("f", 8, 8, 8)
		x := sym.NewVarExpr("x", 8)
		if sat, err := s.IsSat([]sym.Expr{
			sym.NewBinaryExpr(sym.EQ,
				sym.NewCallExpr(f, x, sym.NewConstantExpr(1, 8)),
				sym.NewConstantExpr(2, 8)),
		}); err != nil {
			t.Fatal(err)
		} else if !sat {
			t.Fatal("expected sat")
		}
	})

	t.Run("ErrNoArguments", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(t, s)

		f := sym.NewFunction("f", 8)
		_, err := s.IsSat([]sym.Expr{
			sym.NewBinaryExpr(sym.EQ, sym.NewCallExpr(f), sym.NewConstantExpr(1, 8)),
		})
		if err == nil || !strings.Contains(err.Error(), "has no arguments") {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("ErrTooManyArguments", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(t, s)

		f := sym.NewFunction("f", 8, 8, 8, 8, 8)
		x := sym.NewVarExpr("x", 8)
		_, err := s.IsSat([]sym.Expr{
			sym.NewBinaryExpr(sym.EQ, sym.NewCallExpr(f, x, x, x, x), sym.NewConstantExpr(1, 8)),
		})
		if err == nil || !strings.Contains(err.Error(), "too many arguments") {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestSolver_IsSat_ForAll(t *testing.T) {
	t.Run("Tautology", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(t, s)

		v := sym.NewVarExpr("v", 8)
		if sat, err := s.IsSat([]sym.Expr{
			sym.NewForAllExpr(&sym.BinaryExpr{Op: sym.ULE, LHS: v, RHS: v}, v),
		}); err != nil {
			t.Fatal(err)
		} else if !sat {
			t.Fatal("expected sat")
		}
	})

	t.Run("Contradiction", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(t, s)

		// x is universally quantified, so it cannot equal a single value.
		v := sym.NewVarExpr("v", 8)
		if sat, err := s.IsSat([]sym.Expr{
			sym.NewForAllExpr(sym.NewBinaryExpr(sym.EQ, v, sym.NewConstantExpr(3, 8)), v),
		}); err != nil {
			t.Fatal(err)
		} else if sat {
			t.Fatal("expected unsat")
		}
	})

	t.Run("ErrTooManyBoundVariables", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(t, s)

		vars := []*sym.VarExpr{
			sym.NewVarExpr("a", 8),
			sym.NewVarExpr("b", 8),
			sym.NewVarExpr("c", 8),
			sym.NewVarExpr("d", 8),
		}
		body := sym.NewBinaryExpr(sym.EQ, vars[0], vars[1])
		_, err := s.IsSat([]sym.Expr{sym.NewForAllExpr(body, vars...)})
		if err == nil || !strings.Contains(err.Error(), "too many bound variables") {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestSolver_IsSat_ErrTypecheck(t *testing.T) {
	s := z3.NewSolver()
	defer MustCloseSolver(t, s)

	constraint := &sym.BinaryExpr{
		Op:  sym.EQ,
		LHS: sym.NewVarExpr("x", 8),
		RHS: sym.NewVarExpr("y", 16),
	}
	var terr *sym.TypeError
	if _, err := s.IsSat([]sym.Expr{constraint}); err == nil {
		t.Fatal("expected error")
	} else if !errors.As(err, &terr) {
		t.Fatalf("unexpected error: %v", err)
	} else if !strings.Contains(err.Error(), "typechecking failed") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSolver_Interrupt(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}

	s := z3.NewSolver()
	defer MustCloseSolver(t, s)

	// Factoring a 64-bit semiprime into 32-bit factors is far beyond
	// what the solver finishes in the interrupt window.
	x := sym.NewVarExpr("x", 32)
	y := sym.NewVarExpr("y", 32)
	product := sym.NewBinaryExpr(sym.MUL,
		sym.NewCastExpr(x, 64, false),
		sym.NewCastExpr(y, 64, false))
	constraints := []sym.Expr{
		sym.NewBinaryExpr(sym.EQ, product, sym.NewConstantExpr64(998244359987710471)),
		sym.NewBinaryExpr(sym.UGT, x, sym.NewConstantExpr(1, 32)),
		sym.NewBinaryExpr(sym.UGT, y, sym.NewConstantExpr(1, 32)),
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		s.Interrupt()
	}()

	if sat, err := s.IsSat(constraints); !errors.Is(err, sym.ErrInterrupted) {
		t.Fatalf("unexpected result: sat=%v err=%v", sat, err)
	}

	if _, err := s.ModelBool("x"); err == nil {
		t.Fatal("expected no model after interrupt")
	}

	// A fresh call starts with the interrupt request cleared.
	b := sym.NewVarExpr("b", sym.WidthBool)
	if sat, err := s.IsSat([]sym.Expr{b}); err != nil {
		t.Fatal(err)
	} else if !sat {
		t.Fatal("expected sat")
	}
}

func TestSolver_Debug(t *testing.T) {
	s := z3.NewSolver()
	defer MustCloseSolver(t, s)

	x := sym.NewVarExpr("x", 8)
	constraints := []sym.Expr{sym.NewBinaryExpr(sym.EQ, x, sym.NewConstantExpr(1, 8))}

	if _, err := s.IsSat(constraints); err != nil {
		t.Fatal(err)
	} else if s.LastQuery() != "" || s.LastQueryHash() != "" {
		t.Fatal("expected no capture without debug mode")
	}

	s.SetDebug(true)
	if _, err := s.IsSat(constraints); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(s.LastQuery(), "assert") {
		t.Fatalf("unexpected query text: %s", s.LastQuery())
	}
	if len(s.LastQueryHash()) != 32 {
		t.Fatalf("unexpected hash: %s", s.LastQueryHash())
	}

	hash := s.LastQueryHash()
	if _, err := s.IsSat(constraints); err != nil {
		t.Fatal(err)
	} else if s.LastQueryHash() != hash {
		t.Fatal("expected identical hash for identical query")
	}
}

func TestSolver_Stats(t *testing.T) {
	s := z3.NewSolver()
	defer MustCloseSolver(t, s)

	b := sym.NewVarExpr("b", sym.WidthBool)
	for i := 0; i < 3; i++ {
		if _, err := s.IsSat([]sym.Expr{b}); err != nil {
			t.Fatal(err)
		}
	}

	stats := s.Stats()
	if stats.QueryN != 3 {
		t.Fatalf("unexpected query count: %d", stats.QueryN)
	}
	if stats.SolveTime <= 0 {
		t.Fatalf("unexpected solve time: %s", stats.SolveTime)
	}
}

// MustCloseSolver closes the solver and fails the test on error.
func MustCloseSolver(tb testing.TB, s *z3.Solver) {
	tb.Helper()
	if err := s.Close(); err != nil {
		tb.Fatal(err)
	}
}
