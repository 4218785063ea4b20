package z3

import (
	"fmt"

	"github.com/verismith/sym"
)

/*
#include <z3.h>
#include <stdlib.h>
*/
import "C"

// converter translates IR expressions into Z3 ASTs for a single pass of
// the solve loop. Translation is a one-to-one syntax transcription;
// operators with definedness side conditions (signed division and
// modulo) additionally append a new IR constraint to the accumulator,
// which the driver typechecks and converts in the next pass.
type converter struct {
	ctx         *Context
	constraints *[]sym.Expr           // side-condition accumulator
	memo        map[sym.Expr]C.Z3_ast // structurally shared nodes convert once
}

func newConverter(ctx *Context, constraints *[]sym.Expr) *converter {
	return &converter{
		ctx:         ctx,
		constraints: constraints,
		memo:        make(map[sym.Expr]C.Z3_ast),
	}
}

// convert returns the Z3 AST for expr, memoizing by node identity.
func (c *converter) convert(expr sym.Expr) (C.Z3_ast, error) {
	if ast, ok := c.memo[expr]; ok {
		return ast, nil
	}
	ast, err := c.convertExpr(expr)
	if err != nil {
		return nil, err
	}
	c.memo[expr] = ast
	return ast, nil
}

func (c *converter) convertExpr(expr sym.Expr) (C.Z3_ast, error) {
	switch expr := expr.(type) {
	case *sym.ConstantExpr:
		return c.convertConstant(expr)
	case *sym.VarExpr:
		return c.convertVar(expr)
	case *sym.BinaryExpr:
		return c.convertBinary(expr)
	case *sym.NotExpr:
		return c.convertNot(expr)
	case *sym.ConcatExpr:
		return c.convertConcat(expr)
	case *sym.ExtractExpr:
		return c.convertExtract(expr)
	case *sym.CastExpr:
		return c.convertCast(expr)
	case *sym.SelectExpr:
		return c.convertSelect(expr)
	case *sym.StoreExpr:
		return c.convertStore(expr)
	case *sym.ArrayVarExpr:
		return c.convertArrayVar(expr)
	case *sym.CallExpr:
		return c.convertCall(expr)
	case *sym.ForAllExpr:
		return c.convertForAll(expr)
	default:
		return nil, fmt.Errorf("z3: invalid expression type: %T", expr)
	}
}

func (c *converter) convertConstant(expr *sym.ConstantExpr) (C.Z3_ast, error) {
	if expr.Width == sym.WidthBool {
		if expr.IsTrue() {
			return c.ctx.makeTrue()
		}
		return c.ctx.makeFalse()
	}
	return c.ctx.makeUint64(expr.Width, expr.Value)
}

func (c *converter) convertVar(expr *sym.VarExpr) (C.Z3_ast, error) {
	sort, err := c.ctx.sortForWidth(expr.Width)
	if err != nil {
		return nil, err
	}
	return c.ctx.makeConst(expr.Name, sort)
}

func (c *converter) convertBinary(expr *sym.BinaryExpr) (C.Z3_ast, error) {
	// Signed division and modulo are only well defined for a non-zero
	// divisor; assert the definedness condition for the next pass.
	if expr.Op == sym.SDIV || expr.Op == sym.SREM {
		width := sym.ExprWidth(expr.RHS)
		*c.constraints = append(*c.constraints,
			sym.NewBinaryExpr(sym.NE, expr.RHS, sym.NewConstantExpr(0, width)))
	}

	lhs, err := c.convert(expr.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := c.convert(expr.RHS)
	if err != nil {
		return nil, err
	}

	boolean := !sym.IsArrayExpr(expr.LHS) && sym.ExprWidth(expr.LHS) == sym.WidthBool

	switch expr.Op {
	case sym.ADD:
		return C.Z3_mk_bvadd(c.ctx.raw, lhs, rhs), c.ctx.err("Z3_mk_bvadd")
	case sym.SUB:
		return C.Z3_mk_bvsub(c.ctx.raw, lhs, rhs), c.ctx.err("Z3_mk_bvsub")
	case sym.MUL:
		return C.Z3_mk_bvmul(c.ctx.raw, lhs, rhs), c.ctx.err("Z3_mk_bvmul")
	case sym.UDIV:
		return C.Z3_mk_bvudiv(c.ctx.raw, lhs, rhs), c.ctx.err("Z3_mk_bvudiv")
	case sym.SDIV:
		return C.Z3_mk_bvsdiv(c.ctx.raw, lhs, rhs), c.ctx.err("Z3_mk_bvsdiv")
	case sym.UREM:
		return C.Z3_mk_bvurem(c.ctx.raw, lhs, rhs), c.ctx.err("Z3_mk_bvurem")
	case sym.SREM:
		return C.Z3_mk_bvsrem(c.ctx.raw, lhs, rhs), c.ctx.err("Z3_mk_bvsrem")
	case sym.AND:
		if boolean {
			args := [2]C.Z3_ast{lhs, rhs}
			return C.Z3_mk_and(c.ctx.raw, 2, &args[0]), c.ctx.err("Z3_mk_and")
		}
		return C.Z3_mk_bvand(c.ctx.raw, lhs, rhs), c.ctx.err("Z3_mk_bvand")
	case sym.OR:
		if boolean {
			args := [2]C.Z3_ast{lhs, rhs}
			return C.Z3_mk_or(c.ctx.raw, 2, &args[0]), c.ctx.err("Z3_mk_or")
		}
		return C.Z3_mk_bvor(c.ctx.raw, lhs, rhs), c.ctx.err("Z3_mk_bvor")
	case sym.XOR:
		if boolean {
			return C.Z3_mk_xor(c.ctx.raw, lhs, rhs), c.ctx.err("Z3_mk_xor")
		}
		return C.Z3_mk_bvxor(c.ctx.raw, lhs, rhs), c.ctx.err("Z3_mk_bvxor")
	case sym.SHL:
		return C.Z3_mk_bvshl(c.ctx.raw, lhs, rhs), c.ctx.err("Z3_mk_bvshl")
	case sym.LSHR:
		return C.Z3_mk_bvlshr(c.ctx.raw, lhs, rhs), c.ctx.err("Z3_mk_bvlshr")
	case sym.ASHR:
		return C.Z3_mk_bvashr(c.ctx.raw, lhs, rhs), c.ctx.err("Z3_mk_bvashr")
	case sym.ROTL:
		return C.Z3_mk_ext_rotate_left(c.ctx.raw, lhs, rhs), c.ctx.err("Z3_mk_ext_rotate_left")
	case sym.ROTR:
		return C.Z3_mk_ext_rotate_right(c.ctx.raw, lhs, rhs), c.ctx.err("Z3_mk_ext_rotate_right")
	case sym.EQ:
		if boolean {
			return C.Z3_mk_iff(c.ctx.raw, lhs, rhs), c.ctx.err("Z3_mk_iff")
		}
		return C.Z3_mk_eq(c.ctx.raw, lhs, rhs), c.ctx.err("Z3_mk_eq")
	case sym.NE:
		var eq C.Z3_ast
		if boolean {
			eq = C.Z3_mk_iff(c.ctx.raw, lhs, rhs)
		} else {
			eq = C.Z3_mk_eq(c.ctx.raw, lhs, rhs)
		}
		if err := c.ctx.err("Z3_mk_eq"); err != nil {
			return nil, err
		}
		return C.Z3_mk_not(c.ctx.raw, eq), c.ctx.err("Z3_mk_not")
	case sym.ULT:
		return C.Z3_mk_bvult(c.ctx.raw, lhs, rhs), c.ctx.err("Z3_mk_bvult")
	case sym.ULE:
		return C.Z3_mk_bvule(c.ctx.raw, lhs, rhs), c.ctx.err("Z3_mk_bvule")
	case sym.UGT:
		return C.Z3_mk_bvugt(c.ctx.raw, lhs, rhs), c.ctx.err("Z3_mk_bvugt")
	case sym.UGE:
		return C.Z3_mk_bvuge(c.ctx.raw, lhs, rhs), c.ctx.err("Z3_mk_bvuge")
	case sym.SLT:
		return C.Z3_mk_bvslt(c.ctx.raw, lhs, rhs), c.ctx.err("Z3_mk_bvslt")
	case sym.SLE:
		return C.Z3_mk_bvsle(c.ctx.raw, lhs, rhs), c.ctx.err("Z3_mk_bvsle")
	case sym.SGT:
		return C.Z3_mk_bvsgt(c.ctx.raw, lhs, rhs), c.ctx.err("Z3_mk_bvsgt")
	case sym.SGE:
		return C.Z3_mk_bvsge(c.ctx.raw, lhs, rhs), c.ctx.err("Z3_mk_bvsge")
	case sym.IMPLIES:
		return C.Z3_mk_implies(c.ctx.raw, lhs, rhs), c.ctx.err("Z3_mk_implies")
	default:
		return nil, fmt.Errorf("z3: unexpected binary operation: %s", expr.Op)
	}
}

func (c *converter) convertNot(expr *sym.NotExpr) (C.Z3_ast, error) {
	src, err := c.convert(expr.Expr)
	if err != nil {
		return nil, err
	}
	if sym.ExprWidth(expr.Expr) == sym.WidthBool {
		return C.Z3_mk_not(c.ctx.raw, src), c.ctx.err("Z3_mk_not")
	}
	return C.Z3_mk_bvnot(c.ctx.raw, src), c.ctx.err("Z3_mk_bvnot")
}

func (c *converter) convertConcat(expr *sym.ConcatExpr) (C.Z3_ast, error) {
	msb, err := c.convert(expr.MSB)
	if err != nil {
		return nil, err
	}
	lsb, err := c.convert(expr.LSB)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_concat(c.ctx.raw, msb, lsb), c.ctx.err("Z3_mk_concat")
}

func (c *converter) convertExtract(expr *sym.ExtractExpr) (C.Z3_ast, error) {
	src, err := c.convert(expr.Expr)
	if err != nil {
		return nil, err
	}

	// A single-bit extract is a boolean; compare the bit against one to
	// move it into the boolean sort.
	if expr.Width == sym.WidthBool {
		bit := C.Z3_mk_extract(c.ctx.raw, C.uint(expr.Offset), C.uint(expr.Offset), src)
		if err := c.ctx.err("Z3_mk_extract"); err != nil {
			return nil, err
		}
		one, err := c.ctx.makeUint64(1, 1)
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_eq(c.ctx.raw, bit, one), c.ctx.err("Z3_mk_eq")
	}

	return C.Z3_mk_extract(c.ctx.raw, C.uint(expr.Offset+expr.Width-1), C.uint(expr.Offset), src), c.ctx.err("Z3_mk_extract")
}

func (c *converter) convertCast(expr *sym.CastExpr) (C.Z3_ast, error) {
	src, err := c.convert(expr.Src)
	if err != nil {
		return nil, err
	}
	srcWidth := sym.ExprWidth(expr.Src)

	// Boolean casts become if-then-else over the target constants.
	if srcWidth == sym.WidthBool {
		whenTrue := uint64(1)
		if expr.Signed {
			whenTrue = truncate64(^uint64(0), expr.Width)
		}
		t, err := c.ctx.makeUint64(expr.Width, whenTrue)
		if err != nil {
			return nil, err
		}
		f, err := c.ctx.makeUint64(expr.Width, 0)
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_ite(c.ctx.raw, src, t, f), c.ctx.err("Z3_mk_ite")
	}

	if expr.Width == srcWidth {
		return src, nil
	}
	if expr.Signed {
		return C.Z3_mk_sign_ext(c.ctx.raw, C.uint(expr.Width-srcWidth), src), c.ctx.err("Z3_mk_sign_ext")
	}
	return C.Z3_mk_zero_ext(c.ctx.raw, C.uint(expr.Width-srcWidth), src), c.ctx.err("Z3_mk_zero_ext")
}

func (c *converter) convertSelect(expr *sym.SelectExpr) (C.Z3_ast, error) {
	array, err := c.convert(expr.Array)
	if err != nil {
		return nil, err
	}
	index, err := c.convert(expr.Index)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_select(c.ctx.raw, array, index), c.ctx.err("Z3_mk_select")
}

func (c *converter) convertStore(expr *sym.StoreExpr) (C.Z3_ast, error) {
	array, err := c.convert(expr.Array)
	if err != nil {
		return nil, err
	}
	index, err := c.convert(expr.Index)
	if err != nil {
		return nil, err
	}
	value, err := c.convert(expr.Value)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_store(c.ctx.raw, array, index, value), c.ctx.err("Z3_mk_store")
}

func (c *converter) convertArrayVar(expr *sym.ArrayVarExpr) (C.Z3_ast, error) {
	sort, err := c.ctx.makeArraySort(expr.KeyWidth, expr.ValueWidth)
	if err != nil {
		return nil, err
	}
	return c.ctx.makeConst(expr.Name, sort)
}

func (c *converter) convertCall(expr *sym.CallExpr) (C.Z3_ast, error) {
	fn := expr.Func
	if len(expr.Args) == 0 {
		return nil, fmt.Errorf("z3: function %s has no arguments", fn.Name)
	} else if len(expr.Args) > 3 {
		return nil, fmt.Errorf("z3: function %s has too many arguments: %d", fn.Name, len(expr.Args))
	}

	domain := make([]C.Z3_sort, len(fn.ArgWidths))
	for i, width := range fn.ArgWidths {
		sort, err := c.ctx.makeBVSort(width)
		if err != nil {
			return nil, err
		}
		domain[i] = sort
	}
	retSort, err := c.ctx.makeBVSort(fn.ReturnWidth)
	if err != nil {
		return nil, err
	}

	symbol, err := c.ctx.makeSymbol(fn.Name)
	if err != nil {
		return nil, err
	}
	decl := C.Z3_mk_func_decl(c.ctx.raw, symbol, C.uint(len(domain)), &domain[0], retSort)
	if err := c.ctx.err("Z3_mk_func_decl"); err != nil {
		return nil, err
	}

	args := make([]C.Z3_ast, len(expr.Args))
	for i, arg := range expr.Args {
		ast, err := c.convert(arg)
		if err != nil {
			return nil, err
		}
		args[i] = ast
	}
	return C.Z3_mk_app(c.ctx.raw, decl, C.uint(len(args)), &args[0]), c.ctx.err("Z3_mk_app")
}

func (c *converter) convertForAll(expr *sym.ForAllExpr) (C.Z3_ast, error) {
	if len(expr.Vars) == 0 {
		return nil, fmt.Errorf("z3: quantifier has no bound variables")
	} else if len(expr.Vars) > 3 {
		return nil, fmt.Errorf("z3: quantifier has too many bound variables: %d", len(expr.Vars))
	}

	// Bound variables convert through the ordinary variable path so that
	// references inside the body resolve to the same constants.
	bound := make([]C.Z3_app, len(expr.Vars))
	for i, v := range expr.Vars {
		ast, err := c.convert(v)
		if err != nil {
			return nil, err
		}
		bound[i] = C.Z3_to_app(c.ctx.raw, ast)
		if err := c.ctx.err("Z3_to_app"); err != nil {
			return nil, err
		}
	}

	body, err := c.convert(expr.Body)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_forall_const(c.ctx.raw, 0, C.uint(len(bound)), &bound[0], 0, nil, body), c.ctx.err("Z3_mk_forall_const")
}

// truncate64 masks value to width bits.
func truncate64(value uint64, width uint) uint64 {
	if width >= sym.Width64 {
		return value
	}
	return value & (1<<width - 1)
}
