package sym

// Typecheck validates that expr is well formed: every operator is
// applied to admissible operand kinds and all declared widths are
// consistent. Returns a *TypeError describing the offending
// subexpression on failure.
func Typecheck(expr Expr) error {
	switch expr := expr.(type) {
	case *ConstantExpr:
		if expr.Width == 0 {
			return typeErrorf(expr, "zero width constant")
		} else if expr.Width < Width64 && expr.Value>>expr.Width != 0 {
			return typeErrorf(expr, "value does not fit in %d bits", expr.Width)
		}
		return nil

	case *VarExpr:
		if expr.Name == "" {
			return typeErrorf(expr, "unnamed variable")
		} else if expr.Width == 0 {
			return typeErrorf(expr, "zero width variable")
		}
		return nil

	case *BinaryExpr:
		return typecheckBinary(expr)

	case *NotExpr:
		if err := Typecheck(expr.Expr); err != nil {
			return err
		} else if IsArrayExpr(expr.Expr) {
			return typeErrorf(expr, "cannot negate an array")
		}
		return nil

	case *ConcatExpr:
		if err := Typecheck(expr.MSB); err != nil {
			return err
		} else if err := Typecheck(expr.LSB); err != nil {
			return err
		} else if IsArrayExpr(expr.MSB) || IsArrayExpr(expr.LSB) {
			return typeErrorf(expr, "cannot concatenate arrays")
		} else if ExprWidth(expr.MSB) == WidthBool || ExprWidth(expr.LSB) == WidthBool {
			return typeErrorf(expr, "cannot concatenate booleans")
		}
		return nil

	case *ExtractExpr:
		if err := Typecheck(expr.Expr); err != nil {
			return err
		} else if IsArrayExpr(expr.Expr) {
			return typeErrorf(expr, "cannot extract from an array")
		} else if expr.Width == 0 {
			return typeErrorf(expr, "zero width extract")
		} else if w := ExprWidth(expr.Expr); w == WidthBool {
			return typeErrorf(expr, "cannot extract from a boolean")
		} else if expr.Offset+expr.Width > w {
			return typeErrorf(expr, "extract of bits [%d,%d) exceeds operand width %d", expr.Offset, expr.Offset+expr.Width, w)
		}
		return nil

	case *CastExpr:
		if err := Typecheck(expr.Src); err != nil {
			return err
		} else if IsArrayExpr(expr.Src) {
			return typeErrorf(expr, "cannot cast an array")
		} else if w := ExprWidth(expr.Src); expr.Width < w {
			return typeErrorf(expr, "cast narrows %d bits to %d", w, expr.Width)
		}
		return nil

	case *SelectExpr:
		if err := Typecheck(expr.Array); err != nil {
			return err
		} else if err := Typecheck(expr.Index); err != nil {
			return err
		} else if !IsArrayExpr(expr.Array) {
			return typeErrorf(expr, "select from a non-array")
		} else if IsArrayExpr(expr.Index) {
			return typeErrorf(expr, "array used as select index")
		}
		if keyWidth, _ := ArrayDims(expr.Array); ExprWidth(expr.Index) != keyWidth {
			return typeErrorf(expr, "select index width %d does not match key width %d", ExprWidth(expr.Index), keyWidth)
		}
		return nil

	case *StoreExpr:
		if err := Typecheck(expr.Array); err != nil {
			return err
		} else if err := Typecheck(expr.Index); err != nil {
			return err
		} else if err := Typecheck(expr.Value); err != nil {
			return err
		} else if !IsArrayExpr(expr.Array) {
			return typeErrorf(expr, "store into a non-array")
		} else if IsArrayExpr(expr.Index) || IsArrayExpr(expr.Value) {
			return typeErrorf(expr, "array used as store index or value")
		}
		keyWidth, valueWidth := ArrayDims(expr.Array)
		if ExprWidth(expr.Index) != keyWidth {
			return typeErrorf(expr, "store index width %d does not match key width %d", ExprWidth(expr.Index), keyWidth)
		} else if ExprWidth(expr.Value) != valueWidth {
			return typeErrorf(expr, "store value width %d does not match value width %d", ExprWidth(expr.Value), valueWidth)
		}
		return nil

	case *ArrayVarExpr:
		if expr.Name == "" {
			return typeErrorf(expr, "unnamed array variable")
		} else if expr.KeyWidth <= WidthBool || expr.ValueWidth <= WidthBool {
			// Booleans are not 1-bit vectors in this IR, so array
			// dimensions must be at least 2 bits wide.
			return typeErrorf(expr, "array dimensions must be wider than a boolean")
		}
		return nil

	case *CallExpr:
		for _, arg := range expr.Args {
			if err := Typecheck(arg); err != nil {
				return err
			}
		}
		if expr.Func == nil || expr.Func.Name == "" {
			return typeErrorf(expr, "call of unnamed function")
		} else if expr.Func.ReturnWidth == 0 {
			return typeErrorf(expr, "function %s has zero return width", expr.Func.Name)
		} else if len(expr.Args) != len(expr.Func.ArgWidths) {
			return typeErrorf(expr, "function %s expects %d arguments, got %d", expr.Func.Name, len(expr.Func.ArgWidths), len(expr.Args))
		}
		for i, arg := range expr.Args {
			if IsArrayExpr(arg) {
				return typeErrorf(expr, "array passed to function %s", expr.Func.Name)
			} else if ExprWidth(arg) != expr.Func.ArgWidths[i] {
				return typeErrorf(expr, "function %s argument %d has width %d, expected %d", expr.Func.Name, i, ExprWidth(arg), expr.Func.ArgWidths[i])
			}
		}
		return nil

	case *ForAllExpr:
		if len(expr.Vars) == 0 {
			return typeErrorf(expr, "quantifier without bound variables")
		}
		for _, v := range expr.Vars {
			if err := Typecheck(v); err != nil {
				return err
			}
		}
		if err := Typecheck(expr.Body); err != nil {
			return err
		} else if IsArrayExpr(expr.Body) || ExprWidth(expr.Body) != WidthBool {
			return typeErrorf(expr, "quantifier body is not boolean")
		}
		return nil

	default:
		return typeErrorf(expr, "unknown expression kind")
	}
}

func typecheckBinary(expr *BinaryExpr) error {
	if err := Typecheck(expr.LHS); err != nil {
		return err
	} else if err := Typecheck(expr.RHS); err != nil {
		return err
	}

	// Arrays are only comparable for (in)equality, and only against
	// arrays of the same dimensions.
	if IsArrayExpr(expr.LHS) || IsArrayExpr(expr.RHS) {
		if expr.Op != EQ && expr.Op != NE {
			return typeErrorf(expr, "operator %s is not defined on arrays", expr.Op)
		} else if !IsArrayExpr(expr.LHS) || !IsArrayExpr(expr.RHS) {
			return typeErrorf(expr, "cannot compare an array with a scalar")
		}
		lk, lv := ArrayDims(expr.LHS)
		rk, rv := ArrayDims(expr.RHS)
		if lk != rk || lv != rv {
			return typeErrorf(expr, "array dimension mismatch: (%d,%d) vs (%d,%d)", lk, lv, rk, rv)
		}
		return nil
	}

	lw, rw := ExprWidth(expr.LHS), ExprWidth(expr.RHS)
	if lw != rw {
		return typeErrorf(expr, "operand width mismatch: %d vs %d", lw, rw)
	}

	switch {
	case expr.Op == IMPLIES:
		if lw != WidthBool {
			return typeErrorf(expr, "implication of non-boolean operands")
		}
	case expr.Op == AND || expr.Op == OR || expr.Op == XOR:
		// Defined on both booleans and bit vectors.
	case expr.Op == EQ || expr.Op == NE:
		// Defined on any matching widths.
	case expr.Op.IsCompare():
		if lw == WidthBool {
			return typeErrorf(expr, "ordered comparison of booleans")
		}
	case expr.Op.IsArithmetic():
		if lw == WidthBool {
			return typeErrorf(expr, "operator %s is not defined on booleans", expr.Op)
		}
	default:
		return typeErrorf(expr, "unknown operator %s", expr.Op)
	}
	return nil
}
