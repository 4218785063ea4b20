package sym

// SplitConstraints rewrites a list of constraints into an equivalent
// flat list in which no element is a top-level conjunction. Nested
// conjunctions are expanded with an explicit work list so that
// pathologically deep conjunctions cannot exhaust the call stack. The
// output order is the deterministic depth-first, left-to-right
// expansion order; it carries no semantic significance.
func SplitConstraints(constraints []Expr) []Expr {
	split := make([]Expr, 0, len(constraints))

	// Stack the input in reverse so elements pop in their original order.
	stack := make([]Expr, 0, len(constraints))
	for i := len(constraints) - 1; i >= 0; i-- {
		stack = append(stack, constraints[i])
	}

	for len(stack) > 0 {
		expr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if b, ok := expr.(*BinaryExpr); ok && b.Op == AND && isBoolExpr(b.LHS) {
			stack = append(stack, b.RHS, b.LHS)
			continue
		}
		split = append(split, expr)
	}
	return split
}

// isBoolExpr returns true if expr is a boolean-typed scalar expression.
func isBoolExpr(expr Expr) bool {
	return !IsArrayExpr(expr) && ExprWidth(expr) == WidthBool
}
