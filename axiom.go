package sym

// Axioms returns the implicit constraints required for the explicit
// constraints' intended meaning to hold. For uninterpreted functions
// this is congruence: two applications of the same function with equal
// arguments must yield equal results. The result is deterministic in
// the discovery order of the applications.
func Axioms(constraints []Expr) []Expr {
	var calls []*CallExpr
	seen := make(map[*CallExpr]struct{})
	for _, constraint := range constraints {
		collectCalls(constraint, seen, &calls)
	}

	// Group applications by function name, preserving discovery order.
	var names []string
	byName := make(map[string][]*CallExpr)
	for _, call := range calls {
		name := call.Func.Name
		if _, ok := byName[name]; !ok {
			names = append(names, name)
		}
		byName[name] = append(byName[name], call)
	}

	var axioms []Expr
	for _, name := range names {
		group := byName[name]
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				if axiom := congruence(group[i], group[j]); axiom != nil {
					axioms = append(axioms, axiom)
				}
			}
		}
	}
	return axioms
}

// congruence returns the axiom (args(a) = args(b)) implies (a = b), or
// nil if the two applications cannot be congruent.
func congruence(a, b *CallExpr) Expr {
	if len(a.Args) != len(b.Args) {
		return nil
	}
	var cond Expr
	for k := range a.Args {
		eq := NewBinaryExpr(EQ, a.Args[k], b.Args[k])
		if cond == nil {
			cond = eq
		} else {
			cond = NewBinaryExpr(AND, cond, eq)
		}
	}
	return NewBinaryExpr(IMPLIES, cond, NewBinaryExpr(EQ, a, b))
}

// collectCalls appends every uninterpreted function application in expr
// to out, deduplicated by node identity.
func collectCalls(expr Expr, seen map[*CallExpr]struct{}, out *[]*CallExpr) {
	switch expr := expr.(type) {
	case *BinaryExpr:
		collectCalls(expr.LHS, seen, out)
		collectCalls(expr.RHS, seen, out)
	case *NotExpr:
		collectCalls(expr.Expr, seen, out)
	case *ConcatExpr:
		collectCalls(expr.MSB, seen, out)
		collectCalls(expr.LSB, seen, out)
	case *ExtractExpr:
		collectCalls(expr.Expr, seen, out)
	case *CastExpr:
		collectCalls(expr.Src, seen, out)
	case *SelectExpr:
		collectCalls(expr.Array, seen, out)
		collectCalls(expr.Index, seen, out)
	case *StoreExpr:
		collectCalls(expr.Array, seen, out)
		collectCalls(expr.Index, seen, out)
		collectCalls(expr.Value, seen, out)
	case *ForAllExpr:
		collectCalls(expr.Body, seen, out)
	case *CallExpr:
		for _, arg := range expr.Args {
			collectCalls(arg, seen, out)
		}
		if _, ok := seen[expr]; !ok {
			seen[expr] = struct{}{}
			*out = append(*out, expr)
		}
	case *ConstantExpr, *VarExpr, *ArrayVarExpr:
		// Leaves.
	}
}
