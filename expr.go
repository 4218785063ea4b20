package sym

import (
	"fmt"
	"strings"
)

// Expr represents a symbolic expression. An expression is an immutable
// tree; subtrees may be shared between parents.
type Expr interface {
	expr()
	String() string
}

func (*ArrayVarExpr) expr() {}
func (*BinaryExpr) expr()   {}
func (*CallExpr) expr()     {}
func (*CastExpr) expr()     {}
func (*ConcatExpr) expr()   {}
func (*ConstantExpr) expr() {}
func (*ExtractExpr) expr()  {}
func (*ForAllExpr) expr()   {}
func (*NotExpr) expr()      {}
func (*SelectExpr) expr()   {}
func (*StoreExpr) expr()    {}
func (*VarExpr) expr()      {}

// ExprWidth returns the bit width of the expression. Width 1 denotes a
// boolean. Panics for array-shaped expressions, which have no scalar
// width; use ArrayDims for those.
func ExprWidth(expr Expr) uint {
	switch expr := expr.(type) {
	case *ConstantExpr:
		return expr.Width
	case *VarExpr:
		return expr.Width
	case *BinaryExpr:
		if expr.Op.IsCompare() || expr.Op == IMPLIES {
			return WidthBool
		}
		return ExprWidth(expr.LHS)
	case *NotExpr:
		return ExprWidth(expr.Expr)
	case *ConcatExpr:
		return ExprWidth(expr.MSB) + ExprWidth(expr.LSB)
	case *ExtractExpr:
		return expr.Width
	case *CastExpr:
		return expr.Width
	case *SelectExpr:
		_, valueWidth := ArrayDims(expr.Array)
		return valueWidth
	case *CallExpr:
		return expr.Func.ReturnWidth
	case *ForAllExpr:
		return WidthBool
	case *ArrayVarExpr, *StoreExpr:
		panic(fmt.Sprintf("sym.ExprWidth: array expression has no scalar width: %s", expr))
	default:
		panic("unreachable")
	}
}

// IsArrayExpr returns true if expr is array-shaped.
func IsArrayExpr(expr Expr) bool {
	switch expr.(type) {
	case *ArrayVarExpr, *StoreExpr:
		return true
	default:
		return false
	}
}

// ArrayDims returns the key & value widths of an array-shaped
// expression. Panics if expr is not array-shaped.
func ArrayDims(expr Expr) (keyWidth, valueWidth uint) {
	switch expr := expr.(type) {
	case *ArrayVarExpr:
		return expr.KeyWidth, expr.ValueWidth
	case *StoreExpr:
		return ArrayDims(expr.Array)
	default:
		panic(fmt.Sprintf("sym.ArrayDims: not an array expression: %s", expr))
	}
}

// BinaryOp represents a binary expression operation.
type BinaryOp int

// BinaryExpr operations.
const (
	arithmetic_op_begin = BinaryOp(iota)
	ADD
	SUB
	MUL
	UDIV
	SDIV
	UREM
	SREM
	AND
	OR
	XOR
	SHL
	LSHR
	ASHR
	ROTL
	ROTR
	arithmetic_op_end

	compare_op_begin
	EQ
	NE
	ULT
	ULE
	UGT
	UGE
	SLT
	SLE
	SGT
	SGE
	compare_op_end

	IMPLIES
)

var binaryOps = [...]string{
	ADD:     "add",
	SUB:     "sub",
	MUL:     "mul",
	UDIV:    "udiv",
	SDIV:    "sdiv",
	UREM:    "urem",
	SREM:    "srem",
	AND:     "and",
	OR:      "or",
	XOR:     "xor",
	SHL:     "shl",
	LSHR:    "lshr",
	ASHR:    "ashr",
	ROTL:    "rotl",
	ROTR:    "rotr",
	EQ:      "eq",
	NE:      "ne",
	ULT:     "ult",
	ULE:     "ule",
	UGT:     "ugt",
	UGE:     "uge",
	SLT:     "slt",
	SLE:     "sle",
	SGT:     "sgt",
	SGE:     "sge",
	IMPLIES: "implies",
}

// String returns the string representation of the operation.
func (op BinaryOp) String() string {
	if op >= 0 && op < BinaryOp(len(binaryOps)) && binaryOps[op] != "" {
		return binaryOps[op]
	}
	return fmt.Sprintf("BinaryOp<%d>", op)
}

// IsArithmetic returns true if op is an arithmetic or bitwise operator.
func (op BinaryOp) IsArithmetic() bool {
	return op > arithmetic_op_begin && op < arithmetic_op_end
}

// IsCompare returns true if op is a comparison operator.
func (op BinaryOp) IsCompare() bool {
	return op > compare_op_begin && op < compare_op_end
}

// ConstantExpr represents a fixed-width constant. Width 1 is a boolean.
type ConstantExpr struct {
	Value uint64
	Width uint
}

// NewConstantExpr returns a new instance of ConstantExpr. The value is
// truncated to width bits.
func NewConstantExpr(value uint64, width uint) *ConstantExpr {
	return &ConstantExpr{Value: truncate(value, width), Width: width}
}

// NewConstantExpr64 returns a new 64-bit constant expression.
func NewConstantExpr64(value uint64) *ConstantExpr {
	return NewConstantExpr(value, Width64)
}

// NewBoolConstantExpr returns a 1-bit constant expression.
func NewBoolConstantExpr(value bool) *ConstantExpr {
	if value {
		return &ConstantExpr{Value: 1, Width: WidthBool}
	}
	return &ConstantExpr{Value: 0, Width: WidthBool}
}

// IsConstantExpr returns true if expr is a constant expression.
func IsConstantExpr(expr Expr) bool {
	_, ok := expr.(*ConstantExpr)
	return ok
}

// IsTrue returns true if the expression is a true boolean constant.
func (e *ConstantExpr) IsTrue() bool {
	return e.Width == WidthBool && e.Value == 1
}

// IsFalse returns true if the expression is a false boolean constant.
func (e *ConstantExpr) IsFalse() bool {
	return e.Width == WidthBool && e.Value == 0
}

// Add returns the sum of e & other, truncated to e's width.
func (e *ConstantExpr) Add(other *ConstantExpr) *ConstantExpr {
	return NewConstantExpr(e.Value+other.Value, e.Width)
}

// Sub returns the difference of e & other, truncated to e's width.
func (e *ConstantExpr) Sub(other *ConstantExpr) *ConstantExpr {
	return NewConstantExpr(e.Value-other.Value, e.Width)
}

// Mul returns the product of e & other, truncated to e's width.
func (e *ConstantExpr) Mul(other *ConstantExpr) *ConstantExpr {
	return NewConstantExpr(e.Value*other.Value, e.Width)
}

// String returns the string representation of the expression.
func (e *ConstantExpr) String() string {
	if e.Width == WidthBool {
		if e.Value == 1 {
			return "true"
		}
		return "false"
	}
	return fmt.Sprintf("(const %d %d)", e.Value, e.Width)
}

// VarExpr represents a named scalar unknown. Width 1 is a boolean
// variable. The same name and width always denote the same unknown.
type VarExpr struct {
	Name  string
	Width uint
}

// NewVarExpr returns a new instance of VarExpr.
func NewVarExpr(name string, width uint) *VarExpr {
	return &VarExpr{Name: name, Width: width}
}

// String returns the string representation of the expression.
func (e *VarExpr) String() string {
	return fmt.Sprintf("(var %s %d)", e.Name, e.Width)
}

// BinaryExpr represents an operation on two expressions.
type BinaryExpr struct {
	Op  BinaryOp
	LHS Expr
	RHS Expr
}

// NewBinaryExpr returns a binary expression, folding constant operands
// and trivial identities where possible.
func NewBinaryExpr(op BinaryOp, lhs, rhs Expr) Expr {
	// Array operands only occur under (in)equality; nothing to fold.
	if IsArrayExpr(lhs) || IsArrayExpr(rhs) {
		return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}
	}

	if l, ok := lhs.(*ConstantExpr); ok {
		if r, ok := rhs.(*ConstantExpr); ok {
			if folded := foldConstants(op, l, r); folded != nil {
				return folded
			}
		}
	}

	switch op {
	case ADD, SUB, OR, XOR, SHL, LSHR, ASHR:
		// x+0, x-0, x|0, x^0 and zero shifts are all x.
		if r, ok := rhs.(*ConstantExpr); ok && r.Value == 0 {
			return lhs
		}
		if op == ADD || op == OR || op == XOR {
			if l, ok := lhs.(*ConstantExpr); ok && l.Value == 0 {
				return rhs
			}
		}
	case MUL:
		if r, ok := rhs.(*ConstantExpr); ok {
			if r.Value == 1 {
				return lhs
			} else if r.Value == 0 {
				return r
			}
		}
		if l, ok := lhs.(*ConstantExpr); ok {
			if l.Value == 1 {
				return rhs
			} else if l.Value == 0 {
				return l
			}
		}
	}

	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}
}

// foldConstants evaluates op over two constants. Returns nil for
// operators that are not folded. Divisions are never folded so their
// definedness side conditions survive to conversion.
func foldConstants(op BinaryOp, l, r *ConstantExpr) Expr {
	switch op {
	case ADD:
		return l.Add(r)
	case SUB:
		return l.Sub(r)
	case MUL:
		return l.Mul(r)
	case AND:
		return NewConstantExpr(l.Value&r.Value, l.Width)
	case OR:
		return NewConstantExpr(l.Value|r.Value, l.Width)
	case XOR:
		return NewConstantExpr(l.Value^r.Value, l.Width)
	case EQ:
		return NewBoolConstantExpr(l.Value == r.Value)
	case NE:
		return NewBoolConstantExpr(l.Value != r.Value)
	case ULT:
		return NewBoolConstantExpr(l.Value < r.Value)
	case ULE:
		return NewBoolConstantExpr(l.Value <= r.Value)
	case UGT:
		return NewBoolConstantExpr(l.Value > r.Value)
	case UGE:
		return NewBoolConstantExpr(l.Value >= r.Value)
	case SLT:
		return NewBoolConstantExpr(toSigned(l) < toSigned(r))
	case SLE:
		return NewBoolConstantExpr(toSigned(l) <= toSigned(r))
	case SGT:
		return NewBoolConstantExpr(toSigned(l) > toSigned(r))
	case SGE:
		return NewBoolConstantExpr(toSigned(l) >= toSigned(r))
	default:
		return nil
	}
}

// String returns the string representation of the expression.
func (e *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Op, e.LHS, e.RHS)
}

// NotExpr represents negation: boolean not on width 1, bitwise not on
// wider expressions.
type NotExpr struct {
	Expr Expr
}

// NewNotExpr returns the negation of expr, folding constants.
func NewNotExpr(expr Expr) Expr {
	if c, ok := expr.(*ConstantExpr); ok {
		if c.Width == WidthBool {
			return NewBoolConstantExpr(c.Value == 0)
		}
		return NewConstantExpr(^c.Value, c.Width)
	}
	return &NotExpr{Expr: expr}
}

// String returns the string representation of the expression.
func (e *NotExpr) String() string {
	return fmt.Sprintf("(not %s)", e.Expr)
}

// ConcatExpr represents the concatenation of two bit vectors.
type ConcatExpr struct {
	MSB Expr
	LSB Expr
}

// NewConcatExpr returns the concatenation of msb & lsb, folding
// constants when the result fits in 64 bits.
func NewConcatExpr(msb, lsb Expr) Expr {
	if m, ok := msb.(*ConstantExpr); ok {
		if l, ok := lsb.(*ConstantExpr); ok && m.Width+l.Width <= Width64 {
			return NewConstantExpr(m.Value<<l.Width|l.Value, m.Width+l.Width)
		}
	}
	return &ConcatExpr{MSB: msb, LSB: lsb}
}

// String returns the string representation of the expression.
func (e *ConcatExpr) String() string {
	return fmt.Sprintf("(concat %s %s)", e.MSB, e.LSB)
}

// ExtractExpr represents a bit-range slice of a bit vector. The slice
// covers bits [Offset, Offset+Width). A width-1 extract is a boolean.
type ExtractExpr struct {
	Expr   Expr
	Offset uint
	Width  uint
}

// NewExtractExpr returns a slice of expr, folding constants.
func NewExtractExpr(expr Expr, offset, width uint) Expr {
	assert(width > 0, "extract width cannot be zero")
	if c, ok := expr.(*ConstantExpr); ok {
		return NewConstantExpr(c.Value>>offset, width)
	}
	return &ExtractExpr{Expr: expr, Offset: offset, Width: width}
}

// String returns the string representation of the expression.
func (e *ExtractExpr) String() string {
	return fmt.Sprintf("(extract %s %d %d)", e.Expr, e.Offset, e.Width)
}

// CastExpr represents a widening of a bit vector or boolean: zero
// extension when unsigned, sign extension when signed.
type CastExpr struct {
	Src    Expr
	Width  uint
	Signed bool
}

// NewCastExpr returns src widened to the given width, folding constants.
func NewCastExpr(src Expr, width uint, signed bool) Expr {
	if c, ok := src.(*ConstantExpr); ok && c.Width > WidthBool {
		if signed {
			return NewConstantExpr(uint64(toSigned(c)), width)
		}
		return NewConstantExpr(c.Value, width)
	}
	return &CastExpr{Src: src, Width: width, Signed: signed}
}

// String returns the string representation of the expression.
func (e *CastExpr) String() string {
	if e.Signed {
		return fmt.Sprintf("(sext %s %d)", e.Src, e.Width)
	}
	return fmt.Sprintf("(zext %s %d)", e.Src, e.Width)
}

// ArrayVarExpr represents a named array unknown mapping fixed-width
// keys to fixed-width values.
type ArrayVarExpr struct {
	Name       string
	KeyWidth   uint
	ValueWidth uint
}

// NewArrayVarExpr returns a new instance of ArrayVarExpr.
func NewArrayVarExpr(name string, keyWidth, valueWidth uint) *ArrayVarExpr {
	return &ArrayVarExpr{Name: name, KeyWidth: keyWidth, ValueWidth: valueWidth}
}

// String returns the string representation of the expression.
func (e *ArrayVarExpr) String() string {
	return fmt.Sprintf("(array %s %d %d)", e.Name, e.KeyWidth, e.ValueWidth)
}

// StoreExpr represents an array with one key updated to a new value.
type StoreExpr struct {
	Array Expr
	Index Expr
	Value Expr
}

// NewStoreExpr returns a new instance of StoreExpr.
func NewStoreExpr(array, index, value Expr) *StoreExpr {
	return &StoreExpr{Array: array, Index: index, Value: value}
}

// String returns the string representation of the expression.
func (e *StoreExpr) String() string {
	return fmt.Sprintf("(store %s %s %s)", e.Array, e.Index, e.Value)
}

// SelectExpr represents a read of an array at an index.
type SelectExpr struct {
	Array Expr
	Index Expr
}

// NewSelectExpr returns a new instance of SelectExpr.
func NewSelectExpr(array, index Expr) *SelectExpr {
	return &SelectExpr{Array: array, Index: index}
}

// String returns the string representation of the expression.
func (e *SelectExpr) String() string {
	return fmt.Sprintf("(select %s %s)", e.Array, e.Index)
}

// Function describes an uninterpreted function: its behavior is
// constrained only by the assertions referencing it.
type Function struct {
	Name        string
	ArgWidths   []uint
	ReturnWidth uint
}

// NewFunction returns a new instance of Function.
func NewFunction(name string, returnWidth uint, argWidths ...uint) *Function {
	return &Function{Name: name, ArgWidths: argWidths, ReturnWidth: returnWidth}
}

// CallExpr represents the application of an uninterpreted function.
type CallExpr struct {
	Func *Function
	Args []Expr
}

// NewCallExpr returns a new instance of CallExpr.
func NewCallExpr(fn *Function, args ...Expr) *CallExpr {
	return &CallExpr{Func: fn, Args: args}
}

// String returns the string representation of the expression.
func (e *CallExpr) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "(call %s", e.Func.Name)
	for _, arg := range e.Args {
		fmt.Fprintf(&buf, " %s", arg)
	}
	buf.WriteString(")")
	return buf.String()
}

// ForAllExpr represents universal quantification of a boolean body over
// a set of bound variables.
type ForAllExpr struct {
	Vars []*VarExpr
	Body Expr
}

// NewForAllExpr returns a new instance of ForAllExpr.
func NewForAllExpr(body Expr, vars ...*VarExpr) *ForAllExpr {
	return &ForAllExpr{Vars: vars, Body: body}
}

// String returns the string representation of the expression.
func (e *ForAllExpr) String() string {
	var buf strings.Builder
	buf.WriteString("(forall (")
	for i, v := range e.Vars {
		if i > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(v.String())
	}
	fmt.Fprintf(&buf, ") %s)", e.Body)
	return buf.String()
}

// truncate masks value to width bits.
func truncate(value uint64, width uint) uint64 {
	if width >= Width64 {
		return value
	}
	return value & (1<<width - 1)
}

// toSigned reinterprets the constant's value as a signed integer of its
// width.
func toSigned(c *ConstantExpr) int64 {
	if c.Width >= Width64 {
		return int64(c.Value)
	}
	shift := Width64 - c.Width
	return int64(c.Value<<shift) >> shift
}
