package z3

import (
	"fmt"

	"github.com/benbjohnson/immutable"
)

/*
#include <stdint.h>
#include <z3.h>
*/
import "C"

// ArrayValue is the satisfying assignment for an array variable: a
// sparse mapping from key to byte plus a default applied to every key
// that was never explicitly stored.
type ArrayValue struct {
	values *immutable.SortedMap[uint64, byte]
	def    byte
}

func newArrayValue() *ArrayValue {
	return &ArrayValue{values: immutable.NewSortedMap[uint64, byte](nil)}
}

func (v *ArrayValue) set(key uint64, value byte) {
	v.values = v.values.Set(key, value)
}

// Get returns the value at key, falling back to the default.
func (v *ArrayValue) Get(key uint64) byte {
	if value, ok := v.values.Get(key); ok {
		return value
	}
	return v.def
}

// Contains reports whether key was explicitly stored in the formula.
func (v *ArrayValue) Contains(key uint64) bool {
	_, ok := v.values.Get(key)
	return ok
}

// Default returns the value of every key that was never stored.
func (v *ArrayValue) Default() byte { return v.def }

// Len returns the number of explicitly stored keys.
func (v *ArrayValue) Len() int { return v.values.Len() }

// Iterator returns an iterator over the stored keys in ascending order.
func (v *ArrayValue) Iterator() *immutable.SortedMapIterator[uint64, byte] {
	return v.values.Iterator()
}

// ModelBool returns the satisfying assignment for a boolean variable.
// Only valid after IsSat returned true and before the next IsSat call.
func (s *Solver) ModelBool(name string) (bool, error) {
	if s.model == nil {
		return false, fmt.Errorf("z3: no model available")
	}

	sort, err := s.ctx.makeBoolSort()
	if err != nil {
		return false, err
	}
	v, err := s.ctx.makeConst(name, sort)
	if err != nil {
		return false, err
	}
	e, err := s.eval(v)
	if err != nil {
		return false, err
	}

	switch C.Z3_get_bool_value(s.ctx.raw, e) {
	case C.Z3_L_TRUE:
		return true, nil
	case C.Z3_L_FALSE:
		return false, nil
	default:
		// A genuine model never leaves an asserted boolean undetermined.
		return false, fmt.Errorf("z3: returned invalid boolean value for %s", name)
	}
}

// ModelBitVector returns the satisfying assignment for a bit-vector
// variable as a little-endian byte slice of (width+7)/8 bytes.
//
// NOTE: the caller must pass the exact width the variable was declared
// with in the constraints. A mismatched name or width cannot be
// detected and the result is undefined.
func (s *Solver) ModelBitVector(name string, width uint) ([]byte, error) {
	if s.model == nil {
		return nil, fmt.Errorf("z3: no model available")
	} else if width == 0 {
		return nil, fmt.Errorf("z3: zero width bit-vector %s", name)
	}

	sort, err := s.ctx.makeBVSort(width)
	if err != nil {
		return nil, err
	}
	v, err := s.ctx.makeConst(name, sort)
	if err != nil {
		return nil, err
	}

	// Evaluate 64-bit-or-narrower slices and pack their bytes, least
	// significant slice first. The final slice carries the remaining,
	// possibly unaligned bits.
	value := make([]byte, 0, (width+7)/8)
	for lo := uint(0); lo < width; lo += 64 {
		hi := lo + 63
		if hi >= width {
			hi = width - 1
		}

		slice := C.Z3_mk_extract(s.ctx.raw, C.uint(hi), C.uint(lo), v)
		if err := s.ctx.err("Z3_mk_extract"); err != nil {
			return nil, err
		}
		e, err := s.eval(slice)
		if err != nil {
			return nil, err
		}
		word, err := s.numeral(e)
		if err != nil {
			return nil, err
		}

		for b := uint(0); b < hi-lo+1; b += 8 {
			value = append(value, byte(word>>b))
		}
	}
	return value, nil
}

// ModelArray returns the satisfying assignment for an array variable as
// a sparse key-to-byte mapping plus a default for unmapped keys.
//
// The decision procedure may represent the array in several syntactic
// shapes, which can only be told apart by probing node kinds: a chain of
// stores over a base, a constant-array base, or an auxiliary function's
// interpretation. Shapes the decoder does not recognize are non-fatal:
// it logs a diagnostic and returns what it decoded with default zero,
// which callers must treat as a possibly spurious assignment.
func (s *Solver) ModelArray(name string, keyWidth, valueWidth uint) (*ArrayValue, error) {
	if s.model == nil {
		return nil, fmt.Errorf("z3: no model available")
	}

	sort, err := s.ctx.makeArraySort(keyWidth, valueWidth)
	if err != nil {
		return nil, err
	}
	v, err := s.ctx.makeConst(name, sort)
	if err != nil {
		return nil, err
	}
	e, err := s.eval(v)
	if err != nil {
		return nil, err
	}

	value := newArrayValue()

	if C.Z3_get_ast_kind(s.ctx.raw, e) != C.Z3_APP_AST {
		s.logf("z3: array model for %s is not an application; assignment may be spurious", name)
		return value, nil
	}

	// Peel the chain of stores layered over the base array. The
	// outermost store for a key is its live value.
	app := C.Z3_to_app(s.ctx.raw, e)
	kind := C.Z3_get_decl_kind(s.ctx.raw, C.Z3_get_app_decl(s.ctx.raw, app))
	for kind == C.Z3_OP_STORE {
		key, err := s.numeral(C.Z3_get_app_arg(s.ctx.raw, app, 1))
		if err != nil {
			s.logf("z3: unreadable store key in array model for %s: %v", name, err)
			return value, nil
		}
		val, err := s.numeral(C.Z3_get_app_arg(s.ctx.raw, app, 2))
		if err != nil {
			s.logf("z3: unreadable store value in array model for %s: %v", name, err)
			return value, nil
		}
		if val > 0xff {
			s.logf("z3: store value %d for key %d in array model for %s exceeds one byte", val, key, name)
			return value, nil
		}
		if !value.Contains(key) {
			value.set(key, byte(val))
		}

		e = C.Z3_get_app_arg(s.ctx.raw, app, 0)
		app = C.Z3_to_app(s.ctx.raw, e)
		kind = C.Z3_get_decl_kind(s.ctx.raw, C.Z3_get_app_decl(s.ctx.raw, app))
	}

	switch kind {
	case C.Z3_OP_CONST_ARRAY:
		// Every unmapped key takes the constant base's value.
		def, err := s.numeral(C.Z3_get_app_arg(s.ctx.raw, app, 0))
		if err != nil || def > 0xff {
			s.logf("z3: unreadable constant-array default in array model for %s", name)
			return value, nil
		}
		value.def = byte(def)
		return value, nil

	case C.Z3_OP_AS_ARRAY:
		// The base is an auxiliary function; its finite interpretation
		// lists the explicit entries and the default.
		return s.decodeAsArray(name, app, value)

	case C.Z3_OP_ARRAY_MAP:
		s.logf("z3: cannot decode array-map model for %s; assignment may be spurious", name)
		return value, nil

	default:
		s.logf("z3: unrecognized array model shape for %s; assignment may be spurious", name)
		return value, nil
	}
}

// decodeAsArray fills value from the function interpretation backing an
// as-array model node.
func (s *Solver) decodeAsArray(name string, app C.Z3_app, value *ArrayValue) (*ArrayValue, error) {
	decl := C.Z3_get_app_decl(s.ctx.raw, app)
	fd := C.Z3_get_decl_func_decl_parameter(s.ctx.raw, decl, 0)
	if err := s.ctx.err("Z3_get_decl_func_decl_parameter"); err != nil {
		s.logf("z3: no function behind as-array model for %s: %v", name, err)
		return value, nil
	}

	interp := C.Z3_model_get_func_interp(s.ctx.raw, s.model, fd)
	if err := s.ctx.err("Z3_model_get_func_interp"); err != nil || interp == nil {
		s.logf("z3: missing function interpretation in array model for %s", name)
		return value, nil
	}
	C.Z3_func_interp_inc_ref(s.ctx.raw, interp)
	defer C.Z3_func_interp_dec_ref(s.ctx.raw, interp)

	n := C.Z3_func_interp_get_num_entries(s.ctx.raw, interp)
	for i := C.uint(0); i < n; i++ {
		entry := C.Z3_func_interp_get_entry(s.ctx.raw, interp, i)
		if err := s.ctx.err("Z3_func_interp_get_entry"); err != nil {
			s.logf("z3: unreadable function entry in array model for %s: %v", name, err)
			return value, nil
		}
		C.Z3_func_entry_inc_ref(s.ctx.raw, entry)

		key, keyErr := s.numeral(C.Z3_func_entry_get_arg(s.ctx.raw, entry, 0))
		val, valErr := s.numeral(C.Z3_func_entry_get_value(s.ctx.raw, entry))
		C.Z3_func_entry_dec_ref(s.ctx.raw, entry)
		if keyErr != nil || valErr != nil || val > 0xff {
			s.logf("z3: unreadable function entry in array model for %s", name)
			return value, nil
		}

		// Stores peeled above this base take precedence.
		if !value.Contains(key) {
			value.set(key, byte(val))
		}
	}

	def, err := s.numeral(C.Z3_func_interp_get_else(s.ctx.raw, interp))
	if err != nil || def > 0xff {
		s.logf("z3: unreadable function default in array model for %s", name)
		return value, nil
	}
	value.def = byte(def)
	return value, nil
}

// eval evaluates an AST against the retained model with completion, so
// unconstrained symbols still receive concrete values.
func (s *Solver) eval(ast C.Z3_ast) (C.Z3_ast, error) {
	var out C.Z3_ast
	C.Z3_model_eval(s.ctx.raw, s.model, ast, C.bool(true), &out)
	if err := s.ctx.err("Z3_model_eval"); err != nil {
		return nil, err
	} else if out == nil {
		return nil, fmt.Errorf("z3: model evaluation failed")
	}
	return out, nil
}

// numeral reads an evaluated AST as an unsigned 64-bit integer.
func (s *Solver) numeral(ast C.Z3_ast) (uint64, error) {
	var value C.uint64_t
	C.Z3_get_numeral_uint64(s.ctx.raw, ast, &value)
	if err := s.ctx.err("Z3_get_numeral_uint64"); err != nil {
		return 0, err
	}
	return uint64(value), nil
}
