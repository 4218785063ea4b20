package z3

import (
	"fmt"
	"unsafe"

	"github.com/verismith/sym"
)

/*
#cgo LDFLAGS: -lz3
#include <z3.h>
#include <stdlib.h>
*/
import "C"

// Context represents a Z3 context object that is used for constructing
// sorts and expressions.
type Context struct {
	raw C.Z3_context
}

// NewContext returns a new instance of Context.
func NewContext() *Context {
	config := C.Z3_mk_config()
	defer C.Z3_del_config(config)

	raw := C.Z3_mk_context(config)
	C.Z3_set_error_handler(raw, nil)
	C.Z3_set_ast_print_mode(raw, C.Z3_PRINT_SMTLIB2_COMPLIANT)
	return &Context{raw: raw}
}

// Close deletes the underlying Z3 context.
func (ctx *Context) Close() error {
	C.Z3_del_context(ctx.raw)
	return ctx.err("Z3_del_context")
}

// err returns the error for the last API call. Returns nil if last call was successful.
func (ctx *Context) err(op string) error {
	if code := C.Z3_get_error_code(ctx.raw); code != C.Z3_OK {
		return &Error{Code: int(code), Op: op, Message: C.GoString(C.Z3_get_error_msg(ctx.raw, code))}
	}
	return nil
}

func (ctx *Context) makeTrue() (C.Z3_ast, error) {
	return C.Z3_mk_true(ctx.raw), ctx.err("Z3_mk_true")
}

func (ctx *Context) makeFalse() (C.Z3_ast, error) {
	return C.Z3_mk_false(ctx.raw), ctx.err("Z3_mk_false")
}

func (ctx *Context) makeBoolSort() (C.Z3_sort, error) {
	return C.Z3_mk_bool_sort(ctx.raw), ctx.err("Z3_mk_bool_sort")
}

func (ctx *Context) makeBVSort(width uint) (C.Z3_sort, error) {
	return C.Z3_mk_bv_sort(ctx.raw, C.uint(width)), ctx.err("Z3_mk_bv_sort")
}

// sortForWidth returns the sort for a scalar of the given width.
// Width 1 is the boolean sort, everything else a bit-vector sort.
func (ctx *Context) sortForWidth(width uint) (C.Z3_sort, error) {
	if width == sym.WidthBool {
		return ctx.makeBoolSort()
	}
	return ctx.makeBVSort(width)
}

func (ctx *Context) makeArraySort(keyWidth, valueWidth uint) (C.Z3_sort, error) {
	keySort, err := ctx.makeBVSort(keyWidth)
	if err != nil {
		return nil, err
	}
	valueSort, err := ctx.makeBVSort(valueWidth)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_array_sort(ctx.raw, keySort, valueSort), ctx.err("Z3_mk_array_sort")
}

func (ctx *Context) makeUint64(width uint, value uint64) (C.Z3_ast, error) {
	t, err := ctx.makeBVSort(width)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_unsigned_int64(ctx.raw, C.uint64_t(value), t), ctx.err("Z3_mk_unsigned_int64")
}

// makeConst returns the constant of the given name and sort. Z3 treats
// equal name/sort pairs as the same constant, which keeps variable
// naming injective and stable across conversion passes.
func (ctx *Context) makeConst(name string, sort C.Z3_sort) (C.Z3_ast, error) {
	symbol, err := ctx.makeSymbol(name)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_const(ctx.raw, symbol, sort), ctx.err("Z3_mk_const")
}

func (ctx *Context) makeSymbol(name string) (C.Z3_symbol, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return C.Z3_mk_string_symbol(ctx.raw, cname), ctx.err("Z3_mk_string_symbol")
}

func (ctx *Context) astToString(ast C.Z3_ast) string {
	return C.GoString(C.Z3_ast_to_string(ctx.raw, ast))
}

func (ctx *Context) modelToString(model C.Z3_model) string {
	return C.GoString(C.Z3_model_to_string(ctx.raw, model))
}

// Error represents an error from the Z3 API.
type Error struct {
	Code    int
	Op      string
	Message string
}

// Error returns the error as a string.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Op, e.Message, e.Code)
}

// Possible error codes.
const (
	ErrorCodeOK = iota
	ErrorCodeSortError
	ErrorCodeIOB
	ErrorCodeInvalidArg
	ErrorCodeParserError
	ErrorCodeNoParser
	ErrorCodeInvalidPattern
	ErrorCodeMemoutFail
	ErrorCodeFileAccessError
	ErrorCodeInternalFatal
	ErrorCodeInvalidUsage
	ErrorCodeDecRefError
	ErrorCodeException
)
