// Package llvm implements the code generation port on top of llir/llvm and
// renders textual LLVM IR.
package llvm

import (
	"bytes"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/truffle-lang/truffle/pkg/codegen"
	"tlog.app/go/errors"
)

type val struct {
	v value.Value
	t codegen.Type
}

func (v val) Type() codegen.Type { return v.t }

type function struct {
	f   *ir.Func
	sig codegen.Signature
}

func (f *function) Name() string                  { return f.f.Name() }
func (f *function) Signature() codegen.Signature { return f.sig }

type block struct {
	b  *ir.Block
	fn *function
}

func (b *block) Name() string { return b.b.Name() }

type Emitter struct {
	mod     *ir.Module
	funcs   map[string]*function
	strings map[string]*ir.Global

	fn  *function
	cur *block
	err error
}

func New() *Emitter {
	return &Emitter{funcs: make(map[string]*function), strings: make(map[string]*ir.Global)}
}

var _ codegen.Emitter = (*Emitter)(nil)

func llType(t codegen.Type) types.Type {
	switch t {
	case codegen.I1:
		return types.I1
	case codegen.I8:
		return types.I8
	case codegen.I32:
		return types.I32
	case codegen.I64:
		return types.I64
	case codegen.F64:
		return types.Double
	case codegen.Ptr:
		return types.I8Ptr
	}
	return types.Void
}

func intType(t codegen.Type) *types.IntType {
	if it, ok := llType(t).(*types.IntType); ok {
		return it
	}
	return types.I64
}

func (e *Emitter) fail(format string, args ...interface{}) {
	if e.err == nil {
		e.err = errors.New("llvm: "+format, args...)
	}
}

// body returns the block at the insert point, or nil after reporting misuse.
func (e *Emitter) body(op string) *ir.Block {
	if e.cur == nil {
		e.fail("%s outside of a block", op)
		return nil
	}
	return e.cur.b
}

func (e *Emitter) CreateModule(name string) {
	e.mod = ir.NewModule()
	e.mod.SourceFilename = name
}

func (e *Emitter) DeclareFunction(name string, sig codegen.Signature) codegen.Func {
	params := make([]*ir.Param, len(sig.Params))
	for i, t := range sig.Params {
		pname := ""
		if i < len(sig.ParamNames) {
			pname = sig.ParamNames[i]
		}
		params[i] = ir.NewParam(pname, llType(t))
	}
	f := e.mod.NewFunc(name, llType(sig.Ret), params...)
	f.Sig.Variadic = sig.Variadic

	fn := &function{f: f, sig: sig}
	e.funcs[name] = fn
	return fn
}

func (e *Emitter) LookupFunction(name string) (codegen.Func, bool) {
	fn, ok := e.funcs[name]
	if !ok {
		return nil, false
	}
	return fn, true
}

func (e *Emitter) Param(fn codegen.Func, i int) codegen.Value {
	f := fn.(*function)
	return val{f.f.Params[i], f.sig.Params[i]}
}

func (e *Emitter) CreateBlock(fn codegen.Func, name string) codegen.Block {
	f := fn.(*function)
	return &block{b: f.f.NewBlock(name), fn: f}
}

func (e *Emitter) SetInsertPoint(b codegen.Block) {
	e.cur = b.(*block)
	e.fn = e.cur.fn
}

func (e *Emitter) Terminated() bool { return e.cur != nil && e.cur.b.Term != nil }

// GlobalString interns s as a private NUL-terminated constant and returns an
// i8* to its first byte.
func (e *Emitter) GlobalString(s string) codegen.Value {
	g, ok := e.strings[s]
	if !ok {
		g = e.mod.NewGlobalDef(fmt.Sprintf("str.%016x", xxhash.Sum64String(s)), constant.NewCharArrayFromString(s+"\x00"))
		g.Immutable = true
		g.Linkage = enum.LinkagePrivate
		e.strings[s] = g
	}
	return val{constant.NewBitCast(g, types.I8Ptr), codegen.Ptr}
}

func (e *Emitter) ConstInt(t codegen.Type, v int64) codegen.Value {
	return val{constant.NewInt(intType(t), v), t}
}

func (e *Emitter) ConstFloat(v float64) codegen.Value {
	return val{constant.NewFloat(types.Double, v), codegen.F64}
}

func (e *Emitter) Alloca(t codegen.Type, name string) codegen.Value {
	if e.fn == nil || len(e.fn.f.Blocks) == 0 {
		e.fail("alloca %s outside of a function", name)
		return val{constant.NewNull(types.I8Ptr), codegen.Ptr}
	}
	entry := e.fn.f.Blocks[0]
	inst := ir.NewAlloca(llType(t))
	inst.SetName(name + ".addr")
	entry.Insts = append([]ir.Instruction{inst}, entry.Insts...)
	return val{inst, codegen.Ptr}
}

func (e *Emitter) Load(t codegen.Type, ptr codegen.Value) codegen.Value {
	b := e.body("load")
	if b == nil {
		return val{constant.NewUndef(llType(t)), t}
	}
	return val{b.NewLoad(llType(t), ptr.(val).v), t}
}

func (e *Emitter) Store(v, ptr codegen.Value) {
	if b := e.body("store"); b != nil {
		b.NewStore(v.(val).v, ptr.(val).v)
	}
}

func (e *Emitter) IntOp(op codegen.ArithOp, l, r codegen.Value) codegen.Value {
	b := e.body("integer " + op.String())
	if b == nil {
		return val{constant.NewUndef(llType(l.Type())), l.Type()}
	}
	x, y := l.(val).v, r.(val).v
	var res value.Value
	switch op {
	case codegen.Add:
		res = b.NewAdd(x, y)
	case codegen.Sub:
		res = b.NewSub(x, y)
	case codegen.Mul:
		res = b.NewMul(x, y)
	case codegen.Div:
		res = b.NewSDiv(x, y)
	default:
		res = b.NewSRem(x, y)
	}
	return val{res, l.Type()}
}

func (e *Emitter) FloatOp(op codegen.ArithOp, l, r codegen.Value) codegen.Value {
	b := e.body("float " + op.String())
	if b == nil {
		return val{constant.NewUndef(types.Double), codegen.F64}
	}
	x, y := l.(val).v, r.(val).v
	var res value.Value
	switch op {
	case codegen.Add:
		res = b.NewFAdd(x, y)
	case codegen.Sub:
		res = b.NewFSub(x, y)
	case codegen.Mul:
		res = b.NewFMul(x, y)
	case codegen.Div:
		res = b.NewFDiv(x, y)
	default:
		res = b.NewFRem(x, y)
	}
	return val{res, codegen.F64}
}

var ipreds = [...]enum.IPred{
	codegen.EQ: enum.IPredEQ, codegen.NE: enum.IPredNE,
	codegen.LT: enum.IPredSLT, codegen.GT: enum.IPredSGT,
	codegen.LE: enum.IPredSLE, codegen.GE: enum.IPredSGE,
}

var fpreds = [...]enum.FPred{
	codegen.EQ: enum.FPredOEQ, codegen.NE: enum.FPredONE,
	codegen.LT: enum.FPredOLT, codegen.GT: enum.FPredOGT,
	codegen.LE: enum.FPredOLE, codegen.GE: enum.FPredOGE,
}

func (e *Emitter) ICmp(p codegen.Pred, l, r codegen.Value) codegen.Value {
	b := e.body("icmp")
	if b == nil {
		return val{constant.NewUndef(types.I1), codegen.I1}
	}
	return val{b.NewICmp(ipreds[p], l.(val).v, r.(val).v), codegen.I1}
}

func (e *Emitter) FCmp(p codegen.Pred, l, r codegen.Value) codegen.Value {
	b := e.body("fcmp")
	if b == nil {
		return val{constant.NewUndef(types.I1), codegen.I1}
	}
	return val{b.NewFCmp(fpreds[p], l.(val).v, r.(val).v), codegen.I1}
}

func (e *Emitter) Cast(op codegen.CastOp, v codegen.Value, to codegen.Type) codegen.Value {
	b := e.body(op.String())
	if b == nil {
		return val{constant.NewUndef(llType(to)), to}
	}
	x, t := v.(val).v, llType(to)
	var res value.Value
	switch op {
	case codegen.SIToFP:
		res = b.NewSIToFP(x, t)
	case codegen.FPToSI:
		res = b.NewFPToSI(x, t)
	case codegen.ZExt:
		res = b.NewZExt(x, t)
	case codegen.SExt:
		res = b.NewSExt(x, t)
	default:
		res = b.NewTrunc(x, t)
	}
	return val{res, to}
}

func (e *Emitter) Call(fn codegen.Func, args []codegen.Value) codegen.Value {
	b := e.body("call")
	if b == nil {
		return nil
	}
	f := fn.(*function)
	llArgs := make([]value.Value, len(args))
	for i, a := range args {
		llArgs[i] = a.(val).v
	}
	call := b.NewCall(f.f, llArgs...)
	if f.sig.Ret == codegen.Void {
		return nil
	}
	return val{call, f.sig.Ret}
}

func (e *Emitter) CondBr(cond codegen.Value, then, els codegen.Block) {
	if b := e.body("condbr"); b != nil {
		b.NewCondBr(cond.(val).v, then.(*block).b, els.(*block).b)
	}
}

func (e *Emitter) Br(target codegen.Block) {
	if b := e.body("br"); b != nil {
		b.NewBr(target.(*block).b)
	}
}

func (e *Emitter) Ret(v codegen.Value) {
	b := e.body("ret")
	if b == nil {
		return
	}
	if v == nil {
		b.NewRet(nil)
		return
	}
	b.NewRet(v.(val).v)
}

// Finish renders the module as LLVM assembly.
func (e *Emitter) Finish() (*bytes.Buffer, error) {
	if e.err != nil {
		return nil, e.err
	}
	if e.mod == nil {
		return nil, errors.New("llvm: no module")
	}
	for _, fn := range e.mod.Funcs {
		for _, b := range fn.Blocks {
			if b.Term == nil {
				return nil, errors.New("llvm: block %s of %s is not terminated", b.Name(), fn.Name())
			}
		}
	}
	return bytes.NewBufferString(e.mod.String()), nil
}
