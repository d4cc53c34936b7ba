// Package qbe implements the code generation port by building a QBE program,
// rendering it as QBE IL and optionally assembling it with libqbe.
package qbe

import (
	"bytes"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/truffle-lang/truffle/pkg/codegen"
	"github.com/truffle-lang/truffle/pkg/ir"
	"tlog.app/go/errors"
)

type val struct {
	v ir.Value
	t codegen.Type
}

func (v val) Type() codegen.Type { return v.t }

type function struct {
	f     *ir.Func
	sig   codegen.Signature
	temps int
}

func (f *function) Name() string                  { return f.f.Name }
func (f *function) Signature() codegen.Signature { return f.sig }

type block struct {
	b  *ir.BasicBlock
	fn *function
}

func (b *block) Name() string { return b.b.Label.Name }

type Emitter struct {
	prog    *ir.Program
	module  string
	funcs   map[string]*function
	strings map[string]*ir.Global

	fn  *function
	cur *block
	err error
}

func New(wordSize int) *Emitter {
	if wordSize == 0 {
		wordSize = 8
	}
	return &Emitter{
		prog:    &ir.Program{WordSize: wordSize},
		funcs:   make(map[string]*function),
		strings: make(map[string]*ir.Global),
	}
}

var _ codegen.Emitter = (*Emitter)(nil)

// Program exposes the program built so far.
func (e *Emitter) Program() *ir.Program { return e.prog }

// class is the QBE class holding a value of type t.
func class(t codegen.Type) ir.Type {
	switch t {
	case codegen.Void:
		return ir.TypeNone
	case codegen.I64, codegen.Ptr:
		return ir.TypeL
	case codegen.F64:
		return ir.TypeD
	}
	return ir.TypeW
}

// memType is the type a value of type t occupies in memory.
func memType(t codegen.Type) ir.Type {
	if t == codegen.I8 {
		return ir.TypeB
	}
	return class(t)
}

func (e *Emitter) fail(format string, args ...interface{}) {
	if e.err == nil {
		e.err = errors.New("qbe: "+format, args...)
	}
}

func (e *Emitter) addInstr(op string, instr *ir.Instruction) {
	if e.cur == nil {
		e.fail("%s outside of a block", op)
		return
	}
	if e.cur.b.Terminated() {
		e.fail("%s after the end of block @%s", op, e.cur.b.Label.Name)
		return
	}
	e.cur.b.Instructions = append(e.cur.b.Instructions, instr)
}

func (e *Emitter) newTemp(t codegen.Type) val {
	if e.fn == nil {
		return val{&ir.Temporary{ID: -2}, t}
	}
	tmp := &ir.Temporary{ID: e.fn.temps}
	e.fn.temps++
	return val{tmp, t}
}

func (e *Emitter) CreateModule(name string) { e.module = name }

func (e *Emitter) DeclareFunction(name string, sig codegen.Signature) codegen.Func {
	f := &ir.Func{Name: name, ReturnType: class(sig.Ret), HasVarargs: sig.Variadic}
	for i, t := range sig.Params {
		pname := fmt.Sprintf("p%d", i)
		if i < len(sig.ParamNames) && sig.ParamNames[i] != "" {
			pname = sig.ParamNames[i]
		}
		f.Params = append(f.Params, &ir.Param{Name: pname, Typ: class(t), Val: &ir.Temporary{Name: pname, ID: -1}})
	}
	e.prog.Funcs = append(e.prog.Funcs, f)

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
	return val{f.f.Params[i].Val, f.sig.Params[i]}
}

func (e *Emitter) CreateBlock(fn codegen.Func, name string) codegen.Block {
	f := fn.(*function)
	b := &ir.BasicBlock{Label: &ir.Label{Name: name}}
	f.f.Blocks = append(f.f.Blocks, b)
	return &block{b: b, fn: f}
}

func (e *Emitter) SetInsertPoint(b codegen.Block) {
	e.cur = b.(*block)
	e.fn = e.cur.fn
}

func (e *Emitter) Terminated() bool { return e.cur != nil && e.cur.b.Terminated() }

func (e *Emitter) GlobalString(s string) codegen.Value {
	g, ok := e.strings[s]
	if !ok {
		g = &ir.Global{Name: fmt.Sprintf("str_%016x", xxhash.Sum64String(s))}
		e.prog.Globals = append(e.prog.Globals, &ir.Data{
			Name:  g.Name,
			Items: []ir.DataItem{{Typ: ir.TypeB, Value: &ir.StringConst{Value: s}}, {Typ: ir.TypeB, Value: &ir.Const{}}},
		})
		e.strings[s] = g
	}
	return val{g, codegen.Ptr}
}

func (e *Emitter) ConstInt(t codegen.Type, v int64) codegen.Value {
	return val{&ir.Const{Value: v}, t}
}

func (e *Emitter) ConstFloat(v float64) codegen.Value {
	return val{&ir.FloatConst{Value: v, Typ: ir.TypeD}, codegen.F64}
}

func (e *Emitter) Alloca(t codegen.Type, name string) codegen.Value {
	slot := val{&ir.Temporary{Name: name + ".addr", ID: -1}, codegen.Ptr}
	if e.fn == nil || len(e.fn.f.Blocks) == 0 {
		e.fail("alloc %s outside of a function", name)
		return slot
	}
	size := ir.SizeOfType(memType(t), e.prog.WordSize)
	align := 4
	if size > 4 {
		align = 8
	}
	entry := e.fn.f.Blocks[0]
	instr := &ir.Instruction{Op: ir.OpAlloc, Typ: ir.TypeL, Result: slot.v, Args: []ir.Value{&ir.Const{Value: size}}, Align: align}
	entry.Instructions = append([]*ir.Instruction{instr}, entry.Instructions...)
	return slot
}

func (e *Emitter) Load(t codegen.Type, ptr codegen.Value) codegen.Value {
	res := e.newTemp(t)
	e.addInstr("load", &ir.Instruction{Op: ir.OpLoad, Typ: class(t), OperandType: memType(t), Result: res.v, Args: []ir.Value{ptr.(val).v}})
	return res
}

func (e *Emitter) Store(v, ptr codegen.Value) {
	e.addInstr("store", &ir.Instruction{Op: ir.OpStore, OperandType: memType(v.Type()), Args: []ir.Value{v.(val).v, ptr.(val).v}})
}

var arithOps = [...]ir.Op{codegen.Add: ir.OpAdd, codegen.Sub: ir.OpSub, codegen.Mul: ir.OpMul, codegen.Div: ir.OpDiv, codegen.Rem: ir.OpRem}

var cmpOps = [...]ir.Op{
	codegen.EQ: ir.OpCEq, codegen.NE: ir.OpCNeq,
	codegen.LT: ir.OpCLt, codegen.GT: ir.OpCGt,
	codegen.LE: ir.OpCLe, codegen.GE: ir.OpCGe,
}

func (e *Emitter) IntOp(op codegen.ArithOp, l, r codegen.Value) codegen.Value {
	res := e.newTemp(l.Type())
	e.addInstr(op.String(), &ir.Instruction{Op: arithOps[op], Typ: class(l.Type()), Result: res.v, Args: []ir.Value{l.(val).v, r.(val).v}})
	return res
}

func (e *Emitter) FloatOp(op codegen.ArithOp, l, r codegen.Value) codegen.Value {
	res := e.newTemp(codegen.F64)
	if op == codegen.Rem {
		e.fail("floating point remainder is not supported")
		return res
	}
	e.addInstr(op.String(), &ir.Instruction{Op: arithOps[op], Typ: ir.TypeD, Result: res.v, Args: []ir.Value{l.(val).v, r.(val).v}})
	return res
}

func (e *Emitter) compare(p codegen.Pred, l, r codegen.Value) codegen.Value {
	res := e.newTemp(codegen.I1)
	e.addInstr("compare", &ir.Instruction{Op: cmpOps[p], Typ: ir.TypeW, OperandType: class(l.Type()), Result: res.v, Args: []ir.Value{l.(val).v, r.(val).v}})
	return res
}

func (e *Emitter) ICmp(p codegen.Pred, l, r codegen.Value) codegen.Value { return e.compare(p, l, r) }
func (e *Emitter) FCmp(p codegen.Pred, l, r codegen.Value) codegen.Value { return e.compare(p, l, r) }

func (e *Emitter) Cast(op codegen.CastOp, v codegen.Value, to codegen.Type) codegen.Value {
	from := v.Type()
	var irOp ir.Op
	switch op {
	case codegen.SIToFP:
		irOp = ir.OpSWToF
		if class(from) == ir.TypeL {
			irOp = ir.OpSLToF
		}
	case codegen.FPToSI:
		irOp = ir.OpFToSI
	case codegen.ZExt, codegen.SExt:
		switch {
		case class(to) == ir.TypeW:
			irOp = ir.OpCopy
		case from == codegen.I8 && op == codegen.SExt:
			irOp = ir.OpExtSB
		case from == codegen.I8:
			irOp = ir.OpExtUB
		case op == codegen.SExt && from != codegen.I1:
			irOp = ir.OpExtSW
		default:
			irOp = ir.OpExtUW
		}
	default:
		irOp = ir.OpCopy
		if to == codegen.I8 {
			irOp = ir.OpExtUB
		}
	}

	res := e.newTemp(to)
	e.addInstr(op.String(), &ir.Instruction{Op: irOp, Typ: class(to), OperandType: class(from), Result: res.v, Args: []ir.Value{v.(val).v}})
	return res
}

func (e *Emitter) Call(fn codegen.Func, args []codegen.Value) codegen.Value {
	f := fn.(*function)
	instr := &ir.Instruction{Op: ir.OpCall, Typ: class(f.sig.Ret), Args: []ir.Value{&ir.Global{Name: f.f.Name}}, FixedArgs: -1}
	if f.sig.Variadic {
		instr.FixedArgs = len(f.sig.Params)
	}
	for _, a := range args {
		instr.Args = append(instr.Args, a.(val).v)
		instr.ArgTypes = append(instr.ArgTypes, class(a.Type()))
	}

	var res codegen.Value
	if f.sig.Ret != codegen.Void {
		tmp := e.newTemp(f.sig.Ret)
		instr.Result, res = tmp.v, tmp
	}
	e.addInstr("call", instr)
	return res
}

func (e *Emitter) CondBr(cond codegen.Value, then, els codegen.Block) {
	e.addInstr("jnz", &ir.Instruction{Op: ir.OpJnz, Args: []ir.Value{cond.(val).v, then.(*block).b.Label, els.(*block).b.Label}})
}

func (e *Emitter) Br(target codegen.Block) {
	e.addInstr("jmp", &ir.Instruction{Op: ir.OpJmp, Args: []ir.Value{target.(*block).b.Label}})
}

func (e *Emitter) Ret(v codegen.Value) {
	instr := &ir.Instruction{Op: ir.OpRet}
	if v != nil {
		instr.Args = []ir.Value{v.(val).v}
	}
	e.addInstr("ret", instr)
}

// Finish renders the program as QBE IL.
func (e *Emitter) Finish() (*bytes.Buffer, error) {
	if e.err != nil {
		return nil, e.err
	}
	for _, f := range e.prog.Funcs {
		for _, b := range f.Blocks {
			if !b.Terminated() {
				return nil, errors.New("qbe: block @%s of $%s is not terminated", b.Label.Name, f.Name)
			}
		}
	}
	var buf bytes.Buffer
	newRenderer(&buf, e.prog, e.module).gen()
	return &buf, nil
}
