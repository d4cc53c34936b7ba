// Package record is an Emitter that records every call as a readable
// instruction listing. Tests inspect the recorded functions directly; the
// trace backend prints the listing.
package record

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/truffle-lang/truffle/pkg/codegen"
	"tlog.app/go/errors"
)

type Value struct {
	Name string
	Typ  codegen.Type
}

func (v *Value) Type() codegen.Type { return v.Typ }
func (v *Value) String() string     { return v.Name }

type Instr struct {
	Op     string
	Result *Value
	Args   []string
}

func (in Instr) String() string {
	s := in.Op
	if len(in.Args) > 0 {
		s += " " + strings.Join(in.Args, ", ")
	}
	if in.Result != nil {
		s = fmt.Sprintf("%s = %s %s", in.Result.Name, in.Result.Typ, s)
	}
	return s
}

type Block struct {
	name   string
	Instrs []Instr
}

func (b *Block) Name() string { return b.name }

func (b *Block) terminated() bool {
	if len(b.Instrs) == 0 {
		return false
	}
	switch b.Instrs[len(b.Instrs)-1].Op {
	case "ret", "br", "condbr":
		return true
	}
	return false
}

type Function struct {
	name   string
	sig    codegen.Signature
	Blocks []*Block
	allocs []Instr
	temps  int
}

func (f *Function) Name() string                  { return f.name }
func (f *Function) Signature() codegen.Signature { return f.sig }

// Ops lists the opcodes of all instructions in block order.
func (f *Function) Ops() []string {
	var ops []string
	for _, in := range f.instrs() {
		ops = append(ops, in.Op)
	}
	return ops
}

// Count returns how many instructions of f have the given opcode.
func (f *Function) Count(op string) int {
	n := 0
	for _, in := range f.instrs() {
		if in.Op == op {
			n++
		}
	}
	return n
}

// Calls lists the callees of f in call order.
func (f *Function) Calls() []string {
	var callees []string
	for _, in := range f.instrs() {
		if in.Op == "call" {
			callees = append(callees, in.Args[0])
		}
	}
	return callees
}

func (f *Function) instrs() []Instr {
	res := append([]Instr(nil), f.allocs...)
	for _, b := range f.Blocks {
		res = append(res, b.Instrs...)
	}
	return res
}

func (f *Function) temp(t codegen.Type) *Value {
	v := &Value{Name: "%" + strconv.Itoa(f.temps), Typ: t}
	f.temps++
	return v
}

type Recorder struct {
	Module    string
	Functions []*Function
	Strings   []string

	funcs   map[string]*Function
	strings map[string]*Value
	fn      *Function
	block   *Block
	errs    []string
}

func New() *Recorder {
	return &Recorder{funcs: make(map[string]*Function), strings: make(map[string]*Value)}
}

// Function returns the recorded function called name, or nil.
func (r *Recorder) Function(name string) *Function { return r.funcs[name] }

func (r *Recorder) emit(op string, result *Value, args ...string) *Value {
	if r.block == nil {
		r.errs = append(r.errs, fmt.Sprintf("%s outside of a block", op))
		return result
	}
	if r.block.terminated() {
		r.errs = append(r.errs, fmt.Sprintf("%s after terminator in %s.%s", op, r.fn.name, r.block.name))
	}
	r.block.Instrs = append(r.block.Instrs, Instr{Op: op, Result: result, Args: args})
	return result
}

func (r *Recorder) result(t codegen.Type) *Value {
	if r.fn == nil {
		return &Value{Name: "%?", Typ: t}
	}
	return r.fn.temp(t)
}

func operand(v codegen.Value) string {
	if v == nil {
		return "void"
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", v)
}

func (r *Recorder) CreateModule(name string) { r.Module = name }

func (r *Recorder) DeclareFunction(name string, sig codegen.Signature) codegen.Func {
	f := &Function{name: name, sig: sig}
	r.Functions = append(r.Functions, f)
	r.funcs[name] = f
	return f
}

func (r *Recorder) LookupFunction(name string) (codegen.Func, bool) {
	f, ok := r.funcs[name]
	if !ok {
		return nil, false
	}
	return f, true
}

func (r *Recorder) Param(fn codegen.Func, i int) codegen.Value {
	f := fn.(*Function)
	pname := strconv.Itoa(i)
	if i < len(f.sig.ParamNames) {
		pname = f.sig.ParamNames[i]
	}
	return &Value{Name: "%" + pname, Typ: f.sig.Params[i]}
}

func (r *Recorder) CreateBlock(fn codegen.Func, name string) codegen.Block {
	f := fn.(*Function)
	b := &Block{name: name}
	f.Blocks = append(f.Blocks, b)
	return b
}

func (r *Recorder) SetInsertPoint(b codegen.Block) {
	r.block = b.(*Block)
	for _, f := range r.Functions {
		for _, fb := range f.Blocks {
			if fb == r.block {
				r.fn = f
				return
			}
		}
	}
}

func (r *Recorder) Terminated() bool { return r.block != nil && r.block.terminated() }

func (r *Recorder) GlobalString(s string) codegen.Value {
	if v, ok := r.strings[s]; ok {
		return v
	}
	v := &Value{Name: fmt.Sprintf("@str.%d", len(r.Strings)), Typ: codegen.Ptr}
	r.strings[s] = v
	r.Strings = append(r.Strings, s)
	return v
}

func (r *Recorder) ConstInt(t codegen.Type, v int64) codegen.Value {
	return &Value{Name: strconv.FormatInt(v, 10), Typ: t}
}

func (r *Recorder) ConstFloat(v float64) codegen.Value {
	return &Value{Name: strconv.FormatFloat(v, 'g', -1, 64), Typ: codegen.F64}
}

func (r *Recorder) Alloca(t codegen.Type, name string) codegen.Value {
	v := &Value{Name: "%" + name + ".addr", Typ: codegen.Ptr}
	if r.fn == nil {
		r.errs = append(r.errs, "alloca outside of a function")
		return v
	}
	r.fn.allocs = append(r.fn.allocs, Instr{Op: "alloca", Result: v, Args: []string{t.String()}})
	return v
}

func (r *Recorder) Load(t codegen.Type, ptr codegen.Value) codegen.Value {
	return r.emit("load", r.result(t), operand(ptr))
}

func (r *Recorder) Store(v, ptr codegen.Value) {
	r.emit("store", nil, operand(v), operand(ptr))
}

func (r *Recorder) IntOp(op codegen.ArithOp, lhs, rhs codegen.Value) codegen.Value {
	mnemonic := op.String()
	if op == codegen.Div || op == codegen.Rem {
		mnemonic = "s" + mnemonic
	}
	return r.emit(mnemonic, r.result(lhs.Type()), operand(lhs), operand(rhs))
}

func (r *Recorder) FloatOp(op codegen.ArithOp, lhs, rhs codegen.Value) codegen.Value {
	return r.emit("f"+op.String(), r.result(codegen.F64), operand(lhs), operand(rhs))
}

func (r *Recorder) ICmp(p codegen.Pred, lhs, rhs codegen.Value) codegen.Value {
	return r.emit("icmp", r.result(codegen.I1), p.String(), operand(lhs), operand(rhs))
}

func (r *Recorder) FCmp(p codegen.Pred, lhs, rhs codegen.Value) codegen.Value {
	return r.emit("fcmp", r.result(codegen.I1), p.String(), operand(lhs), operand(rhs))
}

func (r *Recorder) Cast(op codegen.CastOp, v codegen.Value, to codegen.Type) codegen.Value {
	return r.emit(op.String(), r.result(to), operand(v))
}

func (r *Recorder) Call(fn codegen.Func, args []codegen.Value) codegen.Value {
	operands := []string{fn.Name()}
	for _, a := range args {
		operands = append(operands, operand(a))
	}
	var res *Value
	if ret := fn.Signature().Ret; ret != codegen.Void {
		res = r.result(ret)
	}
	r.emit("call", res, operands...)
	if res == nil {
		return nil
	}
	return res
}

func (r *Recorder) CondBr(cond codegen.Value, then, els codegen.Block) {
	r.emit("condbr", nil, operand(cond), then.Name(), els.Name())
}

func (r *Recorder) Br(target codegen.Block) { r.emit("br", nil, target.Name()) }

func (r *Recorder) Ret(v codegen.Value) {
	if v == nil {
		r.emit("ret", nil)
		return
	}
	r.emit("ret", nil, operand(v))
}

// Finish renders the listing. Misuse of the emitter, such as instructions
// after a terminator, is reported as an error.
func (r *Recorder) Finish() (*bytes.Buffer, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "module %s\n", r.Module)
	for i, s := range r.Strings {
		fmt.Fprintf(&buf, "@str.%d = %q\n", i, s)
	}

	for _, f := range r.Functions {
		params := make([]string, len(f.sig.Params))
		for i, p := range f.sig.Params {
			params[i] = p.String()
		}
		if f.sig.Variadic {
			params = append(params, "...")
		}
		if len(f.Blocks) == 0 {
			fmt.Fprintf(&buf, "\ndeclare %s %s(%s)\n", f.sig.Ret, f.name, strings.Join(params, ", "))
			continue
		}

		fmt.Fprintf(&buf, "\nfunc %s %s(%s)\n", f.sig.Ret, f.name, strings.Join(params, ", "))
		for _, in := range f.allocs {
			fmt.Fprintf(&buf, "\t%s\n", in)
		}
		for _, b := range f.Blocks {
			fmt.Fprintf(&buf, "%s:\n", b.name)
			for _, in := range b.Instrs {
				fmt.Fprintf(&buf, "\t%s\n", in)
			}
			if !b.terminated() {
				r.errs = append(r.errs, fmt.Sprintf("block %s.%s is not terminated", f.name, b.name))
			}
		}
	}

	if len(r.errs) > 0 {
		return &buf, errors.New("record: %s", strings.Join(r.errs, "; "))
	}
	return &buf, nil
}
