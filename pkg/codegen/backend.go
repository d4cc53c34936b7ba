package codegen

import "bytes"

// Type is the machine-level type of a value handed to an Emitter.
type Type int

const (
	Void Type = iota
	I1
	I8
	I32
	I64
	F64
	Ptr
)

var typeNames = [...]string{Void: "void", I1: "i1", I8: "i8", I32: "i32", I64: "i64", F64: "f64", Ptr: "ptr"}

func (t Type) String() string {
	if t >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "?"
}

func (t Type) IsInt() bool { return t >= I1 && t <= I64 }

// bits is the width of an integer type.
func (t Type) bits() int {
	switch t {
	case I1:
		return 1
	case I8:
		return 8
	case I32:
		return 32
	}
	return 64
}

type Value interface{ Type() Type }

type Block interface{ Name() string }

type Func interface {
	Name() string
	Signature() Signature
}

type Signature struct {
	Ret        Type
	Params     []Type
	ParamNames []string
	Variadic   bool
}

type ArithOp int

const (
	Add ArithOp = iota
	Sub
	Mul
	Div
	Rem
)

// Pred is a comparison predicate. Integer comparisons are signed, float
// comparisons are ordered.
type Pred int

const (
	EQ Pred = iota
	NE
	LT
	GT
	LE
	GE
)

type CastOp int

const (
	SIToFP CastOp = iota
	FPToSI
	ZExt
	SExt
	Trunc
)

// Emitter is the interface that all code generation backends must implement.
// The generator drives it like an instruction builder: it creates functions
// and blocks, moves the insert point and appends instructions there. A
// function that never gets a block is an external declaration.
//
// Emitter methods do not fail individually; a backend that cannot express
// something records the problem and reports it from Finish.
type Emitter interface {
	CreateModule(name string)

	DeclareFunction(name string, sig Signature) Func
	LookupFunction(name string) (Func, bool)
	Param(fn Func, i int) Value

	CreateBlock(fn Func, name string) Block
	SetInsertPoint(b Block)
	// Terminated reports whether the block at the insert point already ends
	// in a branch or return.
	Terminated() bool

	GlobalString(s string) Value
	ConstInt(t Type, v int64) Value
	ConstFloat(v float64) Value

	// Alloca reserves a stack slot in the entry block of the current function.
	Alloca(t Type, name string) Value
	Load(t Type, ptr Value) Value
	Store(v, ptr Value)

	IntOp(op ArithOp, l, r Value) Value
	FloatOp(op ArithOp, l, r Value) Value
	ICmp(p Pred, l, r Value) Value
	FCmp(p Pred, l, r Value) Value
	Cast(op CastOp, v Value, to Type) Value

	// Call returns nil when fn returns Void.
	Call(fn Func, args []Value) Value

	CondBr(cond Value, then, els Block)
	Br(target Block)
	// Ret returns from the current function; v is nil for Void functions.
	Ret(v Value)

	Finish() (*bytes.Buffer, error)
}

var (
	arithNames = [...]string{Add: "add", Sub: "sub", Mul: "mul", Div: "div", Rem: "rem"}
	predNames  = [...]string{EQ: "eq", NE: "ne", LT: "lt", GT: "gt", LE: "le", GE: "ge"}
	castNames  = [...]string{SIToFP: "sitofp", FPToSI: "fptosi", ZExt: "zext", SExt: "sext", Trunc: "trunc"}
)

func (o ArithOp) String() string { return arithNames[o] }
func (p Pred) String() string    { return predNames[p] }
func (c CastOp) String() string  { return castNames[c] }
