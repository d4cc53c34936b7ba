// Package ir models a QBE program: data definitions and functions made of
// labelled blocks of three-address instructions.
package ir

type Op int

const (
	OpAlloc Op = iota
	OpLoad
	OpStore
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpCEq
	OpCNeq
	OpCLt
	OpCGt
	OpCLe
	OpCGe
	OpExtSB
	OpExtUB
	OpExtSW
	OpExtUW
	OpCopy
	OpFToSI
	OpSWToF
	OpSLToF
	OpJmp
	OpJnz
	OpRet
	OpCall
)

type Type int

const (
	TypeNone Type = iota
	TypeB         // byte, memory only
	TypeW         // word (32-bit)
	TypeL         // long (64-bit)
	TypeD         // double float (64-bit)
)

type Value interface {
	isValue()
	String() string
}

type Const struct{ Value int64 }
type FloatConst struct {
	Value float64
	Typ   Type
}
type StringConst struct{ Value string }
type Global struct{ Name string }
type Temporary struct {
	Name string
	ID   int
}
type Label struct{ Name string }

func (c *Const) isValue()       {}
func (f *FloatConst) isValue()  {}
func (s *StringConst) isValue() {}
func (g *Global) isValue()      {}
func (t *Temporary) isValue()   {}
func (l *Label) isValue()       {}

func (c *Const) String() string       { return "" }
func (f *FloatConst) String() string  { return "" }
func (s *StringConst) String() string { return s.Value }
func (g *Global) String() string      { return g.Name }
func (t *Temporary) String() string   { return t.Name }
func (l *Label) String() string       { return l.Name }

type Func struct {
	Name       string
	Params     []*Param
	ReturnType Type
	HasVarargs bool
	Blocks     []*BasicBlock
}

type Param struct {
	Name string
	Typ  Type
	Val  Value
}

type BasicBlock struct {
	Label        *Label
	Instructions []*Instruction
}

// Terminated reports whether the block ends in a jump or return.
func (b *BasicBlock) Terminated() bool {
	if len(b.Instructions) == 0 {
		return false
	}
	switch b.Instructions[len(b.Instructions)-1].Op {
	case OpJmp, OpJnz, OpRet:
		return true
	}
	return false
}

// Instruction is one QBE instruction. Typ is the class of the result;
// OperandType is the class of the operands for comparisons and casts, or the
// memory type for loads and stores. For calls, Args[0] is the callee and
// FixedArgs marks where the variadic arguments begin, or is -1.
type Instruction struct {
	Op          Op
	Typ         Type
	OperandType Type
	Result      Value
	Args        []Value
	ArgTypes    []Type
	FixedArgs   int
	Align       int
}

type Program struct {
	Globals  []*Data
	Funcs    []*Func
	WordSize int
}

type Data struct {
	Name  string
	Align int
	Items []DataItem
}

type DataItem struct {
	Typ   Type
	Value Value
	Count int
}

func SizeOfType(t Type, wordSize int) int64 {
	switch t {
	case TypeB:
		return 1
	case TypeW:
		return 4
	case TypeL, TypeD:
		return 8
	default:
		return int64(wordSize)
	}
}

func (p *Program) FindFunc(name string) *Func {
	for _, f := range p.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}
