package ast

import "fmt"

// DataType is the semantic type resolved for every node.
type DataType int

const (
	Null DataType = iota
	I64
	U64
	U8
	F64
	Bool
	Char
	String
)

var dataTypeNames = [...]string{
	Null: "Null", I64: "I64", U64: "U64", U8: "U8",
	F64: "F64", Bool: "Bool", Char: "Char", String: "String",
}

// sourceTypes maps both the source spelling and the canonical name of a type.
var sourceTypes = map[string]DataType{
	"int": I64, "I64": I64,
	"uint": U64, "U64": U64,
	"float": F64, "F64": F64,
	"bool": Bool, "Bool": Bool,
	"char": Char, "Char": Char,
	"byte": U8, "U8": U8,
	"string": String, "String": String,
	"null": Null, "Null": Null,
}

// ParseDataType resolves a type name as written in source or as produced by String.
func ParseDataType(s string) (DataType, bool) {
	dt, ok := sourceTypes[s]
	return dt, ok
}

func (d DataType) String() string {
	if d >= 0 && int(d) < len(dataTypeNames) {
		return dataTypeNames[d]
	}
	return fmt.Sprintf("DataType(%d)", int(d))
}

func (d DataType) IsInteger() bool { return d == I64 || d == U64 || d == U8 || d == Char }
func (d DataType) IsFloat() bool   { return d == F64 }
func (d DataType) IsNumeric() bool { return d.IsInteger() || d.IsFloat() }

func (d DataType) MarshalText() ([]byte, error) {
	if d < 0 || int(d) >= len(dataTypeNames) {
		return nil, fmt.Errorf("invalid data type %d", int(d))
	}
	return []byte(d.String()), nil
}

func (d *DataType) UnmarshalText(b []byte) error {
	dt, ok := ParseDataType(string(b))
	if !ok {
		return fmt.Errorf("unknown data type %q", b)
	}
	*d = dt
	return nil
}

// Operator is a binary operator of an Expression node.
type Operator int

const (
	OpAdd Operator = iota
	OpSub
	OpMul
	OpDiv
	OpRem
	OpGt
	OpLt
	OpGe
	OpLe
	OpEq
	OpNe
)

var operatorSymbols = [...]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpRem: "%",
	OpGt: ">", OpLt: "<", OpGe: ">=", OpLe: "<=", OpEq: "==", OpNe: "!=",
}

func ParseOperator(s string) (Operator, bool) {
	for op, sym := range operatorSymbols {
		if sym == s {
			return Operator(op), true
		}
	}
	return 0, false
}

func (o Operator) String() string {
	if o >= 0 && int(o) < len(operatorSymbols) {
		return operatorSymbols[o]
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// Priority is the binding strength of the operator; higher binds tighter.
func (o Operator) Priority() int {
	switch o {
	case OpMul, OpDiv, OpRem:
		return 11
	case OpAdd, OpSub:
		return 10
	default:
		return 9
	}
}

func (o Operator) IsComparison() bool { return o >= OpGt && o <= OpNe }

func (o Operator) MarshalText() ([]byte, error) {
	if o < 0 || int(o) >= len(operatorSymbols) {
		return nil, fmt.Errorf("invalid operator %d", int(o))
	}
	return []byte(o.String()), nil
}

func (o *Operator) UnmarshalText(b []byte) error {
	op, ok := ParseOperator(string(b))
	if !ok {
		return fmt.Errorf("unknown operator %q", b)
	}
	*o = op
	return nil
}
