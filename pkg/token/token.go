package token

import "fmt"

type Type int

const (
	EOF Type = iota
	ArithmeticOperator
	AssignmentOperator
	ComparisonOperator
	IntegerLiteral
	FloatLiteral
	StringLiteral
	BooleanLiteral
	Unknown
	Keyword
	Object
	DataType
	OpenParen
	CloseParen
	OpenCurlyBrace
	CloseCurlyBrace
	OpenSquareBracket
	CloseSquareBracket
	Comma
	Period
	RangeDescriptor
	SemiColon
	NewLine
)

var typeNames = [...]string{
	EOF:                "EOF",
	ArithmeticOperator: "ArithmeticOperator",
	AssignmentOperator: "AssignmentOperator",
	ComparisonOperator: "ComparisonOperator",
	IntegerLiteral:     "IntegerLiteral",
	FloatLiteral:       "FloatLiteral",
	StringLiteral:      "StringLiteral",
	BooleanLiteral:     "BooleanLiteral",
	Unknown:            "Unknown",
	Keyword:            "Keyword",
	Object:             "Object",
	DataType:           "DataType",
	OpenParen:          "OpenParen",
	CloseParen:         "CloseParen",
	OpenCurlyBrace:     "OpenCurlyBrace",
	CloseCurlyBrace:    "CloseCurlyBrace",
	OpenSquareBracket:  "OpenSquareBracket",
	CloseSquareBracket: "CloseSquareBracket",
	Comma:              "Comma",
	Period:             "Period",
	RangeDescriptor:    "RangeDescriptor",
	SemiColon:          "SemiColon",
	NewLine:            "NewLine",
}

func (t Type) String() string {
	if t >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// IsLiteral reports whether tokens of this type carry a literal value.
func (t Type) IsLiteral() bool {
	return t >= IntegerLiteral && t <= BooleanLiteral
}

// Reserved words of the language.
const (
	KwFn     = "fn"
	KwIf     = "if"
	KwElse   = "else"
	KwFor    = "for"
	KwWhile  = "while"
	KwReturn = "return"
	KwIn     = "in"
)

var Keywords = map[string]bool{
	KwFn: true, KwIf: true, KwElse: true, KwFor: true,
	KwWhile: true, KwReturn: true, KwIn: true,
}

// DataTypes holds the source spelling of the builtin types.
var DataTypes = map[string]bool{
	"int": true, "float": true, "bool": true,
	"char": true, "byte": true, "string": true,
}

// IsReserved reports whether word may not be used as an identifier.
func IsReserved(word string) bool { return Keywords[word] || DataTypes[word] }

type Token struct {
	Type      Type
	Value     string
	FileIndex int
	Line      int
	Column    int
	Len       int
	Offset    int
}

func (t Token) String() string {
	if t.Type == NewLine {
		return fmt.Sprintf("%s(\\n)", t.Type)
	}
	return fmt.Sprintf("%s(%s)", t.Type, t.Value)
}

// Is reports whether the token has the given type and lexeme.
func (t Token) Is(typ Type, value string) bool { return t.Type == typ && t.Value == value }
