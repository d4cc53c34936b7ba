// Package ast defines the typed abstract syntax tree produced by the parser.
package ast

import (
	"fmt"

	"github.com/truffle-lang/truffle/pkg/token"
)

// NodeType defines the kind of a node in the AST
type NodeType int

const (
	Module NodeType = iota
	Function
	CodeBlock
	DeclarationStatement
	AssignmentStatement
	IfBlock
	Loop
	ReturnStatement
	FunctionCall
	Expression
	Literal
	Variable
)

var nodeTypeNames = [...]string{
	Module: "Module", Function: "Function", CodeBlock: "CodeBlock",
	DeclarationStatement: "DeclarationStatement", AssignmentStatement: "AssignmentStatement",
	IfBlock: "IfBlock", Loop: "Loop", ReturnStatement: "ReturnStatement",
	FunctionCall: "FunctionCall", Expression: "Expression", Literal: "Literal", Variable: "Variable",
}

func (t NodeType) String() string {
	if t >= 0 && int(t) < len(nodeTypeNames) {
		return nodeTypeNames[t]
	}
	return fmt.Sprintf("NodeType(%d)", int(t))
}

// Node is one element of the tree. Data holds the kind specific payload, one
// of the *Node structs below matching Type.
type Node struct {
	Type NodeType
	Tok  token.Token
	Data interface{}
}

// --- Node Data Structs ---
type LiteralNode struct {
	DType DataType
	Value string
}
type VariableNode struct {
	Name  string
	DType DataType
}
type ExpressionNode struct {
	Op          Operator
	Left, Right *Node
	DType       DataType
}
type DeclarationNode struct {
	Name  string
	Src   *Node
	DType DataType
}
type AssignmentNode struct {
	Name string
	Src  *Node
}
type Param struct {
	Name  string
	DType DataType
}
type FunctionNode struct {
	Name    string
	Params  []Param
	RetType DataType
	Body    *Node
}
type FunctionCallNode struct {
	Name  string
	Args  []*Node
	DType DataType
}
type IfArm struct{ Cond, Body *Node }
type IfBlockNode struct {
	Arms    []IfArm
	Default *Node
}
type LoopNode struct{ Cond, Body *Node }

// ReturnNode has a nil Value for a bare `return`.
type ReturnNode struct {
	Value *Node
	DType DataType
}
type CodeBlockNode struct{ Stmts []*Node }
type ModuleNode struct{ Stmts []*Node }

func newNode(tok token.Token, nodeType NodeType, data interface{}) *Node {
	return &Node{Type: nodeType, Tok: tok, Data: data}
}

func NewLiteral(tok token.Token, dtype DataType, value string) *Node {
	return newNode(tok, Literal, LiteralNode{DType: dtype, Value: value})
}
func NewVariable(tok token.Token, name string, dtype DataType) *Node {
	return newNode(tok, Variable, VariableNode{Name: name, DType: dtype})
}
func NewExpression(tok token.Token, op Operator, left, right *Node, dtype DataType) *Node {
	return newNode(tok, Expression, ExpressionNode{Op: op, Left: left, Right: right, DType: dtype})
}
func NewDeclaration(tok token.Token, name string, src *Node, dtype DataType) *Node {
	return newNode(tok, DeclarationStatement, DeclarationNode{Name: name, Src: src, DType: dtype})
}
func NewAssignment(tok token.Token, name string, src *Node) *Node {
	return newNode(tok, AssignmentStatement, AssignmentNode{Name: name, Src: src})
}
func NewFunction(tok token.Token, name string, params []Param, retType DataType, body *Node) *Node {
	return newNode(tok, Function, FunctionNode{Name: name, Params: params, RetType: retType, Body: body})
}
func NewFunctionCall(tok token.Token, name string, args []*Node, dtype DataType) *Node {
	return newNode(tok, FunctionCall, FunctionCallNode{Name: name, Args: args, DType: dtype})
}
func NewIfBlock(tok token.Token, arms []IfArm, def *Node) *Node {
	return newNode(tok, IfBlock, IfBlockNode{Arms: arms, Default: def})
}
func NewLoop(tok token.Token, cond, body *Node) *Node {
	return newNode(tok, Loop, LoopNode{Cond: cond, Body: body})
}
func NewReturn(tok token.Token, value *Node) *Node {
	dtype := Null
	if value != nil {
		dtype = value.DType()
	}
	return newNode(tok, ReturnStatement, ReturnNode{Value: value, DType: dtype})
}
func NewCodeBlock(tok token.Token, stmts []*Node) *Node {
	return newNode(tok, CodeBlock, CodeBlockNode{Stmts: stmts})
}
func NewModule(tok token.Token, stmts []*Node) *Node {
	return newNode(tok, Module, ModuleNode{Stmts: stmts})
}

// DType returns the semantic type of the node. Statements without a value
// report Null, a function reports its return type.
func (n *Node) DType() DataType {
	if n == nil {
		return Null
	}
	switch d := n.Data.(type) {
	case LiteralNode:
		return d.DType
	case VariableNode:
		return d.DType
	case ExpressionNode:
		return d.DType
	case DeclarationNode:
		return d.DType
	case FunctionCallNode:
		return d.DType
	case ReturnNode:
		return d.DType
	case FunctionNode:
		return d.RetType
	}
	return Null
}

// Walk calls fn for n and then, depth first, for every node below it. When
// fn returns false the children of that node are skipped.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch d := n.Data.(type) {
	case ExpressionNode:
		Walk(d.Left, fn)
		Walk(d.Right, fn)
	case DeclarationNode:
		Walk(d.Src, fn)
	case AssignmentNode:
		Walk(d.Src, fn)
	case FunctionNode:
		Walk(d.Body, fn)
	case FunctionCallNode:
		for _, a := range d.Args {
			Walk(a, fn)
		}
	case IfBlockNode:
		for _, arm := range d.Arms {
			Walk(arm.Cond, fn)
			Walk(arm.Body, fn)
		}
		Walk(d.Default, fn)
	case LoopNode:
		Walk(d.Cond, fn)
		Walk(d.Body, fn)
	case ReturnNode:
		Walk(d.Value, fn)
	case CodeBlockNode:
		for _, s := range d.Stmts {
			Walk(s, fn)
		}
	case ModuleNode:
		for _, s := range d.Stmts {
			Walk(s, fn)
		}
	}
}
