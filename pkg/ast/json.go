package ast

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/truffle-lang/truffle/pkg/token"
	"tlog.app/go/errors"
)

// Interchange format. Every node is an object whose "type" member names the
// node kind; the remaining members are fixed per kind. Token positions are not
// part of the format.

type literalJSON struct {
	Type  string   `json:"type"`
	DType DataType `json:"dtype"`
	Value string   `json:"value"`
}

type variableJSON struct {
	Type  string   `json:"type"`
	DType DataType `json:"dtype"`
	Name  string   `json:"name"`
}

type expressionJSON struct {
	Type     string   `json:"type"`
	Operator Operator `json:"operator"`
	Left     *Node    `json:"left-operand"`
	Right    *Node    `json:"right-operand"`
	DType    DataType `json:"dtype"`
}

type declarationJSON struct {
	Type  string   `json:"type"`
	Dst   string   `json:"dst"`
	Src   *Node    `json:"src"`
	DType DataType `json:"dtype"`
}

type assignmentJSON struct {
	Type string `json:"type"`
	Dst  string `json:"dst"`
	Src  *Node  `json:"src"`
}

type paramJSON struct {
	Name  string   `json:"name"`
	DType DataType `json:"dtype"`
}

type functionJSON struct {
	Type    string      `json:"type"`
	Name    string      `json:"name"`
	Params  []paramJSON `json:"parameters"`
	RetType DataType    `json:"ret-type"`
	Body    *Node       `json:"code-block"`
}

type functionCallJSON struct {
	Type  string   `json:"type"`
	Name  string   `json:"function-name"`
	Args  []*Node  `json:"parameters"`
	DType DataType `json:"dtype"`
}

type ifArmJSON struct {
	Cond *Node `json:"condition"`
	Body *Node `json:"code-block"`
}

type ifBlockJSON struct {
	Type    string      `json:"type"`
	Arms    []ifArmJSON `json:"statements"`
	Default *Node       `json:"default,omitempty"`
}

type loopJSON struct {
	Type string `json:"type"`
	Cond *Node  `json:"condition"`
	Body *Node  `json:"code-block"`
}

type returnJSON struct {
	Type  string   `json:"type"`
	Value *Node    `json:"value"`
	DType DataType `json:"dtype"`
}

type statementsJSON struct {
	Type  string  `json:"type"`
	Stmts []*Node `json:"statements"`
}

// Encode writes root in the interchange format, indented with tabs.
func Encode(w io.Writer, root *Node) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "\t")
	if err := enc.Encode(root); err != nil {
		return errors.Wrap(err, "encode ast")
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// marshal is json.Marshal without HTML escaping, so operators keep their text.
func marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Decode reads one tree in the interchange format. Unknown node types,
// unknown members and missing operands are errors.
func Decode(r io.Reader) (*Node, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read ast")
	}
	var n Node
	if err := strictUnmarshal(b, &n); err != nil {
		return nil, errors.Wrap(err, "decode ast")
	}
	return &n, nil
}

func (n *Node) MarshalJSON() ([]byte, error) {
	kind := n.Type.String()
	var w interface{}

	switch d := n.Data.(type) {
	case LiteralNode:
		w = literalJSON{kind, d.DType, d.Value}
	case VariableNode:
		w = variableJSON{kind, d.DType, d.Name}
	case ExpressionNode:
		w = expressionJSON{kind, d.Op, d.Left, d.Right, d.DType}
	case DeclarationNode:
		w = declarationJSON{kind, d.Name, d.Src, d.DType}
	case AssignmentNode:
		w = assignmentJSON{kind, d.Name, d.Src}
	case FunctionNode:
		params := make([]paramJSON, 0, len(d.Params))
		for _, p := range d.Params {
			params = append(params, paramJSON{p.Name, p.DType})
		}
		w = functionJSON{kind, d.Name, params, d.RetType, d.Body}
	case FunctionCallNode:
		w = functionCallJSON{kind, d.Name, nonNil(d.Args), d.DType}
	case IfBlockNode:
		arms := make([]ifArmJSON, 0, len(d.Arms))
		for _, a := range d.Arms {
			arms = append(arms, ifArmJSON{a.Cond, a.Body})
		}
		w = ifBlockJSON{kind, arms, d.Default}
	case LoopNode:
		w = loopJSON{kind, d.Cond, d.Body}
	case ReturnNode:
		w = returnJSON{kind, d.Value, d.DType}
	case CodeBlockNode:
		w = statementsJSON{kind, nonNil(d.Stmts)}
	case ModuleNode:
		w = statementsJSON{kind, nonNil(d.Stmts)}
	default:
		return nil, errors.New("node %v has no payload of type %T", n.Type, n.Data)
	}
	return marshal(w)
}

func (n *Node) UnmarshalJSON(b []byte) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return err
	}

	var tok token.Token
	switch head.Type {
	case "Literal":
		var w literalJSON
		if err := strictUnmarshal(b, &w); err != nil {
			return err
		}
		*n = *NewLiteral(tok, w.DType, w.Value)
	case "Variable":
		var w variableJSON
		if err := strictUnmarshal(b, &w); err != nil {
			return err
		}
		*n = *NewVariable(tok, w.Name, w.DType)
	case "Expression":
		var w expressionJSON
		if err := strictUnmarshal(b, &w); err != nil {
			return err
		}
		if w.Left == nil || w.Right == nil {
			return errors.New("Expression %v: missing operand", w.Operator)
		}
		*n = *NewExpression(tok, w.Operator, w.Left, w.Right, w.DType)
	case "DeclarationStatement":
		var w declarationJSON
		if err := strictUnmarshal(b, &w); err != nil {
			return err
		}
		if w.Src == nil {
			return errors.New("DeclarationStatement %q: missing src", w.Dst)
		}
		*n = *NewDeclaration(tok, w.Dst, w.Src, w.DType)
	case "AssignmentStatement":
		var w assignmentJSON
		if err := strictUnmarshal(b, &w); err != nil {
			return err
		}
		if w.Src == nil {
			return errors.New("AssignmentStatement %q: missing src", w.Dst)
		}
		*n = *NewAssignment(tok, w.Dst, w.Src)
	case "Function":
		var w functionJSON
		if err := strictUnmarshal(b, &w); err != nil {
			return err
		}
		if w.Body == nil {
			return errors.New("Function %q: missing code-block", w.Name)
		}
		var params []Param
		for _, p := range w.Params {
			params = append(params, Param{p.Name, p.DType})
		}
		*n = *NewFunction(tok, w.Name, params, w.RetType, w.Body)
	case "FunctionCall":
		var w functionCallJSON
		if err := strictUnmarshal(b, &w); err != nil {
			return err
		}
		*n = *NewFunctionCall(tok, w.Name, nilIfEmpty(w.Args), w.DType)
	case "IfBlock":
		var w ifBlockJSON
		if err := strictUnmarshal(b, &w); err != nil {
			return err
		}
		var arms []IfArm
		for _, a := range w.Arms {
			if a.Cond == nil || a.Body == nil {
				return errors.New("IfBlock: arm without condition or code-block")
			}
			arms = append(arms, IfArm{a.Cond, a.Body})
		}
		*n = *NewIfBlock(tok, arms, w.Default)
	case "Loop":
		var w loopJSON
		if err := strictUnmarshal(b, &w); err != nil {
			return err
		}
		if w.Cond == nil || w.Body == nil {
			return errors.New("Loop: missing condition or code-block")
		}
		*n = *NewLoop(tok, w.Cond, w.Body)
	case "ReturnStatement":
		var w returnJSON
		if err := strictUnmarshal(b, &w); err != nil {
			return err
		}
		*n = *newNode(tok, ReturnStatement, ReturnNode{Value: w.Value, DType: w.DType})
	case "CodeBlock", "Module":
		var w statementsJSON
		if err := strictUnmarshal(b, &w); err != nil {
			return err
		}
		if head.Type == "Module" {
			*n = *NewModule(tok, nilIfEmpty(w.Stmts))
		} else {
			*n = *NewCodeBlock(tok, nilIfEmpty(w.Stmts))
		}
	case "":
		return errors.New("node without type")
	default:
		return errors.New("unknown node type %q", head.Type)
	}
	return nil
}

func strictUnmarshal(b []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func nonNil(nodes []*Node) []*Node {
	if nodes == nil {
		return []*Node{}
	}
	return nodes
}

func nilIfEmpty(nodes []*Node) []*Node {
	if len(nodes) == 0 {
		return nil
	}
	return nodes
}
