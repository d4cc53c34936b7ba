package typeChecker

import (
	"fmt"

	"github.com/truffle-lang/truffle/pkg/ast"
	"github.com/truffle-lang/truffle/pkg/config"
	"github.com/truffle-lang/truffle/pkg/scope"
	"github.com/truffle-lang/truffle/pkg/token"
	"tlog.app/go/errors"
)

// Error is a type error found while checking a tree.
type Error struct {
	Node *ast.Node
	Msg  string
}

func (e *Error) Error() string { return e.Node.Type.String() + ": " + e.Msg }

func (e *Error) Token() token.Token { return e.Node.Tok }

type TypeChecker struct {
	cfg    *config.Config
	scopes *scope.Tracker
}

func NewTypeChecker(cfg *config.Config) *TypeChecker {
	return &TypeChecker{cfg: cfg}
}

// Infer returns the result type of l op r. Integers of any width combine
// into the wider of the two; a float operand makes the result F64.
func (tc *TypeChecker) Infer(op ast.Operator, l, r ast.DataType) (ast.DataType, error) {
	numeric := l.IsNumeric() && r.IsNumeric()
	integer := l.IsInteger() && r.IsInteger()

	switch op {
	case ast.OpAdd, ast.OpSub, ast.OpMul:
		switch {
		case integer:
			return widerInt(l, r), nil
		case numeric:
			return ast.F64, nil
		case op == ast.OpAdd && l == ast.String && r == ast.String:
			return ast.String, nil
		}
	case ast.OpDiv:
		if numeric {
			return ast.F64, nil
		}
	case ast.OpRem:
		if integer {
			return widerInt(l, r), nil
		}
	default:
		if l == r || numeric {
			return ast.Bool, nil
		}
	}
	return ast.Null, errors.New("invalid operation `%v` between %v and %v", op, l, r)
}

func intBits(d ast.DataType) int {
	if d == ast.U8 || d == ast.Char {
		return 8
	}
	return 64
}

// widerInt picks the wider integer type. Distinct types of the same width
// meet at I64.
func widerInt(l, r ast.DataType) ast.DataType {
	switch {
	case l == r:
		return l
	case intBits(l) > intBits(r):
		return l
	case intBits(r) > intBits(l):
		return r
	}
	return ast.I64
}

// CheckDeclaration validates the initializer type of a declaration. It only
// rejects anything when strict types are enabled.
func (tc *TypeChecker) CheckDeclaration(declared, actual ast.DataType) error {
	if !tc.cfg.IsFeatureEnabled(config.FeatStrictTypes) || declared == actual {
		return nil
	}
	return errors.New("cannot initialize %v with a value of type %v", declared, actual)
}

// Check verifies the type annotations of a whole tree, typically one read back
// from an interchange file: every variable must be declared before use with
// the type it is annotated with, and every expression must carry the type its
// operands produce.
func (tc *TypeChecker) Check(root *ast.Node) error {
	tc.scopes = scope.NewTracker()
	defer tc.scopes.Enter()()

	tc.scopes.Funcs.PushBack(scope.Function{Name: config.Intrinsic})
	for _, name := range tc.cfg.Externs {
		tc.scopes.Funcs.PushBack(scope.Function{Name: name})
	}
	return tc.check(root)
}

func (tc *TypeChecker) fail(n *ast.Node, format string, args ...interface{}) error {
	return &Error{Node: n, Msg: fmt.Sprintf(format, args...)}
}

func (tc *TypeChecker) check(n *ast.Node) error {
	switch d := n.Data.(type) {
	case ast.ModuleNode:
		return tc.checkBlock(d.Stmts)
	case ast.CodeBlockNode:
		defer tc.scopes.Enter()()
		return tc.checkBlock(d.Stmts)

	case ast.FunctionNode:
		params := make([]ast.DataType, len(d.Params))
		for i, p := range d.Params {
			params[i] = p.DType
		}
		tc.scopes.Funcs.PushBack(scope.Function{Name: d.Name, ParamTypes: params, ReturnType: d.RetType})

		defer tc.scopes.EnterFunc()()
		for _, p := range d.Params {
			tc.scopes.Vars.PushBack(scope.Variable{Name: p.Name, Type: p.DType})
		}
		return tc.check(d.Body)

	case ast.DeclarationNode:
		tc.scopes.Vars.PushBack(scope.Variable{Name: d.Name, Type: d.DType})
		if err := tc.check(d.Src); err != nil {
			return err
		}
		if err := tc.CheckDeclaration(d.DType, d.Src.DType()); err != nil {
			return &Error{Node: n, Msg: err.Error()}
		}

	case ast.AssignmentNode:
		if !tc.scopes.Vars.Contains(d.Name) {
			return tc.fail(n, "variable `%s` does not exist", d.Name)
		}
		return tc.check(d.Src)

	case ast.IfBlockNode:
		defer tc.scopes.Enter()()
		for _, arm := range d.Arms {
			if err := tc.check(arm.Cond); err != nil {
				return err
			}
			if err := tc.check(arm.Body); err != nil {
				return err
			}
		}
		if d.Default != nil {
			return tc.check(d.Default)
		}

	case ast.LoopNode:
		defer tc.scopes.Enter()()
		if err := tc.check(d.Cond); err != nil {
			return err
		}
		return tc.check(d.Body)

	case ast.ReturnNode:
		if d.Value == nil {
			if d.DType != ast.Null {
				return tc.fail(n, "bare return annotated with %v", d.DType)
			}
			return nil
		}
		if err := tc.check(d.Value); err != nil {
			return err
		}
		if d.DType != d.Value.DType() {
			return tc.fail(n, "annotated %v but returns %v", d.DType, d.Value.DType())
		}

	case ast.FunctionCallNode:
		for _, a := range d.Args {
			if err := tc.check(a); err != nil {
				return err
			}
		}
		// externs and forward references carry no signature
		f, ok := tc.scopes.Funcs.Get(d.Name)
		if !ok || f.ParamTypes == nil {
			return nil
		}
		if len(d.Args) != len(f.ParamTypes) {
			return tc.fail(n, "`%s` takes %d arguments, %d given", d.Name, len(f.ParamTypes), len(d.Args))
		}
		if d.DType != f.ReturnType {
			return tc.fail(n, "call of `%s` annotated %v, function returns %v", d.Name, d.DType, f.ReturnType)
		}

	case ast.ExpressionNode:
		if err := tc.check(d.Left); err != nil {
			return err
		}
		if err := tc.check(d.Right); err != nil {
			return err
		}
		dt, err := tc.Infer(d.Op, d.Left.DType(), d.Right.DType())
		if err != nil {
			return &Error{Node: n, Msg: err.Error()}
		}
		if dt != d.DType {
			return tc.fail(n, "`%v` annotated %v, operands produce %v", d.Op, d.DType, dt)
		}

	case ast.VariableNode:
		v, ok := tc.scopes.Vars.Get(d.Name)
		if !ok {
			return tc.fail(n, "variable `%s` does not exist", d.Name)
		}
		if v.Type != d.DType {
			return tc.fail(n, "variable `%s` annotated %v, declared %v", d.Name, d.DType, v.Type)
		}

	case ast.LiteralNode:
		if d.DType == ast.Null {
			return tc.fail(n, "literal %q without type", d.Value)
		}

	default:
		return tc.fail(n, "unexpected payload %T", n.Data)
	}
	return nil
}

func (tc *TypeChecker) checkBlock(stmts []*ast.Node) error {
	for _, s := range stmts {
		if err := tc.check(s); err != nil {
			return err
		}
	}
	return nil
}
