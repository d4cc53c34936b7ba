package codegen

import (
	"slices"
	"strconv"
	"strings"

	"github.com/truffle-lang/truffle/pkg/ast"
	"github.com/truffle-lang/truffle/pkg/config"
)

// declareIntrinsics declares printf and defines the print helpers on top of
// it, once per module.
func (ctx *Context) declareIntrinsics() {
	printf := ctx.em.DeclareFunction(printfName, Signature{Ret: I32, Params: []Type{Ptr}, Variadic: true})

	simple := func(name string, t Type, format string) {
		fn := ctx.em.DeclareFunction(name, Signature{Ret: Void, Params: []Type{t}, ParamNames: []string{"v"}})
		ctx.em.SetInsertPoint(ctx.em.CreateBlock(fn, "entry"))
		ctx.em.Call(printf, []Value{ctx.em.GlobalString(format), ctx.em.Param(fn, 0)})
		ctx.em.Ret(nil)
		ctx.printFuncs[t] = fn
	}
	simple(printIntName, I64, "%ld\n")
	simple(printFloatName, F64, "%f\n")

	fn := ctx.em.DeclareFunction(printBoolName, Signature{Ret: Void, Params: []Type{I1}, ParamNames: []string{"v"}})
	entry := ctx.em.CreateBlock(fn, "entry")
	trueL, falseL := ctx.em.CreateBlock(fn, "print.true"), ctx.em.CreateBlock(fn, "print.false")
	ctx.em.SetInsertPoint(entry)
	ctx.em.CondBr(ctx.em.Param(fn, 0), trueL, falseL)
	for _, b := range []struct {
		block Block
		text  string
	}{{trueL, "true\n"}, {falseL, "false\n"}} {
		ctx.em.SetInsertPoint(b.block)
		ctx.em.Call(printf, []Value{ctx.em.GlobalString(b.text)})
		ctx.em.Ret(nil)
	}
	ctx.printFuncs[I1] = fn
}

func isIntrinsic(name string) bool {
	switch name {
	case printfName, printIntName, printFloatName, printBoolName:
		return true
	}
	return false
}

func (ctx *Context) codegenExpr(node *ast.Node) (Value, error) {
	switch d := node.Data.(type) {
	case ast.LiteralNode:
		return ctx.codegenLiteral(node, d)

	case ast.VariableNode:
		sym, ok := ctx.symbols[d.Name]
		if !ok {
			return nil, ctx.fail(node, "variable `%s` does not exist", d.Name)
		}
		return ctx.em.Load(sym.Typ, sym.Ptr), nil

	case ast.ExpressionNode:
		return ctx.codegenBinaryOp(node, d)

	case ast.FunctionCallNode:
		v, err := ctx.codegenCall(node, d)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, ctx.fail(node, "`%s` does not return a value", d.Name)
		}
		return v, nil
	}
	return nil, ctx.fail(node, "%v is not an expression", node.Type)
}

func (ctx *Context) codegenLiteral(node *ast.Node, d ast.LiteralNode) (Value, error) {
	text := strings.ReplaceAll(d.Value, "_", "")
	switch d.DType {
	case ast.Bool:
		switch d.Value {
		case "true":
			return ctx.em.ConstInt(I1, 1), nil
		case "false":
			return ctx.em.ConstInt(I1, 0), nil
		}
	case ast.F64:
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return ctx.em.ConstFloat(f), nil
		}
	case ast.String:
		return nil, ctx.fail(node, "string values are not supported")
	default:
		t, ok := mapType(d.DType)
		if !ok || !t.IsInt() {
			break
		}
		if v, err := strconv.ParseInt(text, 10, 64); err == nil {
			return ctx.em.ConstInt(t, v), nil
		}
		if v, err := strconv.ParseUint(text, 10, 64); err == nil {
			return ctx.em.ConstInt(t, int64(v)), nil
		}
	}
	return nil, ctx.fail(node, "invalid %v literal `%s`", d.DType, d.Value)
}

// codegenBinaryOp lowers an expression. Division always happens in floating
// point; any other operation with a float operand promotes the other one.
func (ctx *Context) codegenBinaryOp(node *ast.Node, d ast.ExpressionNode) (Value, error) {
	l, err := ctx.codegenExpr(d.Left)
	if err != nil {
		return nil, err
	}
	r, err := ctx.codegenExpr(d.Right)
	if err != nil {
		return nil, err
	}

	float := d.Op == ast.OpDiv || l.Type() == F64 || r.Type() == F64
	if float && d.Op == ast.OpRem {
		return nil, ctx.fail(node, "remainder is not defined for floating point operands")
	}
	if float {
		if l, err = ctx.toFloat(d.Left, l); err != nil {
			return nil, err
		}
		if r, err = ctx.toFloat(d.Right, r); err != nil {
			return nil, err
		}
	} else {
		if !l.Type().IsInt() || !r.Type().IsInt() {
			return nil, ctx.fail(node, "invalid operands to `%v`: %v and %v", d.Op, l.Type(), r.Type())
		}
		l, r = ctx.unifyInts(l, r)
	}

	if d.Op.IsComparison() {
		p := comparePred(d.Op)
		if float {
			return ctx.em.FCmp(p, l, r), nil
		}
		return ctx.em.ICmp(p, l, r), nil
	}

	op := arithOp(d.Op)
	if float {
		return ctx.em.FloatOp(op, l, r), nil
	}
	return ctx.em.IntOp(op, l, r), nil
}

func arithOp(op ast.Operator) ArithOp {
	switch op {
	case ast.OpSub:
		return Sub
	case ast.OpMul:
		return Mul
	case ast.OpDiv:
		return Div
	case ast.OpRem:
		return Rem
	}
	return Add
}

func comparePred(op ast.Operator) Pred {
	switch op {
	case ast.OpNe:
		return NE
	case ast.OpLt:
		return LT
	case ast.OpGt:
		return GT
	case ast.OpLe:
		return LE
	case ast.OpGe:
		return GE
	}
	return EQ
}

func (ctx *Context) toFloat(node *ast.Node, v Value) (Value, error) {
	switch t := v.Type(); {
	case t == F64:
		return v, nil
	case t == I1:
		return ctx.em.Cast(SIToFP, ctx.em.Cast(ZExt, v, I64), F64), nil
	case t.IsInt():
		return ctx.em.Cast(SIToFP, v, F64), nil
	}
	return nil, ctx.fail(node, "cannot convert %v to f64", v.Type())
}

// unifyInts widens the narrower of two integers.
func (ctx *Context) unifyInts(l, r Value) (Value, Value) {
	switch {
	case l.Type().bits() < r.Type().bits():
		l = ctx.widen(l, r.Type())
	case r.Type().bits() < l.Type().bits():
		r = ctx.widen(r, l.Type())
	}
	return l, r
}

func (ctx *Context) widen(v Value, to Type) Value {
	if v.Type() == I1 {
		return ctx.em.Cast(ZExt, v, to)
	}
	return ctx.em.Cast(SExt, v, to)
}

// coerce converts v for storing into a slot of type to.
func (ctx *Context) coerce(node *ast.Node, v Value, to Type) (Value, error) {
	from := v.Type()
	if from == to {
		return v, nil
	}
	ctx.warn(config.WarnType, node, "implicit conversion from %v to %v", from, to)

	switch {
	case to == F64:
		return ctx.toFloat(node, v)
	case from == F64 && to.IsInt():
		if to == I1 {
			return ctx.em.FCmp(NE, v, ctx.em.ConstFloat(0)), nil
		}
		return ctx.em.Cast(FPToSI, v, to), nil
	case from.IsInt() && to == I1:
		return ctx.em.ICmp(NE, v, ctx.em.ConstInt(from, 0)), nil
	case from.IsInt() && to.IsInt():
		if from.bits() < to.bits() {
			return ctx.widen(v, to), nil
		}
		return ctx.em.Cast(Trunc, v, to), nil
	}
	return nil, ctx.fail(node, "cannot convert %v to %v", from, to)
}

// codegenCond produces an i1 for a branch. Integers compare unequal to zero.
func (ctx *Context) codegenCond(node *ast.Node) (Value, error) {
	v, err := ctx.codegenExpr(node)
	if err != nil {
		return nil, err
	}
	switch t := v.Type(); {
	case t == I1:
		return v, nil
	case t.IsInt():
		return ctx.em.ICmp(NE, v, ctx.em.ConstInt(t, 0)), nil
	}
	return nil, ctx.fail(node, "condition must be Bool or an integer, not %v", v.Type())
}

func (ctx *Context) codegenCall(node *ast.Node, d ast.FunctionCallNode) (Value, error) {
	if d.Name == config.Intrinsic {
		return nil, ctx.codegenPrint(node, d)
	}
	if isIntrinsic(d.Name) {
		return nil, ctx.fail(node, "function `%s` is reserved", d.Name)
	}

	fn, ok := ctx.em.LookupFunction(d.Name)
	if !ok {
		if !slices.Contains(ctx.cfg.Externs, d.Name) {
			ctx.warn(config.WarnImplicitDecl, node, "implicit declaration of function `%s`", d.Name)
		}
		fn = ctx.em.DeclareFunction(d.Name, Signature{Ret: Void, Variadic: true})
	}

	sig := fn.Signature()
	if len(d.Args) < len(sig.Params) || (!sig.Variadic && len(d.Args) != len(sig.Params)) {
		return nil, ctx.fail(node, "`%s` takes %d arguments, %d given", d.Name, len(sig.Params), len(d.Args))
	}

	args := make([]Value, 0, len(d.Args))
	for i, a := range d.Args {
		v, err := ctx.codegenExpr(a)
		if err != nil {
			return nil, err
		}
		if i < len(sig.Params) {
			if v, err = ctx.coerce(a, v, sig.Params[i]); err != nil {
				return nil, err
			}
		}
		args = append(args, v)
	}
	return ctx.em.Call(fn, args), nil
}

// codegenPrint dispatches print on the type of its single argument.
func (ctx *Context) codegenPrint(node *ast.Node, d ast.FunctionCallNode) error {
	if len(d.Args) != 1 {
		return ctx.fail(node, "print: expected exactly one argument, got %d", len(d.Args))
	}
	arg := d.Args[0]
	if arg.DType() == ast.String {
		return ctx.fail(node, "print: unsupported argument type")
	}

	v, err := ctx.codegenExpr(arg)
	if err != nil {
		return err
	}
	fn, ok := ctx.printFuncs[v.Type()]
	if !ok {
		return ctx.fail(node, "print: unsupported argument type %v", v.Type())
	}
	ctx.em.Call(fn, []Value{v})
	return nil
}
