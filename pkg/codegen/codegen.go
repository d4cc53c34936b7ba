package codegen

import (
	"fmt"
	"maps"

	"github.com/truffle-lang/truffle/pkg/ast"
	"github.com/truffle-lang/truffle/pkg/config"
	"github.com/truffle-lang/truffle/pkg/token"
)

// Error is a fatal code generation failure.
type Error struct {
	Node *ast.Node
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Token() token.Token {
	if e.Node == nil {
		return token.Token{FileIndex: -1}
	}
	return e.Node.Tok
}

// Warning is a non-fatal diagnostic raised while generating code.
type Warning struct {
	Node *ast.Node
	Kind config.Warning
	Msg  string
}

type symbol struct {
	Ptr   Value
	Typ   Type
	DType ast.DataType
}

// Intrinsic helpers print dispatches to, one per printable type.
const (
	printfName     = "printf"
	printIntName   = "__compiler_reserved_print_int"
	printFloatName = "__compiler_reserved_print_float"
	printBoolName  = "__compiler_reserved_print_bool"
)

type Context struct {
	em  Emitter
	cfg *config.Config

	currentFunc Func
	symbols     map[string]symbol
	slotNames   map[string]int
	labelCount  int

	printFuncs map[Type]Func
	warnings   []Warning
}

func NewContext(em Emitter, cfg *config.Config) *Context {
	return &Context{em: em, cfg: cfg, printFuncs: make(map[Type]Func)}
}

func (ctx *Context) Warnings() []Warning { return ctx.warnings }

func (ctx *Context) fail(node *ast.Node, format string, args ...interface{}) error {
	return &Error{Node: node, Msg: fmt.Sprintf(format, args...)}
}

func (ctx *Context) warn(kind config.Warning, node *ast.Node, format string, args ...interface{}) {
	if ctx.cfg.IsWarningEnabled(kind) {
		ctx.warnings = append(ctx.warnings, Warning{Node: node, Kind: kind, Msg: fmt.Sprintf(format, args...)})
	}
}

func (ctx *Context) newBlock(prefix string) Block {
	ctx.labelCount++
	return ctx.em.CreateBlock(ctx.currentFunc, fmt.Sprintf("%s.%d", prefix, ctx.labelCount))
}

// slotName gives every stack slot of a function a distinct name.
func (ctx *Context) slotName(name string) string {
	n := ctx.slotNames[name]
	ctx.slotNames[name] = n + 1
	if n == 0 {
		return name
	}
	return fmt.Sprintf("%s.%d", name, n)
}

// mapType lowers a semantic type to a machine type.
func mapType(dt ast.DataType) (Type, bool) {
	switch dt {
	case ast.I64, ast.U64:
		return I64, true
	case ast.U8, ast.Char:
		return I8, true
	case ast.F64:
		return F64, true
	case ast.Bool:
		return I1, true
	case ast.Null:
		return Void, true
	}
	return Void, false
}

func (ctx *Context) lowerType(node *ast.Node, dt ast.DataType) (Type, error) {
	t, ok := mapType(dt)
	if !ok {
		return Void, ctx.fail(node, "values of type %v are not supported", dt)
	}
	return t, nil
}

// Generate lowers a Module into the emitter. Every function is declared before
// any body is generated so calls may refer to functions defined later.
// Top-level statements form the body of the entry function, which returns 0.
func (ctx *Context) Generate(root *ast.Node) error {
	mod, ok := root.Data.(ast.ModuleNode)
	if !ok {
		return ctx.fail(root, "expected a Module, found %v", root.Type)
	}

	ctx.em.CreateModule(ctx.cfg.ModuleName)
	ctx.declareIntrinsics()

	var funcs, top []*ast.Node
	for _, stmt := range mod.Stmts {
		if stmt.Type != ast.Function {
			top = append(top, stmt)
		}
	}
	ast.Walk(root, func(n *ast.Node) bool {
		if n.Type == ast.Function {
			funcs = append(funcs, n)
		}
		return true
	})

	userEntry := false
	for _, fn := range funcs {
		if err := ctx.declareFunc(fn); err != nil {
			return err
		}
		if fn.Data.(ast.FunctionNode).Name == ctx.cfg.EntryName {
			userEntry = true
		}
	}

	for _, fn := range funcs {
		if err := ctx.codegenFunc(fn); err != nil {
			return err
		}
	}

	if userEntry {
		if len(top) > 0 {
			return ctx.fail(top[0], "top-level statements conflict with function `%s`", ctx.cfg.EntryName)
		}
		return nil
	}
	return ctx.codegenEntry(root, top)
}

func (ctx *Context) declareFunc(node *ast.Node) error {
	d := node.Data.(ast.FunctionNode)
	if _, exists := ctx.em.LookupFunction(d.Name); exists {
		return ctx.fail(node, "function `%s` is already defined", d.Name)
	}

	ret, err := ctx.lowerType(node, d.RetType)
	if err != nil {
		return err
	}
	sig := Signature{Ret: ret}
	for _, p := range d.Params {
		t, err := ctx.lowerType(node, p.DType)
		if err != nil {
			return err
		}
		if t == Void {
			return ctx.fail(node, "parameter `%s` of `%s` has no type", p.Name, d.Name)
		}
		sig.Params = append(sig.Params, t)
		sig.ParamNames = append(sig.ParamNames, p.Name)
	}
	ctx.em.DeclareFunction(d.Name, sig)
	return nil
}

func (ctx *Context) enterFunc(fn Func) {
	ctx.currentFunc = fn
	ctx.symbols = make(map[string]symbol)
	ctx.slotNames = make(map[string]int)
	ctx.em.SetInsertPoint(ctx.em.CreateBlock(fn, "entry"))
}

func (ctx *Context) codegenFunc(node *ast.Node) error {
	d := node.Data.(ast.FunctionNode)
	fn, _ := ctx.em.LookupFunction(d.Name)
	ctx.enterFunc(fn)

	sig := fn.Signature()
	for i, p := range d.Params {
		slot := ctx.em.Alloca(sig.Params[i], ctx.slotName(p.Name))
		ctx.em.Store(ctx.em.Param(fn, i), slot)
		ctx.symbols[p.Name] = symbol{Ptr: slot, Typ: sig.Params[i], DType: p.DType}
	}

	if err := ctx.codegenBlock(d.Body); err != nil {
		return err
	}
	if !ctx.em.Terminated() {
		ctx.em.Ret(ctx.zero(sig.Ret))
	}
	return nil
}

func (ctx *Context) codegenEntry(root *ast.Node, stmts []*ast.Node) error {
	if _, exists := ctx.em.LookupFunction(ctx.cfg.EntryName); exists {
		return ctx.fail(root, "function `%s` is reserved", ctx.cfg.EntryName)
	}
	fn := ctx.em.DeclareFunction(ctx.cfg.EntryName, Signature{Ret: I64})
	ctx.enterFunc(fn)

	if err := ctx.codegenStmts(stmts); err != nil {
		return err
	}
	if !ctx.em.Terminated() {
		ctx.em.Ret(ctx.em.ConstInt(I64, 0))
	}
	return nil
}

// zero is the value a function falling off its end returns.
func (ctx *Context) zero(t Type) Value {
	switch t {
	case Void:
		return nil
	case F64:
		return ctx.em.ConstFloat(0)
	}
	return ctx.em.ConstInt(t, 0)
}

// codegenBlock generates a code block. Names declared inside it are dropped
// again at its end.
func (ctx *Context) codegenBlock(node *ast.Node) error {
	d, ok := node.Data.(ast.CodeBlockNode)
	if !ok {
		return ctx.fail(node, "expected a CodeBlock, found %v", node.Type)
	}
	saved := maps.Clone(ctx.symbols)
	defer func() { ctx.symbols = saved }()
	return ctx.codegenStmts(d.Stmts)
}

func (ctx *Context) codegenStmts(stmts []*ast.Node) error {
	for _, stmt := range stmts {
		if stmt.Type == ast.Function {
			continue
		}
		if ctx.em.Terminated() {
			ctx.em.SetInsertPoint(ctx.newBlock("dead"))
		}
		if err := ctx.codegenStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (ctx *Context) codegenStmt(node *ast.Node) error {
	switch d := node.Data.(type) {
	case ast.DeclarationNode:
		return ctx.codegenDeclaration(node, d)
	case ast.AssignmentNode:
		return ctx.codegenAssignment(node, d)
	case ast.FunctionCallNode:
		_, err := ctx.codegenCall(node, d)
		return err
	case ast.IfBlockNode:
		return ctx.codegenIf(d)
	case ast.LoopNode:
		return ctx.codegenLoop(d)
	case ast.ReturnNode:
		return ctx.codegenReturn(node, d)
	case ast.CodeBlockNode:
		return ctx.codegenBlock(node)
	}
	return ctx.fail(node, "%v is not a statement", node.Type)
}

func (ctx *Context) codegenDeclaration(node *ast.Node, d ast.DeclarationNode) error {
	t, err := ctx.lowerType(node, d.DType)
	if err != nil {
		return err
	}
	if t == Void {
		return ctx.fail(node, "variable `%s` has no type", d.Name)
	}

	slot := ctx.em.Alloca(t, ctx.slotName(d.Name))
	ctx.symbols[d.Name] = symbol{Ptr: slot, Typ: t, DType: d.DType}

	v, err := ctx.codegenExpr(d.Src)
	if err != nil {
		return err
	}
	if v, err = ctx.coerce(d.Src, v, t); err != nil {
		return err
	}
	ctx.em.Store(v, slot)
	return nil
}

func (ctx *Context) codegenAssignment(node *ast.Node, d ast.AssignmentNode) error {
	sym, ok := ctx.symbols[d.Name]
	if !ok {
		return ctx.fail(node, "variable `%s` does not exist", d.Name)
	}
	v, err := ctx.codegenExpr(d.Src)
	if err != nil {
		return err
	}
	if v, err = ctx.coerce(d.Src, v, sym.Typ); err != nil {
		return err
	}
	ctx.em.Store(v, sym.Ptr)
	return nil
}

func (ctx *Context) codegenReturn(node *ast.Node, d ast.ReturnNode) error {
	ret := ctx.currentFunc.Signature().Ret
	if d.Value == nil {
		if ret != Void {
			return ctx.fail(node, "function `%s` returns %v, not void", ctx.currentFunc.Name(), ret)
		}
		ctx.em.Ret(nil)
		return nil
	}

	// a Null value in a void function is only evaluated for its effects
	if ret == Void && d.DType == ast.Null {
		if call, ok := d.Value.Data.(ast.FunctionCallNode); ok {
			if _, err := ctx.codegenCall(d.Value, call); err != nil {
				return err
			}
		}
		ctx.em.Ret(nil)
		return nil
	}

	v, err := ctx.codegenExpr(d.Value)
	if err != nil {
		return err
	}
	if v.Type() != ret {
		return ctx.fail(node, "function `%s` returns %v, not %v", ctx.currentFunc.Name(), ret, v.Type())
	}
	ctx.em.Ret(v)
	return nil
}

// codegenIf chains the arms through else blocks; every arm that does not
// return jumps to a shared end block.
func (ctx *Context) codegenIf(d ast.IfBlockNode) error {
	endL := ctx.newBlock("if.end")
	for i, arm := range d.Arms {
		cond, err := ctx.codegenCond(arm.Cond)
		if err != nil {
			return err
		}
		thenL, elseL := ctx.newBlock("if.then"), endL
		if i < len(d.Arms)-1 || d.Default != nil {
			elseL = ctx.newBlock("if.else")
		}
		ctx.em.CondBr(cond, thenL, elseL)

		ctx.em.SetInsertPoint(thenL)
		if err := ctx.codegenBlock(arm.Body); err != nil {
			return err
		}
		if !ctx.em.Terminated() {
			ctx.em.Br(endL)
		}
		ctx.em.SetInsertPoint(elseL)
	}

	if d.Default != nil {
		if err := ctx.codegenBlock(d.Default); err != nil {
			return err
		}
		if !ctx.em.Terminated() {
			ctx.em.Br(endL)
		}
		ctx.em.SetInsertPoint(endL)
	}
	return nil
}

func (ctx *Context) codegenLoop(d ast.LoopNode) error {
	startL, bodyL, endL := ctx.newBlock("loop.cond"), ctx.newBlock("loop.body"), ctx.newBlock("loop.end")

	ctx.em.Br(startL)
	ctx.em.SetInsertPoint(startL)
	cond, err := ctx.codegenCond(d.Cond)
	if err != nil {
		return err
	}
	ctx.em.CondBr(cond, bodyL, endL)

	ctx.em.SetInsertPoint(bodyL)
	if err := ctx.codegenBlock(d.Body); err != nil {
		return err
	}
	if !ctx.em.Terminated() {
		ctx.em.Br(startL)
	}
	ctx.em.SetInsertPoint(endL)
	return nil
}
