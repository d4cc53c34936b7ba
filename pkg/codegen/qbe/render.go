package qbe

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/truffle-lang/truffle/pkg/ir"
)

type renderer struct {
	out    *strings.Builder
	w      io.Writer
	prog   *ir.Program
	module string
}

func newRenderer(w io.Writer, prog *ir.Program, module string) *renderer {
	return &renderer{out: &strings.Builder{}, w: w, prog: prog, module: module}
}

func (b *renderer) gen() {
	fmt.Fprintf(b.out, "# module %s\n", b.module)

	if len(b.prog.Globals) > 0 {
		b.out.WriteString("\n")
		for _, g := range b.prog.Globals {
			b.genGlobal(g)
		}
	}

	for _, fn := range b.prog.Funcs {
		// functions without blocks are resolved by the linker
		if len(fn.Blocks) > 0 {
			b.genFunc(fn)
		}
	}
	io.WriteString(b.w, b.out.String())
}

func (b *renderer) genGlobal(g *ir.Data) {
	alignStr := ""
	if g.Align > 0 {
		alignStr = fmt.Sprintf("align %d ", g.Align)
	}

	fmt.Fprintf(b.out, "data $%s = %s{ ", g.Name, alignStr)
	for i, item := range g.Items {
		if item.Count > 0 {
			size := int64(item.Count)
			if item.Typ != ir.TypeB {
				size *= ir.SizeOfType(item.Typ, b.prog.WordSize)
			}
			fmt.Fprintf(b.out, "z %d", size)
		} else {
			fmt.Fprintf(b.out, "%s %s", b.formatType(item.Typ), b.formatValue(item.Value))
		}
		if i < len(g.Items)-1 {
			b.out.WriteString(", ")
		}
	}
	b.out.WriteString(" }\n")
}

func (b *renderer) genFunc(fn *ir.Func) {
	retTypeStr := b.formatType(fn.ReturnType)
	if retTypeStr != "" {
		retTypeStr = " " + retTypeStr
	}

	fmt.Fprintf(b.out, "\nexport function%s $%s(", retTypeStr, fn.Name)
	for i, p := range fn.Params {
		fmt.Fprintf(b.out, "%s %s", b.formatType(p.Typ), b.formatValue(p.Val))
		if i < len(fn.Params)-1 {
			b.out.WriteString(", ")
		}
	}
	if fn.HasVarargs {
		if len(fn.Params) > 0 {
			b.out.WriteString(", ")
		}
		b.out.WriteString("...")
	}
	b.out.WriteString(") {\n")

	for _, block := range fn.Blocks {
		b.genBlock(block)
	}
	b.out.WriteString("}\n")
}

func (b *renderer) genBlock(block *ir.BasicBlock) {
	fmt.Fprintf(b.out, "@%s\n", block.Label.Name)
	for _, instr := range block.Instructions {
		b.genInstr(instr)
	}
}

func (b *renderer) genInstr(instr *ir.Instruction) {
	b.out.WriteString("\t")
	if instr.Op == ir.OpCall {
		b.genCall(instr)
		return
	}

	if instr.Result != nil {
		fmt.Fprintf(b.out, "%s =%s ", b.formatValue(instr.Result), b.formatType(instr.Typ))
	}
	b.out.WriteString(b.formatOp(instr))

	for i, arg := range instr.Args {
		b.out.WriteString(" ")
		b.out.WriteString(b.formatValue(arg))
		if i < len(instr.Args)-1 {
			b.out.WriteString(",")
		}
	}
	b.out.WriteString("\n")
}

func (b *renderer) genCall(instr *ir.Instruction) {
	if instr.Result != nil {
		fmt.Fprintf(b.out, "%s =%s ", b.formatValue(instr.Result), b.formatType(instr.Typ))
	}
	fmt.Fprintf(b.out, "call %s(", b.formatValue(instr.Args[0]))

	args := instr.Args[1:]
	for i, arg := range args {
		if i == instr.FixedArgs {
			b.out.WriteString("..., ")
		}
		fmt.Fprintf(b.out, "%s %s", b.formatType(instr.ArgTypes[i]), b.formatValue(arg))
		if i < len(args)-1 {
			b.out.WriteString(", ")
		}
	}
	if instr.FixedArgs >= 0 && instr.FixedArgs >= len(args) {
		if len(args) > 0 {
			b.out.WriteString(", ")
		}
		b.out.WriteString("...")
	}
	b.out.WriteString(")\n")
}

func (b *renderer) formatValue(v ir.Value) string {
	switch val := v.(type) {
	case *ir.Const:
		return strconv.FormatInt(val.Value, 10)
	case *ir.FloatConst:
		return b.formatType(val.Typ) + "_" + strconv.FormatFloat(val.Value, 'g', -1, 64)
	case *ir.StringConst:
		return strconv.Quote(val.Value)
	case *ir.Global:
		return "$" + val.Name
	case *ir.Temporary:
		if val.ID < 0 {
			return "%" + val.Name
		}
		// identifiers never contain a dot, so these cannot clash with params
		return fmt.Sprintf("%%.t%d", val.ID)
	case *ir.Label:
		return "@" + val.Name
	}
	return ""
}

func (b *renderer) formatType(t ir.Type) string {
	switch t {
	case ir.TypeB:
		return "b"
	case ir.TypeW:
		return "w"
	case ir.TypeL:
		return "l"
	case ir.TypeD:
		return "d"
	}
	return ""
}

func (b *renderer) formatOp(instr *ir.Instruction) string {
	argType := instr.OperandType
	argTypeStr := b.formatType(argType)
	float := argType == ir.TypeD

	switch instr.Op {
	case ir.OpAlloc:
		if instr.Align <= 4 {
			return "alloc4"
		}
		if instr.Align <= 8 {
			return "alloc8"
		}
		return "alloc16"
	case ir.OpLoad:
		if argType == ir.TypeB {
			return "loadub"
		}
		return "load" + argTypeStr
	case ir.OpStore:
		return "store" + argTypeStr
	case ir.OpAdd:
		return "add"
	case ir.OpSub:
		return "sub"
	case ir.OpMul:
		return "mul"
	case ir.OpDiv:
		return "div"
	case ir.OpRem:
		return "rem"
	case ir.OpCEq:
		return "ceq" + argTypeStr
	case ir.OpCNeq:
		return "cne" + argTypeStr
	case ir.OpCLt:
		if float {
			return "clt" + argTypeStr
		}
		return "cslt" + argTypeStr
	case ir.OpCGt:
		if float {
			return "cgt" + argTypeStr
		}
		return "csgt" + argTypeStr
	case ir.OpCLe:
		if float {
			return "cle" + argTypeStr
		}
		return "csle" + argTypeStr
	case ir.OpCGe:
		if float {
			return "cge" + argTypeStr
		}
		return "csge" + argTypeStr
	case ir.OpExtSB:
		return "extsb"
	case ir.OpExtUB:
		return "extub"
	case ir.OpExtSW:
		return "extsw"
	case ir.OpExtUW:
		return "extuw"
	case ir.OpCopy:
		return "copy"
	case ir.OpFToSI:
		return "dtosi"
	case ir.OpSWToF:
		return "swtof"
	case ir.OpSLToF:
		return "sltof"
	case ir.OpJmp:
		return "jmp"
	case ir.OpJnz:
		return "jnz"
	case ir.OpRet:
		return "ret"
	}
	return "unknown_op"
}
