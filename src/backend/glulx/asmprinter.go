package glulx

import (
	"fmt"
	"glulxc/src/backend/xtoa"
	"glulxc/src/ir/lir"
	"glulxc/src/ir/lir/types"
	"math"
)

// ---------------------
// ----- Constants -----
// ---------------------

// Assembler directives.
const (
	dirGlobal   = "\t; global "
	dirLocal    = "\t; local "
	dirLFunc    = "\t!lfunc "
	dirAlign    = "\t!align\t"
	dirAlignBSS = "\t!alignbss "
	dirAllot    = "\t!allot\t"
	dirByte     = "\t!datab\t"
	dirShort    = "\t!datas\t"
	dirWord     = "\t!data\t"
	dirZero     = "\t!zero "
)

// ---------------------
// ----- Functions -----
// ---------------------

// Emit writes the assembly of Module m. fns holds the lowered machine functions of the function definitions of m
// in module order.
func Emit(m *lir.Module, fns []*Function) string {
	ss := NewSections()
	ss.Line("; Preamble:")
	ss.Line(`!include ":glulx"`)
	ss.Line(`!include ":veneer"`)
	for _, e1 := range fns {
		printFunction(ss, e1)
	}
	for _, e1 := range m.Globals() {
		printGlobal(ss, e1)
	}
	return ss.Finish()
}

// printFunction writes Function f to ROM. Blocks that are not branch targets get no label.
func printFunction(ss *Sections, f *Function) {
	ss.Switch(ROM)
	if f.Src.Linkage == lir.External {
		ss.Line(dirGlobal + f.Name)
	}
	ss.Label(f.Name)
	for _, e1 := range f.Blocks {
		if e1.IsBranchTarget() {
			ss.Label(e1.Label())
		}
		for _, e2 := range e1.Instrs {
			ss.Line(instrText(f, e2))
		}
	}
	ss.EOL()
}

// instrText returns the assembly line of machine instruction in. Pseudo instructions other than PUSH and
// MAKE_LFUNC must be gone by now, as must all registers and frame indices.
func instrText(f *Function, in *Instr) string {
	for _, e1 := range in.Ops {
		switch e1.Kind {
		case KindReg, KindFrameIndex, KindInvalid:
			panic(fmt.Sprintf("glulx: operand %s of %s reached the printer in %s", e1, in, f.Name))
		}
	}
	switch in.Op {
	case OpPush:
		return "\tcopy " + in.Ops[0].String() + " " + StackOp().String()
	case OpMakeLFunc:
		return dirLFunc + xtoa.ItoA(in.Ops[0].Imm)
	}
	if in.Op.IsPseudo() {
		panic(fmt.Sprintf("glulx: pseudo instruction %s reached the printer in %s", in.Op, f.Name))
	}
	return "\t" + in.String()
}

// globalSection returns the section of Global g: read-only data goes to ROM, zero initialised mutable data to
// BSS and all other data to RAM.
func globalSection(g *lir.Global) Section {
	switch {
	case g.Constant:
		return ROM
	case g.Linkage == lir.Common || isZero(g.Init):
		return BSS
	}
	return RAM
}

// isZero reports whether initialiser c is all zero bits.
func isZero(c lir.Constant) bool {
	switch x := c.(type) {
	case *lir.ConstZero, *lir.ConstNull, *lir.Undef:
		return true
	case *lir.ConstInt:
		return x.V == 0
	case *lir.ConstFloat:
		return math.Float64bits(x.V) == 0
	case *lir.ConstString:
		for _, e1 := range x.V {
			if e1 != 0 {
				return false
			}
		}
		return true
	case *lir.ConstArray:
		for _, e1 := range x.Elems {
			if !isZero(e1) {
				return false
			}
		}
		return true
	case *lir.ConstStruct:
		for _, e1 := range x.Fields {
			if !isZero(e1) {
				return false
			}
		}
		return true
	}
	return false
}

// globalAlign returns the alignment of Global g in bytes.
func globalAlign(g *lir.Global) int {
	if g.Align > 0 {
		return g.Align
	}
	pref, _ := Alignment(g.Typ)
	return pref
}

// printGlobal writes the definition of Global g. Declarations produce no text.
func printGlobal(ss *Sections, g *lir.Global) {
	if g.IsDeclaration() {
		return
	}
	name := symbolName(g)
	size := types.Size(g.Typ)
	align := globalAlign(g)
	sec := globalSection(g)
	ss.Switch(sec)

	if sec == BSS {
		if size == 0 {
			size = 1
		}
		switch g.Linkage {
		case lir.Common:
		case lir.External:
			ss.Line(dirGlobal + name)
		default:
			ss.Line(dirLocal + name)
		}
		if align > 1 {
			ss.Line(dirAlignBSS + xtoa.ItoA(int64(align)))
		}
		ss.Label(name)
		ss.Line(dirAllot + xtoa.ItoA(int64(size)))
		return
	}

	if g.Linkage == lir.External {
		ss.Line(dirGlobal + name)
	}
	if align > 1 {
		if align&(align-1) != 0 {
			panic(fmt.Sprintf("glulx: alignment %d of %s is not a power of two", align, name))
		}
		ss.Line(dirAlign + xtoa.ItoA(int64(align)))
	}
	ss.Label(name)
	printConstant(ss, g.Init, g.Typ)
	// A label without data still needs its line.
	ss.EOL()
}

// printConstant writes the data directives of initialiser c of type t.
func printConstant(ss *Sections, c lir.Constant, t types.Type) {
	switch x := c.(type) {
	case *lir.ConstZero, *lir.Undef:
		if n := types.Size(t); n > 0 {
			ss.Line(dirZero + xtoa.ItoA(int64(n)))
		}
	case *lir.ConstNull:
		ss.Line(dirWord + "0")
	case *lir.ConstInt:
		printInt(ss, x.V, types.Size(x.Typ))
	case *lir.ConstFloat:
		if x.Typ.Bits == 32 {
			ss.Line(dirWord + xtoa.FtoA(float32(x.V)))
			return
		}
		printInt(ss, int64(math.Float64bits(x.V)), 8)
	case *lir.ConstString:
		if len(x.V) > 0 {
			ss.Line(dirByte + xtoa.ByteList(x.V))
		}
	case *lir.ConstArray:
		printAggregate(ss, x.Elems, func(int) types.Type { return x.Typ.Elem })
	case *lir.ConstStruct:
		printAggregate(ss, x.Fields, func(i int) types.Type { return x.Typ.Fields[i] })
	case *lir.ConstSymbol:
		ss.Line(dirWord + SymOp(symbolName(x.Sym), x.Off).String())
	default:
		panic(fmt.Sprintf("glulx: cannot emit initialiser %s", c))
	}
}

// printAggregate writes the elements of an array or struct initialiser. Runs of zero elements share one !zero
// directive.
func printAggregate(ss *Sections, elems []lir.Constant, typ func(i int) types.Type) {
	zeros := 0
	flush := func() {
		if zeros > 0 {
			ss.Line(dirZero + xtoa.ItoA(int64(zeros)))
			zeros = 0
		}
	}
	for i1, e1 := range elems {
		t := typ(i1)
		if isZero(e1) {
			zeros += types.Size(t)
			continue
		}
		flush()
		printConstant(ss, e1, t)
	}
	flush()
}

// printInt writes an integer of size bytes, most significant byte first.
func printInt(ss *Sections, v int64, size int) {
	switch size {
	case 1:
		ss.Line(dirByte + xtoa.ItoA(v&0xff))
	case 2:
		ss.Line(dirShort + xtoa.ItoA(v&0xffff))
	case 4:
		ss.Line(dirWord + xtoa.Imm(v))
	case 8:
		ss.Line(dirWord + xtoa.Imm(v>>32))
		ss.Line(dirWord + xtoa.Imm(v))
	default:
		panic(fmt.Sprintf("glulx: cannot emit %d byte integer", size))
	}
}
