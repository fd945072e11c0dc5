package glulx

import (
	"fmt"
)

// ---------------------
// ----- Functions -----
// ---------------------

// ExplicitLocals replaces the virtual registers of Function f with Glulx locals. Glulx passes the arguments of a
// call in the first locals of the callee, so the register of every ARGUMENT pseudo is pinned to the local of its
// parameter index. All other registers are numbered in order of appearance, skipping the argument locals. Registers
// that are defined but never read are replaced with the discard operand. The entry block starts with a MAKE_LFUNC
// header declaring the number of locals.
func ExplicitLocals(f *Function) {
	f.CountRegs()
	locals := make(map[Reg]int, f.NumRegs())
	taken := make(map[int]bool, 8)
	float := make(map[int]bool, 8)

	nargs := 0
	entry := f.Entry()
	for i1 := 0; i1 < len(entry.Instrs); {
		in := entry.Instrs[i1]
		if in.Op != OpArgument {
			i1++
			continue
		}
		idx := int(in.Ops[1].Imm)
		locals[in.Ops[0].Reg] = idx
		taken[idx] = true
		if idx+1 > nargs {
			nargs = idx + 1
		}
		entry.Remove(i1)
	}

	next := 0
	alloc := func(r Reg) int {
		if n, ok := locals[r]; ok {
			return n
		}
		for taken[next] {
			next++
		}
		n := next
		taken[n] = true
		locals[r] = n
		return n
	}

	for _, e1 := range f.Blocks {
		for i2 := 0; i2 < len(e1.Instrs); {
			in := e1.Instrs[i2]
			switch in.Op {
			case OpImplicitDef:
				e1.Remove(i2)
				continue
			case OpArgument, OpPhi:
				panic(fmt.Sprintf("glulx: %s in %s after argument lowering", in.Op, f.Name))
			}
			for i3, e3 := range in.Ops {
				if e3.Kind != KindReg {
					continue
				}
				if in.IsDef(i3) && f.Uses(e3.Reg) == 0 {
					in.Ops[i3] = DiscardOp()
					continue
				}
				n := alloc(e3.Reg)
				if f.IsFloat(e3.Reg) {
					float[n] = true
				}
				in.Ops[i3] = LocalOp(n)
			}
			i2++
		}
	}

	count := 0
	for k := range taken {
		if k+1 > count {
			count = k + 1
		}
	}
	if nargs > count {
		count = nargs
	}
	header := NewInstr(OpMakeLFunc, ImmOp(int64(count)))
	entry.Insert(0, header)

	f.Info.Locals = make([]string, count)
	for i1 := range f.Info.Locals {
		switch {
		case i1 < len(f.Info.Params):
			f.Info.Locals[i1] = f.Info.Params[i1]
		case float[i1]:
			f.Info.Locals[i1] = "f32"
		default:
			f.Info.Locals[i1] = "i32"
		}
	}
	f.Info.RegLocals = locals
	if n, ok := locals[f.Info.FrameBase]; ok && f.Info.FrameBase != NoReg {
		f.Info.FrameBaseLocal = n
	}
}

// NumLocals returns the number of locals declared by the header of Function f, or 0 before locals are explicit.
func NumLocals(f *Function) int {
	if len(f.Blocks) == 0 || len(f.Entry().Instrs) == 0 {
		return 0
	}
	if in := f.Entry().Instrs[0]; in.Op == OpMakeLFunc {
		return int(in.Ops[0].Imm)
	}
	return 0
}
