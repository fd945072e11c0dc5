package glulx

// ---------------------
// ----- Functions -----
// ---------------------

// EliminatePhis replaces every PHI pseudo with copies. Each PHI gets a fresh temporary: every predecessor copies
// its incoming value into the temporary before its branches, and the PHI itself becomes a copy of the temporary
// into its result. Using one temporary per PHI keeps parallel PHIs of a block independent of each other.
func EliminatePhis(f *Function) {
	for _, e1 := range f.Blocks {
		for i2 := 0; i2 < len(e1.Instrs); i2++ {
			in := e1.Instrs[i2]
			if in.Op != OpPhi {
				continue
			}
			dst := in.Ops[0]
			tmp := f.NewReg()
			f.regs[tmp].float = f.IsFloat(dst.Reg)
			for i3 := 1; i3+1 < len(in.Ops); i3 += 2 {
				pred := in.Ops[i3+1].Block
				cp := NewInstr(OpCopy, in.Ops[i3], RegOp(tmp))
				cp.Pos = in.Pos
				// Self loops insert behind the PHI, so i2 stays valid.
				pred.Insert(pred.FirstTerminator(), cp)
			}
			cp := NewInstr(OpCopy, RegOp(tmp), dst)
			cp.Pos = in.Pos
			e1.Instrs[i2] = cp
		}
	}
	f.CountRegs()
}

// removeFallthroughJumps deletes unconditional jumps to the next block in layout order.
func removeFallthroughJumps(f *Function) {
	for _, e1 := range f.Blocks {
		n := len(e1.Instrs)
		if n == 0 {
			continue
		}
		last := e1.Instrs[n-1]
		if last.Op == OpJump && last.Ops[0].Block == f.Next(e1) {
			e1.Remove(n - 1)
		}
	}
	f.CountRegs()
}
