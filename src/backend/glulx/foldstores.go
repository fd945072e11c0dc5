package glulx

// ---------------------
// ----- Functions -----
// ---------------------

// FoldStores stores results directly to memory. Every block is walked in reverse. A copy of a register to a
// symbol's memory becomes a candidate if the register has exactly one definition and the copy is its only use.
// When the walk reaches the instruction defining a candidate, the defining operand is replaced with the memory
// operand of the copy and the copy is erased:
//
//	add %r1 %r2 %r3
//	copy %r3 @x_
//
// becomes
//
//	add %r1 %r2 @x_
//
// Any instruction that may access memory, calls or has other side effects ends all candidates, so no load, store
// or call is moved across another. The number of folded stores is returned.
func FoldStores(f *Function) int {
	n := 0
	cand := make(map[Reg]*Instr, 8)
	erased := make(map[*Instr]bool, 8)
	for _, e1 := range f.Blocks {
		clear(cand)
		for i2 := len(e1.Instrs) - 1; i2 >= 0; i2-- {
			in := e1.Instrs[i2]

			if !in.Op.IsPseudo() {
				for i3, e3 := range in.Ops {
					if e3.Kind != KindReg || !in.IsDef(i3) {
						continue
					}
					cp, ok := cand[e3.Reg]
					if !ok {
						continue
					}
					in.Ops[i3] = cp.Ops[1]
					erased[cp] = true
					delete(cand, e3.Reg)
					n++
				}
			}

			if in.MayLoadOrStore() || in.Op.IsCall() || in.Op.HasSideEffects() {
				clear(cand)
			}

			if isStoreCandidate(f, in) {
				cand[in.Ops[0].Reg] = in
			}
		}
		if len(erased) == 0 {
			continue
		}
		res := e1.Instrs[:0]
		for _, e2 := range e1.Instrs {
			if !erased[e2] {
				res = append(res, e2)
			}
		}
		e1.Instrs = res
		clear(erased)
	}
	f.Info.FoldedStores += n
	f.CountRegs()
	return n
}

// isStoreCandidate reports whether in copies a register with a single definition and no other use to memory.
func isStoreCandidate(f *Function, in *Instr) bool {
	if in.Op != OpCopy || !in.Ops[0].IsReg() {
		return false
	}
	dst := in.Ops[1]
	if dst.Kind != KindSymbol || !dst.Deref {
		return false
	}
	r := in.Ops[0].Reg
	return f.Defs(r) == 1 && f.Uses(r) == 1
}
