package glulx

// ---------------------
// ----- Functions -----
// ---------------------

// LowerFrame allocates the frame of Function f on the heap. Glulx has no addressable stack, so the prologue
// mallocs one block holding every frame object and the epilogue frees it before the function leaves. Functions
// without frame objects are left alone.
//
// The prologue follows the ARGUMENT pseudos of the entry block:
//
//	malloc size SP
//	add SP align-1 FP
//	bitand FP ~(align-1) FP
//
// The alignment instructions are omitted if no frame object needs more than byte alignment, and FP is SP.
func LowerFrame(f *Function) {
	if len(f.Frame) == 0 {
		return
	}
	size := f.FrameSize()
	if size < 1 {
		size = 1
	}
	align := f.MaxAlign()
	if align > 1 {
		// malloc only guarantees byte alignment.
		size += align - 1
	}

	sp := f.NewReg()
	fp := sp
	prologue := make([]*Instr, 0, 3)
	prologue = append(prologue, NewInstr(OpMalloc, ImmOp(int64(size)), RegOp(sp)))
	if align > 1 {
		fp = f.NewReg()
		prologue = append(prologue,
			NewInstr(OpAdd, RegOp(sp), ImmOp(int64(align-1)), RegOp(fp)),
			NewInstr(OpBitAnd, RegOp(fp), ImmOp(int64(^(align-1))), RegOp(fp)),
		)
	}
	entry := f.Entry()
	i1 := 0
	for i1 < len(entry.Instrs) && entry.Instrs[i1].Op == OpArgument {
		i1++
	}
	entry.Insert(i1, prologue...)

	for _, e1 := range f.Blocks {
		for i2 := 0; i2 < len(e1.Instrs); i2++ {
			in := e1.Instrs[i2]
			if in.Op != OpReturn && in.Op != OpTailcall {
				continue
			}
			free := NewInstr(OpMfree, RegOp(sp))
			free.Pos = in.Pos
			e1.Insert(i2, free)
			i2++
		}
	}

	f.Info.StackBase = sp
	f.Info.FrameBase = fp
	f.Info.FrameSize = f.FrameSize()
	f.Info.FrameAlign = align
	f.CountRegs()
}
