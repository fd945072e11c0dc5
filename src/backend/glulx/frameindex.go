package glulx

import (
	"fmt"
)

// ---------------------
// ----- Functions -----
// ---------------------

// EliminateFrameIndices replaces the frame index operands of Function f with addresses relative to the frame base.
// An array load or store addressing a frame object with an immediate index absorbs the offset into the index if the
// offset is a multiple of the access size. Any other frame index becomes the frame base register, or a register
// holding the frame base plus the offset. Offset registers are shared by the uses within one block.
func EliminateFrameIndices(f *Function) {
	fp := f.Info.FrameBase
	for _, e1 := range f.Blocks {
		for i2 := 0; i2 < len(e1.Instrs); i2++ {
			in := e1.Instrs[i2]
			for i3, e3 := range in.Ops {
				if e3.Kind != KindFrameIndex {
					continue
				}
				if fp == NoReg {
					panic(fmt.Sprintf("glulx: frame index in %s without frame base", f.Name))
				}
				obj := f.Frame[e3.Imm]
				if obj.Size == 0 {
					panic(fmt.Sprintf("glulx: variable sized frame object %%fi%d in %s", e3.Imm, f.Name))
				}
				off := int64(obj.Offset) + e3.Off

				if scale := in.Op.memScale(); scale > 0 && i3 == 0 && in.Ops[1].Kind == KindImm && off%scale == 0 {
					in.Ops[0] = RegOp(fp)
					in.Ops[1] = ImmOp(in.Ops[1].Imm + off/scale)
					continue
				}
				if off == 0 {
					in.Ops[i3] = RegOp(fp)
					continue
				}

				key := frameAddr{off: off, b: e1}
				r, ok := f.Info.frameAddrs[key]
				if !ok {
					r = f.NewReg()
					f.Info.frameAddrs[key] = r
					add := NewInstr(OpAdd, RegOp(fp), ImmOp(off), RegOp(r))
					add.Pos = in.Pos
					e1.Insert(i2, add)
					i2++
				}
				in.Ops[i3] = RegOp(r)
			}
		}
	}
	f.CountRegs()
}
