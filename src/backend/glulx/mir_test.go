package glulx

import (
	"math"
	"testing"
)

// TestOperandString verifies the assembly notation of operands.
func TestOperandString(t *testing.T) {
	f := NewFunction("f", 2, nil)
	f.NewBlock()
	b := f.NewBlock()
	tests := []struct {
		op  Operand
		exp string
	}{
		{ImmOp(-7), "-7"},
		{ImmOp(0xffffffff), "-1"},
		{FImmOp(0.5), "1056964608"},
		{FImmOp(float32(math.Inf(1))), "2139095040"},
		{SymOp("x", 0), "x_"},
		{SymOp("x", 4), "x_+4"},
		{SymOp("x", -2), "x_-2"},
		{MemOp("_Lmsg", 0), "@_Lmsg_"},
		{BlockOp(b), "_LBB2_1_"},
		{LocalOp(3), "$3"},
		{DiscardOp(), "0"},
		{StackOp(), "sp"},
		{RegOp(5), "%r5"},
		{FrameOp(1, 8), "%fi1+8"},
	}
	for _, e1 := range tests {
		if s := e1.op.String(); s != e1.exp {
			t.Errorf("expected %q, got %q", e1.exp, s)
		}
	}
	if !ImmOp(0).IsConst() || !SymOp("x", 0).IsConst() || MemOp("x", 0).IsConst() || LocalOp(0).IsConst() {
		t.Error("IsConst misclassifies operands")
	}
}

// TestNewInstrOperands verifies that an operand count mismatch panics.
func TestNewInstrOperands(t *testing.T) {
	in := NewInstr(OpPhi, RegOp(0), ImmOp(1), BlockOp(nil), ImmOp(2), BlockOp(nil))
	if !in.IsDef(0) || in.IsDef(3) {
		t.Error("unexpected PHI operand modes")
	}
	defer func() {
		if recover() == nil {
			t.Error("expected a panic")
		}
	}()
	NewInstr(OpAdd, ImmOp(1), ImmOp(2))
}

// TestCreateFrameObject verifies frame slot offsets and the frame alignment.
func TestCreateFrameObject(t *testing.T) {
	f := NewFunction("f", 0, nil)
	tests := []struct {
		size, align, off int
	}{
		{1, 1, 0},
		{4, 4, 4},
		{2, 2, 8},
		{3, 0, 10},
		{8, 8, 16},
	}
	for i1, e1 := range tests {
		fi := f.CreateFrameObject(e1.size, e1.align)
		if fi != i1 {
			t.Errorf("expected frame index %d, got %d", i1, fi)
		}
		if o := f.Frame[fi].Offset; o != e1.off {
			t.Errorf("slot %d: expected offset %d, got %d", i1, e1.off, o)
		}
	}
	if f.FrameSize() != 24 || f.MaxAlign() != 8 {
		t.Errorf("expected 24 bytes aligned to 8, got %d bytes aligned to %d", f.FrameSize(), f.MaxAlign())
	}
}

// TestSuccessors verifies control flow through branches, terminators and fall through.
func TestSuccessors(t *testing.T) {
	f := NewFunction("f", 0, nil)
	b0 := f.NewBlock()
	b1 := f.NewBlock()
	b2 := f.NewBlock()
	b3 := f.NewBlock()
	b0.Append(NewInstr(OpJz, LocalOp(0), BlockOp(b2)))
	b1.Append(NewInstr(OpJeq, LocalOp(0), ImmOp(1), BlockOp(b3)))
	b1.Append(NewInstr(OpJump, BlockOp(b3)))
	b2.Append(NewInstr(OpReturn, ImmOp(0)))
	b3.Append(NewInstr(OpReturn, ImmOp(1)))

	tests := []struct {
		b   *Block
		exp []*Block
	}{
		{b0, []*Block{b2, b1}},
		{b1, []*Block{b3}},
		{b2, nil},
		{b3, nil},
	}
	for _, e1 := range tests {
		got := f.Successors(e1.b)
		if len(got) != len(e1.exp) {
			t.Errorf("block %d: expected %d successors, got %d", e1.b.Num, len(e1.exp), len(got))
			continue
		}
		for i2, e2 := range e1.exp {
			if got[i2] != e2 {
				t.Errorf("block %d: successor %d is block %d, expected %d", e1.b.Num, i2, got[i2].Num, e2.Num)
			}
		}
	}
	preds := f.Predecessors()
	if len(preds[b3]) != 1 || preds[b3][0] != b1 || len(preds[b0]) != 0 {
		t.Error("unexpected predecessors")
	}

	f.CountRegs()
	if b1.IsBranchTarget() || !b2.IsBranchTarget() || !b3.IsBranchTarget() {
		t.Error("unexpected branch targets")
	}
	if b0.FirstTerminator() != 0 || b1.FirstTerminator() != 0 || b2.FirstTerminator() != 0 {
		t.Error("unexpected branch sequence start")
	}
}

// TestNewBlockAfter verifies layout insertion.
func TestNewBlockAfter(t *testing.T) {
	f := NewFunction("f", 0, nil)
	b0 := f.NewBlock()
	b1 := f.NewBlock()
	nb := f.NewBlockAfter(b0)
	if f.Next(b0) != nb || f.Next(nb) != b1 || f.Next(b1) != nil {
		t.Error("unexpected layout")
	}
	if nb.Num != 2 || nb.Parent() != f {
		t.Errorf("unexpected block number %d", nb.Num)
	}
}
