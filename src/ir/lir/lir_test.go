package lir

import (
	"glulxc/src/ir/lir/types"
	"math"
	"strings"
	"testing"
)

// TestBuilders verifies the textual form of instructions created by the Block builders.
func TestBuilders(t *testing.T) {
	m := CreateModule("test")
	g := m.CreateGlobal("g", types.I32, ConstI32(3))
	f := m.CreateFunction("f", &types.FuncType{Ret: types.I32, Params: []types.Type{types.I32, types.Ptr}})
	b := f.CreateBlock("entry")
	a := f.Params()[0]

	exp := []struct {
		inst *Instruction
		text string
	}{
		{b.CreateBinary(OpAdd, a, ConstI32(-1)), "%t1 = add i32 %0, -1"},
		{b.CreateICmp(IntSLT, a, ConstI32(0)), "%t2 = icmp slt i32 %0, 0"},
		{b.CreateCast(OpTrunc, a, types.I8), "%t3 = trunc i32 %0 to i8"},
		{b.CreateLoad(types.I32, g, 4), "%t4 = load i32, @g, align 4"},
		{b.CreateStore(a, f.Params()[1], 0), "store i32 %0, %1"},
		{b.CreateGEP(&types.ArrayType{Elem: types.I32, Len: 4}, g, ConstI32(0), ConstI32(2)), "%t5 = gep [4 x i32], @g, i32 0, i32 2"},
		{b.CreateAlloca(types.F32, nil, 0), "%t6 = alloca f32"},
		{b.CreateReturn(a), "ret i32 %0"},
	}
	for _, e1 := range exp {
		if s := e1.inst.String(); s != e1.text {
			t.Errorf("expected %q, got %q", e1.text, s)
		}
	}
	if b.Terminator() == nil {
		t.Error("expected block to be terminated")
	}
	if !strings.Contains(m.String(), "global @g: i32 = 3") {
		t.Errorf("unexpected module text:\n%s", m)
	}
}

// TestBuilderPanics verifies that malformed operands are rejected.
func TestBuilderPanics(t *testing.T) {
	m := CreateModule("test")
	f := m.CreateFunction("f", &types.FuncType{Ret: types.Void})
	b := f.CreateBlock("entry")

	tests := []struct {
		name  string
		build func()
	}{
		{"mixed types", func() { b.CreateBinary(OpAdd, ConstI32(1), CreateConstInt(types.I8, 1)) }},
		{"float add of ints", func() { b.CreateBinary(OpFAdd, ConstI32(1), ConstI32(2)) }},
		{"widening trunc", func() { b.CreateCast(OpTrunc, CreateConstInt(types.I8, 1), types.I32) }},
		{"load from int", func() { b.CreateLoad(types.I32, ConstI32(0), 0) }},
		{"select on i32", func() { b.CreateSelect(ConstI32(1), ConstI32(1), ConstI32(2)) }},
		{"bad struct index", func() {
			b.CreateGEP(&types.StructType{Fields: []types.Type{types.I32}}, &ConstNull{}, ConstI32(0), ConstI32(1))
		}},
		{"return value from void", func() { b.CreateReturn(ConstI32(0)) }},
	}
	for _, e1 := range tests {
		func() {
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("%s: expected panic", e1.name)
				}
			}()
			e1.build()
		}()
	}

	b.CreateReturn(nil)
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic when appending to a terminated block")
			}
		}()
		b.CreateUnreachable()
	}()
}

// TestConstants verifies integer truncation and the textual form of constants.
func TestConstants(t *testing.T) {
	tests := []struct {
		c    Constant
		text string
	}{
		{CreateConstInt(types.I8, 255), "i8 -1"},
		{CreateConstInt(types.I1, 1), "i1 1"},
		{CreateConstFloat(types.F32, 2), "f32 2.0"},
		{CreateConstFloat(types.F64, math.Inf(-1)), "f64 -inf"},
		{&ConstString{Typ: &types.ArrayType{Elem: types.I8, Len: 3}, V: []byte("a\"\n")}, `[3 x i8] "a\22\0A"`},
		{&ConstZero{Typ: types.I32}, "i32 zeroinit"},
	}
	for _, e1 := range tests {
		if s := e1.c.String(); s != e1.text {
			t.Errorf("expected %q, got %q", e1.text, s)
		}
	}
	if z := CreateConstInt(types.I8, -1).ZExt(); z != 255 {
		t.Errorf("expected zero extension 255, got %d", z)
	}
}

// TestPredicates verifies the floating point predicate encoding.
func TestPredicates(t *testing.T) {
	if FloatUNE.Ordered() != FloatONE || !FloatUNE.IsUnordered() || FloatONE.IsUnordered() {
		t.Error("unexpected ordered form of une")
	}
	if FloatOLT.Inverse() != FloatUGE || FloatTrue.Inverse() != FloatFalse {
		t.Error("unexpected predicate inverse")
	}
	if p, ok := LookupFloatPredicate("uno"); !ok || p != FloatUNO {
		t.Error("lookup of uno failed")
	}
	if !IntSLE.IsSigned() || IntULT.IsSigned() {
		t.Error("unexpected signedness of integer predicates")
	}
}

// TestSymbols verifies the module symbol table.
func TestSymbols(t *testing.T) {
	m := CreateModule("")
	m.CreateFunction("zeta", &types.FuncType{Ret: types.Void})
	m.CreateGlobal("alpha", types.I32, nil)
	m.CreateGlobal("mid", types.I8, &ConstZero{Typ: types.I8})
	syms := m.Symbols()
	if strings.Join(syms, ",") != "alpha,mid,zeta" {
		t.Errorf("unexpected symbol order %v", syms)
	}
	if m.GetFunction("alpha") != nil || m.GetGlobal("alpha") == nil {
		t.Error("unexpected symbol lookup result")
	}
	if !m.GetGlobal("alpha").IsDeclaration() {
		t.Error("uninitialised global should be a declaration")
	}
}
