package glulx

import (
	"glulxc/src/ir/lir"
	"glulxc/src/ir/lir/types"
	"testing"
)

// TestOperationAction verifies the legalisation table.
func TestOperationAction(t *testing.T) {
	tests := []struct {
		op  lir.Opcode
		typ types.Type
		exp Action
	}{
		{lir.OpAdd, types.I32, Legal},
		{lir.OpAdd, types.I8, Promote},
		{lir.OpShl, types.I16, Promote},
		{lir.OpAnd, types.I8, Legal},
		{lir.OpLShr, types.I8, Legal},
		{lir.OpUDiv, types.I32, Expand},
		{lir.OpURem, types.I32, Expand},
		{lir.OpUDiv, types.I8, Legal},
		{lir.OpUIToFP, types.I32, Expand},
		{lir.OpUIToFP, types.I16, Legal},
		{lir.OpFPToUI, types.F32, Expand},
		{lir.OpSDiv, types.I32, Legal},
		{lir.OpSelect, types.I32, Custom},
		{lir.OpCall, types.Ptr, Custom},
		{lir.OpIndirectBr, types.Ptr, Illegal},
		{lir.OpAdd, types.I64, Illegal},
		{lir.OpFAdd, types.F64, Illegal},
		{lir.OpFAdd, types.F32, Legal},
	}
	for _, e1 := range tests {
		if a := OperationAction(e1.op, e1.typ); a != e1.exp {
			t.Errorf("%s %s: expected %s, got %s", e1.op, e1.typ, e1.exp, a)
		}
	}
	for _, e1 := range []lir.Opcode{lir.OpUDiv, lir.OpURem, lir.OpUIToFP, lir.OpFPToUI} {
		if _, ok := LibCall(e1); !ok {
			t.Errorf("expected a library function for %s", e1)
		}
	}
}

// TestCallConvSupported verifies the accepted calling conventions.
func TestCallConvSupported(t *testing.T) {
	tests := []struct {
		cc  lir.CallConv
		exp bool
	}{
		{lir.CallConvC, true},
		{lir.CallConvFast, true},
		{lir.CallConvCold, true},
		{lir.CallConvPreserveMost, true},
		{lir.CallConvPreserveAll, true},
		{lir.CallConvCxxFastTLS, true},
		{lir.CallConvGHC, false},
		{lir.CallConvSwift, false},
		{lir.CallConvTail, false},
		{lir.CallConv(64), false},
	}
	for _, e1 := range tests {
		if ok := CallConvSupported(e1.cc); ok != e1.exp {
			t.Errorf("%s: expected %t, got %t", e1.cc, e1.exp, ok)
		}
	}
}

// TestIsLegalAddressingMode verifies that only a plain base register is a legal address.
func TestIsLegalAddressingMode(t *testing.T) {
	g := lir.CreateModule("t").CreateGlobal("g", types.I32, nil)
	tests := []struct {
		am  AddrMode
		exp bool
	}{
		{AddrMode{HasBase: true}, true},
		{AddrMode{}, true},
		{AddrMode{HasBase: true, BaseOffs: 4}, false},
		{AddrMode{BaseGV: g}, false},
		{AddrMode{HasBase: true, Scale: 1}, false},
		{AddrMode{BaseOffs: -8, Scale: 4}, false},
	}
	for i1, e1 := range tests {
		if ok := IsLegalAddressingMode(e1.am); ok != e1.exp {
			t.Errorf("test %d: expected %t, got %t", i1, e1.exp, ok)
		}
	}
}

// TestTypes verifies legal types, alignments and variadic slot sizes.
func TestTypes(t *testing.T) {
	legal := []types.Type{types.I1, types.I8, types.I16, types.I32, types.F32, types.Ptr}
	illegal := []types.Type{types.I64, types.F64, types.Void, &types.ArrayType{Elem: types.I8, Len: 4}}
	for _, e1 := range legal {
		if !IsLegalType(e1) {
			t.Errorf("%s should be legal", e1)
		}
		if pref, min := Alignment(e1); pref != 1 || min != 1 {
			t.Errorf("%s: expected byte alignment, got %d/%d", e1, pref, min)
		}
	}
	for _, e1 := range illegal {
		if IsLegalType(e1) {
			t.Errorf("%s should be illegal", e1)
		}
	}
	if n := VarargSlot(types.I8); n != 4 {
		t.Errorf("expected 4 byte slot for i8, got %d", n)
	}
	if n := VarargSlot(types.F64); n != 8 {
		t.Errorf("expected 8 byte slot for f64, got %d", n)
	}
}
