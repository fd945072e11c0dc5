package types

import (
	"testing"
)

// TestSize verifies storage sizes and packed field offsets.
func TestSize(t *testing.T) {
	pair := &StructType{Fields: []Type{I8, I32, &ArrayType{Elem: I16, Len: 3}, Ptr}}
	tests := []struct {
		typ  Type
		size int
	}{
		{I1, 1},
		{I8, 1},
		{I16, 2},
		{I32, 4},
		{I64, 8},
		{F32, 4},
		{F64, 8},
		{Ptr, 4},
		{Void, 0},
		{&ArrayType{Elem: I32, Len: 5}, 20},
		{&ArrayType{Elem: pair, Len: 2}, 30},
		{pair, 15},
		{&StructType{}, 0},
	}
	for _, e1 := range tests {
		if n := Size(e1.typ); n != e1.size {
			t.Errorf("Size(%s) = %d, expected %d", e1.typ, n, e1.size)
		}
	}

	offs := []int{0, 1, 5, 11}
	for i1, e1 := range offs {
		if n := FieldOffset(pair, i1); n != e1 {
			t.Errorf("FieldOffset(%s, %d) = %d, expected %d", pair, i1, n, e1)
		}
	}
}

// TestEqual verifies structural type equality.
func TestEqual(t *testing.T) {
	a := &StructType{Fields: []Type{I32, &ArrayType{Elem: I8, Len: 4}}}
	b := &StructType{Fields: []Type{Int(32), &ArrayType{Elem: I8, Len: 4}}}
	c := &StructType{Fields: []Type{I32, &ArrayType{Elem: I8, Len: 5}}}
	if !Equal(a, b) {
		t.Errorf("expected %s and %s to be equal", a, b)
	}
	if Equal(a, c) {
		t.Errorf("expected %s and %s to differ", a, c)
	}
	if Equal(I32, F32) {
		t.Error("i32 and f32 compare equal")
	}
}
