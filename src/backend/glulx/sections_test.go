package glulx

import (
	"glulxc/src/ir/lir"
	"glulxc/src/ir/lir/types"
	"math"
	"testing"
)

// TestSections verifies label continuation, section order and the line closed on a section switch.
func TestSections(t *testing.T) {
	ss := NewSections()
	ss.Line("; Preamble:")
	ss.Switch(BSS)
	ss.Label("z")
	ss.Line("\t!allot\t4")
	ss.Switch(RAM)
	ss.Label("a")
	ss.Label("b")
	ss.Line("\t!data\t1")
	ss.Label("c")
	ss.Switch(ROM)
	ss.Label("f")
	ss.Line("\t!lfunc 0")
	if ss.Current() != ROM {
		t.Errorf("expected rom, got %s", ss.Current())
	}

	exp := "; Preamble:\n:f_\t!lfunc 0\n" +
		"\n!ram\n" +
		":a_\n:b_\t!data\t1\n:c_\n" +
		"\n!bss\n" +
		":z_\t!allot\t4\n"
	if s := ss.Finish(); s != exp {
		t.Errorf("expected:\n%q\ngot:\n%q", exp, s)
	}

	defer func() {
		if recover() == nil {
			t.Error("expected a panic on write after Finish")
		}
	}()
	ss.Line("nop")
}

// TestPrintInt verifies the directive chosen for every integer width.
func TestPrintInt(t *testing.T) {
	tests := []struct {
		v    int64
		size int
		exp  string
	}{
		{-1, 1, "\t!datab\t255\n"},
		{-1, 2, "\t!datas\t65535\n"},
		{-1, 4, "\t!data\t-1\n"},
		{0x100000002, 8, "\t!data\t1\n\t!data\t2\n"},
	}
	for _, e1 := range tests {
		ss := NewSections()
		printInt(ss, e1.v, e1.size)
		if s := ss.buf[ROM].String(); s != e1.exp {
			t.Errorf("printInt(%d, %d) = %q, expected %q", e1.v, e1.size, s, e1.exp)
		}
	}
}

// TestPrintAggregateZeros verifies that runs of zero elements are merged into one directive.
func TestPrintAggregateZeros(t *testing.T) {
	arr := &types.ArrayType{Elem: types.I32, Len: 5}
	c := &lir.ConstArray{Typ: arr, Elems: []lir.Constant{
		lir.CreateConstInt(types.I32, 0),
		lir.CreateConstInt(types.I32, 3),
		lir.CreateConstInt(types.I32, 0),
		&lir.ConstZero{Typ: types.I32},
		lir.CreateConstInt(types.I32, 0),
	}}
	ss := NewSections()
	printConstant(ss, c, arr)
	exp := "\t!zero 4\n\t!data\t3\n\t!zero 12\n"
	if s := ss.buf[ROM].String(); s != exp {
		t.Errorf("expected %q, got %q", exp, s)
	}
}

// TestGlobalSection verifies the placement of globals.
func TestGlobalSection(t *testing.T) {
	m := lir.CreateModule("t")
	arr := &types.ArrayType{Elem: types.I8, Len: 2}
	rom := m.CreateGlobal("rom", arr, &lir.ConstString{Typ: arr, V: []byte{1, 0}})
	rom.Constant = true
	ram := m.CreateGlobal("ram", types.I32, lir.CreateConstInt(types.I32, 1))
	bss := m.CreateGlobal("bss", arr, &lir.ConstString{Typ: arr, V: []byte{0, 0}})
	com := m.CreateGlobal("com", types.I32, nil)
	com.Linkage = lir.Common
	flt := m.CreateGlobal("flt", types.F32, lir.CreateConstFloat(types.F32, math.Copysign(0, -1)))

	tests := []struct {
		g   *lir.Global
		exp Section
	}{
		{rom, ROM},
		{ram, RAM},
		{bss, BSS},
		{com, BSS},
		{flt, RAM},
	}
	for _, e1 := range tests {
		if s := globalSection(e1.g); s != e1.exp {
			t.Errorf("%s: expected %s, got %s", e1.g.Name(), e1.exp, s)
		}
	}
}
