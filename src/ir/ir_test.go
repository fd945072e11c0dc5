package ir

import (
	"errors"
	"glulxc/src/frontend"
	"glulxc/src/ir/lir"
	"glulxc/src/ir/lir/types"
	"glulxc/src/util"
	"strings"
	"testing"
)

const divisionSample = `
func @div(%a: i32, %b: i8, %c: i32, %n: i32): i32 {
entry:
	%za = zext i8 %b to i32
	%h = lshr i32 %a, 1
	%d1 = udiv i32 %h, %za
	%d2 = udiv i32 %a, 3
	%m = and i32 %c, 255
	%r1 = urem i32 %m, 7
	%r2 = urem i32 %m, -1
	%s = udiv i32 %a, 2
	%q = udiv i32 %s, %m
	%x = xor i32 %m, %a
	%d3 = udiv i32 %x, 5
	%y = or i32 %m, %h
	%r3 = urem i32 %y, %za
	br %loop
loop:
	%i = phi i32 [0, %entry], [%next, %loop]
	%next = add i32 %i, 1
	%d4 = udiv i32 %i, 3
	%done = icmp uge i32 %next, %n
	br %done, %exit, %loop
exit:
	%c1 = icmp eq i32 %a, 0
	%sel = select %c1, i32 %m, %za
	%d5 = udiv i32 %sel, %h
	%sel2 = select %c1, i32 %m, %a
	%d6 = udiv i32 %sel2, %h
	%narrow = udiv i8 %b, 3
	ret i32 %q
}
`

// TestRewriteUnsignedDivision verifies that only udiv and urem instructions with operands of provably zero sign bit
// are rewritten.
func TestRewriteUnsignedDivision(t *testing.T) {
	m, err := frontend.Parse("div.lir", divisionSample)
	if err != nil {
		t.Fatal(err)
	}
	f := m.GetFunction("div")
	n := RewriteUnsignedDivision(f)

	exp := map[string]lir.Opcode{
		"%d1":     lir.OpSDiv, // lshr by 1, zext from i8.
		"%d2":     lir.OpUDiv, // Parameter of unknown sign.
		"%r1":     lir.OpSRem, // Masked to 8 bits.
		"%r2":     lir.OpURem, // Divisor has sign bit set.
		"%s":      lir.OpUDiv,
		"%q":      lir.OpSDiv, // Unsigned division by 2 clears the sign bit.
		"%d3":     lir.OpUDiv, // xor with unknown operand.
		"%r3":     lir.OpSRem, // or of two known non-negative values.
		"%d4":     lir.OpUDiv, // Loop phi: the increment is not known non-negative.
		"%d5":     lir.OpSDiv, // select of two non-negative values.
		"%d6":     lir.OpUDiv,
		"%narrow": lir.OpUDiv, // i8 parameter of unknown sign.
	}
	got := 0
	for _, e1 := range f.Blocks() {
		for _, e2 := range e1.Instructions() {
			op, ok := exp[e2.Name()]
			if !ok {
				continue
			}
			got++
			if e2.Op != op {
				t.Errorf("%s: expected %s, got %s", e2.Name(), op, e2.Op)
			}
		}
	}
	if got != len(exp) {
		t.Errorf("expected %d division instructions, found %d", len(exp), got)
	}
	if n != 5 {
		t.Errorf("expected 5 rewrites, got %d", n)
	}

	// Rewriting is idempotent.
	if n := RewriteUnsignedDivision(f); n != 0 {
		t.Errorf("expected no rewrites on second run, got %d", n)
	}
}

// TestSignBitZeroSound checks that every constant pair accepted by SignBitZero divides identically as signed and
// unsigned operands.
func TestSignBitZeroSound(t *testing.T) {
	accepted, rejected := 0, 0
	for a := -128; a < 128; a++ {
		ca := lir.CreateConstInt(types.I8, int64(a))
		for b := -128; b < 128; b++ {
			cb := lir.CreateConstInt(types.I8, int64(b))
			if b == 0 {
				continue
			}
			if !SignBitZero(ca) || !SignBitZero(cb) {
				rejected++
				continue
			}
			accepted++
			ua, ub := uint8(a), uint8(b)
			sa, sb := int8(a), int8(b)
			if uint8(sa/sb) != ua/ub || uint8(sa%sb) != ua%ub {
				t.Fatalf("%d, %d: signed and unsigned division differ", a, b)
			}
		}
	}
	if accepted != 128*127 || rejected == 0 {
		t.Errorf("unexpected classification: %d accepted, %d rejected", accepted, rejected)
	}
	if SignBitZero(lir.CreateConstInt(types.I1, 1)) {
		t.Error("i1 true has its sign bit set")
	}
}

// TestOptimiseNoOpt verifies that -O0 disables the rewrite.
func TestOptimiseNoOpt(t *testing.T) {
	m, err := frontend.Parse("div.lir", divisionSample)
	if err != nil {
		t.Fatal(err)
	}
	if err := Optimise(util.Options{NoOpt: true, Threads: 1}, m); err != nil {
		t.Fatal(err)
	}
	if n := RewriteUnsignedDivision(m.GetFunction("div")); n != 5 {
		t.Errorf("expected the rewrite to be left to the second run, got %d rewrites", n)
	}
}

// TestValidate verifies that a well formed module passes validation sequentially and in parallel.
func TestValidate(t *testing.T) {
	src := divisionSample + strings.ReplaceAll(divisionSample, "@div", "@div2") +
		strings.ReplaceAll(divisionSample, "@div", "@div3")
	m, err := frontend.Parse("div.lir", src)
	if err != nil {
		t.Fatal(err)
	}
	for _, e1 := range []int{1, 2, 8} {
		if err := Validate(util.Options{Threads: e1}, m); err != nil {
			t.Errorf("threads %d: unexpected error: %s", e1, err)
		}
	}
}

// TestValidateErrors verifies that malformed functions are reported in module order.
func TestValidateErrors(t *testing.T) {
	m := lir.CreateModule("bad")
	sig := &types.FuncType{Ret: types.I32, Params: []types.Type{types.I32}}

	// Unterminated block.
	f0 := m.CreateFunction("unterminated", sig)
	f0.CreateBlock("entry").CreateBinary(lir.OpAdd, f0.Params()[0], lir.ConstI32(1))

	// Phi without an incoming value from one predecessor.
	f1 := m.CreateFunction("phi", sig)
	e := f1.CreateBlock("entry")
	l := f1.CreateBlock("loop")
	x := f1.CreateBlock("exit")
	e.CreateBranch(l)
	phi := l.CreatePhi(types.I32)
	phi.AddIncoming(lir.ConstI32(0), e)
	l.CreateCondBranch(l.CreateICmp(lir.IntEQ, phi, lir.ConstI32(3)), x, l)
	x.CreateReturn(phi)

	// Return type mismatch.
	f2 := m.CreateFunction("ret", sig)
	ret := f2.CreateBlock("entry").CreateReturn(f2.Params()[0])
	ret.SetOperand(0, lir.CreateConstInt(types.I8, 1))

	// Operand defined in another function.
	f3 := m.CreateFunction("foreign", sig)
	f3.CreateBlock("entry").CreateReturn(f0.Blocks()[0].Instructions()[0])

	// Branch into another function.
	f4 := m.CreateFunction("branch", sig)
	f4.CreateBlock("entry").CreateBranch(f1.Blocks()[1])

	// Loop back into the entry block.
	f5 := m.CreateFunction("loop", sig)
	e5 := f5.CreateBlock("entry")
	e5.CreateBranch(e5)

	// Declarations are not validated.
	m.CreateFunction("decl", sig)

	exp := []string{
		"@unterminated: basic block %entry is not terminated",
		"@phi: phi %t3 has 1 incoming values, block %loop has 2 predecessors",
		"@ret: ret i8 in function returning i32",
		"@foreign: operand %t1 is not defined in the function",
		"@branch: br refers to basic block %loop outside of the function",
		"@loop: entry block %entry has predecessors",
	}
	for _, e1 := range []int{1, 3} {
		err := Validate(util.Options{Threads: e1}, m)
		if err == nil {
			t.Fatalf("threads %d: expected errors", e1)
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("threads %d: expected a ValidationError, got %T", e1, err)
		}
		lines := strings.Split(err.Error(), "\n")
		if len(lines) != len(exp) {
			t.Fatalf("threads %d: expected %d errors, got %d:\n%s", e1, len(exp), len(lines), err)
		}
		for i1, e2 := range exp {
			if !strings.HasSuffix(lines[i1], e2) {
				t.Errorf("threads %d: error %d: expected %q, got %q", e1, i1, e2, lines[i1])
			}
		}
	}
}
