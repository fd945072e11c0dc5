package frontend

import (
	"errors"
	"glulxc/src/ir/lir"
	"glulxc/src/ir/lir/types"
	"strings"
	"testing"
)

const parserSample = `; module under test
global internal @counter: i32 = 0 align 4
const private @msg: [6 x i8] = "hello\00"
global @table: [2 x ptr] = [@msg, @later+4]
global common @buf: [16 x i8]
global @later: {i32, f32} = {7, 1.5}

declare @printf(ptr, ...): i32
declare fastcc @ext(ptr byval({i32, i32}) sret): void

func @sum(%n: i32): i32 {
entry:
	%p = alloca i32, align 4
	store i32 0, %p
	br %loop
loop:
	%i = phi i32 [0, %entry], [%next, %loop]
	%acc = load i32, %p, align 4
	%acc2 = add i32 %acc, %i
	store i32 %acc2, %p
	%next = add i32 %i, 1
	%done = icmp uge i32 %next, %n
	br %done, %exit, %loop
exit:
	%r = load i32, %p
	%z = call i32 (ptr, ...): i32 @printf(ptr @msg, i32 %r)
	switch i32 %r, %exit2 [ 1: %exit2, -3: %exit2 ]
exit2:
	ret i32 %r
}
`

// TestParse verifies that a sample module is parsed into the expected entities.
func TestParse(t *testing.T) {
	m, err := Parse("sample.lir", parserSample)
	if err != nil {
		t.Fatal(err)
	}

	if g := m.GetGlobal("counter"); g == nil || g.Linkage != lir.Internal || g.Align != 4 {
		t.Errorf("unexpected @counter: %v", g)
	}
	msg := m.GetGlobal("msg")
	if msg == nil || !msg.Constant || msg.Linkage != lir.Private {
		t.Fatalf("unexpected @msg: %v", msg)
	}
	if s, ok := msg.Init.(*lir.ConstString); !ok || string(s.V) != "hello\x00" {
		t.Errorf("unexpected @msg initialiser %v", msg.Init)
	}
	table := m.GetGlobal("table").Init.(*lir.ConstArray)
	if sym := table.Elems[1].(*lir.ConstSymbol); sym.Sym != m.GetGlobal("later") || sym.Off != 4 {
		t.Errorf("forward symbol reference not resolved: %s", sym.Name())
	}
	if m.GetGlobal("buf").Linkage != lir.Common {
		t.Error("expected common linkage of @buf")
	}

	ext := m.GetFunction("ext")
	if ext == nil || !ext.IsDeclaration() || ext.CallConv != lir.CallConvFast {
		t.Fatalf("unexpected @ext: %v", ext)
	}
	if a := ext.Params()[0].Attrs; a.ByVal == nil || !a.SRet {
		t.Errorf("unexpected attributes of @ext: %+v", a)
	}
	if !m.GetFunction("printf").IsVariadic() {
		t.Error("@printf should be variadic")
	}

	f := m.GetFunction("sum")
	if len(f.Blocks()) != 4 {
		t.Fatalf("expected 4 basic blocks, got %d", len(f.Blocks()))
	}
	loop := f.Blocks()[1]
	phi := loop.Instructions()[0]
	if phi.Op != lir.OpPhi || len(phi.Ops) != 2 {
		t.Fatalf("expected phi with 2 incoming values, got %s", phi)
	}
	if next, ok := phi.Ops[1].(*lir.Instruction); !ok || next.Name() != "%next" {
		t.Errorf("phi forward reference not resolved: %s", phi.Ops[1].Name())
	}
	if phi.Pos.Line != 17 || phi.Pos.Col != 2 {
		t.Errorf("unexpected phi position %+v", phi.Pos)
	}
	exit := f.Blocks()[2]
	call := exit.Instructions()[1]
	if call.Op != lir.OpCall || call.CalledFunction() != m.GetFunction("printf") || !call.Sig.Variadic {
		t.Errorf("unexpected call %s", call)
	}
	sw := exit.Terminator()
	if sw.Op != lir.OpSwitch || len(sw.Cases) != 2 || sw.Cases[1].V != -3 {
		t.Errorf("unexpected switch %s", sw)
	}
}

// TestParseRoundTrip verifies that printing a parsed module yields text that parses to the same text.
func TestParseRoundTrip(t *testing.T) {
	m1, err := Parse("sample.lir", parserSample)
	if err != nil {
		t.Fatal(err)
	}
	s1 := m1.String()
	m2, err := Parse("sample.lir", s1)
	if err != nil {
		t.Fatalf("reparse failed: %s\n%s", err, s1)
	}
	if s2 := m2.String(); s1 != s2 {
		t.Errorf("round trip mismatch:\n%s\n---\n%s", s1, s2)
	}
}

// TestParseErrors verifies that malformed modules produce located syntax errors.
func TestParseErrors(t *testing.T) {
	tests := []struct {
		src  string
		line int
		msg  string
	}{
		{src: "global @g: i32 = 1\nglobal @g: i32", line: 2, msg: "redefinition of @g"},
		{src: "func @f(): void {\nentry:\n\tbr %nowhere\n}", line: 3, msg: "undefined basic block"},
		{src: "func @f(): i32 {\nentry:\n\tret i32 %x\n}", line: 3, msg: "undefined value %x"},
		{src: "func @f(%a: i32): void {\nentry:\n\t%b = fadd i32 %a, %a\n\tret void\n}", line: 3, msg: "floating point"},
		{src: "func @f(): void {\nentry:\n\t%b = frob i32 1, 2\n}", line: 3, msg: "unknown instruction"},
		{src: "func @f(%p: ptr, %i: i32): void {\nentry:\n\t%q = gep {i32, i32}, %p, i32 0, i32 %i\n\tret void\n}",
			line: 3, msg: "struct index %i is not a valid field of {i32, i32}"},
		{src: "global @g: ptr = @missing", line: 1, msg: "undefined symbol @missing"},
		{src: "global @g: [2 x i8] = \"abc\"", line: 1, msg: "string literal of 3 bytes"},
		{src: "bogus", line: 1, msg: "expected global, const, declare or func"},
	}
	for _, e1 := range tests {
		_, err := Parse("bad.lir", e1.src)
		if err == nil {
			t.Errorf("%q: expected error", e1.src)
			continue
		}
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Errorf("%q: expected SyntaxError, got %T", e1.src, err)
			continue
		}
		if se.Line != e1.line || !strings.Contains(se.Msg, e1.msg) {
			t.Errorf("%q: expected error at line %d containing %q, got %s", e1.src, e1.line, e1.msg, se)
		}
	}
}

// TestDecodeString verifies the decoding of string literal escapes.
func TestDecodeString(t *testing.T) {
	tests := []struct {
		in  string
		out []byte
	}{
		{in: "plain", out: []byte("plain")},
		{in: `a\0Ab`, out: []byte{'a', '\n', 'b'}},
		{in: `\22\5C`, out: []byte{'"', '\\'}},
		{in: `\\`, out: []byte{'\\'}},
	}
	for _, e1 := range tests {
		res, err := decodeString(e1.in)
		if err != nil {
			t.Errorf("%q: %s", e1.in, err)
			continue
		}
		if string(res) != string(e1.out) {
			t.Errorf("%q: expected %q, got %q", e1.in, e1.out, res)
		}
	}
	if _, err := decodeString(`\G1`); err == nil {
		t.Error("expected error for invalid escape")
	}
}

// TestParseBuilderAgreement verifies that a function built with the lir builders prints as parseable LIR.
func TestParseBuilderAgreement(t *testing.T) {
	m := lir.CreateModule("built")
	f := m.CreateFunction("twice", &types.FuncType{Ret: types.I32, Params: []types.Type{types.I32}})
	b := f.CreateBlock("entry")
	x := b.CreateBinary(lir.OpShl, f.Params()[0], lir.ConstI32(1))
	b.CreateReturn(x)

	m2, err := Parse("built.lir", m.String())
	if err != nil {
		t.Fatalf("%s\n%s", err, m)
	}
	insts := m2.GetFunction("twice").Entry().Instructions()
	if len(insts) != 2 || insts[0].Op != lir.OpShl {
		t.Errorf("unexpected parse of built function:\n%s", m2)
	}
}
