package glulx

import (
	"strings"
	"testing"
)

const iselSample = `
const private @msg: [3 x i8] = "hi\00"
declare @printf(ptr, ...): i32
declare @g(i32): i32
declare @k(ptr): i32
declare @llvm.memset.p0.i32(ptr, i8, i32, i1): void
declare @llvm.va_start(ptr): void

func @zero(): void {
entry:
	%p = alloca [16 x i8]
	call void @llvm.memset.p0.i32(ptr %p, i8 0, i32 16, i1 false)
	call void @llvm.memset.p0.i32(ptr %p, i8 7, i32 16, i1 false)
	ret void
}

func @vcall(%a: i32): i32 {
entry:
	%z = call i32 (ptr, ...): i32 @printf(ptr @msg, i32 %a, i32 5)
	ret i32 %z
}

func @vdef(%a: i32, ...): void {
entry:
	%ap = alloca ptr
	call void @llvm.va_start(ptr %ap)
	ret void
}

func @notail(%a: i32): i32 {
entry:
	%r = tail call i32 @g(i32 %a)
	%s = add i32 %r, 1
	ret i32 %s
}

func @frameptr(): i32 {
entry:
	%p = alloca i32
	%r = tail call i32 @k(ptr %p)
	ret i32 %r
}
`

// TestSelect verifies the machine instructions selected for intrinsics, variadic calls and tail call fallbacks.
func TestSelect(t *testing.T) {
	tests := []struct {
		name string
		exp  []string
		not  string
	}{
		{"zero", []string{"mzero 16 %fi0", "callfiii memset_ %fi0 7 16 0", "return 0"}, "call "},
		{"vcall", []string{"astore %fi0 0 %r0", "astore %fi0 1 5", "callfii printf_ _Lmsg_ %fi0 %r1", "return %r1"}, "PUSH"},
		{"vdef", []string{"ARGUMENT %r0 0", "ARGUMENT %r1 1", "astore %fi0 0 %r1"}, "callf"},
		{"notail", []string{"callfi g_ %r0 %r1", "add %r1 1"}, "tailcall"},
		{"frameptr", []string{"callfi k_ %fi0"}, "tailcall"},
	}
	for _, e1 := range tests {
		t.Run(e1.name, func(t *testing.T) {
			f := selectSource(t, iselSample, e1.name)
			text := f.String()
			i1 := 0
			for _, e2 := range e1.exp {
				i2 := strings.Index(text[i1:], e2)
				if i2 < 0 {
					t.Fatalf("missing %q in order in:\n%s", e2, text)
				}
				i1 += i2 + len(e2)
			}
			if strings.Contains(text, e1.not) {
				t.Errorf("unexpected %q in:\n%s", e1.not, text)
			}
		})
	}
}

// TestSelectBoolSigned verifies that i1 constants and registers are sign extended alike, true being -1.
func TestSelectBoolSigned(t *testing.T) {
	src := `
func @cmp(%x: i1): i32 {
entry:
	%c = icmp sge i1 %x, true
	br %c, %yes, %no
yes:
	ret i32 1
no:
	ret i32 0
}

func @conv(): f32 {
entry:
	%f = sitofp i1 true to f32
	ret f32 %f
}
`
	tests := []struct {
		name string
		exp  []string
		not  string
	}{
		{"cmp", []string{"neg %r0 %r1", "jge %r1 -1 "}, "jge %r1 1 "},
		{"conv", []string{"numtof -1 "}, "numtof 1 "},
	}
	for _, e1 := range tests {
		text := selectSource(t, src, e1.name).String()
		i1 := 0
		for _, e2 := range e1.exp {
			i2 := strings.Index(text[i1:], e2)
			if i2 < 0 {
				t.Fatalf("%s: missing %q in order in:\n%s", e1.name, e2, text)
			}
			i1 += i2 + len(e2)
		}
		if strings.Contains(text, e1.not) {
			t.Errorf("%s: unexpected %q in:\n%s", e1.name, e1.not, text)
		}
	}
}

// TestSelectNaNTestedOnce verifies that an operand compared to itself is tested for NaN once.
func TestSelectNaNTestedOnce(t *testing.T) {
	src := `
declare @llvm.fptosi.sat.i32.f32(f32): i32

func @uno(%x: f32): i32 {
entry:
	%c = fcmp uno f32 %x, %x
	br %c, %yes, %no
yes:
	ret i32 1
no:
	ret i32 0
}

func @sat(%x: f32): i32 {
entry:
	%r = call i32 @llvm.fptosi.sat.i32.f32(f32 %x)
	ret i32 %r
}
`
	for _, e1 := range []string{"uno", "sat"} {
		text := selectSource(t, src, e1).String()
		if n := strings.Count(text, "jisnan %r0 "); n != 1 {
			t.Errorf("%s: expected one NaN test, got %d in:\n%s", e1, n, text)
		}
	}
}

// TestSelectInfo verifies the signature recorded for a variadic function.
func TestSelectInfo(t *testing.T) {
	f := selectSource(t, iselSample, "vdef")
	if len(f.Info.Params) != 2 || f.Info.VarargBuffer == NoReg {
		t.Errorf("expected a vararg buffer parameter, got %v", f.Info.Params)
	}
	if len(f.Info.Results) != 0 {
		t.Errorf("expected no results, got %v", f.Info.Results)
	}
	if f.FrameSize() != 4 {
		t.Errorf("expected 4 byte frame, got %d", f.FrameSize())
	}
}

// TestSelectDiagnostics verifies that unsupported constructs are reported with the function name.
func TestSelectDiagnostics(t *testing.T) {
	tests := []struct {
		src string
		exp string
	}{
		{`func @wide(): i64 {
entry:
	ret i64 0
}`, "in function wide: Glulx can only return up to one value"},
		{`declare @llvm.va_start(ptr): void
func @va(): void {
entry:
	%ap = alloca ptr
	call void @llvm.va_start(ptr %ap)
	ret void
}`, "in function va: va_start in function without variable arguments"},
		{`func @big(%a: i32): i32 {
entry:
	%b = add i32 %a, 1
	%c = add i64 4294967296, 1
	ret i32 %b
}`, "in function big: value %c of type i64 not supported"},
		{`func @dyn(%a: i1): i32 {
entry:
	br %a, %x, %y
x:
	%p = alloca i32
	ret i32 0
y:
	ret i32 1
}`, "in function dyn: dynamic stack allocation not supported"},
	}
	for _, e1 := range tests {
		m := parseModule(t, e1.src)
		fns := m.Functions()
		f := fns[len(fns)-1]
		_, err := Select(m.Name, len(fns)-1, f)
		if err == nil {
			t.Errorf("%s: expected a diagnostic", f.Name())
			continue
		}
		if !strings.Contains(err.Error(), e1.exp) {
			t.Errorf("expected %q, got %q", e1.exp, err.Error())
		}
	}
}

// TestTailConditions verifies that every condition on its own rules out a tail call.
func TestTailConditions(t *testing.T) {
	if c := (tailConditions{}); !c.eligible() || len(c.reason()) > 0 {
		t.Fatal("a call without conditions must be eligible")
	}
	conds := []tailConditions{
		{Interrupt: true},
		{StackArgs: true},
		{IndirectArg: true},
		{CallerSRet: true},
		{CalleeSRet: true},
		{ExternWeak: true},
		{ByVal: true},
		{Variadic: true},
		{AllocaArg: true},
		{NotLast: true},
	}
	seen := make(map[string]bool, len(conds))
	for i1, e1 := range conds {
		if e1.eligible() {
			t.Errorf("condition %d does not rule out a tail call", i1)
		}
		seen[e1.reason()] = true
		all := e1
		all.NotLast = true
		all.Variadic = true
		if all.eligible() {
			t.Errorf("condition %d: adding conditions made the call eligible", i1)
		}
	}
	if len(seen) != len(conds) {
		t.Errorf("expected %d distinct reasons, got %d", len(conds), len(seen))
	}
}
