package glulx

import (
	"bytes"
	"errors"
	"fmt"
	"glulxc/src/frontend"
	"glulxc/src/ir/lir"
	"glulxc/src/util"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"
)

// ---------------------
// ----- Functions -----
// ---------------------

// parseModule parses LIR source text or fails the test.
func parseModule(t testing.TB, src string) *lir.Module {
	t.Helper()
	m, err := frontend.Parse("test.lir", src)
	if err != nil {
		t.Fatalf("parse error: %s", err)
	}
	return m
}

// compileSource runs all stages on function name of the module in src.
func compileSource(t testing.TB, opt util.Options, src, name string) *Function {
	t.Helper()
	m := parseModule(t, src)
	for i1, e1 := range m.Functions() {
		if e1.Symbol() != name {
			continue
		}
		f, err := CompileFunction(opt, m.Name, i1, e1)
		if err != nil {
			t.Fatalf("compile error: %s", err)
		}
		return f
	}
	t.Fatalf("no function %s", name)
	return nil
}

// selectSource selects function name of the module in src without running the later stages.
func selectSource(t testing.TB, src, name string) *Function {
	t.Helper()
	m := parseModule(t, src)
	for i1, e1 := range m.Functions() {
		if e1.Symbol() == name {
			f, err := Select(m.Name, i1, e1)
			if err != nil {
				t.Fatalf("selection error: %s", err)
			}
			return f
		}
	}
	t.Fatalf("no function %s", name)
	return nil
}

// normalise collapses the white space of an assembly line to single spaces.
func normalise(line string) string {
	return strings.Join(strings.Fields(line), " ")
}

// expectLines checks that every line of exp occurs in text, in order. Lines are compared with white space
// collapsed; lines in between are ignored.
func expectLines(t testing.TB, text string, exp []string) {
	t.Helper()
	got := strings.Split(text, "\n")
	i1 := 0
	for _, e1 := range exp {
		want := normalise(e1)
		if len(want) == 0 {
			continue
		}
		for i1 < len(got) && normalise(got[i1]) != want {
			i1++
		}
		if i1 == len(got) {
			t.Errorf("missing line %q in order; output:\n%s", want, text)
			return
		}
		i1++
	}
}

// archiveOptions reads compiler options from the "flags:" line of an archive comment.
func archiveOptions(comment []byte) util.Options {
	opt := util.Options{Threads: 1}
	for _, e1 := range strings.Split(string(comment), "\n") {
		rest, ok := strings.CutPrefix(strings.TrimSpace(e1), "flags:")
		if !ok {
			continue
		}
		for _, e2 := range strings.Fields(rest) {
			switch e2 {
			case "-O0":
				opt.NoOpt = true
			case "-color":
				opt.Color = true
			}
		}
	}
	return opt
}

// TestGolden compiles the input.lir file of every archive in testdata and checks that the lines of want.asm occur
// in the output in order.
func TestGolden(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.txtar"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatal("no golden files")
	}
	for _, e1 := range files {
		t.Run(strings.TrimSuffix(filepath.Base(e1), ".txtar"), func(t *testing.T) {
			ar, err := txtar.ParseFile(e1)
			if err != nil {
				t.Fatal(err)
			}
			var src, want []byte
			for _, e2 := range ar.Files {
				switch e2.Name {
				case "input.lir":
					src = e2.Data
				case "want.asm":
					want = e2.Data
				}
			}
			if src == nil || want == nil {
				t.Fatalf("%s needs input.lir and want.asm", e1)
			}
			m := parseModule(t, string(src))
			text, _, err := Compile(archiveOptions(ar.Comment), m)
			if err != nil {
				t.Fatalf("compile error: %s", err)
			}
			expectLines(t, text, strings.Split(string(want), "\n"))
		})
	}
}

// loopTemplate is a function with a frame, a loop and a global store. %d is replaced by the function number.
const loopTemplate = `
func @f%d(%%a: i32, %%b: i32): i32 {
entry:
	%%p = alloca [4 x i32], align 4
	%%q = gep [4 x i32], %%p, i32 0, i32 %%a
	store i32 %%b, %%q
	%%c = icmp slt i32 %%a, %%b
	br %%c, %%loop, %%exit
loop:
	%%i = phi i32 [%%a, %%entry], [%%n, %%loop]
	%%n = add i32 %%i, 1
	%%d = icmp ne i32 %%n, %%b
	br %%d, %%loop, %%exit
exit:
	%%r = phi i32 [0, %%entry], [%%n, %%loop]
	%%v = load i32, %%q
	%%s = add i32 %%r, %%v
	store i32 %%s, @total
	ret i32 %%s
}
`

// TestCompileDeterministic verifies that the output does not depend on the number of threads.
func TestCompileDeterministic(t *testing.T) {
	sb := strings.Builder{}
	sb.WriteString("global @total: i32 = 5\n")
	for i1 := 0; i1 < 12; i1++ {
		sb.WriteString(fmt.Sprintf(loopTemplate, i1))
	}
	src := sb.String()

	ref := make(map[bool]string, 2)
	for _, e1 := range []int{1, 2, 4, 8} {
		for _, e2 := range []bool{false, true} {
			opt := util.Options{Threads: e1, Color: e2}
			text, infos, err := Compile(opt, parseModule(t, src))
			if err != nil {
				t.Fatalf("threads=%d: %s", e1, err)
			}
			if len(infos) != 12 || infos[3].Name != "f3" {
				t.Fatalf("threads=%d: unexpected info records", e1)
			}
			if prev, ok := ref[e2]; !ok {
				ref[e2] = text
			} else if text != prev {
				t.Errorf("threads=%d, color=%t: output differs from sequential output", e1, e2)
			}
		}
	}
}

const diagnosticsSample = `
global @ok: i32 = 1

func @first(%n: i32): i32 {
entry:
	%p = alloca i32, count i32 %n
	ret i32 0
}

func @second(%a: ptr): void {
entry:
	indirectbr %a, [%x]
x:
	ret void
}

func @fine(%a: i32): i32 {
entry:
	ret i32 %a
}

declare @g(i32): i32

func @third(%a: i32): i32 {
entry:
	%r = musttail call i32 @g(i32 %a)
	%s = add i32 %r, 1
	ret i32 %s
}

func ghccc @fourth(): void {
entry:
	ret void
}

global @label: ptr = blockaddress(@first, %entry)
`

// TestCompileDiagnostics verifies that the diagnostics of all functions and globals are reported together, in
// module order, and that no assembly is produced.
func TestCompileDiagnostics(t *testing.T) {
	m := parseModule(t, diagnosticsSample)
	text, infos, err := Compile(util.Options{Threads: 4}, m)
	if err == nil {
		t.Fatal("expected diagnostics")
	}
	if len(text) > 0 || infos != nil {
		t.Error("expected no output on error")
	}
	exp := []string{
		"in function first: dynamic stack allocation not supported",
		"in function second: indirect branches not supported",
		"in function third: failed to perform tail call elimination on a call site marked musttail: call is not in tail position",
		"in function fourth: unsupported calling convention ghccc",
		"global label: block address initialiser not supported",
	}
	msg := err.Error()
	last := -1
	for _, e1 := range exp {
		i1 := strings.Index(msg, e1)
		if i1 < 0 {
			t.Errorf("missing diagnostic %q in:\n%s", e1, msg)
			continue
		}
		if i1 < last {
			t.Errorf("diagnostic %q out of order", e1)
		}
		last = i1
	}
	if strings.Contains(msg, "fine") {
		t.Errorf("unexpected diagnostic for @fine:\n%s", msg)
	}
	var d *Diagnostic
	if !errors.As(err, &d) {
		t.Errorf("expected a *Diagnostic in %T", err)
	}
}

// TestCompileZeroSizeAlloca verifies that an alloca of zero bytes gets a one byte frame.
func TestCompileZeroSizeAlloca(t *testing.T) {
	src := `
declare @k(ptr): i32

func @empty(): i32 {
entry:
	%p = alloca [0 x i8]
	%r = call i32 @k(ptr %p)
	ret i32 %r
}
`
	f := compileSource(t, util.Options{}, src, "empty")
	expectLines(t, f.String(), []string{"malloc 1 $0", "callfi k_ $0 $1", "mfree $0", "return $1"})
	if f.Info.FrameSize != 1 {
		t.Errorf("expected a 1 byte frame, got %d", f.Info.FrameSize)
	}
}

// TestCompileParameterLocals verifies that three parameters and one body register make four locals.
func TestCompileParameterLocals(t *testing.T) {
	src := `
func @three(%a: i32, %b: i32, %c: i32): i32 {
entry:
	%s = add i32 %a, %b
	%z = icmp eq i32 %c, 0
	br %z, %x, %y
x:
	ret i32 %s
y:
	ret i32 %c
}
`
	f := compileSource(t, util.Options{}, src, "three")
	if NumLocals(f) != 4 || len(f.Info.Locals) != 4 || len(f.Info.Params) != 3 {
		t.Fatalf("expected 4 locals for 3 parameters, got %d: %v", NumLocals(f), f.Info.Locals)
	}
	expectLines(t, f.String(), []string{"MAKE_LFUNC 4", "add $0 $1 $3", "jz $2 _LBB0_1_", "return $3", "return $2"})
}

// TestCompileFunctionInfo verifies the info record of a compiled function and its YAML dump.
func TestCompileFunctionInfo(t *testing.T) {
	src := `
func @mix(%a: i32, %x: f32, %b: i8): f32 {
entry:
	%p = alloca i32, align 4
	store i32 %a, %p
	%f = sitofp i8 %b to f32
	%s = fadd f32 %f, %x
	ret f32 %s
}
`
	f := compileSource(t, util.Options{}, src, "mix")
	info := f.Info
	if fmt.Sprint(info.Params) != "[i32 f32 i32]" || fmt.Sprint(info.Results) != "[f32]" {
		t.Errorf("unexpected signature %v -> %v", info.Params, info.Results)
	}
	if len(info.Locals) != NumLocals(f) || len(info.Locals) < 3 {
		t.Fatalf("expected %d locals, got %v", NumLocals(f), info.Locals)
	}
	if info.Locals[1] != "f32" {
		t.Errorf("parameter local 1 should be f32, got %v", info.Locals)
	}
	if info.FrameSize != 4 || info.FrameAlign != 4 || info.FrameBaseLocal < 3 {
		t.Errorf("unexpected frame: %d bytes, align %d, base local %d", info.FrameSize, info.FrameAlign,
			info.FrameBaseLocal)
	}
	if info.Locals[info.FrameBaseLocal] != "i32" {
		t.Errorf("frame base local should be i32, got %s", info.Locals[info.FrameBaseLocal])
	}

	buf := bytes.Buffer{}
	if err := WriteInfo(&buf, "test.lir", []*FunctionInfo{info}); err != nil {
		t.Fatal(err)
	}
	for _, e1 := range []string{"module: test.lir", "- name: mix", "params: [i32, f32, i32]", "frame-size: 4"} {
		if !strings.Contains(buf.String(), e1) {
			t.Errorf("missing %q in info dump:\n%s", e1, buf.String())
		}
	}
}
