package llvm

import (
	"glulxc/src/ir/lir"
	"glulxc/src/ir/lir/types"
	"strings"
	"testing"
)

const llvmSample = `
@counter = internal global i32 0, align 4
@msg = private constant [3 x i8] c"hi\00"
@tab = global [2 x ptr] [ptr @msg, ptr getelementptr inbounds ([3 x i8], ptr @msg, i32 0, i32 1)]

declare i32 @printf(ptr, ...)
declare void @llvm.lifetime.start.p0(i64, ptr)

define i32 @count(i32 %n) {
entry:
  %p = alloca i32, align 4
  call void @llvm.lifetime.start.p0(i64 4, ptr %p)
  br label %loop
loop:
  %i = phi i32 [ 0, %entry ], [ %next, %loop ]
  %next = add i32 %i, 1
  %done = icmp uge i32 %next, %n
  br i1 %done, label %exit, label %loop
exit:
  %r = call i32 (ptr, ...) @printf(ptr @msg, i32 %next)
  ret i32 %r
}
`

// TestImport verifies the translation of a small LLVM module.
func TestImport(t *testing.T) {
	m, err := Import("sample.ll", []byte(llvmSample))
	if err != nil {
		t.Fatal(err)
	}

	if g := m.GetGlobal("counter"); g == nil || g.Linkage != lir.Internal || g.Align != 4 {
		t.Errorf("unexpected @counter: %v", g)
	}
	msg := m.GetGlobal("msg")
	if s, ok := msg.Init.(*lir.ConstString); !ok || string(s.V) != "hi\x00" || !msg.Constant {
		t.Errorf("unexpected @msg: %s", msg.Declaration())
	}
	tab := m.GetGlobal("tab").Init.(*lir.ConstArray)
	if s := tab.Elems[1].(*lir.ConstSymbol); s.Sym != lir.Value(msg) || s.Off != 1 {
		t.Errorf("unexpected constant gep %s", s.Name())
	}
	if m.GetFunction("llvm.lifetime.start.p0") != nil {
		t.Error("annotation intrinsics should not be imported")
	}

	f := m.GetFunction("count")
	if f == nil || len(f.Blocks()) != 3 {
		t.Fatalf("unexpected @count: %v", f)
	}
	entry := f.Blocks()[0].Instructions()
	if len(entry) != 2 || entry[0].Op != lir.OpAlloca || entry[1].Op != lir.OpBr {
		t.Errorf("expected lifetime call to be dropped, got %v", entry)
	}
	phi := f.Blocks()[1].Instructions()[0]
	if phi.Op != lir.OpPhi || !types.Equal(phi.Typ, types.I32) {
		t.Fatalf("expected phi, got %s", phi)
	}
	if next, ok := phi.Ops[1].(*lir.Instruction); !ok || next.Name() != "%next" {
		t.Errorf("forward reference of phi not resolved: %s", phi)
	}
	call := f.Blocks()[2].Instructions()[0]
	if call.CalledFunction() != m.GetFunction("printf") || len(call.Args()) != 2 {
		t.Errorf("unexpected call %s", call)
	}
}

// TestImportErrors verifies that malformed input is reported.
func TestImportErrors(t *testing.T) {
	if _, err := Import("bad.ll", []byte("define i32 @f( {")); err == nil || !strings.HasPrefix(err.Error(), "bad.ll") {
		t.Errorf("expected located parse error, got %v", err)
	}
}
