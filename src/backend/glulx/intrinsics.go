package glulx

import (
	"glulxc/src/ir/lir"
	"glulxc/src/ir/lir/types"
	"strings"
)

// -------------------
// ----- Globals -----
// -------------------

// floatMath maps the float math intrinsics with a Glulx instruction.
var floatMath = map[string]Opcode{
	"llvm.ceil":  OpCeil,
	"llvm.floor": OpFloor,
	"llvm.sqrt":  OpSqrt,
	"llvm.exp":   OpExp,
	"llvm.log":   OpLog,
	"llvm.sin":   OpSin,
	"llvm.cos":   OpCos,
	"llvm.pow":   OpPow,
}

// ignoredIntrinsics have no effect on the generated code.
var ignoredIntrinsics = []string{
	"llvm.lifetime",
	"llvm.dbg",
	"llvm.assume",
	"llvm.donothing",
	"llvm.experimental.noalias.scope.decl",
}

// ---------------------
// ----- Functions -----
// ---------------------

// isIntrinsic reports whether calls of function name are lowered inline.
func isIntrinsic(name string) bool {
	return strings.HasPrefix(name, "llvm.") || strings.HasPrefix(name, "glulx.")
}

// intrinsicBase strips the type suffixes of an overloaded intrinsic name, such as llvm.memcpy.p0.p0.i32, down to
// the first known base name.
func intrinsicBase(name string) string {
	for _, e1 := range [...]string{
		"llvm.memcpy", "llvm.memmove", "llvm.memset", "llvm.fptosi.sat", "llvm.ctpop", "llvm.ctlz", "llvm.cttz",
		"llvm.bswap", "llvm.fabs", "llvm.stacksave", "llvm.stackrestore", "llvm.va_start", "llvm.va_end",
		"llvm.va_copy",
	} {
		if name == e1 || strings.HasPrefix(name, e1+".") {
			return e1
		}
	}
	for k := range floatMath {
		if name == k || strings.HasPrefix(name, k+".") {
			return k
		}
	}
	for _, e1 := range ignoredIntrinsics {
		if name == e1 || strings.HasPrefix(name, e1+".") {
			return e1
		}
	}
	return name
}

// lowerIntrinsic lowers a call of an llvm.* or glulx.* intrinsic.
func (s *selector) lowerIntrinsic(in *lir.Instruction, name string) {
	args := in.Args()
	base := intrinsicBase(name)
	for _, e1 := range ignoredIntrinsics {
		if base == e1 {
			return
		}
	}
	if op, ok := floatMath[base]; ok {
		ops := make([]Operand, 0, 3)
		for _, e1 := range args {
			ops = append(ops, s.operand(e1))
		}
		s.emit(op, append(ops, RegOp(s.def(in)))...)
		return
	}

	switch base {
	case "llvm.memcpy", "llvm.memmove":
		s.emit(OpMcopy, s.length(args[2]), s.operand(args[1]), s.operand(args[0]))
	case "llvm.memset":
		if c, ok := args[1].(*lir.ConstInt); ok && c.V == 0 {
			s.emit(OpMzero, s.length(args[2]), s.operand(args[0]))
			return
		}
		s.libCall("memset", DiscardOp(), s.operand(args[0]), s.operand(args[1]), s.length(args[2]))
	case "llvm.trap":
		s.emit(OpQuit)
		s.done = true
	case "llvm.debugtrap":
		s.emit(OpDebugtrap, ImmOp(0))
	case "llvm.stacksave", "llvm.stackrestore":
		s.errorf("dynamic stack allocation not supported")
	case "llvm.fptosi.sat":
		s.lowerFPToSISat(in)
	case "llvm.va_start":
		if s.f.Info.VarargBuffer == NoReg {
			s.errorf("va_start in function without variable arguments")
			return
		}
		s.emit(OpAstore, s.operand(args[0]), ImmOp(0), RegOp(s.f.Info.VarargBuffer))
	case "llvm.va_end":
	case "llvm.va_copy":
		t := s.newReg(types.Ptr)
		s.emit(OpAload, s.operand(args[1]), ImmOp(0), RegOp(t))
		s.emit(OpAstore, s.operand(args[0]), ImmOp(0), RegOp(t))
	case "llvm.fabs":
		s.emit(OpBitAnd, s.operand(args[0]), ImmOp(0x7fffffff), RegOp(s.def(in)))
	case "llvm.ctpop":
		s.libCall("__popcountsi2", RegOp(s.def(in)), s.operand(args[0]))
	case "llvm.ctlz":
		w := types.Bits(in.Typ)
		if w >= 32 {
			s.libCall("__clzsi2", RegOp(s.def(in)), s.operand(args[0]))
			return
		}
		t := s.newReg(types.I32)
		s.libCall("__clzsi2", RegOp(t), s.operand(args[0]))
		s.emit(OpSub, RegOp(t), ImmOp(int64(32-w)), RegOp(s.def(in)))
	case "llvm.cttz":
		w := types.Bits(in.Typ)
		if w >= 32 {
			s.libCall("__ctzsi2", RegOp(s.def(in)), s.operand(args[0]))
			return
		}
		t := s.newReg(types.I32)
		s.emit(OpBitOr, s.operand(args[0]), ImmOp(int64(1)<<w), RegOp(t))
		s.libCall("__ctzsi2", RegOp(s.def(in)), RegOp(t))
	case "llvm.bswap":
		switch types.Bits(in.Typ) {
		case 32:
			s.libCall("__bswapsi2", RegOp(s.def(in)), s.operand(args[0]))
		case 16:
			t := s.newReg(types.I32)
			s.libCall("__bswapsi2", RegOp(t), s.operand(args[0]))
			s.emit(OpUShiftR, RegOp(t), ImmOp(16), RegOp(s.def(in)))
		default:
			s.errorf("bswap of type %s not supported", in.Typ)
		}
	case "glulx.catch":
		s.lowerCatch(in)
	case "glulx.throw":
		s.emit(OpThrow, s.operand(args[0]), s.operand(args[1]))
		s.done = true
	default:
		s.errorf("unsupported intrinsic %s", name)
	}
}

// length returns the byte count operand of a memory intrinsic. 64-bit counts must be constant.
func (s *selector) length(v lir.Value) Operand {
	if types.Bits(v.Type()) > 32 {
		if _, ok := v.(*lir.ConstInt); !ok {
			s.errorf("non-constant 64-bit memory length not supported")
			return ImmOp(0)
		}
	}
	return s.operand(v)
}

// lowerFPToSISat converts a float to a signed integer, saturating out of range values. ftonumz saturates on its
// own; a NaN source yields 0.
func (s *selector) lowerFPToSISat(in *lir.Instruction) {
	if types.Bits(in.Typ) != 32 {
		s.errorf("fptosi.sat to %s not supported", in.Typ)
		return
	}
	x := s.operand(in.Args()[0])
	t := s.newReg(types.I32)
	s.emit(OpFToNumZ, x, RegOp(t))
	s.diamond(s.def(in), ImmOp(0), RegOp(t), func(tb, fb *Block) {
		s.floatBranch(lir.FloatUNO, x, x, tb, fb)
	})
}

// lowerCatch lowers glulx.catch(ptr). catch stores a token and branches to the no-throw block; a later throw
// resumes after the catch with the thrown value. The result is 0 on the first pass and the thrown value after a
// throw.
func (s *selector) lowerCatch(in *lir.Instruction) {
	dst := s.operand(in.Args()[0])
	zero := s.newReg(types.I32)
	s.emit(OpCopy, ImmOp(0), RegOp(zero))
	tok := s.newReg(types.I32)

	this := s.cur
	thrown := s.f.NewBlockAfter(this)
	noThrow := s.f.NewBlockAfter(thrown)
	s.emit(OpCatch, RegOp(tok), BlockOp(noThrow))

	s.cur = noThrow
	ret := s.newReg(types.I32)
	if in.HasResult() {
		ret = s.def(in)
	}
	s.emit(OpPhi, RegOp(ret), RegOp(tok), BlockOp(thrown), RegOp(zero), BlockOp(this))
	s.emit(OpAstore, dst, ImmOp(0), RegOp(tok))
}
