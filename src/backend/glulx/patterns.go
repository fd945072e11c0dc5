package glulx

import (
	"glulxc/src/ir/lir"
	"glulxc/src/ir/lir/types"
	"sort"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// pattern selects machine instructions for an LIR instruction. Patterns of the same opcode are tried by descending
// priority; the first one whose match accepts the instruction emits it. A nil match accepts every instruction.
type pattern struct {
	name  string
	op    lir.Opcode
	prio  int
	match func(s *selector, in *lir.Instruction) bool
	emit  func(s *selector, in *lir.Instruction)
}

// -------------------
// ----- Globals -----
// -------------------

// binOps maps LIR binary operations to their Glulx instruction.
var binOps = map[lir.Opcode]Opcode{
	lir.OpAdd:  OpAdd,
	lir.OpSub:  OpSub,
	lir.OpMul:  OpMul,
	lir.OpSDiv: OpDiv,
	lir.OpUDiv: OpDiv,
	lir.OpSRem: OpMod,
	lir.OpURem: OpMod,
	lir.OpAnd:  OpBitAnd,
	lir.OpOr:   OpBitOr,
	lir.OpXor:  OpBitXor,
	lir.OpShl:  OpShiftL,
	lir.OpLShr: OpUShiftR,
	lir.OpAShr: OpSShiftR,
	lir.OpFAdd: OpFAdd,
	lir.OpFSub: OpFSub,
	lir.OpFMul: OpFMul,
	lir.OpFDiv: OpFDiv,
}

var patterns = []*pattern{
	// Arithmetic.
	{name: "neg", op: lir.OpSub, prio: 2, match: zeroLHS, emit: emitNeg},
	{name: "bitnot", op: lir.OpXor, prio: 2, match: allOnesRHS, emit: emitNot},
	{name: "udiv-libcall", op: lir.OpUDiv, prio: 2, match: isExpanded, emit: emitLibCall},
	{name: "urem-libcall", op: lir.OpURem, prio: 2, match: isExpanded, emit: emitLibCall},
	{name: "frem", op: lir.OpFRem, prio: 1, emit: emitFRem},

	// Casts.
	{name: "trunc", op: lir.OpTrunc, prio: 1, emit: emitTrunc},
	{name: "zext", op: lir.OpZExt, prio: 1, emit: emitCopy},
	{name: "sext", op: lir.OpSExt, prio: 1, emit: emitSExt},
	{name: "bitcast", op: lir.OpBitcast, prio: 1, emit: emitCopy},
	{name: "ptrtoint", op: lir.OpPtrToInt, prio: 1, emit: emitTrunc},
	{name: "inttoptr", op: lir.OpIntToPtr, prio: 1, emit: emitCopy},
	{name: "fptosi", op: lir.OpFPToSI, prio: 1, emit: emitFPToSI},
	{name: "sitofp", op: lir.OpSIToFP, prio: 1, emit: emitSIToFP},
	{name: "uitofp-narrow", op: lir.OpUIToFP, prio: 2, match: notExpanded, emit: emitUIToFP},
	{name: "uitofp-libcall", op: lir.OpUIToFP, prio: 1, emit: emitLibCall},
	{name: "fptoui-libcall", op: lir.OpFPToUI, prio: 1, emit: emitLibCall},

	// Memory.
	{name: "load-mem", op: lir.OpLoad, prio: 3, match: wordSymbolLoad, emit: emitLoadMem},
	{name: "load-gep", op: lir.OpLoad, prio: 2, match: foldedLoadAddress, emit: emitLoadGEP},
	{name: "load", op: lir.OpLoad, prio: 1, emit: emitLoad},
	{name: "store-mem", op: lir.OpStore, prio: 3, match: wordSymbolStore, emit: emitStoreMem},
	{name: "store-gep", op: lir.OpStore, prio: 2, match: foldedStoreAddress, emit: emitStoreGEP},
	{name: "store", op: lir.OpStore, prio: 1, emit: emitStore},
	{name: "gep", op: lir.OpGEP, prio: 1, emit: emitGEP},

	// Branches.
	{name: "br", op: lir.OpBr, prio: 1, emit: emitBr},
	{name: "condbr-cmp", op: lir.OpCondBr, prio: 2, match: foldedCompare, emit: emitCondBr},
	{name: "condbr-const", op: lir.OpCondBr, prio: 2, match: constCondition, emit: emitCondBr},
	{name: "condbr", op: lir.OpCondBr, prio: 1, emit: emitCondBr},
}

// patternTable lists the patterns of every opcode by descending priority.
var patternTable = map[lir.Opcode][]*pattern{}

// ---------------------
// ----- Functions -----
// ---------------------

func init() {
	for k := range binOps {
		patterns = append(patterns, &pattern{name: k.String(), op: k, prio: 1, emit: emitBinary})
	}
	for _, e1 := range patterns {
		patternTable[e1.op] = append(patternTable[e1.op], e1)
	}
	for _, e1 := range patternTable {
		sort.SliceStable(e1, func(i, j int) bool {
			return e1[i].prio > e1[j].prio
		})
	}
}

// match selects in with the first matching pattern of its opcode.
func (s *selector) match(in *lir.Instruction) {
	for _, e1 := range patternTable[in.Op] {
		if e1.match == nil || e1.match(s, in) {
			e1.emit(s, in)
			return
		}
	}
	s.errorf("cannot select %s", in)
}

// ----------------------------
// ----- Match predicates -----
// ----------------------------

func zeroLHS(_ *selector, in *lir.Instruction) bool {
	c, ok := in.Ops[0].(*lir.ConstInt)
	return ok && c.V == 0
}

func allOnesRHS(_ *selector, in *lir.Instruction) bool {
	c, ok := in.Ops[1].(*lir.ConstInt)
	return ok && c.V == -1
}

func isExpanded(_ *selector, in *lir.Instruction) bool {
	return OperationAction(in.Op, in.Ops[0].Type()) == Expand
}

func notExpanded(s *selector, in *lir.Instruction) bool {
	return !isExpanded(s, in)
}

func wordSymbolLoad(s *selector, in *lir.Instruction) bool {
	_, _, ok := s.symbolic(in.Ops[0])
	return ok && types.Size(in.Typ) == WordSize
}

func wordSymbolStore(s *selector, in *lir.Instruction) bool {
	_, _, ok := s.symbolic(in.Ops[1])
	return ok && types.Size(in.Ops[0].Type()) == WordSize
}

func foldedLoadAddress(s *selector, in *lir.Instruction) bool {
	x, ok := in.Ops[0].(*lir.Instruction)
	return ok && s.lazy[x]
}

func foldedStoreAddress(s *selector, in *lir.Instruction) bool {
	x, ok := in.Ops[1].(*lir.Instruction)
	return ok && s.lazy[x]
}

func foldedCompare(s *selector, in *lir.Instruction) bool {
	x, ok := in.Ops[0].(*lir.Instruction)
	return ok && s.lazy[x]
}

func constCondition(_ *selector, in *lir.Instruction) bool {
	_, ok := in.Ops[0].(*lir.ConstInt)
	return ok
}

// --------------------------
// ----- Emit functions -----
// --------------------------

func emitBinary(s *selector, in *lir.Instruction) {
	op := binOps[in.Op]
	var a, b Operand
	switch in.Op {
	case lir.OpSDiv, lir.OpSRem:
		a, b = s.signed(in.Ops[0]), s.signed(in.Ops[1])
	case lir.OpAShr:
		a, b = s.signed(in.Ops[0]), s.operand(in.Ops[1])
	default:
		a, b = s.operand(in.Ops[0]), s.operand(in.Ops[1])
	}
	s.arith(op, in.Typ, RegOp(s.def(in)), OperationAction(in.Op, in.Typ) == Promote, a, b)
}

func emitNeg(s *selector, in *lir.Instruction) {
	s.arith(OpNeg, in.Typ, RegOp(s.def(in)), true, s.operand(in.Ops[1]))
}

func emitNot(s *selector, in *lir.Instruction) {
	s.arith(OpBitNot, in.Typ, RegOp(s.def(in)), true, s.operand(in.Ops[0]))
}

func emitFRem(s *selector, in *lir.Instruction) {
	s.emit(OpFMod, s.operand(in.Ops[0]), s.operand(in.Ops[1]), RegOp(s.def(in)), DiscardOp())
}

func emitLibCall(s *selector, in *lir.Instruction) {
	name, _ := LibCall(in.Op)
	args := make([]Operand, len(in.Ops))
	for i1, e1 := range in.Ops {
		args[i1] = s.operand(e1)
	}
	if w := narrow(in.Typ); w > 0 {
		t := s.newReg(in.Typ)
		s.libCall(name, RegOp(t), args...)
		s.emit(OpBitAnd, RegOp(t), ImmOp(int64(1)<<w-1), RegOp(s.def(in)))
		return
	}
	s.libCall(name, RegOp(s.def(in)), args...)
}

func emitCopy(s *selector, in *lir.Instruction) {
	s.emit(OpCopy, s.operand(in.Ops[0]), RegOp(s.def(in)))
}

func emitTrunc(s *selector, in *lir.Instruction) {
	w := narrow(in.Typ)
	if w == 0 || narrow(in.Ops[0].Type()) == w {
		emitCopy(s, in)
		return
	}
	s.emit(OpBitAnd, s.operand(in.Ops[0]), ImmOp(int64(1)<<w-1), RegOp(s.def(in)))
}

func emitSExt(s *selector, in *lir.Instruction) {
	from := types.Bits(in.Ops[0].Type())
	o := s.operand(in.Ops[0])
	if w := narrow(in.Typ); w > 0 {
		t := s.newReg(types.I32)
		s.sext(o, t, from)
		s.emit(OpBitAnd, RegOp(t), ImmOp(int64(1)<<w-1), RegOp(s.def(in)))
		return
	}
	s.sext(o, s.def(in), from)
}

func emitFPToSI(s *selector, in *lir.Instruction) {
	s.arith(OpFToNumZ, in.Typ, RegOp(s.def(in)), true, s.operand(in.Ops[0]))
}

func emitSIToFP(s *selector, in *lir.Instruction) {
	s.emit(OpNumToF, s.signed(in.Ops[0]), RegOp(s.def(in)))
}

func emitUIToFP(s *selector, in *lir.Instruction) {
	s.emit(OpNumToF, s.operand(in.Ops[0]), RegOp(s.def(in)))
}

func emitLoadMem(s *selector, in *lir.Instruction) {
	sym, off, _ := s.symbolic(in.Ops[0])
	if x, ok := in.Ops[0].(*lir.Instruction); ok {
		delete(s.lazy, x)
	}
	s.emit(OpCopy, MemOp(sym, off), RegOp(s.def(in)))
}

func emitLoadGEP(s *selector, in *lir.Instruction) {
	gep := in.Ops[0].(*lir.Instruction)
	delete(s.lazy, gep)
	size := types.Size(in.Typ)
	base, idx := s.arrayAccess(s.gepAddress(gep), int64(size))
	s.emit(loadOp(size), base, idx, RegOp(s.def(in)))
}

func emitLoad(s *selector, in *lir.Instruction) {
	s.emit(loadOp(types.Size(in.Typ)), s.operand(in.Ops[0]), ImmOp(0), RegOp(s.def(in)))
}

// storedValue returns the operand of the value stored by in, or false if its type does not fit a local.
func storedValue(s *selector, in *lir.Instruction) (Operand, bool) {
	if t := in.Ops[0].Type(); !IsLegalType(t) {
		s.errorf("store of type %s not supported", t)
		return Operand{}, false
	}
	return s.operand(in.Ops[0]), true
}

func emitStoreMem(s *selector, in *lir.Instruction) {
	v, ok := storedValue(s, in)
	if !ok {
		return
	}
	sym, off, _ := s.symbolic(in.Ops[1])
	if x, ok := in.Ops[1].(*lir.Instruction); ok {
		delete(s.lazy, x)
	}
	s.emit(OpCopy, v, MemOp(sym, off))
}

func emitStoreGEP(s *selector, in *lir.Instruction) {
	v, ok := storedValue(s, in)
	if !ok {
		return
	}
	gep := in.Ops[1].(*lir.Instruction)
	delete(s.lazy, gep)
	size := types.Size(in.Ops[0].Type())
	base, idx := s.arrayAccess(s.gepAddress(gep), int64(size))
	s.emit(storeOp(size), base, idx, v)
}

func emitStore(s *selector, in *lir.Instruction) {
	v, ok := storedValue(s, in)
	if !ok {
		return
	}
	s.emit(storeOp(types.Size(in.Ops[0].Type())), s.operand(in.Ops[1]), ImmOp(0), v)
}

func emitGEP(s *selector, in *lir.Instruction) {
	s.bind(in, s.addressOperand(s.gepAddress(in)))
}

func emitBr(s *selector, in *lir.Instruction) {
	s.emit(OpJump, s.block(in.Targets[0]))
}

func emitCondBr(s *selector, in *lir.Instruction) {
	s.branch(in.Ops[0], s.blocks[in.Targets[0]], s.blocks[in.Targets[1]])
}
