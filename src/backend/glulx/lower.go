package glulx

import (
	"glulxc/src/ir/lir"
	"glulxc/src/ir/lir/types"
	"math"
	"math/bits"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// address is a decomposed address computation: base + off + the sum of all scaled indices.
type address struct {
	base  Operand
	off   int64
	index []scaledIndex
}

// scaledIndex is a variable GEP index with its byte scale.
type scaledIndex struct {
	v     lir.Value
	scale int64
}

// -------------------
// ----- Globals -----
// -------------------

// intBranches maps integer predicates to their compare branch.
var intBranches = [...]Opcode{
	lir.IntEQ:  OpJeq,
	lir.IntNE:  OpJne,
	lir.IntUGT: OpJgtu,
	lir.IntUGE: OpJgeu,
	lir.IntULT: OpJltu,
	lir.IntULE: OpJleu,
	lir.IntSGT: OpJgt,
	lir.IntSGE: OpJge,
	lir.IntSLT: OpJlt,
	lir.IntSLE: OpJle,
}

// ---------------------
// ----- Functions -----
// ---------------------

// intBranch emits the branches of an integer compare. Signed compares of narrow values sign extend their operands.
func (s *selector) intBranch(pred lir.IntPredicate, a, b lir.Value, t, f *Block) {
	var x, y Operand
	if pred.IsSigned() {
		x, y = s.signed(a), s.signed(b)
	} else {
		x, y = s.operand(a), s.operand(b)
	}
	switch {
	case pred == lir.IntEQ && y.IsImm(0):
		s.emit(OpJz, x, BlockOp(t))
	case pred == lir.IntNE && y.IsImm(0):
		s.emit(OpJnz, x, BlockOp(t))
	default:
		s.emit(intBranches[pred], x, y, BlockOp(t))
	}
	s.emit(OpJump, BlockOp(f))
}

// mayBeNaN reports whether operand o may hold a NaN. Only float immediates are known not to.
func mayBeNaN(o Operand) bool {
	if o.Kind != KindFImm {
		return true
	}
	return math.IsNaN(float64(math.Float32frombits(o.Bits)))
}

// nanCandidates returns the operands of a float compare that may be NaN, testing an operand compared to itself
// once.
func nanCandidates(a, b Operand) []Operand {
	res := make([]Operand, 0, 2)
	if mayBeNaN(a) {
		res = append(res, a)
	}
	if mayBeNaN(b) && b != a {
		res = append(res, b)
	}
	return res
}

// floatBranch emits the branches of a float compare. Glulx float branches are ordered: they never branch if an
// operand is NaN, except jfne. Unordered predicates test for NaN first.
func (s *selector) floatBranch(pred lir.FloatPredicate, a, b Operand, t, f *Block) {
	switch pred {
	case lir.FloatFalse:
		s.emit(OpJump, BlockOp(f))
		return
	case lir.FloatTrue:
		s.emit(OpJump, BlockOp(t))
		return
	case lir.FloatUNE:
		s.emit(OpJfne, a, b, ImmOp(0), BlockOp(t))
	case lir.FloatORD:
		for _, e1 := range nanCandidates(a, b) {
			s.emit(OpJisnan, e1, BlockOp(f))
		}
		s.emit(OpJump, BlockOp(t))
		return
	default:
		if pred.IsUnordered() {
			for _, e1 := range nanCandidates(a, b) {
				s.emit(OpJisnan, e1, BlockOp(t))
			}
		}
		s.floatTest(pred.Ordered(), a, b, t)
	}
	s.emit(OpJump, BlockOp(f))
}

// floatTest emits the branches to t of an ordered float predicate. The false predicate, which uno reduces to,
// emits nothing.
func (s *selector) floatTest(pred lir.FloatPredicate, a, b Operand, t *Block) {
	switch pred {
	case lir.FloatOEQ:
		s.emit(OpJfeq, a, b, ImmOp(0), BlockOp(t))
	case lir.FloatOGT:
		s.emit(OpJfgt, a, b, BlockOp(t))
	case lir.FloatOGE:
		s.emit(OpJfge, a, b, BlockOp(t))
	case lir.FloatOLT:
		s.emit(OpJflt, a, b, BlockOp(t))
	case lir.FloatOLE:
		s.emit(OpJfle, a, b, BlockOp(t))
	case lir.FloatONE:
		s.emit(OpJflt, a, b, BlockOp(t))
		s.emit(OpJfgt, a, b, BlockOp(t))
	}
}

// gepAddress decomposes a GEP into base, constant offset and variable indices.
func (s *selector) gepAddress(in *lir.Instruction) address {
	a := address{base: s.operand(in.Ops[0])}
	t := in.Elem
	for i1, e1 := range in.Ops[1:] {
		if i1 > 0 {
			switch x := t.(type) {
			case *types.StructType:
				c, ok := e1.(*lir.ConstInt)
				if !ok || c.V < 0 || int(c.V) >= len(x.Fields) {
					s.errorf("invalid struct index %s", e1.Name())
					return a
				}
				a.off += int64(types.FieldOffset(x, int(c.V)))
				t = x.Fields[c.V]
				continue
			case *types.ArrayType:
				t = x.Elem
			default:
				s.errorf("cannot index into %s", t)
				return a
			}
		}
		size := int64(types.Size(t))
		if c, ok := e1.(*lir.ConstInt); ok {
			a.off += c.V * size
			continue
		}
		if size != 0 {
			a.index = append(a.index, scaledIndex{v: e1, scale: size})
		}
	}
	return a
}

// constGEP returns the symbol or frame index operand addressed by a GEP with constant indices only.
func constGEP(in *lir.Instruction) (lir.Value, int64, bool) {
	off := int64(0)
	t := in.Elem
	for i1, e1 := range in.Ops[1:] {
		c, ok := e1.(*lir.ConstInt)
		if !ok {
			return nil, 0, false
		}
		if i1 > 0 {
			switch x := t.(type) {
			case *types.StructType:
				if c.V < 0 || int(c.V) >= len(x.Fields) {
					return nil, 0, false
				}
				off += int64(types.FieldOffset(x, int(c.V)))
				t = x.Fields[c.V]
				continue
			case *types.ArrayType:
				t = x.Elem
			default:
				return nil, 0, false
			}
		}
		off += c.V * int64(types.Size(t))
	}
	return in.Ops[0], off, true
}

// symbolic returns the symbol and displacement of an address known at assembly time.
func (s *selector) symbolic(v lir.Value) (string, int64, bool) {
	switch x := v.(type) {
	case *lir.Global, *lir.Function:
		return symbolName(v), 0, true
	case *lir.ConstSymbol:
		return symbolName(x.Sym), x.Off, true
	case *lir.Instruction:
		if x.Op != lir.OpGEP || !s.lazy[x] {
			return "", 0, false
		}
		base, off, ok := constGEP(x)
		if !ok {
			return "", 0, false
		}
		sym, boff, ok := s.symbolic(base)
		return sym, boff + off, ok
	}
	return "", 0, false
}

// withOffset returns o displaced by off bytes. Symbols, frame indices and immediates absorb the displacement, a
// register gets an explicit add.
func (s *selector) withOffset(o Operand, off int64) Operand {
	if off == 0 {
		return o
	}
	switch o.Kind {
	case KindSymbol:
		if !o.Deref {
			return SymOp(o.Sym, o.Off+off)
		}
	case KindFrameIndex:
		return FrameOp(int(o.Imm), o.Off+off)
	case KindImm:
		return ImmOp(o.Imm + off)
	}
	r := s.newReg(types.Ptr)
	s.emit(OpAdd, o, ImmOp(off), RegOp(r))
	return RegOp(r)
}

// scaled returns a GEP index multiplied by its scale.
func (s *selector) scaled(x scaledIndex) Operand {
	o := s.signed(x.v)
	if x.scale == 1 {
		return o
	}
	r := s.newReg(types.I32)
	if x.scale > 0 && x.scale&(x.scale-1) == 0 {
		s.emit(OpShiftL, o, ImmOp(int64(bits.TrailingZeros64(uint64(x.scale)))), RegOp(r))
	} else {
		s.emit(OpMul, o, ImmOp(x.scale), RegOp(r))
	}
	return RegOp(r)
}

// addressOperand computes address a into a single operand.
func (s *selector) addressOperand(a address) Operand {
	acc := s.withOffset(a.base, a.off)
	for _, e1 := range a.index {
		r := s.newReg(types.Ptr)
		s.emit(OpAdd, acc, s.scaled(e1), RegOp(r))
		acc = RegOp(r)
	}
	return acc
}

// arrayAccess returns the base and index operands of an array load or store of size bytes at address a. A single
// variable index scaled by the access size becomes the index operand; constant offsets divisible by the access size
// are folded into it.
func (s *selector) arrayAccess(a address, size int64) (Operand, Operand) {
	if len(a.index) == 1 && a.index[0].scale == size {
		idx := s.signed(a.index[0].v)
		if a.off == 0 {
			return a.base, idx
		}
		return s.withOffset(a.base, a.off), idx
	}
	if len(a.index) == 0 && a.base.IsReg() && a.off%size == 0 {
		return a.base, ImmOp(a.off / size)
	}
	return s.addressOperand(a), ImmOp(0)
}
