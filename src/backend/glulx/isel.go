package glulx

import (
	"errors"
	"fmt"
	"glulxc/src/ir/lir"
	"glulxc/src/ir/lir/types"
	"glulxc/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// selector translates the instructions of one LIR function into machine instructions.
type selector struct {
	f      *Function
	src    *lir.Function
	file   string
	vals   map[lir.Value]Operand                 // Machine operands of selected LIR values.
	blocks map[*lir.Block]*Block                 // First machine block of every LIR block.
	exits  map[*lir.Block]*Block                 // Last machine block of every LIR block.
	uses   map[*lir.Instruction]int              // Number of operand uses of every LIR instruction.
	users  map[*lir.Instruction]*lir.Instruction // Last user of every LIR instruction.
	lazy   map[*lir.Instruction]bool             // Instructions selected as part of their single user.
	phis   []pendingPhi
	cur    *Block  // Block that receives emitted instructions.
	pos    lir.Pos // Position of the instruction being selected.
	done   bool    // Set true if the rest of the current LIR block is unreachable.
	diags  []error
}

// pendingPhi is a PHI pseudo whose incoming operands are filled in once all blocks are selected.
type pendingPhi struct {
	mi  *Instr
	phi *lir.Instruction
}

// ---------------------
// ----- Functions -----
// ---------------------

// Select translates the LIR function src into a machine function. num is the position of src in its module and
// numbers the block labels. All diagnostics of the function are returned joined.
func Select(file string, num int, src *lir.Function) (*Function, error) {
	s := newSelector(file, num, src)
	if !CallConvSupported(src.CallConv) {
		s.errorf("unsupported calling convention %s", src.CallConv)
	}
	if ret := src.Sig.Ret; ret.Kind() != types.VoidKind {
		if !IsLegalType(ret) {
			s.errorf("Glulx can only return up to one value")
		} else {
			s.f.Info.Results = append(s.f.Info.Results, valueType(ret))
		}
	}
	s.lowerArguments()

	for _, e1 := range src.Blocks() {
		s.cur = s.blocks[e1]
		s.done = false
		for _, e2 := range e1.Instructions() {
			if s.done {
				break
			}
			s.pos = e2.Pos
			s.selectInstruction(e2)
		}
		s.exits[e1] = s.cur
	}
	s.resolvePhis()

	if len(s.diags) > 0 {
		return nil, errors.Join(s.diags...)
	}
	s.f.CountRegs()
	return s.f, nil
}

// newSelector prepares the selection of src: one machine block per LIR block, use counts and the set of
// instructions that are folded into their user.
func newSelector(file string, num int, src *lir.Function) *selector {
	s := &selector{
		f:      NewFunction(symbolName(src), num, src),
		src:    src,
		file:   file,
		vals:   make(map[lir.Value]Operand, 64),
		blocks: make(map[*lir.Block]*Block, len(src.Blocks())),
		exits:  make(map[*lir.Block]*Block, len(src.Blocks())),
		uses:   make(map[*lir.Instruction]int, 64),
		users:  make(map[*lir.Instruction]*lir.Instruction, 64),
		lazy:   make(map[*lir.Instruction]bool, 16),
		phis:   make([]pendingPhi, 0, 8),
	}
	for _, e1 := range src.Blocks() {
		s.blocks[e1] = s.f.NewBlock()
		for _, e2 := range e1.Instructions() {
			for _, e3 := range e2.Ops {
				if x, ok := e3.(*lir.Instruction); ok {
					s.uses[x]++
					s.users[x] = e2
				}
			}
		}
	}
	for _, e1 := range src.Blocks() {
		for _, e2 := range e1.Instructions() {
			if s.foldable(e2) {
				s.lazy[e2] = true
			}
		}
	}
	return s
}

// foldable reports whether in is a pure address computation or compare whose only user, in the same block, can
// absorb it into an addressing mode or a compare branch.
func (s *selector) foldable(in *lir.Instruction) bool {
	if s.uses[in] != 1 {
		return false
	}
	u := s.users[in]
	if u.Parent() != in.Parent() {
		return false
	}
	switch in.Op {
	case lir.OpGEP:
		return (u.Op == lir.OpLoad && u.Ops[0] == in) || (u.Op == lir.OpStore && u.Ops[1] == in)
	case lir.OpICmp, lir.OpFCmp:
		return (u.Op == lir.OpCondBr || u.Op == lir.OpSelect) && u.Ops[0] == in
	}
	return false
}

// symbolName returns the assembly name of a global or function. Private symbols get the private label prefix.
func symbolName(v lir.Value) string {
	switch x := v.(type) {
	case *lir.Global:
		if x.Linkage == lir.Private {
			return util.PrivateLabel(x.Symbol())
		}
		return x.Symbol()
	case *lir.Function:
		if x.Linkage == lir.Private {
			return util.PrivateLabel(x.Symbol())
		}
		return x.Symbol()
	}
	panic(fmt.Sprintf("glulx: %s is not a symbol", v.Name()))
}

// errorf records a diagnostic at the position of the instruction being selected.
func (s *selector) errorf(format string, a ...any) {
	s.diags = append(s.diags, newDiagnostic(s.file, s.src.Symbol(), s.pos, format, a...))
}

// emit appends a machine instruction to the current block.
func (s *selector) emit(op Opcode, ops ...Operand) *Instr {
	in := NewInstr(op, ops...)
	in.Pos = s.pos
	return s.cur.Append(in)
}

// newReg creates a register for values of type t.
func (s *selector) newReg(t types.Type) Reg {
	return s.f.NewTypedReg(t)
}

// def returns the register holding the result of in.
func (s *selector) def(in *lir.Instruction) Reg {
	if o, ok := s.vals[in]; ok && o.IsReg() {
		return o.Reg
	}
	r := s.newReg(in.Typ)
	s.vals[in] = RegOp(r)
	return r
}

// bind makes o the operand of the result of in. An instruction that was already referenced through a register gets
// an explicit copy into that register.
func (s *selector) bind(in *lir.Instruction, o Operand) {
	if prev, ok := s.vals[in]; ok && prev.IsReg() {
		s.emit(OpCopy, o, prev)
		return
	}
	s.vals[in] = o
}

// block returns the branch target operand of LIR block b.
func (s *selector) block(b *lir.Block) Operand {
	return BlockOp(s.blocks[b])
}

// lowerArguments binds every parameter to a register defined by an ARGUMENT pseudo at the start of the entry block.
// A variadic function receives the address of its variadic argument buffer as an extra trailing parameter.
func (s *selector) lowerArguments() {
	entry := s.f.Entry()
	for _, e1 := range s.src.Params() {
		a := e1.Attrs
		switch {
		case a.InAlloca:
			s.errorf("inalloca argument %s not supported", e1.Name())
		case a.Nest:
			s.errorf("nest argument %s not supported", e1.Name())
		case a.InReg:
			s.errorf("consecutive register argument %s not supported", e1.Name())
		case a.ByRef:
			s.errorf("indirect aggregate argument %s not supported", e1.Name())
		case !IsLegalType(e1.Type()):
			s.errorf("argument %s of type %s not supported", e1.Name(), e1.Type())
		}
		r := s.newReg(e1.Type())
		s.vals[e1] = RegOp(r)
		entry.Append(NewInstr(OpArgument, RegOp(r), ImmOp(int64(e1.Index))))
		s.f.Info.Params = append(s.f.Info.Params, valueType(e1.Type()))
	}
	if s.src.IsVariadic() {
		r := s.newReg(types.Ptr)
		entry.Append(NewInstr(OpArgument, RegOp(r), ImmOp(int64(len(s.src.Params())))))
		s.f.Info.VarargBuffer = r
		s.f.Info.Params = append(s.f.Info.Params, valueType(types.Ptr))
	}
}

// operand returns the machine operand reading LIR value v.
func (s *selector) operand(v lir.Value) Operand {
	switch x := v.(type) {
	case *lir.ConstInt:
		if x.Typ.Bits > 32 {
			if x.V != int64(int32(x.V)) {
				s.errorf("64-bit integer constant %d not supported", x.V)
			}
			return ImmOp(x.V)
		}
		return ImmOp(int64(x.ZExt()))
	case *lir.ConstFloat:
		if x.Typ.Bits != 32 {
			s.errorf("double precision constant %s not supported", x.Name())
		}
		return FImmOp(float32(x.V))
	case *lir.ConstNull:
		return ImmOp(0)
	case *lir.ConstZero:
		if !IsLegalType(x.Typ) {
			s.errorf("constant of type %s not supported", x.Typ)
		}
		return ImmOp(0)
	case *lir.Undef:
		r := s.newReg(x.Typ)
		s.emit(OpImplicitDef, RegOp(r))
		return RegOp(r)
	case *lir.ConstSymbol:
		return SymOp(symbolName(x.Sym), x.Off)
	case *lir.Global, *lir.Function:
		return SymOp(symbolName(v), 0)
	case *lir.BlockAddress:
		s.errorf("blockaddress not supported")
		return ImmOp(0)
	case *lir.InlineAsm:
		s.errorf("inline asm not supported")
		return ImmOp(0)
	case *lir.Param:
		return s.vals[x]
	case *lir.Instruction:
		if o, ok := s.vals[x]; ok {
			return o
		}
		if s.lazy[x] {
			delete(s.lazy, x)
			s.materialize(x)
			return s.vals[x]
		}
		if x.HasResult() && !IsLegalType(x.Typ) {
			s.errorf("value %s of type %s not supported", x.Name(), x.Typ)
		}
		return RegOp(s.def(x))
	}
	s.errorf("constant %s not supported", v.Name())
	return ImmOp(0)
}

// materialize selects an instruction that was held back for folding but is needed as a value after all.
func (s *selector) materialize(in *lir.Instruction) {
	switch in.Op {
	case lir.OpGEP:
		s.bind(in, s.addressOperand(s.gepAddress(in)))
	case lir.OpICmp, lir.OpFCmp:
		s.setcc(in)
	}
}

// signed returns v sign extended to 32 bits.
func (s *selector) signed(v lir.Value) Operand {
	if c, ok := v.(*lir.ConstInt); ok {
		if c.Typ.Bits == 1 {
			return ImmOp(-c.V)
		}
		return ImmOp(c.V)
	}
	o := s.operand(v)
	w := types.Bits(v.Type())
	if !types.IsInt(v.Type()) || w >= 32 {
		return o
	}
	r := s.newReg(types.I32)
	s.sext(o, r, w)
	return RegOp(r)
}

// sext emits dst = o sign extended from bit width w.
func (s *selector) sext(o Operand, dst Reg, w int) {
	switch w {
	case 1:
		s.emit(OpNeg, o, RegOp(dst))
	case 8:
		s.emit(OpSexb, o, RegOp(dst))
	case 16:
		s.emit(OpSexs, o, RegOp(dst))
	default:
		t := s.newReg(types.I32)
		s.emit(OpShiftL, o, ImmOp(int64(32-w)), RegOp(t))
		s.emit(OpSShiftR, RegOp(t), ImmOp(int64(32-w)), RegOp(dst))
	}
}

// narrow returns the bit width of t if t is an integer narrower than a local, or 0.
func narrow(t types.Type) int {
	if w := types.Bits(t); types.IsInt(t) && w < 32 {
		return w
	}
	return 0
}

// arith emits op with the given operands storing into dst. If mask is set and t is a narrow integer the result is
// computed into a temporary and masked back to the width of t.
func (s *selector) arith(op Opcode, t types.Type, dst Operand, mask bool, ops ...Operand) {
	w := narrow(t)
	if !mask || w == 0 {
		s.emit(op, append(ops, dst)...)
		return
	}
	tmp := s.newReg(t)
	s.emit(op, append(ops, RegOp(tmp))...)
	s.emit(OpBitAnd, RegOp(tmp), ImmOp(int64(1)<<w-1), dst)
}

// libCall calls the runtime function name with up to three arguments.
func (s *selector) libCall(name string, dst Operand, args ...Operand) {
	ops := make([]Operand, 0, len(args)+2)
	ops = append(ops, SymOp(name, 0))
	ops = append(ops, args...)
	s.emit(callOp(len(args)), append(ops, dst)...)
}

// selectInstruction selects a single LIR instruction. Operations that need control flow or calls are lowered by
// hand; everything else goes through the pattern table.
func (s *selector) selectInstruction(in *lir.Instruction) {
	if s.lazy[in] {
		return
	}
	if in.HasResult() && in.Op != lir.OpCall && !IsLegalType(in.Typ) {
		s.errorf("value %s of type %s not supported", in.Name(), in.Typ)
		return
	}
	switch in.Op {
	case lir.OpAlloca:
		s.lowerAlloca(in)
	case lir.OpICmp, lir.OpFCmp:
		s.setcc(in)
	case lir.OpSelect:
		s.lowerSelect(in)
	case lir.OpFNeg:
		s.emit(OpBitXor, s.operand(in.Ops[0]), ImmOp(-1<<31), RegOp(s.def(in)))
	case lir.OpCall:
		s.lowerCall(in)
	case lir.OpVAArg:
		s.lowerVAArg(in)
	case lir.OpPhi:
		mi := s.emit(OpPhi, RegOp(s.def(in)))
		s.phis = append(s.phis, pendingPhi{mi: mi, phi: in})
	case lir.OpSwitch:
		s.lowerSwitch(in)
	case lir.OpRet:
		s.lowerReturn(in)
	case lir.OpIndirectBr:
		s.errorf("indirect branches not supported")
	case lir.OpUnreachable:
	default:
		s.match(in)
	}
}

// resolvePhis fills in the incoming operands of all PHI pseudos. An incoming block is the machine block that ends
// the LIR predecessor, which differs from its first block if selection split it. Undefined incoming values are
// left out.
func (s *selector) resolvePhis() {
	for _, e1 := range s.phis {
		s.pos = e1.phi.Pos
		for i2, e2 := range e1.phi.Ops {
			if _, ok := e2.(*lir.Undef); ok {
				continue
			}
			e1.mi.Ops = append(e1.mi.Ops, s.operand(e2), BlockOp(s.exits[e1.phi.Targets[i2]]))
		}
	}
}

// lowerAlloca turns a static allocation into a frame object. The address of the object is a frame index operand
// until frame indices are eliminated.
func (s *selector) lowerAlloca(in *lir.Instruction) {
	n := int64(1)
	if len(in.Ops) > 0 {
		c, ok := in.Ops[0].(*lir.ConstInt)
		if !ok {
			s.errorf("dynamic stack allocation not supported")
			return
		}
		n = c.V
	}
	if in.Parent() != s.src.Entry() {
		s.errorf("dynamic stack allocation not supported")
		return
	}
	size := int(n) * types.Size(in.Elem)
	if size < 1 {
		size = 1
	}
	fi := s.f.CreateFrameObject(size, in.Align)
	s.bind(in, FrameOp(fi, 0))
}

// setcc materialises the boolean result of a compare through a diamond selecting 1 or 0.
func (s *selector) setcc(in *lir.Instruction) {
	s.diamond(s.def(in), ImmOp(1), ImmOp(0), func(t, f *Block) {
		s.compareBranch(in, t, f)
	})
}

// lowerSelect lowers select to a diamond.
func (s *selector) lowerSelect(in *lir.Instruction) {
	tv := s.operand(in.Ops[1])
	fv := s.operand(in.Ops[2])
	s.diamond(s.def(in), tv, fv, func(t, f *Block) {
		s.branch(in.Ops[0], t, f)
	})
}

// diamond selects tv or fv into dst. test emits the branches of the current block: to its first block argument if
// tv is selected, to its second otherwise. The current block falls through to the false block, which falls through
// to the join block. The join block starts with a PHI and becomes the current block.
func (s *selector) diamond(dst Reg, tv, fv Operand, test func(t, f *Block)) {
	this := s.cur
	copy0 := s.f.NewBlockAfter(this)
	copy1 := s.f.NewBlockAfter(copy0)
	test(copy1, copy0)
	s.cur = copy1
	s.emit(OpPhi, RegOp(dst), fv, BlockOp(copy0), tv, BlockOp(this))
}

// branch emits a two way branch on the i1 value cond. Compares held back for folding become compare branches.
func (s *selector) branch(cond lir.Value, t, f *Block) {
	if in, ok := cond.(*lir.Instruction); ok && s.lazy[in] {
		delete(s.lazy, in)
		s.compareBranch(in, t, f)
		return
	}
	if c, ok := cond.(*lir.ConstInt); ok {
		if c.V != 0 {
			s.emit(OpJump, BlockOp(t))
		} else {
			s.emit(OpJump, BlockOp(f))
		}
		return
	}
	s.emit(OpJnz, s.operand(cond), BlockOp(t))
	s.emit(OpJump, BlockOp(f))
}

// compareBranch emits the branches of an icmp or fcmp instruction.
func (s *selector) compareBranch(in *lir.Instruction, t, f *Block) {
	if in.Op == lir.OpICmp {
		s.intBranch(in.IPred, in.Ops[0], in.Ops[1], t, f)
		return
	}
	s.floatBranch(in.FPred, s.operand(in.Ops[0]), s.operand(in.Ops[1]), t, f)
}

// lowerSwitch lowers a switch to a chain of equality branches.
func (s *selector) lowerSwitch(in *lir.Instruction) {
	v := s.operand(in.Ops[0])
	for i1, e1 := range in.Cases {
		s.emit(OpJeq, v, ImmOp(int64(e1.ZExt())), s.block(in.Targets[i1+1]))
	}
	s.emit(OpJump, s.block(in.Targets[0]))
}

// lowerReturn lowers ret. Functions without result return 0.
func (s *selector) lowerReturn(in *lir.Instruction) {
	if len(in.Ops) == 0 {
		s.emit(OpReturn, ImmOp(0))
		return
	}
	s.emit(OpReturn, s.operand(in.Ops[0]))
}

// lowerVAArg loads the next variadic argument and advances the va_list.
func (s *selector) lowerVAArg(in *lir.Instruction) {
	ap := s.operand(in.Ops[0])
	p := s.newReg(types.Ptr)
	s.emit(OpAload, ap, ImmOp(0), RegOp(p))
	dst := RegOp(s.def(in))
	if w := narrow(in.Typ); w > 0 {
		s.arith(OpAload, in.Typ, dst, true, RegOp(p), ImmOp(0))
	} else {
		s.emit(OpAload, RegOp(p), ImmOp(0), dst)
	}
	np := s.newReg(types.Ptr)
	s.emit(OpAdd, RegOp(p), ImmOp(int64(VarargSlot(in.Typ))), RegOp(np))
	s.emit(OpAstore, ap, ImmOp(0), RegOp(np))
}
