package glulx

import (
	"glulxc/src/ir/lir"
	"glulxc/src/ir/lir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// tailConditions lists the properties of a call site that rule out a tail call. Each condition on its own makes
// the call ineligible.
type tailConditions struct {
	Interrupt   bool // The caller is an interrupt handler.
	StackArgs   bool // Arguments are passed in the variadic buffer.
	IndirectArg bool // An argument is passed indirectly (byref or inalloca).
	CallerSRet  bool // The caller returns through a struct return pointer.
	CalleeSRet  bool // The first argument of the callee is a struct return pointer.
	ExternWeak  bool // The callee may be undefined.
	ByVal       bool // An argument is copied into the caller's frame.
	Variadic    bool // The callee takes variable arguments.
	AllocaArg   bool // An argument points into the caller's frame.
	NotLast     bool // The call is not directly followed by a return of its result.
}

// ---------------------
// ----- Functions -----
// ---------------------

// eligible reports whether a call with conditions c may be lowered to tailcall.
func (c tailConditions) eligible() bool {
	return len(c.reason()) == 0
}

// reason describes the first condition that rules out a tail call, or returns the empty string.
func (c tailConditions) reason() string {
	switch {
	case c.Interrupt:
		return "caller is an interrupt handler"
	case c.StackArgs:
		return "arguments are passed on the stack"
	case c.IndirectArg:
		return "argument is passed indirectly"
	case c.CallerSRet:
		return "caller returns through a struct return pointer"
	case c.CalleeSRet:
		return "callee returns through a struct return pointer"
	case c.ExternWeak:
		return "callee is extern_weak"
	case c.ByVal:
		return "argument is passed by value"
	case c.Variadic:
		return "callee is variadic"
	case c.AllocaArg:
		return "argument refers to the caller's frame"
	case c.NotLast:
		return "call is not in tail position"
	}
	return ""
}

// tailCallConditions collects the tail call conditions of call site in of function caller.
func tailCallConditions(caller *lir.Function, in *lir.Instruction) tailConditions {
	c := tailConditions{
		Interrupt:  caller.Interrupt,
		StackArgs:  len(in.Args()) > len(in.Sig.Params),
		CallerSRet: caller.HasSRet(),
		Variadic:   in.Sig.Variadic,
		NotLast:    !inTailPosition(in),
	}
	for i1, e1 := range in.ArgAttrs {
		if e1.ByRef || e1.InAlloca {
			c.IndirectArg = true
		}
		if e1.ByVal != nil {
			c.ByVal = true
		}
		if i1 == 0 && e1.SRet {
			c.CalleeSRet = true
		}
	}
	switch x := in.Callee().(type) {
	case *lir.Function:
		c.ExternWeak = x.Linkage == lir.ExternWeak
	case *lir.Global:
		c.ExternWeak = x.Linkage == lir.ExternWeak
	}
	for _, e1 := range in.Args() {
		if fromAlloca(e1) {
			c.AllocaArg = true
		}
	}
	return c
}

// fromAlloca reports whether pointer v is derived from a stack allocation.
func fromAlloca(v lir.Value) bool {
	for {
		x, ok := v.(*lir.Instruction)
		if !ok {
			return false
		}
		switch x.Op {
		case lir.OpAlloca:
			return true
		case lir.OpGEP, lir.OpBitcast, lir.OpPtrToInt, lir.OpIntToPtr:
			v = x.Ops[0]
		default:
			return false
		}
	}
}

// inTailPosition reports whether call in is directly followed by a return of its result.
func inTailPosition(in *lir.Instruction) bool {
	insts := in.Parent().Instructions()
	for i1, e1 := range insts {
		if e1 != in {
			continue
		}
		if i1+1 >= len(insts) || insts[i1+1].Op != lir.OpRet {
			return false
		}
		ret := insts[i1+1]
		if len(ret.Ops) == 0 {
			return true
		}
		return in.HasResult() && ret.Ops[0] == in
	}
	return false
}

// lowerCall lowers a call. Up to three arguments are passed in operands of callf, callfi, callfii and callfiii;
// more arguments and tail calls push their arguments in reverse order.
func (s *selector) lowerCall(in *lir.Instruction) {
	callee := in.Callee()
	switch x := callee.(type) {
	case *lir.Function:
		if isIntrinsic(x.Symbol()) {
			s.lowerIntrinsic(in, x.Symbol())
			return
		}
	case *lir.InlineAsm:
		s.errorf("inline asm not supported")
		return
	}
	if !CallConvSupported(in.CallConv) {
		s.errorf("unsupported calling convention %s", in.CallConv)
		return
	}
	if in.HasResult() && !IsLegalType(in.Typ) {
		s.errorf("only small returns supported")
		return
	}

	tail := in.Tail != lir.NoTail
	if tail {
		if c := tailCallConditions(s.src, in); !c.eligible() {
			if in.Tail == lir.MustTail {
				s.errorf("failed to perform tail call elimination on a call site marked musttail: %s", c.reason())
				return
			}
			tail = false
		}
	}

	target := s.operand(callee)
	fixed := in.Args()
	if len(fixed) > len(in.Sig.Params) {
		fixed = fixed[:len(in.Sig.Params)]
	}
	args := make([]Operand, 0, len(fixed)+1)
	for i1, e1 := range fixed {
		if i1 < len(in.ArgAttrs) && in.ArgAttrs[i1].ByVal != nil {
			args = append(args, s.byValCopy(e1, in.ArgAttrs[i1].ByVal))
			continue
		}
		args = append(args, s.operand(e1))
	}
	if in.Sig.Variadic {
		args = append(args, s.varargBuffer(in.Args()[len(fixed):]))
	}

	if tail {
		for i1 := len(args) - 1; i1 >= 0; i1-- {
			s.emit(OpPush, args[i1])
		}
		s.emit(OpTailcall, target, ImmOp(int64(len(args))))
		s.done = true
		return
	}

	dst := DiscardOp()
	if in.HasResult() && s.uses[in] > 0 {
		dst = RegOp(s.def(in))
	}
	if op := callOp(len(args)); op != OpCall {
		ops := make([]Operand, 0, len(args)+2)
		ops = append(ops, target)
		ops = append(ops, args...)
		s.emit(op, append(ops, dst)...)
		return
	}
	for i1 := len(args) - 1; i1 >= 0; i1-- {
		s.emit(OpPush, args[i1])
	}
	s.emit(OpCall, target, ImmOp(int64(len(args))), dst)
}

// byValCopy copies the aggregate of type t at v into a new frame object and returns the address of the copy.
func (s *selector) byValCopy(v lir.Value, t types.Type) Operand {
	size := types.Size(t)
	if size < 1 {
		size = 1
	}
	fi := s.f.CreateFrameObject(size, MinAlign)
	s.emit(OpMcopy, ImmOp(int64(size)), s.operand(v), FrameOp(fi, 0))
	return FrameOp(fi, 0)
}

// varargBuffer stores the variadic arguments of a call in 4-byte slots of a new frame object and returns its
// address, or 0 if there are none.
func (s *selector) varargBuffer(extra []lir.Value) Operand {
	if len(extra) == 0 {
		return ImmOp(0)
	}
	size := 0
	for _, e1 := range extra {
		size += VarargSlot(e1.Type())
	}
	fi := s.f.CreateFrameObject(size, StackAlign)
	off := 0
	for _, e1 := range extra {
		s.emit(OpAstore, FrameOp(fi, 0), ImmOp(int64(off/WordSize)), s.operand(e1))
		off += VarargSlot(e1.Type())
	}
	return FrameOp(fi, 0)
}
