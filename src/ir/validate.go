package ir

import (
	"fmt"
	"glulxc/src/ir/lir"
	"glulxc/src/ir/lir/types"
	"glulxc/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// ValidationError reports a malformed LIR construct.
type ValidationError struct {
	Func string  // Name of the function that holds the construct.
	Pos  lir.Pos // Source position, if known.
	Msg  string
}

// ---------------------
// ----- Functions -----
// ---------------------

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Pos.Line > 0 {
		return fmt.Sprintf("%d:%d: %s: %s", e.Pos.Line, e.Pos.Col, e.Func, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Func, e.Msg)
}

// Validate checks that every function of Module m is well formed: each basic block ends in exactly one terminator,
// phi instructions lead their block and list every predecessor, branch targets and instruction operands belong to
// the same function and operand types agree with the instruction. All violations are reported.
func Validate(opt util.Options, m *lir.Module) error {
	return forEachFunction(opt, definedFunctions(m), validateFunction)
}

// validateFunction returns the first violation found in Function f.
func validateFunction(f *lir.Function) error {
	blocks := make(map[*lir.Block]bool, len(f.Blocks()))
	defs := make(map[*lir.Instruction]bool, 64)
	for _, e1 := range f.Blocks() {
		blocks[e1] = true
		for _, e2 := range e1.Instructions() {
			defs[e2] = true
		}
	}

	for _, e1 := range f.Blocks() {
		insts := e1.Instructions()
		if e1.Terminator() == nil {
			return &ValidationError{Func: f.Name(), Msg: fmt.Sprintf("basic block %s is not terminated", e1.Label())}
		}
		preds := e1.Predecessors()
		if e1 == f.Entry() && len(preds) > 0 {
			return &ValidationError{Func: f.Name(), Msg: fmt.Sprintf("entry block %s has predecessors", e1.Label())}
		}
		leading := true
		for i1, e2 := range insts {
			verr := func(format string, a ...any) error {
				return &ValidationError{Func: f.Name(), Pos: e2.Pos, Msg: fmt.Sprintf(format, a...)}
			}
			if e2.IsTerminator() && i1 != len(insts)-1 {
				return verr("terminator %s in the middle of basic block %s", e2.Op, e1.Label())
			}
			if e2.Op == lir.OpPhi {
				if !leading {
					return verr("phi %s does not lead basic block %s", e2.Name(), e1.Label())
				}
				if err := validatePhi(e2, preds); err != nil {
					return verr("%s", err)
				}
			} else {
				leading = false
			}
			for _, e3 := range e2.Targets {
				if !blocks[e3] {
					return verr("%s refers to basic block %s outside of the function", e2.Op, e3.Label())
				}
			}
			for _, e3 := range e2.Ops {
				switch x := e3.(type) {
				case nil:
					return verr("%s has a missing operand", e2.Op)
				case *lir.Instruction:
					if !defs[x] {
						return verr("operand %s is not defined in the function", x.Name())
					}
					if !x.HasResult() {
						return verr("operand %s does not produce a value", x.Name())
					}
				case *lir.Param:
					if x.Parent() != f {
						return verr("operand %s is a parameter of %s", x.Name(), x.Parent().Name())
					}
				}
			}
			if err := validateTypes(f, e2); err != nil {
				return verr("%s", err)
			}
		}
	}
	return nil
}

// validatePhi checks that phi lists each predecessor in preds exactly once.
func validatePhi(phi *lir.Instruction, preds []*lir.Block) error {
	if len(phi.Targets) != len(preds) {
		return fmt.Errorf("phi %s has %d incoming values, block %s has %d predecessors",
			phi.Name(), len(phi.Targets), phi.Parent().Label(), len(preds))
	}
	seen := make(map[*lir.Block]bool, len(preds))
	for _, e1 := range phi.Targets {
		if seen[e1] {
			return fmt.Errorf("phi %s lists %s twice", phi.Name(), e1.Label())
		}
		seen[e1] = true
	}
	for _, e1 := range preds {
		if !seen[e1] {
			return fmt.Errorf("phi %s has no incoming value from predecessor %s", phi.Name(), e1.Label())
		}
	}
	return nil
}

// validateTypes checks the operand types of inst that the builders cannot check at construction time.
func validateTypes(f *lir.Function, inst *lir.Instruction) error {
	switch inst.Op {
	case lir.OpRet:
		ret := f.Sig.Ret
		if len(inst.Ops) == 0 {
			if ret.Kind() != types.VoidKind {
				return fmt.Errorf("ret void in function returning %s", ret)
			}
			return nil
		}
		if !types.Equal(inst.Ops[0].Type(), ret) {
			return fmt.Errorf("ret %s in function returning %s", inst.Ops[0].Type(), ret)
		}
	case lir.OpCall:
		args := inst.Args()
		params := inst.Sig.Params
		if len(args) < len(params) || (len(args) > len(params) && !inst.Sig.Variadic) {
			return fmt.Errorf("call to %s with %d arguments, expected %d", inst.Callee().Name(), len(args), len(params))
		}
		for i1, e1 := range params {
			if !types.Equal(args[i1].Type(), e1) {
				return fmt.Errorf("argument %d of call to %s has type %s, expected %s",
					i1, inst.Callee().Name(), args[i1].Type(), e1)
			}
		}
		if inst.Callee().Type().Kind() != types.PointerKind {
			return fmt.Errorf("call of non-pointer value %s", inst.Callee().Name())
		}
	case lir.OpCondBr:
		if !types.Equal(inst.Ops[0].Type(), types.I1) {
			return fmt.Errorf("branch condition %s has type %s, expected i1", inst.Ops[0].Name(), inst.Ops[0].Type())
		}
	case lir.OpSwitch:
		for _, e1 := range inst.Cases {
			if !types.Equal(e1.Type(), inst.Ops[0].Type()) {
				return fmt.Errorf("switch case %s does not match %s", e1, inst.Ops[0].Type())
			}
		}
	case lir.OpPhi:
		for _, e1 := range inst.Ops {
			if !types.Equal(e1.Type(), inst.Typ) {
				return fmt.Errorf("phi %s: incoming value %s has type %s", inst.Name(), e1.Name(), e1.Type())
			}
		}
	}
	return nil
}
