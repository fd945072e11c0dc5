package lir

import (
	"fmt"
	"glulxc/src/ir/lir/types"
	"strings"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Pos is a source position. Line and column start at 1; a zero Pos is unknown.
type Pos struct {
	Line int
	Col  int
}

// Instruction is a single LIR operation. The meaning of Ops and Targets depends on Op:
//
//	binary, icmp, fcmp   Ops: lhs, rhs
//	fneg, cast, load     Ops: value or address
//	select               Ops: cond, true value, false value
//	alloca               Ops: element count (optional), Elem: allocated type
//	store                Ops: value, address
//	gep                  Ops: base, indices..., Elem: source element type
//	call                 Ops: callee, args..., Sig: callee signature
//	va_arg               Ops: va_list address
//	phi                  Ops: incoming values, Targets: incoming blocks
//	br                   Targets: destination
//	condbr               Ops: cond, Targets: true, false
//	switch               Ops: value, Targets: default, cases..., Cases: case values
//	indirectbr           Ops: address, Targets: possible destinations
//	ret                  Ops: value (optional)
type Instruction struct {
	b        *Block          // Parent basic block.
	name     string          // Name of the result value.
	Op       Opcode          // Operation.
	Typ      types.Type      // Result type; types.Void if the instruction produces no value.
	Ops      []Value         // Operands.
	Targets  []*Block        // Successor blocks, or incoming blocks of a phi.
	IPred    IntPredicate    // Condition of icmp.
	FPred    FloatPredicate  // Condition of fcmp.
	Elem     types.Type      // Allocated type of alloca and source element type of gep.
	Sig      *types.FuncType // Signature of the callee of a call.
	Align    int             // Explicit alignment of alloca, load and store; 0 if unspecified.
	Tail     TailKind        // Tail call marker of a call.
	CallConv CallConv        // Calling convention of a call.
	ArgAttrs []ArgAttrs      // Argument attributes of a call, one per argument.
	Cases    []*ConstInt     // Case values of a switch.
	Pos      Pos             // Source position.
}

// ---------------------
// ----- Constants -----
// ---------------------

// labelInstructionPrefix is used for naming unnamed instructions.
const labelInstructionPrefix = "t"

// ---------------------
// ----- Functions -----
// ---------------------

// Name returns the operand reference of the instruction result.
func (i *Instruction) Name() string {
	return "%" + i.name
}

// SetName renames the result of Instruction i.
func (i *Instruction) SetName(name string) *Instruction {
	if len(name) > 0 {
		i.name = name
	}
	return i
}

// Type returns the result type of Instruction i.
func (i *Instruction) Type() types.Type {
	return i.Typ
}

// Parent returns the basic block that holds Instruction i.
func (i *Instruction) Parent() *Block {
	return i.b
}

// HasResult reports whether Instruction i produces a value.
func (i *Instruction) HasResult() bool {
	return i.Typ != nil && i.Typ.Kind() != types.VoidKind
}

// IsTerminator reports whether Instruction i ends its basic block.
func (i *Instruction) IsTerminator() bool {
	return i.Op.IsTerminator()
}

// Callee returns the called value of a call instruction.
func (i *Instruction) Callee() Value {
	if i.Op != OpCall {
		return nil
	}
	return i.Ops[0]
}

// CalledFunction returns the called function of a direct call, or nil.
func (i *Instruction) CalledFunction() *Function {
	f, _ := i.Callee().(*Function)
	return f
}

// Args returns the arguments of a call instruction.
func (i *Instruction) Args() []Value {
	if i.Op != OpCall {
		return nil
	}
	return i.Ops[1:]
}

// AddIncoming adds an incoming value to a phi instruction.
func (i *Instruction) AddIncoming(v Value, b *Block) {
	if i.Op != OpPhi {
		panic(fmt.Sprintf("%s is not a phi instruction", i.Name()))
	}
	if !types.Equal(v.Type(), i.Typ) {
		panic(fmt.Sprintf("phi %s: incoming value %s has type %s, expected %s", i.Name(), v.Name(), v.Type(), i.Typ))
	}
	i.Ops = append(i.Ops, v)
	i.Targets = append(i.Targets, b)
}

// SetOperand replaces operand n of Instruction i.
func (i *Instruction) SetOperand(n int, v Value) {
	i.Ops[n] = v
}

// String returns the textual LIR representation of Instruction i.
func (i *Instruction) String() string {
	sb := strings.Builder{}
	if i.HasResult() {
		sb.WriteString(i.Name())
		sb.WriteString(" = ")
	}
	switch {
	case i.Op.IsBinary():
		sb.WriteString(fmt.Sprintf("%s %s %s, %s", i.Op, i.Typ, i.Ops[0].Name(), i.Ops[1].Name()))
	case i.Op.IsCast():
		sb.WriteString(fmt.Sprintf("%s %s to %s", i.Op, operand(i.Ops[0]), i.Typ))
	}
	switch i.Op {
	case OpFNeg:
		sb.WriteString(fmt.Sprintf("fneg %s %s", i.Typ, i.Ops[0].Name()))
	case OpICmp:
		sb.WriteString(fmt.Sprintf("icmp %s %s %s, %s", i.IPred, i.Ops[0].Type(), i.Ops[0].Name(), i.Ops[1].Name()))
	case OpFCmp:
		sb.WriteString(fmt.Sprintf("fcmp %s %s %s, %s", i.FPred, i.Ops[0].Type(), i.Ops[0].Name(), i.Ops[1].Name()))
	case OpSelect:
		sb.WriteString(fmt.Sprintf("select %s, %s %s, %s", i.Ops[0].Name(), i.Typ, i.Ops[1].Name(), i.Ops[2].Name()))
	case OpAlloca:
		sb.WriteString(fmt.Sprintf("alloca %s", i.Elem))
		if len(i.Ops) > 0 {
			sb.WriteString(fmt.Sprintf(", count %s", operand(i.Ops[0])))
		}
		if i.Align > 0 {
			sb.WriteString(fmt.Sprintf(", align %d", i.Align))
		}
	case OpLoad:
		sb.WriteString(fmt.Sprintf("load %s, %s", i.Typ, i.Ops[0].Name()))
		if i.Align > 0 {
			sb.WriteString(fmt.Sprintf(", align %d", i.Align))
		}
	case OpStore:
		sb.WriteString(fmt.Sprintf("store %s, %s", operand(i.Ops[0]), i.Ops[1].Name()))
		if i.Align > 0 {
			sb.WriteString(fmt.Sprintf(", align %d", i.Align))
		}
	case OpGEP:
		sb.WriteString(fmt.Sprintf("gep %s, %s", i.Elem, i.Ops[0].Name()))
		for _, e1 := range i.Ops[1:] {
			sb.WriteString(", ")
			sb.WriteString(operand(e1))
		}
	case OpCall:
		sb.WriteString(i.callString())
	case OpVAArg:
		sb.WriteString(fmt.Sprintf("va_arg %s, %s", i.Typ, i.Ops[0].Name()))
	case OpPhi:
		sb.WriteString(fmt.Sprintf("phi %s ", i.Typ))
		for i1, e1 := range i.Ops {
			if i1 > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("[%s, %s]", e1.Name(), i.Targets[i1].Label()))
		}
	case OpBr:
		sb.WriteString(fmt.Sprintf("br %s", i.Targets[0].Label()))
	case OpCondBr:
		sb.WriteString(fmt.Sprintf("br %s, %s, %s", i.Ops[0].Name(), i.Targets[0].Label(), i.Targets[1].Label()))
	case OpSwitch:
		sb.WriteString(fmt.Sprintf("switch %s, %s [", operand(i.Ops[0]), i.Targets[0].Label()))
		for i1, e1 := range i.Cases {
			if i1 > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(fmt.Sprintf(" %d: %s", e1.V, i.Targets[i1+1].Label()))
		}
		sb.WriteString(" ]")
	case OpIndirectBr:
		sb.WriteString(fmt.Sprintf("indirectbr %s, [", i.Ops[0].Name()))
		for i1, e1 := range i.Targets {
			if i1 > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(e1.Label())
		}
		sb.WriteRune(']')
	case OpRet:
		if len(i.Ops) == 0 {
			sb.WriteString("ret void")
		} else {
			sb.WriteString(fmt.Sprintf("ret %s", operand(i.Ops[0])))
		}
	case OpUnreachable:
		sb.WriteString("unreachable")
	}
	return sb.String()
}

// callString returns the textual representation of a call instruction without the result assignment.
func (i *Instruction) callString() string {
	sb := strings.Builder{}
	switch i.Tail {
	case Tail:
		sb.WriteString("tail ")
	case MustTail:
		sb.WriteString("musttail ")
	}
	sb.WriteString("call ")
	if i.CallConv != CallConvC {
		sb.WriteString(i.CallConv.String())
		sb.WriteRune(' ')
	}
	sb.WriteString(i.Sig.Ret.String())
	sb.WriteRune(' ')
	if i.Sig.Variadic {
		sb.WriteString(i.Sig.String())
		sb.WriteRune(' ')
	}
	sb.WriteString(i.Ops[0].Name())
	sb.WriteRune('(')
	for i1, e1 := range i.Args() {
		if i1 > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(e1.Type().String())
		if i1 < len(i.ArgAttrs) {
			sb.WriteString(i.ArgAttrs[i1].String())
		}
		sb.WriteRune(' ')
		sb.WriteString(e1.Name())
	}
	sb.WriteRune(')')
	return sb.String()
}

// operand returns the typed operand form of v, such as "i32 %x".
func operand(v Value) string {
	return v.Type().String() + " " + v.Name()
}
