package lir

import (
	"fmt"
	"glulxc/src/ir/lir/types"
	"strings"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Block defines a basic block. A basic block is a sequence of instructions that is terminated by a branch instruction
// or a return instruction.
type Block struct {
	f     *Function      // Parent function that owns the basic block.
	id    int            // Unique identifier of basic block.
	name  string         // Label of basic block.
	insts []*Instruction // Instructions in the basic block.
}

// ---------------------
// ----- Constants -----
// ---------------------

// labelBlockPrefix defines the textual LIR representation of an unnamed basic block label.
const labelBlockPrefix = "block"

// ---------------------
// ----- Functions -----
// ---------------------

// Id returns the uniquely assigned identifier of Block b.
func (b *Block) Id() int {
	return b.id
}

// Name returns the bare label name of Block b.
func (b *Block) Name() string {
	return b.name
}

// Label returns the operand reference of Block b as used by branch instructions.
func (b *Block) Label() string {
	return "%" + b.name
}

// Parent returns the function that owns Block b.
func (b *Block) Parent() *Function {
	return b.f
}

// Instructions returns the instructions of the basic Block b.
func (b *Block) Instructions() []*Instruction {
	return b.insts
}

// Terminator returns the terminating instruction of Block b, or nil if b is not terminated.
func (b *Block) Terminator() *Instruction {
	if len(b.insts) == 0 {
		return nil
	}
	if last := b.insts[len(b.insts)-1]; last.IsTerminator() {
		return last
	}
	return nil
}

// Successors returns the basic blocks that control may transfer to from Block b.
func (b *Block) Successors() []*Block {
	t := b.Terminator()
	if t == nil {
		return nil
	}
	return t.Targets
}

// Predecessors returns the basic blocks of the parent function that branch to Block b.
func (b *Block) Predecessors() []*Block {
	res := make([]*Block, 0, 2)
	for _, e1 := range b.f.blocks {
		for _, e2 := range e1.Successors() {
			if e2 == b {
				res = append(res, e1)
				break
			}
		}
	}
	return res
}

// String returns the textual LIR representation of all instructions in Block b.
func (b *Block) String() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("%s:\n", b.name))
	for _, e1 := range b.insts {
		sb.WriteRune('\t')
		sb.WriteString(e1.String())
		sb.WriteRune('\n')
	}
	if b.Terminator() == nil {
		sb.WriteString(fmt.Sprintf("\t; error: basic block %s is not terminated\n", b.name))
	}
	return sb.String()
}

// append adds inst to the end of Block b and names it if it produces an unnamed result.
func (b *Block) append(inst *Instruction) *Instruction {
	if b.Terminator() != nil {
		panic(fmt.Sprintf("cannot append %s to terminated basic block %s", inst.Op, b.name))
	}
	inst.b = b
	if inst.Typ == nil {
		inst.Typ = types.Void
	}
	if inst.HasResult() && len(inst.name) == 0 {
		inst.name = fmt.Sprintf("%s%d", labelInstructionPrefix, b.f.getId())
	}
	b.insts = append(b.insts, inst)
	return inst
}

// ---------------------------------------
// ----- Arithmetic and logic builders -----
// ---------------------------------------

// CreateBinary creates a two operand arithmetic or logic instruction.
func (b *Block) CreateBinary(op Opcode, op1, op2 Value) *Instruction {
	if !op.IsBinary() {
		panic(fmt.Sprintf("%s is not a binary operation", op))
	}
	if !types.Equal(op1.Type(), op2.Type()) {
		panic(fmt.Sprintf("operand types %s and %s differ, cannot use as input to %s", op1.Type(), op2.Type(), op))
	}
	if op >= OpFAdd {
		if !types.IsFloat(op1.Type()) {
			panic(fmt.Sprintf("operand is not a floating point value, cannot use %s as input to %s", op1.Type(), op))
		}
	} else if !types.IsInt(op1.Type()) {
		panic(fmt.Sprintf("operand is not an integer value, cannot use %s as input to %s", op1.Type(), op))
	}
	return b.append(&Instruction{
		Op:  op,
		Typ: op1.Type(),
		Ops: []Value{op1, op2},
	})
}

// CreateFNeg creates a floating point negation.
func (b *Block) CreateFNeg(op1 Value) *Instruction {
	if !types.IsFloat(op1.Type()) {
		panic(fmt.Sprintf("operand is not a floating point value, cannot use %s as input to CreateFNeg", op1.Type()))
	}
	return b.append(&Instruction{
		Op:  OpFNeg,
		Typ: op1.Type(),
		Ops: []Value{op1},
	})
}

// CreateICmp creates an integer or pointer comparison that yields an i1.
func (b *Block) CreateICmp(pred IntPredicate, op1, op2 Value) *Instruction {
	if !types.Equal(op1.Type(), op2.Type()) {
		panic(fmt.Sprintf("operand types %s and %s differ, cannot use as input to CreateICmp", op1.Type(), op2.Type()))
	}
	if !types.IsInt(op1.Type()) && op1.Type().Kind() != types.PointerKind {
		panic(fmt.Sprintf("cannot compare values of type %s with icmp", op1.Type()))
	}
	return b.append(&Instruction{
		Op:    OpICmp,
		Typ:   types.I1,
		Ops:   []Value{op1, op2},
		IPred: pred,
	})
}

// CreateFCmp creates a floating point comparison that yields an i1.
func (b *Block) CreateFCmp(pred FloatPredicate, op1, op2 Value) *Instruction {
	if !types.Equal(op1.Type(), op2.Type()) || !types.IsFloat(op1.Type()) {
		panic(fmt.Sprintf("cannot compare values of type %s and %s with fcmp", op1.Type(), op2.Type()))
	}
	return b.append(&Instruction{
		Op:    OpFCmp,
		Typ:   types.I1,
		Ops:   []Value{op1, op2},
		FPred: pred,
	})
}

// CreateSelect creates an instruction that yields thn if cond is true and els otherwise.
func (b *Block) CreateSelect(cond, thn, els Value) *Instruction {
	if !types.Equal(cond.Type(), types.I1) {
		panic(fmt.Sprintf("condition is not an i1, cannot use %s as condition of CreateSelect", cond.Type()))
	}
	if !types.Equal(thn.Type(), els.Type()) {
		panic(fmt.Sprintf("operand types %s and %s differ, cannot use as input to CreateSelect", thn.Type(), els.Type()))
	}
	return b.append(&Instruction{
		Op:  OpSelect,
		Typ: thn.Type(),
		Ops: []Value{cond, thn, els},
	})
}

// CreateCast creates a type conversion of val to type to.
func (b *Block) CreateCast(op Opcode, val Value, to types.Type) *Instruction {
	if !op.IsCast() {
		panic(fmt.Sprintf("%s is not a cast operation", op))
	}
	from := val.Type()
	ok := true
	switch op {
	case OpTrunc:
		ok = types.IsInt(from) && types.IsInt(to) && types.Bits(from) > types.Bits(to)
	case OpZExt, OpSExt:
		ok = types.IsInt(from) && types.IsInt(to) && types.Bits(from) < types.Bits(to)
	case OpFPToSI, OpFPToUI:
		ok = types.IsFloat(from) && types.IsInt(to)
	case OpSIToFP, OpUIToFP:
		ok = types.IsInt(from) && types.IsFloat(to)
	case OpBitcast:
		ok = types.Bits(from) == types.Bits(to) && types.Bits(from) > 0
	case OpPtrToInt:
		ok = from.Kind() == types.PointerKind && types.IsInt(to)
	case OpIntToPtr:
		ok = types.IsInt(from) && to.Kind() == types.PointerKind
	}
	if !ok {
		panic(fmt.Sprintf("cannot %s from %s to %s", op, from, to))
	}
	return b.append(&Instruction{
		Op:  op,
		Typ: to,
		Ops: []Value{val},
	})
}

// ------------------------------
// ----- Memory builders -----
// ------------------------------

// CreateAlloca creates a stack slot holding count elements of type t. A nil count allocates a single element.
func (b *Block) CreateAlloca(t types.Type, count Value, align int) *Instruction {
	inst := &Instruction{
		Op:    OpAlloca,
		Typ:   types.Ptr,
		Elem:  t,
		Align: align,
	}
	if count != nil {
		if !types.IsInt(count.Type()) {
			panic(fmt.Sprintf("element count is not an integer, cannot use %s as input to CreateAlloca", count.Type()))
		}
		inst.Ops = []Value{count}
	}
	return b.append(inst)
}

// CreateLoad creates a load of a value of type t from address src.
func (b *Block) CreateLoad(t types.Type, src Value, align int) *Instruction {
	if src.Type().Kind() != types.PointerKind {
		panic(fmt.Sprintf("address is not a pointer, cannot use %s as input to CreateLoad", src.Type()))
	}
	if t.Kind() == types.VoidKind {
		panic("cannot load a void value")
	}
	return b.append(&Instruction{
		Op:    OpLoad,
		Typ:   t,
		Ops:   []Value{src},
		Align: align,
	})
}

// CreateStore creates a store of val to address dst.
func (b *Block) CreateStore(val, dst Value, align int) *Instruction {
	if dst.Type().Kind() != types.PointerKind {
		panic(fmt.Sprintf("address is not a pointer, cannot use %s as input to CreateStore", dst.Type()))
	}
	return b.append(&Instruction{
		Op:    OpStore,
		Typ:   types.Void,
		Ops:   []Value{val, dst},
		Align: align,
	})
}

// CreateGEP creates an address computation. The first index scales by the size of elem, further indices select
// array elements or struct fields within elem.
func (b *Block) CreateGEP(elem types.Type, base Value, idx ...Value) *Instruction {
	if base.Type().Kind() != types.PointerKind {
		panic(fmt.Sprintf("base is not a pointer, cannot use %s as input to CreateGEP", base.Type()))
	}
	t := elem
	for i1, e1 := range idx {
		if !types.IsInt(e1.Type()) {
			panic(fmt.Sprintf("index %d is not an integer, cannot use %s as input to CreateGEP", i1, e1.Type()))
		}
		if i1 == 0 {
			continue
		}
		switch x := t.(type) {
		case *types.ArrayType:
			t = x.Elem
		case *types.StructType:
			c, ok := e1.(*ConstInt)
			if !ok || c.V < 0 || int(c.V) >= len(x.Fields) {
				panic(fmt.Sprintf("struct index %s is not a valid field of %s", e1.Name(), x))
			}
			t = x.Fields[c.V]
		default:
			panic(fmt.Sprintf("cannot index into %s", t))
		}
	}
	ops := make([]Value, 0, len(idx)+1)
	ops = append(ops, base)
	ops = append(ops, idx...)
	return b.append(&Instruction{
		Op:   OpGEP,
		Typ:  types.Ptr,
		Ops:  ops,
		Elem: elem,
	})
}

// ------------------------------------
// ----- Call and SSA builders -----
// ------------------------------------

// CreateCall creates a call of callee with signature sig.
func (b *Block) CreateCall(sig *types.FuncType, callee Value, args ...Value) *Instruction {
	if callee.Type().Kind() != types.PointerKind {
		panic(fmt.Sprintf("callee is not a pointer, cannot use %s as input to CreateCall", callee.Type()))
	}
	if len(args) < len(sig.Params) || (!sig.Variadic && len(args) != len(sig.Params)) {
		panic(fmt.Sprintf("call of %s with %d arguments, expected %d", callee.Name(), len(args), len(sig.Params)))
	}
	for i1, e1 := range sig.Params {
		if !types.Equal(e1, args[i1].Type()) {
			panic(fmt.Sprintf("argument %d of call of %s has type %s, expected %s", i1, callee.Name(),
				args[i1].Type(), e1))
		}
	}
	ops := make([]Value, 0, len(args)+1)
	ops = append(ops, callee)
	ops = append(ops, args...)
	inst := &Instruction{
		Op:       OpCall,
		Typ:      sig.Ret,
		Ops:      ops,
		Sig:      sig,
		ArgAttrs: make([]ArgAttrs, len(args)),
	}
	if f, ok := callee.(*Function); ok {
		inst.CallConv = f.CallConv
	}
	return b.append(inst)
}

// CreateVAArg creates a read of the next variadic argument of type t from the va_list at ap.
func (b *Block) CreateVAArg(t types.Type, ap Value) *Instruction {
	if ap.Type().Kind() != types.PointerKind {
		panic(fmt.Sprintf("va_list is not a pointer, cannot use %s as input to CreateVAArg", ap.Type()))
	}
	return b.append(&Instruction{
		Op:  OpVAArg,
		Typ: t,
		Ops: []Value{ap},
	})
}

// CreatePhi creates a phi instruction of type t. Incoming values are added with AddIncoming.
func (b *Block) CreatePhi(t types.Type) *Instruction {
	for _, e1 := range b.insts {
		if e1.Op != OpPhi {
			panic(fmt.Sprintf("phi must precede all other instructions of basic block %s", b.name))
		}
	}
	return b.append(&Instruction{
		Op:  OpPhi,
		Typ: t,
	})
}

// ----------------------------------
// ----- Terminator builders -----
// ----------------------------------

// CreateBranch creates an unconditional branch to dst.
func (b *Block) CreateBranch(dst *Block) *Instruction {
	return b.append(&Instruction{
		Op:      OpBr,
		Targets: []*Block{dst},
	})
}

// CreateCondBranch creates a branch to thn if cond is true and to els otherwise.
func (b *Block) CreateCondBranch(cond Value, thn, els *Block) *Instruction {
	if !types.Equal(cond.Type(), types.I1) {
		panic(fmt.Sprintf("condition is not an i1, cannot use %s as condition of CreateCondBranch", cond.Type()))
	}
	return b.append(&Instruction{
		Op:      OpCondBr,
		Ops:     []Value{cond},
		Targets: []*Block{thn, els},
	})
}

// CreateSwitch creates a multi way branch on val. Cases are added with AddCase.
func (b *Block) CreateSwitch(val Value, def *Block) *Instruction {
	if !types.IsInt(val.Type()) {
		panic(fmt.Sprintf("switch value is not an integer, cannot use %s as input to CreateSwitch", val.Type()))
	}
	return b.append(&Instruction{
		Op:      OpSwitch,
		Ops:     []Value{val},
		Targets: []*Block{def},
	})
}

// AddCase adds a case to a switch instruction.
func (i *Instruction) AddCase(c *ConstInt, dst *Block) {
	if i.Op != OpSwitch {
		panic(fmt.Sprintf("%s is not a switch instruction", i.Op))
	}
	if !types.Equal(c.Type(), i.Ops[0].Type()) {
		panic(fmt.Sprintf("case value has type %s, expected %s", c.Type(), i.Ops[0].Type()))
	}
	i.Cases = append(i.Cases, c)
	i.Targets = append(i.Targets, dst)
}

// CreateIndirectBranch creates a computed goto to one of dsts.
func (b *Block) CreateIndirectBranch(addr Value, dsts ...*Block) *Instruction {
	if addr.Type().Kind() != types.PointerKind {
		panic(fmt.Sprintf("address is not a pointer, cannot use %s as input to CreateIndirectBranch", addr.Type()))
	}
	return b.append(&Instruction{
		Op:      OpIndirectBr,
		Ops:     []Value{addr},
		Targets: dsts,
	})
}

// CreateReturn creates a return. Pass a nil val to return from a void function.
func (b *Block) CreateReturn(val Value) *Instruction {
	inst := &Instruction{Op: OpRet}
	if val != nil {
		ret := b.f.Sig.Ret
		if !types.Equal(ret, val.Type()) {
			panic(fmt.Sprintf("cannot return %s from function %s returning %s", val.Type(), b.f.Name(), ret))
		}
		inst.Ops = []Value{val}
	}
	return b.append(inst)
}

// CreateUnreachable creates an instruction that marks the end of a block as unreachable.
func (b *Block) CreateUnreachable() *Instruction {
	return b.append(&Instruction{Op: OpUnreachable})
}
