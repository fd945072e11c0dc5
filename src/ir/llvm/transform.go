// Package llvm imports LLVM IR and bitcode into LIR through the system installed LLVM runtime. Textual IR and
// bitcode are both accepted; the LLVM IR reader detects the format.
package llvm

import (
	"fmt"
	"glulxc/src/ir/lir"
	"glulxc/src/ir/lir/types"
	"strings"

	"tinygo.org/x/go-llvm"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// importer holds the state of a single module import.
type importer struct {
	m      *lir.Module
	values map[llvm.Value]lir.Value       // Translated globals, functions, parameters and instructions.
	blocks map[llvm.BasicBlock]*lir.Block // Basic blocks of all functions.
	fwd    map[llvm.Value]*pending        // Instructions of the current function used before translation.
	f      llvm.Value                     // Function under translation.
}

// pending stands in for an instruction operand that is translated later in the same function.
type pending struct {
	v   llvm.Value
	typ types.Type
}

// importError is raised with panic inside the importer and converted to an error by Import.
type importError struct {
	err error
}

// ---------------------
// ----- Constants -----
// ---------------------

// ignoredIntrinsics are the prefixes of annotation intrinsics that have no effect on generated code. Calls to them
// are dropped during import.
var ignoredIntrinsics = []string{
	"llvm.dbg.",
	"llvm.lifetime.",
	"llvm.assume",
	"llvm.experimental.noalias.scope.decl",
}

// binaryOps maps LLVM binary opcodes to LIR opcodes.
var binaryOps = map[llvm.Opcode]lir.Opcode{
	llvm.Add:  lir.OpAdd,
	llvm.Sub:  lir.OpSub,
	llvm.Mul:  lir.OpMul,
	llvm.SDiv: lir.OpSDiv,
	llvm.UDiv: lir.OpUDiv,
	llvm.SRem: lir.OpSRem,
	llvm.URem: lir.OpURem,
	llvm.And:  lir.OpAnd,
	llvm.Or:   lir.OpOr,
	llvm.Xor:  lir.OpXor,
	llvm.Shl:  lir.OpShl,
	llvm.LShr: lir.OpLShr,
	llvm.AShr: lir.OpAShr,
	llvm.FAdd: lir.OpFAdd,
	llvm.FSub: lir.OpFSub,
	llvm.FMul: lir.OpFMul,
	llvm.FDiv: lir.OpFDiv,
	llvm.FRem: lir.OpFRem,
}

// castOps maps LLVM cast opcodes to LIR opcodes.
var castOps = map[llvm.Opcode]lir.Opcode{
	llvm.Trunc:    lir.OpTrunc,
	llvm.ZExt:     lir.OpZExt,
	llvm.SExt:     lir.OpSExt,
	llvm.FPToSI:   lir.OpFPToSI,
	llvm.FPToUI:   lir.OpFPToUI,
	llvm.SIToFP:   lir.OpSIToFP,
	llvm.UIToFP:   lir.OpUIToFP,
	llvm.BitCast:  lir.OpBitcast,
	llvm.PtrToInt: lir.OpPtrToInt,
	llvm.IntToPtr: lir.OpIntToPtr,
}

// intPredicates maps LLVM integer predicates to LIR predicates.
var intPredicates = map[llvm.IntPredicate]lir.IntPredicate{
	llvm.IntEQ:  lir.IntEQ,
	llvm.IntNE:  lir.IntNE,
	llvm.IntUGT: lir.IntUGT,
	llvm.IntUGE: lir.IntUGE,
	llvm.IntULT: lir.IntULT,
	llvm.IntULE: lir.IntULE,
	llvm.IntSGT: lir.IntSGT,
	llvm.IntSGE: lir.IntSGE,
	llvm.IntSLT: lir.IntSLT,
	llvm.IntSLE: lir.IntSLE,
}

// ---------------------
// ----- Functions -----
// ---------------------

func (p *pending) Type() types.Type { return p.typ }
func (p *pending) Name() string     { return "%" + p.v.Name() }
func (p *pending) String() string   { return fmt.Sprintf("%s %s", p.typ, p.Name()) }

// Import parses the LLVM IR or bitcode in src and translates it into an LIR module named file.
func Import(file string, src []byte) (m *lir.Module, err error) {
	ctx := llvm.NewContext()
	defer ctx.Dispose()

	mod, err := ctx.ParseIR(llvm.NewMemoryBufferFromRangeCopy(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	im := &importer{
		m:      lir.CreateModule(file),
		values: make(map[llvm.Value]lir.Value, 64),
		blocks: make(map[llvm.BasicBlock]*lir.Block, 64),
	}

	defer func() {
		if r := recover(); r != nil {
			ie, ok := r.(importError)
			if !ok {
				panic(r)
			}
			m, err = nil, fmt.Errorf("%s: %w", file, ie.err)
		}
	}()
	im.translate(mod)
	return im.m, nil
}

// failf aborts the import with a formatted error.
func failf(format string, a ...any) {
	panic(importError{err: fmt.Errorf(format, a...)})
}

// translate declares all symbols of mod before it translates initialisers and function bodies, which lets both
// refer to any symbol of the module.
func (im *importer) translate(mod llvm.Module) {
	for g := mod.FirstGlobal(); !g.IsNil(); g = llvm.NextGlobal(g) {
		lg := im.m.CreateGlobal(g.Name(), im.convertType(g.GlobalValueType()), nil)
		lg.Linkage = convertLinkage(g.Linkage())
		lg.Align = g.Alignment()
		lg.Constant = g.IsGlobalConstant()
		im.values[g] = lg
	}
	for fn := mod.FirstFunction(); !fn.IsNil(); fn = llvm.NextFunction(fn) {
		if ignored(fn.Name()) {
			continue
		}
		im.declareFunction(fn)
	}

	for g := mod.FirstGlobal(); !g.IsNil(); g = llvm.NextGlobal(g) {
		if init := g.Initializer(); !init.IsNil() {
			im.values[g].(*lir.Global).Init = im.constant(init)
		}
	}
	for fn := mod.FirstFunction(); !fn.IsNil(); fn = llvm.NextFunction(fn) {
		if !fn.IsDeclaration() && !ignored(fn.Name()) {
			im.translateFunction(fn)
		}
	}
}

// ignored reports whether calls to the function named name are dropped.
func ignored(name string) bool {
	for _, e1 := range ignoredIntrinsics {
		if strings.HasPrefix(name, e1) {
			return true
		}
	}
	return false
}

// declareFunction creates the LIR function of fn with its parameters and, for definitions, empty basic blocks.
func (im *importer) declareFunction(fn llvm.Value) {
	sig, ok := im.convertType(fn.GlobalValueType()).(*types.FuncType)
	if !ok {
		failf("@%s: function has no function type", fn.Name())
	}
	f := im.m.CreateFunction(fn.Name(), sig)
	f.Linkage = convertLinkage(fn.Linkage())
	f.CallConv = lir.CallConv(fn.FunctionCallConv())
	f.Interrupt = !fn.GetStringAttributeAtIndex(-1, "interrupt").IsNil()
	for i1, e1 := range fn.Params() {
		p := f.Params()[i1]
		if n := e1.Name(); len(n) > 0 {
			p.SetName(n)
		}
		p.Attrs = im.paramAttrs(fn, i1)
		im.values[e1] = p
	}
	im.values[fn] = f

	for bb := fn.FirstBasicBlock(); !bb.IsNil(); bb = llvm.NextBasicBlock(bb) {
		im.blocks[bb] = f.CreateBlock(bb.AsValue().Name())
	}
}

// paramAttrs returns the argument passing attributes of parameter n of fn.
func (im *importer) paramAttrs(fn llvm.Value, n int) lir.ArgAttrs {
	has := func(name string) bool {
		return !fn.GetEnumAttributeAtIndex(n+1, llvm.AttributeKindID(name)).IsNil()
	}
	if has("byval") {
		failf("@%s: byval parameter %d is not supported by the LLVM importer", fn.Name(), n)
	}
	return lir.ArgAttrs{
		SRet:     has("sret"),
		InAlloca: has("inalloca"),
		Nest:     has("nest"),
		InReg:    has("inreg"),
	}
}

// convertLinkage returns the LIR linkage of l. Linkage types without an LIR equivalent are external.
func convertLinkage(l llvm.Linkage) lir.Linkage {
	switch l {
	case llvm.InternalLinkage:
		return lir.Internal
	case llvm.PrivateLinkage:
		return lir.Private
	case llvm.ExternalWeakLinkage:
		return lir.ExternWeak
	case llvm.CommonLinkage:
		return lir.Common
	}
	return lir.External
}

// convertType returns the LIR type of t.
func (im *importer) convertType(t llvm.Type) types.Type {
	switch t.TypeKind() {
	case llvm.VoidTypeKind:
		return types.Void
	case llvm.IntegerTypeKind:
		return types.Int(t.IntTypeWidth())
	case llvm.FloatTypeKind:
		return types.F32
	case llvm.DoubleTypeKind:
		return types.F64
	case llvm.PointerTypeKind:
		return types.Ptr
	case llvm.LabelTypeKind:
		return types.Label
	case llvm.ArrayTypeKind:
		return &types.ArrayType{Elem: im.convertType(t.ElementType()), Len: t.ArrayLength()}
	case llvm.StructTypeKind:
		fields := make([]types.Type, 0, 4)
		for _, e1 := range t.StructElementTypes() {
			fields = append(fields, im.convertType(e1))
		}
		return &types.StructType{Fields: fields}
	case llvm.FunctionTypeKind:
		params := make([]types.Type, 0, t.ParamTypesCount())
		for _, e1 := range t.ParamTypes() {
			params = append(params, im.convertType(e1))
		}
		return &types.FuncType{Ret: im.convertType(t.ReturnType()), Params: params, Variadic: t.IsFunctionVarArg()}
	}
	failf("unsupported LLVM type %s", t.String())
	return nil
}

// constant returns the LIR constant of the LLVM constant v.
func (im *importer) constant(v llvm.Value) lir.Constant {
	switch {
	case !v.IsAGlobalValue().IsNil():
		sym, ok := im.values[v]
		if !ok {
			failf("reference to unknown symbol @%s", v.Name())
		}
		return &lir.ConstSymbol{Sym: sym}
	case !v.IsAConstantInt().IsNil():
		return lir.CreateConstInt(im.convertType(v.Type()), v.SExtValue())
	case !v.IsAConstantFP().IsNil():
		f, _ := v.DoubleValue()
		return lir.CreateConstFloat(im.convertType(v.Type()), f)
	case !v.IsAConstantPointerNull().IsNil():
		return &lir.ConstNull{}
	case !v.IsAUndefValue().IsNil():
		return &lir.Undef{Typ: im.convertType(v.Type())}
	case !v.IsAConstantAggregateZero().IsNil():
		return &lir.ConstZero{Typ: im.convertType(v.Type())}
	case v.IsConstantString():
		t, ok := im.convertType(v.Type()).(*types.ArrayType)
		if !ok {
			failf("string constant of non-array type %s", v.Type().String())
		}
		return &lir.ConstString{Typ: t, V: []byte(v.ConstGetAsString())}
	case !v.IsAConstantArray().IsNil():
		t := im.convertType(v.Type()).(*types.ArrayType)
		elems := make([]lir.Constant, v.OperandsCount())
		for i1 := range elems {
			elems[i1] = im.constant(v.Operand(i1))
		}
		return &lir.ConstArray{Typ: t, Elems: elems}
	case !v.IsAConstantStruct().IsNil():
		t := im.convertType(v.Type()).(*types.StructType)
		fields := make([]lir.Constant, v.OperandsCount())
		for i1 := range fields {
			fields[i1] = im.constant(v.Operand(i1))
		}
		return &lir.ConstStruct{Typ: t, Fields: fields}
	case !v.IsABlockAddress().IsNil():
		f, _ := im.values[v.Operand(0)].(*lir.Function)
		b := im.blocks[v.Operand(1).AsBasicBlock()]
		if f == nil || b == nil {
			failf("blockaddress of unknown basic block")
		}
		return &lir.BlockAddress{Func: f, Block: b}
	case !v.IsAInlineAsm().IsNil():
		return &lir.InlineAsm{}
	case !v.IsAConstantExpr().IsNil():
		return im.constantExpr(v)
	}
	failf("unsupported constant %s", v.String())
	return nil
}

// constantExpr returns the LIR constant of a constant expression. Only address arithmetic on symbols is supported.
func (im *importer) constantExpr(v llvm.Value) lir.Constant {
	switch v.Opcode() {
	case llvm.BitCast:
		return im.constant(v.Operand(0))
	case llvm.GetElementPtr:
		base, ok := im.constant(v.Operand(0)).(*lir.ConstSymbol)
		if !ok {
			failf("constant gep of non-symbol %s", v.Operand(0).String())
		}
		off := base.Off
		t := im.convertType(v.GEPSourceElementType())
		for i1 := 1; i1 < v.OperandsCount(); i1++ {
			c, ok := im.constant(v.Operand(i1)).(*lir.ConstInt)
			if !ok {
				failf("constant gep with non-integer index")
			}
			if i1 == 1 {
				off += c.V * int64(types.Size(t))
				continue
			}
			switch x := t.(type) {
			case *types.ArrayType:
				off += c.V * int64(types.Size(x.Elem))
				t = x.Elem
			case *types.StructType:
				off += int64(types.FieldOffset(x, int(c.V)))
				t = x.Fields[c.V]
			default:
				failf("constant gep cannot index into %s", t)
			}
		}
		return &lir.ConstSymbol{Sym: base.Sym, Off: off}
	}
	failf("unsupported constant expression %s", v.String())
	return nil
}

// translateFunction translates the body of fn into the basic blocks created by declareFunction.
func (im *importer) translateFunction(fn llvm.Value) {
	im.f = fn
	im.fwd = make(map[llvm.Value]*pending, 8)
	f := im.values[fn].(*lir.Function)
	defer func() {
		if r := recover(); r != nil {
			if s, ok := r.(string); ok {
				// Builder panics report malformed operands.
				failf("%s: %s", f.Name(), s)
			}
			panic(r)
		}
	}()

	for bb := fn.FirstBasicBlock(); !bb.IsNil(); bb = llvm.NextBasicBlock(bb) {
		b := im.blocks[bb]
		for inst := bb.FirstInstruction(); !inst.IsNil(); inst = llvm.NextInstruction(inst) {
			res := im.instruction(b, inst)
			if res == nil {
				continue
			}
			if n := inst.Name(); len(n) > 0 && res.HasResult() {
				res.SetName(n)
			}
			im.values[inst] = res
		}
	}

	// Replace forward references.
	for _, e1 := range f.Blocks() {
		for _, e2 := range e1.Instructions() {
			for i1, e3 := range e2.Ops {
				p, ok := e3.(*pending)
				if !ok {
					continue
				}
				v, ok := im.values[p.v]
				if !ok {
					failf("%s: operand %s is never defined", f.Name(), p.Name())
				}
				e2.SetOperand(i1, v)
			}
		}
	}
}

// value returns the LIR operand of v.
func (im *importer) value(v llvm.Value) lir.Value {
	if res, ok := im.values[v]; ok {
		return res
	}
	if !v.IsAInstruction().IsNil() {
		p, ok := im.fwd[v]
		if !ok {
			p = &pending{v: v, typ: im.convertType(v.Type())}
			im.fwd[v] = p
		}
		return p
	}
	return im.constant(v)
}

// operands returns the LIR operands first to last-1 of inst.
func (im *importer) operands(inst llvm.Value, first, last int) []lir.Value {
	res := make([]lir.Value, 0, last-first)
	for i1 := first; i1 < last; i1++ {
		res = append(res, im.value(inst.Operand(i1)))
	}
	return res
}

// block returns the LIR basic block of the basic block operand v.
func (im *importer) block(v llvm.Value) *lir.Block {
	b, ok := im.blocks[v.AsBasicBlock()]
	if !ok {
		failf("@%s: branch to unknown basic block", im.f.Name())
	}
	return b
}

// instruction appends the translation of inst to b. It returns nil if inst is dropped.
func (im *importer) instruction(b *lir.Block, inst llvm.Value) *lir.Instruction {
	op := inst.InstructionOpcode()
	if lop, ok := binaryOps[op]; ok {
		return b.CreateBinary(lop, im.value(inst.Operand(0)), im.value(inst.Operand(1)))
	}
	if lop, ok := castOps[op]; ok {
		return b.CreateCast(lop, im.value(inst.Operand(0)), im.convertType(inst.Type()))
	}

	switch op {
	case llvm.ICmp:
		return b.CreateICmp(intPredicates[inst.IntPredicate()], im.value(inst.Operand(0)), im.value(inst.Operand(1)))
	case llvm.FCmp:
		// Both encodings follow the same predicate numbering.
		pred := lir.FloatPredicate(inst.FloatPredicate())
		return b.CreateFCmp(pred, im.value(inst.Operand(0)), im.value(inst.Operand(1)))
	case llvm.Select:
		return b.CreateSelect(im.value(inst.Operand(0)), im.value(inst.Operand(1)), im.value(inst.Operand(2)))
	case llvm.Alloca:
		var count lir.Value
		if c := inst.Operand(0); c.IsAConstantInt().IsNil() || c.ZExtValue() != 1 {
			count = im.value(c)
		}
		return b.CreateAlloca(im.convertType(inst.AllocatedType()), count, inst.Alignment())
	case llvm.Load:
		return b.CreateLoad(im.convertType(inst.Type()), im.value(inst.Operand(0)), inst.Alignment())
	case llvm.Store:
		return b.CreateStore(im.value(inst.Operand(0)), im.value(inst.Operand(1)), inst.Alignment())
	case llvm.GetElementPtr:
		ops := im.operands(inst, 0, inst.OperandsCount())
		return b.CreateGEP(im.convertType(inst.GEPSourceElementType()), ops[0], ops[1:]...)
	case llvm.Call:
		return im.call(b, inst)
	case llvm.VAArg:
		return b.CreateVAArg(im.convertType(inst.Type()), im.value(inst.Operand(0)))
	case llvm.PHI:
		phi := b.CreatePhi(im.convertType(inst.Type()))
		for i1 := 0; i1 < inst.IncomingCount(); i1++ {
			blk, ok := im.blocks[inst.IncomingBlock(i1)]
			if !ok {
				failf("@%s: phi with unknown incoming block", im.f.Name())
			}
			phi.AddIncoming(im.value(inst.IncomingValue(i1)), blk)
		}
		return phi
	case llvm.Br:
		if inst.OperandsCount() == 1 {
			return b.CreateBranch(im.block(inst.Operand(0)))
		}
		// Successors are stored in reverse order.
		return b.CreateCondBranch(im.value(inst.Operand(0)), im.block(inst.Operand(2)), im.block(inst.Operand(1)))
	case llvm.Switch:
		sw := b.CreateSwitch(im.value(inst.Operand(0)), im.block(inst.Operand(1)))
		for i1 := 2; i1+1 < inst.OperandsCount(); i1 += 2 {
			c, ok := im.constant(inst.Operand(i1)).(*lir.ConstInt)
			if !ok {
				failf("@%s: switch case is not an integer constant", im.f.Name())
			}
			sw.AddCase(c, im.block(inst.Operand(i1+1)))
		}
		return sw
	case llvm.IndirectBr:
		dsts := make([]*lir.Block, 0, inst.OperandsCount()-1)
		for i1 := 1; i1 < inst.OperandsCount(); i1++ {
			dsts = append(dsts, im.block(inst.Operand(i1)))
		}
		return b.CreateIndirectBranch(im.value(inst.Operand(0)), dsts...)
	case llvm.Ret:
		if inst.OperandsCount() == 0 {
			return b.CreateReturn(nil)
		}
		return b.CreateReturn(im.value(inst.Operand(0)))
	case llvm.Unreachable:
		return b.CreateUnreachable()
	}
	failf("@%s: unsupported instruction %s", im.f.Name(), strings.TrimSpace(inst.String()))
	return nil
}

// call translates the call instruction inst. Calls to annotation intrinsics are dropped.
func (im *importer) call(b *lir.Block, inst llvm.Value) *lir.Instruction {
	n := inst.OperandsCount()
	callee := inst.Operand(n - 1)
	if !callee.IsAFunction().IsNil() && ignored(callee.Name()) {
		return nil
	}
	sig, ok := im.convertType(inst.CalledFunctionType()).(*types.FuncType)
	if !ok {
		failf("@%s: call without function type", im.f.Name())
	}
	args := im.operands(inst, 0, n-1)
	c := b.CreateCall(sig, im.value(callee), args...)
	c.CallConv = lir.CallConv(inst.InstructionCallConv())
	if inst.IsTailCall() {
		c.Tail = lir.Tail
	}
	if f, ok := c.Callee().(*lir.Function); ok {
		for i1, e1 := range f.Params() {
			c.ArgAttrs[i1] = e1.Attrs
		}
	}
	return c
}
