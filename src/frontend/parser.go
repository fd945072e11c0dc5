// parser.go provides a recursive descent parser for textual LIR. The scanner runs concurrently to the parser which
// lets one thread scan source strings for lexemes while the other builds the lir.Module.
//
// Grammar:
//
//	module      = { global | declaration | function } .
//	global      = ( "global" | "const" ) [ linkage ] GLOBAL ":" type [ "=" constant ] [ "align" INT ] .
//	declaration = "declare" [ linkage ] [ cc ] GLOBAL "(" [ type attrs { "," type attrs } ] [ "..." ] ")" ":" type
//	              [ "interrupt" ] .
//	function    = "func" [ linkage ] [ cc ] GLOBAL "(" [ LOCAL ":" type attrs { "," ... } ] [ "..." ] ")" ":" type
//	              [ "interrupt" ] "{" { block } "}" .
//	block       = IDENT ":" { instruction } .
//	instruction = [ LOCAL "=" ] operation .
//	type        = "i1" | "i8" | "i16" | "i32" | "i64" | "f32" | "f64" | "ptr" | "void"
//	            | "[" INT "x" type "]" | "{" [ type { "," type } ] "}" .
//	attrs       = { "byval" "(" type ")" | "sret" | "inalloca" | "nest" | "byref" | "inreg" } .
//
// Operations follow the textual form produced by lir.Instruction.String. Local values and blocks may be referenced
// before they are defined within a function body, and globals and functions may be referenced before their
// definition within a module.

package frontend

import (
	"errors"
	"fmt"
	"glulxc/src/ir/lir"
	"glulxc/src/ir/lir/types"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// SyntaxError is a located error in LIR source text.
type SyntaxError struct {
	File string
	Line int
	Pos  int
	Msg  string
}

// parser holds the state of a single parse of an LIR source string.
type parser struct {
	l        *lexer
	file     string
	tok      item                     // Current token.
	ahead    []item                   // Tokens read ahead of tok.
	m        *lir.Module              // Module under construction.
	f        *lir.Function            // Function body under construction.
	locals   map[string]lir.Value     // Local values of f by bare name.
	blocks   map[string]*lir.Block    // Basic blocks of f by bare name.
	defined  map[*lir.Block]bool      // Basic blocks of f that have been placed in the body.
	blockAt  map[*lir.Block]item      // First reference of each basic block of f.
	fwd      map[string]*forwardRef   // Unresolved local references of f.
	gfwd     map[string]*forwardRef   // Unresolved global references.
	resolved map[*forwardRef]lir.Value // Resolved forward references.
}

// forwardRef is a placeholder for a value that is referenced before its definition.
type forwardRef struct {
	name string
	typ  types.Type
	at   item
}

// ---------------------
// ----- Functions -----
// ---------------------

// Error returns the located error message.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Pos, e.Msg)
}

func (r *forwardRef) Type() types.Type { return r.typ }
func (r *forwardRef) Name() string     { return r.name }
func (r *forwardRef) String() string   { return fmt.Sprintf("%s %s", r.typ, r.name) }

// Parse parses the LIR source string src into a module. The file name is used for module naming and error positions.
func Parse(file, src string) (m *lir.Module, err error) {
	l := newLexer(src, lexGlobal)

	// Start scanner and run it concurrently to the parser.
	go l.run()
	defer l.stop()

	p := &parser{
		l:        l,
		file:     file,
		m:        lir.CreateModule(file),
		gfwd:     make(map[string]*forwardRef),
		resolved: make(map[*forwardRef]lir.Value),
	}
	defer func() {
		if r := recover(); r != nil {
			switch x := r.(type) {
			case *SyntaxError:
				m, err = nil, x
			case string:
				// Operand type errors reported by the lir builders.
				m, err = nil, p.errorAt(p.tok, "%s", x)
			default:
				panic(r)
			}
		}
	}()
	p.next()
	p.parseModule()
	p.resolveGlobals()
	return p.m, nil
}

// TokenStream writes the token stream of the given source string to w.
func TokenStream(src string, w io.Writer) error {
	l := newLexer(src, lexGlobal)
	go l.run()
	defer l.stop()

	tw := tabwriter.NewWriter(w, 10, 20, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Value\tType\tPosition\n")
	for {
		t := l.nextItem()
		switch t.typ {
		case itemEOF:
			return tw.Flush()
		case itemError:
			_ = tw.Flush()
			return errors.New(t.val)
		default:
			if len(t.val) > 20 {
				_, _ = fmt.Fprintf(tw, "%.17q...\t%s\tline: %d:%d\n", t.val, t.typ, t.line, t.pos)
			} else {
				_, _ = fmt.Fprintf(tw, "%q\t%s\tline: %d:%d\n", t.val, t.typ, t.line, t.pos)
			}
		}
	}
}

// -----------------------------
// ----- Token handling -----
// -----------------------------

// next advances to the next token.
func (p *parser) next() {
	if len(p.ahead) > 0 {
		p.tok = p.ahead[0]
		p.ahead = p.ahead[1:]
	} else {
		p.tok = p.l.nextItem()
	}
	if p.tok.typ == itemError {
		panic(&SyntaxError{File: p.file, Line: p.tok.line, Pos: p.tok.pos, Msg: p.tok.val})
	}
}

// peek returns the token following the current token without consuming it.
func (p *parser) peek() item {
	if len(p.ahead) == 0 {
		p.ahead = append(p.ahead, p.l.nextItem())
	}
	return p.ahead[0]
}

// errorAt creates a syntax error located at token i.
func (p *parser) errorAt(i item, format string, args ...interface{}) *SyntaxError {
	return &SyntaxError{File: p.file, Line: i.line, Pos: i.pos, Msg: fmt.Sprintf(format, args...)}
}

// fail aborts the parse with an error located at the current token.
func (p *parser) fail(format string, args ...interface{}) {
	panic(p.errorAt(p.tok, format, args...))
}

// expect consumes a token of type typ and returns it.
func (p *parser) expect(typ itemType) item {
	t := p.tok
	if t.typ != typ {
		p.fail("expected %s, got %s", typ, t)
	}
	p.next()
	return t
}

// accept consumes the current token if it is of type typ.
func (p *parser) accept(typ itemType) bool {
	if p.tok.typ == typ {
		p.next()
		return true
	}
	return false
}

// isKeyword returns true if the current token is the keyword kw.
func (p *parser) isKeyword(kw string) bool {
	return p.tok.typ == itemKeyword && p.tok.val == kw
}

// acceptKeyword consumes the current token if it is the keyword kw.
func (p *parser) acceptKeyword(kw string) bool {
	if p.isKeyword(kw) {
		p.next()
		return true
	}
	return false
}

// expectKeyword consumes the keyword kw.
func (p *parser) expectKeyword(kw string) {
	if !p.acceptKeyword(kw) {
		p.fail("expected %q, got %s", kw, p.tok)
	}
}

// parseInt consumes an integer literal.
func (p *parser) parseInt() int64 {
	t := p.expect(itemInteger)
	v, err := strconv.ParseInt(t.val, 0, 64)
	if err != nil {
		u, err2 := strconv.ParseUint(t.val, 0, 64)
		if err2 != nil {
			panic(p.errorAt(t, "invalid integer %s: %s", t.val, err))
		}
		v = int64(u)
	}
	return v
}

// --------------------------------
// ----- Module level parsing -----
// --------------------------------

// parseModule parses global definitions and functions until the end of input.
func (p *parser) parseModule() {
	for p.tok.typ != itemEOF {
		switch {
		case p.isKeyword("global"), p.isKeyword("const"):
			p.parseGlobal()
		case p.isKeyword("declare"), p.isKeyword("func"):
			p.parseFunction()
		default:
			p.fail("expected global, const, declare or func, got %s", p.tok)
		}
	}
}

// parseLinkage parses an optional linkage.
func (p *parser) parseLinkage() lir.Linkage {
	if p.tok.typ == itemIdent {
		if l, ok := lir.LookupLinkage(p.tok.val); ok {
			p.next()
			return l
		}
	}
	return lir.External
}

// parseCallConv parses an optional calling convention.
func (p *parser) parseCallConv() lir.CallConv {
	if p.tok.typ == itemIdent {
		if cc, ok := lir.LookupCallConv(p.tok.val); ok {
			p.next()
			return cc
		}
	}
	return lir.CallConvC
}

// parseGlobal parses a global variable definition.
func (p *parser) parseGlobal() {
	constant := p.isKeyword("const")
	p.next()
	link := p.parseLinkage()
	at := p.tok
	name := p.expect(itemGlobal).val[1:]
	if p.m.Lookup(name) != nil {
		panic(p.errorAt(at, "redefinition of @%s", name))
	}
	p.expect(':')
	t := p.parseType()
	var init lir.Constant
	if p.accept('=') {
		init = p.parseConstant(t)
	}
	g := p.m.CreateGlobal(name, t, init)
	g.Linkage = link
	g.Constant = constant
	if p.acceptKeyword("align") {
		g.Align = int(p.parseInt())
	}
}

// parseFunction parses a function declaration or definition.
func (p *parser) parseFunction() {
	decl := p.isKeyword("declare")
	p.next()
	link := p.parseLinkage()
	cc := p.parseCallConv()
	at := p.tok
	name := p.expect(itemGlobal).val[1:]
	if p.m.Lookup(name) != nil {
		panic(p.errorAt(at, "redefinition of @%s", name))
	}

	// Parameter list.
	p.expect('(')
	sig := &types.FuncType{}
	names := make([]string, 0, 4)
	attrs := make([]lir.ArgAttrs, 0, 4)
	for p.tok.typ != ')' {
		if p.accept(itemEllipsis) {
			sig.Variadic = true
			break
		}
		if !decl {
			names = append(names, p.expect(itemLocal).val[1:])
			p.expect(':')
		}
		sig.Params = append(sig.Params, p.parseType())
		attrs = append(attrs, p.parseAttrs())
		if !p.accept(',') {
			break
		}
	}
	p.expect(')')
	p.expect(':')
	sig.Ret = p.parseType()

	f := p.m.CreateFunction(name, sig)
	f.Linkage = link
	f.CallConv = cc
	f.Interrupt = p.acceptKeyword("interrupt")
	for i1, e1 := range f.Params() {
		e1.Attrs = attrs[i1]
		if !decl {
			e1.SetName(names[i1])
		}
	}
	if decl {
		return
	}
	p.expect('{')
	p.parseBody(f)
	p.expect('}')
}

// parseAttrs parses a possibly empty argument attribute list.
func (p *parser) parseAttrs() lir.ArgAttrs {
	a := lir.ArgAttrs{}
	for {
		switch {
		case p.acceptKeyword("byval"):
			p.expect('(')
			a.ByVal = p.parseType()
			p.expect(')')
		case p.acceptKeyword("sret"):
			a.SRet = true
		case p.acceptKeyword("inalloca"):
			a.InAlloca = true
		case p.acceptKeyword("nest"):
			a.Nest = true
		case p.acceptKeyword("byref"):
			a.ByRef = true
		case p.acceptKeyword("inreg"):
			a.InReg = true
		default:
			return a
		}
	}
}

// parseType parses a data type.
func (p *parser) parseType() types.Type {
	t := p.tok
	switch t.typ {
	case itemTypeName:
		p.next()
		switch t.val {
		case "ptr":
			return types.Ptr
		case "void":
			return types.Void
		case "label":
			return types.Label
		case "f32":
			return types.F32
		case "f64":
			return types.F64
		}
		bits, err := strconv.Atoi(t.val[1:])
		if err != nil || bits > 64 {
			panic(p.errorAt(t, "unsupported integer type %s", t.val))
		}
		return types.Int(bits)
	case '[':
		p.next()
		n := p.parseInt()
		if p.tok.typ != itemIdent || p.tok.val != "x" {
			p.fail("expected 'x' in array type, got %s", p.tok)
		}
		p.next()
		elem := p.parseType()
		p.expect(']')
		return &types.ArrayType{Elem: elem, Len: int(n)}
	case '{':
		p.next()
		st := &types.StructType{}
		for p.tok.typ != '}' {
			st.Fields = append(st.Fields, p.parseType())
			if !p.accept(',') {
				break
			}
		}
		p.expect('}')
		return st
	}
	p.fail("expected type, got %s", t)
	return nil
}

// parseFuncSig parses the explicit signature of a variadic call: "(" types [ "..." ] ")" ":" type.
func (p *parser) parseFuncSig() *types.FuncType {
	sig := &types.FuncType{}
	p.expect('(')
	for p.tok.typ != ')' {
		if p.accept(itemEllipsis) {
			sig.Variadic = true
			break
		}
		sig.Params = append(sig.Params, p.parseType())
		if !p.accept(',') {
			break
		}
	}
	p.expect(')')
	p.expect(':')
	sig.Ret = p.parseType()
	return sig
}

// ----------------------------------
// ----- Function body parsing -----
// ----------------------------------

// parseBody parses the basic blocks of function f.
func (p *parser) parseBody(f *lir.Function) {
	p.f = f
	p.locals = make(map[string]lir.Value)
	p.blocks = make(map[string]*lir.Block)
	p.defined = make(map[*lir.Block]bool)
	p.blockAt = make(map[*lir.Block]item)
	p.fwd = make(map[string]*forwardRef)
	for _, e1 := range f.Params() {
		p.locals[e1.Name()[1:]] = e1
	}

	for p.tok.typ != '}' {
		at := p.tok
		if !p.isLabel() {
			p.fail("expected basic block label, got %s", p.tok)
		}
		b := p.block(at)
		if p.defined[b] {
			panic(p.errorAt(at, "redefinition of basic block %s", at.val))
		}
		p.defined[b] = true
		f.InsertBlock(b)
		p.next()
		p.expect(':')
		for p.tok.typ != '}' && !p.isLabel() {
			if p.tok.typ == itemEOF {
				p.fail("unexpected end of input in body of %s", f.Name())
			}
			p.parseInstruction(b)
		}
	}

	// Check that all references were satisfied.
	for _, e1 := range p.blocks {
		if !p.defined[e1] {
			panic(p.errorAt(p.blockAt[e1], "undefined basic block %%%s in %s", e1.Name(), f.Name()))
		}
	}
	for _, e1 := range p.fwd {
		panic(p.errorAt(e1.at, "undefined value %s in %s", e1.name, f.Name()))
	}
	for _, e1 := range f.Blocks() {
		for _, e2 := range e1.Instructions() {
			for i1, e3 := range e2.Ops {
				if r, ok := e3.(*forwardRef); ok {
					if v, ok := p.resolved[r]; ok {
						e2.SetOperand(i1, v)
					}
				}
			}
		}
	}
	p.f = nil
}

// isLabel returns true if the current token starts a basic block label.
func (p *parser) isLabel() bool {
	switch p.tok.typ {
	case itemIdent, itemKeyword, itemTypeName, itemInteger:
		return p.peek().typ == ':'
	}
	return false
}

// block returns the basic block named by token at, declaring it on first reference.
func (p *parser) block(at item) *lir.Block {
	name := strings.TrimPrefix(at.val, "%")
	if b, ok := p.blocks[name]; ok {
		return b
	}
	b := p.f.DeclareBlock(name)
	p.blocks[name] = b
	p.blockAt[b] = at
	return b
}

// blockRef parses a basic block reference.
func (p *parser) blockRef() *lir.Block {
	return p.block(p.expect(itemLocal))
}

// define binds name to v in the current function.
func (p *parser) define(at item, name string, v lir.Value) {
	if _, ok := p.locals[name]; ok {
		panic(p.errorAt(at, "redefinition of %%%s", name))
	}
	if r, ok := p.fwd[name]; ok {
		if !types.Equal(r.typ, v.Type()) {
			panic(p.errorAt(r.at, "%%%s used as %s but defined as %s", name, r.typ, v.Type()))
		}
		p.resolved[r] = v
		delete(p.fwd, name)
	}
	p.locals[name] = v
}

// parseInstruction parses a single instruction and appends it to b.
func (p *parser) parseInstruction(b *lir.Block) {
	start := p.tok
	defer func() {
		if r := recover(); r != nil {
			if s, ok := r.(string); ok {
				// Operand type errors reported by the lir builders.
				panic(p.errorAt(start, "%s", s))
			}
			panic(r)
		}
	}()
	name := ""
	if p.tok.typ == itemLocal && p.peek().typ == '=' {
		name = p.tok.val[1:]
		p.next()
		p.next()
	}

	var inst *lir.Instruction
	tail := lir.NoTail
	switch {
	case p.acceptKeyword("tail"):
		tail = lir.Tail
	case p.acceptKeyword("musttail"):
		tail = lir.MustTail
	}
	if tail != lir.NoTail || p.isKeyword("call") {
		p.expectKeyword("call")
		inst = p.parseCall(b)
		inst.Tail = tail
	} else {
		opTok := p.expect(itemIdent)
		op, ok := lir.LookupOpcode(opTok.val)
		if !ok {
			panic(p.errorAt(opTok, "unknown instruction %q", opTok.val))
		}
		inst = p.parseOperation(b, op)
	}
	inst.Pos = lir.Pos{Line: start.line, Col: start.pos}

	if len(name) > 0 {
		if !inst.HasResult() {
			panic(p.errorAt(start, "instruction %s does not produce a value", inst.Op))
		}
		inst.SetName(name)
	}
	if inst.HasResult() {
		p.define(start, inst.Name()[1:], inst)
	}
}

// parseOperation parses the operands of a non call instruction with opcode op.
func (p *parser) parseOperation(b *lir.Block, op lir.Opcode) *lir.Instruction {
	switch {
	case op.IsBinary():
		t := p.parseType()
		x := p.parseValue(t)
		p.expect(',')
		return b.CreateBinary(op, x, p.parseValue(t))
	case op.IsCast():
		from := p.parseType()
		v := p.parseValue(from)
		p.expectKeyword("to")
		return b.CreateCast(op, v, p.parseType())
	}

	switch op {
	case lir.OpFNeg:
		t := p.parseType()
		return b.CreateFNeg(p.parseValue(t))
	case lir.OpICmp:
		predTok := p.expect(itemIdent)
		pred, ok := lir.LookupIntPredicate(predTok.val)
		if !ok {
			panic(p.errorAt(predTok, "unknown integer predicate %q", predTok.val))
		}
		t := p.parseType()
		x := p.parseValue(t)
		p.expect(',')
		return b.CreateICmp(pred, x, p.parseValue(t))
	case lir.OpFCmp:
		predTok := p.tok
		if predTok.typ != itemIdent && predTok.typ != itemKeyword {
			p.fail("expected floating point predicate, got %s", predTok)
		}
		pred, ok := lir.LookupFloatPredicate(predTok.val)
		if !ok {
			panic(p.errorAt(predTok, "unknown floating point predicate %q", predTok.val))
		}
		p.next()
		t := p.parseType()
		x := p.parseValue(t)
		p.expect(',')
		return b.CreateFCmp(pred, x, p.parseValue(t))
	case lir.OpSelect:
		c := p.parseValue(types.I1)
		p.expect(',')
		t := p.parseType()
		x := p.parseValue(t)
		p.expect(',')
		return b.CreateSelect(c, x, p.parseValue(t))
	case lir.OpAlloca:
		t := p.parseType()
		var count lir.Value
		align := 0
		for p.accept(',') {
			switch {
			case p.acceptKeyword("count"):
				ct := p.parseType()
				count = p.parseValue(ct)
			case p.acceptKeyword("align"):
				align = int(p.parseInt())
			default:
				p.fail("expected count or align, got %s", p.tok)
			}
		}
		return b.CreateAlloca(t, count, align)
	case lir.OpLoad:
		t := p.parseType()
		p.expect(',')
		src := p.parseValue(types.Ptr)
		return b.CreateLoad(t, src, p.parseAlign())
	case lir.OpStore:
		t := p.parseType()
		v := p.parseValue(t)
		p.expect(',')
		dst := p.parseValue(types.Ptr)
		return b.CreateStore(v, dst, p.parseAlign())
	case lir.OpGEP:
		elem := p.parseType()
		p.expect(',')
		base := p.parseValue(types.Ptr)
		idx := make([]lir.Value, 0, 2)
		for p.accept(',') {
			t := p.parseType()
			idx = append(idx, p.parseValue(t))
		}
		return b.CreateGEP(elem, base, idx...)
	case lir.OpVAArg:
		t := p.parseType()
		p.expect(',')
		return b.CreateVAArg(t, p.parseValue(types.Ptr))
	case lir.OpPhi:
		t := p.parseType()
		inst := b.CreatePhi(t)
		for {
			p.expect('[')
			v := p.parseValue(t)
			p.expect(',')
			inst.AddIncoming(v, p.blockRef())
			p.expect(']')
			if !p.accept(',') {
				break
			}
		}
		return inst
	case lir.OpBr:
		if p.peek().typ == ',' {
			c := p.parseValue(types.I1)
			p.expect(',')
			thn := p.blockRef()
			p.expect(',')
			return b.CreateCondBranch(c, thn, p.blockRef())
		}
		return b.CreateBranch(p.blockRef())
	case lir.OpSwitch:
		t := p.parseType()
		v := p.parseValue(t)
		p.expect(',')
		inst := b.CreateSwitch(v, p.blockRef())
		p.expect('[')
		for p.tok.typ != ']' {
			at := p.tok
			c, ok := p.parseValue(t).(*lir.ConstInt)
			if !ok {
				panic(p.errorAt(at, "switch case value is not an integer constant"))
			}
			p.expect(':')
			inst.AddCase(c, p.blockRef())
			if !p.accept(',') {
				break
			}
		}
		p.expect(']')
		return inst
	case lir.OpIndirectBr:
		addr := p.parseValue(types.Ptr)
		p.expect(',')
		p.expect('[')
		dsts := make([]*lir.Block, 0, 4)
		for p.tok.typ != ']' {
			dsts = append(dsts, p.blockRef())
			if !p.accept(',') {
				break
			}
		}
		p.expect(']')
		return b.CreateIndirectBranch(addr, dsts...)
	case lir.OpRet:
		t := p.parseType()
		if t.Kind() == types.VoidKind {
			return b.CreateReturn(nil)
		}
		return b.CreateReturn(p.parseValue(t))
	case lir.OpUnreachable:
		return b.CreateUnreachable()
	}
	p.fail("unexpected instruction %s", op)
	return nil
}

// parseAlign parses an optional trailing ", align N".
func (p *parser) parseAlign() int {
	if p.tok.typ == ',' && p.peek().typ == itemKeyword && p.peek().val == "align" {
		p.next()
		p.next()
		return int(p.parseInt())
	}
	return 0
}

// parseCall parses the remainder of a call instruction after the call keyword.
func (p *parser) parseCall(b *lir.Block) *lir.Instruction {
	cc := p.parseCallConv()
	ret := p.parseType()
	var sig *types.FuncType
	if p.tok.typ == '(' {
		sig = p.parseFuncSig()
		if !types.Equal(sig.Ret, ret) {
			p.fail("call returns %s but signature returns %s", ret, sig.Ret)
		}
	}
	callee := p.parseValue(types.Ptr)
	p.expect('(')
	args := make([]lir.Value, 0, 4)
	attrs := make([]lir.ArgAttrs, 0, 4)
	argTypes := make([]types.Type, 0, 4)
	for p.tok.typ != ')' {
		t := p.parseType()
		attrs = append(attrs, p.parseAttrs())
		args = append(args, p.parseValue(t))
		argTypes = append(argTypes, t)
		if !p.accept(',') {
			break
		}
	}
	p.expect(')')
	if sig == nil {
		sig = &types.FuncType{Ret: ret, Params: argTypes}
	}
	inst := b.CreateCall(sig, callee, args...)
	inst.CallConv = cc
	inst.ArgAttrs = attrs
	return inst
}

// ---------------------------
// ----- Value parsing -----
// ---------------------------

// parseValue parses an operand of expected type t.
func (p *parser) parseValue(t types.Type) lir.Value {
	at := p.tok
	switch at.typ {
	case itemLocal:
		p.next()
		name := at.val[1:]
		if v, ok := p.locals[name]; ok {
			if !types.Equal(v.Type(), t) {
				panic(p.errorAt(at, "%s has type %s, expected %s", at.val, v.Type(), t))
			}
			return v
		}
		if p.f == nil {
			panic(p.errorAt(at, "local value %s outside of function body", at.val))
		}
		r, ok := p.fwd[name]
		if !ok {
			r = &forwardRef{name: at.val, typ: t, at: at}
			p.fwd[name] = r
		} else if !types.Equal(r.typ, t) {
			panic(p.errorAt(at, "%s used as %s and %s", at.val, r.typ, t))
		}
		return r
	case itemGlobal:
		p.next()
		if t.Kind() != types.PointerKind {
			panic(p.errorAt(at, "symbol %s used as %s", at.val, t))
		}
		v := p.global(at)
		if p.accept('+') {
			return &lir.ConstSymbol{Sym: v, Off: p.parseInt()}
		}
		return v
	case itemInteger:
		v := p.parseInt()
		switch {
		case types.IsInt(t):
			return lir.CreateConstInt(t, v)
		case types.IsFloat(t):
			return lir.CreateConstFloat(t, float64(v))
		}
		panic(p.errorAt(at, "integer literal used as %s", t))
	case itemFloat:
		p.next()
		if !types.IsFloat(t) {
			panic(p.errorAt(at, "floating point literal used as %s", t))
		}
		v, err := strconv.ParseFloat(at.val, 64)
		if err != nil {
			panic(p.errorAt(at, "invalid floating point literal %s: %s", at.val, err))
		}
		return lir.CreateConstFloat(t, v)
	case '-':
		p.next()
		if !types.IsFloat(t) || !p.acceptKeyword("inf") {
			panic(p.errorAt(at, "unexpected '-'"))
		}
		return lir.CreateConstFloat(t, math.Inf(-1))
	case itemString:
		p.next()
		at2, ok := t.(*types.ArrayType)
		if !ok || !types.Equal(at2.Elem, types.I8) {
			panic(p.errorAt(at, "string literal used as %s", t))
		}
		s, err := decodeString(at.val)
		if err != nil {
			panic(p.errorAt(at, "%s", err))
		}
		if len(s) != at2.Len {
			panic(p.errorAt(at, "string literal of %d bytes used as %s", len(s), t))
		}
		return &lir.ConstString{Typ: at2, V: s}
	case '[':
		p.next()
		arr, ok := t.(*types.ArrayType)
		if !ok {
			panic(p.errorAt(at, "array literal used as %s", t))
		}
		c := &lir.ConstArray{Typ: arr, Elems: make([]lir.Constant, 0, arr.Len)}
		for p.tok.typ != ']' {
			c.Elems = append(c.Elems, p.parseConstant(arr.Elem))
			if !p.accept(',') {
				break
			}
		}
		p.expect(']')
		if len(c.Elems) != arr.Len {
			panic(p.errorAt(at, "array literal of %d elements used as %s", len(c.Elems), t))
		}
		return c
	case '{':
		p.next()
		st, ok := t.(*types.StructType)
		if !ok {
			panic(p.errorAt(at, "struct literal used as %s", t))
		}
		c := &lir.ConstStruct{Typ: st, Fields: make([]lir.Constant, 0, len(st.Fields))}
		for i1 := 0; p.tok.typ != '}'; i1++ {
			if i1 >= len(st.Fields) {
				p.fail("too many fields in struct literal of type %s", t)
			}
			c.Fields = append(c.Fields, p.parseConstant(st.Fields[i1]))
			if !p.accept(',') {
				break
			}
		}
		p.expect('}')
		if len(c.Fields) != len(st.Fields) {
			panic(p.errorAt(at, "struct literal of %d fields used as %s", len(c.Fields), t))
		}
		return c
	case itemKeyword:
		return p.parseKeywordValue(t)
	}
	p.fail("expected value of type %s, got %s", t, at)
	return nil
}

// parseKeywordValue parses constants that are written as keywords.
func (p *parser) parseKeywordValue(t types.Type) lir.Value {
	at := p.tok
	p.next()
	switch at.val {
	case "true", "false":
		if !types.Equal(t, types.I1) {
			panic(p.errorAt(at, "boolean literal used as %s", t))
		}
		if at.val == "true" {
			return lir.CreateConstInt(types.I1, 1)
		}
		return lir.CreateConstInt(types.I1, 0)
	case "null":
		if t.Kind() != types.PointerKind {
			panic(p.errorAt(at, "null used as %s", t))
		}
		return &lir.ConstNull{}
	case "undef":
		return &lir.Undef{Typ: t}
	case "zeroinit":
		return &lir.ConstZero{Typ: t}
	case "inf", "nan":
		if !types.IsFloat(t) {
			panic(p.errorAt(at, "%s used as %s", at.val, t))
		}
		if at.val == "inf" {
			return lir.CreateConstFloat(t, math.Inf(1))
		}
		return lir.CreateConstFloat(t, math.NaN())
	case "asm":
		asm := p.parseQuoted()
		p.expect(',')
		return &lir.InlineAsm{Asm: asm, Constraints: p.parseQuoted()}
	case "blockaddress":
		p.expect('(')
		ft := p.expect(itemGlobal)
		p.expect(',')
		bt := p.expect(itemLocal)
		p.expect(')')
		f := p.m.GetFunction(ft.val[1:])
		if f == nil {
			panic(p.errorAt(ft, "blockaddress of undefined function %s", ft.val))
		}
		if f == p.f {
			return &lir.BlockAddress{Func: f, Block: p.block(bt)}
		}
		for _, e1 := range f.Blocks() {
			if e1.Name() == bt.val[1:] {
				return &lir.BlockAddress{Func: f, Block: e1}
			}
		}
		panic(p.errorAt(bt, "function %s has no basic block %s", ft.val, bt.val))
	}
	panic(p.errorAt(at, "unexpected keyword %q", at.val))
}

// parseQuoted parses a Go quoted string as written by lir.InlineAsm.
func (p *parser) parseQuoted() string {
	t := p.expect(itemString)
	s, err := strconv.Unquote(`"` + t.val + `"`)
	if err != nil {
		panic(p.errorAt(t, "invalid string literal: %s", err))
	}
	return s
}

// parseConstant parses a constant of type t. Symbol references become symbol constants.
func (p *parser) parseConstant(t types.Type) lir.Constant {
	at := p.tok
	v := p.parseValue(t)
	switch x := v.(type) {
	case lir.Constant:
		return x
	case *lir.Global, *lir.Function:
		return &lir.ConstSymbol{Sym: x}
	case *forwardRef:
		if p.gfwd[x.name[1:]] == x {
			return &lir.ConstSymbol{Sym: x}
		}
	}
	panic(p.errorAt(at, "%s is not a constant", v.Name()))
}

// global returns the global or function named by token at, creating a forward reference if necessary.
func (p *parser) global(at item) lir.Value {
	name := at.val[1:]
	if v := p.m.Lookup(name); v != nil {
		return v
	}
	r, ok := p.gfwd[name]
	if !ok {
		r = &forwardRef{name: at.val, typ: types.Ptr, at: at}
		p.gfwd[name] = r
	}
	return r
}

// resolveGlobals replaces forward references to globals and functions in the completed module.
func (p *parser) resolveGlobals() {
	if len(p.gfwd) == 0 {
		return
	}
	for k, v := range p.gfwd {
		s := p.m.Lookup(k)
		if s == nil {
			panic(p.errorAt(v.at, "undefined symbol %s", v.name))
		}
		p.resolved[v] = s
	}
	for _, e1 := range p.m.Globals() {
		if e1.Init != nil {
			e1.Init = p.resolveConstant(e1.Init)
		}
	}
	for _, e1 := range p.m.Functions() {
		for _, e2 := range e1.Blocks() {
			for _, e3 := range e2.Instructions() {
				for i1, e4 := range e3.Ops {
					switch x := e4.(type) {
					case *forwardRef:
						if v, ok := p.resolved[x]; ok {
							e3.SetOperand(i1, v)
						}
					case lir.Constant:
						e3.SetOperand(i1, p.resolveConstant(x))
					}
				}
			}
		}
	}
}

// resolveConstant replaces forward symbol references within constant c.
func (p *parser) resolveConstant(c lir.Constant) lir.Constant {
	switch x := c.(type) {
	case *lir.ConstSymbol:
		if r, ok := x.Sym.(*forwardRef); ok {
			x.Sym = p.resolved[r]
		}
	case *lir.ConstArray:
		for i1, e1 := range x.Elems {
			x.Elems[i1] = p.resolveConstant(e1)
		}
	case *lir.ConstStruct:
		for i1, e1 := range x.Fields {
			x.Fields[i1] = p.resolveConstant(e1)
		}
	}
	return c
}

// decodeString decodes a string literal with \XX hexadecimal escapes.
func decodeString(s string) ([]byte, error) {
	if !strings.ContainsRune(s, '\\') {
		return []byte(s), nil
	}
	res := make([]byte, 0, len(s))
	for i1 := 0; i1 < len(s); i1++ {
		if s[i1] != '\\' {
			res = append(res, s[i1])
			continue
		}
		if i1+1 < len(s) && (s[i1+1] == '\\' || s[i1+1] == '"') {
			res = append(res, s[i1+1])
			i1++
			continue
		}
		if i1+2 >= len(s) {
			return nil, fmt.Errorf("truncated escape sequence in string literal")
		}
		v, err := strconv.ParseUint(s[i1+1:i1+3], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid escape sequence \\%s in string literal", s[i1+1:i1+3])
		}
		res = append(res, byte(v))
		i1 += 2
	}
	return res, nil
}
