package lir

import (
	"fmt"
	"glulxc/src/ir/lir/types"
	"strings"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// CallConv is a calling convention identifier. The numbering follows the LLVM calling convention ids so that
// imported modules keep their conventions.
type CallConv uint

// Function represents a function. It has a name, a signature, parameters and basic blocks. Using a function as a
// Value yields its address.
type Function struct {
	m         *Module         // Parent module.
	name      string          // Symbol name of function.
	Sig       *types.FuncType // Signature of function.
	params    []*Param        // Formal parameters of function.
	blocks    []*Block        // Basic blocks in function body. The first block is the entry block.
	Linkage   Linkage         // Symbol linkage.
	CallConv  CallConv        // Calling convention of function.
	Interrupt bool            // Set true for interrupt handlers.
	seq       int             // Sequence number for naming unnamed instructions.
}

// ArgAttrs holds the argument passing attributes of a formal parameter or call argument.
type ArgAttrs struct {
	ByVal    types.Type // Pointee type of a by-value aggregate argument, or nil.
	SRet     bool       // Struct return pointer.
	InAlloca bool       // Argument memory allocated by the caller with alloca.
	Nest     bool       // Static chain pointer.
	ByRef    bool       // Aggregate passed indirectly by reference.
	InReg    bool       // Part of a consecutive register group.
}

// Param represents a function parameter.
type Param struct {
	f     *Function  // Parent function.
	name  string     // Name of parameter.
	typ   types.Type // Data type of parameter.
	Index int        // Position in the parameter list.
	Attrs ArgAttrs   // Argument passing attributes.
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	CallConvC            CallConv = 0
	CallConvFast         CallConv = 8
	CallConvCold         CallConv = 9
	CallConvGHC          CallConv = 10
	CallConvHiPE         CallConv = 11
	CallConvAnyReg       CallConv = 13
	CallConvPreserveMost CallConv = 14
	CallConvPreserveAll  CallConv = 15
	CallConvSwift        CallConv = 16
	CallConvCxxFastTLS   CallConv = 17
	CallConvTail         CallConv = 18
)

// -------------------
// ----- Globals -----
// -------------------

var callConvNames = map[CallConv]string{
	CallConvC:            "ccc",
	CallConvFast:         "fastcc",
	CallConvCold:         "coldcc",
	CallConvGHC:          "ghccc",
	CallConvHiPE:         "cc11",
	CallConvAnyReg:       "anyregcc",
	CallConvPreserveMost: "preserve_mostcc",
	CallConvPreserveAll:  "preserve_allcc",
	CallConvSwift:        "swiftcc",
	CallConvCxxFastTLS:   "cxx_fast_tlscc",
	CallConvTail:         "tailcc",
}

// ---------------------
// ----- Functions -----
// ---------------------

func (cc CallConv) String() string {
	if s, ok := callConvNames[cc]; ok {
		return s
	}
	return fmt.Sprintf("cc%d", uint(cc))
}

// LookupCallConv returns the calling convention with the given name. Numeric conventions are written ccN.
func LookupCallConv(s string) (CallConv, bool) {
	for k, v := range callConvNames {
		if v == s {
			return k, true
		}
	}
	var n uint
	if _, err := fmt.Sscanf(s, "cc%d", &n); err == nil {
		return CallConv(n), true
	}
	return CallConvC, false
}

// ----------------------------
// ----- Function methods -----
// ----------------------------

// Name returns the operand reference of Function f.
func (f *Function) Name() string {
	return "@" + f.name
}

// Symbol returns the bare symbol name of Function f.
func (f *Function) Symbol() string {
	return f.name
}

// Type returns the pointer type; a Function used as a Value is its address.
func (f *Function) Type() types.Type {
	return types.Ptr
}

// Module returns the parent module of Function f.
func (f *Function) Module() *Module {
	return f.m
}

// Params returns the formal parameters of Function f.
func (f *Function) Params() []*Param {
	return f.params
}

// Blocks returns the basic blocks of Function f.
func (f *Function) Blocks() []*Block {
	return f.blocks
}

// Entry returns the entry block of Function f, or nil for declarations.
func (f *Function) Entry() *Block {
	if len(f.blocks) == 0 {
		return nil
	}
	return f.blocks[0]
}

// IsDeclaration reports whether Function f has no body.
func (f *Function) IsDeclaration() bool {
	return len(f.blocks) == 0
}

// IsVariadic reports whether Function f accepts a variable argument list.
func (f *Function) IsVariadic() bool {
	return f.Sig.Variadic
}

// HasSRet reports whether Function f returns an aggregate through a struct return pointer.
func (f *Function) HasSRet() bool {
	for _, e1 := range f.params {
		if e1.Attrs.SRet {
			return true
		}
	}
	return false
}

// CreateBlock creates a new basic block and appends it to Function f.
func (f *Function) CreateBlock(name string) *Block {
	b := f.DeclareBlock(name)
	f.InsertBlock(b)
	return b
}

// DeclareBlock creates a new basic block that is not yet part of the function body. It is used for blocks that
// are referenced before they are defined.
func (f *Function) DeclareBlock(name string) *Block {
	b := &Block{
		f:     f,
		id:    f.getId(),
		insts: make([]*Instruction, 0, 16),
	}
	if len(name) > 0 {
		b.name = name
	} else {
		b.name = fmt.Sprintf("%s%d", labelBlockPrefix, b.id)
	}
	return b
}

// InsertBlock appends the declared block b to Function f.
func (f *Function) InsertBlock(b *Block) {
	if b.f != f {
		panic(fmt.Sprintf("block %s belongs to function %s, not %s", b.name, b.f.name, f.name))
	}
	f.blocks = append(f.blocks, b)
}

// String returns the textual LIR representation of Function f.
func (f *Function) String() string {
	sb := strings.Builder{}
	if f.IsDeclaration() {
		sb.WriteString("declare ")
	} else {
		sb.WriteString("func ")
	}
	if f.Linkage != External {
		sb.WriteString(f.Linkage.String())
		sb.WriteRune(' ')
	}
	if f.CallConv != CallConvC {
		sb.WriteString(f.CallConv.String())
		sb.WriteRune(' ')
	}
	sb.WriteString(f.Name())
	sb.WriteRune('(')
	for i1, e1 := range f.params {
		if i1 > 0 {
			sb.WriteString(", ")
		}
		if f.IsDeclaration() {
			sb.WriteString(e1.typ.String())
			sb.WriteString(e1.Attrs.String())
		} else {
			sb.WriteString(e1.Declaration())
		}
	}
	if f.Sig.Variadic {
		if len(f.params) > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("...")
	}
	sb.WriteString(fmt.Sprintf("): %s", f.Sig.Ret))
	if f.Interrupt {
		sb.WriteString(" interrupt")
	}
	if f.IsDeclaration() {
		return sb.String()
	}
	sb.WriteString(" {\n")
	for _, e1 := range f.blocks {
		sb.WriteString(e1.String())
	}
	sb.WriteRune('}')
	return sb.String()
}

// getId returns a unique identifier for any child of Function f.
func (f *Function) getId() int {
	id := f.seq
	f.seq++
	return id
}

// -------------------------
// ----- Param methods -----
// -------------------------

// Name returns the operand reference of Param p.
func (p *Param) Name() string {
	return "%" + p.name
}

// SetName renames Param p.
func (p *Param) SetName(name string) {
	p.name = name
}

// Type returns the data type of Param p.
func (p *Param) Type() types.Type {
	return p.typ
}

// Parent returns the function that declares Param p.
func (p *Param) Parent() *Function {
	return p.f
}

// String returns the operand form of Param p.
func (p *Param) String() string {
	return fmt.Sprintf("%s %s", p.typ, p.Name())
}

// Declaration returns the textual LIR parameter declaration of p.
func (p *Param) Declaration() string {
	return fmt.Sprintf("%s: %s%s", p.Name(), p.typ, p.Attrs.String())
}

// String returns the attribute list of a, each attribute preceded by a space.
func (a ArgAttrs) String() string {
	sb := strings.Builder{}
	if a.ByVal != nil {
		sb.WriteString(fmt.Sprintf(" byval(%s)", a.ByVal))
	}
	if a.SRet {
		sb.WriteString(" sret")
	}
	if a.InAlloca {
		sb.WriteString(" inalloca")
	}
	if a.Nest {
		sb.WriteString(" nest")
	}
	if a.ByRef {
		sb.WriteString(" byref")
	}
	if a.InReg {
		sb.WriteString(" inreg")
	}
	return sb.String()
}
