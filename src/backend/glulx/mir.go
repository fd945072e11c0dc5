package glulx

import (
	"fmt"
	"glulxc/src/backend/xtoa"
	"glulxc/src/ir/lir"
	"glulxc/src/ir/lir/types"
	"glulxc/src/util"
	"math"
	"strings"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Reg is a virtual register. Registers are dense indices into the register arena of their function.
type Reg int32

// OperandKind identifies the kind of a machine operand.
type OperandKind uint8

// Operand is a machine instruction operand.
type Operand struct {
	Kind  OperandKind
	Reg   Reg    // Register of KindReg.
	Imm   int64  // Value of KindImm, frame index of KindFrameIndex and local number of KindLocal.
	Off   int64  // Byte displacement of KindSymbol and KindFrameIndex.
	Bits  uint32 // Bit pattern of KindFImm.
	Sym   string // Assembly name of KindSymbol.
	Block *Block // Target of KindBlock.
	Deref bool   // Set true if a symbol operand refers to the memory at the symbol rather than its address.
}

// Instr is a machine instruction. Operands are kept in Glulx operand order.
type Instr struct {
	Op  Opcode
	Ops []Operand
	Pos lir.Pos // Position of the LIR instruction the machine instruction was selected from.
}

// Block is a machine basic block. Control falls through to the next block in layout order unless the block ends
// with a terminator.
type Block struct {
	Num    int      // Creation number, used for the block label.
	Instrs []*Instr // Instructions of the block.
	f      *Function
	pos    int // Position in layout order.
	refs   int // Number of branch operands targeting the block.
}

// FrameObject is a slot of the function frame.
type FrameObject struct {
	Size   int
	Align  int
	Offset int
}

// Function is a machine function. Its virtual registers live in a dense arena with side use and def counts.
type Function struct {
	Name   string        // Assembly symbol.
	Num    int           // Position of the function in its module, used for block labels.
	Src    *lir.Function // Function the machine function was selected from.
	Blocks []*Block      // Blocks in layout order. The first block is the entry block.
	Frame  []FrameObject // Frame slots.
	Info   *FunctionInfo
	regs   []regInfo
	size   int // Frame size in bytes.
	align  int // Maximum frame slot alignment.
	nblock int
}

// regInfo holds the use and def counts of a virtual register.
type regInfo struct {
	defs  int
	uses  int
	float bool // Set true if the register holds a float.
}

// ---------------------
// ----- Constants -----
// ---------------------

// NoReg marks an unset register designation.
const NoReg Reg = -1

const (
	KindInvalid    OperandKind = iota
	KindReg                    // Virtual register.
	KindImm                    // Integer immediate.
	KindFImm                   // Single precision float immediate.
	KindSymbol                 // Address of a symbol, or its memory if Deref is set.
	KindBlock                  // Basic block label.
	KindFrameIndex             // Address of a frame slot.
	KindLocal                  // Glulx local.
	KindDiscard                // Discarded store.
	KindStack                  // Push to or pop from the VM stack.
)

// ---------------------
// ----- Functions -----
// ---------------------

// RegOp returns a register operand.
func RegOp(r Reg) Operand {
	return Operand{Kind: KindReg, Reg: r}
}

// ImmOp returns an integer immediate operand.
func ImmOp(v int64) Operand {
	return Operand{Kind: KindImm, Imm: v}
}

// FImmOp returns a float immediate operand.
func FImmOp(f float32) Operand {
	return Operand{Kind: KindFImm, Bits: math.Float32bits(f)}
}

// SymOp returns the address of symbol name displaced by off bytes.
func SymOp(name string, off int64) Operand {
	return Operand{Kind: KindSymbol, Sym: name, Off: off}
}

// MemOp returns the memory word at symbol name displaced by off bytes.
func MemOp(name string, off int64) Operand {
	return Operand{Kind: KindSymbol, Sym: name, Off: off, Deref: true}
}

// BlockOp returns a branch target operand.
func BlockOp(b *Block) Operand {
	return Operand{Kind: KindBlock, Block: b}
}

// FrameOp returns the address of frame slot fi displaced by off bytes.
func FrameOp(fi int, off int64) Operand {
	return Operand{Kind: KindFrameIndex, Imm: int64(fi), Off: off}
}

// LocalOp returns a local operand.
func LocalOp(n int) Operand {
	return Operand{Kind: KindLocal, Imm: int64(n)}
}

// DiscardOp returns a store operand that drops the value.
func DiscardOp() Operand {
	return Operand{Kind: KindDiscard}
}

// StackOp returns the VM stack operand.
func StackOp() Operand {
	return Operand{Kind: KindStack}
}

// IsReg reports whether o is a register operand.
func (o Operand) IsReg() bool {
	return o.Kind == KindReg
}

// IsImm reports whether o is the integer immediate v.
func (o Operand) IsImm(v int64) bool {
	return o.Kind == KindImm && o.Imm == v
}

// IsConst reports whether the value of o is known at assembly time.
func (o Operand) IsConst() bool {
	return o.Kind == KindImm || o.Kind == KindFImm || (o.Kind == KindSymbol && !o.Deref)
}

// String returns the assembly form of o. Registers and frame indices have no assembly form; they are printed in
// a debug notation.
func (o Operand) String() string {
	switch o.Kind {
	case KindReg:
		return fmt.Sprintf("%%r%d", o.Reg)
	case KindImm:
		return xtoa.Imm(o.Imm)
	case KindFImm:
		return xtoa.FloatBits(o.Bits)
	case KindSymbol:
		s := o.Sym + labelSuffix
		if o.Off != 0 {
			s += fmt.Sprintf("%+d", o.Off)
		}
		if o.Deref {
			return "@" + s
		}
		return s
	case KindBlock:
		return o.Block.Label() + labelSuffix
	case KindFrameIndex:
		if o.Off != 0 {
			return fmt.Sprintf("%%fi%d%+d", o.Imm, o.Off)
		}
		return fmt.Sprintf("%%fi%d", o.Imm)
	case KindLocal:
		return "$" + xtoa.ItoA(o.Imm)
	case KindDiscard:
		return "0"
	case KindStack:
		return "sp"
	}
	return "<invalid>"
}

// NewInstr creates a machine instruction. The operand count must match the opcode.
func NewInstr(op Opcode, ops ...Operand) *Instr {
	info := &opcodes[op]
	if len(info.rest) == 0 && len(ops) != len(info.modes) {
		panic(fmt.Sprintf("glulx: %s expects %d operands, got %d", info.name, len(info.modes), len(ops)))
	}
	return &Instr{Op: op, Ops: ops}
}

// IsDef reports whether operand n of in is stored to.
func (in *Instr) IsDef(n int) bool {
	return in.Op.mode(n) == 's'
}

// MayLoadOrStore reports whether in accesses memory, either through an array instruction or a memory operand.
func (in *Instr) MayLoadOrStore() bool {
	if in.Op.MayLoad() || in.Op.MayStore() {
		return true
	}
	for _, e1 := range in.Ops {
		if e1.Kind == KindSymbol && e1.Deref {
			return true
		}
	}
	return false
}

// String returns the instruction in assembly notation.
func (in *Instr) String() string {
	sb := strings.Builder{}
	sb.WriteString(in.Op.String())
	for _, e1 := range in.Ops {
		sb.WriteRune(' ')
		sb.WriteString(e1.String())
	}
	return sb.String()
}

// Label returns the assembly label of Block b without suffix.
func (b *Block) Label() string {
	return util.BlockLabel(b.f.Num, b.Num)
}

// Parent returns the function of Block b.
func (b *Block) Parent() *Function {
	return b.f
}

// Append adds in to the end of Block b.
func (b *Block) Append(in *Instr) *Instr {
	b.Instrs = append(b.Instrs, in)
	return in
}

// Insert inserts ins before instruction i of Block b.
func (b *Block) Insert(i int, ins ...*Instr) {
	res := make([]*Instr, 0, len(b.Instrs)+len(ins))
	res = append(res, b.Instrs[:i]...)
	res = append(res, ins...)
	b.Instrs = append(res, b.Instrs[i:]...)
}

// Remove deletes instruction i of Block b.
func (b *Block) Remove(i int) {
	b.Instrs = append(b.Instrs[:i], b.Instrs[i+1:]...)
}

// FirstTerminator returns the index of the first instruction of the branch sequence that ends Block b, or the
// number of instructions if b has none.
func (b *Block) FirstTerminator() int {
	i1 := len(b.Instrs)
	for i1 > 0 {
		op := b.Instrs[i1-1].Op
		if !op.IsBranch() && !op.IsTerminator() {
			break
		}
		i1--
	}
	return i1
}

// FallsThrough reports whether control may continue from the end of Block b to the next block in layout order.
func (b *Block) FallsThrough() bool {
	if len(b.Instrs) == 0 {
		return true
	}
	return !b.Instrs[len(b.Instrs)-1].Op.IsTerminator()
}

// IsBranchTarget reports whether a branch refers to Block b. Only branch targets need a label.
func (b *Block) IsBranchTarget() bool {
	return b.refs > 0
}

// NewFunction creates an empty machine function.
func NewFunction(name string, num int, src *lir.Function) *Function {
	return &Function{
		Name:   name,
		Num:    num,
		Src:    src,
		Blocks: make([]*Block, 0, 8),
		Info:   newFunctionInfo(name),
		regs:   make([]regInfo, 0, 32),
		align:  MinAlign,
	}
}

// NewReg creates a new virtual register.
func (f *Function) NewReg() Reg {
	f.regs = append(f.regs, regInfo{})
	return Reg(len(f.regs) - 1)
}

// NewTypedReg creates a new virtual register holding values of type t.
func (f *Function) NewTypedReg(t types.Type) Reg {
	r := f.NewReg()
	f.regs[r].float = types.IsFloat(t)
	return r
}

// IsFloat reports whether register r holds a float.
func (f *Function) IsFloat(r Reg) bool {
	return f.regs[r].float
}

// NumRegs returns the number of virtual registers of Function f.
func (f *Function) NumRegs() int {
	return len(f.regs)
}

// Defs returns the number of instructions that store to register r.
func (f *Function) Defs(r Reg) int {
	return f.regs[r].defs
}

// Uses returns the number of operands that read register r.
func (f *Function) Uses(r Reg) int {
	return f.regs[r].uses
}

// CountRegs recomputes the use and def counts of all registers and the branch references of all blocks. Stages
// call it after they rewrote instructions.
func (f *Function) CountRegs() {
	for i1 := range f.regs {
		f.regs[i1].defs, f.regs[i1].uses = 0, 0
	}
	for _, e1 := range f.Blocks {
		e1.refs = 0
	}
	for _, e1 := range f.Blocks {
		for _, e2 := range e1.Instrs {
			for i3, e3 := range e2.Ops {
				switch e3.Kind {
				case KindReg:
					if e2.IsDef(i3) {
						f.regs[e3.Reg].defs++
					} else {
						f.regs[e3.Reg].uses++
					}
				case KindBlock:
					if e2.Op != OpPhi {
						e3.Block.refs++
					}
				}
			}
		}
	}
}

// Entry returns the entry block of Function f.
func (f *Function) Entry() *Block {
	return f.Blocks[0]
}

// NewBlock creates a new block at the end of the layout of Function f.
func (f *Function) NewBlock() *Block {
	b := &Block{Num: f.nblock, f: f, pos: len(f.Blocks), Instrs: make([]*Instr, 0, 8)}
	f.nblock++
	f.Blocks = append(f.Blocks, b)
	return b
}

// NewBlockAfter creates a new block and places it directly after block b in layout order.
func (f *Function) NewBlockAfter(b *Block) *Block {
	nb := &Block{Num: f.nblock, f: f, Instrs: make([]*Instr, 0, 8)}
	f.nblock++
	res := make([]*Block, 0, len(f.Blocks)+1)
	res = append(res, f.Blocks[:b.pos+1]...)
	res = append(res, nb)
	f.Blocks = append(res, f.Blocks[b.pos+1:]...)
	for i1, e1 := range f.Blocks {
		e1.pos = i1
	}
	return nb
}

// Next returns the block following b in layout order, or nil.
func (f *Function) Next(b *Block) *Block {
	if b.pos+1 < len(f.Blocks) {
		return f.Blocks[b.pos+1]
	}
	return nil
}

// Successors returns the blocks control may reach from the end of Block b.
func (f *Function) Successors(b *Block) []*Block {
	res := make([]*Block, 0, 2)
	add := func(s *Block) {
		for _, e1 := range res {
			if e1 == s {
				return
			}
		}
		res = append(res, s)
	}
	for _, e1 := range b.Instrs {
		if !e1.Op.IsBranch() {
			continue
		}
		for _, e2 := range e1.Ops {
			if e2.Kind == KindBlock {
				add(e2.Block)
			}
		}
	}
	if next := f.Next(b); next != nil && b.FallsThrough() {
		add(next)
	}
	return res
}

// Predecessors returns the predecessors of every block of Function f.
func (f *Function) Predecessors() map[*Block][]*Block {
	res := make(map[*Block][]*Block, len(f.Blocks))
	for _, e1 := range f.Blocks {
		for _, e2 := range f.Successors(e1) {
			res[e2] = append(res[e2], e1)
		}
	}
	return res
}

// CreateFrameObject adds a frame slot of the given size and alignment and returns its frame index.
func (f *Function) CreateFrameObject(size, align int) int {
	if align < MinAlign {
		align = MinAlign
	}
	off := (f.size + align - 1) &^ (align - 1)
	f.Frame = append(f.Frame, FrameObject{Size: size, Align: align, Offset: off})
	f.size = off + size
	if align > f.align {
		f.align = align
	}
	return len(f.Frame) - 1
}

// FrameSize returns the size of the frame of Function f in bytes.
func (f *Function) FrameSize() int {
	return f.size
}

// MaxAlign returns the largest alignment of any frame slot of Function f.
func (f *Function) MaxAlign() int {
	return f.align
}

// String returns a debug listing of Function f.
func (f *Function) String() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("%s:\n", f.Name))
	for _, e1 := range f.Blocks {
		sb.WriteString(fmt.Sprintf("%s:\n", e1.Label()))
		for _, e2 := range e1.Instrs {
			sb.WriteRune('\t')
			sb.WriteString(e2.String())
			sb.WriteRune('\n')
		}
	}
	return sb.String()
}
