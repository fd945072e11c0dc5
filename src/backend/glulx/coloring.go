package glulx

import (
	"glulxc/src/backend/regfile"
	"glulxc/src/util"
	"math/bits"
	"slices"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// regSet is a set of virtual registers.
type regSet []uint64

// rigNode is a node of the register interference graph.
type rigNode struct {
	reg        Reg
	neighbours map[Reg]bool
	enabled    bool // Set to false once the node is removed from the graph.
	slot       *regfile.Slot
}

// ---------------------
// ----- Functions -----
// ---------------------

func newRegSet(n int) regSet {
	return make(regSet, (n+63)/64)
}

func (s regSet) add(r Reg) {
	s[r/64] |= 1 << (uint(r) % 64)
}

func (s regSet) remove(r Reg) {
	s[r/64] &^= 1 << (uint(r) % 64)
}

func (s regSet) has(r Reg) bool {
	return s[r/64]&(1<<(uint(r)%64)) != 0
}

// union adds all registers of o to s and reports whether s changed.
func (s regSet) union(o regSet) bool {
	changed := false
	for i1, e1 := range o {
		if n := s[i1] | e1; n != s[i1] {
			s[i1] = n
			changed = true
		}
	}
	return changed
}

// each calls fn for every register of s in increasing order.
func (s regSet) each(fn func(r Reg)) {
	for i1, e1 := range s {
		for e1 != 0 {
			b := bits.TrailingZeros64(e1)
			fn(Reg(i1*64 + b))
			e1 &^= 1 << uint(b)
		}
	}
}

// liveOut computes the registers live at the end of every block of Function f.
func liveOut(f *Function) map[*Block]regSet {
	n := f.NumRegs()
	use := make(map[*Block]regSet, len(f.Blocks))
	def := make(map[*Block]regSet, len(f.Blocks))
	out := make(map[*Block]regSet, len(f.Blocks))
	in := make(map[*Block]regSet, len(f.Blocks))
	for _, e1 := range f.Blocks {
		u, d := newRegSet(n), newRegSet(n)
		for i2 := len(e1.Instrs) - 1; i2 >= 0; i2-- {
			mi := e1.Instrs[i2]
			for i3, e3 := range mi.Ops {
				if e3.Kind == KindReg && mi.IsDef(i3) {
					d.add(e3.Reg)
					u.remove(e3.Reg)
				}
			}
			for i3, e3 := range mi.Ops {
				if e3.Kind == KindReg && !mi.IsDef(i3) {
					u.add(e3.Reg)
				}
			}
		}
		use[e1], def[e1] = u, d
		out[e1], in[e1] = newRegSet(n), newRegSet(n)
		in[e1].union(u)
	}

	succs := make(map[*Block][]*Block, len(f.Blocks))
	for _, e1 := range f.Blocks {
		succs[e1] = f.Successors(e1)
	}
	for changed := true; changed; {
		changed = false
		for i1 := len(f.Blocks) - 1; i1 >= 0; i1-- {
			b := f.Blocks[i1]
			for _, e2 := range succs[b] {
				if out[b].union(in[e2]) {
					changed = true
				}
			}
			// in = use | (out - def)
			tmp := newRegSet(n)
			for i2 := range tmp {
				tmp[i2] = use[b][i2] | (out[b][i2] &^ def[b][i2])
			}
			if in[b].union(tmp) {
				changed = true
			}
		}
	}
	return out
}

// interference builds the register interference graph of Function f. Registers without uses are left out; they
// are discarded when locals are made explicit.
func interference(f *Function) map[Reg]*rigNode {
	out := liveOut(f)
	rig := make(map[Reg]*rigNode, f.NumRegs())
	node := func(r Reg) *rigNode {
		n, ok := rig[r]
		if !ok {
			n = &rigNode{reg: r, neighbours: make(map[Reg]bool, 4), enabled: true}
			rig[r] = n
		}
		return n
	}
	edge := func(a, b Reg) {
		if a == b {
			return
		}
		node(a).neighbours[b] = true
		node(b).neighbours[a] = true
	}

	for _, e1 := range f.Blocks {
		live := newRegSet(f.NumRegs())
		live.union(out[e1])
		for i2 := len(e1.Instrs) - 1; i2 >= 0; i2-- {
			mi := e1.Instrs[i2]
			defs := make([]Reg, 0, 2)
			for i3, e3 := range mi.Ops {
				if e3.Kind == KindReg && mi.IsDef(i3) && f.Uses(e3.Reg) > 0 {
					defs = append(defs, e3.Reg)
				}
			}
			for _, d := range defs {
				node(d)
				live.each(func(r Reg) {
					edge(d, r)
				})
				for _, e4 := range defs {
					edge(d, e4)
				}
			}
			for _, d := range defs {
				live.remove(d)
			}
			for i3, e3 := range mi.Ops {
				if e3.Kind == KindReg && !mi.IsDef(i3) {
					node(e3.Reg)
					live.add(e3.Reg)
				}
			}
		}
		// Registers live into the entry block are alive together at function start.
		if e1 == f.Entry() {
			regs := make([]Reg, 0, 8)
			live.each(func(r Reg) {
				regs = append(regs, r)
			})
			for i2, e2 := range regs {
				for _, e3 := range regs[i2+1:] {
					edge(e2, e3)
				}
			}
		}
	}
	return rig
}

// ColorLocals lets registers that are never live at the same time share a local. It colours the register
// interference graph of Function f with the slots of a local slot file and renames every register to one
// representative register per slot. Argument registers are precoloured with their parameter index and represent
// their slot. The number of slots used is returned.
func ColorLocals(f *Function) int {
	f.CountRegs()
	rig := interference(f)
	rf := regfile.New(len(f.Info.Params))

	args := make(map[Reg]int, len(f.Info.Params))
	for _, e1 := range f.Entry().Instrs {
		if e1.Op != OpArgument {
			continue
		}
		r, idx := e1.Ops[0].Reg, int(e1.Ops[1].Imm)
		args[r] = idx
		if n, ok := rig[r]; ok {
			n.slot = rf.Get(idx)
			n.enabled = false
		}
	}
	// Slots of arguments are reserved even for arguments that are never read.
	for _, idx := range args {
		rf.Get(idx)
	}

	// Simplify: remove the node with the fewest enabled neighbours until the graph is empty. Ties go to the lowest
	// register so that the result does not depend on map order.
	order := make([]Reg, 0, len(rig))
	for k := range rig {
		order = append(order, k)
	}
	slices.Sort(order)
	stack := util.Stack[*rigNode]{}
	for {
		var best *rigNode
		bestDeg := 0
		for _, e1 := range order {
			n := rig[e1]
			if !n.enabled {
				continue
			}
			deg := 0
			for k := range n.neighbours {
				if rig[k].enabled {
					deg++
				}
			}
			if best == nil || deg < bestDeg {
				best, bestDeg = n, deg
			}
		}
		if best == nil {
			break
		}
		best.enabled = false
		stack.Push(best)
	}

	// Select: pop the nodes and hand out the lowest slot no coloured neighbour holds.
	for n, ok := stack.Pop(); ok; n, ok = stack.Pop() {
		excl := make([]*regfile.Slot, 0, len(n.neighbours))
		for k := range n.neighbours {
			if s := rig[k].slot; s != nil {
				excl = append(excl, s)
			}
		}
		n.slot = rf.GetNextExclude(excl)
	}

	// Rename every register to the representative of its slot.
	rep := make(map[int]Reg, rf.Len())
	for r, idx := range args {
		rep[idx] = r
	}
	for _, e1 := range order {
		id := rig[e1].slot.Id()
		if _, ok := rep[id]; !ok {
			rep[id] = e1
		}
	}
	for _, e1 := range f.Blocks {
		for _, e2 := range e1.Instrs {
			if e2.Op == OpArgument {
				continue
			}
			for i3, e3 := range e2.Ops {
				if e3.Kind != KindReg {
					continue
				}
				n, ok := rig[e3.Reg]
				if !ok {
					continue
				}
				r := rep[n.slot.Id()]
				if f.IsFloat(e3.Reg) {
					f.regs[r].float = true
				}
				e2.Ops[i3] = RegOp(r)
			}
		}
	}
	if fb, ok := rig[f.Info.FrameBase]; ok && f.Info.FrameBase != NoReg {
		f.Info.FrameBase = rep[fb.slot.Id()]
	}
	if sb, ok := rig[f.Info.StackBase]; ok && f.Info.StackBase != NoReg {
		f.Info.StackBase = rep[sb.slot.Id()]
	}
	f.CountRegs()
	return rf.Len()
}
