// Package regfile provides the local slot file used when virtual registers share Glulx locals.
// Glulx has no physical registers. Every function declares as many 32-bit locals as it needs, so the file
// grows on demand instead of running out of registers.
package regfile

import (
	"fmt"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Slot is one local of a function.
type Slot struct {
	id   int
	used bool
}

// File is a growable file of local slots.
type File struct {
	slots []*Slot
}

// ---------------------
// ----- Functions -----
// ---------------------

// New returns a file with n pre-allocated slots.
func New(n int) *File {
	rf := &File{slots: make([]*Slot, 0, n)}
	for i1 := 0; i1 < n; i1++ {
		rf.grow()
	}
	return rf
}

// Id returns the local number of Slot s.
func (s *Slot) Id() int {
	return s.id
}

// Used reports whether Slot s has been handed out.
func (s *Slot) Used() bool {
	return s.used
}

// String returns the assembler notation of Slot s.
func (s *Slot) String() string {
	return fmt.Sprintf("$%d", s.id)
}

// grow appends a new slot to the file.
func (rf *File) grow() *Slot {
	s := &Slot{id: len(rf.slots)}
	rf.slots = append(rf.slots, s)
	return s
}

// Get returns slot i and marks it used. The file grows if i is beyond its end.
func (rf *File) Get(i int) *Slot {
	if i < 0 {
		panic(fmt.Sprintf("regfile: negative slot %d", i))
	}
	for len(rf.slots) <= i {
		rf.grow()
	}
	s := rf.slots[i]
	s.used = true
	return s
}

// GetNextExclude returns the lowest numbered slot not in exc and marks it used. Slots already used by others
// are handed out again unless they are excluded, since slots are shared between non-interfering values.
func (rf *File) GetNextExclude(exc []*Slot) *Slot {
	skip := make(map[int]bool, len(exc))
	for _, e1 := range exc {
		if e1 != nil {
			skip[e1.id] = true
		}
	}
	for _, e1 := range rf.slots {
		if !skip[e1.id] {
			e1.used = true
			return e1
		}
	}
	s := rf.grow()
	s.used = true
	return s
}

// Len returns the number of used slots, counting up to the highest used slot.
func (rf *File) Len() int {
	n := 0
	for _, e1 := range rf.slots {
		if e1.used {
			n = e1.id + 1
		}
	}
	return n
}
