package glulx

import (
	"fmt"
	"strings"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Section identifies an output section of the assembler.
type Section uint8

// Sections multiplexes assembly text into the ROM, RAM and BSS sections. The assembler cannot return to a section
// once it has left it, so RAM and BSS text is held back and appended after all ROM text by Finish.
//
// A label leaves its line open: the next directive or instruction continues on the label's line, since the
// assembler does not accept a line break between a label and the data it names. A second label closes the line
// first, as the assembler accepts one label per line only.
type Sections struct {
	buf      [numSections]strings.Builder
	cur      Section
	pending  bool // Set true if the current line holds a label only.
	finished bool
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	ROM Section = iota // Code and read-only data.
	RAM                // Initialised mutable data.
	BSS                // Zero initialised data.
	numSections
)

// labelSuffix is appended to every symbol to tell labels from opcode names.
const labelSuffix = "_"

// ---------------------
// ----- Functions -----
// ---------------------

func (s Section) String() string {
	switch s {
	case ROM:
		return "rom"
	case RAM:
		return "ram"
	case BSS:
		return "bss"
	}
	return "invalid"
}

// NewSections returns a multiplexer writing to ROM.
func NewSections() *Sections {
	return &Sections{cur: ROM}
}

// check panics if text is written after Finish.
func (ss *Sections) check() {
	if ss.finished {
		panic("glulx: write to finished sections")
	}
}

// Switch makes sec the current section. An open label line is closed in the section it was started in.
func (ss *Sections) Switch(sec Section) {
	ss.check()
	if sec == ss.cur {
		return
	}
	ss.EOL()
	ss.cur = sec
}

// Current returns the current section.
func (ss *Sections) Current() Section {
	return ss.cur
}

// Label writes the label of symbol name and leaves the line open.
func (ss *Sections) Label(name string) {
	ss.check()
	ss.EOL()
	b := &ss.buf[ss.cur]
	b.WriteByte(':')
	b.WriteString(name)
	b.WriteString(labelSuffix)
	ss.pending = true
}

// Line writes text and ends the line. text continues an open label line.
func (ss *Sections) Line(text string) {
	ss.check()
	b := &ss.buf[ss.cur]
	b.WriteString(text)
	b.WriteByte('\n')
	ss.pending = false
}

// Linef formats and writes a line.
func (ss *Sections) Linef(format string, a ...any) {
	ss.Line(fmt.Sprintf(format, a...))
}

// EOL closes an open label line.
func (ss *Sections) EOL() {
	if !ss.pending {
		return
	}
	ss.buf[ss.cur].WriteByte('\n')
	ss.pending = false
}

// Finish returns the ROM text followed by the RAM and BSS sections. No text may be written afterwards.
func (ss *Sections) Finish() string {
	ss.check()
	ss.EOL()
	ss.finished = true
	sb := strings.Builder{}
	sb.Grow(ss.buf[ROM].Len() + ss.buf[RAM].Len() + ss.buf[BSS].Len() + 16)
	sb.WriteString(ss.buf[ROM].String())
	sb.WriteString("\n!ram\n")
	sb.WriteString(ss.buf[RAM].String())
	sb.WriteString("\n!bss\n")
	sb.WriteString(ss.buf[BSS].String())
	return sb.String()
}
