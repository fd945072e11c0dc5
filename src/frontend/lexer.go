// This lexer is based on, and copied from, Rob Pike's excellent talk on Go scanners.
// Link to the talk on YouTube: https://www.youtube.com/watch?v=HxaD_trXwRE
// Link to presentation slides: https://talks.golang.org/2011/lex.slide#1
//
// The lexer uses state functions stateFunc to define the lexer state. States allow the lexer to treat same runes
// differently. State transitions happens in the current states and appearance of key runes, or transition runes if you
// would. The lexer uses the Go 'character' type 'rune' which enables native UTF-8 support for the source being scanned.

package frontend

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// stateFunc defines the state of the lexer.
type stateFunc func(*lexer) stateFunc

// itemType is used to differentiate different tokens scanned by the lexer.
type itemType int

// item contains a lexeme scanned by the lexer and its position in the source stream.
type item struct {
	typ  itemType // Token type to emit.
	val  string   // Value of token.
	line int      // Line of token in source stream.
	pos  int      // Start position on current line of token in source stream.
}

// lexer is a lexical type that traverse a source stream character by character and emits lexemes.
type lexer struct {
	input       string        // The source stream of characters to scan for lexemes.
	start       int           // The starting position of the current token.
	pos         int           // The current position of the scanner in the source stream.
	width       int           // The width of the currently scanned rune/character in bytes.
	line        int           // The current line in the source stream. Not zero-indexed.
	startOnLine int           // The start position of the current token on the current line. Not zero-indexed.
	state       stateFunc     // The start state of the lexer.
	stopped     bool          // Set true when the consumer has abandoned the token stream.
	done        chan struct{} // Closed by the consumer to stop the lexer early.
	items       chan item     // A channel for emitting item tokens.
}

// ---------------------
// ----- Constants -----
// ---------------------

const eof = 0 // Same as '\0' for null-terminated C strings.

// Token types. Single character punctuation is emitted with the character itself as type.
const (
	itemEOF      itemType = iota
	itemError             // Lexical error; val holds the message.
	itemIdent             // Bare identifier, such as an opcode or a block label.
	itemKeyword           // Reserved word.
	itemTypeName          // Primitive type name, such as i32 or ptr.
	itemLocal             // Local value or block reference: %name.
	itemGlobal            // Global symbol reference: @name.
	itemInteger           // Integer literal, optionally negative or hexadecimal.
	itemFloat             // Floating point literal.
	itemString            // String literal without the enclosing quotes.
	itemEllipsis          // "..." of variadic signatures.
)

// -------------------
// ----- Globals -----
// -------------------

var itemNames = [...]string{
	itemEOF:      "EOF",
	itemError:    "error",
	itemIdent:    "identifier",
	itemKeyword:  "keyword",
	itemTypeName: "type",
	itemLocal:    "local",
	itemGlobal:   "global",
	itemInteger:  "integer",
	itemFloat:    "float",
	itemString:   "string",
	itemEllipsis: "...",
}

// --------------------------
// ----- Item functions -----
// --------------------------

// String returns a print friendly string representation of the item.
func (i item) String() string {
	switch i.typ {
	case itemEOF:
		return "EOF"
	case itemError:
		return fmt.Sprintf("%s [ERROR]", i.val)
	}
	if len(i.val) > 10 {
		return fmt.Sprintf("%.10q... (line %d:%d)", i.val, i.line, i.pos)
	}
	return fmt.Sprintf("%q (line %d:%d)", i.val, i.line, i.pos)
}

// String returns the name of the token type.
func (t itemType) String() string {
	if t >= 0 && int(t) < len(itemNames) {
		return itemNames[t]
	}
	return fmt.Sprintf("%q", rune(t))
}

// ---------------------------
// ----- Lexer functions -----
// ---------------------------

// newLexer creates and returns a pointer to a new lexer.
func newLexer(src string, start stateFunc) *lexer {
	return &lexer{
		input:       src,
		start:       0,
		pos:         0,
		width:       0,
		line:        1,
		startOnLine: 1,
		state:       start,
		done:        make(chan struct{}),
		items:       make(chan item, 2),
	}
}

// run initiates the traversal of the input stream of the lexer, resulting in tokens being emitted
// on the lexer's items channel.
func (l *lexer) run() {
	defer close(l.items)
	for state := l.state; state != nil && !l.stopped; {
		state = state(l)
	}
}

// stop tells the lexer that no more tokens will be consumed.
func (l *lexer) stop() {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
}

// emit sends an item of type typ back to the caller.
func (l *lexer) emit(typ itemType) {
	l.send(item{
		typ:  typ,
		val:  l.input[l.start:l.pos],
		line: l.line,
		pos:  l.startOnLine,
	})
	l.startOnLine += len(l.input[l.start:l.pos])
	l.start = l.pos
}

// send delivers i to the consumer unless the consumer has stopped listening.
func (l *lexer) send(i item) {
	select {
	case l.items <- i:
	case <-l.done:
		l.stopped = true
	}
}

// next returns the next rune in the input. The use of runes makes the lexer UTF-8 compatible.
func (l *lexer) next() (r rune) {
	if l.pos >= len(l.input) {
		l.width = 0
		return eof
	}
	r, l.width = utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += l.width
	return r
}

// ignore skips over the pending input before this point.
func (l *lexer) ignore() {
	l.startOnLine += len(l.input[l.start:l.pos])
	l.start = l.pos
}

// backup steps back one rune. Should only be called once per call of next.
func (l *lexer) backup() {
	if l.pos > l.start {
		l.pos -= l.width
	}
}

// peek returns, but does not consume, the next rune in the input.
func (l *lexer) peek() rune {
	r := l.next()
	l.backup()
	return r
}

// accept consumes the next rune if it's from the set of valid characters defined by the valid string.
func (l *lexer) accept(valid string) bool {
	if strings.IndexRune(valid, l.next()) >= 0 {
		return true
	}
	l.backup()
	return false
}

// acceptRun consumes a sequence of runes from the set of valid characters defined by the valid string.
func (l *lexer) acceptRun(valid string) {
	for strings.IndexRune(valid, l.next()) >= 0 {
	}
	l.backup()
}

// nextItem returns the next item from the input. A closed channel yields EOF.
func (l *lexer) nextItem() item {
	i, ok := <-l.items
	if !ok {
		return item{typ: itemEOF, line: l.line, pos: l.startOnLine}
	}
	return i
}

// errorf returns an error token and terminates the scan by passing back a nil pointer
// that will be the next state, terminating l.run.
func (l *lexer) errorf(format string, args ...interface{}) stateFunc {
	l.send(item{
		typ:  itemError,
		val:  fmt.Sprintf(format, args...),
		line: l.line,
		pos:  l.startOnLine,
	})
	return nil
}
