// Tests the lexer type by verifying that a sample LIR function is tokenized properly.
//
// The sample was manually transformed into a slice of item types holding both token numerical type, string value and
// line position. It is expected that the lexer output tokens in the same order as the tuple slice, as it traverses
// the source string from start to finish.

package frontend

import (
	"strings"
	"testing"
)

const lexerSample = `; comment
func internal @max(%a: i32, %b: i32): i32 {
entry:
	%c = icmp sgt i32 %a, -12
	br %c, %l, %r
l:
	ret i32 0x1F
r:
	%f = fadd f32 1.5e3, 2.0
	call void (ptr, ...): void @printf(ptr @fmt+4, f32 %f)
	store [3 x i8] "a\0Ab", %p
	ret i32 %b
}
`

// TestLexer tests the lexing state functions to verify that it correctly scans a sample LIR function for tokens.
func TestLexer(t *testing.T) {
	exp := []item{
		{val: "func", typ: itemKeyword, line: 2, pos: 1},
		{val: "internal", typ: itemIdent, line: 2, pos: 6},
		{val: "@max", typ: itemGlobal, line: 2, pos: 15},
		{val: "(", typ: '(', line: 2, pos: 19},
		{val: "%a", typ: itemLocal, line: 2, pos: 20},
		{val: ":", typ: ':', line: 2, pos: 22},
		{val: "i32", typ: itemTypeName, line: 2, pos: 24},
		{val: ",", typ: ',', line: 2, pos: 27},
		{val: "%b", typ: itemLocal, line: 2, pos: 29},
		{val: ":", typ: ':', line: 2, pos: 31},
		{val: "i32", typ: itemTypeName, line: 2, pos: 33},
		{val: ")", typ: ')', line: 2, pos: 36},
		{val: ":", typ: ':', line: 2, pos: 37},
		{val: "i32", typ: itemTypeName, line: 2, pos: 39},
		{val: "{", typ: '{', line: 2, pos: 43},
		{val: "entry", typ: itemIdent, line: 3, pos: 1},
		{val: ":", typ: ':', line: 3, pos: 6},
		{val: "%c", typ: itemLocal, line: 4, pos: 2},
		{val: "=", typ: '=', line: 4, pos: 5},
		{val: "icmp", typ: itemIdent, line: 4, pos: 7},
		{val: "sgt", typ: itemIdent, line: 4, pos: 12},
		{val: "i32", typ: itemTypeName, line: 4, pos: 16},
		{val: "%a", typ: itemLocal, line: 4, pos: 20},
		{val: ",", typ: ',', line: 4, pos: 22},
		{val: "-12", typ: itemInteger, line: 4, pos: 24},
		{val: "br", typ: itemIdent, line: 5, pos: 2},
		{val: "%c", typ: itemLocal, line: 5, pos: 5},
		{val: ",", typ: ',', line: 5, pos: 7},
		{val: "%l", typ: itemLocal, line: 5, pos: 9},
		{val: ",", typ: ',', line: 5, pos: 11},
		{val: "%r", typ: itemLocal, line: 5, pos: 13},
		{val: "l", typ: itemIdent, line: 6, pos: 1},
		{val: ":", typ: ':', line: 6, pos: 2},
		{val: "ret", typ: itemIdent, line: 7, pos: 2},
		{val: "i32", typ: itemTypeName, line: 7, pos: 6},
		{val: "0x1F", typ: itemInteger, line: 7, pos: 10},
		{val: "r", typ: itemIdent, line: 8, pos: 1},
		{val: ":", typ: ':', line: 8, pos: 2},
		{val: "%f", typ: itemLocal, line: 9, pos: 2},
		{val: "=", typ: '=', line: 9, pos: 5},
		{val: "fadd", typ: itemIdent, line: 9, pos: 7},
		{val: "f32", typ: itemTypeName, line: 9, pos: 12},
		{val: "1.5e3", typ: itemFloat, line: 9, pos: 16},
		{val: ",", typ: ',', line: 9, pos: 21},
		{val: "2.0", typ: itemFloat, line: 9, pos: 23},
		{val: "call", typ: itemKeyword, line: 10, pos: 2},
		{val: "void", typ: itemTypeName, line: 10, pos: 7},
		{val: "(", typ: '(', line: 10, pos: 12},
		{val: "ptr", typ: itemTypeName, line: 10, pos: 13},
		{val: ",", typ: ',', line: 10, pos: 16},
		{val: "...", typ: itemEllipsis, line: 10, pos: 18},
		{val: ")", typ: ')', line: 10, pos: 21},
		{val: ":", typ: ':', line: 10, pos: 22},
		{val: "void", typ: itemTypeName, line: 10, pos: 24},
		{val: "@printf", typ: itemGlobal, line: 10, pos: 29},
		{val: "(", typ: '(', line: 10, pos: 36},
		{val: "ptr", typ: itemTypeName, line: 10, pos: 37},
		{val: "@fmt", typ: itemGlobal, line: 10, pos: 41},
		{val: "+", typ: '+', line: 10, pos: 45},
		{val: "4", typ: itemInteger, line: 10, pos: 46},
		{val: ",", typ: ',', line: 10, pos: 47},
		{val: "f32", typ: itemTypeName, line: 10, pos: 49},
		{val: "%f", typ: itemLocal, line: 10, pos: 53},
		{val: ")", typ: ')', line: 10, pos: 55},
		{val: "store", typ: itemIdent, line: 11, pos: 2},
		{val: "[", typ: '[', line: 11, pos: 8},
		{val: "3", typ: itemInteger, line: 11, pos: 9},
		{val: "x", typ: itemIdent, line: 11, pos: 11},
		{val: "i8", typ: itemTypeName, line: 11, pos: 13},
		{val: "]", typ: ']', line: 11, pos: 15},
		{val: "a\\0Ab", typ: itemString, line: 11, pos: 18},
		{val: ",", typ: ',', line: 11, pos: 24},
		{val: "%p", typ: itemLocal, line: 11, pos: 26},
		{val: "ret", typ: itemIdent, line: 12, pos: 2},
		{val: "i32", typ: itemTypeName, line: 12, pos: 6},
		{val: "%b", typ: itemLocal, line: 12, pos: 10},
		{val: "}", typ: '}', line: 13, pos: 1},
	}

	l := newLexer(lexerSample, lexGlobal)
	go l.run()
	defer l.stop()

	for i1, e1 := range exp {
		i := l.nextItem()
		if i.typ == itemError {
			t.Fatalf("lexer error at token %d: %s", i1, i.val)
		}
		if i.typ != e1.typ || i.val != e1.val {
			t.Fatalf("token %d: expected %s %q, got %s %q", i1, e1.typ, e1.val, i.typ, i.val)
		}
		if i.line != e1.line || i.pos != e1.pos {
			t.Errorf("token %d %q: expected position %d:%d, got %d:%d", i1, e1.val, e1.line, e1.pos, i.line, i.pos)
		}
	}
	if i := l.nextItem(); i.typ != itemEOF {
		t.Errorf("expected EOF, got %s", i)
	}
}

// TestLexerErrors verifies that malformed input produces an error token.
func TestLexerErrors(t *testing.T) {
	tests := []struct {
		src string
		msg string
	}{
		{src: `"unterminated`, msg: "unclosed string literal"},
		{src: `% x`, msg: "expected name after '%'"},
		{src: `1e+`, msg: "malformed exponent"},
		{src: `..x`, msg: "unexpected '..'"},
		{src: `#`, msg: "unexpected character"},
	}
	for _, e1 := range tests {
		l := newLexer(e1.src, lexGlobal)
		go l.run()
		var last item
		for i := l.nextItem(); i.typ != itemEOF; i = l.nextItem() {
			last = i
			if i.typ == itemError {
				break
			}
		}
		l.stop()
		if last.typ != itemError || !strings.Contains(last.val, e1.msg) {
			t.Errorf("%q: expected error containing %q, got %s", e1.src, e1.msg, last)
		}
	}
}

// TestTokenStream verifies the tabulated token stream output.
func TestTokenStream(t *testing.T) {
	sb := strings.Builder{}
	if err := TokenStream("global @g: i32 = 7", &sb); err != nil {
		t.Fatal(err)
	}
	out := sb.String()
	for _, e1 := range []string{"Value", `"global"`, "keyword", `"@g"`, `"7"`, "integer", "line: 1:18"} {
		if !strings.Contains(out, e1) {
			t.Errorf("token stream does not contain %q:\n%s", e1, out)
		}
	}
	if err := TokenStream(`"open`, &sb); err == nil {
		t.Error("expected error for unterminated string")
	}
}
