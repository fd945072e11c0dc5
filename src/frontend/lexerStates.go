package frontend

import "unicode/utf8"

// nameRunes defines the characters that may follow the first character of identifiers and value names.
const nameRunes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_.$"

// lexGlobal starts the lexing process and serves as the default state.
func lexGlobal(l *lexer) stateFunc {
	for {
		r := l.next()
		switch {
		case isAlpha(r) || r == '_':
			// Keyword, type name or identifier.
			return lexWord
		case isDigit(r):
			// Number.
			return lexNumber
		case r == '-' && isDigit(l.peek()):
			// Negative number.
			return lexNumber
		case r == '%':
			// Local value or block reference.
			return lexLocal
		case r == '@':
			// Global symbol reference.
			return lexSymbol
		case r == '\n':
			// Newline.
			l.ignore()
			l.line++
			l.startOnLine = 1
		case isSpace(r):
			// Ignore whitespace. Newlines are caught before whitespaces.
			// Based on Google's RE2 WHITESPACE class: [\t\n\f\r ]
			l.ignore()
		case r == '"':
			// String.
			return lexString
		case r == '.' && l.peek() == '.':
			// Ellipsis of variadic signatures.
			l.next()
			if !l.accept(".") {
				return l.errorf("unexpected '..' at line %d:%d", l.line, l.startOnLine)
			}
			l.emit(itemEllipsis)
		case r == ';':
			// Ignore comments.
			for c := l.next(); c != '\n' && c != eof; c = l.next() {
			}
			l.backup()
			l.ignore()
		case r == eof:
			// End of file: stop the state machine.
			l.emit(itemEOF)
			return nil
		case isPunct(r):
			// Let parser use character as is.
			l.emit(itemType(r))
		default:
			return l.errorf("unexpected character %q at line %d:%d", r, l.line, l.startOnLine)
		}
	}
}

// lexWord scans the input string for keywords, type names and identifiers.
func lexWord(l *lexer) stateFunc {
	// We know that the currently scanned rune is an alphabetic character or an underscore.
	l.acceptRun(nameRunes)
	w := l.input[l.start:l.pos]
	switch {
	case isTypeName(w):
		l.emit(itemTypeName)
	case isKeyword(w):
		l.emit(itemKeyword)
	default:
		l.emit(itemIdent)
	}
	return lexGlobal
}

// lexLocal scans a local value name. The leading '%' is part of the token.
func lexLocal(l *lexer) stateFunc {
	if len(l.input[l.pos:]) == 0 || !isNameRune(l.peek()) {
		return l.errorf("expected name after '%%' at line %d:%d", l.line, l.startOnLine)
	}
	l.acceptRun(nameRunes)
	l.emit(itemLocal)
	return lexGlobal
}

// lexSymbol scans a global symbol name. The leading '@' is part of the token.
func lexSymbol(l *lexer) stateFunc {
	if len(l.input[l.pos:]) == 0 || !isNameRune(l.peek()) {
		return l.errorf("expected name after '@' at line %d:%d", l.line, l.startOnLine)
	}
	l.acceptRun(nameRunes)
	l.emit(itemGlobal)
	return lexGlobal
}

// lexNumber scans the input stream for an integer or floating point number.
// This function accepts zero leading numbers and numbers consisting of all zeros.
func lexNumber(l *lexer) stateFunc {
	// We've scanned the first digit or the minus sign already.
	digits := "0123456789"
	if l.input[l.pos-1] == '-' {
		l.next()
	}
	if l.input[l.pos-1] == '0' && l.accept("xX") {
		digits = "0123456789abcdefABCDEF"
		l.acceptRun(digits)
		l.emit(itemInteger)
		return lexGlobal
	}
	l.acceptRun(digits)

	// Check for decimal or exponent.
	isFloat := false
	if l.accept(".") {
		isFloat = true
		l.acceptRun(digits)
	}
	if l.accept("eE") {
		isFloat = true
		l.accept("+-")
		if !isDigit(l.peek()) {
			return l.errorf("malformed exponent at line %d:%d", l.line, l.startOnLine)
		}
		l.acceptRun(digits)
	}
	if isFloat {
		l.emit(itemFloat)
	} else {
		l.emit(itemInteger)
	}
	return lexGlobal
}

// lexString scans a string literal from the input stream.
func lexString(l *lexer) stateFunc {
	// By this point we're in the string. Accept anything until the next '"' appears.
	// Escaped '"' (\") are ignored.
	l.ignore()
	prev, _ := utf8.DecodeRuneInString(l.input[l.pos-1:]) // Safe, because we must scan at least one rune to get here.
	for {
		r := l.next()
		if r == eof || r == '\n' {
			return l.errorf("unclosed string literal at line %d:%d", l.line, l.startOnLine)
		}
		// Check for escaped string termination (\").
		if r == '"' && prev != '\\' {
			// Found string termination.
			l.backup()
			l.emit(itemString)
			l.next()
			l.ignore()
			return lexGlobal
		}
		prev = r
	}
}

// ----------------------------
// ----- Helper functions -----
// ----------------------------

// isAlpha return true if rune r is an alphabetic character in the set [a-zA-Z].
func isAlpha(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// isDigit return true if rune r is a digit in the range [0-9].
func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// isSpace return true if rune r is a whitespace character.
func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\f' || r == '\r'
}

// isNameRune returns true if rune r may appear in a value name.
func isNameRune(r rune) bool {
	return isAlpha(r) || isDigit(r) || r == '_' || r == '.' || r == '$'
}

// isPunct returns true if rune r is a single character token.
func isPunct(r rune) bool {
	switch r {
	case '(', ')', '[', ']', '{', '}', ',', ':', '=', '+', '-', '*':
		return true
	}
	return false
}
