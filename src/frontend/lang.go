package frontend

// rw contains the set of all reserved LIR keywords.
// The first dimension equals the length of the word.
// The second dimension is the slice of all words of that length.
// Indexing by length and searching should be faster than using a hash table.
// Opcodes, predicates, linkages and calling conventions are not reserved; the parser resolves them from context.
var rw = [...][]string{
	// One-grams
	{},
	// Two-grams
	{"to"},
	// Three-grams
	{"asm", "inf", "nan"},
	// Four-grams
	{"call", "func", "null", "sret", "nest", "tail", "true"},
	// Five-grams
	{"align", "byval", "byref", "const", "count", "false", "inreg", "undef"},
	// Six-grams
	{"global"},
	// Seven-grams
	{"declare"},
	// Eight-grams
	{"inalloca", "musttail", "zeroinit"},
	// Nine-grams
	{"interrupt"},
	// Ten-grams
	{},
	// Eleven-grams
	{},
	// Twelve-grams
	{"blockaddress"},
}

// isKeyword returns true if the string s is a reserved LIR keyword.
func isKeyword(s string) bool {
	if len(s) == 0 || len(s) > len(rw) {
		return false
	}
	for _, e1 := range rw[len(s)-1] {
		if e1 == s {
			return true
		}
	}
	return false
}

// isTypeName returns true if the string s names a primitive LIR type.
func isTypeName(s string) bool {
	switch s {
	case "ptr", "void", "label", "f32", "f64":
		return true
	}
	if len(s) < 2 || s[0] != 'i' || s[1] == '0' {
		return false
	}
	for _, e1 := range s[1:] {
		if !isDigit(e1) {
			return false
		}
	}
	return true
}
