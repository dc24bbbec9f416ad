package compiler

import (
	"fmt"
	"strconv"

	"github.com/GreatMimperator/forthchan/isa"
)

// desugarStrings expands double-quoted string literals into the compiler's
// internal buffer-fill-then-print term sequence. Each literal gets its own
// `_string` array variable and `_string_pointer` cursor variable so nested
// or repeated string literals do not alias each other's storage.
func desugarStrings(terms []isa.Term) []isa.Term {
	out := make([]isa.Term, 0, len(terms))
	stringIndex := 0
	for _, term := range terms {
		if !isStringImmPrinting(term.Name) {
			out = append(out, term)
			continue
		}
		content := term.Name[1 : len(term.Name)-1]
		name := "_string" + letterTag(stringIndex)
		stringIndex++
		out = append(out, stringBufferTerms(term, name, content)...)
	}
	return out
}

// letterTag turns n into a letters-only tag (a, b, ..., z, ba, bb, ...)
// suitable for appending to a generated identifier: identifierRe forbids
// digits anywhere in a name, so a plain decimal suffix would make every
// generated term after the first unclassifiable by isUserWord/isCompilerWord.
func letterTag(n int) string {
	const base = 26
	buf := []byte{byte('a' + n%base)}
	n /= base
	for n > 0 {
		buf = append([]byte{byte('a' + n%base)}, buf...)
		n /= base
	}
	return string(buf)
}

func gen(src isa.Term, names ...string) []isa.Term {
	terms := make([]isa.Term, len(names))
	for i, n := range names {
		terms[i] = isa.Term{LineNumber: src.LineNumber, LinePosition: src.LinePosition, Name: n}
	}
	return terms
}

func stringBufferTerms(src isa.Term, name string, content string) []isa.Term {
	var out []isa.Term
	arrayDecl := fmt.Sprintf("%s-%d", name, len(content)+1)
	ptr := name + "_pointer"

	out = append(out, gen(src, arrayDecl, name+"&", ptr+"!")...)
	for _, ch := range []byte(content) {
		out = append(out, gen(src, strconv.Itoa(int(ch)))...)
		out = append(out, gen(src, ptr+"?", "put_absolute")...)
		out = append(out, gen(src, ptr+"?", "1", "+", ptr+"!")...)
	}
	out = append(out, gen(src, "0", ptr+"?", "put_absolute")...)
	out = append(out, gen(src, name+"&")...)
	out = append(out, printStringTerms(src, ptr)...)
	return out
}

func printStringTerms(src isa.Term, ptr string) []isa.Term {
	var out []isa.Term
	out = append(out, gen(src, ptr+"!")...)
	out = append(out, gen(src, "begin")...)
	out = append(out, gen(src, ptr+"?", "pick_absolute")...)
	out = append(out, gen(src, "dup")...)
	out = append(out, gen(src, "if")...)
	out = append(out, gen(src, "drop")...)
	out = append(out, gen(src, "leave")...)
	out = append(out, gen(src, "then")...)
	out = append(out, gen(src, "begin")...)
	out = append(out, gen(src, "cant_emit")...)
	out = append(out, gen(src, "0", "=", "until")...)
	out = append(out, gen(src, "emit")...)
	out = append(out, gen(src, ptr+"?", "1", "+", ptr+"!")...)
	out = append(out, gen(src, "0", "until")...)
	return out
}
