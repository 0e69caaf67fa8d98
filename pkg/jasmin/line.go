// Package jasmin reads the textual, Jasmin-style assembler form of JVM class
// files. It knows how to split a source into method blocks and how to turn a
// line into an instruction; it does not assemble anything.
package jasmin

import "strings"

// Instruction is one executable line of a method body.
type Instruction struct {
	Mnemonic string // first field, e.g. "invokevirtual" or "L12:"
	Operands string // remaining text, trimmed
	Raw      string // the line as it appeared in the source
}

// IsDirective reports whether a trimmed line is an assembler directive
// (.limit, .var, .signature, .line, .method, .end, .catch, ...).
func IsDirective(line string) bool {
	return strings.HasPrefix(line, ".")
}

// ParseInstruction splits a raw source line into an Instruction. Blank lines,
// ';' comments and directives yield ok == false.
func ParseInstruction(raw string) (in Instruction, ok bool) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, ";") || IsDirective(line) {
		return Instruction{}, false
	}

	mnemonic, rest := line, ""
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		mnemonic, rest = line[:i], line[i+1:]
	}
	return Instruction{
		Mnemonic: mnemonic,
		Operands: strings.TrimSpace(rest),
		Raw:      raw,
	}, true
}

// IsLabel reports whether the instruction is a branch target label.
func (in Instruction) IsLabel() bool {
	return strings.HasSuffix(in.Mnemonic, ":")
}
