// Package descriptor parses JVM method type descriptors such as
// "(Ljava/lang/String;I)V" into the two-valued kind domain used by the stack
// simulator.
package descriptor

import (
	"fmt"
	"regexp"
	"strings"
)

// Descriptor is a parsed method signature.
type Descriptor struct {
	Args   []Kind // in declared order
	Return Kind   // meaningless when Void is set
	Void   bool
}

// Error reports a malformed descriptor. Offset is the byte position in the
// argument string where the bad type began.
type Error struct {
	Input  string
	Offset int
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at offset %d in %q", e.Reason, e.Offset, e.Input)
}

// String renders the descriptor back in kind notation, e.g. "(AI)I".
func (d Descriptor) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, k := range d.Args {
		sb.WriteString(k.String())
	}
	sb.WriteByte(')')
	if d.Void {
		sb.WriteByte('V')
	} else {
		sb.WriteString(d.Return.String())
	}
	return sb.String()
}

// Parse classifies the argument types in args and the return type code ret.
//
// The scan is lenient: characters that do not start a type are skipped. An
// unterminated class name stops the scan and returns an *Error together with
// the arguments parsed so far.
func Parse(args string, ret byte) (Descriptor, error) {
	d := Descriptor{Args: []Kind{}}
	switch ret {
	case 'V':
		d.Void = true
	default:
		d.Return = FromCode(ret)
	}

	for j := 0; j < len(args); {
		c := args[j]
		switch {
		case c == 'L':
			end, err := classEnd(args, j)
			if err != nil {
				return d, err
			}
			d.Args = append(d.Args, Reference)
			j = end

		case c == '[':
			start := j
			for j < len(args) && args[j] == '[' {
				j++
			}
			switch {
			case j >= len(args):
				return d, &Error{Input: args, Offset: start, Reason: "array type has no element type"}
			case args[j] == 'L':
				end, err := classEnd(args, j)
				if err != nil {
					return d, err
				}
				j = end
			default:
				j++
			}
			d.Args = append(d.Args, Reference)

		case strings.IndexByte("ZBCSI", c) >= 0:
			d.Args = append(d.Args, Integer)
			j++

		case strings.IndexByte("FJD", c) >= 0:
			d.Args = append(d.Args, Reference)
			j++

		default:
			j++
		}
	}
	return d, nil
}

// classEnd returns the index just past the ';' that terminates the class
// name starting at args[start] == 'L'.
func classEnd(args string, start int) (int, error) {
	k := strings.IndexByte(args[start:], ';')
	if k < 0 {
		return 0, &Error{Input: args, Offset: start, Reason: "unterminated class name"}
	}
	return start + k + 1, nil
}

// signaturePattern matches the first "(args)r" in an instruction's text.
var signaturePattern = regexp.MustCompile(`\((.*?)\)(.)`)

// Find locates a method signature inside raw instruction text such as
// "invokevirtual java/io/PrintStream/println(I)V" and returns the argument
// part and the first return-type character.
func Find(raw string) (args string, ret byte, ok bool) {
	m := signaturePattern.FindStringSubmatch(raw)
	if m == nil {
		return "", 0, false
	}
	return m[1], m[2][0], true
}

// ParseMethod parses a complete "(args)ret" descriptor.
func ParseMethod(sig string) (Descriptor, error) {
	args, ret, ok := Find(sig)
	if !ok || !strings.HasPrefix(sig, "(") {
		return Descriptor{}, &Error{Input: sig, Reason: "not a method descriptor"}
	}
	return Parse(args, ret)
}
