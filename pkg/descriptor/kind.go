package descriptor

import "fmt"

// Kind is the coarse value category tracked on the abstract operand stack.
//
// Only two kinds exist. Integral types (boolean, byte, char, short, int) are
// Integer; everything else is Reference, including float, long and double.
// Folding the floating and wide types into Reference is an approximation of
// the JVM verifier's type lattice: a method that mixes those types with
// object references will not have its mistakes caught.
type Kind uint8

const (
	Integer Kind = iota + 1
	Reference
)

// String returns the one-letter verifier notation for the kind ("I" or "A").
func (k Kind) String() string {
	switch k {
	case Integer:
		return "I"
	case Reference:
		return "A"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Name returns a readable name for the kind, as used in rule summaries.
func (k Kind) Name() string {
	switch k {
	case Integer:
		return "int"
	case Reference:
		return "ref"
	}
	return k.String()
}

// FromCode maps a single field-descriptor type code to a Kind.
// Unknown codes map to Reference, matching how return types are classified.
func FromCode(c byte) Kind {
	switch c {
	case 'Z', 'B', 'C', 'S', 'I':
		return Integer
	default:
		return Reference
	}
}
