package stackcheck

import (
	"strings"

	"github.com/chazu/stackcheck/pkg/descriptor"
)

// Stack is the abstract operand stack. The zero value is an empty stack.
type Stack struct {
	slots []descriptor.Kind
}

// Len returns the current depth.
func (s *Stack) Len() int {
	return len(s.slots)
}

// Push pushes kinds in order; the last one ends up on top.
func (s *Stack) Push(kinds ...descriptor.Kind) {
	s.slots = append(s.slots, kinds...)
}

// Drop removes n entries from the top. It panics if n exceeds the depth;
// rules check with Match first.
func (s *Stack) Drop(n int) {
	s.slots = s.slots[:len(s.slots)-n]
}

// Peek returns the entry i positions below the top (0 is the top).
func (s *Stack) Peek(i int) (descriptor.Kind, bool) {
	if i < 0 || i >= len(s.slots) {
		return 0, false
	}
	return s.slots[len(s.slots)-1-i], true
}

// Match reports whether the stack holds at least len(needs) entries and the
// entry at each position, counted from the top, equals needs at that index.
func (s *Stack) Match(needs ...descriptor.Kind) bool {
	if len(s.slots) < len(needs) {
		return false
	}
	for i, want := range needs {
		if got, _ := s.Peek(i); got != want {
			return false
		}
	}
	return true
}

// Clear empties the stack.
func (s *Stack) Clear() {
	s.slots = s.slots[:0]
}

// Kinds returns a copy of the stack, bottom first.
func (s *Stack) Kinds() []descriptor.Kind {
	out := make([]descriptor.Kind, len(s.slots))
	copy(out, s.slots)
	return out
}

func (s *Stack) restore(kinds []descriptor.Kind) {
	s.slots = append(s.slots[:0], kinds...)
}

// String renders the stack bottom first, e.g. "[A I]".
func (s *Stack) String() string {
	return FormatKinds(s.slots)
}

// FormatKinds renders kinds as "[A I ...]".
func FormatKinds(kinds []descriptor.Kind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = k.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
