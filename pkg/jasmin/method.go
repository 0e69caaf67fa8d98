package jasmin

import (
	"errors"
	"strconv"
	"strings"
)

// ErrMethodNotFound is returned by Locate when no declaration matches.
var ErrMethodNotFound = errors.New("method not found")

const (
	methodMarker    = ".method"
	endMethodMarker = ".end method"
)

// MethodBody is the raw text of one method, declaration line first.
type MethodBody struct {
	Name       string
	Descriptor string   // "(args)ret" as declared
	StartLine  int      // 1-based source line of the .method declaration
	Lines      []string // declaration through the line before .end method
}

// Signature returns name plus descriptor, e.g. "main([Ljava/lang/String;)V".
func (m MethodBody) Signature() string {
	return m.Name + m.Descriptor
}

// StackLimit returns the value of the method's ".limit stack" directive.
func (m MethodBody) StackLimit() (int, bool) {
	for _, raw := range m.Lines {
		fields := strings.Fields(raw)
		if len(fields) == 3 && fields[0] == ".limit" && fields[1] == "stack" {
			n, err := strconv.Atoi(fields[2])
			if err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// parseDeclaration extracts the method name and descriptor from a
// ".method <flags...> name(args)ret" line.
func parseDeclaration(line string) (name, desc string, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != methodMarker {
		return "", "", false
	}
	last := fields[len(fields)-1]
	open := strings.IndexByte(last, '(')
	if open <= 0 {
		return "", "", false
	}
	return last[:open], last[open:], true
}

// Methods splits src into its method blocks, in source order.
//
// A block runs from its declaration up to, but not including, the matching
// ".end method". A block with no end marker stops at the next declaration or
// at end of input.
func Methods(src string) []MethodBody {
	lines := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")

	var methods []MethodBody
	var cur *MethodBody
	flush := func() {
		if cur != nil {
			methods = append(methods, *cur)
			cur = nil
		}
	}

	for i, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		if strings.HasPrefix(trimmed, endMethodMarker) {
			flush()
			continue
		}
		if name, desc, ok := parseDeclaration(trimmed); ok {
			flush()
			cur = &MethodBody{
				Name:       name,
				Descriptor: desc,
				StartLine:  i + 1,
				Lines:      []string{trimmed},
			}
			continue
		}
		if cur != nil {
			cur.Lines = append(cur.Lines, raw)
		}
	}
	flush()
	return methods
}

// Locate returns the first method called name. If desc is non-empty the
// declared descriptor must equal it exactly; the leading '(' may be omitted.
func Locate(src, name, desc string) (MethodBody, error) {
	if desc != "" && !strings.HasPrefix(desc, "(") {
		desc = "(" + desc
	}
	for _, m := range Methods(src) {
		if m.Name != name {
			continue
		}
		if desc == "" || m.Descriptor == desc {
			return m, nil
		}
	}
	return MethodBody{}, ErrMethodNotFound
}
