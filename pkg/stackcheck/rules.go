package stackcheck

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chazu/stackcheck/pkg/descriptor"
	"github.com/chazu/stackcheck/pkg/jasmin"
)

// Rule describes the stack discipline of one instruction.
type Rule struct {
	Name    string            // mnemonic, or family prefix followed by '*'
	Needs   []descriptor.Kind // required kinds, top of stack first
	Pushes  []descriptor.Kind // pushed in order after Needs are popped
	Message string            // reported when Needs is not satisfied

	// Eval replaces the Needs/Pushes check for instructions whose effect
	// depends on their operands or on the values present. It must return an
	// error without touching the stack when its precondition fails.
	Eval func(st *Stack, in jasmin.Instruction) error
	Doc  string // summary for Eval rules
}

func (r Rule) apply(st *Stack, in jasmin.Instruction) error {
	if r.Eval != nil {
		return r.Eval(st, in)
	}
	if !st.Match(r.Needs...) {
		return &Violation{Message: r.Message}
	}
	st.Drop(len(r.Needs))
	st.Push(r.Pushes...)
	return nil
}

// Summary describes the rule's effect in one line.
func (r Rule) Summary() string {
	if r.Doc != "" {
		return r.Doc
	}
	var parts []string
	if len(r.Needs) > 0 {
		parts = append(parts, "pops "+kindNames(r.Needs)+" (top first)")
	}
	if len(r.Pushes) > 0 {
		parts = append(parts, "pushes "+kindNames(r.Pushes))
	}
	if len(parts) == 0 {
		return "no stack effect"
	}
	return strings.Join(parts, ", ")
}

func kindNames(kinds []descriptor.Kind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.Name()
	}
	return strings.Join(names, " ")
}

// family is a set of mnemonics sharing a prefix, such as if_icmpeq,
// if_icmpne, ... The rule is built per mnemonic so messages can name it.
type family struct {
	prefix string
	build  func(op string) Rule
}

// RuleTable maps mnemonics to rules. Exact names are consulted before
// prefix families. A RuleTable is safe for concurrent lookups.
type RuleTable struct {
	exact    map[string]Rule
	families []family
}

// Lookup returns the rule for a mnemonic. Mnemonics without a rule (labels,
// goto, nop, and everything the table does not model) are no-ops.
func (t *RuleTable) Lookup(op string) (Rule, bool) {
	if r, ok := t.exact[op]; ok {
		return r, true
	}
	for _, f := range t.families {
		if strings.HasPrefix(op, f.prefix) {
			return f.build(op), true
		}
	}
	return Rule{}, false
}

// Set installs or replaces the rule for an exact mnemonic.
func (t *RuleTable) Set(op string, r Rule) {
	if r.Name == "" {
		r.Name = op
	}
	t.exact[op] = r
}

// Clone returns an independent copy of the table.
func (t *RuleTable) Clone() *RuleTable {
	c := &RuleTable{
		exact:    make(map[string]Rule, len(t.exact)),
		families: append([]family(nil), t.families...),
	}
	for op, r := range t.exact {
		c.exact[op] = r
	}
	return c
}

// Mnemonics lists the exact mnemonics and family patterns ("if_icmp*") the
// table knows, sorted.
func (t *RuleTable) Mnemonics() []string {
	names := make([]string, 0, len(t.exact)+len(t.families))
	for op := range t.exact {
		names = append(names, op)
	}
	for _, f := range t.families {
		names = append(names, f.prefix+"*")
	}
	sort.Strings(names)
	return names
}

// Len returns the number of exact mnemonics plus families.
func (t *RuleTable) Len() int {
	return len(t.exact) + len(t.families)
}

func (t *RuleTable) setAll(ops []string, r Rule) {
	for _, op := range ops {
		r.Name = op
		t.exact[op] = r
	}
}

var defaultRules = newDefaultRules()

// DefaultRules returns a copy of the built-in rule table.
func DefaultRules() *RuleTable {
	return defaultRules.Clone()
}

func newDefaultRules() *RuleTable {
	const (
		I = descriptor.Integer
		A = descriptor.Reference
	)
	t := &RuleTable{exact: make(map[string]Rule)}

	// Returns and stores
	t.Set("return", Rule{Doc: "clears the stack", Eval: evalReturn})
	t.Set("ireturn", Rule{Needs: []descriptor.Kind{I}, Message: "ireturn needs int on stack"})
	t.setAll([]string{"istore", "istore_0", "istore_1", "istore_2", "istore_3"},
		Rule{Needs: []descriptor.Kind{I}, Message: "istore needs int"})
	t.setAll([]string{"astore", "astore_0", "astore_1", "astore_2", "astore_3"},
		Rule{Needs: []descriptor.Kind{A}, Message: "astore needs ref"})

	// Constants and loads
	t.setAll([]string{
		"iconst_m1", "iconst_0", "iconst_1", "iconst_2", "iconst_3", "iconst_4", "iconst_5",
		"bipush", "sipush",
		"iload", "iload_0", "iload_1", "iload_2", "iload_3",
	}, Rule{Pushes: []descriptor.Kind{I}})
	t.setAll([]string{"aload", "aload_0", "aload_1", "aload_2", "aload_3", "aconst_null"},
		Rule{Pushes: []descriptor.Kind{A}})
	t.Set("ldc", Rule{Doc: "pushes ref for a string literal, int otherwise", Eval: evalLdc})

	// Fields
	t.Set("getstatic", Rule{Pushes: []descriptor.Kind{A}})
	t.Set("getfield", Rule{Needs: []descriptor.Kind{A}, Pushes: []descriptor.Kind{A}, Message: "getfield needs objectref"})
	t.Set("putfield", Rule{Needs: []descriptor.Kind{A, A}, Message: "putfield needs value + objectref"})

	// Arithmetic and branches
	for _, op := range []string{"iadd", "isub"} {
		t.Set(op, Rule{Needs: []descriptor.Kind{I, I}, Pushes: []descriptor.Kind{I}, Message: op + " needs 2 ints"})
	}
	for _, op := range []string{"ifeq", "ifne", "iflt", "ifge", "ifgt", "ifle"} {
		t.Set(op, Rule{Needs: []descriptor.Kind{I}, Message: op + " needs int"})
	}

	// Calls
	t.Set("invokestatic", Rule{Doc: "pops the descriptor's arguments, pushes its return value", Eval: evalInvoke(false)})
	t.Set("invokevirtual", Rule{Doc: "pops the descriptor's arguments and objectref, pushes its return value", Eval: evalInvoke(true)})

	// Arrays and casts
	t.Set("iaload", Rule{Needs: []descriptor.Kind{I, A}, Pushes: []descriptor.Kind{I}, Message: "iaload needs arrayref+int (top:int)"})
	t.Set("aaload", Rule{Needs: []descriptor.Kind{I, A}, Pushes: []descriptor.Kind{A}, Message: "aaload needs arrayref+int (top:int)"})
	t.Set("iastore", Rule{Needs: []descriptor.Kind{I, I, A}, Message: "iastore needs arrayref,int,int (top:int)"})
	t.Set("aastore", Rule{Needs: []descriptor.Kind{A, I, A}, Message: "aastore needs arrayref,int,ref (top:ref)"})
	t.Set("checkcast", Rule{Doc: "requires ref on top, leaves it in place", Eval: evalCheckcast})

	// Stack manipulation
	t.Set("dup", Rule{Doc: "duplicates the top value", Eval: evalDup})
	t.Set("pop", Rule{Doc: "discards the top value", Eval: evalPop})

	t.families = []family{
		{prefix: "if_icmp", build: func(op string) Rule {
			return Rule{Name: op, Needs: []descriptor.Kind{I, I}, Message: op + " needs 2 ints"}
		}},
		{prefix: "if_acmp", build: func(op string) Rule {
			return Rule{Name: op, Needs: []descriptor.Kind{A, A}, Message: op + " needs 2 refs"}
		}},
	}
	return t
}

func evalReturn(st *Stack, _ jasmin.Instruction) error {
	st.Clear()
	return nil
}

func evalLdc(st *Stack, in jasmin.Instruction) error {
	if strings.Contains(in.Raw, `"`) {
		st.Push(descriptor.Reference)
	} else {
		st.Push(descriptor.Integer)
	}
	return nil
}

func evalCheckcast(st *Stack, _ jasmin.Instruction) error {
	if !st.Match(descriptor.Reference) {
		return &Violation{Message: "checkcast needs ref"}
	}
	return nil
}

func evalDup(st *Stack, _ jasmin.Instruction) error {
	top, ok := st.Peek(0)
	if !ok {
		return &Violation{Message: "dup needs value"}
	}
	st.Push(top)
	return nil
}

func evalPop(st *Stack, _ jasmin.Instruction) error {
	if st.Len() == 0 {
		return &Violation{Message: "pop needs value"}
	}
	st.Drop(1)
	return nil
}

// evalInvoke checks a call against the signature embedded in its text.
// Arguments are checked from the top down (last argument first), then the
// receiver for virtual calls. Nothing is popped until every check passes.
func evalInvoke(virtual bool) func(*Stack, jasmin.Instruction) error {
	return func(st *Stack, in jasmin.Instruction) error {
		args, ret, ok := descriptor.Find(in.Raw)
		if !ok {
			return nil
		}
		d, err := descriptor.Parse(args, ret)
		if err != nil {
			return err
		}

		n := len(d.Args)
		for i := 0; i < n; i++ {
			want := d.Args[n-1-i]
			if got, ok := st.Peek(i); !ok || got != want {
				return &Violation{Message: fmt.Sprintf("%s arg expects %s", in.Mnemonic, want)}
			}
		}
		if virtual {
			if got, ok := st.Peek(n); !ok || got != descriptor.Reference {
				return &Violation{Message: "invokevirtual needs objectref"}
			}
			n++
		}

		st.Drop(n)
		if !d.Void {
			st.Push(d.Return)
		}
		return nil
	}
}
