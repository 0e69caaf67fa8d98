package stackcheck

import (
	"context"
	"errors"
	"fmt"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/stackcheck/pkg/descriptor"
	"github.com/chazu/stackcheck/pkg/jasmin"
)

var log = commonlog.GetLogger("stackcheck.simulator")

// InternalErrorMessage is the diagnostic text for a rule that faulted.
const InternalErrorMessage = "internal simulation error"

// Violation is an unmet stack precondition: underflow or a kind mismatch.
type Violation struct {
	Message string
}

func (v *Violation) Error() string {
	return v.Message
}

// fault wraps a panic recovered while applying a rule.
type fault struct {
	mnemonic string
	cause    any
}

func (f *fault) Error() string {
	return fmt.Sprintf("%s: %v", f.mnemonic, f.cause)
}

// Diagnostic is one stack-discipline finding.
type Diagnostic struct {
	Line        int    // 1-based index into the method's lines
	Instruction string // raw source text of the line
	Message     string
}

// Result is the outcome of analyzing one method.
type Result struct {
	Method      string
	Diagnostics []Diagnostic
	Stack       []descriptor.Kind // final abstract stack, bottom first
	MaxDepth    int
}

// Simulator runs the abstract interpretation. A Simulator may be reused for
// several methods, one at a time; it is not safe for concurrent use.
type Simulator struct {
	rules    *RuleTable
	ignored  map[string]bool
	stack    Stack
	diags    []Diagnostic
	maxDepth int
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithRules replaces the built-in rule table.
func WithRules(t *RuleTable) Option {
	return func(s *Simulator) {
		s.rules = t
	}
}

// WithIgnored turns the named mnemonics into no-ops.
func WithIgnored(mnemonics ...string) Option {
	return func(s *Simulator) {
		for _, m := range mnemonics {
			s.ignored[m] = true
		}
	}
}

// New creates a Simulator with an empty stack.
func New(opts ...Option) *Simulator {
	s := &Simulator{
		rules:   defaultRules,
		ignored: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze runs a fresh simulation over body with a new Simulator.
func Analyze(body jasmin.MethodBody, opts ...Option) Result {
	return New(opts...).Analyze(body)
}

// Analyze resets the simulator and folds every line of body through the
// rule table.
func (s *Simulator) Analyze(body jasmin.MethodBody) Result {
	s.Reset()
	for i, raw := range body.Lines {
		s.Step(i+1, raw)
	}
	return Result{
		Method:      body.Signature(),
		Diagnostics: s.Diagnostics(),
		Stack:       s.stack.Kinds(),
		MaxDepth:    s.maxDepth,
	}
}

// Reset empties the stack and forgets all diagnostics.
func (s *Simulator) Reset() {
	s.stack.Clear()
	s.diags = nil
	s.maxDepth = 0
}

// Step applies a single source line. line is the index reported in any
// resulting Diagnostic.
func (s *Simulator) Step(line int, raw string) {
	in, ok := jasmin.ParseInstruction(raw)
	if !ok || s.ignored[in.Mnemonic] {
		return
	}
	rule, ok := s.rules.Lookup(in.Mnemonic)
	if !ok {
		return
	}

	if err := s.apply(rule, in); err != nil {
		s.diags = append(s.diags, Diagnostic{
			Line:        line,
			Instruction: raw,
			Message:     s.describe(line, in, err),
		})
		return
	}
	if d := s.stack.Len(); d > s.maxDepth {
		s.maxDepth = d
	}
}

// apply runs one rule. On any failure, panics included, the stack is put
// back the way it was.
func (s *Simulator) apply(rule Rule, in jasmin.Instruction) (err error) {
	saved := s.stack.Kinds()
	defer func() {
		if r := recover(); r != nil {
			err = &fault{mnemonic: in.Mnemonic, cause: r}
		}
		if err != nil {
			s.stack.restore(saved)
		}
	}()
	return rule.apply(&s.stack, in)
}

func (s *Simulator) describe(line int, in jasmin.Instruction, err error) string {
	var violation *Violation
	var malformed *descriptor.Error
	switch {
	case errors.As(err, &violation):
		return violation.Message
	case errors.As(err, &malformed):
		return fmt.Sprintf("%s has malformed descriptor: %s", in.Mnemonic, malformed.Reason)
	default:
		log.Errorf("line %d: %v", line, err)
		return InternalErrorMessage
	}
}

// Stack returns a copy of the current abstract stack, bottom first.
func (s *Simulator) Stack() []descriptor.Kind {
	return s.stack.Kinds()
}

// Diagnostics returns a copy of the findings so far.
func (s *Simulator) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), s.diags...)
}

// AnalyzeAll analyzes each body on its own Simulator, at most workers at a
// time (unbounded if workers <= 0). Results are in the order of bodies.
func AnalyzeAll(ctx context.Context, bodies []jasmin.MethodBody, workers int, opts ...Option) ([]Result, error) {
	results := make([]Result, len(bodies))

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, body := range bodies {
		i, body := i, body
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = Analyze(body, opts...)
			log.Debugf("analyzed %s: %d diagnostics", body.Signature(), len(results[i].Diagnostics))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
