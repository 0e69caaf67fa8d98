// Package stackcheck simulates the operand stack of a JVM method written in
// Jasmin assembler text and reports instructions whose stack preconditions
// cannot hold.
//
// The simulation is coarse:
//
//   - Values are tracked only as descriptor.Integer or descriptor.Reference.
//     float, long and double values are folded into Reference and occupy a
//     single slot.
//
//   - Instructions are visited once, in source order. Labels, goto and branch
//     targets have no effect, so a method whose stack shape differs between
//     paths can produce findings on one path and silence on another. An empty
//     diagnostic list is not a proof that the method verifies.
//
//   - Call instructions whose text carries no "(args)ret" signature are
//     skipped without a finding.
//
// # Architecture Overview
//
//   - Stack: the abstract operand stack, one per analysis.
//
//   - Rule / RuleTable: the stack discipline of each instruction family. Most
//     rules are declarative (kinds required from the top of the stack, kinds
//     pushed on success). Instructions whose effect depends on their operands
//     (ldc, invokestatic, invokevirtual, dup, pop, return) carry an Eval func.
//
//   - Simulator: folds a method body through the rule table. A rule that
//     fails leaves the stack exactly as it was and yields one Diagnostic; the
//     pass always continues with the next line.
//
// # Failure Handling
//
// Rule application returns an error value instead of aborting:
//
//   - *Violation: underflow or kind mismatch, reported with the rule's message
//   - *descriptor.Error: malformed call signature
//   - anything else, including a recovered panic: reported as
//     "internal simulation error" and logged
//
// Each Simulator owns its stack and diagnostics, so distinct methods can be
// analyzed in parallel; AnalyzeAll does exactly that.
package stackcheck
