// Package report renders stack-check results for people (numbered listings)
// and for tools (JSON and CBOR records).
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/chazu/stackcheck/pkg/jasmin"
	"github.com/chazu/stackcheck/pkg/stackcheck"
)

// TextOptions controls WriteText.
type TextOptions struct {
	Header  bool // print "; === signature ===" before the listing
	Listing bool // print the numbered method lines
	Summary bool // print depth and final stack after the problems block
	Color   bool // ANSI colors
}

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
	ansiDim   = "\x1b[2m"
	ansiBold  = "\x1b[1m"
)

func paint(on bool, code, s string) string {
	if !on {
		return s
	}
	return code + s + ansiReset
}

// WriteText writes the classic report: the method's lines numbered from 1,
// a blank line, "=== Problems ===", then one "LINENO: message :: raw" line
// per diagnostic or "(none)".
func WriteText(w io.Writer, body jasmin.MethodBody, res stackcheck.Result, opts TextOptions) error {
	var sb strings.Builder

	if opts.Header {
		sb.WriteString(paint(opts.Color, ansiBold, fmt.Sprintf("; === %s ===", body.Signature())))
		sb.WriteString("\n")
	}

	if opts.Listing {
		for i, line := range body.Lines {
			fmt.Fprintf(&sb, "%s: %s\n", paint(opts.Color, ansiDim, fmt.Sprintf("%04d", i+1)), line)
		}
	}

	sb.WriteString("\n=== Problems ===\n")
	if len(res.Diagnostics) == 0 {
		sb.WriteString(paint(opts.Color, ansiGreen, "(none)"))
		sb.WriteString("\n")
	}
	for _, d := range res.Diagnostics {
		fmt.Fprintf(&sb, "%04d: %s :: %s\n", d.Line, paint(opts.Color, ansiRed, d.Message), d.Instruction)
	}

	if opts.Summary {
		sb.WriteString("\n=== Stack ===\n")
		fmt.Fprintf(&sb, "final: %s\n", stackcheck.FormatKinds(res.Stack))
		if limit, ok := body.StackLimit(); ok {
			fmt.Fprintf(&sb, "max depth: %d (declared %d)", res.MaxDepth, limit)
			if res.MaxDepth > limit {
				sb.WriteString(paint(opts.Color, ansiRed, " exceeds .limit stack"))
			}
			sb.WriteString("\n")
		} else {
			fmt.Fprintf(&sb, "max depth: %d\n", res.MaxDepth)
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
