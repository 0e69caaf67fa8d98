package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/stackcheck/pkg/jasmin"
	"github.com/chazu/stackcheck/pkg/stackcheck"
)

// Format is an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// ParseFormat validates an output format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatCBOR:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want text, json or cbor)", s)
}

// Finding is the machine-readable form of a stackcheck.Diagnostic.
type Finding struct {
	Line        int    `json:"line" cbor:"1,keyasint"`        // index within the method
	SourceLine  int    `json:"source_line" cbor:"2,keyasint"` // line in the input file
	Instruction string `json:"instruction" cbor:"3,keyasint"`
	Message     string `json:"message" cbor:"4,keyasint"`
}

// MethodReport is the machine-readable result for one method.
type MethodReport struct {
	File        string    `json:"file,omitempty" cbor:"1,keyasint,omitempty"`
	Method      string    `json:"method" cbor:"2,keyasint"`
	StartLine   int       `json:"start_line" cbor:"3,keyasint"`
	Diagnostics []Finding `json:"diagnostics" cbor:"4,keyasint"`
	FinalStack  string    `json:"final_stack" cbor:"5,keyasint"`
	MaxDepth    int       `json:"max_depth" cbor:"6,keyasint"`
	StackLimit  int       `json:"stack_limit,omitempty" cbor:"7,keyasint,omitempty"`
}

// NewMethodReport builds the record for one analyzed method.
func NewMethodReport(file string, body jasmin.MethodBody, res stackcheck.Result) MethodReport {
	r := MethodReport{
		File:        file,
		Method:      body.Signature(),
		StartLine:   body.StartLine,
		Diagnostics: make([]Finding, 0, len(res.Diagnostics)),
		FinalStack:  stackcheck.FormatKinds(res.Stack),
		MaxDepth:    res.MaxDepth,
	}
	if limit, ok := body.StackLimit(); ok {
		r.StackLimit = limit
	}
	for _, d := range res.Diagnostics {
		f := Finding{Line: d.Line, Instruction: d.Instruction, Message: d.Message}
		if body.StartLine > 0 {
			f.SourceLine = body.StartLine + d.Line - 1
		}
		r.Diagnostics = append(r.Diagnostics, f)
	}
	return r
}

// WriteJSON writes reports as an indented JSON array.
func WriteJSON(w io.Writer, reports []MethodReport) error {
	if reports == nil {
		reports = []MethodReport{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}

// cborEncMode uses canonical encoding so identical results encode to
// identical bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("report: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalCBOR serializes reports to CBOR bytes.
func MarshalCBOR(reports []MethodReport) ([]byte, error) {
	if reports == nil {
		reports = []MethodReport{}
	}
	return cborEncMode.Marshal(reports)
}

// UnmarshalCBOR deserializes reports from CBOR bytes.
func UnmarshalCBOR(data []byte) ([]MethodReport, error) {
	var reports []MethodReport
	if err := cbor.Unmarshal(data, &reports); err != nil {
		return nil, fmt.Errorf("report: unmarshal cbor: %w", err)
	}
	return reports, nil
}

// WriteCBOR writes reports as a single CBOR array.
func WriteCBOR(w io.Writer, reports []MethodReport) error {
	data, err := MarshalCBOR(reports)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
