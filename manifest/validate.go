package manifest

import (
	_ "embed"
	"fmt"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaSource string

// ValidationError reports a manifest that does not satisfy the schema.
type ValidationError struct {
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Path, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate checks the manifest against the embedded CUE schema.
func (m *Manifest) Validate() error {
	if m.Analysis.Ignore == nil {
		m.Analysis.Ignore = []string{}
	}
	if m.Methods == nil {
		m.Methods = map[string]string{}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("manifest: compiling schema: %w", err)
	}

	v := ctx.Encode(m)
	if err := v.Err(); err != nil {
		return &ValidationError{Path: m.path(), Err: err}
	}
	if err := schema.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Path: m.path(), Err: err}
	}
	return nil
}

func (m *Manifest) path() string {
	if m.Dir == "" {
		return FileName
	}
	return filepath.Join(m.Dir, FileName)
}
