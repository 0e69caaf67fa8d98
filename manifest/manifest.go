// Package manifest handles stackcheck.toml project configuration.
package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "stackcheck.toml"

// Manifest represents a stackcheck.toml configuration.
type Manifest struct {
	Output   Output            `toml:"output" json:"output"`
	Analysis Analysis          `toml:"analysis" json:"analysis"`
	Methods  map[string]string `toml:"methods" json:"methods"`
	Baseline Baseline          `toml:"baseline" json:"baseline"`

	// Dir is the directory containing the stackcheck.toml file (set at load time).
	Dir string `toml:"-" json:"-"`
}

// Output configures report rendering.
type Output struct {
	Format  string `toml:"format" json:"format"`
	Color   string `toml:"color" json:"color"`
	Listing bool   `toml:"listing" json:"listing"`
	Summary bool   `toml:"summary" json:"summary"`
}

// Analysis configures the simulator.
type Analysis struct {
	Ignore  []string `toml:"ignore" json:"ignore"`
	Workers int      `toml:"workers" json:"workers"`
}

// Baseline configures diagnostic suppression.
type Baseline struct {
	Path string `toml:"path" json:"path"`
}

// Default returns the configuration used when no stackcheck.toml exists.
func Default() *Manifest {
	return &Manifest{
		Output: Output{
			Format:  "text",
			Color:   "auto",
			Listing: true,
		},
		Analysis: Analysis{Ignore: []string{}},
		Methods:  map[string]string{},
	}
}

// Load parses a stackcheck.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses the configuration file at path. Relative paths inside it
// resolve against the file's directory.
func LoadFile(path string) (*Manifest, error) {
	dir := filepath.Dir(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a stackcheck.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Save writes the manifest as stackcheck.toml in dir, refusing to replace an
// existing file.
func (m *Manifest) Save(dir string) error {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// MethodDescriptor returns the default descriptor configured for a method name.
func (m *Manifest) MethodDescriptor(name string) (string, bool) {
	desc, ok := m.Methods[name]
	return desc, ok && desc != ""
}

// BaselinePath returns the baseline database path, resolved against the
// manifest directory. Empty when no baseline is configured.
func (m *Manifest) BaselinePath() string {
	p := m.Baseline.Path
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}
