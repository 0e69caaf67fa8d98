// stackcheck checks the operand-stack discipline of methods in Jasmin
// assembly files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/stackcheck/manifest"
	"github.com/chazu/stackcheck/pkg/jasmin"
	"github.com/chazu/stackcheck/pkg/report"
	"github.com/chazu/stackcheck/pkg/stackcheck"
	"github.com/chazu/stackcheck/server"
	"github.com/chazu/stackcheck/store"

	_ "github.com/tliron/commonlog/simple"
)

const (
	exitOK       = 0
	exitUsage    = 1
	exitNotFound = 2
)

const usage = `Usage:
  stackcheck [options] <file.j> <method> [descriptor]
  stackcheck [options] -all <file.j>
  stackcheck -lsp
  stackcheck -init [dir]

Examples:
  stackcheck out.j printAutomata '(Ljava/util/HashMap;)V'
  stackcheck -all -format json out.j
  stackcheck -baseline .stackcheck/baseline.db -update-baseline -all out.j

Options:
`

var log = commonlog.GetLogger("stackcheck.cli")

type options struct {
	verbose        bool
	verbosity      int
	all            bool
	format         string
	color          string
	config         string
	baseline       string
	updateBaseline bool
	ignore         string
	workers        int
	noListing      bool
	summary        bool
	lsp            bool
	init           bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := flag.NewFlagSet("stackcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&opts.verbose, "v", false, "Verbose output (same as -verbosity 1)")
	fs.IntVar(&opts.verbosity, "verbosity", -2, "Log verbosity: -4 silent, -2 errors, 0 notices, 1 info, 2 debug")
	fs.BoolVar(&opts.all, "all", false, "Analyze every method in the file")
	fs.StringVar(&opts.format, "format", "", "Output format: text, json or cbor (default from config, else text)")
	fs.StringVar(&opts.color, "color", "", "Color output: auto, always or never (default from config, else auto)")
	fs.StringVar(&opts.config, "config", "", "Path to a stackcheck.toml (default: search upward from the input file)")
	fs.StringVar(&opts.baseline, "baseline", "", "Baseline database; known findings are not reported")
	fs.BoolVar(&opts.updateBaseline, "update-baseline", false, "Record the current findings into the baseline")
	fs.StringVar(&opts.ignore, "ignore", "", "Comma-separated mnemonics to treat as no-ops")
	fs.IntVar(&opts.workers, "workers", 0, "Methods analyzed concurrently with -all (default from config, else CPU count)")
	fs.BoolVar(&opts.noListing, "no-listing", false, "Omit the numbered method listing")
	fs.BoolVar(&opts.summary, "summary", false, "Print final stack and maximum depth")
	fs.BoolVar(&opts.lsp, "lsp", false, "Start a language server on stdio")
	fs.BoolVar(&opts.init, "init", false, "Write a default stackcheck.toml and exit")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	configureLogging(opts)

	switch {
	case opts.init:
		return runInit(fs.Args(), stdout, stderr)
	case opts.lsp:
		return runLSP(opts, stderr)
	}

	positional := fs.Args()
	if (opts.all && len(positional) != 1) || (!opts.all && (len(positional) < 2 || len(positional) > 3)) {
		fs.Usage()
		return exitUsage
	}
	path := positional[0]

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	cfg, err := loadConfig(opts.config, filepath.Dir(path))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	if err := applyFlags(cfg, opts); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	bodies, err := selectMethods(string(data), positional[1:], opts.all, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitNotFound
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	workers := cfg.Analysis.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	results, err := stackcheck.AnalyzeAll(ctx, bodies, workers, stackcheck.WithIgnored(cfg.Analysis.Ignore...))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	if dbPath := cfg.BaselinePath(); dbPath != "" {
		if err := applyBaseline(dbPath, baselineFile(path, cfg), results, opts.updateBaseline); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitUsage
		}
	} else if opts.updateBaseline {
		fmt.Fprintln(stderr, "Error: -update-baseline needs -baseline or [baseline] path")
		return exitUsage
	}

	if err := writeReports(stdout, path, cfg, opts.all, bodies, results); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	return exitOK
}

func configureLogging(opts options) {
	verbosity := opts.verbosity
	if opts.verbose && verbosity < 1 {
		verbosity = 1
	}
	commonlog.Configure(verbosity, nil)
}

// loadConfig reads an explicit config file, or searches upward from dir.
// With no config found the defaults apply.
func loadConfig(explicit, dir string) (*manifest.Manifest, error) {
	if explicit != "" {
		return manifest.LoadFile(explicit)
	}
	cfg, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return manifest.Default(), nil
	}
	log.Debugf("using config %s", filepath.Join(cfg.Dir, manifest.FileName))
	return cfg, nil
}

// applyFlags overrides config values with the ones given on the command line.
func applyFlags(cfg *manifest.Manifest, opts options) error {
	if opts.format != "" {
		f, err := report.ParseFormat(opts.format)
		if err != nil {
			return err
		}
		cfg.Output.Format = string(f)
	}
	if opts.color != "" {
		c, err := report.ParseColorMode(opts.color)
		if err != nil {
			return err
		}
		cfg.Output.Color = string(c)
	}
	if opts.noListing {
		cfg.Output.Listing = false
	}
	if opts.summary {
		cfg.Output.Summary = true
	}
	if opts.baseline != "" {
		abs, err := filepath.Abs(opts.baseline)
		if err != nil {
			return err
		}
		cfg.Baseline.Path = abs
	}
	if opts.workers < 0 {
		return fmt.Errorf("-workers must not be negative")
	}
	if opts.workers > 0 {
		cfg.Analysis.Workers = opts.workers
	}
	for _, op := range strings.Split(opts.ignore, ",") {
		if op = strings.TrimSpace(op); op != "" {
			cfg.Analysis.Ignore = append(cfg.Analysis.Ignore, op)
		}
	}
	return nil
}

// selectMethods returns the bodies to analyze: every method with -all,
// otherwise the one named by args (method name and optional descriptor).
func selectMethods(src string, args []string, all bool, cfg *manifest.Manifest) ([]jasmin.MethodBody, error) {
	if all {
		bodies := jasmin.Methods(src)
		if len(bodies) == 0 {
			return nil, fmt.Errorf("no methods found")
		}
		return bodies, nil
	}

	name := args[0]
	var desc string
	if len(args) > 1 {
		desc = args[1]
	} else if d, ok := cfg.MethodDescriptor(name); ok {
		desc = d
	}

	body, err := jasmin.Locate(src, name, desc)
	if errors.Is(err, jasmin.ErrMethodNotFound) {
		return nil, fmt.Errorf("method not found: %s%s", name, desc)
	}
	if err != nil {
		return nil, err
	}
	return []jasmin.MethodBody{body}, nil
}

// applyBaseline records results into the baseline, or removes the findings
// it already holds from results.
func applyBaseline(dbPath, file string, results []stackcheck.Result, update bool) error {
	b, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer b.Close()

	for i := range results {
		res := &results[i]
		if update {
			if err := b.Record(file, res.Method, res.Diagnostics); err != nil {
				return err
			}
			continue
		}
		fresh, err := b.Filter(file, res.Method, res.Diagnostics)
		if err != nil {
			return err
		}
		res.Diagnostics = fresh
	}
	return nil
}

// baselineFile names path the same way regardless of the working directory:
// relative to the config directory when it lies inside it, absolute otherwise.
func baselineFile(path string, cfg *manifest.Manifest) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	if cfg.Dir != "" {
		if rel, err := filepath.Rel(cfg.Dir, abs); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(abs)
}

func writeReports(w io.Writer, path string, cfg *manifest.Manifest, all bool, bodies []jasmin.MethodBody, results []stackcheck.Result) error {
	format, err := report.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	switch format {
	case report.FormatJSON, report.FormatCBOR:
		reports := make([]report.MethodReport, len(bodies))
		for i := range bodies {
			reports[i] = report.NewMethodReport(path, bodies[i], results[i])
		}
		if format == report.FormatJSON {
			return report.WriteJSON(w, reports)
		}
		return report.WriteCBOR(w, reports)
	}

	mode, err := report.ParseColorMode(cfg.Output.Color)
	if err != nil {
		return err
	}
	opts := report.TextOptions{
		Header:  all,
		Listing: cfg.Output.Listing,
		Summary: cfg.Output.Summary,
		Color:   colorEnabled(w, mode),
	}
	for i := range bodies {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := report.WriteText(w, bodies[i], results[i], opts); err != nil {
			return err
		}
	}
	return nil
}

func colorEnabled(w io.Writer, mode report.ColorMode) bool {
	if f, ok := w.(*os.File); ok {
		return report.ColorEnabled(f, mode)
	}
	return mode == report.ColorAlways
}

func runInit(args []string, stdout, stderr io.Writer) int {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	if err := manifest.Default().Save(dir); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	fmt.Fprintf(stdout, "Wrote %s\n", filepath.Join(dir, manifest.FileName))
	return exitOK
}

func runLSP(opts options, stderr io.Writer) int {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	cfg, err := loadConfig(opts.config, cwd)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	if err := applyFlags(cfg, opts); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	srv := server.NewLSP(stackcheck.DefaultRules(), cfg.Analysis.Ignore)
	if err := srv.Run(); err != nil {
		fmt.Fprintf(stderr, "LSP error: %v\n", err)
		return exitUsage
	}
	return exitOK
}
