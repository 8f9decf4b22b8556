package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/svdoc/internal/config"
	"github.com/robert-at-pretension-io/svdoc/internal/doc"
	"github.com/robert-at-pretension-io/svdoc/internal/indexer"
	"github.com/robert-at-pretension-io/svdoc/internal/parser"
	"github.com/robert-at-pretension-io/svdoc/internal/printer"
)

// errReported marks failures already printed to the user.
var errReported = errors.New("reported")

type globalOptions struct {
	configPath string
	verbose    bool
	parser     string
	singleLine bool
	clearCache bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	build := &buildOptions{}

	root := &cobra.Command{
		Use:   "svdoc [path]",
		Short: "Generate documentation for SystemVerilog sources",
		Long: `svdoc extracts the // comments stacked above SystemVerilog declarations
and renders them as an HTML site or JSON.

Without a subcommand the project is built in the configured output format.`,
		Args:          cobra.MaximumNArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, opts, build, rootArg(args))
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "configuration file (default: search svdoc.json, svdoc.yaml)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose logging")
	pf.StringVar(&opts.parser, "parser", "", "parser backend: tree-sitter or builtin (overrides the config)")
	pf.BoolVar(&opts.singleLine, "single-line-errors", false, "print each error on one line")
	pf.BoolVar(&opts.clearCache, "clear-cache", false, "remove the document cache before building")
	build.bind(root)

	root.AddCommand(
		newHTMLCmd(opts),
		newJSONCmd(opts),
		newInitCmd(),
		newServeCmd(opts),
		newDumpCmd(opts),
	)
	return root
}

func rootArg(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}

func (o *globalOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *globalOptions) printer(w io.Writer) *printer.Printer {
	return printer.New(w, printer.WithSingleLine(o.singleLine))
}

// loadConfig loads the explicit config file or searches for one from root,
// then applies command-line overrides.
func (o *globalOptions) loadConfig(root string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load(root)
	}
	if err != nil {
		return nil, err
	}
	if o.parser != "" {
		if _, err := parser.ParseBackend(o.parser); err != nil {
			return nil, err
		}
		cfg.Parser = o.parser
	}
	return cfg, nil
}

// index documents the project at root and reports parse errors and
// diagnostics on stderr. A run with parse errors still returns its result
// together with errReported.
func (o *globalOptions) index(cmd *cobra.Command, root string) (*indexer.Result, *config.Config, error) {
	stderr := cmd.ErrOrStderr()
	log := o.logger(stderr)

	cfg, err := o.loadConfig(root)
	if err != nil {
		return nil, nil, err
	}
	if o.clearCache {
		dir, err := indexer.ClearCache(root, cfg)
		if err != nil {
			return nil, nil, err
		}
		log.Info("cleared cache", slog.String("dir", dir))
	}

	idx := indexer.NewWithConfig(cfg)
	idx.Log = log
	res, err := idx.Run(cmd.Context(), root)
	if err != nil {
		return nil, nil, err
	}
	return res, cfg, o.report(stderr, res)
}

func (o *globalOptions) report(w io.Writer, res *indexer.Result) error {
	p := o.printer(w)
	for _, d := range res.Diagnostics {
		if d.Severity == doc.SeverityWarning || o.verbose {
			p.Diagnostic(d)
		}
	}
	for _, pe := range res.ParseErrors {
		p.ParseError(pe)
	}
	if n := len(res.ParseErrors); n > 0 {
		return fmt.Errorf("%d file(s) failed to parse: %w", n, errReported)
	}
	return nil
}

// buildOptions are the flags of the default build.
type buildOptions struct {
	out string
}

func (b *buildOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&b.out, "out", "o", "", "output directory (default: output.dir of the config)")
}

// outputDir resolves the output directory. A configured relative directory
// is taken relative to the project root.
func (b *buildOptions) outputDir(root string, cfg *config.Config) string {
	if b.out != "" {
		return b.out
	}
	dir := cfg.Output.Dir
	if dir == "" {
		dir = "doc"
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	base := root
	if info, err := os.Stat(root); err == nil && !info.IsDir() {
		base = filepath.Dir(root)
	}
	return filepath.Join(base, dir)
}

func runBuild(cmd *cobra.Command, opts *globalOptions, build *buildOptions, root string) error {
	res, cfg, err := opts.index(cmd, root)
	if res == nil {
		return err
	}
	dir := build.outputDir(root, cfg)
	var writeErr error
	if cfg.Output.Format == "json" {
		writeErr = writeLibraryJSON(filepath.Join(dir, "doc.json"), res.Library)
	} else {
		writeErr = writeHTML(cmd, opts, dir, res.Library)
	}
	if writeErr != nil {
		return writeErr
	}
	return err
}
