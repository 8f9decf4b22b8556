package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/svdoc/internal/doc"
	"github.com/robert-at-pretension-io/svdoc/internal/indexer"
	"github.com/robert-at-pretension-io/svdoc/internal/parser"
	"github.com/robert-at-pretension-io/svdoc/internal/syntax"
)

func newDumpCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <file>",
		Short: "Print the syntax tree and the documentation scopes of one file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			backend := parser.BackendTreeSitter
			name := opts.parser
			if name == "" {
				if cfg, err := opts.loadConfig(path); err == nil {
					name = cfg.Parser
				}
			}
			if name != "" {
				b, err := parser.ParseBackend(name)
				if err != nil {
					return err
				}
				backend = b
			}

			log := opts.logger(cmd.ErrOrStderr())
			p := parser.New(parser.WithBackend(backend), parser.WithLogger(log))
			tree, err := p.ParseFile(cmd.Context(), path)
			if err != nil {
				return reportParseFailure(cmd, opts, path, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "syntax (%s):\n", backend)
			if err := syntax.Dump(out, tree); err != nil {
				return err
			}
			fmt.Fprintln(out, "\nscopes:")
			root, diags := doc.Scopes(tree, log)
			if err := dumpScopes(out, tree, root.Children, 1); err != nil {
				return err
			}
			pr := opts.printer(cmd.ErrOrStderr())
			for _, d := range diags {
				pr.Diagnostic(d)
			}
			return nil
		},
	}
}

func dumpScopes(w io.Writer, tree *syntax.Tree, scopes []*doc.Scope, depth int) error {
	for _, s := range scopes {
		line := tree.Line(s.Node.Range().Start)
		label := fmt.Sprintf("%s%s @%d", strings.Repeat("  ", depth), syntax.Kind(s.Node), line)
		if len(s.Comments) > 0 {
			label += fmt.Sprintf(" doc=%q", s.Comments[0])
			if len(s.Comments) > 1 {
				label += fmt.Sprintf(" (+%d lines)", len(s.Comments)-1)
			}
		}
		if _, err := fmt.Fprintln(w, label); err != nil {
			return err
		}
		if err := dumpScopes(w, tree, s.Children, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// reportParseFailure prints a parse error the way a build would.
func reportParseFailure(cmd *cobra.Command, opts *globalOptions, path string, err error) error {
	src, rerr := os.ReadFile(path)
	if rerr != nil {
		return err
	}
	opts.printer(cmd.ErrOrStderr()).ParseError(*indexer.NewParseError(path, src, err))
	return fmt.Errorf("%s failed to parse: %w", path, errReported)
}
