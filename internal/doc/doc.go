// Package doc extracts documentation from a parsed SystemVerilog file.
//
// Extraction runs in two passes. The first walks the syntax tree and builds a
// tree of scopes, attaching to every documentable declaration the block of
// `//` comments stacked directly above it. The second classifies every scope
// into typed items and files them into per-level contexts that mirror the
// nesting of packages and modules.
//
// Declaration forms without an item mapping are skipped with a diagnostic;
// extraction itself never fails.
package doc

import (
	"log/slog"

	"github.com/robert-at-pretension-io/svdoc/internal/syntax"
)

// Doc is the documentation of one file.
type Doc struct {
	Path        string       `json:"path"`
	Raw         *syntax.Tree `json:"-"`
	Data        Context      `json:"data"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

type options struct {
	log              *slog.Logger
	omitUndocumented bool
}

// Option configures New.
type Option func(*options)

// WithLogger mirrors diagnostics to log.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithOmitUndocumented drops items without documentation, and modules and
// packages that have neither documentation nor documented content.
func WithOmitUndocumented(omit bool) Option {
	return func(o *options) { o.omitUndocumented = omit }
}

// New extracts the documentation of tree. Undocumented items are kept unless
// WithOmitUndocumented(true) is passed. Only with that option does a
// documented module with undocumented ports, such as
//
//	// Doubles the input.
//	module adder(input logic [7:0] a, output logic [7:0] y);
//	endmodule
//
// come out with an empty Content.
func New(tree *syntax.Tree, opts ...Option) *Doc {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	diags := newDiagnostics(tree.Path, o.log)
	root := buildScopes(tree, diags)
	c := &classifier{
		tree:             tree,
		diags:            diags,
		omitUndocumented: o.omitUndocumented,
	}
	data := c.buildContext(root.Children)

	return &Doc{
		Path:        tree.Path,
		Raw:         tree,
		Data:        data,
		Diagnostics: diags.List(),
	}
}

// Scopes returns the scope tree of tree without classifying it. It backs the
// dump command.
func Scopes(tree *syntax.Tree, log *slog.Logger) (*Scope, []Diagnostic) {
	diags := newDiagnostics(tree.Path, log)
	root := buildScopes(tree, diags)
	return root, diags.List()
}
