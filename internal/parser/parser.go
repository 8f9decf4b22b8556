// Package parser turns SystemVerilog source into a syntax tree.
//
// Two backends are available. The tree-sitter backend parses with the
// SystemVerilog tree-sitter grammar and lowers the concrete tree into syntax
// nodes; it is the default. The builtin backend is a hand-written declaration
// parser producing the same nodes. By default a file the grammar rejects is
// parsed again with the builtin backend.
package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
	"unicode/utf8"

	"github.com/robert-at-pretension-io/svdoc/internal/syntax"
)

const (
	// DefaultMaxFileSize is the largest file the parser accepts (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024

	// WarnFileSize is the size above which a warning is logged (1MB).
	WarnFileSize = 1 * 1024 * 1024
)

// Version is recorded in cache metadata; bump it when lowering changes.
const Version = "svdoc-parser-2"

var (
	// ErrFileTooLarge is returned when input exceeds the maximum file size.
	ErrFileTooLarge = errors.New("file exceeds maximum size limit")

	// ErrInvalidContent is returned when input is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")
)

// Backend selects the parser implementation.
type Backend string

const (
	BackendBuiltin    Backend = "builtin"
	BackendTreeSitter Backend = "tree-sitter"
)

// Backends lists the accepted backend names.
var Backends = []Backend{BackendBuiltin, BackendTreeSitter}

// ParseBackend validates a backend name. The empty string selects the
// tree-sitter backend.
func ParseBackend(name string) (Backend, error) {
	if name == "" {
		return BackendTreeSitter, nil
	}
	for _, b := range Backends {
		if string(b) == name {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown parser backend %q", name)
}

// Parser parses SystemVerilog files. It is safe for concurrent use.
type Parser struct {
	backend     Backend
	fallback    Backend
	log         *slog.Logger
	maxFileSize int64
}

// Option configures a Parser.
type Option func(*Parser)

// WithBackend selects the backend.
func WithBackend(b Backend) Option {
	return func(p *Parser) {
		if b != "" {
			p.backend = b
		}
	}
}

// WithFallback sets the backend that reparses a file after the primary
// backend reports a syntax error. The empty backend disables the retry.
func WithFallback(b Backend) Option {
	return func(p *Parser) {
		p.fallback = b
	}
}

// WithLogger sets the logger used for parse warnings.
func WithLogger(log *slog.Logger) Option {
	return func(p *Parser) {
		if log != nil {
			p.log = log
		}
	}
}

// WithMaxFileSize sets the maximum accepted file size in bytes.
func WithMaxFileSize(bytes int64) Option {
	return func(p *Parser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// New creates a Parser using the tree-sitter backend with the builtin backend
// as fallback unless configured otherwise.
func New(opts ...Option) *Parser {
	p := &Parser{
		backend:     BackendTreeSitter,
		fallback:    BackendBuiltin,
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Backend reports the configured backend.
func (p *Parser) Backend() Backend { return p.backend }

// Fallback reports the backend used after a syntax error, or "" if none.
func (p *Parser) Fallback() Backend {
	if p.fallback == p.backend {
		return ""
	}
	return p.fallback
}

// ParseFile reads and parses the file at path.
func (p *Parser) ParseFile(ctx context.Context, path string) (*syntax.Tree, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return p.Parse(ctx, path, src)
}

// Parse parses src, reporting positions against path. Syntax errors are
// returned as *syntax.ParseError.
func (p *Parser) Parse(ctx context.Context, path string, src []byte) (*syntax.Tree, error) {
	ctx, span := startParseSpan(ctx, p.backend, path, len(src))
	defer span.End()

	start := time.Now()
	fail := func(err error) (*syntax.Tree, error) {
		recordParseMetrics(ctx, p.backend, time.Since(start), 0, false)
		setParseSpanResult(span, 0, false)
		span.RecordError(err)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("parse canceled before start: %w", err))
	}
	if int64(len(src)) > p.maxFileSize {
		return fail(fmt.Errorf("%w: %s: size %d exceeds limit %d", ErrFileTooLarge, path, len(src), p.maxFileSize))
	}
	if len(src) > WarnFileSize {
		p.log.Warn("parsing large file", slog.String("file", path), slog.Int("size_bytes", len(src)))
	}
	if !utf8.Valid(src) {
		return fail(fmt.Errorf("%w: %s: content is not valid UTF-8", ErrInvalidContent, path))
	}

	used := p.backend
	tree, err := parseWith(ctx, used, path, src)
	var perr *syntax.ParseError
	if fb := p.Fallback(); err != nil && fb != "" && errors.As(err, &perr) {
		p.log.Debug("reparsing with fallback backend",
			slog.String("file", path),
			slog.String("backend", string(p.backend)),
			slog.String("fallback", string(fb)),
			slog.String("error", perr.Message))
		used = fb
		tree, err = parseWith(ctx, used, path, src)
	}
	if err != nil {
		return fail(err)
	}

	items := len(tree.Root.Items)
	recordParseMetrics(ctx, used, time.Since(start), items, true)
	setParseSpanResult(span, items, true)
	p.log.Debug("parsed file",
		slog.String("file", path),
		slog.String("backend", string(used)),
		slog.Int("items", items),
		slog.Int("comments", len(tree.Comments)),
		slog.Duration("took", time.Since(start)))
	return tree, nil
}

func parseWith(ctx context.Context, b Backend, path string, src []byte) (*syntax.Tree, error) {
	tree := syntax.NewTree(path, src, nil, nil)
	var err error
	switch b {
	case BackendBuiltin:
		err = parseBuiltin(tree)
	case BackendTreeSitter:
		err = parseTreeSitter(ctx, tree)
	default:
		err = fmt.Errorf("unknown parser backend %q", b)
	}
	if err != nil {
		return nil, err
	}
	return tree, nil
}
