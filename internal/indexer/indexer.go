// Package indexer documents every SystemVerilog file of a project.
//
// A run resolves the configured libraries, parses and documents the files in
// parallel, and merges the per-file documentation into one library in path
// order. Per-file results are cached on disk by content hash and, for
// long-lived indexers such as the doc server, in memory.
//
// Files that fail to parse are reported and left out; they never stop the run.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/robert-at-pretension-io/svdoc/internal/config"
	"github.com/robert-at-pretension-io/svdoc/internal/doc"
	"github.com/robert-at-pretension-io/svdoc/internal/facts"
	"github.com/robert-at-pretension-io/svdoc/internal/parser"
	"github.com/robert-at-pretension-io/svdoc/internal/policy"
	"github.com/robert-at-pretension-io/svdoc/internal/syntax"
	"github.com/robert-at-pretension-io/svdoc/internal/validator"
)

const (
	statusParsed   = "parsed"
	statusCacheHit = "cache_hit"
	statusFailed   = "failed"
	statusSkipped  = "skipped"
)

// TreeParser parses one source file.
type TreeParser interface {
	Parse(ctx context.Context, path string, src []byte) (*syntax.Tree, error)
}

// Indexer builds a documentation library from a project tree.
type Indexer struct {
	// Config is loaded from the project when nil.
	Config *config.Config

	// Log receives progress and diagnostics. Nil discards.
	Log *slog.Logger

	// Timing output (JSONL)
	Timing     bool
	TimingPath string

	// memory caches documents across runs of the same Indexer
	memory     *lru.Cache[string, *doc.Doc]
	memoryOnce sync.Once

	// engine is the prepared rule set for policyDir
	policyMu  sync.Mutex
	engine    *policy.Engine
	policyDir string

	// Optional parser factory (for tests)
	parserFactory func() TreeParser

	// Optional cache version override (for tests)
	cacheVersionOverride *cacheVersions
}

// Result is the outcome of one run. It serializes to JSON for programmatic
// consumption.
type Result struct {
	Library     *doc.Library     `json:"library"`
	Diagnostics []doc.Diagnostic `json:"diagnostics"`
	ParseErrors []ParseError     `json:"parse_errors,omitempty"`
	Summary     Summary          `json:"summary"`
	Stats       Stats            `json:"stats"`

	// Warnings lists pipeline problems (cache, timing) that did not stop the run.
	Warnings []string `json:"warnings,omitempty"`

	// Tables is the relational view of Library.
	Tables facts.Tables `json:"-"`

	// PreviousTables holds the tables of the previous cached run, if any.
	PreviousTables *facts.Tables `json:"-"`

	// Coverage counts documented rows per fact relation.
	Coverage map[string]policy.Coverage `json:"coverage,omitempty"`

	// FileLibraries maps every resolved file to its library.
	FileLibraries map[string]config.FileLibraryInfo `json:"-"`
}

// Summary counts the reported diagnostics by severity.
type Summary struct {
	Diagnostics int `json:"diagnostics"`
	Warnings    int `json:"warnings"`
	Info        int `json:"info"`
}

// Stats describes what a run did with each file.
type Stats struct {
	Files     int       `json:"files"`
	Parsed    int       `json:"parsed"`
	CacheHits int       `json:"cache_hits"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Items     doc.Stats `json:"items"`
}

// ParseError is a file that could not be documented.
type ParseError struct {
	File       string `json:"file"`
	Line       int    `json:"line,omitempty"`
	Column     int    `json:"column,omitempty"`
	Length     int    `json:"length,omitempty"`
	Message    string `json:"message"`
	SourceLine string `json:"source_line,omitempty"`
	Hint       string `json:"hint,omitempty"`
}

func (e ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// New creates an Indexer with default configuration
func New() *Indexer {
	return &Indexer{Config: config.DefaultConfig()}
}

// NewWithConfig creates an Indexer with the given configuration
func NewWithConfig(cfg *config.Config) *Indexer {
	return &Indexer{Config: cfg}
}

func (idx *Indexer) logger() *slog.Logger {
	if idx.Log == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return idx.Log
}

func (idx *Indexer) backend() parser.Backend {
	b, err := parser.ParseBackend(idx.Config.Parser)
	if err != nil {
		return parser.BackendTreeSitter
	}
	return b
}

func (idx *Indexer) newParser() TreeParser {
	if idx.parserFactory != nil {
		return idx.parserFactory()
	}
	return parser.New(parser.WithBackend(idx.backend()), parser.WithLogger(idx.Log))
}

func (idx *Indexer) cacheVersions() cacheVersions {
	if idx.cacheVersionOverride != nil {
		return *idx.cacheVersionOverride
	}
	return computeCacheVersions(idx.backend(), idx.Config)
}

// memoryCache returns the document LRU, creating it on first use. Workers of
// one run and concurrent runs share it.
func (idx *Indexer) memoryCache() *lru.Cache[string, *doc.Doc] {
	idx.memoryOnce.Do(func() {
		size := 0
		if idx.Config != nil {
			size = idx.Config.Analysis.MemoryCacheSize
		}
		if size <= 0 {
			size = 512
		}
		// only fails for a non-positive size
		idx.memory, _ = lru.New[string, *doc.Doc](size)
	})
	return idx.memory
}

// fileOutcome is the per-file result slot filled by the worker pool.
type fileOutcome struct {
	path     string
	info     config.FileLibraryInfo
	doc      *doc.Doc
	status   string
	parseErr *ParseError
}

// Run documents every file under rootPath. rootPath may also name a single
// source file.
func (idx *Indexer) Run(ctx context.Context, rootPath string) (*Result, error) {
	runStart := time.Now()
	ctx, span := startRunSpan(ctx, rootPath)
	defer span.End()

	log := idx.logger()
	result := &Result{
		Library:     doc.NewLibrary(""),
		Diagnostics: []doc.Diagnostic{},
	}
	warn := func(err error) {
		result.Warnings = append(result.Warnings, err.Error())
		log.Warn(err.Error())
	}

	timing := newTimeline(runStart, idx.resolveTimingPath(rootPath))
	if err := timing.Err(); err != nil {
		warn(fmt.Errorf("timing output disabled: %w", err))
	}
	defer timing.Close()

	// 0. Load configuration if not already loaded
	if idx.Config == nil {
		cfg, err := config.Load(rootPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		idx.Config = cfg
	}
	result.Library.Title = idx.Config.Title

	// 1. Resolve files
	stepStart := time.Now()
	files, fileLibs, err := idx.resolveFiles(rootPath)
	if err != nil {
		return nil, err
	}
	result.FileLibraries = fileLibs
	result.Stats.Files = len(files)
	log.Info("resolved sources", slog.String("root", rootPath), slog.Int("files", len(files)))
	timing.Stage("scan", stepStart, len(files))

	// 2. Parse and document in parallel
	stepStart = time.Now()
	var cache *docCache
	var cacheDir string
	if cacheEnabled(idx.Config) {
		cacheDir = resolveCacheDir(rootPath, idx.Config)
		cache = newDocCache(cacheDir, idx.cacheVersions())
		if err := cache.Load(); err != nil {
			warn(fmt.Errorf("cache disabled: %w", err))
			cache = nil
		}
	}

	outcomes := make([]fileOutcome, len(files))
	cacheErrs := make([]error, len(files))
	p := idx.newParser()
	idx.memoryCache()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.parallelism())
	for i, f := range files {
		outcomes[i] = fileOutcome{path: f, info: fileLibs[f]}
		if outcomes[i].info.IsThirdParty && !idx.Config.Doc.IncludeThirdParty {
			outcomes[i].status = statusSkipped
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fileStart := time.Now()
			cacheErrs[i] = idx.documentFile(gctx, p, cache, &outcomes[i])
			timing.File(&outcomes[i], fileStart)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("indexing canceled: %w", err)
	}
	for _, err := range cacheErrs {
		if err != nil {
			warn(err)
		}
	}
	timing.Stage("document", stepStart, len(files))

	// 3. Merge in path order
	stepStart = time.Now()
	keep := make(map[string]bool, len(files))
	for _, o := range outcomes {
		keep[o.path] = true
		switch o.status {
		case statusSkipped:
			result.Stats.Skipped++
			continue
		case statusFailed:
			result.Stats.Failed++
			result.ParseErrors = append(result.ParseErrors, *o.parseErr)
			continue
		case statusCacheHit:
			result.Stats.CacheHits++
		case statusParsed:
			result.Stats.Parsed++
		}
		result.Library.Add(o.doc, o.info.LibraryName, o.info.IsThirdParty)
		result.Diagnostics = append(result.Diagnostics, idx.filterDiagnostics(o.doc.Diagnostics)...)
	}
	result.Stats.Items = result.Library.Stats()
	timing.Stage("merge", stepStart, result.Stats.Items.Total())

	// 4. Fact tables
	stepStart = time.Now()
	result.Tables = facts.BuildTables(result.Library, fileLibs)
	if err := validator.ValidateFacts(result.Tables); err != nil {
		return nil, fmt.Errorf("fact tables violate schema: %w", err)
	}
	if cache != nil {
		cache.Prune(keep)
		if err := cache.Save(); err != nil {
			warn(fmt.Errorf("cache save failed: %w", err))
		}
		versions := idx.cacheVersions()
		prev, err := loadBaseline(cacheDir, versions)
		switch {
		case errors.Is(err, errStaleBaseline):
			log.Info("previous fact tables dropped", slog.String("reason", err.Error()))
		case err != nil:
			warn(err)
		default:
			result.PreviousTables = prev
		}
		if err := saveBaseline(cacheDir, versions, result.Tables); err != nil {
			warn(err)
		}
	}
	timing.Stage("facts", stepStart, result.Tables.Count())

	// 5. Coverage policies
	stepStart = time.Now()
	pres, reused, err := idx.evaluatePolicies(ctx, rootPath, cacheDir, result.Tables)
	if err != nil {
		warn(fmt.Errorf("policy evaluation: %w", err))
	}
	if pres != nil {
		result.Coverage = pres.Coverage
		result.Diagnostics = append(result.Diagnostics, idx.filterDiagnostics(pres.Diagnostics())...)
		if p, ok := pres.Coverage["ports"]; ok {
			log.Debug("doc coverage",
				slog.Float64("ports_pct", p.Percent()),
				slog.Int("violations", len(pres.Violations)),
				slog.Bool("reused", reused))
		}
	}
	for _, d := range result.Diagnostics {
		result.Summary.Diagnostics++
		switch d.Severity {
		case doc.SeverityWarning:
			result.Summary.Warnings++
		case doc.SeverityInfo:
			result.Summary.Info++
		}
	}
	timing.Stage("policy", stepStart, len(result.Diagnostics))

	total := time.Since(runStart)
	timing.Stage("total", runStart, result.Stats.Files)
	setRunSpanResult(span, result.Stats)
	recordRunMetrics(ctx, total, result.Stats)
	log.Info("indexed sources",
		slog.Int("files", result.Stats.Files),
		slog.Int("parsed", result.Stats.Parsed),
		slog.Int("cache_hits", result.Stats.CacheHits),
		slog.Int("failed", result.Stats.Failed),
		slog.Int("skipped", result.Stats.Skipped),
		slog.Duration("took", total))
	for phase, d := range timing.Totals() {
		log.Debug("phase timing", slog.String("phase", phase), slog.Duration("took", d))
	}
	if file, took := timing.Slowest(); file != "" {
		log.Debug("slowest file", slog.String("file", file), slog.Duration("took", took))
	}

	return result, nil
}

// documentFile fills o from the memory cache, the disk cache, or a fresh
// parse. The returned error is a cache problem; parse failures land in o.
func (idx *Indexer) documentFile(ctx context.Context, p TreeParser, cache *docCache, o *fileOutcome) error {
	src, err := os.ReadFile(o.path)
	if err != nil {
		o.status = statusFailed
		o.parseErr = &ParseError{File: o.path, Message: fmt.Sprintf("reading file: %v", err)}
		return nil
	}
	hash := hashBytes(src)
	versions := idx.cacheVersions()
	memKey := o.path + "|" + hash + "|" + versions.parser + "|" + versions.doc

	if d, ok := idx.memoryCache().Get(memKey); ok {
		o.doc, o.status = d, statusCacheHit
		return nil
	}

	var cacheErr error
	if cache != nil {
		d, ok, err := cache.Get(o.path, hash)
		if err != nil {
			cacheErr = fmt.Errorf("cache read failed for %s: %w", o.path, err)
		} else if ok {
			idx.memoryCache().Add(memKey, d)
			o.doc, o.status = d, statusCacheHit
			return nil
		}
	}

	tree, err := p.Parse(ctx, o.path, src)
	if err != nil {
		o.status = statusFailed
		o.parseErr = NewParseError(o.path, src, err)
		return cacheErr
	}
	d := doc.New(tree,
		doc.WithLogger(idx.Log),
		doc.WithOmitUndocumented(idx.Config.Doc.OmitUndocumented))
	d.Raw = nil

	if cache != nil {
		if err := cache.Put(o.path, hash, d); err != nil {
			cacheErr = errors.Join(cacheErr, fmt.Errorf("cache write failed for %s: %w", o.path, err))
		}
	}
	idx.memoryCache().Add(memKey, d)
	o.doc, o.status = d, statusParsed
	return cacheErr
}

// NewParseError describes err, a failure to parse src, for reporting. The
// offending source line is attached when err carries a position.
func NewParseError(path string, src []byte, err error) *ParseError {
	var perr *syntax.ParseError
	if !errors.As(err, &perr) {
		return &ParseError{File: path, Message: err.Error()}
	}
	out := &ParseError{
		File:    path,
		Line:    perr.Line,
		Column:  perr.Column,
		Length:  perr.Length,
		Message: perr.Message,
		Hint:    perr.Hint,
	}
	lines := strings.Split(string(src), "\n")
	if perr.Line >= 1 && perr.Line <= len(lines) {
		out.SourceLine = strings.TrimRight(lines[perr.Line-1], "\r")
	}
	return out
}

// resolveFiles returns the sorted source files and their libraries.
func (idx *Indexer) resolveFiles(rootPath string) ([]string, map[string]config.FileLibraryInfo, error) {
	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, nil, fmt.Errorf("scanning files: %w", err)
	}
	if !info.IsDir() {
		if !config.IsSourceFile(rootPath) {
			return nil, nil, fmt.Errorf("%s is not a SystemVerilog source file", rootPath)
		}
		return []string{rootPath}, map[string]config.FileLibraryInfo{
			rootPath: {LibraryName: "work"},
		}, nil
	}

	fileLibs, err := idx.Config.FileLibraries(rootPath)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve libraries: %w", err)
	}
	files, err := idx.Config.GetAllFiles(rootPath)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve libraries: %w", err)
	}
	return files, fileLibs, nil
}

// filterDiagnostics applies the configured rule severities.
func (idx *Indexer) filterDiagnostics(diags []doc.Diagnostic) []doc.Diagnostic {
	var out []doc.Diagnostic
	for _, d := range diags {
		if !idx.Config.IsRuleEnabled(d.Code) {
			continue
		}
		d.Severity = doc.Severity(idx.Config.GetRuleSeverity(d.Code, string(d.Severity)))
		out = append(out, d)
	}
	return out
}

func (idx *Indexer) parallelism() int {
	if n := idx.Config.Analysis.MaxParallelFiles; n > 0 {
		return n
	}
	return runtime.GOMAXPROCS(0)
}

// Relative returns path relative to rootPath when possible.
func Relative(rootPath, path string) string {
	rel, err := filepath.Rel(rootPath, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
