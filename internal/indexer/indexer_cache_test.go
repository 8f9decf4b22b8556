package indexer

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/robert-at-pretension-io/svdoc/internal/config"
	"github.com/robert-at-pretension-io/svdoc/internal/doc"
	"github.com/robert-at-pretension-io/svdoc/internal/parser"
	"github.com/robert-at-pretension-io/svdoc/internal/syntax"
)

type countingParser struct {
	inner TreeParser
	count *int32
}

func (c *countingParser) Parse(ctx context.Context, path string, src []byte) (*syntax.Tree, error) {
	atomic.AddInt32(c.count, 1)
	return c.inner.Parse(ctx, path, src)
}

func countParses(idx *Indexer, count *int32) {
	idx.parserFactory = func() TreeParser {
		return &countingParser{inner: parser.New(), count: count}
	}
}

func writeSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func defaultTestConfig(files []string, cacheDir string, cacheEnabled bool) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Libraries = map[string]config.LibraryConfig{
		"work": {
			Files:        files,
			Exclude:      []string{},
			IsThirdParty: false,
		},
	}
	cfg.Diagnostics.Rules = map[string]string{}
	cfg.Analysis.Cache.Dir = cacheDir
	enabled := cacheEnabled
	cfg.Analysis.Cache.Enabled = &enabled
	return cfg
}

func runIndexerForTest(t *testing.T, idx *Indexer, rootPath string) *Result {
	t.Helper()
	result, err := idx.Run(context.Background(), rootPath)
	if err != nil {
		t.Fatalf("index failed: %v", err)
	}
	return result
}

const moduleA = "// A.\nmodule a(input logic clk);\nendmodule\n"

func TestCacheReuseAvoidsReparse(t *testing.T) {
	dir := t.TempDir()
	file := writeSV(t, dir, "a.sv", moduleA)
	cacheDir := filepath.Join(dir, ".cache")
	cfg := defaultTestConfig([]string{file}, cacheDir, true)

	var count int32
	idx := NewWithConfig(cfg)
	countParses(idx, &count)
	first := runIndexerForTest(t, idx, dir)
	if got := atomic.LoadInt32(&count); got != 1 {
		t.Fatalf("expected 1 parse on first run, got %d", got)
	}
	if first.Stats.Parsed != 1 || first.Stats.CacheHits != 0 {
		t.Fatalf("unexpected first stats %+v", first.Stats)
	}

	var count2 int32
	idx2 := NewWithConfig(cfg)
	countParses(idx2, &count2)
	second := runIndexerForTest(t, idx2, dir)
	if got := atomic.LoadInt32(&count2); got != 0 {
		t.Fatalf("expected 0 parses on cached run, got %d", got)
	}
	if second.Stats.CacheHits != 1 {
		t.Fatalf("expected a cache hit, got %+v", second.Stats)
	}
	if second.PreviousTables == nil {
		t.Fatalf("expected previous fact tables on the second run")
	}
}

func TestMemoryCacheServesRepeatRuns(t *testing.T) {
	dir := t.TempDir()
	file := writeSV(t, dir, "a.sv", moduleA)
	cfg := defaultTestConfig([]string{file}, filepath.Join(dir, ".cache"), false)

	var count int32
	idx := NewWithConfig(cfg)
	countParses(idx, &count)
	runIndexerForTest(t, idx, dir)
	result := runIndexerForTest(t, idx, dir)
	if got := atomic.LoadInt32(&count); got != 1 {
		t.Fatalf("expected the in-memory cache to avoid a second parse, got %d parses", got)
	}
	if result.Stats.CacheHits != 1 {
		t.Fatalf("expected a memory cache hit, got %+v", result.Stats)
	}
}

func TestCacheInvalidationOnChange(t *testing.T) {
	dir := t.TempDir()
	file := writeSV(t, dir, "a.sv", moduleA)
	cacheDir := filepath.Join(dir, ".cache")
	cfg := defaultTestConfig([]string{file}, cacheDir, true)

	idx := NewWithConfig(cfg)
	runIndexerForTest(t, idx, dir)

	if err := os.WriteFile(file, []byte("// A, changed.\nmodule a(input logic clk);\nendmodule\n"), 0o644); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}

	var count int32
	idx2 := NewWithConfig(cfg)
	countParses(idx2, &count)
	result := runIndexerForTest(t, idx2, dir)
	if got := atomic.LoadInt32(&count); got != 1 {
		t.Fatalf("expected re-parse after change, got %d", got)
	}
	if doc := result.Library.Data.Modules[0].Doc; doc != "A, changed." {
		t.Fatalf("expected fresh doc, got %q", doc)
	}
}

func TestCacheInvalidationOnVersionChange(t *testing.T) {
	dir := t.TempDir()
	file := writeSV(t, dir, "a.sv", moduleA)
	cacheDir := filepath.Join(dir, ".cache")
	cfg := defaultTestConfig([]string{file}, cacheDir, true)

	idx := NewWithConfig(cfg)
	idx.cacheVersionOverride = &cacheVersions{parser: "p1", doc: "d1"}
	runIndexerForTest(t, idx, dir)

	var count int32
	idx2 := NewWithConfig(cfg)
	idx2.cacheVersionOverride = &cacheVersions{parser: "p2", doc: "d1"}
	countParses(idx2, &count)
	runIndexerForTest(t, idx2, dir)
	if got := atomic.LoadInt32(&count); got != 1 {
		t.Fatalf("expected re-parse after version change, got %d", got)
	}
}

func TestCachedRunMatchesFresh(t *testing.T) {
	dir := t.TempDir()
	file1 := writeSV(t, dir, "pkg.sv", "// Pkg.\npackage p;\n  // Width.\n  localparam int W = 8;\nendpackage\n")
	file2 := writeSV(t, dir, "top.sv", "// Top.\nmodule top(input logic clk);\n  // State.\n  logic s;\nendmodule\n")
	cacheDir := filepath.Join(dir, ".cache")

	fresh := runIndexerForTest(t, NewWithConfig(defaultTestConfig([]string{file1, file2}, cacheDir, false)), dir)

	cfgCache := defaultTestConfig([]string{file1, file2}, cacheDir, true)
	runIndexerForTest(t, NewWithConfig(cfgCache), dir)
	cached := runIndexerForTest(t, NewWithConfig(cfgCache), dir)
	if cached.Stats.CacheHits != 2 {
		t.Fatalf("expected two cache hits, got %+v", cached.Stats)
	}

	if !reflect.DeepEqual(fresh.Library.Data, cached.Library.Data) {
		t.Fatalf("library mismatch:\nfresh=%+v\ncached=%+v", fresh.Library.Data, cached.Library.Data)
	}
	if !reflect.DeepEqual(fresh.Tables, cached.Tables) {
		t.Fatalf("fact tables mismatch")
	}
}

func TestClearCache(t *testing.T) {
	dir := t.TempDir()
	file := writeSV(t, dir, "a.sv", moduleA)
	cfg := defaultTestConfig([]string{file}, ".cache", true)
	runIndexerForTest(t, NewWithConfig(cfg), dir)

	cacheDir, err := ClearCache(dir, cfg)
	if err != nil {
		t.Fatalf("ClearCache: %v", err)
	}
	if cacheDir != filepath.Join(dir, ".cache") {
		t.Fatalf("unexpected cache dir %s", cacheDir)
	}
	if _, err := os.Stat(cacheDir); !os.IsNotExist(err) {
		t.Fatalf("expected cache dir to be removed, stat err=%v", err)
	}
}

func TestMemoryCacheSharedAcrossGoroutines(t *testing.T) {
	idx := NewWithConfig(defaultTestConfig(nil, ".cache", false))

	const workers = 16
	caches := make([]*lru.Cache[string, *doc.Doc], workers)
	var wg sync.WaitGroup
	for i := range caches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			caches[i] = idx.memoryCache()
		}()
	}
	wg.Wait()
	for i, c := range caches {
		if c == nil || c != caches[0] {
			t.Fatalf("goroutine %d got a different cache", i)
		}
	}
}

func TestConcurrentRunsShareOneIndexer(t *testing.T) {
	dir := t.TempDir()
	a := writeSV(t, dir, "a.sv", moduleA)
	b := writeSV(t, dir, "b.sv", "// B.\nmodule b;\nendmodule\n")
	idx := NewWithConfig(defaultTestConfig([]string{a, b}, filepath.Join(dir, ".cache"), false))

	const runs = 8
	results := make([]*Result, runs)
	errs := make([]error, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = idx.Run(context.Background(), dir)
		}()
	}
	wg.Wait()

	for i := 0; i < runs; i++ {
		if errs[i] != nil {
			t.Fatalf("run %d failed: %v", i, errs[i])
		}
		if got := len(results[i].Library.Data.Modules); got != 2 {
			t.Fatalf("run %d documented %d modules", i, got)
		}
	}
	if idx.memoryCache().Len() != 2 {
		t.Fatalf("expected both files in the memory cache, got %d", idx.memoryCache().Len())
	}
}
