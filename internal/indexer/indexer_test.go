package indexer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/robert-at-pretension-io/svdoc/internal/config"
	"github.com/robert-at-pretension-io/svdoc/internal/doc"
)

func TestRunMergesInPathOrder(t *testing.T) {
	dir := t.TempDir()
	writeSV(t, dir, "b/second.sv", "// Second.\nmodule second;\nendmodule\n")
	writeSV(t, dir, "a/first.sv", "// First.\nmodule first;\nendmodule\n")
	cfg := config.DefaultConfig()
	cfg.Title = "Merged"
	disabled := false
	cfg.Analysis.Cache.Enabled = &disabled

	result := runIndexerForTest(t, NewWithConfig(cfg), dir)
	if result.Library.Title != "Merged" {
		t.Fatalf("expected title to carry over, got %q", result.Library.Title)
	}
	mods := result.Library.Data.Modules
	if len(mods) != 2 || mods[0].Name != "first" || mods[1].Name != "second" {
		t.Fatalf("expected modules in path order, got %+v", mods)
	}
	if len(result.Library.Files) != 2 || result.Library.Files[0].Library != "work" {
		t.Fatalf("unexpected files %+v", result.Library.Files)
	}
	if result.Stats.Items.Modules != 2 || len(result.Tables.Modules) != 2 {
		t.Fatalf("unexpected stats %+v", result.Stats)
	}
}

func TestRunReportsParseErrorsAndContinues(t *testing.T) {
	dir := t.TempDir()
	good := writeSV(t, dir, "good.sv", moduleA)
	bad := writeSV(t, dir, "bad.sv", "module broken;\n  wire w;\n")
	cfg := defaultTestConfig([]string{good, bad}, ".cache", false)

	result := runIndexerForTest(t, NewWithConfig(cfg), dir)
	if result.Stats.Failed != 1 || result.Stats.Parsed != 1 {
		t.Fatalf("unexpected stats %+v", result.Stats)
	}
	if len(result.ParseErrors) != 1 {
		t.Fatalf("expected one parse error, got %+v", result.ParseErrors)
	}
	perr := result.ParseErrors[0]
	if perr.File != bad || perr.Line == 0 {
		t.Fatalf("unexpected parse error %+v", perr)
	}
	if len(result.Library.Data.Modules) != 1 || result.Library.Data.Modules[0].Name != "a" {
		t.Fatalf("expected the good file to be documented, got %+v", result.Library.Data.Modules)
	}
}

func TestRunSkipsThirdPartyUnlessIncluded(t *testing.T) {
	dir := t.TempDir()
	writeSV(t, dir, "rtl/top.sv", "module top;\nendmodule\n")
	writeSV(t, dir, "vendor/ip.sv", "module ip;\nendmodule\n")
	cfg := config.DefaultConfig()
	cfg.Libraries = map[string]config.LibraryConfig{
		"work":   {Files: []string{"rtl/**/*.sv"}},
		"vendor": {Files: []string{"vendor/**/*.sv"}, IsThirdParty: true},
	}
	disabled := false
	cfg.Analysis.Cache.Enabled = &disabled

	result := runIndexerForTest(t, NewWithConfig(cfg), dir)
	if result.Stats.Skipped != 1 || len(result.Library.Data.Modules) != 1 {
		t.Fatalf("expected third-party file to be skipped, got %+v", result.Stats)
	}

	cfg.Doc.IncludeThirdParty = true
	result = runIndexerForTest(t, NewWithConfig(cfg), dir)
	if result.Stats.Skipped != 0 || len(result.Library.Data.Modules) != 2 {
		t.Fatalf("expected third-party file to be documented, got %+v", result.Stats)
	}
	var vendor *doc.File
	for i := range result.Library.Files {
		if filepath.Base(result.Library.Files[i].Path) == "ip.sv" {
			vendor = &result.Library.Files[i]
		}
	}
	if vendor == nil || !vendor.ThirdParty || vendor.Library != "vendor" {
		t.Fatalf("expected vendor file to be marked third-party, got %+v", result.Library.Files)
	}
}

func TestRunAppliesRuleSeverities(t *testing.T) {
	dir := t.TempDir()
	file := writeSV(t, dir, "a.sv", "interface bus_if;\nendinterface\nmodule m;\n  typedef struct s;\nendmodule\n")
	cfg := defaultTestConfig([]string{file}, ".cache", false)

	result := runIndexerForTest(t, NewWithConfig(cfg), dir)
	if result.Summary.Warnings != 2 {
		t.Fatalf("expected two warnings, got %+v", result.Diagnostics)
	}

	cfg.Diagnostics.Rules = map[string]string{
		doc.CodeOpaqueDeclaration:      "off",
		doc.CodeUnsupportedDeclaration: "info",
	}
	result = runIndexerForTest(t, NewWithConfig(cfg), dir)
	if len(result.Diagnostics) != 1 {
		t.Fatalf("expected opaque diagnostics to be dropped, got %+v", result.Diagnostics)
	}
	if d := result.Diagnostics[0]; d.Code != doc.CodeUnsupportedDeclaration || d.Severity != doc.SeverityInfo {
		t.Fatalf("unexpected diagnostic %+v", d)
	}
	if result.Summary.Info != 1 || result.Summary.Warnings != 0 {
		t.Fatalf("unexpected summary %+v", result.Summary)
	}
}

func TestRunSingleFile(t *testing.T) {
	dir := t.TempDir()
	file := writeSV(t, dir, "one.sv", moduleA)
	cfg := defaultTestConfig(nil, ".cache", false)

	result := runIndexerForTest(t, NewWithConfig(cfg), file)
	if result.Stats.Files != 1 || len(result.Library.Data.Modules) != 1 {
		t.Fatalf("unexpected result %+v", result.Stats)
	}

	if _, err := NewWithConfig(cfg).Run(context.Background(), filepath.Join(dir, "missing.sv")); err == nil {
		t.Fatalf("expected missing root to fail")
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	dir := t.TempDir()
	file := writeSV(t, dir, "a.sv", moduleA)
	cfg := defaultTestConfig([]string{file}, ".cache", false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewWithConfig(cfg).Run(ctx, dir)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRelative(t *testing.T) {
	if got := Relative("/proj", "/proj/rtl/a.sv"); got != filepath.Join("rtl", "a.sv") {
		t.Fatalf("unexpected relative path %q", got)
	}
	if got := Relative("/proj", "/other/a.sv"); got != "/other/a.sv" {
		t.Fatalf("expected paths outside root to stay absolute, got %q", got)
	}
}
