package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestResolveLibrariesWithExplicitFiles(t *testing.T) {
	root := t.TempDir()
	core := filepath.Join(root, "rtl", "core.sv")
	tb := filepath.Join(root, "sim", "tb_core.sv")
	writeFile(t, core, "module core; endmodule\n")
	writeFile(t, tb, "module tb; endmodule\n")
	writeFile(t, filepath.Join(root, "sim", "notes.txt"), "not verilog")

	cfg := Config{
		Libraries: map[string]LibraryConfig{
			"work": {Files: []string{"rtl/*.sv"}},
		},
		Files: []FileEntry{
			{File: "sim/tb_core.sv", Library: "sim"},
			{File: "sim/notes.txt", Library: "sim"},
		},
	}

	libs, err := cfg.ResolveLibraries(root)
	if err != nil {
		t.Fatalf("ResolveLibraries: %v", err)
	}

	workFiles := findLibFiles(t, libs, "work")
	if !containsPath(workFiles, core) {
		t.Fatalf("expected work lib to include %s, got %v", core, workFiles)
	}

	simFiles := findLibFiles(t, libs, "sim")
	if !containsPath(simFiles, tb) {
		t.Fatalf("expected sim lib to include %s, got %v", tb, simFiles)
	}
	if len(simFiles) != 1 {
		t.Fatalf("expected non-source entries to be dropped, got %v", simFiles)
	}
	if libs[0].Name != "sim" || libs[1].Name != "work" {
		t.Fatalf("expected libraries sorted by name, got %s, %s", libs[0].Name, libs[1].Name)
	}
}

func TestGetFileLibraryWithExplicitFiles(t *testing.T) {
	root := t.TempDir()
	tb := filepath.Join(root, "sim", "tb_core.sv")
	writeFile(t, tb, "module tb; endmodule\n")

	cfg := Config{
		Files: []FileEntry{
			{File: "sim/tb_core.sv", Library: "sim", IsThirdParty: true},
		},
	}

	info := cfg.GetFileLibrary(tb, root)
	if info.LibraryName != "sim" {
		t.Fatalf("expected library sim, got %q", info.LibraryName)
	}
	if !info.IsThirdParty {
		t.Fatalf("expected IsThirdParty true")
	}
}

func TestDoubleStarGlobSkipsHiddenDirs(t *testing.T) {
	root := t.TempDir()
	top := filepath.Join(root, "top.sv")
	deep := filepath.Join(root, "a", "b", "deep.svh")
	writeFile(t, top, "")
	writeFile(t, deep, "")
	writeFile(t, filepath.Join(root, ".svdoc_cache", "stale.sv"), "")
	writeFile(t, filepath.Join(root, "a", "readme.md"), "")

	files, err := DefaultConfig().GetAllFiles(root)
	if err != nil {
		t.Fatalf("GetAllFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %v", files)
	}
	// sorted by path
	if files[0] != deep || files[1] != top {
		t.Fatalf("unexpected files %v", files)
	}
}

func TestExcludeAndIgnorePatterns(t *testing.T) {
	root := t.TempDir()
	keep := filepath.Join(root, "rtl", "keep.sv")
	writeFile(t, keep, "")
	writeFile(t, filepath.Join(root, "rtl", "gen_out.sv"), "")
	writeFile(t, filepath.Join(root, "rtl", "old.v"), "")

	cfg := DefaultConfig()
	cfg.Libraries["work"] = LibraryConfig{
		Files:   []string{"**/*.sv", "**/*.v"},
		Exclude: []string{"rtl/*.v"},
	}
	cfg.Diagnostics.IgnorePatterns = []string{"gen_*.sv"}

	files, err := cfg.GetAllFiles(root)
	if err != nil {
		t.Fatalf("GetAllFiles: %v", err)
	}
	if len(files) != 1 || files[0] != keep {
		t.Fatalf("expected only %s, got %v", keep, files)
	}
}

func TestThirdPartyLibrary(t *testing.T) {
	root := t.TempDir()
	vendor := filepath.Join(root, "vendor", "ip.sv")
	writeFile(t, vendor, "")

	cfg := Config{
		Libraries: map[string]LibraryConfig{
			"ip": {Files: []string{"vendor/**/*.sv"}, IsThirdParty: true},
		},
	}
	libs, err := cfg.FileLibraries(root)
	if err != nil {
		t.Fatalf("FileLibraries: %v", err)
	}
	info, ok := libs[vendor]
	if !ok {
		t.Fatalf("expected %s to resolve, got %v", vendor, libs)
	}
	if info.LibraryName != "ip" || !info.IsThirdParty {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestMatchSuffix(t *testing.T) {
	tests := []struct {
		path, pattern string
		want          bool
	}{
		{"a/b/c.sv", "*.sv", true},
		{"a/b/c.sv", "/*.sv", true},
		{"a/b/c.sv", "b/*.sv", true},
		{"a/b/c.sv", "x/*.sv", false},
		{"c.svh", "*.sv", false},
	}
	for _, tt := range tests {
		if got := matchSuffix(filepath.FromSlash(tt.path), filepath.FromSlash(tt.pattern)); got != tt.want {
			t.Errorf("matchSuffix(%q, %q) = %v, want %v", tt.path, tt.pattern, got, tt.want)
		}
	}
}

func findLibFiles(t *testing.T, libs []ResolvedLibrary, name string) []string {
	t.Helper()
	for _, lib := range libs {
		if lib.Name == name {
			return lib.Files
		}
	}
	t.Fatalf("library %s not found", name)
	return nil
}

func containsPath(files []string, target string) bool {
	for _, f := range files {
		if filepath.Clean(f) == filepath.Clean(target) {
			return true
		}
	}
	return false
}
