package facts

import (
	"testing"

	"github.com/robert-at-pretension-io/svdoc/internal/config"
	"github.com/robert-at-pretension-io/svdoc/internal/doc"
)

func sampleLibrary() *doc.Library {
	lib := doc.NewLibrary("t")
	lib.Add(&doc.Doc{
		Path: "rtl/b.sv",
		Data: doc.Context{
			Modules: []doc.ModuleItem{{
				Name: "outer",
				Doc:  "Outer.",
				Line: 1,
				Content: doc.Context{
					Params: []doc.ParamItem{{Name: "W", Ty: "int", Line: 2}},
					Ports:  []doc.PortItem{{Name: "clk", Ty: "input logic", Line: 3}},
					Modules: []doc.ModuleItem{{
						Name:    "inner",
						Line:    5,
						Content: doc.Context{Vars: []doc.VarItem{{Name: "s", Ty: "logic", Doc: "Deep.", Line: 6}}},
					}},
				},
			}},
		},
	}, "", false)
	lib.Add(&doc.Doc{
		Path: "pkg/a.sv",
		Data: doc.Context{
			Packages: []doc.PackageItem{{
				Name:    "p",
				Line:    1,
				Content: doc.Context{Types: []doc.TypeItem{{Name: "byte_t", Ty: "logic [7:0]", Line: 2}}},
			}},
		},
	}, "pkgs", true)
	return lib
}

func TestBuildTablesPopulatesCoreRelations(t *testing.T) {
	libs := map[string]config.FileLibraryInfo{
		"rtl/b.sv": {LibraryName: "work"},
	}

	tables := BuildTables(sampleLibrary(), libs)

	if len(tables.Files) != 2 {
		t.Fatalf("expected 2 file rows, got %d", len(tables.Files))
	}
	if tables.Files[0].Path != "pkg/a.sv" || tables.Files[0].Library != "pkgs" || !tables.Files[0].IsThirdParty {
		t.Fatalf("unexpected first file row %+v", tables.Files[0])
	}
	if tables.Files[1].Library != "work" {
		t.Fatalf("expected library from fileLibs, got %+v", tables.Files[1])
	}
	if len(tables.Modules) != 2 {
		t.Fatalf("expected 2 module rows, got %d", len(tables.Modules))
	}
	if tables.Modules[1].Name != "inner" || tables.Modules[1].Scope != "outer" {
		t.Fatalf("expected nested module scoped to outer, got %+v", tables.Modules[1])
	}
	if len(tables.Signals) != 1 || tables.Signals[0].Scope != "outer.inner" || tables.Signals[0].Doc != "Deep." {
		t.Fatalf("unexpected signal rows %+v", tables.Signals)
	}
	if len(tables.Params) != 1 || len(tables.Ports) != 1 {
		t.Fatalf("expected 1 param and 1 port row, got %d and %d", len(tables.Params), len(tables.Ports))
	}
	if len(tables.Types) != 1 || tables.Types[0].Scope != "p" || tables.Types[0].File != "pkg/a.sv" {
		t.Fatalf("unexpected type rows %+v", tables.Types)
	}
	if tables.Count() != 2+1+2+1+1+1+1 {
		t.Fatalf("unexpected row count %d", tables.Count())
	}
}

func TestBuildTablesNilLibrary(t *testing.T) {
	tables := BuildTables(nil, nil)
	if tables.Count() != 0 || tables.Files == nil {
		t.Fatalf("expected empty non-nil tables, got %+v", tables)
	}
}
