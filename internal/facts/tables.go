package facts

import (
	"sort"

	"github.com/robert-at-pretension-io/svdoc/internal/config"
	"github.com/robert-at-pretension-io/svdoc/internal/doc"
)

// Tables is the relational view of a documentation library.
// Each slice is a relation (table) with flat rows. Scope columns hold the
// dotted path of the enclosing packages and modules, empty at file level.
type Tables struct {
	Files    []FileRow    `json:"files"`
	Packages []PackageRow `json:"packages"`
	Modules  []ModuleRow  `json:"modules"`
	Params   []ParamRow   `json:"params"`
	Ports    []PortRow    `json:"ports"`
	Types    []TypeRow    `json:"types"`
	Signals  []SignalRow  `json:"signals"`
}

type FileRow struct {
	Path         string `json:"path"`
	Library      string `json:"library"`
	IsThirdParty bool   `json:"is_third_party"`
}

type PackageRow struct {
	Name  string `json:"name"`
	Scope string `json:"scope"`
	Doc   string `json:"doc"`
	File  string `json:"file"`
	Line  int    `json:"line"`
}

type ModuleRow struct {
	Name  string `json:"name"`
	Scope string `json:"scope"`
	Doc   string `json:"doc"`
	File  string `json:"file"`
	Line  int    `json:"line"`
}

type ParamRow struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Local bool   `json:"local"`
	Scope string `json:"scope"`
	Doc   string `json:"doc"`
	File  string `json:"file"`
	Line  int    `json:"line"`
}

type PortRow struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Scope string `json:"scope"`
	Doc   string `json:"doc"`
	File  string `json:"file"`
	Line  int    `json:"line"`
}

type TypeRow struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Scope string `json:"scope"`
	Doc   string `json:"doc"`
	File  string `json:"file"`
	Line  int    `json:"line"`
}

type SignalRow struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Scope string `json:"scope"`
	Doc   string `json:"doc"`
	File  string `json:"file"`
	Line  int    `json:"line"`
}

// BuildTables flattens lib into relations. fileLibs fills in library
// membership for files the library does not already attribute.
func BuildTables(lib *doc.Library, fileLibs map[string]config.FileLibraryInfo) Tables {
	tables := emptyTables()
	if lib == nil {
		return tables
	}

	seenFiles := make(map[string]bool)
	for _, f := range lib.Files {
		if !seenFiles[f.Path] {
			seenFiles[f.Path] = true
			row := FileRow{Path: f.Path, Library: f.Library, IsThirdParty: f.ThirdParty}
			if info, ok := fileLibs[f.Path]; ok && row.Library == "" {
				row.Library = info.LibraryName
				row.IsThirdParty = row.IsThirdParty || info.IsThirdParty
			}
			tables.Files = append(tables.Files, row)
		}
		tables.addContext(f.Data, f.Path, "")
	}

	sort.Slice(tables.Files, func(i, j int) bool { return tables.Files[i].Path < tables.Files[j].Path })

	return tables
}

func (t *Tables) addContext(c doc.Context, file, scope string) {
	for _, p := range c.Packages {
		t.Packages = append(t.Packages, PackageRow{Name: p.Name, Scope: scope, Doc: p.Doc, File: file, Line: p.Line})
		t.addContext(p.Content, file, qualify(scope, p.Name))
	}
	for _, m := range c.Modules {
		t.Modules = append(t.Modules, ModuleRow{Name: m.Name, Scope: scope, Doc: m.Doc, File: file, Line: m.Line})
		t.addContext(m.Content, file, qualify(scope, m.Name))
	}
	for _, p := range c.Params {
		t.Params = append(t.Params, ParamRow{Name: p.Name, Type: p.Ty, Local: p.Local, Scope: scope, Doc: p.Doc, File: file, Line: p.Line})
	}
	for _, p := range c.Ports {
		t.Ports = append(t.Ports, PortRow{Name: p.Name, Type: p.Ty, Scope: scope, Doc: p.Doc, File: file, Line: p.Line})
	}
	for _, ty := range c.Types {
		t.Types = append(t.Types, TypeRow{Name: ty.Name, Type: ty.Ty, Scope: scope, Doc: ty.Doc, File: file, Line: ty.Line})
	}
	for _, v := range c.Vars {
		t.Signals = append(t.Signals, SignalRow{Name: v.Name, Type: v.Ty, Scope: scope, Doc: v.Doc, File: file, Line: v.Line})
	}
}

func qualify(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}

// Count returns the number of rows across all relations.
func (t Tables) Count() int {
	return len(t.Files) + len(t.Packages) + len(t.Modules) + len(t.Params) +
		len(t.Ports) + len(t.Types) + len(t.Signals)
}

func emptyTables() Tables {
	return Tables{
		Files:    []FileRow{},
		Packages: []PackageRow{},
		Modules:  []ModuleRow{},
		Params:   []ParamRow{},
		Ports:    []PortRow{},
		Types:    []TypeRow{},
		Signals:  []SignalRow{},
	}
}
