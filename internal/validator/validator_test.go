package validator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/robert-at-pretension-io/svdoc/internal/doc"
	"github.com/robert-at-pretension-io/svdoc/internal/facts"
	"github.com/robert-at-pretension-io/svdoc/internal/parser"
)

const sample = `// Bus helpers.
package bus_pkg;
  // Address width.
  localparam int AW = 32;
  // Address.
  typedef logic [AW-1:0] addr_t;
endpackage

// Register slice.
module slice #(parameter int W = 8) (
  input  logic         clk,
  // Data in.
  input  logic [W-1:0] d,
  output logic [W-1:0] q
);
  // Pipeline register.
  logic [W-1:0] r;
endmodule
`

func sampleLibrary(t *testing.T) *doc.Library {
	t.Helper()
	tree, err := parser.New().Parse(context.Background(), "rtl/slice.sv", []byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	lib := doc.NewLibrary("sample")
	lib.Add(doc.New(tree), "work", false)
	return lib
}

func TestFactsValidatorAcceptsBuiltTables(t *testing.T) {
	v, err := NewFactsValidator()
	if err != nil {
		t.Fatalf("new facts validator: %v", err)
	}

	tables := facts.BuildTables(sampleLibrary(t), nil)
	if len(tables.Modules) != 1 || len(tables.Ports) != 3 {
		t.Fatalf("unexpected tables %+v", tables)
	}
	if err := v.Validate(tables); err != nil {
		t.Fatalf("expected valid tables, got error: %v", err)
	}
	if err := ValidateFacts(tables); err != nil {
		t.Fatalf("shared validator: %v", err)
	}
}

func TestFactsValidatorRejectsInvalidTables(t *testing.T) {
	v, err := NewFactsValidator()
	if err != nil {
		t.Fatalf("new facts validator: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*facts.Tables)
	}{
		{"non source path", func(tb *facts.Tables) {
			tb.Files = append(tb.Files, facts.FileRow{Path: "notes.txt", Library: "work"})
		}},
		{"zero line", func(tb *facts.Tables) {
			tb.Modules = append(tb.Modules, facts.ModuleRow{Name: "m", File: "a.sv", Line: 0})
		}},
		{"empty name", func(tb *facts.Tables) {
			tb.Signals = append(tb.Signals, facts.SignalRow{Name: "", File: "a.sv", Line: 1})
		}},
		{"null relation", func(tb *facts.Tables) {
			tb.Ports = nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tables := facts.BuildTables(nil, nil)
			tt.mutate(&tables)
			if err := v.Validate(tables); err == nil {
				t.Fatalf("expected validation error, got nil")
			}
			if errs := v.ValidationErrors(tables); len(errs) == 0 {
				t.Fatalf("expected validation messages")
			}
		})
	}
}

func TestDeltaValidator(t *testing.T) {
	v, err := NewDeltaValidator()
	if err != nil {
		t.Fatalf("new delta validator: %v", err)
	}
	next := facts.BuildTables(sampleLibrary(t), nil)
	delta := facts.ComputeDelta(facts.BuildTables(nil, nil), next)
	if err := v.Validate(delta); err != nil {
		t.Fatalf("expected valid delta, got %v", err)
	}
	if err := ValidateDelta(delta); err != nil {
		t.Fatalf("shared validator: %v", err)
	}
}

func TestDocValidator(t *testing.T) {
	v, err := NewDocValidator()
	if err != nil {
		t.Fatalf("new doc validator: %v", err)
	}

	lib := sampleLibrary(t)
	if err := v.Validate(lib); err != nil {
		t.Fatalf("expected valid library, got %v", err)
	}
	if err := ValidateDoc(doc.NewLibrary("")); err != nil {
		t.Fatalf("expected empty library to validate, got %v", err)
	}

	if err := v.ValidateJSON([]byte(`{"files": [], "data": {"modules": [{"name": "m", "doc": "", "line": 0, "content": {}}]}}`)); err == nil {
		t.Fatalf("expected zero line to be rejected")
	}

	for path, valid := range map[string]bool{
		"rtl/slice.sv":  true,
		"rtl/defs.svh":  true,
		"rtl/slice.txt": false,
		"rtl/sv":        false,
	} {
		lib.Files[0].Path = path
		data, err := json.Marshal(lib)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		err = v.ValidateJSON(data)
		if valid && err != nil {
			t.Fatalf("expected %s to validate, got %v", path, err)
		}
		if !valid && err == nil {
			t.Fatalf("expected %s to be rejected", path)
		}
	}
}
