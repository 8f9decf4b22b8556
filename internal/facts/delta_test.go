package facts

import "testing"

func TestComputeDeltaAddsAndRemoves(t *testing.T) {
	prev := Tables{
		Modules: []ModuleRow{
			{Name: "a", File: "f.sv", Line: 1},
		},
		Ports: []PortRow{
			{Name: "clk", Type: "input logic", Scope: "a", File: "f.sv", Line: 2},
		},
	}
	next := Tables{
		Modules: []ModuleRow{
			{Name: "b", File: "f.sv", Line: 3},
		},
		Ports: []PortRow{
			{Name: "clk", Type: "input wire", Scope: "b", File: "f.sv", Line: 4},
		},
	}

	delta := ComputeDelta(prev, next)

	if len(delta.Added.Modules) != 1 || delta.Added.Modules[0].Name != "b" {
		t.Fatalf("expected module b added, got %+v", delta.Added.Modules)
	}
	if len(delta.Removed.Modules) != 1 || delta.Removed.Modules[0].Name != "a" {
		t.Fatalf("expected module a removed, got %+v", delta.Removed.Modules)
	}
	if len(delta.Added.Ports) != 1 || delta.Added.Ports[0].Type != "input wire" {
		t.Fatalf("expected port added, got %+v", delta.Added.Ports)
	}
	if len(delta.Removed.Ports) != 1 || delta.Removed.Ports[0].Scope != "a" {
		t.Fatalf("expected port removed, got %+v", delta.Removed.Ports)
	}
	if delta.Empty() {
		t.Fatalf("expected non-empty delta")
	}
}

func TestComputeDeltaDocChangeIsARowChange(t *testing.T) {
	prev := Tables{Signals: []SignalRow{{Name: "s", Doc: "old", File: "f.sv", Line: 1}}}
	next := Tables{Signals: []SignalRow{{Name: "s", Doc: "new", File: "f.sv", Line: 1}}}

	delta := ComputeDelta(prev, next)
	if len(delta.Added.Signals) != 1 || len(delta.Removed.Signals) != 1 {
		t.Fatalf("expected doc edit to replace the row, got %+v", delta)
	}

	same := ComputeDelta(next, next)
	if !same.Empty() {
		t.Fatalf("expected identical snapshots to produce an empty delta, got %+v", same)
	}
}
