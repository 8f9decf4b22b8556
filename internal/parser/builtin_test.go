package parser

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/svdoc/internal/syntax"
)

func parseSource(t *testing.T, src string) *syntax.Tree {
	t.Helper()
	tree, err := New(WithBackend(BackendBuiltin)).Parse(context.Background(), "test.sv", []byte(src))
	require.NoError(t, err)
	require.NotNil(t, tree.Root)
	return tree
}

func parseFailure(t *testing.T, src string) *syntax.ParseError {
	t.Helper()
	_, err := New(WithBackend(BackendBuiltin)).Parse(context.Background(), "bad.sv", []byte(src))
	require.Error(t, err)
	var perr *syntax.ParseError
	require.True(t, errors.As(err, &perr), "expected *syntax.ParseError, got %T: %v", err, err)
	return perr
}

const adderSource = `// A simple adder.
module adder #(
    // Width of the operands.
    parameter int W = 8
) (
    // First operand.
    input  logic [W-1:0] a,
    input  logic [W-1:0] b,
    output logic [W:0]   y
);
    // Internal carry.
    wire c0, c1;
endmodule
`

func TestParseAnsiModule(t *testing.T) {
	tree := parseSource(t, adderSource)
	require.Len(t, tree.Root.Items, 1)

	m, ok := tree.Root.Items[0].(*syntax.ModuleAnsi)
	require.True(t, ok, "got %T", tree.Root.Items[0])
	assert.Equal(t, "module", m.Keyword)
	assert.Equal(t, "adder", tree.Text(m.Name))

	require.Len(t, m.Params, 1)
	p := m.Params[0].(*syntax.ParamDecl)
	assert.Equal(t, "parameter", p.Keyword)
	assert.Equal(t, "int", tree.TextOf(p.Type))
	require.Len(t, p.Assigns, 1)
	assert.Equal(t, "W", tree.Text(p.Assigns[0].Name))

	require.Len(t, m.Ports, 3)
	a := m.Ports[0].(*syntax.AnsiPortNet)
	assert.Equal(t, "a", tree.Text(a.Name))
	assert.Equal(t, "input  logic [W-1:0]", tree.TextOf(a.Header))
	y := m.Ports[2].(*syntax.AnsiPortNet)
	assert.Equal(t, "output logic [W:0]", tree.TextOf(y.Header))

	require.Len(t, m.Items, 1)
	net := m.Items[0].(*syntax.NetDeclNetType)
	assert.Equal(t, "wire", tree.TextOf(net.Qualifiers()...))
	require.Len(t, net.Assigns, 2)
	assert.Equal(t, "c1", tree.Text(net.Assigns[1].Name))

	require.Len(t, tree.Comments, 4)
	assert.Equal(t, " A simple adder.", tree.Comments[0].Text)
}

func TestParseModuleHeaderForms(t *testing.T) {
	tree := parseSource(t, `
module n(a, b);
  input a;
  output [3:0] b;
endmodule

module w(.*);
endmodule

module e();
endmodule

extern module x(input a);

module top;
endmodule
`)
	require.Len(t, tree.Root.Items, 5)

	n := tree.Root.Items[0].(*syntax.ModuleNonansi)
	require.Len(t, n.Ports, 2)
	assert.Equal(t, "b", tree.Text(n.Ports[1]))
	require.Len(t, n.Items, 2)
	out := n.Items[1].(*syntax.PortDecl)
	assert.Equal(t, "output", tree.TextOf(out.Direction))
	require.Len(t, out.Names, 1)
	assert.Equal(t, "b", tree.Text(out.Names[0]))

	assert.IsType(t, &syntax.ModuleWildcard{}, tree.Root.Items[1])
	assert.IsType(t, &syntax.ModuleNonansi{}, tree.Root.Items[2])
	ext := tree.Root.Items[3].(*syntax.ModuleExtern)
	assert.Equal(t, "x", tree.Text(ext.Name))
	top := tree.Root.Items[4].(*syntax.ModuleAnsi)
	assert.Empty(t, top.Ports)
}

func TestParseParameterPortList(t *testing.T) {
	tree := parseSource(t, `
module p #(parameter A = 1, B = 2, parameter type T = int, localparam logic [3:0] L = 4'h3) ();
endmodule
`)
	m := tree.Root.Items[0].(*syntax.ModuleNonansi)
	require.Len(t, m.Params, 3)

	ab := m.Params[0].(*syntax.ParamDecl)
	assert.Nil(t, ab.Type)
	require.Len(t, ab.Assigns, 2)
	assert.Equal(t, "B", tree.Text(ab.Assigns[1].Name))
	assert.Equal(t, "parameter A = 1, B = 2", tree.Text(ab))

	ty := m.Params[1].(*syntax.ParamTypeDecl)
	require.Len(t, ty.Names, 1)
	assert.Equal(t, "T", tree.Text(ty.Names[0]))

	l := m.Params[2].(*syntax.ParamDecl)
	assert.True(t, l.Local())
	assert.Equal(t, "logic [3:0]", tree.TextOf(l.Type))
}

func TestParsePackage(t *testing.T) {
	tree := parseSource(t, `
package pkg;
  typedef logic [7:0] byte_t;
  typedef struct packed { logic a; logic b; } pair_t;
  typedef class fwd;
  localparam int N = 4, M = 5;
  function automatic int f(int x);
    return x + 1;
  endfunction
endpackage : pkg
`)
	pkg := tree.Root.Items[0].(*syntax.PackageDecl)
	assert.Equal(t, "pkg", tree.Text(pkg.Name))
	require.Len(t, pkg.Items, 5)

	b := pkg.Items[0].(*syntax.TypeDeclDataType)
	assert.Equal(t, "byte_t", tree.Text(b.Name))
	assert.Equal(t, "logic [7:0]", tree.TextOf(b.DataType))

	pair := pkg.Items[1].(*syntax.TypeDeclDataType)
	assert.Equal(t, "struct packed { logic a; logic b; }", tree.TextOf(pair.DataType))

	fwd := pkg.Items[2].(*syntax.TypeDeclForward)
	assert.Equal(t, "fwd", tree.Text(fwd.Name))

	nm := pkg.Items[3].(*syntax.ParamDecl)
	assert.True(t, nm.Local())
	require.Len(t, nm.Assigns, 2)
	assert.Equal(t, "M", tree.Text(nm.Assigns[1].Name))

	f := pkg.Items[4].(*syntax.Opaque)
	assert.Equal(t, "function", f.Kind)
	assert.Equal(t, "f", tree.Text(f.Name))
}

func TestParseSkimsBehaviour(t *testing.T) {
	tree := parseSource(t, `
module top;
  logic clk;
  always_ff @(posedge clk) begin
    if (en) q <= d; else q <= 0;
  end
  assign y = a & b;
  sub #(.W(8)) u_sub (.a(a), .y(y));
  sub u2 (.*);
  initial begin : init
    fork
      x = 1;
    join
    wait fork;
  end
  generate
    for (genvar i = 0; i < 4; i++) begin : g
      wire w;
    end
  endgenerate
  if (W > 1) begin : gi
    logic z;
  end else begin
    logic zz;
  end
endmodule
`)
	m := tree.Root.Items[0].(*syntax.ModuleAnsi)
	kinds := make([]string, 0, len(m.Items))
	for _, it := range m.Items {
		kinds = append(kinds, syntax.Kind(it))
	}
	assert.Equal(t, []string{
		"data_decl",
		"other:always_ff",
		"other:assign",
		"other:instantiation",
		"other:instantiation",
		"other:initial",
		"block:generate",
		"block:if",
	}, kinds)

	var names []string
	syntax.Walk(m, func(n syntax.Node, _ int) bool {
		switch v := n.(type) {
		case *syntax.DataDecl:
			for _, a := range v.Assigns {
				names = append(names, tree.Text(a.Name))
			}
		case *syntax.NetDeclNetType:
			for _, a := range v.Assigns {
				names = append(names, tree.Text(a.Name))
			}
		}
		return true
	})
	assert.Equal(t, []string{"clk", "w", "z", "zz"}, names)
}

func TestParseGenerateCase(t *testing.T) {
	tree := parseSource(t, `
module m;
  case (P)
    0, 1: begin : small
      wire v;
    end
    2'b10: logic w;
    default: begin
      wire u;
    end
  endcase
  logic after;
endmodule
`)
	m := tree.Root.Items[0].(*syntax.ModuleAnsi)
	require.Len(t, m.Items, 2)
	c, ok := m.Items[0].(*syntax.Block)
	require.True(t, ok, "got %T", m.Items[0])
	assert.Equal(t, "block:case", syntax.Kind(c))
	require.Len(t, c.Items, 3)
	assert.Equal(t, "block:begin", syntax.Kind(c.Items[0]))
	assert.Equal(t, "data_decl", syntax.Kind(c.Items[1]))
	assert.Equal(t, "block:begin", syntax.Kind(c.Items[2]))

	var names []string
	syntax.Walk(m, func(n syntax.Node, _ int) bool {
		switch v := n.(type) {
		case *syntax.DataDecl:
			for _, a := range v.Assigns {
				names = append(names, tree.Text(a.Name))
			}
		case *syntax.NetDeclNetType:
			for _, a := range v.Assigns {
				names = append(names, tree.Text(a.Name))
			}
		}
		return true
	})
	assert.Equal(t, []string{"v", "w", "u", "after"}, names)

	perr := parseFailure(t, "module m;\n  case (P)\n    0: wire v;\nendmodule\n")
	assert.Contains(t, perr.Message, "endcase")
}

func TestParseNetForms(t *testing.T) {
	tree := parseSource(t, `
nettype real wreal;
module nets;
  wire (strong0, weak1) vectored [3:0] #2 n1 = 4'b0, n2;
  wreal r1, r2;
  interconnect bus;
  pkg::word_t v1, v2;
  var logic [1:0] v3;
  const int C = 3;
endmodule
`)
	require.Len(t, tree.Root.Items, 2)
	nt := tree.Root.Items[0].(*syntax.Opaque)
	assert.Equal(t, "nettype", nt.Kind)
	assert.Equal(t, "wreal", tree.Text(nt.Name))

	m := tree.Root.Items[1].(*syntax.ModuleAnsi)
	require.Len(t, m.Items, 6)

	n := m.Items[0].(*syntax.NetDeclNetType)
	assert.Equal(t, "(strong0, weak1)", tree.TextOf(n.Strength))
	assert.Equal(t, "vectored", tree.TextOf(n.VectorScalar))
	assert.Equal(t, "[3:0]", tree.TextOf(n.DataType))
	assert.Equal(t, "#2", tree.TextOf(n.Delay))
	assert.Equal(t, "wire (strong0, weak1) vectored [3:0] #2", tree.TextOf(n.Qualifiers()...))
	require.Len(t, n.Assigns, 2)

	r := m.Items[1].(*syntax.NetDeclNetTypeIdentifier)
	assert.Equal(t, "wreal", tree.TextOf(r.NetType))
	require.Len(t, r.Assigns, 2)

	bus := m.Items[2].(*syntax.NetDeclInterconnect)
	assert.Equal(t, "bus", tree.Text(bus.Name))

	user := m.Items[3].(*syntax.DataDecl)
	assert.Equal(t, "pkg::word_t", tree.TextOf(user.Qualifiers()...))
	require.Len(t, user.Assigns, 2)

	v := m.Items[4].(*syntax.DataDecl)
	assert.Equal(t, "var logic [1:0]", tree.TextOf(v.Qualifiers()...))

	c := m.Items[5].(*syntax.DataDecl)
	assert.Equal(t, "const int", tree.TextOf(c.Qualifiers()...))
}

func TestParseOpaqueDeclarations(t *testing.T) {
	tree := parseSource(t, `
interface bus_if(input clk);
  logic valid;
  modport m(input valid);
endinterface

class base;
  function new(); endfunction
endclass : base

module uses(bus_if.master port, input logic clk);
  default clocking cb @(posedge clk);
  endclocking
  task automatic run();
  endtask
endmodule
`)
	require.Len(t, tree.Root.Items, 3)
	intf := tree.Root.Items[0].(*syntax.Opaque)
	assert.Equal(t, "interface", intf.Kind)
	assert.Equal(t, "bus_if", tree.Text(intf.Name))

	cls := tree.Root.Items[1].(*syntax.Opaque)
	assert.Equal(t, "class", cls.Kind)
	assert.Equal(t, "base", tree.Text(cls.Name))

	m := tree.Root.Items[2].(*syntax.ModuleAnsi)
	require.Len(t, m.Ports, 2)
	port := m.Ports[0].(*syntax.AnsiPortNet)
	assert.Equal(t, "bus_if.master", tree.TextOf(port.Header))
	require.Len(t, m.Items, 2)
	assert.Equal(t, "clocking", m.Items[0].(*syntax.Opaque).Kind)
	run := m.Items[1].(*syntax.Opaque)
	assert.Equal(t, "task", run.Kind)
	assert.Equal(t, "run", tree.Text(run.Name))
}

func TestParseDirectivesAttributesAndEscapes(t *testing.T) {
	tree := parseSource(t, "`timescale 1ns/1ps\n"+
		"`define W 8\n"+
		"(* keep *) module \\my-mod #(parameter P = `W) (input logic [`W-1:0] a, var logic b);\n"+
		"`ifdef FOO\n"+
		"  logic x;\n"+
		"`endif\n"+
		"endmodule\n")
	require.Len(t, tree.Root.Items, 1)
	m := tree.Root.Items[0].(*syntax.ModuleAnsi)
	assert.True(t, m.Name.Escaped)
	assert.Equal(t, `\my-mod`, tree.Text(m.Name))
	assert.True(t, strings.HasPrefix(tree.Text(m), "(* keep *)"))
	require.Len(t, m.Ports, 2)
	assert.IsType(t, &syntax.AnsiPortVariable{}, m.Ports[1])
	require.Len(t, m.Items, 1)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
		msg  string
	}{
		{"missing endmodule", "module m;\n  wire a;\n", 1, "missing endmodule"},
		{"missing endpackage", "\npackage p;\n", 2, "missing endpackage"},
		{"unterminated comment", "module m;\n/* open\nendmodule\n", 2, "unterminated block comment"},
		{"unterminated string", "module m;\ninitial $display(\"x\n);\nendmodule\n", 2, "unterminated string"},
		{"stray end", "end\n", 1, "unexpected"},
		{"mismatched close", "module m;\nendpackage\n", 2, "expected endmodule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perr := parseFailure(t, tt.src)
			assert.Equal(t, tt.line, perr.Line)
			assert.Contains(t, perr.Message, tt.msg)
			assert.Equal(t, "bad.sv", perr.Path)
		})
	}
}

func TestParseRejectsOversizeAndInvalidContent(t *testing.T) {
	p := New(WithMaxFileSize(8))
	_, err := p.Parse(context.Background(), "big.sv", []byte("module m; endmodule"))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = New().Parse(context.Background(), "bin.sv", []byte{0xff, 0xfe})
	assert.ErrorIs(t, err, ErrInvalidContent)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New().Parse(ctx, "c.sv", []byte("module m; endmodule"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend("")
	require.NoError(t, err)
	assert.Equal(t, BackendTreeSitter, b)

	b, err = ParseBackend("builtin")
	require.NoError(t, err)
	assert.Equal(t, BackendBuiltin, b)

	b, err = ParseBackend("tree-sitter")
	require.NoError(t, err)
	assert.Equal(t, BackendTreeSitter, b)

	_, err = ParseBackend("verilator")
	assert.Error(t, err)
}
