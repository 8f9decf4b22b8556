package doc_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/svdoc/internal/doc"
	"github.com/robert-at-pretension-io/svdoc/internal/parser"
)

// backendSources are documented in both parser backends the same way.
var backendSources = map[string]string{
	"adder port": `// Doubles the input.
module adder(
  input logic [7:0] a,
  // The doubled value.
  output logic [7:0] y
);
endmodule
`,
	"nets": `module m;
  // Control lines.
  //   Active high.
  wire a, b, c;
endmodule
`,
	"package": `package p;
  // Byte wide.
  typedef logic [7:0] byte_t;
  // State register.
  byte_t state, next;
  // Counter.
  var logic [3:0] count = 0;
endpackage
`,
	"params": `module m #(
  // Bus width.
  parameter int W = 8,
  D = 2
) ();
  // Derived sizes.
  localparam int A = W * 2, B = W / 2;
endmodule
`,
	"nested": `// Outer.
module outer;
  // Inner.
  module inner;
    // Deep signal.
    logic s;
  endmodule
endmodule
`,
	"forward typedef": `module m;
  // First.
  wire a;
  // Forward.
  typedef struct s;
  // Last.
  wire b;
endmodule
`,
	"opaque": `// Bus.
interface bus_if;
  logic valid;
endinterface

// Top.
module top;
endmodule
`,
	"comments": `module m;
  // a
  /* b */
  // c
  wire x;
  wire w; // trailing
  wire y;
endmodule
`,
	"non-ansi": `// Legacy.
module legacy(a, y);
  input a;
  // Output.
  output y;
  // Holding register.
  reg r;
endmodule
`,
	"escaped": "module \\bus[0] (input a);\nendmodule\n",
	"adder":   adderMinimal,
	"generate": `module m;
  generate
    if (1) begin : g
      // Inside generate.
      logic a;
    end
  endgenerate
  for (genvar i = 0; i < 2; i++) begin : lp
    // Looped.
    logic z;
  end
endmodule
`,
	"generate case": generateCaseSource,
	"count": `package p;
  typedef int t;
endpackage
module m(input a);
  module n;
    logic x, y;
  endmodule
endmodule
`,
}

func TestBackendsProduceTheSameContext(t *testing.T) {
	builtin := parser.New(parser.WithBackend(parser.BackendBuiltin))
	treeSitter := parser.New(parser.WithBackend(parser.BackendTreeSitter), parser.WithFallback(""))

	for name, src := range backendSources {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			bt, err := builtin.Parse(ctx, "t.sv", []byte(src))
			require.NoError(t, err)
			tt, err := treeSitter.Parse(ctx, "t.sv", []byte(src))
			require.NoError(t, err)

			want := doc.New(bt).Data
			require.False(t, want.Empty())
			assert.Equal(t, want, doc.New(tt).Data)
		})
	}
}
