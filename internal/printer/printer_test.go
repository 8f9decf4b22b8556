package printer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/robert-at-pretension-io/svdoc/internal/doc"
	"github.com/robert-at-pretension-io/svdoc/internal/indexer"
)

func plain(single bool) (*Printer, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(&buf, WithColor(false), WithSingleLine(single)), &buf
}

func TestParseErrorPretty(t *testing.T) {
	p, buf := plain(false)
	p.ParseError(indexer.ParseError{
		File:       "rtl/top.sv",
		Line:       12,
		Column:     5,
		Length:     3,
		Message:    "expected ';'",
		SourceLine: "  a = b c;",
		Hint:       "statements end with ';'",
	})

	want := "Error: parse error\n" +
		"   --> rtl/top.sv:12:5\n" +
		"   |\n" +
		"12 |   a = b c;\n" +
		"   |     ^^^ expected ';'\n" +
		"   = hint: statements end with ';'\n" +
		"\n"
	assert.Equal(t, want, buf.String())
}

func TestParseErrorCaretClampedAndTabs(t *testing.T) {
	p, buf := plain(false)
	p.ParseError(indexer.ParseError{
		File:       "a.sv",
		Line:       1,
		Column:     3,
		Length:     40,
		Message:    "unterminated string",
		SourceLine: "\t x\"ab",
	})
	assert.Contains(t, buf.String(), "  | \t ^^^^ unterminated string\n")
}

func TestParseErrorZeroLengthStillUnderlines(t *testing.T) {
	p, buf := plain(false)
	p.ParseError(indexer.ParseError{File: "a.sv", Line: 3, Column: 1, Message: "missing 'endmodule'", SourceLine: ""})
	assert.Contains(t, buf.String(), "  | ^ missing 'endmodule'\n")
}

func TestParseErrorSingleLine(t *testing.T) {
	p, buf := plain(true)
	p.ParseError(indexer.ParseError{
		File:       "rtl/top.sv",
		Line:       2,
		Column:     10,
		Message:    "expected ')'",
		SourceLine: "module m(input a",
	})
	assert.Equal(t, "Error\trtl/top.sv:2:10\tinput a\thint: parse error: expected ')'\n", buf.String())
}

func TestParseErrorWithoutPosition(t *testing.T) {
	p, buf := plain(false)
	p.ParseError(indexer.ParseError{File: "big.sv", Message: "file too large"})
	assert.Equal(t, "Error: big.sv: file too large\n", buf.String())
}

func TestError(t *testing.T) {
	p, buf := plain(false)
	p.Error(errors.New("no sources found"))
	assert.Equal(t, "Error: no sources found\n", buf.String())
}

func TestDiagnostic(t *testing.T) {
	d := doc.Diagnostic{
		Severity: doc.SeverityWarning,
		Code:     doc.CodeOpaqueDeclaration,
		File:     "rtl/top.sv",
		Line:     7,
		Message:  "interface body skipped",
	}

	p, buf := plain(false)
	p.Diagnostic(d)
	assert.Equal(t, "Warning[opaque-declaration]: interface body skipped\n   --> rtl/top.sv:7\n\n", buf.String())

	p, buf = plain(true)
	d.Severity = doc.SeverityInfo
	p.Diagnostic(d)
	assert.Equal(t, "Info\trtl/top.sv:7\tinterface body skipped\t[opaque-declaration]\n", buf.String())
}

func TestNewDetectsNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)
	assert.False(t, p.color)
}
