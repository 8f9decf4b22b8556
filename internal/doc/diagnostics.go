package doc

import (
	"fmt"
	"io"
	"log/slog"
)

// Severity of a diagnostic.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Diagnostic codes emitted while building a Doc.
const (
	// CodeOpaqueDeclaration marks a declaration the parser could not structure.
	CodeOpaqueDeclaration = "opaque-declaration"
	// CodeUnsupportedDeclaration marks a declaration form with no item mapping.
	CodeUnsupportedDeclaration = "unsupported-declaration"
	// CodeMissingNode marks a scope without a syntax node.
	CodeMissingNode = "missing-node"
)

// Diagnostic is one advisory event raised while extracting documentation.
// Diagnostics never stop extraction.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Message  string   `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d: %s: %s [%s]", d.File, d.Line, d.Severity, d.Message, d.Code)
}

// Diagnostics collects diagnostics for one file and mirrors them to a logger.
type Diagnostics struct {
	file  string
	log   *slog.Logger
	items []Diagnostic
}

func newDiagnostics(file string, log *slog.Logger) *Diagnostics {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Diagnostics{file: file, log: log}
}

// Warn records a warning.
func (d *Diagnostics) Warn(code string, line int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	d.items = append(d.items, Diagnostic{
		Severity: SeverityWarning,
		Code:     code,
		File:     d.file,
		Line:     line,
		Message:  msg,
	})
	d.log.Warn(msg, "file", d.file, "line", line, "code", code)
}

// Debug logs structural detail. It is not collected.
func (d *Diagnostics) Debug(msg string, args ...any) {
	d.log.Debug(msg, append([]any{"file", d.file}, args...)...)
}

// List returns the collected diagnostics in emission order.
func (d *Diagnostics) List() []Diagnostic {
	return d.items
}
