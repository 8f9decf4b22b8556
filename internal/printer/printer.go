// Package printer reports parse errors and diagnostics on a terminal.
package printer

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/robert-at-pretension-io/svdoc/internal/doc"
	"github.com/robert-at-pretension-io/svdoc/internal/indexer"
)

var (
	colorError   = lipgloss.Color("9")
	colorWarning = lipgloss.Color("11")
	colorInfo    = lipgloss.Color("14")
	colorGutter  = lipgloss.Color("12")
	colorText    = lipgloss.Color("15")
)

type styles struct {
	err     lipgloss.Style
	warning lipgloss.Style
	info    lipgloss.Style
	gutter  lipgloss.Style
	text    lipgloss.Style
	caret   lipgloss.Style
}

func newStyles() styles {
	return styles{
		err:     lipgloss.NewStyle().Bold(true).Foreground(colorError),
		warning: lipgloss.NewStyle().Bold(true).Foreground(colorWarning),
		info:    lipgloss.NewStyle().Bold(true).Foreground(colorInfo),
		gutter:  lipgloss.NewStyle().Foreground(colorGutter),
		text:    lipgloss.NewStyle().Foreground(colorText),
		caret:   lipgloss.NewStyle().Foreground(colorWarning),
	}
}

// Printer writes human-readable reports to a writer.
type Printer struct {
	w      io.Writer
	color  bool
	single bool
	styles styles
}

// Option configures a Printer.
type Option func(*Printer)

// WithSingleLine prints every report on one tab-separated line.
func WithSingleLine(single bool) Option {
	return func(p *Printer) { p.single = single }
}

// WithColor forces color on or off.
func WithColor(color bool) Option {
	return func(p *Printer) { p.color = color }
}

// New creates a Printer on w. Color is enabled when w is a terminal.
func New(w io.Writer, opts ...Option) *Printer {
	p := &Printer{w: w, color: isTerminal(w), styles: newStyles()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *Printer) paint(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

// ParseError reports a file that failed to parse. With a known position the
// offending source line is shown with the span underlined.
func (p *Printer) ParseError(e indexer.ParseError) {
	if e.Line <= 0 {
		p.Error(fmt.Errorf("%s: %s", e.File, e.Message))
		return
	}
	if p.single {
		p.parseErrorSingle(e)
		return
	}

	var sb strings.Builder
	lineNo := strconv.Itoa(e.Line)
	pad := strings.Repeat(" ", len(lineNo)+1)

	sb.WriteString(p.paint(p.styles.err, "Error"))
	sb.WriteString(p.paint(p.styles.text, ": parse error") + "\n")
	sb.WriteString(p.paint(p.styles.gutter, "   -->"))
	fmt.Fprintf(&sb, " %s:%d:%d\n", e.File, e.Line, e.Column)
	sb.WriteString(p.paint(p.styles.gutter, pad+"|") + "\n")
	sb.WriteString(p.paint(p.styles.gutter, lineNo+" |"))
	sb.WriteString(" " + e.SourceLine + "\n")
	sb.WriteString(p.paint(p.styles.gutter, pad+"|"))
	sb.WriteString(" " + caretPrefix(e.SourceLine, e.Column))
	sb.WriteString(p.paint(p.styles.caret, strings.Repeat("^", caretWidth(e.SourceLine, e.Column, e.Length))))
	sb.WriteString(" " + p.paint(p.styles.caret, e.Message) + "\n")
	if e.Hint != "" {
		sb.WriteString(p.paint(p.styles.gutter, pad+"= "))
		sb.WriteString(p.paint(p.styles.caret, "hint: "+e.Hint) + "\n")
	}
	sb.WriteString("\n")
	io.WriteString(p.w, sb.String())
}

func (p *Printer) parseErrorSingle(e indexer.ParseError) {
	var sb strings.Builder
	sb.WriteString(p.paint(p.styles.err, "Error"))
	sb.WriteString("\t" + p.paint(p.styles.gutter, fmt.Sprintf("%s:%d:%d", e.File, e.Line, e.Column)))
	sb.WriteString("\t" + p.paint(p.styles.text, fromColumn(e.SourceLine, e.Column)))
	sb.WriteString("\t" + p.paint(p.styles.caret, "hint: parse error: "+e.Message))
	if e.Hint != "" {
		sb.WriteString(p.paint(p.styles.caret, "; "+e.Hint))
	}
	sb.WriteString("\n")
	io.WriteString(p.w, sb.String())
}

// Error reports a plain error.
func (p *Printer) Error(err error) {
	io.WriteString(p.w, p.paint(p.styles.err, "Error")+p.paint(p.styles.text, ": "+err.Error())+"\n")
}

// Diagnostic reports one extraction diagnostic.
func (p *Printer) Diagnostic(d doc.Diagnostic) {
	label, style := "Info", p.styles.info
	if d.Severity == doc.SeverityWarning {
		label, style = "Warning", p.styles.warning
	}
	loc := d.File
	if d.Line > 0 {
		loc = fmt.Sprintf("%s:%d", d.File, d.Line)
	}

	if p.single {
		fmt.Fprintf(p.w, "%s\t%s\t%s\t[%s]\n",
			p.paint(style, label), p.paint(p.styles.gutter, loc), d.Message, d.Code)
		return
	}
	fmt.Fprintf(p.w, "%s%s\n%s %s\n\n",
		p.paint(style, label+"["+d.Code+"]"),
		p.paint(p.styles.text, ": "+d.Message),
		p.paint(p.styles.gutter, "   -->"), loc)
}

// caretPrefix returns whitespace spanning the text before column, keeping
// tabs so the caret lines up.
func caretPrefix(line string, column int) string {
	n := min(max(column-1, 0), len(line))
	var sb strings.Builder
	for i := 0; i < n; i++ {
		if line[i] == '\t' {
			sb.WriteByte('\t')
		} else {
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

// caretWidth clamps the underline to the end of the line. It is at least one.
func caretWidth(line string, column, length int) int {
	rest := len(line) - max(column-1, 0)
	return max(min(length, rest), 1)
}

func fromColumn(line string, column int) string {
	start := min(max(column-1, 0), len(line))
	return line[start:]
}
