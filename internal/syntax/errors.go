package syntax

import "fmt"

// ParseError reports source the parser could not accept. The file is not
// documented when parsing fails.
type ParseError struct {
	Path    string `json:"path"`
	Offset  int    `json:"offset"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Length  int    `json:"length,omitempty"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Column, e.Message)
}

// NewParseError positions a parse error at offset using the tree's line index.
func NewParseError(t *Tree, offset, length int, format string, args ...any) *ParseError {
	line, col := t.Position(offset)
	return &ParseError{
		Path:    t.Path,
		Offset:  offset,
		Line:    line,
		Column:  col,
		Length:  length,
		Message: fmt.Sprintf(format, args...),
	}
}
