package syntax

import (
	"fmt"
	"sort"
	"strings"
)

// Comment is one comment token. For line comments Text is everything after
// the `//` up to the end of the line, without a trailing carriage return.
type Comment struct {
	Span
	Block bool
	Text  string
}

// Tree is a fully parsed file: the lowered node tree, the comment list in
// source order and the source bytes every span points into.
type Tree struct {
	Path     string
	Source   []byte
	Root     *SourceText
	Comments []Comment

	lines []int
}

// NewTree builds a Tree and indexes its line starts.
func NewTree(path string, src []byte, root *SourceText, comments []Comment) *Tree {
	t := &Tree{
		Path:     path,
		Source:   src,
		Root:     root,
		Comments: comments,
	}
	t.lines = append(t.lines, 0)
	for i, b := range src {
		if b == '\n' {
			t.lines = append(t.lines, i+1)
		}
	}
	return t
}

// Text returns the verbatim source covered by n. A node that does not resolve
// to source is a lowering bug and panics.
func (t *Tree) Text(n Node) string {
	if n == nil {
		panic("syntax: Text of nil node")
	}
	s := n.Range()
	if s.Start < 0 || s.End > len(t.Source) || s.Start > s.End {
		panic(fmt.Sprintf("syntax: span %d..%d outside %s (%d bytes)", s.Start, s.End, t.Path, len(t.Source)))
	}
	return string(t.Source[s.Start:s.End])
}

// TextOf returns the trimmed source slice from the start of the first node to
// the end of the last one. Nil entries are ignored; with no nodes the result
// is empty.
func (t *Tree) TextOf(nodes ...Node) string {
	var first, last Node
	for _, n := range nodes {
		if n == nil || isNilNode(n) {
			continue
		}
		if first == nil {
			first = n
		}
		last = n
	}
	if first == nil {
		return ""
	}
	cover := Span{Start: first.Range().Start, End: last.Range().End}
	return strings.TrimSpace(t.Text(cover))
}

func isNilNode(n Node) bool {
	switch v := n.(type) {
	case *Fragment:
		return v == nil
	case *Identifier:
		return v == nil
	}
	return false
}

// Line returns the 1-based line containing offset.
func (t *Tree) Line(offset int) int {
	return sort.Search(len(t.lines), func(i int) bool { return t.lines[i] > offset })
}

// Position returns the 1-based line and column of offset. Columns count bytes.
func (t *Tree) Position(offset int) (line, col int) {
	line = t.Line(offset)
	return line, offset - t.lines[line-1] + 1
}

// LineText returns the text of a 1-based line without its line terminator.
func (t *Tree) LineText(line int) string {
	if line < 1 || line > len(t.lines) {
		return ""
	}
	start := t.lines[line-1]
	end := len(t.Source)
	if line < len(t.lines) {
		end = t.lines[line] - 1
	}
	return strings.TrimRight(string(t.Source[start:end]), "\r")
}

// LineCount returns the number of lines in the source.
func (t *Tree) LineCount() int { return len(t.lines) }

// Blank reports whether the source between start and end holds only whitespace.
func (t *Tree) Blank(start, end int) bool {
	if start < 0 {
		start = 0
	}
	if end > len(t.Source) {
		end = len(t.Source)
	}
	if start >= end {
		return true
	}
	for _, b := range t.Source[start:end] {
		switch b {
		case ' ', '\t', '\r', '\n', '\f', '\v':
		default:
			return false
		}
	}
	return true
}
