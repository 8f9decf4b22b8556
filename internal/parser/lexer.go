package parser

import (
	"strings"

	"github.com/robert-at-pretension-io/svdoc/internal/syntax"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokEscIdent
	tokSysIdent
	tokNumber
	tokString
	tokAttr
	tokPunct
)

type token struct {
	kind  tokenKind
	text  string
	start int
	end   int
}

func (t token) is(text string) bool {
	return (t.kind == tokIdent || t.kind == tokPunct) && t.text == text
}

// name reports whether the token can name a declaration.
func (t token) name() bool {
	return t.kind == tokEscIdent || (t.kind == tokIdent && !keywords[t.text])
}

type lexer struct {
	tree     *syntax.Tree
	src      []byte
	pos      int
	tokens   []token
	comments []syntax.Comment
}

// lex splits src into tokens and comments. Compiler directives and macro
// uses are dropped.
func lex(tree *syntax.Tree) ([]token, []syntax.Comment, error) {
	l := &lexer{tree: tree, src: tree.Source}
	for {
		tok, err := l.next()
		if err != nil {
			return nil, nil, err
		}
		l.tokens = append(l.tokens, tok)
		if tok.kind == tokEOF {
			return l.tokens, l.comments, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			return token{kind: tokEOF, start: len(l.src), end: len(l.src)}, nil
		}
		c := l.src[l.pos]
		switch {
		case c == '/' && l.peek(1) == '/':
			l.lineComment()
		case c == '/' && l.peek(1) == '*':
			if err := l.blockComment(); err != nil {
				return token{}, err
			}
		case c == '`':
			l.directive()
		default:
			return l.scan()
		}
	}
}

func (l *lexer) peek(k int) byte {
	if l.pos+k < len(l.src) {
		return l.src[l.pos+k]
	}
	return 0
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
}

func (l *lexer) lineComment() {
	start := l.pos
	for l.pos < len(l.src) && l.src[l.pos] != '\n' {
		l.pos++
	}
	end := l.pos
	if end > start && l.src[end-1] == '\r' {
		end--
	}
	l.comments = append(l.comments, syntax.Comment{
		Span: syntax.Span{Start: start, End: end},
		Text: string(l.src[start+2 : end]),
	})
}

func (l *lexer) blockComment() error {
	start := l.pos
	idx := strings.Index(string(l.src[start+2:]), "*/")
	if idx < 0 {
		return syntax.NewParseError(l.tree, start, 2, "unterminated block comment")
	}
	l.pos = start + 2 + idx + 2
	l.comments = append(l.comments, syntax.Comment{
		Span:  syntax.Span{Start: start, End: l.pos},
		Block: true,
		Text:  string(l.src[start+2 : l.pos-2]),
	})
	return nil
}

// directive drops a compiler directive or macro use. Line directives run to
// the end of the line, honouring backslash continuations; macro uses drop
// their argument list.
func (l *lexer) directive() {
	l.pos++
	start := l.pos
	for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
		l.pos++
	}
	switch string(l.src[start:l.pos]) {
	case "define", "undef", "include", "timescale", "default_nettype", "line",
		"pragma", "celldefine", "endcelldefine", "unconnected_drive",
		"nounconnected_drive", "begin_keywords", "end_keywords", "resetall", "undefineall":
		for l.pos < len(l.src) && l.src[l.pos] != '\n' {
			if l.src[l.pos] == '\\' && l.peek(1) == '\n' {
				l.pos++
			}
			l.pos++
		}
	case "ifdef", "ifndef", "elsif":
		l.skipSpace()
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
	case "else", "endif", "__FILE__", "__LINE__":
	default:
		save := l.pos
		l.skipSpace()
		if l.pos < len(l.src) && l.src[l.pos] == '(' {
			depth := 0
			for l.pos < len(l.src) {
				switch l.src[l.pos] {
				case '(':
					depth++
				case ')':
					depth--
				}
				l.pos++
				if depth == 0 {
					return
				}
			}
			return
		}
		l.pos = save
	}
}

func (l *lexer) scan() (token, error) {
	start := l.pos
	c := l.src[l.pos]
	switch {
	case isIdentStart(c):
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		return l.tok(tokIdent, start), nil
	case c == '\\':
		l.pos++
		for l.pos < len(l.src) && !isSpace(l.src[l.pos]) {
			l.pos++
		}
		return l.tok(tokEscIdent, start), nil
	case c == '$':
		l.pos++
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		return l.tok(tokSysIdent, start), nil
	case isDigit(c) || (c == '\'' && isBaseChar(l.peek(1))):
		l.pos++
		for l.pos < len(l.src) && isNumberPart(l.src[l.pos]) {
			l.pos++
		}
		return l.tok(tokNumber, start), nil
	case c == '"':
		l.pos++
		for l.pos < len(l.src) {
			switch l.src[l.pos] {
			case '\\':
				l.pos += 2
				continue
			case '\n':
				return token{}, syntax.NewParseError(l.tree, start, 1, "unterminated string literal")
			case '"':
				l.pos++
				return l.tok(tokString, start), nil
			}
			l.pos++
		}
		return token{}, syntax.NewParseError(l.tree, start, 1, "unterminated string literal")
	case c == '(' && l.peek(1) == '*' && l.peek(2) != ')':
		idx := strings.Index(string(l.src[start+2:]), "*)")
		if idx < 0 {
			return token{}, syntax.NewParseError(l.tree, start, 2, "unterminated attribute")
		}
		l.pos = start + 2 + idx + 2
		return l.tok(tokAttr, start), nil
	case c == ':' && l.peek(1) == ':':
		l.pos += 2
		return l.tok(tokPunct, start), nil
	case c == '.' && l.peek(1) == '*':
		l.pos += 2
		return l.tok(tokPunct, start), nil
	}
	l.pos++
	return l.tok(tokPunct, start), nil
}

func (l *lexer) tok(kind tokenKind, start int) token {
	return token{kind: kind, text: string(l.src[start:l.pos]), start: start, end: l.pos}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '$'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isBaseChar(c byte) bool {
	switch c {
	case 's', 'S', 'd', 'D', 'b', 'B', 'o', 'O', 'h', 'H', '0', '1', 'x', 'X', 'z', 'Z':
		return true
	}
	return false
}

func isNumberPart(c byte) bool {
	return isIdentPart(c) || c == '\'' || c == '.' || c == '?'
}
