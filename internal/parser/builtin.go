package parser

import (
	"github.com/robert-at-pretension-io/svdoc/internal/syntax"
)

// builtinParser is a recursive-descent parser for the declaration subset of
// SystemVerilog that carries documentation. Statements, expressions and
// instantiations are skimmed; classes, interfaces, subroutines and similar
// bodies are skipped whole and reported as opaque.
type builtinParser struct {
	tree     *syntax.Tree
	toks     []token
	pos      int
	nettypes map[string]bool
}

var closers = setOf(
	"end", "endmodule", "endpackage", "endgenerate", "endcase", "join", "join_any",
	"join_none", "endinterface", "endprogram", "endclass", "endchecker", "endfunction",
	"endtask", "endgroup", "endproperty", "endsequence", "endclocking", "endconfig",
	"endprimitive", "endspecify", "endtable",
)

func parseBuiltin(tree *syntax.Tree) error {
	toks, comments, err := lex(tree)
	if err != nil {
		return err
	}
	tree.Comments = comments

	p := &builtinParser{tree: tree, toks: toks, nettypes: make(map[string]bool)}
	items, err := p.parseItems()
	if err != nil {
		return err
	}
	if t := p.cur(); t.kind != tokEOF {
		return p.errorf(t, "unexpected %q", t.text)
	}
	tree.Root = &syntax.SourceText{
		Span:  syntax.Span{Start: 0, End: len(tree.Source)},
		Items: items,
	}
	return nil
}

func (p *builtinParser) cur() token { return p.peek(0) }

func (p *builtinParser) peek(k int) token {
	i := p.pos + k
	if i < 0 {
		return token{}
	}
	if i < len(p.toks) {
		return p.toks[i]
	}
	return p.toks[len(p.toks)-1]
}

func (p *builtinParser) advance() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *builtinParser) prevEnd() int {
	if p.pos == 0 {
		return 0
	}
	return p.toks[p.pos-1].end
}

func (p *builtinParser) accept(text string) bool {
	if p.cur().is(text) {
		p.advance()
		return true
	}
	return false
}

func (p *builtinParser) expect(text string) (token, error) {
	t := p.cur()
	if !t.is(text) {
		return t, p.errorf(t, "expected %q, found %s", text, describe(t))
	}
	return p.advance(), nil
}

func (p *builtinParser) errorf(t token, format string, args ...any) error {
	length := t.end - t.start
	if length == 0 {
		length = 1
	}
	return syntax.NewParseError(p.tree, t.start, length, format, args...)
}

func describe(t token) string {
	if t.kind == tokEOF {
		return "end of file"
	}
	return "\"" + t.text + "\""
}

func (p *builtinParser) skipAttrs() {
	for p.cur().kind == tokAttr {
		p.advance()
	}
}

func ident(t token) *syntax.Identifier {
	return &syntax.Identifier{
		Span:    syntax.Span{Start: t.start, End: t.end},
		Escaped: t.kind == tokEscIdent,
	}
}

func fragment(start, end int, role syntax.FragmentRole) *syntax.Fragment {
	return &syntax.Fragment{Span: syntax.Span{Start: start, End: end}, Role: role}
}

// parseItems parses items until end of file or a closing keyword, which is
// left for the caller.
func (p *builtinParser) parseItems() ([]syntax.Node, error) {
	var items []syntax.Node
	for {
		t := p.cur()
		if t.kind == tokEOF || (t.kind == tokIdent && closers[t.text]) {
			return items, nil
		}
		n, err := p.parseItem()
		if err != nil {
			return nil, err
		}
		if n != nil {
			items = append(items, n)
		}
	}
}

// closeWith consumes the closing keyword of a construct opened by open and an
// optional `: label`.
func (p *builtinParser) closeWith(open token, end, what string) error {
	t := p.cur()
	if t.kind == tokEOF {
		return p.errorf(open, "missing %s for %s", end, what)
	}
	if !t.is(end) {
		return p.errorf(t, "expected %s for %s, found %s", end, what, describe(t))
	}
	p.advance()
	if p.cur().is(":") {
		p.advance()
		if p.cur().name() || p.cur().is("new") {
			p.advance()
		}
	}
	return nil
}

func (p *builtinParser) parseItem() (syntax.Node, error) {
	start := p.cur().start
	p.skipAttrs()
	t := p.cur()

	switch t.kind {
	case tokPunct:
		if t.text == ";" {
			p.advance()
			return nil, nil
		}
		return p.skipStatement(start, "statement")
	case tokEscIdent:
		return p.parseIdentItem(start)
	case tokIdent:
	default:
		return p.skipStatement(start, "statement")
	}

	switch w := t.text; {
	case w == "module" || w == "macromodule":
		return p.parseModule(start, false)
	case w == "extern" && (p.peek(1).is("module") || p.peek(1).is("macromodule")):
		p.advance()
		return p.parseModule(start, true)
	case w == "package":
		return p.parsePackage(start)
	case w == "typedef":
		return p.parseTypedef(start)
	case w == "parameter" || w == "localparam":
		return p.parseParamDecl(start)
	case netTypes[w]:
		return p.parseNetDecl(start)
	case w == "interconnect":
		return p.parseInterconnect(start)
	case w == "nettype":
		return p.parseNettype(start)
	case directions[w]:
		return p.parsePortDecl(start)
	case w == "generate":
		return p.parseGenerateRegion(start)
	case w == "begin":
		return p.parseBegin(start)
	case w == "if":
		return p.parseGenerateIf(start)
	case w == "for":
		return p.parseGenerateFor(start)
	case w == "case":
		return p.parseGenerateCase(start)
	case (w == "interface" || w == "virtual") && p.peek(1).is("class"):
		p.advance()
		return p.parseOpaque(start)
	case (w == "default" || w == "global") && p.peek(1).is("clocking"):
		p.advance()
		return p.parseOpaque(start)
	case opaqueEnds[w] != "":
		return p.parseOpaque(start)
	case w == "const" || w == "var" || lifetimes[w] || dataTypeKeywords[w]:
		return p.parseDataDecl(start)
	case keywords[w]:
		return p.skipStatement(start, w)
	}
	return p.parseIdentItem(start)
}

func (p *builtinParser) parseModule(start int, extern bool) (syntax.Node, error) {
	kw := p.advance()
	if lifetimes[p.cur().text] {
		p.advance()
	}
	nameTok := p.cur()
	if !nameTok.name() {
		return nil, p.errorf(nameTok, "expected module name, found %s", describe(nameTok))
	}
	p.advance()
	name := ident(nameTok)

	for p.cur().is("import") {
		if err := p.skipPast(";"); err != nil {
			return nil, err
		}
	}

	var params []syntax.Node
	if p.accept("#") {
		var err error
		if params, err = p.parseParamPorts(); err != nil {
			return nil, err
		}
	}

	if extern {
		if p.cur().is("(") {
			if err := p.skipBalanced(); err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(";"); err != nil {
			return nil, err
		}
		return &syntax.ModuleExtern{Span: syntax.Span{Start: start, End: p.prevEnd()}, Name: name}, nil
	}

	var (
		ansi     = true
		wildcard bool
		ports    []syntax.Node
		names    []*syntax.Identifier
		err      error
	)
	if p.cur().is("(") {
		switch {
		case p.peek(1).is(".*") && p.peek(2).is(")"):
			wildcard = true
			p.pos += 3
		case p.peek(1).is(")"):
			ansi = false
			p.pos += 2
		case p.ansiPortList():
			if ports, err = p.parseAnsiPorts(); err != nil {
				return nil, err
			}
		default:
			ansi = false
			if names, err = p.parseNonansiPorts(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(";"); err != nil {
		return nil, err
	}

	items, err := p.parseItems()
	if err != nil {
		return nil, err
	}
	if err := p.closeWith(kw, "endmodule", "module "+nameTok.text); err != nil {
		return nil, err
	}
	span := syntax.Span{Start: start, End: p.prevEnd()}

	switch {
	case wildcard:
		return &syntax.ModuleWildcard{Span: span, Name: name, Items: items}, nil
	case ansi:
		return &syntax.ModuleAnsi{Span: span, Keyword: kw.text, Name: name, Params: params, Ports: ports, Items: items}, nil
	}
	return &syntax.ModuleNonansi{Span: span, Keyword: kw.text, Name: name, Params: params, Ports: names, Items: items}, nil
}

// ansiPortList reports whether the port list at the current `(` declares
// ports inline.
func (p *builtinParser) ansiPortList() bool {
	i := 1
	for p.peek(i).kind == tokAttr {
		i++
	}
	t := p.peek(i)
	if t.is(".") {
		return true
	}
	if t.kind == tokIdent && (directions[t.text] || netTypes[t.text] || dataTypeKeywords[t.text] ||
		t.text == "var" || t.text == "interface" || t.text == "interconnect") {
		return true
	}
	if !t.name() {
		return false
	}
	n := p.peek(i + 1)
	if n.name() || n.is("::") || n.is(".") || n.is("#") {
		return true
	}
	if n.is("[") {
		j := p.skipBalancedAt(i + 1)
		for p.peek(j).is("[") {
			j = p.skipBalancedAt(j)
		}
		return p.peek(j).name()
	}
	return false
}

func (p *builtinParser) parseAnsiPorts() ([]syntax.Node, error) {
	open := p.advance()
	var ports []syntax.Node
	for {
		entryStart := p.cur().start
		p.skipAttrs()
		toks, err := p.collectUntil(open, ",", ")")
		if err != nil {
			return nil, err
		}
		if len(toks) > 0 {
			port, err := p.ansiPort(entryStart, toks)
			if err != nil {
				return nil, err
			}
			ports = append(ports, port)
		}
		if p.advance().is(")") {
			return ports, nil
		}
	}
}

func (p *builtinParser) ansiPort(start int, toks []token) (syntax.Node, error) {
	span := syntax.Span{Start: start, End: toks[len(toks)-1].end}

	j := 0
	for j < len(toks) && directions[toks[j].text] {
		j++
	}
	if j < len(toks) && toks[j].is(".") {
		if j+1 >= len(toks) || !toks[j+1].name() {
			return nil, p.errorf(toks[j], "expected port name after \".\"")
		}
		return &syntax.AnsiPortExplicit{Span: span, Name: ident(toks[j+1])}, nil
	}

	head, name, ok := splitDeclarator(toks)
	if !ok {
		return nil, p.errorf(toks[0], "expected port name")
	}
	var header *syntax.Fragment
	isVar := false
	if len(head) > 0 {
		header = fragment(head[0].start, head[len(head)-1].end, syntax.RoleHeader)
		for _, t := range head {
			if t.is("var") {
				isVar = true
			}
		}
	}
	if isVar {
		return &syntax.AnsiPortVariable{Span: span, Header: header, Name: ident(name)}, nil
	}
	return &syntax.AnsiPortNet{Span: span, Header: header, Name: ident(name)}, nil
}

func (p *builtinParser) parseNonansiPorts() ([]*syntax.Identifier, error) {
	open := p.advance()
	var names []*syntax.Identifier
	for {
		p.skipAttrs()
		toks, err := p.collectUntil(open, ",", ")")
		if err != nil {
			return nil, err
		}
		switch {
		case len(toks) >= 2 && toks[0].is(".") && toks[1].name():
			names = append(names, ident(toks[1]))
		case len(toks) > 0 && toks[0].name():
			names = append(names, ident(toks[0]))
		}
		if p.advance().is(")") {
			return names, nil
		}
	}
}

// parseParamPorts parses `( ... )` after the `#` of a module header. A bare
// assignment continues the previous declaration.
func (p *builtinParser) parseParamPorts() ([]syntax.Node, error) {
	open, err := p.expect("(")
	if err != nil {
		return nil, err
	}
	var (
		out     []syntax.Node
		current syntax.Node
	)
	if p.accept(")") {
		return nil, nil
	}
	for {
		entryStart := p.cur().start
		p.skipAttrs()
		toks, err := p.collectUntil(open, ",", ")")
		if err != nil {
			return nil, err
		}
		if len(toks) > 0 {
			next, err := p.paramEntry(current, entryStart, "", toks)
			if err != nil {
				return nil, err
			}
			if next != current {
				out = append(out, next)
				current = next
			}
		}
		if p.advance().is(")") {
			return out, nil
		}
	}
}

// paramEntry folds one comma-separated entry of a parameter list into the
// current declaration or starts a new one.
func (p *builtinParser) paramEntry(current syntax.Node, start int, keyword string, toks []token) (syntax.Node, error) {
	if toks[0].is("parameter") || toks[0].is("localparam") {
		keyword = toks[0].text
		toks = toks[1:]
		current = nil
		if len(toks) == 0 {
			return nil, p.errorf(p.cur(), "expected parameter assignment")
		}
	}
	end := toks[len(toks)-1].end

	if toks[0].is("type") {
		names, err := p.typeParamNames(toks[1:])
		if err != nil {
			return nil, err
		}
		return &syntax.ParamTypeDecl{Span: syntax.Span{Start: start, End: end}, Keyword: keyword, Names: names}, nil
	}

	head, name, ok := splitDeclarator(toks)
	if !ok {
		return nil, p.errorf(toks[0], "expected parameter name")
	}
	assign := &syntax.ParamAssignment{Span: syntax.Span{Start: name.start, End: end}, Name: ident(name)}

	if len(head) == 0 {
		switch cur := current.(type) {
		case *syntax.ParamDecl:
			cur.Assigns = append(cur.Assigns, assign)
			cur.End = end
			return cur, nil
		case *syntax.ParamTypeDecl:
			cur.Names = append(cur.Names, ident(name))
			cur.End = end
			return cur, nil
		}
	}
	decl := &syntax.ParamDecl{
		Span:    syntax.Span{Start: start, End: end},
		Keyword: keyword,
		Assigns: []*syntax.ParamAssignment{assign},
	}
	if len(head) > 0 {
		decl.Type = fragment(head[0].start, head[len(head)-1].end, syntax.RoleDataType)
	}
	return decl, nil
}

func (p *builtinParser) typeParamNames(toks []token) ([]*syntax.Identifier, error) {
	_, name, ok := splitDeclarator(toks)
	if !ok {
		if len(toks) == 0 {
			return nil, p.errorf(p.cur(), "expected type parameter name")
		}
		return nil, p.errorf(toks[0], "expected type parameter name")
	}
	return []*syntax.Identifier{ident(name)}, nil
}

func (p *builtinParser) parseParamDecl(start int) (syntax.Node, error) {
	kw := p.cur()
	toks, err := p.collectUntil(kw, ";")
	if err != nil {
		return nil, err
	}
	p.advance()

	var current syntax.Node
	for i, entry := range splitTop(toks, ",") {
		if len(entry) == 0 {
			return nil, p.errorf(kw, "empty parameter assignment")
		}
		entryStart := entry[0].start
		if i == 0 {
			entryStart = start
		}
		next, err := p.paramEntry(current, entryStart, "", entry)
		if err != nil {
			return nil, err
		}
		if current != nil && next != current {
			return nil, p.errorf(entry[0], "unexpected type in parameter list")
		}
		current = next
	}
	switch d := current.(type) {
	case *syntax.ParamDecl:
		d.End = p.prevEnd()
	case *syntax.ParamTypeDecl:
		d.End = p.prevEnd()
	}
	return current, nil
}

func (p *builtinParser) parsePackage(start int) (syntax.Node, error) {
	kw := p.advance()
	if lifetimes[p.cur().text] {
		p.advance()
	}
	nameTok := p.cur()
	if !nameTok.name() {
		return nil, p.errorf(nameTok, "expected package name, found %s", describe(nameTok))
	}
	p.advance()
	if _, err := p.expect(";"); err != nil {
		return nil, err
	}
	items, err := p.parseItems()
	if err != nil {
		return nil, err
	}
	if err := p.closeWith(kw, "endpackage", "package "+nameTok.text); err != nil {
		return nil, err
	}
	return &syntax.PackageDecl{
		Span:  syntax.Span{Start: start, End: p.prevEnd()},
		Name:  ident(nameTok),
		Items: items,
	}, nil
}

func (p *builtinParser) parseTypedef(start int) (syntax.Node, error) {
	kw := p.advance()
	t := p.cur()
	span := func() syntax.Span { return syntax.Span{Start: start, End: p.prevEnd()} }

	switch {
	case (t.is("enum") || t.is("struct") || t.is("union") || t.is("class")) && p.peek(1).name() && p.peek(2).is(";"):
		name := p.peek(1)
		p.pos += 3
		return &syntax.TypeDeclForward{Span: span(), Name: ident(name)}, nil
	case t.is("interface") && p.peek(1).is("class") && p.peek(2).name() && p.peek(3).is(";"):
		name := p.peek(2)
		p.pos += 4
		return &syntax.TypeDeclForward{Span: span(), Name: ident(name)}, nil
	case t.name() && p.peek(1).is(";"):
		p.pos += 2
		return &syntax.TypeDeclForward{Span: span(), Name: ident(t)}, nil
	case t.name() && p.peek(1).is(".") && p.peek(2).name() && p.peek(3).name():
		name := p.peek(3)
		if err := p.skipPast(";"); err != nil {
			return nil, err
		}
		return &syntax.TypeDeclInterface{Span: span(), Name: ident(name)}, nil
	}

	dt, err := p.parseDataType()
	if err != nil {
		return nil, err
	}
	if dt == nil {
		return nil, p.errorf(t, "expected data type after typedef, found %s", describe(t))
	}
	nameTok := p.cur()
	if !nameTok.name() {
		return nil, p.errorf(nameTok, "expected type name, found %s", describe(nameTok))
	}
	p.advance()
	if err := p.skipDims(); err != nil {
		return nil, err
	}
	if _, err := p.expect(";"); err != nil {
		return nil, p.errorf(kw, "unterminated typedef %s", nameTok.text)
	}
	return &syntax.TypeDeclDataType{Span: span(), DataType: dt, Name: ident(nameTok)}, nil
}

func (p *builtinParser) parseNetDecl(start int) (syntax.Node, error) {
	kw := p.advance()
	decl := &syntax.NetDeclNetType{NetType: fragment(kw.start, kw.end, syntax.RoleNetType)}

	if p.cur().is("(") {
		s := p.cur().start
		if err := p.skipBalanced(); err != nil {
			return nil, err
		}
		decl.Strength = fragment(s, p.prevEnd(), syntax.RoleStrength)
	}
	if t := p.cur(); t.is("vectored") || t.is("scalared") {
		p.advance()
		decl.VectorScalar = fragment(t.start, t.end, syntax.RoleVectorScalar)
	}
	if p.netDataTypeAhead() {
		dt, err := p.parseDataType()
		if err != nil {
			return nil, err
		}
		decl.DataType = dt
	}
	delay, err := p.parseDelay()
	if err != nil {
		return nil, err
	}
	decl.Delay = delay

	names, err := p.parseDeclarators()
	if err != nil {
		return nil, err
	}
	for _, d := range names {
		decl.Assigns = append(decl.Assigns, &syntax.NetDeclAssignment{Span: d.span, Name: d.name})
	}
	decl.Span = syntax.Span{Start: start, End: p.prevEnd()}
	return decl, nil
}

func (p *builtinParser) parseNetTypeIdentifierDecl(start int) (syntax.Node, error) {
	t := p.advance()
	decl := &syntax.NetDeclNetTypeIdentifier{NetType: fragment(t.start, t.end, syntax.RoleNetTypeIdentifier)}
	delay, err := p.parseDelay()
	if err != nil {
		return nil, err
	}
	decl.Delay = delay
	names, err := p.parseDeclarators()
	if err != nil {
		return nil, err
	}
	for _, d := range names {
		decl.Assigns = append(decl.Assigns, &syntax.NetDeclAssignment{Span: d.span, Name: d.name})
	}
	decl.Span = syntax.Span{Start: start, End: p.prevEnd()}
	return decl, nil
}

func (p *builtinParser) parseDelay() (*syntax.Fragment, error) {
	if !p.cur().is("#") {
		return nil, nil
	}
	s := p.advance().start
	if p.cur().is("(") {
		if err := p.skipBalanced(); err != nil {
			return nil, err
		}
	} else {
		p.advance()
	}
	return fragment(s, p.prevEnd(), syntax.RoleDelay), nil
}

// netDataTypeAhead reports whether a data type follows a net type keyword,
// as opposed to the first declared name.
func (p *builtinParser) netDataTypeAhead() bool {
	t := p.cur()
	if t.is("[") || (t.kind == tokIdent && dataTypeKeywords[t.text]) {
		return true
	}
	if !t.name() {
		return false
	}
	n := p.peek(1)
	if n.name() || n.is("::") {
		return true
	}
	if n.is("[") {
		j := p.skipBalancedAt(1)
		for p.peek(j).is("[") {
			j = p.skipBalancedAt(j)
		}
		return p.peek(j).name()
	}
	return false
}

func (p *builtinParser) parseInterconnect(start int) (syntax.Node, error) {
	kw := p.advance()
	toks, err := p.collectUntil(kw, ";")
	if err != nil {
		return nil, err
	}
	p.advance()
	var name *syntax.Identifier
	for i, t := range toks {
		if !t.name() {
			continue
		}
		if i+1 == len(toks) || toks[i+1].is(",") || toks[i+1].is("[") || toks[i+1].is("=") {
			name = ident(t)
			break
		}
	}
	if name == nil {
		return nil, p.errorf(kw, "expected interconnect name")
	}
	return &syntax.NetDeclInterconnect{Span: syntax.Span{Start: start, End: p.prevEnd()}, Name: name}, nil
}

func (p *builtinParser) parseNettype(start int) (syntax.Node, error) {
	kw := p.advance()
	toks, err := p.collectUntil(kw, ";")
	if err != nil {
		return nil, err
	}
	p.advance()
	for i, t := range toks {
		if t.is("with") {
			toks = toks[:i]
			break
		}
	}
	if len(toks) == 0 || !toks[len(toks)-1].name() {
		return nil, p.errorf(kw, "expected nettype name")
	}
	nameTok := toks[len(toks)-1]
	p.nettypes[nameTok.text] = true
	return &syntax.Opaque{
		Span: syntax.Span{Start: start, End: p.prevEnd()},
		Kind: "nettype",
		Name: ident(nameTok),
	}, nil
}

func (p *builtinParser) parsePortDecl(start int) (syntax.Node, error) {
	dir := p.advance()
	toks, err := p.collectUntil(dir, ";")
	if err != nil {
		return nil, err
	}
	p.advance()
	decl := &syntax.PortDecl{
		Span:      syntax.Span{Start: start, End: p.prevEnd()},
		Direction: fragment(dir.start, dir.end, syntax.RoleDirection),
	}
	for _, entry := range splitTop(toks, ",") {
		if _, name, ok := splitDeclarator(entry); ok {
			decl.Names = append(decl.Names, ident(name))
		}
	}
	return decl, nil
}

func (p *builtinParser) parseDataDecl(start int) (syntax.Node, error) {
	decl := &syntax.DataDecl{}
	if t := p.cur(); t.is("const") {
		p.advance()
		decl.Const = fragment(t.start, t.end, syntax.RoleConst)
	}
	if t := p.cur(); t.is("var") {
		p.advance()
		decl.Var = fragment(t.start, t.end, syntax.RoleVar)
	}
	if t := p.cur(); lifetimes[t.text] && t.kind == tokIdent {
		p.advance()
		decl.Lifetime = fragment(t.start, t.end, syntax.RoleLifetime)
	}
	if decl.Var == nil || p.netDataTypeAhead() {
		dt, err := p.parseDataType()
		if err != nil {
			return nil, err
		}
		decl.DataType = dt
	}
	if !p.cur().name() {
		return p.skipStatement(start, "declaration")
	}
	names, err := p.parseDeclarators()
	if err != nil {
		return nil, err
	}
	for _, d := range names {
		decl.Assigns = append(decl.Assigns, &syntax.VarDeclAssignment{Span: d.span, Name: d.name})
	}
	decl.Span = syntax.Span{Start: start, End: p.prevEnd()}
	return decl, nil
}

// parseIdentItem handles items that start with a user identifier: nets of a
// user nettype, variables of a user type, and instantiations.
func (p *builtinParser) parseIdentItem(start int) (syntax.Node, error) {
	t := p.cur()
	if t.kind == tokIdent && p.nettypes[t.text] {
		return p.parseNetTypeIdentifierDecl(start)
	}
	if p.peek(1).is("#") {
		return p.skipStatement(start, "instantiation")
	}

	save := p.pos
	dt, err := p.parseDataType()
	if err != nil {
		return nil, err
	}
	if dt == nil || !p.cur().name() {
		p.pos = save
		return p.skipStatement(start, "statement")
	}
	j := 1
	for p.peek(j).is("[") {
		j = p.skipBalancedAt(j)
	}
	if p.peek(j).is("(") {
		p.pos = save
		return p.skipStatement(start, "instantiation")
	}

	names, err := p.parseDeclarators()
	if err != nil {
		return nil, err
	}
	decl := &syntax.DataDecl{DataType: dt}
	for _, d := range names {
		decl.Assigns = append(decl.Assigns, &syntax.VarDeclAssignment{Span: d.span, Name: d.name})
	}
	decl.Span = syntax.Span{Start: start, End: p.prevEnd()}
	return decl, nil
}

// parseDataType consumes a data type, or an implicit one made of a signing
// and packed dimensions. It returns nil when nothing was consumed.
func (p *builtinParser) parseDataType() (*syntax.Fragment, error) {
	start := p.cur().start
	from := p.pos
	t := p.cur()

	switch {
	case t.is("struct") || t.is("union"):
		p.advance()
		p.accept("tagged")
		if p.accept("packed") {
			if p.cur().is("signed") || p.cur().is("unsigned") {
				p.advance()
			}
		}
		if !p.cur().is("{") {
			return nil, p.errorf(p.cur(), "expected \"{\" in %s type", t.text)
		}
		if err := p.skipBalanced(); err != nil {
			return nil, err
		}
	case t.is("enum"):
		p.advance()
		for !p.cur().is("{") {
			if p.cur().kind == tokEOF || p.cur().is(";") {
				return nil, p.errorf(t, "expected enum body")
			}
			if p.cur().is("[") {
				if err := p.skipBalanced(); err != nil {
					return nil, err
				}
				continue
			}
			p.advance()
		}
		if err := p.skipBalanced(); err != nil {
			return nil, err
		}
	case t.is("virtual"):
		p.advance()
		p.accept("interface")
		if p.cur().name() {
			p.advance()
		}
		if p.cur().is("#") {
			p.advance()
			if err := p.skipBalanced(); err != nil {
				return nil, err
			}
		}
		if p.cur().is(".") && p.peek(1).name() {
			p.pos += 2
		}
	case t.is("type"):
		p.advance()
		if p.cur().is("(") {
			if err := p.skipBalanced(); err != nil {
				return nil, err
			}
		}
	case t.is("signed") || t.is("unsigned"):
	case t.kind == tokIdent && dataTypeKeywords[t.text]:
		p.advance()
	case t.name():
		p.advance()
		for p.cur().is("::") && p.peek(1).name() {
			p.pos += 2
		}
		if p.cur().is("#") && p.peek(1).is("(") {
			p.advance()
			if err := p.skipBalanced(); err != nil {
				return nil, err
			}
		}
	}

	if p.cur().is("signed") || p.cur().is("unsigned") {
		p.advance()
	}
	if err := p.skipDims(); err != nil {
		return nil, err
	}
	if p.pos == from {
		return nil, nil
	}
	return fragment(start, p.prevEnd(), syntax.RoleDataType), nil
}

type declarator struct {
	name *syntax.Identifier
	span syntax.Span
}

// parseDeclarators parses `name {dims} [= expr] {, ...} ;`.
func (p *builtinParser) parseDeclarators() ([]declarator, error) {
	var out []declarator
	for {
		nameTok := p.cur()
		if !nameTok.name() {
			return nil, p.errorf(nameTok, "expected identifier, found %s", describe(nameTok))
		}
		p.advance()
		if err := p.skipDims(); err != nil {
			return nil, err
		}
		if p.cur().is("=") {
			eq := p.advance()
			if _, err := p.collectUntil(eq, ",", ";"); err != nil {
				return nil, err
			}
		}
		out = append(out, declarator{
			name: ident(nameTok),
			span: syntax.Span{Start: nameTok.start, End: p.prevEnd()},
		})
		if !p.accept(",") {
			break
		}
	}
	if _, err := p.expect(";"); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *builtinParser) parseGenerateRegion(start int) (syntax.Node, error) {
	kw := p.advance()
	items, err := p.parseItems()
	if err != nil {
		return nil, err
	}
	if err := p.closeWith(kw, "endgenerate", "generate"); err != nil {
		return nil, err
	}
	return &syntax.Block{Span: syntax.Span{Start: start, End: p.prevEnd()}, Kind: "generate", Items: items}, nil
}

func (p *builtinParser) parseBegin(start int) (syntax.Node, error) {
	kw := p.advance()
	if p.accept(":") {
		if p.cur().name() {
			p.advance()
		}
	}
	items, err := p.parseItems()
	if err != nil {
		return nil, err
	}
	if err := p.closeWith(kw, "end", "begin"); err != nil {
		return nil, err
	}
	return &syntax.Block{Span: syntax.Span{Start: start, End: p.prevEnd()}, Kind: "begin", Items: items}, nil
}

func (p *builtinParser) parseGenerateIf(start int) (syntax.Node, error) {
	p.advance()
	if !p.cur().is("(") {
		return nil, p.errorf(p.cur(), "expected \"(\" after if")
	}
	if err := p.skipBalanced(); err != nil {
		return nil, err
	}
	var items []syntax.Node
	for {
		n, err := p.parseGenerateItem()
		if err != nil {
			return nil, err
		}
		if n != nil {
			items = append(items, n)
		}
		if !p.accept("else") {
			break
		}
		if p.cur().is("if") {
			p.advance()
			if err := p.skipBalanced(); err != nil {
				return nil, err
			}
		}
	}
	return &syntax.Block{Span: syntax.Span{Start: start, End: p.prevEnd()}, Kind: "if", Items: items}, nil
}

func (p *builtinParser) parseGenerateFor(start int) (syntax.Node, error) {
	p.advance()
	if !p.cur().is("(") {
		return nil, p.errorf(p.cur(), "expected \"(\" after for")
	}
	if err := p.skipBalanced(); err != nil {
		return nil, err
	}
	n, err := p.parseGenerateItem()
	if err != nil {
		return nil, err
	}
	var items []syntax.Node
	if n != nil {
		items = append(items, n)
	}
	return &syntax.Block{Span: syntax.Span{Start: start, End: p.prevEnd()}, Kind: "for", Items: items}, nil
}

// parseGenerateCase parses `case (expr) {label: item} endcase`. Each branch
// holds one generate item, usually a begin block.
func (p *builtinParser) parseGenerateCase(start int) (syntax.Node, error) {
	kw := p.advance()
	if !p.cur().is("(") {
		return nil, p.errorf(p.cur(), "expected \"(\" after case")
	}
	if err := p.skipBalanced(); err != nil {
		return nil, err
	}
	var items []syntax.Node
	for {
		t := p.cur()
		if t.kind == tokEOF || (t.kind == tokIdent && closers[t.text]) {
			break
		}
		if p.accept("default") {
			p.accept(":")
		} else {
			if _, err := p.collectUntil(t, ":"); err != nil {
				return nil, err
			}
			p.advance()
		}
		n, err := p.parseGenerateItem()
		if err != nil {
			return nil, err
		}
		if n != nil {
			items = append(items, n)
		}
	}
	if err := p.closeWith(kw, "endcase", "case"); err != nil {
		return nil, err
	}
	return &syntax.Block{Span: syntax.Span{Start: start, End: p.prevEnd()}, Kind: "case", Items: items}, nil
}

func (p *builtinParser) parseGenerateItem() (syntax.Node, error) {
	t := p.cur()
	if t.kind == tokEOF || (t.kind == tokIdent && closers[t.text]) {
		return nil, p.errorf(t, "expected generate item, found %s", describe(t))
	}
	return p.parseItem()
}

// parseOpaque skips a declaration up to its closing keyword.
func (p *builtinParser) parseOpaque(start int) (syntax.Node, error) {
	kw := p.advance()
	kind := kw.text
	end := opaqueEnds[kind]
	name := p.opaqueName(kind)

	depth := 1
	for depth > 0 {
		t := p.cur()
		switch {
		case t.kind == tokEOF:
			return nil, p.errorf(kw, "missing %s for %s", end, kind)
		case t.is(end):
			depth--
		case t.is(kind) && !p.peek(-1).is("typedef") && nestable(kind):
			depth++
		}
		p.advance()
	}
	if p.cur().is(":") {
		p.advance()
		if p.cur().name() || p.cur().is("new") {
			p.advance()
		}
	}
	return &syntax.Opaque{Span: syntax.Span{Start: start, End: p.prevEnd()}, Kind: kind, Name: name}, nil
}

func nestable(kind string) bool {
	switch kind {
	case "class", "interface", "program", "checker", "config":
		return true
	}
	return false
}

func (p *builtinParser) opaqueName(kind string) *syntax.Identifier {
	if kind == "function" || kind == "task" {
		var last *syntax.Identifier
		for i := 0; ; i++ {
			t := p.peek(i)
			if t.kind == tokEOF || t.is("(") || t.is(";") {
				return last
			}
			if t.name() || t.is("new") {
				last = ident(t)
			}
		}
	}
	for i := 0; ; i++ {
		t := p.peek(i)
		switch {
		case t.name():
			return ident(t)
		case t.kind == tokEOF || t.is(";") || t.is("("):
			return nil
		}
	}
}

// skipStatement skims a construct the documentation does not care about.
// It stops after a top-level `;` or after the `end` that closes a block,
// following `else` branches.
func (p *builtinParser) skipStatement(start int, kind string) (syntax.Node, error) {
	first := p.cur()
	from := p.pos
	depth, nest := 0, 0
	for {
		t := p.cur()
		if t.kind == tokEOF {
			return nil, p.errorf(first, "unexpected end of file in %s", kind)
		}
		if t.kind == tokPunct {
			switch t.text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
				if depth < 0 {
					return nil, p.errorf(t, "unbalanced %q", t.text)
				}
			case ";":
				if depth == 0 && nest == 0 {
					p.advance()
					if p.accept("else") {
						continue
					}
					return p.other(start, kind), nil
				}
			}
			p.advance()
			continue
		}
		if t.kind == tokIdent && depth == 0 {
			switch t.text {
			case "begin", "case", "casex", "casez", "randcase":
				nest++
			case "fork":
				if !p.peek(-1).is("wait") && !p.peek(-1).is("disable") {
					nest++
				}
			case "end", "endcase", "join", "join_any", "join_none":
				if nest == 0 {
					if p.pos == from {
						return nil, p.errorf(t, "unexpected %q", t.text)
					}
					return p.other(start, kind), nil
				}
				nest--
				p.advance()
				if nest == 0 {
					if p.accept(":") && p.cur().name() {
						p.advance()
					}
					if p.accept("else") {
						continue
					}
					return p.other(start, kind), nil
				}
				continue
			default:
				if closers[t.text] && nest == 0 {
					if p.pos == from {
						return nil, p.errorf(t, "unexpected %q", t.text)
					}
					return p.other(start, kind), nil
				}
			}
		}
		p.advance()
	}
}

func (p *builtinParser) other(start int, kind string) syntax.Node {
	return &syntax.Other{Span: syntax.Span{Start: start, End: p.prevEnd()}, Kind: kind}
}

// skipBalanced consumes a bracketed group starting at the current token.
func (p *builtinParser) skipBalanced() error {
	open := p.cur()
	depth := 0
	for {
		t := p.advance()
		if t.kind == tokEOF {
			return p.errorf(open, "unbalanced %q", open.text)
		}
		if t.kind != tokPunct {
			continue
		}
		switch t.text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		}
		if depth == 0 {
			return nil
		}
	}
}

// skipBalancedAt returns the lookahead index just past the bracketed group
// that starts at lookahead index i.
func (p *builtinParser) skipBalancedAt(i int) int {
	depth := 0
	for {
		t := p.peek(i)
		i++
		if t.kind == tokEOF {
			return i - 1
		}
		if t.kind != tokPunct {
			continue
		}
		switch t.text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		}
		if depth == 0 {
			return i
		}
	}
}

func (p *builtinParser) skipDims() error {
	for p.cur().is("[") {
		if err := p.skipBalanced(); err != nil {
			return err
		}
	}
	return nil
}

func (p *builtinParser) skipPast(text string) error {
	first := p.cur()
	if _, err := p.collectUntil(first, text); err != nil {
		return err
	}
	p.advance()
	return nil
}

// collectUntil returns the tokens up to the first of stops at bracket depth
// zero, leaving the stop token current.
func (p *builtinParser) collectUntil(open token, stops ...string) ([]token, error) {
	from := p.pos
	depth := 0
	for {
		t := p.cur()
		if t.kind == tokEOF {
			return nil, p.errorf(open, "unexpected end of file after %s", describe(open))
		}
		if t.kind == tokPunct {
			if depth == 0 {
				for _, s := range stops {
					if t.text == s {
						return p.toks[from:p.pos], nil
					}
				}
			}
			switch t.text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
				if depth < 0 {
					return nil, p.errorf(t, "unbalanced %q", t.text)
				}
			}
		}
		p.advance()
	}
}

// splitTop splits toks on sep at bracket depth zero.
func splitTop(toks []token, sep string) [][]token {
	var out [][]token
	depth, from := 0, 0
	for i, t := range toks {
		if t.kind != tokPunct {
			continue
		}
		switch t.text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		case sep:
			if depth == 0 {
				out = append(out, toks[from:i])
				from = i + 1
			}
		}
	}
	return append(out, toks[from:])
}

// splitDeclarator splits `head name {dims} [= value]` into the head tokens
// and the name token.
func splitDeclarator(toks []token) ([]token, token, bool) {
	for len(toks) > 0 && toks[0].kind == tokAttr {
		toks = toks[1:]
	}
	cut := len(toks)
	depth := 0
	for i, t := range toks {
		if t.kind != tokPunct {
			continue
		}
		switch t.text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		case "=":
			if depth == 0 && i < cut {
				cut = i
			}
		}
		if cut != len(toks) {
			break
		}
	}
	k := cut
	for k > 0 && toks[k-1].is("]") {
		depth := 0
		for k > 0 {
			k--
			if toks[k].is("]") {
				depth++
			} else if toks[k].is("[") {
				depth--
				if depth == 0 {
					break
				}
			}
		}
	}
	if k == 0 || !toks[k-1].name() {
		return nil, token{}, false
	}
	return toks[:k-1], toks[k-1], true
}
