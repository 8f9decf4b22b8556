package parser

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/alexaandru/go-sitter-forest/systemverilog"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/robert-at-pretension-io/svdoc/internal/syntax"
)

var (
	svLangOnce sync.Once
	svLang     *sitter.Language
)

func language() *sitter.Language {
	svLangOnce.Do(func() {
		svLang = sitter.NewLanguage(systemverilog.GetLanguage())
	})
	return svLang
}

// parseTreeSitter parses with a fresh tree-sitter parser per call and lowers
// the concrete tree.
func parseTreeSitter(ctx context.Context, tree *syntax.Tree) error {
	ts := sitter.NewParser()
	ts.SetLanguage(language())
	cst, err := ts.ParseCtx(ctx, nil, tree.Source)
	if err != nil {
		return fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer cst.Close()

	root, comments, err := lower(tree, tsNode{cst.RootNode()})
	if err != nil {
		return err
	}
	tree.Root = root
	tree.Comments = comments
	return nil
}

// cstNode is the part of a concrete syntax node the lowering needs.
type cstNode interface {
	Type() string
	StartByte() uint32
	EndByte() uint32
	ChildCount() uint32
	Child(i int) cstNode
	IsMissing() bool
}

type tsNode struct{ n *sitter.Node }

func (t tsNode) Type() string        { return t.n.Type() }
func (t tsNode) StartByte() uint32   { return t.n.StartByte() }
func (t tsNode) EndByte() uint32     { return t.n.EndByte() }
func (t tsNode) ChildCount() uint32  { return t.n.ChildCount() }
func (t tsNode) Child(i int) cstNode { return tsNode{t.n.Child(i)} }
func (t tsNode) IsMissing() bool     { return t.n.IsMissing() }

type lowering struct {
	tree     *syntax.Tree
	comments []syntax.Comment
}

func lower(tree *syntax.Tree, root cstNode) (*syntax.SourceText, []syntax.Comment, error) {
	l := &lowering{tree: tree}
	if err := l.check(root); err != nil {
		return nil, nil, err
	}
	l.collectComments(root)
	items := l.items(root)
	sort.Slice(l.comments, func(i, j int) bool { return l.comments[i].Start < l.comments[j].Start })
	return &syntax.SourceText{
		Span:  syntax.Span{Start: 0, End: len(tree.Source)},
		Items: items,
	}, l.comments, nil
}

// check reports the first ERROR or MISSING node as a parse error.
func (l *lowering) check(n cstNode) error {
	if n.Type() == "ERROR" {
		text := strings.TrimSpace(l.text(n))
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[:i]
		}
		return syntax.NewParseError(l.tree, int(n.StartByte()), spanLen(n), "syntax error near %q", text)
	}
	if n.IsMissing() {
		return syntax.NewParseError(l.tree, int(n.StartByte()), 1, "missing %s", n.Type())
	}
	for _, c := range children(n) {
		if err := l.check(c); err != nil {
			return err
		}
	}
	return nil
}

func spanLen(n cstNode) int {
	if d := int(n.EndByte() - n.StartByte()); d > 0 {
		return d
	}
	return 1
}

func children(n cstNode) []cstNode {
	out := make([]cstNode, 0, n.ChildCount())
	for i := 0; i < int(n.ChildCount()); i++ {
		out = append(out, n.Child(i))
	}
	return out
}

func firstChild(n cstNode) cstNode {
	if n == nil || n.ChildCount() == 0 {
		return nil
	}
	return n.Child(0)
}

func span(n cstNode) syntax.Span {
	return syntax.Span{Start: int(n.StartByte()), End: int(n.EndByte())}
}

func (l *lowering) text(n cstNode) string {
	return string(l.tree.Source[n.StartByte():n.EndByte()])
}

// items lowers the children of a container node.
func (l *lowering) items(n cstNode) []syntax.Node {
	var out []syntax.Node
	for _, c := range children(n) {
		if item := l.node(c); item != nil {
			out = append(out, item)
		}
	}
	return out
}

var opaqueTypes = map[string]string{
	"interface_declaration":       "interface",
	"interface_class_declaration": "class",
	"class_declaration":           "class",
	"program_declaration":         "program",
	"checker_declaration":         "checker",
	"function_declaration":        "function",
	"task_declaration":            "task",
	"covergroup_declaration":      "covergroup",
	"property_declaration":        "property",
	"sequence_declaration":        "sequence",
	"clocking_declaration":        "clocking",
	"config_declaration":          "config",
	"udp_declaration":             "primitive",
	"specify_block":               "specify",
	"nettype_declaration":         "nettype",
}

func (l *lowering) node(n cstNode) syntax.Node {
	typ := n.Type()
	if typ == "comment" {
		return nil
	}
	if kind, ok := opaqueTypes[typ]; ok {
		return &syntax.Opaque{Span: span(n), Kind: kind, Name: l.firstIdent(n)}
	}

	switch typ {
	case "module_declaration":
		return l.module(n)
	case "package_declaration":
		return &syntax.PackageDecl{Span: span(n), Name: l.firstIdent(n), Items: l.bodyItems(n)}
	case "type_declaration":
		return l.typedef(n)
	case "net_declaration":
		return l.netDecl(n)
	case "data_declaration":
		return l.dataDecl(n)
	case "parameter_declaration", "local_parameter_declaration":
		return l.paramDecl(n)
	case "input_declaration", "output_declaration", "inout_declaration", "ref_declaration", "port_declaration":
		return l.portDecl(n)
	}

	if n.ChildCount() == 0 {
		return nil
	}
	items := l.items(n)
	if len(items) == 0 {
		return &syntax.Other{Span: span(n), Kind: typ}
	}
	return &syntax.Block{Span: span(n), Kind: typ, Items: items}
}

func (l *lowering) comment(n cstNode) {
	text := l.text(n)
	c := syntax.Comment{Span: span(n)}
	switch {
	case strings.HasPrefix(text, "//"):
		text = strings.TrimSuffix(text, "\n")
		text = strings.TrimSuffix(text, "\r")
		c.End = c.Start + len(text)
		c.Text = text[2:]
	case strings.HasPrefix(text, "/*"):
		c.Block = true
		c.Text = strings.TrimSuffix(text[2:], "*/")
	}
	l.comments = append(l.comments, c)
}

func isIdent(n cstNode) bool {
	t := n.Type()
	return strings.HasSuffix(t, "identifier") && t != "system_tf_identifier"
}

// leafIdent descends into single-purpose identifier wrappers such as
// port_identifier down to the token.
func leafIdent(n cstNode) *syntax.Identifier {
	for n.ChildCount() > 0 {
		var next cstNode
		for _, c := range children(n) {
			if isIdent(c) {
				next = c
				break
			}
		}
		if next == nil {
			break
		}
		n = next
	}
	return &syntax.Identifier{Span: span(n), Escaped: n.Type() == "escaped_identifier"}
}

// firstIdent finds the first identifier in pre-order, skipping bodies.
func (l *lowering) firstIdent(n cstNode) *syntax.Identifier {
	for _, c := range children(n) {
		if isIdent(c) {
			return leafIdent(c)
		}
	}
	for _, c := range children(n) {
		if strings.HasSuffix(c.Type(), "_header") || c.Type() == "list_of_type_assignments" {
			if id := l.firstIdent(c); id != nil {
				return id
			}
		}
	}
	return nil
}

func find(n cstNode, types ...string) cstNode {
	for _, c := range children(n) {
		for _, t := range types {
			if c.Type() == t {
				return c
			}
		}
	}
	return nil
}

func (l *lowering) module(n cstNode) syntax.Node {
	header := find(n, "module_ansi_header", "module_nonansi_header", "module_header")
	if header == nil {
		header = n
	}
	name := l.firstIdent(header)
	if first := firstChild(n); first != nil && first.Type() == "extern" {
		return &syntax.ModuleExtern{Span: span(n), Name: name}
	}
	for _, c := range children(header) {
		if c.Type() == ".*" {
			return &syntax.ModuleWildcard{Span: span(n), Name: name, Items: l.bodyItems(n)}
		}
	}

	kw := "module"
	if k := find(header, "module_keyword"); k != nil {
		kw = strings.TrimSpace(l.text(k))
	}
	params := l.paramPorts(find(header, "parameter_port_list"))
	items := l.bodyItems(n)

	if ports := find(header, "list_of_port_declarations"); ports != nil || header.Type() == "module_ansi_header" {
		var anp []syntax.Node
		if ports != nil {
			for _, c := range children(ports) {
				if c.Type() == "ansi_port_declaration" {
					anp = append(anp, l.ansiPort(c))
				}
			}
		}
		return &syntax.ModuleAnsi{Span: span(n), Keyword: kw, Name: name, Params: params, Ports: anp, Items: items}
	}

	var names []*syntax.Identifier
	if ports := find(header, "list_of_ports"); ports != nil {
		for _, c := range children(ports) {
			if c.Type() != "port" {
				continue
			}
			if id := l.firstIdentDeep(c); id != nil {
				names = append(names, id)
			}
		}
	}
	return &syntax.ModuleNonansi{Span: span(n), Keyword: kw, Name: name, Params: params, Ports: names, Items: items}
}

// bodyItems lowers everything after the header of a module or package.
func (l *lowering) bodyItems(n cstNode) []syntax.Node {
	var out []syntax.Node
	for _, c := range children(n) {
		if strings.HasSuffix(c.Type(), "_header") || isIdent(c) {
			continue
		}
		if item := l.node(c); item != nil {
			out = append(out, item)
		}
	}
	return out
}

// collectComments gathers every comment in the tree. Comments are extras and
// can sit at any depth, including inside headers and port lists.
func (l *lowering) collectComments(n cstNode) {
	if n.Type() == "comment" {
		l.comment(n)
		return
	}
	for _, c := range children(n) {
		l.collectComments(c)
	}
}

func (l *lowering) firstIdentDeep(n cstNode) *syntax.Identifier {
	if n == nil {
		return nil
	}
	if isIdent(n) {
		return leafIdent(n)
	}
	for _, c := range children(n) {
		if id := l.firstIdentDeep(c); id != nil {
			return id
		}
	}
	return nil
}

func (l *lowering) paramPorts(list cstNode) []syntax.Node {
	if list == nil {
		return nil
	}
	var (
		out  []syntax.Node
		last *syntax.ParamDecl
	)
	for _, c := range children(list) {
		switch c.Type() {
		case "parameter_port_declaration":
			inner := find(c, "parameter_declaration", "local_parameter_declaration")
			var d syntax.Node
			if inner != nil {
				d = l.paramDecl(inner)
			} else {
				d = l.paramDecl(c)
			}
			if pd, ok := d.(*syntax.ParamDecl); ok {
				pd.Span = span(c)
				last = pd
			} else if pt, ok := d.(*syntax.ParamTypeDecl); ok {
				pt.Span = span(c)
				last = nil
			}
			out = append(out, d)
		case "list_of_param_assignments", "param_assignment":
			assigns := l.paramAssigns(c)
			if last != nil {
				last.Assigns = append(last.Assigns, assigns...)
				last.End = int(c.EndByte())
				continue
			}
			last = &syntax.ParamDecl{Span: span(c), Assigns: assigns}
			out = append(out, last)
		}
	}
	return out
}

func (l *lowering) paramAssigns(n cstNode) []*syntax.ParamAssignment {
	if n.Type() == "param_assignment" {
		return []*syntax.ParamAssignment{{Span: span(n), Name: l.firstIdentDeep(n)}}
	}
	var out []*syntax.ParamAssignment
	for _, c := range children(n) {
		if c.Type() == "param_assignment" {
			out = append(out, &syntax.ParamAssignment{Span: span(c), Name: l.firstIdentDeep(c)})
		}
	}
	return out
}

func (l *lowering) paramDecl(n cstNode) syntax.Node {
	kw := ""
	if first := firstChild(n); first != nil && (first.Type() == "parameter" || first.Type() == "localparam") {
		kw = first.Type()
	}
	decl := n
	if tp := find(n, "type_parameter_declaration"); tp != nil {
		decl = tp
	}
	if types := find(decl, "list_of_type_assignments"); types != nil || find(decl, "type") != nil {
		var names []*syntax.Identifier
		if types != nil {
			for _, c := range children(types) {
				if c.Type() == "type_assignment" {
					names = append(names, l.firstIdentDeep(c))
				}
			}
		}
		return &syntax.ParamTypeDecl{Span: span(n), Keyword: kw, Names: names}
	}
	d := &syntax.ParamDecl{Span: span(n), Keyword: kw}
	if ty := find(n, "data_type_or_implicit", "data_type", "implicit_data_type"); ty != nil && ty.EndByte() > ty.StartByte() {
		d.Type = &syntax.Fragment{Span: span(ty), Role: syntax.RoleDataType}
	}
	if list := find(n, "list_of_param_assignments"); list != nil {
		d.Assigns = l.paramAssigns(list)
	}
	return d
}

// forwardKinds are the keywords that may sit between typedef and the name
// of a forward type declaration.
var forwardKinds = setOf("enum", "struct", "union", "class", "interface")

// typedef lowers a type_declaration. The grammar exposes the aliased type as
// data_type, class_type or a bare identifier, so the type is taken to be
// everything between the typedef keyword and the declared name.
func (l *lowering) typedef(n cstNode) syntax.Node {
	cs := children(n)
	nameAt := -1
	for i, c := range cs {
		if isIdent(c) {
			nameAt = i
		}
	}
	if nameAt < 0 {
		return &syntax.Other{Span: span(n), Kind: n.Type()}
	}
	name := leafIdent(cs[nameAt])
	if find(n, ".") != nil {
		return &syntax.TypeDeclInterface{Span: span(n), Name: name}
	}

	var between []cstNode
	for _, c := range cs[:nameAt] {
		if c.Type() != "typedef" {
			between = append(between, c)
		}
	}
	forward := true
	for _, c := range between {
		if !forwardKinds[c.Type()] {
			forward = false
		}
	}
	if forward {
		return &syntax.TypeDeclForward{Span: span(n), Name: name}
	}
	return &syntax.TypeDeclDataType{
		Span: span(n),
		DataType: &syntax.Fragment{
			Span: syntax.Span{Start: int(between[0].StartByte()), End: int(between[len(between)-1].EndByte())},
			Role: syntax.RoleDataType,
		},
		Name: name,
	}
}

var fragmentRoles = map[string]syntax.FragmentRole{
	"net_type":              syntax.RoleNetType,
	"drive_strength":        syntax.RoleStrength,
	"charge_strength":       syntax.RoleStrength,
	"vectored":              syntax.RoleVectorScalar,
	"scalared":              syntax.RoleVectorScalar,
	"data_type_or_implicit": syntax.RoleDataType,
	"data_type":             syntax.RoleDataType,
	"implicit_data_type":    syntax.RoleDataType,
	"delay3":                syntax.RoleDelay,
	"delay_control":         syntax.RoleDelay,
	"delay_value":           syntax.RoleDelay,
	"const":                 syntax.RoleConst,
	"var":                   syntax.RoleVar,
	"lifetime":              syntax.RoleLifetime,
	"port_direction":        syntax.RoleDirection,
}

func (l *lowering) fragments(n cstNode) map[syntax.FragmentRole]*syntax.Fragment {
	out := make(map[syntax.FragmentRole]*syntax.Fragment)
	for _, c := range children(n) {
		role, ok := fragmentRoles[c.Type()]
		if !ok || c.EndByte() == c.StartByte() {
			continue
		}
		if _, seen := out[role]; !seen {
			out[role] = &syntax.Fragment{Span: span(c), Role: role}
		}
	}
	return out
}

func (l *lowering) netDecl(n cstNode) syntax.Node {
	first := firstChild(n)
	if first != nil && first.Type() == "interconnect" {
		return &syntax.NetDeclInterconnect{Span: span(n), Name: l.firstIdentDeep(find(n, "list_of_net_decl_assignments", "net_decl_assignment"))}
	}
	var assigns []*syntax.NetDeclAssignment
	if list := find(n, "list_of_net_decl_assignments"); list != nil {
		for _, c := range children(list) {
			if c.Type() == "net_decl_assignment" {
				assigns = append(assigns, &syntax.NetDeclAssignment{Span: span(c), Name: l.firstIdentDeep(c)})
			}
		}
	}
	f := l.fragments(n)
	if first != nil && isIdent(first) {
		return &syntax.NetDeclNetTypeIdentifier{
			Span:    span(n),
			NetType: &syntax.Fragment{Span: span(first), Role: syntax.RoleNetTypeIdentifier},
			Delay:   f[syntax.RoleDelay],
			Assigns: assigns,
		}
	}
	return &syntax.NetDeclNetType{
		Span:         span(n),
		NetType:      f[syntax.RoleNetType],
		Strength:     f[syntax.RoleStrength],
		VectorScalar: f[syntax.RoleVectorScalar],
		DataType:     f[syntax.RoleDataType],
		Delay:        f[syntax.RoleDelay],
		Assigns:      assigns,
	}
}

// dataDecl lowers a data_declaration. The grammar also files typedefs,
// nettypes and package imports under it.
func (l *lowering) dataDecl(n cstNode) syntax.Node {
	if inner := find(n, "type_declaration", "nettype_declaration", "package_import_declaration"); inner != nil {
		return l.node(inner)
	}
	f := l.fragments(n)
	d := &syntax.DataDecl{
		Span:     span(n),
		Const:    f[syntax.RoleConst],
		Var:      f[syntax.RoleVar],
		Lifetime: f[syntax.RoleLifetime],
		DataType: f[syntax.RoleDataType],
	}
	if list := find(n, "list_of_variable_decl_assignments"); list != nil {
		for _, c := range children(list) {
			if c.Type() == "variable_decl_assignment" {
				d.Assigns = append(d.Assigns, &syntax.VarDeclAssignment{Span: span(c), Name: l.firstIdentDeep(c)})
			}
		}
	}
	if len(d.Assigns) == 0 {
		return &syntax.Other{Span: span(n), Kind: n.Type()}
	}
	return d
}

func (l *lowering) ansiPort(n cstNode) syntax.Node {
	cs := children(n)
	nameAt := -1
	for i, c := range cs {
		if c.Type() == "." {
			return &syntax.AnsiPortExplicit{Span: span(n), Name: l.firstIdentDeep(n)}
		}
		if isIdent(c) {
			nameAt = i
			break
		}
	}
	if nameAt < 0 {
		return &syntax.Other{Span: span(n), Kind: n.Type()}
	}
	name := leafIdent(cs[nameAt])
	var header *syntax.Fragment
	isVar := false
	if nameAt > 0 {
		header = &syntax.Fragment{
			Span: syntax.Span{Start: int(cs[0].StartByte()), End: int(cs[nameAt-1].EndByte())},
			Role: syntax.RoleHeader,
		}
		for _, c := range cs[:nameAt] {
			if hasToken(c, "var") {
				isVar = true
			}
		}
	}
	if isVar {
		return &syntax.AnsiPortVariable{Span: span(n), Header: header, Name: name}
	}
	return &syntax.AnsiPortNet{Span: span(n), Header: header, Name: name}
}

// hasToken reports whether the keyword typ appears anywhere under n. A
// variable_port_header only makes a variable port when it spells out var;
// `input logic [7:0] a` is a net port with an implicit net type.
func hasToken(n cstNode, typ string) bool {
	if n.Type() == typ {
		return true
	}
	for _, c := range children(n) {
		if hasToken(c, typ) {
			return true
		}
	}
	return false
}

func (l *lowering) portDecl(n cstNode) syntax.Node {
	d := &syntax.PortDecl{Span: span(n)}
	if inner := find(n, "input_declaration", "output_declaration", "inout_declaration", "ref_declaration"); inner != nil {
		n = inner
	}
	if dir := find(n, "port_direction", "input", "output", "inout", "ref"); dir != nil {
		d.Direction = &syntax.Fragment{Span: span(dir), Role: syntax.RoleDirection}
	}
	var collect func(cstNode)
	collect = func(c cstNode) {
		switch {
		case strings.HasPrefix(c.Type(), "list_of_") && strings.HasSuffix(c.Type(), "identifiers"):
			for _, g := range children(c) {
				if isIdent(g) {
					d.Names = append(d.Names, leafIdent(g))
				}
			}
		default:
			for _, g := range children(c) {
				collect(g)
			}
		}
	}
	collect(n)
	return d
}
