package doc

import (
	"sort"

	"github.com/robert-at-pretension-io/svdoc/internal/syntax"
)

// Scope pairs a documentable syntax node with the comment block above it and
// the scopes nested inside it. The root scope has no node.
type Scope struct {
	Node     syntax.Node
	Comments []string
	Children []*Scope
}

type scopeBuilder struct {
	tree    *syntax.Tree
	diags   *Diagnostics
	claimed map[int]bool
}

// buildScopes walks the tree once and returns the root scope.
func buildScopes(tree *syntax.Tree, diags *Diagnostics) *Scope {
	b := &scopeBuilder{
		tree:    tree,
		diags:   diags,
		claimed: make(map[int]bool),
	}
	root := &Scope{}
	if tree.Root != nil {
		for _, n := range tree.Root.Items {
			b.visit(n, root)
		}
	}
	return root
}

func (b *scopeBuilder) visit(n syntax.Node, parent *Scope) {
	switch v := n.(type) {
	case *syntax.ModuleAnsi, *syntax.ModuleNonansi, *syntax.ModuleWildcard, *syntax.ModuleExtern,
		*syntax.PackageDecl,
		*syntax.TypeDeclDataType, *syntax.TypeDeclForward, *syntax.TypeDeclInterface,
		*syntax.NetDeclNetType, *syntax.NetDeclNetTypeIdentifier, *syntax.NetDeclInterconnect,
		*syntax.DataDecl,
		*syntax.AnsiPortNet, *syntax.AnsiPortVariable, *syntax.AnsiPortExplicit, *syntax.PortDecl,
		*syntax.ParamDecl, *syntax.ParamTypeDecl:
		s := &Scope{Node: n, Comments: b.commentsBefore(n.Range().Start)}
		b.diags.Debug("scope", "kind", syntax.Kind(n), "line", b.tree.Line(n.Range().Start), "comments", len(s.Comments))
		for _, c := range syntax.Children(n) {
			b.visit(c, s)
		}
		parent.Children = append(parent.Children, s)
	case *syntax.Opaque:
		b.diags.Warn(CodeOpaqueDeclaration, b.tree.Line(v.Range().Start), "skipping %s declaration", v.Kind)
	default:
		for _, c := range syntax.Children(n) {
			b.visit(c, parent)
		}
	}
}

// commentsBefore collects the run of standalone line comments stacked directly
// above offset p. Each comment must sit alone on its line, on the line right
// above the next comment (or p), with only whitespace in between.
func (b *scopeBuilder) commentsBefore(p int) []string {
	comments := b.tree.Comments
	i := sort.Search(len(comments), func(i int) bool { return comments[i].End > p }) - 1

	var run []int
	next := p
	for ; i >= 0; i-- {
		c := comments[i]
		if c.Block || b.claimed[i] || !b.attachable(c, next) {
			break
		}
		run = append(run, i)
		next = c.Start
	}

	out := make([]string, len(run))
	for j, idx := range run {
		b.claimed[idx] = true
		out[len(run)-1-j] = comments[idx].Text
	}
	return out
}

func (b *scopeBuilder) attachable(c syntax.Comment, next int) bool {
	line := b.tree.Line(c.Start)
	if b.tree.Line(next) != line+1 {
		return false
	}
	if !b.tree.Blank(c.End, next) {
		return false
	}
	_, col := b.tree.Position(c.Start)
	return b.tree.Blank(c.Start-col+1, c.Start)
}
