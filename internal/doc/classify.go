package doc

import (
	"github.com/robert-at-pretension-io/svdoc/internal/syntax"
)

type classifier struct {
	tree             *syntax.Tree
	diags            *Diagnostics
	omitUndocumented bool
}

// buildContext classifies every scope and files the resulting items by kind.
func (c *classifier) buildContext(scopes []*Scope) Context {
	var ctx Context
	for _, s := range scopes {
		if s.Node == nil {
			c.diags.Warn(CodeMissingNode, 0, "scope without syntax node")
			continue
		}
		for _, it := range c.classify(s) {
			if c.omitUndocumented && undocumented(it) {
				continue
			}
			ctx.Add(it)
		}
	}
	return ctx
}

// classify maps one scope onto zero or more items. Declarations that name
// several entities yield one item per name, all sharing the block's doc.
func (c *classifier) classify(s *Scope) []Item {
	doc := normalize(s.Comments)
	line := c.tree.Line(s.Node.Range().Start)

	switch n := s.Node.(type) {
	case *syntax.ModuleAnsi:
		return []Item{ModuleItem{Name: c.ident(n.Name), Doc: doc, Line: line, Content: c.buildContext(s.Children)}}
	case *syntax.ModuleNonansi:
		return []Item{ModuleItem{Name: c.ident(n.Name), Doc: doc, Line: line, Content: c.buildContext(s.Children)}}
	case *syntax.PackageDecl:
		return []Item{PackageItem{Name: c.ident(n.Name), Doc: doc, Line: line, Content: c.buildContext(s.Children)}}
	case *syntax.TypeDeclDataType:
		return []Item{TypeItem{Name: c.ident(n.Name), Doc: doc, Line: line, Ty: c.tree.TextOf(n.DataType)}}
	case *syntax.NetDeclNetTypeIdentifier:
		return c.vars(doc, c.tree.TextOf(n.Qualifiers()...), netNames(n.Assigns))
	case *syntax.NetDeclNetType:
		return c.vars(doc, c.tree.TextOf(n.Qualifiers()...), netNames(n.Assigns))
	case *syntax.DataDecl:
		names := make([]*syntax.Identifier, len(n.Assigns))
		for i, a := range n.Assigns {
			names[i] = a.Name
		}
		return c.vars(doc, c.tree.TextOf(n.Qualifiers()...), names)
	case *syntax.AnsiPortNet:
		return []Item{PortItem{Name: c.ident(n.Name), Doc: doc, Line: line, Ty: c.tree.TextOf(n.Header)}}
	case *syntax.ParamDecl:
		ty := c.tree.TextOf(n.Type)
		items := make([]Item, 0, len(n.Assigns))
		for _, a := range n.Assigns {
			items = append(items, ParamItem{
				Name:  c.ident(a.Name),
				Doc:   doc,
				Line:  c.tree.Line(a.Range().Start),
				Ty:    ty,
				Local: n.Local(),
			})
		}
		return items
	default:
		c.diags.Warn(CodeUnsupportedDeclaration, line, "discarding doc for %s", syntax.Kind(n))
		return nil
	}
}

func (c *classifier) vars(doc, ty string, names []*syntax.Identifier) []Item {
	items := make([]Item, 0, len(names))
	for _, id := range names {
		items = append(items, VarItem{
			Name: c.ident(id),
			Doc:  doc,
			Line: c.tree.Line(id.Range().Start),
			Ty:   ty,
		})
	}
	return items
}

func (c *classifier) ident(id *syntax.Identifier) string {
	if id == nil {
		panic("doc: declaration without identifier in " + c.tree.Path)
	}
	return c.tree.Text(id)
}

func netNames(assigns []*syntax.NetDeclAssignment) []*syntax.Identifier {
	names := make([]*syntax.Identifier, len(assigns))
	for i, a := range assigns {
		names[i] = a.Name
	}
	return names
}

func undocumented(it Item) bool {
	if it.ItemDoc() != "" {
		return false
	}
	switch v := it.(type) {
	case ModuleItem:
		return v.Content.Empty()
	case PackageItem:
		return v.Content.Empty()
	}
	return true
}
