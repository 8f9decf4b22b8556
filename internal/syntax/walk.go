package syntax

import (
	"fmt"
	"io"
	"strings"
)

// Walk visits n and its structural children depth first. Returning false
// from fn skips the children of the current node.
func Walk(n Node, fn func(n Node, depth int) bool) {
	walk(n, 0, fn)
}

func walk(n Node, depth int, fn func(Node, int) bool) {
	if !fn(n, depth) {
		return
	}
	for _, c := range Children(n) {
		walk(c, depth+1, fn)
	}
}

// Kind returns a short name for the node variant.
func Kind(n Node) string {
	switch v := n.(type) {
	case *SourceText:
		return "source_text"
	case *Block:
		return "block:" + v.Kind
	case *Other:
		return "other:" + v.Kind
	case *Opaque:
		return "opaque:" + v.Kind
	case *Identifier:
		return "identifier"
	case *Fragment:
		return "fragment:" + v.Role.String()
	case *ModuleAnsi:
		return "module_ansi"
	case *ModuleNonansi:
		return "module_nonansi"
	case *ModuleWildcard:
		return "module_wildcard"
	case *ModuleExtern:
		return "module_extern"
	case *PackageDecl:
		return "package"
	case *TypeDeclDataType:
		return "typedef_data_type"
	case *TypeDeclForward:
		return "typedef_forward"
	case *TypeDeclInterface:
		return "typedef_interface"
	case *NetDeclNetType:
		return "net_decl_net_type"
	case *NetDeclNetTypeIdentifier:
		return "net_decl_net_type_identifier"
	case *NetDeclInterconnect:
		return "net_decl_interconnect"
	case *NetDeclAssignment:
		return "net_decl_assignment"
	case *DataDecl:
		return "data_decl"
	case *VarDeclAssignment:
		return "var_decl_assignment"
	case *AnsiPortNet:
		return "ansi_port_net"
	case *AnsiPortVariable:
		return "ansi_port_variable"
	case *AnsiPortExplicit:
		return "ansi_port_explicit"
	case *PortDecl:
		return "port_decl"
	case *ParamDecl:
		return "param_decl"
	case *ParamTypeDecl:
		return "param_type_decl"
	case *ParamAssignment:
		return "param_assignment"
	}
	return fmt.Sprintf("%T", n)
}

// Dump writes an indented outline of the tree, one node per line.
func Dump(w io.Writer, t *Tree) error {
	var err error
	Walk(t.Root, func(n Node, depth int) bool {
		if err != nil {
			return false
		}
		line := t.Line(n.Range().Start)
		label := Kind(n)
		if name := dumpName(t, n); name != "" {
			label += " " + name
		}
		_, err = fmt.Fprintf(w, "%s%s @%d\n", strings.Repeat("  ", depth), label, line)
		return true
	})
	return err
}

func dumpName(t *Tree, n Node) string {
	var ids []*Identifier
	switch v := n.(type) {
	case *Opaque:
		ids = append(ids, v.Name)
	case *ModuleAnsi:
		ids = append(ids, v.Name)
	case *ModuleNonansi:
		ids = append(ids, v.Name)
	case *ModuleWildcard:
		ids = append(ids, v.Name)
	case *ModuleExtern:
		ids = append(ids, v.Name)
	case *PackageDecl:
		ids = append(ids, v.Name)
	case *TypeDeclDataType:
		ids = append(ids, v.Name)
	case *TypeDeclForward:
		ids = append(ids, v.Name)
	case *TypeDeclInterface:
		ids = append(ids, v.Name)
	case *NetDeclNetType:
		for _, a := range v.Assigns {
			ids = append(ids, a.Name)
		}
	case *NetDeclNetTypeIdentifier:
		for _, a := range v.Assigns {
			ids = append(ids, a.Name)
		}
	case *NetDeclInterconnect:
		ids = append(ids, v.Name)
	case *DataDecl:
		for _, a := range v.Assigns {
			ids = append(ids, a.Name)
		}
	case *AnsiPortNet:
		ids = append(ids, v.Name)
	case *AnsiPortVariable:
		ids = append(ids, v.Name)
	case *AnsiPortExplicit:
		ids = append(ids, v.Name)
	case *PortDecl:
		ids = append(ids, v.Names...)
	case *ParamDecl:
		for _, a := range v.Assigns {
			ids = append(ids, a.Name)
		}
	case *ParamTypeDecl:
		ids = append(ids, v.Names...)
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != nil {
			names = append(names, t.Text(id))
		}
	}
	return strings.Join(names, ",")
}
