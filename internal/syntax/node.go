package syntax

// Span is a half-open byte range [Start, End) into a file's source.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Range returns the span itself. It is promoted onto every node variant.
func (s Span) Range() Span { return s }

func (Span) node() {}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int { return s.End - s.Start }

// Node is one lowered syntax node. The set of variants is closed: only types
// in this package embed Span and therefore implement Node.
type Node interface {
	Range() Span
	node()
}

// FragmentRole names the part a Fragment plays inside a declaration.
type FragmentRole int

const (
	RoleNetType FragmentRole = iota
	RoleNetTypeIdentifier
	RoleStrength
	RoleVectorScalar
	RoleDataType
	RoleDelay
	RoleDirection
	RoleVar
	RoleConst
	RoleLifetime
	RoleHeader
)

var roleNames = [...]string{
	RoleNetType:           "net_type",
	RoleNetTypeIdentifier: "net_type_identifier",
	RoleStrength:          "strength",
	RoleVectorScalar:      "vector_scalar",
	RoleDataType:          "data_type",
	RoleDelay:             "delay",
	RoleDirection:         "direction",
	RoleVar:               "var",
	RoleConst:             "const",
	RoleLifetime:          "lifetime",
	RoleHeader:            "header",
}

func (r FragmentRole) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return "unknown"
}

// Identifier is a simple or escaped identifier token. For escaped identifiers
// the span starts at the backslash and stops before the terminating whitespace.
type Identifier struct {
	Span
	Escaped bool
}

// Fragment is a qualifier piece of a declaration (net type keyword, strength,
// data type, delay, ...). Fragments are kept in source order.
type Fragment struct {
	Span
	Role FragmentRole
}

// SourceText is the root of a file.
type SourceText struct {
	Span
	Items []Node
}

// Block is a transparent container: generate regions, generate blocks,
// conditional and loop generate constructs.
type Block struct {
	Span
	Kind  string
	Items []Node
}

// Other is any construct without documentable content: statements,
// instantiations, assignments, directives.
type Other struct {
	Span
	Kind string
}

// Opaque is a declaration the lowering recognised as documentable-looking but
// could not structure (class, interface, function, ...).
type Opaque struct {
	Span
	Kind string
	Name *Identifier
}

// ModuleAnsi is a module whose ports are declared inline in the header.
type ModuleAnsi struct {
	Span
	Keyword string
	Name    *Identifier
	Params  []Node
	Ports   []Node
	Items   []Node
}

// ModuleNonansi is a module whose header lists port names only.
type ModuleNonansi struct {
	Span
	Keyword string
	Name    *Identifier
	Params  []Node
	Ports   []*Identifier
	Items   []Node
}

// ModuleWildcard is a module with a `(.*)` port list.
type ModuleWildcard struct {
	Span
	Name  *Identifier
	Items []Node
}

// ModuleExtern is an `extern module` prototype.
type ModuleExtern struct {
	Span
	Name *Identifier
}

// PackageDecl is a package declaration.
type PackageDecl struct {
	Span
	Name  *Identifier
	Items []Node
}

// TypeDeclDataType is `typedef <data_type> name {dims};`.
type TypeDeclDataType struct {
	Span
	DataType *Fragment
	Name     *Identifier
}

// TypeDeclForward is `typedef [enum|struct|union|class] name;`.
type TypeDeclForward struct {
	Span
	Name *Identifier
}

// TypeDeclInterface is `typedef intf.type_name name;`.
type TypeDeclInterface struct {
	Span
	Name *Identifier
}

// NetDeclNetType is a net declared with a built-in net type keyword:
// net_type [strength] [vectored|scalared] [data_type] [delay] assignments;
type NetDeclNetType struct {
	Span
	NetType      *Fragment
	Strength     *Fragment
	VectorScalar *Fragment
	DataType     *Fragment
	Delay        *Fragment
	Assigns      []*NetDeclAssignment
}

// Qualifiers returns the present qualifier fragments in declaration order.
func (n *NetDeclNetType) Qualifiers() []Node {
	return presentFragments(n.NetType, n.Strength, n.VectorScalar, n.DataType, n.Delay)
}

// NetDeclNetTypeIdentifier is a net declared with a user-defined nettype:
// nettype_identifier [delay] assignments;
type NetDeclNetTypeIdentifier struct {
	Span
	NetType *Fragment
	Delay   *Fragment
	Assigns []*NetDeclAssignment
}

// Qualifiers returns the present qualifier fragments in declaration order.
func (n *NetDeclNetTypeIdentifier) Qualifiers() []Node {
	return presentFragments(n.NetType, n.Delay)
}

// NetDeclInterconnect is `interconnect ... name;`.
type NetDeclInterconnect struct {
	Span
	Name *Identifier
}

// NetDeclAssignment is one declared name with optional dimensions and initializer.
type NetDeclAssignment struct {
	Span
	Name *Identifier
}

// DataDecl is a variable declaration:
// [const] [var] [lifetime] data_type assignments;
type DataDecl struct {
	Span
	Const    *Fragment
	Var      *Fragment
	Lifetime *Fragment
	DataType *Fragment
	Assigns  []*VarDeclAssignment
}

// Qualifiers returns the present qualifier fragments in declaration order.
func (d *DataDecl) Qualifiers() []Node {
	return presentFragments(d.Const, d.Var, d.Lifetime, d.DataType)
}

// VarDeclAssignment is one declared variable name.
type VarDeclAssignment struct {
	Span
	Name *Identifier
}

// AnsiPortNet is an ANSI port whose header is a net port header, an
// interface port header or empty (inherited from the previous port).
type AnsiPortNet struct {
	Span
	Header *Fragment
	Name   *Identifier
}

// AnsiPortVariable is an ANSI port whose header carries the `var` keyword.
type AnsiPortVariable struct {
	Span
	Header *Fragment
	Name   *Identifier
}

// AnsiPortExplicit is `.name(expr)`.
type AnsiPortExplicit struct {
	Span
	Name *Identifier
}

// PortDecl is a non-ANSI port direction declaration in a module body.
type PortDecl struct {
	Span
	Direction *Fragment
	Names     []*Identifier
}

// ParamDecl is a value parameter declaration, either a body declaration with
// `parameter` or `localparam`, or an entry of a parameter port list.
type ParamDecl struct {
	Span
	Keyword string
	Type    *Fragment
	Assigns []*ParamAssignment
}

// Local reports whether the declaration uses `localparam`.
func (p *ParamDecl) Local() bool { return p.Keyword == "localparam" }

// ParamTypeDecl is `parameter type T = ...`.
type ParamTypeDecl struct {
	Span
	Keyword string
	Names   []*Identifier
}

// ParamAssignment is one `name {dims} [= value]` of a parameter declaration.
type ParamAssignment struct {
	Span
	Name *Identifier
}

func presentFragments(fs ...*Fragment) []Node {
	out := make([]Node, 0, len(fs))
	for _, f := range fs {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}

// Children returns the structural children of n in source order. Leaves and
// name/type sub-nodes are not included.
func Children(n Node) []Node {
	switch v := n.(type) {
	case *SourceText:
		return v.Items
	case *Block:
		return v.Items
	case *ModuleAnsi:
		out := make([]Node, 0, len(v.Params)+len(v.Ports)+len(v.Items))
		out = append(out, v.Params...)
		out = append(out, v.Ports...)
		return append(out, v.Items...)
	case *ModuleNonansi:
		out := make([]Node, 0, len(v.Params)+len(v.Items))
		out = append(out, v.Params...)
		return append(out, v.Items...)
	case *ModuleWildcard:
		return v.Items
	case *PackageDecl:
		return v.Items
	}
	return nil
}
