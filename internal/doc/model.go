package doc

// ItemKind discriminates the Item variants.
type ItemKind string

const (
	KindModule  ItemKind = "module"
	KindPackage ItemKind = "package"
	KindParam   ItemKind = "param"
	KindPort    ItemKind = "port"
	KindType    ItemKind = "type"
	KindVar     ItemKind = "var"
)

// Item is one documented declaration. The variants are ModuleItem,
// PackageItem, ParamItem, PortItem, TypeItem and VarItem.
type Item interface {
	Kind() ItemKind
	ItemName() string
	ItemDoc() string
	item()
}

// ModuleItem documents a module and owns the documentation of its body.
type ModuleItem struct {
	Name    string  `json:"name"`
	Doc     string  `json:"doc"`
	Line    int     `json:"line"`
	Content Context `json:"content"`
}

// PackageItem documents a package and owns the documentation of its body.
type PackageItem struct {
	Name    string  `json:"name"`
	Doc     string  `json:"doc"`
	Line    int     `json:"line"`
	Content Context `json:"content"`
}

// ParamItem documents one parameter assignment.
type ParamItem struct {
	Name  string `json:"name"`
	Doc   string `json:"doc"`
	Line  int    `json:"line"`
	Ty    string `json:"ty,omitempty"`
	Local bool   `json:"local,omitempty"`
}

// PortItem documents one ANSI port.
type PortItem struct {
	Name string `json:"name"`
	Doc  string `json:"doc"`
	Line int    `json:"line"`
	Ty   string `json:"ty,omitempty"`
}

// TypeItem documents a typedef. Ty is the aliased type as written.
type TypeItem struct {
	Name string `json:"name"`
	Doc  string `json:"doc"`
	Line int    `json:"line"`
	Ty   string `json:"ty"`
}

// VarItem documents one declared net or variable name. Ty is the declaration's
// qualifier text as written.
type VarItem struct {
	Name string `json:"name"`
	Doc  string `json:"doc"`
	Line int    `json:"line"`
	Ty   string `json:"ty"`
}

func (ModuleItem) Kind() ItemKind  { return KindModule }
func (PackageItem) Kind() ItemKind { return KindPackage }
func (ParamItem) Kind() ItemKind   { return KindParam }
func (PortItem) Kind() ItemKind    { return KindPort }
func (TypeItem) Kind() ItemKind    { return KindType }
func (VarItem) Kind() ItemKind     { return KindVar }

func (i ModuleItem) ItemName() string  { return i.Name }
func (i PackageItem) ItemName() string { return i.Name }
func (i ParamItem) ItemName() string   { return i.Name }
func (i PortItem) ItemName() string    { return i.Name }
func (i TypeItem) ItemName() string    { return i.Name }
func (i VarItem) ItemName() string     { return i.Name }

func (i ModuleItem) ItemDoc() string  { return i.Doc }
func (i PackageItem) ItemDoc() string { return i.Doc }
func (i ParamItem) ItemDoc() string   { return i.Doc }
func (i PortItem) ItemDoc() string    { return i.Doc }
func (i TypeItem) ItemDoc() string    { return i.Doc }
func (i VarItem) ItemDoc() string     { return i.Doc }

func (ModuleItem) item()  {}
func (PackageItem) item() {}
func (ParamItem) item()   {}
func (PortItem) item()    {}
func (TypeItem) item()    {}
func (VarItem) item()     {}

// Context holds the items declared at one nesting level, partitioned by kind.
// Each list keeps declaration order.
type Context struct {
	Packages []PackageItem `json:"packages,omitempty"`
	Modules  []ModuleItem  `json:"modules"`
	Params   []ParamItem   `json:"params"`
	Ports    []PortItem    `json:"ports"`
	Types    []TypeItem    `json:"types"`
	Vars     []VarItem     `json:"vars"`
}

// Add appends an item to the list for its kind.
func (c *Context) Add(it Item) {
	switch v := it.(type) {
	case ModuleItem:
		c.Modules = append(c.Modules, v)
	case PackageItem:
		c.Packages = append(c.Packages, v)
	case ParamItem:
		c.Params = append(c.Params, v)
	case PortItem:
		c.Ports = append(c.Ports, v)
	case TypeItem:
		c.Types = append(c.Types, v)
	case VarItem:
		c.Vars = append(c.Vars, v)
	}
}

// Empty reports whether the context holds no items.
func (c Context) Empty() bool {
	return len(c.Packages) == 0 && len(c.Modules) == 0 && len(c.Params) == 0 &&
		len(c.Ports) == 0 && len(c.Types) == 0 && len(c.Vars) == 0
}

// Merge appends every list of other to c, keeping order.
func (c *Context) Merge(other Context) {
	c.Packages = append(c.Packages, other.Packages...)
	c.Modules = append(c.Modules, other.Modules...)
	c.Params = append(c.Params, other.Params...)
	c.Ports = append(c.Ports, other.Ports...)
	c.Types = append(c.Types, other.Types...)
	c.Vars = append(c.Vars, other.Vars...)
}

// Stats counts items of every kind, nested levels included.
type Stats struct {
	Packages int `json:"packages"`
	Modules  int `json:"modules"`
	Params   int `json:"params"`
	Ports    int `json:"ports"`
	Types    int `json:"types"`
	Vars     int `json:"vars"`
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Packages += other.Packages
	s.Modules += other.Modules
	s.Params += other.Params
	s.Ports += other.Ports
	s.Types += other.Types
	s.Vars += other.Vars
}

// Total is the number of items of all kinds.
func (s Stats) Total() int {
	return s.Packages + s.Modules + s.Params + s.Ports + s.Types + s.Vars
}

// Count returns the item counts of c and everything nested below it.
func (c Context) Count() Stats {
	s := Stats{
		Packages: len(c.Packages),
		Modules:  len(c.Modules),
		Params:   len(c.Params),
		Ports:    len(c.Ports),
		Types:    len(c.Types),
		Vars:     len(c.Vars),
	}
	for _, p := range c.Packages {
		s.Add(p.Content.Count())
	}
	for _, m := range c.Modules {
		s.Add(m.Content.Count())
	}
	return s
}
