package document

import (
	sitter "github.com/smacker/go-tree-sitter"
)

const (
	declQuery     = "(component) @component (primitive) @primitive"
	declNameQuery = "(component name: (ident) @name) (primitive name: (ident) @name)"
	importQuery   = "(import (string) @path)"
	ioPortQuery   = "(io_port name: (ident) @port)"
	cellQuery     = "(cell_assignment name: (ident) @cell (instantiation component: (ident) @component))"
	cellNameQuery = "(cell_assignment name: (ident) @cell)"
	groupQuery    = "(group name: (ident) @group)"
)

// Signature lists a component's input and output port names in declaration
// order.
type Signature struct {
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
}

// ComponentInfo is one component table entry: the signature plus the cells
// and groups declared in the component body. Primitives carry only a
// signature.
type ComponentInfo struct {
	Signature
	Cells  map[string]string `json:"cells"`
	Groups []string          `json:"groups"`
}

// ComponentTable maps the component and primitive names declared in one
// file to their entries. It holds plain values, no tree nodes, so entries
// stay valid across reparses and can be cached per file.
type ComponentTable map[string]ComponentInfo

// rebuildTable derives the component table from the current tree. The old
// table is discarded wholesale rather than patched.
func (d *Document) rebuildTable() {
	table := make(ComponentTable)
	root := d.tree.RootNode()
	decls := d.Captures(declQuery, root)
	for _, comp := range decls["component"] {
		name, info := d.tableEntry(comp)
		if name != "" {
			table[name] = info
		}
	}
	for _, prim := range decls["primitive"] {
		name, info := d.tableEntry(prim)
		if name != "" {
			table[name] = info
		}
	}
	d.table = table
}

// tableEntry builds the entry for a single component or primitive node.
// Queries run against the declaration's own subtree so sibling components
// never leak into each other's entries.
func (d *Document) tableEntry(comp *sitter.Node) (string, ComponentInfo) {
	nameNode := comp.ChildByFieldName("name")
	if nameNode == nil {
		return "", ComponentInfo{}
	}

	info := ComponentInfo{Cells: make(map[string]string)}
	if sig := comp.ChildByFieldName("signature"); sig != nil {
		if inputs := sig.ChildByFieldName("inputs"); inputs != nil {
			for _, p := range d.Captures(ioPortQuery, inputs)["port"] {
				info.Inputs = append(info.Inputs, d.NodeText(p))
			}
		}
		if outputs := sig.ChildByFieldName("outputs"); outputs != nil {
			for _, p := range d.Captures(ioPortQuery, outputs)["port"] {
				info.Outputs = append(info.Outputs, d.NodeText(p))
			}
		}
	}

	cells := d.Captures(cellQuery, comp)
	names, comps := cells["cell"], cells["component"]
	for i, cell := range names {
		if i < len(comps) {
			info.Cells[d.NodeText(cell)] = d.NodeText(comps[i])
		}
	}
	for _, g := range d.Captures(groupQuery, comp)["group"] {
		info.Groups = append(info.Groups, d.NodeText(g))
	}
	return d.NodeText(nameNode), info
}
