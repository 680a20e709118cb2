package document

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// ThingKind tags what kind of name sits under the cursor.
type ThingKind int

const (
	ThingCell ThingKind = iota
	ThingSelfPort
	ThingComponent
	ThingGroup
	ThingImport
)

func (k ThingKind) String() string {
	switch k {
	case ThingCell:
		return "cell"
	case ThingSelfPort:
		return "self-port"
	case ThingComponent:
		return "component"
	case ThingGroup:
		return "group"
	case ThingImport:
		return "import"
	}
	return "unknown"
}

// Thing is a classified reference at a cursor position. Node is nil for
// ThingComponent, and any node held here is only valid until the owning
// document's next Parse.
type Thing struct {
	Kind ThingKind
	Node *sitter.Node
	Name string
}

// Context names the structural region a cursor position falls in.
type Context int

const (
	Toplevel Context = iota
	InSignature
	InCells
	InGroup
	InWires
	InControl
)

func (c Context) String() string {
	switch c {
	case Toplevel:
		return "toplevel"
	case InSignature:
		return "signature"
	case InCells:
		return "cells"
	case InGroup:
		return "group"
	case InWires:
		return "wires"
	case InControl:
		return "control"
	}
	return "unknown"
}

// ThingAt classifies the name under point by the kind of its immediate
// parent node. Positions that carry no resolvable name (keywords,
// operators, whitespace) report nothing.
func (d *Document) ThingAt(point sitter.Point) (Thing, bool) {
	node := d.NodeAt(point)
	if node == nil {
		return Thing{}, false
	}
	parent := node.Parent()
	if parent == nil {
		return Thing{}, false
	}

	switch parent.Type() {
	case "port":
		// In `cell.port` the cell name has a named sibling after it. A
		// lone identifier is a reference to the component's own port.
		if node.NextNamedSibling() != nil {
			return Thing{Kind: ThingCell, Node: node, Name: d.NodeText(node)}, true
		}
		if node.PrevNamedSibling() == nil {
			return Thing{Kind: ThingSelfPort, Node: node, Name: d.NodeText(node)}, true
		}
		return Thing{}, false
	case "enable":
		return Thing{Kind: ThingGroup, Node: node, Name: d.NodeText(node)}, true
	case "hole":
		// Only the group side of `group[hole]` resolves. The hole name
		// itself, the last named child, has no definition site.
		if node.NextNamedSibling() != nil {
			return Thing{Kind: ThingGroup, Node: node, Name: d.NodeText(node)}, true
		}
		return Thing{}, false
	case "port_with":
		return Thing{Kind: ThingGroup, Node: node, Name: d.NodeText(node)}, true
	case "instantiation":
		return Thing{Kind: ThingComponent, Name: d.NodeText(node)}, true
	case "import":
		return Thing{Kind: ThingImport, Node: node, Name: strings.Trim(d.NodeText(node), `"`)}, true
	}
	return Thing{}, false
}

// ContextAt reports the structural region containing point. Every position
// classifies: unparsable or out-of-range positions fall back to Toplevel.
func (d *Document) ContextAt(point sitter.Point) Context {
	node := d.NodeAt(point)
	if node == nil {
		return Toplevel
	}
	comp := d.EnclosingComponent(node)
	if comp == nil {
		return Toplevel
	}
	if !nodeContains(comp, point) {
		return Toplevel
	}

	for i := 0; i < int(comp.NamedChildCount()); i++ {
		child := comp.NamedChild(i)
		switch child.Type() {
		case "cells":
			if nodeContains(child, point) {
				return InCells
			}
		case "wires":
			if nodeContains(child, point) {
				for _, g := range d.Captures("(group) @group", child)["group"] {
					if nodeContains(g, point) {
						return InGroup
					}
				}
				return InWires
			}
		case "control":
			if nodeContains(child, point) {
				return InControl
			}
		}
	}
	return InSignature
}

// pointLEQ orders points first by row, then by column.
func pointLEQ(a, b sitter.Point) bool {
	return a.Row < b.Row || (a.Row == b.Row && a.Column <= b.Column)
}

// nodeContains reports whether point falls inside node's range, both ends
// inclusive.
func nodeContains(n *sitter.Node, p sitter.Point) bool {
	return pointLEQ(n.StartPoint(), p) && pointLEQ(p, n.EndPoint())
}
