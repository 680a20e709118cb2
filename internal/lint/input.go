package lint

import (
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/calyxir/calyx-lsp/internal/document"
)

// Input is the fact document handed to the policy rules
type Input struct {
	File       string          `json:"file"`
	Imports    []string        `json:"imports"`
	Components []ComponentFact `json:"components"`
}

// ComponentFact describes one component's declarations and which of them
// the component actually uses
type ComponentFact struct {
	Name       string      `json:"name"`
	Line       int         `json:"line"`
	Cells      []CellFact  `json:"cells"`
	Groups     []GroupFact `json:"groups"`
	UsedGroups []string    `json:"used_groups"`
	UsedCells  []string    `json:"used_cells"`
}

// CellFact is one cell declaration
type CellFact struct {
	Name      string `json:"name"`
	Component string `json:"component"`
	Line      int    `json:"line"`
}

// GroupFact is one group declaration
type GroupFact struct {
	Name string `json:"name"`
	Line int    `json:"line"`
}

// Gather projects the facts the rules need out of a parsed document.
// Lines are 1-based for display.
func Gather(doc *document.Document) Input {
	input := Input{
		File:    doc.Path(),
		Imports: doc.RawImports(),
	}
	root := doc.Root()
	if root == nil {
		return input
	}

	for _, comp := range doc.Captures("(component) @comp", root)["comp"] {
		nameNode := comp.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		fact := ComponentFact{
			Name: doc.NodeText(nameNode),
			Line: int(nameNode.StartPoint().Row) + 1,
		}

		cells := doc.Captures("(cell_assignment name: (ident) @cell (instantiation component: (ident) @type))", comp)
		names, types := cells["cell"], cells["type"]
		for i, cell := range names {
			cf := CellFact{
				Name: doc.NodeText(cell),
				Line: int(cell.StartPoint().Row) + 1,
			}
			if i < len(types) {
				cf.Component = doc.NodeText(types[i])
			}
			fact.Cells = append(fact.Cells, cf)
		}

		for _, g := range doc.Captures("(group name: (ident) @group)", comp)["group"] {
			fact.Groups = append(fact.Groups, GroupFact{
				Name: doc.NodeText(g),
				Line: int(g.StartPoint().Row) + 1,
			})
		}

		fact.UsedGroups = uniqueSorted(doc, groupUses(doc, comp))
		fact.UsedCells = uniqueSorted(doc, cellUses(doc, comp))
		input.Components = append(input.Components, fact)
	}
	return input
}

// groupUses collects every mention of a group: enables, `with` clauses and
// hole references.
func groupUses(doc *document.Document, comp *sitter.Node) []*sitter.Node {
	var uses []*sitter.Node
	uses = append(uses, doc.Captures("(enable (ident) @group)", comp)["group"]...)
	uses = append(uses, doc.Captures("(port_with (ident) @group)", comp)["group"]...)
	uses = append(uses, doc.Captures("(hole group: (ident) @group)", comp)["group"]...)
	return uses
}

// cellUses collects every mention of a cell: the dotted half of a port
// reference and invoked cells. Bare port identifiers name the component's
// own ports, not cells, and are skipped.
func cellUses(doc *document.Document, comp *sitter.Node) []*sitter.Node {
	var uses []*sitter.Node
	for _, id := range doc.Captures("(port (ident) @id)", comp)["id"] {
		if id.NextNamedSibling() != nil {
			uses = append(uses, id)
		}
	}
	uses = append(uses, doc.Captures("(invoke cell: (ident) @cell)", comp)["cell"]...)
	return uses
}

func uniqueSorted(doc *document.Document, nodes []*sitter.Node) []string {
	seen := make(map[string]bool)
	var names []string
	for _, n := range nodes {
		name := doc.NodeText(n)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
