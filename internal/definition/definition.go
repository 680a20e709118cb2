// Package definition resolves goto-definition requests: it classifies the
// name under the cursor and finds the node that declares it, following the
// import graph for component names.
package definition

import (
	"path/filepath"

	sitter "github.com/smacker/go-tree-sitter"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/calyxir/calyx-lsp/internal/document"
	"github.com/calyxir/calyx-lsp/internal/imports"
	"github.com/calyxir/calyx-lsp/internal/search"
	"github.com/calyxir/calyx-lsp/internal/uri"
)

// Find resolves the definition site of whatever sits under point in doc.
// Cells, ports and groups are scoped to the enclosing component and never
// leave the file. Component names search the current file first and then
// walk resolved imports breadth-first through load. Import paths resolve
// to the top of the imported file.
func Find(doc *document.Document, point sitter.Point, libraryRoots []string, load search.LoadFunc) (protocol.Location, bool) {
	thing, ok := doc.ThingAt(point)
	if !ok {
		return protocol.Location{}, false
	}

	switch thing.Kind {
	case document.ThingCell:
		return findAmong(doc, doc.CellNodes(thing.Node), thing.Name)
	case document.ThingSelfPort:
		return findAmong(doc, doc.PortNodes(thing.Node), thing.Name)
	case document.ThingGroup:
		return findAmong(doc, doc.GroupNodes(thing.Node), thing.Name)
	case document.ThingComponent:
		step := componentStep(thing.Name, libraryRoots)
		res := step(doc)
		if loc, ok := res.Value(); ok {
			return loc, true
		}
		frontier := search.NewFrontier()
		frontier.Visit(doc.Path())
		frontier.Push(res.Next()...)
		return search.Drive(frontier, load, step)
	case document.ThingImport:
		resolved := imports.Resolve(filepath.Dir(doc.Path()), libraryRoots, []string{thing.Name})
		if len(resolved) == 0 {
			return protocol.Location{}, false
		}
		return protocol.Location{URI: uri.FromPath(resolved[0])}, true
	}
	return protocol.Location{}, false
}

// componentStep searches one file for a component or primitive declaration
// and otherwise directs the search into the file's resolved imports.
func componentStep(name string, libraryRoots []string) search.StepFunc[protocol.Location] {
	return func(d *document.Document) search.Result[protocol.Location] {
		for _, node := range d.ComponentDeclNodes() {
			if d.NodeText(node) == name {
				return search.Found(nodeLocation(d, node))
			}
		}
		next := imports.Resolve(filepath.Dir(d.Path()), libraryRoots, d.RawImports())
		return search.Continue(next...)
	}
}

func findAmong(d *document.Document, nodes []*sitter.Node, name string) (protocol.Location, bool) {
	for _, node := range nodes {
		if d.NodeText(node) == name {
			return nodeLocation(d, node), true
		}
	}
	return protocol.Location{}, false
}

func nodeLocation(d *document.Document, node *sitter.Node) protocol.Location {
	return protocol.Location{
		URI:   uri.FromPath(d.Path()),
		Range: protocol.Range{Start: position(node.StartPoint()), End: position(node.EndPoint())},
	}
}

func position(p sitter.Point) protocol.Position {
	return protocol.Position{Line: p.Row, Character: p.Column}
}
