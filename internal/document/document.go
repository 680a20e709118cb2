// Package document models a single Calyx source file: its text, its syntax
// tree, and the component table derived from them.
package document

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/tliron/commonlog"

	"github.com/calyxir/calyx-lsp/internal/treequery"
)

// Document owns one file's text and the tree parsed from it. The two are
// always replaced together: Parse swaps text, tree and component table in
// one step, so the tree is the parse of the stored text at all times.
type Document struct {
	path   string
	log    commonlog.Logger
	engine *treequery.Engine
	parser *sitter.Parser

	text       []byte
	tree       *sitter.Tree
	table      ComponentTable
	generation uint64
}

// New creates an empty Document for path. Position queries on a document
// that has never been parsed return nothing.
func New(path string, engine *treequery.Engine, log commonlog.Logger) *Document {
	parser := sitter.NewParser()
	parser.SetLanguage(engine.Language())
	return &Document{
		path:   path,
		log:    log,
		engine: engine,
		parser: parser,
	}
}

// NewFromText creates a Document and parses text into it.
func NewFromText(path string, text []byte, engine *treequery.Engine, log commonlog.Logger) (*Document, error) {
	d := New(path, engine, log)
	if err := d.Parse(text); err != nil {
		return nil, err
	}
	return d, nil
}

// Parse replaces the document's text with a whole-file parse of text and
// rebuilds the component table from scratch. Nodes handed out before the
// call are invalidated: the old tree is closed and the generation counter
// moves on.
func (d *Document) Parse(text []byte) error {
	tree, err := d.parser.ParseCtx(context.Background(), nil, text)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", d.path, err)
	}

	if d.tree != nil {
		d.tree.Close()
	}
	d.text = text
	d.tree = tree
	d.generation++
	d.rebuildTable()

	d.log.Debugf("parsed %s generation %d: %s", d.path, d.generation, tree.RootNode().String())
	return nil
}

// Close releases the parse tree. The document must not be used afterwards.
func (d *Document) Close() {
	if d.tree != nil {
		d.tree.Close()
		d.tree = nil
	}
}

// Path returns the absolute file path this document was opened under.
func (d *Document) Path() string {
	return d.path
}

// Text returns the currently stored source text.
func (d *Document) Text() []byte {
	return d.text
}

// Generation counts completed parses. A node obtained from this document
// is only valid while the generation that produced it is current.
func (d *Document) Generation() uint64 {
	return d.generation
}

// Table returns the component table derived from the last parse.
func (d *Document) Table() ComponentTable {
	return d.table
}

// Root returns the root node of the current tree, or nil before the first
// parse.
func (d *Document) Root() *sitter.Node {
	if d.tree == nil {
		return nil
	}
	return d.tree.RootNode()
}

// NodeAt returns the smallest named node covering point, or nil if the
// document has no tree yet or the point is outside the parsed range.
func (d *Document) NodeAt(point sitter.Point) *sitter.Node {
	root := d.Root()
	if root == nil {
		return nil
	}
	if !pointLEQ(root.StartPoint(), point) || !pointLEQ(point, root.EndPoint()) {
		return nil
	}
	return root.NamedDescendantForPointRange(point, point)
}

// NodeText returns the source text of node.
func (d *Document) NodeText(node *sitter.Node) string {
	return node.Content(d.text)
}

// Line returns the text of one zero-based line without its newline, or ""
// when the row is past the end of the document.
func (d *Document) Line(row uint32) string {
	rest := d.text
	for r := uint32(0); r < row; r++ {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			return ""
		}
		rest = rest[i+1:]
	}
	if i := bytes.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}
	return string(rest)
}

// Captures runs a query pattern against the subtree rooted at node.
func (d *Document) Captures(pattern string, node *sitter.Node) map[string][]*sitter.Node {
	return d.engine.Captures(pattern, node, d.text)
}

// EnclosingComponent walks ancestors of node until the nearest component or
// primitive declaration. Returns nil for top-level nodes.
func (d *Document) EnclosingComponent(node *sitter.Node) *sitter.Node {
	for p := node.Parent(); p != nil; p = p.Parent() {
		if t := p.Type(); t == "component" || t == "primitive" {
			return p
		}
	}
	return nil
}

// RawImports returns the import path strings declared in the file, in
// document order, with the surrounding quotes stripped.
func (d *Document) RawImports() []string {
	root := d.Root()
	if root == nil {
		return nil
	}
	var imports []string
	for _, node := range d.Captures(importQuery, root)["path"] {
		imports = append(imports, strings.Trim(d.NodeText(node), `"`))
	}
	return imports
}

// ComponentNames returns every component and primitive name declared in the
// file, in document order.
func (d *Document) ComponentNames() []string {
	var names []string
	for _, node := range d.ComponentDeclNodes() {
		names = append(names, d.NodeText(node))
	}
	return names
}

// ComponentDeclNodes returns the name nodes of every component and
// primitive declaration, in document order.
func (d *Document) ComponentDeclNodes() []*sitter.Node {
	root := d.Root()
	if root == nil {
		return nil
	}
	return d.Captures(declNameQuery, root)["name"]
}

// CellNodes returns the name nodes of the cells declared in the component
// enclosing node.
func (d *Document) CellNodes(node *sitter.Node) []*sitter.Node {
	comp := d.EnclosingComponent(node)
	if comp == nil {
		return nil
	}
	return d.Captures(cellNameQuery, comp)["cell"]
}

// PortNodes returns the name nodes of the enclosing component's own input
// and output ports.
func (d *Document) PortNodes(node *sitter.Node) []*sitter.Node {
	comp := d.EnclosingComponent(node)
	if comp == nil {
		return nil
	}
	return d.Captures(ioPortQuery, comp)["port"]
}

// GroupNodes returns the name nodes of the groups declared in the component
// enclosing node.
func (d *Document) GroupNodes(node *sitter.Node) []*sitter.Node {
	comp := d.EnclosingComponent(node)
	if comp == nil {
		return nil
	}
	return d.Captures(groupQuery, comp)["group"]
}
