// Package completion produces context-sensitive completion items. What is
// offered depends on the structural region under the cursor and on the
// trigger character, never on a typed prefix: the client filters.
package completion

import (
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/calyxir/calyx-lsp/internal/document"
	"github.com/calyxir/calyx-lsp/internal/imports"
	"github.com/calyxir/calyx-lsp/internal/search"
)

// Request carries one completion invocation.
type Request struct {
	Doc          *document.Document
	Point        sitter.Point
	Trigger      string // "." or "[", empty for a plain invocation
	LibraryRoots []string
	Load         search.LoadFunc
	Symbols      *search.SymbolCache
}

// Complete dispatches on the trigger character first and the structural
// context second. Regions with nothing sensible to offer, the top level
// and the signature among them, complete to nothing.
func Complete(req Request) []protocol.CompletionItem {
	switch req.Trigger {
	case ".":
		return cellPorts(req)
	case "[":
		return groupHoles(req)
	}

	switch req.Doc.ContextAt(req.Point) {
	case document.InCells:
		return knownComponents(req)
	case document.InGroup:
		return groupBodyNames(req)
	case document.InWires:
		return wiringCells(req)
	case document.InControl:
		return controlNames(req)
	}
	return nil
}

// cellPorts answers a "." trigger: the word before the dot names a cell,
// and the items are the ports of the component that cell instantiates.
// The instantiated component is looked up locally first, then in the
// symbol cache, and finally by walking resolved imports.
func cellPorts(req Request) []protocol.CompletionItem {
	cell := wordBefore(req.Doc, req.Point, ".")
	if cell == "" {
		return nil
	}
	entry, ok := enclosingEntry(req.Doc, req.Point)
	if !ok {
		return nil
	}
	component, ok := entry.Cells[cell]
	if !ok {
		return nil
	}
	sig, ok := lookupSignature(req, component)
	if !ok {
		return nil
	}

	items := make([]protocol.CompletionItem, 0, len(sig.Inputs)+len(sig.Outputs))
	for _, port := range sig.Inputs {
		items = append(items, item(port, protocol.CompletionItemKindField, "input"))
	}
	for _, port := range sig.Outputs {
		items = append(items, item(port, protocol.CompletionItemKindField, "output"))
	}
	return items
}

// groupHoles answers a "[" trigger: when the word before the bracket is a
// group of the enclosing component, its go and done holes are offered.
func groupHoles(req Request) []protocol.CompletionItem {
	group := wordBefore(req.Doc, req.Point, "[")
	if group == "" {
		return nil
	}
	entry, ok := enclosingEntry(req.Doc, req.Point)
	if !ok {
		return nil
	}
	for _, g := range entry.Groups {
		if g == group {
			return []protocol.CompletionItem{
				item("go", protocol.CompletionItemKindProperty, ""),
				item("done", protocol.CompletionItemKindProperty, ""),
			}
		}
	}
	return nil
}

// knownComponents offers every component name a cell instantiation could
// use: the current file's declarations, everything the symbol cache has
// seen, and everything reachable through imports. The list is wider than
// the file's own references on purpose: a new cell is how a component
// from an imported file gets referenced in the first place.
func knownComponents(req Request) []protocol.CompletionItem {
	seen := make(map[string]bool)
	var items []protocol.CompletionItem
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			items = append(items, item(name, protocol.CompletionItemKindClass, ""))
		}
	}

	for _, name := range req.Doc.ComponentNames() {
		add(name)
	}
	if req.Symbols != nil {
		for _, name := range req.Symbols.Names() {
			add(name)
		}
	}

	dir := filepath.Dir(req.Doc.Path())
	frontier := search.NewFrontier()
	frontier.Visit(req.Doc.Path())
	frontier.Push(imports.Resolve(dir, req.LibraryRoots, req.Doc.RawImports())...)
	for {
		path, ok := frontier.Pop()
		if !ok {
			break
		}
		d, err := req.Load(path)
		if err != nil {
			continue
		}
		for _, name := range d.ComponentNames() {
			add(name)
		}
		frontier.Push(imports.Resolve(filepath.Dir(d.Path()), req.LibraryRoots, d.RawImports())...)
	}
	return items
}

// wiringCells offers the enclosing component's cells for a wire
// assignment outside any group.
func wiringCells(req Request) []protocol.CompletionItem {
	entry, ok := enclosingEntry(req.Doc, req.Point)
	if !ok {
		return nil
	}
	return cellItems(entry)
}

// groupBodyNames offers what a group body can mention: the cells plus,
// for each declared group, the group itself and its go and done holes.
func groupBodyNames(req Request) []protocol.CompletionItem {
	entry, ok := enclosingEntry(req.Doc, req.Point)
	if !ok {
		return nil
	}
	items := cellItems(entry)
	for _, group := range entry.Groups {
		items = append(items,
			item(group, protocol.CompletionItemKindFunction, "group"),
			item(group+"[go]", protocol.CompletionItemKindProperty, ""),
			item(group+"[done]", protocol.CompletionItemKindProperty, ""),
		)
	}
	return items
}

func cellItems(entry document.ComponentInfo) []protocol.CompletionItem {
	cells := make([]string, 0, len(entry.Cells))
	for cell := range entry.Cells {
		cells = append(cells, cell)
	}
	sort.Strings(cells)

	var items []protocol.CompletionItem
	for _, cell := range cells {
		items = append(items, item(cell, protocol.CompletionItemKindVariable, entry.Cells[cell]))
	}
	return items
}

// controlNames offers the groups a control statement can enable.
func controlNames(req Request) []protocol.CompletionItem {
	entry, ok := enclosingEntry(req.Doc, req.Point)
	if !ok {
		return nil
	}
	var items []protocol.CompletionItem
	for _, group := range entry.Groups {
		items = append(items, item(group, protocol.CompletionItemKindFunction, "group"))
	}
	return items
}

// enclosingEntry returns the component table entry for the component
// containing point.
func enclosingEntry(doc *document.Document, point sitter.Point) (document.ComponentInfo, bool) {
	node := doc.NodeAt(point)
	if node == nil {
		return document.ComponentInfo{}, false
	}
	comp := doc.EnclosingComponent(node)
	if comp == nil {
		return document.ComponentInfo{}, false
	}
	nameNode := comp.ChildByFieldName("name")
	if nameNode == nil {
		return document.ComponentInfo{}, false
	}
	info, ok := doc.Table()[doc.NodeText(nameNode)]
	return info, ok
}

// lookupSignature finds a component's signature by name: current file,
// then symbol cache, then a breadth-first walk of resolved imports.
func lookupSignature(req Request, component string) (document.Signature, bool) {
	if info, ok := req.Doc.Table()[component]; ok {
		return info.Signature, true
	}
	if req.Symbols != nil {
		if info, ok := req.Symbols.Lookup(component); ok {
			return info.Signature, true
		}
	}

	step := func(d *document.Document) search.Result[document.Signature] {
		if info, ok := d.Table()[component]; ok {
			return search.Found(info.Signature)
		}
		next := imports.Resolve(filepath.Dir(d.Path()), req.LibraryRoots, d.RawImports())
		return search.Continue(next...)
	}
	frontier := search.NewFrontier()
	frontier.Visit(req.Doc.Path())
	frontier.Push(imports.Resolve(filepath.Dir(req.Doc.Path()), req.LibraryRoots, req.Doc.RawImports())...)
	return search.Drive(frontier, req.Load, step)
}

// wordBefore extracts the identifier ending at point, with the trigger
// character stripped first when present.
func wordBefore(doc *document.Document, point sitter.Point, trigger string) string {
	line := doc.Line(point.Row)
	col := int(point.Column)
	if col > len(line) {
		col = len(line)
	}
	prefix := strings.TrimSuffix(line[:col], trigger)
	start := len(prefix)
	for start > 0 && isWordByte(prefix[start-1]) {
		start--
	}
	return prefix[start:]
}

func isWordByte(b byte) bool {
	return b == '_' || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

func item(label string, kind protocol.CompletionItemKind, detail string) protocol.CompletionItem {
	it := protocol.CompletionItem{Label: label, Kind: &kind}
	if detail != "" {
		d := detail
		it.Detail = &d
	}
	return it
}
