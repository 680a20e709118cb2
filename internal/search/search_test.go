package search

import (
	"fmt"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/tliron/commonlog"
	tree_sitter_calyx "github.com/tree-sitter/tree-sitter-calyx"

	"github.com/calyxir/calyx-lsp/internal/document"
	"github.com/calyxir/calyx-lsp/internal/treequery"
)

func makeDocs(t *testing.T, sources map[string]string) map[string]*document.Document {
	t.Helper()
	engine := treequery.New(sitter.NewLanguage(tree_sitter_calyx.Language()))
	docs := make(map[string]*document.Document, len(sources))
	for path, src := range sources {
		doc, err := document.NewFromText(path, []byte(src), engine, commonlog.GetLogger("test"))
		if err != nil {
			t.Fatalf("parsing %s: %v", path, err)
		}
		t.Cleanup(doc.Close)
		docs[path] = doc
	}
	return docs
}

func mapLoader(docs map[string]*document.Document) LoadFunc {
	return func(path string) (*document.Document, error) {
		doc, ok := docs[path]
		if !ok {
			return nil, fmt.Errorf("no such file %s", path)
		}
		return doc, nil
	}
}

// declSearch looks for a component declaration and reports the file that
// holds it, following imports otherwise.
func declSearch(name string) StepFunc[string] {
	return func(doc *document.Document) Result[string] {
		for _, node := range doc.ComponentDeclNodes() {
			if doc.NodeText(node) == name {
				return Found(doc.Path())
			}
		}
		return Continue(doc.RawImports()...)
	}
}

func TestFrontierYieldsEachPathOnce(t *testing.T) {
	f := NewFrontier("a", "b", "a")
	if f.Len() != 2 {
		t.Fatalf("frontier length = %d, want 2", f.Len())
	}

	first, _ := f.Pop()
	second, _ := f.Pop()
	if first != "a" || second != "b" {
		t.Errorf("pop order = %s, %s, want a, b", first, second)
	}

	f.Push("a")
	if _, ok := f.Pop(); ok {
		t.Error("frontier yielded an already visited path")
	}
}

func TestDriveFollowsImports(t *testing.T) {
	docs := makeDocs(t, map[string]string{
		"a.futil": `import "b.futil";
component top() -> () {}
`,
		"b.futil": `component adder(left: 32, right: 32) -> (out: 32) {}`,
	})

	path, ok := Drive(NewFrontier("a.futil"), mapLoader(docs), declSearch("adder"))
	if !ok {
		t.Fatal("adder not found")
	}
	if path != "b.futil" {
		t.Errorf("found in %s, want b.futil", path)
	}
}

func TestDriveTerminatesOnImportCycle(t *testing.T) {
	docs := makeDocs(t, map[string]string{
		"a.futil": `import "b.futil";
component top() -> () {}
`,
		"b.futil": `import "a.futil";
component adder() -> () {}
`,
	})

	if _, ok := Drive(NewFrontier("a.futil"), mapLoader(docs), declSearch("missing")); ok {
		t.Error("found a component that does not exist")
	}
}

func TestVisitMarksWithoutQueueing(t *testing.T) {
	f := NewFrontier()
	f.Visit("a.futil")
	if f.Len() != 0 {
		t.Fatalf("frontier length = %d, want 0 after Visit", f.Len())
	}

	f.Push("a.futil")
	if _, ok := f.Pop(); ok {
		t.Error("visited path was queued by a later push")
	}
}

func TestDriveNeverLoadsVisitedSeed(t *testing.T) {
	docs := makeDocs(t, map[string]string{
		"a.futil": `import "b.futil";
component top() -> () {}
`,
		"b.futil": `import "a.futil";
component adder() -> () {}
`,
	})

	loads := make(map[string]int)
	inner := mapLoader(docs)
	load := func(path string) (*document.Document, error) {
		loads[path]++
		return inner(path)
	}

	frontier := NewFrontier()
	frontier.Visit("a.futil")
	frontier.Push("b.futil")
	if _, ok := Drive(frontier, load, declSearch("missing")); ok {
		t.Error("found a component that does not exist")
	}
	if loads["a.futil"] != 0 {
		t.Errorf("visited seed loaded %d times, want 0", loads["a.futil"])
	}
	if loads["b.futil"] != 1 {
		t.Errorf("b.futil loaded %d times, want 1", loads["b.futil"])
	}
}

func TestDriveSkipsUnreadableFiles(t *testing.T) {
	docs := makeDocs(t, map[string]string{
		"b.futil": `component adder() -> () {}`,
	})

	path, ok := Drive(NewFrontier("ghost.futil", "b.futil"), mapLoader(docs), declSearch("adder"))
	if !ok {
		t.Fatal("adder not found past the unreadable seed")
	}
	if path != "b.futil" {
		t.Errorf("found in %s, want b.futil", path)
	}
}

func TestSymbolCacheReplacesWholesale(t *testing.T) {
	cache := NewSymbolCache()
	cache.Update("a.futil", document.ComponentTable{"foo": {}})
	cache.Update("a.futil", document.ComponentTable{"bar": {}})

	if _, ok := cache.Lookup("foo"); ok {
		t.Error("stale entry foo survived the update")
	}
	if _, ok := cache.Lookup("bar"); !ok {
		t.Error("bar missing after update")
	}
}

func TestSymbolCacheLooksAcrossFiles(t *testing.T) {
	cache := NewSymbolCache()
	cache.Update("a.futil", document.ComponentTable{
		"top": {Signature: document.Signature{Inputs: []string{"go"}}},
	})
	cache.Update("b.futil", document.ComponentTable{
		"adder": {Signature: document.Signature{Outputs: []string{"out"}}},
	})

	info, ok := cache.Lookup("adder")
	if !ok {
		t.Fatal("adder missing")
	}
	if len(info.Outputs) != 1 || info.Outputs[0] != "out" {
		t.Errorf("adder outputs = %v, want [out]", info.Outputs)
	}

	cache.Drop("b.futil")
	if _, ok := cache.Lookup("adder"); ok {
		t.Error("adder survived Drop")
	}

	files := cache.Files()
	if len(files) != 1 || files[0] != "a.futil" {
		t.Errorf("files = %v, want [a.futil]", files)
	}
}
