package treequery

import (
	"context"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	tree_sitter_calyx "github.com/tree-sitter/tree-sitter-calyx"
)

func calyxLanguage() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_calyx.Language())
}

func parseCalyx(t *testing.T, src string) *sitter.Tree {
	t.Helper()

	parser := sitter.NewParser()
	parser.SetLanguage(calyxLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, []byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	t.Cleanup(func() { tree.Close() })
	return tree
}

func TestCapturesCollectsComponentNames(t *testing.T) {
	src := `component main() -> (done: 1) {
  cells {}
  wires {}
  control {}
}
component helper(go: 1) -> (done: 1) {
  cells {}
  wires {}
  control {}
}
`
	tree := parseCalyx(t, src)

	eng := New(calyxLanguage())
	caps := eng.Captures("(component name: (ident) @name)", tree.RootNode(), []byte(src))

	names := caps["name"]
	if len(names) != 2 {
		t.Fatalf("expected 2 component names, got %d", len(names))
	}
	if got := names[0].Content([]byte(src)); got != "main" {
		t.Fatalf("expected first component main, got %q", got)
	}
	if got := names[1].Content([]byte(src)); got != "helper" {
		t.Fatalf("expected second component helper, got %q", got)
	}
}

func TestCapturesIncludesUnmatchedCaptureNames(t *testing.T) {
	src := `component main() -> (done: 1) {
  cells {}
  wires {}
  control {}
}
`
	tree := parseCalyx(t, src)

	eng := New(calyxLanguage())
	caps := eng.Captures("(primitive name: (ident) @prim)", tree.RootNode(), []byte(src))

	prims, ok := caps["prim"]
	if !ok {
		t.Fatalf("expected capture name prim to be present even with no matches")
	}
	if len(prims) != 0 {
		t.Fatalf("expected no primitive matches, got %d", len(prims))
	}
}

func TestCapturesReusesCompiledPatterns(t *testing.T) {
	src := `component main() -> (done: 1) {
  cells {}
  wires {}
  control {}
}
`
	tree := parseCalyx(t, src)

	eng := New(calyxLanguage())
	pattern := "(component name: (ident) @name)"
	eng.Captures(pattern, tree.RootNode(), []byte(src))
	eng.Captures(pattern, tree.RootNode(), []byte(src))

	if len(eng.compiled) != 1 {
		t.Fatalf("expected one cached query, got %d", len(eng.compiled))
	}
}

func TestInvalidPatternPanics(t *testing.T) {
	eng := New(calyxLanguage())

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for invalid pattern")
		}
	}()
	eng.compile("(component name: (ident @name)")
}
