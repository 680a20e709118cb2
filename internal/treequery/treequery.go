package treequery

import (
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// Engine compiles tree-sitter query patterns and runs them against syntax
// trees. Compiled queries are cached per pattern string, so the shipped
// pattern set is compiled at most once per process.
type Engine struct {
	lang *sitter.Language

	mu       sync.Mutex
	compiled map[string]*sitter.Query
}

// New creates an Engine for the given language.
func New(lang *sitter.Language) *Engine {
	return &Engine{
		lang:     lang,
		compiled: make(map[string]*sitter.Query),
	}
}

// Language returns the language the engine compiles queries for.
func (e *Engine) Language() *sitter.Language {
	return e.lang
}

// compile returns the cached query for pattern, compiling on first use.
// A pattern that fails to compile is a bug in a shipped query string, never
// user input, so it panics instead of returning an error.
func (e *Engine) compile(pattern string) *sitter.Query {
	e.mu.Lock()
	defer e.mu.Unlock()

	if q, ok := e.compiled[pattern]; ok {
		return q
	}
	q, err := sitter.NewQuery([]byte(pattern), e.lang)
	if err != nil {
		panic(fmt.Sprintf("treequery: invalid pattern %q: %v", pattern, err))
	}
	e.compiled[pattern] = q
	return q
}

// Captures runs pattern against the subtree rooted at node and returns the
// matched nodes grouped by capture name, in match order. Every capture name
// appearing in the pattern has an entry in the result; names that matched
// nothing map to an empty slice, so callers never need to guard against a
// missing key.
func (e *Engine) Captures(pattern string, node *sitter.Node, source []byte) map[string][]*sitter.Node {
	q := e.compile(pattern)

	out := make(map[string][]*sitter.Node, q.CaptureCount())
	for id := uint32(0); id < q.CaptureCount(); id++ {
		out[q.CaptureNameForId(id)] = []*sitter.Node{}
	}

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, node)

	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		match = qc.FilterPredicates(match, source)
		for _, c := range match.Captures {
			name := q.CaptureNameForId(c.Index)
			out[name] = append(out[name], c.Node)
		}
	}
	return out
}
