// Package search drives queries across the import graph: a breadth-first
// frontier over files, a per-file step that either answers or names more
// files to visit, and a cache of symbols already seen.
package search

import (
	"sort"
	"sync"

	"github.com/calyxir/calyx-lsp/internal/document"
)

// Result is the outcome of searching one document: either a found value or
// the list of files to continue in. The zero value is a dead end.
type Result[T any] struct {
	value T
	next  []string
	found bool
}

// Found wraps a final answer.
func Found[T any](value T) Result[T] {
	return Result[T]{value: value, found: true}
}

// Continue directs the search to the given files. With no arguments it
// marks a dead end in the current file.
func Continue[T any](next ...string) Result[T] {
	return Result[T]{next: next}
}

// Value returns the answer, if this result carries one.
func (r Result[T]) Value() (T, bool) {
	return r.value, r.found
}

// Next returns the files the search should visit after this result.
func (r Result[T]) Next() []string {
	return r.next
}

// Frontier is a breadth-first work list of file paths. A path is yielded
// at most once no matter how often it is pushed, so import cycles cannot
// loop the search.
type Frontier struct {
	queue   []string
	visited map[string]bool
}

// NewFrontier builds a frontier holding the seed paths.
func NewFrontier(seeds ...string) *Frontier {
	f := &Frontier{visited: make(map[string]bool)}
	f.Push(seeds...)
	return f
}

// Push appends paths that have not been seen before.
func (f *Frontier) Push(paths ...string) {
	for _, p := range paths {
		if f.visited[p] {
			continue
		}
		f.visited[p] = true
		f.queue = append(f.queue, p)
	}
}

// Visit marks path as already searched without queueing it: later pushes
// of path are dropped. Callers seed the file they started from, so a
// cyclic import graph cannot route the search back into it.
func (f *Frontier) Visit(path string) {
	f.visited[path] = true
}

// Pop removes and returns the oldest pending path.
func (f *Frontier) Pop() (string, bool) {
	if len(f.queue) == 0 {
		return "", false
	}
	p := f.queue[0]
	f.queue = f.queue[1:]
	return p, true
}

// Len reports how many paths are still pending.
func (f *Frontier) Len() int {
	return len(f.queue)
}

// LoadFunc returns the document for a path, reading and parsing it if it
// is not already open.
type LoadFunc func(path string) (*document.Document, error)

// StepFunc inspects one document and either finds the answer or names the
// files to search next.
type StepFunc[T any] func(doc *document.Document) Result[T]

// Drive runs step over the frontier's files breadth-first. Files that
// fail to load are skipped and nothing is visited twice, so the loop
// terminates even on cyclic or broken import graphs.
func Drive[T any](frontier *Frontier, load LoadFunc, step StepFunc[T]) (T, bool) {
	for {
		path, ok := frontier.Pop()
		if !ok {
			var zero T
			return zero, false
		}
		doc, err := load(path)
		if err != nil {
			continue
		}
		res := step(doc)
		if v, ok := res.Value(); ok {
			return v, true
		}
		frontier.Push(res.Next()...)
	}
}

// SymbolCache remembers the component table of every file seen so far, so
// completion can offer cross-file components without rereading the import
// graph on each keystroke.
type SymbolCache struct {
	mu     sync.RWMutex
	byFile map[string]document.ComponentTable
}

// NewSymbolCache returns an empty cache.
func NewSymbolCache() *SymbolCache {
	return &SymbolCache{byFile: make(map[string]document.ComponentTable)}
}

// Update replaces the cached table for path wholesale.
func (c *SymbolCache) Update(path string, table document.ComponentTable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byFile[path] = table
}

// Drop forgets a file.
func (c *SymbolCache) Drop(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byFile, path)
}

// Lookup scans every cached file for a component name.
func (c *SymbolCache) Lookup(name string) (document.ComponentInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, table := range c.byFile {
		if info, ok := table[name]; ok {
			return info, true
		}
	}
	return document.ComponentInfo{}, false
}

// Table returns the cached table for one file.
func (c *SymbolCache) Table(path string) (document.ComponentTable, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	table, ok := c.byFile[path]
	return table, ok
}

// Names lists every cached component name across all files, sorted and
// deduplicated.
func (c *SymbolCache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]bool)
	var names []string
	for _, table := range c.byFile {
		for name := range table {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// Files lists the cached paths in sorted order.
func (c *SymbolCache) Files() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	files := make([]string, 0, len(c.byFile))
	for path := range c.byFile {
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}
