// Package lspserver glues the language core to the LSP wire protocol: it
// owns the open-document table, the running configuration and the symbol
// cache, and translates protocol positions into tree points.
package lspserver

import (
	"fmt"
	"os"
	"sync"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"
	tree_sitter_calyx "github.com/tree-sitter/tree-sitter-calyx"

	"github.com/calyxir/calyx-lsp/internal/config"
	"github.com/calyxir/calyx-lsp/internal/diagnostics"
	"github.com/calyxir/calyx-lsp/internal/document"
	"github.com/calyxir/calyx-lsp/internal/lint"
	"github.com/calyxir/calyx-lsp/internal/search"
	"github.com/calyxir/calyx-lsp/internal/treequery"
)

// ServerName is what the server reports to clients and logs under.
const ServerName = "calyx-lsp"

// Server holds everything one editor session needs: the parser engine,
// the documents the client has open, the symbol cache fed by every parse,
// and the checkers that run on save. Configuration starts at defaults and
// is replaced by initialize and didChangeConfiguration.
type Server struct {
	log     commonlog.Logger
	handler protocol.Handler

	engine    *treequery.Engine
	symbols   *search.SymbolCache
	linter    *lint.Engine
	compiler  *diagnostics.Runner
	validator *config.SettingsValidator
	timing    *timingRecorder

	// mu guards docs. Handlers that walk a document's tree hold the read
	// lock for the whole walk; a document is only replaced or closed
	// under the write lock, so no reader can see a freed tree.
	mu   sync.RWMutex
	docs map[string]*document.Document

	cfgMu    sync.RWMutex
	cfg      *config.Config
	rootPath string
}

// New builds a server with default configuration. The lint rules and the
// settings schema are compiled once here; both are embedded, so a failure
// is a packaging bug rather than a runtime condition.
func New(log commonlog.Logger) (*Server, error) {
	linter, err := lint.New()
	if err != nil {
		return nil, fmt.Errorf("preparing lint engine: %w", err)
	}
	validator, err := config.NewSettingsValidator()
	if err != nil {
		return nil, fmt.Errorf("preparing settings validator: %w", err)
	}

	s := &Server{
		log:       log,
		engine:    treequery.New(sitter.NewLanguage(tree_sitter_calyx.Language())),
		symbols:   search.NewSymbolCache(),
		linter:    linter,
		compiler:  diagnostics.NewRunner(log),
		validator: validator,
		timing:    newTimingRecorder(time.Now(), resolveTimingPath()),
		docs:      make(map[string]*document.Document),
		cfg:       config.DefaultConfig(),
	}
	if err := s.timing.Err(); err != nil {
		log.Errorf("request timing disabled: %v", err)
	}
	return s, nil
}

// Run serves LSP over stdio until the client disconnects.
func (s *Server) Run(debug bool) error {
	srv := glspserver.NewServer(s.BuildHandler(), ServerName, debug)
	return srv.RunStdio()
}

// docSnapshot carries plain values out of a document for work that runs
// after the read lock is released: no tree nodes, nothing a reparse can
// invalidate.
type docSnapshot struct {
	path      string
	text      []byte
	table     document.ComponentTable
	lintInput lint.Input
}

// takeSnapshot reads doc while its tree is pinned: the document is either
// still private to the caller or the caller holds the read lock.
func takeSnapshot(doc *document.Document) docSnapshot {
	return docSnapshot{
		path:      doc.Path(),
		text:      doc.Text(),
		table:     doc.Table(),
		lintInput: lint.Gather(doc),
	}
}

// installDoc parses text into a fresh document and swaps it in under
// path. Parsing happens before the lock is taken; the old document, if
// any, is closed under the write lock, after every in-flight reader has
// drained, so none can still hold nodes of the replaced tree. Returns a
// snapshot for the save-time checkers and whether path was already open.
func (s *Server) installDoc(path string, text []byte) (docSnapshot, bool, error) {
	doc, err := document.NewFromText(path, text, s.engine, s.log)
	if err != nil {
		return docSnapshot{}, false, err
	}
	snap := takeSnapshot(doc)

	s.mu.Lock()
	old, wasOpen := s.docs[path]
	if wasOpen {
		old.Close()
	}
	s.docs[path] = doc
	s.mu.Unlock()

	s.symbols.Update(path, snap.table)
	return snap, wasOpen, nil
}

// snapshot copies what the save-time checkers need out of the document
// open at path.
func (s *Server) snapshot(path string) (docSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[path]
	if !ok {
		return docSnapshot{}, false
	}
	return takeSnapshot(doc), true
}

// isOpen reports whether the client has path open.
func (s *Server) isOpen(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[path]
	return ok
}

// closeDoc releases path's document and forgets its cached symbols. The
// file may still be pulled back in from disk by a later search.
func (s *Server) closeDoc(path string) {
	s.mu.Lock()
	if doc, ok := s.docs[path]; ok {
		doc.Close()
		delete(s.docs, path)
	}
	s.mu.Unlock()

	s.symbols.Drop(path)
}

// openPaths lists the files the client currently has open, for logging.
func (s *Server) openPaths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.docs))
	for path := range s.docs {
		paths = append(paths, path)
	}
	return paths
}

// requestLoader returns the LoadFunc shared by definition and completion
// searches, plus a cleanup that releases every document the request had
// to pull from disk. Open documents are served live and stay alive; disk
// loads still feed the symbol cache before they are thrown away.
//
// The caller must hold s.mu.RLock for the whole search: load reads the
// document table bare, and the documents it hands out stay valid only
// while the lock keeps writers out.
func (s *Server) requestLoader() (search.LoadFunc, func()) {
	var loaded []*document.Document

	load := func(path string) (*document.Document, error) {
		if doc, ok := s.docs[path]; ok {
			return doc, nil
		}
		text, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		doc, err := document.NewFromText(path, text, s.engine, s.log)
		if err != nil {
			return nil, err
		}
		s.symbols.Update(path, doc.Table())
		loaded = append(loaded, doc)
		return doc, nil
	}

	cleanup := func() {
		for _, doc := range loaded {
			doc.Close()
		}
	}
	return load, cleanup
}

// setConfig replaces the running configuration wholesale.
func (s *Server) setConfig(cfg *config.Config) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.cfg = cfg
}

// libraryRoots snapshots the configured library paths. Handlers work on
// the copy, so a concurrent configuration change cannot shift the slice
// under them.
func (s *Server) libraryRoots() []string {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return append([]string(nil), s.cfg.LibraryPaths...)
}

func (s *Server) diagnosticsEnabled() bool {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg.DiagnosticsEnabled()
}

func (s *Server) lintEnabled() bool {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg.LintEnabled()
}

func (s *Server) compilerCommand() string {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg.Diagnostics.Command
}

// pointAt converts a protocol position to a tree point. Both sides are
// zero-based UTF code unit coordinates, so the mapping is direct.
func pointAt(pos protocol.Position) sitter.Point {
	return sitter.Point{Row: pos.Line, Column: pos.Character}
}
