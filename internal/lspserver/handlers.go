package lspserver

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/calyxir/calyx-lsp/internal/completion"
	"github.com/calyxir/calyx-lsp/internal/config"
	"github.com/calyxir/calyx-lsp/internal/definition"
	"github.com/calyxir/calyx-lsp/internal/lint"
	"github.com/calyxir/calyx-lsp/internal/uri"
)

// BuildHandler wires the server's callbacks into a protocol handler.
// Hover is deliberately absent: the capability is never advertised.
func (s *Server) BuildHandler() *protocol.Handler {
	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.didOpen,
		TextDocumentDidChange: s.didChange,
		TextDocumentDidSave:   s.didSave,
		TextDocumentDidClose:  s.didClose,

		TextDocumentDefinition: s.definition,
		TextDocumentCompletion: s.completion,

		WorkspaceDidChangeConfiguration: s.didChangeConfiguration,
	}
	return &s.handler
}

func (s *Server) initialize(glspCtx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	start := time.Now()

	rootPath := ""
	if params.RootPath != nil {
		rootPath = *params.RootPath
	}
	if rootPath == "" && params.RootURI != nil {
		if path, err := uri.ToPath(*params.RootURI); err == nil {
			rootPath = path
		}
	}
	s.rootPath = rootPath

	cfg, err := config.Load(rootPath)
	if err != nil {
		s.log.Errorf("loading configuration: %v", err)
		cfg = config.DefaultConfig()
	}
	if params.InitializationOptions != nil {
		settings, err := s.validator.ParseSettings(params.InitializationOptions)
		if err != nil {
			s.log.Errorf("rejecting initialization options: %v", err)
		} else {
			cfg.ApplySettings(settings)
		}
	}
	s.setConfig(cfg)
	s.log.Infof("initialized for root %q, library paths %v", rootPath, cfg.LibraryPaths)

	capabilities := s.handler.CreateServerCapabilities()
	capabilities.TextDocumentSync = protocol.TextDocumentSyncKindFull
	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{".", "["},
	}

	s.timing.RecordRequest("initialize", rootPath, "", start, time.Since(start))
	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name: ServerName,
		},
	}, nil
}

func (s *Server) initialized(glspCtx *glsp.Context, params *protocol.InitializedParams) error {
	s.log.Info("client ready")
	return nil
}

func (s *Server) shutdown(glspCtx *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)
	for _, path := range s.openPaths() {
		s.closeDoc(path)
	}
	s.timing.Close()
	return nil
}

func (s *Server) setTrace(glspCtx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (s *Server) didOpen(glspCtx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	start := time.Now()
	path, err := docPath(params.TextDocument.URI)
	if err != nil {
		return err
	}
	if _, _, err := s.installDoc(path, []byte(params.TextDocument.Text)); err != nil {
		return err
	}
	s.timing.RecordNotification("didOpen", path, "", start, time.Since(start))
	return nil
}

func (s *Server) didChange(glspCtx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	start := time.Now()
	path, err := docPath(params.TextDocument.URI)
	if err != nil {
		return err
	}
	text, ok := lastFullText(params.ContentChanges)
	if !ok {
		s.log.Errorf("no full-text change for %s: server advertises full sync only", path)
		return nil
	}

	_, wasOpen, err := s.installDoc(path, []byte(text))
	if err != nil {
		return err
	}
	status := ""
	if !wasOpen {
		// A change for a file the client never opened. Treat it as an open.
		status = "implicit_open"
	}
	s.timing.RecordNotification("didChange", path, status, start, time.Since(start))
	return nil
}

func (s *Server) didSave(glspCtx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	start := time.Now()
	path, err := docPath(params.TextDocument.URI)
	if err != nil {
		return err
	}
	if !s.isOpen(path) {
		return nil
	}

	var snap docSnapshot
	if params.Text != nil {
		snap, _, err = s.installDoc(path, []byte(*params.Text))
		if err != nil {
			return err
		}
	} else {
		var ok bool
		snap, ok = s.snapshot(path)
		if !ok {
			return nil
		}
	}
	s.publishDiagnostics(glspCtx, snap)
	s.timing.RecordNotification("didSave", path, "", start, time.Since(start))
	return nil
}

func (s *Server) didClose(glspCtx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	path, err := docPath(params.TextDocument.URI)
	if err != nil {
		return err
	}
	s.closeDoc(path)
	return nil
}

func (s *Server) definition(glspCtx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	start := time.Now()
	path, err := docPath(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	load, cleanup := s.requestLoader()
	defer cleanup()

	// The search walks live trees, this file's and any open import's, so
	// the read lock is held until it finishes.
	s.mu.RLock()
	doc, open := s.docs[path]
	if !open {
		s.mu.RUnlock()
		return nil, nil
	}
	loc, found := definition.Find(doc, pointAt(params.Position), s.libraryRoots(), load)
	s.mu.RUnlock()

	status := "missing"
	if found {
		status = "found"
	}
	s.timing.RecordRequest("definition", path, status, start, time.Since(start))
	if !found {
		return nil, nil
	}
	return loc, nil
}

func (s *Server) completion(glspCtx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	start := time.Now()
	path, err := docPath(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	trigger := ""
	if params.Context != nil && params.Context.TriggerCharacter != nil {
		trigger = *params.Context.TriggerCharacter
	}

	load, cleanup := s.requestLoader()
	defer cleanup()

	// Same discipline as definition: the read lock spans the search.
	s.mu.RLock()
	doc, open := s.docs[path]
	if !open {
		s.mu.RUnlock()
		return nil, nil
	}
	items := completion.Complete(completion.Request{
		Doc:          doc,
		Point:        pointAt(params.Position),
		Trigger:      trigger,
		LibraryRoots: s.libraryRoots(),
		Load:         load,
		Symbols:      s.symbols,
	})
	s.mu.RUnlock()

	status := "empty"
	if len(items) > 0 {
		status = "offered"
	}
	s.timing.RecordRequest("completion", path, status, start, time.Since(start))
	if len(items) == 0 {
		return nil, nil
	}
	return items, nil
}

func (s *Server) didChangeConfiguration(glspCtx *glsp.Context, params *protocol.DidChangeConfigurationParams) error {
	settings, err := s.validator.ParseSettings(params.Settings)
	if err != nil {
		// The last good configuration stays in effect.
		s.log.Errorf("rejecting configuration change: %v", err)
		return nil
	}

	s.cfgMu.Lock()
	s.cfg.ApplySettings(settings)
	paths := append([]string(nil), s.cfg.LibraryPaths...)
	s.cfgMu.Unlock()

	s.log.Infof("configuration updated, library paths %v", paths)
	return nil
}

// publishDiagnostics runs the enabled checkers over a snapshot and
// pushes the merged findings. The checkers shell out, so no lock is
// held here. An empty list is still published so the client clears
// anything stale.
func (s *Server) publishDiagnostics(glspCtx *glsp.Context, snap docSnapshot) {
	diags := []protocol.Diagnostic{}

	if s.diagnosticsEnabled() {
		compiled, err := s.compiler.Check(context.Background(), s.compilerCommand(), snap.path, snap.text, s.libraryRoots())
		if err != nil {
			s.log.Debugf("compiler diagnostics unavailable for %s: %v", snap.path, err)
		} else {
			diags = append(diags, compiled...)
		}
	}

	if s.lintEnabled() {
		result, err := s.linter.Evaluate(snap.lintInput)
		if err != nil {
			s.log.Errorf("lint failed for %s: %v", snap.path, err)
		} else {
			diags = append(diags, lintDiagnostics(snap, result.Violations)...)
		}
	}

	if glspCtx == nil {
		return
	}
	glspCtx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri.FromPath(snap.path),
		Diagnostics: diags,
	})
}

// lintDiagnostics converts lint violations to protocol diagnostics. A
// violation covers its whole source line.
func lintDiagnostics(snap docSnapshot, violations []lint.Violation) []protocol.Diagnostic {
	source := "calyx-lint"
	lines := strings.Split(string(snap.text), "\n")
	var diags []protocol.Diagnostic
	for _, v := range violations {
		row := uint32(0)
		if v.Line > 0 {
			row = uint32(v.Line - 1)
		}
		width := 0
		if int(row) < len(lines) {
			width = len(lines[row])
		}
		severity := protocol.DiagnosticSeverityWarning
		if v.Severity == "error" {
			severity = protocol.DiagnosticSeverityError
		}
		diags = append(diags, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: row, Character: 0},
				End:   protocol.Position{Line: row, Character: uint32(width)},
			},
			Severity: &severity,
			Code:     &protocol.IntegerOrString{Value: v.Rule},
			Source:   &source,
			Message:  v.Message,
		})
	}
	return diags
}

// lastFullText extracts the newest whole-document text from a change
// batch. The server advertises full sync, so a conforming client sends
// whole-document events; ranged events are ignored.
func lastFullText(changes []any) (string, bool) {
	text := ""
	found := false
	for _, change := range changes {
		switch c := change.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			text = c.Text
			found = true
		case protocol.TextDocumentContentChangeEvent:
			if c.Range == nil {
				text = c.Text
				found = true
			}
		}
	}
	return text, found
}

// docPath converts a document URI to the canonical filesystem path used
// as the open-document key. Symlinks are resolved so an open buffer and
// the same file reached through the import graph share one entry.
func docPath(docURI string) (string, error) {
	path, err := uri.ToPath(docURI)
	if err != nil {
		return "", err
	}
	if canon, err := filepath.EvalSymlinks(path); err == nil {
		path = canon
	}
	return path, nil
}
