// Package diagnostics runs the calyx compiler over a saved file and turns
// its machine-readable errors into LSP diagnostics.
package diagnostics

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/calyxir/calyx-lsp/internal/imports"
)

// CompilerError is the JSON payload the calyx driver writes to stdout
// when invoked with --json-error. Positions are byte offsets into the
// file.
type CompilerError struct {
	FileName string `json:"file_name"`
	PosStart int    `json:"pos_start"`
	PosEnd   int    `json:"pos_end"`
	Message  string `json:"msg"`
}

// Runner invokes the calyx compiler.
type Runner struct {
	log commonlog.Logger
}

// NewRunner returns a Runner that logs through log.
func NewRunner(log commonlog.Logger) *Runner {
	return &Runner{log: log}
}

// Check compiles path with no passes and returns the diagnostics to
// publish for it. A clean compile returns an empty slice. text is the
// buffer content used to convert byte offsets to positions, and the first
// library root is handed to the compiler as its library path.
func (r *Runner) Check(ctx context.Context, command, path string, text []byte, libraryRoots []string) ([]protocol.Diagnostic, error) {
	libRoot := "."
	if len(libraryRoots) > 0 {
		libRoot = imports.ExpandTilde(libraryRoots[0])
	}
	args := []string{path, "-l", libRoot, "-p", "none", "--json-error"}

	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return []protocol.Diagnostic{}, nil
	}
	if _, ok := err.(*exec.ExitError); !ok {
		return nil, fmt.Errorf("running %s: %w", command, err)
	}

	r.log.Debugf("compiler exited nonzero for %s: %s", path, strings.TrimSpace(stderr.String()))

	cerrs := decodeErrors(stdout.Bytes())
	if len(cerrs) == 0 {
		// Older drivers wrote the payload to stderr.
		cerrs = decodeErrors(stderr.Bytes())
	}
	diags := toDiagnostics(cerrs, path, text)
	if len(diags) == 0 && len(cerrs) == 0 {
		// Nonzero exit without a parseable error still deserves a marker.
		msg := firstLine(stderr.String())
		if msg == "" {
			msg = fmt.Sprintf("%s exited with an error", command)
		}
		diags = append(diags, diagnostic(protocol.Range{}, msg))
	}
	return diags, nil
}

// decodeErrors pulls compiler error payloads out of one output stream.
// The driver emits a single JSON object, possibly pretty-printed across
// lines; one-object-per-line output is decoded too.
func decodeErrors(out []byte) []CompilerError {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '{' {
		var single CompilerError
		if json.Unmarshal(trimmed, &single) == nil {
			return []CompilerError{single}
		}
	}

	var cerrs []CompilerError
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var cerr CompilerError
		if err := json.Unmarshal(line, &cerr); err != nil {
			continue
		}
		cerrs = append(cerrs, cerr)
	}
	return cerrs
}

// toDiagnostics converts decoded errors to diagnostics. Errors reported
// against other files, imports the compiler chased, are dropped: they
// belong to those files, not the one being checked.
func toDiagnostics(cerrs []CompilerError, path string, text []byte) []protocol.Diagnostic {
	var diags []protocol.Diagnostic
	for _, cerr := range cerrs {
		if cerr.FileName != "" && cerr.FileName != path {
			continue
		}
		rng := protocol.Range{
			Start: offsetToPosition(text, cerr.PosStart),
			End:   offsetToPosition(text, cerr.PosEnd),
		}
		diags = append(diags, diagnostic(rng, cerr.Message))
	}
	return diags
}

// offsetToPosition converts a byte offset into a 0-based line and column.
// Offsets past the end of text clamp to the last position.
func offsetToPosition(text []byte, offset int) protocol.Position {
	if offset > len(text) {
		offset = len(text)
	}
	if offset < 0 {
		offset = 0
	}
	var pos protocol.Position
	for _, b := range text[:offset] {
		if b == '\n' {
			pos.Line++
			pos.Character = 0
		} else {
			pos.Character++
		}
	}
	return pos
}

func diagnostic(rng protocol.Range, message string) protocol.Diagnostic {
	severity := protocol.DiagnosticSeverityError
	source := "calyx"
	return protocol.Diagnostic{
		Range:    rng,
		Severity: &severity,
		Source:   &source,
		Message:  message,
	}
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
