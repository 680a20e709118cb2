package diagnostics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/tliron/commonlog"
)

const fixtureSrc = `component main() -> () {
  cells {}
  wires {}
  control {}
}
`

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calyx-stub")
	script := "#!/bin/sh\n" + body
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestCheckCleanCompile(t *testing.T) {
	r := NewRunner(commonlog.GetLogger("test"))
	stub := writeScript(t, "exit 0\n")

	diags, err := r.Check(context.Background(), stub, "/src/main.futil", []byte(fixtureSrc), nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("diagnostics = %v, want none", diags)
	}
}

func TestCheckReportsCompilerError(t *testing.T) {
	r := NewRunner(commonlog.GetLogger("test"))
	payload := `{"file_name":"/src/main.futil","pos_start":25,"pos_end":30,"msg":"unknown port"}`
	stub := writeScript(t, fmt.Sprintf("echo 'build noise' >&2\necho '%s'\nexit 1\n", payload))

	diags, err := r.Check(context.Background(), stub, "/src/main.futil", []byte(fixtureSrc), nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %d, want 1", len(diags))
	}

	d := diags[0]
	if d.Message != "unknown port" {
		t.Errorf("message = %q", d.Message)
	}
	// Offset 25 lands just after "cells {" on the second line.
	if d.Range.Start.Line != 1 || d.Range.End.Line != 1 {
		t.Errorf("range = %v, want line 1", d.Range)
	}
	if d.Source == nil || *d.Source != "calyx" {
		t.Errorf("source = %v, want calyx", d.Source)
	}
}

func TestCheckDecodesPrettyPrintedPayload(t *testing.T) {
	r := NewRunner(commonlog.GetLogger("test"))
	stub := writeScript(t, `echo '{
  "file_name": "/src/main.futil",
  "pos_start": 25,
  "pos_end": 30,
  "msg": "unknown port"
}'
exit 1
`)

	diags, err := r.Check(context.Background(), stub, "/src/main.futil", []byte(fixtureSrc), nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %d, want 1", len(diags))
	}
	if diags[0].Message != "unknown port" {
		t.Errorf("message = %q", diags[0].Message)
	}
	if diags[0].Range.Start.Line != 1 {
		t.Errorf("range = %v, want line 1", diags[0].Range)
	}
}

func TestCheckReadsStderrFromOlderDrivers(t *testing.T) {
	r := NewRunner(commonlog.GetLogger("test"))
	payload := `{"file_name":"/src/main.futil","pos_start":25,"pos_end":30,"msg":"unknown port"}`
	stub := writeScript(t, fmt.Sprintf("echo '%s' >&2\nexit 1\n", payload))

	diags, err := r.Check(context.Background(), stub, "/src/main.futil", []byte(fixtureSrc), nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %d, want 1", len(diags))
	}
	if diags[0].Message != "unknown port" {
		t.Errorf("message = %q", diags[0].Message)
	}
}

func TestCheckSkipsErrorsInOtherFiles(t *testing.T) {
	r := NewRunner(commonlog.GetLogger("test"))
	payload := `{"file_name":"/src/other.futil","pos_start":0,"pos_end":1,"msg":"elsewhere"}`
	stub := writeScript(t, fmt.Sprintf("echo '%s'\nexit 1\n", payload))

	diags, err := r.Check(context.Background(), stub, "/src/main.futil", []byte(fixtureSrc), nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	// The error belongs to another file and nothing is published here.
	if len(diags) != 0 {
		t.Errorf("diagnostics = %v, want none for this file", diags)
	}
}

func TestCheckFallsBackOnUnparseableOutput(t *testing.T) {
	r := NewRunner(commonlog.GetLogger("test"))
	stub := writeScript(t, "echo 'thread panicked' >&2\nexit 101\n")

	diags, err := r.Check(context.Background(), stub, "/src/main.futil", []byte(fixtureSrc), nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %d, want 1", len(diags))
	}
	if diags[0].Message != "thread panicked" {
		t.Errorf("message = %q", diags[0].Message)
	}
	if diags[0].Range.Start.Line != 0 || diags[0].Range.Start.Character != 0 {
		t.Errorf("range = %v, want top of file", diags[0].Range)
	}
}

func TestCheckMissingCompiler(t *testing.T) {
	r := NewRunner(commonlog.GetLogger("test"))
	if _, err := r.Check(context.Background(), "/does/not/exist/calyx", "/src/main.futil", []byte(fixtureSrc), nil); err == nil {
		t.Error("missing compiler did not error")
	}
}

func TestOffsetToPosition(t *testing.T) {
	text := []byte("abc\ndef\nghi")
	tests := []struct {
		offset    int
		line, col uint32
	}{
		{0, 0, 0},
		{3, 0, 3},
		{4, 1, 0},
		{6, 1, 2},
		{8, 2, 0},
		{100, 2, 3},
	}
	for _, tt := range tests {
		pos := offsetToPosition(text, tt.offset)
		if pos.Line != tt.line || pos.Character != tt.col {
			t.Errorf("offset %d = %v, want %d:%d", tt.offset, pos, tt.line, tt.col)
		}
	}
}
