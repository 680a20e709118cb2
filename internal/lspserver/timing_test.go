package lspserver

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func TestTimingRecorderWritesEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timings.jsonl")
	base := time.Unix(1700000000, 0)

	rec := newTimingRecorder(base, path)
	if !rec.Enabled() {
		t.Fatal("recorder with a path should be enabled")
	}
	if err := rec.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}

	rec.RecordRequest("definition", "/ws/a.futil", "found", base.Add(5*time.Millisecond), 2*time.Millisecond)
	rec.RecordNotification("didChange", "/ws/a.futil", "", base.Add(9*time.Millisecond), time.Millisecond)
	rec.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var events []timingEvent
	dec := json.NewDecoder(f)
	for dec.More() {
		var ev timingEvent
		if err := dec.Decode(&ev); err != nil {
			t.Fatalf("decode: %v", err)
		}
		events = append(events, ev)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}

	first := events[0]
	if first.Phase != "definition" || first.Kind != "request" {
		t.Errorf("first event = %s/%s, want definition/request", first.Phase, first.Kind)
	}
	if first.File != "/ws/a.futil" || first.Status != "found" {
		t.Errorf("first event file/status = %s/%s", first.File, first.Status)
	}
	if first.StartMS != 5 || first.DurationMS != 2 || first.EndMS != 7 {
		t.Errorf("first event timing = %v/%v/%v, want 5/2/7", first.StartMS, first.DurationMS, first.EndMS)
	}

	second := events[1]
	if second.Phase != "didChange" || second.Kind != "notification" {
		t.Errorf("second event = %s/%s, want didChange/notification", second.Phase, second.Kind)
	}
	if second.Status != "" {
		t.Errorf("second event status = %q, want empty", second.Status)
	}
	if second.StartMS != 9 || second.EndMS != 10 {
		t.Errorf("second event timing = %v..%v, want 9..10", second.StartMS, second.EndMS)
	}
}

func TestTimingRecorderDisabledWithoutPath(t *testing.T) {
	rec := newTimingRecorder(time.Now(), "")
	if rec.Enabled() {
		t.Error("recorder without a path reports enabled")
	}
	rec.RecordRequest("definition", "a.futil", "found", time.Now(), time.Millisecond)
	rec.Close()

	var missing *timingRecorder
	if missing.Enabled() {
		t.Error("nil recorder reports enabled")
	}
	missing.RecordNotification("didOpen", "a.futil", "", time.Now(), 0)
	missing.Close()
}

func TestResolveTimingPath(t *testing.T) {
	t.Setenv("CALYX_LSP_TIMINGS", "")
	if got := resolveTimingPath(); got != "" {
		t.Errorf("resolveTimingPath with empty env = %q", got)
	}

	t.Setenv("CALYX_LSP_TIMINGS", "/tmp/timings.jsonl")
	if got := resolveTimingPath(); got != "/tmp/timings.jsonl" {
		t.Errorf("resolveTimingPath = %q", got)
	}
}

func TestTimingEnabledThroughEnvironment(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	timingPath := filepath.Join(t.TempDir(), "timings.jsonl")
	t.Setenv("CALYX_LSP_TIMINGS", timingPath)
	workspace := t.TempDir()

	srv, err := New(commonlog.GetLogger("lspserver.test"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !srv.timing.Enabled() {
		t.Fatal("timing should be enabled when the environment names a file")
	}

	handler := srv.BuildHandler()
	if _, err := handler.Initialize(nil, &protocol.InitializeParams{RootPath: &workspace}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := handler.Shutdown(nil); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	data, err := os.ReadFile(timingPath)
	if err != nil {
		t.Fatalf("read timings: %v", err)
	}
	if !strings.Contains(string(data), `"phase":"initialize"`) {
		t.Errorf("timing log missing the initialize record: %s", data)
	}
}
