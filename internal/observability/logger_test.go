package observability

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// captureStdout collects what fn prints, keeping event JSON out of the
// test output.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w
	fn()
	w.Close()
	os.Stdout = old

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestLogLLMWritesSidecar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "llm.jsonl")
	l := NewLoggerAt(path)

	out := captureStdout(t, func() {
		l.LogLLM("sess-1", "classify this message", "LIST_VULNS")
	})
	if !strings.Contains(out, `"type":"llm"`) {
		t.Errorf("stdout = %s", out)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("sidecar not written: %v", err)
	}
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		t.Fatal(err)
	}
	if evt.Type != EventTypeLLM || evt.SessionID != "sess-1" {
		t.Errorf("event = %+v", evt)
	}
}

func TestLogLLMRotatesOversizedSidecar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "llm.jsonl")
	if err := os.WriteFile(path, []byte(strings.Repeat("x", 64)+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	l := &Logger{llmLogPath: path, maxSize: 16}
	captureStdout(t, func() {
		l.LogLLM("", "prompt", "response")
	})

	old, err := os.ReadFile(path + ".old")
	if err != nil {
		t.Fatalf("rotated file missing: %v", err)
	}
	if !strings.HasPrefix(string(old), "xxx") {
		t.Errorf("rotated content = %q", old)
	}

	fresh, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(fresh), `"type":"llm"`) || strings.Contains(string(fresh), "xxx") {
		t.Errorf("new sidecar = %q", fresh)
	}
}

func TestLogPlanEmitsPlanEvent(t *testing.T) {
	out := captureStdout(t, func() {
		NewLogger().LogPlan("sess-1", "241573", 4, "plan.json")
	})
	if !strings.Contains(out, `"type":"plan"`) || !strings.Contains(out, "241573") {
		t.Errorf("stdout = %s", out)
	}
}
