package trace

import (
	"strings"
	"testing"
)

func TestNilRecorderIsNoOp(t *testing.T) {
	r := NewRecorder(nil, "session")
	if r != nil {
		t.Fatal("recorder without a store must be nil")
	}

	// Nil-safe methods: the pipeline calls these unconditionally.
	r.Run(RunRecord{ID: "run", SessionID: "session"})
	r.Close()
}

func TestRunRecordTextTruncated(t *testing.T) {
	long := strings.Repeat("x", 2*maxTextLen)
	if got := truncate(long, maxTextLen); len(got) != maxTextLen {
		t.Fatalf("len=%d, want %d", len(got), maxTextLen)
	}
	if got := truncate("short", maxTextLen); got != "short" {
		t.Fatalf("short string altered: %q", got)
	}
}
