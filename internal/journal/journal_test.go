package journal

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAppendAndTail(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "state", "journal.log"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	j.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	for i := 0; i < 5; i++ {
		if err := j.Info("run %d\nfinished", i); err != nil {
			t.Fatalf("Info: %v", err)
		}
	}
	_ = j.Warn("format: 1 failed")

	lines, err := j.Tail(2)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %v", lines)
	}
	if lines[0] != "2026-03-01T12:00:00Z INFO  run 4 finished" {
		t.Errorf("line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "WARN") {
		t.Errorf("line = %q", lines[1])
	}
}

func TestTail_MissingFile(t *testing.T) {
	j, _ := Open(filepath.Join(t.TempDir(), "journal.log"))
	lines, err := j.Tail(10)
	if err != nil || lines != nil {
		t.Errorf("Tail = %v, %v", lines, err)
	}
}

func TestNilJournal(t *testing.T) {
	var j *Journal
	if err := j.Info("ignored"); err != nil {
		t.Errorf("Info on nil: %v", err)
	}
	if j.Path() != "" {
		t.Error("nil path")
	}
}
