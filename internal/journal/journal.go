// Package journal keeps a human-readable, append-only history of runs.
package journal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level is the severity of an entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Journal appends one line per entry to a text file. A nil Journal
// discards everything, so callers need no guards.
type Journal struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// Open creates the parent directory of path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	return &Journal{path: path, now: time.Now}, nil
}

// Path returns the backing file.
func (j *Journal) Path() string {
	if j == nil {
		return ""
	}
	return j.path
}

// Append writes one entry. Newlines in message are flattened so every
// entry stays on one line.
func (j *Journal) Append(level Level, message string) error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	msg := strings.Join(strings.Fields(message), " ")
	line := fmt.Sprintf("%s %-5s %s\n", j.now().UTC().Format(time.RFC3339), level, msg)
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	return nil
}

// Tail returns up to n of the most recent entries, oldest first.
func (j *Journal) Tail(n int) ([]string, error) {
	if j == nil || n <= 0 {
		return nil, nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("journal: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	return lines, nil
}

func (j *Journal) Info(format string, args ...any) error {
	return j.Append(LevelInfo, fmt.Sprintf(format, args...))
}

func (j *Journal) Warn(format string, args ...any) error {
	return j.Append(LevelWarn, fmt.Sprintf(format, args...))
}

func (j *Journal) Error(format string, args ...any) error {
	return j.Append(LevelError, fmt.Sprintf(format, args...))
}
