package corpus

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/dih-project/wishonia/internal/apperr"
)

// DefaultIgnorePatterns are always applied ahead of any ignore file:
// version control metadata, dependency directories, build output and this
// tool's own state.
var DefaultIgnorePatterns = []string{
	".git/",
	"node_modules/",
	"_book/",
	"_site/",
	"_freeze/",
	".quarto/",
	".wishonia/",
	"vendor/",
}

// IgnoreRules is an ordered list of .gitignore patterns. The last matching
// pattern decides; a "!" pattern re-includes.
type IgnoreRules struct {
	lines    []string
	compiled *gitignore.GitIgnore
}

// DefaultIgnore returns rules holding only DefaultIgnorePatterns.
func DefaultIgnore() *IgnoreRules {
	return newIgnore(nil)
}

func newIgnore(extra []string) *IgnoreRules {
	lines := append(append([]string(nil), DefaultIgnorePatterns...), extra...)
	return &IgnoreRules{lines: lines, compiled: gitignore.CompileIgnoreLines(lines...)}
}

// ParseIgnore appends the patterns in data (one per line) to the defaults.
func ParseIgnore(data []byte) *IgnoreRules {
	return newIgnore(splitLines(data))
}

func splitLines(data []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out
}

// LoadIgnore reads ignore files in order and merges their patterns after
// the defaults. Missing files are skipped; a file that exists but cannot be
// read is a structural error.
func LoadIgnore(files ...string) (*IgnoreRules, error) {
	var lines []string
	for _, file := range files {
		if file == "" {
			continue
		}
		data, err := os.ReadFile(file)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("%w: read ignore file %s: %w", apperr.ErrStructural, file, err)
		}
		lines = append(lines, splitLines(data)...)
	}
	return newIgnore(lines), nil
}

// Add appends one pattern line.
func (r *IgnoreRules) Add(line string) {
	r.lines = append(r.lines, line)
	r.compiled = gitignore.CompileIgnoreLines(r.lines...)
}

// Ignored reports whether rel (slash-separated, relative to the root) is
// excluded, either directly or because one of its parent directories is.
func (r *IgnoreRules) Ignored(rel string, isDir bool) bool {
	if r == nil || r.compiled == nil {
		return false
	}
	rel = strings.Trim(path.Clean(rel), "/")
	segs := strings.Split(rel, "/")
	for i := 1; i < len(segs); i++ {
		if r.compiled.MatchesPath(strings.Join(segs[:i], "/") + "/") {
			return true
		}
	}
	if isDir {
		rel += "/"
	}
	return r.compiled.MatchesPath(rel)
}
