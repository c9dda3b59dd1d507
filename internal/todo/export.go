package todo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dih-project/wishonia/internal/storage"
)

// ExportJSON renders the ledger as an indented JSON array.
func (l *Ledger) ExportJSON() ([]byte, error) {
	list := l.All()
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("todo: marshal json: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportYAML renders the ledger as a YAML sequence for hand editing.
func (l *Ledger) ExportYAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(struct {
		Todos []Todo `yaml:"todos"`
	}{Todos: l.All()}); err != nil {
		return nil, fmt.Errorf("todo: marshal yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("todo: marshal yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportMarkdown renders a report grouped by priority, then by file.
func (l *Ledger) ExportMarkdown() []byte {
	list := l.All()
	byStatus, byPriority := l.Counts()

	var b strings.Builder
	fmt.Fprintf(&b, "# Review Todos\n\n")
	fmt.Fprintf(&b, "Total: %d\n\n", len(list))

	fmt.Fprintf(&b, "| Status | Count |\n|--------|-------|\n")
	for _, s := range Statuses {
		fmt.Fprintf(&b, "| %s | %d |\n", s, byStatus[s])
	}
	fmt.Fprintf(&b, "\n| Priority | Count |\n|----------|-------|\n")
	for _, p := range Priorities {
		fmt.Fprintf(&b, "| %s | %d |\n", p, byPriority[p])
	}
	b.WriteString("\n")

	grouped := map[Priority][]Todo{}
	for _, t := range list {
		grouped[t.Priority] = append(grouped[t.Priority], t)
	}
	for _, p := range Priorities {
		items := grouped[p]
		if len(items) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s (%d)\n\n", strings.ToUpper(string(p)), len(items))
		sort.SliceStable(items, func(i, j int) bool {
			if items[i].FilePath != items[j].FilePath {
				return items[i].FilePath < items[j].FilePath
			}
			return items[i].Line < items[j].Line
		})
		current := ""
		for _, t := range items {
			if t.FilePath != current {
				current = t.FilePath
				fmt.Fprintf(&b, "### %s\n\n", current)
			}
			box := " "
			if t.Status == StatusFixed || t.Status == StatusReviewed || t.Status == StatusRejected {
				box = "x"
			}
			fmt.Fprintf(&b, "- [%s] `%s` **%s** (line %d, %s confidence, %s): %s\n",
				box, t.ID, t.Type, t.Line, t.Confidence, t.Status, t.Issue)
			if t.SuggestedFix != "" {
				fmt.Fprintf(&b, "  - Suggested fix: %s\n", strings.ReplaceAll(t.SuggestedFix, "\n", " "))
			}
		}
		b.WriteString("\n")
	}
	return []byte(b.String())
}

// ExportAll writes the JSON, YAML and Markdown renderings. Empty paths are skipped.
func (l *Ledger) ExportAll(jsonPath, yamlPath, mdPath string) error {
	if jsonPath != "" {
		if err := l.Save(jsonPath); err != nil {
			return err
		}
	}
	if yamlPath != "" {
		data, err := l.ExportYAML()
		if err != nil {
			return err
		}
		if err := storage.WriteFileAtomic(yamlPath, data); err != nil {
			return fmt.Errorf("todo: write yaml: %w", err)
		}
	}
	if mdPath != "" {
		if err := storage.WriteFileAtomic(mdPath, l.ExportMarkdown()); err != nil {
			return fmt.Errorf("todo: write markdown: %w", err)
		}
	}
	return nil
}

// Files names the on-disk renderings of a ledger.
type Files struct {
	JSON     string `yaml:"json"`
	YAML     string `yaml:"yaml"`
	Markdown string `yaml:"markdown"`
}

// Persist writes every rendering named in f.
func (l *Ledger) Persist(f Files) error {
	return l.ExportAll(f.JSON, f.YAML, f.Markdown)
}
