package corpus

import (
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dih-project/wishonia/internal/apperr"
)

// Section tags where a file sits in the book.
type Section string

const (
	SectionChapter  Section = "chapter"
	SectionAppendix Section = "appendix"
	SectionOther    Section = "other"
)

// ManifestEntry is one file listed by the book manifest.
type ManifestEntry struct {
	Path    string
	Section Section
}

// Manifest is the ordered list of files declared by a Quarto book.
type Manifest struct {
	entries []ManifestEntry
	index   map[string]int
}

// quartoFile only declares the two book-level section keys. A "chapters"
// key nested inside a part is reached through the part entry, so it can
// never be mistaken for a sibling of book.chapters.
type quartoFile struct {
	Book struct {
		Chapters   []yaml.Node `yaml:"chapters"`
		Appendices []yaml.Node `yaml:"appendices"`
	} `yaml:"book"`
}

// LoadManifest reads a _quarto.yml file. Failure to read or parse it is a
// structural error.
func LoadManifest(file string) (*Manifest, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("%w: read manifest %s: %w", apperr.ErrStructural, file, err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", apperr.ErrStructural, file, err)
	}
	return m, nil
}

// ParseManifest extracts book.chapters and book.appendices in order.
// Part entries contribute their own file (when the part names one) and their
// nested chapters, all tagged with the enclosing section.
func ParseManifest(data []byte) (*Manifest, error) {
	var qf quartoFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("corpus: parse manifest: %w", err)
	}
	m := &Manifest{index: map[string]int{}}
	for i := range qf.Book.Chapters {
		m.collect(&qf.Book.Chapters[i], SectionChapter)
	}
	for i := range qf.Book.Appendices {
		m.collect(&qf.Book.Appendices[i], SectionAppendix)
	}
	return m, nil
}

func (m *Manifest) collect(n *yaml.Node, sec Section) {
	switch n.Kind {
	case yaml.ScalarNode:
		m.add(n.Value, sec)
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i].Value, n.Content[i+1]
			switch key {
			case "href", "file":
				m.add(val.Value, sec)
			case "part":
				if val.Kind == yaml.ScalarNode && isContentPath(val.Value) {
					m.add(val.Value, sec)
				}
			case "chapters":
				for j := range val.Content {
					m.collect(val.Content[j], sec)
				}
			}
		}
	}
}

func isContentPath(p string) bool {
	p = strings.ToLower(p)
	return strings.HasSuffix(p, ".qmd") || strings.HasSuffix(p, ".md") || strings.HasSuffix(p, ".ipynb")
}

func (m *Manifest) add(p string, sec Section) {
	p = strings.TrimSpace(p)
	if p == "" {
		return
	}
	p = strings.TrimPrefix(path.Clean(p), "./")
	if _, dup := m.index[p]; dup {
		return
	}
	m.index[p] = len(m.entries)
	m.entries = append(m.entries, ManifestEntry{Path: p, Section: sec})
}

// Entries returns the manifest in declaration order.
func (m *Manifest) Entries() []ManifestEntry {
	out := make([]ManifestEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Lookup returns the section of p and whether the manifest lists it.
func (m *Manifest) Lookup(p string) (Section, bool) {
	if m == nil {
		return SectionOther, false
	}
	i, ok := m.index[strings.TrimPrefix(path.Clean(p), "./")]
	if !ok {
		return SectionOther, false
	}
	return m.entries[i].Section, true
}

// Len returns the number of listed files.
func (m *Manifest) Len() int { return len(m.entries) }
