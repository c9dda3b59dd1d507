package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/dih-project/wishonia/internal/apperr"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for p, content := range files {
		full := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func paths(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out
}

func TestMatch(t *testing.T) {
	cases := []struct {
		pattern, name string
		want          bool
	}{
		{"**/*.qmd", "a.qmd", true},
		{"**/*.qmd", "x/y/a.qmd", true},
		{"chapters/*.qmd", "chapters/a.qmd", true},
		{"chapters/*.qmd", "chapters/sub/a.qmd", false},
		{"chapters/**", "chapters/sub/a.qmd", true},
		{"a/**/b.md", "a/b.md", true},
		{"a/**/b.md", "a/x/y/b.md", true},
		{"*.md", "sub/a.md", false},
		{"chapters/{one,two}.qmd", "chapters/two.qmd", true},
		{"chapters/[", "chapters/[", false},
	}
	for _, c := range cases {
		if got := Match(c.pattern, c.name); got != c.want {
			t.Errorf("Match(%q, %q) = %v, want %v", c.pattern, c.name, got, c.want)
		}
	}
}

func TestValidGlob(t *testing.T) {
	if !ValidGlob("chapters/**/*.qmd") {
		t.Error("valid pattern rejected")
	}
	if ValidGlob("chapters/[") {
		t.Error("unterminated class accepted")
	}
}

func TestIgnore_DefaultsAndFile(t *testing.T) {
	r := ParseIgnore([]byte("# comment\n*.draft.qmd\n/scratch/\nbuild/**\n!keep.draft.qmd\n\\#hash.qmd\n"))
	cases := map[string]bool{
		"node_modules/pkg/readme.md": true,
		".git/HEAD.md":               true,
		"_book/index.md":             true,
		"chapters/a.draft.qmd":       true,
		"keep.draft.qmd":             false,
		"scratch/notes.md":           true,
		"chapters/scratch/notes.md":  false,
		"build/out/x.md":             true,
		"chapters/a.qmd":             false,
		"#hash.qmd":                  true,
		"comment":                    false,
	}
	for p, want := range cases {
		if got := r.Ignored(p, false); got != want {
			t.Errorf("Ignored(%q) = %v, want %v", p, got, want)
		}
	}
}

func TestLoadIgnore_MissingFileUsesDefaults(t *testing.T) {
	r, err := LoadIgnore(filepath.Join(t.TempDir(), ".gitignore"))
	if err != nil {
		t.Fatalf("LoadIgnore: %v", err)
	}
	if !r.Ignored("node_modules/x.md", false) {
		t.Error("defaults should apply")
	}
}

func TestLoadIgnore_MergesFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		".gitignore":      "drafts/\n*.tmp.qmd\n",
		".wishoniaignore": "notes/\n",
	})
	r, err := LoadIgnore(filepath.Join(dir, ".gitignore"), filepath.Join(dir, ".wishoniaignore"), filepath.Join(dir, "absent"))
	if err != nil {
		t.Fatalf("LoadIgnore: %v", err)
	}
	cases := map[string]bool{
		"drafts/a.qmd":     true,
		"x.tmp.qmd":        true,
		"notes/n.md":       true,
		"chapters/one.qmd": false,
		"_book/index.md":   true,
	}
	for p, want := range cases {
		if got := r.Ignored(p, false); got != want {
			t.Errorf("Ignored(%q) = %v, want %v", p, got, want)
		}
	}
	if !r.Ignored("drafts", true) {
		t.Error("drafts directory not ignored")
	}
}

func TestLoadIgnore_UnreadableIsStructural(t *testing.T) {
	dir := t.TempDir()
	// A directory in place of the file cannot be read as one.
	if err := os.Mkdir(filepath.Join(dir, ".gitignore"), 0o755); err != nil {
		t.Fatal(err)
	}
	_, err := LoadIgnore(filepath.Join(dir, ".gitignore"))
	if !errors.Is(err, apperr.ErrStructural) {
		t.Fatalf("err = %v, want structural", err)
	}
}

const quartoYML = `project:
  type: book
book:
  title: "The 1% Treaty"
  chapters:
    - index.qmd
    - part: "Problem"
      chapters:
        - chapters/problem.qmd
        - chapters/cost.qmd
    - part: chapters/solution-part.qmd
      chapters:
        - chapters/solution.qmd
    - href: chapters/faq.qmd
      text: FAQ
  appendices:
    - appendix/sources.qmd
    - part: "Reference"
      chapters:
        - appendix/glossary.qmd
format:
  html:
    chapters: true
`

func TestParseManifest_SectionsAndOrder(t *testing.T) {
	m, err := ParseManifest([]byte(quartoYML))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	want := []ManifestEntry{
		{"index.qmd", SectionChapter},
		{"chapters/problem.qmd", SectionChapter},
		{"chapters/cost.qmd", SectionChapter},
		{"chapters/solution-part.qmd", SectionChapter},
		{"chapters/solution.qmd", SectionChapter},
		{"chapters/faq.qmd", SectionChapter},
		{"appendix/sources.qmd", SectionAppendix},
		{"appendix/glossary.qmd", SectionAppendix},
	}
	got := m.Entries()
	if len(got) != len(want) {
		t.Fatalf("entries = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseManifest_NestedChaptersKeyStaysInSection(t *testing.T) {
	// "chapters" nested under an appendix part must not open a chapter section.
	m, _ := ParseManifest([]byte(quartoYML))
	if sec, ok := m.Lookup("appendix/glossary.qmd"); !ok || sec != SectionAppendix {
		t.Errorf("glossary section = %q, %v", sec, ok)
	}
}

func TestLoadManifest_MissingIsStructural(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "_quarto.yml"))
	if !errors.Is(err, apperr.ErrStructural) {
		t.Fatalf("err = %v, want structural", err)
	}
}

func TestEnumerate_SortedWithoutManifest(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"b.qmd":               "b",
		"a.md":                "a",
		"sub/c.qmd":           "c",
		"node_modules/x/y.md": "ignored",
		"_book/index.md":      "ignored",
		"notes.txt":           "not content",
	})
	entries, err := Enumerate(root, Options{})
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	got := paths(entries)
	want := []string{"a.md", "b.qmd", "sub/c.qmd"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
}

func TestEnumerate_ManifestRestrictsAndOrders(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"index.qmd":            "i",
		"chapters/problem.qmd": "p",
		"chapters/cost.qmd":    "c",
		"chapters/orphan.qmd":  "not listed",
		"appendix/sources.qmd": "s",
	})
	m, _ := ParseManifest([]byte(quartoYML))
	entries, err := Enumerate(root, Options{Manifest: m})
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	got := paths(entries)
	want := []string{"index.qmd", "chapters/problem.qmd", "chapters/cost.qmd", "appendix/sources.qmd"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if entries[3].Section != SectionAppendix {
		t.Errorf("sources section = %q", entries[3].Section)
	}

	chaptersOnly, _ := Enumerate(root, Options{Manifest: m, Sections: []Section{SectionChapter}})
	if len(chaptersOnly) != 3 {
		t.Errorf("chapter filter = %v", paths(chaptersOnly))
	}
}

func TestEnumerate_GlobRestricts(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"chapters/a.qmd": "a",
		"appendix/b.qmd": "b",
	})
	entries, _ := Enumerate(root, Options{Globs: []string{"chapters/**"}})
	if len(entries) != 1 || entries[0].Path != "chapters/a.qmd" {
		t.Errorf("entries = %v", paths(entries))
	}
}

func TestSingle(t *testing.T) {
	m, _ := ParseManifest([]byte(quartoYML))
	e := Single("./appendix/sources.qmd", m)
	if e.Path != "appendix/sources.qmd" || e.Section != SectionAppendix {
		t.Errorf("entry = %+v", e)
	}
	if e := Single("loose.md", nil); e.Section != SectionOther {
		t.Errorf("entry = %+v", e)
	}
}

func TestRestrict_KeepsEntryOrder(t *testing.T) {
	entries := []Entry{
		{Path: "index.qmd", Section: SectionChapter},
		{Path: "chapters/one.qmd", Section: SectionChapter},
		{Path: "appendix/a.qmd", Section: SectionAppendix},
	}
	got := Restrict(entries, []string{"appendix/a.qmd", "notes/draft.md", "index.qmd"})
	if want := []string{"index.qmd", "appendix/a.qmd"}; !slices.Equal(paths(got), want) {
		t.Errorf("Restrict = %v, want %v", paths(got), want)
	}
	if got[1].Section != SectionAppendix {
		t.Errorf("section lost: %+v", got[1])
	}
	if len(Restrict(entries, nil)) != 0 {
		t.Error("nil paths kept entries")
	}
}
