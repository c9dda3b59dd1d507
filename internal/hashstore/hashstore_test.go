package hashstore

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/dih-project/wishonia/internal/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	sq, err := OpenSQLite(filepath.Join(dir, "hashes.db"), "/book")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { sq.Close() })
	return map[string]Store{
		"json":   NewJSON(filepath.Join(dir, "state", "hashes.json"), "/book", quietLogger()),
		"sqlite": sq,
	}
}

func TestStore_MissingEntryIsAbsent(t *testing.T) {
	for name, s := range testStores(t) {
		_, ok, err := s.Get("chapters/one.qmd", "lastFormatHash")
		if err != nil {
			t.Fatalf("%s: Get: %v", name, err)
		}
		if ok {
			t.Errorf("%s: expected absent entry", name)
		}
	}
}

func TestStore_SetGetRemove(t *testing.T) {
	for name, s := range testStores(t) {
		if err := s.Set("chapters/one.qmd", "lastFormatHash", "aaa"); err != nil {
			t.Fatalf("%s: Set: %v", name, err)
		}
		if err := s.Set("chapters/one.qmd", "lastStyleHash", "bbb"); err != nil {
			t.Fatalf("%s: Set: %v", name, err)
		}
		if err := s.Set("chapters/one.qmd", "lastFormatHash", "ccc"); err != nil {
			t.Fatalf("%s: Set overwrite: %v", name, err)
		}
		got, ok, _ := s.Get("chapters/one.qmd", "lastFormatHash")
		if !ok || got != "ccc" {
			t.Errorf("%s: format = %q, %v; want ccc", name, got, ok)
		}

		if err := s.Remove("chapters/one.qmd", "lastFormatHash"); err != nil {
			t.Fatalf("%s: Remove: %v", name, err)
		}
		if _, ok, _ := s.Get("chapters/one.qmd", "lastFormatHash"); ok {
			t.Errorf("%s: format entry should be gone", name)
		}
		if got, ok, _ := s.Get("chapters/one.qmd", "lastStyleHash"); !ok || got != "bbb" {
			t.Errorf("%s: style entry should survive Remove, got %q", name, got)
		}

		if err := s.RemoveAll("chapters/one.qmd"); err != nil {
			t.Fatalf("%s: RemoveAll: %v", name, err)
		}
		if _, ok, _ := s.Get("chapters/one.qmd", "lastStyleHash"); ok {
			t.Errorf("%s: RemoveAll should drop every field", name)
		}
	}
}

func TestStore_FieldsIsolated(t *testing.T) {
	for name, s := range testStores(t) {
		_ = s.Set("a.md", "lastFormatHash", "h1")
		if _, ok, _ := s.Get("a.md", "lastToneHash"); ok {
			t.Errorf("%s: marking format current leaked into tone", name)
		}
	}
}

func TestStore_PathNormalization(t *testing.T) {
	for name, s := range testStores(t) {
		_ = s.Set(`/book/chapters\two.qmd`, "lastFormatHash", "x")
		for _, p := range []string{"chapters/two.qmd", "./chapters/two.qmd", "/book/chapters/two.qmd", `chapters\two.qmd`} {
			if got, ok, _ := s.Get(p, "lastFormatHash"); !ok || got != "x" {
				t.Errorf("%s: Get(%q) = %q, %v", name, p, got, ok)
			}
		}
	}
}

func TestJSON_CorruptFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "hashes.json")
	if err := os.WriteFile(p, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewJSON(p, "", quietLogger())
	if _, ok, err := s.Get("a.md", "lastFormatHash"); ok || err != nil {
		t.Fatalf("corrupt store should read as empty, got ok=%v err=%v", ok, err)
	}
	if err := s.Set("a.md", "lastFormatHash", "h"); err != nil {
		t.Fatalf("Set over corrupt file: %v", err)
	}
	if got, ok, _ := s.Get("a.md", "lastFormatHash"); !ok || got != "h" {
		t.Errorf("got %q, %v", got, ok)
	}
}

func TestJSON_CreatesDirectoryOnWrite(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "deep", "nested", "hashes.json")
	s := NewJSON(p, "", quietLogger())
	if err := s.Set("a.md", "lastFormatHash", "h"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("index not written: %v", err)
	}
}

func TestNormalizePath(t *testing.T) {
	cases := []struct{ root, in, want string }{
		{"/book", "/book/a/b.md", "a/b.md"},
		{"/book", "a/../a/b.md", "a/b.md"},
		{"/book", `a\b.md`, "a/b.md"},
		{"", "./x.qmd", "x.qmd"},
		{"/book", "/elsewhere/x.md", "/elsewhere/x.md"},
	}
	for _, c := range cases {
		if got := NormalizePath(c.root, c.in); got != c.want {
			t.Errorf("NormalizePath(%q, %q) = %q, want %q", c.root, c.in, got, c.want)
		}
	}
}

func TestFrontmatter_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	files, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	_ = files.Write("ch.qmd", []byte("---\ntitle: Ch\n---\nBody\n"))
	s := NewFrontmatter(files)

	if _, ok, _ := s.Get("ch.qmd", "lastFormatHash"); ok {
		t.Fatal("expected absent")
	}
	if err := s.Set("ch.qmd", "lastFormatHash", "abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, _ := files.Read("ch.qmd")
	if string(data) != "---\ntitle: Ch\nlastFormatHash: abc\n---\nBody\n" {
		t.Errorf("file = %q", data)
	}
	if got, ok, _ := s.Get("ch.qmd", "lastFormatHash"); !ok || got != "abc" {
		t.Errorf("Get = %q, %v", got, ok)
	}
	if _, ok, err := s.Get("missing.qmd", "lastFormatHash"); ok || err != nil {
		t.Errorf("missing file should be absent, got ok=%v err=%v", ok, err)
	}
}

func TestMigrate_MovesAndStrips(t *testing.T) {
	dir := t.TempDir()
	files, _ := storage.NewFS(dir)
	_ = files.Write("a.qmd", []byte("---\ntitle: A\nlastFormatHash: f1\nlastToneHash: t1\n---\nA body\n"))
	_ = files.Write("b.qmd", []byte("---\ntitle: B\n---\nB body\n"))
	_ = files.Write("bad.qmd", []byte("---\n[broken\n---\n"))

	dst := NewJSON(filepath.Join(dir, ".wishonia", "hashes.json"), files.Root(), quietLogger())
	stats := Migrate(files, dst, []string{"a.qmd", "b.qmd", "bad.qmd"}, true, quietLogger())

	if stats.Files != 1 || stats.Entries != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if _, ok := stats.Failed["bad.qmd"]; !ok {
		t.Error("bad.qmd should be reported as failed")
	}
	if got, ok, _ := dst.Get("a.qmd", "lastToneHash"); !ok || got != "t1" {
		t.Errorf("tone = %q, %v", got, ok)
	}
	data, _ := files.Read("a.qmd")
	if string(data) != "---\ntitle: A\n---\nA body\n" {
		t.Errorf("embedded fields not stripped: %q", data)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open("redis", "", nil, quietLogger()); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestOpen_CorruptSQLiteStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "hashes.db")
	garbage := []byte("this is not a sqlite database, just bytes that happen to be here\n")
	if err := os.WriteFile(db, garbage, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := Open(BackendSQLite, db, nil, quietLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, ok, err := s.Get("a.qmd", "lastFormatHash"); err != nil || ok {
		t.Fatalf("Get = %v, %v; want empty store", ok, err)
	}
	if err := s.Set("a.qmd", "lastFormatHash", "abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if d, ok, _ := s.Get("a.qmd", "lastFormatHash"); !ok || d != "abc" {
		t.Errorf("Get after Set = %q, %v", d, ok)
	}

	moved, err := os.ReadFile(db + ".corrupt")
	if err != nil {
		t.Fatalf("corrupt copy: %v", err)
	}
	if string(moved) != string(garbage) {
		t.Error("corrupt database not preserved byte for byte")
	}
}

func TestOpen_SQLiteErrorReturnsNilStore(t *testing.T) {
	dir := t.TempDir()
	// The parent "directory" is a regular file, so nothing can be created.
	parent := filepath.Join(dir, "state")
	if err := os.WriteFile(parent, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s, err := Open(BackendSQLite, filepath.Join(parent, "hashes.db"), nil, quietLogger())
	if err == nil {
		s.Close()
		t.Fatal("Open succeeded under a regular file")
	}
	if s != nil {
		t.Errorf("store = %#v, want nil interface", s)
	}
}
