package checksum

import (
	"testing"

	"github.com/dih-project/wishonia/internal/document"
)

func TestBody_Stable(t *testing.T) {
	data := []byte("---\ntitle: A\n---\nSame body.\n")
	a, err := Body(data)
	if err != nil {
		t.Fatalf("Body: %v", err)
	}
	b, _ := Body(data)
	if a != b {
		t.Errorf("hash not stable: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("len = %d, want 64 hex chars", len(a))
	}
}

func TestBody_MetadataIndependent(t *testing.T) {
	a, _ := Body([]byte("---\ntitle: A\n---\nSame body.\n"))
	b, _ := Body([]byte("---\ntitle: B\nlastFormatHash: 123\n---\nSame body.\n"))
	c, _ := Body([]byte("Same body.\n"))
	if a != b || b != c {
		t.Errorf("hashes differ for identical bodies: %s %s %s", a, b, c)
	}
}

func TestBody_WhitespaceChangesHash(t *testing.T) {
	a, _ := Body([]byte("Body.\n"))
	b, _ := Body([]byte("Body. \n"))
	if a == b {
		t.Error("formatting-only edits must change the hash")
	}
}

func TestBody_NotSelfInvalidating(t *testing.T) {
	data := []byte("---\ntitle: A\n---\nChapter text.\n")
	before, _ := Body(data)

	doc, err := document.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := doc.SetField("lastFormatHash", before); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	written, err := doc.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	after, _ := Body(written)
	if before != after {
		t.Errorf("recording the hash changed it: %s -> %s", before, after)
	}
}

func TestBody_MalformedMetadata(t *testing.T) {
	if _, err := Body([]byte("---\n[unclosed\n---\nbody")); err == nil {
		t.Error("expected parse error")
	}
}
