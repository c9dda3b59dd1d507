package document

import (
	"errors"
	"strings"
	"testing"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\ntags:\n  - dih\n---\n# Hello\nBody text.\n")
	d, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Title() != "Hello" {
		t.Errorf("title = %q, want %q", d.Title(), "Hello")
	}
	if d.Body != "# Hello\nBody text.\n" {
		t.Errorf("body = %q", d.Body)
	}
	if !d.HasFrontmatter {
		t.Error("expected HasFrontmatter")
	}
}

func TestParse_BodyKeptVerbatim(t *testing.T) {
	input := []byte("---\ntitle: x\n---\n\n\n  indented line   \r\nlast")
	d, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.Body != "\n\n  indented line   \r\nlast" {
		t.Errorf("body = %q", d.Body)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	input := []byte("# Just a heading\nSome text.\n")
	d, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.HasFrontmatter {
		t.Error("expected no frontmatter")
	}
	if d.Body != string(input) {
		t.Errorf("body = %q", d.Body)
	}
	if d.Title() != "Just a heading" {
		t.Errorf("title = %q", d.Title())
	}
}

func TestParse_UnclosedDelimiterIsBody(t *testing.T) {
	input := []byte("---\ntitle: x\nno close\n")
	d, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.HasFrontmatter || d.Body != string(input) {
		t.Errorf("expected whole input as body, got %+v", d)
	}
}

func TestParse_InvalidYAMLIsParseError(t *testing.T) {
	_, err := Parse([]byte("---\n: invalid: yaml: {{{\n---\nBody\n"))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
}

func TestParse_ScalarFrontmatterIsParseError(t *testing.T) {
	_, err := Parse([]byte("---\njust a string\n---\nBody\n"))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
}

func TestSetField_PreservesOrderAndBody(t *testing.T) {
	input := []byte("---\ntitle: T\nauthor: A\n---\nBody stays.\n")
	d, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := d.SetField("title", "New"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if err := d.SetField("lastFormatHash", "abc"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	out, err := d.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	want := "---\ntitle: New\nauthor: A\nlastFormatHash: abc\n---\nBody stays.\n"
	if string(out) != want {
		t.Errorf("out = %q\nwant %q", out, want)
	}
}

func TestSetField_CreatesBlock(t *testing.T) {
	d, _ := Parse([]byte("Plain body\n"))
	if err := d.SetField("title", "Plain"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	out, _ := d.Bytes()
	if string(out) != "---\ntitle: Plain\n---\nPlain body\n" {
		t.Errorf("out = %q", out)
	}
}

func TestDeleteField(t *testing.T) {
	d, _ := Parse([]byte("---\na: 1\nb: 2\n---\nx"))
	if !d.DeleteField("a") {
		t.Fatal("expected a to be deleted")
	}
	if d.DeleteField("missing") {
		t.Error("deleting a missing key should report false")
	}
	out, _ := d.Bytes()
	if !strings.HasPrefix(string(out), "---\nb: 2\n---\n") {
		t.Errorf("out = %q", out)
	}
}

func TestRoundTrip_EmptyBlock(t *testing.T) {
	input := []byte("---\n---\nBody\n")
	d, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, _ := d.Bytes()
	if string(out) != string(input) {
		t.Errorf("out = %q", out)
	}
}

func TestMissingFields(t *testing.T) {
	d, _ := Parse([]byte("---\ntitle: T\ndescription: \"  \"\n---\n"))
	missing := d.MissingFields("title", "description", "date")
	if len(missing) != 2 || missing[0] != "description" || missing[1] != "date" {
		t.Errorf("missing = %v", missing)
	}
}

func TestFirstHeading(t *testing.T) {
	if got := FirstHeading("some text\n# My Heading\nmore"); got != "My Heading" {
		t.Errorf("heading = %q", got)
	}
}
