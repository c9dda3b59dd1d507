package checks

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dih-project/wishonia/internal/storage"
	"github.com/dih-project/wishonia/internal/todo"
)

// mdSource is a parsed body plus what is needed to report file line numbers.
type mdSource struct {
	src    []byte
	root   ast.Node
	offset int
}

func parseBody(in Input) mdSource {
	src := []byte(in.Doc.Body)
	root := goldmark.New().Parser().Parse(text.NewReader(src))
	return mdSource{src: src, root: root, offset: in.LineOffset()}
}

// line returns the 1-based file line of n.
func (m mdSource) line(n ast.Node) int {
	off := -1
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := c.(*ast.Text); entering && ok {
			off = t.Segment.Start
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	for p := n; off < 0 && p != nil; p = p.Parent() {
		if p.Type() == ast.TypeBlock && p.Lines().Len() > 0 {
			off = p.Lines().At(0).Start
		}
	}
	if off < 0 {
		return m.offset + 1
	}
	return m.offset + bytes.Count(m.src[:off], []byte("\n")) + 1
}

// inlineText concatenates the text under n.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Value(src))
			if t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		default:
			buf.WriteString(inlineText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}

// Structure reports heading problems: more than one H1, skipped levels and
// empty headings.
func Structure(_ context.Context, in Input) (Result, error) {
	md := parseBody(in)
	var (
		issues []todo.RawIssue
		h1     int
		prev   int
	)
	_ = ast.Walk(md.root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		h, ok := n.(*ast.Heading)
		if !entering || !ok {
			return ast.WalkContinue, nil
		}
		line := md.line(h)
		if h.Level == 1 {
			h1++
			if h1 > 1 {
				issues = append(issues, todo.RawIssue{
					Type:         todo.TypeConsistency,
					Line:         line,
					Issue:        "more than one top-level (H1) heading",
					SuggestedFix: "Demote this heading to H2",
					Confidence:   todo.ConfidenceMedium,
				})
			}
		}
		if prev > 0 && h.Level > prev+1 {
			issues = append(issues, todo.RawIssue{
				Type:         todo.TypeConsistency,
				Line:         line,
				Issue:        fmt.Sprintf("heading level jumps from H%d to H%d", prev, h.Level),
				SuggestedFix: fmt.Sprintf("Use H%d", prev+1),
				Confidence:   todo.ConfidenceLow,
			})
		}
		if inlineText(h, md.src) == "" {
			issues = append(issues, todo.RawIssue{
				Type:       todo.TypeConsistency,
				Line:       line,
				Issue:      "empty heading",
				Confidence: todo.ConfidenceLow,
			})
		}
		prev = h.Level
		return ast.WalkSkipChildren, nil
	})
	return Result{Issues: issues}, nil
}

// Links reports relative link targets that do not exist under the project root.
func Links(files storage.Provider) CheckFunc {
	return func(_ context.Context, in Input) (Result, error) {
		md := parseBody(in)
		var issues []todo.RawIssue
		_ = ast.Walk(md.root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
			l, ok := n.(*ast.Link)
			if !entering || !ok {
				return ast.WalkContinue, nil
			}
			dest := strings.TrimSpace(string(l.Destination))
			if dest == "" {
				issues = append(issues, todo.RawIssue{
					Type:       todo.TypeReference,
					Line:       md.line(l),
					Issue:      fmt.Sprintf("link %q has an empty target", inlineText(l, md.src)),
					Confidence: todo.ConfidenceMedium,
				})
				return ast.WalkContinue, nil
			}
			if target, local := resolveLocal(in.Path, dest); local && !existsAny(files, target) {
				issues = append(issues, todo.RawIssue{
					Type:       todo.TypeReference,
					Line:       md.line(l),
					Issue:      "broken link to " + dest,
					Confidence: todo.ConfidenceHigh,
				})
			}
			return ast.WalkContinue, nil
		})
		return Result{Issues: issues}, nil
	}
}

// Figures reports images without alt text and local images that do not exist.
func Figures(files storage.Provider) CheckFunc {
	return func(_ context.Context, in Input) (Result, error) {
		md := parseBody(in)
		var issues []todo.RawIssue
		_ = ast.Walk(md.root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
			img, ok := n.(*ast.Image)
			if !entering || !ok {
				return ast.WalkContinue, nil
			}
			dest := strings.TrimSpace(string(img.Destination))
			line := md.line(img)
			if inlineText(img, md.src) == "" {
				issues = append(issues, todo.RawIssue{
					Type:         todo.TypeConsistency,
					Line:         line,
					Issue:        "image " + dest + " has no alt text",
					SuggestedFix: "Add alt text describing the figure",
					Confidence:   todo.ConfidenceMedium,
				})
			}
			if target, local := resolveLocal(in.Path, dest); local && !files.Exists(target) {
				issues = append(issues, todo.RawIssue{
					Type:       todo.TypeReference,
					Line:       line,
					Issue:      "missing image " + dest,
					Confidence: todo.ConfidenceHigh,
				})
			}
			return ast.WalkSkipChildren, nil
		})
		return Result{Issues: issues}, nil
	}
}

// resolveLocal maps a link destination to a root-relative path. local is
// false for external URLs, in-page anchors and Quarto cross references.
func resolveLocal(from, dest string) (target string, local bool) {
	if dest == "" || strings.HasPrefix(dest, "#") || strings.HasPrefix(dest, "@") {
		return "", false
	}
	if u, err := url.Parse(dest); err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}
	if i := strings.IndexAny(dest, "#?"); i >= 0 {
		dest = dest[:i]
	}
	if dest == "" {
		return "", false
	}
	if unescaped, err := url.PathUnescape(dest); err == nil {
		dest = unescaped
	}
	if strings.HasPrefix(dest, "/") {
		return path.Clean(strings.TrimPrefix(dest, "/")), true
	}
	return path.Join(path.Dir(from), dest), true
}

// existsAny treats a link to page.html as satisfied by page.qmd or page.md,
// since Quarto renders one into the other.
func existsAny(files storage.Provider, target string) bool {
	if files.Exists(target) {
		return true
	}
	if strings.HasSuffix(target, ".html") {
		stem := strings.TrimSuffix(target, ".html")
		for _, ext := range storage.ContentExtensions {
			if files.Exists(stem + ext) {
				return true
			}
		}
	}
	return false
}
