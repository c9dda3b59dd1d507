package checks

import (
	"bytes"
	"context"
	"path"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dih-project/wishonia/internal/document"
	"github.com/dih-project/wishonia/internal/todo"
)

const maxDescription = 160

// Format is the deterministic formatting check. It normalizes whitespace
// outside code fences and fills in a missing title and description.
func Format(_ context.Context, in Input) (Result, error) {
	doc := in.Doc
	body := normalizeBody(doc.Body)

	var (
		issues      []todo.RawIssue
		metaChanged bool
	)
	for _, field := range doc.MissingFields("title", "description") {
		var value string
		switch field {
		case "title":
			value = document.FirstHeading(body)
			if value == "" {
				value = titleFromPath(in.Path)
			}
		case "description":
			value = firstSentence(body)
		}
		if value == "" {
			issues = append(issues, todo.RawIssue{
				Type:       todo.TypeConsistency,
				Line:       1,
				Issue:      "frontmatter has no " + field + " and none could be derived",
				Confidence: todo.ConfidenceLow,
			})
			continue
		}
		if err := doc.SetField(field, value); err != nil {
			return Result{}, err
		}
		metaChanged = true
	}

	var out []byte
	if metaChanged {
		b, err := doc.WithBody(body).Bytes()
		if err != nil {
			return Result{}, err
		}
		out = b
	} else {
		out = replaceBody(in, body)
	}
	if bytes.Equal(out, in.Content) {
		return Result{Issues: issues}, nil
	}
	return Result{Content: out, Issues: issues}, nil
}

// normalizeBody converts line endings to LF, trims trailing whitespace,
// collapses runs of blank lines and ends the body with one newline. Fenced
// code is left alone.
func normalizeBody(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	lines := strings.Split(body, "\n")

	out := make([]string, 0, len(lines))
	fence := ""
	blank := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if fence != "" {
			out = append(out, line)
			if strings.HasPrefix(trimmed, fence) && strings.Trim(trimmed, fence[:1]) == "" {
				fence = ""
			}
			continue
		}
		if f := fenceMarker(trimmed); f != "" {
			fence = f
			blank = 0
			out = append(out, strings.TrimRight(line, " \t"))
			continue
		}
		if trimmed == "" {
			blank++
			if blank > 1 {
				continue
			}
			out = append(out, "")
			continue
		}
		blank = 0
		out = append(out, strings.TrimRight(line, " \t"))
	}

	result := strings.TrimRight(strings.Join(out, "\n"), "\n")
	if strings.TrimSpace(result) == "" {
		return ""
	}
	return result + "\n"
}

// fenceMarker returns the opening fence of a code block line, or "".
func fenceMarker(trimmed string) string {
	for _, ch := range []string{"`", "~"} {
		n := 0
		for n < len(trimmed) && trimmed[n] == ch[0] {
			n++
		}
		if n >= 3 {
			return trimmed[:n]
		}
	}
	return ""
}

func titleFromPath(p string) string {
	base := strings.TrimSuffix(path.Base(p), path.Ext(p))
	words := strings.FieldsFunc(base, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// firstSentence returns the first sentence of the first prose paragraph,
// cut to maxDescription characters at a word boundary.
func firstSentence(body string) string {
	fence := ""
	var para []string
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if fence != "" {
			if strings.HasPrefix(trimmed, fence) {
				fence = ""
			}
			continue
		}
		if f := fenceMarker(trimmed); f != "" {
			fence = f
			continue
		}
		if trimmed == "" {
			if len(para) > 0 {
				break
			}
			continue
		}
		if !isProse(trimmed) {
			if len(para) > 0 {
				break
			}
			continue
		}
		para = append(para, trimmed)
	}
	text := stripInlineMarkup(strings.Join(para, " "))
	if text == "" {
		return ""
	}
	if i := strings.Index(text, ". "); i >= 0 {
		text = text[:i+1]
	}
	if utf8.RuneCountInString(text) <= maxDescription {
		return text
	}
	runes := []rune(text)[:maxDescription]
	cut := string(runes)
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:") + "..."
}

func isProse(line string) bool {
	for _, p := range []string{"#", "!", ":::", "<", "|", "{", ">", "- ", "* ", "+ ", "---"} {
		if strings.HasPrefix(line, p) {
			return false
		}
	}
	return true
}

var linkTargetRe = regexp.MustCompile(`\]\([^)]*\)`)

var inlineMarkup = strings.NewReplacer("**", "", "__", "", "`", "", "*", "", "[", "", "]", "")

func stripInlineMarkup(s string) string {
	s = linkTargetRe.ReplaceAllString(s, "]")
	return strings.TrimSpace(inlineMarkup.Replace(s))
}
