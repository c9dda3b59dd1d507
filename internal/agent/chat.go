// Package agent answers questions about the book from retrieved passages.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dih-project/wishonia/internal/llm"
	"github.com/dih-project/wishonia/internal/search"
)

// ErrNoContext is returned when retrieval finds nothing to answer from.
var ErrNoContext = errors.New("agent: no relevant passages found")

const defaultTopK = 6

const systemPrompt = `You answer questions about a book using only the numbered passages provided.
Cite every claim with the passage number in square brackets, e.g. [2].
If the passages do not contain the answer, say so plainly instead of guessing.`

// Answer is a model answer plus the passages it was given.
type Answer struct {
	Text    string          `json:"text"`
	Sources []search.Result `json:"sources"`
}

// Chat is a retrieval-augmented question answerer.
type Chat struct {
	Searcher  search.Searcher
	Completer llm.Completer
	TopK      int
}

// Ask retrieves passages for question and asks the model to answer from them.
func (c *Chat) Ask(ctx context.Context, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, errors.New("agent: empty question")
	}
	k := c.TopK
	if k <= 0 {
		k = defaultTopK
	}
	hits, err := c.Searcher.Search(ctx, question, k)
	if err != nil {
		return Answer{}, fmt.Errorf("agent: retrieve: %w", err)
	}
	if len(hits) == 0 {
		// Retry with the longest words only; LIKE and FTS both need every term.
		if kw := keywords(question); kw != "" && kw != question {
			hits, err = c.Searcher.Search(ctx, kw, k)
			if err != nil {
				return Answer{}, fmt.Errorf("agent: retrieve: %w", err)
			}
		}
	}
	if len(hits) == 0 {
		return Answer{}, ErrNoContext
	}

	resp, err := c.Completer.Complete(ctx, llm.Request{
		System: systemPrompt,
		User:   buildPrompt(question, hits),
	})
	if err != nil {
		return Answer{}, err
	}
	return Answer{Text: strings.TrimSpace(resp.Content), Sources: hits}, nil
}

func buildPrompt(question string, hits []search.Result) string {
	var b strings.Builder
	for i, h := range hits {
		fmt.Fprintf(&b, "[%d] %s (line %d)", i+1, h.Path, h.Line)
		if h.Heading != "" {
			fmt.Fprintf(&b, " - %s", h.Heading)
		}
		b.WriteString("\n")
		body := h.Body
		if body == "" {
			body = h.Snippet
		}
		b.WriteString(body)
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

// keywords keeps the single longest word of the question, stripped of
// punctuation, as a fallback query.
func keywords(q string) string {
	best := ""
	for _, w := range strings.Fields(q) {
		w = strings.Trim(w, ".,;:!?\"'()[]")
		if len(w) > len(best) {
			best = w
		}
	}
	return best
}
