package checks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/dih-project/wishonia/internal/llm"
	"github.com/dih-project/wishonia/internal/todo"
)

// A rewrite may not shrink the body below this fraction of its original length.
const minRewriteRatio = 0.5

type rewriteResponse struct {
	Content string `json:"content"`
}

func (r *rewriteResponse) Validate() error {
	return validation.ValidateStruct(r, validation.Field(&r.Content, validation.Required))
}

type reviewResponse struct {
	Issues []todo.RawIssue `json:"issues"`
}

func (r *reviewResponse) Validate() error {
	var errs []error
	for i, issue := range r.Issues {
		if err := issue.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("issues[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Rewrite builds a check that asks the model to rewrite the body and
// writes the result back. Metadata is never sent and never changed.
func Rewrite(c llm.Completer, name, system string) CheckFunc {
	return func(ctx context.Context, in Input) (Result, error) {
		body := in.Doc.Body
		if strings.TrimSpace(body) == "" {
			return Result{}, nil
		}
		parse := func(raw string) (string, error) {
			out, err := llm.Decode(raw, (*rewriteResponse).Validate)
			if err != nil {
				return "", err
			}
			rewritten := out.Content
			if strings.HasSuffix(body, "\n") && !strings.HasSuffix(rewritten, "\n") {
				rewritten += "\n"
			}
			if float64(len(strings.TrimSpace(rewritten))) < minRewriteRatio*float64(len(strings.TrimSpace(body))) {
				return "", &ValidationError{
					Check:  name,
					Path:   in.Path,
					Reason: fmt.Sprintf("rewrite dropped too much content (%d of %d bytes)", len(rewritten), len(body)),
				}
			}
			return rewritten, nil
		}
		resp, err := c.Complete(ctx, llm.Request{
			System: system + rewriteContract,
			User:   body,
			JSON:   true,
			Accept: func(raw string) error { _, err := parse(raw); return err },
		})
		if err != nil {
			return Result{}, err
		}
		rewritten, err := parse(resp.Content)
		if err != nil {
			return Result{}, err
		}
		if rewritten == body {
			return Result{}, nil
		}
		return Result{Content: replaceBody(in, rewritten)}, nil
	}
}

// Review builds a check that asks the model for a list of issues. The
// file itself is left unchanged.
func Review(c llm.Completer, system string) CheckFunc {
	return func(ctx context.Context, in Input) (Result, error) {
		if strings.TrimSpace(in.Doc.Body) == "" {
			return Result{}, nil
		}
		resp, err := c.Complete(ctx, llm.Request{
			System: system + reviewContract,
			User:   numberLines(in.Doc.Body),
			JSON:   true,
			Accept: func(raw string) error {
				_, err := llm.Decode(raw, (*reviewResponse).Validate)
				return err
			},
		})
		if err != nil {
			return Result{}, err
		}
		out, err := llm.Decode(resp.Content, (*reviewResponse).Validate)
		if err != nil {
			return Result{}, err
		}
		offset := in.LineOffset()
		for i := range out.Issues {
			out.Issues[i].Line += offset
		}
		return Result{Issues: out.Issues}, nil
	}
}

// replaceBody keeps the original frontmatter bytes and swaps the body.
func replaceBody(in Input, body string) []byte {
	prefix := in.Content[:len(in.Content)-len(in.Doc.Body)]
	return append(append([]byte(nil), prefix...), body...)
}

func numberLines(body string) string {
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	var b strings.Builder
	for i, l := range lines {
		fmt.Fprintf(&b, "%d| %s\n", i+1, l)
	}
	return b.String()
}

const rewriteContract = `

Return a JSON object {"content": "<the full revised markdown>"}. Keep every heading, code block, citation, cross reference ({#...}, @...) and Quarto shortcode ({{< ... >}}) exactly as written. Do not summarize or drop sections.`

const reviewContract = `

The user message is the document body with line numbers prefixed as "N| ".
Return a JSON object {"issues": [...]} where each issue has:
  "type": one of "parameter", "math", "claim", "reference", "consistency"
  "line": the line number the issue is on
  "issue": a one sentence description
  "suggestedFix": optional replacement text or instruction
  "confidence": one of "high", "medium", "low"
Return {"issues": []} when nothing needs attention.`

const (
	stylePrompt = `You are a copy editor for a book about funding medical research. Fix grammar, spelling, punctuation and awkward phrasing. Keep the author's voice and meaning. Prefer short sentences and active voice.`

	tonePrompt = `You are an editor raising the register of a persuasive non-fiction chapter. Remove snark, slang and hyperbole while keeping the argument, the numbers and the humor that serves the point.`

	voicePrompt = `You are an editor converting passive or abstract prose into direct instructional voice. Address the reader as "you" where the text tells them what to do, and turn vague recommendations into concrete steps.`

	factCheckPrompt = `You are a fact checker. Find arithmetic errors, numbers that contradict each other, claims that need a citation, and references that look wrong. Only report problems you can point to on a specific line.`

	parameterPrompt = `You audit a Quarto book whose numbers should come from named parameters. Report every hardcoded number, currency amount or percentage in prose that should instead be a parameter or variable shortcode, and every calculation written out by hand. Use type "parameter" for hardcoded values and "math" for calculations.`

	nonprofitPrompt = `You review text published by a nonprofit for compliance. Report statements that could read as partisan political campaigning, lobbying beyond what a charity may do, solicitation without required disclosures, or guarantees of outcomes. Use type "claim" for these.`
)
