package checks

import (
	"github.com/dih-project/wishonia/internal/corpus"
	"github.com/dih-project/wishonia/internal/llm"
	"github.com/dih-project/wishonia/internal/storage"
)

// Deps are the collaborators the built-in checks need.
type Deps struct {
	Completer llm.Completer
	Files     storage.Provider
}

// Builtins returns the built-in checks in their fixed run order.
func Builtins(d Deps) []Check {
	c := d.Completer
	return []Check{
		{Name: "format", Description: "normalize whitespace and required frontmatter", Func: Format},
		{Name: "style", Description: "copy edit grammar and phrasing", UsesLLM: true, Func: Rewrite(c, "style", stylePrompt)},
		{Name: "structure", Description: "heading hierarchy", Func: Structure},
		{Name: "links", Description: "relative link targets exist", Func: Links(d.Files)},
		{Name: "figures", Description: "images exist and have alt text", Func: Figures(d.Files)},
		{Name: "fact-check", Description: "arithmetic, consistency and citations", UsesLLM: true, Func: Review(c, factCheckPrompt)},
		{Name: "parameterization", Description: "hardcoded numbers that should be parameters", UsesLLM: true, Func: Review(c, parameterPrompt)},
		{
			Name:        "tone-elevation",
			Description: "raise the register of chapter prose",
			Sections:    []corpus.Section{corpus.SectionChapter, corpus.SectionOther},
			UsesLLM:     true,
			Func:        Rewrite(c, "tone-elevation", tonePrompt),
		},
		{Name: "instructional-voice", Description: "direct second-person instructions", UsesLLM: true, Func: Rewrite(c, "instructional-voice", voicePrompt)},
		{Name: "nonprofit-compliance", Description: "statements a charity should not publish", UsesLLM: true, Func: Review(c, nonprofitPrompt)},
	}
}

// DefaultRegistry registers the built-in checks.
func DefaultRegistry(d Deps) (*Registry, error) {
	return NewRegistry(Builtins(d)...)
}
