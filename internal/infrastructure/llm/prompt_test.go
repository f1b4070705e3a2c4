package llm

import (
	"strings"
	"testing"
)

func TestGeneratePromptCarriesContract(t *testing.T) {
	prompt := Prompts{}.Generate(`a "red" button`)

	if !strings.HasPrefix(prompt, DefaultGeneratePreamble) {
		t.Fatalf("expected default preamble, got %q", prompt)
	}
	if !strings.Contains(prompt, "single ```html code block") {
		t.Fatalf("expected fenced reply contract: %q", prompt)
	}
	if !strings.HasSuffix(prompt, `Prompt: "a \"red\" button"`) {
		t.Fatalf("expected quoted instruction at the end: %q", prompt)
	}
}

func TestRefinePromptEmbedsCurrentMarkup(t *testing.T) {
	prompt := Prompts{RefinePreamble: "  Custom refine.  "}.Refine("make it blue", "<p>hi</p>")

	if !strings.HasPrefix(prompt, "Custom refine.\n") {
		t.Fatalf("expected trimmed custom preamble, got %q", prompt)
	}
	if !strings.Contains(prompt, "```html\n<p>hi</p>\n```") {
		t.Fatalf("expected current markup in a fenced block: %q", prompt)
	}
	if !strings.Contains(prompt, `User Request: "make it blue"`) {
		t.Fatalf("expected request line: %q", prompt)
	}
}
