// Package llm holds what the text generation providers share: prompt
// construction, sampling parameters and the resilient decorator.
package llm

import (
	"fmt"
	"strings"
)

// Params are the sampling parameters sent with every request. Providers
// without a top-k knob ignore TopK.
type Params struct {
	Temperature float64
	TopP        float64
	TopK        int
}

func DefaultParams() Params {
	return Params{Temperature: 0.7, TopP: 0.95, TopK: 64}
}

const (
	DefaultGeneratePreamble = `You are an expert web developer specializing in Tailwind CSS. Create a single, complete HTML file based on the following prompt.
The HTML MUST include the Tailwind CSS script tag ('<script src="https://cdn.tailwindcss.com"></script>') and the Inter font from Google Fonts in the <head>.`

	DefaultRefinePreamble = `You are an expert web developer specializing in Tailwind CSS. Refine the following HTML code based on the user's request.
The response should be the complete, updated HTML file.`

	replyContract = "The response should be ONLY the raw HTML code, inside a single ```html code block. Do not include any other text, explanations, or markdown."
)

// Prompts builds provider-neutral prompt text. Empty preambles fall back to
// the defaults.
type Prompts struct {
	GeneratePreamble string
	RefinePreamble   string
}

func (p Prompts) Generate(instruction string) string {
	return fmt.Sprintf("%s\n%s\n\nPrompt: %q", orDefault(p.GeneratePreamble, DefaultGeneratePreamble), replyContract, instruction)
}

func (p Prompts) Refine(instruction, currentMarkup string) string {
	var b strings.Builder
	b.WriteString(orDefault(p.RefinePreamble, DefaultRefinePreamble))
	b.WriteString("\n")
	b.WriteString(replyContract)
	fmt.Fprintf(&b, "\n\nUser Request: %q\n\nCurrent HTML Code:\n```html\n%s\n```\n", instruction, currentMarkup)
	return b.String()
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
