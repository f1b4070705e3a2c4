package markup

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const fenceLanguage = "html"

var (
	fenceParser = goldmark.New().Parser()
	inlineFence = regexp.MustCompile("```html\\s*([\\s\\S]*?)\\s*```")
)

// ExtractFenced returns the body of the first closed ```html fenced block
// in a model reply. Replies without such a block are returned as-is. The
// result is always trimmed; a blank block yields "".
func ExtractFenced(reply string) string {
	m := inlineFence.FindStringSubmatch(reply)
	if m == nil {
		return strings.TrimSpace(reply)
	}
	if body, ok := fencedBlock([]byte(reply)); ok {
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(m[1])
}

func fencedBlock(source []byte) (string, bool) {
	doc := fenceParser.Parse(text.NewReader(source))

	var (
		body  bytes.Buffer
		found bool
	)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok || !strings.EqualFold(string(block.Language(source)), fenceLanguage) {
			return ast.WalkContinue, nil
		}
		lines := block.Lines()
		for i := 0; i < lines.Len(); i++ {
			segment := lines.At(i)
			body.Write(segment.Value(source))
		}
		found = true
		return ast.WalkStop, nil
	})
	return body.String(), found
}
