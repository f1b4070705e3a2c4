// Package markup re-indents and patches HTML documents produced by the
// generator or imported by the user. It is a cosmetic formatter, not a parser.
package markup

import (
	"regexp"
	"strings"
	"unicode"
)

const indentUnit = "  "

var (
	tagBoundary = regexp.MustCompile(`>[\s\p{Zs}\x{2028}\x{2029}\x{feff}]*<`)
	// pairedOneLine does not require the closing tag to match the opening
	// one, so "<div>text</span>" counts as paired.
	pairedOneLine = regexp.MustCompile(`<\w+[^>]*>[^\n\r\x{2028}\x{2029}]*</\w+>`)
)

var voidPrefixes = []string{"<meta", "<link", "<br", "<hr", "<img", "<input"}

// Format splits markup at tag boundaries and re-indents it two spaces per
// open element. It is total and idempotent: Format(Format(s)) == Format(s).
func Format(raw string) string {
	if raw == "" {
		return ""
	}

	lines := strings.Split(tagBoundary.ReplaceAllString(raw, ">\n<"), "\n")
	out := make([]string, 0, len(lines))
	level := 0
	for _, line := range lines {
		trimmed := strings.TrimFunc(line, isMarkupSpace)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "</") {
			level = max(0, level-1)
		}
		out = append(out, strings.Repeat(indentUnit, level)+trimmed)

		if opensBlock(trimmed) {
			level++
		}
	}
	return strings.Join(out, "\n")
}

// DecodeText turns imported bytes into document text, dropping a leading
// UTF-8 byte order mark the way browser text decoding does.
func DecodeText(b []byte) string {
	return strings.TrimPrefix(string(b), "\ufeff")
}

// isMarkupSpace matches the whitespace set browsers use for trim(), which
// includes the byte order mark but not NEL.
func isMarkupSpace(r rune) bool {
	return r == '\ufeff' || (r != '\u0085' && unicode.IsSpace(r))
}

func opensBlock(line string) bool {
	if !strings.HasPrefix(line, "<") || strings.HasPrefix(line, "</") {
		return false
	}
	if isSelfClosing(line) {
		return false
	}
	return !pairedOneLine.MatchString(line)
}

func isSelfClosing(line string) bool {
	if strings.HasSuffix(line, "/>") {
		return true
	}
	for _, prefix := range voidPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return len(line) >= len("<!doctype") && strings.EqualFold(line[:len("<!doctype")], "<!doctype")
}
