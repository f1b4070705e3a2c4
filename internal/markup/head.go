package markup

import "strings"

const (
	headClose = "</head>"

	tailwindMarker = "cdn.tailwindcss.com"
	tailwindScript = `<script src="https://cdn.tailwindcss.com"></script>`

	fontMarker = "fonts.googleapis.com/css2?family=Inter"
	fontLinks  = `
    <link rel="preconnect" href="https://fonts.googleapis.com">
    <link rel="preconnect" href="https://fonts.gstatic.com" crossorigin>
    <link href="https://fonts.googleapis.com/css2?family=Inter:wght@400;500;600;700&display=swap" rel="stylesheet">
`
)

// EnsureHeadAssets makes sure the document pulls in the Tailwind CDN script
// and the Inter webfont. Each asset is inserted before the first </head>
// only when its marker is missing, so repeated calls are no-ops. Documents
// without a </head> are returned unchanged.
func EnsureHeadAssets(doc string) string {
	if !strings.Contains(doc, tailwindMarker) {
		doc = strings.Replace(doc, headClose, tailwindScript+headClose, 1)
	}
	if !strings.Contains(doc, fontMarker) {
		doc = strings.Replace(doc, headClose, fontLinks+headClose, 1)
	}
	return doc
}
