package ingestion

import (
	"strings"

	"github.com/k3a/html2text"
)

// PlainText projects markup to plain text for prompts and embeddings.
// Whitespace runs inside a line collapse to one space; line breaks survive.
func PlainText(markup string) string {
	text := html2text.HTML2TextWithOptions(markup, html2text.WithUnixLineBreaks())
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.Join(strings.Fields(l), " ")
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
