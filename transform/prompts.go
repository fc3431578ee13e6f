package transform

import (
	"fmt"
	"strings"
)

const repairSystemPrompt = `You restructure Belgian legal articles into semantic HTML.

Return exactly one element and nothing else:

<article class="legal-article" id="art-{number with dots replaced by dashes}">
  <header class="article-header"><h2 class="article-number">Article {number}</h2></header>
  <div class="article-content">...</div>
</article>

Rules:
- Keep every word of the source text. Do not summarize, translate or reorder.
- Each paragraph marker (§ 1er., § 2., ...) opens
  <section class="paragraph"><h3 class="paragraph-marker">§ N.</h3><div class="paragraph-content">...</div></section>.
- Numbered provisions (1°, 2°, a), b)) become
  <ol class="numbered-provisions"><li class="provision" data-number="1°">...</li></ol>.
- Every modification annotation [N text]N becomes
  <span class="footnote-ref" data-footnote-id="N">text</span>.
- Keep every existing data-footnote-id exactly once. Invent none.
- No markdown, no code fences, no commentary.`

func repairUserPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document: %s\nArticle: %s\n\n", req.DocumentNumber, req.ArticleNumber)
	b.WriteString("Current markup:\n")
	b.WriteString(req.CurrentMarkup)
	if req.RawText != "" {
		b.WriteString("\n\nPlain text:\n")
		b.WriteString(req.RawText)
	}
	return b.String()
}

const titleSystemPrompt = `You clean the titles of Belgian laws for display.

For each input line, output one line with the cleaned title:
- keep the legal nature and subject of the text (e.g. "Loi relative aux ...")
- remove publication data, numbers, page references and dates
- at most 150 characters
- same order, same number of lines, no numbering, no commentary`

func titleUserPrompt(titles []string) string {
	return strings.Join(titles, "\n")
}
