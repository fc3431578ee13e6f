// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/drorzp/justel-pipeline/core"
)

var (
	// paragraphPattern matches paragraph markers: "§ 1er.", "§ 2.", "§ 1/1.", "§ 2bis.".
	paragraphPattern = regexp.MustCompile(`(?i)§\s*(\d+(?:er|e)?(?:/\d+)?(?:bis|ter|quater|quinquies|sexies|septies|octies|novies|decies)?\.)`)

	// footnotePattern matches "[N text]N" annotations. The closing number is
	// compared to the opening one by hand.
	footnotePattern = regexp.MustCompile(`\[(\d+)\s*([^\]]*?)\](\d+)`)

	provisionPattern     = regexp.MustCompile(`^(\d+°(?:/\d+)?|[a-z]\))\s+(.*)$`)
	formerArticlePattern = regexp.MustCompile(`\(ancien art\. ([^)]+)\)`)

	// bilingualHeaderPattern marks the header rows of Dutch/French court tables.
	bilingualHeaderPattern = regexp.MustCompile(`(?i)(Hoven|Cours|Rechtbanken|Tribunaux)`)
)

// minTableSeparators is the number of pipes a line needs to be a table row.
const minTableSeparators = 3

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

// RenderArticle renders an article as semantic markup:
//
//	<article class="legal-article" id="art-N">
//	  <header class="article-header"><h2 class="article-number">Article N</h2></header>
//	  <div class="article-content">...</div>
//	  <section class="footnotes">...</section>
//	</article>
//
// Paragraph markers open sections, numbered provisions become ordered
// lists, runs of pipe-delimited lines become tables, and "[N text]N"
// annotations and the node's footnote references become footnote
// references. The footnotes section is only written when the node has
// footnotes. The output depends only on the input.
func RenderArticle(a core.ArticleNode) string {
	text := articleSourceText(a)
	r := newRenderer(a, text)

	var b strings.Builder
	fmt.Fprintf(&b, "<article class=\"legal-article\" id=\"art-%s\">\n", htmlEscaper.Replace(strings.ReplaceAll(a.Number, ".", "-")))
	b.WriteString("  <header class=\"article-header\">\n")
	fmt.Fprintf(&b, "    <h2 class=\"article-number\">Article %s</h2>\n", htmlEscaper.Replace(a.Number))
	if m := formerArticlePattern.FindStringSubmatch(text); m != nil {
		b.WriteString("    <div class=\"article-metadata\">\n")
		fmt.Fprintf(&b, "      <span class=\"former-article\">(ancien art. %s)</span>\n", htmlEscaper.Replace(m[1]))
		b.WriteString("    </div>\n")
	}
	b.WriteString("  </header>\n")
	b.WriteString("  <div class=\"article-content\">\n")

	sections := splitParagraphs(text)
	if len(sections) == 0 {
		b.WriteString("    <div class=\"article-text\">\n")
		r.body(&b, text, "      ")
		b.WriteString("    </div>\n")
	} else {
		if lead := strings.TrimSpace(text[:sections[0].start]); lead != "" {
			b.WriteString("    <div class=\"article-text\">\n")
			r.body(&b, lead, "      ")
			b.WriteString("    </div>\n")
		}
		for _, s := range sections {
			b.WriteString("    <section class=\"paragraph\">\n")
			fmt.Fprintf(&b, "      <h3 class=\"paragraph-marker\">§ %s</h3>\n", htmlEscaper.Replace(s.marker))
			b.WriteString("      <div class=\"paragraph-content\">\n")
			r.body(&b, s.body, "        ")
			b.WriteString("      </div>\n")
			b.WriteString("    </section>\n")
		}
	}

	b.WriteString("  </div>\n")
	renderFootnotes(&b, a.Footnotes)
	b.WriteString("</article>")
	return b.String()
}

func articleSourceText(a core.ArticleNode) string {
	if strings.TrimSpace(a.MainTextRaw) != "" {
		return strings.TrimSpace(a.MainTextRaw)
	}
	return PlainText(a.MainText)
}

type paragraph struct {
	start  int
	marker string
	body   string
}

// splitParagraphs cuts text at paragraph markers. Markers cited inside an
// article reference ("art. 3, § 2.") do not open a paragraph.
func splitParagraphs(text string) []paragraph {
	var starts [][]int
	for _, m := range paragraphPattern.FindAllStringSubmatchIndex(text, -1) {
		if isCitedMarker(text[max(0, m[0]-20):m[0]]) {
			continue
		}
		starts = append(starts, m)
	}

	out := make([]paragraph, 0, len(starts))
	for i, m := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		out = append(out, paragraph{
			start:  m[0],
			marker: text[m[2]:m[3]],
			body:   strings.TrimSpace(text[m[1]:end]),
		})
	}
	return out
}

func isCitedMarker(before string) bool {
	trimmed := strings.TrimRight(before, " ")
	if !strings.HasSuffix(trimmed, ",") {
		return false
	}
	lower := strings.ToLower(before)
	return strings.Contains(lower, "article") || strings.Contains(lower, "art.")
}

// footnoteRef is a footnote reference that can be placed in the text.
type footnoteRef struct {
	number string
	text   string
}

// renderer carries the per-article state of one render: each footnote
// reference is wrapped at its first occurrence only.
type renderer struct {
	refs   []footnoteRef
	placed map[string]bool
}

// newRenderer keeps the references that point at an existing footnote and
// are not already written as an annotation in text.
func newRenderer(a core.ArticleNode, text string) *renderer {
	known := make(map[string]bool, len(a.Footnotes))
	for _, f := range a.Footnotes {
		known[strings.TrimSpace(f.Number)] = true
	}
	annotated := make(map[string]bool)
	for _, m := range footnotePattern.FindAllStringSubmatch(text, -1) {
		if m[1] == m[3] {
			annotated[m[1]] = true
		}
	}

	r := &renderer{placed: make(map[string]bool)}
	for _, ref := range a.FootnoteReferences {
		number := strings.TrimSpace(ref.Number)
		refText := strings.TrimSpace(ref.ReferencedText)
		if number == "" || refText == "" || !known[number] || annotated[number] {
			continue
		}
		r.refs = append(r.refs, footnoteRef{number: number, text: refText})
	}
	return r
}

// body writes text as paragraphs, grouping consecutive provision lines into
// one ordered list and consecutive pipe-delimited lines into one table.
func (r *renderer) body(b *strings.Builder, text, indent string) {
	inList := false
	var table []string
	closeList := func() {
		if inList {
			b.WriteString(indent + "</ol>\n")
			inList = false
		}
	}
	flushTable := func() {
		if len(table) > 0 {
			r.table(b, table, indent)
			table = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flushTable()
			continue
		}
		if strings.Count(line, "|") >= minTableSeparators {
			closeList()
			table = append(table, line)
			continue
		}
		flushTable()
		if m := provisionPattern.FindStringSubmatch(line); m != nil {
			if !inList {
				b.WriteString(indent + "<ol class=\"numbered-provisions\">\n")
				inList = true
			}
			fmt.Fprintf(b, "%s  <li class=\"provision\" data-number=\"%s\">%s</li>\n",
				indent, htmlEscaper.Replace(m[1]), r.inline(m[2]))
			continue
		}
		closeList()
		fmt.Fprintf(b, "%s<p>%s</p>\n", indent, r.inline(line))
	}
	flushTable()
	closeList()
}

// table writes pipe-delimited lines as a table. Bilingual court tables get
// their marked rows as a header; other tables use the first row.
func (r *renderer) table(b *strings.Builder, lines []string, indent string) {
	rows := splitTableRows(lines)
	if len(rows) == 0 {
		return
	}

	var header, data [][]string
	class := "legal-table"
	bilingual := isBilingualTable(rows)
	if bilingual {
		class += " bilingual-table"
		for i, row := range rows {
			if i < 2 && rowMatches(row, bilingualHeaderPattern) {
				header = append(header, row)
			} else {
				data = append(data, row)
			}
		}
	} else {
		header, data = rows[:1], rows[1:]
	}

	b.WriteString(indent + "<div class=\"table-container\">\n")
	fmt.Fprintf(b, "%s  <table class=\"%s\">\n", indent, class)
	if len(header) > 0 {
		b.WriteString(indent + "    <thead>\n")
		for i, row := range header {
			rowClass := ""
			if bilingual {
				rowClass = " class=\"sub-header\""
				if i == 0 {
					rowClass = " class=\"main-header\""
				}
			}
			fmt.Fprintf(b, "%s      <tr%s>\n", indent, rowClass)
			for _, cell := range row {
				fmt.Fprintf(b, "%s        <th>%s</th>\n", indent, r.inline(cell))
			}
			b.WriteString(indent + "      </tr>\n")
		}
		b.WriteString(indent + "    </thead>\n")
	}
	if len(data) > 0 {
		b.WriteString(indent + "    <tbody>\n")
		for _, row := range data {
			b.WriteString(indent + "      <tr>\n")
			for _, cell := range row {
				fmt.Fprintf(b, "%s        <td>%s</td>\n", indent, r.inline(cell))
			}
			b.WriteString(indent + "      </tr>\n")
		}
		b.WriteString(indent + "    </tbody>\n")
	}
	b.WriteString(indent + "  </table>\n")
	b.WriteString(indent + "</div>\n")
}

// splitTableRows splits lines on pipes, dropping empty cells at either end
// and rows left empty.
func splitTableRows(lines []string) [][]string {
	var rows [][]string
	for _, line := range lines {
		cells := strings.Split(line, "|")
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		for len(cells) > 0 && cells[0] == "" {
			cells = cells[1:]
		}
		for len(cells) > 0 && cells[len(cells)-1] == "" {
			cells = cells[:len(cells)-1]
		}
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	}
	return rows
}

func isBilingualTable(rows [][]string) bool {
	for _, row := range rows[:min(3, len(rows))] {
		if rowMatches(row, bilingualHeaderPattern) {
			return true
		}
	}
	return false
}

func rowMatches(row []string, re *regexp.Regexp) bool {
	for _, cell := range row {
		if re.MatchString(cell) {
			return true
		}
	}
	return false
}

// inline escapes text and turns well-formed annotations and footnote
// references into footnote reference spans.
func (r *renderer) inline(text string) string {
	var b strings.Builder
	last := 0
	for _, m := range footnotePattern.FindAllStringSubmatchIndex(text, -1) {
		opening, closing := text[m[2]:m[3]], text[m[6]:m[7]]
		if opening != closing {
			continue
		}
		b.WriteString(r.references(text[last:m[0]]))
		writeFootnoteRef(&b, opening, strings.TrimSpace(text[m[4]:m[5]]))
		last = m[1]
	}
	b.WriteString(r.references(text[last:]))
	return b.String()
}

// references escapes text, wrapping the first occurrence of every unplaced
// footnote reference. Overlapping matches keep the earliest.
func (r *renderer) references(text string) string {
	type match struct {
		start, end int
		number     string
	}
	var found []match
	for _, ref := range r.refs {
		if r.placed[ref.number] {
			continue
		}
		if i := strings.Index(text, ref.text); i >= 0 {
			found = append(found, match{start: i, end: i + len(ref.text), number: ref.number})
		}
	}
	if len(found) == 0 {
		return htmlEscaper.Replace(text)
	}
	slices.SortFunc(found, func(a, b match) int {
		if a.start != b.start {
			return a.start - b.start
		}
		return b.end - a.end
	})

	var b strings.Builder
	last := 0
	for _, m := range found {
		if m.start < last {
			continue
		}
		b.WriteString(htmlEscaper.Replace(text[last:m.start]))
		writeFootnoteRef(&b, m.number, text[m.start:m.end])
		r.placed[m.number] = true
		last = m.end
	}
	b.WriteString(htmlEscaper.Replace(text[last:]))
	return b.String()
}

func writeFootnoteRef(b *strings.Builder, number, text string) {
	fmt.Fprintf(b, "<span class=\"footnote-ref\" data-footnote-id=\"%s\">%s</span>",
		htmlEscaper.Replace(number), htmlEscaper.Replace(text))
}

// renderFootnotes writes the footnotes section, one entry per footnote
// keyed by its number.
func renderFootnotes(b *strings.Builder, footnotes []core.Footnote) {
	if len(footnotes) == 0 {
		return
	}
	b.WriteString("  <section class=\"footnotes\">\n")
	for _, f := range footnotes {
		number := htmlEscaper.Replace(strings.TrimSpace(f.Number))
		fmt.Fprintf(b, "    <p class=\"footnote\" data-footnote-id=\"%s\">", number)
		fmt.Fprintf(b, "<span class=\"footnote-number\">(%s)</span> %s", number, htmlEscaper.Replace(strings.TrimSpace(f.Content)))
		if f.URL != "" {
			fmt.Fprintf(b, " <a class=\"footnote-link\" href=\"%s\">source</a>", htmlEscaper.Replace(f.URL))
		}
		b.WriteString("</p>\n")
	}
	b.WriteString("  </section>\n")
}
