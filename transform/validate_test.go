package transform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func articleHTML(number, body string) string {
	return `<article class="legal-article" id="art-` + strings.ReplaceAll(number, ".", "-") + `">` +
		`<header class="article-header"><h2 class="article-number">Article ` + number + `</h2></header>` +
		`<div class="article-content">` + body + `</div></article>`
}

func TestValidate(t *testing.T) {
	input := `§ 1er. Les mots [1 ou par courrier]1 sont insérés. <span class="footnote-ref" data-footnote-id="2">abrogé</span>`
	body := `<section class="paragraph"><h3 class="paragraph-marker">§ 1er.</h3><div class="paragraph-content">` +
		`Les mots <span class="footnote-ref" data-footnote-id="1">ou par courrier</span> sont insérés. ` +
		`<span class="footnote-ref" data-footnote-id="2">abrogé</span></div></section>`

	tests := []struct {
		name    string
		output  string
		article string
		want    string
	}{
		{"valid", articleHTML("12", body), "12", ""},
		{"surrounding whitespace", "\n  " + articleHTML("12", body) + "\n", "12", ""},
		{"wrong root class", `<div class="article">Article 12 ` + body + `</div>`, "12", "lacks class"},
		{"two roots", articleHTML("12", body) + "<p>extra</p>", "12", "more than one root"},
		{"stray text", "Voici le résultat: " + articleHTML("12", body), "12", "text outside"},
		{"empty", "", "12", "no root element"},
		{"cut off", strings.TrimSuffix(articleHTML("12", body), "</div></article>"), "12", "is not closed"},
		{"upper case end tag", strings.TrimSuffix(articleHTML("12", body), "</article>") + "</ARTICLE>", "12", ""},
		{"missing article number", articleHTML("13", body), "12", "article number"},
		{"missing footnote", articleHTML("12", `<span data-footnote-id="1">x</span>`), "12", "missing footnote ids: 2"},
		{"extra footnote", articleHTML("12", body+`<span data-footnote-id="9">y</span>`), "12", "unexpected footnote ids: 9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := Validate(input, tt.output, tt.article)
			if tt.want == "" {
				assert.Empty(t, violations)
				return
			}
			assert.Contains(t, strings.Join(violations, "; "), tt.want)
		})
	}
}

func TestValidate_RoundTripOfValidArticle(t *testing.T) {
	markup := articleHTML("5.1", `<span class="footnote-ref" data-footnote-id="3">x</span>`)
	assert.Empty(t, Validate(markup, markup, "5.1"))
}

func TestFootnoteIDs(t *testing.T) {
	markup := `[2 texte]2 <span data-footnote-id="1">a</span><span data-footnote-id="2">b</span>`
	assert.Equal(t, []string{"1", "2"}, FootnoteIDs(markup))
	assert.Empty(t, FootnoteIDs("<p>rien</p>"))
}

func TestStripCodeFences(t *testing.T) {
	tests := map[string]string{
		"```html\n<article></article>\n```": "<article></article>",
		"```\n<article></article>```":       "<article></article>",
		"  <article></article>  ":           "<article></article>",
		"<p>```</p>":                        "<p>```</p>",
	}
	for in, want := range tests {
		assert.Equal(t, want, stripCodeFences(in), "input %q", in)
	}
}
