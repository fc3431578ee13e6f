package transform

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const articleClass = "legal-article"

// Validate checks a backend answer against the structural contract:
//   - the output is a single element carrying class "legal-article"
//   - that element is explicitly closed
//   - the article number appears in the output text
//   - the set of footnote ids equals the set found in the input
//
// It returns one message per violation; an empty slice means valid.
func Validate(input, output, articleNumber string) []string {
	var violations []string

	nodes, err := parseFragment(output)
	if err != nil {
		return []string{fmt.Sprintf("output is not parseable HTML: %v", err)}
	}

	root, rootErr := singleRoot(nodes)
	if rootErr != "" {
		violations = append(violations, rootErr)
	} else {
		if !hasClass(root, articleClass) {
			violations = append(violations, fmt.Sprintf("root element <%s> lacks class %q", root.Data, articleClass))
		}
		if !closesWith(output, root.Data) {
			violations = append(violations, fmt.Sprintf("root element <%s> is not closed", root.Data))
		}
	}

	if articleNumber != "" {
		var text strings.Builder
		for _, n := range nodes {
			collectText(n, &text)
		}
		if !strings.Contains(normalizeSpace(text.String()), normalizeSpace(articleNumber)) {
			violations = append(violations, fmt.Sprintf("article number %q not found in output text", articleNumber))
		}
	}

	want := FootnoteIDs(input)
	got := FootnoteIDs(output)
	if missing := difference(want, got); len(missing) > 0 {
		violations = append(violations, "missing footnote ids: "+strings.Join(missing, ", "))
	}
	if extra := difference(got, want); len(extra) > 0 {
		violations = append(violations, "unexpected footnote ids: "+strings.Join(extra, ", "))
	}

	return violations
}

// FootnoteIDs collects the sorted, de-duplicated footnote ids of markup,
// from data-footnote-id attributes and from "[N ...]N" annotations.
func FootnoteIDs(markup string) []string {
	set := make(map[string]struct{})
	if nodes, err := parseFragment(markup); err == nil {
		for _, n := range nodes {
			collectFootnoteIDs(n, set)
		}
	}
	for _, id := range annotationIDs(markup) {
		set[id] = struct{}{}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// stripCodeFences removes a surrounding markdown code fence, which chat
// models add despite being told not to.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func parseFragment(s string) ([]*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	return html.ParseFragment(strings.NewReader(s), ctx)
}

func singleRoot(nodes []*html.Node) (*html.Node, string) {
	var root *html.Node
	for _, n := range nodes {
		switch n.Type {
		case html.ElementNode:
			if root != nil {
				return nil, "output has more than one root element"
			}
			root = n
		case html.TextNode:
			if strings.TrimSpace(n.Data) != "" {
				return nil, "output has text outside the root element"
			}
		}
	}
	if root == nil {
		return nil, "output has no root element"
	}
	return root, ""
}

// closesWith reports whether s ends with the end tag of tag. The parser
// closes open elements at EOF, so a cut-off answer only shows up here.
func closesWith(s, tag string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.HasSuffix(s, "</"+strings.ToLower(tag)+">")
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" && slices.Contains(strings.Fields(a.Val), class) {
			return true
		}
	}
	return false
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

func collectFootnoteIDs(n *html.Node, set map[string]struct{}) {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key == "data-footnote-id" && strings.TrimSpace(a.Val) != "" {
				set[strings.TrimSpace(a.Val)] = struct{}{}
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectFootnoteIDs(c, set)
	}
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// difference returns the elements of a (sorted) that are not in b.
func difference(a, b []string) []string {
	var out []string
	for _, x := range a {
		if _, found := slices.BinarySearch(b, x); !found {
			out = append(out, x)
		}
	}
	return out
}
