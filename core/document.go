package core

import "encoding/json"

// LegalDocument is one extracted legal document as found in an archive.
type LegalDocument struct {
	Metadata           DocumentMetadata `json:"document_metadata"`
	Preamble           json.RawMessage  `json:"preamble,omitempty"`
	Hierarchy          []*HierarchyNode `json:"document_hierarchy"`
	References         json.RawMessage  `json:"references,omitempty"`
	ExtractionMetadata map[string]any   `json:"extraction_metadata,omitempty"`
}

// DocumentMetadata is the static metadata block of a LegalDocument.
type DocumentMetadata struct {
	DocumentNumber  string `json:"document_number"`
	Title           string `json:"title"`
	Language        string `json:"language"`
	DocumentType    string `json:"document_type"`
	PublicationDate string `json:"publication_date,omitempty"`
	SourceURL       string `json:"source_url,omitempty"`
}

// HierarchyNode is a node of the document tree. Articles are leaves.
type HierarchyNode struct {
	Type               string              `json:"type"`
	Label              string              `json:"label,omitempty"`
	Metadata           map[string]any      `json:"metadata,omitempty"`
	ArticleContent     *ArticleContent     `json:"article_content,omitempty"`
	Footnotes          []Footnote          `json:"footnotes,omitempty"`
	FootnoteReferences []FootnoteReference `json:"footnote_references,omitempty"`
	Children           []*HierarchyNode    `json:"children,omitempty"`
}

// ArticleContent carries the text of an article node.
type ArticleContent struct {
	ArticleNumber string      `json:"article_number"`
	AnchorID      string      `json:"anchor_id,omitempty"`
	Content       TextContent `json:"content"`
}

// TextContent holds the raw and pre-rendered text of an article.
type TextContent struct {
	MainText    string `json:"main_text,omitempty"`
	MainTextRaw string `json:"main_text_raw,omitempty"`
}

// Footnote is a modification note attached to an article.
type Footnote struct {
	Number  string `json:"footnote_number"`
	Content string `json:"footnote_content"`
	URL     string `json:"direct_url,omitempty"`
}

// FootnoteReference links a span of article text to a footnote.
type FootnoteReference struct {
	Number         string `json:"reference_number"`
	ReferencedText string `json:"referenced_text"`
}

// ArticleNode is a flattened article extracted from the hierarchy.
type ArticleNode struct {
	Number             string
	MainText           string
	MainTextRaw        string
	Footnotes          []Footnote
	FootnoteReferences []FootnoteReference
}

// Articles walks the hierarchy depth-first and returns every article node
// that carries content.
func (d *LegalDocument) Articles() []ArticleNode {
	var out []ArticleNode
	var walk func(nodes []*HierarchyNode)
	walk = func(nodes []*HierarchyNode) {
		for _, n := range nodes {
			if n == nil {
				continue
			}
			if n.Type == "article" && n.ArticleContent != nil {
				out = append(out, ArticleNode{
					Number:             n.ArticleContent.ArticleNumber,
					MainText:           n.ArticleContent.Content.MainText,
					MainTextRaw:        n.ArticleContent.Content.MainTextRaw,
					Footnotes:          n.Footnotes,
					FootnoteReferences: n.FootnoteReferences,
				})
			}
			walk(n.Children)
		}
	}
	walk(d.Hierarchy)
	return out
}
