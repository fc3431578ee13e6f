package transform

import (
	"regexp"
	"strings"
)

var (
	// annotationPattern matches inline modification annotations such as
	// "[1 Loi 2003-05-22/30, art. 2]1". RE2 has no backreferences, so the
	// opening and closing numbers are compared by the caller.
	annotationPattern = regexp.MustCompile(`\[(\d+)\s*([^\]]*?)\](\d+)`)

	// provisionLinePattern matches lines that open a numbered provision
	// ("1° ...", "a) ...").
	provisionLinePattern = regexp.MustCompile(`(?m)^\s*(\d+°|[a-z]\))\s`)
)

var structuralMarkers = []string{"§", "footnote-ref", "<ol", "numbered-provisions"}

// ShouldTransform reports whether markup carries structure that a repair
// could improve. Articles without paragraph markers, footnotes or numbered
// provisions are left as they are.
func ShouldTransform(markup string) bool {
	for _, m := range structuralMarkers {
		if strings.Contains(markup, m) {
			return true
		}
	}
	if len(annotationIDs(markup)) > 0 {
		return true
	}
	return provisionLinePattern.MatchString(markup)
}

// annotationIDs returns the numbers of well-formed "[N ...]N" annotations.
func annotationIDs(text string) []string {
	var ids []string
	for _, m := range annotationPattern.FindAllStringSubmatch(text, -1) {
		if m[1] == m[3] {
			ids = append(ids, m[1])
		}
	}
	return ids
}
