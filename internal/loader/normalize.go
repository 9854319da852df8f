package loader

import (
	"regexp"
	"strings"
)

var (
	// horizontalWS collapses runs of spaces and tabs.
	horizontalWS = regexp.MustCompile(`[ \t]+`)
	// tripleNewlines collapses three or more consecutive newlines to two.
	tripleNewlines = regexp.MustCompile(`\n{3,}`)
	// standaloneDigits matches lines holding nothing but a number — stray
	// page numbers left behind by PDF extraction.
	standaloneDigits = regexp.MustCompile(`(?m)^\s*\d+\s*$`)
	// pageHeader matches "Page N …" header/footer lines.
	pageHeader = regexp.MustCompile(`(?m)^Page \d+.*$`)
)

// quoteReplacer maps typographic quotes to their ASCII equivalents.
var quoteReplacer = strings.NewReplacer(
	"“", `"`, // left double
	"”", `"`, // right double
	"‘", "'", // left single
	"’", "'", // right single
)

// Normalize applies the post-processing pass shared by all loaders:
// whitespace collapsing, page-artifact removal, and quote normalization.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.ReplaceAll(text, "\f", " ")
	text = quoteReplacer.Replace(text)
	text = horizontalWS.ReplaceAllString(text, " ")
	text = standaloneDigits.ReplaceAllString(text, "")
	text = pageHeader.ReplaceAllString(text, "")
	text = tripleNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
