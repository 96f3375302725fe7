package wiki

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// stripPolicy removes every element and attribute, leaving only text.
var stripPolicy = bluemonday.StrictPolicy()

// Text extracts the plain text of the rendered page: the HTML with all
// markup stripped, concatenated with the title.
func (p *Page) Text() string {
	return html.UnescapeString(stripPolicy.Sanitize(p.HTML)) + " " + p.Title()
}

// Tokenize lowercases text and splits it into word tokens. Letters, digits
// and apostrophes form tokens; everything else separates them.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}

// RemoveStopwords filters common English words out of a token stream.
func RemoveStopwords(tokens []string) []string {
	kept := tokens[:0:0]
	for _, tok := range tokens {
		if _, ok := stopwords[tok]; !ok {
			kept = append(kept, tok)
		}
	}
	return kept
}

// TokenCounts maps each token surviving stopword removal to its occurrence
// count. This is the sole input the index layer consumes, and is
// deterministic for a given HTML and title.
func (p *Page) TokenCounts() map[string]int {
	counts := make(map[string]int)
	for _, tok := range RemoveStopwords(Tokenize(p.Text())) {
		counts[tok]++
	}
	return counts
}
