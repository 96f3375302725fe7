package markdown

import (
	"fmt"
	"regexp"
	"strings"
)

// wikilinkRe matches [[target]] and [[target|Label]]. The optional leading
// <code> capture lets the scanner skip links inside inline code spans, since
// Go's regexp has no lookbehind.
var wikilinkRe = regexp.MustCompile(`(<code>)?\[\[([^<\[\]|]+?)\s*(?:\|\s*([^\[\]]+?)\s*)?\]\]`)

var spaceRunRe = regexp.MustCompile(`[ ]{2,}`)

// NormalizeURL cleans a logical page URL: runs of spaces collapse to one,
// surrounding whitespace is trimmed, everything is lowercased, spaces become
// underscores and backslashes become forward slashes.
func NormalizeURL(url string) string {
	url = spaceRunRe.ReplaceAllString(url, " ")
	url = strings.TrimSpace(url)
	url = strings.ToLower(url)
	url = strings.ReplaceAll(url, " ", "_")
	url = strings.ReplaceAll(url, `\`, "/")
	return url
}

// DisplayURL is the default wikilink target formatter: the normalized URL
// rooted at "/".
func DisplayURL(target string) string {
	return "/" + NormalizeURL(target)
}

// ResolveWikilinks rewrites [[target]] and [[target|Label]] occurrences in
// rendered HTML into anchor tags. The scan is a single left-to-right pass:
// replacement text is never rescanned, and matches directly preceded by
// <code> are left untouched.
func ResolveWikilinks(htmlText string, formatURL func(string) string) string {
	var b strings.Builder
	rest := htmlText
	for {
		m := wikilinkRe.FindStringSubmatchIndex(rest)
		if m == nil {
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:m[0]])
		if m[2] >= 0 {
			// Inside an inline code span: keep the raw match.
			b.WriteString(rest[m[0]:m[1]])
		} else {
			target := rest[m[4]:m[5]]
			label := target
			if m[6] >= 0 {
				label = rest[m[6]:m[7]]
			}
			fmt.Fprintf(&b, "<a href='%s'>%s</a>", formatURL(target), label)
		}
		rest = rest[m[1]:]
	}
}
