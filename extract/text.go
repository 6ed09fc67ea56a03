package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PlainText strips HTML markup from listing copy. Strings without markup
// are returned with whitespace collapsed.
func PlainText(s string) string {
	if !strings.ContainsRune(s, '<') {
		return collapse(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapse(s)
	}
	doc.Find("script, style").Remove()
	return collapse(doc.Text())
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}
