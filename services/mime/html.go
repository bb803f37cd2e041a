package mime

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var blankLines = regexp.MustCompile(`\n\s*\n+`)

// HTMLToText strips markup for text processing such as order matching. It is not
// meant for display.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	doc.Find("script, style, head").Each(func(i int, el *goquery.Selection) {
		el.Remove()
	})
	doc.Find("br, p, div, tr, li, h1, h2, h3, h4").Each(func(i int, el *goquery.Selection) {
		el.AppendHtml("\n")
	})

	text := strings.TrimSpace(doc.Text())
	return blankLines.ReplaceAllString(text, "\n")
}
