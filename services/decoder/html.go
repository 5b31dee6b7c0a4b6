package decoder

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLToPlainText flattens an HTML body for full-text search.
func HTMLToPlainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, head").Each(func(i int, el *goquery.Selection) {
		el.Remove()
	})

	text := strings.TrimSpace(doc.Find("body").Text())
	return strings.Join(strings.Fields(text), " "), nil
}
