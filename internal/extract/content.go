package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// listingPolicy keeps only what a reader needs to identify a product tile:
// links, images and strike-through prices. Everything else collapses to text.
var listingPolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("src", "data-src", "alt").OnElements("img")
	p.AllowElements("li", "s", "del", "strike")
	return p
}()

// ReducePage strips chrome and markup from a listing page and caps the
// result at maxChars.
func ReducePage(html string, maxChars int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript, svg, iframe, template, header, footer, nav").Remove()

	body, err := doc.Find("body").Html()
	if err != nil || body == "" {
		body, _ = doc.Html()
	}

	text := strings.Join(strings.Fields(listingPolicy.Sanitize(body)), " ")
	if maxChars > 0 && len(text) > maxChars {
		text = text[:maxChars]
	}
	return text
}
