package extract

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/lukman83/dealscout/internal/models"
	"github.com/lukman83/dealscout/internal/platform"
	"golang.org/x/net/html"
)

var (
	pricePattern = regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d{1,2})?`)
	// Lines that label a tile rather than name the product.
	labelPattern = regexp.MustCompile(`(?i)^(size|sizes|color|colors|colour|sale|shop|new|quick (view|add)|add to (bag|cart)|final sale|\d+ colou?rs?)\b`)
)

const (
	// containerDepth bounds how far up from a price we look for the tile.
	containerDepth = 6
	minNameLen     = 3
	maxNameLen     = 140
)

// HeuristicStrategy scans the DOM for price text and reads the surrounding
// product tile.
type HeuristicStrategy struct {
	// ScanLimit caps how many elements are inspected.
	ScanLimit int
}

func NewHeuristicStrategy(scanLimit int) *HeuristicStrategy {
	return &HeuristicStrategy{ScanLimit: scanLimit}
}

func (s *HeuristicStrategy) Name() string { return "heuristic" }

func (s *HeuristicStrategy) Extract(ctx context.Context, snap *platform.Snapshot, t platform.Target) ([]models.RawExtractedItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snap.HTML))
	if err != nil {
		return nil, err
	}
	doc.Find("script, style, noscript, svg, template").Remove()

	seenTile := make(map[*html.Node]bool)
	seenURL := make(map[string]bool)
	var items []models.RawExtractedItem

	scanned := 0
	doc.Find("body *").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		scanned++
		if s.ScanLimit > 0 && scanned > s.ScanLimit {
			return false
		}
		if t.MaxItems > 0 && len(items) >= t.MaxItems {
			return false
		}
		if !pricePattern.MatchString(ownText(el)) {
			return true
		}

		tile := findTile(el)
		if tile == nil || seenTile[tile.Get(0)] {
			return true
		}
		seenTile[tile.Get(0)] = true

		it, ok := readTile(tile, snap)
		if !ok || seenURL[it.ProductURL] {
			return true
		}
		seenURL[it.ProductURL] = true
		items = append(items, it)
		return true
	})

	if len(items) == 0 {
		return nil, errors.New("no price-bearing product tiles found")
	}
	return items, nil
}

// ownText is the element's direct text, excluding descendants.
func ownText(sel *goquery.Selection) string {
	var b strings.Builder
	for c := sel.Get(0).FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// findTile climbs from a price element to the nearest ancestor that links
// somewhere. The price element itself may be the link.
func findTile(el *goquery.Selection) *goquery.Selection {
	cur := el
	for i := 0; i <= containerDepth && cur.Length() > 0; i++ {
		if goquery.NodeName(cur) == "body" {
			return nil
		}
		if cur.Find("a[href]").Length() > 0 || (goquery.NodeName(cur) == "a" && cur.AttrOr("href", "") != "") {
			return cur
		}
		cur = cur.Parent()
	}
	return nil
}

func readTile(tile *goquery.Selection, snap *platform.Snapshot) (models.RawExtractedItem, bool) {
	var it models.RawExtractedItem

	href := tile.AttrOr("href", "")
	if href == "" {
		href = tile.Find("a[href]").First().AttrOr("href", "")
	}
	it.ProductURL = snap.Resolve(href)
	if it.ProductURL == "" {
		return it, false
	}

	img := tile.Find("img").First()
	src := img.AttrOr("src", "")
	if src == "" || strings.HasPrefix(src, "data:") {
		src = img.AttrOr("data-src", "")
	}
	it.ImageURL = snap.Resolve(src)

	var prices []models.Cents
	var priceText []string
	var name string
	for _, line := range tileLines(tile) {
		if m := pricePattern.FindAllString(line, -1); len(m) > 0 {
			for _, p := range m {
				if c, err := models.PriceText(p).Cents(); err == nil && c > 0 {
					prices = append(prices, c)
					priceText = append(priceText, p)
				}
			}
			continue
		}
		if labelPattern.MatchString(line) || len(line) < minNameLen || len(line) > maxNameLen {
			continue
		}
		if len(line) > len(name) {
			name = line
		}
	}
	if len(prices) == 0 {
		return it, false
	}

	// A tile showing two prices is a markdown: the lower one is the sale.
	lo, hi := 0, 0
	for i, c := range prices {
		if c < prices[lo] {
			lo = i
		}
		if c > prices[hi] {
			hi = i
		}
	}
	it.Price = models.PriceText(priceText[lo])
	if prices[hi] > prices[lo] {
		it.OriginalPrice = models.PriceText(priceText[hi])
	}
	if name == "" {
		name = img.AttrOr("alt", "")
	}
	it.Name = name

	if strings.Contains(strings.ToLower(tile.Text()), "sold out") {
		inStock := false
		it.InStock = &inStock
	}
	return it, true
}

// tileLines returns the trimmed text of every text node in the tile.
func tileLines(tile *goquery.Selection) []string {
	var lines []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if s := strings.Join(strings.Fields(n.Data), " "); s != "" {
				lines = append(lines, s)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range tile.Nodes {
		walk(n)
	}
	return lines
}
