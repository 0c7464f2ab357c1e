package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lukman83/dealscout/internal/models"
	"github.com/lukman83/dealscout/internal/platform"
	"golang.org/x/net/html"
)

// JSONLDStrategy reads schema.org Product and ItemList blocks.
type JSONLDStrategy struct{}

func NewJSONLDStrategy() *JSONLDStrategy { return &JSONLDStrategy{} }

func (s *JSONLDStrategy) Name() string { return "jsonld" }

func (s *JSONLDStrategy) Extract(ctx context.Context, snap *platform.Snapshot, t platform.Target) ([]models.RawExtractedItem, error) {
	blocks, err := ldBlocks(snap.HTML)
	if err != nil {
		return nil, err
	}

	var items []models.RawExtractedItem
	for _, b := range blocks {
		for _, node := range flattenLD(b) {
			if it, ok := node.toItem(snap); ok {
				items = append(items, it)
			}
		}
	}
	return items, nil
}

// ldBlocks returns the body of every <script type="application/ld+json">.
func ldBlocks(htmlContent string) ([]string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	var blocks []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" && n.FirstChild != nil {
			for _, attr := range n.Attr {
				if attr.Key == "type" && strings.EqualFold(strings.TrimSpace(attr.Val), "application/ld+json") {
					blocks = append(blocks, n.FirstChild.Data)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return blocks, nil
}

type ldNode struct {
	Type            ldType          `json:"@type"`
	Graph           []ldNode        `json:"@graph"`
	Name            string          `json:"name"`
	URL             string          `json:"url"`
	Image           json.RawMessage `json:"image"`
	Category        string          `json:"category"`
	Size            string          `json:"size"`
	Offers          json.RawMessage `json:"offers"`
	ItemListElement []ldListElement `json:"itemListElement"`
	HasVariant      []ldNode        `json:"hasVariant"`
}

type ldListElement struct {
	URL  string  `json:"url"`
	Item *ldNode `json:"item"`
}

type ldOffer struct {
	Price        models.FlexPrice `json:"price"`
	LowPrice     models.FlexPrice `json:"lowPrice"`
	HighPrice    models.FlexPrice `json:"highPrice"`
	Availability string           `json:"availability"`
	URL          string           `json:"url"`
}

// ldType accepts "Product" and ["Product", ...].
type ldType []string

func (t *ldType) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*t = ldType{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*t = many
	return nil
}

func (t ldType) is(name string) bool {
	for _, v := range t {
		if strings.EqualFold(v, name) {
			return true
		}
	}
	return false
}

// flattenLD yields every Product node in a block, in document order.
func flattenLD(block string) []ldNode {
	block = strings.TrimSpace(block)

	var roots []ldNode
	var one ldNode
	if err := json.Unmarshal([]byte(block), &one); err == nil {
		roots = []ldNode{one}
	} else if err := json.Unmarshal([]byte(block), &roots); err != nil {
		return nil
	}

	var out []ldNode
	var visit func(n ldNode)
	visit = func(n ldNode) {
		switch {
		case n.Type.is("Product"):
			out = append(out, n)
		case n.Type.is("ProductGroup") && len(n.HasVariant) > 0:
			v := n.HasVariant[0]
			if v.Name == "" {
				v.Name = n.Name
			}
			if v.URL == "" {
				v.URL = n.URL
			}
			out = append(out, v)
		case n.Type.is("ItemList"):
			for _, el := range n.ItemListElement {
				if el.Item != nil {
					visit(*el.Item)
				}
			}
		}
		for _, g := range n.Graph {
			visit(g)
		}
	}
	for _, r := range roots {
		visit(r)
	}
	return out
}

func (n ldNode) toItem(snap *platform.Snapshot) (models.RawExtractedItem, bool) {
	offer, ok := firstOffer(n.Offers)
	if !ok {
		return models.RawExtractedItem{}, false
	}

	it := models.RawExtractedItem{
		Name:     n.Name,
		Category: n.Category,
		ImageURL: snap.Resolve(firstImage(n.Image)),
	}
	it.ProductURL = snap.Resolve(n.URL)
	if it.ProductURL == "" {
		it.ProductURL = snap.Resolve(offer.URL)
	}

	switch {
	case offer.Price.Set:
		it.Price = offer.Price
	case offer.LowPrice.Set:
		it.Price = offer.LowPrice
		it.OriginalPrice = offer.HighPrice
	}
	if offer.Availability != "" {
		inStock := !strings.Contains(strings.ToLower(offer.Availability), "outofstock") &&
			!strings.Contains(strings.ToLower(offer.Availability), "soldout")
		it.InStock = &inStock
	}
	if n.Size != "" {
		it.Sizes = []string{n.Size}
	}
	return it, true
}

func firstOffer(raw json.RawMessage) (ldOffer, bool) {
	if len(raw) == 0 {
		return ldOffer{}, false
	}
	var one ldOffer
	if err := json.Unmarshal(raw, &one); err == nil {
		return one, one.Price.Set || one.LowPrice.Set
	}
	var many []ldOffer
	if err := json.Unmarshal(raw, &many); err != nil || len(many) == 0 {
		return ldOffer{}, false
	}
	return many[0], many[0].Price.Set || many[0].LowPrice.Set
}

func firstImage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var list []json.RawMessage
	if json.Unmarshal(raw, &list) == nil && len(list) > 0 {
		return firstImage(list[0])
	}
	var obj struct {
		URL string `json:"url"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return obj.URL
	}
	return ""
}
