// Package brands holds the retailer catalog and the keyword classifier shared
// by navigation and normalization.
package brands

import (
	"strings"

	"github.com/lukman83/dealscout/internal/models"
	"github.com/lukman83/dealscout/internal/platform"
)

var standardSegments = map[models.ClothingType]string{
	models.Jeans:       "denim",
	models.Shirt:       "tops",
	models.Top:         "tops",
	models.Dress:       "dresses",
	models.Bottom:      "bottoms",
	models.Outerwear:   "outerwear",
	models.Accessories: "accessories",
}

// Sites returns the built-in retailer profiles.
func Sites() []platform.Site {
	return []platform.Site{
		{
			ID:          models.Aritzia,
			DisplayName: "Aritzia",
			BaseURL:     "https://www.aritzia.com",
			SaleRoot:    "/us/en/sale",
			Segments:    standardSegments,
			SortLabels:  []string{"Best Sellers", "Top Rated"},
		},
		{
			ID:          models.Reformation,
			DisplayName: "Reformation",
			BaseURL:     "https://www.thereformation.com",
			SaleRoot:    "/sale",
			Segments:    standardSegments,
			SortLabels:  []string{"Best Sellers", "Best Selling"},
		},
		{
			ID:          models.FreePeople,
			DisplayName: "Free People",
			BaseURL:     "https://www.freepeople.com",
			SaleRoot:    "/sale",
			Segments:    standardSegments,
			SortLabels:  []string{"Best Selling", "Top Rated"},
		},
	}
}

// RegisterDefaults puts every built-in site into the platform registry.
func RegisterDefaults() {
	for _, s := range Sites() {
		platform.Register(s)
	}
}

type keywordRule struct {
	words []string
	kind  models.ClothingType
}

// Order matters: "denim jacket" is jeans, "shirt dress" is a shirt.
var rules = []keywordRule{
	{[]string{"jean", "denim"}, models.Jeans},
	{[]string{"shirt", "blouse"}, models.Shirt},
	{[]string{"dress"}, models.Dress},
	{[]string{"top", "tee", "tank"}, models.Top},
	{[]string{"pant", "short", "skirt", "trouser", "legging"}, models.Bottom},
	{[]string{"jacket", "coat", "sweater", "cardigan", "blazer"}, models.Outerwear},
	{[]string{"bag", "shoe", "jewelry", "belt", "scarf"}, models.Accessories},
}

// Match classifies text by the first matching keyword rule.
func Match(text string) (models.ClothingType, bool) {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, w := range r.words {
			if strings.Contains(lower, w) {
				return r.kind, true
			}
		}
	}
	return models.Top, false
}

// Classify is Match without the hit flag; unmatched text is a top.
func Classify(text string) models.ClothingType {
	t, _ := Match(text)
	return t
}

// SaleURL builds the bare sale root for a site.
func SaleURL(s platform.Site) string {
	return strings.TrimRight(s.BaseURL, "/") + s.SaleRoot
}

// TargetURL builds the category page for query. A query that names no known
// clothing type gets the bare sale root.
func TargetURL(s platform.Site, query string) string {
	kind, ok := Match(query)
	if !ok {
		return SaleURL(s)
	}
	seg, ok := s.Segments[kind]
	if !ok || seg == "" {
		return SaleURL(s)
	}
	return SaleURL(s) + "/" + seg
}
