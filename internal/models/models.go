package models

import (
	"fmt"
	"strings"
	"time"
)

// BrandID identifies a supported retailer.
type BrandID string

const (
	Aritzia     BrandID = "aritzia"
	Reformation BrandID = "reformation"
	FreePeople  BrandID = "free-people"
)

var brandAliases = map[string]BrandID{
	"aritzia":         Aritzia,
	"reformation":     Reformation,
	"the reformation": Reformation,
	"ref":             Reformation,
	"free-people":     FreePeople,
	"free people":     FreePeople,
	"freepeople":      FreePeople,
	"free_people":     FreePeople,
	"fp":              FreePeople,
}

// ParseBrand resolves a user-supplied brand name, case-insensitively.
func ParseBrand(s string) (BrandID, error) {
	if id, ok := brandAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return id, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBrand, s)
}

// ClothingType is the keyword-derived category of a deal.
type ClothingType string

const (
	Jeans       ClothingType = "jeans"
	Shirt       ClothingType = "shirt"
	Dress       ClothingType = "dress"
	Top         ClothingType = "top"
	Bottom      ClothingType = "bottom"
	Outerwear   ClothingType = "outerwear"
	Accessories ClothingType = "accessories"
)

// RawExtractedItem is a partial record straight out of an extraction strategy.
// Any field may be missing; nothing here is trusted until normalized.
type RawExtractedItem struct {
	Name          string    `json:"name,omitempty"`
	Price         FlexPrice `json:"price"`
	OriginalPrice FlexPrice `json:"originalPrice"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	ProductURL    string    `json:"productUrl,omitempty"`
	InStock       *bool     `json:"inStock,omitempty"`
	Sizes         []string  `json:"sizes,omitempty"`
	Category      string    `json:"category,omitempty"`
}

// Deal is a normalized, validated listing. It is never mutated after creation.
type Deal struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Brand         BrandID      `json:"brand"`
	SalePrice     Cents        `json:"salePrice"`
	OriginalPrice Cents        `json:"originalPrice"`
	Size          string       `json:"size"`
	ClothingType  ClothingType `json:"clothingType"`
	ImageURL      string       `json:"imageUrl"`
	ProductURL    string       `json:"productUrl"`
	InStock       bool         `json:"inStock"`
	DiscoveredAt  time.Time    `json:"discoveredAt"`
	Strategy      string       `json:"strategy,omitempty"`
}

// ScrapeRequest is the immutable input of one run.
type ScrapeRequest struct {
	Query               string
	Size                string
	Brands              []BrandID
	BudgetCap           Cents
	ResultLimitPerBrand int
	// MaxPrice is an optional per-item ceiling; zero means unset.
	// It is independent of BudgetCap.
	MaxPrice Cents
}

const DefaultResultLimit = 6

// NewScrapeRequest validates the input and returns a request whose brand list
// is de-duplicated in first-seen order.
func NewScrapeRequest(query, size string, brands []BrandID, budgetCap Cents, limit int, maxPrice Cents) (ScrapeRequest, error) {
	if budgetCap < 0 {
		return ScrapeRequest{}, fmt.Errorf("budget cap must be >= 0, got %s", budgetCap)
	}
	if maxPrice < 0 {
		return ScrapeRequest{}, fmt.Errorf("max price must be >= 0, got %s", maxPrice)
	}
	if limit < 0 {
		return ScrapeRequest{}, fmt.Errorf("result limit must be > 0, got %d", limit)
	}
	if limit == 0 {
		limit = DefaultResultLimit
	}
	seen := make(map[BrandID]bool, len(brands))
	set := make([]BrandID, 0, len(brands))
	for _, b := range brands {
		if seen[b] {
			continue
		}
		seen[b] = true
		set = append(set, b)
	}
	if len(set) == 0 {
		return ScrapeRequest{}, fmt.Errorf("at least one brand is required")
	}
	return ScrapeRequest{
		Query:               strings.TrimSpace(query),
		Size:                strings.TrimSpace(size),
		Brands:              set,
		BudgetCap:           budgetCap,
		ResultLimitPerBrand: limit,
		MaxPrice:            maxPrice,
	}, nil
}

// BrandRunResult is the outcome of one brand pass.
type BrandRunResult struct {
	Brand      BrandID `json:"brand"`
	ItemCount  int     `json:"count"`
	SessionRef string  `json:"sessionRef"`
	Strategy   string  `json:"strategy,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// AllocationOutcome is derived per run and never stored.
type AllocationOutcome struct {
	Selected   []Deal `json:"selected"`
	Cap        Cents  `json:"cap"`
	TotalSpend Cents  `json:"totalSpend"`
	Remaining  Cents  `json:"remaining"`
}

// RunResult aggregates a whole run.
type RunResult struct {
	RunID      string            `json:"runId"`
	SessionRef string            `json:"sessionRef"`
	PerBrand   []BrandRunResult  `json:"perBrand"`
	Allocation AllocationOutcome `json:"allocation"`
	Persisted  []WriteResult     `json:"persisted,omitempty"`

	// PersistError is set when the store rejected the whole batch.
	PersistError string `json:"persistError,omitempty"`
}

// Upserts counts records the store reported as created or updated.
func (r *RunResult) Upserts() int {
	n := 0
	for _, w := range r.Persisted {
		if w.Action == ActionCreated || w.Action == ActionUpdated {
			n++
		}
	}
	return n
}
