package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/lukman83/dealscout/internal/models"
	"github.com/lukman83/dealscout/internal/platform"
)

// ContentExtractor answers a natural-language instruction about page
// content with JSON that conforms to schema. Results are non-deterministic.
type ContentExtractor interface {
	Extract(ctx context.Context, instruction string, schema any, content string) (json.RawMessage, error)
}

type aiListing struct {
	Name          string   `json:"name" jsonschema:"description=Product name exactly as shown on the tile"`
	Price         string   `json:"price" jsonschema:"description=Current (sale) price as displayed including the currency symbol"`
	OriginalPrice string   `json:"originalPrice,omitempty" jsonschema:"description=Crossed-out original price if one is displayed"`
	ImageURL      string   `json:"imageUrl,omitempty" jsonschema:"description=Product image URL"`
	ProductURL    string   `json:"productUrl" jsonschema:"description=Link to the product detail page"`
	InStock       *bool    `json:"inStock,omitempty" jsonschema:"description=False only if the tile says sold out"`
	Sizes         []string `json:"sizes,omitempty" jsonschema:"description=Sizes listed as available"`
}

type aiListings struct {
	Items []aiListing `json:"items" jsonschema:"description=Every product on the page"`
}

// pageBudget caps how much reduced page text is sent per call.
const pageBudget = 120_000

// AIStrategy asks a ContentExtractor for the listings on the page.
type AIStrategy struct {
	extractor ContentExtractor
	schema    *jsonschema.Schema
}

func NewAIStrategy(x ContentExtractor) *AIStrategy {
	r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	schema := r.Reflect(&aiListings{})
	schema.Version = ""
	return &AIStrategy{extractor: x, schema: schema}
}

func (s *AIStrategy) Name() string { return "ai" }

// Schema exposes the reflected schema sent with every call.
func (s *AIStrategy) Schema() *jsonschema.Schema { return s.schema }

func (s *AIStrategy) Extract(ctx context.Context, snap *platform.Snapshot, t platform.Target) ([]models.RawExtractedItem, error) {
	if s.extractor == nil {
		return nil, errors.New("no content extractor configured")
	}
	content := ReducePage(snap.HTML, pageBudget)
	if content == "" {
		return nil, errors.New("page has no readable content")
	}

	raw, err := s.extractor.Extract(ctx, instruction(t), s.schema, content)
	if err != nil {
		return nil, err
	}

	var out struct {
		Items []models.RawExtractedItem `json:"items"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode extractor output: %w", err)
	}
	for i := range out.Items {
		out.Items[i].ProductURL = snap.Resolve(out.Items[i].ProductURL)
		out.Items[i].ImageURL = snap.Resolve(out.Items[i].ImageURL)
	}
	return out.Items, nil
}

func instruction(t platform.Target) string {
	s := fmt.Sprintf("Extract the sale clothing products listed on this %s page", t.Brand)
	if t.Query != "" {
		s += fmt.Sprintf(" that match %q", t.Query)
	}
	if t.Size != "" {
		s += fmt.Sprintf(", preferring items available in size %s", t.Size)
	}
	s += ". For each product give the name, current price, original price if shown, image URL, product URL and whether it is in stock."
	if t.MaxItems > 0 {
		s += fmt.Sprintf(" Return at most %d products.", t.MaxItems)
	}
	return s
}
