package extract

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/lukman83/dealscout/internal/models"
	"github.com/lukman83/dealscout/internal/platform"
)

const tilesHTML = `<html><body>
<nav><a href="/sale">Sale</a></nav>
<ul class="grid">
  <li class="tile">
    <a href="/p/ribbed-tank-1"><img src="/img/tank.jpg" alt="Ribbed Tank"></a>
    <div><span>New</span><p>Contour Ribbed Tank Top</p></div>
    <div class="price"><s>$38.00</s> <span>$25.00</span></div>
    <div>Sizes XS S M</div>
  </li>
  <li class="tile">
    <a href="https://www.aritzia.com/p/linen-shirt-2"><img data-src="https://cdn.example/shirt.jpg" src="data:image/gif;base64,AA"></a>
    <p>Linen Button Shirt</p>
    <span>$68</span>
  </li>
  <li class="tile"><span>Gift card</span></li>
</ul>
<script>var price = "$1.00";</script>
</body></html>`

func snapshot(html string) *platform.Snapshot {
	return &platform.Snapshot{URL: "https://www.aritzia.com/us/en/sale/tops", HTML: html}
}

func TestHeuristicReadsTiles(t *testing.T) {
	s := NewHeuristicStrategy(2000)
	items, err := s.Extract(context.Background(), snapshot(tilesHTML), platform.Target{Brand: models.Aritzia})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2: %+v", len(items), items)
	}

	first := items[0]
	if first.Name != "Contour Ribbed Tank Top" {
		t.Errorf("name = %q", first.Name)
	}
	if first.ProductURL != "https://www.aritzia.com/p/ribbed-tank-1" {
		t.Errorf("url = %q", first.ProductURL)
	}
	if first.ImageURL != "https://www.aritzia.com/img/tank.jpg" {
		t.Errorf("image = %q", first.ImageURL)
	}
	if c, _ := first.Price.Cents(); c != 2500 {
		t.Errorf("price = %d, want 2500", c)
	}
	if c, _ := first.OriginalPrice.Cents(); c != 3800 {
		t.Errorf("original = %d, want 3800", c)
	}

	second := items[1]
	if second.ImageURL != "https://cdn.example/shirt.jpg" {
		t.Errorf("lazy image = %q", second.ImageURL)
	}
	if second.OriginalPrice.Set {
		t.Error("single-price tile should have no original price")
	}
}

func TestHeuristicScanLimit(t *testing.T) {
	s := NewHeuristicStrategy(3)
	if _, err := s.Extract(context.Background(), snapshot(tilesHTML), platform.Target{}); err == nil {
		t.Fatal("a tiny scan limit should find nothing")
	}
}

func TestJSONLDItemListAndGraph(t *testing.T) {
	page := `<html><head>
<script type="application/ld+json">{"@type":"ItemList","itemListElement":[
  {"@type":"ListItem","item":{"@type":"Product","name":"Midi Dress","url":"/p/midi","image":["/i/midi.jpg"],
   "offers":{"@type":"Offer","price":"78.00","availability":"https://schema.org/InStock"}}},
  {"@type":"ListItem","item":{"@type":"Product","name":"No Offer"}}
]}</script>
<script type="application/ld+json">{"@graph":[{"@type":"Organization","name":"Reformation"},
  {"@type":"Product","name":"Denim Short","url":"https://www.thereformation.com/p/short",
   "offers":[{"@type":"AggregateOffer","lowPrice":58,"highPrice":98,"availability":"OutOfStock"}]}]}</script>
</head><body></body></html>`

	items, err := NewJSONLDStrategy().Extract(context.Background(), &platform.Snapshot{URL: "https://www.thereformation.com/sale", HTML: page}, platform.Target{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].ProductURL != "https://www.thereformation.com/p/midi" || items[0].ImageURL != "https://www.thereformation.com/i/midi.jpg" {
		t.Errorf("first = %+v", items[0])
	}
	if items[0].InStock == nil || !*items[0].InStock {
		t.Error("first should be in stock")
	}
	if c, _ := items[1].Price.Cents(); c != 5800 {
		t.Errorf("low price = %d", c)
	}
	if c, _ := items[1].OriginalPrice.Cents(); c != 9800 {
		t.Errorf("high price = %d", c)
	}
	if items[1].InStock == nil || *items[1].InStock {
		t.Error("second should be out of stock")
	}
}

type fakeExtractor struct {
	out         string
	err         error
	instruction string
	content     string
	schema      any
}

func (f *fakeExtractor) Extract(ctx context.Context, instruction string, schema any, content string) (json.RawMessage, error) {
	f.instruction, f.schema, f.content = instruction, schema, content
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.out), nil
}

func TestAIStrategyDecodesMixedPrices(t *testing.T) {
	fx := &fakeExtractor{out: `{"items":[{"name":"Tee","price":"$25.00","productUrl":"/p/tee"},{"name":"Tank","price":38,"productUrl":"/p/tank","inStock":false}]}`}
	s := NewAIStrategy(fx)

	items, err := s.Extract(context.Background(), snapshot(tilesHTML), platform.Target{Brand: models.Aritzia, Query: "tops", Size: "M", MaxItems: 10})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items", len(items))
	}
	if c, _ := items[1].Price.Cents(); c != 3800 {
		t.Errorf("numeric price = %d", c)
	}
	if items[0].ProductURL != "https://www.aritzia.com/p/tee" {
		t.Errorf("url not resolved: %q", items[0].ProductURL)
	}
	if !strings.Contains(fx.instruction, `"tops"`) || !strings.Contains(fx.instruction, "size M") {
		t.Errorf("instruction = %q", fx.instruction)
	}
	if strings.Contains(fx.content, "var price") {
		t.Error("scripts must be stripped from content sent to the extractor")
	}

	b, err := json.Marshal(s.Schema())
	if err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"name", "price", "imageUrl", "productUrl", "inStock"} {
		if !strings.Contains(string(b), `"`+field+`"`) {
			t.Errorf("schema lacks %s: %s", field, b)
		}
	}
}

type stubStrategy struct {
	name  string
	items []models.RawExtractedItem
	err   error
	calls int
}

func (s *stubStrategy) Name() string { return s.name }
func (s *stubStrategy) Extract(context.Context, *platform.Snapshot, platform.Target) ([]models.RawExtractedItem, error) {
	s.calls++
	return s.items, s.err
}

func TestChainFallsThrough(t *testing.T) {
	good := models.RawExtractedItem{Name: "Tee", Price: models.PriceText("$25"), ProductURL: "https://x/p/1"}
	aiStub := &stubStrategy{name: "ai", err: errors.New("model timeout")}
	ldStub := &stubStrategy{name: "jsonld", items: []models.RawExtractedItem{{Name: "junk", Price: models.PriceText("N/A"), ProductURL: "https://x/p/2"}}}
	heur := &stubStrategy{name: "heuristic", items: []models.RawExtractedItem{good}}

	res, err := NewChain(nil, aiStub, ldStub, heur).Run(context.Background(), snapshot(""), platform.Target{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Strategy != "heuristic" || len(res.Items) != 1 {
		t.Errorf("result = %+v", res)
	}
	if aiStub.calls != 1 || ldStub.calls != 1 || heur.calls != 1 {
		t.Error("each strategy should run exactly once")
	}
}

func TestChainStopsAtFirstSuccess(t *testing.T) {
	good := models.RawExtractedItem{Name: "Tee", Price: models.PriceNumber(25), ProductURL: "https://x/p/1"}
	first := &stubStrategy{name: "ai", items: []models.RawExtractedItem{good}}
	second := &stubStrategy{name: "heuristic"}

	res, err := NewChain(nil, first, second).Run(context.Background(), snapshot(""), platform.Target{})
	if err != nil || res.Strategy != "ai" {
		t.Fatalf("res = %+v, err = %v", res, err)
	}
	if second.calls != 0 {
		t.Error("fallback ran after a successful strategy")
	}
}

func TestChainCapsOnlyWellFormedItems(t *testing.T) {
	junk := models.RawExtractedItem{Name: "Placeholder", Price: models.PriceText("N/A"), ProductURL: "https://x/p/0"}
	tee := models.RawExtractedItem{Name: "Tee", Price: models.PriceText("$20"), ProductURL: "https://x/p/1"}
	tank := models.RawExtractedItem{Name: "Tank", Price: models.PriceText("$18"), ProductURL: "https://x/p/2"}

	tests := []struct {
		name         string
		first        []models.RawExtractedItem
		max          int
		wantStrategy string
		wantNames    []string
	}{
		{"malformed head is skipped", []models.RawExtractedItem{junk, junk, tee}, 2, "ai", []string{"Tee"}},
		{"cap applies after filtering", []models.RawExtractedItem{junk, tee, junk, tank, tee}, 2, "ai", []string{"Tee", "Tank"}},
		{"all malformed falls through", []models.RawExtractedItem{junk, junk, junk}, 2, "heuristic", []string{"Tank"}},
		{"no cap", []models.RawExtractedItem{tee, junk, tank}, 0, "ai", []string{"Tee", "Tank"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := &stubStrategy{name: "ai", items: tt.first}
			second := &stubStrategy{name: "heuristic", items: []models.RawExtractedItem{tank}}

			res, err := NewChain(nil, first, second).Run(context.Background(), snapshot(""), platform.Target{MaxItems: tt.max})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if res.Strategy != tt.wantStrategy {
				t.Errorf("strategy = %q, want %q", res.Strategy, tt.wantStrategy)
			}
			var names []string
			for _, it := range res.Items {
				if !wellFormed(it) {
					t.Errorf("malformed item returned: %+v", it)
				}
				names = append(names, it.Name)
			}
			if strings.Join(names, ",") != strings.Join(tt.wantNames, ",") {
				t.Errorf("items = %v, want %v", names, tt.wantNames)
			}
		})
	}
}

func TestChainAllFail(t *testing.T) {
	boom := errors.New("no key")
	_, err := NewChain(nil,
		&stubStrategy{name: "ai", err: boom},
		&stubStrategy{name: "heuristic"},
	).Run(context.Background(), snapshot(""), platform.Target{})
	if !errors.Is(err, models.ErrExtractionFailed) {
		t.Fatalf("err = %v, want ErrExtractionFailed", err)
	}
	if !errors.Is(err, boom) {
		t.Error("joined error should keep each strategy's cause")
	}
}

func TestBuildChainByName(t *testing.T) {
	strategies, err := Build([]string{"jsonld", "heuristic"}, Deps{ScanLimit: 100})
	if err != nil {
		t.Fatal(err)
	}
	if len(strategies) != 2 || strategies[0].Name() != "jsonld" {
		t.Errorf("strategies = %v", strategies)
	}
	if _, err := Build([]string{"magic"}, Deps{}); err == nil {
		t.Error("unknown strategy name should fail")
	}
}
