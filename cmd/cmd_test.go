package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lukman83/dealscout/config"
	"github.com/lukman83/dealscout/internal/browser"
	"github.com/lukman83/dealscout/internal/browserbase"
	"github.com/lukman83/dealscout/internal/logging"
	"github.com/lukman83/dealscout/internal/models"
)

func withConfig(t *testing.T) *config.Config {
	t.Helper()
	prevCfg, prevLog := cfg, log
	t.Cleanup(func() { cfg, log = prevCfg, prevLog })
	cfg = config.Default()
	log = logging.Discard()
	return cfg
}

func TestBuildProxies(t *testing.T) {
	c := withConfig(t)

	c.Proxy.Mode = "direct"
	if p, err := buildProxies(); err != nil || p != nil {
		t.Errorf("direct: %v %v", p, err)
	}

	c.Proxy.Mode = "decodo"
	c.Proxy.DecodoUsername, c.Proxy.DecodoPassword = "", ""
	if _, err := buildProxies(); err == nil {
		t.Error("decodo without credentials accepted")
	}
	c.Proxy.DecodoUsername, c.Proxy.DecodoPassword = "u", "p"
	if p, err := buildProxies(); err != nil || p == nil {
		t.Errorf("decodo: %v %v", p, err)
	}

	path := filepath.Join(t.TempDir(), "proxies.txt")
	os.WriteFile(path, []byte("# exits\nhttp://10.0.0.1:8080\n"), 0o600)
	c.Proxy.Mode, c.Proxy.File = "custom", path
	if p, err := buildProxies(); err != nil || p == nil {
		t.Errorf("custom: %v %v", p, err)
	}

	c.Proxy.Mode = "wireguard"
	if _, err := buildProxies(); err == nil {
		t.Error("unknown mode accepted")
	}
}

func TestBuildProvider(t *testing.T) {
	c := withConfig(t)

	c.Provider.Kind = "local"
	p, err := buildProvider(nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*browser.LocalProvider); !ok {
		t.Errorf("local provider is %T", p)
	}

	c.Provider.Kind = "browserbase"
	c.Provider.BrowserbaseAPIKey, c.Provider.BrowserbaseProjectID = "", ""
	if _, err := buildProvider(nil); err == nil {
		t.Error("browserbase without credentials accepted")
	}
	c.Provider.BrowserbaseAPIKey, c.Provider.BrowserbaseProjectID = "k", "p"
	p, err = buildProvider(nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*browserbase.Provider); !ok {
		t.Errorf("browserbase provider is %T", p)
	}

	c.Provider.Kind = "playwright"
	if _, err := buildProvider(nil); err == nil {
		t.Error("unknown provider accepted")
	}
}

func TestBuildStoreDisabled(t *testing.T) {
	c := withConfig(t)
	c.Store.Kind = ""
	w, closeStore, err := buildStore(t.Context())
	if err != nil || w != nil {
		t.Fatalf("store = %v err = %v", w, err)
	}
	closeStore()

	c.Store.Kind = "notion"
	c.Store.NotionAPIKey = ""
	if _, _, err := buildStore(t.Context()); err == nil {
		t.Error("notion without token accepted")
	}
}

func TestParseBrands(t *testing.T) {
	ids, err := parseBrands([]string{"Aritzia", "", "Free People"})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[1] != models.FreePeople {
		t.Errorf("ids = %v", ids)
	}
	if _, err := parseBrands([]string{"zara"}); err == nil {
		t.Error("unknown brand accepted")
	}
}

func TestPrintShopTable(t *testing.T) {
	var resp models.ShopResponse
	resp.Items = []models.Deal{{
		Title: "Wilfred Tank", Brand: models.Aritzia, SalePrice: 2500, OriginalPrice: 5000,
		Size: "M", ProductURL: "https://www.aritzia.com/p/tank?src=grid#top",
	}}
	resp.PerBrand = []models.BrandRunResult{
		{Brand: models.Aritzia, ItemCount: 4, Strategy: "heuristic"},
		{Brand: models.Reformation, Error: "navigation failed"},
	}
	resp.Budget.Cap, resp.Budget.SelectedSpend, resp.Budget.Remaining = 15000, 2500, 12500

	var buf bytes.Buffer
	printShopTable(&buf, resp, "")
	out := buf.String()
	for _, want := range []string{
		"Wilfred Tank", "$25.00", "(was $50.00, -50%)", "size M",
		"https://www.aritzia.com/p/tank\n", "4 found via heuristic",
		"failed: navigation failed", "spent $25.00 of $150.00, $125.00 left",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
