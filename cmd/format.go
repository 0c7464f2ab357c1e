package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/lukman83/dealscout/internal/models"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printShopTable prints picked deals in a card layout followed by per-brand
// status and the budget line.
func printShopTable(w io.Writer, resp models.ShopResponse, persistErr string) {
	if len(resp.Items) == 0 {
		fmt.Fprintln(w, " No deals fit the budget.")
	}
	for i, d := range resp.Items {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, " %d. %s\n", i+1, truncate(d.Title, 70))

		priceLine := "    " + d.SalePrice.String()
		if d.OriginalPrice > d.SalePrice {
			off := 100 - int(d.SalePrice*100/d.OriginalPrice)
			priceLine += fmt.Sprintf("  (was %s, -%d%%)", d.OriginalPrice, off)
		}
		priceLine += "  |  " + string(d.Brand)
		if d.Size != "" {
			priceLine += "  |  size " + d.Size
		}
		fmt.Fprintln(w, priceLine)
		fmt.Fprintf(w, "    %s\n", cleanURL(d.ProductURL))
	}

	fmt.Fprintln(w)
	for _, b := range resp.PerBrand {
		status := fmt.Sprintf("%d found", b.ItemCount)
		if b.Strategy != "" {
			status += " via " + b.Strategy
		}
		if b.Error != "" {
			status = "failed: " + b.Error
		}
		fmt.Fprintf(w, " %-12s %s\n", b.Brand, status)
	}
	fmt.Fprintf(w, " Budget: spent %s of %s, %s left\n",
		resp.Budget.SelectedSpend, resp.Budget.Cap, resp.Budget.Remaining)
	if resp.Totals.Upserts > 0 {
		fmt.Fprintf(w, " Saved %d records\n", resp.Totals.Upserts)
	}
	if persistErr != "" {
		fmt.Fprintf(w, " Save failed: %s\n", persistErr)
	}
}

func printBudget(w io.Writer, s models.BudgetSummary) {
	fmt.Fprintf(w, " %s: %d selected, spent %s of %s, %s left\n",
		s.Month, s.SelectedItems, s.SelectedSpend, s.Cap, s.Remaining)
}

// cleanURL strips tracking query params and returns just the product page URL.
func cleanURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
