// Package budget selects a cap-bounded, brand-fair subset of deals.
package budget

import (
	"sort"

	"github.com/lukman83/dealscout/internal/models"
)

// Allocate drops unaffordable items, sorts each brand cheapest-first,
// interleaves brands round-robin in first-seen order, then greedily admits
// items while the running total stays within cap. An item that does not fit
// is skipped; the walk continues so later, cheaper items may still fit.
func Allocate(deals []models.Deal, budgetCap models.Cents) models.AllocationOutcome {
	out := models.AllocationOutcome{Cap: budgetCap, Selected: []models.Deal{}}
	if budgetCap <= 0 || len(deals) == 0 {
		out.Remaining = max(budgetCap, 0)
		return out
	}

	var order []models.BrandID
	groups := make(map[models.BrandID][]models.Deal)
	for _, d := range deals {
		if d.SalePrice <= 0 || d.SalePrice > budgetCap {
			continue
		}
		if _, ok := groups[d.Brand]; !ok {
			order = append(order, d.Brand)
		}
		groups[d.Brand] = append(groups[d.Brand], d)
	}

	longest := 0
	for _, b := range order {
		g := groups[b]
		sort.SliceStable(g, func(i, j int) bool { return g[i].SalePrice < g[j].SalePrice })
		longest = max(longest, len(g))
	}

	var total models.Cents
	for i := 0; i < longest; i++ {
		for _, b := range order {
			g := groups[b]
			if i >= len(g) {
				continue
			}
			if total+g[i].SalePrice > budgetCap {
				continue
			}
			total += g[i].SalePrice
			out.Selected = append(out.Selected, g[i])
		}
	}

	out.TotalSpend = total
	out.Remaining = budgetCap - total
	return out
}

// Interleave exposes the fair ordering on its own, before any cap applies.
func Interleave(deals []models.Deal) []models.Deal {
	var unlimited models.Cents
	for _, d := range deals {
		if d.SalePrice > 0 {
			unlimited += d.SalePrice
		}
	}
	return Allocate(deals, unlimited).Selected
}
