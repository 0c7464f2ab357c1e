package budget

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/lukman83/dealscout/internal/models"
)

func deal(brand models.BrandID, dollars int) models.Deal {
	return models.Deal{
		ID:        fmt.Sprintf("%s-%d", brand, dollars),
		Brand:     brand,
		SalePrice: models.Cents(dollars * 100),
	}
}

func prices(ds []models.Deal) []models.Cents {
	out := make([]models.Cents, len(ds))
	for i, d := range ds {
		out[i] = d.SalePrice / 100
	}
	return out
}

func equal(a, b []models.Cents) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestScenarioTwoBrands(t *testing.T) {
	deals := []models.Deal{
		deal(models.Aritzia, 68), deal(models.Aritzia, 25),
		deal(models.Reformation, 78), deal(models.Reformation, 58),
	}

	if got := prices(Interleave(deals)); !equal(got, []models.Cents{25, 58, 68, 78}) {
		t.Errorf("interleave = %v, want [25 58 68 78]", got)
	}

	out := Allocate(deals, 15000)
	if got := prices(out.Selected); !equal(got, []models.Cents{25, 58}) {
		t.Errorf("selected = %v, want [25 58]", got)
	}
	if out.TotalSpend != 8300 || out.Remaining != 6700 {
		t.Errorf("spend = %d remaining = %d, want 8300 / 6700", out.TotalSpend, out.Remaining)
	}
}

func TestGreedySkipContinuesWalk(t *testing.T) {
	deals := []models.Deal{
		deal(models.Aritzia, 60), deal(models.Reformation, 50), deal(models.FreePeople, 30),
	}
	out := Allocate(deals, 10000)
	if got := prices(out.Selected); !equal(got, []models.Cents{60, 30}) {
		t.Errorf("selected = %v, want [60 30]", got)
	}
	if out.TotalSpend != 9000 {
		t.Errorf("spend = %d, want 9000", out.TotalSpend)
	}
}

func TestFairInterleave(t *testing.T) {
	deals := []models.Deal{
		deal("a", 10), deal("a", 20), deal("a", 30), deal("b", 40),
	}
	got := Interleave(deals)
	brandsInOrder := make([]models.BrandID, len(got))
	for i, d := range got {
		brandsInOrder[i] = d.Brand
	}
	want := []models.BrandID{"a", "b", "a", "a"}
	for i := range want {
		if brandsInOrder[i] != want[i] {
			t.Fatalf("order = %v, want %v", brandsInOrder, want)
		}
	}
}

func TestEmptyAndZeroCap(t *testing.T) {
	if out := Allocate(nil, 10000); len(out.Selected) != 0 || out.Remaining != 10000 {
		t.Errorf("empty deals: %+v", out)
	}
	out := Allocate([]models.Deal{deal("a", 10)}, 0)
	if len(out.Selected) != 0 || out.TotalSpend != 0 || out.Remaining != 0 {
		t.Errorf("zero cap: %+v", out)
	}
	if out.Selected == nil {
		t.Error("selected should be an empty slice, not nil")
	}
}

func TestDropsOverCapAndNonPositive(t *testing.T) {
	deals := []models.Deal{deal("a", 200), {ID: "z", Brand: "a"}, deal("a", 40)}
	out := Allocate(deals, 10000)
	if got := prices(out.Selected); !equal(got, []models.Cents{40}) {
		t.Errorf("selected = %v, want [40]", got)
	}
}

func TestBudgetInvariantHoldsForRandomInput(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	brandIDs := []models.BrandID{models.Aritzia, models.Reformation, models.FreePeople}
	for round := 0; round < 200; round++ {
		var deals []models.Deal
		for i := 0; i < r.IntN(30); i++ {
			deals = append(deals, models.Deal{
				ID:        fmt.Sprintf("%d-%d", round, i),
				Brand:     brandIDs[r.IntN(len(brandIDs))],
				SalePrice: models.Cents(r.IntN(20000)),
			})
		}
		budgetCap := models.Cents(r.IntN(40000))
		out := Allocate(deals, budgetCap)

		var sum models.Cents
		for _, d := range out.Selected {
			if d.SalePrice > budgetCap || d.SalePrice <= 0 {
				t.Fatalf("round %d: admitted %d with cap %d", round, d.SalePrice, budgetCap)
			}
			sum += d.SalePrice
		}
		if sum != out.TotalSpend || sum > budgetCap {
			t.Fatalf("round %d: sum %d, total %d, cap %d", round, sum, out.TotalSpend, budgetCap)
		}
		if out.Remaining != budgetCap-sum {
			t.Fatalf("round %d: remaining %d, want %d", round, out.Remaining, budgetCap-sum)
		}
	}
}
