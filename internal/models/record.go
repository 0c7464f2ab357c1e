package models

import "time"

// Record is the flattened shape handed to a record store.
type Record struct {
	Name        string   `json:"name" validate:"required"`
	Brand       string   `json:"brand" validate:"required"`
	Price       Cents    `json:"price" validate:"gt=0"`
	Sizes       []string `json:"sizes"`
	WantedSize  string   `json:"wantedSize"`
	URL         string   `json:"url" validate:"required,url"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	SessionLink string   `json:"sessionLink"`
	Month       string   `json:"month" validate:"required"`
}

type WriteAction string

const (
	ActionCreated WriteAction = "created"
	ActionUpdated WriteAction = "updated"
	ActionError   WriteAction = "error"
)

// WriteResult is the store's per-record answer.
type WriteResult struct {
	Action WriteAction `json:"action"`
	Ref    string      `json:"ref,omitempty"`
	URL    string      `json:"url"`
	Error  string      `json:"error,omitempty"`
}

// BudgetSummary reports spend of the records a user marked as selected.
type BudgetSummary struct {
	Month         string `json:"month"`
	Cap           Cents  `json:"cap"`
	SelectedSpend Cents  `json:"selectedSpend"`
	Remaining     Cents  `json:"remaining"`
	SelectedItems int    `json:"selectedItems"`
}

// NewBudgetSummary clamps remaining at zero.
func NewBudgetSummary(month string, budgetCap, spend Cents, items int) BudgetSummary {
	remaining := budgetCap - spend
	if remaining < 0 {
		remaining = 0
	}
	return BudgetSummary{Month: month, Cap: budgetCap, SelectedSpend: spend, Remaining: remaining, SelectedItems: items}
}

// MonthKey is the first day of t's month as an ISO date. Records and budget
// summaries are keyed by it.
func MonthKey(t time.Time) string {
	return t.Format("2006-01") + "-01"
}

// MonthOf keys a deal by the month it was discovered.
func MonthOf(d Deal) string {
	return MonthKey(d.DiscoveredAt)
}

// RecordsFrom converts allocated deals into store records.
func RecordsFrom(deals []Deal, wantedSize, sessionLink string) []Record {
	out := make([]Record, 0, len(deals))
	for _, d := range deals {
		var sizes []string
		if d.Size != "" {
			sizes = []string{d.Size}
		}
		out = append(out, Record{
			Name:        d.Title,
			Brand:       string(d.Brand),
			Price:       d.SalePrice,
			Sizes:       sizes,
			WantedSize:  wantedSize,
			URL:         d.ProductURL,
			ImageURL:    d.ImageURL,
			SessionLink: sessionLink,
			Month:       MonthOf(d),
		})
	}
	return out
}
