package models

import (
	"context"
	"errors"
)

// ShopResponse is the outward shape returned to the presentation layer.
type ShopResponse struct {
	RunID    string           `json:"runId"`
	PerBrand []BrandRunResult `json:"perBrand"`
	Totals   struct {
		Upserts int `json:"upserts"`
	} `json:"totals"`
	Budget struct {
		Cap           Cents `json:"cap"`
		SelectedSpend Cents `json:"selectedSpend"`
		Remaining     Cents `json:"remaining"`
	} `json:"budget"`
	Items []Deal `json:"items"`
	// Interrupted is set when the run stopped early and the result is partial.
	Interrupted string `json:"interrupted,omitempty"`
}

// NewShopResponse flattens a run result.
func NewShopResponse(r *RunResult) ShopResponse {
	var resp ShopResponse
	resp.RunID = r.RunID
	resp.PerBrand = r.PerBrand
	resp.Totals.Upserts = r.Upserts()
	resp.Budget.Cap = r.Allocation.Cap
	resp.Budget.SelectedSpend = r.Allocation.TotalSpend
	resp.Budget.Remaining = r.Allocation.Remaining
	resp.Items = r.Allocation.Selected
	if resp.Items == nil {
		resp.Items = []Deal{}
	}
	return resp
}

// NewPartialShopResponse flattens the result of a run that stopped early and
// records why.
func NewPartialShopResponse(r *RunResult, cause error) ShopResponse {
	resp := NewShopResponse(r)
	switch {
	case cause == nil:
	case errors.Is(cause, context.DeadlineExceeded):
		resp.Interrupted = "run timed out"
	case errors.Is(cause, context.Canceled):
		resp.Interrupted = "run cancelled"
	default:
		resp.Interrupted = cause.Error()
	}
	return resp
}
