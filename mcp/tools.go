package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lukman83/dealscout/internal/logging"
	"github.com/lukman83/dealscout/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func (t *Tools) register(s *server.MCPServer) {
	// search_and_extract
	searchTool := mcp.NewTool("search_and_extract",
		mcp.WithDescription("Search retailer sale pages for a clothing query and pick the best deals within a budget"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What to look for, e.g. \"wide leg jeans\""),
		),
		mcp.WithString("brands",
			mcp.Required(),
			mcp.Description("Comma separated brands: aritzia, reformation, free-people"),
		),
		mcp.WithString("size",
			mcp.Description("Wanted size, e.g. M or 28"),
		),
		mcp.WithNumber("cap",
			mcp.Description("Budget cap in dollars (default: configured cap)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results per brand (default: 6)"),
		),
		mcp.WithNumber("max_price",
			mcp.Description("Drop single items above this price in dollars"),
		),
		mcp.WithBoolean("save",
			mcp.Description("Write the selected deals to the record store"),
		),
	)
	s.AddTool(searchTool, t.handleSearchAndExtract)

	// write_records
	writeTool := mcp.NewTool("write_records",
		mcp.WithDescription("Upsert wardrobe records into the record store, keyed by product URL"),
		mcp.WithString("items",
			mcp.Required(),
			mcp.Description(`JSON array of records: [{"name","brand","price","sizes","wantedSize","url","imageUrl","sessionLink","month"}]`),
		),
	)
	s.AddTool(writeTool, t.handleWriteRecords)

	// budget_summary
	budgetTool := mcp.NewTool("budget_summary",
		mcp.WithDescription("Sum the selected spend for a month against a cap"),
		mcp.WithString("month",
			mcp.Description("First day of the month, YYYY-MM-01 (default: current month)"),
		),
		mcp.WithNumber("cap",
			mcp.Description("Budget cap in dollars (default: configured cap)"),
		),
	)
	s.AddTool(budgetTool, t.handleBudgetSummary)
}

func (t *Tools) handleSearchAndExtract(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	var brands []models.BrandID
	for _, name := range strings.Split(request.GetString("brands", ""), ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		id, err := models.ParseBrand(name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		brands = append(brands, id)
	}

	budgetCap := models.FromDollars(request.GetFloat("cap", t.DefaultCap.Dollars()))
	req, err := models.NewScrapeRequest(
		query,
		request.GetString("size", ""),
		brands,
		budgetCap,
		request.GetInt("limit", 0),
		models.FromDollars(request.GetFloat("max_price", 0)),
	)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	save := request.GetBool("save", false) && t.Store != nil
	res, err := t.Runner.Run(ctx, req, save)
	if err != nil && res != nil {
		t.log().Warn("run interrupted, returning partial result", slog.String("op", "mcp.search_and_extract"), logging.Err(err))
		return jsonResult(models.NewPartialShopResponse(res, err))
	}
	if err != nil {
		t.log().Error("run failed", slog.String("op", "mcp.search_and_extract"), logging.Err(err))
		return mcp.NewToolResultError(fmt.Sprintf("run error: %v", err)), nil
	}
	return jsonResult(models.NewShopResponse(res))
}

func (t *Tools) handleWriteRecords(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.Store == nil {
		return mcp.NewToolResultError("no record store configured"), nil
	}

	var records []models.Record
	if err := json.Unmarshal([]byte(request.GetString("items", "")), &records); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("items must be a JSON array of records: %v", err)), nil
	}
	if len(records) == 0 {
		return mcp.NewToolResultError("items is empty"), nil
	}

	results, err := t.Store.Write(ctx, records)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("store error: %v", err)), nil
	}
	return jsonResult(results)
}

func (t *Tools) handleBudgetSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.Store == nil {
		return mcp.NewToolResultError("no record store configured"), nil
	}

	month := request.GetString("month", "")
	if month == "" {
		month = models.MonthKey(time.Now())
	} else if _, err := time.Parse(time.DateOnly, month); err != nil {
		return mcp.NewToolResultError("month must be YYYY-MM-DD"), nil
	}
	budgetCap := models.FromDollars(request.GetFloat("cap", t.DefaultCap.Dollars()))
	if budgetCap < 0 {
		return mcp.NewToolResultError("cap must not be negative"), nil
	}

	sum, err := t.Store.Summary(ctx, month, budgetCap)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("store error: %v", err)), nil
	}
	return jsonResult(sum)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal error: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
