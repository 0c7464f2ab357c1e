// Package notion writes records to a Notion database over its REST API.
package notion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lukman83/dealscout/internal/httputil"
	"github.com/lukman83/dealscout/internal/logging"
	"github.com/lukman83/dealscout/internal/models"
	"github.com/lukman83/dealscout/internal/store"
)

const (
	defaultBaseURL = "https://api.notion.com/v1"
	notionVersion  = "2022-06-28"
)

// Property names of the wardrobe database.
const (
	propName        = "Name"
	propBrand       = "Brand"
	propPrice       = "Price"
	propSizes       = "Sizes"
	propWantedSize  = "Wanted Size"
	propURL         = "URL"
	propImageURL    = "Image URL"
	propSessionLink = "Session Link"
	propSelected    = "Selected"
	propMonth       = "Month"
)

type Client struct {
	token      string
	databaseID string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

var (
	_ store.Writer   = (*Client)(nil)
	_ store.Selector = (*Client)(nil)
)

type Option func(*Client)

func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.httpClient = h } }
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.log = l } }

// New requires both an integration token and the target database id.
func New(token, databaseID string, opts ...Option) (*Client, error) {
	if token == "" || databaseID == "" {
		return nil, errors.New("notion: NOTION_API_KEY and NOTION_DATABASE_ID are required")
	}
	c := &Client{
		token:      token,
		databaseID: databaseID,
		baseURL:    defaultBaseURL,
		httpClient: httputil.NewHTTPClient(nil, 30*time.Second),
		log:        logging.Discard(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

type page struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Properties struct {
		Price struct {
			Number *float64 `json:"number"`
		} `json:"Price"`
	} `json:"properties"`
}

type queryRequest struct {
	Filter      any    `json:"filter"`
	PageSize    int    `json:"page_size,omitempty"`
	StartCursor string `json:"start_cursor,omitempty"`
}

type queryResponse struct {
	Results    []page `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// Write upserts each record keyed by its URL. A record that fails validation
// or whose request fails gets an error result; the rest still go through.
// Only cancellation stops the batch early.
func (c *Client) Write(ctx context.Context, records []models.Record) ([]models.WriteResult, error) {
	const op = "notion.Write"
	log := c.log.With(slog.String("op", op))

	out := make([]models.WriteResult, 0, len(records))
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("%s: %w", op, err)
		}
		if err := store.Check(r); err != nil {
			out = append(out, store.Rejected(r, err))
			continue
		}
		res, err := c.upsert(ctx, r)
		if err != nil {
			log.Warn("upsert failed", slog.String("url", r.URL), logging.Err(err))
			out = append(out, store.Rejected(r, err))
			continue
		}
		out = append(out, res)
	}
	return out, nil
}

func (c *Client) upsert(ctx context.Context, r models.Record) (models.WriteResult, error) {
	existing, err := c.findByURL(ctx, r.URL)
	if err != nil {
		return models.WriteResult{}, fmt.Errorf("lookup: %w", err)
	}

	props := properties(r)
	var p page
	if existing != nil {
		// Selected belongs to the user; an update never resets it.
		err = httputil.DoJSON(ctx, c.httpClient, http.MethodPatch, c.baseURL+"/pages/"+existing.ID,
			c.headers(), map[string]any{"properties": props}, &p)
		if err != nil {
			return models.WriteResult{}, fmt.Errorf("update page: %w", err)
		}
		return models.WriteResult{Action: models.ActionUpdated, Ref: ref(p, existing.ID), URL: r.URL}, nil
	}

	props[propSelected] = map[string]any{"checkbox": false}
	body := map[string]any{
		"parent":     map[string]string{"database_id": c.databaseID},
		"properties": props,
	}
	if err := httputil.DoJSON(ctx, c.httpClient, http.MethodPost, c.baseURL+"/pages", c.headers(), body, &p); err != nil {
		return models.WriteResult{}, fmt.Errorf("create page: %w", err)
	}
	return models.WriteResult{Action: models.ActionCreated, Ref: ref(p, p.ID), URL: r.URL}, nil
}

func (c *Client) findByURL(ctx context.Context, url string) (*page, error) {
	req := queryRequest{
		Filter:   map[string]any{"property": propURL, "url": map[string]string{"equals": url}},
		PageSize: 1,
	}
	var resp queryResponse
	if err := httputil.DoJSON(ctx, c.httpClient, http.MethodPost, c.queryURL(), c.headers(), req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	return &resp.Results[0], nil
}

// Summary sums Price over rows of month that the user ticked as Selected.
func (c *Client) Summary(ctx context.Context, month string, budgetCap models.Cents) (models.BudgetSummary, error) {
	const op = "notion.Summary"
	filter := map[string]any{
		"and": []any{
			map[string]any{"property": propSelected, "checkbox": map[string]bool{"equals": true}},
			map[string]any{"property": propMonth, "date": map[string]string{"equals": month}},
		},
	}

	var (
		spend  models.Cents
		items  int
		cursor string
	)
	for {
		var resp queryResponse
		req := queryRequest{Filter: filter, PageSize: 100, StartCursor: cursor}
		if err := httputil.DoJSON(ctx, c.httpClient, http.MethodPost, c.queryURL(), c.headers(), req, &resp); err != nil {
			return models.BudgetSummary{}, fmt.Errorf("%s: %w", op, err)
		}
		for _, p := range resp.Results {
			items++
			if n := p.Properties.Price.Number; n != nil {
				spend += models.FromDollars(*n)
			}
		}
		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		cursor = resp.NextCursor
	}
	return models.NewBudgetSummary(month, budgetCap, spend, items), nil
}

// SetSelected ticks or clears the Selected box on the row for url.
func (c *Client) SetSelected(ctx context.Context, url string, selected bool) error {
	const op = "notion.SetSelected"
	existing, err := c.findByURL(ctx, url)
	if err != nil {
		return fmt.Errorf("%s: lookup: %w", op, err)
	}
	if existing == nil {
		return fmt.Errorf("%s: no row for %s", op, url)
	}
	body := map[string]any{"properties": map[string]any{propSelected: map[string]any{"checkbox": selected}}}
	if err := httputil.DoJSON(ctx, c.httpClient, http.MethodPatch, c.baseURL+"/pages/"+existing.ID, c.headers(), body, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Client) queryURL() string {
	return c.baseURL + "/databases/" + c.databaseID + "/query"
}

func (c *Client) headers() http.Header {
	h := httputil.BearerHeaders(c.token)
	h.Set("Notion-Version", notionVersion)
	return h
}

func properties(r models.Record) map[string]any {
	sizes := make([]map[string]string, 0, len(r.Sizes))
	for _, s := range r.Sizes {
		sizes = append(sizes, map[string]string{"name": s})
	}
	props := map[string]any{
		propName:        map[string]any{"title": []any{map[string]any{"text": map[string]string{"content": r.Name}}}},
		propBrand:       map[string]any{"select": map[string]string{"name": r.Brand}},
		propPrice:       map[string]any{"number": r.Price.Dollars()},
		propSizes:       map[string]any{"multi_select": sizes},
		propURL:         map[string]any{"url": r.URL},
		propImageURL:    map[string]any{"url": nullable(r.ImageURL)},
		propSessionLink: map[string]any{"url": nullable(r.SessionLink)},
		propMonth:       map[string]any{"date": map[string]string{"start": r.Month}},
	}
	if r.WantedSize != "" {
		props[propWantedSize] = map[string]any{"select": map[string]string{"name": r.WantedSize}}
	}
	return props
}

// nullable maps "" to JSON null, which Notion requires for empty url fields.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func ref(p page, fallback string) string {
	if p.URL != "" {
		return p.URL
	}
	return fallback
}
