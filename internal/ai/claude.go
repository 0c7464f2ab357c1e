// Package ai talks to the Anthropic Messages API for structured extraction.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lukman83/dealscout/internal/httputil"
	"github.com/lukman83/dealscout/internal/logging"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
	toolName         = "record_listings"
)

// ErrNoAPIKey is returned by every call when the client has no key.
var ErrNoAPIKey = errors.New("ANTHROPIC_API_KEY not set")

// Client extracts structured data from page content using forced tool use,
// so the answer always arrives as JSON matching the supplied schema.
type Client struct {
	apiKey     string
	model      string
	maxTokens  int
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.httpClient = h } }
func WithMaxTokens(n int) Option { return func(c *Client) { c.maxTokens = n } }
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.log = l } }

func NewClient(apiKey, model string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		model:      model,
		maxTokens:  4096,
		baseURL:    defaultBaseURL,
		httpClient: httputil.NewHTTPClient(nil, 90*time.Second),
		log:        logging.Discard(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type messagesRequest struct {
	Model      string     `json:"model"`
	MaxTokens  int        `json:"max_tokens"`
	System     string     `json:"system,omitempty"`
	Messages   []message  `json:"messages"`
	Tools      []tool     `json:"tools"`
	ToolChoice toolChoice `json:"tool_choice"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"input_schema"`
}

type toolChoice struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type messagesResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type  string          `json:"type"`
		Text  string          `json:"text"`
		Name  string          `json:"name"`
		Input json.RawMessage `json:"input"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

const systemPrompt = `You read e-commerce listing pages and report the products on them.
Only report products that are actually present in the supplied content. Never invent URLs or prices.
Copy prices exactly as displayed, including the currency symbol.`

// Extract sends instruction and content and returns the tool input JSON,
// which conforms to schema.
func (c *Client) Extract(ctx context.Context, instruction string, schema any, content string) (json.RawMessage, error) {
	const op = "ai.Extract"
	if c.apiKey == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNoAPIKey)
	}

	body := messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    systemPrompt,
		Messages: []message{{
			Role:    "user",
			Content: instruction + "\n\n<page>\n" + content + "\n</page>",
		}},
		Tools: []tool{{
			Name:        toolName,
			Description: "Record every product listing found on the page.",
			InputSchema: schema,
		}},
		ToolChoice: toolChoice{Type: "tool", Name: toolName},
	}

	header := http.Header{}
	header.Set("x-api-key", c.apiKey)
	header.Set("anthropic-version", anthropicVersion)

	var resp messagesResponse
	if err := httputil.DoJSON(ctx, c.httpClient, http.MethodPost, c.baseURL+"/v1/messages", header, body, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.log.Debug("extraction call finished",
		slog.String("op", op),
		slog.String("model", resp.Model),
		slog.Int("input_tokens", resp.Usage.InputTokens),
		slog.Int("output_tokens", resp.Usage.OutputTokens),
		slog.String("stop_reason", resp.StopReason),
	)

	for _, block := range resp.Content {
		if block.Type == "tool_use" && block.Name == toolName && len(block.Input) > 0 {
			return block.Input, nil
		}
	}
	return nil, fmt.Errorf("%s: response carried no %s tool call", op, toolName)
}
