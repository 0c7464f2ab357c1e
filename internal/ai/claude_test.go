package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExtractReturnsToolInput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "k" || r.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("missing auth headers: %v", r.Header)
		}
		var req messagesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Error(err)
			return
		}
		if req.ToolChoice.Name != toolName || len(req.Tools) != 1 {
			t.Errorf("tool choice = %+v", req.ToolChoice)
		}
		if !strings.Contains(req.Messages[0].Content, "<page>") {
			t.Error("page content not sent")
		}
		_, _ = w.Write([]byte(`{"model":"m","content":[{"type":"tool_use","name":"record_listings","input":{"items":[{"name":"Tee","price":"$25"}]}}],"usage":{"input_tokens":10,"output_tokens":5}}`))
	}))
	defer srv.Close()

	c := NewClient("k", "m", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	raw, err := c.Extract(context.Background(), "find tops", map[string]any{"type": "object"}, "<div>Tee $25</div>")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(string(raw), `"Tee"`) {
		t.Errorf("raw = %s", raw)
	}
}

func TestExtractWithoutKey(t *testing.T) {
	c := NewClient("", "m")
	if _, err := c.Extract(context.Background(), "x", nil, "y"); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestExtractWithoutToolCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"sorry"}]}`))
	}))
	defer srv.Close()

	c := NewClient("k", "m", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	if _, err := c.Extract(context.Background(), "x", nil, "y"); err == nil {
		t.Fatal("expected an error when no tool_use block is returned")
	}
}
