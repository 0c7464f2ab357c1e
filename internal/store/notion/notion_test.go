package notion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/lukman83/dealscout/internal/models"
)

type fakeNotion struct {
	mu      sync.Mutex
	created []map[string]any
	patched []string
}

func (f *fakeNotion) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /databases/db-1/query", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" || r.Header.Get("Notion-Version") != notionVersion {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req struct {
			Filter struct {
				URL struct {
					Equals string `json:"equals"`
				} `json:"url"`
				And []any `json:"and"`
			} `json:"filter"`
			StartCursor string `json:"start_cursor"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode query: %v", err)
			return
		}
		switch {
		case len(req.Filter.And) == 2 && req.StartCursor == "":
			w.Write([]byte(`{"results":[{"id":"a","properties":{"Price":{"number":25}}},{"id":"b","properties":{"Price":{"number":58.5}}}],"has_more":true,"next_cursor":"c2"}`))
		case len(req.Filter.And) == 2 && req.StartCursor == "c2":
			w.Write([]byte(`{"results":[{"id":"c","properties":{"Price":{"number":null}}}],"has_more":false}`))
		case req.Filter.URL.Equals == "https://shop.example/existing":
			w.Write([]byte(`{"results":[{"id":"p-old","url":"https://notion.so/p-old"}]}`))
		case req.Filter.URL.Equals == "https://shop.example/broken":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"message":"validation"}`))
		default:
			w.Write([]byte(`{"results":[]}`))
		}
	})
	mux.HandleFunc("POST /pages", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.created = append(f.created, body)
		f.mu.Unlock()
		w.Write([]byte(`{"id":"p-new","url":"https://notion.so/p-new"}`))
	})
	mux.HandleFunc("PATCH /pages/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["properties"][propSelected]; ok {
			t.Error("update must not touch Selected")
		}
		f.mu.Lock()
		f.patched = append(f.patched, r.PathValue("id"))
		f.mu.Unlock()
		w.Write([]byte(`{"id":"` + r.PathValue("id") + `"}`))
	})
	return mux
}

func newTestClient(t *testing.T) (*Client, *fakeNotion) {
	t.Helper()
	f := &fakeNotion{}
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	c, err := New("secret", "db-1", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	return c, f
}

func record(url string) models.Record {
	return models.Record{
		Name:        "Slip Dress",
		Brand:       "reformation",
		Price:       5800,
		Sizes:       []string{"M"},
		WantedSize:  "M",
		URL:         url,
		SessionLink: "https://browserbase.com/sessions/s1",
		Month:       "2025-09-01",
	}
}

func TestWriteUpsertsByURL(t *testing.T) {
	c, f := newTestClient(t)

	invalid := record("not a url")
	results, err := c.Write(context.Background(), []models.Record{
		record("https://shop.example/new"),
		record("https://shop.example/existing"),
		record("https://shop.example/broken"),
		invalid,
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("got %d results", len(results))
	}

	want := []models.WriteAction{models.ActionCreated, models.ActionUpdated, models.ActionError, models.ActionError}
	for i, w := range want {
		if results[i].Action != w {
			t.Errorf("result %d = %+v, want %s", i, results[i], w)
		}
	}
	if results[0].Ref != "https://notion.so/p-new" {
		t.Errorf("ref = %q", results[0].Ref)
	}
	if results[1].Ref != "p-old" {
		t.Errorf("update ref = %q", results[1].Ref)
	}

	if len(f.created) != 1 || len(f.patched) != 1 || f.patched[0] != "p-old" {
		t.Fatalf("created %d patched %v", len(f.created), f.patched)
	}
	props := f.created[0]["properties"].(map[string]any)
	if price := props[propPrice].(map[string]any)["number"].(float64); price != 58 {
		t.Errorf("price = %v, want dollars", price)
	}
	if sel := props[propSelected].(map[string]any)["checkbox"].(bool); sel {
		t.Error("new rows start unselected")
	}
	if img := props[propImageURL].(map[string]any)["url"]; img != nil {
		t.Errorf("empty image url should be null, got %v", img)
	}
}

func TestSummaryPaginates(t *testing.T) {
	c, _ := newTestClient(t)

	sum, err := c.Summary(context.Background(), "2025-09-01", 15000)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.SelectedItems != 3 || sum.SelectedSpend != 8350 || sum.Remaining != 6650 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New("", "db"); err == nil {
		t.Error("expected error without token")
	}
	if _, err := New("tok", ""); err == nil {
		t.Error("expected error without database")
	}
}
