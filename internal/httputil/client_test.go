package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/lukman83/dealscout/internal/models"
)

func TestDoJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"abc"}`))
	}))
	defer srv.Close()

	var out struct {
		ID string `json:"id"`
	}
	err := DoJSON(context.Background(), srv.Client(), http.MethodPost, srv.URL, nil, map[string]string{"k": "v"}, &out)
	if err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
	if out.ID != "abc" {
		t.Errorf("id = %q, want abc", out.ID)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestDoJSONRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer srv.Close()

	err := DoJSON(context.Background(), srv.Client(), http.MethodGet, srv.URL, nil, nil, nil)
	if !errors.Is(err, models.ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if !IsStatus(err, http.StatusTooManyRequests) {
		t.Errorf("IsStatus(429) = false")
	}
}

func TestStatusErrorOnlyMatchesRateLimitFor429(t *testing.T) {
	err := &StatusError{Code: http.StatusForbidden}
	if errors.Is(err, models.ErrRateLimited) {
		t.Error("403 must not match ErrRateLimited")
	}
}
