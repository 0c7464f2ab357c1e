package stealth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// RobotsChecker caches robots.txt per origin.
type RobotsChecker struct {
	client  *http.Client
	ttl     time.Duration
	enabled bool

	mu      sync.Mutex
	entries map[string]robotsEntry
}

type robotsEntry struct {
	data    *robotstxt.RobotsData
	expires time.Time
}

// NewRobotsChecker returns a checker; when disabled every URL is allowed.
func NewRobotsChecker(client *http.Client, enabled bool) *RobotsChecker {
	return &RobotsChecker{
		client:  client,
		ttl:     time.Hour,
		enabled: enabled,
		entries: make(map[string]robotsEntry),
	}
}

// Allowed reports whether userAgent may fetch rawURL. A robots.txt that
// cannot be fetched or parsed allows everything.
func (r *RobotsChecker) Allowed(ctx context.Context, userAgent, rawURL string) (bool, error) {
	if r == nil || !r.enabled {
		return true, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("parse url: %w", err)
	}

	data, err := r.rules(ctx, u.Scheme+"://"+u.Host)
	if err != nil {
		return true, nil
	}
	return data.TestAgent(u.Path, userAgent), nil
}

func (r *RobotsChecker) rules(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	r.mu.Lock()
	e, ok := r.entries[origin]
	r.mu.Unlock()
	if ok && time.Now().Before(e.expires) {
		return e.data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	r.mu.Lock()
	r.entries[origin] = robotsEntry{data: data, expires: time.Now().Add(r.ttl)}
	r.mu.Unlock()
	return data, nil
}
