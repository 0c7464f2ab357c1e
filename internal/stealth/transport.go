package stealth

import (
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
)

// Transport is an http.RoundTripper for the few plain HTTP fetches made
// against retailer origins (robots.txt): it applies a fingerprint, waits on
// the limiter and optionally exits through a proxy.
type Transport struct {
	Base        http.RoundTripper
	Fingerprint *FingerprintPool
	Proxy       *ProxyRotator
	RateLimiter *rate.Limiter
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())

	if t.Fingerprint != nil {
		fp := t.Fingerprint.Next()
		req.Header.Set("User-Agent", fp.UserAgent)
		for key, vals := range fp.Headers {
			if req.Header.Get(key) != "" {
				continue
			}
			for _, v := range vals {
				req.Header.Add(key, v)
			}
		}
	}

	if t.RateLimiter != nil {
		if err := t.RateLimiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	base := t.Base
	if t.Proxy != nil {
		base = t.Proxy.Transport()
	}
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
