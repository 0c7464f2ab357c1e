package stealth

import (
	"bufio"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
)

// ProxyProvider yields an upstream proxy for a browser launch or an HTTP
// transport.
type ProxyProvider interface {
	URL() *url.URL
	Name() string
}

// ProxyRotator cycles through providers.
type ProxyRotator struct {
	providers []ProxyProvider
	mu        sync.Mutex
	idx       int
}

// NewProxyRotator returns nil when there is nothing to rotate.
func NewProxyRotator(providers []ProxyProvider) *ProxyRotator {
	if len(providers) == 0 {
		return nil
	}
	return &ProxyRotator{providers: providers}
}

// Next returns the next provider in round-robin order.
func (p *ProxyRotator) Next() ProxyProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	provider := p.providers[p.idx%len(p.providers)]
	p.idx++
	return provider
}

// Transport routes through the next proxy with keep-alives off so every
// request may exit from a new address.
func (p *ProxyRotator) Transport() http.RoundTripper {
	return &http.Transport{
		Proxy:             http.ProxyURL(p.Next().URL()),
		DisableKeepAlives: true,
	}
}

// DecodoProvider builds Decodo residential gateway credentials.
type DecodoProvider struct {
	Username string
	Password string
	Country  string
	City     string
	// Session pins one exit IP for the life of a browser session.
	Session string
}

func (d *DecodoProvider) Name() string {
	if d.Session != "" {
		return "decodo-sticky"
	}
	return "decodo-rotating"
}

func (d *DecodoProvider) URL() *url.URL {
	user := fmt.Sprintf("user-%s-country-%s", d.Username, d.Country)
	if d.City != "" {
		user += "-city-" + d.City
	}
	if d.Session != "" {
		user += "-session-" + d.Session + "-sessionduration-30"
	}
	return &url.URL{
		Scheme: "http",
		User:   url.UserPassword(user, d.Password),
		Host:   "gate.decodo.com:7000",
	}
}

// StaticProvider is a fixed proxy URL.
type StaticProvider struct {
	u     *url.URL
	label string
}

func (s *StaticProvider) URL() *url.URL { return s.u }
func (s *StaticProvider) Name() string  { return s.label }

// LoadProxyFile reads one proxy URL per line; blanks and # comments are skipped.
func LoadProxyFile(path string) ([]ProxyProvider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open proxy file: %w", err)
	}
	defer f.Close()

	var out []ProxyProvider
	sc := bufio.NewScanner(f)
	for line := 1; sc.Scan(); line++ {
		raw := strings.TrimSpace(sc.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("proxy file line %d: invalid url %q", line, raw)
		}
		out = append(out, &StaticProvider{u: u, label: fmt.Sprintf("custom-%d", line)})
	}
	return out, sc.Err()
}
