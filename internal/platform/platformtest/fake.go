// Package platformtest provides in-memory browser fakes for tests.
package platformtest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/lukman83/dealscout/internal/platform"
)

// Page is a scripted platform.Page. Titles are consumed one per Title call;
// the last title repeats once the script runs out.
type Page struct {
	mu sync.Mutex

	Titles []string
	Body   string
	// Pages maps a URL to the HTML served after navigating there. When set
	// it overrides Body.
	Pages map[string]string
	// NavErr maps a URL to the error Navigate returns for it.
	NavErr map[string]error
	// Clickable lists labels ClickText will accept.
	Clickable []string

	Visited []string
	Clicked []string
	Closed  bool

	current string
	titleN  int
}

var _ platform.Page = (*Page)(nil)

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Visited = append(p.Visited, url)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := p.NavErr[url]; ok {
		return err
	}
	p.current = url
	return nil
}

func (p *Page) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Titles) == 0 {
		return "", nil
	}
	i := p.titleN
	if i >= len(p.Titles) {
		i = len(p.Titles) - 1
	}
	p.titleN++
	return p.Titles[i], nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Pages != nil {
		if html, ok := p.Pages[p.current]; ok {
			return html, nil
		}
	}
	return p.Body, nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, nil
}

func (p *Page) ClickText(ctx context.Context, label string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.Clickable {
		if strings.EqualFold(c, label) {
			p.Clicked = append(p.Clicked, label)
			return true, nil
		}
	}
	return false, nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

// Session hands out pages from NewPageFunc and records closes.
type Session struct {
	mu          sync.Mutex
	SessionID   string
	NewPageFunc func() (platform.Page, error)
	Pages       []platform.Page
	Closes      int
}

var _ platform.Session = (*Session)(nil)

func (s *Session) ID() string  { return s.SessionID }
func (s *Session) Ref() string { return "fake://" + s.SessionID }

func (s *Session) NewPage(ctx context.Context) (platform.Page, error) {
	if s.NewPageFunc == nil {
		return nil, errors.New("no pages scripted")
	}
	p, err := s.NewPageFunc()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.Pages = append(s.Pages, p)
	s.mu.Unlock()
	return p, nil
}

func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closes++
	return nil
}

// CloseCount is safe to call concurrently with Close.
func (s *Session) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Closes
}

// Provider returns Errs in order, then Session.
type Provider struct {
	mu      sync.Mutex
	Errs    []error
	Session *Session
	Opens   int
	Opts    []platform.SessionOptions
}

var _ platform.Provider = (*Provider)(nil)

func (p *Provider) Name() string { return "fake" }

func (p *Provider) Open(ctx context.Context, opts platform.SessionOptions) (platform.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Opts = append(p.Opts, opts)
	n := p.Opens
	p.Opens++
	if n < len(p.Errs) && p.Errs[n] != nil {
		return nil, p.Errs[n]
	}
	return p.Session, nil
}
