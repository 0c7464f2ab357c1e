package platform

import (
	"context"
	"net/url"
	"strings"

	"github.com/lukman83/dealscout/internal/models"
)

// Page is one browser tab. A Page is owned by a single brand pass and must
// not be navigated from two goroutines at once.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	// ClickText clicks the first visible button, link or option whose text
	// equals label (case-insensitive). It reports false if nothing matched.
	ClickText(ctx context.Context, label string) (bool, error)
	Close() error
}

// Session is one live remote browser. It is billed externally, so every
// acquired Session must be closed.
type Session interface {
	ID() string
	// Ref is the human-facing link to the session (replay URL or id).
	Ref() string
	NewPage(ctx context.Context) (Page, error)
	Close(ctx context.Context) error
}

// SessionOptions describe the identity a new session should present.
type SessionOptions struct {
	RunID     string
	UserAgent string
	Width     int
	Height    int
	Metadata  map[string]string
}

// Provider opens browser sessions.
type Provider interface {
	Name() string
	Open(ctx context.Context, opts SessionOptions) (Session, error)
}

// Snapshot is the rendered state of a page at extraction time.
type Snapshot struct {
	URL   string
	Title string
	HTML  string
}

// Capture reads a Snapshot from a live page.
func Capture(ctx context.Context, p Page) (*Snapshot, error) {
	html, err := p.HTML(ctx)
	if err != nil {
		return nil, err
	}
	title, _ := p.Title(ctx)
	u, _ := p.URL(ctx)
	return &Snapshot{URL: u, Title: title, HTML: html}, nil
}

// Resolve turns a relative href into an absolute URL against the snapshot.
func (s *Snapshot) Resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "data:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	base, err := url.Parse(s.URL)
	if err != nil || base.Host == "" {
		if ref.IsAbs() {
			return ref.String()
		}
		return ""
	}
	return base.ResolveReference(ref).String()
}

// Target is what an extraction strategy is asked to find.
type Target struct {
	Brand    models.BrandID
	Query    string
	Size     string
	MaxItems int
}

// Strategy turns a rendered page into raw items.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, snap *Snapshot, t Target) ([]models.RawExtractedItem, error)
}
