// Package browserbase opens remote browser sessions on Browserbase and
// drives them over CDP.
package browserbase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lukman83/dealscout/internal/browser"
	"github.com/lukman83/dealscout/internal/httputil"
	"github.com/lukman83/dealscout/internal/logging"
	"github.com/lukman83/dealscout/internal/platform"
)

const (
	DefaultBaseURL = "https://api.browserbase.com"
	sessionLinkFmt = "https://browserbase.com/sessions/%s"
)

// ConnectFunc attaches to a created session's CDP endpoint.
type ConnectFunc func(ctx context.Context, connectURL, id, ref string, identity browser.Identity, release func(context.Context) error, log *slog.Logger) (platform.Session, error)

type Provider struct {
	apiKey     string
	projectID  string
	baseURL    string
	httpClient *http.Client
	connect    ConnectFunc
	log        *slog.Logger
}

var _ platform.Provider = (*Provider)(nil)

type Option func(*Provider)

func WithBaseURL(u string) Option { return func(p *Provider) { p.baseURL = u } }
func WithHTTPClient(h *http.Client) Option { return func(p *Provider) { p.httpClient = h } }
func WithConnect(fn ConnectFunc) Option { return func(p *Provider) { p.connect = fn } }
func WithLogger(l *slog.Logger) Option { return func(p *Provider) { p.log = l } }

func New(apiKey, projectID string, opts ...Option) (*Provider, error) {
	if apiKey == "" || projectID == "" {
		return nil, errors.New("browserbase: BROWSERBASE_API_KEY and BROWSERBASE_PROJECT_ID are required")
	}
	p := &Provider{
		apiKey:     apiKey,
		projectID:  projectID,
		baseURL:    DefaultBaseURL,
		httpClient: httputil.NewHTTPClient(nil, 30*time.Second),
		log:        logging.Discard(),
	}
	for _, o := range opts {
		o(p)
	}
	if p.connect == nil {
		p.connect = func(ctx context.Context, connectURL, id, ref string, identity browser.Identity, release func(context.Context) error, log *slog.Logger) (platform.Session, error) {
			return browser.Connect(ctx, connectURL, id, ref, identity, release, log)
		}
	}
	return p, nil
}

func (p *Provider) Name() string { return "browserbase" }

type viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type createRequest struct {
	ProjectID       string `json:"projectId"`
	BrowserSettings struct {
		Viewport    *viewport `json:"viewport,omitempty"`
		Fingerprint struct {
			Devices          []string `json:"devices"`
			OperatingSystems []string `json:"operatingSystems,omitempty"`
			Locales          []string `json:"locales"`
		} `json:"fingerprint"`
	} `json:"browserSettings"`
	UserMetadata map[string]string `json:"userMetadata,omitempty"`
}

type createResponse struct {
	ID         string `json:"id"`
	ConnectURL string `json:"connectUrl"`
}

// Open creates a session and connects to it. A connect failure releases the
// session it just created. A 429 surfaces as models.ErrRateLimited so the
// session manager can back off.
func (p *Provider) Open(ctx context.Context, opts platform.SessionOptions) (platform.Session, error) {
	const op = "browserbase.Open"

	var req createRequest
	req.ProjectID = p.projectID
	if opts.Width > 0 && opts.Height > 0 {
		req.BrowserSettings.Viewport = &viewport{Width: opts.Width, Height: opts.Height}
	}
	req.BrowserSettings.Fingerprint.Devices = []string{"desktop"}
	req.BrowserSettings.Fingerprint.Locales = []string{"en-US"}
	req.UserMetadata = map[string]string{}
	for k, v := range opts.Metadata {
		req.UserMetadata[k] = v
	}
	if opts.RunID != "" {
		req.UserMetadata["runId"] = opts.RunID
	}

	var created createResponse
	if err := httputil.DoJSON(ctx, p.httpClient, http.MethodPost, p.baseURL+"/v1/sessions", p.headers(), req, &created); err != nil {
		return nil, fmt.Errorf("%s: create session: %w", op, err)
	}
	if created.ID == "" || created.ConnectURL == "" {
		return nil, fmt.Errorf("%s: create session: empty id or connect url", op)
	}

	log := p.log.With(slog.String("session", created.ID))
	release := func(ctx context.Context) error { return p.release(ctx, created.ID) }
	identity := browser.Identity{
		UserAgent:      opts.UserAgent,
		AcceptLanguage: "en-US,en;q=0.9",
		Width:          opts.Width,
		Height:         opts.Height,
	}

	s, err := p.connect(ctx, created.ConnectURL, created.ID, SessionLink(created.ID), identity, release, log)
	if err != nil {
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			log.Warn("release after failed connect", logging.Err(rerr))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

// SessionLink is the dashboard replay URL for a session id.
func SessionLink(id string) string {
	return fmt.Sprintf(sessionLinkFmt, id)
}

func (p *Provider) release(ctx context.Context, id string) error {
	body := map[string]string{"projectId": p.projectID, "status": "REQUEST_RELEASE"}
	if err := httputil.DoJSON(ctx, p.httpClient, http.MethodPost, p.baseURL+"/v1/sessions/"+id, p.headers(), body, nil); err != nil {
		return fmt.Errorf("browserbase: release %s: %w", id, err)
	}
	return nil
}

func (p *Provider) headers() http.Header {
	h := http.Header{}
	h.Set("X-BB-API-Key", p.apiKey)
	return h
}
