// Package browser adapts rod to the platform Page and Session interfaces.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	rodstealth "github.com/go-rod/stealth"
	"github.com/lukman83/dealscout/internal/logging"
	"github.com/lukman83/dealscout/internal/platform"
)

// settleTimeout bounds the wait for a page to stop mutating after load.
const settleTimeout = 10 * time.Second

// clickTextJS clicks the first visible control whose trimmed text equals the
// label. Native <option>s are selected through their <select>.
const clickTextJS = `(label) => {
	const want = label.trim().toLowerCase();
	const els = document.querySelectorAll('button, a, [role="option"], [role="menuitem"], [role="button"], option, li, label');
	for (const el of els) {
		const text = (el.innerText || el.textContent || '').trim().toLowerCase();
		if (text !== want) continue;
		if (el.tagName === 'OPTION') {
			const sel = el.closest('select');
			if (!sel) continue;
			sel.value = el.value;
			sel.dispatchEvent(new Event('change', { bubbles: true }));
			return true;
		}
		const r = el.getBoundingClientRect();
		if (r.width === 0 || r.height === 0) continue;
		el.click();
		return true;
	}
	return false;
}`

// Identity is what every new tab presents.
type Identity struct {
	UserAgent      string
	AcceptLanguage string
	Width          int
	Height         int
}

// Session is a connected rod browser. Closing it closes the browser and then
// runs the provider's release hook.
type Session struct {
	id       string
	ref      string
	browser  *rod.Browser
	identity Identity
	release  func(context.Context) error
	log      *slog.Logger

	once     sync.Once
	closeErr error
}

var _ platform.Session = (*Session)(nil)

// Connect attaches to a CDP endpoint. release may be nil. ctx and
// connectTimeout bound the attach; the connection itself outlives ctx and
// ends with Close.
func Connect(ctx context.Context, controlURL, id, ref string, identity Identity, release func(context.Context) error, log *slog.Logger) (*Session, error) {
	if log == nil {
		log = logging.Discard()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := dial(ctx, controlURL)
	if err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	return &Session{
		id:       id,
		ref:      ref,
		browser:  b,
		identity: identity,
		release:  release,
		log:      log.With(slog.String("session", id)),
	}, nil
}

func (s *Session) ID() string  { return s.id }
func (s *Session) Ref() string { return s.ref }

// NewPage opens a tab with the stealth init script and the session identity
// applied before any navigation.
func (s *Session) NewPage(ctx context.Context) (platform.Page, error) {
	p, err := rodstealth.Page(s.browser.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}

	if s.identity.UserAgent != "" {
		err = p.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      s.identity.UserAgent,
			AcceptLanguage: s.identity.AcceptLanguage,
		})
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("set user agent: %w", err)
		}
	}
	if s.identity.Width > 0 && s.identity.Height > 0 {
		err = p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             s.identity.Width,
			Height:            s.identity.Height,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("set viewport: %w", err)
		}
	}
	return &Page{page: p, log: s.log}, nil
}

// Close is idempotent.
func (s *Session) Close(ctx context.Context) error {
	s.once.Do(func() {
		var errs []error
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		if s.release != nil {
			if err := s.release(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// Page is one rod tab.
type Page struct {
	page *rod.Page
	log  *slog.Logger
}

var _ platform.Page = (*Page)(nil)

// Navigate loads url and waits for the DOM to settle. A page that never
// settles is still usable; only the load itself must succeed.
func (p *Page) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		return err
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("wait load: %w", err)
	}
	p.settle(ctx)
	return nil
}

func (p *Page) Title(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

func (p *Page) ClickText(ctx context.Context, label string) (bool, error) {
	res, err := p.page.Context(ctx).Eval(clickTextJS, label)
	if err != nil {
		return false, fmt.Errorf("click %q: %w", label, err)
	}
	if !res.Value.Bool() {
		return false, nil
	}
	p.settle(ctx)
	return true, nil
}

// Close runs even after the pass's context is cancelled.
func (p *Page) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.page.Context(ctx).Close()
}

func (p *Page) settle(ctx context.Context) {
	sctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	if err := p.page.Context(sctx).WaitDOMStable(time.Second, 0.1); err != nil {
		p.log.Debug("page did not settle", logging.Err(err))
	}
}
