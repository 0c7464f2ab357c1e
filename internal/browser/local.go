package browser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/lukman83/dealscout/internal/logging"
	"github.com/lukman83/dealscout/internal/platform"
	"github.com/lukman83/dealscout/internal/stealth"
)

// LocalProvider launches a Chromium on this machine for every session.
type LocalProvider struct {
	Headless bool
	// Bin overrides the browser binary; empty lets rod find or fetch one.
	Bin string
	// Proxies, when set, gives each session its own upstream.
	Proxies *stealth.ProxyRotator
	Log     *slog.Logger
}

var _ platform.Provider = (*LocalProvider)(nil)

func (l *LocalProvider) Name() string { return "local" }

func (l *LocalProvider) Open(ctx context.Context, opts platform.SessionOptions) (platform.Session, error) {
	log := l.Log
	if log == nil {
		log = logging.Discard()
	}

	lch := launcher.New().Context(ctx).Headless(l.Headless).Logger(io.Discard)
	if l.Bin != "" {
		lch = lch.Bin(l.Bin)
	}
	var proxy *url.URL
	if l.Proxies != nil {
		p := l.Proxies.Next()
		proxy = p.URL()
		lch = lch.Proxy(proxyServer(proxy))
		log.Debug("launching through proxy", slog.String("proxy", p.Name()))
	}

	controlURL, err := lch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	release := func(context.Context) error {
		lch.Kill()
		lch.Cleanup()
		return nil
	}

	id := opts.RunID
	s, err := Connect(ctx, controlURL, id, "local://"+id, identityFrom(opts), release, log)
	if err != nil {
		_ = release(ctx)
		return nil, err
	}
	if proxy != nil && proxy.User != nil {
		pass, _ := proxy.User.Password()
		go answerProxyAuth(s, proxy.User.Username(), pass)
	}
	return s, nil
}

// answerProxyAuth responds to every proxy auth challenge until the browser
// goes away.
func answerProxyAuth(s *Session, user, pass string) {
	for {
		wait := s.browser.HandleAuth(user, pass)
		if err := wait(); err != nil {
			return
		}
	}
}

// proxyServer renders a proxy URL the way Chromium's --proxy-server expects:
// scheme and host only, credentials are answered separately.
func proxyServer(u *url.URL) string {
	scheme := u.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + u.Host
}

func identityFrom(opts platform.SessionOptions) Identity {
	return Identity{
		UserAgent:      opts.UserAgent,
		AcceptLanguage: "en-US,en;q=0.9",
		Width:          opts.Width,
		Height:         opts.Height,
	}
}
