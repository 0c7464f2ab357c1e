package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lukman83/dealscout/internal/logging"
	"github.com/lukman83/dealscout/internal/models"
	"github.com/lukman83/dealscout/internal/platform"
	"github.com/lukman83/dealscout/internal/stealth"
)

const releaseTimeout = 30 * time.Second

// Options are the acquire retry knobs.
type Options struct {
	Attempts int
	// Backoff is multiplied by the attempt number after a rate-limit answer.
	Backoff time.Duration
	// RetryDelay is the flat wait after any other failure.
	RetryDelay time.Duration
}

// Manager acquires sessions from a provider with retry.
type Manager struct {
	provider     platform.Provider
	opts         Options
	fingerprints *stealth.FingerprintPool
	log          *slog.Logger
}

func NewManager(provider platform.Provider, opts Options, fingerprints *stealth.FingerprintPool, log *slog.Logger) *Manager {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if fingerprints == nil {
		fingerprints = stealth.NewFingerprintPool()
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Manager{provider: provider, opts: opts, fingerprints: fingerprints, log: log}
}

// Handle wraps a live session. Release is idempotent and safe to defer.
type Handle struct {
	platform.Session
	Fingerprint stealth.Fingerprint

	once       sync.Once
	releaseErr error
	log        *slog.Logger
}

// Acquire opens a session, retrying up to Attempts times. A failure on the
// last attempt is wrapped in ErrProviderUnavailable.
func (m *Manager) Acquire(ctx context.Context, runID string, meta map[string]string) (*Handle, error) {
	const op = "session.Acquire"
	log := m.log.With(slog.String("op", op), slog.String("provider", m.provider.Name()), slog.String("run_id", runID))

	fp := m.fingerprints.Next()
	opts := platform.SessionOptions{
		RunID:     runID,
		UserAgent: fp.UserAgent,
		Width:     fp.Width,
		Height:    fp.Height,
		Metadata:  meta,
	}

	var lastErr error
	for attempt := 1; attempt <= m.opts.Attempts; attempt++ {
		s, err := m.provider.Open(ctx, opts)
		if err == nil {
			log.Info("session acquired", slog.String("session", s.ID()), slog.Int("attempt", attempt))
			return &Handle{Session: s, Fingerprint: fp, log: log}, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt == m.opts.Attempts {
			break
		}

		wait := m.opts.RetryDelay
		if errors.Is(err, models.ErrRateLimited) {
			wait = time.Duration(attempt) * m.opts.Backoff
		}
		log.Warn("session open failed, retrying",
			slog.Int("attempt", attempt), slog.Duration("wait", wait), logging.Err(err))
		if err := stealth.Sleep(ctx, wait); err != nil {
			lastErr = errors.Join(lastErr, err)
			break
		}
	}
	return nil, fmt.Errorf("%s: %w: %w", op, models.ErrProviderUnavailable, lastErr)
}

// Release closes the session once. It ignores cancellation of ctx so a
// cancelled run still frees the remote browser.
func (h *Handle) Release(ctx context.Context) error {
	h.once.Do(func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		h.releaseErr = h.Session.Close(rctx)
		if h.releaseErr != nil {
			h.log.Error("session release failed", slog.String("session", h.ID()), logging.Err(h.releaseErr))
			return
		}
		h.log.Info("session released", slog.String("session", h.ID()))
	})
	return h.releaseErr
}
