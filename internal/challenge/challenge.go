package challenge

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/lukman83/dealscout/internal/logging"
	"github.com/lukman83/dealscout/internal/models"
	"github.com/lukman83/dealscout/internal/platform"
	"github.com/lukman83/dealscout/internal/stealth"
)

// State of a page with respect to anti-automation interstitials.
type State int

const (
	Clear State = iota
	Challenged
)

func (s State) String() string {
	if s == Challenged {
		return "challenged"
	}
	return "clear"
}

// Interstitial markers seen on title or visible body text. Script sources are
// not inspected: normal storefront pages load challenge-platform scripts too.
var defaultMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)just a moment`),
	regexp.MustCompile(`(?i)checking your browser`),
	regexp.MustCompile(`(?i)verif(y|ying) you are (a )?human`),
	regexp.MustCompile(`(?i)attention required`),
	regexp.MustCompile(`(?i)press (&|and) hold`),
	regexp.MustCompile(`(?i)please wait while we verify`),
	regexp.MustCompile(`(?i)are you a robot`),
}

// bodyScanLimit bounds how much visible text is matched per poll.
const bodyScanLimit = 4000

// Handler waits out challenge pages with a bounded poll.
type Handler struct {
	Interval time.Duration
	Attempts int
	log      *slog.Logger
	markers  []*regexp.Regexp
}

func New(interval time.Duration, attempts int, log *slog.Logger) *Handler {
	if log == nil {
		log = logging.Discard()
	}
	return &Handler{
		Interval: interval,
		Attempts: attempts,
		log:      log,
		markers:  defaultMarkers,
	}
}

// Outcome describes how a wait ended.
type Outcome struct {
	State  State
	Polls  int
	Marker string
	Waited time.Duration
}

// Detect inspects the page once and returns the matching marker, if any.
func (h *Handler) Detect(ctx context.Context, page platform.Page) (State, string, error) {
	title, err := page.Title(ctx)
	if err != nil {
		return Clear, "", fmt.Errorf("read title: %w", err)
	}
	if m := h.match(title); m != "" {
		return Challenged, m, nil
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return Clear, "", fmt.Errorf("read html: %w", err)
	}
	if m := h.match(visibleText(html)); m != "" {
		return Challenged, m, nil
	}
	return Clear, "", nil
}

// Await returns immediately when the page is clear. Otherwise it polls every
// Interval, up to Attempts times, until the markers disappear. A page still
// challenged after the bound yields ErrChallengeUnresolved, which callers
// treat as a soft failure.
func (h *Handler) Await(ctx context.Context, brand models.BrandID, page platform.Page) (Outcome, error) {
	const op = "challenge.Await"
	log := h.log.With(slog.String("op", op), slog.String("brand", string(brand)))

	start := time.Now()
	state, marker, err := h.Detect(ctx, page)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", op, err)
	}
	out := Outcome{State: state, Marker: marker}
	if state == Clear {
		return out, nil
	}

	log.Info("challenge detected, waiting", slog.String("marker", marker))
	platform.ReportProgress(ctx, brand, "waiting for bot check (%s)", marker)

	for out.Polls < h.Attempts {
		if err := stealth.Sleep(ctx, h.Interval); err != nil {
			out.Waited = time.Since(start)
			return out, fmt.Errorf("%s: %w", op, err)
		}
		out.Polls++

		state, marker, err = h.Detect(ctx, page)
		if err != nil {
			// The page may be mid-redirect; try again on the next tick.
			log.Debug("poll failed", slog.Int("poll", out.Polls), logging.Err(err))
			continue
		}
		if state == Clear {
			out.State = Clear
			out.Marker = ""
			out.Waited = time.Since(start)
			log.Info("challenge cleared", slog.Int("polls", out.Polls), slog.Duration("waited", out.Waited))
			return out, nil
		}
		out.Marker = marker
		log.Debug("still challenged", slog.Int("poll", out.Polls), slog.String("marker", marker))
	}

	out.Waited = time.Since(start)
	log.Warn("challenge unresolved, continuing with degraded confidence",
		slog.Int("polls", out.Polls), slog.Duration("waited", out.Waited))
	return out, fmt.Errorf("%s: %w after %d polls (%s)", op, models.ErrChallengeUnresolved, out.Polls, out.Marker)
}

func (h *Handler) match(text string) string {
	for _, re := range h.markers {
		if m := re.FindString(text); m != "" {
			return strings.ToLower(m)
		}
	}
	return ""
}

func visibleText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript, template").Remove()
	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if len(text) > bodyScanLimit {
		text = text[:bodyScanLimit]
	}
	return text
}
