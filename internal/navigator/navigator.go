package navigator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lukman83/dealscout/internal/brands"
	"github.com/lukman83/dealscout/internal/logging"
	"github.com/lukman83/dealscout/internal/models"
	"github.com/lukman83/dealscout/internal/platform"
	"github.com/lukman83/dealscout/internal/stealth"
)

// Navigator drives a page to a retailer's sale listing.
type Navigator struct {
	Timeout     time.Duration
	SortTimeout time.Duration
	UserAgent   string
	robots      *stealth.RobotsChecker
	log         *slog.Logger
}

func New(timeout, sortTimeout time.Duration, robots *stealth.RobotsChecker, log *slog.Logger) *Navigator {
	if log == nil {
		log = logging.Discard()
	}
	return &Navigator{
		Timeout:     timeout,
		SortTimeout: sortTimeout,
		UserAgent:   "dealscout",
		robots:      robots,
		log:         log,
	}
}

// Landing is where a Goto ended up.
type Landing struct {
	URL      string
	Fallback bool
}

// Goto navigates to the category page for query. If that fails it retries
// once against the bare sale root; a second failure is ErrNavigationFailed.
// A query with no category already targets the root and is not retried.
func (n *Navigator) Goto(ctx context.Context, site platform.Site, query string, page platform.Page) (Landing, error) {
	const op = "navigator.Goto"
	log := n.log.With(slog.String("op", op), slog.String("brand", string(site.ID)))

	target := brands.TargetURL(site, query)
	root := brands.SaleURL(site)

	var firstErr error
	if ok, err := n.robots.Allowed(ctx, n.UserAgent, target); err != nil || !ok {
		firstErr = fmt.Errorf("robots.txt disallows %s", target)
	} else {
		platform.ReportProgress(ctx, site.ID, "opening %s", target)
		if firstErr = n.navigate(ctx, page, target); firstErr == nil {
			return Landing{URL: target}, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return Landing{}, fmt.Errorf("%s: %w", op, err)
	}
	if target == root {
		return Landing{}, fmt.Errorf("%s: %w: %w", op, models.ErrNavigationFailed, firstErr)
	}

	log.Warn("navigation failed, falling back to sale root",
		slog.String("target", target), slog.String("root", root), logging.Err(firstErr))

	if ok, err := n.robots.Allowed(ctx, n.UserAgent, root); err != nil || !ok {
		return Landing{}, fmt.Errorf("%s: %w: robots.txt disallows %s: %w", op, models.ErrNavigationFailed, root, firstErr)
	}
	platform.ReportProgress(ctx, site.ID, "retrying at %s", root)
	if err := n.navigate(ctx, page, root); err != nil {
		if ctx.Err() != nil {
			return Landing{}, fmt.Errorf("%s: %w", op, ctx.Err())
		}
		return Landing{}, fmt.Errorf("%s: %w: %w", op, models.ErrNavigationFailed, errors.Join(firstErr, err))
	}
	return Landing{URL: root, Fallback: true}, nil
}

// Sort tries each of the site's popularity labels in order and returns the
// one that was applied. Failures are swallowed; an empty result means the
// listing stays in its default order.
func (n *Navigator) Sort(ctx context.Context, site platform.Site, page platform.Page) string {
	log := n.log.With(slog.String("op", "navigator.Sort"), slog.String("brand", string(site.ID)))

	for _, label := range site.SortLabels {
		if ctx.Err() != nil {
			return ""
		}
		sctx, cancel := context.WithTimeout(ctx, n.SortTimeout)
		ok, err := page.ClickText(sctx, label)
		cancel()
		if err != nil {
			log.Debug("sort label failed", slog.String("label", label), logging.Err(err))
			continue
		}
		if ok {
			log.Debug("sorted", slog.String("label", label))
			return label
		}
	}
	return ""
}

func (n *Navigator) navigate(ctx context.Context, page platform.Page, url string) error {
	nctx, cancel := context.WithTimeout(ctx, n.Timeout)
	defer cancel()
	if err := page.Navigate(nctx, url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}
