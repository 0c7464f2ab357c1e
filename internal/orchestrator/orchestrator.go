package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lukman83/dealscout/internal/budget"
	"github.com/lukman83/dealscout/internal/challenge"
	"github.com/lukman83/dealscout/internal/extract"
	"github.com/lukman83/dealscout/internal/logging"
	"github.com/lukman83/dealscout/internal/models"
	"github.com/lukman83/dealscout/internal/navigator"
	"github.com/lukman83/dealscout/internal/normalize"
	"github.com/lukman83/dealscout/internal/platform"
	"github.com/lukman83/dealscout/internal/session"
	"github.com/lukman83/dealscout/internal/stealth"
	"github.com/lukman83/dealscout/internal/store"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Deps are the components a run is sequenced over.
type Deps struct {
	Sessions   *session.Manager
	Navigator  *navigator.Navigator
	Challenge  *challenge.Handler
	Chain      *extract.Chain
	Normalizer *normalize.Normalizer
	// Store is optional; without it runs never persist.
	Store store.Writer
	Log   *slog.Logger
}

// Options tune pacing of brand passes.
type Options struct {
	MaxConcurrent int
	MaxItems      int
	Limiter       *rate.Limiter
	Delay         *stealth.HumanDelay
}

// Engine runs deal discovery across brands and allocates the budget.
type Engine struct {
	deps Deps
	opts Options
	log  *slog.Logger
}

func New(deps Deps, opts Options) *Engine {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	log := deps.Log
	if log == nil {
		log = logging.Discard()
	}
	return &Engine{deps: deps, opts: opts, log: log}
}

// HasStore reports whether Run can persist.
func (e *Engine) HasStore() bool { return e.deps.Store != nil }

// Store returns the configured record sink, if any.
func (e *Engine) Store() store.Writer { return e.deps.Store }

// Run executes one request. Only a session that cannot be acquired fails the
// run; every per-brand failure lands in that brand's result. If ctx ends
// mid-run the partial result is returned with the context error, and the
// session is released either way.
func (e *Engine) Run(ctx context.Context, req models.ScrapeRequest, save bool) (*models.RunResult, error) {
	const op = "orchestrator.Run"
	runID := uuid.NewString()
	log := e.log.With(slog.String("op", op), slog.String("run_id", runID))
	start := time.Now()

	platform.ReportProgress(ctx, "", "starting browser session")
	handle, err := e.deps.Sessions.Acquire(ctx, runID, map[string]string{
		"query": req.Query,
		"size":  req.Size,
	})
	if err != nil {
		log.Error("session unavailable", logging.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = handle.Release(ctx) }()

	res := &models.RunResult{
		RunID:      runID,
		SessionRef: handle.Ref(),
		PerBrand:   make([]models.BrandRunResult, len(req.Brands)),
	}
	found := make([][]models.Deal, len(req.Brands))

	var g errgroup.Group
	g.SetLimit(e.opts.MaxConcurrent)
	for i, brand := range req.Brands {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					log.Error("brand pass panicked", slog.String("brand", string(brand)), slog.Any("panic", r))
					res.PerBrand[i] = models.BrandRunResult{Brand: brand, SessionRef: handle.Ref(), Error: fmt.Sprintf("internal error: %v", r)}
				}
			}()
			res.PerBrand[i], found[i] = e.runBrand(ctx, handle, brand, req)
			return nil
		})
	}
	_ = g.Wait()

	var all []models.Deal
	for _, deals := range found {
		all = append(all, deals...)
	}
	res.Allocation = budget.Allocate(all, req.BudgetCap)

	if err := ctx.Err(); err != nil {
		log.Warn("run cancelled", logging.Err(err))
		return res, fmt.Errorf("%s: %w", op, err)
	}

	if save && e.deps.Store != nil && len(res.Allocation.Selected) > 0 {
		platform.ReportProgress(ctx, "", "saving %d items", len(res.Allocation.Selected))
		records := models.RecordsFrom(res.Allocation.Selected, req.Size, handle.Ref())
		written, err := e.deps.Store.Write(ctx, records)
		res.Persisted = written
		if err != nil {
			res.PersistError = err.Error()
			log.Error("persist failed", logging.Err(err))
		}
	}

	log.Info("run finished",
		slog.Int("brands", len(req.Brands)),
		slog.Int("found", len(all)),
		slog.Int("selected", len(res.Allocation.Selected)),
		slog.String("spend", res.Allocation.TotalSpend.String()),
		slog.Int("upserts", res.Upserts()),
		slog.Duration("took", time.Since(start)),
	)
	return res, nil
}

func (e *Engine) runBrand(ctx context.Context, handle *session.Handle, brand models.BrandID, req models.ScrapeRequest) (models.BrandRunResult, []models.Deal) {
	log := e.log.With(slog.String("op", "orchestrator.runBrand"), slog.String("brand", string(brand)))
	res := models.BrandRunResult{Brand: brand, SessionRef: handle.Ref()}
	fail := func(err error) (models.BrandRunResult, []models.Deal) {
		log.Warn("brand pass failed", logging.Err(err))
		platform.ReportProgress(ctx, brand, "failed: %v", err)
		res.Error = err.Error()
		return res, nil
	}

	site, err := platform.Get(brand)
	if err != nil {
		return fail(err)
	}

	if e.opts.Limiter != nil {
		if err := e.opts.Limiter.Wait(ctx); err != nil {
			return fail(err)
		}
	}
	if err := e.opts.Delay.Wait(ctx); err != nil {
		return fail(err)
	}

	page, err := handle.NewPage(ctx)
	if err != nil {
		return fail(fmt.Errorf("open tab: %w", err))
	}
	defer page.Close()

	if _, err := e.deps.Navigator.Goto(ctx, site, req.Query, page); err != nil {
		return fail(err)
	}
	if err := e.awaitChallenge(ctx, log, brand, page); err != nil {
		return fail(err)
	}
	if label := e.deps.Navigator.Sort(ctx, site, page); label != "" {
		platform.ReportProgress(ctx, brand, "sorted by %s", label)
		if err := e.awaitChallenge(ctx, log, brand, page); err != nil {
			return fail(err)
		}
	}

	snap, err := platform.Capture(ctx, page)
	if err != nil {
		return fail(fmt.Errorf("%w: read page: %w", models.ErrExtractionFailed, err))
	}

	extracted, err := e.deps.Chain.Run(ctx, snap, platform.Target{
		Brand:    brand,
		Query:    req.Query,
		Size:     req.Size,
		MaxItems: e.opts.MaxItems,
	})
	if err != nil {
		return fail(err)
	}

	deals, _ := e.deps.Normalizer.Normalize(extracted.Items, req, site, extracted.Strategy)
	if req.ResultLimitPerBrand > 0 && len(deals) > req.ResultLimitPerBrand {
		deals = deals[:req.ResultLimitPerBrand]
	}
	res.ItemCount = len(deals)
	res.Strategy = extracted.Strategy
	platform.ReportProgress(ctx, brand, "found %d deals via %s", len(deals), extracted.Strategy)
	return res, deals
}

// awaitChallenge lets unresolved challenges through; only cancellation stops
// the pass.
func (e *Engine) awaitChallenge(ctx context.Context, log *slog.Logger, brand models.BrandID, page platform.Page) error {
	_, err := e.deps.Challenge.Await(ctx, brand, page)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, models.ErrChallengeUnresolved):
		log.Warn("extracting behind an unresolved challenge", logging.Err(err))
		return nil
	default:
		log.Debug("challenge check failed", logging.Err(err))
		return nil
	}
}
