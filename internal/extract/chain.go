package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lukman83/dealscout/internal/logging"
	"github.com/lukman83/dealscout/internal/models"
	"github.com/lukman83/dealscout/internal/platform"
)

// Chain runs strategies in order until one yields a well-formed item.
type Chain struct {
	strategies []platform.Strategy
	log        *slog.Logger
}

func NewChain(log *slog.Logger, strategies ...platform.Strategy) *Chain {
	if log == nil {
		log = logging.Discard()
	}
	return &Chain{strategies: strategies, log: log}
}

// Result is the accepted output of one strategy.
type Result struct {
	Items    []models.RawExtractedItem
	Strategy string
}

// Names lists the configured strategies in order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Run returns the first strategy result holding at least one well-formed
// item. When every strategy fails the error wraps ErrExtractionFailed and
// joins each strategy's reason.
func (c *Chain) Run(ctx context.Context, snap *platform.Snapshot, t platform.Target) (Result, error) {
	const op = "extract.Chain.Run"
	log := c.log.With(slog.String("op", op), slog.String("brand", string(t.Brand)))

	var errs []error
	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("%s: %w", op, err)
		}
		platform.ReportProgress(ctx, t.Brand, "extracting via %s", s.Name())

		items, err := s.Extract(ctx, snap, t)
		if err != nil {
			log.Info("strategy failed", slog.String("strategy", s.Name()), logging.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		usable := keepWellFormed(items, t.MaxItems)
		if len(usable) == 0 {
			log.Info("strategy returned nothing usable", slog.String("strategy", s.Name()), slog.Int("raw", len(items)))
			errs = append(errs, fmt.Errorf("%s: no well-formed items (%d raw)", s.Name(), len(items)))
			continue
		}
		log.Info("strategy succeeded", slog.String("strategy", s.Name()),
			slog.Int("items", len(usable)), slog.Int("raw", len(items)))
		return Result{Items: usable, Strategy: s.Name()}, nil
	}

	if len(errs) == 0 {
		errs = append(errs, errors.New("no strategies configured"))
	}
	return Result{}, fmt.Errorf("%s: %w: %w", op, models.ErrExtractionFailed, errors.Join(errs...))
}

// wellFormed means a positive price and somewhere to link to.
func wellFormed(it models.RawExtractedItem) bool {
	if it.ProductURL == "" {
		return false
	}
	c, err := it.Price.Cents()
	return err == nil && c > 0
}

// keepWellFormed drops malformed items, then caps the rest at limit (0 means
// no cap).
func keepWellFormed(items []models.RawExtractedItem, limit int) []models.RawExtractedItem {
	var out []models.RawExtractedItem
	for _, it := range items {
		if limit > 0 && len(out) == limit {
			break
		}
		if wellFormed(it) {
			out = append(out, it)
		}
	}
	return out
}
