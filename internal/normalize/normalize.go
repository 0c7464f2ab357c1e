package normalize

import (
	"fmt"
	"html"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/lukman83/dealscout/internal/brands"
	"github.com/lukman83/dealscout/internal/logging"
	"github.com/lukman83/dealscout/internal/models"
	"github.com/lukman83/dealscout/internal/platform"
	"github.com/microcosm-cc/bluemonday"
)

// DefaultMarkup estimates an original price when a page shows only the sale
// price.
const DefaultMarkup = 1.4

// Normalizer validates raw items into deals.
type Normalizer struct {
	Markup float64
	Now    func() time.Time
	log    *slog.Logger
	strict *bluemonday.Policy
}

func New(markup float64, log *slog.Logger) *Normalizer {
	if markup < 1 {
		markup = DefaultMarkup
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Normalizer{
		Markup: markup,
		Now:    time.Now,
		log:    log,
		strict: bluemonday.StrictPolicy(),
	}
}

// Stats counts why items were dropped. Drops are never errors.
type Stats struct {
	In           int
	Kept         int
	BadPrice     int
	NoURL        int
	SizeMismatch int
	OverMaxPrice int
}

// Normalize turns raw items from one brand pass into deals, preserving
// arrival order. The budget cap is deliberately not applied here.
func (n *Normalizer) Normalize(raw []models.RawExtractedItem, req models.ScrapeRequest, site platform.Site, strategy string) ([]models.Deal, Stats) {
	log := n.log.With(slog.String("op", "normalize.Normalize"), slog.String("brand", string(site.ID)))
	now := n.Now()
	stats := Stats{In: len(raw)}
	deals := make([]models.Deal, 0, len(raw))

	for i, it := range raw {
		price, err := it.Price.Cents()
		if err == nil && price == 0 {
			err = fmt.Errorf("%w: zero price", models.ErrMalformedItem)
		}
		if err != nil {
			stats.BadPrice++
			log.Debug("dropped item", slog.Int("index", i), logging.Err(err))
			continue
		}

		productURL := strings.TrimSpace(it.ProductURL)
		if productURL == "" {
			stats.NoURL++
			log.Debug("dropped item", slog.Int("index", i), slog.String("reason", "missing product url"))
			continue
		}

		size, ok := matchSize(req.Size, it.Sizes)
		if !ok {
			stats.SizeMismatch++
			continue
		}

		if req.MaxPrice > 0 && price > req.MaxPrice {
			stats.OverMaxPrice++
			continue
		}

		title := n.cleanTitle(it.Name)
		if title == "" {
			title = displayName(site) + " Product"
		}

		inStock := true
		if it.InStock != nil {
			inStock = *it.InStock
		}

		deals = append(deals, models.Deal{
			ID:            fmt.Sprintf("%s-%d-%d", site.ID, i+1, now.UnixNano()),
			Title:         title,
			Brand:         site.ID,
			SalePrice:     price,
			OriginalPrice: n.originalPrice(price, it.OriginalPrice),
			Size:          size,
			ClothingType:  brands.Classify(it.Category + " " + title),
			ImageURL:      strings.TrimSpace(it.ImageURL),
			ProductURL:    productURL,
			InStock:       inStock,
			DiscoveredAt:  now,
			Strategy:      strategy,
		})
	}

	stats.Kept = len(deals)
	if stats.Kept < stats.In {
		log.Debug("normalized with drops",
			slog.Int("in", stats.In), slog.Int("kept", stats.Kept),
			slog.Int("bad_price", stats.BadPrice), slog.Int("no_url", stats.NoURL),
			slog.Int("size_mismatch", stats.SizeMismatch), slog.Int("over_max_price", stats.OverMaxPrice))
	}
	return deals, stats
}

// matchSize is a lenient, case-insensitive substring match in either
// direction. Items without sizes pass as unknown and take the wanted size.
func matchSize(want string, sizes []string) (string, bool) {
	want = strings.TrimSpace(want)
	if want == "" {
		if len(sizes) > 0 {
			return strings.TrimSpace(sizes[0]), true
		}
		return "", true
	}
	if len(sizes) == 0 {
		return want, true
	}
	w := strings.ToLower(want)
	for _, s := range sizes {
		l := strings.ToLower(strings.TrimSpace(s))
		if l == "" {
			continue
		}
		if strings.Contains(l, w) || strings.Contains(w, l) {
			return strings.TrimSpace(s), true
		}
	}
	return "", false
}

func (n *Normalizer) originalPrice(sale models.Cents, observed models.FlexPrice) models.Cents {
	if observed.Set {
		if c, err := observed.Cents(); err == nil && c >= sale {
			return c
		}
	}
	return models.Cents(math.Round(float64(sale) * n.Markup))
}

func (n *Normalizer) cleanTitle(s string) string {
	s = html.UnescapeString(n.strict.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

func displayName(site platform.Site) string {
	if site.DisplayName != "" {
		return site.DisplayName
	}
	return string(site.ID)
}
