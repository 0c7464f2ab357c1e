// Package postgres keeps wardrobe records in a Postgres table.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lukman83/dealscout/internal/logging"
	"github.com/lukman83/dealscout/internal/models"
	"github.com/lukman83/dealscout/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS wardrobe_items (
	id           BIGSERIAL PRIMARY KEY,
	url          TEXT NOT NULL UNIQUE,
	name         TEXT NOT NULL,
	brand        TEXT NOT NULL,
	price_cents  BIGINT NOT NULL CHECK (price_cents > 0),
	sizes        TEXT[] NOT NULL DEFAULT '{}',
	wanted_size  TEXT NOT NULL DEFAULT '',
	image_url    TEXT NOT NULL DEFAULT '',
	session_link TEXT NOT NULL DEFAULT '',
	month        DATE NOT NULL,
	selected     BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS wardrobe_items_month_selected ON wardrobe_items (month) WHERE selected;
`

// xmax is zero only for a row this statement inserted.
const upsertQuery = `
	INSERT INTO wardrobe_items (url, name, brand, price_cents, sizes, wanted_size, image_url, session_link, month)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (url) DO UPDATE SET
		name         = EXCLUDED.name,
		brand        = EXCLUDED.brand,
		price_cents  = EXCLUDED.price_cents,
		sizes        = EXCLUDED.sizes,
		wanted_size  = EXCLUDED.wanted_size,
		image_url    = EXCLUDED.image_url,
		session_link = EXCLUDED.session_link,
		month        = EXCLUDED.month,
		updated_at   = now()
	RETURNING id, (xmax = 0) AS inserted
`

type Store struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

var (
	_ store.Writer   = (*Store)(nil)
	_ store.Selector = (*Store)(nil)
)

// New connects and pings. The caller owns Close.
func New(ctx context.Context, dsn string, log *slog.Logger) (*Store, error) {
	const op = "postgres.New"
	if log == nil {
		log = logging.Discard()
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: parse config: %w", op, err)
	}
	poolConfig.MaxConns = 5
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: create pool: %w", op, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}
	return &Store{pool: pool, log: log}, nil
}

// Migrate creates the table if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres.Migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() { s.pool.Close() }

// Write upserts each record on url. Records are written independently so one
// bad row does not roll back the others.
func (s *Store) Write(ctx context.Context, records []models.Record) ([]models.WriteResult, error) {
	const op = "postgres.Write"
	log := s.log.With(slog.String("op", op))

	out := make([]models.WriteResult, 0, len(records))
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("%s: %w", op, err)
		}
		if err := store.Check(r); err != nil {
			out = append(out, store.Rejected(r, err))
			continue
		}
		month, err := time.Parse(time.DateOnly, r.Month)
		if err != nil {
			out = append(out, store.Rejected(r, fmt.Errorf("%w: month %q", models.ErrMalformedItem, r.Month)))
			continue
		}

		sizes := r.Sizes
		if sizes == nil {
			sizes = []string{}
		}
		var (
			id       int64
			inserted bool
		)
		err = s.pool.QueryRow(ctx, upsertQuery,
			r.URL, r.Name, r.Brand, int64(r.Price), sizes, r.WantedSize, r.ImageURL, r.SessionLink, month,
		).Scan(&id, &inserted)
		if err != nil {
			log.Warn("upsert failed", slog.String("url", r.URL), logging.Err(err))
			out = append(out, store.Rejected(r, err))
			continue
		}

		action := models.ActionUpdated
		if inserted {
			action = models.ActionCreated
		}
		out = append(out, models.WriteResult{Action: action, Ref: fmt.Sprintf("wardrobe_items/%d", id), URL: r.URL})
	}
	return out, nil
}

// Summary aggregates selected rows for month.
func (s *Store) Summary(ctx context.Context, month string, budgetCap models.Cents) (models.BudgetSummary, error) {
	const op = "postgres.Summary"
	day, err := time.Parse(time.DateOnly, month)
	if err != nil {
		return models.BudgetSummary{}, fmt.Errorf("%s: month %q: %w", op, month, err)
	}

	const query = `
		SELECT COALESCE(SUM(price_cents), 0)::BIGINT, COUNT(*)
		  FROM wardrobe_items
		 WHERE selected AND month = $1
	`
	var spend, count int64
	if err := s.pool.QueryRow(ctx, query, day).Scan(&spend, &count); err != nil {
		return models.BudgetSummary{}, fmt.Errorf("%s: %w", op, err)
	}
	return models.NewBudgetSummary(month, budgetCap, models.Cents(spend), int(count)), nil
}

// SetSelected marks a row as picked (or unpicked) by the user.
func (s *Store) SetSelected(ctx context.Context, url string, selected bool) error {
	const op = "postgres.SetSelected"
	tag, err := s.pool.Exec(ctx,
		`UPDATE wardrobe_items SET selected = $2, updated_at = now() WHERE url = $1`, url, selected)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, pgx.ErrNoRows)
	}
	return nil
}
