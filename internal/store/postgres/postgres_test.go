package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lukman83/dealscout/internal/models"
)

// Runs only against a disposable database named by DEALSCOUT_TEST_DATABASE_URL.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("DEALSCOUT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("DEALSCOUT_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := New(ctx, dsn, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if _, err := s.pool.Exec(ctx, `TRUNCATE wardrobe_items`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return s
}

func TestWriteCreatesThenUpdates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	r := models.Record{
		Name:  "Slip Dress",
		Brand: "reformation",
		Price: 5800,
		URL:   "https://www.thereformation.com/p/slip",
		Month: "2025-09-01",
	}

	first, err := s.Write(ctx, []models.Record{r, {Name: "x", Brand: "y", Price: 0, URL: "bad", Month: "2025-09-01"}})
	if err != nil {
		t.Fatal(err)
	}
	if first[0].Action != models.ActionCreated || first[1].Action != models.ActionError {
		t.Fatalf("first write = %+v", first)
	}

	r.Price = 4900
	second, err := s.Write(ctx, []models.Record{r})
	if err != nil {
		t.Fatal(err)
	}
	if second[0].Action != models.ActionUpdated {
		t.Errorf("second write = %+v", second[0])
	}
}

func TestSummaryCountsSelected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	recs := []models.Record{
		{Name: "A", Brand: "aritzia", Price: 2500, URL: "https://a.example/1", Month: "2025-09-01"},
		{Name: "B", Brand: "aritzia", Price: 5800, URL: "https://a.example/2", Month: "2025-09-01"},
		{Name: "C", Brand: "aritzia", Price: 9900, URL: "https://a.example/3", Month: "2025-08-01"},
	}
	if _, err := s.Write(ctx, recs); err != nil {
		t.Fatal(err)
	}
	for _, u := range []string{"https://a.example/1", "https://a.example/2", "https://a.example/3"} {
		if err := s.SetSelected(ctx, u, true); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.SetSelected(ctx, "https://a.example/missing", true); !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("missing row err = %v", err)
	}

	sum, err := s.Summary(ctx, "2025-09-01", 15000)
	if err != nil {
		t.Fatal(err)
	}
	if sum.SelectedItems != 2 || sum.SelectedSpend != 8300 || sum.Remaining != 6700 {
		t.Errorf("summary = %+v", sum)
	}
}
