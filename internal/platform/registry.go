package platform

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lukman83/dealscout/internal/models"
)

// Site is a retailer's navigation profile.
type Site struct {
	ID          models.BrandID
	DisplayName string
	BaseURL     string
	SaleRoot    string
	// Segments maps a clothing type to the sale sub-path that lists it.
	Segments map[models.ClothingType]string
	// SortLabels are "sort by popularity" variants in order of preference.
	SortLabels []string
}

var (
	registry = make(map[models.BrandID]Site)
	mu       sync.RWMutex
)

func Register(site Site) {
	mu.Lock()
	defer mu.Unlock()
	registry[site.ID] = site
}

func Get(id models.BrandID) (Site, error) {
	mu.RLock()
	defer mu.RUnlock()
	s, ok := registry[id]
	if !ok {
		return Site{}, fmt.Errorf("%w: %q not registered", models.ErrUnknownBrand, id)
	}
	return s, nil
}

// List returns registered brand IDs in a stable order.
func List() []models.BrandID {
	mu.RLock()
	defer mu.RUnlock()
	ids := make([]models.BrandID, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
