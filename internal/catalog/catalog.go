// Package catalog provides paginated retrieval and filtering of a temple's
// contribution catalog. It accumulates pages for infinite-scroll style
// consumption and derives exhaustive per-temple totals for staging
// reconciliation.
package catalog

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/fpang/temple-recon/internal/api"
	"github.com/fpang/temple-recon/internal/recon"
)

// Lister fetches one catalog page from the pipeline. Implemented by
// api.Client.
type Lister interface {
	ListContributions(ctx context.Context, templeID, page int, category string) (*api.ContributionPage, error)
}

// Cache accumulates the currently loaded page set for one temple/category
// selection. Page 1 replaces the accumulator; later pages append. The
// server's is_next flag gates further fetches; a failed page fetch is
// treated as "no more pages" so consumers degrade instead of crashing.
type Cache struct {
	lister Lister

	mu       sync.Mutex
	items    []recon.Contribution
	isNext   bool
	templeID int
	category string
}

// NewCache creates a catalog cache backed by the given lister.
func NewCache(lister Lister) *Cache {
	return &Cache{lister: lister}
}

// FetchPage loads one page of the temple's catalog, filtered server-side by
// category when non-empty. Page 1 resets the accumulator; pages after the
// first append. On failure the accumulator keeps its prior contents, the
// pagination flag drops to false, and the error surfaces to the caller for
// display.
func (c *Cache) FetchPage(ctx context.Context, templeID, page int, category string) error {
	result, err := c.lister.ListContributions(ctx, templeID, page, category)
	if err != nil {
		c.mu.Lock()
		c.isNext = false
		c.mu.Unlock()
		log.Warn().Err(err).Int("templeId", templeID).Int("page", page).Msg("Catalog page fetch failed, treating as exhausted")
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if page <= 1 {
		c.items = result.Contributions
		c.templeID = templeID
		c.category = category
	} else {
		c.items = append(c.items, result.Contributions...)
	}
	c.isNext = result.IsNext
	log.Debug().
		Int("templeId", templeID).
		Int("page", page).
		Int("loaded", len(c.items)).
		Bool("isNext", c.isNext).
		Msg("Catalog page loaded")
	return nil
}

// IsNext reports whether the server indicated further pages.
func (c *Cache) IsNext() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isNext
}

// Items returns a copy of the currently loaded page set.
func (c *Cache) Items() []recon.Contribution {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]recon.Contribution, len(c.items))
	copy(out, c.items)
	return out
}

// Search applies a case-insensitive substring filter over the currently
// loaded page set, matching contribution and temple names. Category
// filtering is the server's job; this is the additional local text search.
func (c *Cache) Search(text string) []recon.Contribution {
	c.mu.Lock()
	defer c.mu.Unlock()

	if text == "" {
		out := make([]recon.Contribution, len(c.items))
		copy(out, c.items)
		return out
	}

	needle := strings.ToLower(text)
	var out []recon.Contribution
	for _, item := range c.items {
		if strings.Contains(strings.ToLower(item.Name), needle) ||
			strings.Contains(strings.ToLower(item.TempleName), needle) {
			out = append(out, item)
		}
	}
	return out
}

// CountByTemple paginates the temple's full catalog until the server
// reports exhaustion and returns the total contribution count. Independent
// of the cache accumulator; no category filter is applied. Satisfies
// recon.ContributionCounter.
func (c *Cache) CountByTemple(ctx context.Context, templeID int) (int, error) {
	total := 0
	for page := 1; ; page++ {
		result, err := c.lister.ListContributions(ctx, templeID, page, "")
		if err != nil {
			return 0, err
		}
		total += len(result.Contributions)
		if !result.IsNext {
			return total, nil
		}
	}
}
