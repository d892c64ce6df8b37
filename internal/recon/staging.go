package recon

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ContributionCounter reports the total number of contributions the remote
// catalog holds for one temple. Implemented by catalog.Cache, which
// paginates until the server's is_next flag goes false.
type ContributionCounter interface {
	CountByTemple(ctx context.Context, templeID int) (int, error)
}

// StagedCount reports how many of the reconstruction's source temples'
// contributions have not yet been assigned to any group. Per-temple totals
// are fetched in parallel and summed; the grouped total is subtracted and
// the result clamped at zero, since local grouping can outpace a stale
// catalog total mid-pagination.
//
// The value is derived and recomputed on demand; it is never persisted.
func (reg *Registry) StagedCount(ctx context.Context, counter ContributionCounter, reconID string) (int, error) {
	reg.mu.Lock()
	r, err := reg.find(reconID)
	if err != nil {
		reg.mu.Unlock()
		return 0, err
	}
	templeIDs := append([]int(nil), r.TempleIDs...)
	grouped := r.GroupedCount()
	reg.mu.Unlock()

	totals := make([]int, len(templeIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, templeID := range templeIDs {
		i, templeID := i, templeID
		g.Go(func() error {
			n, err := counter.CountByTemple(gctx, templeID)
			if err != nil {
				return fmt.Errorf("count contributions for temple %d: %w", templeID, err)
			}
			totals[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for _, n := range totals {
		total += n
	}

	staged := total - grouped
	if staged < 0 {
		staged = 0
	}
	log.Debug().
		Str("reconstructionId", reconID).
		Int("catalogTotal", total).
		Int("grouped", grouped).
		Int("staged", staged).
		Msg("Staged count computed")
	return staged, nil
}
