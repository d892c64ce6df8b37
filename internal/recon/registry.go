package recon

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Sentinel errors for registry operations. Network failures from the
// pipeline are wrapped and returned as-is alongside these.
var (
	// ErrNotFound is returned when no reconstruction has the given id.
	ErrNotFound = errors.New("reconstruction not found")
	// ErrGroupNotFound is returned when a reconstruction has no group
	// with the given id.
	ErrGroupNotFound = errors.New("group not found")
	// ErrReadyLocked is returned when deleting a reconstruction that has
	// already been submitted. Ready records are immutable locally.
	ErrReadyLocked = errors.New("reconstruction is ready and cannot be deleted")
)

// Deleter deletes a reconstruction from the remote pipeline store for the
// given month period. Implemented by api.Client.
type Deleter interface {
	DeleteReconstruction(ctx context.Context, id, period string) error
}

// Submitter persists a reconstruction to the remote pipeline store.
// Implemented by api.Client.
type Submitter interface {
	SubmitReconstruction(ctx context.Context, r *Reconstruction) error
}

// Registry owns all in-memory reconstruction records for the currently
// loaded period, plus the global config registry. It is the single shared
// mutable structure of the core; every mutation goes through its methods.
//
// Local transforms commit synchronously. Deletion and submission perform
// one network round-trip each and commit local state only on confirmed
// success, so client and server never diverge on failure.
type Registry struct {
	mu              sync.Mutex
	reconstructions []*Reconstruction
	configs         []ConfigSelection
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// SetReconstructions replaces the entire collection, normalizing each
// record so optional fields that predate the current schema get their
// defaults (empty contributions slice, category "other", privacy
// "public"). Idempotent given identical input.
func (reg *Registry) SetReconstructions(records []*Reconstruction) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, r := range records {
		r.normalize()
	}
	reg.reconstructions = records
	log.Debug().Int("count", len(records)).Msg("Reconstruction collection replaced")
}

// Reconstructions returns the current collection. The returned slice and
// records are live views; callers must not mutate them directly.
func (reg *Registry) Reconstructions() []*Reconstruction {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]*Reconstruction, len(reg.reconstructions))
	copy(out, reg.reconstructions)
	return out
}

// Get returns the reconstruction with the given id.
func (reg *Registry) Get(id string) (*Reconstruction, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.find(id)
}

// find looks up a reconstruction by id. Callers hold reg.mu.
func (reg *Registry) find(id string) (*Reconstruction, error) {
	for _, r := range reg.reconstructions {
		if r.ReconstructionID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// AddReconstruction constructs a new reconstruction with a fresh id, empty
// groups and contributions, and status idle. Local-only; the record reaches
// the pipeline on Submit. Label must be non-blank and templeIDs non-empty.
func (reg *Registry) AddReconstruction(label, user string, templeIDs []int) (*Reconstruction, error) {
	if label == "" {
		return nil, fmt.Errorf("label must not be blank")
	}
	if len(templeIDs) == 0 {
		return nil, fmt.Errorf("at least one temple id is required")
	}

	r := &Reconstruction{
		ReconstructionID: newReconstructionID(),
		Label:            label,
		TempleIDs:        append([]int(nil), templeIDs...),
		Groups:           []Group{},
		Contributions:    []Contribution{},
		User:             user,
		CreatedAt:        time.Now().UTC(),
		Status:           StatusIdle,
	}

	reg.mu.Lock()
	reg.reconstructions = append(reg.reconstructions, r)
	reg.mu.Unlock()

	log.Info().
		Str("reconstructionId", r.ReconstructionID).
		Str("label", label).
		Ints("templeIds", templeIDs).
		Msg("Reconstruction created")
	return r, nil
}

// RemoveReconstruction requests remote deletion scoped to period and drops
// the local record only if the pipeline confirms. Ready reconstructions are
// refused before any network call. On remote failure local state is
// untouched; the caller re-derives state from a subsequent list refresh.
func (reg *Registry) RemoveReconstruction(ctx context.Context, d Deleter, id, period string) error {
	reg.mu.Lock()
	r, err := reg.find(id)
	if err != nil {
		reg.mu.Unlock()
		return err
	}
	if r.Status == StatusReady {
		reg.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrReadyLocked, id)
	}
	reg.mu.Unlock()

	if err := d.DeleteReconstruction(ctx, id, period); err != nil {
		log.Warn().Err(err).Str("reconstructionId", id).Msg("Remote deletion failed, local state unchanged")
		return fmt.Errorf("delete reconstruction %s: %w", id, err)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	for i, rec := range reg.reconstructions {
		if rec.ReconstructionID == id {
			reg.reconstructions = append(reg.reconstructions[:i], reg.reconstructions[i+1:]...)
			break
		}
	}
	log.Info().Str("reconstructionId", id).Str("period", period).Msg("Reconstruction deleted")
	return nil
}

// UpdateReconstructionContributions replaces a reconstruction's candidate
// contribution pool wholesale.
func (reg *Registry) UpdateReconstructionContributions(id string, contributions []Contribution) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, err := reg.find(id)
	if err != nil {
		return err
	}
	if contributions == nil {
		contributions = []Contribution{}
	}
	for i := range contributions {
		normalizeContribution(&contributions[i])
	}
	r.Contributions = contributions
	return nil
}

// Submit serializes the reconstruction and posts it to the pipeline. On
// success the status transitions to ready; on failure the error propagates
// and status is unchanged.
func (reg *Registry) Submit(ctx context.Context, s Submitter, id string) error {
	reg.mu.Lock()
	r, err := reg.find(id)
	if err != nil {
		reg.mu.Unlock()
		return err
	}
	reg.mu.Unlock()

	if err := s.SubmitReconstruction(ctx, r); err != nil {
		return fmt.Errorf("submit reconstruction %s: %w", id, err)
	}

	reg.mu.Lock()
	r.Status = StatusReady
	reg.mu.Unlock()

	log.Info().Str("reconstructionId", id).Msg("Reconstruction submitted, status ready")
	return nil
}

// UpdateStatus assigns the reconstruction status directly. Used by the
// submission flow and by group creation.
func (reg *Registry) UpdateStatus(id string, status ReconStatus) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, err := reg.find(id)
	if err != nil {
		return err
	}
	r.Status = status
	return nil
}

// SelectConfig attaches one of the globally registered configs to the
// reconstruction. The selection is required before submission produces a
// meaningful payload, but that is a caller-side convention.
func (reg *Registry) SelectConfig(id, key string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, err := reg.find(id)
	if err != nil {
		return err
	}
	for _, c := range reg.configs {
		if c.Key == key {
			sel := c
			r.Config = &sel
			return nil
		}
	}
	return fmt.Errorf("config %q not registered", key)
}

// SetConfigs replaces the global config registry.
func (reg *Registry) SetConfigs(configs []ConfigSelection) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.configs = configs
}

// Configs returns the global config registry.
func (reg *Registry) Configs() []ConfigSelection {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]ConfigSelection, len(reg.configs))
	copy(out, reg.configs)
	return out
}

// MergeDetail reconciles one authoritative remote record into the local
// registry, replacing the local copy if present and appending otherwise.
func (reg *Registry) MergeDetail(detail *Reconstruction) {
	detail.normalize()

	reg.mu.Lock()
	defer reg.mu.Unlock()

	for i, r := range reg.reconstructions {
		if r.ReconstructionID == detail.ReconstructionID {
			reg.reconstructions[i] = detail
			log.Debug().Str("reconstructionId", detail.ReconstructionID).Msg("Local record replaced with remote detail")
			return
		}
	}
	reg.reconstructions = append(reg.reconstructions, detail)
}

// newReconstructionID creates a time-based reconstruction id with a short
// random suffix so ids stay unique within a burst of creations.
func newReconstructionID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		log.Fatal().Err(err).Msg("Failed to generate random reconstruction ID suffix")
	}
	return fmt.Sprintf("recon-%d-%s", time.Now().UnixMilli(), hex.EncodeToString(b))
}
