package recon

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// The partition engine maintains the group list of one reconstruction and
// enforces the single-owner invariant: within a reconstruction, a
// contribution id belongs to at most one group. Moves are expressed as
// "add to target, subtract from all others", which keeps the operations
// idempotent and tolerant of callers that do not know current ownership.
//
// All operations here are pure local state transforms and cannot fail due
// to external conditions; misuse (unknown ids, too few merge sources)
// returns a descriptive error instead of corrupting state.

// AddGroup appends an empty group with a fresh id and status success
// ("usable, no processing attempted"). Creating the first group advances a
// pre-grouping reconstruction to created.
func (reg *Registry) AddGroup(reconID, name string) (*Group, error) {
	return reg.AddGroupWithContributions(reconID, uuid.NewString(), name, nil)
}

// AddGroupWithContributions appends a pre-populated group under a
// caller-supplied id. Used by bulk initializers, which are responsible for
// supplying disjoint contribution sets.
func (reg *Registry) AddGroupWithContributions(reconID, groupID, name string, contributions []Contribution) (*Group, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, err := reg.find(reconID)
	if err != nil {
		return nil, err
	}

	if contributions == nil {
		contributions = []Contribution{}
	}
	for i := range contributions {
		normalizeContribution(&contributions[i])
	}

	r.Groups = append(r.Groups, Group{
		GroupID:       groupID,
		Name:          name,
		Contributions: contributions,
		Status:        GroupSuccess,
	})
	reg.advanceToCreated(r)

	log.Debug().
		Str("reconstructionId", reconID).
		Str("groupId", groupID).
		Str("name", name).
		Int("contributions", len(contributions)).
		Msg("Group added")
	return &r.Groups[len(r.Groups)-1], nil
}

// advanceToCreated moves a pre-grouping reconstruction to created.
// Reconstructions already at created or ready are left alone; status never
// regresses from group additions. Callers hold reg.mu.
func (reg *Registry) advanceToCreated(r *Reconstruction) {
	if r.Status == StatusIdle || r.Status == StatusSaving {
		r.Status = StatusCreated
	}
}

// RemoveGroup deletes the group and its membership. Contributions it held
// become ungrouped but remain in the reconstruction's pool.
func (reg *Registry) RemoveGroup(reconID, groupID string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, err := reg.find(reconID)
	if err != nil {
		return err
	}
	gi := r.findGroup(groupID)
	if gi < 0 {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}
	r.Groups = append(r.Groups[:gi], r.Groups[gi+1:]...)
	return nil
}

// AddContributionsToGroup merges the batch into the target group (dedup by
// contribution id) and removes every batch id from all other groups of the
// same reconstruction, maintaining single ownership without requiring the
// caller to know current ownership.
func (reg *Registry) AddContributionsToGroup(reconID, groupID string, batch []Contribution) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, err := reg.find(reconID)
	if err != nil {
		return err
	}
	gi := r.findGroup(groupID)
	if gi < 0 {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}

	batchIDs := make(map[int]bool, len(batch))
	for _, c := range batch {
		batchIDs[c.ContributionID] = true
	}

	// Subtract the batch from every other group first.
	for i := range r.Groups {
		if i == gi {
			continue
		}
		r.Groups[i].Contributions = without(r.Groups[i].Contributions, batchIDs)
	}

	// Then insert anything the target does not already hold.
	target := &r.Groups[gi]
	for _, c := range batch {
		if target.contains(c.ContributionID) {
			continue
		}
		normalizeContribution(&c)
		target.Contributions = append(target.Contributions, c)
	}
	return nil
}

// RemoveContributionsFromGroup removes the given contributions from exactly
// the named group.
func (reg *Registry) RemoveContributionsFromGroup(reconID, groupID string, batch []Contribution) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, err := reg.find(reconID)
	if err != nil {
		return err
	}
	gi := r.findGroup(groupID)
	if gi < 0 {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}

	ids := make(map[int]bool, len(batch))
	for _, c := range batch {
		ids[c.ContributionID] = true
	}
	r.Groups[gi].Contributions = without(r.Groups[gi].Contributions, ids)
	return nil
}

// MoveContributionsBetweenGroups removes the ids from the source group and
// adds the corresponding contributions to the target, skipping ids the
// target already holds. A source-aware alternative to
// AddContributionsToGroup's subtract-from-all-others behavior.
func (reg *Registry) MoveContributionsBetweenGroups(reconID, sourceID, targetID string, contributionIDs []int) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, err := reg.find(reconID)
	if err != nil {
		return err
	}
	si := r.findGroup(sourceID)
	if si < 0 {
		return fmt.Errorf("%w: source %s", ErrGroupNotFound, sourceID)
	}
	ti := r.findGroup(targetID)
	if ti < 0 {
		return fmt.Errorf("%w: target %s", ErrGroupNotFound, targetID)
	}

	ids := make(map[int]bool, len(contributionIDs))
	for _, id := range contributionIDs {
		ids[id] = true
	}

	moved := make([]Contribution, 0, len(contributionIDs))
	for _, c := range r.Groups[si].Contributions {
		if ids[c.ContributionID] {
			moved = append(moved, c)
		}
	}
	r.Groups[si].Contributions = without(r.Groups[si].Contributions, ids)

	target := &r.Groups[ti]
	for _, c := range moved {
		if !target.contains(c.ContributionID) {
			target.Contributions = append(target.Contributions, c)
		}
	}
	return nil
}

// UpdateGroupName renames the group. Names need not be unique.
func (reg *Registry) UpdateGroupName(reconID, groupID, name string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, err := reg.find(reconID)
	if err != nil {
		return err
	}
	gi := r.findGroup(groupID)
	if gi < 0 {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}
	r.Groups[gi].Name = name
	return nil
}

// MergeGroups unions the contributions of two or more groups into one new
// group with a fresh id, removing the sources. Each contribution belongs to
// exactly one source, so the union needs no dedup.
func (reg *Registry) MergeGroups(reconID string, groupIDs []string, newName string) (*Group, error) {
	if len(groupIDs) < 2 {
		return nil, fmt.Errorf("merge requires at least 2 groups, got %d", len(groupIDs))
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, err := reg.find(reconID)
	if err != nil {
		return nil, err
	}

	merging := make(map[string]bool, len(groupIDs))
	for _, id := range groupIDs {
		if r.findGroup(id) < 0 {
			return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, id)
		}
		merging[id] = true
	}

	var union []Contribution
	remaining := r.Groups[:0:0]
	for _, g := range r.Groups {
		if merging[g.GroupID] {
			union = append(union, g.Contributions...)
		} else {
			remaining = append(remaining, g)
		}
	}

	merged := Group{
		GroupID:       uuid.NewString(),
		Name:          newName,
		Contributions: union,
		Status:        GroupSuccess,
	}
	r.Groups = append(remaining, merged)

	log.Info().
		Str("reconstructionId", reconID).
		Strs("sourceGroups", groupIDs).
		Str("mergedGroupId", merged.GroupID).
		Int("contributions", len(union)).
		Msg("Groups merged")
	return &r.Groups[len(r.Groups)-1], nil
}

// InitGroupPerContribution replaces all groups with one single-contribution
// group per entry in the reconstruction's pool.
func (reg *Registry) InitGroupPerContribution(reconID string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, err := reg.find(reconID)
	if err != nil {
		return err
	}

	groups := make([]Group, 0, len(r.Contributions))
	for _, c := range r.Contributions {
		groups = append(groups, Group{
			GroupID:       uuid.NewString(),
			Name:          c.Name,
			Contributions: []Contribution{c},
			Status:        GroupSuccess,
		})
	}
	r.Groups = groups
	reg.advanceToCreated(r)
	return nil
}

// InitGroupPerCategory replaces all groups with one group per category
// label found in the reconstruction's pool, preserving pool order within
// each category.
func (reg *Registry) InitGroupPerCategory(reconID string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, err := reg.find(reconID)
	if err != nil {
		return err
	}

	byCategory := make(map[string]*Group)
	var order []string
	for _, c := range r.Contributions {
		category := c.Category
		if category == "" {
			category = DefaultCategory
		}
		g, ok := byCategory[category]
		if !ok {
			g = &Group{
				GroupID: uuid.NewString(),
				Name:    category,
				Status:  GroupSuccess,
			}
			byCategory[category] = g
			order = append(order, category)
		}
		g.Contributions = append(g.Contributions, c)
	}

	groups := make([]Group, 0, len(order))
	for _, category := range order {
		groups = append(groups, *byCategory[category])
	}
	r.Groups = groups
	reg.advanceToCreated(r)
	return nil
}

// BulkUpdateContributions applies partial field patches to contributions
// matched by id, across the reconstruction's root pool and every group
// copy, keeping the denormalized copies consistent.
func (reg *Registry) BulkUpdateContributions(reconID string, patches []ContributionPatch) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, err := reg.find(reconID)
	if err != nil {
		return err
	}

	byID := make(map[int]ContributionPatch, len(patches))
	for _, p := range patches {
		byID[p.ContributionID] = p
	}

	apply := func(list []Contribution) {
		for i := range list {
			p, ok := byID[list[i].ContributionID]
			if !ok {
				continue
			}
			applyPatch(&list[i], p)
		}
	}

	apply(r.Contributions)
	for gi := range r.Groups {
		apply(r.Groups[gi].Contributions)
	}
	return nil
}

func applyPatch(c *Contribution, p ContributionPatch) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.TempleName != nil {
		c.TempleName = *p.TempleName
	}
	if p.ShareLink != nil {
		c.ShareLink = *p.ShareLink
	}
	if p.Privacy != nil {
		c.Privacy = *p.Privacy
	}
	if p.Category != nil {
		c.Category = *p.Category
	}
	if p.TempleID != nil {
		c.TempleID = *p.TempleID
	}
}

// SetGroupStatus assigns a group's processing status. Driven by the upload
// lifecycle reporting outcomes.
func (reg *Registry) SetGroupStatus(reconID, groupID string, status GroupStatus) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, err := reg.find(reconID)
	if err != nil {
		return err
	}
	gi := r.findGroup(groupID)
	if gi < 0 {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}
	r.Groups[gi].Status = status
	return nil
}

// SetGroupModel attaches a model artifact reference to a group.
func (reg *Registry) SetGroupModel(reconID, groupID string, model *Model) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, err := reg.find(reconID)
	if err != nil {
		return err
	}
	gi := r.findGroup(groupID)
	if gi < 0 {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}
	r.Groups[gi].Model = model
	return nil
}

// without returns the contributions whose ids are not in the exclusion set.
func without(list []Contribution, exclude map[int]bool) []Contribution {
	out := list[:0:0]
	for _, c := range list {
		if !exclude[c.ContributionID] {
			out = append(out, c)
		}
	}
	if out == nil {
		return []Contribution{}
	}
	return out
}
