// Package recon holds the reconstruction grouping and staging core: the
// in-memory registry of reconstruction jobs for a month period, the group
// partition engine that distributes temple contributions among groups, and
// the staging reconciliation that reports how many fetched contributions
// remain ungrouped.
//
// All state lives in a single Registry owned by the process. Mutation is
// funneled through Registry methods; callers never write fields directly.
package recon

import (
	"encoding/json"
	"fmt"
	"time"
)

// ReconStatus is the lifecycle status of a reconstruction. Under normal
// operation it only moves forward: idle → created → ready.
type ReconStatus string

const (
	// StatusIdle is the initial state: created locally, no groups yet.
	StatusIdle ReconStatus = "idle"
	// StatusSaving marks a reconstruction whose contribution pool is being
	// populated but which has no groups yet.
	StatusSaving ReconStatus = "saving"
	// StatusCreated means at least one group exists.
	StatusCreated ReconStatus = "created"
	// StatusReady means the reconstruction was submitted successfully.
	// Ready reconstructions cannot be deleted.
	StatusReady ReconStatus = "ready"
)

// GroupStatus is the processing status of a single group.
//
// Note: new groups start at GroupSuccess, meaning "group exists and is
// usable", not "model computed". The upload lifecycle drives the
// processing/failed transitions. This conflation mirrors the pipeline's
// wire format, which uses a single status field for both meanings.
type GroupStatus string

const (
	GroupPending    GroupStatus = "pending"
	GroupProcessing GroupStatus = "processing"
	GroupSuccess    GroupStatus = "success"
	GroupFailed     GroupStatus = "failed"
)

// Privacy settings for a contribution's share link.
const (
	PrivacyPublic  = "public"
	PrivacyPrivate = "private"
)

// DefaultCategory is assumed when a contribution carries no area label.
const DefaultCategory = "other"

// Contribution is a single user-submitted media item tied to a temple.
// Within one reconstruction a contribution id appears in at most one
// group's list; the reconstruction's root pool tracks membership
// independently of grouping.
type Contribution struct {
	ContributionID int    `json:"contribution_id"`
	Name           string `json:"name"`
	TempleName     string `json:"temple_name"`
	ShareLink      string `json:"share_link"`
	Privacy        string `json:"privacy_setting"`
	Category       string `json:"category"`
	TempleID       int    `json:"temple_id"`
}

// ContributionPatch is a partial update applied to a contribution by id,
// across the root pool and every group copy. Nil fields are left untouched.
type ContributionPatch struct {
	ContributionID int
	Name           *string
	TempleName     *string
	ShareLink      *string
	Privacy        *string
	Category       *string
	TempleID       *int
}

// Model is the artifact reference attached to a group after upload. The
// pipeline returns either an opaque string identifier or a structured
// metadata object; both shapes round-trip through JSON unchanged.
type Model struct {
	// ID is set when the artifact is an opaque string identifier.
	ID string
	// Meta is set when the artifact is a structured object.
	Meta map[string]any
}

// Opaque reports whether the model is a bare string identifier.
func (m *Model) Opaque() bool { return m != nil && m.Meta == nil }

// MarshalJSON emits either the opaque string or the structured object.
func (m Model) MarshalJSON() ([]byte, error) {
	if m.Meta != nil {
		return json.Marshal(m.Meta)
	}
	return json.Marshal(m.ID)
}

// UnmarshalJSON accepts both the string and the object form.
func (m *Model) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		m.ID = s
		m.Meta = nil
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("model is neither string nor object: %w", err)
	}
	m.ID = ""
	m.Meta = obj
	return nil
}

// Group is a named partition of contributions within one reconstruction,
// the unit of independent model processing.
type Group struct {
	GroupID       string         `json:"group_id"`
	Name          string         `json:"name"`
	Contributions []Contribution `json:"contributions"`
	Model         *Model         `json:"model,omitempty"`
	Status        GroupStatus    `json:"status"`
}

// contains reports whether the group already holds the contribution id.
func (g *Group) contains(contributionID int) bool {
	for _, c := range g.Contributions {
		if c.ContributionID == contributionID {
			return true
		}
	}
	return false
}

// ConfigSelection is a named key/value processing parameter chosen for a
// reconstruction from the global config registry.
type ConfigSelection struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Reconstruction is a job aggregating one or more temples' contributions
// into groups for eventual submission to the processing pipeline.
type Reconstruction struct {
	ReconstructionID string           `json:"reconstruction_id"`
	Label            string           `json:"label"`
	TempleIDs        []int            `json:"temple_ids"`
	Groups           []Group          `json:"groups"`
	Contributions    []Contribution   `json:"contributions"`
	User             string           `json:"user"`
	CreatedAt        time.Time        `json:"created_at"`
	Config           *ConfigSelection `json:"configuration,omitempty"`
	Status           ReconStatus      `json:"status"`
	DeletedAt        *time.Time       `json:"deleted_at,omitempty"`
}

// GroupedCount returns the number of contributions currently assigned to
// any group of the reconstruction.
func (r *Reconstruction) GroupedCount() int {
	total := 0
	for i := range r.Groups {
		total += len(r.Groups[i].Contributions)
	}
	return total
}

// findGroup returns the index of the group with the given id, or -1.
func (r *Reconstruction) findGroup(groupID string) int {
	for i := range r.Groups {
		if r.Groups[i].GroupID == groupID {
			return i
		}
	}
	return -1
}

// normalize fills defaults on records restored from disk or received from
// the pipeline: older records may predate optional fields.
func (r *Reconstruction) normalize() {
	if r.Contributions == nil {
		r.Contributions = []Contribution{}
	}
	for i := range r.Contributions {
		normalizeContribution(&r.Contributions[i])
	}
	for gi := range r.Groups {
		g := &r.Groups[gi]
		if g.Contributions == nil {
			g.Contributions = []Contribution{}
		}
		for ci := range g.Contributions {
			normalizeContribution(&g.Contributions[ci])
		}
	}
}

func normalizeContribution(c *Contribution) {
	if c.Category == "" {
		c.Category = DefaultCategory
	}
	if c.Privacy == "" {
		c.Privacy = PrivacyPublic
	}
}
