package recon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveRestoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	reg := NewRegistry()
	r, _ := reg.AddReconstruction("Demo", "tester", []int{10})
	reg.UpdateReconstructionContributions(r.ReconstructionID, []Contribution{
		{ContributionID: 1, Name: "gate photo", Category: "gate"},
	})
	reg.AddGroupWithContributions(r.ReconstructionID, "gA", "Group A", []Contribution{{ContributionID: 1}})
	reg.SetConfigs([]ConfigSelection{{Key: "quality", Value: "high"}})

	if err := reg.Save(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	restored := NewRegistry()
	if err := restored.Restore(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := restored.Get(r.ReconstructionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Label != "Demo" || got.Status != StatusCreated {
		t.Errorf("unexpected restored record: %+v", got)
	}
	if len(got.Groups) != 1 || got.Groups[0].GroupID != "gA" {
		t.Errorf("groups lost in round trip: %+v", got.Groups)
	}
	configs := restored.Configs()
	if len(configs) != 1 || configs[0].Key != "quality" {
		t.Errorf("configs lost in round trip: %+v", configs)
	}
}

func TestRestoreMissingFile(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Restore(filepath.Join(t.TempDir(), "absent.json")); err != nil {
		t.Fatalf("missing state file should not error: %v", err)
	}
	if len(reg.Reconstructions()) != 0 {
		t.Error("expected empty registry")
	}
}

func TestRestoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reg := NewRegistry()
	if err := reg.Restore(path); err == nil {
		t.Error("expected parse error for corrupt state file")
	}
}

// Stored records may predate optional fields; restore must fill the same
// defaults as a fresh list load.
func TestRestoreNormalizesLegacyRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	legacy := `{
	  "reconstructions": [
	    {
	      "reconstruction_id": "r-legacy",
	      "label": "Old",
	      "temple_ids": [3],
	      "status": "created",
	      "groups": [
	        {"group_id": "g1", "name": "G1", "status": "success",
	         "contributions": [{"contribution_id": 5, "name": "n"}]}
	      ]
	    }
	  ],
	  "configs": []
	}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reg := NewRegistry()
	if err := reg.Restore(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r, err := reg.Get("r-legacy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Contributions == nil {
		t.Error("missing pool should default to empty slice")
	}
	c := r.Groups[0].Contributions[0]
	if c.Category != DefaultCategory || c.Privacy != PrivacyPublic || c.TempleID != 0 {
		t.Errorf("legacy contribution not normalized: %+v", c)
	}
}
