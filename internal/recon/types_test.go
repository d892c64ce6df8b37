package recon

import (
	"encoding/json"
	"testing"
)

func TestModelJSONOpaque(t *testing.T) {
	g := Group{GroupID: "g1", Model: &Model{ID: "model-42"}}
	data, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var back Group
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back.Model == nil || !back.Model.Opaque() || back.Model.ID != "model-42" {
		t.Errorf("opaque model did not round-trip: %+v", back.Model)
	}
}

func TestModelJSONStructured(t *testing.T) {
	raw := []byte(`{"group_id":"g1","name":"G1","contributions":[],"status":"success","model":{"path":"m.glb","size":10}}`)

	var g Group
	if err := json.Unmarshal(raw, &g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Model == nil || g.Model.Opaque() {
		t.Fatalf("expected structured model, got %+v", g.Model)
	}
	if g.Model.Meta["path"] != "m.glb" {
		t.Errorf("unexpected metadata: %+v", g.Model.Meta)
	}

	// Structured metadata serializes back as an object, not a string.
	out, err := json.Marshal(g.Model)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var obj map[string]any
	if err := json.Unmarshal(out, &obj); err != nil {
		t.Errorf("structured model serialized as non-object: %s", out)
	}
}

func TestModelJSONRejectsOtherShapes(t *testing.T) {
	var m Model
	if err := json.Unmarshal([]byte(`[1,2]`), &m); err == nil {
		t.Error("expected error for array-shaped model")
	}
}
