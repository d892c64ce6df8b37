package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fpang/temple-recon/internal/recon"
)

// newTestClient creates a Client pointing at a test HTTP server.
func newTestClient(server *httptest.Server) *Client {
	return &Client{
		httpClient: server.Client(),
		baseURL:    server.URL,
		token:      "test-token",
	}
}

func TestListReconstructions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/reconstructions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("month") != "202608" {
			t.Errorf("unexpected month: %s", r.URL.Query().Get("month"))
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}

		json.NewEncoder(w).Encode(listResponse{
			Datas: []*recon.Reconstruction{
				{ReconstructionID: "r1", Label: "Main hall", Status: recon.StatusCreated},
				{ReconstructionID: "r2", Label: "Gate", Status: recon.StatusIdle},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server)
	records, err := client.ListReconstructions(context.Background(), "202608")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 || records[0].ReconstructionID != "r1" {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestListReconstructionsPipelineError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(listResponse{Error: "period locked"})
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.ListReconstructions(context.Background(), "202608")
	if err == nil || !strings.Contains(err.Error(), "period locked") {
		t.Errorf("expected pipeline error, got: %v", err)
	}
}

func TestGetReconstruction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reconstructions/r1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(listResponse{
			Datas: []*recon.Reconstruction{{ReconstructionID: "r1", Label: "Main hall"}},
		})
	}))
	defer server.Close()

	client := newTestClient(server)
	r, err := client.GetReconstruction(context.Background(), "r1", "202608")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Label != "Main hall" {
		t.Errorf("unexpected record: %+v", r)
	}
}

func TestDeleteReconstruction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		if r.URL.Path != "/reconstructions/r1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("date") != "202608" {
			t.Errorf("unexpected date: %s", r.URL.Query().Get("date"))
		}
		json.NewEncoder(w).Encode(messageResponse{Message: deleteConfirmation})
	}))
	defer server.Close()

	client := newTestClient(server)
	if err := client.DeleteReconstruction(context.Background(), "r1", "202608"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeleteReconstructionWrongMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 2xx but without the exact confirmation message is still a failure.
		json.NewEncoder(w).Encode(messageResponse{Message: "queued"})
	}))
	defer server.Close()

	client := newTestClient(server)
	err := client.DeleteReconstruction(context.Background(), "r1", "202608")
	if err == nil || !strings.Contains(err.Error(), "queued") {
		t.Errorf("expected unexpected-response error, got: %v", err)
	}
}

func TestDeleteReconstructionServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server)
	err := client.DeleteReconstruction(context.Background(), "r1", "202608")
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("expected status error, got: %v", err)
	}
}

func TestSubmitReconstruction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/reconstructions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var payload recon.Reconstruction
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("invalid payload: %v", err)
		}
		if payload.Label != "Main hall" || payload.Config == nil || payload.Config.Value != "high" {
			t.Errorf("payload missing detail: %+v", payload)
		}
		if len(payload.Groups) != 1 || len(payload.Groups[0].Contributions) != 1 {
			t.Errorf("payload missing group detail: %+v", payload.Groups)
		}

		json.NewEncoder(w).Encode(messageResponse{Message: "ok"})
	}))
	defer server.Close()

	client := newTestClient(server)
	err := client.SubmitReconstruction(context.Background(), &recon.Reconstruction{
		ReconstructionID: "r1",
		Label:            "Main hall",
		User:             "tester",
		Config:           &recon.ConfigSelection{Key: "quality", Value: "high"},
		Groups: []recon.Group{
			{GroupID: "g1", Name: "G1", Status: recon.GroupSuccess,
				Contributions: []recon.Contribution{{ContributionID: 1}}},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSubmitReconstructionNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(messageResponse{Error: "no groups"})
	}))
	defer server.Close()

	client := newTestClient(server)
	err := client.SubmitReconstruction(context.Background(), &recon.Reconstruction{ReconstructionID: "r1"})
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Errorf("expected status error, got: %v", err)
	}
}

func TestListContributions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/private/contributions/list/10" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("page") != "2" {
			t.Errorf("unexpected page: %s", r.URL.Query().Get("page"))
		}
		if r.URL.Query().Get("area") != "gate" {
			t.Errorf("unexpected area: %s", r.URL.Query().Get("area"))
		}

		json.NewEncoder(w).Encode(contributionsResponse{
			Datas: []recon.Contribution{
				{ContributionID: 21, Name: "south gate", Category: "gate"},
			},
			IsNext: true,
		})
	}))
	defer server.Close()

	client := newTestClient(server)
	page, err := client.ListContributions(context.Background(), 10, 2, "gate")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Contributions) != 1 || page.Contributions[0].ContributionID != 21 {
		t.Errorf("unexpected page: %+v", page)
	}
	if !page.IsNext {
		t.Error("expected is_next true")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		limit    int
		expected string
	}{
		{"short", 10, "short"},
		{"this is a long string", 10, "this is a ..."},
		{"exact", 5, "exact"},
	}
	for _, tt := range tests {
		got := truncate(tt.input, tt.limit)
		if got != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.limit, got, tt.expected)
		}
	}
}
