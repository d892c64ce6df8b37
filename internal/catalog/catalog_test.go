package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fpang/temple-recon/internal/api"
	"github.com/fpang/temple-recon/internal/recon"
)

// fakeLister serves scripted pages keyed by temple id and page number.
type fakeLister struct {
	pages map[int]map[int]*api.ContributionPage
	calls int
	err   error
}

func (f *fakeLister) ListContributions(ctx context.Context, templeID, page int, category string) (*api.ContributionPage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	byPage, ok := f.pages[templeID]
	if !ok {
		return nil, fmt.Errorf("unknown temple %d", templeID)
	}
	p, ok := byPage[page]
	if !ok {
		return &api.ContributionPage{}, nil
	}
	return p, nil
}

func pagesFor(templeID int, sizes ...int) *fakeLister {
	byPage := make(map[int]*api.ContributionPage)
	next := 0
	for i, size := range sizes {
		items := make([]recon.Contribution, size)
		for j := range items {
			next++
			items[j] = recon.Contribution{ContributionID: next, Name: fmt.Sprintf("item-%d", next)}
		}
		byPage[i+1] = &api.ContributionPage{Contributions: items, IsNext: i < len(sizes)-1}
	}
	return &fakeLister{pages: map[int]map[int]*api.ContributionPage{templeID: byPage}}
}

func TestFetchPageReplaceAndAppend(t *testing.T) {
	cache := NewCache(pagesFor(10, 2, 2, 1))

	if err := cache.FetchPage(context.Background(), 10, 1, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(cache.Items()); got != 2 {
		t.Errorf("expected 2 items after page 1, got %d", got)
	}
	if !cache.IsNext() {
		t.Error("expected more pages after page 1")
	}

	if err := cache.FetchPage(context.Background(), 10, 2, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(cache.Items()); got != 4 {
		t.Errorf("expected 4 items after page 2, got %d", got)
	}

	if err := cache.FetchPage(context.Background(), 10, 3, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(cache.Items()); got != 5 {
		t.Errorf("expected 5 items after page 3, got %d", got)
	}
	if cache.IsNext() {
		t.Error("expected exhaustion after final page")
	}

	// Page 1 resets the accumulator.
	if err := cache.FetchPage(context.Background(), 10, 1, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(cache.Items()); got != 2 {
		t.Errorf("expected accumulator reset to 2 items, got %d", got)
	}
}

func TestFetchPageFailureTreatedAsExhausted(t *testing.T) {
	lister := pagesFor(10, 2, 2)
	cache := NewCache(lister)

	if err := cache.FetchPage(context.Background(), 10, 1, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lister.err = errors.New("gateway timeout")
	err := cache.FetchPage(context.Background(), 10, 2, "")
	if err == nil {
		t.Fatal("expected error to surface for display")
	}
	// Prior contents survive; pagination stops.
	if got := len(cache.Items()); got != 2 {
		t.Errorf("expected accumulator untouched at 2, got %d", got)
	}
	if cache.IsNext() {
		t.Error("failed fetch must read as no more pages")
	}
}

func TestSearch(t *testing.T) {
	lister := &fakeLister{pages: map[int]map[int]*api.ContributionPage{
		10: {1: {Contributions: []recon.Contribution{
			{ContributionID: 1, Name: "North Gate", TempleName: "Kinkaku"},
			{ContributionID: 2, Name: "Garden", TempleName: "Ginkaku"},
			{ContributionID: 3, Name: "roof detail", TempleName: "Kinkaku"},
		}}},
	}}
	cache := NewCache(lister)
	if err := cache.FetchPage(context.Background(), 10, 1, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"gate", 1},
		{"kinkaku", 2},
		{"missing", 0},
	}
	for _, tt := range tests {
		if got := len(cache.Search(tt.query)); got != tt.want {
			t.Errorf("Search(%q) returned %d items, want %d", tt.query, got, tt.want)
		}
	}
}

func TestCountByTemple(t *testing.T) {
	lister := pagesFor(10, 3, 3, 2)
	cache := NewCache(lister)

	total, err := cache.CountByTemple(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 8 {
		t.Errorf("expected 8, got %d", total)
	}
	if lister.calls != 3 {
		t.Errorf("expected 3 page fetches, got %d", lister.calls)
	}
}

func TestCountByTempleError(t *testing.T) {
	cache := NewCache(&fakeLister{err: errors.New("down")})
	if _, err := cache.CountByTemple(context.Background(), 10); err == nil {
		t.Error("expected error")
	}
}
