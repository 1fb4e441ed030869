package lens

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/frudas24/lensdeck/internal/catalog"
	"github.com/frudas24/lensdeck/internal/crop"
)

// newTestSearcher returns a searcher over the default catalog.
func newTestSearcher(t *testing.T, latency time.Duration) *Searcher {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default failed: %v", err)
	}
	return NewSearcher(cat, latency)
}

// TestSearch_AllTab verifies every result for the corner is returned.
func TestSearch_AllTab(t *testing.T) {
	s := newTestSearcher(t, 0)
	got, err := s.Search(context.Background(), crop.TopLeft, "")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 2 || got[0].Title != "Wooden Desktop" || got[1].Title != "Similar Wood Patterns" {
		t.Fatalf("unexpected results %+v", got)
	}
}

// TestSearch_FiltersByTab verifies product, visual and homework tabs.
func TestSearch_FiltersByTab(t *testing.T) {
	s := newTestSearcher(t, 0)
	ctx := context.Background()

	products, err := s.Search(ctx, crop.BottomLeft, TabProducts)
	if err != nil || len(products) != 1 || products[0].Title != "Office Accessories" {
		t.Fatalf("unexpected products %+v err=%v", products, err)
	}
	visual, err := s.Search(ctx, crop.BottomLeft, TabVisual)
	if err != nil || len(visual) != 1 || visual[0].Title != "Related Setups" {
		t.Fatalf("unexpected visual %+v err=%v", visual, err)
	}
	homework, err := s.Search(ctx, crop.BottomLeft, TabHomework)
	if err != nil || len(homework) != 0 {
		t.Fatalf("unexpected homework %+v err=%v", homework, err)
	}
}

// TestSearch_UnknownTab verifies unknown tabs are rejected.
func TestSearch_UnknownTab(t *testing.T) {
	s := newTestSearcher(t, 0)
	if _, err := s.Search(context.Background(), crop.TopLeft, "News"); !errors.Is(err, ErrUnknownTab) {
		t.Fatalf("expected ErrUnknownTab, got %v", err)
	}
}

// TestSearch_CancelledDuringLatency verifies the context aborts the wait.
func TestSearch_CancelledDuringLatency(t *testing.T) {
	s := newTestSearcher(t, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := s.Search(ctx, crop.TopLeft, TabAll); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
