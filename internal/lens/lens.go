// Package lens answers visual searches for a selected crop region.
package lens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frudas24/lensdeck/internal/catalog"
	"github.com/frudas24/lensdeck/internal/crop"
)

// Tab names shown above the results list.
const (
	TabAll      = "All"
	TabProducts = "Products"
	TabHomework = "Homework"
	TabVisual   = "Visual matches"
)

const (
	typeProduct = "product"
	typeVisual  = "visual"
)

// ErrUnknownTab is returned for tab names outside Tabs().
var ErrUnknownTab = errors.New("unknown results tab")

// Tabs lists the result tabs in display order.
func Tabs() []string {
	return []string{TabAll, TabProducts, TabHomework, TabVisual}
}

// ValidTab reports whether tab is one of Tabs().
func ValidTab(tab string) bool {
	for _, t := range Tabs() {
		if t == tab {
			return true
		}
	}
	return false
}

// Searcher looks up results for a corner after a simulated round trip.
type Searcher struct {
	catalog catalog.Catalog
	latency time.Duration
}

// NewSearcher returns a searcher over cat that waits latency per query.
func NewSearcher(cat catalog.Catalog, latency time.Duration) *Searcher {
	if latency < 0 {
		latency = 0
	}
	return &Searcher{catalog: cat, latency: latency}
}

// Search returns the results for corner filtered by tab. An empty tab means All.
func (s *Searcher) Search(ctx context.Context, corner crop.Corner, tab string) ([]catalog.Result, error) {
	if tab == "" {
		tab = TabAll
	}
	if !ValidTab(tab) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTab, tab)
	}
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return Filter(s.catalog.ResultsFor(corner), tab), nil
}

// Filter keeps the results that belong on tab.
func Filter(results []catalog.Result, tab string) []catalog.Result {
	var want string
	switch tab {
	case TabAll:
		return results
	case TabProducts:
		want = typeProduct
	case TabVisual:
		want = typeVisual
	default:
		return []catalog.Result{}
	}
	out := make([]catalog.Result, 0, len(results))
	for _, r := range results {
		if r.Type == want {
			out = append(out, r)
		}
	}
	return out
}
