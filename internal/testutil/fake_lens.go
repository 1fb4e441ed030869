package testutil

import (
	"context"
	"sync"

	"github.com/frudas24/lensdeck/internal/catalog"
	"github.com/frudas24/lensdeck/internal/crop"
)

// Call records a single search or render.
type Call struct {
	Name   string
	Corner crop.Corner
	Tab    string
	Rect   crop.Rect
	Final  bool
}

// FakeLens records searches and renders for tests. It is safe for
// concurrent use.
type FakeLens struct {
	mu      sync.Mutex
	calls   []Call
	Results map[crop.Corner][]catalog.Result
	Err     error
	// Block, when set, is waited on before a search returns.
	Block chan struct{}
}

// Search records the query and returns the canned results for corner.
func (f *FakeLens) Search(ctx context.Context, corner crop.Corner, tab string) ([]catalog.Result, error) {
	f.record(Call{Name: "Search", Corner: corner, Tab: tab})
	if f.Block != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-f.Block:
		}
	}
	if f.Err != nil {
		return nil, f.Err
	}
	return append([]catalog.Result(nil), f.Results[corner]...), nil
}

// Render records a preview render.
func (f *FakeLens) Render(rect crop.Rect, final bool) error {
	f.record(Call{Name: "Render", Rect: rect, Final: final})
	return nil
}

// Calls returns a copy of the recorded calls.
func (f *FakeLens) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// record appends a call.
func (f *FakeLens) record(c Call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}
