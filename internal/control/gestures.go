package control

import (
	"math"
	"time"

	"github.com/frudas24/lensdeck/internal/crop"
)

const (
	minMoveInterval = 16 * time.Millisecond
	minMoveDelta    = 2.0
)

// DragTarget receives the corner-drag protocol. crop.Controller and
// session.Session both implement it.
type DragTarget interface {
	BeginDrag(corner crop.Corner, touch crop.Point)
	UpdateDrag(touch crop.Point) (crop.Rect, bool)
	EndDrag() (crop.Selection, bool)
}

// GestureState binds a corner drag to the pointer that started it and
// throttles move events.
type GestureState struct {
	dragActive  bool
	dragPointer int
	lastMoveAt  time.Time
	last        crop.Point
	now         func() time.Time
}

// NewGestureState returns a ready-to-use gesture tracker.
func NewGestureState() *GestureState {
	return &GestureState{now: time.Now}
}

// SetNowFunc overrides the clock used for throttling.
func (g *GestureState) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		g.now = fn
	}
}

// Active reports whether a drag is bound to a pointer.
func (g *GestureState) Active() bool {
	return g.dragActive
}

// Reset forgets the active drag without touching the target.
func (g *GestureState) Reset() {
	g.dragActive = false
	g.lastMoveAt = time.Time{}
}

// HandleDown starts a drag on corner. A down from any pointer replaces the
// active drag.
func (g *GestureState) HandleDown(t DragTarget, pointerID int, corner crop.Corner, p crop.Point) {
	g.dragActive = true
	g.dragPointer = pointerID
	g.lastMoveAt = g.now()
	g.last = p
	t.BeginDrag(corner, p)
}

// HandleMove forwards a move from the drag's pointer unless it arrives too
// soon or too close to the last forwarded one.
func (g *GestureState) HandleMove(t DragTarget, pointerID int, p crop.Point) (crop.Rect, bool) {
	if !g.dragActive || g.dragPointer != pointerID {
		return crop.Rect{}, false
	}

	now := g.now()
	if !g.lastMoveAt.IsZero() && now.Sub(g.lastMoveAt) < minMoveInterval {
		return crop.Rect{}, false
	}
	if math.Abs(p.X-g.last.X) < minMoveDelta && math.Abs(p.Y-g.last.Y) < minMoveDelta {
		return crop.Rect{}, false
	}

	g.lastMoveAt = now
	g.last = p
	return t.UpdateDrag(p)
}

// HandleUp applies the release point and finalizes the drag. The release
// point is never throttled so the selection matches where the finger left.
func (g *GestureState) HandleUp(t DragTarget, pointerID int, p crop.Point) (crop.Selection, bool) {
	if !g.dragActive || g.dragPointer != pointerID {
		return crop.Selection{}, false
	}
	g.dragActive = false
	t.UpdateDrag(p)
	return t.EndDrag()
}

// HandleCancel finalizes the drag at its last applied position.
func (g *GestureState) HandleCancel(t DragTarget, pointerID int) (crop.Selection, bool) {
	if !g.dragActive || g.dragPointer != pointerID {
		return crop.Selection{}, false
	}
	g.dragActive = false
	return t.EndDrag()
}
