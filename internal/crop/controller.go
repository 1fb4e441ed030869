package crop

import (
	"errors"
	"fmt"
)

var (
	// ErrDegenerateContainer means the container cannot hold a MinSize box on both sides of a drag.
	ErrDegenerateContainer = errors.New("container smaller than twice the minimum crop size")
	// ErrInitialRect means the initial rectangle violates the container bounds or minimum size.
	ErrInitialRect = errors.New("initial crop rectangle out of bounds")
)

// Selection is emitted once per completed drag.
type Selection struct {
	Position Point  `json:"position"`
	Size     Size   `json:"size"`
	Corner   Corner `json:"corner"`
}

// Rect returns the selected rectangle.
func (s Selection) Rect() Rect {
	return Rect{Position: s.Position, Size: s.Size}
}

// Listener receives finalized selections.
type Listener interface {
	RegionSelected(Selection)
}

// ListenerFunc adapts a plain function to Listener.
type ListenerFunc func(Selection)

// RegionSelected calls f(sel).
func (f ListenerFunc) RegionSelected(sel Selection) {
	f(sel)
}

// DragSession is the snapshot taken when a corner drag begins. All moves in
// the drag are computed against it, never against the previous move.
type DragSession struct {
	Corner      Corner
	AnchorTouch Point
	AnchorRect  Rect
}

// Config fixes the container and the starting rectangle of a Controller.
type Config struct {
	Container Container
	Initial   Rect
	Listener  Listener
}

// Controller owns the crop rectangle and at most one active drag.
// It is not safe for concurrent use; callers serialize gesture delivery.
type Controller struct {
	container Container
	rect      Rect
	session   *DragSession
	listener  Listener
}

// New validates cfg and returns an idle controller.
func New(cfg Config) (*Controller, error) {
	c := cfg.Container
	if c.Width < 2*MinSize || c.Height < 2*MinSize {
		return nil, fmt.Errorf("%w: %gx%g", ErrDegenerateContainer, c.Width, c.Height)
	}
	if !cfg.Initial.Within(c) {
		return nil, fmt.Errorf("%w: %+v in %gx%g", ErrInitialRect, cfg.Initial, c.Width, c.Height)
	}
	return &Controller{
		container: c,
		rect:      cfg.Initial,
		listener:  cfg.Listener,
	}, nil
}

// Container returns the bounding container.
func (c *Controller) Container() Container {
	return c.container
}

// Rect returns the current crop rectangle.
func (c *Controller) Rect() Rect {
	return c.rect
}

// Session returns a copy of the active drag session, if any.
func (c *Controller) Session() (DragSession, bool) {
	if c.session == nil {
		return DragSession{}, false
	}
	return *c.session, true
}

// Dragging reports whether a drag is in progress.
func (c *Controller) Dragging() bool {
	return c.session != nil
}

// BeginDrag starts a drag on corner. A drag already in progress is replaced.
func (c *Controller) BeginDrag(corner Corner, touch Point) {
	c.session = &DragSession{
		Corner:      corner,
		AnchorTouch: touch,
		AnchorRect:  c.rect,
	}
}

// UpdateDrag resizes the rectangle for the touch's displacement from the
// drag origin. It is a no-op returning false when no drag is active.
func (c *Controller) UpdateDrag(touch Point) (Rect, bool) {
	if c.session == nil {
		return c.rect, false
	}
	dx := touch.X - c.session.AnchorTouch.X
	dy := touch.Y - c.session.AnchorTouch.Y
	c.rect = resize(c.session.AnchorRect, c.session.Corner, dx, dy, c.container)
	return c.rect, true
}

// EndDrag emits the finalized selection and returns to idle. It is a no-op
// returning false when no drag is active.
func (c *Controller) EndDrag() (Selection, bool) {
	if c.session == nil {
		return Selection{}, false
	}
	sel := Selection{
		Position: c.rect.Position,
		Size:     c.rect.Size,
		Corner:   c.session.Corner,
	}
	c.session = nil
	if c.listener != nil {
		c.listener.RegionSelected(sel)
	}
	return sel, true
}

// resize applies the per-corner rule to the anchor rectangle. Every bound is
// derived from the anchor so the result depends on (dx, dy) alone.
func resize(a Rect, corner Corner, dx, dy float64, box Container) Rect {
	out := a
	if corner.movesLeft() {
		out.Size.Width = clamp(a.Size.Width-dx, MinSize, a.Right())
		out.Position.X = clamp(a.Position.X+dx, 0, a.Right()-MinSize)
	} else {
		out.Size.Width = clamp(a.Size.Width+dx, MinSize, box.Width-a.Position.X)
	}
	if corner.movesTop() {
		out.Size.Height = clamp(a.Size.Height-dy, MinSize, a.Bottom())
		out.Position.Y = clamp(a.Position.Y+dy, 0, a.Bottom()-MinSize)
	} else {
		out.Size.Height = clamp(a.Size.Height+dy, MinSize, box.Height-a.Position.Y)
	}
	return out
}
