// Package crop owns the crop rectangle and its corner-drag resize rules.
package crop

import (
	"errors"
	"fmt"
	"math"
)

// MinSize is the smallest width or height the crop rectangle may shrink to.
const MinSize = 50.0

// epsilon absorbs float rounding when an edge is rebuilt from position plus size.
const epsilon = 1e-9

// DefaultHandleSize is the side length of the square handle drawn on each corner.
const DefaultHandleSize = 30.0

// ErrUnknownCorner is returned by ParseCorner for names it does not recognize.
var ErrUnknownCorner = errors.New("unknown corner")

// Point is a position in container-local units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair in container-local units.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is the crop region: top-left offset inside the container plus size.
type Rect struct {
	Position Point `json:"position"`
	Size     Size  `json:"size"`
}

// Container is the fixed area the crop rectangle must stay inside.
type Container struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Corner identifies one of the four drag handles.
type Corner int

const (
	// TopLeft moves the left and top edges.
	TopLeft Corner = iota
	// TopRight moves the right and top edges.
	TopRight
	// BottomLeft moves the left and bottom edges.
	BottomLeft
	// BottomRight moves the right and bottom edges.
	BottomRight
)

// Corners lists every corner in handle order.
func Corners() []Corner {
	return []Corner{TopLeft, TopRight, BottomLeft, BottomRight}
}

// String returns the corner name used on the wire and as a result-table key.
func (c Corner) String() string {
	switch c {
	case TopLeft:
		return "topLeft"
	case TopRight:
		return "topRight"
	case BottomLeft:
		return "bottomLeft"
	case BottomRight:
		return "bottomRight"
	default:
		return fmt.Sprintf("corner(%d)", int(c))
	}
}

// ParseCorner maps a wire name back to a Corner.
func ParseCorner(name string) (Corner, error) {
	for _, c := range Corners() {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCorner, name)
}

// MarshalText encodes the corner by name.
func (c Corner) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a corner name.
func (c *Corner) UnmarshalText(text []byte) error {
	parsed, err := ParseCorner(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// movesLeft reports whether dragging c moves the left edge.
func (c Corner) movesLeft() bool {
	return c == TopLeft || c == BottomLeft
}

// movesTop reports whether dragging c moves the top edge.
func (c Corner) movesTop() bool {
	return c == TopLeft || c == TopRight
}

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 {
	return r.Position.X + r.Size.Width
}

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 {
	return r.Position.Y + r.Size.Height
}

// Contains reports whether p lies inside r (edges inclusive).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Position.X && p.X <= r.Right() && p.Y >= r.Position.Y && p.Y <= r.Bottom()
}

// Within reports whether r satisfies the container bounds and minimum size,
// allowing for float rounding on the far edges.
func (r Rect) Within(c Container) bool {
	return r.Position.X >= 0 && r.Position.Y >= 0 &&
		r.Right() <= c.Width+epsilon && r.Bottom() <= c.Height+epsilon &&
		r.Size.Width >= MinSize && r.Size.Height >= MinSize
}

// CornerPoint returns the container position of the given corner of r.
func (r Rect) CornerPoint(c Corner) Point {
	p := r.Position
	if !c.movesLeft() {
		p.X = r.Right()
	}
	if !c.movesTop() {
		p.Y = r.Bottom()
	}
	return p
}

// DefaultRect returns the rectangle inset by the same margin on every side.
func DefaultRect(c Container, inset float64) Rect {
	return Rect{
		Position: Point{X: inset, Y: inset},
		Size:     Size{Width: c.Width - 2*inset, Height: c.Height - 2*inset},
	}
}

// HitCorner returns the corner whose handle contains p. Handles are squares of
// side handleSize centered on the rectangle corners; the nearest wins on overlap.
func HitCorner(r Rect, p Point, handleSize float64) (Corner, bool) {
	half := handleSize / 2
	best := Corner(0)
	bestDist := math.Inf(1)
	found := false
	for _, c := range Corners() {
		cp := r.CornerPoint(c)
		dx := math.Abs(p.X - cp.X)
		dy := math.Abs(p.Y - cp.Y)
		if dx > half || dy > half {
			continue
		}
		if d := math.Hypot(dx, dy); d < bestDist {
			best, bestDist, found = c, d, true
		}
	}
	return best, found
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
