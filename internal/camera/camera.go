// Package camera models the capture screen controls.
package camera

import (
	"fmt"
	"math"
)

// Facing selects the active lens.
type Facing string

// Flash is the flash mode.
type Flash string

const (
	// FacingBack is the rear camera.
	FacingBack Facing = "back"
	// FacingFront is the selfie camera.
	FacingFront Facing = "front"

	// FlashOff disables the flash.
	FlashOff Flash = "off"
	// FlashOn enables the flash.
	FlashOn Flash = "on"

	zoomStep = 0.1
)

// Op names a capture screen control.
type Op string

const (
	// OpFlash toggles the flash.
	OpFlash Op = "flash"
	// OpFlip switches between front and back cameras.
	OpFlip Op = "flip"
	// OpZoomIn increases zoom by one step.
	OpZoomIn Op = "zoomIn"
	// OpZoomOut decreases zoom by one step.
	OpZoomOut Op = "zoomOut"
)

// Settings is the camera state shown on the capture screen.
type Settings struct {
	Facing Facing  `json:"facing"`
	Flash  Flash   `json:"flash"`
	Zoom   float64 `json:"zoom"`
}

// Default returns the back camera, flash off, no zoom.
func Default() Settings {
	return Settings{Facing: FacingBack, Flash: FlashOff}
}

// Apply returns the settings after running op.
func (s Settings) Apply(op Op) (Settings, error) {
	switch op {
	case OpFlash:
		return s.ToggleFlash(), nil
	case OpFlip:
		return s.ToggleFacing(), nil
	case OpZoomIn:
		return s.ZoomIn(), nil
	case OpZoomOut:
		return s.ZoomOut(), nil
	default:
		return s, fmt.Errorf("unknown camera op %q", op)
	}
}

// ToggleFlash flips the flash mode.
func (s Settings) ToggleFlash() Settings {
	if s.Flash == FlashOn {
		s.Flash = FlashOff
	} else {
		s.Flash = FlashOn
	}
	return s
}

// ToggleFacing switches between front and back.
func (s Settings) ToggleFacing() Settings {
	if s.Facing == FacingFront {
		s.Facing = FacingBack
	} else {
		s.Facing = FacingFront
	}
	return s
}

// ZoomIn raises zoom by one step, capped at 1.
func (s Settings) ZoomIn() Settings {
	s.Zoom = roundZoom(math.Min(s.Zoom+zoomStep, 1))
	return s
}

// ZoomOut lowers zoom by one step, floored at 0.
func (s Settings) ZoomOut() Settings {
	s.Zoom = roundZoom(math.Max(s.Zoom-zoomStep, 0))
	return s
}

// roundZoom keeps repeated steps on the 0.1 grid.
func roundZoom(z float64) float64 {
	return math.Round(z*10) / 10
}
