// Package preview renders the current crop of the session photo into the
// MJPEG stream.
package preview

import (
	"errors"
	"image"
	"sync"

	"github.com/frudas24/lensdeck/internal/crop"
	"github.com/frudas24/lensdeck/internal/mjpeg"
	"github.com/frudas24/lensdeck/internal/photo"
)

// ErrNoSource is returned when rendering before a photo is attached.
var ErrNoSource = errors.New("no preview source")

// Renderer crops the attached photo and publishes JPEG frames.
type Renderer struct {
	mu        sync.Mutex
	stream    *mjpeg.Stream
	quality   int
	source    image.Image
	container crop.Container
}

// NewRenderer returns a renderer bound to stream.
func NewRenderer(stream *mjpeg.Stream, quality int) *Renderer {
	if quality <= 0 || quality > 100 {
		quality = 60
	}
	return &Renderer{stream: stream, quality: quality}
}

// Stream returns the stream frames are published to.
func (r *Renderer) Stream() *mjpeg.Stream {
	return r.stream
}

// Attach sets the photo to crop. img must already be fitted to c.
func (r *Renderer) Attach(img image.Image, c crop.Container) {
	r.mu.Lock()
	r.source = img
	r.container = c
	r.mu.Unlock()
}

// Detach drops the photo and clears the stream.
func (r *Renderer) Detach() {
	r.mu.Lock()
	r.source = nil
	r.mu.Unlock()
	r.stream.Clear()
}

// Render publishes the crop of rect. Intermediate frames are skipped while the
// stream is throttled; final frames are always sent.
func (r *Renderer) Render(rect crop.Rect, final bool) error {
	if !final && !r.stream.Due() {
		return nil
	}
	r.mu.Lock()
	src, c, quality := r.source, r.container, r.quality
	r.mu.Unlock()
	if src == nil {
		return ErrNoSource
	}

	img, err := photo.Crop(src, c, rect)
	if err != nil {
		return err
	}
	jpg, err := photo.EncodeJPEG(img, quality)
	if err != nil {
		return err
	}
	if final {
		r.stream.PublishNow(jpg)
	} else {
		r.stream.Publish(jpg)
	}
	return nil
}
