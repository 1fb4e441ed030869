// Package photo decodes captured photos and cuts out the selected crop region.
package photo

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/frudas24/lensdeck/internal/crop"
)

// Format names an output encoding.
type Format string

const (
	// FormatJPEG encodes baseline JPEG.
	FormatJPEG Format = "jpeg"
	// FormatPNG encodes PNG.
	FormatPNG Format = "png"
	// FormatWebP encodes lossy WebP.
	FormatWebP Format = "webp"

	defaultQuality = 85
)

// ParseFormat maps a query value to a Format. Empty means JPEG.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "jpg", "jpeg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	default:
		return "", fmt.Errorf("unsupported image format %q", name)
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// ErrTooManyPixels is returned when a photo header declares more pixels than allowed.
var ErrTooManyPixels = errors.New("photo exceeds pixel limit")

// Decode reads an image, falling back to the cgo WebP decoder when the
// registered decoders do not recognize the data. The header is checked
// against maxPixels before any pixel buffer is allocated; maxPixels <= 0
// disables the check.
func Decode(r io.Reader, maxPixels int64) (image.Image, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("read photo: %w", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil {
		if err := checkPixels(cfg.Width, cfg.Height, maxPixels); err != nil {
			return nil, "", err
		}
		img, format, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, "", fmt.Errorf("decode photo: %w", err)
		}
		return img, format, nil
	}

	if w, h, _, werr := webp.GetInfo(data); werr == nil {
		if err := checkPixels(w, h, maxPixels); err != nil {
			return nil, "", err
		}
		if wimg, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
			return wimg, "webp", nil
		}
	}
	return nil, "", fmt.Errorf("decode photo: %w", err)
}

// checkPixels rejects dimensions above maxPixels.
func checkPixels(w, h int, maxPixels int64) error {
	if maxPixels <= 0 {
		return nil
	}
	if w <= 0 || h <= 0 || int64(w)*int64(h) > maxPixels {
		return fmt.Errorf("%w: %dx%d", ErrTooManyPixels, w, h)
	}
	return nil
}

// FitContainer scales and center-crops img to the container's aspect ratio so
// container units map linearly onto pixels.
func FitContainer(img image.Image, c crop.Container) image.Image {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 || c.Width <= 0 || c.Height <= 0 {
		return img
	}
	scale := math.Min(float64(b.Dx())/c.Width, float64(b.Dy())/c.Height)
	w := int(math.Round(c.Width * scale))
	h := int(math.Round(c.Height * scale))
	if w < 1 || h < 1 {
		return img
	}
	return imaging.Fill(img, w, h, imaging.Center, imaging.Lanczos)
}

// PixelRect maps a crop rectangle in container units onto the pixel bounds of
// an image fitted to that container.
func PixelRect(bounds image.Rectangle, c crop.Container, r crop.Rect) image.Rectangle {
	sx := float64(bounds.Dx()) / c.Width
	sy := float64(bounds.Dy()) / c.Height
	px := image.Rect(
		bounds.Min.X+int(math.Floor(r.Position.X*sx)),
		bounds.Min.Y+int(math.Floor(r.Position.Y*sy)),
		bounds.Min.X+int(math.Ceil(r.Right()*sx)),
		bounds.Min.Y+int(math.Ceil(r.Bottom()*sy)),
	)
	return px.Intersect(bounds)
}

// Crop cuts the region r (container units) out of an image fitted to c.
func Crop(img image.Image, c crop.Container, r crop.Rect) (image.Image, error) {
	if c.Width <= 0 || c.Height <= 0 {
		return nil, fmt.Errorf("invalid container %gx%g", c.Width, c.Height)
	}
	px := PixelRect(img.Bounds(), c, r)
	if px.Empty() {
		return nil, fmt.Errorf("crop region %+v is empty", r)
	}
	return imaging.Crop(img, px), nil
}

// Encode writes img in the given format. Quality applies to JPEG and WebP.
func Encode(w io.Writer, img image.Image, f Format, quality int) error {
	if quality <= 0 || quality > 100 {
		quality = defaultQuality
	}
	switch f {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatWebP:
		return webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
	default:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	}
}

// EncodeJPEG returns img as JPEG bytes.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, FormatJPEG, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
