// Package thumbnail renders proportional JPEG thumbnails from raster image
// bytes. It is a pure transformation: which driver supplied the source and
// where the result is cached is the caller's concern.
package thumbnail

import (
	"bytes"
	"image"
	"image/jpeg"
	"strings"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"

	"github.com/filecrate/filecrate/internal/errs"
)

// Quality is the fixed JPEG encoding quality for all thumbnails.
const Quality = 85

// Size is a thumbnail size class.
type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

// MaxDimension returns the maximum edge length for a size class, or 0 for an
// unrecognised one.
func (s Size) MaxDimension() int {
	switch s {
	case SizeSmall:
		return 150
	case SizeMedium:
		return 400
	case SizeLarge:
		return 800
	default:
		return 0
	}
}

// Valid reports whether s is a known size class.
func (s Size) Valid() bool {
	return s.MaxDimension() > 0
}

// Supported reports whether a content type can be thumbnailed. Raster image
// types only; SVG is scalable and is deliberately excluded.
func Supported(contentType string) bool {
	if contentType == "image/svg+xml" {
		return false
	}
	return strings.HasPrefix(contentType, "image/")
}

// Generate decodes src, scales it so the larger dimension does not exceed
// maxDim (never upscaling), and re-encodes as JPEG. Returns the encoded bytes
// and the output dimensions.
func Generate(src []byte, maxDim int) ([]byte, int, int, error) {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, 0, 0, errs.Validation(errs.CodeInvalidFileType, "content is not a decodable image")
	}

	bounds := img.Bounds()
	w, h := Fit(bounds.Dx(), bounds.Dy(), maxDim)

	out := img
	if w != bounds.Dx() || h != bounds.Dy() {
		scaled := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)
		out = scaled
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: Quality}); err != nil {
		return nil, 0, 0, errs.Wrap(errs.ErrKindIO, "failed to encode thumbnail", err)
	}
	return buf.Bytes(), w, h, nil
}

// Fit computes proportional output dimensions: the larger input dimension is
// capped at maxDim and the other scaled to preserve aspect ratio. Images
// already within maxDim keep their original dimensions.
func Fit(w, h, maxDim int) (int, int) {
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return w, h
	}
	if w >= h {
		scaled := h * maxDim / w
		if scaled < 1 {
			scaled = 1
		}
		return maxDim, scaled
	}
	scaled := w * maxDim / h
	if scaled < 1 {
		scaled = 1
	}
	return scaled, maxDim
}
