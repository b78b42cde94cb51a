package thumbnail

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecrate/filecrate/internal/errs"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFit(t *testing.T) {
	tests := []struct {
		name             string
		w, h, maxDim     int
		wantW, wantH     int
	}{
		{"landscape capped", 800, 400, 200, 200, 100},
		{"portrait capped", 400, 800, 200, 100, 200},
		{"square capped", 500, 500, 150, 150, 150},
		{"already small is untouched", 100, 50, 200, 100, 50},
		{"exact fit untouched", 200, 200, 200, 200, 200},
		{"extreme ratio floors at one", 10000, 10, 100, 100, 1},
		{"zero max is untouched", 300, 300, 0, 300, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := Fit(tt.w, tt.h, tt.maxDim)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestGenerate(t *testing.T) {
	src := encodePNG(t, 600, 300)

	encoded, w, h, err := Generate(src, 150)
	require.NoError(t, err)
	assert.Equal(t, 150, w)
	assert.Equal(t, 75, h)

	img, err := jpeg.Decode(bytes.NewReader(encoded))
	require.NoError(t, err)
	assert.Equal(t, 150, img.Bounds().Dx())
	assert.Equal(t, 75, img.Bounds().Dy())
}

func TestGenerateNeverUpscales(t *testing.T) {
	src := encodePNG(t, 40, 20)

	_, w, h, err := Generate(src, 150)
	require.NoError(t, err)
	assert.Equal(t, 40, w)
	assert.Equal(t, 20, h)
}

func TestGenerateRejectsNonImage(t *testing.T) {
	_, _, _, err := Generate([]byte("definitely not an image"), 150)
	require.Error(t, err)
	assert.True(t, errs.IsValidationFailed(err))
	assert.Equal(t, errs.CodeInvalidFileType, errs.CodeOf(err))
}

func TestSizeClasses(t *testing.T) {
	assert.Equal(t, 150, SizeSmall.MaxDimension())
	assert.Equal(t, 400, SizeMedium.MaxDimension())
	assert.Equal(t, 800, SizeLarge.MaxDimension())
	assert.Equal(t, 0, Size("huge").MaxDimension())

	assert.True(t, SizeSmall.Valid())
	assert.False(t, Size("").Valid())
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("image/png"))
	assert.True(t, Supported("image/jpeg"))
	assert.False(t, Supported("image/svg+xml"))
	assert.False(t, Supported("application/pdf"))
	assert.False(t, Supported("text/plain"))
}
