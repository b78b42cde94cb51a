package store

import (
	"io"

	"github.com/filecrate/filecrate/internal/errs"
)

// SizeGuard wraps the content stream of a Save, counting bytes as they are
// consumed and failing the read once a configured maximum is crossed.
// Drivers use the count, never the caller's declared length, as the
// record's SizeBytes, and treat a guard error mid-upload as an abort signal:
// the partial object must be removed before the error propagates.
type SizeGuard struct {
	r   io.Reader
	n   int64
	max int64 // 0 means unlimited
}

// NewSizeGuard wraps r with a byte counter and an optional cap.
func NewSizeGuard(r io.Reader, max int64) *SizeGuard {
	return &SizeGuard{r: r, max: max}
}

func (g *SizeGuard) Read(p []byte) (int, error) {
	n, err := g.r.Read(p)
	g.n += int64(n)
	if g.max > 0 && g.n > g.max {
		return n, errs.Validation(errs.CodeMaxFileSizeExceeded, "content exceeded the configured maximum size mid-stream")
	}
	return n, err
}

// Count returns the exact number of bytes read so far.
func (g *SizeGuard) Count() int64 {
	return g.n
}
