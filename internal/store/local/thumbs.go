package local

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/filecrate/filecrate/internal/errs"
	"github.com/filecrate/filecrate/internal/store"
	"github.com/filecrate/filecrate/internal/thumbnail"
)

// thumbPath returns the cache location for an id at a size class.
func (d *Driver) thumbPath(size thumbnail.Size, id string) string {
	return filepath.Join(d.cfg.BasePath, store.ThumbnailPrefix, string(size), id+".jpg")
}

// Thumbnail serves a cached thumbnail when it is at least as fresh as the
// source, otherwise decodes, scales and re-encodes the source, repopulating
// the cache. Only raster image records qualify.
func (d *Driver) Thumbnail(ctx context.Context, id string, size thumbnail.Size) (io.ReadCloser, error) {
	if !size.Valid() {
		return nil, errs.Validation(errs.CodeInvalidFileType, "unknown thumbnail size: "+string(size))
	}

	rec, err := d.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	if !thumbnail.Supported(rec.ContentType) {
		return nil, errs.Validation(errs.CodeInvalidFileType, "thumbnails are not supported for "+rec.ContentType)
	}

	srcInfo, err := os.Stat(rec.StoragePath)
	if err != nil {
		return nil, mapError(err, "failed to stat source content")
	}

	cache := d.thumbPath(size, id)
	if info, err := os.Stat(cache); err == nil && !info.ModTime().Before(srcInfo.ModTime()) {
		f, err := os.Open(cache)
		if err == nil {
			return f, nil
		}
		// Unreadable cache regenerates below.
	}

	src, err := os.ReadFile(rec.StoragePath)
	if err != nil {
		return nil, mapError(err, "failed to read source content")
	}

	encoded, _, _, err := thumbnail.Generate(src, size.MaxDimension())
	if err != nil {
		return nil, err
	}

	if _, err := d.writeContent(ctx, cache, bytes.NewReader(encoded), nil, 0); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(encoded)), nil
}

// deleteThumbnails removes all cached sizes for an id.
func (d *Driver) deleteThumbnails(id string) {
	for _, size := range []thumbnail.Size{thumbnail.SizeSmall, thumbnail.SizeMedium, thumbnail.SizeLarge} {
		os.Remove(d.thumbPath(size, id))
	}
}
