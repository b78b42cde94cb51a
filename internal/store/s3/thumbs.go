package s3

import (
	"bytes"
	"context"
	"io"
	"strings"

	miniogo "github.com/minio/minio-go/v7"

	"github.com/filecrate/filecrate/internal/errs"
	"github.com/filecrate/filecrate/internal/keys"
	"github.com/filecrate/filecrate/internal/store"
	"github.com/filecrate/filecrate/internal/thumbnail"
)

// thumbRoot returns the hidden thumbnail-cache prefix, under the configured
// root when one is set.
func (d *Driver) thumbRoot() string {
	if root := d.kb.Root(); root != "" {
		return root + keys.Separator + store.ThumbnailPrefix
	}
	return store.ThumbnailPrefix
}

// thumbKey is the deterministic cache key for an id at a size class.
func (d *Driver) thumbKey(size thumbnail.Size, id string) string {
	return strings.Join([]string{d.thumbRoot(), string(size), id + ".jpg"}, keys.Separator)
}

// Thumbnail serves the cached thumbnail when it is at least as fresh as the
// source object, otherwise regenerates and repopulates the cache.
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

	srcStat, err := d.client.StatObject(ctx, d.cfg.Bucket, rec.StoragePath, miniogo.StatObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to stat source object")
	}

	cacheKey := d.thumbKey(size, id)
	if cacheStat, err := d.client.StatObject(ctx, d.cfg.Bucket, cacheKey, miniogo.StatObjectOptions{}); err == nil {
		if !cacheStat.LastModified.Before(srcStat.LastModified) {
			obj, err := d.client.GetObject(ctx, d.cfg.Bucket, cacheKey, miniogo.GetObjectOptions{})
			if err == nil {
				return obj, nil
			}
			// Unreadable cache regenerates below.
		}
	}

	obj, err := d.client.GetObject(ctx, d.cfg.Bucket, rec.StoragePath, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to get source object")
	}
	src, err := io.ReadAll(obj)
	obj.Close()
	if err != nil {
		return nil, mapError(err, "failed to read source object")
	}

	encoded, _, _, err := thumbnail.Generate(src, size.MaxDimension())
	if err != nil {
		return nil, err
	}

	_, err = d.client.PutObject(ctx, d.cfg.Bucket, cacheKey, bytes.NewReader(encoded), int64(len(encoded)),
		miniogo.PutObjectOptions{ContentType: "image/jpeg"})
	if err != nil {
		return nil, mapError(err, "failed to cache thumbnail")
	}

	return io.NopCloser(bytes.NewReader(encoded)), nil
}

// deleteThumbnails removes all cached sizes for an id, best effort.
func (d *Driver) deleteThumbnails(ctx context.Context, id string) {
	for _, size := range []thumbnail.Size{thumbnail.SizeSmall, thumbnail.SizeMedium, thumbnail.SizeLarge} {
		d.client.RemoveObject(ctx, d.cfg.Bucket, d.thumbKey(size, id), miniogo.RemoveObjectOptions{})
	}
}
